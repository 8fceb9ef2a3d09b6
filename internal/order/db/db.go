package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-leadflow/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrGatewayIDAssigned = errors.New("gateway order id already assigned")
)

// CreateOrder → insert new order (status must be pending)
func (d *DB) CreateOrder(ctx context.Context, order models.Order) error {
	_, err := d.Bun.NewInsert().Model(&order).Exec(ctx)
	return err
}

// GetOrderByID → fetch one order by its local ID
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("gateway_order_id = ?", gatewayOrderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ResolveRef resolves an order reference carrying either the local id or the
// gateway's order id. Both point at the same row.
func (d *DB) ResolveRef(ctx context.Context, ref models.OrderRef) (*models.Order, error) {
	if ref.OrderID != "" {
		return d.GetOrderByID(ctx, ref.OrderID)
	}
	if ref.GatewayOrderID != "" {
		return d.GetOrderByGatewayOrderID(ctx, ref.GatewayOrderID)
	}
	return nil, ErrOrderNotFound
}

// SetGatewayOrderID assigns the external correlation key exactly once.
func (d *DB) SetGatewayOrderID(ctx context.Context, orderID, gatewayOrderID string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("gateway_order_id = ?", gatewayOrderID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", orderID).
		Where("gateway_order_id IS NULL OR gateway_order_id = ''").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrGatewayIDAssigned
	}
	return nil
}

// TransitionFromPending is the atomic conditional transition at the heart of
// reconciliation: UPDATE ... WHERE status = 'pending'. The affected-row count
// decides whether this caller won the transition (and owns the side-effect
// dispatch) or observed an already-settled row.
func (d *DB) TransitionFromPending(ctx context.Context, orderID string, status models.OrderStatus, gatewayPaymentID string) (bool, error) {
	if !status.IsTerminal() {
		return false, errors.New("transition target must be terminal, got: " + string(status))
	}

	q := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", orderID).
		Where("status = ?", models.StatusPending)
	if gatewayPaymentID != "" {
		q = q.Set("gateway_payment_id = ?", gatewayPaymentID)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// GetOrdersByLead → all payment attempts for a lead, newest first
func (d *DB) GetOrdersByLead(ctx context.Context, leadID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("lead_id = ?", leadID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// HasSuccessfulOrderForPlan reports whether the lead already holds the access
// grant for a plan through some earlier successful order.
func (d *DB) HasSuccessfulOrderForPlan(ctx context.Context, leadID string, plan models.Plan) (bool, error) {
	count, err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("lead_id = ?", leadID).
		Where("plan = ?", plan).
		Where("status = ?", models.StatusSuccess).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

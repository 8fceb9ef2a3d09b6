package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-leadflow/internal/models"
	"ms-leadflow/internal/utils"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

var ErrLeadNotFound = errors.New("lead not found")

// GetLeadByID → fetch one lead by its ID
func (d *DB) GetLeadByID(ctx context.Context, id string) (*models.Lead, error) {
	var lead models.Lead
	err := d.Bun.NewSelect().
		Model(&lead).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (d *DB) GetLeadByEmail(ctx context.Context, email string) (*models.Lead, error) {
	var lead models.Lead
	err := d.Bun.NewSelect().
		Model(&lead).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// GetOrCreateByEmail resolves the lead for an email, creating it when absent.
// Email is unique, so a concurrent duplicate insert loses and falls back to
// the select. Source is fixed at first creation and never mutated afterwards.
func (d *DB) GetOrCreateByEmail(ctx context.Context, req models.RegistrationRequest) (*models.Lead, error) {
	existing, err := d.GetLeadByEmail(ctx, req.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrLeadNotFound) {
		return nil, err
	}

	now := time.Now()
	lead := models.Lead{
		ID:        utils.GenerateLeadID(),
		Email:     req.Email,
		Name:      req.Name,
		Company:   req.Company,
		Phone:     req.Phone,
		Source:    req.Source,
		Status:    models.LeadStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = d.Bun.NewInsert().
		Model(&lead).
		On("CONFLICT (email) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	// Either our row or the concurrent winner's row.
	return d.GetLeadByEmail(ctx, req.Email)
}

// AdvanceStatus moves a lead forward in the lifecycle. The update is
// rank-guarded in a single statement so a stale caller can never move the
// status backwards: new → registered → paid only.
func (d *DB) AdvanceStatus(ctx context.Context, leadID string, target models.LeadStatus) error {
	rank := models.LeadStatusRank(target)
	if rank < 0 {
		return errors.New("unknown lead status: " + string(target))
	}

	res, err := d.Bun.NewUpdate().
		Model((*models.Lead)(nil)).
		Set("status = ?", target).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", leadID).
		Where("CASE status WHEN 'new' THEN 0 WHEN 'registered' THEN 1 WHEN 'paid' THEN 2 END < ?", rank).
		Exec(ctx)
	if err != nil {
		return err
	}
	// Zero rows means the lead is already at or past the target; that is the
	// idempotent no-op, not an error.
	_, _ = res.RowsAffected()
	return nil
}

// MarkPaid promotes the lead to paid unless it already is.
func (d *DB) MarkPaid(ctx context.Context, leadID string) error {
	return d.AdvanceStatus(ctx, leadID, models.LeadStatusPaid)
}

// ForceStatus bypasses the monotonic guard. Admin recovery only; callers must
// write an audit entry alongside.
func (d *DB) ForceStatus(ctx context.Context, leadID string, status models.LeadStatus) error {
	if models.LeadStatusRank(status) < 0 {
		return errors.New("unknown lead status: " + string(status))
	}
	res, err := d.Bun.NewUpdate().
		Model((*models.Lead)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", leadID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrLeadNotFound
	}
	return nil
}

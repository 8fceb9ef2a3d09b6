package db

import (
	"context"
	"database/sql"
	"errors"

	"ms-leadflow/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

var ErrNotificationNotFound = errors.New("notification not found")

func (d *DB) CreateNotification(ctx context.Context, n models.Notification) error {
	_, err := d.Bun.NewInsert().Model(&n).Exec(ctx)
	return err
}

// ExistsForOrder is the dispatcher's idempotency guard: one notification per
// type per triggering order, no matter how often the dispatch replays.
func (d *DB) ExistsForOrder(ctx context.Context, orderID string, typ models.NotificationType) (bool, error) {
	count, err := d.Bun.NewSelect().
		Model((*models.Notification)(nil)).
		Where("order_id = ?", orderID).
		Where("type = ?", typ).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *DB) GetNotificationByID(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	err := d.Bun.NewSelect().
		Model(&n).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (d *DB) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	var notifications []models.Notification
	err := d.Bun.NewSelect().
		Model(&notifications).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead flips is_read for the recipient. The user_id guard keeps one
// user from acknowledging another's notifications.
func (d *DB) MarkRead(ctx context.Context, id, userID string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Notification)(nil)).
		Set("is_read = ?", true).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

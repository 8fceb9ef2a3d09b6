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

var ErrWorkshopNotFound = errors.New("workshop not found")

func (d *DB) GetWorkshop(ctx context.Context, id string) (*models.Workshop, error) {
	var w models.Workshop
	err := d.Bun.NewSelect().
		Model(&w).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkshopNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (d *DB) CreateWorkshop(ctx context.Context, w models.Workshop) error {
	_, err := d.Bun.NewInsert().Model(&w).Exec(ctx)
	return err
}

// TryIncrementRegistered claims one seat if any remain. The guard lives in
// the same UPDATE statement as the increment, so concurrent successful
// payments racing near sell-out can never push registered past capacity.
// Returns false when the workshop is full (or unknown).
func (d *DB) TryIncrementRegistered(ctx context.Context, workshopID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Workshop)(nil)).
		Set("registered = registered + 1").
		Where("id = ?", workshopID).
		Where("registered < capacity").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// SeatsRemaining is a display helper only; seat claims always go through
// TryIncrementRegistered.
func (d *DB) SeatsRemaining(ctx context.Context, workshopID string) (int, error) {
	w, err := d.GetWorkshop(ctx, workshopID)
	if err != nil {
		return 0, err
	}
	return w.SeatsRemaining(), nil
}

package db

import (
	"context"

	"ms-leadflow/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// AllModulesComplete reports whether every tracked module for (lead, plan) is
// complete. No rows means nothing tracked yet, which is not completion.
func (d *DB) AllModulesComplete(ctx context.Context, leadID string, plan models.Plan) (bool, error) {
	total, err := d.Bun.NewSelect().
		Model((*models.ModuleProgress)(nil)).
		Where("lead_id = ?", leadID).
		Where("plan = ?", plan).
		Count(ctx)
	if err != nil {
		return false, err
	}
	if total == 0 {
		return false, nil
	}

	incomplete, err := d.Bun.NewSelect().
		Model((*models.ModuleProgress)(nil)).
		Where("lead_id = ?", leadID).
		Where("plan = ?", plan).
		Where("completed = ?", false).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return incomplete == 0, nil
}

func (d *DB) RecordProgress(ctx context.Context, p models.ModuleProgress) error {
	_, err := d.Bun.NewInsert().Model(&p).Exec(ctx)
	return err
}

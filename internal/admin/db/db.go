package db

import (
	"context"
	"time"

	"ms-leadflow/internal/models"
	"ms-leadflow/internal/utils"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// RecordAudit appends one override to the audit trail. Entries are
// append-only; there is no update or delete path.
func (d *DB) RecordAudit(ctx context.Context, actor, action, entity, entityID, reason string) (*models.AuditEntry, error) {
	entry := models.AuditEntry{
		ID:        utils.GenerateAuditID(),
		Actor:     actor,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if _, err := d.Bun.NewInsert().Model(&entry).Exec(ctx); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FunnelStats is the back-office overview aggregate.
type FunnelStats struct {
	LeadsByStatus  map[string]int   `json:"leads_by_status"`
	OrdersByStatus map[string]int   `json:"orders_by_status"`
	RevenueByPlan  map[string]int64 `json:"revenue_cents_by_plan"`
}

type statusCount struct {
	Status string `bun:"status"`
	Count  int    `bun:"count"`
}

type planRevenue struct {
	Plan    string `bun:"plan"`
	Revenue int64  `bun:"revenue"`
}

// GetFunnelStats aggregates the funnel for the back-office dashboard.
// Revenue counts successful orders only.
func (d *DB) GetFunnelStats(ctx context.Context) (*FunnelStats, error) {
	stats := &FunnelStats{
		LeadsByStatus:  map[string]int{},
		OrdersByStatus: map[string]int{},
		RevenueByPlan:  map[string]int64{},
	}

	var leadCounts []statusCount
	err := d.Bun.NewSelect().
		Model((*models.Lead)(nil)).
		ColumnExpr("status").
		ColumnExpr("count(*) AS count").
		Group("status").
		Scan(ctx, &leadCounts)
	if err != nil {
		return nil, err
	}
	for _, c := range leadCounts {
		stats.LeadsByStatus[c.Status] = c.Count
	}

	var orderCounts []statusCount
	err = d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("status").
		ColumnExpr("count(*) AS count").
		Group("status").
		Scan(ctx, &orderCounts)
	if err != nil {
		return nil, err
	}
	for _, c := range orderCounts {
		stats.OrdersByStatus[c.Status] = c.Count
	}

	var revenues []planRevenue
	err = d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("plan").
		ColumnExpr("sum(amount_cents) AS revenue").
		Where("status = ?", models.StatusSuccess).
		Group("plan").
		Scan(ctx, &revenues)
	if err != nil {
		return nil, err
	}
	for _, r := range revenues {
		stats.RevenueByPlan[r.Plan] = r.Revenue
	}

	return stats, nil
}

// ListAuditByEntity returns the trail for one entity, newest first.
func (d *DB) ListAuditByEntity(ctx context.Context, entity, entityID string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("entity = ?", entity).
		Where("entity_id = ?", entityID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

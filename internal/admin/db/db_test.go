package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-leadflow/internal/admin/db"
	"ms-leadflow/internal/database/migrations"
	"ms-leadflow/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// One connection: the pool would otherwise hand each goroutine its own
	// empty in-memory database.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := migrations.CreateSchema(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return &db.DB{Bun: bunDB}, bunDB
}

func seedLead(t *testing.T, bunDB *bun.DB, status models.LeadStatus) models.Lead {
	now := time.Now()
	lead := models.Lead{
		ID:        uuid.New().String(),
		Email:     uuid.New().String() + "@example.com",
		Name:      "Test Lead",
		Source:    models.SourceLanding,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := bunDB.NewInsert().Model(&lead).Exec(context.Background())
	assert.NoError(t, err)
	return lead
}

func seedOrder(t *testing.T, bunDB *bun.DB, leadID string, plan models.Plan, amount int64, status models.OrderStatus) models.Order {
	now := time.Now()
	order := models.Order{
		ID:          uuid.New().String(),
		LeadID:      leadID,
		Plan:        plan,
		AmountCents: amount,
		Currency:    "eur",
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := bunDB.NewInsert().Model(&order).Exec(context.Background())
	assert.NoError(t, err)
	return order
}

func TestRecordAuditAndListByEntity(t *testing.T) {
	adminDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	first, err := adminDB.RecordAudit(ctx, "ops@example.com", "force_status:paid", "lead", "lead-1", "bank transfer confirmed")
	assert.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = adminDB.RecordAudit(ctx, "ops@example.com", "redispatch", "order", "order-1", "email bounced")
	assert.NoError(t, err)

	entries, err := adminDB.ListAuditByEntity(ctx, "lead", "lead-1")
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "force_status:paid", entries[0].Action)
	assert.Equal(t, "bank transfer confirmed", entries[0].Reason)
}

func TestGetFunnelStatsAggregates(t *testing.T) {
	adminDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	paid := seedLead(t, bunDB, models.LeadStatusPaid)
	registered := seedLead(t, bunDB, models.LeadStatusRegistered)
	seedLead(t, bunDB, models.LeadStatusRegistered)

	seedOrder(t, bunDB, paid.ID, models.PlanPro, 14900, models.StatusSuccess)
	seedOrder(t, bunDB, paid.ID, models.PlanWorkshop, 29900, models.StatusSuccess)
	seedOrder(t, bunDB, registered.ID, models.PlanPro, 14900, models.StatusPending)
	seedOrder(t, bunDB, registered.ID, models.PlanStarter, 4900, models.StatusFailed)

	stats, err := adminDB.GetFunnelStats(ctx)
	assert.NoError(t, err)

	assert.Equal(t, 1, stats.LeadsByStatus["paid"])
	assert.Equal(t, 2, stats.LeadsByStatus["registered"])

	assert.Equal(t, 2, stats.OrdersByStatus["success"])
	assert.Equal(t, 1, stats.OrdersByStatus["pending"])
	assert.Equal(t, 1, stats.OrdersByStatus["failed"])

	// Failed and pending orders contribute no revenue.
	assert.Equal(t, int64(14900), stats.RevenueByPlan["pro"])
	assert.Equal(t, int64(29900), stats.RevenueByPlan["workshop"])
	assert.NotContains(t, stats.RevenueByPlan, "starter")
}

func TestGetFunnelStatsEmptyDatabase(t *testing.T) {
	adminDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	stats, err := adminDB.GetFunnelStats(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, stats.LeadsByStatus)
	assert.Empty(t, stats.OrdersByStatus)
	assert.Empty(t, stats.RevenueByPlan)
}

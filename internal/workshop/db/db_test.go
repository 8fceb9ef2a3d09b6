package db_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"ms-leadflow/internal/database/migrations"
	"ms-leadflow/internal/models"
	"ms-leadflow/internal/workshop/db"

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
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := migrations.CreateSchema(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return &db.DB{Bun: bunDB}, bunDB
}

func createWorkshop(t *testing.T, workshopDB *db.DB, capacity int) models.Workshop {
	w := models.Workshop{
		ID:        "ws-1",
		Title:     "Go Fundamentals",
		StartsAt:  time.Now().Add(48 * time.Hour),
		Capacity:  capacity,
		CreatedAt: time.Now(),
	}
	if err := workshopDB.CreateWorkshop(context.Background(), w); err != nil {
		t.Fatalf("Failed to create workshop: %v", err)
	}
	return w
}

func TestTryIncrementRegistered(t *testing.T) {
	workshopDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	createWorkshop(t, workshopDB, 2)

	claimed, err := workshopDB.TryIncrementRegistered(ctx, "ws-1")
	assert.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = workshopDB.TryIncrementRegistered(ctx, "ws-1")
	assert.NoError(t, err)
	assert.True(t, claimed)

	// Sold out: the increment refuses, the counter never passes capacity.
	claimed, err = workshopDB.TryIncrementRegistered(ctx, "ws-1")
	assert.NoError(t, err)
	assert.False(t, claimed)

	got, err := workshopDB.GetWorkshop(ctx, "ws-1")
	assert.NoError(t, err)
	assert.Equal(t, 2, got.Registered)
	assert.Equal(t, 0, got.SeatsRemaining())
}

func TestTryIncrementUnderContention(t *testing.T) {
	workshopDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	createWorkshop(t, workshopDB, 3)

	const attempts = 12
	var wg sync.WaitGroup
	claims := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := workshopDB.TryIncrementRegistered(ctx, "ws-1")
			if err == nil && claimed {
				claims <- true
			}
		}()
	}
	wg.Wait()
	close(claims)

	total := 0
	for range claims {
		total++
	}
	assert.Equal(t, 3, total, "claims must match capacity exactly")

	got, err := workshopDB.GetWorkshop(ctx, "ws-1")
	assert.NoError(t, err)
	assert.Equal(t, 3, got.Registered)
}

func TestSeatsRemaining(t *testing.T) {
	workshopDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	createWorkshop(t, workshopDB, 5)

	remaining, err := workshopDB.SeatsRemaining(ctx, "ws-1")
	assert.NoError(t, err)
	assert.Equal(t, 5, remaining)

	_, err = workshopDB.SeatsRemaining(ctx, "missing")
	assert.ErrorIs(t, err, db.ErrWorkshopNotFound)
}

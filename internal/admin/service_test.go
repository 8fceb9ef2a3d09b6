package admin_test

import (
	"context"
	"errors"
	"testing"

	"ms-leadflow/internal/admin"
	admindb "ms-leadflow/internal/admin/db"
	"ms-leadflow/internal/logger"
	"ms-leadflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockLeadStore struct {
	mock.Mock
}

func (m *MockLeadStore) GetLeadByID(ctx context.Context, id string) (*models.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}

func (m *MockLeadStore) ForceStatus(ctx context.Context, leadID string, status models.LeadStatus) error {
	args := m.Called(ctx, leadID, status)
	return args.Error(0)
}

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderStore) GetOrdersByLead(ctx context.Context, leadID string) ([]models.Order, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) DispatchSuccess(ctx context.Context, order *models.Order, capacityExceeded bool) error {
	args := m.Called(ctx, order, capacityExceeded)
	return args.Error(0)
}

func (m *MockDispatcher) DispatchFailure(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

type MockAuditStore struct {
	mock.Mock
}

func (m *MockAuditStore) RecordAudit(ctx context.Context, actor, action, entity, entityID, reason string) (*models.AuditEntry, error) {
	args := m.Called(ctx, actor, action, entity, entityID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuditEntry), args.Error(1)
}

func (m *MockAuditStore) ListAuditByEntity(ctx context.Context, entity, entityID string) ([]models.AuditEntry, error) {
	args := m.Called(ctx, entity, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AuditEntry), args.Error(1)
}

type MockStatsStore struct {
	mock.Mock
}

func (m *MockStatsStore) GetFunnelStats(ctx context.Context) (*admindb.FunnelStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*admindb.FunnelStats), args.Error(1)
}

type MockSeatStore struct {
	mock.Mock
}

func (m *MockSeatStore) CreateWorkshop(ctx context.Context, w models.Workshop) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockSeatStore) GetWorkshop(ctx context.Context, id string) (*models.Workshop, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Workshop), args.Error(1)
}

type MockProgressStore struct {
	mock.Mock
}

func (m *MockProgressStore) RecordProgress(ctx context.Context, p models.ModuleProgress) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type adminMocks struct {
	leads      *MockLeadStore
	orders     *MockOrderStore
	dispatcher *MockDispatcher
	audit      *MockAuditStore
	stats      *MockStatsStore
	seats      *MockSeatStore
	progress   *MockProgressStore
}

func newTestService() (*admin.Service, *adminMocks) {
	m := &adminMocks{
		leads:      new(MockLeadStore),
		orders:     new(MockOrderStore),
		dispatcher: new(MockDispatcher),
		audit:      new(MockAuditStore),
		stats:      new(MockStatsStore),
		seats:      new(MockSeatStore),
		progress:   new(MockProgressStore),
	}
	svc := admin.NewService(m.leads, m.orders, m.dispatcher, m.audit, m.stats, m.seats, m.progress, logger.NewLogger())
	return svc, m
}

func TestForceLeadStatusWritesAudit(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	m.leads.On("ForceStatus", ctx, "lead-1", models.LeadStatusPaid).Return(nil)
	m.audit.On("RecordAudit", ctx, "admin-1", "force_status:paid", "lead", "lead-1", "chargeback reversed").
		Return(&models.AuditEntry{ID: "aud_1"}, nil)

	err := svc.ForceLeadStatus(ctx, "admin-1", "lead-1", models.LeadStatusPaid, "chargeback reversed")
	assert.NoError(t, err)
	m.audit.AssertExpectations(t)
}

func TestForceLeadStatusRequiresReason(t *testing.T) {
	svc, m := newTestService()

	err := svc.ForceLeadStatus(context.Background(), "admin-1", "lead-1", models.LeadStatusPaid, "")
	assert.ErrorIs(t, err, admin.ErrReasonRequired)
	m.leads.AssertNotCalled(t, "ForceStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestForceLeadStatusRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService()

	err := svc.ForceLeadStatus(context.Background(), "admin-1", "lead-1", "archived", "cleanup")
	assert.ErrorIs(t, err, admin.ErrInvalidStatus)
}

func TestRedispatchSuccessOrder(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	order := &models.Order{ID: "order-1", Status: models.StatusSuccess}
	m.orders.On("GetOrderByID", ctx, "order-1").Return(order, nil)
	m.dispatcher.On("DispatchSuccess", ctx, order, false).Return(nil)
	m.audit.On("RecordAudit", ctx, "admin-1", "redispatch", "order", "order-1", "email bounced").
		Return(&models.AuditEntry{ID: "aud_1"}, nil)

	err := svc.RedispatchOrder(ctx, "admin-1", "order-1", "email bounced")
	assert.NoError(t, err)
	m.dispatcher.AssertExpectations(t)
	m.audit.AssertExpectations(t)
}

func TestRedispatchRejectsPendingOrder(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	m.orders.On("GetOrderByID", ctx, "order-1").Return(&models.Order{
		ID: "order-1", Status: models.StatusPending,
	}, nil)

	err := svc.RedispatchOrder(ctx, "admin-1", "order-1", "why not")
	assert.ErrorIs(t, err, admin.ErrOrderNotSettled)
	m.dispatcher.AssertNotCalled(t, "DispatchSuccess", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetAuditTrailRequiresEntity(t *testing.T) {
	svc, m := newTestService()

	_, err := svc.GetAuditTrail(context.Background(), "", "lead-1")
	assert.ErrorIs(t, err, admin.ErrInvalidStatus)

	_, err = svc.GetAuditTrail(context.Background(), "lead", "")
	assert.ErrorIs(t, err, admin.ErrInvalidStatus)
	m.audit.AssertNotCalled(t, "ListAuditByEntity", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetAuditTrail(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	entries := []models.AuditEntry{{ID: "aud_1", Action: "redispatch"}}
	m.audit.On("ListAuditByEntity", ctx, "order", "order-1").Return(entries, nil)

	got, err := svc.GetAuditTrail(ctx, "order", "order-1")
	assert.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestGetWorkshopNotFound(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	m.seats.On("GetWorkshop", ctx, "missing").Return(nil, errors.New("sql: no rows"))

	_, err := svc.GetWorkshop(ctx, "missing")
	assert.ErrorIs(t, err, admin.ErrWorkshopNotFound)
}

func TestGetFunnelStats(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	stats := &admindb.FunnelStats{
		LeadsByStatus: map[string]int{"paid": 3},
	}
	m.stats.On("GetFunnelStats", ctx).Return(stats, nil)

	got, err := svc.GetFunnelStats(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 3, got.LeadsByStatus["paid"])
}

func TestCreateWorkshopValidation(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateWorkshop(context.Background(), "admin-1", models.Workshop{Title: "", Capacity: 10})
	assert.ErrorIs(t, err, admin.ErrInvalidStatus)

	_, err = svc.CreateWorkshop(context.Background(), "admin-1", models.Workshop{Title: "Go", Capacity: 0})
	assert.ErrorIs(t, err, admin.ErrInvalidStatus)
}

func TestCreateWorkshopAssignsID(t *testing.T) {
	svc, m := newTestService()

	m.seats.On("CreateWorkshop", mock.Anything, mock.MatchedBy(func(w models.Workshop) bool {
		return w.ID != "" && w.Registered == 0
	})).Return(nil)

	created, err := svc.CreateWorkshop(context.Background(), "admin-1", models.Workshop{
		Title: "Go Fundamentals", Capacity: 20,
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

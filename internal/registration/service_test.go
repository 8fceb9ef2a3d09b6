package registration_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"ms-leadflow/internal/config"
	"ms-leadflow/internal/gateway"
	"ms-leadflow/internal/logger"
	"ms-leadflow/internal/models"
	"ms-leadflow/internal/reconcile"
	"ms-leadflow/internal/registration"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockLeadStore struct {
	mock.Mock
}

func (m *MockLeadStore) GetOrCreateByEmail(ctx context.Context, req models.RegistrationRequest) (*models.Lead, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}

func (m *MockLeadStore) AdvanceStatus(ctx context.Context, leadID string, target models.LeadStatus) error {
	args := m.Called(ctx, leadID, target)
	return args.Error(0)
}

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) CreateOrder(ctx context.Context, order models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderStore) ResolveRef(ctx context.Context, ref models.OrderRef) (*models.Order, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderStore) SetGatewayOrderID(ctx context.Context, orderID, gatewayOrderID string) error {
	args := m.Called(ctx, orderID, gatewayOrderID)
	return args.Error(0)
}

func (m *MockOrderStore) HasSuccessfulOrderForPlan(ctx context.Context, leadID string, plan models.Plan) (bool, error) {
	args := m.Called(ctx, leadID, plan)
	return args.Bool(0), args.Error(1)
}

type MockSeatStore struct {
	mock.Mock
}

func (m *MockSeatStore) GetWorkshop(ctx context.Context, id string) (*models.Workshop, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Workshop), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckout(ctx context.Context, lead *models.Lead, order *models.Order) (*models.CheckoutResult, error) {
	args := m.Called(ctx, lead, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckoutResult), args.Error(1)
}

func (m *MockGateway) QueryStatus(ctx context.Context, gatewayOrderID string) (*models.StatusResult, error) {
	args := m.Called(ctx, gatewayOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StatusResult), args.Error(1)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) AcquireRegistration(ctx context.Context, email, token string) (bool, error) {
	args := m.Called(ctx, email, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) ReleaseRegistration(ctx context.Context, email, token string) error {
	args := m.Called(ctx, email, token)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, key string, value []byte) error {
	args := m.Called(topic, key, value)
	return args.Error(0)
}

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, ref models.OrderRef, observed models.OrderStatus, gatewayPaymentID string) (*reconcile.Result, error) {
	args := m.Called(ctx, ref, observed, gatewayPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconcile.Result), args.Error(1)
}

type serviceMocks struct {
	leads      *MockLeadStore
	orders     *MockOrderStore
	seats      *MockSeatStore
	gw         *MockGateway
	lock       *MockLocker
	producer   *MockPublisher
	reconciler *MockReconciler
}

func newTestService() (*registration.Service, *serviceMocks) {
	m := &serviceMocks{
		leads:      new(MockLeadStore),
		orders:     new(MockOrderStore),
		seats:      new(MockSeatStore),
		gw:         new(MockGateway),
		lock:       new(MockLocker),
		producer:   new(MockPublisher),
		reconciler: new(MockReconciler),
	}
	cfg := config.Load()
	cfg.Verify.RetryBase = time.Millisecond
	svc := registration.NewService(
		m.leads, m.orders, m.seats, m.gw, m.lock, m.producer, m.reconciler, cfg, logger.NewLogger())
	return svc, m
}

func validRequest() models.RegistrationRequest {
	return models.RegistrationRequest{
		Email:  "lena@example.com",
		Name:   "Lena",
		Source: models.SourceLanding,
		Plan:   models.PlanPro,
	}
}

func TestRegisterHappyPath(t *testing.T) {
	svc, m := newTestService()

	lead := &models.Lead{ID: "lead-1", Email: "lena@example.com", Status: models.LeadStatusNew}

	m.lock.On("AcquireRegistration", mock.Anything, "lena@example.com", mock.Anything).Return(true, nil)
	m.lock.On("ReleaseRegistration", mock.Anything, "lena@example.com", mock.Anything).Return(nil)
	m.leads.On("GetOrCreateByEmail", mock.Anything, mock.Anything).Return(lead, nil)
	m.orders.On("HasSuccessfulOrderForPlan", mock.Anything, "lead-1", models.PlanPro).Return(false, nil)
	m.leads.On("AdvanceStatus", mock.Anything, "lead-1", models.LeadStatusRegistered).Return(nil)
	m.orders.On("CreateOrder", mock.Anything, mock.MatchedBy(func(o models.Order) bool {
		return o.LeadID == "lead-1" && o.Status == models.StatusPending && o.AmountCents == 14900
	})).Return(nil)
	m.gw.On("CreateCheckout", mock.Anything, lead, mock.Anything).Return(&models.CheckoutResult{
		GatewayOrderID: "cs_1", RedirectURL: "https://checkout.example/cs_1",
	}, nil)
	m.orders.On("SetGatewayOrderID", mock.Anything, mock.Anything, "cs_1").Return(nil)
	m.producer.On("Publish", mock.Anything, "lead-1", mock.Anything).Return(nil)

	resp, err := svc.Register(context.Background(), validRequest())
	assert.NoError(t, err)
	assert.Equal(t, "lead-1", resp.LeadID)
	assert.True(t, strings.HasPrefix(resp.OrderID, "ord_"))
	assert.Equal(t, "https://checkout.example/cs_1", resp.RedirectURL)

	m.leads.AssertExpectations(t)
	m.orders.AssertExpectations(t)
	m.gw.AssertExpectations(t)
}

func TestRegisterRefusesAlreadyOwnedPlan(t *testing.T) {
	svc, m := newTestService()

	lead := &models.Lead{ID: "lead-1", Email: "lena@example.com", Status: models.LeadStatusPaid}

	m.lock.On("AcquireRegistration", mock.Anything, "lena@example.com", mock.Anything).Return(true, nil)
	m.lock.On("ReleaseRegistration", mock.Anything, "lena@example.com", mock.Anything).Return(nil)
	m.leads.On("GetOrCreateByEmail", mock.Anything, mock.Anything).Return(lead, nil)
	m.orders.On("HasSuccessfulOrderForPlan", mock.Anything, "lead-1", models.PlanPro).Return(true, nil)

	_, err := svc.Register(context.Background(), validRequest())
	assert.ErrorIs(t, err, registration.ErrPlanAlreadyOwned)
	m.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	m.gw.AssertNotCalled(t, "CreateCheckout", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterWorkshopSkipsOwnershipCheck(t *testing.T) {
	svc, m := newTestService()

	lead := &models.Lead{ID: "lead-1", Email: "lena@example.com", Status: models.LeadStatusPaid}

	m.lock.On("AcquireRegistration", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	m.lock.On("ReleaseRegistration", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.seats.On("GetWorkshop", mock.Anything, "ws-2").Return(&models.Workshop{
		ID: "ws-2", Capacity: 10, Registered: 1,
	}, nil)
	m.leads.On("GetOrCreateByEmail", mock.Anything, mock.Anything).Return(lead, nil)
	m.leads.On("AdvanceStatus", mock.Anything, "lead-1", models.LeadStatusRegistered).Return(nil)
	m.orders.On("CreateOrder", mock.Anything, mock.Anything).Return(nil)
	m.gw.On("CreateCheckout", mock.Anything, lead, mock.Anything).Return(&models.CheckoutResult{
		GatewayOrderID: "cs_2", RedirectURL: "https://checkout.example/cs_2",
	}, nil)
	m.orders.On("SetGatewayOrderID", mock.Anything, mock.Anything, "cs_2").Return(nil)
	m.producer.On("Publish", mock.Anything, "lead-1", mock.Anything).Return(nil)

	req := validRequest()
	req.Plan = models.PlanWorkshop
	req.WorkshopID = "ws-2"

	resp, err := svc.Register(context.Background(), req)
	assert.NoError(t, err)
	assert.NotEmpty(t, resp.RedirectURL)
	m.orders.AssertNotCalled(t, "HasSuccessfulOrderForPlan", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService()

	cases := []models.RegistrationRequest{
		{Name: "No Email", Plan: models.PlanPro},
		{Email: "a@b.com", Plan: models.PlanPro},
		{Email: "a@b.com", Name: "Bad Plan", Plan: "gold"},
		{Email: "a@b.com", Name: "No Workshop", Plan: models.PlanWorkshop},
		{Email: "a@b.com", Name: "Stray Workshop", Plan: models.PlanPro, WorkshopID: "ws-1"},
		{Email: "a@b.com", Name: "Bad Source", Plan: models.PlanPro, Source: "billboard"},
	}
	for i, req := range cases {
		_, err := svc.Register(context.Background(), req)
		assert.ErrorIs(t, err, registration.ErrInvalidRequest, fmt.Sprintf("case %d", i))
	}
}

func TestRegisterLockBusy(t *testing.T) {
	svc, m := newTestService()

	m.lock.On("AcquireRegistration", mock.Anything, "lena@example.com", mock.Anything).Return(false, nil)

	_, err := svc.Register(context.Background(), validRequest())
	assert.ErrorIs(t, err, registration.ErrRegistrationBusy)
	m.leads.AssertNotCalled(t, "GetOrCreateByEmail", mock.Anything, mock.Anything)
}

func TestRegisterWorkshopSoldOut(t *testing.T) {
	svc, m := newTestService()

	m.lock.On("AcquireRegistration", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	m.lock.On("ReleaseRegistration", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.seats.On("GetWorkshop", mock.Anything, "ws-1").Return(&models.Workshop{
		ID: "ws-1", Capacity: 10, Registered: 10,
	}, nil)

	req := validRequest()
	req.Plan = models.PlanWorkshop
	req.WorkshopID = "ws-1"

	_, err := svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, registration.ErrWorkshopSoldOut)
}

func TestVerifyPaymentAnswersFromLocalStateWhenSettled(t *testing.T) {
	svc, m := newTestService()

	m.orders.On("ResolveRef", mock.Anything, models.OrderRef{OrderID: "order-1"}).Return(&models.Order{
		ID: "order-1", Status: models.StatusSuccess,
	}, nil)

	resp, err := svc.VerifyPayment(context.Background(), models.VerifyRequest{OrderID: "order-1"})
	assert.NoError(t, err)
	assert.Equal(t, models.VerifyStateConfirmed, resp.State)
	m.gw.AssertNotCalled(t, "QueryStatus", mock.Anything, mock.Anything)
}

func TestVerifyPaymentGatewayUnavailableAnswersProcessing(t *testing.T) {
	svc, m := newTestService()

	m.orders.On("ResolveRef", mock.Anything, mock.Anything).Return(&models.Order{
		ID: "order-1", Status: models.StatusPending, GatewayOrderID: "cs_1",
	}, nil)
	m.gw.On("QueryStatus", mock.Anything, "cs_1").Return(nil,
		fmt.Errorf("%w: connection refused", gateway.ErrGatewayUnavailable))

	resp, err := svc.VerifyPayment(context.Background(), models.VerifyRequest{OrderID: "order-1"})
	assert.NoError(t, err)
	assert.Equal(t, models.VerifyStateProcessing, resp.State)
	m.reconciler.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyPaymentReconcilesGatewayAnswer(t *testing.T) {
	svc, m := newTestService()

	pendingOrder := &models.Order{ID: "order-1", Status: models.StatusPending, GatewayOrderID: "cs_1"}
	m.orders.On("ResolveRef", mock.Anything, mock.Anything).Return(pendingOrder, nil)
	m.gw.On("QueryStatus", mock.Anything, "cs_1").Return(&models.StatusResult{
		Status: models.StatusSuccess, GatewayPaymentID: "pi_1",
	}, nil)
	m.reconciler.On("Reconcile", mock.Anything, mock.Anything, models.StatusSuccess, "pi_1").Return(&reconcile.Result{
		Order: &models.Order{ID: "order-1", Status: models.StatusSuccess},
		Won:   true,
	}, nil)

	resp, err := svc.VerifyPayment(context.Background(), models.VerifyRequest{OrderID: "order-1"})
	assert.NoError(t, err)
	assert.Equal(t, models.VerifyStateConfirmed, resp.State)
	m.reconciler.AssertExpectations(t)
}

func TestVerifyPaymentPendingAtGateway(t *testing.T) {
	svc, m := newTestService()

	m.orders.On("ResolveRef", mock.Anything, mock.Anything).Return(&models.Order{
		ID: "order-1", Status: models.StatusPending, GatewayOrderID: "cs_1",
	}, nil)
	m.gw.On("QueryStatus", mock.Anything, "cs_1").Return(&models.StatusResult{
		Status: models.StatusPending,
	}, nil)

	resp, err := svc.VerifyPayment(context.Background(), models.VerifyRequest{OrderID: "order-1"})
	assert.NoError(t, err)
	assert.Equal(t, models.VerifyStateProcessing, resp.State)
	assert.Equal(t, int64(2000), resp.PollAfterMs)
	assert.Equal(t, 10, resp.MaxPollAttempts)
	m.reconciler.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyPaymentRetriesTransientReconcile(t *testing.T) {
	svc, m := newTestService()

	m.orders.On("ResolveRef", mock.Anything, mock.Anything).Return(&models.Order{
		ID: "order-1", Status: models.StatusPending, GatewayOrderID: "cs_1",
	}, nil)
	m.gw.On("QueryStatus", mock.Anything, "cs_1").Return(&models.StatusResult{
		Status: models.StatusSuccess, GatewayPaymentID: "pi_1",
	}, nil)

	transient := &reconcile.TransientError{Op: "store", Err: fmt.Errorf("deadlock")}
	m.reconciler.On("Reconcile", mock.Anything, mock.Anything, models.StatusSuccess, "pi_1").
		Return(nil, transient).Once()
	m.reconciler.On("Reconcile", mock.Anything, mock.Anything, models.StatusSuccess, "pi_1").
		Return(&reconcile.Result{Order: &models.Order{ID: "order-1", Status: models.StatusSuccess}, Won: true}, nil).Once()

	resp, err := svc.VerifyPayment(context.Background(), models.VerifyRequest{OrderID: "order-1"})
	assert.NoError(t, err)
	assert.Equal(t, models.VerifyStateConfirmed, resp.State)
	m.reconciler.AssertNumberOfCalls(t, "Reconcile", 2)
}

package registration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-leadflow/internal/config"
	"ms-leadflow/internal/gateway"
	"ms-leadflow/internal/logger"
	"ms-leadflow/internal/metrics"
	"ms-leadflow/internal/models"
	orderdb "ms-leadflow/internal/order/db"
	"ms-leadflow/internal/reconcile"
	"ms-leadflow/internal/utils"
	workshopdb "ms-leadflow/internal/workshop/db"

	"github.com/google/uuid"
)

var (
	ErrInvalidRequest   = errors.New("invalid registration request")
	ErrRegistrationBusy = errors.New("another registration for this email is in progress")
	ErrWorkshopSoldOut  = errors.New("workshop is sold out")
	ErrWorkshopNotFound = errors.New("workshop not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrPlanAlreadyOwned = errors.New("plan is already paid for this lead")
	ErrCheckoutFailed   = errors.New("could not start checkout")
)

type LeadStore interface {
	GetOrCreateByEmail(ctx context.Context, req models.RegistrationRequest) (*models.Lead, error)
	AdvanceStatus(ctx context.Context, leadID string, target models.LeadStatus) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order models.Order) error
	ResolveRef(ctx context.Context, ref models.OrderRef) (*models.Order, error)
	SetGatewayOrderID(ctx context.Context, orderID, gatewayOrderID string) error
	HasSuccessfulOrderForPlan(ctx context.Context, leadID string, plan models.Plan) (bool, error)
}

type SeatStore interface {
	GetWorkshop(ctx context.Context, id string) (*models.Workshop, error)
}

type Gateway interface {
	CreateCheckout(ctx context.Context, lead *models.Lead, order *models.Order) (*models.CheckoutResult, error)
	QueryStatus(ctx context.Context, gatewayOrderID string) (*models.StatusResult, error)
}

type Locker interface {
	AcquireRegistration(ctx context.Context, email, token string) (bool, error)
	ReleaseRegistration(ctx context.Context, email, token string) error
}

type Publisher interface {
	Publish(topic string, key string, value []byte) error
}

type Reconciler interface {
	Reconcile(ctx context.Context, ref models.OrderRef, observed models.OrderStatus, gatewayPaymentID string) (*reconcile.Result, error)
}

// planAmounts is the public price list in cents. Workshop pricing is flat per
// seat regardless of the workshop instance.
var planAmounts = map[models.Plan]int64{
	models.PlanStarter:  4900,
	models.PlanPro:      14900,
	models.PlanBusiness: 49900,
	models.PlanWorkshop: 29900,
}

const currency = "eur"

// Service owns the registration funnel: capture the lead, open a pending
// order, hand the user to the gateway. Settlement is the reconciler's job.
type Service struct {
	Leads      LeadStore
	Orders     OrderStore
	Seats      SeatStore
	Gateway    Gateway
	Lock       Locker
	Producer   Publisher
	Reconciler Reconciler
	Cfg        *config.Config
	Logger     *logger.Logger
}

func NewService(
	leads LeadStore,
	orders OrderStore,
	seats SeatStore,
	gw Gateway,
	lock Locker,
	producer Publisher,
	reconciler Reconciler,
	cfg *config.Config,
	log *logger.Logger,
) *Service {
	return &Service{
		Leads:      leads,
		Orders:     orders,
		Seats:      seats,
		Gateway:    gw,
		Lock:       lock,
		Producer:   producer,
		Reconciler: reconciler,
		Cfg:        cfg,
		Logger:     log,
	}
}

func validateRequest(req *models.RegistrationRequest) error {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}
	if req.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if _, ok := planAmounts[req.Plan]; !ok {
		return fmt.Errorf("%w: unknown plan %q", ErrInvalidRequest, req.Plan)
	}
	if req.Plan == models.PlanWorkshop && req.WorkshopID == "" {
		return fmt.Errorf("%w: workshop_id is required for workshop plan", ErrInvalidRequest)
	}
	if req.Plan != models.PlanWorkshop && req.WorkshopID != "" {
		return fmt.Errorf("%w: workshop_id is only valid for workshop plan", ErrInvalidRequest)
	}
	switch req.Source {
	case models.SourceLanding, models.SourceAudit, models.SourceWorkshop:
	case "":
		req.Source = models.SourceLanding
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidRequest, req.Source)
	}
	return nil
}

// Register runs the funnel entry: upsert the lead by email, advance it to
// registered, create a pending order and return the gateway redirect. The
// per-email lock keeps a double submit from opening two checkouts at once;
// an order is still only settled through reconciliation.
func (s *Service) Register(ctx context.Context, req models.RegistrationRequest) (*models.RegistrationResponse, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	lockToken := uuid.New().String()
	acquired, err := s.Lock.AcquireRegistration(ctx, req.Email, lockToken)
	if err != nil {
		s.Logger.Error("REGISTRATION", fmt.Sprintf("Failed to acquire registration lock for %s: %v", req.Email, err))
		return nil, fmt.Errorf("failed to acquire registration lock: %w", err)
	}
	if !acquired {
		s.Logger.Warn("REGISTRATION", fmt.Sprintf("Registration lock busy for %s", req.Email))
		return nil, ErrRegistrationBusy
	}
	defer func() {
		if err := s.Lock.ReleaseRegistration(context.Background(), req.Email, lockToken); err != nil {
			s.Logger.Error("REGISTRATION", fmt.Sprintf("Failed to release registration lock for %s: %v", req.Email, err))
		}
	}()

	// Seat availability is advisory at registration time. The authoritative
	// check is the conditional increment at payment settlement; this one only
	// avoids sending users into checkout for a workshop that is already full.
	if req.Plan == models.PlanWorkshop {
		workshop, err := s.Seats.GetWorkshop(ctx, req.WorkshopID)
		if err != nil {
			if errors.Is(err, workshopdb.ErrWorkshopNotFound) {
				return nil, ErrWorkshopNotFound
			}
			return nil, fmt.Errorf("failed to load workshop: %w", err)
		}
		if workshop.SeatsRemaining() == 0 {
			metrics.RecordRegistration(string(req.Plan), "sold_out")
			return nil, ErrWorkshopSoldOut
		}
	}

	lead, err := s.Leads.GetOrCreateByEmail(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert lead: %w", err)
	}

	// Course plans grant access once; a second checkout for an already-paid
	// plan would settle a second success order. Workshop seats are per
	// instance and stay purchasable.
	if req.Plan != models.PlanWorkshop {
		owned, err := s.Orders.HasSuccessfulOrderForPlan(ctx, lead.ID, req.Plan)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing access: %w", err)
		}
		if owned {
			metrics.RecordRegistration(string(req.Plan), "already_owned")
			s.Logger.Warn("REGISTRATION", fmt.Sprintf("Lead %s already owns plan %s, refusing new checkout", lead.ID, req.Plan))
			return nil, ErrPlanAlreadyOwned
		}
	}

	if err := s.Leads.AdvanceStatus(ctx, lead.ID, models.LeadStatusRegistered); err != nil {
		return nil, fmt.Errorf("failed to advance lead status: %w", err)
	}

	now := time.Now()
	order := models.Order{
		ID:          utils.GenerateOrderID(),
		LeadID:      lead.ID,
		Plan:        req.Plan,
		WorkshopID:  req.WorkshopID,
		AmountCents: planAmounts[req.Plan],
		Currency:    currency,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	checkout, err := s.Gateway.CreateCheckout(ctx, lead, &order)
	if err != nil {
		s.Logger.Error("REGISTRATION", fmt.Sprintf("Checkout creation failed for order %s: %v", order.ID, err))
		// The pending order stays behind; a fresh registration attempt opens
		// a new one and the stale row never settles.
		return nil, fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
	}

	if err := s.Orders.SetGatewayOrderID(ctx, order.ID, checkout.GatewayOrderID); err != nil {
		return nil, fmt.Errorf("failed to record gateway order id: %w", err)
	}

	s.publishLeadEvent(lead, order.ID)
	metrics.RecordRegistration(string(order.Plan), "created")
	s.Logger.Info("REGISTRATION", fmt.Sprintf("Lead %s registered order %s for plan %s", lead.ID, order.ID, order.Plan))

	return &models.RegistrationResponse{
		LeadID:      lead.ID,
		OrderID:     order.ID,
		RedirectURL: checkout.RedirectURL,
	}, nil
}

// VerifyPayment is the client pull path. The success redirect is untrusted,
// so the gateway is queried afresh and the answer is folded into local state
// through the same reconciler the webhook uses.
func (s *Service) VerifyPayment(ctx context.Context, req models.VerifyRequest) (*models.VerifyResponse, error) {
	ref := models.OrderRef{OrderID: req.OrderID, GatewayOrderID: req.GatewayOrderID}
	if ref.IsZero() {
		return nil, fmt.Errorf("%w: order reference is required", ErrInvalidRequest)
	}

	order, err := s.Orders.ResolveRef(ctx, ref)
	if err != nil {
		if errors.Is(err, orderdb.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to resolve order: %w", err)
	}

	// Settled orders answer from local state without touching the gateway.
	if order.Status.IsTerminal() {
		return verifyResponseFor(order.ID, order.Status), nil
	}

	if order.GatewayOrderID == "" {
		// Checkout never reached the gateway; nothing to verify yet.
		return s.processing(order.ID), nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.Cfg.Gateway.QueryTimeout)
	defer cancel()
	status, err := s.Gateway.QueryStatus(queryCtx, order.GatewayOrderID)
	if err != nil {
		if errors.Is(err, gateway.ErrGatewayUnavailable) {
			s.Logger.Warn("VERIFY", fmt.Sprintf("Gateway unavailable while verifying order %s, answering processing", order.ID))
			return s.processing(order.ID), nil
		}
		return nil, fmt.Errorf("gateway status query failed: %w", err)
	}

	if status.Status == models.StatusPending {
		return s.processing(order.ID), nil
	}

	var result *reconcile.Result
	err = reconcile.Retry(ctx, s.Cfg.Verify.RetryAttempts, s.Cfg.Verify.RetryBase, func() error {
		var rErr error
		result, rErr = s.Reconciler.Reconcile(ctx, ref, status.Status, status.GatewayPaymentID)
		return rErr
	})
	if err != nil {
		if reconcile.IsTransient(err) {
			s.Logger.Warn("VERIFY", fmt.Sprintf("Reconciliation still transient for order %s, answering processing", order.ID))
			return s.processing(order.ID), nil
		}
		return nil, err
	}

	metrics.RecordReconciliation("verify", string(status.Status), result.Won)
	return verifyResponseFor(result.Order.ID, result.Order.Status), nil
}

// processing answers the pull path with the configured poll policy attached.
func (s *Service) processing(orderID string) *models.VerifyResponse {
	return &models.VerifyResponse{
		OrderID:         orderID,
		State:           models.VerifyStateProcessing,
		PollAfterMs:     s.Cfg.Verify.PollDelay.Milliseconds(),
		MaxPollAttempts: s.Cfg.Verify.MaxPollAttempts,
	}
}

func verifyResponseFor(orderID string, status models.OrderStatus) *models.VerifyResponse {
	state := models.VerifyStateProcessing
	switch status {
	case models.StatusSuccess:
		state = models.VerifyStateConfirmed
	case models.StatusFailed:
		state = models.VerifyStateFailed
	}
	return &models.VerifyResponse{OrderID: orderID, State: state}
}

func (s *Service) publishLeadEvent(lead *models.Lead, orderID string) {
	if s.Producer == nil {
		return
	}
	event := models.LeadEvent{
		Type:      "lead.registered",
		LeadID:    lead.ID,
		Email:     lead.Email,
		Source:    lead.Source,
		OrderID:   orderID,
		Timestamp: time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.Producer.Publish(s.Cfg.Kafka.Topics.LeadRegistered, lead.ID, payload); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish lead event for %s: %v", lead.ID, err))
	}
}

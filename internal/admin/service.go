package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	admindb "ms-leadflow/internal/admin/db"
	"ms-leadflow/internal/logger"
	"ms-leadflow/internal/models"

	"github.com/google/uuid"
)

var (
	ErrLeadNotFound     = errors.New("lead not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderNotSettled  = errors.New("order has not settled yet")
	ErrWorkshopNotFound = errors.New("workshop not found")
	ErrInvalidStatus    = errors.New("invalid lead status")
	ErrReasonRequired   = errors.New("a reason is required for admin overrides")
)

type LeadStore interface {
	GetLeadByID(ctx context.Context, id string) (*models.Lead, error)
	ForceStatus(ctx context.Context, leadID string, status models.LeadStatus) error
}

type OrderStore interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrdersByLead(ctx context.Context, leadID string) ([]models.Order, error)
}

type Dispatcher interface {
	DispatchSuccess(ctx context.Context, order *models.Order, capacityExceeded bool) error
	DispatchFailure(ctx context.Context, order *models.Order) error
}

type AuditStore interface {
	RecordAudit(ctx context.Context, actor, action, entity, entityID, reason string) (*models.AuditEntry, error)
	ListAuditByEntity(ctx context.Context, entity, entityID string) ([]models.AuditEntry, error)
}

type StatsStore interface {
	GetFunnelStats(ctx context.Context) (*admindb.FunnelStats, error)
}

type SeatStore interface {
	CreateWorkshop(ctx context.Context, w models.Workshop) error
	GetWorkshop(ctx context.Context, id string) (*models.Workshop, error)
}

type ProgressStore interface {
	RecordProgress(ctx context.Context, p models.ModuleProgress) error
}

// Service is the back-office surface: overrides that bypass the funnel's
// transition guards, always with an actor and a reason on the audit trail.
type Service struct {
	Leads      LeadStore
	Orders     OrderStore
	Dispatcher Dispatcher
	Audit      AuditStore
	Stats      StatsStore
	Seats      SeatStore
	Progress   ProgressStore
	Logger     *logger.Logger
}

func NewService(leads LeadStore, orders OrderStore, dispatcher Dispatcher, audit AuditStore, stats StatsStore, seats SeatStore, progress ProgressStore, log *logger.Logger) *Service {
	return &Service{
		Leads:      leads,
		Orders:     orders,
		Dispatcher: dispatcher,
		Audit:      audit,
		Stats:      stats,
		Seats:      seats,
		Progress:   progress,
		Logger:     log,
	}
}

// LeadOverview bundles everything the back office shows for one lead.
type LeadOverview struct {
	Lead   *models.Lead        `json:"lead"`
	Orders []models.Order      `json:"orders"`
	Audit  []models.AuditEntry `json:"audit"`
}

func (s *Service) GetLeadOverview(ctx context.Context, leadID string) (*LeadOverview, error) {
	lead, err := s.Leads.GetLeadByID(ctx, leadID)
	if err != nil {
		return nil, ErrLeadNotFound
	}
	orders, err := s.Orders.GetOrdersByLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	audit, err := s.Audit.ListAuditByEntity(ctx, "lead", leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit trail: %w", err)
	}
	return &LeadOverview{Lead: lead, Orders: orders, Audit: audit}, nil
}

// ForceLeadStatus sets a lead's status directly, skipping the monotonic
// guard. Every call writes an audit entry, including ones that set the
// status a lead already has.
func (s *Service) ForceLeadStatus(ctx context.Context, actor, leadID string, status models.LeadStatus, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}
	if models.LeadStatusRank(status) < 0 {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	if err := s.Leads.ForceStatus(ctx, leadID, status); err != nil {
		return ErrLeadNotFound
	}
	if _, err := s.Audit.RecordAudit(ctx, actor, "force_status:"+string(status), "lead", leadID, reason); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	s.Logger.Warn("ADMIN", fmt.Sprintf("Actor %s forced lead %s to %s: %s", actor, leadID, status, reason))
	return nil
}

// RedispatchOrder replays the side effects for a settled order. The
// dispatcher's own idempotency decides what actually reruns: the
// notification stays single, the Kafka event and email go out again. Seat
// counters are untouched; the increment belongs to the original
// reconciliation alone.
func (s *Service) RedispatchOrder(ctx context.Context, actor, orderID, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}

	order, err := s.Orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return ErrOrderNotFound
	}
	if !order.Status.IsTerminal() {
		return ErrOrderNotSettled
	}

	switch order.Status {
	case models.StatusSuccess:
		err = s.Dispatcher.DispatchSuccess(ctx, order, false)
	case models.StatusFailed:
		err = s.Dispatcher.DispatchFailure(ctx, order)
	}
	if err != nil {
		return fmt.Errorf("redispatch failed: %w", err)
	}

	if _, err := s.Audit.RecordAudit(ctx, actor, "redispatch", "order", orderID, reason); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	s.Logger.Info("ADMIN", fmt.Sprintf("Actor %s redispatched order %s: %s", actor, orderID, reason))
	return nil
}

// GetAuditTrail lists the override history for one entity, newest first.
func (s *Service) GetAuditTrail(ctx context.Context, entity, entityID string) ([]models.AuditEntry, error) {
	if entity == "" || entityID == "" {
		return nil, fmt.Errorf("%w: entity and entity_id are required", ErrInvalidStatus)
	}
	entries, err := s.Audit.ListAuditByEntity(ctx, entity, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit trail: %w", err)
	}
	return entries, nil
}

// GetWorkshop returns one workshop with its seat counts.
func (s *Service) GetWorkshop(ctx context.Context, id string) (*models.Workshop, error) {
	workshop, err := s.Seats.GetWorkshop(ctx, id)
	if err != nil {
		return nil, ErrWorkshopNotFound
	}
	return workshop, nil
}

// GetFunnelStats returns the aggregate funnel view for the dashboard.
func (s *Service) GetFunnelStats(ctx context.Context) (*admindb.FunnelStats, error) {
	stats, err := s.Stats.GetFunnelStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load funnel stats: %w", err)
	}
	return stats, nil
}

// CreateWorkshop opens a new workshop instance for sale.
func (s *Service) CreateWorkshop(ctx context.Context, actor string, w models.Workshop) (*models.Workshop, error) {
	if w.Title == "" || w.Capacity <= 0 {
		return nil, fmt.Errorf("%w: title and a positive capacity are required", ErrInvalidStatus)
	}
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	w.Registered = 0
	w.CreatedAt = time.Now()

	if err := s.Seats.CreateWorkshop(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to create workshop: %w", err)
	}
	s.Logger.Info("ADMIN", fmt.Sprintf("Actor %s created workshop %s (%d seats)", actor, w.ID, w.Capacity))
	return &w, nil
}

// RecordModuleProgress is the write side of certificate eligibility, fed by
// the learning portal through the back office API.
func (s *Service) RecordModuleProgress(ctx context.Context, p models.ModuleProgress) error {
	if p.LeadID == "" || p.ModuleID == "" {
		return fmt.Errorf("%w: lead_id and module_id are required", ErrInvalidStatus)
	}
	if p.Completed && p.CompletedAt.IsZero() {
		p.CompletedAt = time.Now()
	}
	return s.Progress.RecordProgress(ctx, p)
}

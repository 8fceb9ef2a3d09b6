package reconcile

import (
	"context"
	"errors"
	"fmt"

	"ms-leadflow/internal/logger"
	"ms-leadflow/internal/models"
	orderdb "ms-leadflow/internal/order/db"
)

type OrderStore interface {
	ResolveRef(ctx context.Context, ref models.OrderRef) (*models.Order, error)
	TransitionFromPending(ctx context.Context, orderID string, status models.OrderStatus, gatewayPaymentID string) (bool, error)
}

type LeadStore interface {
	GetLeadByID(ctx context.Context, id string) (*models.Lead, error)
	MarkPaid(ctx context.Context, leadID string) error
}

type SeatStore interface {
	TryIncrementRegistered(ctx context.Context, workshopID string) (bool, error)
}

type Dispatcher interface {
	DispatchSuccess(ctx context.Context, order *models.Order, capacityExceeded bool) error
	DispatchFailure(ctx context.Context, order *models.Order) error
}

// Service is the reconciliation engine: it applies exactly one terminal
// transition to an order per real-world payment event, no matter how many
// times and over which path the event is observed. Both the webhook handler
// and the client polling handler call Reconcile; no business logic differs by
// entry path.
type Service struct {
	Orders     OrderStore
	Leads      LeadStore
	Seats      SeatStore
	Dispatcher Dispatcher
	Logger     *logger.Logger
}

func NewService(orders OrderStore, leads LeadStore, seats SeatStore, dispatcher Dispatcher, log *logger.Logger) *Service {
	return &Service{
		Orders:     orders,
		Leads:      leads,
		Seats:      seats,
		Dispatcher: dispatcher,
		Logger:     log,
	}
}

// Result is what a reconciliation call observed. Won is true only for the
// single call that performed the transition (and owns the side effects);
// duplicates and late arrivals see the settled order with Won=false.
type Result struct {
	Order            *models.Order
	Won              bool
	CapacityExceeded bool
}

// Reconcile applies an observed gateway status to local state.
//
// The idempotency gate is a single conditional update on the order row
// ("set status where status = pending"); its affected-row count decides which
// caller wins. Everything after the gate is individually idempotent, so a
// replay after a crash converges on the same state.
func (s *Service) Reconcile(ctx context.Context, ref models.OrderRef, observed models.OrderStatus, gatewayPaymentID string) (*Result, error) {
	order, err := s.Orders.ResolveRef(ctx, ref)
	if errors.Is(err, orderdb.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, transient("resolve order", err)
	}

	// A non-terminal observation carries no transition; report the current
	// state so the caller can tell the user "processing".
	if !observed.IsTerminal() {
		return &Result{Order: order}, nil
	}

	// Already settled: idempotent no-op. Re-assert the lead mirror so a
	// crash between the order commit and the lead update heals on retry.
	if order.Status.IsTerminal() {
		if order.Status == models.StatusSuccess {
			if err := s.Leads.MarkPaid(ctx, order.LeadID); err != nil {
				return nil, transient("mark lead paid", err)
			}
		}
		s.Logger.LogReconcile("NOOP", order.ID, fmt.Sprintf("Order already settled as %s", order.Status))
		return &Result{Order: order}, nil
	}

	won, err := s.Orders.TransitionFromPending(ctx, order.ID, observed, gatewayPaymentID)
	if err != nil {
		return nil, transient("transition order", err)
	}

	if !won {
		// Lost the race; report whatever the winner persisted.
		settled, err := s.Orders.ResolveRef(ctx, ref)
		if err != nil {
			return nil, transient("reload settled order", err)
		}
		s.Logger.LogReconcile("LOST", order.ID, fmt.Sprintf("Concurrent transition won; settled as %s", settled.Status))
		return &Result{Order: settled}, nil
	}

	order.Status = observed
	if gatewayPaymentID != "" {
		order.GatewayPaymentID = gatewayPaymentID
	}

	if observed == models.StatusFailed {
		// A failed payment never downgrades the lead; an earlier successful
		// order may already have promoted it.
		s.Logger.LogReconcile("FAILED", order.ID, "Order settled as failed, lead status unchanged")
		if err := s.Dispatcher.DispatchFailure(ctx, order); err != nil {
			s.Logger.Error("DISPATCH", fmt.Sprintf("Failure dispatch for order %s: %v", order.ID, err))
		}
		return &Result{Order: order, Won: true}, nil
	}

	// Success path: mirror onto the lead (monotonic), claim a seat for
	// workshop plans, then fan out side effects.
	if err := s.Leads.MarkPaid(ctx, order.LeadID); err != nil {
		// The order is committed; a retry lands in the no-op branch above
		// and re-asserts the lead there.
		return nil, transient("mark lead paid", err)
	}

	capacityExceeded := false
	if order.Plan == models.PlanWorkshop && order.WorkshopID != "" {
		claimed, err := s.Seats.TryIncrementRegistered(ctx, order.WorkshopID)
		if err != nil {
			// Operational alert, not a rollback: the payment stands and the
			// seat ledger is repaired by support.
			s.Logger.Error("SEATS", fmt.Sprintf("Seat increment for workshop %s (order %s): %v", order.WorkshopID, order.ID, err))
		} else if !claimed {
			capacityExceeded = true
			s.Logger.Warn("SEATS", fmt.Sprintf("Workshop %s sold out; order %s paid past capacity", order.WorkshopID, order.ID))
		}
	}

	s.Logger.LogReconcile("SUCCESS", order.ID, fmt.Sprintf("Order settled as success (payment %s)", gatewayPaymentID))
	if err := s.Dispatcher.DispatchSuccess(ctx, order, capacityExceeded); err != nil {
		// Side effects are individually idempotent; admin re-dispatch
		// replays them without double-applying.
		s.Logger.Error("DISPATCH", fmt.Sprintf("Success dispatch for order %s: %v", order.ID, err))
	}

	return &Result{Order: order, Won: true, CapacityExceeded: capacityExceeded}, nil
}

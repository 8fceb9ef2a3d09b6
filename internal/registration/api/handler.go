package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"ms-leadflow/internal/config"
	"ms-leadflow/internal/gateway"
	"ms-leadflow/internal/logger"
	"ms-leadflow/internal/metrics"
	"ms-leadflow/internal/models"
	notificationdb "ms-leadflow/internal/notification/db"
	orderdb "ms-leadflow/internal/order/db"
	"ms-leadflow/internal/reconcile"
	"ms-leadflow/internal/registration"
	workshopdb "ms-leadflow/internal/workshop/db"

	"github.com/go-chi/chi/v5"
)

const maxWebhookBody = 1 << 16

type WebhookParser interface {
	ParseWebhook(payload []byte, sigHeader string) (*models.WebhookEvent, error)
}

type OrderReader interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
}

type NotificationStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type SeatReader interface {
	SeatsRemaining(ctx context.Context, workshopID string) (int, error)
}

type Handler struct {
	Registration  *registration.Service
	Reconciler    registration.Reconciler
	Parser        WebhookParser
	Orders        OrderReader
	Notifications NotificationStore
	Seats         SeatReader
	Cfg           *config.Config
	Logger        *logger.Logger
}

func NewHandler(
	reg *registration.Service,
	reconciler registration.Reconciler,
	parser WebhookParser,
	orders OrderReader,
	notifications NotificationStore,
	seats SeatReader,
	cfg *config.Config,
	log *logger.Logger,
) *Handler {
	return &Handler{
		Registration:  reg,
		Reconciler:    reconciler,
		Parser:        parser,
		Orders:        orders,
		Notifications: notifications,
		Seats:         seats,
		Cfg:           cfg,
		Logger:        log,
	}
}

// Register handles POST /api/leads/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Register: failed to decode request: %v", err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.Registration.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, registration.ErrInvalidRequest):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, registration.ErrRegistrationBusy):
			http.Error(w, "Registration already in progress for this email", http.StatusConflict)
		case errors.Is(err, registration.ErrWorkshopNotFound):
			http.Error(w, "Workshop not found", http.StatusNotFound)
		case errors.Is(err, registration.ErrWorkshopSoldOut):
			http.Error(w, "Workshop is sold out", http.StatusConflict)
		case errors.Is(err, registration.ErrPlanAlreadyOwned):
			http.Error(w, "This plan is already active for your account", http.StatusConflict)
		case errors.Is(err, registration.ErrCheckoutFailed):
			h.Logger.Error("API", fmt.Sprintf("Register: checkout failed: %v", err))
			http.Error(w, "Could not start checkout, please try again", http.StatusBadGateway)
		default:
			h.Logger.Error("API", fmt.Sprintf("Register: %v", err))
			http.Error(w, "Registration failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Register: failed to encode response: %v", err))
	}
}

// VerifyPayment handles POST /api/payments/verify, the client pull path
// behind the success redirect. It never exposes internal errors: the client
// sees processing, confirmed or failed and nothing else.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("VerifyPayment: failed to decode request: %v", err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.Registration.VerifyPayment(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, registration.ErrInvalidRequest):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, registration.ErrOrderNotFound):
			http.Error(w, "Order not found", http.StatusNotFound)
		default:
			h.Logger.Error("API", fmt.Sprintf("VerifyPayment: %v", err))
			http.Error(w, "Verification failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.Logger.Error("API", fmt.Sprintf("VerifyPayment: failed to encode response: %v", err))
	}
}

// Webhook handles POST /api/webhooks/gateway, the push path. The gateway
// retries on any non-2xx answer, so the status code is the contract: 401 for
// a bad signature (no retry will fix it, but no state changed either), 500
// when a transient store error should trigger a redelivery, 200 once the
// event is settled or recognized as a duplicate.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Webhook: failed to read body: %v", err))
		http.Error(w, "Could not read request body", http.StatusBadRequest)
		return
	}

	event, err := h.Parser.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			metrics.RecordWebhookRejection()
			http.Error(w, "Invalid webhook signature", http.StatusUnauthorized)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Webhook: failed to parse event: %v", err))
		http.Error(w, "Invalid webhook payload", http.StatusBadRequest)
		return
	}
	if event == nil || event.Status == models.StatusPending {
		// Event type we ignore, or a completed session that has not actually
		// been paid yet. Acknowledge so the gateway stops redelivering.
		w.WriteHeader(http.StatusOK)
		return
	}

	ref := models.OrderRef{OrderID: event.OrderID, GatewayOrderID: event.GatewayOrderID}
	var result *reconcile.Result
	err = reconcile.Retry(r.Context(), h.Cfg.Verify.RetryAttempts, h.Cfg.Verify.RetryBase, func() error {
		var rErr error
		result, rErr = h.Reconciler.Reconcile(r.Context(), ref, event.Status, event.GatewayPaymentID)
		return rErr
	})
	if err != nil {
		if errors.Is(err, reconcile.ErrOrderNotFound) {
			// The checkout row may not be visible yet; a redelivery can
			// succeed once it is.
			h.Logger.Warn("API", fmt.Sprintf("Webhook: no order for gateway id %s", event.GatewayOrderID))
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Webhook: reconciliation failed: %v", err))
		http.Error(w, "Reconciliation failed", http.StatusInternalServerError)
		return
	}

	metrics.RecordReconciliation("webhook", string(event.Status), result.Won)
	w.WriteHeader(http.StatusOK)
}

// GetOrder handles GET /api/orders/{orderId}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	orderData, err := h.Orders.GetOrderByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, orderdb.ErrOrderNotFound) {
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetOrder: %v", err))
		http.Error(w, "Failed to load order", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(orderData); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrder: failed to encode response: %v", err))
	}
}

// ListNotifications handles GET /api/leads/{leadId}/notifications.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadId")
	notifications, err := h.Notifications.ListByUser(r.Context(), leadID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListNotifications: %v", err))
		http.Error(w, "Failed to load notifications", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(notifications); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListNotifications: failed to encode response: %v", err))
	}
}

// MarkNotificationRead handles POST /api/leads/{leadId}/notifications/{notificationId}/read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadId")
	notificationID := chi.URLParam(r, "notificationId")

	if err := h.Notifications.MarkRead(r.Context(), notificationID, leadID); err != nil {
		if errors.Is(err, notificationdb.ErrNotificationNotFound) {
			http.Error(w, "Notification not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("MarkNotificationRead: %v", err))
		http.Error(w, "Failed to mark notification read", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SeatsRemaining handles GET /api/workshops/{workshopId}/seats.
func (h *Handler) SeatsRemaining(w http.ResponseWriter, r *http.Request) {
	workshopID := chi.URLParam(r, "workshopId")
	remaining, err := h.Seats.SeatsRemaining(r.Context(), workshopID)
	if err != nil {
		if errors.Is(err, workshopdb.ErrWorkshopNotFound) {
			http.Error(w, "Workshop not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("SeatsRemaining: %v", err))
		http.Error(w, "Failed to load workshop", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := struct {
		WorkshopID     string `json:"workshop_id"`
		SeatsRemaining int    `json:"seats_remaining"`
	}{WorkshopID: workshopID, SeatsRemaining: remaining}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.Logger.Error("API", fmt.Sprintf("SeatsRemaining: failed to encode response: %v", err))
	}
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": "lead-service"})
}

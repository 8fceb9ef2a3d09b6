package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ms-leadflow/internal/config"
	"ms-leadflow/internal/logger"
	"ms-leadflow/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeGateway drives payment collection through Stripe Checkout Sessions.
// The session id is the gateway order id; the payment intent id is the
// gateway payment id.
type StripeGateway struct {
	client *client.API
	cfg    config.GatewayConfig
	log    *logger.Logger
}

func NewStripeGateway(cfg config.GatewayConfig, log *logger.Logger) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		log.Error("GATEWAY", "STRIPE_SECRET_KEY environment variable not set")
		return nil, ErrClientInitFailed
	}

	sc := client.New(cfg.SecretKey, nil)
	log.Info("GATEWAY", "Stripe client initialized successfully")
	return &StripeGateway{client: sc, cfg: cfg, log: log}, nil
}

// CreateCheckout creates a checkout session for a pending order and returns
// the gateway correlation id plus the redirect URL for the user.
func (g *StripeGateway) CreateCheckout(ctx context.Context, lead *models.Lead, order *models.Order) (*models.CheckoutResult, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(g.cfg.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(g.cfg.CancelURL),
		CustomerEmail: stripe.String(lead.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(order.Currency),
					UnitAmount: stripe.Int64(order.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("LeadFlow %s plan", order.Plan)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", order.ID)
	params.AddMetadata("lead_id", lead.ID)

	sess, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		g.log.Error("GATEWAY", fmt.Sprintf("Failed to create checkout session for order %s: %v", order.ID, err))
		return nil, g.classify(err)
	}

	g.log.LogGateway("CHECKOUT", sess.ID, fmt.Sprintf("Checkout session created for order %s", order.ID))
	return &models.CheckoutResult{
		GatewayOrderID: sess.ID,
		RedirectURL:    sess.URL,
	}, nil
}

// QueryStatus fetches the gateway's current view of a checkout session and
// normalizes it to the local status vocabulary. The caller bounds ctx; a
// timeout surfaces as ErrGatewayUnavailable.
func (g *StripeGateway) QueryStatus(ctx context.Context, gatewayOrderID string) (*models.StatusResult, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	sess, err := g.client.CheckoutSessions.Get(gatewayOrderID, params)
	if err != nil {
		g.log.Error("GATEWAY", fmt.Sprintf("Failed to query session %s: %v", gatewayOrderID, err))
		return nil, g.classify(err)
	}

	result := &models.StatusResult{Status: normalizeSession(sess)}
	if result.Status == models.StatusSuccess && sess.PaymentIntent != nil {
		result.GatewayPaymentID = sess.PaymentIntent.ID
	}

	g.log.LogGateway("QUERY", gatewayOrderID, fmt.Sprintf("Gateway reports %s", result.Status))
	return result, nil
}

// ParseWebhook verifies the signature and normalizes the event. Events this
// service does not care about return (nil, nil).
func (g *StripeGateway) ParseWebhook(payload []byte, sigHeader string) (*models.WebhookEvent, error) {
	if g.cfg.WebhookSecret == "" {
		g.log.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return nil, ErrClientInitFailed
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, g.cfg.WebhookSecret, opts)
	if err != nil {
		g.log.LogSecurity("WEBHOOK_SIGNATURE", fmt.Sprintf("Webhook signature verification failed: %v", err))
		return nil, ErrInvalidSignature
	}

	var status models.OrderStatus
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		status = models.StatusSuccess
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		status = models.StatusFailed
	default:
		g.log.Info("WEBHOOK", fmt.Sprintf("Ignoring event type: %s", event.Type))
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	// "completed" fires for delayed payment methods too; trust the session's
	// own payment status over the event name.
	if status == models.StatusSuccess && normalizeSession(&sess) == models.StatusPending {
		status = models.StatusPending
	}

	we := &models.WebhookEvent{
		GatewayOrderID: sess.ID,
		OrderID:        sess.Metadata["order_id"],
		Status:         status,
	}
	if sess.PaymentIntent != nil {
		we.GatewayPaymentID = sess.PaymentIntent.ID
	}
	return we, nil
}

func normalizeSession(sess *stripe.CheckoutSession) models.OrderStatus {
	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return models.StatusSuccess
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		return models.StatusFailed
	default:
		return models.StatusPending
	}
}

// classify folds transport-level failures into ErrGatewayUnavailable while
// keeping genuine API rejections (4xx) distinct.
func (g *StripeGateway) classify(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		return err
	}
	// Network error, context timeout, connection refused.
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}

package models

// CheckoutResult is what the gateway adapter returns when a checkout is
// created: the gateway's correlation id and the URL the user is redirected to.
type CheckoutResult struct {
	GatewayOrderID string `json:"gateway_order_id"`
	RedirectURL    string `json:"redirect_url"`
}

// StatusResult is the gateway's view of a payment, normalized to the local
// order status vocabulary. GatewayPaymentID is set only when Status is
// success.
type StatusResult struct {
	Status           OrderStatus `json:"status"`
	GatewayPaymentID string      `json:"gateway_payment_id,omitempty"`
}

// WebhookEvent is a signature-verified, normalized inbound gateway event.
type WebhookEvent struct {
	GatewayOrderID   string      `json:"gateway_order_id"`
	OrderID          string      `json:"order_id,omitempty"`
	Status           OrderStatus `json:"status"`
	GatewayPaymentID string      `json:"gateway_payment_id,omitempty"`
}

type VerifyRequest struct {
	OrderID        string `json:"order_id,omitempty"`
	GatewayOrderID string `json:"gateway_order_id,omitempty"`
}

// VerifyResponse is the only shape end users see from the pull path:
// "processing", "confirmed" or "failed". Processing answers carry the poll
// policy so the funnel UI knows when to retry and when to give up.
type VerifyResponse struct {
	OrderID         string `json:"order_id,omitempty"`
	State           string `json:"state"`
	PollAfterMs     int64  `json:"poll_after_ms,omitempty"`
	MaxPollAttempts int    `json:"max_poll_attempts,omitempty"`
}

const (
	VerifyStateProcessing = "processing"
	VerifyStateConfirmed  = "confirmed"
	VerifyStateFailed     = "failed"
)

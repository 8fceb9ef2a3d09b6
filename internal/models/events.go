package models

import "time"

// PaymentEvent is the Kafka payload published by the side-effect dispatcher
// after a won reconciliation.
type PaymentEvent struct {
	Type             string    `json:"type"`
	OrderID          string    `json:"order_id"`
	LeadID           string    `json:"lead_id"`
	Plan             Plan      `json:"plan"`
	AmountCents      int64     `json:"amount_cents"`
	Currency         string    `json:"currency"`
	GatewayPaymentID string    `json:"gateway_payment_id,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// LeadEvent is published when a lead registers (order created, redirect
// issued).
type LeadEvent struct {
	Type      string     `json:"type"`
	LeadID    string     `json:"lead_id"`
	Email     string     `json:"email"`
	Source    LeadSource `json:"source"`
	OrderID   string     `json:"order_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// SeatsExceededEvent flags a success transition that landed after the
// workshop sold out. The payment stands; support follows up out of band.
type SeatsExceededEvent struct {
	WorkshopID string    `json:"workshop_id"`
	OrderID    string    `json:"order_id"`
	LeadID     string    `json:"lead_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// CertificateEvent signals that a lead became certificate-eligible. PDF
// generation happens downstream.
type CertificateEvent struct {
	LeadID    string    `json:"lead_id"`
	Plan      Plan      `json:"plan"`
	OrderID   string    `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`
}

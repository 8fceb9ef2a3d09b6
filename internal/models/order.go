package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	StatusPending OrderStatus = "pending"
	StatusSuccess OrderStatus = "success"
	StatusFailed  OrderStatus = "failed"
)

// IsTerminal reports whether an order status will never change again.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

type Plan string

const (
	PlanStarter  Plan = "starter"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
	PlanWorkshop Plan = "workshop"
)

// Order tracks one payment attempt for a Lead. Orders transition exactly once
// out of pending and are never deleted (financial audit trail).
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID               string      `bun:"id,pk" json:"id"`
	LeadID           string      `bun:"lead_id,notnull" json:"lead_id"`
	Plan             Plan        `bun:"plan,notnull" json:"plan"`
	WorkshopID       string      `bun:"workshop_id,nullzero" json:"workshop_id,omitempty"`
	AmountCents      int64       `bun:"amount_cents,notnull" json:"amount_cents"`
	Currency         string      `bun:"currency,notnull" json:"currency"`
	Status           OrderStatus `bun:"status,notnull" json:"status"`
	GatewayOrderID   string      `bun:"gateway_order_id,nullzero,unique" json:"gateway_order_id,omitempty"`
	GatewayPaymentID string      `bun:"gateway_payment_id,nullzero" json:"gateway_payment_id,omitempty"`
	CreatedAt        time.Time   `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time   `bun:"updated_at,notnull" json:"updated_at"`
}

// OrderRef identifies an Order either by local id or by the gateway's order
// id. Both must resolve to the same row.
type OrderRef struct {
	OrderID        string `json:"order_id,omitempty"`
	GatewayOrderID string `json:"gateway_order_id,omitempty"`
}

func (r OrderRef) IsZero() bool {
	return r.OrderID == "" && r.GatewayOrderID == ""
}

type RegistrationRequest struct {
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Company    string     `json:"company,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	Source     LeadSource `json:"source"`
	Plan       Plan       `json:"plan"`
	WorkshopID string     `json:"workshop_id,omitempty"`
}

type RegistrationResponse struct {
	LeadID      string `json:"lead_id"`
	OrderID     string `json:"order_id"`
	RedirectURL string `json:"redirect_url"`
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Notification is created only by the side-effect dispatcher (or an admin
// re-dispatch); the recipient may only flip IsRead. OrderID plus Type is the
// dispatcher's idempotency key: one notification per type per triggering
// order.
type Notification struct {
	bun.BaseModel `bun:"table:notifications"`

	ID        string           `bun:"id,pk" json:"id"`
	UserID    string           `bun:"user_id,notnull" json:"user_id"`
	OrderID   string           `bun:"order_id,nullzero" json:"order_id,omitempty"`
	Type      NotificationType `bun:"type,notnull" json:"type"`
	Title     string           `bun:"title,notnull" json:"title"`
	Message   string           `bun:"message,notnull" json:"message"`
	Payload   string           `bun:"payload,nullzero" json:"payload,omitempty"`
	IsRead    bool             `bun:"is_read,notnull,default:false" json:"is_read"`
	CreatedAt time.Time        `bun:"created_at,notnull" json:"created_at"`
}

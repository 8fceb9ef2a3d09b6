package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Workshop carries the seat counter for one workshop instance. Registered is
// mutated only through a single conditional increment so that
// registered <= capacity holds under concurrent successful payments.
type Workshop struct {
	bun.BaseModel `bun:"table:workshops"`

	ID         string    `bun:"id,pk" json:"id"`
	Title      string    `bun:"title,notnull" json:"title"`
	StartsAt   time.Time `bun:"starts_at,notnull" json:"starts_at"`
	Capacity   int       `bun:"capacity,notnull" json:"capacity"`
	Registered int       `bun:"registered,notnull,default:0" json:"registered"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}

func (w *Workshop) SeatsRemaining() int {
	remaining := w.Capacity - w.Registered
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ModuleProgress records completion of one course module by a lead. The
// learning portal owns the writes; the dispatcher only reads it to decide
// certificate eligibility.
type ModuleProgress struct {
	bun.BaseModel `bun:"table:module_progress"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	LeadID      string    `bun:"lead_id,notnull" json:"lead_id"`
	Plan        Plan      `bun:"plan,notnull" json:"plan"`
	ModuleID    string    `bun:"module_id,notnull" json:"module_id"`
	Completed   bool      `bun:"completed,notnull,default:false" json:"completed"`
	CompletedAt time.Time `bun:"completed_at,nullzero" json:"completed_at,omitempty"`
}

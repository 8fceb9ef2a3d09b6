package models

import (
	"time"

	"github.com/uptrace/bun"
)

type LeadStatus string

const (
	LeadStatusNew        LeadStatus = "new"
	LeadStatusRegistered LeadStatus = "registered"
	LeadStatusPaid       LeadStatus = "paid"
)

// LeadStatusRank orders lifecycle states. Status only ever moves to a higher
// rank; the stores enforce this with rank-guarded conditional updates.
func LeadStatusRank(s LeadStatus) int {
	switch s {
	case LeadStatusNew:
		return 0
	case LeadStatusRegistered:
		return 1
	case LeadStatusPaid:
		return 2
	default:
		return -1
	}
}

type LeadSource string

const (
	SourceLanding  LeadSource = "landing"
	SourceAudit    LeadSource = "audit"
	SourceWorkshop LeadSource = "workshop"
)

// Lead is a prospective customer. Email is the natural key: at most one Lead
// exists per email, and lookups for idempotent creation go through it.
type Lead struct {
	bun.BaseModel `bun:"table:leads"`

	ID        string     `bun:"id,pk" json:"id"`
	Email     string     `bun:"email,unique,notnull" json:"email"`
	Name      string     `bun:"name" json:"name"`
	Company   string     `bun:"company,nullzero" json:"company,omitempty"`
	Phone     string     `bun:"phone,nullzero" json:"phone,omitempty"`
	Source    LeadSource `bun:"source,notnull" json:"source"`
	Status    LeadStatus `bun:"status,notnull" json:"status"`
	CreatedAt time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AuditEntry records an admin override: who did what to which entity, and
// why. Overrides bypass the normal transition guards, so the trail is the
// only record of them.
type AuditEntry struct {
	bun.BaseModel `bun:"table:audit_log"`

	ID        string    `bun:"id,pk" json:"id"`
	Actor     string    `bun:"actor,notnull" json:"actor"`
	Action    string    `bun:"action,notnull" json:"action"`
	Entity    string    `bun:"entity,notnull" json:"entity"`
	EntityID  string    `bun:"entity_id,notnull" json:"entity_id"`
	Reason    string    `bun:"reason,notnull" json:"reason"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

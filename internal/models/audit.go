package models

import (
	"time"

	"github.com/google/uuid"
)

// Actor types for audit entries
const (
	ActorTypeMember   = "member"
	ActorTypeOperator = "operator"
	ActorTypeSystem   = "system"
)

// AuditEntry is an append-only record of a state-changing action.
// System actions carry no actor id.
type AuditEntry struct {
	ID           uuid.UUID  `json:"id"`
	ActorID      *uuid.UUID `json:"actor_id,omitempty"`
	ActorType    string     `json:"actor_type"`
	Action       string     `json:"action"`
	ResourceType string     `json:"resource_type"`
	ResourceID   *uuid.UUID `json:"resource_id,omitempty"`
	Meta         any        `json:"meta,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

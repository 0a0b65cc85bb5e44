package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/role"
)

// EventKind names an identity lifecycle transition.
type EventKind string

const (
	EventCreated     EventKind = "created"
	EventUpdated     EventKind = "updated"
	EventRoleChanged EventKind = "role_changed"
	EventDeleted     EventKind = "deleted"
)

// Valid reports whether k is a known kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventCreated, EventUpdated, EventRoleChanged, EventDeleted:
		return true
	}
	return false
}

// IdentityEvent is the replication message published to the users
// exchange. It carries the subject's state after the mutation so that a
// replica converges regardless of which earlier events it saw.
type IdentityEvent struct {
	EventID      string     `json:"event_id"`
	Kind         EventKind  `json:"kind"`
	ID           string     `json:"id"`
	Version      int64      `json:"version"`
	Sequence     int64      `json:"sequence,omitempty"`
	ActorID      string     `json:"actor_id,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	Role         role.Role  `json:"role"`
	PasswordHash string     `json:"password_hash"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// NewIdentityEvent snapshots u into an event of the given kind.
func NewIdentityEvent(eventID string, kind EventKind, u *User, actorID string, at time.Time) *IdentityEvent {
	return &IdentityEvent{
		EventID:      eventID,
		Kind:         kind,
		ID:           u.ID,
		Version:      u.Version,
		ActorID:      actorID,
		OccurredAt:   at,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		Role:         u.Role,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		DeletedAt:    u.DeletedAt,
	}
}

// User rebuilds the identity state carried by the event.
func (e *IdentityEvent) User() *User {
	return &User{
		ID:           e.ID,
		Email:        e.Email,
		PasswordHash: e.PasswordHash,
		DisplayName:  e.DisplayName,
		Role:         e.Role,
		Version:      e.Version,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
		DeletedAt:    e.DeletedAt,
	}
}

// WithSequence returns payload with Sequence set to seq. The payload must
// be an encoded IdentityEvent.
func WithSequence(payload []byte, seq int64) ([]byte, error) {
	var ev IdentityEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode identity event: %w", err)
	}
	ev.Sequence = seq
	return json.Marshal(&ev)
}

// OutboxEvent is a pending or published row of the users service outbox.
type OutboxEvent struct {
	Seq           int64
	EventID       string
	SubjectID     string
	Kind          EventKind
	Payload       []byte
	CreatedAt     time.Time
	AttemptCount  int
	NextAttemptAt time.Time
	LastError     string
	PublishedAt   *time.Time
}

package engine

import (
	"fmt"

	"github.com/anonto42/loopline/backend/internal/models"
)

// ActorRef identifies the user whose action triggered an event.
type ActorRef struct {
	ID          uint   `json:"id"`
	DisplayName string `json:"display_name"`
}

// TargetRef is the weak (type, id) reference to the subject entity.
type TargetRef struct {
	Type models.TargetType `json:"type"`
	ID   string            `json:"id"`
}

// Event is a typed business event submitted to the engine. Pure data.
type Event struct {
	RecipientID uint              `json:"recipient_id"`
	Kind        models.Kind       `json:"kind"`
	Actor       *ActorRef         `json:"actor,omitempty"` // nil only for system events
	Target      *TargetRef        `json:"target,omitempty"`
	Payload     map[string]string `json:"payload,omitempty"`
}

// ValidationError is a data-integrity failure rejected at intake. It is
// the only engine error surfaced synchronously to business callers.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s %s", e.Field, e.Reason)
}

// Validate rejects malformed events before anything is persisted.
func (e Event) Validate() error {
	if e.RecipientID == 0 {
		return &ValidationError{Field: "recipient_id", Reason: "is required"}
	}
	if !e.Kind.Valid() {
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("%q is unknown", e.Kind)}
	}
	if e.Kind != models.KindSystem {
		if e.Actor == nil || e.Actor.ID == 0 {
			return &ValidationError{Field: "actor", Reason: "is required for non-system events"}
		}
	}
	if e.Target != nil {
		if !e.Target.Type.Valid() {
			return &ValidationError{Field: "target.type", Reason: fmt.Sprintf("%q is unknown", e.Target.Type)}
		}
		if e.Target.ID == "" {
			return &ValidationError{Field: "target.id", Reason: "is required when a target is set"}
		}
	}
	return nil
}

// Package eventstream defines the transport-neutral events emitted when the
// fact memory changes, and the Publisher interface that ships them.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/aurion/pkg/facts"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeFactUpserted is emitted after a fact is created or refreshed.
	EventTypeFactUpserted = "aurion.fact.upserted"

	// EventTypeFactForgotten is emitted after a fact is explicitly forgotten.
	EventTypeFactForgotten = "aurion.fact.forgotten"

	// EventTypeFactExpired is emitted after a TTL sweep removes a fact.
	EventTypeFactExpired = "aurion.fact.expired"
)

// FactEvent is a transport-neutral event payload for a fact change.
type FactEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Created       bool        `json:"created,omitempty"`
	Fact          FactPayload `json:"fact"`
}

// FactPayload is the fact as carried on the wire. Vectors are never emitted.
type FactPayload struct {
	ID           string    `json:"id"`
	QuestionNorm string    `json:"question_norm"`
	Answer       string    `json:"answer,omitempty"`
	Source       string    `json:"source"`
	TTLDays      *int      `json:"ttl_days,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewFactEvent builds the event for a committed store change. Answers are
// only carried on upserts.
func NewFactEvent(change facts.Change) *FactEvent {
	event := &FactEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType(change.Kind),
		EventID:       uuid.NewString(),
		EmittedAt:     change.At.UTC(),
		Created:       change.Created,
		Fact: FactPayload{
			ID:           change.Fact.ID,
			QuestionNorm: change.Fact.QuestionNorm,
			Source:       change.Fact.Source,
			TTLDays:      change.Fact.TTLDays,
			CreatedAt:    change.Fact.CreatedAt,
			UpdatedAt:    change.Fact.UpdatedAt,
		},
	}

	if change.Kind == facts.ChangeUpserted {
		event.Fact.Answer = change.Fact.Answer
	}

	return event
}

func eventType(kind facts.ChangeKind) string {
	switch kind {
	case facts.ChangeForgotten:
		return EventTypeFactForgotten
	case facts.ChangeExpired:
		return EventTypeFactExpired
	default:
		return EventTypeFactUpserted
	}
}

package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names a domain event. It doubles as the AMQP routing key.
type Type string

const (
	AccessRequestCreated  Type = "access_request.created"
	AccessRequestResolved Type = "access_request.resolved"
	RecordCreated         Type = "record.created"
	RecordUpdated         Type = "record.updated"
	RecordDeleted         Type = "record.deleted"
)

// Event is the envelope published for every committed state change.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Type       Type              `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	ActorID    uuid.UUID         `json:"actor_id"`
	SubjectID  uuid.UUID         `json:"subject_id"`
	PatientID  uuid.UUID         `json:"patient_id"`
	DoctorID   *uuid.UUID        `json:"doctor_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// New fills in the id and timestamp.
func New(t Type, actor, subject, patient uuid.UUID) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
		ActorID:    actor,
		SubjectID:  subject,
		PatientID:  patient,
	}
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

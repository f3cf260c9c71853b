package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeUserSignedUp   Type = "user.signed_up"
	TypeProductCreated Type = "product.created"
	TypeProductUpdated Type = "product.updated"
	TypeProductDeleted Type = "product.deleted"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Subject   string `json:"subject"` // id of the user or product the event is about
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actorId,omitempty"`
}

func New(typ Type, subject string, payload any, actorID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Subject:   subject,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ActorID:   actorID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}

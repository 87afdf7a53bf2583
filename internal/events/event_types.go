package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketDeleted       EventType = "ticket_deleted"
	EventTicketStatusChanged EventType = "ticket_status_changed"
)

// TicketEventTypes lists every ticket lifecycle event.
var TicketEventTypes = []EventType{
	EventTicketCreated,
	EventTicketUpdated,
	EventTicketDeleted,
	EventTicketStatusChanged,
}

// Actor identifies who triggered an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	OwnerID string `json:"owner_id"`
	Subject string `json:"subject"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// ActorFromIdentity builds the event actor for a caller.
func ActorFromIdentity(identity domain.Identity) Actor {
	return Actor{UserID: identity.ID, Role: identity.Role}
}

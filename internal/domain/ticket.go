package domain

import "time"

// TicketStatus is stored as a binary flag.
type TicketStatus int

const (
	TicketStatusClosed TicketStatus = 0
	TicketStatusOpen   TicketStatus = 1
)

// Valid reports whether the status is one of the two defined values.
func (s TicketStatus) Valid() bool {
	return s == TicketStatusOpen || s == TicketStatusClosed
}

// Toggled returns the opposite status.
func (s TicketStatus) Toggled() TicketStatus {
	if s == TicketStatusOpen {
		return TicketStatusClosed
	}
	return TicketStatusOpen
}

func (s TicketStatus) String() string {
	switch s {
	case TicketStatusOpen:
		return "open"
	case TicketStatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TicketFields holds the descriptive, owner-editable part of a ticket.
type TicketFields struct {
	Name          string
	Email         string
	Phone         string
	Location      string
	AvailableTime string
	Subject       string
	Description   string
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID      string
	OwnerID string
	Status  TicketStatus
	TicketFields
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnedBy reports whether the identity created the ticket.
func (t *Ticket) OwnedBy(userID string) bool {
	return t != nil && t.OwnerID == userID
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	msgTicketNotFound     = "Ticket not found."
	msgTicketNotFoundAuth = "Ticket not found or unauthorized."
	msgAdminStatusOnly    = "Only admins can update ticket status."
)

// TicketService coordinates ticket workflows and enforces ownership and role rules.
type TicketService struct {
	tickets           repository.TicketRepository
	dispatcher        events.Dispatcher
	logger            *zap.Logger
	metrics           *observability.Metrics
	deleteOwnerScoped bool
	now               func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	// DeleteOwnerScoped restricts non-admin deletes to the caller's own tickets.
	DeleteOwnerScoped bool
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:           deps.TicketRepo,
		dispatcher:        deps.Dispatcher,
		logger:            logger,
		metrics:           deps.Metrics,
		deleteOwnerScoped: deps.DeleteOwnerScoped,
		now:               time.Now,
	}
}

// CreateTicket stores a new open ticket owned by the caller.
func (s *TicketService) CreateTicket(ctx context.Context, identity domain.Identity, fields domain.TicketFields) (ticket *domain.Ticket, err error) {
	defer func() { s.metrics.RecordTicketOperation("create", err) }()

	if err := requireIdentity(identity); err != nil {
		return nil, err
	}

	ticket = &domain.Ticket{
		ID:           uuid.NewString(),
		OwnerID:      identity.ID,
		Status:       domain.TicketStatusOpen,
		TicketFields: fields,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.ActorFromIdentity(identity),
		Payload: events.TicketCreatedPayload{
			OwnerID: ticket.OwnerID,
			Subject: ticket.Subject,
		},
	})
	return ticket, nil
}

// ListTickets returns every ticket for admins and only the caller's tickets otherwise.
func (s *TicketService) ListTickets(ctx context.Context, identity domain.Identity) ([]domain.Ticket, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}

	var (
		tickets []domain.Ticket
		err     error
	)
	switch identity.Role {
	case domain.RoleAdmin:
		tickets, err = s.tickets.List(ctx)
	case domain.RoleUser:
		tickets, err = s.tickets.ListByOwner(ctx, identity.ID)
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// GetTicket returns a ticket only to its owner. Admins get no bypass on this path.
func (s *TicketService) GetTicket(ctx context.Context, identity domain.Identity, ticketID string) (*domain.Ticket, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	ticket, err := s.loadTicket(ctx, ticketID, msgTicketNotFound)
	if err != nil {
		return nil, err
	}
	if !ticket.OwnedBy(identity.ID) {
		return nil, apperrors.NewNotFound(msgTicketNotFound)
	}
	return ticket, nil
}

// UpdateTicket replaces the descriptive fields of a ticket owned by the caller.
func (s *TicketService) UpdateTicket(ctx context.Context, identity domain.Identity, ticketID string, fields domain.TicketFields) (ticket *domain.Ticket, err error) {
	defer func() { s.metrics.RecordTicketOperation("update", err) }()

	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	ticket, err = s.loadTicket(ctx, ticketID, msgTicketNotFoundAuth)
	if err != nil {
		return nil, err
	}
	if !ticket.OwnedBy(identity.ID) {
		return nil, apperrors.NewNotFound(msgTicketNotFoundAuth)
	}

	ticket.TicketFields = fields
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, s.storeError(err, msgTicketNotFoundAuth)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticket.ID,
		Actor:    events.ActorFromIdentity(identity),
	})
	return ticket, nil
}

// DeleteTicket hard-deletes a ticket by id. Ownership is only checked when the service was
// built with DeleteOwnerScoped.
func (s *TicketService) DeleteTicket(ctx context.Context, identity domain.Identity, ticketID string) (err error) {
	defer func() { s.metrics.RecordTicketOperation("delete", err) }()

	if err := requireIdentity(identity); err != nil {
		return err
	}
	if !validTicketID(ticketID) {
		return apperrors.NewNotFound(msgTicketNotFoundAuth)
	}
	if s.deleteOwnerScoped && !identity.IsAdmin() {
		ticket, err := s.loadTicket(ctx, ticketID, msgTicketNotFoundAuth)
		if err != nil {
			return err
		}
		if !ticket.OwnedBy(identity.ID) {
			return apperrors.NewNotFound(msgTicketNotFoundAuth)
		}
	}

	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return s.storeError(err, msgTicketNotFoundAuth)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticketID,
		Actor:    events.ActorFromIdentity(identity),
	})
	return nil
}

// ToggleStatus flips a ticket between open and closed. Admin only.
func (s *TicketService) ToggleStatus(ctx context.Context, identity domain.Identity, ticketID string) (ticket *domain.Ticket, err error) {
	defer func() { s.metrics.RecordTicketOperation("toggle_status", err) }()

	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	if !identity.IsAdmin() {
		return nil, apperrors.NewForbidden(msgAdminStatusOnly)
	}

	ticket, err = s.loadTicket(ctx, ticketID, msgTicketNotFound)
	if err != nil {
		return nil, err
	}
	oldStatus := ticket.Status
	ticket.Status = oldStatus.Toggled()
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, s.storeError(err, msgTicketNotFound)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.ActorFromIdentity(identity),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
		},
	})
	return ticket, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID, notFoundMsg string) (*domain.Ticket, error) {
	if !validTicketID(ticketID) {
		return nil, apperrors.NewNotFound(notFoundMsg)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.storeError(err, notFoundMsg)
	}
	return ticket, nil
}

func (s *TicketService) storeError(err error, notFoundMsg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(notFoundMsg)
	}
	return apperrors.NewPersistenceError(err)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

// validTicketID rejects ids that cannot exist so malformed input reads as not found.
func validTicketID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func requireIdentity(identity domain.Identity) error {
	if identity.ID == "" {
		return apperrors.NewUnauthorized("authentication required")
	}
	switch identity.Role {
	case domain.RoleAdmin, domain.RoleUser:
		return nil
	default:
		return apperrors.NewUnauthorized("authentication required")
	}
}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
)

// EventPublisher forwards events to an external broker.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// NotificationService logs ticket events and forwards them to the broker when one is configured.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  EventPublisher
	topic      string
	timeout    time.Duration
	logger     *zap.Logger
}

const defaultPublishTimeout = 2 * time.Second

// NewNotificationService creates the service. publisher may be nil. timeout bounds each publish
// independently of the request that raised the event.
func NewNotificationService(dispatcher events.Dispatcher, publisher EventPublisher, topic string, timeout time.Duration, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		topic:      topic,
		timeout:    timeout,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to ticket events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketUpdated, n.handleTicketChanged)
	n.dispatcher.Subscribe(events.EventTicketDeleted, n.handleTicketChanged)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated",
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.Actor.UserID),
		zap.Any("payload", event.Payload))
	return n.forward(ctx, event)
}

func (n *NotificationService) handleTicketChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketChanged",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.Actor.UserID))
	return n.forward(ctx, event)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged",
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.Actor.UserID),
		zap.Any("payload", event.Payload))
	return n.forward(ctx, event)
}

func (n *NotificationService) forward(ctx context.Context, event events.Event) error {
	if n.publisher == nil {
		return nil
	}
	// the write is already committed; a slow broker must not eat the request's deadline
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	if err := n.publisher.Publish(ctx, n.topic, event.TicketID, event); err != nil {
		n.logger.Warn("ticket event not forwarded",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
		return err
	}
	return nil
}

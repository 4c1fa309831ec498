package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-portal/internal/config"
	"github.com/spec-kit/repair-portal/internal/events"
	"github.com/spec-kit/repair-portal/internal/notify"
	"github.com/spec-kit/repair-portal/internal/observability"
	"github.com/spec-kit/repair-portal/internal/repository"
)

// NotificationService tells customers about status changes. Delivery runs in
// the background and its failures are only logged.
type NotificationService struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	sender     notify.Sender
	timeout    time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics
	inflight   sync.WaitGroup
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	UserRepo   repository.UserRepository
	Sender     notify.Sender
	Config     config.NotificationConfig
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sender := deps.Sender
	if sender == nil {
		sender = notify.NewLogSender(deps.Config.EmailFrom, logger)
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		users:      deps.UserRepo,
		sender:     sender,
		timeout:    deps.Config.Timeout(),
		logger:     logger,
		metrics:    deps.Metrics,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
}

func (n *NotificationService) handleTicketStatusChanged(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if payload.OldStatus == payload.NewStatus {
		return nil
	}

	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		// Detached from the request so a finished response does not cancel delivery.
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.deliver(ctx, event.TicketID, payload); err != nil {
			n.metrics.NotificationFailed()
			n.logger.Warn("status notification failed",
				zap.String("ticket_id", event.TicketID),
				zap.String("display_id", payload.DisplayID),
				zap.String("new_status", string(payload.NewStatus)),
				zap.Error(err))
		}
	}()
	return nil
}

func (n *NotificationService) deliver(ctx context.Context, ticketID string, payload events.TicketStatusChangedPayload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notification panicked: %v", r)
		}
	}()
	customer, err := n.users.GetByID(ctx, payload.CustomerID)
	if err != nil {
		return fmt.Errorf("load customer %s: %w", payload.CustomerID, err)
	}
	return n.sender.Send(ctx, notify.Message{
		RecipientEmail:  customer.Email,
		RecipientName:   customer.Name,
		TicketDisplayID: payload.DisplayID,
		ProductModel:    payload.ProductModel,
		NewStatus:       string(payload.NewStatus),
	})
}

// Drain waits for in-flight deliveries or until ctx is done.
func (n *NotificationService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

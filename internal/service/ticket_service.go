package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-portal/internal/config"
	"github.com/spec-kit/repair-portal/internal/domain"
	"github.com/spec-kit/repair-portal/internal/events"
	"github.com/spec-kit/repair-portal/internal/lock"
	"github.com/spec-kit/repair-portal/internal/observability"
	"github.com/spec-kit/repair-portal/internal/repository"
	apperrors "github.com/spec-kit/repair-portal/pkg/util"
)

const (
	maxMutationAttempts = 3
	defaultLockWait     = 5 * time.Second
	assignmentLockKey   = "assignment"
)

// TicketService runs the ticket lifecycle: creation, status changes,
// assignment, comments, escalation and feedback.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	planner    *AssignmentPlanner
	locker     lock.Locker
	dispatcher events.Dispatcher
	policy     config.PolicyConfig
	lockWait   time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Locker     lock.Locker
	Dispatcher events.Dispatcher
	Policy     config.PolicyConfig
	// LockWait bounds how long a mutation waits for its ticket lock.
	LockWait time.Duration
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Clock    func() time.Time
}

// TicketCreateInput describes a service request.
type TicketCreateInput struct {
	// CustomerID is required when back-office staff file on a customer's behalf.
	CustomerID       string
	ServiceType      domain.ServiceType
	SerialNumber     string
	Model            string
	DeviceType       string
	PurchaseDate     time.Time
	IssueDescription string
}

// TicketListFilter narrows ticket listings.
type TicketListFilter struct {
	Statuses []domain.TicketStatus
	Limit    int
	Offset   int
}

// FeedbackInput is a customer's rating of a completed ticket.
type FeedbackInput struct {
	Rating  int
	Comment string
}

// TechnicianWorkload is one row of the workload snapshot.
type TechnicianWorkload struct {
	Technician    domain.User
	ActiveTickets int
	Capacity      int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locker := deps.Locker
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	lockWait := deps.LockWait
	if lockWait <= 0 {
		lockWait = defaultLockWait
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		planner:    NewAssignmentPlanner(deps.UserRepo, deps.TicketRepo, deps.Policy, logger),
		locker:     locker,
		dispatcher: deps.Dispatcher,
		policy:     deps.Policy,
		lockWait:   lockWait,
		logger:     logger,
		metrics:    deps.Metrics,
		now:        clock,
	}
}

// CreateTicket files a new repair or return request.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	customerID, err := s.resolveCustomer(ctx, actor, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := s.validateCreate(input); err != nil {
		return nil, err
	}

	now := s.now()
	warranty := EvaluateEligibility(s.policy, input.PurchaseDate, input.ServiceType, now)
	if warranty == domain.WarrantyReturnPeriodExpired {
		s.metrics.CreationBlocked(string(input.ServiceType), string(warranty))
		return nil, apperrors.NewPolicyBlocked("return period has expired; file a repair request instead", map[string]any{
			"days_since_purchase": DaysSincePurchase(input.PurchaseDate, now),
			"return_window_days":  s.policy.ReturnWindowDays,
		})
	}

	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		DisplayID:   generateDisplayID(input.ServiceType),
		CustomerID:  customerID,
		ServiceType: input.ServiceType,
		Product: domain.Product{
			SerialNumber: strings.TrimSpace(input.SerialNumber),
			Model:        strings.TrimSpace(input.Model),
			PurchaseDate: input.PurchaseDate,
			DeviceType:   strings.TrimSpace(input.DeviceType),
		},
		IssueDescription: strings.TrimSpace(input.IssueDescription),
		WarrantyStatus:   warranty,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if input.ServiceType == domain.ServiceTypeReturn {
		ticket.Status = domain.TicketStatusPendingValidation
		ticket.ResolutionOptions = []domain.ResolutionOption{domain.ResolutionRefund, domain.ResolutionReplacement}
	} else {
		ticket.Status = domain.TicketStatusSubmitted
		ticket.ResolutionOptions = []domain.ResolutionOption{domain.ResolutionRepair}
	}
	ticket.AppendHistory(domain.HistoryEntry{
		Action:    domain.ActionTicketCreated,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Timestamp: now,
		Notes:     fmt.Sprintf("%s request, %s", ticket.ServiceType, warranty),
		ToStatus:  ticket.Status,
	})

	assignment, err := s.planAndInsert(ctx, actor, ticket)
	if err != nil {
		return nil, err
	}

	s.metrics.TicketCreated(string(ticket.ServiceType), string(warranty))
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("display_id", ticket.DisplayID),
		zap.String("service_type", string(ticket.ServiceType)),
		zap.String("warranty_status", string(warranty)))
	s.publishEvent(ctx, actor, ticket.ID, events.EventTicketCreated, events.TicketCreatedPayload{
		DisplayID:      ticket.DisplayID,
		CustomerID:     ticket.CustomerID,
		ServiceType:    ticket.ServiceType,
		DeviceType:     ticket.Product.DeviceType,
		WarrantyStatus: ticket.WarrantyStatus,
		Status:         ticket.Status,
	})
	if assignment != nil {
		s.metrics.Assignment(assignment.Pool)
		s.publishEvent(ctx, actor, ticket.ID, events.EventTicketAssigned, events.TicketAssignedPayload{
			TechnicianID: assignment.Technician.ID,
			Automatic:    true,
		})
	}
	return ticket, nil
}

// planAndInsert runs the planner and persists the ticket, holding the global
// assignment lock in between when assignments are serialized.
func (s *TicketService) planAndInsert(ctx context.Context, actor domain.Actor, ticket *domain.Ticket) (*Assignment, error) {
	if s.policy.SerializeAssignments && ticket.ServiceType == domain.ServiceTypeRepair {
		unlock, err := s.acquire(ctx, assignmentLockKey)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	assignment, err := s.planner.Plan(ctx, ticket)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if assignment != nil {
		technicianID := assignment.Technician.ID
		ticket.AssignedTechnicianID = &technicianID
		ticket.AppendHistory(domain.HistoryEntry{
			Action:    domain.ActionTechnicianAssigned,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Timestamp: ticket.CreatedAt,
			Notes: fmt.Sprintf("auto-assigned to %s from %s pool (%d active)",
				assignment.Technician.Name, assignment.Pool, assignment.Workload),
		})
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	return assignment, nil
}

func (s *TicketService) resolveCustomer(ctx context.Context, actor domain.Actor, requested string) (string, error) {
	switch {
	case actor.Role == domain.RoleCustomer:
		if requested != "" && requested != actor.ID {
			return "", apperrors.NewForbidden("customers can only file tickets for themselves")
		}
		return actor.ID, nil
	case actor.Role.IsBackOffice():
		if strings.TrimSpace(requested) == "" {
			return "", apperrors.NewValidationError("customer_id is required when filing for a customer", nil)
		}
		customer, err := s.users.GetByID(ctx, requested)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return "", apperrors.NewNotFound("customer", map[string]any{"customer_id": requested})
			}
			return "", apperrors.MapError(err)
		}
		if customer.Role != domain.RoleCustomer {
			return "", apperrors.NewNotFound("customer", map[string]any{"customer_id": requested})
		}
		return customer.ID, nil
	default:
		return "", apperrors.NewForbidden("role cannot file tickets")
	}
}

func (s *TicketService) validateCreate(input TicketCreateInput) error {
	missing := make([]string, 0)
	if !input.ServiceType.Valid() {
		missing = append(missing, "service_type")
	}
	if strings.TrimSpace(input.SerialNumber) == "" {
		missing = append(missing, "serial_number")
	}
	if strings.TrimSpace(input.Model) == "" {
		missing = append(missing, "model")
	}
	if strings.TrimSpace(input.DeviceType) == "" {
		missing = append(missing, "device_type")
	}
	if strings.TrimSpace(input.IssueDescription) == "" {
		missing = append(missing, "issue_description")
	}
	if input.PurchaseDate.IsZero() {
		missing = append(missing, "purchase_date")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("missing or invalid fields", map[string]any{"fields": missing})
	}
	if input.PurchaseDate.After(s.now()) {
		return apperrors.NewValidationError("purchase_date cannot be in the future", map[string]any{"fields": []string{"purchase_date"}})
	}
	return nil
}

// GetTicket returns a ticket visible to actor.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureVisible(actor, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListTickets returns the tickets actor may see.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses: filter.Statuses,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}
	switch {
	case actor.Role == domain.RoleCustomer:
		repoFilter.CustomerID = &actor.ID
	case actor.Role == domain.RoleTechnician:
		repoFilter.AssigneeID = &actor.ID
	case actor.Role.IsBackOffice():
	default:
		return nil, apperrors.NewForbidden("unknown role")
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// AllowedStatuses lists where actor may move the ticket next.
func (s *TicketService) AllowedStatuses(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketStatus, error) {
	ticket, err := s.GetTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	return AllowedNextStatuses(ticket.Status, actor.Role), nil
}

// UpdateStatus moves a ticket to status and notifies the customer when it changed.
func (s *TicketService) UpdateStatus(ctx context.Context, actor domain.Actor, ticketID string, status domain.TicketStatus) (*domain.Ticket, error) {
	var from domain.TicketStatus
	ticket, changed, err := s.mutate(ctx, ticketID, func(t *domain.Ticket) (bool, error) {
		from = t.Status
		return ApplyTransition(t, status, actor, s.now())
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
			s.metrics.TransitionRejected(string(from), string(status), string(actor.Role))
		}
		return nil, err
	}
	if !changed {
		return ticket, nil
	}

	s.metrics.StatusTransition(string(from), string(status), string(actor.Role))
	s.logger.Info("ticket status updated",
		zap.String("ticket_id", ticket.ID),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
		zap.String("actor_role", string(actor.Role)))
	s.publishEvent(ctx, actor, ticket.ID, events.EventTicketStatusChanged, events.TicketStatusChangedPayload{
		DisplayID:    ticket.DisplayID,
		CustomerID:   ticket.CustomerID,
		ProductModel: ticket.Product.Model,
		OldStatus:    from,
		NewStatus:    status,
	})
	return ticket, nil
}

// AddComment appends a comment from the owner, the assigned technician or back-office staff.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, ticketID, body string) (*domain.Ticket, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body is required", map[string]any{"fields": []string{"body"}})
	}
	ticket, _, err := s.mutate(ctx, ticketID, func(t *domain.Ticket) (bool, error) {
		if err := s.ensureVisible(actor, t); err != nil {
			return false, err
		}
		now := s.now()
		t.Comments = append(t.Comments, domain.Comment{
			AuthorID:   actor.ID,
			AuthorRole: actor.Role,
			Body:       body,
			CreatedAt:  now,
		})
		t.AppendHistory(domain.HistoryEntry{
			Action:    domain.ActionCommentAdded,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Timestamp: now,
		})
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, actor, ticket.ID, events.EventTicketCommented, events.TicketCommentedPayload{
		BodyPreview: preview(body, 80),
	})
	return ticket, nil
}

// AssignTechnician overrides the ticket's technician.
func (s *TicketService) AssignTechnician(ctx context.Context, actor domain.Actor, ticketID, technicianID string) (*domain.Ticket, error) {
	if !actor.Role.IsBackOffice() {
		return nil, apperrors.NewForbidden("only back-office staff can assign technicians")
	}
	technician, err := s.users.GetByID(ctx, technicianID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": technicianID})
		}
		return nil, apperrors.MapError(err)
	}
	if technician.Role != domain.RoleTechnician {
		return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": technicianID})
	}

	var previous *string
	ticket, _, err := s.mutate(ctx, ticketID, func(t *domain.Ticket) (bool, error) {
		if t.Status == domain.TicketStatusPendingValidation {
			return false, apperrors.NewValidationError("return must be validated before a technician is assigned", map[string]any{"status": string(t.Status)})
		}
		previous = t.AssignedTechnicianID
		id := technician.ID
		t.AssignedTechnicianID = &id
		t.AppendHistory(domain.HistoryEntry{
			Action:    domain.ActionTechnicianAssigned,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Timestamp: s.now(),
			Notes:     fmt.Sprintf("assigned to %s", technician.Name),
		})
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Assignment("manual")
	s.publishEvent(ctx, actor, ticket.ID, events.EventTicketAssigned, events.TicketAssignedPayload{
		TechnicianID:         technician.ID,
		PreviousTechnicianID: previous,
	})
	return ticket, nil
}

// SubmitFeedback records the owning customer's rating of a completed ticket.
func (s *TicketService) SubmitFeedback(ctx context.Context, actor domain.Actor, ticketID string, input FeedbackInput) (*domain.Ticket, error) {
	ticket, _, err := s.mutate(ctx, ticketID, func(t *domain.Ticket) (bool, error) {
		if actor.Role != domain.RoleCustomer || t.CustomerID != actor.ID {
			return false, apperrors.NewForbidden("only the ticket's customer can leave feedback")
		}
		if t.Status != domain.TicketStatusCompleted {
			return false, apperrors.NewForbidden("feedback is only accepted for completed tickets")
		}
		if input.Rating < 1 || input.Rating > 5 {
			return false, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": input.Rating})
		}
		if t.Feedback != nil {
			return false, apperrors.NewConflict("feedback already submitted", map[string]any{"ticket_id": t.ID})
		}
		now := s.now()
		t.Feedback = &domain.Feedback{
			Rating:      input.Rating,
			Comment:     strings.TrimSpace(input.Comment),
			SubmittedAt: now,
		}
		t.AppendHistory(domain.HistoryEntry{
			Action:    domain.ActionFeedbackSubmitted,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Timestamp: now,
			Notes:     fmt.Sprintf("rating %d", input.Rating),
		})
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, actor, ticket.ID, events.EventFeedbackSubmitted, events.FeedbackSubmittedPayload{Rating: input.Rating})
	return ticket, nil
}

// Escalate flags a ticket for attention. Escalation cannot be undone.
func (s *TicketService) Escalate(ctx context.Context, actor domain.Actor, ticketID, reason string) (*domain.Ticket, error) {
	if !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("only staff can escalate tickets")
	}
	ticket, changed, err := s.mutate(ctx, ticketID, func(t *domain.Ticket) (bool, error) {
		if actor.Role == domain.RoleTechnician && !t.IsAssignedTo(actor.ID) {
			return false, apperrors.NewForbidden("ticket is not assigned to you")
		}
		if t.Escalated {
			return false, nil
		}
		t.Escalated = true
		t.AppendHistory(domain.HistoryEntry{
			Action:    domain.ActionTicketEscalated,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Timestamp: s.now(),
			Notes:     strings.TrimSpace(reason),
		})
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info("ticket escalated", zap.String("ticket_id", ticket.ID), zap.String("actor_id", actor.ID))
		s.publishEvent(ctx, actor, ticket.ID, events.EventTicketEscalated, events.TicketEscalatedPayload{Reason: strings.TrimSpace(reason)})
	}
	return ticket, nil
}

// TechnicianWorkloads reports every technician's active ticket count.
func (s *TicketService) TechnicianWorkloads(ctx context.Context, actor domain.Actor) ([]TechnicianWorkload, error) {
	if !actor.Role.IsBackOffice() {
		return nil, apperrors.NewForbidden("only back-office staff can view workloads")
	}
	technicians, err := s.users.ListByRoleAndSpecialty(ctx, domain.RoleTechnician, "")
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	out := make([]TechnicianWorkload, 0, len(technicians))
	for _, technician := range technicians {
		active, err := s.tickets.CountByAssigneeExcluding(ctx, technician.ID, domain.WorkloadExcludedStatuses)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		out = append(out, TechnicianWorkload{Technician: technician, ActiveTickets: active, Capacity: s.policy.CapacityLimit})
	}
	return out, nil
}

// mutate applies fn to the latest copy of a ticket under its lock and
// persists the result. A version conflict reloads and reapplies fn.
func (s *TicketService) mutate(ctx context.Context, ticketID string, fn func(*domain.Ticket) (bool, error)) (*domain.Ticket, bool, error) {
	unlock, err := s.acquire(ctx, "ticket:"+ticketID)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	for attempt := 1; attempt <= maxMutationAttempts; attempt++ {
		ticket, err := s.loadTicket(ctx, ticketID)
		if err != nil {
			return nil, false, err
		}
		changed, err := fn(ticket)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return ticket, false, nil
		}
		ticket.UpdatedAt = s.now()
		err = s.tickets.Update(ctx, ticket)
		if err == nil {
			return ticket, true, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, false, apperrors.MapError(err)
		}
		s.metrics.MutationConflict()
		s.logger.Warn("ticket version conflict, retrying",
			zap.String("ticket_id", ticketID),
			zap.Int("attempt", attempt))
	}
	return nil, false, apperrors.NewConflict("ticket was modified concurrently, retry the request", map[string]any{"ticket_id": ticketID})
}

func (s *TicketService) acquire(ctx context.Context, key string) (lock.Unlock, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	unlock, err := s.locker.Lock(waitCtx, key)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			s.logger.Warn("lock wait timed out", zap.String("key", key), zap.Duration("wait", s.lockWait))
			return nil, apperrors.NewConflict("resource is busy, retry the request", map[string]any{"key": key})
		}
		return nil, apperrors.MapError(err)
	}
	return unlock, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) ensureVisible(actor domain.Actor, ticket *domain.Ticket) error {
	switch {
	case actor.Role == domain.RoleCustomer && ticket.CustomerID == actor.ID:
		return nil
	case actor.Role == domain.RoleTechnician && ticket.IsAssignedTo(actor.ID):
		return nil
	case actor.Role.IsBackOffice():
		return nil
	}
	return apperrors.NewForbidden("access denied")
}

func (s *TicketService) publishEvent(ctx context.Context, actor domain.Actor, ticketID string, eventType events.EventType, payload any) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     events.Actor{ID: actor.ID, Role: actor.Role},
		Timestamp: s.now(),
		Payload:   payload,
	})
}

func generateDisplayID(serviceType domain.ServiceType) string {
	prefix := "REP"
	if serviceType == domain.ServiceTypeReturn {
		prefix = "RET"
	}
	return prefix + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func preview(body string, limit int) string {
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit]) + "..."
}

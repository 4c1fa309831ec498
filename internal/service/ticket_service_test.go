package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/repair-portal/internal/config"
	"github.com/spec-kit/repair-portal/internal/domain"
	"github.com/spec-kit/repair-portal/internal/events"
	"github.com/spec-kit/repair-portal/internal/repository"
	"github.com/spec-kit/repair-portal/internal/repository/memory"
	apperrors "github.com/spec-kit/repair-portal/pkg/util"
)

var testNow = time.Date(2026, time.May, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc        *TicketService
	tickets    *memory.TicketRepository
	users      *memory.UserRepository
	dispatcher events.Dispatcher

	mu        sync.Mutex
	published []events.Event
	userSeq   int
}

func newFixture(t *testing.T, policy config.PolicyConfig, ticketRepo repository.TicketRepository) *fixture {
	t.Helper()
	f := &fixture{
		tickets:    memory.NewTicketRepository(),
		users:      memory.NewUserRepository(),
		dispatcher: events.NewInMemoryDispatcher(nil),
	}
	if ticketRepo == nil {
		ticketRepo = f.tickets
	}
	f.dispatcher.SubscribeAll(func(_ context.Context, e events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.published = append(f.published, e)
		return nil
	})
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo: ticketRepo,
		UserRepo:   f.users,
		Dispatcher: f.dispatcher,
		Policy:     policy,
		Clock:      func() time.Time { return testNow },
	})
	return f
}

func (f *fixture) addUser(t *testing.T, role domain.Role, specialty string) domain.Actor {
	t.Helper()
	f.userSeq++
	n := f.userSeq
	user := &domain.User{
		Name:      fmt.Sprintf("%s %d", role, n),
		Email:     fmt.Sprintf("%s-%d@example.com", strings.ToLower(string(role)), n),
		Role:      role,
		Specialty: specialty,
	}
	if err := f.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return domain.ActorFor(user)
}

// seedActive stores count tickets assigned to technicianID in status.
func (f *fixture) seedActive(t *testing.T, technicianID string, status domain.TicketStatus, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		id := technicianID
		ticket := &domain.Ticket{
			ID:                   fmt.Sprintf("seed-%s-%s-%d", technicianID, status, i),
			ServiceType:          domain.ServiceTypeRepair,
			Status:               status,
			AssignedTechnicianID: &id,
		}
		if err := f.tickets.Create(context.Background(), ticket); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func (f *fixture) eventsOf(eventType events.EventType) []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Event
	for _, e := range f.published {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func repairInput(deviceType string, purchase time.Time) TicketCreateInput {
	return TicketCreateInput{
		ServiceType:      domain.ServiceTypeRepair,
		SerialNumber:     "SN-1001",
		Model:            "ZenBook 14",
		DeviceType:       deviceType,
		PurchaseDate:     purchase,
		IssueDescription: "screen flickers",
	}
}

func returnInput(purchase time.Time) TicketCreateInput {
	in := repairInput("Laptop", purchase)
	in.ServiceType = domain.ServiceTypeReturn
	return in
}

func mustCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.HasCode(err, code) {
		t.Fatalf("error = %v, want code %s", err, code)
	}
}

func TestCreateRepairOutOfWarrantyStillCreated(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy(), nil)
	customer := f.addUser(t, domain.RoleCustomer, "")

	ticket, err := f.svc.CreateTicket(context.Background(), customer, repairInput("Laptop", testNow.AddDate(0, -30, 0)))
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.WarrantyStatus != domain.WarrantyOutOfWarranty {
		t.Fatalf("warranty = %q", ticket.WarrantyStatus)
	}
	if ticket.Status != domain.TicketStatusSubmitted {
		t.Fatalf("status = %q", ticket.Status)
	}
	if !strings.HasPrefix(ticket.DisplayID, "REP-") || len(ticket.DisplayID) != 12 {
		t.Fatalf("display id = %q", ticket.DisplayID)
	}
	if len(ticket.ResolutionOptions) != 1 || ticket.ResolutionOptions[0] != domain.ResolutionRepair {
		t.Fatalf("resolution options = %v", ticket.ResolutionOptions)
	}
	if len(ticket.History) != 1 || ticket.History[0].Action != domain.ActionTicketCreated {
		t.Fatalf("history = %+v", ticket.History)
	}
	if ticket.AssignedTechnicianID != nil {
		t.Fatalf("assigned to %q with no technicians on staff", *ticket.AssignedTechnicianID)
	}
	if _, err := f.tickets.GetByID(context.Background(), ticket.ID); err != nil {
		t.Fatalf("ticket not persisted: %v", err)
	}
	if len(f.eventsOf(events.EventTicketCreated)) != 1 {
		t.Fatal("expected one created event")
	}
}

func TestCreateReturnPastWindowIsBlocked(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy(), nil)
	customer := f.addUser(t, domain.RoleCustomer, "")

	_, err := f.svc.CreateTicket(context.Background(), customer, returnInput(testNow.AddDate(0, 0, -20)))
	mustCode(t, err, apperrors.CodePolicyBlocked)

	stored, err := f.tickets.List(context.Background(), repository.TicketFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("blocked return persisted %d tickets", len(stored))
	}
}

func TestCreateReturnWithinWindowAwaitsValidation(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy(), nil)
	customer := f.addUser(t, domain.RoleCustomer, "")
	f.addUser(t, domain.RoleTechnician, "Laptop")

	ticket, err := f.svc.CreateTicket(context.Background(), customer, returnInput(testNow.AddDate(0, 0, -15)))
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.Status != domain.TicketStatusPendingValidation || ticket.WarrantyStatus != domain.WarrantyEligibleForReturn {
		t.Fatalf("status=%q warranty=%q", ticket.Status, ticket.WarrantyStatus)
	}
	if ticket.AssignedTechnicianID != nil {
		t.Fatal("return ticket must start unassigned")
	}
	if len(ticket.ResolutionOptions) != 2 || !strings.HasPrefix(ticket.DisplayID, "RET-") {
		t.Fatalf("options=%v display=%q", ticket.ResolutionOptions, ticket.DisplayID)
	}
}

func TestCreateAssignsSpecialistThenGeneralPool(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy(), nil)
	customer := f.addUser(t, domain.RoleCustomer, "")
	specialist := f.addUser(t, domain.RoleTechnician, "Laptop")
	general := f.addUser(t, domain.RoleTechnician, domain.SpecialtyGeneral)

	f.seedActive(t, specialist.ID, domain.TicketStatusInProgress, 5)
	f.seedActive(t, general.ID, domain.TicketStatusCompleted, 9)

	ticket, err := f.svc.CreateTicket(context.Background(), customer, repairInput("Laptop", testNow.AddDate(0, -1, 0)))
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if !ticket.IsAssignedTo(general.ID) {
		t.Fatalf("assigned to %v, want general technician", ticket.AssignedTechnicianID)
	}
	if len(ticket.History) != 2 || ticket.History[1].Action != domain.ActionTechnicianAssigned {
		t.Fatalf("history = %+v", ticket.History)
	}
	if len(f.eventsOf(events.EventTicketAssigned)) != 1 {
		t.Fatal("expected an assignment event")
	}

	f.seedActive(t, general.ID, domain.TicketStatusWaitingForParts, 4)
	ticket, err = f.svc.CreateTicket(context.Background(), customer, repairInput("Laptop", testNow.AddDate(0, -1, 0)))
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.AssignedTechnicianID != nil || ticket.Status != domain.TicketStatusSubmitted {
		t.Fatalf("expected unassigned Submitted ticket, got %v %q", ticket.AssignedTechnicianID, ticket.Status)
	}
}

func TestCreateTicketActorRules(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy(), nil)
	customer := f.addUser(t, domain.RoleCustomer, "")
	tech := f.addUser(t, domain.RoleTechnician, "Laptop")
	employee := f.addUser(t, domain.RoleEmployee, "")
	ctx := context.Background()
	in := repairInput("Phone", testNow.AddDate(0, -2, 0))

	_, err := f.svc.CreateTicket(ctx, tech, in)
	mustCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.CreateTicket(ctx, employee, in)
	mustCode(t, err, apperrors.CodeValidation)

	onBehalf := in
	onBehalf.CustomerID = tech.ID
	_, err = f.svc.CreateTicket(ctx, employee, onBehalf)
	mustCode(t, err, apperrors.CodeNotFound)

	onBehalf.CustomerID = customer.ID
	ticket, err := f.svc.CreateTicket(ctx, employee, onBehalf)
	if err != nil {
		t.Fatalf("CreateTicket on behalf: %v", err)
	}
	if ticket.CustomerID != customer.ID || ticket.History[0].ActorID != employee.ID {
		t.Fatalf("customer=%q creator=%q", ticket.CustomerID, ticket.History[0].ActorID)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy(), nil)
	customer := f.addUser(t, domain.RoleCustomer, "")

	cases := map[string]func(*TicketCreateInput){
		"missing serial":   func(in *TicketCreateInput) { in.SerialNumber = " " },
		"missing model":    func(in *TicketCreateInput) { in.Model = "" },
		"missing device":   func(in *TicketCreateInput) { in.DeviceType = "" },
		"missing issue":    func(in *TicketCreateInput) { in.IssueDescription = "" },
		"missing date":     func(in *TicketCreateInput) { in.PurchaseDate = time.Time{} },
		"future date":      func(in *TicketCreateInput) { in.PurchaseDate = testNow.Add(48 * time.Hour) },
		"bad service type": func(in *TicketCreateInput) { in.ServiceType = "Upgrade" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := repairInput("Laptop", testNow.AddDate(0, -1, 0))
			mutate(&in)
			_, err := f.svc.CreateTicket(context.Background(), customer, in)
			mustCode(t, err, apperrors.CodeValidation)
		})
	}
}

func TestUpdateStatusTechnicianFlow(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy(), nil)
	customer := f.addUser(t, domain.RoleCustomer, "")
	tech := f.addUser(t, domain.RoleTechnician, "Laptop")
	ctx := context.Background()

	ticket, err := f.svc.CreateTicket(ctx, customer, repairInput("Laptop", testNow.AddDate(0, -3, 0)))
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if !ticket.IsAssignedTo(tech.ID) {
		t.Fatal("expected the specialist to be assigned")
	}

	path := []domain.TicketStatus{
		domain.TicketStatusPendingValidation,
		domain.TicketStatusInProgress,
		domain.TicketStatusShipping,
		domain.TicketStatusShippedBack,
	}
	for _, next := range path {
		if ticket, err = f.svc.UpdateStatus(ctx, tech, ticket.ID, next); err != nil {
			t.Fatalf("UpdateStatus %s: %v", next, err)
		}
	}
	historyLen := len(ticket.History)

	_, err = f.svc.UpdateStatus(ctx, tech, ticket.ID, domain.TicketStatusInProgress)
	mustCode(t, err, apperrors.CodeInvalidTransition)
	allowed := apperrors.ToDomainError(err).Details["allowed"].([]string)
	if len(allowed) != 1 || allowed[0] != string(domain.TicketStatusCompleted) {
		t.Fatalf("allowed = %v", allowed)
	}

	stored, _ := f.tickets.GetByID(ctx, ticket.ID)
	if stored.Status != domain.TicketStatusShippedBack || len(stored.History) != historyLen {
		t.Fatalf("rejected transition changed ticket: %q, %d entries", stored.Status, len(stored.History))
	}

	again, err := f.svc.UpdateStatus(ctx, tech, ticket.ID, domain.TicketStatusShippedBack)
	if err != nil {
		t.Fatalf("no-op: %v", err)
	}
	if len(again.History) != historyLen || again.Version != stored.Version {
		t.Fatal("no-op transition must not persist anything")
	}

	changes := f.eventsOf(events.EventTicketStatusChanged)
	if len(changes) != len(path) {
		t.Fatalf("status events = %d, want %d", len(changes), len(path))
	}
	last := changes[len(changes)-1].Payload.(events.TicketStatusChangedPayload)
	if last.OldStatus != domain.TicketStatusShipping || last.NewStatus != domain.TicketStatusShippedBack || last.CustomerID != customer.ID {
		t.Fatalf("last payload = %+v", last)
	}
}

func TestUpdateStatusUnknownTicket(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy(), nil)
	admin := f.addUser(t, domain.RoleAdmin, "")
	_, err := f.svc.UpdateStatus(context.Background(), admin, "missing", domain.TicketStatusCompleted)
	mustCode(t, err, apperrors.CodeNotFound)
}

func completedTicket(t *testing.T, f *fixture, customer domain.Actor) *domain.Ticket {
	t.Helper()
	ctx := context.Background()
	manager := f.addUser(t, domain.RoleManager, "")
	ticket, err := f.svc.CreateTicket(ctx, customer, repairInput("Console", testNow.AddDate(0, -6, 0)))
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket, err = f.svc.UpdateStatus(ctx, manager, ticket.ID, domain.TicketStatusCompleted); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	return ticket
}

func TestSubmitFeedbackRules(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy(), nil)
	ctx := context.Background()
	owner := f.addUser(t, domain.RoleCustomer, "")
	stranger := f.addUser(t, domain.RoleCustomer, "")

	open, err := f.svc.CreateTicket(ctx, owner, repairInput("Console", testNow.AddDate(0, -6, 0)))
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	_, err = f.svc.SubmitFeedback(ctx, owner, open.ID, FeedbackInput{Rating: 5})
	mustCode(t, err, apperrors.CodeForbidden)

	done := completedTicket(t, f, owner)
	_, err = f.svc.SubmitFeedback(ctx, stranger, done.ID, FeedbackInput{Rating: 5})
	mustCode(t, err, apperrors.CodeForbidden)

	for _, rating := range []int{0, 6} {
		_, err = f.svc.SubmitFeedback(ctx, owner, done.ID, FeedbackInput{Rating: rating})
		mustCode(t, err, apperrors.CodeValidation)
	}

	rated, err := f.svc.SubmitFeedback(ctx, owner, done.ID, FeedbackInput{Rating: 4, Comment: " quick fix "})
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if rated.Feedback == nil || rated.Feedback.Rating != 4 || rated.Feedback.Comment != "quick fix" {
		t.Fatalf("feedback = %+v", rated.Feedback)
	}

	_, err = f.svc.SubmitFeedback(ctx, owner, done.ID, FeedbackInput{Rating: 1})
	mustCode(t, err, apperrors.CodeConflict)

	_, err = f.svc.SubmitFeedback(ctx, owner, "missing", FeedbackInput{Rating: 1})
	mustCode(t, err, apperrors.CodeNotFound)
}

func TestEscalateIsOneWayAndStaffOnly(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy(), nil)
	ctx := context.Background()
	customer := f.addUser(t, domain.RoleCustomer, "")
	employee := f.addUser(t, domain.RoleEmployee, "")
	ticket, err := f.svc.CreateTicket(ctx, customer, repairInput("Phone", testNow.AddDate(0, -1, 0)))
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	_, err = f.svc.Escalate(ctx, customer, ticket.ID, "slow")
	mustCode(t, err, apperrors.CodeForbidden)

	first, err := f.svc.Escalate(ctx, employee, ticket.ID, "VIP")
	if err != nil || !first.Escalated {
		t.Fatalf("Escalate: %v", err)
	}
	second, err := f.svc.Escalate(ctx, employee, ticket.ID, "still VIP")
	if err != nil {
		t.Fatalf("repeat Escalate: %v", err)
	}
	if len(second.History) != len(first.History) {
		t.Fatal("repeat escalation appended history")
	}
	if len(f.eventsOf(events.EventTicketEscalated)) != 1 {
		t.Fatal("expected a single escalation event")
	}
}

func TestAssignTechnicianOverride(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy(), nil)
	ctx := context.Background()
	customer := f.addUser(t, domain.RoleCustomer, "")
	first := f.addUser(t, domain.RoleTechnician, "Laptop")
	second := f.addUser(t, domain.RoleTechnician, "Phone")
	admin := f.addUser(t, domain.RoleAdmin, "")

	repair, err := f.svc.CreateTicket(ctx, customer, repairInput("Laptop", testNow.AddDate(0, -1, 0)))
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if !repair.IsAssignedTo(first.ID) {
		t.Fatal("expected auto-assignment to the laptop specialist")
	}

	_, err = f.svc.AssignTechnician(ctx, first, repair.ID, second.ID)
	mustCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.AssignTechnician(ctx, admin, repair.ID, customer.ID)
	mustCode(t, err, apperrors.CodeNotFound)

	reassigned, err := f.svc.AssignTechnician(ctx, admin, repair.ID, second.ID)
	if err != nil {
		t.Fatalf("AssignTechnician: %v", err)
	}
	if !reassigned.IsAssignedTo(second.ID) || reassigned.History[len(reassigned.History)-1].Action != domain.ActionTechnicianAssigned {
		t.Fatalf("reassigned = %+v", reassigned)
	}

	ret, err := f.svc.CreateTicket(ctx, customer, returnInput(testNow.AddDate(0, 0, -3)))
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	_, err = f.svc.AssignTechnician(ctx, admin, ret.ID, second.ID)
	mustCode(t, err, apperrors.CodeValidation)
}

func TestVisibility(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy(), nil)
	ctx := context.Background()
	owner := f.addUser(t, domain.RoleCustomer, "")
	other := f.addUser(t, domain.RoleCustomer, "")
	tech := f.addUser(t, domain.RoleTechnician, "Tablet")
	employee := f.addUser(t, domain.RoleEmployee, "")

	ticket, err := f.svc.CreateTicket(ctx, owner, repairInput("Phone", testNow.AddDate(0, -1, 0)))
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	_, err = f.svc.GetTicket(ctx, other, ticket.ID)
	mustCode(t, err, apperrors.CodeForbidden)
	_, err = f.svc.GetTicket(ctx, tech, ticket.ID)
	mustCode(t, err, apperrors.CodeForbidden)
	_, err = f.svc.AddComment(ctx, other, ticket.ID, "hello?")
	mustCode(t, err, apperrors.CodeForbidden)
	if _, err := f.svc.GetTicket(ctx, employee, ticket.ID); err != nil {
		t.Fatalf("employee GetTicket: %v", err)
	}

	mine, err := f.svc.ListTickets(ctx, owner, TicketListFilter{})
	if err != nil || len(mine) != 1 {
		t.Fatalf("owner list = %d, %v", len(mine), err)
	}
	theirs, err := f.svc.ListTickets(ctx, other, TicketListFilter{})
	if err != nil || len(theirs) != 0 {
		t.Fatalf("other list = %d, %v", len(theirs), err)
	}

	allowed, err := f.svc.AllowedStatuses(ctx, employee, ticket.ID)
	if err != nil || len(allowed) != len(domain.AllTicketStatuses)-1 {
		t.Fatalf("AllowedStatuses = %v, %v", allowed, err)
	}
}

func TestConcurrentCommentsAreSerialized(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy(), nil)
	ctx := context.Background()
	customer := f.addUser(t, domain.RoleCustomer, "")
	employee := f.addUser(t, domain.RoleEmployee, "")
	ticket, err := f.svc.CreateTicket(ctx, customer, repairInput("Phone", testNow.AddDate(0, -1, 0)))
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	const writers = 25
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := customer
			if i%2 == 0 {
				actor = employee
			}
			if _, err := f.svc.AddComment(ctx, actor, ticket.ID, fmt.Sprintf("note %d", i)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("AddComment: %v", err)
	}

	stored, _ := f.tickets.GetByID(ctx, ticket.ID)
	if len(stored.Comments) != writers || len(stored.History) != writers+1 {
		t.Fatalf("comments=%d history=%d, want %d and %d", len(stored.Comments), len(stored.History), writers, writers+1)
	}
}

// conflictingRepo fails the first n updates with a version conflict.
type conflictingRepo struct {
	*memory.TicketRepository
	mu        sync.Mutex
	conflicts int
}

func (r *conflictingRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	if r.conflicts > 0 {
		r.conflicts--
		r.mu.Unlock()
		return repository.ErrVersionConflict
	}
	r.mu.Unlock()
	return r.TicketRepository.Update(ctx, ticket)
}

func TestMutationRetriesVersionConflicts(t *testing.T) {
	base := memory.NewTicketRepository()
	repo := &conflictingRepo{TicketRepository: base}
	f := newFixture(t, config.DefaultPolicy(), repo)
	f.tickets = base
	ctx := context.Background()
	customer := f.addUser(t, domain.RoleCustomer, "")
	ticket, err := f.svc.CreateTicket(ctx, customer, repairInput("Phone", testNow.AddDate(0, -1, 0)))
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	repo.conflicts = maxMutationAttempts - 1
	if _, err := f.svc.AddComment(ctx, customer, ticket.ID, "retry me"); err != nil {
		t.Fatalf("AddComment after conflicts: %v", err)
	}

	repo.conflicts = maxMutationAttempts
	_, err = f.svc.AddComment(ctx, customer, ticket.ID, "give up")
	mustCode(t, err, apperrors.CodeConflict)

	stored, _ := base.GetByID(ctx, ticket.ID)
	if len(stored.Comments) != 1 {
		t.Fatalf("comments = %d, want 1", len(stored.Comments))
	}
}

func TestSerializedAssignmentsRespectCapacity(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.SerializeAssignments = true
	f := newFixture(t, policy, nil)
	ctx := context.Background()
	customer := f.addUser(t, domain.RoleCustomer, "")
	specialist := f.addUser(t, domain.RoleTechnician, "Laptop")
	general := f.addUser(t, domain.RoleTechnician, domain.SpecialtyGeneral)

	const creations = 12
	var wg sync.WaitGroup
	for i := 0; i < creations; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.CreateTicket(ctx, customer, repairInput("Laptop", testNow.AddDate(0, -1, 0))); err != nil {
				t.Errorf("CreateTicket: %v", err)
			}
		}()
	}
	wg.Wait()

	for _, tech := range []domain.Actor{specialist, general} {
		active, _ := f.tickets.CountByAssigneeExcluding(ctx, tech.ID, domain.WorkloadExcludedStatuses)
		if active != policy.CapacityLimit {
			t.Fatalf("technician %s has %d active tickets, want %d", tech.ID, active, policy.CapacityLimit)
		}
	}

	workloads, err := f.svc.TechnicianWorkloads(ctx, domain.Actor{ID: "boss", Role: domain.RoleManager})
	if err != nil || len(workloads) != 2 || workloads[0].Technician.ID != specialist.ID {
		t.Fatalf("TechnicianWorkloads = %+v, %v", workloads, err)
	}
	_, err = f.svc.TechnicianWorkloads(ctx, specialist)
	mustCode(t, err, apperrors.CodeForbidden)
}

func TestReturnBackToPendingValidationReleasesTechnician(t *testing.T) {
	f := newFixture(t, config.DefaultPolicy(), nil)
	ctx := context.Background()
	customer := f.addUser(t, domain.RoleCustomer, "")
	tech := f.addUser(t, domain.RoleTechnician, "Laptop")
	manager := f.addUser(t, domain.RoleManager, "")

	ret, err := f.svc.CreateTicket(ctx, customer, returnInput(testNow.AddDate(0, 0, -3)))
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, manager, ret.ID, domain.TicketStatusInProgress); err != nil {
		t.Fatalf("UpdateStatus in progress: %v", err)
	}
	if _, err := f.svc.AssignTechnician(ctx, manager, ret.ID, tech.ID); err != nil {
		t.Fatalf("AssignTechnician: %v", err)
	}

	back, err := f.svc.UpdateStatus(ctx, manager, ret.ID, domain.TicketStatusPendingValidation)
	if err != nil {
		t.Fatalf("UpdateStatus pending validation: %v", err)
	}
	if back.Status != domain.TicketStatusPendingValidation || back.AssignedTechnicianID != nil {
		t.Fatalf("status=%q assignee=%v", back.Status, back.AssignedTechnicianID)
	}
	last := back.History[len(back.History)-1]
	if last.Action != domain.ActionTechnicianAssigned || last.ActorID != manager.ID {
		t.Fatalf("last history = %+v", last)
	}

	stored, err := f.tickets.GetByID(ctx, ret.ID)
	if err != nil || stored.AssignedTechnicianID != nil {
		t.Fatalf("stored assignee = %v, err = %v", stored.AssignedTechnicianID, err)
	}
	workloads, err := f.svc.TechnicianWorkloads(ctx, manager)
	if err != nil {
		t.Fatalf("TechnicianWorkloads: %v", err)
	}
	if len(workloads) != 1 || workloads[0].ActiveTickets != 0 {
		t.Fatalf("workloads = %+v", workloads)
	}
}

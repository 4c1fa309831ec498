package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/repair-portal/internal/domain"
	"github.com/spec-kit/repair-portal/internal/repository"
)

func TestTicketUpdateVersionCheck(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketRepository()
	ticket := &domain.Ticket{ID: "t1", Status: domain.TicketStatusSubmitted}
	if err := repo.Create(ctx, ticket); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, _ := repo.GetByID(ctx, "t1")
	second, _ := repo.GetByID(ctx, "t1")

	first.Status = domain.TicketStatusInProgress
	if err := repo.Update(ctx, first); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	if first.Version != 2 {
		t.Fatalf("version = %d, want 2", first.Version)
	}

	second.Status = domain.TicketStatusCancelled
	if err := repo.Update(ctx, second); !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("stale Update err = %v, want ErrVersionConflict", err)
	}

	stored, _ := repo.GetByID(ctx, "t1")
	if stored.Status != domain.TicketStatusInProgress {
		t.Fatalf("stored status = %s", stored.Status)
	}
}

func TestTicketReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketRepository()
	ticket := &domain.Ticket{ID: "t1"}
	ticket.AppendHistory(domain.HistoryEntry{Action: domain.ActionTicketCreated})
	if err := repo.Create(ctx, ticket); err != nil {
		t.Fatalf("Create: %v", err)
	}

	loaded, _ := repo.GetByID(ctx, "t1")
	loaded.AppendHistory(domain.HistoryEntry{Action: domain.ActionCommentAdded})

	again, _ := repo.GetByID(ctx, "t1")
	if len(again.History) != 1 {
		t.Fatalf("history leaked between reads: %d entries", len(again.History))
	}
}

func TestCountByAssigneeExcluding(t *testing.T) {
	ctx := context.Background()
	repo := NewTicketRepository()
	tech := "tech-1"
	statuses := []domain.TicketStatus{
		domain.TicketStatusSubmitted,
		domain.TicketStatusInProgress,
		domain.TicketStatusCompleted,
		domain.TicketStatusCancelled,
		domain.TicketStatusRejected,
		domain.TicketStatusClosed,
	}
	for i, status := range statuses {
		id := tech
		ticket := &domain.Ticket{ID: string(rune('a' + i)), Status: status, AssignedTechnicianID: &id}
		if err := repo.Create(ctx, ticket); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repo.Create(ctx, &domain.Ticket{ID: "unassigned", Status: domain.TicketStatusSubmitted}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	count, err := repo.CountByAssigneeExcluding(ctx, tech, domain.WorkloadExcludedStatuses)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("active workload = %d, want 2", count)
	}
}

func TestListByRoleAndSpecialtyKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	seed := []domain.User{
		{Email: "a@x", Role: domain.RoleTechnician, Specialty: "Laptop"},
		{Email: "b@x", Role: domain.RoleTechnician, Specialty: "Phone"},
		{Email: "c@x", Role: domain.RoleTechnician, Specialty: "Laptop"},
		{Email: "d@x", Role: domain.RoleEmployee, Specialty: "Laptop"},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repo.Create(ctx, &domain.User{Email: "A@x"}); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("duplicate email err = %v", err)
	}

	laptops, err := repo.ListByRoleAndSpecialty(ctx, domain.RoleTechnician, "Laptop")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(laptops) != 2 || laptops[0].Email != "a@x" || laptops[1].Email != "c@x" {
		t.Fatalf("unexpected technicians: %+v", laptops)
	}
}

package service

import (
	"fmt"
	"time"

	"github.com/spec-kit/repair-portal/internal/domain"
	apperrors "github.com/spec-kit/repair-portal/pkg/util"
)

// technicianTransitions is the only path through the lifecycle for technicians.
// Statuses without an entry are terminal for them.
var technicianTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusSubmitted: {
		domain.TicketStatusPendingValidation,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusPendingValidation: {
		domain.TicketStatusInProgress,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusInProgress: {
		domain.TicketStatusWaitingForParts,
		domain.TicketStatusShipping,
		domain.TicketStatusReadyForPickup,
		domain.TicketStatusCompleted,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusWaitingForParts: {
		domain.TicketStatusInProgress,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusShipping: {
		domain.TicketStatusShippedBack,
		domain.TicketStatusCompleted,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusShippedBack: {
		domain.TicketStatusCompleted,
	},
	domain.TicketStatusReadyForPickup: {
		domain.TicketStatusCompleted,
		domain.TicketStatusCancelled,
	},
}

// AllowedNextStatuses lists where role may move a ticket from current.
// Back-office staff may set any other status.
func AllowedNextStatuses(current domain.TicketStatus, role domain.Role) []domain.TicketStatus {
	switch {
	case role == domain.RoleTechnician:
		return append([]domain.TicketStatus{}, technicianTransitions[current]...)
	case role.IsBackOffice():
		next := make([]domain.TicketStatus, 0, len(domain.AllTicketStatuses)-1)
		for _, status := range domain.AllTicketStatuses {
			if status != current {
				next = append(next, status)
			}
		}
		return next
	default:
		return []domain.TicketStatus{}
	}
}

func transitionAllowed(current, next domain.TicketStatus, role domain.Role) bool {
	for _, candidate := range AllowedNextStatuses(current, role) {
		if candidate == next {
			return true
		}
	}
	return false
}

// ApplyTransition moves ticket to next on behalf of actor and records it in
// the history. It reports false for a same-status request, which succeeds
// without touching the ticket. A rejected request leaves ticket untouched.
// Moving a return back to Pending Validation releases its technician.
func ApplyTransition(ticket *domain.Ticket, next domain.TicketStatus, actor domain.Actor, now time.Time) (bool, error) {
	if !next.Valid() {
		return false, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": string(next)})
	}
	if !actor.Role.IsStaff() {
		return false, apperrors.NewForbidden("only staff can change ticket status")
	}
	if actor.Role == domain.RoleTechnician && !ticket.IsAssignedTo(actor.ID) {
		return false, apperrors.NewForbidden("ticket is not assigned to you")
	}
	current := ticket.Status
	if next == current {
		return false, nil
	}
	if !transitionAllowed(current, next, actor.Role) {
		return false, apperrors.NewInvalidTransition(string(current), string(next), statusStrings(AllowedNextStatuses(current, actor.Role)))
	}

	ticket.Status = next
	ticket.AppendHistory(domain.HistoryEntry{
		Action:     domain.ActionStatusUpdated,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Timestamp:  now,
		Notes:      fmt.Sprintf("%s -> %s", current, next),
		FromStatus: current,
		ToStatus:   next,
	})
	if next == domain.TicketStatusPendingValidation && ticket.ServiceType == domain.ServiceTypeReturn && ticket.AssignedTechnicianID != nil {
		ticket.AssignedTechnicianID = nil
		ticket.AppendHistory(domain.HistoryEntry{
			Action:    domain.ActionTechnicianAssigned,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Timestamp: now,
			Notes:     "unassigned: return is pending validation",
		})
	}
	return true, nil
}

func statusStrings(statuses []domain.TicketStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}

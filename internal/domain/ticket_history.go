package domain

import "time"

// HistoryAction names what happened in a history entry.
type HistoryAction string

const (
	ActionTicketCreated      HistoryAction = "Ticket Created"
	ActionTechnicianAssigned HistoryAction = "Technician Assigned"
	ActionStatusUpdated      HistoryAction = "Status Updated"
	ActionCommentAdded       HistoryAction = "Comment Added"
	ActionTicketEscalated    HistoryAction = "Ticket Escalated"
	ActionFeedbackSubmitted  HistoryAction = "Feedback Submitted"
)

// HistoryEntry is an immutable audit trail entry owned by its ticket.
type HistoryEntry struct {
	Action     HistoryAction `json:"action"`
	ActorID    string        `json:"actor_id"`
	ActorRole  Role          `json:"actor_role"`
	Timestamp  time.Time     `json:"timestamp"`
	Notes      string        `json:"notes,omitempty"`
	FromStatus TicketStatus  `json:"from_status,omitempty"`
	ToStatus   TicketStatus  `json:"to_status,omitempty"`
}

// AppendHistory records entry at the end of the ticket's log.
func (t *Ticket) AppendHistory(entry HistoryEntry) {
	t.History = append(t.History, entry)
}

package events

import (
	"time"

	"github.com/spec-kit/repair-portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketCommented     EventType = "ticket_commented"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventFeedbackSubmitted   EventType = "ticket_feedback_submitted"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	DisplayID      string                `json:"display_id"`
	CustomerID     string                `json:"customer_id"`
	ServiceType    domain.ServiceType    `json:"service_type"`
	DeviceType     string                `json:"device_type"`
	WarrantyStatus domain.WarrantyStatus `json:"warranty_status"`
	Status         domain.TicketStatus   `json:"status"`
}

// TicketStatusChangedPayload carries what a customer notification needs.
type TicketStatusChangedPayload struct {
	DisplayID    string              `json:"display_id"`
	CustomerID   string              `json:"customer_id"`
	ProductModel string              `json:"product_model"`
	OldStatus    domain.TicketStatus `json:"old_status"`
	NewStatus    domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TechnicianID         string  `json:"technician_id"`
	PreviousTechnicianID *string `json:"previous_technician_id,omitempty"`
	Automatic            bool    `json:"automatic"`
}

// TicketCommentedPayload payload.
type TicketCommentedPayload struct {
	BodyPreview string `json:"body_preview"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	Reason string `json:"reason,omitempty"`
}

// FeedbackSubmittedPayload payload.
type FeedbackSubmittedPayload struct {
	Rating int `json:"rating"`
}

package dto

import (
	"time"

	"github.com/spec-kit/repair-portal/internal/domain"
)

// PurchaseDateLayout is the accepted purchase_date format.
const PurchaseDateLayout = "2006-01-02"

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CustomerID       string             `json:"customer_id"`
	ServiceType      domain.ServiceType `json:"service_type"`
	SerialNumber     string             `json:"serial_number"`
	Model            string             `json:"model"`
	DeviceType       string             `json:"device_type"`
	PurchaseDate     string             `json:"purchase_date"`
	IssueDescription string             `json:"issue_description"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// CommentRequest payload.
type CommentRequest struct {
	Body string `json:"body"`
}

// FeedbackRequest payload.
type FeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// AssignTechnicianRequest payload.
type AssignTechnicianRequest struct {
	TechnicianID string `json:"technician_id"`
}

// EscalateRequest payload.
type EscalateRequest struct {
	Reason string `json:"reason"`
}

// ProductResponse describes the device under service.
type ProductResponse struct {
	SerialNumber string `json:"serial_number"`
	Model        string `json:"model"`
	PurchaseDate string `json:"purchase_date"`
	DeviceType   string `json:"device_type"`
}

// TicketSummary response.
type TicketSummary struct {
	ID                   string                `json:"id"`
	DisplayID            string                `json:"display_id"`
	ServiceType          domain.ServiceType    `json:"service_type"`
	Status               domain.TicketStatus   `json:"status"`
	WarrantyStatus       domain.WarrantyStatus `json:"warranty_status"`
	DeviceType           string                `json:"device_type"`
	AssignedTechnicianID *string               `json:"assigned_technician_id"`
	Escalated            bool                  `json:"escalated"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	CustomerID        string                    `json:"customer_id"`
	Product           ProductResponse           `json:"product"`
	IssueDescription  string                    `json:"issue_description"`
	ResolutionOptions []domain.ResolutionOption `json:"resolution_options"`
	History           []HistoryResponse         `json:"history"`
	Comments          []CommentResponse         `json:"comments"`
	Feedback          *FeedbackResponse         `json:"feedback"`
	Version           int64                     `json:"version"`
}

// HistoryResponse is one audit trail entry.
type HistoryResponse struct {
	Action     domain.HistoryAction `json:"action"`
	ActorID    string               `json:"actor_id"`
	ActorRole  domain.Role          `json:"actor_role"`
	Timestamp  time.Time            `json:"timestamp"`
	Notes      string               `json:"notes,omitempty"`
	FromStatus domain.TicketStatus  `json:"from_status,omitempty"`
	ToStatus   domain.TicketStatus  `json:"to_status,omitempty"`
}

// CommentResponse represents a ticket comment.
type CommentResponse struct {
	AuthorID   string      `json:"author_id"`
	AuthorRole domain.Role `json:"author_role"`
	Body       string      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

// FeedbackResponse is the customer's rating.
type FeedbackResponse struct {
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// AllowedStatusesResponse lists the caller's next statuses.
type AllowedStatusesResponse struct {
	Current domain.TicketStatus   `json:"current"`
	Allowed []domain.TicketStatus `json:"allowed"`
}

package domain

import "time"

// ServiceType distinguishes repair cases from return requests.
type ServiceType string

const (
	ServiceTypeRepair ServiceType = "Repair"
	ServiceTypeReturn ServiceType = "Return"
)

// Valid reports whether s is a known service type.
func (s ServiceType) Valid() bool {
	return s == ServiceTypeRepair || s == ServiceTypeReturn
}

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusSubmitted         TicketStatus = "Submitted"
	TicketStatusPendingValidation TicketStatus = "Pending Validation"
	TicketStatusInProgress        TicketStatus = "In Progress"
	TicketStatusWaitingForParts   TicketStatus = "Waiting for Parts"
	TicketStatusShipping          TicketStatus = "Shipping"
	TicketStatusReadyForPickup    TicketStatus = "Ready for Pickup"
	TicketStatusShippedBack       TicketStatus = "Shipped Back"
	TicketStatusCompleted         TicketStatus = "Completed"
	TicketStatusCancelled         TicketStatus = "Cancelled"
	// Closed and Rejected are only reachable through staff overrides.
	TicketStatusClosed   TicketStatus = "Closed"
	TicketStatusRejected TicketStatus = "Rejected"
)

// AllTicketStatuses lists every status in lifecycle order.
var AllTicketStatuses = []TicketStatus{
	TicketStatusSubmitted,
	TicketStatusPendingValidation,
	TicketStatusInProgress,
	TicketStatusWaitingForParts,
	TicketStatusShipping,
	TicketStatusReadyForPickup,
	TicketStatusShippedBack,
	TicketStatusCompleted,
	TicketStatusCancelled,
	TicketStatusClosed,
	TicketStatusRejected,
}

// WorkloadExcludedStatuses are statuses that no longer count against a technician.
var WorkloadExcludedStatuses = []TicketStatus{
	TicketStatusCompleted,
	TicketStatusClosed,
	TicketStatusCancelled,
	TicketStatusRejected,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, candidate := range AllTicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CountsTowardWorkload reports whether a ticket in this status is active work.
func (s TicketStatus) CountsTowardWorkload() bool {
	for _, excluded := range WorkloadExcludedStatuses {
		if excluded == s {
			return false
		}
	}
	return true
}

// WarrantyStatus is the eligibility label computed at creation.
type WarrantyStatus string

const (
	WarrantyUnderWarranty       WarrantyStatus = "Under Warranty"
	WarrantyOutOfWarranty       WarrantyStatus = "Out of Warranty"
	WarrantyEligibleForReturn   WarrantyStatus = "Eligible for Return"
	WarrantyReturnPeriodExpired WarrantyStatus = "Return Period Expired"
)

// ResolutionOption is an outcome the customer may receive.
type ResolutionOption string

const (
	ResolutionRefund      ResolutionOption = "Refund"
	ResolutionReplacement ResolutionOption = "Replacement"
	ResolutionRepair      ResolutionOption = "Repair"
)

// Product describes the device the case is about.
type Product struct {
	SerialNumber string    `json:"serial_number"`
	Model        string    `json:"model"`
	PurchaseDate time.Time `json:"purchase_date"`
	DeviceType   string    `json:"device_type"`
}

// Feedback is the customer's rating of a completed case.
type Feedback struct {
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Ticket is the aggregate for one repair or return case.
type Ticket struct {
	ID                   string             `json:"id"`
	DisplayID            string             `json:"display_id"`
	CustomerID           string             `json:"customer_id"`
	ServiceType          ServiceType        `json:"service_type"`
	Product              Product            `json:"product"`
	IssueDescription     string             `json:"issue_description"`
	Status               TicketStatus       `json:"status"`
	WarrantyStatus       WarrantyStatus     `json:"warranty_status"`
	ResolutionOptions    []ResolutionOption `json:"resolution_options"`
	AssignedTechnicianID *string            `json:"assigned_technician_id,omitempty"`
	History              []HistoryEntry     `json:"history"`
	Comments             []Comment          `json:"comments"`
	Escalated            bool               `json:"escalated"`
	Feedback             *Feedback          `json:"feedback,omitempty"`
	Version              int64              `json:"version"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// IsAssignedTo reports whether technicianID currently owns the ticket.
func (t *Ticket) IsAssignedTo(technicianID string) bool {
	return t.AssignedTechnicianID != nil && *t.AssignedTechnicianID == technicianID
}

// Clone returns a deep copy so callers never share history or comment slices.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	if t.AssignedTechnicianID != nil {
		id := *t.AssignedTechnicianID
		cp.AssignedTechnicianID = &id
	}
	if t.Feedback != nil {
		fb := *t.Feedback
		cp.Feedback = &fb
	}
	cp.ResolutionOptions = append([]ResolutionOption(nil), t.ResolutionOptions...)
	cp.History = append([]HistoryEntry(nil), t.History...)
	cp.Comments = append([]Comment(nil), t.Comments...)
	return &cp
}

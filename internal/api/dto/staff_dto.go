package dto

import "github.com/spec-kit/repair-portal/internal/domain"

// CreateStaffRequest payload for provisioning staff accounts.
type CreateStaffRequest struct {
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Role      domain.Role `json:"role"`
	Specialty string      `json:"specialty"`
}

// TechnicianWorkloadResponse is one technician's load.
type TechnicianWorkloadResponse struct {
	Technician    UserResponse `json:"technician"`
	ActiveTickets int          `json:"active_tickets"`
	Capacity      int          `json:"capacity"`
	Available     bool         `json:"available"`
}

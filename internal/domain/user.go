package domain

import "time"

// Role enumerates who an account belongs to.
type Role string

const (
	RoleCustomer   Role = "Customer"
	RoleTechnician Role = "Technician"
	RoleEmployee   Role = "Employee"
	RoleManager    Role = "Manager"
	RoleAdmin      Role = "Admin"
)

// SpecialtyGeneral is the catch-all technician pool.
const SpecialtyGeneral = "Other"

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleTechnician, RoleEmployee, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// IsStaff is true for every internal role.
func (r Role) IsStaff() bool {
	return r.Valid() && r != RoleCustomer
}

// IsBackOffice is true for staff roles that are not technicians.
func (r Role) IsBackOffice() bool {
	return r == RoleEmployee || r == RoleManager || r == RoleAdmin
}

// User is an account: a customer, a technician or another staff member.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	// Specialty is the device type a technician handles, or SpecialtyGeneral.
	Specialty string
	CreatedAt time.Time
	UpdatedAt time.Time
}

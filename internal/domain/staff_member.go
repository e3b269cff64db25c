package domain

import "time"

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleTechnician     StaffRole = "TECHNICIAN"
	StaffRoleTeamLead       StaffRole = "TEAM_LEAD"
	StaffRoleDepartmentHead StaffRole = "DEPARTMENT_HEAD"
	StaffRoleAdmin          StaffRole = "ADMIN"
)

// StaffMember models a support agent or administrator.
type StaffMember struct {
	ID             string
	Name           string
	Email          string
	Role           StaffRole
	OrganizationID *string
	DepartmentID   *string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

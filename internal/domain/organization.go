package domain

import "time"

// Organization is a customer tenant. ManagerID references a staff member.
type Organization struct {
	ID        string
	Name      string
	ManagerID *string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

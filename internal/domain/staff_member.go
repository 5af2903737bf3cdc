package domain

import "time"

// StaffMember models a staff account as seen by the engine. The record is
// owned by the user-management collaborator and is read-only here; current
// workload is derived from assigned active concerns, never stored.
type StaffMember struct {
	ID                       string
	Name                     string
	Email                    string
	Title                    string
	DepartmentID             *string
	Active                   bool
	CanHandleCrossDepartment bool
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// InDepartment reports whether the staff member belongs to the department.
func (s *StaffMember) InDepartment(departmentID string) bool {
	return s.DepartmentID != nil && *s.DepartmentID == departmentID
}

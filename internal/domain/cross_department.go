package domain

import "time"

// AssignmentType records why a concern was routed outside its department.
type AssignmentType string

const (
	AssignmentTypeCrossDepartment   AssignmentType = "CROSS_DEPARTMENT"
	AssignmentTypeOverloadBalancing AssignmentType = "OVERLOAD_BALANCING"
	AssignmentTypeOverdueEscalation AssignmentType = "OVERDUE_ESCALATION"
)

// CrossDepartmentStatus enumerates record states.
type CrossDepartmentStatus string

const (
	CrossDepartmentStatusActive    CrossDepartmentStatus = "ACTIVE"
	CrossDepartmentStatusCompleted CrossDepartmentStatus = "COMPLETED"
	CrossDepartmentStatusExpired   CrossDepartmentStatus = "EXPIRED"
)

// CrossDepartmentAssignment is created whenever a concern is assigned to a
// staff member from a different department. At most one record per concern
// is ACTIVE at a time.
type CrossDepartmentAssignment struct {
	ID                     string
	ConcernID              string
	StaffID                string
	RequestingDepartmentID string
	AssignmentType         AssignmentType
	EstimatedDurationHours int
	Status                 CrossDepartmentStatus
	AssignedAt             time.Time
	CompletedAt            *time.Time
}

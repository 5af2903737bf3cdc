package domain

import "time"

// ConcernStatus enumerates lifecycle states for concerns.
type ConcernStatus string

const (
	ConcernStatusPending          ConcernStatus = "PENDING"
	ConcernStatusApproved         ConcernStatus = "APPROVED"
	ConcernStatusRejected         ConcernStatus = "REJECTED"
	ConcernStatusInProgress       ConcernStatus = "IN_PROGRESS"
	ConcernStatusStaffResolved    ConcernStatus = "STAFF_RESOLVED"
	ConcernStatusStudentConfirmed ConcernStatus = "STUDENT_CONFIRMED"
	ConcernStatusDisputed         ConcernStatus = "DISPUTED"
	ConcernStatusClosed           ConcernStatus = "CLOSED"
	ConcernStatusCancelled        ConcernStatus = "CANCELLED"
)

// Terminal reports whether no further automated transitions apply.
func (s ConcernStatus) Terminal() bool {
	switch s {
	case ConcernStatusRejected, ConcernStatusClosed, ConcernStatusCancelled:
		return true
	}
	return false
}

var statusTransitions = map[ConcernStatus][]ConcernStatus{
	ConcernStatusPending:          {ConcernStatusApproved, ConcernStatusRejected, ConcernStatusCancelled},
	ConcernStatusApproved:         {ConcernStatusInProgress, ConcernStatusCancelled},
	ConcernStatusInProgress:       {ConcernStatusStaffResolved, ConcernStatusCancelled},
	ConcernStatusStaffResolved:    {ConcernStatusStudentConfirmed, ConcernStatusDisputed},
	ConcernStatusDisputed:         {ConcernStatusInProgress},
	ConcernStatusStudentConfirmed: {ConcernStatusClosed},
}

// CanTransition reports whether the status change is permitted by the
// lifecycle state machine.
func CanTransition(from, to ConcernStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ConcernPriority enumerates the ordered urgency tiers.
type ConcernPriority string

const (
	ConcernPriorityLow    ConcernPriority = "LOW"
	ConcernPriorityMedium ConcernPriority = "MEDIUM"
	ConcernPriorityHigh   ConcernPriority = "HIGH"
	ConcernPriorityUrgent ConcernPriority = "URGENT"
)

var priorityRanks = map[ConcernPriority]int{
	ConcernPriorityLow:    0,
	ConcernPriorityMedium: 1,
	ConcernPriorityHigh:   2,
	ConcernPriorityUrgent: 3,
}

// Rank returns the position of the priority on the ordered scale
// low < medium < high < urgent. Unknown values rank lowest.
func (p ConcernPriority) Rank() int {
	return priorityRanks[p]
}

// Priorities lists all tiers in ascending order.
func Priorities() []ConcernPriority {
	return []ConcernPriority{ConcernPriorityLow, ConcernPriorityMedium, ConcernPriorityHigh, ConcernPriorityUrgent}
}

// ConcernType enumerates the submission categories.
type ConcernType string

const (
	ConcernTypeAcademic        ConcernType = "ACADEMIC"
	ConcernTypeFinancial       ConcernType = "FINANCIAL"
	ConcernTypeFacility        ConcernType = "FACILITY"
	ConcernTypeStudentServices ConcernType = "STUDENT_SERVICES"
	ConcernTypeTechnical       ConcernType = "TECHNICAL"
	ConcernTypeDisciplinary    ConcernType = "DISCIPLINARY"
	ConcernTypeGeneral         ConcernType = "GENERAL"
	ConcernTypeSafety          ConcernType = "SAFETY"
	ConcernTypeEmergency       ConcernType = "EMERGENCY"
	ConcernTypeOther           ConcernType = "OTHER"
)

// Concern is the aggregate routed through the assignment and escalation
// engine. Status, priority and assignment fields are owned by the workflow
// orchestrator; creation happens at the submission endpoint.
type Concern struct {
	ID                string
	ExternalKey       string
	SubmitterID       string
	DepartmentID      string
	FacilityID        *string
	Subject           string
	Description       string
	Type              ConcernType
	Status            ConcernStatus
	Priority          ConcernPriority
	AssignedTo        *string
	EscalatedAt       *time.Time
	EscalationReason  *string
	OverdueAt         *time.Time
	ReassignedAt      *time.Time
	AutoApproved      bool
	AutoClosed        bool
	ClosedBy          *string
	ApprovedAt        *time.Time
	ResolvedAt        *time.Time
	StudentResolvedAt *time.Time
	Rating            *int
	Archived          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Active reports whether the concern still counts toward staff workload.
func (c *Concern) Active() bool {
	if c.Archived {
		return false
	}
	return !c.Status.Terminal()
}

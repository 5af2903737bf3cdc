package events

import (
	"time"

	"github.com/studentlink/concern-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventConcernSubmitted       EventType = "concern_submitted"
	EventConcernStatusChanged   EventType = "concern_status_changed"
	EventConcernPriorityChanged EventType = "concern_priority_changed"
	EventConcernAssigned        EventType = "concern_assigned"
	EventConcernEscalated       EventType = "concern_escalated"
	EventConcernOverdue         EventType = "concern_overdue"
	EventConcernClosed          EventType = "concern_closed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.ActorType `json:"type"`
	UserID  *string          `json:"user_id,omitempty"`
	StaffID *string          `json:"staff_id,omitempty"`
}

// SystemActor labels automated engine decisions.
func SystemActor() Actor {
	return Actor{Type: domain.ActorTypeSystem}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ConcernID string      `json:"concern_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ConcernSubmittedPayload payload.
type ConcernSubmittedPayload struct {
	DepartmentID string                 `json:"department_id"`
	Type         domain.ConcernType     `json:"concern_type"`
	Priority     domain.ConcernPriority `json:"priority"`
	Subject      string                 `json:"subject"`
}

// ConcernStatusChangedPayload payload.
type ConcernStatusChangedPayload struct {
	OldStatus domain.ConcernStatus `json:"old_status"`
	NewStatus domain.ConcernStatus `json:"new_status"`
	Auto      bool                 `json:"auto"`
}

// ConcernPriorityChangedPayload payload.
type ConcernPriorityChangedPayload struct {
	OldPriority domain.ConcernPriority `json:"old_priority"`
	NewPriority domain.ConcernPriority `json:"new_priority"`
	Confidence  float64                `json:"confidence"`
	Reasons     []string               `json:"reasons,omitempty"`
}

// ConcernAssignedPayload payload.
type ConcernAssignedPayload struct {
	AssigneeStaffID *string                `json:"assignee_staff_id,omitempty"`
	Score           float64                `json:"score"`
	CrossDepartment bool                   `json:"cross_department"`
	AssignmentType  *domain.AssignmentType `json:"assignment_type,omitempty"`
}

// ConcernEscalatedPayload payload.
type ConcernEscalatedPayload struct {
	Reason      string  `json:"reason"`
	NewAssignee *string `json:"new_assignee,omitempty"`
}

// ConcernOverduePayload payload.
type ConcernOverduePayload struct {
	NewAssignee *string `json:"new_assignee,omitempty"`
}

// ConcernClosedPayload payload.
type ConcernClosedPayload struct {
	ClosedBy string `json:"closed_by"`
	Auto     bool   `json:"auto"`
}

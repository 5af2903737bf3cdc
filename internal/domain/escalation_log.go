package domain

import "time"

// EscalationKind separates threshold-escalation entries from overdue entries.
type EscalationKind string

const (
	EscalationKindEscalated EscalationKind = "ESCALATED"
	EscalationKindOverdue   EscalationKind = "OVERDUE"
)

// EscalationLog records one escalation or overdue event for audit.
type EscalationLog struct {
	ID               string
	ConcernID        string
	Kind             EscalationKind
	Reason           string
	PreviousAssignee *string
	NewAssignee      *string
	CreatedAt        time.Time
}

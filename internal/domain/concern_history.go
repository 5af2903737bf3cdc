package domain

import "time"

// ChangeType enumerates audited concern mutations.
type ChangeType string

const (
	ChangeTypeStatus   ChangeType = "STATUS"
	ChangeTypePriority ChangeType = "PRIORITY"
	ChangeTypeAssignee ChangeType = "ASSIGNEE"
)

// ActorType distinguishes who performed a change.
type ActorType string

const (
	ActorTypeStudent ActorType = "STUDENT"
	ActorTypeStaff   ActorType = "STAFF"
	ActorTypeSystem  ActorType = "SYSTEM"
)

// ConcernHistory is an audit record of a single field change.
type ConcernHistory struct {
	ID            string
	ConcernID     string
	ChangedByType ActorType
	ChangedByID   *string
	ChangeType    ChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}

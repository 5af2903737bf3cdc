package dto

import (
	"time"

	"github.com/studentlink/concern-service/internal/domain"
)

// SubmitConcernRequest payload.
type SubmitConcernRequest struct {
	SubmitterID  string                 `json:"submitter_id"`
	DepartmentID string                 `json:"department_id"`
	FacilityID   *string                `json:"facility_id"`
	Subject      string                 `json:"subject"`
	Description  string                 `json:"description"`
	Type         domain.ConcernType     `json:"type"`
	Priority     domain.ConcernPriority `json:"priority"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status    domain.ConcernStatus `json:"status"`
	ActorType domain.ActorType     `json:"actor_type"`
	ActorID   *string              `json:"actor_id"`
}

// ConcernResponse is the full concern view.
type ConcernResponse struct {
	ID                string                 `json:"id"`
	ExternalKey       string                 `json:"external_key"`
	SubmitterID       string                 `json:"submitter_id"`
	DepartmentID      string                 `json:"department_id"`
	FacilityID        *string                `json:"facility_id,omitempty"`
	Subject           string                 `json:"subject"`
	Description       string                 `json:"description"`
	Type              domain.ConcernType     `json:"type"`
	Status            domain.ConcernStatus   `json:"status"`
	Priority          domain.ConcernPriority `json:"priority"`
	AssignedTo        *string                `json:"assigned_to,omitempty"`
	EscalatedAt       *time.Time             `json:"escalated_at,omitempty"`
	EscalationReason  *string                `json:"escalation_reason,omitempty"`
	OverdueAt         *time.Time             `json:"overdue_at,omitempty"`
	ReassignedAt      *time.Time             `json:"reassigned_at,omitempty"`
	AutoApproved      bool                   `json:"auto_approved"`
	AutoClosed        bool                   `json:"auto_closed"`
	ApprovedAt        *time.Time             `json:"approved_at,omitempty"`
	ResolvedAt        *time.Time             `json:"resolved_at,omitempty"`
	StudentResolvedAt *time.Time             `json:"student_resolved_at,omitempty"`
	Rating            *int                   `json:"rating,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// FromConcern maps the domain aggregate to the response shape.
func FromConcern(concern *domain.Concern) ConcernResponse {
	return ConcernResponse{
		ID:                concern.ID,
		ExternalKey:       concern.ExternalKey,
		SubmitterID:       concern.SubmitterID,
		DepartmentID:      concern.DepartmentID,
		FacilityID:        concern.FacilityID,
		Subject:           concern.Subject,
		Description:       concern.Description,
		Type:              concern.Type,
		Status:            concern.Status,
		Priority:          concern.Priority,
		AssignedTo:        concern.AssignedTo,
		EscalatedAt:       concern.EscalatedAt,
		EscalationReason:  concern.EscalationReason,
		OverdueAt:         concern.OverdueAt,
		ReassignedAt:      concern.ReassignedAt,
		AutoApproved:      concern.AutoApproved,
		AutoClosed:        concern.AutoClosed,
		ApprovedAt:        concern.ApprovedAt,
		ResolvedAt:        concern.ResolvedAt,
		StudentResolvedAt: concern.StudentResolvedAt,
		Rating:            concern.Rating,
		CreatedAt:         concern.CreatedAt,
		UpdatedAt:         concern.UpdatedAt,
	}
}

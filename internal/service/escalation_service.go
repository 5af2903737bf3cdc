package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studentlink/concern-service/internal/config"
	"github.com/studentlink/concern-service/internal/domain"
	"github.com/studentlink/concern-service/internal/events"
	"github.com/studentlink/concern-service/internal/observability"
	"github.com/studentlink/concern-service/internal/repository"
	apperrors "github.com/studentlink/concern-service/pkg/util/errorutil"
)

const escalationReasonThreshold = "response time threshold exceeded"

// SweepReport summarizes one escalation sweep.
type SweepReport struct {
	Scanned       int
	Escalated     int
	MarkedOverdue int
	Failed        int
}

// EscalationService detects concerns past their per-priority time
// thresholds and escalates or marks them overdue. The escalated_at and
// overdue_at null-check-and-set guards in the repository make the sweep
// idempotent under concurrent runs; escalation and overdue are independent
// conditions and may both fire for the same concern.
type EscalationService struct {
	concerns    repository.ConcernRepository
	departments repository.DepartmentRepository
	escalations repository.EscalationLogRepository
	assigner    *AssignmentService
	notifier    Notifier
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	cfg         config.EscalationConfig
	now         func() time.Time
}

// EscalationDependencies bundles collaborators.
type EscalationDependencies struct {
	ConcernRepo    repository.ConcernRepository
	DepartmentRepo repository.DepartmentRepository
	EscalationRepo repository.EscalationLogRepository
	Assigner       *AssignmentService
	Notifier       Notifier
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	Config         config.EscalationConfig
}

// NewEscalationService creates the monitor.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	return &EscalationService{
		concerns:    deps.ConcernRepo,
		departments: deps.DepartmentRepo,
		escalations: deps.EscalationRepo,
		assigner:    deps.Assigner,
		notifier:    deps.Notifier,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		cfg:         deps.Config,
		now:         time.Now,
	}
}

var sweepStatuses = []domain.ConcernStatus{
	domain.ConcernStatusPending,
	domain.ConcernStatusApproved,
	domain.ConcernStatusInProgress,
}

// Sweep runs one periodic pass. Failures are isolated per concern: one bad
// item never aborts the rest of the sweep.
func (s *EscalationService) Sweep(ctx context.Context) SweepReport {
	var report SweepReport

	assigned, err := s.concerns.ListWithFilter(ctx, repository.ConcernFilter{
		Statuses:    sweepStatuses,
		HasAssignee: ptrBool(true),
		Archived:    ptrBool(false),
		Limit:       500,
	})
	if err != nil {
		s.logger.Error("escalation sweep: listing assigned concerns failed", zap.Error(err))
		return report
	}
	for i := range assigned {
		concern := assigned[i]
		report.Scanned++
		escalated, overdue, err := s.checkTimeThresholds(ctx, &concern)
		if err != nil {
			report.Failed++
			s.logger.Warn("escalation sweep item failed",
				zap.String("concern_id", concern.ID), zap.Error(err))
			continue
		}
		if escalated {
			report.Escalated++
		}
		if overdue {
			report.MarkedOverdue++
		}
	}

	// Priority-based triggers run over unassigned concerns as well.
	unassigned, err := s.concerns.ListWithFilter(ctx, repository.ConcernFilter{
		Statuses:    sweepStatuses,
		HasAssignee: ptrBool(false),
		Archived:    ptrBool(false),
		Priorities:  []domain.ConcernPriority{domain.ConcernPriorityUrgent, domain.ConcernPriorityHigh},
		Limit:       500,
	})
	if err != nil {
		s.logger.Error("escalation sweep: listing unassigned concerns failed", zap.Error(err))
		return report
	}
	for i := range unassigned {
		concern := unassigned[i]
		report.Scanned++
		escalated, err := s.CheckPriorityTriggers(ctx, &concern)
		if err != nil {
			report.Failed++
			s.logger.Warn("priority trigger check failed",
				zap.String("concern_id", concern.ID), zap.Error(err))
			continue
		}
		if escalated {
			report.Escalated++
		}
	}

	return report
}

// CheckConcern runs the time- and priority-based trigger checks for a
// single concern, outside the periodic sweep. Invoked synchronously by the
// orchestrator on create/update events.
func (s *EscalationService) CheckConcern(ctx context.Context, concern *domain.Concern) error {
	if concern.Archived || concern.Status.Terminal() {
		return nil
	}
	if _, err := s.CheckPriorityTriggers(ctx, concern); err != nil {
		return err
	}
	if concern.AssignedTo != nil {
		if _, _, err := s.checkTimeThresholds(ctx, concern); err != nil {
			return err
		}
	}
	return nil
}

// CheckPriorityTriggers escalates urgent concerns with no assignee
// immediately, and high-priority concerns unassigned past the configured
// age. Both converge on the shared escalation routine.
func (s *EscalationService) CheckPriorityTriggers(ctx context.Context, concern *domain.Concern) (bool, error) {
	if concern.AssignedTo != nil {
		return false, nil
	}
	switch concern.Priority {
	case domain.ConcernPriorityUrgent:
		return s.escalate(ctx, concern, "urgent concern has no assignee")
	case domain.ConcernPriorityHigh:
		age := s.now().Sub(concern.CreatedAt)
		if age >= time.Duration(s.cfg.UnassignedHighHours)*time.Hour {
			return s.escalate(ctx, concern, fmt.Sprintf("high priority concern unassigned for %dh", s.cfg.UnassignedHighHours))
		}
	}
	return false, nil
}

func (s *EscalationService) checkTimeThresholds(ctx context.Context, concern *domain.Concern) (escalated, overdue bool, err error) {
	age := s.now().Sub(concern.CreatedAt)

	if concern.EscalatedAt == nil && age > s.escalationThreshold(concern.Priority) {
		escalated, err = s.escalate(ctx, concern, escalationReasonThreshold)
		if err != nil {
			return escalated, false, err
		}
	}

	if concern.OverdueAt == nil && age > s.overdueThreshold(concern.Priority) {
		overdue, err = s.markOverdue(ctx, concern)
		if err != nil {
			return escalated, overdue, err
		}
	}
	return escalated, overdue, nil
}

// escalate applies the atomic escalated_at guard, notifies the department
// head, attempts same-department reassignment and records the log entry.
// Only the guard and the state mutation can fail the step; collaborator
// errors are downgraded to warnings.
func (s *EscalationService) escalate(ctx context.Context, concern *domain.Concern, reason string) (bool, error) {
	at := s.now()
	applied, err := s.concerns.MarkEscalated(ctx, concern.ID, reason, at)
	if err != nil {
		return false, err
	}
	if !applied {
		// already escalated by a previous sweep or a concurrent one
		return false, nil
	}
	concern.EscalatedAt = &at
	concern.EscalationReason = &reason
	s.metrics.RecordEngine("escalations")

	s.notifyDepartmentHead(ctx, concern, SeverityNormal,
		"Concern escalated",
		fmt.Sprintf("Concern %s escalated: %s", concern.ExternalKey, reason))

	// Same-department reassignment runs for unassigned concerns too: the
	// priority triggers fire exactly once per concern, so skipping it here
	// would leave an unassigned urgent concern unassigned for good.
	previousAssignee := concern.AssignedTo
	var newAssignee *string
	target, rerr := s.assigner.ReassignLeastLoaded(ctx, concern, s.cfg.ReassignMaxActive)
	if rerr != nil {
		s.logger.Warn("escalation reassignment failed",
			zap.String("concern_id", concern.ID),
			zap.Error(apperrors.NewAssignmentError("least-loaded reassignment", rerr)))
	} else if target != nil {
		newAssignee = &target.ID
	}

	s.recordLog(ctx, concern.ID, domain.EscalationKindEscalated, reason, previousAssignee, newAssignee)
	s.publish(ctx, events.EventConcernEscalated, concern.ID, events.ConcernEscalatedPayload{
		Reason:      reason,
		NewAssignee: newAssignee,
	})
	return true, nil
}

func (s *EscalationService) markOverdue(ctx context.Context, concern *domain.Concern) (bool, error) {
	at := s.now()
	applied, err := s.concerns.MarkOverdue(ctx, concern.ID, at)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}
	concern.OverdueAt = &at
	s.metrics.RecordEngine("overdue")

	s.notifyDepartmentHead(ctx, concern, SeverityUrgent,
		"Concern overdue",
		fmt.Sprintf("Concern %s exceeded its overdue threshold", concern.ExternalKey))

	previousAssignee := concern.AssignedTo
	var newAssignee *string
	outcome, err := s.assigner.CrossDepartmentRescue(ctx, concern,
		s.assigner.cfg.CrossDepartmentThreshold, s.cfg.OverdueMaxActive, domain.AssignmentTypeOverdueEscalation)
	if err != nil {
		s.logger.Warn("overdue cross-department reassignment failed",
			zap.String("concern_id", concern.ID),
			zap.Error(apperrors.NewAssignmentError("cross-department rescue", err)))
	} else if outcome != nil && outcome.Assigned {
		newAssignee = &outcome.Staff.ID
	}

	s.recordLog(ctx, concern.ID, domain.EscalationKindOverdue, "overdue threshold exceeded", previousAssignee, newAssignee)
	s.publish(ctx, events.EventConcernOverdue, concern.ID, events.ConcernOverduePayload{NewAssignee: newAssignee})
	return true, nil
}

func (s *EscalationService) escalationThreshold(priority domain.ConcernPriority) time.Duration {
	hours := map[domain.ConcernPriority]int{
		domain.ConcernPriorityUrgent: s.cfg.UrgentHours,
		domain.ConcernPriorityHigh:   s.cfg.HighHours,
		domain.ConcernPriorityMedium: s.cfg.MediumHours,
		domain.ConcernPriorityLow:    s.cfg.LowHours,
	}[priority]
	if hours <= 0 {
		hours = s.cfg.MediumHours
	}
	return time.Duration(hours) * time.Hour
}

func (s *EscalationService) overdueThreshold(priority domain.ConcernPriority) time.Duration {
	hours := map[domain.ConcernPriority]int{
		domain.ConcernPriorityUrgent: s.cfg.OverdueUrgentHours,
		domain.ConcernPriorityHigh:   s.cfg.OverdueHighHours,
		domain.ConcernPriorityMedium: s.cfg.OverdueMediumHours,
		domain.ConcernPriorityLow:    s.cfg.OverdueLowHours,
	}[priority]
	if hours <= 0 {
		hours = s.cfg.OverdueMediumHours
	}
	return time.Duration(hours) * time.Hour
}

func (s *EscalationService) notifyDepartmentHead(ctx context.Context, concern *domain.Concern, severity NotifySeverity, title, body string) {
	head, err := s.departments.GetHead(ctx, concern.DepartmentID)
	if err != nil {
		s.logger.Warn("no department head found; skipping notification",
			zap.String("department_id", concern.DepartmentID), zap.Error(err))
		return
	}
	if err := s.notifier.Notify(ctx, head.ID, severity, title, body, map[string]string{
		"concern_id": concern.ID,
		"priority":   string(concern.Priority),
	}); err != nil {
		s.logger.Warn("department head notification failed",
			zap.String("concern_id", concern.ID), zap.Error(err))
	}
}

func (s *EscalationService) recordLog(ctx context.Context, concernID string, kind domain.EscalationKind, reason string, previous, next *string) {
	err := s.escalations.Create(ctx, &domain.EscalationLog{
		ConcernID:        concernID,
		Kind:             kind,
		Reason:           reason,
		PreviousAssignee: previous,
		NewAssignee:      next,
	})
	if err != nil {
		s.logger.Warn("failed to record escalation log",
			zap.String("concern_id", concernID), zap.Error(err))
	}
}

func (s *EscalationService) publish(ctx context.Context, eventType events.EventType, concernID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ConcernID: concernID,
		Actor:     events.SystemActor(),
		Timestamp: s.now(),
		Payload:   payload,
	})
}

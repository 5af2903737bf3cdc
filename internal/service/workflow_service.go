package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/studentlink/concern-service/internal/config"
	"github.com/studentlink/concern-service/internal/domain"
	"github.com/studentlink/concern-service/internal/events"
	"github.com/studentlink/concern-service/internal/repository"
	apperrors "github.com/studentlink/concern-service/pkg/util/errorutil"
)

// NotificationPlan describes the fan-out computed for a concern update:
// which channels, how soon, and whether the department head is included.
// Delayed dispatch is delegated to the notification transport via metadata.
type NotificationPlan struct {
	Immediate             bool
	Delay                 time.Duration
	Channels              []string
	IncludeDepartmentHead bool
}

// SubmitInput describes a new concern submission.
type SubmitInput struct {
	SubmitterID  string
	DepartmentID string
	FacilityID   *string
	Subject      string
	Description  string
	Type         domain.ConcernType
	Priority     domain.ConcernPriority
}

// WorkflowService is the per-concern lifecycle orchestrator. It sequences
// classification, auto-approval, assignment, notification routing and
// auto-closure, calling the classifier, scorer and escalation monitor plus
// the external collaborators. Collaborator failures are downgraded to
// logged warnings; only the concern's own state writes propagate errors.
type WorkflowService struct {
	concerns    repository.ConcernRepository
	departments repository.DepartmentRepository
	history     repository.ConcernHistoryRepository
	classifier  *ClassifierService
	assigner    *AssignmentService
	escalation  *EscalationService
	notifier    Notifier
	chat        ChatRoomProvisioner
	reminders   ReminderScheduler
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	cfg         config.WorkflowConfig
	classCfg    config.ClassifierConfig
	now         func() time.Time
}

// WorkflowDependencies bundles collaborators.
type WorkflowDependencies struct {
	ConcernRepo    repository.ConcernRepository
	DepartmentRepo repository.DepartmentRepository
	HistoryRepo    repository.ConcernHistoryRepository
	Classifier     *ClassifierService
	Assigner       *AssignmentService
	Escalation     *EscalationService
	Notifier       Notifier
	ChatRooms      ChatRoomProvisioner
	Reminders      ReminderScheduler
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Config         config.WorkflowConfig
	ClassifierCfg  config.ClassifierConfig
}

// NewWorkflowService constructs the orchestrator.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	return &WorkflowService{
		concerns:    deps.ConcernRepo,
		departments: deps.DepartmentRepo,
		history:     deps.HistoryRepo,
		classifier:  deps.Classifier,
		assigner:    deps.Assigner,
		escalation:  deps.Escalation,
		notifier:    deps.Notifier,
		chat:        deps.ChatRooms,
		reminders:   deps.Reminders,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		cfg:         deps.Config,
		classCfg:    deps.ClassifierCfg,
		now:         time.Now,
	}
}

// Submit creates a concern and runs the creation-side orchestration:
// classification, auto-approval, assignment and notification fan-out.
func (s *WorkflowService) Submit(ctx context.Context, input SubmitInput) (*domain.Concern, error) {
	dept, err := s.departments.GetByID(ctx, input.DepartmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("department", map[string]any{"department_id": input.DepartmentID})
		}
		return nil, apperrors.NewPersistenceError(err)
	}
	if !dept.IsActive {
		return nil, apperrors.NewConflict("department inactive", map[string]any{"department_id": dept.ID})
	}

	concern := &domain.Concern{
		ExternalKey:  generateConcernKey(),
		SubmitterID:  input.SubmitterID,
		DepartmentID: input.DepartmentID,
		FacilityID:   input.FacilityID,
		Subject:      strings.TrimSpace(input.Subject),
		Description:  strings.TrimSpace(input.Description),
		Type:         input.Type,
		Status:       domain.ConcernStatusPending,
		Priority:     input.Priority,
	}
	if concern.Type == "" {
		concern.Type = domain.ConcernTypeGeneral
	}
	if concern.Priority == "" {
		concern.Priority = domain.ConcernPriorityMedium
	}

	if err := s.concerns.Create(ctx, concern); err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	s.publish(ctx, events.EventConcernSubmitted, concern.ID, events.ConcernSubmittedPayload{
		DepartmentID: concern.DepartmentID,
		Type:         concern.Type,
		Priority:     concern.Priority,
		Subject:      concern.Subject,
	})

	if err := s.Orchestrate(ctx, concern); err != nil {
		return nil, err
	}
	return concern, nil
}

// Orchestrate runs the per-concern sequence for the current state:
// classification and auto-approval while pending, escalation trigger
// checks, assignment if needed, and notification fan-out. Invoked on
// creation and on relevant status changes.
func (s *WorkflowService) Orchestrate(ctx context.Context, concern *domain.Concern) error {
	var analysis *domain.PriorityAnalysisResult

	if concern.Status == domain.ConcernStatusPending {
		result := s.classifier.Analyze(concern.Subject, concern.Description, concern.Priority)
		analysis = &result
		if err := s.applyClassification(ctx, concern, result); err != nil {
			return err
		}
		if err := s.maybeAutoApprove(ctx, concern, result); err != nil {
			return err
		}
	}

	if concern.AssignedTo == nil && !concern.Status.Terminal() {
		if _, err := s.assigner.AutoAssign(ctx, concern); err != nil {
			// assignment failure never blocks the workflow; the concern
			// stays unassigned for manual triage
			s.logger.Warn("auto assignment failed",
				zap.String("concern_id", concern.ID),
				zap.Error(apperrors.NewAssignmentError("auto assignment", err)))
		}
	}

	switch concern.Status {
	case domain.ConcernStatusPending, domain.ConcernStatusApproved, domain.ConcernStatusInProgress:
		if err := s.escalation.CheckConcern(ctx, concern); err != nil {
			s.logger.Warn("escalation trigger check failed",
				zap.String("concern_id", concern.ID),
				zap.Error(apperrors.NewEscalationError("trigger check", err)))
		}
	}

	s.dispatchNotifications(ctx, concern, analysis)
	s.scheduleFollowUp(ctx, concern)
	return nil
}

// UpdateStatus validates and applies a lifecycle transition, then re-runs
// the update-side orchestration steps.
func (s *WorkflowService) UpdateStatus(ctx context.Context, concernID string, next domain.ConcernStatus, actorType domain.ActorType, actorID *string) (*domain.Concern, error) {
	concern, err := s.concerns.GetByID(ctx, concernID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("concern", map[string]any{"concern_id": concernID})
		}
		return nil, apperrors.NewPersistenceError(err)
	}
	if !domain.CanTransition(concern.Status, next) {
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{
			"from": concern.Status,
			"to":   next,
		})
	}

	old := concern.Status
	concern.Status = next
	at := s.now()
	switch next {
	case domain.ConcernStatusApproved:
		concern.ApprovedAt = &at
	case domain.ConcernStatusStaffResolved:
		concern.ResolvedAt = &at
	case domain.ConcernStatusStudentConfirmed:
		concern.StudentResolvedAt = &at
	case domain.ConcernStatusClosed:
		if actorID != nil {
			concern.ClosedBy = actorID
		}
	}
	if err := s.concerns.Update(ctx, concern); err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	s.recordStatusChange(ctx, concern.ID, actorType, actorID, old, next)
	s.publish(ctx, events.EventConcernStatusChanged, concern.ID, events.ConcernStatusChangedPayload{
		OldStatus: old,
		NewStatus: next,
	})

	if err := s.Orchestrate(ctx, concern); err != nil {
		return nil, err
	}
	return concern, nil
}

// AutoCloseExpired closes student-confirmed concerns whose confirmation
// aged past the auto-close window. Returns the number closed.
func (s *WorkflowService) AutoCloseExpired(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-time.Duration(s.cfg.AutoCloseDays) * 24 * time.Hour)
	candidates, err := s.concerns.ListWithFilter(ctx, repository.ConcernFilter{
		Statuses:              []domain.ConcernStatus{domain.ConcernStatusStudentConfirmed},
		StudentResolvedBefore: &cutoff,
		Archived:              ptrBool(false),
		Limit:                 500,
	})
	if err != nil {
		return 0, apperrors.NewPersistenceError(err)
	}

	closed := 0
	for i := range candidates {
		concern := candidates[i]
		if err := s.concerns.Close(ctx, concern.ID, "system", true, s.now()); err != nil {
			s.logger.Warn("auto close failed",
				zap.String("concern_id", concern.ID), zap.Error(err))
			continue
		}
		closed++
		s.recordStatusChange(ctx, concern.ID, domain.ActorTypeSystem, nil, concern.Status, domain.ConcernStatusClosed)
		s.publish(ctx, events.EventConcernClosed, concern.ID, events.ConcernClosedPayload{
			ClosedBy: "system",
			Auto:     true,
		})
	}
	return closed, nil
}

// NotificationPlanFor derives the channel set and immediacy from the
// priority and the business-hours/weekend flags at the given time.
func (s *WorkflowService) NotificationPlanFor(concern *domain.Concern, at time.Time) NotificationPlan {
	business := s.isBusinessHours(at)
	plan := NotificationPlan{}

	switch concern.Priority {
	case domain.ConcernPriorityUrgent:
		plan.Immediate = true
		plan.Channels = []string{"push", "email", "sms"}
		plan.IncludeDepartmentHead = true
	case domain.ConcernPriorityHigh:
		plan.Channels = []string{"push", "email"}
		if business {
			plan.Immediate = true
			plan.IncludeDepartmentHead = true
		} else {
			plan.Delay = time.Duration(s.cfg.MediumDelayMinutes) * time.Minute
		}
	case domain.ConcernPriorityMedium:
		plan.Channels = []string{"push"}
		if business {
			plan.Immediate = true
		} else {
			plan.Delay = time.Duration(s.cfg.MediumDelayMinutes) * time.Minute
		}
	default:
		plan.Channels = []string{"push"}
		plan.Delay = time.Duration(s.cfg.LowDelayMinutes) * time.Minute
	}

	if concern.EscalatedAt != nil {
		plan.IncludeDepartmentHead = true
	}
	return plan
}

func (s *WorkflowService) applyClassification(ctx context.Context, concern *domain.Concern, result domain.PriorityAnalysisResult) error {
	if !result.Upgrades(concern.Priority, s.classCfg.ConfidenceFloor) {
		return nil
	}
	old := concern.Priority
	if err := s.concerns.UpdatePriority(ctx, concern.ID, result.DetectedPriority); err != nil {
		return apperrors.NewPersistenceError(err)
	}
	concern.Priority = result.DetectedPriority
	s.recordPriorityChange(ctx, concern.ID, old, concern.Priority)
	s.publish(ctx, events.EventConcernPriorityChanged, concern.ID, events.ConcernPriorityChangedPayload{
		OldPriority: old,
		NewPriority: concern.Priority,
		Confidence:  result.Confidence,
		Reasons:     result.Reasons,
	})
	return nil
}

// maybeAutoApprove approves low-risk, high-confidence submissions without
// manual review, provisions the chat room and notifies the submitter.
func (s *WorkflowService) maybeAutoApprove(ctx context.Context, concern *domain.Concern, result domain.PriorityAnalysisResult) error {
	if concern.Priority == domain.ConcernPriorityUrgent || concern.Priority == domain.ConcernPriorityHigh {
		return nil
	}
	if concern.Type == domain.ConcernTypeSafety || concern.Type == domain.ConcernTypeEmergency {
		return nil
	}
	if result.Confidence < s.cfg.AutoApprovalConfidence || result.UrgentKeywordPresent {
		return nil
	}

	old := concern.Status
	at := s.now()
	concern.Status = domain.ConcernStatusApproved
	concern.ApprovedAt = &at
	concern.AutoApproved = true
	if err := s.concerns.Update(ctx, concern); err != nil {
		return apperrors.NewPersistenceError(err)
	}
	s.recordStatusChange(ctx, concern.ID, domain.ActorTypeSystem, nil, old, concern.Status)
	s.publish(ctx, events.EventConcernStatusChanged, concern.ID, events.ConcernStatusChangedPayload{
		OldStatus: old,
		NewStatus: concern.Status,
		Auto:      true,
	})

	participants := []string{concern.SubmitterID}
	if concern.AssignedTo != nil {
		participants = append(participants, *concern.AssignedTo)
	}
	if err := s.chat.Provision(ctx, concern.ID, participants); err != nil {
		s.logger.Warn("chat room provisioning failed",
			zap.String("concern_id", concern.ID), zap.Error(err))
	}
	if err := s.notifier.Notify(ctx, concern.SubmitterID, SeverityNormal,
		"Concern approved",
		fmt.Sprintf("Your concern %s was approved automatically", concern.ExternalKey),
		map[string]string{"concern_id": concern.ID}); err != nil {
		s.logger.Warn("submitter notification failed",
			zap.String("concern_id", concern.ID), zap.Error(err))
	}
	return nil
}

func (s *WorkflowService) dispatchNotifications(ctx context.Context, concern *domain.Concern, analysis *domain.PriorityAnalysisResult) {
	plan := s.NotificationPlanFor(concern, s.now())

	metadata := map[string]string{
		"concern_id": concern.ID,
		"priority":   string(concern.Priority),
		"channels":   strings.Join(plan.Channels, ","),
	}
	if !plan.Immediate {
		metadata["deliver_after"] = s.now().Add(plan.Delay).Format(time.RFC3339)
	}
	if analysis != nil && len(analysis.Reasons) > 0 {
		metadata["classification"] = strings.Join(analysis.Reasons, "; ")
	}
	severity := SeverityNormal
	if concern.Priority == domain.ConcernPriorityUrgent {
		severity = SeverityUrgent
	}

	recipients := []string{concern.SubmitterID}
	if concern.AssignedTo != nil {
		recipients = append(recipients, *concern.AssignedTo)
	}
	if plan.IncludeDepartmentHead {
		if head, err := s.departments.GetHead(ctx, concern.DepartmentID); err == nil {
			recipients = append(recipients, head.ID)
		} else {
			s.logger.Warn("no department head for notification fan-out",
				zap.String("department_id", concern.DepartmentID), zap.Error(err))
		}
	}

	title := fmt.Sprintf("Concern %s update", concern.ExternalKey)
	body := fmt.Sprintf("Status %s, priority %s", concern.Status, concern.Priority)
	for _, recipient := range recipients {
		if err := s.notifier.Notify(ctx, recipient, severity, title, body, metadata); err != nil {
			s.logger.Warn("notification dispatch failed",
				zap.String("recipient", recipient),
				zap.String("concern_id", concern.ID), zap.Error(err))
		}
	}
}

var followUpDelayHours = map[domain.ConcernType]int{
	domain.ConcernTypeAcademic:        7 * 24,
	domain.ConcernTypeFinancial:       5 * 24,
	domain.ConcernTypeStudentServices: 5 * 24,
	domain.ConcernTypeGeneral:         5 * 24,
	domain.ConcernTypeTechnical:       3 * 24,
	domain.ConcernTypeFacility:        3 * 24,
	domain.ConcernTypeSafety:          24,
	domain.ConcernTypeEmergency:       24,
	domain.ConcernTypeDisciplinary:    24,
	domain.ConcernTypeOther:           7 * 24,
}

func (s *WorkflowService) scheduleFollowUp(ctx context.Context, concern *domain.Concern) {
	if concern.Status.Terminal() {
		return
	}
	delay := followUpDelayHours[concern.Type]
	if delay == 0 {
		delay = 7 * 24
	}
	if err := s.reminders.Schedule(ctx, concern.ID, delay); err != nil {
		s.logger.Warn("follow-up scheduling failed",
			zap.String("concern_id", concern.ID), zap.Error(err))
	}
}

func (s *WorkflowService) isBusinessHours(at time.Time) bool {
	switch at.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := at.Hour()
	return hour >= s.cfg.BusinessStartHour && hour < s.cfg.BusinessEndHour
}

func (s *WorkflowService) recordStatusChange(ctx context.Context, concernID string, actorType domain.ActorType, actorID *string, old, next domain.ConcernStatus) {
	err := s.history.Create(ctx, &domain.ConcernHistory{
		ConcernID:     concernID,
		ChangedByType: actorType,
		ChangedByID:   actorID,
		ChangeType:    domain.ChangeTypeStatus,
		OldValue:      map[string]any{"status": old},
		NewValue:      map[string]any{"status": next},
	})
	if err != nil {
		s.logger.Warn("failed to record status history",
			zap.String("concern_id", concernID), zap.Error(err))
	}
}

func (s *WorkflowService) recordPriorityChange(ctx context.Context, concernID string, old, next domain.ConcernPriority) {
	err := s.history.Create(ctx, &domain.ConcernHistory{
		ConcernID:     concernID,
		ChangedByType: domain.ActorTypeSystem,
		ChangeType:    domain.ChangeTypePriority,
		OldValue:      map[string]any{"priority": old},
		NewValue:      map[string]any{"priority": next},
	})
	if err != nil {
		s.logger.Warn("failed to record priority history",
			zap.String("concern_id", concernID), zap.Error(err))
	}
}

func (s *WorkflowService) publish(ctx context.Context, eventType events.EventType, concernID string, payload any) {
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

func generateConcernKey() string {
	return "CRN-" + strings.ToUpper(uuid.NewString()[:8])
}

package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studentlink/concern-service/internal/config"
	"github.com/studentlink/concern-service/internal/domain"
	"github.com/studentlink/concern-service/internal/events"
	"github.com/studentlink/concern-service/internal/observability"
	"github.com/studentlink/concern-service/internal/repository"
)

// responseWindow is the trailing period considered for the historical
// response-time component.
const responseWindow = 30 * 24 * time.Hour

// ScoringPolicy names a weight triple for candidate scoring. The
// in-department and cross-department paths intentionally use different
// triples; do not unify them.
type ScoringPolicy struct {
	Name     string
	Workload float64
	Skill    float64
	Response float64
}

// InDepartmentPolicy weighs workload first.
var InDepartmentPolicy = ScoringPolicy{Name: "in_department", Workload: 0.4, Skill: 0.3, Response: 0.3}

// CrossDepartmentPolicy weighs skill first; shared by the overload balancer.
var CrossDepartmentPolicy = ScoringPolicy{Name: "cross_department", Workload: 0.3, Skill: 0.4, Response: 0.3}

// CandidateScore is one scored staff member.
type CandidateScore struct {
	Staff         domain.StaffMember
	Score         float64
	WorkloadScore float64
	SkillScore    float64
	ResponseScore float64
	ActiveCount   int
	Reasons       []string
}

// AssignmentOutcome reports what AutoAssign decided. A concern left
// unassigned is a valid outcome, not an error.
type AssignmentOutcome struct {
	Assigned        bool
	Staff           *domain.StaffMember
	Score           float64
	CrossDepartment bool
	AssignmentType  *domain.AssignmentType
	Reasons         []string
}

// AssignmentService scores candidate staff against workload, skill and
// historical response time, and executes the selected assignment.
type AssignmentService struct {
	concerns   repository.ConcernRepository
	staff      repository.StaffRepository
	crossDept  repository.CrossDepartmentRepository
	history    repository.ConcernHistoryRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.AssignmentConfig
	now        func() time.Time
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	ConcernRepo   repository.ConcernRepository
	StaffRepo     repository.StaffRepository
	CrossDeptRepo repository.CrossDepartmentRepository
	HistoryRepo   repository.ConcernHistoryRepository
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Config        config.AssignmentConfig
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		concerns:   deps.ConcernRepo,
		staff:      deps.StaffRepo,
		crossDept:  deps.CrossDeptRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		cfg:        deps.Config,
		now:        time.Now,
	}
}

// ScoreCandidates ranks the pool against the concern under the given
// policy. All scores land in [0,1].
func (s *AssignmentService) ScoreCandidates(ctx context.Context, concern *domain.Concern, pool []domain.StaffMember, policy ScoringPolicy) ([]CandidateScore, error) {
	scores := make([]CandidateScore, 0, len(pool))
	since := s.now().Add(-responseWindow)
	for _, staff := range pool {
		active, err := s.concerns.CountActiveByStaff(ctx, staff.ID)
		if err != nil {
			return nil, err
		}
		avgHours, hasHistory, err := s.concerns.AverageResolutionHours(ctx, staff.ID, since)
		if err != nil {
			return nil, err
		}

		candidate := CandidateScore{
			Staff:         staff,
			ActiveCount:   active,
			WorkloadScore: s.workloadScore(active),
			SkillScore:    skillScore(concern.Type, staff.Title),
			ResponseScore: responseScore(avgHours, hasHistory),
		}
		candidate.Score = policy.Workload*candidate.WorkloadScore +
			policy.Skill*candidate.SkillScore +
			policy.Response*candidate.ResponseScore

		if candidate.WorkloadScore > 0.7 {
			candidate.Reasons = append(candidate.Reasons, "low workload")
		}
		if candidate.SkillScore > 0.7 {
			candidate.Reasons = append(candidate.Reasons, "skill match")
		}
		if candidate.ResponseScore > 0.7 {
			candidate.Reasons = append(candidate.Reasons, "fast response time")
		}
		scores = append(scores, candidate)
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores, nil
}

// AutoAssign selects staff for the concern: in-department first, then the
// cross-department fallback pool. No eligible candidate leaves the concern
// unassigned for manual triage.
func (s *AssignmentService) AutoAssign(ctx context.Context, concern *domain.Concern) (*AssignmentOutcome, error) {
	pool, err := s.staff.List(ctx, repository.StaffFilter{
		DepartmentID: &concern.DepartmentID,
		Active:       ptrBool(true),
	})
	if err != nil {
		return nil, err
	}
	scores, err := s.ScoreCandidates(ctx, concern, pool, InDepartmentPolicy)
	if err != nil {
		return nil, err
	}
	if len(scores) > 0 && scores[0].Score > s.cfg.InDepartmentThreshold {
		best := scores[0]
		if err := s.assignDirect(ctx, concern, &best.Staff); err != nil {
			return nil, err
		}
		s.publishAssigned(ctx, concern.ID, best.Staff.ID, best.Score, false, nil)
		return &AssignmentOutcome{Assigned: true, Staff: &best.Staff, Score: best.Score, Reasons: best.Reasons}, nil
	}

	outcome, err := s.crossDepartmentAssign(ctx, concern, s.cfg.CrossDepartmentThreshold, 0, domain.AssignmentTypeCrossDepartment)
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		return outcome, nil
	}

	s.logger.Info("no candidate cleared acceptance threshold; concern left unassigned",
		zap.String("concern_id", concern.ID),
		zap.String("department_id", concern.DepartmentID))
	return &AssignmentOutcome{Assigned: false}, nil
}

// ReassignLeastLoaded moves the concern to the least-loaded active staff
// member of its own department, excluding the current assignee, provided
// the target's active count stays under maxActive. Returns nil when no
// eligible target exists.
func (s *AssignmentService) ReassignLeastLoaded(ctx context.Context, concern *domain.Concern, maxActive int) (*domain.StaffMember, error) {
	pool, err := s.staff.List(ctx, repository.StaffFilter{
		DepartmentID: &concern.DepartmentID,
		Active:       ptrBool(true),
	})
	if err != nil {
		return nil, err
	}

	var target *domain.StaffMember
	lowest := maxActive
	for i := range pool {
		staff := pool[i]
		if concern.AssignedTo != nil && staff.ID == *concern.AssignedTo {
			continue
		}
		active, err := s.concerns.CountActiveByStaff(ctx, staff.ID)
		if err != nil {
			return nil, err
		}
		if active < lowest {
			lowest = active
			target = &pool[i]
		}
	}
	if target == nil {
		return nil, nil
	}

	oldAssignee := concern.AssignedTo
	if err := s.concerns.Assign(ctx, concern.ID, target.ID, true, s.now()); err != nil {
		return nil, err
	}
	concern.AssignedTo = &target.ID
	s.recordAssigneeChange(ctx, concern.ID, oldAssignee, concern.AssignedTo)
	s.publishAssigned(ctx, concern.ID, target.ID, 0, false, nil)
	return target, nil
}

// CrossDepartmentRescue routes the concern to cross-department-enabled
// staff outside its department, capping candidate active counts. Used by
// the overdue path and the overload balancer; the caller supplies the
// acceptance threshold and record tag.
func (s *AssignmentService) CrossDepartmentRescue(ctx context.Context, concern *domain.Concern, threshold float64, maxActive int, assignmentType domain.AssignmentType) (*AssignmentOutcome, error) {
	return s.crossDepartmentAssign(ctx, concern, threshold, maxActive, assignmentType)
}

func (s *AssignmentService) crossDepartmentAssign(ctx context.Context, concern *domain.Concern, threshold float64, maxActive int, assignmentType domain.AssignmentType) (*AssignmentOutcome, error) {
	pool, err := s.staff.List(ctx, repository.StaffFilter{
		ExcludeDepartmentID: &concern.DepartmentID,
		Active:              ptrBool(true),
		CrossDepartment:     ptrBool(true),
	})
	if err != nil {
		return nil, err
	}
	scores, err := s.ScoreCandidates(ctx, concern, pool, CrossDepartmentPolicy)
	if err != nil {
		return nil, err
	}
	for _, candidate := range scores {
		if candidate.Score <= threshold {
			break
		}
		if maxActive > 0 && candidate.ActiveCount >= maxActive {
			continue
		}
		record := &domain.CrossDepartmentAssignment{
			ConcernID:              concern.ID,
			StaffID:                candidate.Staff.ID,
			RequestingDepartmentID: concern.DepartmentID,
			AssignmentType:         assignmentType,
			EstimatedDurationHours: estimatedDurationHours(concern.Priority, concern.Type),
			AssignedAt:             s.now(),
		}
		oldAssignee := concern.AssignedTo
		if err := s.crossDept.AssignWithRecord(ctx, record, oldAssignee != nil); err != nil {
			return nil, err
		}
		staff := candidate.Staff
		concern.AssignedTo = &staff.ID
		s.recordAssigneeChange(ctx, concern.ID, oldAssignee, concern.AssignedTo)
		s.publishAssigned(ctx, concern.ID, staff.ID, candidate.Score, true, &assignmentType)
		return &AssignmentOutcome{
			Assigned:        true,
			Staff:           &staff,
			Score:           candidate.Score,
			CrossDepartment: true,
			AssignmentType:  &assignmentType,
			Reasons:         candidate.Reasons,
		}, nil
	}
	return nil, nil
}

func (s *AssignmentService) assignDirect(ctx context.Context, concern *domain.Concern, staff *domain.StaffMember) error {
	oldAssignee := concern.AssignedTo
	if err := s.concerns.Assign(ctx, concern.ID, staff.ID, oldAssignee != nil, s.now()); err != nil {
		return err
	}
	concern.AssignedTo = &staff.ID
	s.recordAssigneeChange(ctx, concern.ID, oldAssignee, concern.AssignedTo)
	return nil
}

// workloadScore maps an active concern count to [0,1]; zero at or past the
// workload ceiling.
func (s *AssignmentService) workloadScore(active int) float64 {
	max := s.cfg.MaxWorkload
	if max <= 0 {
		max = 5
	}
	score := 1 - float64(active)/float64(max)
	if score < 0 {
		return 0
	}
	return score
}

func skillScore(concernType domain.ConcernType, title string) float64 {
	lowered := strings.ToLower(title)
	for _, kw := range skillKeywordsByType[concernType] {
		if strings.Contains(lowered, kw) {
			return 1.0
		}
	}
	for _, kw := range genericSupportKeywords {
		if strings.Contains(lowered, kw) {
			return 0.6
		}
	}
	return 0.3
}

func responseScore(avgHours float64, hasHistory bool) float64 {
	if !hasHistory {
		return 0.8
	}
	switch {
	case avgHours <= 1:
		return 1.0
	case avgHours <= 2:
		return 0.8
	case avgHours <= 4:
		return 0.6
	case avgHours <= 8:
		return 0.4
	}
	return 0.2
}

// estimatedDurationHours looks up the expected cross-department engagement
// length by priority and concern type.
func estimatedDurationHours(priority domain.ConcernPriority, concernType domain.ConcernType) int {
	base := map[domain.ConcernPriority]int{
		domain.ConcernPriorityUrgent: 4,
		domain.ConcernPriorityHigh:   8,
		domain.ConcernPriorityMedium: 24,
		domain.ConcernPriorityLow:    48,
	}[priority]
	if base == 0 {
		base = 24
	}
	switch concernType {
	case domain.ConcernTypeSafety, domain.ConcernTypeEmergency:
		if base > 2 {
			base /= 2
		}
	case domain.ConcernTypeFacility, domain.ConcernTypeTechnical:
		base += base / 2
	}
	return base
}

func (s *AssignmentService) recordAssigneeChange(ctx context.Context, concernID string, oldAssignee, newAssignee *string) {
	err := s.history.Create(ctx, &domain.ConcernHistory{
		ConcernID:     concernID,
		ChangedByType: domain.ActorTypeSystem,
		ChangeType:    domain.ChangeTypeAssignee,
		OldValue:      map[string]any{"assigned_to": oldAssignee},
		NewValue:      map[string]any{"assigned_to": newAssignee},
	})
	if err != nil {
		s.logger.Warn("failed to record assignment history",
			zap.String("concern_id", concernID), zap.Error(err))
	}
}

// publishAssigned is the common tail of every assignment path; the engine
// counter counts executed assignments, not scoring attempts.
func (s *AssignmentService) publishAssigned(ctx context.Context, concernID, staffID string, score float64, crossDepartment bool, assignmentType *domain.AssignmentType) {
	s.metrics.RecordEngine("assignments")
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventConcernAssigned,
		ConcernID: concernID,
		Actor:     events.SystemActor(),
		Timestamp: s.now(),
		Payload: events.ConcernAssignedPayload{
			AssigneeStaffID: &staffID,
			Score:           score,
			CrossDepartment: crossDepartment,
			AssignmentType:  assignmentType,
		},
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func ptrBool(v bool) *bool {
	return &v
}

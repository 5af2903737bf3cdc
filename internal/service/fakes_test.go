package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/studentlink/concern-service/internal/cache"
	"github.com/studentlink/concern-service/internal/config"
	"github.com/studentlink/concern-service/internal/domain"
	"github.com/studentlink/concern-service/internal/events"
	"github.com/studentlink/concern-service/internal/observability"
	"github.com/studentlink/concern-service/internal/repository"
)

// testNow is a Monday at 10:00, inside business hours.
var testNow = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

// fakeConcernRepo is an in-memory ConcernRepository.
type fakeConcernRepo struct {
	mu       sync.Mutex
	concerns map[string]*domain.Concern
	avgHours map[string]float64
	seq      int
}

func newFakeConcernRepo() *fakeConcernRepo {
	return &fakeConcernRepo{
		concerns: make(map[string]*domain.Concern),
		avgHours: make(map[string]float64),
	}
}

func (r *fakeConcernRepo) add(concern *domain.Concern) *domain.Concern {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if concern.ID == "" {
		concern.ID = fmt.Sprintf("concern-%d", r.seq)
	}
	if concern.ExternalKey == "" {
		concern.ExternalKey = fmt.Sprintf("CRN-%04d", r.seq)
	}
	if concern.CreatedAt.IsZero() {
		concern.CreatedAt = testNow
	}
	concern.UpdatedAt = concern.CreatedAt
	clone := *concern
	r.concerns[concern.ID] = &clone
	return concern
}

func (r *fakeConcernRepo) get(id string) *domain.Concern {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.concerns[id]; ok {
		clone := *c
		return &clone
	}
	return nil
}

func (r *fakeConcernRepo) Create(_ context.Context, concern *domain.Concern) error {
	r.add(concern)
	return nil
}

func (r *fakeConcernRepo) Update(_ context.Context, concern *domain.Concern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.concerns[concern.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *concern
	r.concerns[concern.ID] = &clone
	return nil
}

func (r *fakeConcernRepo) GetByID(_ context.Context, id string) (*domain.Concern, error) {
	if c := r.get(id); c != nil {
		return c, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeConcernRepo) ListWithFilter(_ context.Context, filter repository.ConcernFilter) ([]domain.Concern, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Concern
	for _, c := range r.concerns {
		if filter.SubmitterID != nil && c.SubmitterID != *filter.SubmitterID {
			continue
		}
		if filter.DepartmentID != nil && c.DepartmentID != *filter.DepartmentID {
			continue
		}
		if filter.AssignedTo != nil && (c.AssignedTo == nil || *c.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.HasAssignee != nil && (c.AssignedTo != nil) != *filter.HasAssignee {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, c.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, c.Priority) {
			continue
		}
		if filter.Archived != nil && c.Archived != *filter.Archived {
			continue
		}
		if filter.CreatedBefore != nil && !c.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		if filter.StudentResolvedBefore != nil &&
			(c.StudentResolvedAt == nil || !c.StudentResolvedAt.Before(*filter.StudentResolvedBefore)) {
			continue
		}
		result = append(result, *c)
	}
	return result, nil
}

func (r *fakeConcernRepo) CountActiveByStaff(_ context.Context, staffID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, c := range r.concerns {
		if c.AssignedTo != nil && *c.AssignedTo == staffID && c.Active() {
			count++
		}
	}
	return count, nil
}

func (r *fakeConcernRepo) CountActiveByDepartment(_ context.Context, departmentID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, c := range r.concerns {
		if c.DepartmentID == departmentID && c.Active() {
			count++
		}
	}
	return count, nil
}

func (r *fakeConcernRepo) AverageResolutionHours(_ context.Context, staffID string, _ time.Time) (float64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hours, ok := r.avgHours[staffID]
	return hours, ok, nil
}

func (r *fakeConcernRepo) UpdatePriority(_ context.Context, id string, priority domain.ConcernPriority) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.concerns[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Priority = priority
	return nil
}

func (r *fakeConcernRepo) Assign(_ context.Context, id, staffID string, reassignment bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.concerns[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.AssignedTo = &staffID
	if reassignment {
		c.ReassignedAt = &at
	}
	return nil
}

func (r *fakeConcernRepo) MarkEscalated(_ context.Context, id, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.concerns[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if c.EscalatedAt != nil {
		return false, nil
	}
	c.EscalatedAt = &at
	c.EscalationReason = &reason
	return true, nil
}

func (r *fakeConcernRepo) MarkOverdue(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.concerns[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if c.OverdueAt != nil {
		return false, nil
	}
	c.OverdueAt = &at
	return true, nil
}

func (r *fakeConcernRepo) Close(_ context.Context, id, closedBy string, auto bool, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.concerns[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Status = domain.ConcernStatusClosed
	c.ClosedBy = &closedBy
	c.AutoClosed = auto
	return nil
}

func containsStatus(list []domain.ConcernStatus, s domain.ConcernStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.ConcernPriority, p domain.ConcernPriority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

// fakeStaffRepo serves a fixed member list.
type fakeStaffRepo struct {
	members []domain.StaffMember
}

func (r *fakeStaffRepo) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	for i := range r.members {
		if r.members[i].ID == id {
			clone := r.members[i]
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeStaffRepo) List(_ context.Context, filter repository.StaffFilter) ([]domain.StaffMember, error) {
	var result []domain.StaffMember
	for _, m := range r.members {
		if filter.DepartmentID != nil && (m.DepartmentID == nil || *m.DepartmentID != *filter.DepartmentID) {
			continue
		}
		if filter.ExcludeDepartmentID != nil && m.DepartmentID != nil && *m.DepartmentID == *filter.ExcludeDepartmentID {
			continue
		}
		if filter.Active != nil && m.Active != *filter.Active {
			continue
		}
		if filter.CrossDepartment != nil && m.CanHandleCrossDepartment != *filter.CrossDepartment {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

func (r *fakeStaffRepo) CountByDepartment(_ context.Context, departmentID string) (int, error) {
	count := 0
	for _, m := range r.members {
		if m.DepartmentID != nil && *m.DepartmentID == departmentID && m.Active {
			count++
		}
	}
	return count, nil
}

// fakeDepartmentRepo serves fixed departments with optional heads.
type fakeDepartmentRepo struct {
	departments map[string]*domain.Department
	heads       map[string]*domain.StaffMember
}

func newFakeDepartmentRepo() *fakeDepartmentRepo {
	return &fakeDepartmentRepo{
		departments: make(map[string]*domain.Department),
		heads:       make(map[string]*domain.StaffMember),
	}
}

func (r *fakeDepartmentRepo) GetByID(_ context.Context, id string) (*domain.Department, error) {
	if d, ok := r.departments[id]; ok {
		clone := *d
		return &clone, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeDepartmentRepo) List(_ context.Context, activeOnly bool) ([]domain.Department, error) {
	var result []domain.Department
	for _, d := range r.departments {
		if activeOnly && !d.IsActive {
			continue
		}
		result = append(result, *d)
	}
	return result, nil
}

func (r *fakeDepartmentRepo) GetHead(_ context.Context, departmentID string) (*domain.StaffMember, error) {
	if head, ok := r.heads[departmentID]; ok {
		clone := *head
		return &clone, nil
	}
	return nil, pgx.ErrNoRows
}

// fakeCrossDeptRepo mirrors the transactional concern update of the real
// repository against the in-memory concern store.
type fakeCrossDeptRepo struct {
	concerns *fakeConcernRepo
	records  []domain.CrossDepartmentAssignment
	seq      int
}

func (r *fakeCrossDeptRepo) AssignWithRecord(ctx context.Context, record *domain.CrossDepartmentAssignment, reassignment bool) error {
	for i := range r.records {
		if r.records[i].ConcernID == record.ConcernID && r.records[i].Status == domain.CrossDepartmentStatusActive {
			r.records[i].Status = domain.CrossDepartmentStatusExpired
		}
	}
	r.seq++
	record.ID = fmt.Sprintf("xdept-%d", r.seq)
	record.Status = domain.CrossDepartmentStatusActive
	r.records = append(r.records, *record)
	return r.concerns.Assign(ctx, record.ConcernID, record.StaffID, reassignment, record.AssignedAt)
}

func (r *fakeCrossDeptRepo) GetActiveByConcern(_ context.Context, concernID string) (*domain.CrossDepartmentAssignment, error) {
	for i := range r.records {
		if r.records[i].ConcernID == concernID && r.records[i].Status == domain.CrossDepartmentStatusActive {
			clone := r.records[i]
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeCrossDeptRepo) Complete(_ context.Context, id string, at time.Time) error {
	for i := range r.records {
		if r.records[i].ID == id {
			r.records[i].Status = domain.CrossDepartmentStatusCompleted
			r.records[i].CompletedAt = &at
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeCrossDeptRepo) ListByStaff(_ context.Context, staffID string) ([]domain.CrossDepartmentAssignment, error) {
	var result []domain.CrossDepartmentAssignment
	for _, rec := range r.records {
		if rec.StaffID == staffID {
			result = append(result, rec)
		}
	}
	return result, nil
}

// fakeEscalationLogRepo collects entries.
type fakeEscalationLogRepo struct {
	entries []domain.EscalationLog
}

func (r *fakeEscalationLogRepo) Create(_ context.Context, entry *domain.EscalationLog) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeEscalationLogRepo) ListByConcern(_ context.Context, concernID string) ([]domain.EscalationLog, error) {
	var result []domain.EscalationLog
	for _, e := range r.entries {
		if e.ConcernID == concernID {
			result = append(result, e)
		}
	}
	return result, nil
}

// fakeHistoryRepo collects audit entries.
type fakeHistoryRepo struct {
	entries []domain.ConcernHistory
}

func (r *fakeHistoryRepo) Create(_ context.Context, history *domain.ConcernHistory) error {
	r.entries = append(r.entries, *history)
	return nil
}

func (r *fakeHistoryRepo) ListByConcern(_ context.Context, concernID string) ([]domain.ConcernHistory, error) {
	var result []domain.ConcernHistory
	for _, e := range r.entries {
		if e.ConcernID == concernID {
			result = append(result, e)
		}
	}
	return result, nil
}

type sentNotice struct {
	Recipient string
	Severity  NotifySeverity
	Title     string
	Metadata  map[string]string
}

// fakeNotifier records outbound notifications.
type fakeNotifier struct {
	notices []sentNotice
}

func (n *fakeNotifier) Notify(_ context.Context, recipientID string, severity NotifySeverity, title, _ string, metadata map[string]string) error {
	n.notices = append(n.notices, sentNotice{Recipient: recipientID, Severity: severity, Title: title, Metadata: metadata})
	return nil
}

type fakeChatRooms struct {
	provisioned []string
}

func (c *fakeChatRooms) Provision(_ context.Context, concernID string, _ []string) error {
	c.provisioned = append(c.provisioned, concernID)
	return nil
}

type fakeReminders struct {
	scheduled map[string]int
}

func (r *fakeReminders) Schedule(_ context.Context, concernID string, delayHours int) error {
	if r.scheduled == nil {
		r.scheduled = make(map[string]int)
	}
	r.scheduled[concernID] = delayHours
	return nil
}

// recordingDispatcher captures published events.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []events.Event
	for _, e := range d.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}

// testEnv wires the full engine against in-memory fakes with a fixed clock.
type testEnv struct {
	concerns    *fakeConcernRepo
	staff       *fakeStaffRepo
	departments *fakeDepartmentRepo
	crossDept   *fakeCrossDeptRepo
	escalations *fakeEscalationLogRepo
	history     *fakeHistoryRepo
	notifier    *fakeNotifier
	chat        *fakeChatRooms
	reminders   *fakeReminders
	dispatcher  *recordingDispatcher
	metrics     *observability.Metrics

	classifier *ClassifierService
	assigner   *AssignmentService
	escalation *EscalationService
	workflow   *WorkflowService
	workload   *WorkloadService

	engineCfg config.EngineConfig
}

func newTestEnv() *testEnv {
	logger := zap.NewNop()
	engineCfg := config.DefaultEngineConfig()

	env := &testEnv{
		concerns:    newFakeConcernRepo(),
		staff:       &fakeStaffRepo{},
		departments: newFakeDepartmentRepo(),
		escalations: &fakeEscalationLogRepo{},
		history:     &fakeHistoryRepo{},
		notifier:    &fakeNotifier{},
		chat:        &fakeChatRooms{},
		reminders:   &fakeReminders{},
		dispatcher:  &recordingDispatcher{},
		metrics:     observability.NewMetrics(),
		engineCfg:   engineCfg,
	}
	env.crossDept = &fakeCrossDeptRepo{concerns: env.concerns}

	env.classifier = NewClassifierService(engineCfg.Classifier, env.metrics, logger)

	env.assigner = NewAssignmentService(AssignmentDependencies{
		ConcernRepo:   env.concerns,
		StaffRepo:     env.staff,
		CrossDeptRepo: env.crossDept,
		HistoryRepo:   env.history,
		Dispatcher:    env.dispatcher,
		Metrics:       env.metrics,
		Logger:        logger,
		Config:        engineCfg.Assignment,
	})
	env.assigner.now = func() time.Time { return testNow }

	env.escalation = NewEscalationService(EscalationDependencies{
		ConcernRepo:    env.concerns,
		DepartmentRepo: env.departments,
		EscalationRepo: env.escalations,
		Assigner:       env.assigner,
		Notifier:       env.notifier,
		Dispatcher:     env.dispatcher,
		Metrics:        env.metrics,
		Logger:         logger,
		Config:         engineCfg.Escalation,
	})
	env.escalation.now = func() time.Time { return testNow }

	env.workflow = NewWorkflowService(WorkflowDependencies{
		ConcernRepo:    env.concerns,
		DepartmentRepo: env.departments,
		HistoryRepo:    env.history,
		Classifier:     env.classifier,
		Assigner:       env.assigner,
		Escalation:     env.escalation,
		Notifier:       env.notifier,
		ChatRooms:      env.chat,
		Reminders:      env.reminders,
		Dispatcher:     env.dispatcher,
		Logger:         logger,
		Config:         engineCfg.Workflow,
		ClassifierCfg:  engineCfg.Classifier,
	})
	env.workflow.now = func() time.Time { return testNow }

	env.workload = NewWorkloadService(WorkloadDependencies{
		ConcernRepo:    env.concerns,
		StaffRepo:      env.staff,
		DepartmentRepo: env.departments,
		Assigner:       env.assigner,
		Snapshots:      cache.New(cache.NewMemoryStore(), logger),
		Logger:         logger,
		Config:         engineCfg.Balancer,
		MaxWorkload:    engineCfg.Assignment.MaxWorkload,
	})

	return env
}

// addDepartment registers an active department with the given head.
func (env *testEnv) addDepartment(id, name string, head *domain.StaffMember) {
	dept := &domain.Department{ID: id, Name: name, IsActive: true}
	if head != nil {
		dept.HeadStaffID = &head.ID
		env.departments.heads[id] = head
	}
	env.departments.departments[id] = dept
}

// addStaff registers an active staff member in the given department.
func (env *testEnv) addStaff(id, title, departmentID string, crossDept bool) domain.StaffMember {
	member := domain.StaffMember{
		ID:                       id,
		Name:                     id,
		Email:                    id + "@campus.test",
		Title:                    title,
		DepartmentID:             &departmentID,
		Active:                   true,
		CanHandleCrossDepartment: crossDept,
	}
	env.staff.members = append(env.staff.members, member)
	return member
}

// addConcern seeds an active pending concern.
func (env *testEnv) addConcern(concern *domain.Concern) *domain.Concern {
	if concern.Status == "" {
		concern.Status = domain.ConcernStatusPending
	}
	if concern.Priority == "" {
		concern.Priority = domain.ConcernPriorityMedium
	}
	if concern.Type == "" {
		concern.Type = domain.ConcernTypeGeneral
	}
	if concern.SubmitterID == "" {
		concern.SubmitterID = "student-1"
	}
	return env.concerns.add(concern)
}

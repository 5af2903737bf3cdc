package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studentlink/concern-service/internal/domain"
	"github.com/studentlink/concern-service/internal/events"
	apperrors "github.com/studentlink/concern-service/pkg/util/errorutil"
)

func TestSubmitClassifiesAndEscalatesUrgentText(t *testing.T) {
	env := newTestEnv()
	head := domain.StaffMember{ID: "staff-head", Title: "Director", Active: true}
	env.addDepartment("dept-1", "Registrar", &head)

	concern, err := env.workflow.Submit(context.Background(), SubmitInput{
		SubmitterID:  "student-7",
		DepartmentID: "dept-1",
		Subject:      "My enrollment is broken",
		Description:  "urgent help needed ASAP",
	})
	require.NoError(t, err)

	// medium default upgraded to urgent by classification
	assert.Equal(t, domain.ConcernPriorityUrgent, concern.Priority)
	assert.Contains(t, concern.ExternalKey, "CRN-")
	assert.False(t, concern.AutoApproved)

	// no staff anywhere: unassigned urgent escalates immediately
	stored := env.concerns.get(concern.ID)
	assert.NotNil(t, stored.EscalatedAt)

	assert.Len(t, env.dispatcher.byType(events.EventConcernSubmitted), 1)
	assert.Len(t, env.dispatcher.byType(events.EventConcernPriorityChanged), 1)
	assert.Len(t, env.dispatcher.byType(events.EventConcernEscalated), 1)

	// urgent fan-out reaches the submitter and the department head
	recipients := map[string]bool{}
	for _, notice := range env.notifier.notices {
		recipients[notice.Recipient] = true
	}
	assert.True(t, recipients["student-7"])
	assert.True(t, recipients["staff-head"])
}

func TestSubmitAutoApprovesLowRiskConcern(t *testing.T) {
	env := newTestEnv()
	env.addDepartment("dept-1", "Parking Office", nil)

	concern, err := env.workflow.Submit(context.Background(), SubmitInput{
		SubmitterID:  "student-3",
		DepartmentID: "dept-1",
		Subject:      "Just wondering",
		Description:  "some information about parking passes",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ConcernStatusApproved, concern.Status)
	assert.True(t, concern.AutoApproved)
	assert.NotNil(t, concern.ApprovedAt)
	assert.Equal(t, domain.ConcernPriorityMedium, concern.Priority)

	assert.Contains(t, env.chat.provisioned, concern.ID)

	statusEvents := env.dispatcher.byType(events.EventConcernStatusChanged)
	require.Len(t, statusEvents, 1)
	payload, ok := statusEvents[0].Payload.(events.ConcernStatusChangedPayload)
	require.True(t, ok)
	assert.True(t, payload.Auto)
	assert.Equal(t, domain.ConcernStatusApproved, payload.NewStatus)
}

func TestSubmitRecordsEngineCounters(t *testing.T) {
	env := newTestEnv()
	env.addDepartment("dept-1", "Student Services", nil)
	env.addStaff("staff-1", "Support Assistant", "dept-1", false)

	_, err := env.workflow.Submit(context.Background(), SubmitInput{
		SubmitterID:  "student-3",
		DepartmentID: "dept-1",
		Subject:      "Just wondering",
		Description:  "some information about parking passes",
	})
	require.NoError(t, err)

	assert.EqualValues(t, 1, env.metrics.EngineCount("classifications"))
	assert.EqualValues(t, 1, env.metrics.EngineCount("assignments"))
	assert.EqualValues(t, 0, env.metrics.EngineCount("escalations"))
}

func TestSubmitUrgentKeywordBlocksAutoApproval(t *testing.T) {
	env := newTestEnv()
	env.addDepartment("dept-1", "Registrar", nil)

	// mostly low-tier wording, but the stray urgent keyword vetoes approval
	concern, err := env.workflow.Submit(context.Background(), SubmitInput{
		SubmitterID:  "student-3",
		DepartmentID: "dept-1",
		Subject:      "Feedback",
		Description:  "minor suggestion, handle whenever, nothing urgent",
	})
	require.NoError(t, err)
	assert.NotEqual(t, domain.ConcernStatusApproved, concern.Status)
	assert.False(t, concern.AutoApproved)
}

func TestSubmitRejectsInactiveDepartment(t *testing.T) {
	env := newTestEnv()
	env.departments.departments["dept-1"] = &domain.Department{ID: "dept-1", Name: "Closed", IsActive: false}

	_, err := env.workflow.Submit(context.Background(), SubmitInput{
		SubmitterID:  "student-1",
		DepartmentID: "dept-1",
		Subject:      "hello",
	})
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "CONFLICT", domainErr.Code)
}

func TestSubmitUnknownDepartment(t *testing.T) {
	env := newTestEnv()

	_, err := env.workflow.Submit(context.Background(), SubmitInput{
		SubmitterID:  "student-1",
		DepartmentID: "dept-missing",
		Subject:      "hello",
	})
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestUpdateStatusValidTransition(t *testing.T) {
	env := newTestEnv()
	env.addDepartment("dept-1", "Registrar", nil)
	staffID := "staff-9"
	concern := env.addConcern(&domain.Concern{
		DepartmentID: "dept-1",
		Subject:      "x",
		Status:       domain.ConcernStatusStaffResolved,
		AssignedTo:   &staffID,
	})

	updated, err := env.workflow.UpdateStatus(context.Background(), concern.ID,
		domain.ConcernStatusStudentConfirmed, domain.ActorTypeStudent, strPtr("student-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.ConcernStatusStudentConfirmed, updated.Status)
	require.NotNil(t, updated.StudentResolvedAt)
	assert.Equal(t, testNow, *updated.StudentResolvedAt)

	require.NotEmpty(t, env.history.entries)
	last := env.history.entries[len(env.history.entries)-1]
	assert.Equal(t, domain.ChangeTypeStatus, last.ChangeType)
	assert.Equal(t, domain.ActorTypeStudent, last.ChangedByType)
}

func TestUpdateStatusInvalidTransition(t *testing.T) {
	env := newTestEnv()
	concern := env.addConcern(&domain.Concern{
		DepartmentID: "dept-1",
		Subject:      "x",
		Status:       domain.ConcernStatusPending,
	})

	_, err := env.workflow.UpdateStatus(context.Background(), concern.ID,
		domain.ConcernStatusClosed, domain.ActorTypeStaff, nil)
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "CONFLICT", domainErr.Code)
	assert.Equal(t, domain.ConcernStatusPending, env.concerns.get(concern.ID).Status)
}

func TestAutoCloseExpired(t *testing.T) {
	env := newTestEnv()
	env.addDepartment("dept-1", "Registrar", nil)

	oldResolved := testNow.Add(-8 * 24 * time.Hour)
	recentResolved := testNow.Add(-6 * 24 * time.Hour)
	expired := env.addConcern(&domain.Concern{
		DepartmentID:      "dept-1",
		Subject:           "old",
		Status:            domain.ConcernStatusStudentConfirmed,
		StudentResolvedAt: &oldResolved,
	})
	fresh := env.addConcern(&domain.Concern{
		DepartmentID:      "dept-1",
		Subject:           "new",
		Status:            domain.ConcernStatusStudentConfirmed,
		StudentResolvedAt: &recentResolved,
	})

	closed, err := env.workflow.AutoCloseExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	stored := env.concerns.get(expired.ID)
	assert.Equal(t, domain.ConcernStatusClosed, stored.Status)
	assert.True(t, stored.AutoClosed)
	require.NotNil(t, stored.ClosedBy)
	assert.Equal(t, "system", *stored.ClosedBy)

	assert.Equal(t, domain.ConcernStatusStudentConfirmed, env.concerns.get(fresh.ID).Status)
	assert.Len(t, env.dispatcher.byType(events.EventConcernClosed), 1)
}

func TestNotificationPlanByPriorityAndHours(t *testing.T) {
	env := newTestEnv()
	businessMonday := time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)
	saturdayNight := time.Date(2025, 3, 8, 22, 0, 0, 0, time.UTC)

	urgent := &domain.Concern{Priority: domain.ConcernPriorityUrgent}
	plan := env.workflow.NotificationPlanFor(urgent, saturdayNight)
	assert.True(t, plan.Immediate)
	assert.ElementsMatch(t, []string{"push", "email", "sms"}, plan.Channels)
	assert.True(t, plan.IncludeDepartmentHead)

	high := &domain.Concern{Priority: domain.ConcernPriorityHigh}
	plan = env.workflow.NotificationPlanFor(high, businessMonday)
	assert.True(t, plan.Immediate)
	assert.True(t, plan.IncludeDepartmentHead)

	plan = env.workflow.NotificationPlanFor(high, saturdayNight)
	assert.False(t, plan.Immediate)
	assert.Equal(t, 30*time.Minute, plan.Delay)

	medium := &domain.Concern{Priority: domain.ConcernPriorityMedium}
	plan = env.workflow.NotificationPlanFor(medium, businessMonday)
	assert.True(t, plan.Immediate)
	assert.False(t, plan.IncludeDepartmentHead)

	low := &domain.Concern{Priority: domain.ConcernPriorityLow}
	plan = env.workflow.NotificationPlanFor(low, businessMonday)
	assert.False(t, plan.Immediate)
	assert.Equal(t, 60*time.Minute, plan.Delay)

	escalatedAt := testNow
	escalatedLow := &domain.Concern{Priority: domain.ConcernPriorityLow, EscalatedAt: &escalatedAt}
	plan = env.workflow.NotificationPlanFor(escalatedLow, businessMonday)
	assert.True(t, plan.IncludeDepartmentHead)
}

func TestSubmitSchedulesTypedFollowUp(t *testing.T) {
	env := newTestEnv()
	env.addDepartment("dept-1", "Facilities", nil)

	concern, err := env.workflow.Submit(context.Background(), SubmitInput{
		SubmitterID:  "student-1",
		DepartmentID: "dept-1",
		Subject:      "The ceiling tiles look off",
		Type:         domain.ConcernTypeFacility,
	})
	require.NoError(t, err)

	assert.Equal(t, 3*24, env.reminders.scheduled[concern.ID])
}

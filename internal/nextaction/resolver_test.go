package nextaction

import (
	"testing"
	"time"

	"visatrack/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(status model.LifecycleStatus) model.Application {
	return model.Application{
		ID:              "app1",
		UserID:          "user1",
		VisaType:        "uk_global_talent",
		LifecycleStatus: status,
		CompletionScore: 40,
	}
}

func TestGenerate_DocumentsInProgress(t *testing.T) {
	now := time.Now()
	action := Generate(testApp(model.StatusDocumentsInProgress), nil, now)
	require.NotNil(t, action)

	assert.Equal(t, model.ActionUserAction, action.ActionType)
	assert.Equal(t, model.PriorityHigh, action.Priority)
	assert.Equal(t, "app1-action-docs", action.ID)
	assert.Contains(t, action.Description, "40%")
	require.NotNil(t, action.CTAAction)
	assert.Equal(t, "UPLOAD_DOCS", *action.CTAAction)
}

func TestGenerate_ReadyToSubmit(t *testing.T) {
	action := Generate(testApp(model.StatusReadyToSubmit), nil, time.Now())
	require.NotNil(t, action)

	assert.Equal(t, model.ActionUserAction, action.ActionType)
	assert.Equal(t, model.PriorityHigh, action.Priority)
	require.NotNil(t, action.CTAAction)
	assert.Equal(t, "MARK_SUBMITTED", *action.CTAAction)
}

func TestGenerate_SubmittedWaitingWithMilestone(t *testing.T) {
	now := time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC)
	milestones := []model.Milestone{
		{
			ID:          "m2",
			Type:        model.MilestoneReview,
			Label:       "Endorsement Review",
			PlannedDate: now.AddDate(0, 0, 10),
			Status:      model.MilestonePending,
			Order:       1,
		},
		{
			ID:          "m1",
			Type:        model.MilestoneAcknowledgment,
			Label:       "Submission Acknowledged",
			PlannedDate: now.AddDate(0, 0, 3),
			Status:      model.MilestonePending,
			Order:       0,
		},
	}

	action := Generate(testApp(model.StatusSubmittedWaiting), milestones, now)
	require.NotNil(t, action)

	assert.Equal(t, model.ActionWaiting, action.ActionType)
	assert.Equal(t, model.PriorityMedium, action.Priority)
	assert.Contains(t, action.Description, "Submission Acknowledged")
	require.NotNil(t, action.RelatedMilestoneID)
	assert.Equal(t, "m1", *action.RelatedMilestoneID)
	require.NotNil(t, action.DueDate)
	assert.Equal(t, milestones[1].PlannedDate, *action.DueDate)
}

func TestGenerate_SubmittedWaitingWithoutMilestone(t *testing.T) {
	action := Generate(testApp(model.StatusSubmittedWaiting), nil, time.Now())
	require.NotNil(t, action)

	assert.Equal(t, model.ActionWaiting, action.ActionType)
	assert.Equal(t, model.PriorityLow, action.Priority)
	assert.Nil(t, action.DueDate)
}

func TestGenerate_CompletedMilestonesAreSkipped(t *testing.T) {
	now := time.Now()
	actual := now.AddDate(0, 0, -1)
	milestones := []model.Milestone{
		{ID: "m1", Label: "Done", PlannedDate: now.AddDate(0, 0, -2), ActualDate: &actual, Status: model.MilestoneCompleted, Order: 0},
		{ID: "m2", Label: "Next Up", PlannedDate: now.AddDate(0, 0, 5), Status: model.MilestonePending, Order: 1},
	}

	action := Generate(testApp(model.StatusSubmittedWaiting), milestones, now)
	require.NotNil(t, action)
	require.NotNil(t, action.RelatedMilestoneID)
	assert.Equal(t, "m2", *action.RelatedMilestoneID)
}

func TestGenerate_UnderReviewUsesExpectedDecisionDate(t *testing.T) {
	app := testApp(model.StatusUnderReview)
	expected := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	app.ExpectedDecisionDate = &expected

	action := Generate(app, nil, time.Now())
	require.NotNil(t, action)
	assert.Equal(t, model.ActionWaiting, action.ActionType)
	require.NotNil(t, action.DueDate)
	assert.Equal(t, expected, *action.DueDate)
}

func TestGenerate_BiometricRequiresMatchingMilestone(t *testing.T) {
	now := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	app := testApp(model.StatusBiometricScheduled)

	// no milestones at all: nothing actionable to derive
	assert.Nil(t, Generate(app, nil, now))

	// next milestone is not a biometric appointment
	wrong := []model.Milestone{
		{ID: "m1", Type: model.MilestoneReview, Label: "Review", PlannedDate: now.AddDate(0, 0, 5), Status: model.MilestonePending, Order: 0},
	}
	assert.Nil(t, Generate(app, wrong, now))

	loc := "UKVCAS Manchester"
	right := []model.Milestone{
		{ID: "m1", Type: model.MilestoneBiometricAppointment, Label: "Biometrics", PlannedDate: now.AddDate(0, 0, 5), Status: model.MilestonePending, Order: 0, Location: &loc},
	}
	action := Generate(app, right, now)
	require.NotNil(t, action)
	assert.Equal(t, model.ActionUserAction, action.ActionType)
	assert.Equal(t, model.PriorityHigh, action.Priority)
	assert.Contains(t, action.Description, "UKVCAS Manchester")
	assert.Contains(t, action.Description, "5 days remaining")
}

func TestGenerate_InterviewRequiresMatchingMilestone(t *testing.T) {
	now := time.Now()
	app := testApp(model.StatusInterviewScheduled)

	wrong := []model.Milestone{
		{ID: "m1", Type: model.MilestoneBiometricAppointment, Label: "Biometrics", PlannedDate: now.AddDate(0, 0, 5), Status: model.MilestonePending, Order: 0},
	}
	assert.Nil(t, Generate(app, wrong, now))

	right := []model.Milestone{
		{ID: "m1", Type: model.MilestoneInterview, Label: "Interview", PlannedDate: now.AddDate(0, 0, 5), Status: model.MilestonePending, Order: 0},
	}
	action := Generate(app, right, now)
	require.NotNil(t, action)
	assert.Equal(t, "app1-action-interview", action.ID)
}

func TestGenerate_DecisionPendingCountsDays(t *testing.T) {
	now := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	app := testApp(model.StatusDecisionPending)
	expected := now.AddDate(0, 0, 14)
	app.ExpectedDecisionDate = &expected

	action := Generate(app, nil, now)
	require.NotNil(t, action)
	assert.Equal(t, model.ActionWaiting, action.ActionType)
	assert.Equal(t, model.PriorityHigh, action.Priority)
	assert.Contains(t, action.Description, "within 14 days")

	app.ExpectedDecisionDate = nil
	action = Generate(app, nil, now)
	require.NotNil(t, action)
	assert.Equal(t, "Final decision expected soon", action.Description)
}

func TestGenerate_TerminalStatusesAreInformational(t *testing.T) {
	for _, status := range []model.LifecycleStatus{model.StatusApproved, model.StatusRejected, model.StatusWithdrawn} {
		action := Generate(testApp(status), nil, time.Now())
		require.NotNil(t, action, "status %s", status)
		assert.Equal(t, model.ActionInformational, action.ActionType)
		assert.Nil(t, action.DueDate)
	}
}

func TestGenerate_UnknownStatusReturnsNil(t *testing.T) {
	app := testApp(model.LifecycleStatus("SOMETHING_NEW"))
	assert.Nil(t, Generate(app, nil, time.Now()))
}

func TestGenerate_Deterministic(t *testing.T) {
	now := time.Date(2024, 12, 1, 8, 30, 0, 0, time.UTC)
	milestones := []model.Milestone{
		{ID: "m1", Type: model.MilestoneAcknowledgment, Label: "Ack", PlannedDate: now.AddDate(0, 0, 2), Status: model.MilestonePending, Order: 0},
	}
	app := testApp(model.StatusSubmittedWaiting)

	first := Generate(app, milestones, now)
	second := Generate(app, milestones, now)
	require.NotNil(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, first.ID, second.ID)
}

func TestSummary(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "Upload documents (40% complete)", Summary(testApp(model.StatusDocumentsInProgress), nil, now))
	assert.Equal(t, "Ready to submit", Summary(testApp(model.StatusReadyToSubmit), nil, now))
	assert.Equal(t, "No action needed", Summary(testApp(model.StatusBiometricScheduled), nil, now))
	assert.Equal(t, "Withdrawn", Summary(testApp(model.StatusWithdrawn), nil, now))
}

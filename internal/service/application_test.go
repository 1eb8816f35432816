package service

import (
	"context"
	"testing"
	"time"

	"visatrack/internal/lifecycle"
	"visatrack/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEventBus implements EventBus for testing
type MockEventBus struct {
	events []map[string]interface{}
}

func (m *MockEventBus) PublishApplication(applicationID string, event map[string]interface{}) error {
	m.events = append(m.events, event)
	return nil
}

func (m *MockEventBus) PublishUser(userID string, event map[string]interface{}) error {
	m.events = append(m.events, event)
	return nil
}

// MockJobClient implements JobClient for testing
type MockJobClient struct {
	rechecks []string
}

func (m *MockJobClient) ScheduleMilestoneRecheck(milestoneID string, plannedAt time.Time) error {
	m.rechecks = append(m.rechecks, milestoneID)
	return nil
}

func (m *MockJobClient) ScheduleMilestoneSweep() error {
	return nil
}

func TestApplicationService_CreateApplication_RequiresUserID(t *testing.T) {
	svc := NewApplicationService(nil, &MockEventBus{})

	_, err := svc.CreateApplication(context.Background(), CreateApplicationInput{
		VisaType: "uk_global_talent",
	})
	require.Error(t, err)

	var ruleErr *lifecycle.RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, lifecycle.KindMissingField, ruleErr.Kind)
	assert.Equal(t, "userId", ruleErr.Field)
}

func TestApplicationService_CreateApplication_RequiresVisaType(t *testing.T) {
	svc := NewApplicationService(nil, &MockEventBus{})

	_, err := svc.CreateApplication(context.Background(), CreateApplicationInput{
		UserID: "user-1",
	})
	require.Error(t, err)

	var ruleErr *lifecycle.RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "visaType", ruleErr.Field)
}

func TestApplicationService_UpdateCompletionScore_RejectsOutOfRange(t *testing.T) {
	svc := NewApplicationService(nil, &MockEventBus{})

	for _, score := range []int{-1, 101, 500} {
		err := svc.UpdateCompletionScore(context.Background(), "app-1", score)
		require.Error(t, err)

		var ruleErr *lifecycle.RuleError
		require.ErrorAs(t, err, &ruleErr)
		assert.Equal(t, lifecycle.KindBusinessRule, ruleErr.Kind)
	}
}

func TestStatusUpdateParams_MapsPayload(t *testing.T) {
	submittedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	method := "online_portal"
	decision := model.DecisionApproved

	p := statusUpdateParams(ChangeStatusInput{
		ApplicationID: "app-1",
		NewStatus:     model.StatusSubmittedWaiting,
		Payload: lifecycle.Payload{
			SubmittedAt:      &submittedAt,
			SubmissionMethod: &method,
			DecisionType:     &decision,
		},
	}, model.StatusReadyToSubmit)

	assert.Equal(t, "app-1", p.ID)
	assert.Equal(t, "READY_TO_SUBMIT", p.ExpectedStatus)
	assert.Equal(t, "SUBMITTED_WAITING", p.NewStatus)
	require.NotNil(t, p.SubmittedAt)
	assert.True(t, p.SubmittedAt.Equal(submittedAt))
	require.NotNil(t, p.DecisionType)
	assert.Equal(t, "APPROVED", *p.DecisionType)
	assert.Nil(t, p.DecisionAt)
}

func TestMilestoneCreateParams_PreservesFields(t *testing.T) {
	planned := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	loc := "VFS Centre London"

	p := milestoneCreateParams(model.Milestone{
		ID:                    "ms-1",
		ApplicationID:         "app-1",
		Type:                  model.MilestoneBiometricAppointment,
		Label:                 "Biometric appointment",
		Location:              &loc,
		PlannedDate:           planned,
		Status:                model.MilestonePending,
		Order:                 2,
		IsAutoGenerated:       true,
		RequirementsChecklist: []string{"Passport", "Appointment letter"},
	})

	assert.Equal(t, "ms-1", p.ID)
	assert.Equal(t, "BIOMETRIC_APPOINTMENT", p.Type)
	assert.Equal(t, 2, p.SortOrder)
	assert.True(t, p.IsAutoGenerated)
	assert.Equal(t, []string{"Passport", "Appointment letter"}, p.RequirementsChecklist)
}

func TestApplicationService_ChangeStatus(t *testing.T) {
	t.Skip("Requires test database setup")
}

func TestApplicationService_ChangeStatus_GeneratesMilestonesOnSubmission(t *testing.T) {
	t.Skip("Requires test database setup")
}

func TestApplicationService_ChangeStatus_WithdrawCancelsMilestones(t *testing.T) {
	t.Skip("Requires test database setup")
}

func TestApplicationService_CreateMilestone(t *testing.T) {
	t.Skip("Requires test database setup")
}

func TestApplicationService_RefreshMilestones(t *testing.T) {
	t.Skip("Requires test database setup")
}

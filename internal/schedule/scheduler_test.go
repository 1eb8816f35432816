package schedule

import (
	"testing"
	"time"

	"visatrack/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDefaultMilestones_KnownVisaType(t *testing.T) {
	submittedAt := time.Date(2024, 11, 1, 10, 0, 0, 0, time.UTC)

	milestones := GenerateDefaultMilestones("app1", "uk_global_talent", submittedAt)
	require.NotEmpty(t, milestones)

	for i, m := range milestones {
		assert.Equal(t, "app1", m.ApplicationID)
		assert.Equal(t, i, m.Order)
		assert.True(t, m.IsAutoGenerated)
		assert.Equal(t, model.MilestonePending, m.Status)
		assert.NotEmpty(t, m.ID)
		assert.False(t, m.PlannedDate.Before(submittedAt), "planned date before submission for %s", m.Label)
		if i > 0 {
			assert.Greater(t, m.Order, milestones[i-1].Order)
		}
	}
}

func TestGenerateDefaultMilestones_UnknownVisaTypeFallsBack(t *testing.T) {
	submittedAt := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)

	milestones := GenerateDefaultMilestones("app1", "mars_colonist", submittedAt)
	require.Len(t, milestones, len(genericTemplate))

	types := make([]model.MilestoneType, 0, len(milestones))
	for _, m := range milestones {
		types = append(types, m.Type)
	}
	assert.Equal(t, []model.MilestoneType{
		model.MilestoneAcknowledgment,
		model.MilestoneReview,
		model.MilestoneDecision,
	}, types)
}

func TestGenerateDefaultMilestones_UniqueIDs(t *testing.T) {
	milestones := GenerateDefaultMilestones("app1", "us_h1b", time.Now())
	seen := make(map[string]bool)
	for _, m := range milestones {
		assert.False(t, seen[m.ID], "duplicate milestone id %s", m.ID)
		seen[m.ID] = true
	}
}

func TestUpdateStatus_CompletedWinsOverPlannedDate(t *testing.T) {
	now := time.Date(2024, 11, 15, 12, 0, 0, 0, time.UTC)
	actual := now.AddDate(0, 0, -2)

	m := model.Milestone{
		PlannedDate: now.AddDate(0, 0, -30), // far overdue
		ActualDate:  &actual,
		Status:      model.MilestoneOverdue,
	}

	got := UpdateStatus(m, now)
	assert.Equal(t, model.MilestoneCompleted, got.Status)
}

func TestUpdateStatus_CancelledIsTerminal(t *testing.T) {
	now := time.Now()
	m := model.Milestone{
		PlannedDate: now.AddDate(0, 0, -5),
		Status:      model.MilestoneCancelled,
	}

	got := UpdateStatus(m, now)
	assert.Equal(t, model.MilestoneCancelled, got.Status)
}

func TestUpdateStatus_Overdue(t *testing.T) {
	now := time.Date(2024, 11, 15, 12, 0, 0, 0, time.UTC)
	m := model.Milestone{
		PlannedDate: now.AddDate(0, 0, -1),
		Status:      model.MilestonePending,
	}

	got := UpdateStatus(m, now)
	assert.Equal(t, model.MilestoneOverdue, got.Status)
}

func TestUpdateStatus_SameDayIsInProgress(t *testing.T) {
	now := time.Date(2024, 11, 15, 9, 0, 0, 0, time.UTC)
	m := model.Milestone{
		PlannedDate: time.Date(2024, 11, 15, 17, 0, 0, 0, time.UTC),
		Status:      model.MilestonePending,
	}

	got := UpdateStatus(m, now)
	assert.Equal(t, model.MilestoneInProgress, got.Status)
}

func TestUpdateStatus_FuturePending(t *testing.T) {
	now := time.Date(2024, 11, 15, 9, 0, 0, 0, time.UTC)
	m := model.Milestone{
		PlannedDate: now.AddDate(0, 0, 10),
		Status:      model.MilestoneInProgress,
	}

	got := UpdateStatus(m, now)
	assert.Equal(t, model.MilestonePending, got.Status)
}

func TestUpdateStatus_Idempotent(t *testing.T) {
	now := time.Date(2024, 11, 15, 12, 0, 0, 0, time.UTC)

	cases := []model.Milestone{
		{PlannedDate: now.AddDate(0, 0, -3), Status: model.MilestonePending},
		{PlannedDate: now.AddDate(0, 0, 3), Status: model.MilestoneOverdue},
		{PlannedDate: now, Status: model.MilestonePending},
		{PlannedDate: now.AddDate(0, 0, -1), Status: model.MilestoneCancelled},
	}

	for _, m := range cases {
		once := UpdateStatus(m, now)
		twice := UpdateStatus(once, now)
		assert.Equal(t, once, twice)
	}
}

func TestGetDaysInfo_OverdueByOneDay(t *testing.T) {
	now := time.Date(2024, 11, 15, 12, 0, 0, 0, time.UTC)
	m := model.Milestone{PlannedDate: now.AddDate(0, 0, -1)}

	info := GetDaysInfo(m, now)
	assert.True(t, info.IsOverdue)
	require.NotNil(t, info.DaysOverdue)
	assert.Equal(t, 1, *info.DaysOverdue)
	assert.Nil(t, info.DaysRemaining)
}

func TestGetDaysInfo_DueEarlierTodayReportsZeroRemaining(t *testing.T) {
	now := time.Date(2024, 11, 15, 18, 0, 0, 0, time.UTC)
	m := model.Milestone{PlannedDate: time.Date(2024, 11, 15, 9, 0, 0, 0, time.UTC)}

	info := GetDaysInfo(m, now)
	assert.False(t, info.IsOverdue)
	require.NotNil(t, info.DaysRemaining)
	assert.Equal(t, 0, *info.DaysRemaining)
}

func TestGetDaysInfo_FutureMilestone(t *testing.T) {
	now := time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC)
	m := model.Milestone{PlannedDate: now.AddDate(0, 0, 7)}

	info := GetDaysInfo(m, now)
	assert.False(t, info.IsOverdue)
	require.NotNil(t, info.DaysRemaining)
	assert.Equal(t, 7, *info.DaysRemaining)
}

func TestGetDaysInfo_CompletedReportsNothing(t *testing.T) {
	now := time.Now()
	actual := now.AddDate(0, 0, -1)
	m := model.Milestone{PlannedDate: now.AddDate(0, 0, -10), ActualDate: &actual}

	info := GetDaysInfo(m, now)
	assert.False(t, info.IsOverdue)
	assert.Nil(t, info.DaysRemaining)
	assert.Nil(t, info.DaysOverdue)
}

func TestTemplateFor_FallsBackToGeneric(t *testing.T) {
	assert.Equal(t, genericTemplate, TemplateFor("unknown_type"))
	assert.NotEqual(t, genericTemplate, TemplateFor("uk_global_talent"))
}

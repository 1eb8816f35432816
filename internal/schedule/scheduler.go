package schedule

import (
	"math"
	"time"

	"visatrack/internal/model"

	"github.com/oklog/ulid/v2"
)

// GenerateDefaultMilestones produces the auto-generated milestone set for a
// submitted application: one milestone per template entry, planned at
// submittedAt plus the entry's day offset, in ascending template order.
func GenerateDefaultMilestones(applicationID, visaType string, submittedAt time.Time) []model.Milestone {
	tpl := TemplateFor(visaType)
	now := time.Now().UTC()

	milestones := make([]model.Milestone, 0, len(tpl))
	for i, entry := range tpl {
		m := model.Milestone{
			ID:                    ulid.Make().String(),
			ApplicationID:         applicationID,
			Type:                  entry.Type,
			Label:                 entry.Label,
			PlannedDate:           submittedAt.AddDate(0, 0, entry.OffsetDays),
			Status:                model.MilestonePending,
			Order:                 i,
			IsAutoGenerated:       true,
			RequirementsChecklist: entry.Checklist,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if entry.Description != "" {
			desc := entry.Description
			m.Description = &desc
		}
		if entry.Location != "" {
			loc := entry.Location
			m.Location = &loc
		}
		milestones = append(milestones, m)
	}
	return milestones
}

// UpdateStatus re-derives a milestone's status against now. It is
// idempotent; re-applying with the same now yields the same milestone.
// A set actualDate always wins, CANCELLED is terminal, and everything else
// is purely a function of plannedDate and the clock.
func UpdateStatus(m model.Milestone, now time.Time) model.Milestone {
	switch {
	case m.ActualDate != nil:
		m.Status = model.MilestoneCompleted
	case m.Status == model.MilestoneCancelled:
		// terminal for this milestone
	case m.PlannedDate.Before(now):
		m.Status = model.MilestoneOverdue
	case sameDay(m.PlannedDate, now):
		m.Status = model.MilestoneInProgress
	default:
		m.Status = model.MilestonePending
	}
	return m
}

// DaysInfo reports the day distance between a milestone's planned date and now.
type DaysInfo struct {
	DaysRemaining *int `json:"daysRemaining,omitempty"`
	DaysOverdue   *int `json:"daysOverdue,omitempty"`
	IsOverdue     bool `json:"isOverdue"`
}

// GetDaysInfo computes the signed calendar-day difference between the
// planned date and now. Day arithmetic uses the ceiling of elapsed time over
// one day, so a milestone due earlier today reports zero days remaining
// rather than a negative fraction. Completed milestones report nothing.
func GetDaysInfo(m model.Milestone, now time.Time) DaysInfo {
	if m.ActualDate != nil {
		return DaysInfo{}
	}

	days := int(math.Ceil(m.PlannedDate.Sub(now).Hours() / 24))
	if days >= 0 {
		return DaysInfo{DaysRemaining: &days}
	}
	overdue := -days
	return DaysInfo{DaysOverdue: &overdue, IsOverdue: true}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

package nextaction

import (
	"fmt"
	"math"
	"sort"
	"time"

	"visatrack/internal/model"
	"visatrack/internal/schedule"
)

// Generate derives the single recommendation for an application given its
// milestone set. It returns nil when no recommendation can be derived
// (unrecognized status, or a scheduled-appointment status without a matching
// milestone). The function is pure: identical inputs, including now, always
// produce an identical NextAction with an identical derived id.
func Generate(app model.Application, milestones []model.Milestone, now time.Time) *model.NextAction {
	next := nextMilestone(milestones)

	switch app.LifecycleStatus {
	case model.StatusDocumentsInProgress:
		return &model.NextAction{
			ID:            actionID(app.ID, "docs"),
			ApplicationID: app.ID,
			Title:         "Complete Your Documents",
			Description: fmt.Sprintf(
				"Upload and validate all required documents to reach 100%% completion. Current score: %d%%",
				app.CompletionScore),
			ActionType: model.ActionUserAction,
			Priority:   model.PriorityHigh,
			CTALabel:   strPtr("Upload Documents"),
			CTAAction:  strPtr("UPLOAD_DOCS"),
		}

	case model.StatusReadyToSubmit:
		return &model.NextAction{
			ID:            actionID(app.ID, "submit"),
			ApplicationID: app.ID,
			Title:         "Submit Your Application",
			Description:   "All documents are validated! You're ready to submit your application to the official portal.",
			ActionType:    model.ActionUserAction,
			Priority:      model.PriorityHigh,
			CTALabel:      strPtr("Mark as Submitted"),
			CTAAction:     strPtr("MARK_SUBMITTED"),
		}

	case model.StatusSubmittedWaiting:
		if next != nil {
			info := schedule.GetDaysInfo(*next, now)
			daysText := "soon"
			if info.IsOverdue {
				daysText = fmt.Sprintf("%d days overdue", *info.DaysOverdue)
			} else if info.DaysRemaining != nil {
				daysText = fmt.Sprintf("in %d days", *info.DaysRemaining)
			}
			return &model.NextAction{
				ID:            actionID(app.ID, "waiting"),
				ApplicationID: app.ID,
				Title:         "Application Under Review",
				Description: fmt.Sprintf("Your application is being reviewed. Next milestone: %s (expected %s)",
					next.Label, daysText),
				ActionType:         model.ActionWaiting,
				Priority:           model.PriorityMedium,
				DueDate:            timePtr(next.PlannedDate),
				RelatedMilestoneID: strPtr(next.ID),
			}
		}
		return &model.NextAction{
			ID:            actionID(app.ID, "waiting"),
			ApplicationID: app.ID,
			Title:         "Application Submitted",
			Description:   "Your application has been submitted. We'll notify you when there are updates.",
			ActionType:    model.ActionWaiting,
			Priority:      model.PriorityLow,
		}

	case model.StatusUnderReview:
		return &model.NextAction{
			ID:            actionID(app.ID, "review"),
			ApplicationID: app.ID,
			Title:         "Application Being Reviewed",
			Description:   "Your application is actively being reviewed by the authorities. No action needed at this time.",
			ActionType:    model.ActionWaiting,
			Priority:      model.PriorityMedium,
			DueDate:       app.ExpectedDecisionDate,
		}

	case model.StatusAdditionalDocsRequested:
		return &model.NextAction{
			ID:            actionID(app.ID, "additional"),
			ApplicationID: app.ID,
			Title:         "Additional Documents Required",
			Description:   "The authorities have requested additional documentation. Upload the required files as soon as possible.",
			ActionType:    model.ActionUserAction,
			Priority:      model.PriorityHigh,
			CTALabel:      strPtr("Upload Documents"),
			CTAAction:     strPtr("UPLOAD_ADDITIONAL_DOCS"),
		}

	case model.StatusBiometricScheduled:
		if next == nil || next.Type != model.MilestoneBiometricAppointment {
			return nil
		}
		return appointmentAction(app, next, now, "biometric",
			"Biometric Appointment Scheduled",
			"Attend your biometric appointment on",
			"VIEW_BIOMETRIC_DETAILS")

	case model.StatusInterviewScheduled:
		if next == nil || next.Type != model.MilestoneInterview {
			return nil
		}
		return appointmentAction(app, next, now, "interview",
			"Interview Scheduled",
			"Attend your interview on",
			"VIEW_INTERVIEW_DETAILS")

	case model.StatusDecisionPending:
		desc := "Final decision expected soon"
		if app.ExpectedDecisionDate != nil {
			days := int(math.Ceil(app.ExpectedDecisionDate.Sub(now).Hours() / 24))
			if days > 0 {
				desc = fmt.Sprintf("Final decision expected within %d days", days)
			}
		}
		return &model.NextAction{
			ID:            actionID(app.ID, "decision"),
			ApplicationID: app.ID,
			Title:         "Decision Pending",
			Description:   desc,
			ActionType:    model.ActionWaiting,
			Priority:      model.PriorityHigh,
			DueDate:       app.ExpectedDecisionDate,
		}

	case model.StatusApproved:
		return &model.NextAction{
			ID:            actionID(app.ID, "approved"),
			ApplicationID: app.ID,
			Title:         "Application Approved",
			Description:   "Congratulations! Your application has been approved. Download your documents and timeline for your records.",
			ActionType:    model.ActionInformational,
			Priority:      model.PriorityHigh,
			CTALabel:      strPtr("Download Records"),
			CTAAction:     strPtr("DOWNLOAD_RECORDS"),
		}

	case model.StatusRejected:
		return &model.NextAction{
			ID:            actionID(app.ID, "rejected"),
			ApplicationID: app.ID,
			Title:         "Application Decision",
			Description:   "Your application was not approved. Review the decision notes and consider reapplying with improvements.",
			ActionType:    model.ActionInformational,
			Priority:      model.PriorityHigh,
			CTALabel:      strPtr("View Details"),
			CTAAction:     strPtr("VIEW_REJECTION_DETAILS"),
		}

	case model.StatusWithdrawn:
		return &model.NextAction{
			ID:            actionID(app.ID, "withdrawn"),
			ApplicationID: app.ID,
			Title:         "Application Withdrawn",
			Description:   "This application has been withdrawn. You can start a new application anytime.",
			ActionType:    model.ActionInformational,
			Priority:      model.PriorityLow,
		}

	default:
		return nil
	}
}

// Summary returns a short one-line summary of the current recommendation.
func Summary(app model.Application, milestones []model.Milestone, now time.Time) string {
	if Generate(app, milestones, now) == nil {
		return "No action needed"
	}

	switch app.LifecycleStatus {
	case model.StatusDocumentsInProgress:
		return fmt.Sprintf("Upload documents (%d%% complete)", app.CompletionScore)
	case model.StatusReadyToSubmit:
		return "Ready to submit"
	case model.StatusSubmittedWaiting:
		return "Awaiting review"
	case model.StatusUnderReview:
		return "Under review"
	case model.StatusAdditionalDocsRequested:
		return "Additional docs needed"
	case model.StatusBiometricScheduled:
		return "Biometric appointment scheduled"
	case model.StatusInterviewScheduled:
		return "Interview scheduled"
	case model.StatusDecisionPending:
		return "Decision pending"
	case model.StatusApproved:
		return "Approved"
	case model.StatusRejected:
		return "Decision received"
	case model.StatusWithdrawn:
		return "Withdrawn"
	default:
		return "In progress"
	}
}

// nextMilestone picks the first milestone, in order-then-plannedDate order,
// that still demands attention.
func nextMilestone(milestones []model.Milestone) *model.Milestone {
	sorted := make([]model.Milestone, len(milestones))
	copy(sorted, milestones)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].PlannedDate.Before(sorted[j].PlannedDate)
	})

	for i := range sorted {
		switch sorted[i].Status {
		case model.MilestonePending, model.MilestoneInProgress, model.MilestoneOverdue:
			return &sorted[i]
		}
	}
	return nil
}

func appointmentAction(app model.Application, m *model.Milestone, now time.Time, slug, title, verb, cta string) *model.NextAction {
	desc := fmt.Sprintf("%s %s", verb, m.PlannedDate.Format("Jan 2, 2006"))
	if m.Location != nil {
		desc += " at " + *m.Location
	}
	desc += "."
	if info := schedule.GetDaysInfo(*m, now); info.DaysRemaining != nil && *info.DaysRemaining > 0 {
		desc += fmt.Sprintf(" %d days remaining", *info.DaysRemaining)
	}

	return &model.NextAction{
		ID:                 actionID(app.ID, slug),
		ApplicationID:      app.ID,
		Title:              title,
		Description:        desc,
		ActionType:         model.ActionUserAction,
		Priority:           model.PriorityHigh,
		DueDate:            timePtr(m.PlannedDate),
		CTALabel:           strPtr("View Details"),
		CTAAction:          strPtr(cta),
		RelatedMilestoneID: strPtr(m.ID),
	}
}

func actionID(applicationID, slug string) string {
	return fmt.Sprintf("%s-action-%s", applicationID, slug)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

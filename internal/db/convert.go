package db

import "visatrack/internal/model"

// ToModel converts an application row to the domain model.
func (a Application) ToModel() model.Application {
	app := model.Application{
		ID:                    a.ID,
		UserID:                a.UserID,
		VisaType:              a.VisaType,
		LifecycleStatus:       model.LifecycleStatus(a.LifecycleStatus),
		CompletionScore:       a.CompletionScore,
		SubmittedAt:           a.SubmittedAt,
		SubmissionMethod:      a.SubmissionMethod,
		PortalReferenceNumber: a.PortalReferenceNumber,
		SubmissionNotes:       a.SubmissionNotes,
		ExpectedDecisionDate:  a.ExpectedDecisionDate,
		DecisionAt:            a.DecisionAt,
		DecisionNotes:         a.DecisionNotes,
		UserNotes:             a.UserNotes,
		LastStatusUpdate:      a.LastStatusUpdate,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
	if a.DecisionType != nil {
		dt := model.DecisionType(*a.DecisionType)
		app.DecisionType = &dt
	}
	return app
}

// ToModel converts a milestone row to the domain model.
func (m Milestone) ToModel() model.Milestone {
	return model.Milestone{
		ID:                    m.ID,
		ApplicationID:         m.ApplicationID,
		Type:                  model.MilestoneType(m.Type),
		Label:                 m.Label,
		Description:           m.Description,
		Location:              m.Location,
		PlannedDate:           m.PlannedDate,
		ActualDate:            m.ActualDate,
		Status:                model.MilestoneStatus(m.Status),
		Order:                 m.SortOrder,
		IsAutoGenerated:       m.IsAutoGenerated,
		RequirementsChecklist: m.RequirementsChecklist,
		Notes:                 m.Notes,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

// MilestonesToModel converts a slice of milestone rows.
func MilestonesToModel(rows []Milestone) []model.Milestone {
	out := make([]model.Milestone, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToModel())
	}
	return out
}

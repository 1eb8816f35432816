package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"visatrack/internal/db"
	"visatrack/internal/lifecycle"
	"visatrack/internal/model"
	"visatrack/internal/schedule"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
)

type CreateMilestoneInput struct {
	ApplicationID         string     `json:"applicationId"`
	Type                  string     `json:"type"`
	Label                 string     `json:"label"`
	Description           *string    `json:"description,omitempty"`
	Location              *string    `json:"location,omitempty"`
	PlannedDate           time.Time  `json:"plannedDate"`
	ActualDate            *time.Time `json:"actualDate,omitempty"`
	RequirementsChecklist []string   `json:"requirementsChecklist,omitempty"`
	Notes                 *string    `json:"notes,omitempty"`
}

// CreateMilestone adds a user-created milestone to an application's schedule.
func (s *ApplicationService) CreateMilestone(ctx context.Context, input CreateMilestoneInput) (*model.Milestone, error) {
	if input.Label == "" {
		return nil, &lifecycle.RuleError{
			Kind:    lifecycle.KindMissingField,
			Field:   "label",
			Message: "missing required field: label",
		}
	}
	if input.PlannedDate.IsZero() {
		return nil, &lifecycle.RuleError{
			Kind:    lifecycle.KindMissingField,
			Field:   "plannedDate",
			Message: "missing required field: plannedDate",
		}
	}

	appRow, err := s.queries.GetApplicationByID(ctx, input.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("application not found: %w", err)
	}

	existing, err := s.queries.ListMilestonesByApplication(ctx, input.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}

	m := model.Milestone{
		ID:                    ulid.Make().String(),
		ApplicationID:         input.ApplicationID,
		Type:                  model.MilestoneType(input.Type),
		Label:                 input.Label,
		Description:           input.Description,
		Location:              input.Location,
		PlannedDate:           input.PlannedDate,
		ActualDate:            input.ActualDate,
		Status:                model.MilestonePending,
		Order:                 len(existing),
		IsAutoGenerated:       false,
		RequirementsChecklist: input.RequirementsChecklist,
		Notes:                 input.Notes,
	}
	m = schedule.UpdateStatus(m, time.Now())

	row, err := s.queries.CreateMilestone(ctx, milestoneCreateParams(m))
	if err != nil {
		return nil, fmt.Errorf("failed to create milestone: %w", err)
	}
	created := row.ToModel()

	if s.jobClient != nil && created.Status != model.MilestoneCompleted {
		_ = s.jobClient.ScheduleMilestoneRecheck(created.ID, created.PlannedDate)
	}

	_ = s.bus.PublishApplication(input.ApplicationID, map[string]interface{}{
		"type":        "milestone.created",
		"milestoneId": created.ID,
	})
	_ = s.bus.PublishUser(appRow.UserID, map[string]interface{}{
		"type":          "milestone.created",
		"applicationId": input.ApplicationID,
		"milestoneId":   created.ID,
	})

	return &created, nil
}

func (s *ApplicationService) GetMilestone(ctx context.Context, id string) (*model.Milestone, error) {
	row, err := s.queries.GetMilestoneByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("milestone not found: %w", err)
	}
	m := schedule.UpdateStatus(row.ToModel(), time.Now())
	return &m, nil
}

type UpdateMilestoneInput struct {
	ID                    string     `json:"-"`
	Label                 *string    `json:"label,omitempty"`
	Description           *string    `json:"description,omitempty"`
	Location              *string    `json:"location,omitempty"`
	PlannedDate           *time.Time `json:"plannedDate,omitempty"`
	ActualDate            *time.Time `json:"actualDate,omitempty"`
	Status                *string    `json:"status,omitempty"`
	RequirementsChecklist []string   `json:"requirementsChecklist,omitempty"`
	Notes                 *string    `json:"notes,omitempty"`
}

// UpdateMilestone patches a milestone. Marking one COMPLETED without an
// actual date stamps it with the current time.
func (s *ApplicationService) UpdateMilestone(ctx context.Context, input UpdateMilestoneInput) (*model.Milestone, error) {
	existing, err := s.queries.GetMilestoneByID(ctx, input.ID)
	if err != nil {
		return nil, fmt.Errorf("milestone not found: %w", err)
	}

	actualDate := input.ActualDate
	if input.Status != nil && *input.Status == string(model.MilestoneCompleted) &&
		actualDate == nil && existing.ActualDate == nil {
		now := time.Now()
		actualDate = &now
	}

	row, err := s.queries.UpdateMilestone(ctx, db.UpdateMilestoneParams{
		ID:                    input.ID,
		Label:                 input.Label,
		Description:           input.Description,
		Location:              input.Location,
		PlannedDate:           input.PlannedDate,
		ActualDate:            actualDate,
		Status:                input.Status,
		RequirementsChecklist: input.RequirementsChecklist,
		Notes:                 input.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update milestone: %w", err)
	}

	updated := schedule.UpdateStatus(row.ToModel(), time.Now())
	if updated.Status != model.MilestoneStatus(row.Status) {
		if err := s.queries.UpdateMilestoneStatus(ctx, updated.ID, string(updated.Status)); err != nil {
			return nil, fmt.Errorf("failed to update milestone status: %w", err)
		}
	}

	_ = s.bus.PublishApplication(updated.ApplicationID, map[string]interface{}{
		"type":        "milestone.updated",
		"milestoneId": updated.ID,
		"status":      string(updated.Status),
	})

	return &updated, nil
}

func (s *ApplicationService) DeleteMilestone(ctx context.Context, id string) error {
	row, err := s.queries.GetMilestoneByID(ctx, id)
	if err != nil {
		return fmt.Errorf("milestone not found: %w", err)
	}

	if err := s.queries.DeleteMilestone(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("milestone not found: %w", err)
		}
		return fmt.Errorf("failed to delete milestone: %w", err)
	}

	_ = s.bus.PublishApplication(row.ApplicationID, map[string]interface{}{
		"type":        "milestone.deleted",
		"milestoneId": id,
	})
	return nil
}

// ListMilestones returns an application's milestones with statuses derived
// against the current time.
func (s *ApplicationService) ListMilestones(ctx context.Context, applicationID string) ([]model.Milestone, error) {
	if _, err := s.queries.GetApplicationByID(ctx, applicationID); err != nil {
		return nil, fmt.Errorf("application not found: %w", err)
	}
	return s.RefreshMilestones(ctx, applicationID)
}

func milestoneCreateParams(m model.Milestone) db.CreateMilestoneParams {
	return db.CreateMilestoneParams{
		ID:                    m.ID,
		ApplicationID:         m.ApplicationID,
		Type:                  string(m.Type),
		Label:                 m.Label,
		Description:           m.Description,
		Location:              m.Location,
		PlannedDate:           m.PlannedDate,
		ActualDate:            m.ActualDate,
		Status:                string(m.Status),
		SortOrder:             m.Order,
		IsAutoGenerated:       m.IsAutoGenerated,
		RequirementsChecklist: m.RequirementsChecklist,
		Notes:                 m.Notes,
	}
}

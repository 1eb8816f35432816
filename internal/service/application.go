package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"visatrack/internal/db"
	"visatrack/internal/lifecycle"
	"visatrack/internal/model"
	"visatrack/internal/nextaction"
	"visatrack/internal/schedule"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
)

// ErrConflict is returned when an application's status moved underneath a
// status-change request. Exactly one of two concurrent changes wins.
var ErrConflict = errors.New("application status changed concurrently")

type ApplicationService struct {
	queries   *db.Queries
	bus       EventBus
	jobClient JobClient
}

type EventBus interface {
	PublishApplication(applicationID string, event map[string]interface{}) error
	PublishUser(userID string, event map[string]interface{}) error
}

func NewApplicationService(queries *db.Queries, bus EventBus) *ApplicationService {
	return &ApplicationService{
		queries: queries,
		bus:     bus,
	}
}

// SetJobClient sets the job client for scheduling background jobs
func (s *ApplicationService) SetJobClient(client JobClient) {
	s.jobClient = client
}

type CreateApplicationInput struct {
	UserID   string `json:"userId"`
	VisaType string `json:"visaType"`
}

func (s *ApplicationService) CreateApplication(ctx context.Context, input CreateApplicationInput) (*model.Application, error) {
	if input.UserID == "" {
		return nil, &lifecycle.RuleError{
			Kind:    lifecycle.KindMissingField,
			Field:   "userId",
			Message: "missing required field: userId",
		}
	}
	if input.VisaType == "" {
		return nil, &lifecycle.RuleError{
			Kind:    lifecycle.KindMissingField,
			Field:   "visaType",
			Message: "missing required field: visaType",
		}
	}

	applicationID := ulid.Make().String()

	row, err := s.queries.CreateApplication(ctx, db.CreateApplicationParams{
		ID:              applicationID,
		UserID:          input.UserID,
		VisaType:        input.VisaType,
		LifecycleStatus: string(model.StatusDocumentsInProgress),
		CompletionScore: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	app := row.ToModel()

	_ = s.bus.PublishUser(input.UserID, map[string]interface{}{
		"type":          "application.created",
		"applicationId": applicationID,
		"visaType":      input.VisaType,
	})

	return &app, nil
}

func (s *ApplicationService) GetApplication(ctx context.Context, id string) (*model.Application, error) {
	row, err := s.queries.GetApplicationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("application not found: %w", err)
	}
	app := row.ToModel()
	return &app, nil
}

func (s *ApplicationService) ListApplications(ctx context.Context, userID string) ([]model.Application, error) {
	rows, err := s.queries.ListApplicationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	apps := make([]model.Application, 0, len(rows))
	for _, r := range rows {
		apps = append(apps, r.ToModel())
	}
	return apps, nil
}

type ChangeStatusInput struct {
	ApplicationID string
	NewStatus     model.LifecycleStatus
	Payload       lifecycle.Payload
}

// ChangeStatusResult carries the updated application plus any milestones
// generated by the transition.
type ChangeStatusResult struct {
	Application         model.Application `json:"application"`
	GeneratedMilestones []model.Milestone `json:"generatedMilestones,omitempty"`
	NextAction          *model.NextAction `json:"nextAction,omitempty"`
}

// ChangeStatus validates and applies a status transition. The validator runs
// first; on rejection nothing is written. The conditional update then makes
// the transition race-safe, and only a persisted transition triggers
// milestone generation and event publication.
func (s *ApplicationService) ChangeStatus(ctx context.Context, input ChangeStatusInput) (*ChangeStatusResult, error) {
	row, err := s.queries.GetApplicationByID(ctx, input.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("application not found: %w", err)
	}
	current := model.LifecycleStatus(row.LifecycleStatus)

	if err := lifecycle.Validate(current, input.NewStatus, input.Payload); err != nil {
		return nil, err
	}

	updated, err := s.queries.UpdateApplicationStatus(ctx, statusUpdateParams(input, current))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	app := updated.ToModel()
	now := time.Now()

	var generated []model.Milestone
	switch input.NewStatus {
	case model.StatusSubmittedWaiting:
		generated, err = s.generateMilestones(ctx, app, current, now)
		if err != nil {
			return nil, err
		}
	case model.StatusWithdrawn:
		if err := s.cancelOpenMilestones(ctx, app.ID); err != nil {
			return nil, err
		}
	case model.StatusApproved, model.StatusRejected:
		s.completeMilestoneOfType(ctx, app.ID, model.MilestoneDecision, app.DecisionAt, now)
	}

	event := map[string]interface{}{
		"type":          "status.changed",
		"applicationId": app.ID,
		"from":          string(current),
		"to":            string(input.NewStatus),
	}
	_ = s.bus.PublishApplication(app.ID, event)
	_ = s.bus.PublishUser(app.UserID, event)

	milestones, err := s.RefreshMilestones(ctx, app.ID)
	if err != nil {
		return nil, err
	}

	return &ChangeStatusResult{
		Application:         app,
		GeneratedMilestones: generated,
		NextAction:          nextaction.Generate(app, milestones, now),
	}, nil
}

func statusUpdateParams(input ChangeStatusInput, current model.LifecycleStatus) db.UpdateStatusParams {
	p := db.UpdateStatusParams{
		ID:                    input.ApplicationID,
		ExpectedStatus:        string(current),
		NewStatus:             string(input.NewStatus),
		SubmittedAt:           input.Payload.SubmittedAt,
		SubmissionMethod:      input.Payload.SubmissionMethod,
		PortalReferenceNumber: input.Payload.PortalReferenceNumber,
		SubmissionNotes:       input.Payload.SubmissionNotes,
		ExpectedDecisionDate:  input.Payload.ExpectedDecisionDate,
		DecisionAt:            input.Payload.DecisionAt,
		DecisionNotes:         input.Payload.DecisionNotes,
		UserNotes:             input.Payload.UserNotes,
	}
	if input.Payload.DecisionType != nil {
		dt := string(*input.Payload.DecisionType)
		p.DecisionType = &dt
	}
	return p
}

// generateMilestones builds the default schedule on the first submission.
// A bounce through ADDITIONAL_DOCS_REQUESTED back to SUBMITTED_WAITING keeps
// the existing schedule.
func (s *ApplicationService) generateMilestones(ctx context.Context, app model.Application, previous model.LifecycleStatus, now time.Time) ([]model.Milestone, error) {
	if previous != model.StatusReadyToSubmit {
		return nil, nil
	}
	existing, err := s.queries.ListMilestonesByApplication(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	for _, m := range existing {
		if m.IsAutoGenerated {
			return nil, nil
		}
	}

	submittedAt := now
	if app.SubmittedAt != nil {
		submittedAt = *app.SubmittedAt
	}

	planned := schedule.GenerateDefaultMilestones(app.ID, app.VisaType, submittedAt)
	params := make([]db.CreateMilestoneParams, 0, len(planned))
	for _, m := range planned {
		// The submission itself happened when the transition was recorded.
		if m.Type == model.MilestoneSubmission {
			m.ActualDate = &submittedAt
			m.Status = model.MilestoneCompleted
		} else {
			m = schedule.UpdateStatus(m, now)
		}
		params = append(params, milestoneCreateParams(m))
	}

	rows, err := s.queries.CreateMilestones(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create milestones: %w", err)
	}
	created := db.MilestonesToModel(rows)

	if s.jobClient != nil {
		for _, m := range created {
			if m.Status == model.MilestoneCompleted {
				continue
			}
			_ = s.jobClient.ScheduleMilestoneRecheck(m.ID, m.PlannedDate)
		}
	}

	_ = s.bus.PublishApplication(app.ID, map[string]interface{}{
		"type":          "milestones.generated",
		"applicationId": app.ID,
		"count":         len(created),
	})

	return created, nil
}

func (s *ApplicationService) cancelOpenMilestones(ctx context.Context, applicationID string) error {
	rows, err := s.queries.ListMilestonesByApplication(ctx, applicationID)
	if err != nil {
		return fmt.Errorf("failed to list milestones: %w", err)
	}
	for _, row := range rows {
		status := model.MilestoneStatus(row.Status)
		if status == model.MilestoneCompleted || status == model.MilestoneCancelled {
			continue
		}
		if err := s.queries.UpdateMilestoneStatus(ctx, row.ID, string(model.MilestoneCancelled)); err != nil {
			return fmt.Errorf("failed to cancel milestone: %w", err)
		}
		_ = s.bus.PublishApplication(applicationID, map[string]interface{}{
			"type":        "milestone.updated",
			"milestoneId": row.ID,
			"status":      string(model.MilestoneCancelled),
		})
	}
	return nil
}

// completeMilestoneOfType stamps the matching milestone with the actual date
// a transition supplied. Best effort; the transition already persisted.
func (s *ApplicationService) completeMilestoneOfType(ctx context.Context, applicationID string, mType model.MilestoneType, actualDate *time.Time, now time.Time) {
	rows, err := s.queries.ListMilestonesByApplication(ctx, applicationID)
	if err != nil {
		return
	}
	at := now
	if actualDate != nil {
		at = *actualDate
	}
	status := string(model.MilestoneCompleted)
	for _, row := range rows {
		if model.MilestoneType(row.Type) != mType || row.ActualDate != nil {
			continue
		}
		_, _ = s.queries.UpdateMilestone(ctx, db.UpdateMilestoneParams{
			ID:         row.ID,
			ActualDate: &at,
			Status:     &status,
		})
		_ = s.bus.PublishApplication(applicationID, map[string]interface{}{
			"type":        "milestone.updated",
			"milestoneId": row.ID,
			"status":      status,
		})
	}
}

// RefreshMilestones re-derives every milestone's status against the current
// time, persists any that moved, and returns the fresh list. Reads always go
// through this so a stale stored status never reaches a caller.
func (s *ApplicationService) RefreshMilestones(ctx context.Context, applicationID string) ([]model.Milestone, error) {
	rows, err := s.queries.ListMilestonesByApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}

	now := time.Now()
	milestones := make([]model.Milestone, 0, len(rows))
	for _, row := range rows {
		m := row.ToModel()
		updated := schedule.UpdateStatus(m, now)
		if updated.Status != m.Status {
			if err := s.queries.UpdateMilestoneStatus(ctx, m.ID, string(updated.Status)); err != nil {
				return nil, fmt.Errorf("failed to update milestone status: %w", err)
			}
		}
		milestones = append(milestones, updated)
	}
	return milestones, nil
}

// NextAction computes the single current recommendation for an application,
// or nil when there is nothing to recommend.
func (s *ApplicationService) NextAction(ctx context.Context, applicationID string) (*model.NextAction, error) {
	app, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	milestones, err := s.RefreshMilestones(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return nextaction.Generate(*app, milestones, time.Now()), nil
}

// StatusSummary renders a one-line progress summary for an application.
func (s *ApplicationService) StatusSummary(ctx context.Context, applicationID string) (string, error) {
	app, err := s.GetApplication(ctx, applicationID)
	if err != nil {
		return "", err
	}
	milestones, err := s.RefreshMilestones(ctx, applicationID)
	if err != nil {
		return "", err
	}
	return nextaction.Summary(*app, milestones, time.Now()), nil
}

func (s *ApplicationService) UpdateNotes(ctx context.Context, applicationID, notes string) error {
	if _, err := s.queries.GetApplicationByID(ctx, applicationID); err != nil {
		return fmt.Errorf("application not found: %w", err)
	}
	if err := s.queries.UpdateUserNotes(ctx, applicationID, notes); err != nil {
		return fmt.Errorf("failed to update notes: %w", err)
	}
	return nil
}

// UpdateCompletionScore records the document-readiness score. The score only
// gates the READY_TO_SUBMIT transition; storing it never changes status.
func (s *ApplicationService) UpdateCompletionScore(ctx context.Context, applicationID string, score int) error {
	if score < 0 || score > 100 {
		return &lifecycle.RuleError{
			Kind:    lifecycle.KindBusinessRule,
			Field:   "completionScore",
			Message: "completion score must be between 0 and 100",
		}
	}
	row, err := s.queries.GetApplicationByID(ctx, applicationID)
	if err != nil {
		return fmt.Errorf("application not found: %w", err)
	}
	if err := s.queries.UpdateCompletionScore(ctx, applicationID, score); err != nil {
		return fmt.Errorf("failed to update completion score: %w", err)
	}
	_ = s.bus.PublishApplication(applicationID, map[string]interface{}{
		"type":            "completion_score.updated",
		"applicationId":   applicationID,
		"completionScore": score,
	})
	_ = s.bus.PublishUser(row.UserID, map[string]interface{}{
		"type":            "completion_score.updated",
		"applicationId":   applicationID,
		"completionScore": score,
	})
	return nil
}

func (s *ApplicationService) DeleteApplication(ctx context.Context, applicationID string) error {
	row, err := s.queries.GetApplicationByID(ctx, applicationID)
	if err != nil {
		return fmt.Errorf("application not found: %w", err)
	}
	if err := s.queries.DeleteApplication(ctx, applicationID); err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}
	_ = s.bus.PublishUser(row.UserID, map[string]interface{}{
		"type":          "application.deleted",
		"applicationId": applicationID,
	})
	return nil
}

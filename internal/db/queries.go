package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries wraps database queries
type Queries struct {
	*pgxpool.Pool
}

// NewQueries creates a new Queries instance
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{Pool: pool}
}

// Application represents an application row
type Application struct {
	ID                    string
	UserID                string
	VisaType              string
	LifecycleStatus       string
	CompletionScore       int
	SubmittedAt           *time.Time
	SubmissionMethod      *string
	PortalReferenceNumber *string
	SubmissionNotes       *string
	ExpectedDecisionDate  *time.Time
	DecisionAt            *time.Time
	DecisionType          *string
	DecisionNotes         *string
	UserNotes             string
	LastStatusUpdate      *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

const applicationColumns = `id, user_id, visa_type, lifecycle_status, completion_score,
	submitted_at, submission_method, portal_reference_number, submission_notes,
	expected_decision_date, decision_at, decision_type, decision_notes,
	user_notes, last_status_update, created_at, updated_at`

func scanApplication(row pgx.Row) (Application, error) {
	var a Application
	err := row.Scan(
		&a.ID, &a.UserID, &a.VisaType, &a.LifecycleStatus, &a.CompletionScore,
		&a.SubmittedAt, &a.SubmissionMethod, &a.PortalReferenceNumber, &a.SubmissionNotes,
		&a.ExpectedDecisionDate, &a.DecisionAt, &a.DecisionType, &a.DecisionNotes,
		&a.UserNotes, &a.LastStatusUpdate, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

type CreateApplicationParams struct {
	ID              string
	UserID          string
	VisaType        string
	LifecycleStatus string
	CompletionScore int
}

func (q *Queries) CreateApplication(ctx context.Context, p CreateApplicationParams) (Application, error) {
	return scanApplication(q.Pool.QueryRow(ctx,
		`INSERT INTO applications (id, user_id, visa_type, lifecycle_status, completion_score)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+applicationColumns,
		p.ID, p.UserID, p.VisaType, p.LifecycleStatus, p.CompletionScore,
	))
}

func (q *Queries) GetApplicationByID(ctx context.Context, id string) (Application, error) {
	return scanApplication(q.Pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`,
		id,
	))
}

func (q *Queries) ListApplicationsByUser(ctx context.Context, userID string) ([]Application, error) {
	rows, err := q.Pool.Query(ctx,
		`SELECT `+applicationColumns+` FROM applications
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := make([]Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// ListActiveApplications returns applications that are not in a terminal
// status; the periodic tick sweeps these.
func (q *Queries) ListActiveApplications(ctx context.Context) ([]Application, error) {
	rows, err := q.Pool.Query(ctx,
		`SELECT `+applicationColumns+` FROM applications
		WHERE lifecycle_status NOT IN ('APPROVED', 'REJECTED', 'WITHDRAWN')
		ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := make([]Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

type UpdateStatusParams struct {
	ID                    string
	ExpectedStatus        string
	NewStatus             string
	SubmittedAt           *time.Time
	SubmissionMethod      *string
	PortalReferenceNumber *string
	SubmissionNotes       *string
	ExpectedDecisionDate  *time.Time
	DecisionAt            *time.Time
	DecisionType          *string
	DecisionNotes         *string
	UserNotes             *string
}

// UpdateApplicationStatus applies a status change plus its optional payload
// fields in one statement. The conditional on the current status guarantees a
// single in-flight status change per application; a stale expected status
// affects zero rows and returns pgx.ErrNoRows.
func (q *Queries) UpdateApplicationStatus(ctx context.Context, p UpdateStatusParams) (Application, error) {
	row := q.Pool.QueryRow(ctx,
		`UPDATE applications SET
			lifecycle_status = $3,
			submitted_at = COALESCE($4, submitted_at),
			submission_method = COALESCE($5, submission_method),
			portal_reference_number = COALESCE($6, portal_reference_number),
			submission_notes = COALESCE($7, submission_notes),
			expected_decision_date = COALESCE($8, expected_decision_date),
			decision_at = COALESCE($9, decision_at),
			decision_type = COALESCE($10, decision_type),
			decision_notes = COALESCE($11, decision_notes),
			user_notes = COALESCE($12, user_notes),
			last_status_update = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND lifecycle_status = $2
		RETURNING `+applicationColumns,
		p.ID, p.ExpectedStatus, p.NewStatus,
		p.SubmittedAt, p.SubmissionMethod, p.PortalReferenceNumber, p.SubmissionNotes,
		p.ExpectedDecisionDate, p.DecisionAt, p.DecisionType, p.DecisionNotes, p.UserNotes,
	)
	return scanApplication(row)
}

func (q *Queries) UpdateCompletionScore(ctx context.Context, id string, score int) error {
	_, err := q.Pool.Exec(ctx,
		"UPDATE applications SET completion_score = $2, updated_at = NOW() WHERE id = $1",
		id, score,
	)
	return err
}

func (q *Queries) UpdateUserNotes(ctx context.Context, id, notes string) error {
	_, err := q.Pool.Exec(ctx,
		"UPDATE applications SET user_notes = $2, updated_at = NOW() WHERE id = $1",
		id, notes,
	)
	return err
}

func (q *Queries) DeleteApplication(ctx context.Context, id string) error {
	_, err := q.Pool.Exec(ctx, "DELETE FROM applications WHERE id = $1", id)
	return err
}

// Milestone represents a milestone row
type Milestone struct {
	ID                    string
	ApplicationID         string
	Type                  string
	Label                 string
	Description           *string
	Location              *string
	PlannedDate           time.Time
	ActualDate            *time.Time
	Status                string
	SortOrder             int
	IsAutoGenerated       bool
	RequirementsChecklist []string
	Notes                 *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

const milestoneColumns = `id, application_id, type, label, description, location,
	planned_date, actual_date, status, sort_order, is_auto_generated,
	requirements_checklist, notes, created_at, updated_at`

func scanMilestone(row pgx.Row) (Milestone, error) {
	var m Milestone
	err := row.Scan(
		&m.ID, &m.ApplicationID, &m.Type, &m.Label, &m.Description, &m.Location,
		&m.PlannedDate, &m.ActualDate, &m.Status, &m.SortOrder, &m.IsAutoGenerated,
		&m.RequirementsChecklist, &m.Notes, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

type CreateMilestoneParams struct {
	ID                    string
	ApplicationID         string
	Type                  string
	Label                 string
	Description           *string
	Location              *string
	PlannedDate           time.Time
	ActualDate            *time.Time
	Status                string
	SortOrder             int
	IsAutoGenerated       bool
	RequirementsChecklist []string
	Notes                 *string
}

func (q *Queries) CreateMilestone(ctx context.Context, p CreateMilestoneParams) (Milestone, error) {
	checklist := p.RequirementsChecklist
	if checklist == nil {
		checklist = []string{}
	}
	return scanMilestone(q.Pool.QueryRow(ctx,
		`INSERT INTO milestones (
			id, application_id, type, label, description, location,
			planned_date, actual_date, status, sort_order, is_auto_generated,
			requirements_checklist, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+milestoneColumns,
		p.ID, p.ApplicationID, p.Type, p.Label, p.Description, p.Location,
		p.PlannedDate, p.ActualDate, p.Status, p.SortOrder, p.IsAutoGenerated,
		checklist, p.Notes,
	))
}

// CreateMilestones inserts a batch inside one transaction so a partially
// generated schedule never persists.
func (q *Queries) CreateMilestones(ctx context.Context, params []CreateMilestoneParams) ([]Milestone, error) {
	tx, err := q.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	created := make([]Milestone, 0, len(params))
	for _, p := range params {
		checklist := p.RequirementsChecklist
		if checklist == nil {
			checklist = []string{}
		}
		m, err := scanMilestone(tx.QueryRow(ctx,
			`INSERT INTO milestones (
				id, application_id, type, label, description, location,
				planned_date, actual_date, status, sort_order, is_auto_generated,
				requirements_checklist, notes
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING `+milestoneColumns,
			p.ID, p.ApplicationID, p.Type, p.Label, p.Description, p.Location,
			p.PlannedDate, p.ActualDate, p.Status, p.SortOrder, p.IsAutoGenerated,
			checklist, p.Notes,
		))
		if err != nil {
			return nil, err
		}
		created = append(created, m)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (q *Queries) GetMilestoneByID(ctx context.Context, id string) (Milestone, error) {
	return scanMilestone(q.Pool.QueryRow(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE id = $1`,
		id,
	))
}

func (q *Queries) ListMilestonesByApplication(ctx context.Context, applicationID string) ([]Milestone, error) {
	rows, err := q.Pool.Query(ctx,
		`SELECT `+milestoneColumns+` FROM milestones
		WHERE application_id = $1
		ORDER BY sort_order ASC, planned_date ASC`,
		applicationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	milestones := make([]Milestone, 0)
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

type UpdateMilestoneParams struct {
	ID                    string
	Label                 *string
	Description           *string
	Location              *string
	PlannedDate           *time.Time
	ActualDate            *time.Time
	Status                *string
	RequirementsChecklist []string
	Notes                 *string
}

func (q *Queries) UpdateMilestone(ctx context.Context, p UpdateMilestoneParams) (Milestone, error) {
	return scanMilestone(q.Pool.QueryRow(ctx,
		`UPDATE milestones SET
			label = COALESCE($2, label),
			description = COALESCE($3, description),
			location = COALESCE($4, location),
			planned_date = COALESCE($5, planned_date),
			actual_date = COALESCE($6, actual_date),
			status = COALESCE($7, status),
			requirements_checklist = COALESCE($8, requirements_checklist),
			notes = COALESCE($9, notes),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+milestoneColumns,
		p.ID, p.Label, p.Description, p.Location, p.PlannedDate, p.ActualDate,
		p.Status, p.RequirementsChecklist, p.Notes,
	))
}

func (q *Queries) UpdateMilestoneStatus(ctx context.Context, id, status string) error {
	_, err := q.Pool.Exec(ctx,
		"UPDATE milestones SET status = $2, updated_at = NOW() WHERE id = $1",
		id, status,
	)
	return err
}

func (q *Queries) DeleteMilestone(ctx context.Context, id string) error {
	result, err := q.Pool.Exec(ctx, "DELETE FROM milestones WHERE id = $1", id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

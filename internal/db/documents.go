package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"visatrack/internal/model"
)

// Document represents a supporting-document row
type Document struct {
	ID            string
	ApplicationID string
	Name          string
	Type          string
	MIME          string
	SizeBytes     int64
	SHA256        *string
	ObjectName    string
	Status        string
	Issues        []string
	ExtractedData map[string]interface{}
	UploadedAt    time.Time
	UpdatedAt     time.Time
}

const documentColumns = `id, application_id, name, type, mime, size_bytes, sha256,
	object_name, status, issues, extracted_data, uploaded_at, updated_at`

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	err := row.Scan(
		&d.ID, &d.ApplicationID, &d.Name, &d.Type, &d.MIME, &d.SizeBytes, &d.SHA256,
		&d.ObjectName, &d.Status, &d.Issues, &d.ExtractedData, &d.UploadedAt, &d.UpdatedAt,
	)
	return d, err
}

type CreateDocumentParams struct {
	ID            string
	ApplicationID string
	Name          string
	Type          string
	MIME          string
	SizeBytes     int64
	SHA256        *string
	ObjectName    string
	Status        string
}

func (q *Queries) CreateDocument(ctx context.Context, p CreateDocumentParams) (Document, error) {
	return scanDocument(q.Pool.QueryRow(ctx,
		`INSERT INTO documents (id, application_id, name, type, mime, size_bytes, sha256, object_name, status, issues, extracted_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '{}', '{}')
		RETURNING `+documentColumns,
		p.ID, p.ApplicationID, p.Name, p.Type, p.MIME, p.SizeBytes, p.SHA256, p.ObjectName, p.Status,
	))
}

func (q *Queries) GetDocumentByID(ctx context.Context, id string) (Document, error) {
	return scanDocument(q.Pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`,
		id,
	))
}

func (q *Queries) ListDocumentsByApplication(ctx context.Context, applicationID string) ([]Document, error) {
	rows, err := q.Pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		WHERE application_id = $1
		ORDER BY uploaded_at ASC`,
		applicationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	documents := make([]Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		documents = append(documents, d)
	}
	return documents, rows.Err()
}

type UpdateDocumentAnalysisParams struct {
	ID            string
	Type          *string
	Status        string
	Issues        []string
	ExtractedData map[string]interface{}
}

func (q *Queries) UpdateDocumentAnalysis(ctx context.Context, p UpdateDocumentAnalysisParams) (Document, error) {
	issues := p.Issues
	if issues == nil {
		issues = []string{}
	}
	extracted := p.ExtractedData
	if extracted == nil {
		extracted = map[string]interface{}{}
	}
	return scanDocument(q.Pool.QueryRow(ctx,
		`UPDATE documents SET
			type = COALESCE($2, type),
			status = $3,
			issues = $4,
			extracted_data = $5,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+documentColumns,
		p.ID, p.Type, p.Status, issues, extracted,
	))
}

func (q *Queries) DeleteDocument(ctx context.Context, id string) error {
	result, err := q.Pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ToModel converts a document row to the domain model
func (d Document) ToModel() model.Document {
	return model.Document{
		ID:            d.ID,
		ApplicationID: d.ApplicationID,
		Name:          d.Name,
		Type:          d.Type,
		Status:        model.DocumentStatus(d.Status),
		Issues:        d.Issues,
		ExtractedData: d.ExtractedData,
		UploadedAt:    d.UploadedAt,
	}
}

package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"visatrack/internal/ai"
	"visatrack/internal/db"
	"visatrack/internal/docs"
	"visatrack/internal/lifecycle"
	"visatrack/internal/model"
	"visatrack/internal/schedule"

	"github.com/oklog/ulid/v2"
)

// Analyzer is the document classifier and report writer. Implementations
// return validated verdicts; callers never see raw model output.
type Analyzer interface {
	AnalyzeDocument(ctx context.Context, fileBase64, mimeType, expectedType string) (*ai.AnalysisResult, error)
	GenerateReport(ctx context.Context, app model.Application, milestones []model.Milestone, documents []model.Document) (*ai.Report, error)
}

type DocumentService struct {
	queries  *db.Queries
	storage  docs.Storage
	policy   *docs.UploadPolicy
	analyzer Analyzer
	appSvc   *ApplicationService
	bus      EventBus
}

func NewDocumentService(queries *db.Queries, storage docs.Storage, policy *docs.UploadPolicy, analyzer Analyzer, appSvc *ApplicationService, bus EventBus) *DocumentService {
	if policy == nil {
		policy = docs.DefaultPolicy()
	}
	return &DocumentService{
		queries:  queries,
		storage:  storage,
		policy:   policy,
		analyzer: analyzer,
		appSvc:   appSvc,
		bus:      bus,
	}
}

type UploadDocumentInput struct {
	ApplicationID string
	Name          string
	Type          string
	MIME          string
	Content       []byte
}

// UploadDocument validates an upload against the policy, stores the file,
// and records a PENDING document awaiting analysis.
func (s *DocumentService) UploadDocument(ctx context.Context, input UploadDocumentInput) (*model.Document, error) {
	meta := docs.Metadata{
		Name: input.Name,
		Type: input.Type,
		MIME: input.MIME,
		Size: int64(len(input.Content)),
	}
	if err := docs.ValidateMetadata(meta); err != nil {
		return nil, &lifecycle.RuleError{
			Kind:    lifecycle.KindMissingField,
			Message: err.Error(),
		}
	}
	if err := s.policy.ValidateFile(input.Name, input.MIME, meta.Size); err != nil {
		return nil, &lifecycle.RuleError{
			Kind:    lifecycle.KindBusinessRule,
			Message: err.Error(),
		}
	}

	if _, err := s.queries.GetApplicationByID(ctx, input.ApplicationID); err != nil {
		return nil, fmt.Errorf("application not found: %w", err)
	}

	documentID := ulid.Make().String()
	objectName := fmt.Sprintf("%s/%s-%s", input.ApplicationID, documentID, input.Name)

	sha, err := docs.CalculateSHA256(bytes.NewReader(input.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to hash document: %w", err)
	}

	if err := s.storage.Put(ctx, objectName, bytes.NewReader(input.Content)); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	row, err := s.queries.CreateDocument(ctx, db.CreateDocumentParams{
		ID:            documentID,
		ApplicationID: input.ApplicationID,
		Name:          input.Name,
		Type:          strings.ToLower(input.Type),
		MIME:          input.MIME,
		SizeBytes:     meta.Size,
		SHA256:        &sha,
		ObjectName:    objectName,
		Status:        string(model.DocumentPending),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	doc := row.ToModel()
	_ = s.bus.PublishApplication(input.ApplicationID, map[string]interface{}{
		"type":       "document.uploaded",
		"documentId": documentID,
		"name":       input.Name,
	})

	return &doc, nil
}

// AnalyzeDocument runs the classifier over a stored document and records the
// verdict. The application's completion score is recomputed afterwards.
func (s *DocumentService) AnalyzeDocument(ctx context.Context, documentID string) (*model.Document, error) {
	row, err := s.queries.GetDocumentByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("document not found: %w", err)
	}

	reader, err := s.storage.Get(ctx, row.ObjectName)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	result, err := s.analyzer.AnalyzeDocument(ctx,
		base64.StdEncoding.EncodeToString(content), row.MIME, row.Type)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	var detectedType *string
	if result.DocumentType != "" {
		dt := strings.ToLower(result.DocumentType)
		detectedType = &dt
	}
	updated, err := s.queries.UpdateDocumentAnalysis(ctx, db.UpdateDocumentAnalysisParams{
		ID:            documentID,
		Type:          detectedType,
		Status:        string(result.Status),
		Issues:        result.Issues,
		ExtractedData: result.ExtractedData,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record analysis: %w", err)
	}

	doc := updated.ToModel()
	_ = s.bus.PublishApplication(row.ApplicationID, map[string]interface{}{
		"type":       "document.analyzed",
		"documentId": documentID,
		"status":     string(doc.Status),
	})

	if err := s.RecomputeCompletionScore(ctx, row.ApplicationID); err != nil {
		return nil, err
	}

	return &doc, nil
}

// RecomputeCompletionScore rescores document readiness from the valid
// uploads on file.
func (s *DocumentService) RecomputeCompletionScore(ctx context.Context, applicationID string) error {
	app, err := s.queries.GetApplicationByID(ctx, applicationID)
	if err != nil {
		return fmt.Errorf("application not found: %w", err)
	}

	rows, err := s.queries.ListDocumentsByApplication(ctx, applicationID)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	validTypes := make([]string, 0, len(rows))
	for _, row := range rows {
		if model.DocumentStatus(row.Status) == model.DocumentValid {
			validTypes = append(validTypes, row.Type)
		}
	}

	score := docs.CompletionScore(app.VisaType, validTypes)
	if score == app.CompletionScore {
		return nil
	}
	return s.appSvc.UpdateCompletionScore(ctx, applicationID, score)
}

func (s *DocumentService) ListDocuments(ctx context.Context, applicationID string) ([]model.Document, error) {
	if _, err := s.queries.GetApplicationByID(ctx, applicationID); err != nil {
		return nil, fmt.Errorf("application not found: %w", err)
	}
	rows, err := s.queries.ListDocumentsByApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	documents := make([]model.Document, 0, len(rows))
	for _, row := range rows {
		documents = append(documents, row.ToModel())
	}
	return documents, nil
}

func (s *DocumentService) DeleteDocument(ctx context.Context, documentID string) error {
	row, err := s.queries.GetDocumentByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("document not found: %w", err)
	}

	if err := s.queries.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	// Blob removal is best effort; an orphaned object is harmless
	_ = s.storage.Delete(ctx, row.ObjectName)

	_ = s.bus.PublishApplication(row.ApplicationID, map[string]interface{}{
		"type":       "document.deleted",
		"documentId": documentID,
	})

	return s.RecomputeCompletionScore(ctx, row.ApplicationID)
}

// GenerateReport writes a progress report for an application from its
// current milestones and documents.
func (s *DocumentService) GenerateReport(ctx context.Context, applicationID string) (*ai.Report, error) {
	appRow, err := s.queries.GetApplicationByID(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("application not found: %w", err)
	}
	app := appRow.ToModel()

	msRows, err := s.queries.ListMilestonesByApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	now := time.Now()
	milestones := make([]model.Milestone, 0, len(msRows))
	for _, row := range msRows {
		milestones = append(milestones, schedule.UpdateStatus(row.ToModel(), now))
	}

	documents, err := s.ListDocuments(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	return s.analyzer.GenerateReport(ctx, app, milestones, documents)
}

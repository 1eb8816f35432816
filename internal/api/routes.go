package api

import (
	"net/http"
	"os"

	"visatrack/internal/auth"
	"visatrack/internal/db"
	"visatrack/internal/docs"
	"visatrack/internal/pubsub"
	"visatrack/internal/service"
	"visatrack/internal/ws"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Dependencies struct {
	DB        *db.Pool
	Bus       *pubsub.Bus
	Hub       *ws.Hub
	Log       *zap.Logger
	JobClient service.JobClient
	Storage   docs.Storage
	Analyzer  service.Analyzer
}

func Routes(d Dependencies) http.Handler {
	r := chi.NewRouter()

	// Add request logging middleware
	r.Use(RequestLogger(d.Log))

	// Add JWT authentication middleware (optional - allows anonymous access)
	jwtSecret := os.Getenv("JWT_SECRET")
	jwtConfig := auth.NewJWTConfig(jwtSecret)
	r.Use(jwtConfig.Middleware)

	// Application endpoints
	r.Post("/applications", d.createApplication)
	r.Get("/applications", d.listApplications)
	r.Get("/applications/{id}", d.getApplication)
	r.Delete("/applications/{id}", d.deleteApplication)
	r.Post("/applications/{id}/status", d.changeStatus)
	r.Get("/applications/{id}/next-action", d.nextAction)
	r.Get("/applications/{id}/summary", d.statusSummary)
	r.Put("/applications/{id}/notes", d.updateNotes)
	r.Put("/applications/{id}/completion-score", d.updateCompletionScore)
	r.Get("/applications/{id}/events", d.eventHistory)

	// Milestone endpoints
	r.Get("/applications/{id}/milestones", d.listMilestones)
	r.Post("/applications/{id}/milestones", d.createMilestone)
	r.Get("/milestones/{id}", d.getMilestone)
	r.Patch("/milestones/{id}", d.updateMilestone)
	r.Delete("/milestones/{id}", d.deleteMilestone)

	// Document endpoints
	r.Post("/applications/{id}/documents", d.uploadDocument)
	r.Get("/applications/{id}/documents", d.listDocuments)
	r.Post("/documents/{id}/analyze", d.analyzeDocument)
	r.Delete("/documents/{id}", d.deleteDocument)
	r.Post("/applications/{id}/report", d.generateReport)

	// Reference data
	r.Get("/visa-types", d.listVisaTypes)

	// WebSocket endpoint
	r.Get("/ws", d.wsHandler)

	return r
}

func (d Dependencies) applicationService() *service.ApplicationService {
	svc := service.NewApplicationService(d.DB.Queries, d.Bus)
	if d.JobClient != nil {
		svc.SetJobClient(d.JobClient)
	}
	return svc
}

func (d Dependencies) documentService() *service.DocumentService {
	return service.NewDocumentService(d.DB.Queries, d.Storage, nil, d.Analyzer, d.applicationService(), d.Bus)
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"visatrack/internal/auth"
	"visatrack/internal/lifecycle"
	"visatrack/internal/model"
	"visatrack/internal/schedule"
	"visatrack/internal/service"

	"github.com/go-chi/chi/v5"
)

// writeServiceError maps domain errors to HTTP status codes. Business
// rejections are expected outcomes and carry the rule's message verbatim.
func (d Dependencies) writeServiceError(w http.ResponseWriter, err error) {
	var ruleErr *lifecycle.RuleError
	if errors.As(err, &ruleErr) {
		status := http.StatusUnprocessableEntity
		if ruleErr.Kind == lifecycle.KindInvalidTransition {
			status = http.StatusConflict
		}
		WriteError(w, status, string(ruleErr.Kind), ruleErr.Message, d.Log)
		return
	}
	if errors.Is(err, service.ErrConflict) {
		WriteError(w, http.StatusConflict, "conflict", err.Error(), d.Log)
		return
	}
	WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), d.Log)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

type CreateApplicationRequest struct {
	VisaType string `json:"visaType"`
	UserID   string `json:"userId,omitempty"`
}

func (d Dependencies) createApplication(w http.ResponseWriter, r *http.Request) {
	var req CreateApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	userID := auth.GetUserID(r.Context())
	if userID == "" {
		userID = req.UserID
	}

	app, err := d.applicationService().CreateApplication(r.Context(), service.CreateApplicationInput{
		UserID:   userID,
		VisaType: req.VisaType,
	})
	if err != nil {
		d.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, app)
}

func (d Dependencies) listApplications(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	if userID == "" {
		userID = r.URL.Query().Get("userId")
	}
	if userID == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "userId required", d.Log)
		return
	}

	apps, err := d.applicationService().ListApplications(r.Context(), userID)
	if err != nil {
		d.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"applications": apps})
}

func (d Dependencies) getApplication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	svc := d.applicationService()

	app, err := svc.GetApplication(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Application not found", d.Log)
		return
	}

	milestones, err := svc.RefreshMilestones(r.Context(), id)
	if err != nil {
		d.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"application": app,
		"milestones":  milestones,
	})
}

func (d Dependencies) deleteApplication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := d.applicationService().DeleteApplication(r.Context(), id); err != nil {
		WriteError(w, http.StatusNotFound, "not_found", err.Error(), d.Log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "DELETED"})
}

type ChangeStatusRequest struct {
	NewStatus             string     `json:"newStatus"`
	CompletionScore       *int       `json:"completionScore,omitempty"`
	SubmittedAt           *time.Time `json:"submittedAt,omitempty"`
	SubmissionMethod      *string    `json:"submissionMethod,omitempty"`
	PortalReferenceNumber *string    `json:"portalReferenceNumber,omitempty"`
	SubmissionNotes       *string    `json:"submissionNotes,omitempty"`
	ExpectedDecisionDate  *time.Time `json:"expectedDecisionDate,omitempty"`
	DecisionAt            *time.Time `json:"decisionAt,omitempty"`
	DecisionType          *string    `json:"decisionType,omitempty"`
	DecisionNotes         *string    `json:"decisionNotes,omitempty"`
	UserNotes             *string    `json:"userNotes,omitempty"`
}

func (d Dependencies) changeStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if req.NewStatus == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "newStatus required", d.Log)
		return
	}

	payload := lifecycle.Payload{
		CompletionScore:       req.CompletionScore,
		SubmittedAt:           req.SubmittedAt,
		SubmissionMethod:      req.SubmissionMethod,
		PortalReferenceNumber: req.PortalReferenceNumber,
		SubmissionNotes:       req.SubmissionNotes,
		ExpectedDecisionDate:  req.ExpectedDecisionDate,
		DecisionAt:            req.DecisionAt,
		DecisionNotes:         req.DecisionNotes,
		UserNotes:             req.UserNotes,
	}
	if req.DecisionType != nil {
		dt := model.DecisionType(*req.DecisionType)
		payload.DecisionType = &dt
	}

	result, err := d.applicationService().ChangeStatus(r.Context(), service.ChangeStatusInput{
		ApplicationID: id,
		NewStatus:     model.LifecycleStatus(req.NewStatus),
		Payload:       payload,
	})
	if err != nil {
		d.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (d Dependencies) nextAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	action, err := d.applicationService().NextAction(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", err.Error(), d.Log)
		return
	}

	response := map[string]interface{}{"applicationId": id}
	if action != nil {
		response["nextAction"] = action
	}
	writeJSON(w, http.StatusOK, response)
}

func (d Dependencies) statusSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	summary, err := d.applicationService().StatusSummary(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", err.Error(), d.Log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"applicationId": id,
		"summary":       summary,
	})
}

type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

func (d Dependencies) updateNotes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	if err := d.applicationService().UpdateNotes(r.Context(), id, req.Notes); err != nil {
		WriteError(w, http.StatusNotFound, "not_found", err.Error(), d.Log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "UPDATED"})
}

type UpdateCompletionScoreRequest struct {
	CompletionScore int `json:"completionScore"`
}

func (d Dependencies) updateCompletionScore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateCompletionScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	if err := d.applicationService().UpdateCompletionScore(r.Context(), id, req.CompletionScore); err != nil {
		d.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "UPDATED",
		"completionScore": req.CompletionScore,
	})
}

// eventHistory returns the recent events on an application's channel
func (d Dependencies) eventHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	events, err := d.Bus.GetStreams().History("application:"+id, 100)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "history_failed", err.Error(), d.Log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"applicationId": id,
		"events":        events,
	})
}

func (d Dependencies) listVisaTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"visaTypes": schedule.KnownVisaTypes(),
	})
}

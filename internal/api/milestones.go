package api

import (
	"encoding/json"
	"net/http"
	"time"

	"visatrack/internal/service"

	"github.com/go-chi/chi/v5"
)

func (d Dependencies) listMilestones(w http.ResponseWriter, r *http.Request) {
	applicationID := chi.URLParam(r, "id")

	milestones, err := d.applicationService().ListMilestones(r.Context(), applicationID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", err.Error(), d.Log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"applicationId": applicationID,
		"milestones":    milestones,
	})
}

type CreateMilestoneRequest struct {
	Type                  string     `json:"type"`
	Label                 string     `json:"label"`
	Description           *string    `json:"description,omitempty"`
	Location              *string    `json:"location,omitempty"`
	PlannedDate           time.Time  `json:"plannedDate"`
	ActualDate            *time.Time `json:"actualDate,omitempty"`
	RequirementsChecklist []string   `json:"requirementsChecklist,omitempty"`
	Notes                 *string    `json:"notes,omitempty"`
}

func (d Dependencies) createMilestone(w http.ResponseWriter, r *http.Request) {
	applicationID := chi.URLParam(r, "id")

	var req CreateMilestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	milestone, err := d.applicationService().CreateMilestone(r.Context(), service.CreateMilestoneInput{
		ApplicationID:         applicationID,
		Type:                  req.Type,
		Label:                 req.Label,
		Description:           req.Description,
		Location:              req.Location,
		PlannedDate:           req.PlannedDate,
		ActualDate:            req.ActualDate,
		RequirementsChecklist: req.RequirementsChecklist,
		Notes:                 req.Notes,
	})
	if err != nil {
		d.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, milestone)
}

func (d Dependencies) getMilestone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	milestone, err := d.applicationService().GetMilestone(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Milestone not found", d.Log)
		return
	}

	writeJSON(w, http.StatusOK, milestone)
}

func (d Dependencies) updateMilestone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req service.UpdateMilestoneInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	req.ID = id

	milestone, err := d.applicationService().UpdateMilestone(r.Context(), req)
	if err != nil {
		d.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, milestone)
}

func (d Dependencies) deleteMilestone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := d.applicationService().DeleteMilestone(r.Context(), id); err != nil {
		WriteError(w, http.StatusNotFound, "not_found", err.Error(), d.Log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "DELETED"})
}

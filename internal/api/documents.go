package api

import (
	"io"
	"net/http"

	"visatrack/internal/service"

	"github.com/go-chi/chi/v5"
)

// maxUploadBytes caps the multipart form size before the policy even looks
// at the file.
const maxUploadBytes = 32 << 20

func (d Dependencies) uploadDocument(w http.ResponseWriter, r *http.Request) {
	applicationID := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid multipart form", d.Log)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "file field required", d.Log)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Failed to read file", d.Log)
		return
	}

	docType := r.FormValue("type")
	if docType == "" {
		docType = "general"
	}

	doc, err := d.documentService().UploadDocument(r.Context(), service.UploadDocumentInput{
		ApplicationID: applicationID,
		Name:          header.Filename,
		Type:          docType,
		MIME:          header.Header.Get("Content-Type"),
		Content:       content,
	})
	if err != nil {
		d.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (d Dependencies) listDocuments(w http.ResponseWriter, r *http.Request) {
	applicationID := chi.URLParam(r, "id")

	documents, err := d.documentService().ListDocuments(r.Context(), applicationID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", err.Error(), d.Log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"applicationId": applicationID,
		"documents":     documents,
	})
}

func (d Dependencies) analyzeDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := d.documentService().AnalyzeDocument(r.Context(), id)
	if err != nil {
		d.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (d Dependencies) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := d.documentService().DeleteDocument(r.Context(), id); err != nil {
		WriteError(w, http.StatusNotFound, "not_found", err.Error(), d.Log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "DELETED"})
}

func (d Dependencies) generateReport(w http.ResponseWriter, r *http.Request) {
	applicationID := chi.URLParam(r, "id")

	report, err := d.documentService().GenerateReport(r.Context(), applicationID)
	if err != nil {
		d.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"applicationId": applicationID,
		"report":        report,
	})
}

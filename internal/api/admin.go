package api

import (
	"dedupstore/internal/files"
	"dedupstore/internal/models"
	"net/http"
)

type AdminHandler struct {
	files *files.FileService
}

func NewAdminHandler(fileService *files.FileService) *AdminHandler {
	return &AdminHandler{files: fileService}
}

func (h *AdminHandler) ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.files.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []models.FileRecord{}
	}
	writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Data: records})
}

// AuditHandler reports records whose blob is missing or was never written.
func (h *AdminHandler) AuditHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.files.Audit(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Data: report})
}

func (h *AdminHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.files.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Data: stats})
}

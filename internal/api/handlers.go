package api

import (
	"dedupstore/internal/files"
	"dedupstore/internal/models"
	"encoding/json"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const uploadField = "file"

type API struct {
	files          *files.FileService
	maxUploadBytes int64
}

// New returns the public file API. maxUploadBytes <= 0 disables the size limit.
func New(fileService *files.FileService, maxUploadBytes int64) *API {
	return &API{files: fileService, maxUploadBytes: maxUploadBytes}
}

func writeJSON(w http.ResponseWriter, status int, resp models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.APIResponse{Success: false, Message: message})
}

// writeError maps client errors to 400 and everything else to 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if models.IsClientError(err) {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	message := "internal server error"
	if errors.Is(err, models.ErrInconsistent) {
		message = models.ErrInconsistent.Error()
	}
	writeFailure(w, http.StatusInternalServerError, message)
}

// UploadHandler accepts a multipart form with a "file" part and streams it to the file service.
func (a *API) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if a.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "expected multipart/form-data body")
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "malformed multipart body")
			return
		}
		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}

		filename := part.FileName()
		if filename == "" {
			_ = part.Close()
			writeFailure(w, http.StatusBadRequest, "file part has no filename")
			return
		}

		record, err := a.files.Upload(r.Context(), filename, part)
		_ = part.Close()
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				writeFailure(w, http.StatusRequestEntityTooLarge, "upload exceeds "+strconv.FormatInt(tooBig.Limit, 10)+" bytes")
				return
			}
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Data: record})
		return
	}

	writeFailure(w, http.StatusBadRequest, `missing "file" part`)
}

// DownloadHandler streams the blob of a record as an attachment.
func (a *API) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := a.files.Download(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer func() { _ = d.Body.Close() }()

	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(d.Size, 10))
	w.Header().Set("Content-Disposition", d.Disposition)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, d.Body); err != nil {
		slog.Warn("download interrupted", "id", id, "error", err)
	}
}

// LookupHandler returns the metadata record of a file.
func (a *API) LookupHandler(w http.ResponseWriter, r *http.Request) {
	record, err := a.files.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Data: record})
}

func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

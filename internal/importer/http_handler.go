package importer

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/lotware/prodimport/internal/auth"
	"github.com/lotware/prodimport/internal/domain"
	"github.com/lotware/prodimport/internal/repository"
	"github.com/lotware/prodimport/internal/schema"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxUploadBytes bounds one multipart upload held in memory.
const maxUploadBytes = 64 << 20

// HTTPHandler exposes the import pipeline over REST.
type HTTPHandler struct {
	service *Service
}

// NewHTTPHandler creates the handler around the import service.
func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// Routes mounts the job endpoints. The tenant middleware has already run, so
// every handler can assume a tenant scope in the context.
func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.createJob)
	r.Get("/{jobID}", h.getJob)
	r.Get("/{jobID}/errors", h.getJobErrors)
	r.Post("/{jobID}/commit", h.commitJob)
	return r
}

func (h *HTTPHandler) createJob(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.RequireTenant(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "", err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "", errors.New("request must be multipart/form-data"))
		return
	}

	req := CreateJobRequest{
		TenantID:  tenantID,
		TableCode: r.FormValue("tableCode"),
	}
	if raw := r.FormValue("allowDuplicate"); raw != "" {
		allow, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "", errors.New("allowDuplicate must be a boolean"))
			return
		}
		req.AllowDuplicate = allow
	}

	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["files"] {
			f, openErr := header.Open()
			if openErr != nil {
				writeError(w, http.StatusBadRequest, string(domain.KindFileUnreadable), openErr)
				return
			}
			data, readErr := io.ReadAll(f)
			_ = f.Close()
			if readErr != nil {
				writeError(w, http.StatusBadRequest, string(domain.KindFileUnreadable), readErr)
				return
			}
			req.Files = append(req.Files, FileUpload{Name: header.Filename, Data: data})
		}
	}

	job, err := h.service.CreateJob(r.Context(), req)
	if err != nil {
		status, kind := intakeErrorStatus(err)
		writeError(w, status, kind, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *HTTPHandler) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *HTTPHandler) getJobErrors(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}

	errs, err := h.service.JobErrors(r.Context(), job.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id": job.ID,
		"total":  len(errs),
		"errors": errs,
	})
}

func (h *HTTPHandler) commitJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}

	committed, err := h.service.Commit(r.Context(), job.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidState):
			writeError(w, http.StatusConflict, string(domain.KindInvalidState), err)
		case errors.Is(err, ErrCommitFailed):
			writeError(w, http.StatusInternalServerError, string(domain.KindCommitFailed), err)
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "", err)
		default:
			writeError(w, http.StatusInternalServerError, "", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, committed)
}

// lookupJob resolves the path parameter and enforces the tenant boundary:
// another tenant's job is indistinguishable from a missing one.
func (h *HTTPHandler) lookupJob(w http.ResponseWriter, r *http.Request) (domain.ImportJob, bool) {
	tenantID, err := auth.RequireTenant(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "", err)
		return domain.ImportJob{}, false
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "", errors.New("invalid job id"))
		return domain.ImportJob{}, false
	}

	job, err := h.service.Job(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "", errors.New("job not found"))
		} else {
			writeError(w, http.StatusInternalServerError, "", err)
		}
		return domain.ImportJob{}, false
	}
	if job.TenantID != tenantID {
		writeError(w, http.StatusNotFound, "", errors.New("job not found"))
		return domain.ImportJob{}, false
	}
	return job, true
}

func intakeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, schema.ErrUnknownTableCode):
		return http.StatusBadRequest, string(domain.KindUnknownTableCode)
	case errors.Is(err, ErrMixedExtensions):
		return http.StatusBadRequest, string(domain.KindMixedExtensions)
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrNoFiles), errors.Is(err, ErrEmptyFile):
		return http.StatusBadRequest, ""
	case errors.Is(err, ErrDuplicateFile):
		return http.StatusConflict, string(domain.KindDuplicateFile)
	default:
		return http.StatusInternalServerError, ""
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[HTTP] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	body := map[string]any{"error": err.Error()}
	if kind != "" {
		body["kind"] = kind
	}
	writeJSON(w, status, body)
}

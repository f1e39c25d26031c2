package export

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lotware/prodimport/internal/auth"
	"github.com/lotware/prodimport/internal/domain"
	"github.com/lotware/prodimport/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler serves error report downloads.
type Handler struct {
	service *Service
}

// NewHTTPHandler creates the report download handler.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the download endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{jobID}/errors.csv", h.downloadCSV)
	r.Get("/{jobID}/errors.xlsx", h.downloadXLSX)
	return r
}

func (h *Handler) downloadCSV(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportFileName(job, "csv")))
	if err := h.service.WriteCSV(r.Context(), w, job.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) downloadXLSX(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportFileName(job, "xlsx")))
	if err := h.service.WriteXLSX(r.Context(), w, job.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) lookupJob(w http.ResponseWriter, r *http.Request) (domain.ImportJob, bool) {
	tenantID, err := auth.RequireTenant(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return domain.ImportJob{}, false
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return domain.ImportJob{}, false
	}

	job, err := h.service.Job(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return domain.ImportJob{}, false
	}
	if job.TenantID != tenantID {
		http.Error(w, "job not found", http.StatusNotFound)
		return domain.ImportJob{}, false
	}
	return job, true
}

func reportFileName(job domain.ImportJob, extension string) string {
	return fmt.Sprintf("%s-errors-%s.%s", job.TableCode, job.ID, extension)
}

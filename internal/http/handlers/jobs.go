package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/cases"

	"videokit/internal/domain"
	"videokit/internal/jobs"
)

type jobListResponse struct {
	Items []*domain.Job `json:"items"`
	Total int           `json:"total"`
}

// ListJobs returns jobs most recently active first, narrowed by ?status= and a prompt ?q=.
func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	items := a.Jobs.Filter(r.URL.Query().Get("status"))
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		fold := cases.Fold()
		needle := fold.String(q)
		matched := items[:0]
		for _, j := range items {
			if strings.Contains(fold.String(j.Prompt), needle) {
				matched = append(matched, j)
			}
		}
		items = matched
	}
	a.json(w, http.StatusOK, jobListResponse{Items: items, Total: len(items)})
}

// CreateJob submits a new generation. The flow outlives the request so a client disconnect
// does not strand the job mid-upload.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobs.CreateRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	job, err := a.Jobs.Generate(context.WithoutCancel(r.Context()), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, job)
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := a.Jobs.Get(id)
	if !ok {
		a.fail(w, r, fmt.Errorf("job %s: %w", id, domain.ErrNotFound))
		return
	}
	a.json(w, http.StatusOK, job)
}

func (a *App) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := a.Jobs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckJob runs one manual status query and reports its outcome.
func (a *App) CheckJob(w http.ResponseWriter, r *http.Request) {
	out, err := a.Checker.CheckOnce(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, out)
}

// ListPrompts serves the prompt history used for autocomplete.
func (a *App) ListPrompts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.error(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	a.json(w, http.StatusOK, map[string]any{
		"items": a.Jobs.SearchPrompts(r.URL.Query().Get("q"), limit),
	})
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"videokit/internal/domain"
	"videokit/internal/gallery"
	"videokit/internal/infra"
	"videokit/internal/jobs"
	"videokit/internal/poller"
	"videokit/internal/preferences"
	"videokit/internal/preview"
)

// StatusChecker runs a one-off provider status query for a job.
type StatusChecker interface {
	CheckOnce(ctx context.Context, jobID string) (poller.Outcome, error)
}

// Downloader opens a finished video for the download proxy.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, string, error)
}

// App carries the dependencies shared by every handler.
type App struct {
	Config      *infra.Config
	Logger      zerolog.Logger
	Jobs        *jobs.Controller
	Checker     StatusChecker
	Gallery     *gallery.Service
	Previews    *preview.Manager
	Preferences *preferences.Store
	Downloader  Downloader
	Prompts     TimestampFixer
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// fail maps a domain error onto its HTTP status and writes the error body.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("code", code).Msg("request failed")
	}
	a.error(w, status, code, err.Error())
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrProviderRejected),
		errors.Is(err, domain.ErrUploadRejected),
		errors.Is(err, domain.ErrProviderUnavailable),
		errors.Is(err, domain.ErrProviderMalformed),
		errors.Is(err, domain.ErrProviderIncomplete),
		errors.Is(err, domain.ErrTimeout):
		return http.StatusBadGateway, "provider_error"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (a *App) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(domain.ErrValidation, errors.New("invalid JSON payload"))
	}
	return nil
}

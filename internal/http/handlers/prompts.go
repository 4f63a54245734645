package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"videokit/internal/providers/prompt"
)

// TimestampFixer rewrites the [Cut] timeline of a video prompt.
type TimestampFixer interface {
	FixTimestamps(ctx context.Context, text string) (*prompt.FixResult, error)
}

type fixTimestampsRequest struct {
	Prompt string `json:"prompt"`
}

// FixTimestamps runs the prompt through the LLM timestamp fixer. Upstream rejections are
// passed through with their own status and body.
func (a *App) FixTimestamps(w http.ResponseWriter, r *http.Request) {
	if a.Prompts == nil {
		a.error(w, http.StatusInternalServerError, "not_configured", prompt.ErrNotConfigured.Error())
		return
	}
	var req fixTimestampsRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.Prompts.FixTimestamps(r.Context(), req.Prompt)
	if err == nil {
		a.json(w, http.StatusOK, res)
		return
	}

	var upstream *prompt.UpstreamError
	switch {
	case errors.Is(err, prompt.ErrNotConfigured):
		a.error(w, http.StatusInternalServerError, "not_configured", err.Error())
	case errors.As(err, &upstream):
		zerolog.Ctx(r.Context()).Warn().Int("upstream_status", upstream.Status).Msg("timestamp fix rejected upstream")
		contentType := upstream.ContentType
		if contentType == "" {
			contentType = "text/plain; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(upstream.Status)
		_, _ = w.Write(upstream.Body)
	default:
		a.fail(w, r, err)
	}
}

package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Download proxies a finished video so the browser saves it instead of playing it.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		a.error(w, http.StatusBadRequest, "invalid_request", "url is required")
		return
	}
	body, contentType, err := a.Downloader.Download(r.Context(), target)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer body.Close()

	filename := fmt.Sprintf("video-%d.mp4", time.Now().UnixMilli())
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("download interrupted")
	}
}

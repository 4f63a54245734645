package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"jobs":     len(a.Jobs.List()),
		"previews": a.Previews.Count(),
	})
}

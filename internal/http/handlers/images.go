package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"videokit/internal/domain"
	"videokit/internal/preview"
)

func (a *App) ListImages(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Gallery.List(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": entries, "total": len(entries)})
}

// UploadImage accepts a multipart form with the image in the "file" field.
func (a *App) UploadImage(w http.ResponseWriter, r *http.Request) {
	limit := a.Config.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		a.uploadError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid_request", "file field is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		a.uploadError(w, r, err)
		return
	}
	entry, err := a.Gallery.Upload(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, entry)
}

// AddFrame stores a frame captured from a finished video. The body is the raw image.
func (a *App) AddFrame(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(http.MaxBytesReader(w, r.Body, a.Config.MaxUploadBytes)); err != nil {
		a.uploadError(w, r, err)
		return
	}
	entry, err := a.Gallery.AddFrame(r.Context(), r.URL.Query().Get("filename"), r.Header.Get("Content-Type"), buf.Bytes())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, entry)
}

func (a *App) DeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := a.Gallery.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportImages streams every stored image as a zip archive.
func (a *App) ExportImages(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	n, err := a.Gallery.Export(r.Context(), &buf)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	filename := fmt.Sprintf("images-%s.zip", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Image-Count", fmt.Sprint(n))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ClearData wipes images, jobs and previews. The caller must pass ?confirm=true.
func (a *App) ClearData(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		a.error(w, http.StatusBadRequest, "confirmation_required", "pass confirm=true to clear all local data")
		return
	}
	if err := a.Gallery.ClearAll(r.Context()); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServePreview resolves a preview token. Revoked tokens are gone for good.
func (a *App) ServePreview(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.URL.Path, preview.PathPrefix)
	data, mimeType, ok := a.Previews.Resolve(token)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "preview not found")
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *App) uploadError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		a.error(w, http.StatusRequestEntityTooLarge, "too_large",
			fmt.Sprintf("image exceeds %d bytes", a.Config.MaxUploadBytes))
		return
	}
	a.fail(w, r, fmt.Errorf("%w: %v", domain.ErrValidation, err))
}

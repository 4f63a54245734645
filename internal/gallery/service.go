package gallery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"videokit/internal/domain"
	"videokit/internal/infra"
	"videokit/internal/preview"
	"videokit/pkg/zip"
)

// JobClearer drops every job and watch loop during a full reset.
type JobClearer interface {
	Clear(ctx context.Context) error
}

// Entry is an image listed with its live preview.
type Entry struct {
	*domain.Image
	PreviewURL string `json:"previewUrl,omitempty"`
}

// Service manages the user's source images and their previews.
type Service struct {
	images   domain.ImageRepository
	jobs     JobClearer
	previews *preview.Manager
	maxBytes int64
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(images domain.ImageRepository, jobs JobClearer, previews *preview.Manager, maxBytes int64, logger *infra.Logger) *Service {
	l := zerolog.New(io.Discard)
	if logger != nil {
		l = *logger
	}
	return &Service{
		images:   images,
		jobs:     jobs,
		previews: previews,
		maxBytes: maxBytes,
		logger:   infra.Component(l, "gallery"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores a new image. An empty mime type is sniffed from the data.
func (s *Service) Upload(ctx context.Context, filename, mimeType string, data []byte) (*Entry, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image file is empty", domain.ErrValidation)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrValidation, s.maxBytes)
	}
	mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = "image"
	}
	img := &domain.Image{
		ID:        uuid.NewString(),
		Filename:  filename,
		MimeType:  mimeType,
		CreatedAt: s.now(),
		Blob:      data,
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if err := s.images.Put(ctx, img); err != nil {
		return nil, err
	}
	s.logger.Info().Str("image_id", img.ID).Str("mime", img.MimeType).Int("bytes", len(data)).Msg("image stored")
	return s.entry(img), nil
}

// AddFrame stores a frame captured from a finished video.
func (s *Service) AddFrame(ctx context.Context, filename, mimeType string, data []byte) (*Entry, error) {
	if strings.TrimSpace(filename) == "" {
		filename = fmt.Sprintf("frame-%d.png", s.now().UnixMilli())
	}
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "image/png"
	}
	return s.Upload(ctx, filename, mimeType, data)
}

// List returns every image newest first with a fresh preview, and drops previews of images
// that no longer exist.
func (s *Service) List(ctx context.Context) ([]*Entry, error) {
	images, err := s.images.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(images, func(i, k int) bool { return images[i].CreatedAt.After(images[k].CreatedAt) })

	keep := make(map[string]struct{}, len(images))
	out := make([]*Entry, 0, len(images))
	for _, img := range images {
		keep[img.ID] = struct{}{}
		out = append(out, s.entry(img))
	}
	s.previews.Retain(keep)
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Image, error) {
	return s.images.Get(ctx, id)
}

// Delete removes the image and revokes its preview. Jobs that reference it are left alone.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.images.Get(ctx, id); err != nil {
		return err
	}
	if err := s.images.Delete(ctx, id); err != nil {
		return err
	}
	s.previews.Release(id)
	s.logger.Info().Str("image_id", id).Msg("image deleted")
	return nil
}

// ClearAll wipes images, jobs, watch loops and previews.
func (s *Service) ClearAll(ctx context.Context) error {
	if err := s.images.Clear(ctx); err != nil {
		return err
	}
	// The images are gone, so their previews go too even if clearing jobs fails.
	defer s.previews.ReleaseAll()
	if s.jobs != nil {
		if err := s.jobs.Clear(ctx); err != nil {
			s.logger.Error().Err(err).Msg("images cleared but jobs were not")
			return err
		}
	}
	s.logger.Warn().Msg("local data cleared")
	return nil
}

// Export writes every stored image into a zip archive on w.
func (s *Service) Export(ctx context.Context, w io.Writer) (int, error) {
	images, err := s.images.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	assets := make([]zip.Asset, 0, len(images))
	for _, img := range images {
		assets = append(assets, zip.Asset{
			Filename: img.Filename,
			MIME:     img.MimeType,
			Modified: img.CreatedAt,
			Data:     img.Blob,
		})
	}
	if err := zip.Write(w, assets); err != nil {
		return 0, err
	}
	return len(assets), nil
}

func (s *Service) entry(img *domain.Image) *Entry {
	e := &Entry{Image: img}
	if h, ok := s.previews.Acquire(img); ok {
		e.PreviewURL = h.URL
	}
	return e
}

package preview

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"videokit/internal/domain"
	"videokit/internal/infra"
)

// PathPrefix is where handles are served.
const PathPrefix = "/previews/"

// Handle is a revocable display reference for one image.
type Handle struct {
	Token    string `json:"token"`
	ImageID  string `json:"imageId"`
	MimeType string `json:"mimeType"`
	URL      string `json:"url"`

	data []byte
}

// Manager owns the live preview handles, at most one per image id.
type Manager struct {
	mu      sync.Mutex
	byImage map[string]*Handle
	byToken map[string]*Handle
	maxDim  int
	logger  zerolog.Logger
}

func NewManager(maxDim int, logger *infra.Logger) *Manager {
	l := zerolog.New(io.Discard)
	if logger != nil {
		l = *logger
	}
	if maxDim <= 0 {
		maxDim = 512
	}
	return &Manager{
		byImage: make(map[string]*Handle),
		byToken: make(map[string]*Handle),
		maxDim:  maxDim,
		logger:  infra.Component(l, "preview"),
	}
}

// Acquire renders a preview for img and returns its handle, replacing any earlier handle for the
// same image. Images without data get no handle.
func (m *Manager) Acquire(img *domain.Image) (Handle, bool) {
	if img == nil || img.ID == "" || len(img.Blob) == 0 {
		return Handle{}, false
	}
	data, mimeType := m.render(img)
	token := uuid.NewString()
	h := &Handle{
		Token:    token,
		ImageID:  img.ID,
		MimeType: mimeType,
		URL:      PathPrefix + token,
		data:     data,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked(img.ID)
	m.byImage[img.ID] = h
	m.byToken[token] = h
	return *h, true
}

// Release revokes the handle for imageID. Unknown or already released ids are ignored.
func (m *Manager) Release(imageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked(imageID)
}

// ReleaseAll revokes every outstanding handle.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.byImage)
	m.byImage = make(map[string]*Handle)
	m.byToken = make(map[string]*Handle)
	if n > 0 {
		m.logger.Debug().Int("handles", n).Msg("released all previews")
	}
}

// Retain releases every handle whose image id is not in keep.
func (m *Manager) Retain(keep map[string]struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.byImage {
		if _, ok := keep[id]; !ok {
			m.releaseLocked(id)
		}
	}
}

// Resolve returns the rendered bytes for a live token.
func (m *Manager) Resolve(token string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.byToken[token]
	if !ok {
		return nil, "", false
	}
	return h.data, h.MimeType, true
}

// Live reports the current handle for imageID.
func (m *Manager) Live(imageID string) (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.byImage[imageID]
	if !ok {
		return Handle{}, false
	}
	return *h, true
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byImage)
}

func (m *Manager) releaseLocked(imageID string) {
	if h, ok := m.byImage[imageID]; ok {
		delete(m.byToken, h.Token)
		delete(m.byImage, imageID)
	}
}

// render scales the image to fit maxDim. Undecodable data is served as stored.
func (m *Manager) render(img *domain.Image) ([]byte, string) {
	src, err := imaging.Decode(bytes.NewReader(img.Blob), imaging.AutoOrientation(true))
	if err != nil {
		m.logger.Debug().Err(err).Str("image_id", img.ID).Msg("preview passthrough")
		return img.Blob, img.MimeType
	}
	b := src.Bounds()
	if b.Dx() <= m.maxDim && b.Dy() <= m.maxDim {
		return img.Blob, img.MimeType
	}
	format, mimeType := imaging.PNG, "image/png"
	if strings.Contains(img.MimeType, "jpeg") || strings.Contains(img.MimeType, "jpg") {
		format, mimeType = imaging.JPEG, "image/jpeg"
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Fit(src, m.maxDim, m.maxDim, imaging.Lanczos), format); err != nil {
		m.logger.Warn().Err(err).Str("image_id", img.ID).Msg("encode preview")
		return img.Blob, img.MimeType
	}
	return buf.Bytes(), mimeType
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

// Image is a user-supplied asset. The blob is owned by the durable store.
type Image struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mimeType"`
	CreatedAt time.Time `json:"createdAt"`
	Blob      []byte    `json:"-"`
}

// Validate checks the minimum metadata needed to persist an image.
func (i *Image) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("%w: image id is required", ErrValidation)
	}
	if len(i.Blob) == 0 {
		return fmt.Errorf("%w: image %s has no data", ErrValidation, i.ID)
	}
	if !strings.HasPrefix(i.MimeType, "image/") {
		return fmt.Errorf("%w: unsupported image type %q", ErrValidation, i.MimeType)
	}
	return nil
}

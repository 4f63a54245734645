package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"videokit/internal/domain"
)

type uploadResponse struct {
	apiEnvelope
	Data        *uploadData `json:"data"`
	DownloadURL string      `json:"downloadUrl"`
	FileURL     string      `json:"fileUrl"`
	URL         string      `json:"url"`
}

type uploadData struct {
	DownloadURL string `json:"downloadUrl"`
	FileURL     string `json:"fileUrl"`
	URL         string `json:"url"`
}

func (r uploadResponse) assetURL() string {
	if r.Data != nil {
		return firstNonEmpty(r.Data.DownloadURL, r.Data.FileURL, r.Data.URL)
	}
	return firstNonEmpty(r.FileURL, r.DownloadURL, r.URL)
}

// Upload sends the image bytes to the file stream endpoint and returns the hosted asset URL.
func (c *Client) Upload(ctx context.Context, filename, mimeType string, data []byte) (string, error) {
	key, err := c.key(ctx)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("%w: Kie API key is required. Add your key in Settings", domain.ErrUploadRejected)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: file is required", domain.ErrUploadRejected)
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = "image.jpg"
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if mimeType != "" {
		header.Set("Content-Type", mimeType)
	}
	part, err := form.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("kie: build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("kie: build upload: %w", err)
	}
	if err := form.WriteField("uploadPath", c.uploadPath); err != nil {
		return "", fmt.Errorf("kie: build upload: %w", err)
	}
	if err := form.WriteField("fileName", filename); err != nil {
		return "", fmt.Errorf("kie: build upload: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("kie: build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("kie: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+key)

	status, raw, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUploadRejected, err)
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("%w: %s", domain.ErrUploadRejected, errorMessage(status, raw))
	}

	var decoded uploadResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("%w: invalid upload response", domain.ErrProviderMalformed)
	}
	if decoded.rejected() {
		return "", fmt.Errorf("%w: %s", domain.ErrUploadRejected, decoded.Msg)
	}
	url := decoded.assetURL()
	if url == "" {
		return "", fmt.Errorf("%w: upload did not return a file URL", domain.ErrProviderMalformed)
	}
	c.logger.Debug().
		Str("file_name", filename).
		Int("bytes", len(data)).
		Msg("kie: uploaded source image")
	return url, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

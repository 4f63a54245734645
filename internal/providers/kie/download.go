package kie

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"videokit/internal/domain"
)

// Download opens the finished video at rawURL. The caller closes the returned body.
func (c *Client) Download(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, "", fmt.Errorf("%w: invalid video url", domain.ErrValidation)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("kie: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: download video: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, "", fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, errorMessage(resp.StatusCode, raw))
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	return resp.Body, contentType, nil
}

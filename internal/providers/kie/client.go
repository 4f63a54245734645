package kie

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"videokit/internal/infra"
)

const (
	defaultBaseURL    = "https://api.kie.ai"
	defaultUploadURL  = "https://kieai.redpandaai.co/api/file-stream-upload"
	defaultUploadPath = "video-kit"

	sora2TaskModel = "sora-2-image-to-video"
)

// KeySource supplies the API key when none is configured statically.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// Options configures the Kie.ai client.
type Options struct {
	APIKey         string
	Keys           KeySource
	BaseURL        string
	UploadURL      string
	UploadPath     string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Kie.ai task and file upload APIs.
type Client struct {
	apiKey     string
	keys       KeySource
	baseURL    string
	uploadURL  string
	uploadPath string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	uploadURL := strings.TrimSpace(opts.UploadURL)
	if uploadURL == "" {
		uploadURL = defaultUploadURL
	}
	uploadPath := strings.TrimSpace(opts.UploadPath)
	if uploadPath == "" {
		uploadPath = defaultUploadPath
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		keys:       opts.Keys,
		baseURL:    baseURL,
		uploadURL:  uploadURL,
		uploadPath: uploadPath,
		httpClient: httpClient,
		logger:     logger,
	}
}

// key resolves the credential: the configured key wins, then the key source.
func (c *Client) key(ctx context.Context) (string, error) {
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	if c.keys == nil {
		return "", nil
	}
	key, err := c.keys.APIKey(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(key), nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials(ctx context.Context) bool {
	key, err := c.key(ctx)
	return err == nil && key != ""
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

type apiEnvelope struct {
	Code json.RawMessage `json:"code"`
	Msg  string          `json:"msg"`
}

// rejected reports a body-level rejection; Kie answers 200 with code != 200 on some failures.
func (e apiEnvelope) rejected() bool {
	code := strings.Trim(strings.TrimSpace(string(e.Code)), `"`)
	return code != "" && code != "null" && code != "0" && code != "200"
}

func summarize(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func errorMessage(status int, raw []byte) string {
	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Msg != "" {
		return env.Msg
	}
	if s := summarize(raw); s != "" {
		return fmt.Sprintf("status %d: %s", status, s)
	}
	return fmt.Sprintf("status %d", status)
}

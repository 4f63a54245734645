package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videokit/internal/domain"
)

func TestSubmitSora2Payload(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/api/v1/jobs/createTask", map[string]any{
		"code": 200,
		"msg":  "success",
		"data": map[string]any{"taskId": "task-123"},
	})
	client := NewClient(Options{APIKey: "test", HTTPClient: &http.Client{Transport: transport}})

	taskID, err := client.Submit(context.Background(), domain.SubmitRequest{
		Model:       domain.ModelSora2,
		Prompt:      "  a cat on a skateboard ",
		ImageURL:    "https://files.example.com/cat.png",
		Duration:    10,
		AspectRatio: "9:16",
	})
	require.NoError(t, err)
	assert.Equal(t, "task-123", taskID)
	assert.Equal(t, "Bearer test", transport.lastRequest.Header.Get("Authorization"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(transport.lastBody, &payload))
	assert.Equal(t, "sora-2-image-to-video", payload["model"])
	input := payload["input"].(map[string]any)
	assert.Equal(t, "a cat on a skateboard", input["prompt"])
	assert.Equal(t, "portrait", input["aspect_ratio"])
	assert.Equal(t, "10", input["n_frames"])
	assert.Equal(t, true, input["remove_watermark"])
	assert.Equal(t, []any{"https://files.example.com/cat.png"}, input["image_urls"])
}

func TestSubmitRunwayPayload(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/api/v1/runway/generate", map[string]any{
		"code": 200,
		"data": map[string]any{"taskId": "rw-1"},
	})
	client := NewClient(Options{APIKey: "test", HTTPClient: &http.Client{Transport: transport}})

	taskID, err := client.Submit(context.Background(), domain.SubmitRequest{
		Model:       domain.ModelRunway,
		Prompt:      "waves",
		ImageURL:    "https://files.example.com/sea.png",
		Duration:    5,
		Quality:     "1080p",
		AspectRatio: "16:9",
	})
	require.NoError(t, err)
	assert.Equal(t, "rw-1", taskID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(transport.lastBody, &payload))
	assert.Equal(t, float64(5), payload["duration"])
	assert.Equal(t, "1080p", payload["quality"])
	assert.Equal(t, "16:9", payload["aspectRatio"])
	assert.Equal(t, "", payload["waterMark"])
	assert.Equal(t, "https://files.example.com/sea.png", payload["imageUrl"])
}

func TestSubmitErrors(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		prompt string
		status int
		body   string
		want   error
	}{
		{name: "missing key", prompt: "x", want: domain.ErrProviderRejected},
		{name: "missing prompt", key: "k", prompt: "  ", want: domain.ErrProviderRejected},
		{name: "http failure", key: "k", prompt: "x", status: http.StatusUnauthorized, body: `{"msg":"bad key"}`, want: domain.ErrProviderRejected},
		{name: "body code", key: "k", prompt: "x", status: http.StatusOK, body: `{"code":402,"msg":"credits exhausted"}`, want: domain.ErrProviderRejected},
		{name: "bad json", key: "k", prompt: "x", status: http.StatusOK, body: `<html>`, want: domain.ErrProviderMalformed},
		{name: "missing task id", key: "k", prompt: "x", status: http.StatusOK, body: `{"code":200,"data":{}}`, want: domain.ErrProviderMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newCaptureTransport()
			if tt.status != 0 {
				transport.setRawResponse("/api/v1/jobs/createTask", tt.status, tt.body)
			}
			client := NewClient(Options{APIKey: tt.key, HTTPClient: &http.Client{Transport: transport}})
			_, err := client.Submit(context.Background(), domain.SubmitRequest{Model: domain.ModelSora2, Prompt: tt.prompt})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStatusSora2ResultJSONString(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/api/v1/jobs/recordInfo", map[string]any{
		"code": 200,
		"data": map[string]any{
			"state":      "success",
			"resultJson": `{"resultUrls":["https://cdn.example.com/out.mp4"]}`,
		},
	})
	client := NewClient(Options{APIKey: "test", HTTPClient: &http.Client{Transport: transport}})

	status, err := client.Status(context.Background(), "task-1", domain.ModelSora2)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateSuccess, status.State)
	assert.Equal(t, "https://cdn.example.com/out.mp4", status.ResultURL)
	assert.Equal(t, "task-1", transport.lastRequest.URL.Query().Get("taskId"))
}

func TestStatusSora2ResultJSONObjectAndFailure(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/api/v1/jobs/recordInfo", map[string]any{
		"data": map[string]any{
			"state":      "fail",
			"failMsg":    "content policy",
			"resultJson": map[string]any{"resultUrls": []string{}},
		},
	})
	client := NewClient(Options{APIKey: "test", HTTPClient: &http.Client{Transport: transport}})

	status, err := client.Status(context.Background(), "task-1", domain.ModelSora2)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateFail, status.State)
	assert.Equal(t, "content policy", status.Message)
	assert.Empty(t, status.ResultURL)
}

func TestStatusRunway(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/api/v1/runway/record-detail", map[string]any{
		"data": map[string]any{
			"state": "success",
			"videoInfo": map[string]any{
				"videoUrl": "https://cdn.example.com/rw.mp4",
				"imageUrl": "https://cdn.example.com/rw.jpg",
			},
		},
	})
	client := NewClient(Options{APIKey: "test", HTTPClient: &http.Client{Transport: transport}})

	status, err := client.Status(context.Background(), "rw-1", domain.ModelRunway)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/rw.mp4", status.ResultURL)
	assert.Equal(t, "https://cdn.example.com/rw.jpg", status.ThumbnailURL)
}

func TestStatusStillRunningDefaultsState(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/api/v1/jobs/recordInfo", map[string]any{"data": map[string]any{}})
	client := NewClient(Options{APIKey: "test", HTTPClient: &http.Client{Transport: transport}})

	status, err := client.Status(context.Background(), "task-1", domain.ModelSora2)
	require.NoError(t, err)
	assert.Equal(t, "unknown", status.State)
}

func TestStatusErrors(t *testing.T) {
	transport := newCaptureTransport()
	transport.setRawResponse("/api/v1/jobs/recordInfo", http.StatusBadGateway, "upstream down")
	client := NewClient(Options{APIKey: "test", HTTPClient: &http.Client{Transport: transport}})
	_, err := client.Status(context.Background(), "task-1", domain.ModelSora2)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)

	transport.setRawResponse("/api/v1/jobs/recordInfo", http.StatusOK, "not json")
	_, err = client.Status(context.Background(), "task-1", domain.ModelSora2)
	assert.ErrorIs(t, err, domain.ErrProviderMalformed)

	transport.err = errors.New("connection reset")
	_, err = client.Status(context.Background(), "task-1", domain.ModelSora2)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestUploadMultipartForm(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/api/file-stream-upload", map[string]any{
		"success": true,
		"code":    200,
		"data":    map[string]any{"downloadUrl": "https://files.example.com/cat.png"},
	})
	client := NewClient(Options{
		Keys:       staticKeys("stored-key"),
		UploadPath: "video-kit",
		HTTPClient: &http.Client{Transport: transport},
	})

	url, err := client.Upload(context.Background(), "cat.png", "image/png", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/cat.png", url)
	assert.Equal(t, "Bearer stored-key", transport.lastRequest.Header.Get("Authorization"))

	_, params, err := mime.ParseMediaType(transport.lastRequest.Header.Get("Content-Type"))
	require.NoError(t, err)
	form, err := multipart.NewReader(bytes.NewReader(transport.lastBody), params["boundary"]).ReadForm(1 << 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"video-kit"}, form.Value["uploadPath"])
	assert.Equal(t, []string{"cat.png"}, form.Value["fileName"])
	require.Len(t, form.File["file"], 1)
	assert.Equal(t, "cat.png", form.File["file"][0].Filename)
}

func TestUploadTopLevelURL(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/api/file-stream-upload", map[string]any{"fileUrl": "https://files.example.com/a.png"})
	client := NewClient(Options{APIKey: "k", HTTPClient: &http.Client{Transport: transport}})

	url, err := client.Upload(context.Background(), "", "image/png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/a.png", url)
}

func TestUploadErrors(t *testing.T) {
	client := NewClient(Options{Keys: staticKeys(""), HTTPClient: &http.Client{Transport: newCaptureTransport()}})
	_, err := client.Upload(context.Background(), "a.png", "image/png", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrUploadRejected)

	transport := newCaptureTransport()
	transport.setRawResponse("/api/file-stream-upload", http.StatusForbidden, "nope")
	client = NewClient(Options{APIKey: "k", HTTPClient: &http.Client{Transport: transport}})
	_, err = client.Upload(context.Background(), "a.png", "image/png", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrUploadRejected)

	transport.setJSONResponse("/api/file-stream-upload", map[string]any{"data": map[string]any{}})
	_, err = client.Upload(context.Background(), "a.png", "image/png", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrProviderMalformed)
}

func TestDownload(t *testing.T) {
	transport := newCaptureTransport()
	transport.responses["/out.mp4"] = responseStub{status: http.StatusOK, body: []byte("mp4 bytes")}
	client := NewClient(Options{HTTPClient: &http.Client{Transport: transport}})

	body, contentType, err := client.Download(context.Background(), "https://cdn.example.com/out.mp4")
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Equal(t, "mp4 bytes", string(data))
	assert.Equal(t, "video/mp4", contentType)

	_, _, err = client.Download(context.Background(), "file:///etc/passwd")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

type staticKeys string

func (s staticKeys) APIKey(ctx context.Context) (string, error) {
	return string(s), nil
}

type captureTransport struct {
	responses   map[string]responseStub
	lastRequest *http.Request
	lastBody    []byte
	err         error
}

type responseStub struct {
	status int
	header http.Header
	body   []byte
}

func newCaptureTransport() *captureTransport {
	return &captureTransport{responses: map[string]responseStub{}}
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.lastRequest = req
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		c.lastBody = body
	}
	if c.err != nil {
		return nil, c.err
	}
	if stub, ok := c.responses[req.URL.Path]; ok {
		return stub.toResponse(), nil
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("not found")),
	}, nil
}

func (c *captureTransport) setJSONResponse(path string, payload any) {
	body, _ := json.Marshal(payload)
	c.responses[path] = responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{"application/json"}},
		body:   body,
	}
}

func (c *captureTransport) setRawResponse(path string, status int, body string) {
	c.responses[path] = responseStub{status: status, body: []byte(body)}
}

func (s responseStub) toResponse() *http.Response {
	header := http.Header{}
	for k, values := range s.header {
		cloned := make([]string, len(values))
		copy(cloned, values)
		header[k] = cloned
	}
	return &http.Response{
		StatusCode: s.status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
	}
}

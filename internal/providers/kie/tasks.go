package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"videokit/internal/domain"
)

var aspectMap = map[string]string{
	"16:9": "landscape",
	"9:16": "portrait",
	"1:1":  "square",
}

type sora2Request struct {
	Model string     `json:"model"`
	Input sora2Input `json:"input"`
}

type sora2Input struct {
	Prompt          string   `json:"prompt"`
	AspectRatio     string   `json:"aspect_ratio"`
	NFrames         string   `json:"n_frames"`
	RemoveWatermark bool     `json:"remove_watermark"`
	ImageURLs       []string `json:"image_urls,omitempty"`
}

type runwayRequest struct {
	Prompt      string `json:"prompt"`
	Duration    int    `json:"duration"`
	Quality     string `json:"quality"`
	AspectRatio string `json:"aspectRatio"`
	WaterMark   string `json:"waterMark"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

type submitResponse struct {
	apiEnvelope
	Data *struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
	TaskID string `json:"taskId"`
}

// Submit starts a render task and returns the provider's task id.
func (c *Client) Submit(ctx context.Context, in domain.SubmitRequest) (string, error) {
	key, err := c.key(ctx)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("%w: Kie API key is not set", domain.ErrProviderRejected)
	}
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt is required", domain.ErrProviderRejected)
	}

	var (
		endpoint string
		payload  any
	)
	if isSora2(in.Model) {
		frames := in.Duration
		if frames <= 0 {
			frames = 10
		}
		aspect, ok := aspectMap[in.AspectRatio]
		if !ok {
			aspect = "landscape"
		}
		req := sora2Request{
			Model: sora2TaskModel,
			Input: sora2Input{
				Prompt:          prompt,
				AspectRatio:     aspect,
				NFrames:         strconv.Itoa(frames),
				RemoveWatermark: true,
			},
		}
		if in.ImageURL != "" {
			req.Input.ImageURLs = []string{in.ImageURL}
		}
		endpoint, payload = c.baseURL+"/api/v1/jobs/createTask", req
	} else {
		req := runwayRequest{
			Prompt:      prompt,
			Duration:    in.Duration,
			Quality:     in.Quality,
			AspectRatio: in.AspectRatio,
			ImageURL:    in.ImageURL,
		}
		if req.Duration <= 0 {
			req.Duration = 5
		}
		if req.Quality == "" {
			req.Quality = "720p"
		}
		if req.AspectRatio == "" {
			req.AspectRatio = "16:9"
		}
		endpoint, payload = c.baseURL+"/api/v1/runway/generate", req
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("kie: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("kie: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)

	status, raw, err := c.do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrProviderRejected, err)
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("%w: %s", domain.ErrProviderRejected, errorMessage(status, raw))
	}

	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("%w: invalid generate response", domain.ErrProviderMalformed)
	}
	if decoded.rejected() {
		return "", fmt.Errorf("%w: %s", domain.ErrProviderRejected, decoded.Msg)
	}
	taskID := decoded.TaskID
	if decoded.Data != nil && decoded.Data.TaskID != "" {
		taskID = decoded.Data.TaskID
	}
	if taskID = strings.TrimSpace(taskID); taskID == "" {
		return "", fmt.Errorf("%w: missing taskId from response", domain.ErrProviderMalformed)
	}
	c.logger.Info().
		Str("model", in.Model).
		Str("task_id", taskID).
		Msg("kie: task submitted")
	return taskID, nil
}

type statusResponse struct {
	apiEnvelope
	Data *statusData `json:"data"`
	statusData
}

type statusData struct {
	State      string          `json:"state"`
	Status     string          `json:"status"`
	FailMsg    string          `json:"failMsg"`
	ResultJSON json.RawMessage `json:"resultJson"`
	VideoInfo  *struct {
		VideoURL string `json:"videoUrl"`
		ImageURL string `json:"imageUrl"`
	} `json:"videoInfo"`
}

// Status queries the provider once for the task's state.
func (c *Client) Status(ctx context.Context, taskID, model string) (*domain.TaskStatus, error) {
	key, err := c.key(ctx)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("%w: Kie API key is not set", domain.ErrProviderUnavailable)
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, fmt.Errorf("%w: taskId is required", domain.ErrValidation)
	}

	path := "/api/v1/runway/record-detail"
	if isSora2(model) {
		path = "/api/v1/jobs/recordInfo"
	}
	endpoint := c.baseURL + path + "?taskId=" + url.QueryEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("kie: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)

	status, raw, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, errorMessage(status, raw))
	}

	var decoded statusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: invalid status response", domain.ErrProviderMalformed)
	}
	data := decoded.statusData
	if decoded.Data != nil {
		data = *decoded.Data
	}

	out := &domain.TaskStatus{
		State:   firstNonEmpty(data.State, data.Status, "unknown"),
		Message: strings.TrimSpace(data.FailMsg),
	}
	if isSora2(model) {
		out.ResultURL = firstResultURL(data.ResultJSON)
	} else if data.VideoInfo != nil {
		out.ResultURL = strings.TrimSpace(data.VideoInfo.VideoURL)
		out.ThumbnailURL = strings.TrimSpace(data.VideoInfo.ImageURL)
	}
	c.logger.Debug().
		Str("task_id", taskID).
		Str("state", out.State).
		Msg("kie: task status")
	return out, nil
}

// firstResultURL reads resultUrls[0] from resultJson, which arrives either as an object or as a
// JSON-encoded string. An unparseable value yields no URL.
func firstResultURL(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}
	var result struct {
		ResultURLs []string `json:"resultUrls"`
	}
	if err := json.Unmarshal(raw, &result); err != nil || len(result.ResultURLs) == 0 {
		return ""
	}
	return strings.TrimSpace(result.ResultURLs[0])
}

func isSora2(model string) bool {
	return model == "" || model == domain.ModelSora2
}

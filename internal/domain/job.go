package domain

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusUploading  JobStatus = "uploading"
	JobStatusGenerating JobStatus = "generating"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Supported model hints.
const (
	ModelSora2  = "sora2"
	ModelRunway = "runway"
)

// Terminal reports whether no further transitions are permitted.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Active reports whether a job in this state may still be waiting on the provider.
func (s JobStatus) Active() bool {
	switch s {
	case JobStatusPending, JobStatusUploading, JobStatusGenerating:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	return s.Active() || s.Terminal()
}

var jobEdges = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusUploading},
	JobStatusUploading:  {JobStatusGenerating, JobStatusFailed},
	JobStatusGenerating: {JobStatusCompleted, JobStatusFailed},
}

// CanTransition reports whether from -> to is an edge of the job state machine.
func CanTransition(from, to JobStatus) bool {
	for _, next := range jobEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Options are the prompt modifiers chosen at submission time.
type Options struct {
	NoMusic        bool `json:"noMusic"`
	NoCrowd        bool `json:"noCrowd"`
	NoCommentators bool `json:"noCommentators"`
	LikeAnime      bool `json:"likeAnime"`
}

// VideoParams are the render parameters forwarded to the provider.
type VideoParams struct {
	Duration    int    `json:"duration"`
	Quality     string `json:"quality"`
	AspectRatio string `json:"aspectRatio"`
}

// Job tracks one external render task from submission to a terminal outcome.
type Job struct {
	ID             string      `json:"id"`
	Model          string      `json:"model"`
	Status         JobStatus   `json:"status"`
	ExternalTaskID string      `json:"externalTaskId,omitempty"`
	SourceImageID  string      `json:"sourceImageId,omitempty"`
	Prompt         string      `json:"prompt"`
	Options        Options     `json:"options"`
	VideoParams    VideoParams `json:"videoParams"`
	Cost           float64     `json:"cost"`
	ResultURL      string      `json:"videoUrl,omitempty"`
	ThumbnailURL   string      `json:"thumbnailUrl,omitempty"`
	Error          string      `json:"error,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
	CompletedAt    *time.Time  `json:"completedAt,omitempty"`
}

// Clone returns a copy that shares no pointers with j.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		out.CompletedAt = &completed
	}
	return &out
}

// LastActivity is the timestamp used to order job lists.
func (j *Job) LastActivity() time.Time {
	if !j.UpdatedAt.IsZero() {
		return j.UpdatedAt
	}
	return j.CreatedAt
}

// Validate checks the result/error invariant for the job's current status.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return fmt.Errorf("%w: job id is required", ErrValidation)
	}
	if !j.Status.Valid() {
		return fmt.Errorf("%w: unknown job status %q", ErrValidation, j.Status)
	}
	switch j.Status {
	case JobStatusCompleted:
		if j.ResultURL == "" {
			return fmt.Errorf("%w: completed job requires a result url", ErrInvalidTransition)
		}
		if j.Error != "" {
			return fmt.Errorf("%w: completed job cannot carry an error", ErrInvalidTransition)
		}
	case JobStatusFailed:
		if j.Error == "" {
			return fmt.Errorf("%w: failed job requires an error message", ErrInvalidTransition)
		}
		if j.ResultURL != "" {
			return fmt.Errorf("%w: failed job cannot carry a result url", ErrInvalidTransition)
		}
	default:
		if j.ResultURL != "" || j.Error != "" {
			return fmt.Errorf("%w: %s job cannot carry a result or error", ErrInvalidTransition, j.Status)
		}
	}
	return nil
}

// JobPatch describes the mutable fields changed by a transition. Empty fields are left as-is.
type JobPatch struct {
	Status         JobStatus
	ExternalTaskID string
	ResultURL      string
	ThumbnailURL   string
	Error          string
}

// Failed builds the patch that moves a job to the failed state.
func Failed(message string) JobPatch {
	return JobPatch{Status: JobStatusFailed, Error: message}
}

// Apply returns a copy of j with the patch applied at time now. It enforces the state machine
// edges and the result/error invariant but leaves terminal-state idempotence to the caller.
func (p JobPatch) Apply(j *Job, now time.Time) (*Job, error) {
	next := j.Clone()
	if p.Status != "" && p.Status != j.Status {
		if !CanTransition(j.Status, p.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, p.Status)
		}
		next.Status = p.Status
	}
	if p.ExternalTaskID != "" {
		next.ExternalTaskID = p.ExternalTaskID
	}
	if p.ResultURL != "" {
		next.ResultURL = p.ResultURL
	}
	if p.ThumbnailURL != "" {
		next.ThumbnailURL = p.ThumbnailURL
	}
	if p.Error != "" {
		next.Error = p.Error
	}
	next.UpdatedAt = now
	if next.Status == JobStatusCompleted && next.CompletedAt == nil {
		completed := now
		next.CompletedAt = &completed
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}

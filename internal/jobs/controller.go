package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"videokit/internal/domain"
	"videokit/internal/infra"
)

const (
	defaultDuration = 10
	defaultQuality  = "720p"
)

// Watcher runs the background status loops for generating jobs.
type Watcher interface {
	Watch(jobID, taskID, model string)
	Cancel(jobID string)
	CancelAll()
}

// Provider is the part of the external task provider used at submission time.
type Provider interface {
	Upload(ctx context.Context, filename, mimeType string, data []byte) (string, error)
	Submit(ctx context.Context, req domain.SubmitRequest) (string, error)
}

// OrientationSource supplies the default framing for requests without an aspect ratio.
type OrientationSource interface {
	Orientation(ctx context.Context) (domain.Orientation, error)
}

// Deps wires the controller to its collaborators. Provider and Preferences may be nil when only
// the job registry is needed.
type Deps struct {
	Jobs        domain.JobRepository
	Images      domain.ImageRepository
	Provider    Provider
	Preferences OrientationSource
	Logger      *infra.Logger
	Clock       func() time.Time
}

// CreateRequest is the user input for a new job.
type CreateRequest struct {
	Prompt      string         `json:"prompt" validate:"required"`
	ImageID     string         `json:"imageId" validate:"required"`
	Model       string         `json:"model" validate:"omitempty,oneof=sora2 runway"`
	Duration    int            `json:"duration" validate:"omitempty,oneof=5 10 15"`
	Quality     string         `json:"quality" validate:"omitempty,oneof=720p 1080p"`
	AspectRatio string         `json:"aspectRatio" validate:"omitempty,oneof=16:9 9:16 1:1"`
	Options     domain.Options `json:"options"`
}

// Controller is the single owner of job state. Every mutation is persisted before the in-memory
// registry changes, and the registry lock is held across both steps.
type Controller struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job

	store       domain.JobRepository
	images      domain.ImageRepository
	provider    Provider
	preferences OrientationSource
	watcher     Watcher
	validate    *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

func NewController(deps Deps) *Controller {
	logger := zerolog.New(io.Discard)
	if deps.Logger != nil {
		logger = *deps.Logger
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Controller{
		jobs:        make(map[string]*domain.Job),
		store:       deps.Jobs,
		images:      deps.Images,
		provider:    deps.Provider,
		preferences: deps.Preferences,
		validate:    validator.New(),
		logger:      infra.Component(logger, "jobs"),
		now:         func() time.Time { return clock().UTC() },
	}
}

// AttachWatcher sets the loop runner. The engine needs the controller to exist first.
func (c *Controller) AttachWatcher(w Watcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watcher = w
}

func (c *Controller) currentWatcher() Watcher {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watcher
}

// Start loads every stored job and resumes watching the active ones that already have a task id.
func (c *Controller) Start(ctx context.Context) error {
	stored, err := c.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}
	sortByActivity(stored)

	c.mu.Lock()
	c.jobs = make(map[string]*domain.Job, len(stored))
	for _, j := range stored {
		c.jobs[j.ID] = j
	}
	c.mu.Unlock()

	resumed := 0
	for _, j := range stored {
		if !j.Status.Active() || j.ExternalTaskID == "" {
			continue
		}
		job, err := c.promote(ctx, j)
		if err != nil {
			c.logger.Error().Err(err).Str("job_id", j.ID).Msg("resume job")
			continue
		}
		if w := c.currentWatcher(); w != nil && job != nil {
			w.Watch(job.ID, job.ExternalTaskID, job.Model)
			resumed++
		}
	}
	c.logger.Info().Int("jobs", len(stored)).Int("resumed", resumed).Msg("job registry loaded")
	return nil
}

// promote walks a job that already holds a task id forward to generating along legal edges.
func (c *Controller) promote(ctx context.Context, j *domain.Job) (*domain.Job, error) {
	job := j
	for job != nil && job.Status != domain.JobStatusGenerating {
		next := domain.JobStatusUploading
		if job.Status == domain.JobStatusUploading {
			next = domain.JobStatusGenerating
		}
		var err error
		job, err = c.Transition(ctx, job.ID, domain.JobPatch{Status: next})
		if err != nil {
			return nil, err
		}
	}
	return job, nil
}

// Create validates the request and persists a new pending job.
func (c *Controller) Create(ctx context.Context, req CreateRequest) (*domain.Job, error) {
	job, _, err := c.create(ctx, req)
	return job, err
}

func (c *Controller) create(ctx context.Context, req CreateRequest) (*domain.Job, *domain.Image, error) {
	req = c.normalize(ctx, req)
	if err := c.validate.Struct(req); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrValidation, describe(err))
	}
	img, err := c.images.Get(ctx, req.ImageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: image %s does not exist", domain.ErrValidation, req.ImageID)
		}
		return nil, nil, err
	}
	if len(img.Blob) == 0 {
		return nil, nil, fmt.Errorf("%w: image %s has no data", domain.ErrValidation, req.ImageID)
	}

	now := c.now()
	job := &domain.Job{
		ID:            uuid.NewString(),
		Model:         req.Model,
		Status:        domain.JobStatusPending,
		SourceImageID: req.ImageID,
		Prompt:        req.Prompt,
		Options:       req.Options,
		VideoParams: domain.VideoParams{
			Duration:    req.Duration,
			Quality:     req.Quality,
			AspectRatio: req.AspectRatio,
		},
		Cost:      domain.EstimateCost(req.Model, req.Duration),
		CreatedAt: now,
		UpdatedAt: now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Put(ctx, job); err != nil {
		return nil, nil, storeErr(err)
	}
	c.jobs[job.ID] = job
	c.logger.Info().Str("job_id", job.ID).Str("image_id", job.SourceImageID).Str("model", job.Model).Msg("job created")
	return job.Clone(), img, nil
}

func (c *Controller) normalize(ctx context.Context, req CreateRequest) CreateRequest {
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.ImageID = strings.TrimSpace(req.ImageID)
	if req.Model == "" {
		req.Model = domain.ModelSora2
	}
	if req.Duration == 0 {
		req.Duration = defaultDuration
	}
	if req.Quality == "" {
		req.Quality = defaultQuality
	}
	if req.AspectRatio == "" {
		orientation := domain.OrientationPortrait
		if c.preferences != nil {
			if o, err := c.preferences.Orientation(ctx); err == nil {
				orientation = o
			} else {
				c.logger.Warn().Err(err).Msg("read orientation preference")
			}
		}
		req.AspectRatio = orientation.AspectRatio()
	}
	return req
}

// Transition applies patch to the job. A missing job yields (nil, nil); a terminal job is
// returned unchanged. The in-memory record only advances after the store accepted it.
func (c *Controller) Transition(ctx context.Context, id string, patch domain.JobPatch) (*domain.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.jobs[id]
	if !ok {
		return nil, nil
	}
	if current.Status.Terminal() {
		return current.Clone(), nil
	}
	next, err := patch.Apply(current, c.now())
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(ctx, next); err != nil {
		return nil, storeErr(err)
	}
	c.jobs[id] = next
	c.logger.Debug().Str("job_id", id).Str("from", string(current.Status)).Str("to", string(next.Status)).Msg("job transition")
	return next.Clone(), nil
}

// Delete removes the job from the store, then from memory, then stops its watch loop.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	if _, ok := c.jobs[id]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if err := c.store.Delete(ctx, id); err != nil {
		c.mu.Unlock()
		return storeErr(err)
	}
	delete(c.jobs, id)
	w := c.watcher
	c.mu.Unlock()

	if w != nil {
		w.Cancel(id)
	}
	c.logger.Info().Str("job_id", id).Msg("job deleted")
	return nil
}

// Clear drops every job and stops every watch loop.
func (c *Controller) Clear(ctx context.Context) error {
	c.mu.Lock()
	if err := c.store.Clear(ctx); err != nil {
		c.mu.Unlock()
		return storeErr(err)
	}
	c.jobs = make(map[string]*domain.Job)
	w := c.watcher
	c.mu.Unlock()

	if w != nil {
		w.CancelAll()
	}
	return nil
}

// Get returns a copy of the job.
func (c *Controller) Get(id string) (*domain.Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[id]
	if !ok {
		return nil, false
	}
	return j.Clone(), true
}

// List returns copies of every job, most recently updated first.
func (c *Controller) List() []*domain.Job {
	c.mu.Lock()
	out := make([]*domain.Job, 0, len(c.jobs))
	for _, j := range c.jobs {
		out = append(out, j.Clone())
	}
	c.mu.Unlock()
	sortByActivity(out)
	return out
}

func sortByActivity(jobs []*domain.Job) {
	sort.SliceStable(jobs, func(i, k int) bool {
		a, b := jobs[i].LastActivity(), jobs[k].LastActivity()
		if a.Equal(b) {
			return jobs[i].ID < jobs[k].ID
		}
		return a.After(b)
	})
}

func storeErr(err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
	}
	return strings.Join(parts, "; ")
}

package jobs

import (
	"context"
	"errors"
	"fmt"

	"videokit/internal/domain"
)

// Generate runs the full submission flow: create the job, upload the source image, submit the
// task and start watching it. Provider failures end the job in failed and are not returned as
// errors; the returned error covers validation and store failures only.
func (c *Controller) Generate(ctx context.Context, req CreateRequest) (*domain.Job, error) {
	if c.provider == nil {
		return nil, errors.New("jobs: no provider configured")
	}
	job, img, err := c.create(ctx, req)
	if err != nil {
		return nil, err
	}
	log := c.logger.With().Str("job_id", job.ID).Str("image_id", img.ID).Logger()

	job, err = c.step(ctx, job.ID, domain.JobPatch{Status: domain.JobStatusUploading})
	if err != nil {
		return nil, err
	}

	assetURL, err := c.provider.Upload(ctx, img.Filename, img.MimeType, img.Blob)
	if err != nil {
		log.Warn().Err(err).Msg("upload source image")
		return c.step(ctx, job.ID, domain.Failed(err.Error()))
	}

	taskID, err := c.provider.Submit(ctx, domain.SubmitRequest{
		Model:       job.Model,
		Prompt:      domain.ComposePrompt(job.Prompt, job.Options),
		ImageURL:    assetURL,
		Duration:    job.VideoParams.Duration,
		Quality:     job.VideoParams.Quality,
		AspectRatio: job.VideoParams.AspectRatio,
	})
	if err != nil {
		log.Warn().Err(err).Msg("submit task")
		return c.step(ctx, job.ID, domain.Failed(err.Error()))
	}

	job, err = c.step(ctx, job.ID, domain.JobPatch{Status: domain.JobStatusGenerating, ExternalTaskID: taskID})
	if err != nil {
		return nil, err
	}
	if job.Status == domain.JobStatusGenerating {
		if w := c.currentWatcher(); w != nil {
			w.Watch(job.ID, taskID, job.Model)
		}
	}
	log.Info().Str("task_id", taskID).Msg("job submitted")
	return job, nil
}

// step is Transition for a job the caller just created; a job deleted mid-flow is reported as
// not found.
func (c *Controller) step(ctx context.Context, id string, patch domain.JobPatch) (*domain.Job, error) {
	job, err := c.Transition(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return job, nil
}

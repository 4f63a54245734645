package poller

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"videokit/internal/domain"
	"videokit/internal/infra"
)

const (
	msgMissingResult  = "No video URL returned from provider"
	msgProviderFailed = "Video generation failed on provider"
	msgNoTaskID       = "job has no task ID to check"
)

// Tracker is the job registry the engine reads from and writes transitions through.
type Tracker interface {
	Get(id string) (*domain.Job, bool)
	Transition(ctx context.Context, id string, patch domain.JobPatch) (*domain.Job, error)
}

// StatusSource answers one status query for an external task.
type StatusSource interface {
	Status(ctx context.Context, taskID, model string) (*domain.TaskStatus, error)
}

// Options configures the polling cadence.
type Options struct {
	Interval       time.Duration
	MaxAttempts    int
	TimeoutMessage string
	Logger         *infra.Logger
}

// Outcome is the result of a manual status check.
type Outcome struct {
	Status  domain.JobStatus `json:"status"`
	Message string           `json:"message"`
}

// Engine drives one watch loop per active job until the provider reports a terminal state.
type Engine struct {
	tracker     Tracker
	provider    StatusSource
	watches     *WatchSet
	scheduler   Scheduler
	interval    time.Duration
	maxAttempts int
	timeoutMsg  string
	logger      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewEngine(tracker Tracker, provider StatusSource, watches *WatchSet, scheduler Scheduler, opts Options) *Engine {
	if watches == nil {
		watches = NewWatchSet()
	}
	if scheduler == nil {
		scheduler = ClockScheduler{}
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 20
	}
	timeoutMsg := opts.TimeoutMessage
	if timeoutMsg == "" {
		budget := interval * time.Duration(maxAttempts)
		timeoutMsg = fmt.Sprintf("Generation timeout (exceeded %s)", budget.Round(time.Second))
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		tracker:     tracker,
		provider:    provider,
		watches:     watches,
		scheduler:   scheduler,
		interval:    interval,
		maxAttempts: maxAttempts,
		timeoutMsg:  timeoutMsg,
		logger:      infra.Component(logger, "poller"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Watch starts a loop for the job unless one is already running. The first poll is immediate.
func (e *Engine) Watch(jobID, taskID, model string) {
	if e.ctx.Err() != nil || jobID == "" || taskID == "" {
		return
	}
	w := &watch{state: WatchState{JobID: jobID, TaskID: taskID, Model: model}}
	if !e.watches.add(w) {
		return
	}
	e.logger.Debug().Str("job_id", jobID).Str("task_id", taskID).Msg("watch started")
	e.schedule(w, 0)
}

// Cancel stops the loop for jobID. An in-flight status query finishes but its result is discarded.
func (e *Engine) Cancel(jobID string) {
	e.watches.Cancel(jobID)
}

func (e *Engine) CancelAll() {
	e.watches.CancelAll()
}

// Stop cancels every loop. Jobs stay in their active state so the next start resumes them.
func (e *Engine) Stop() {
	e.cancel()
	e.watches.CancelAll()
}

func (e *Engine) Watching(jobID string) bool {
	return e.watches.Has(jobID)
}

func (e *Engine) schedule(w *watch, d time.Duration) {
	t := e.scheduler.After(d, func() { e.tick(w) })
	e.watches.setTimer(w, t)
}

// live reports whether w should keep going: the engine is running, w is still the registered
// loop and the job still exists in a non-terminal state.
func (e *Engine) live(w *watch) bool {
	if e.ctx.Err() != nil || !e.watches.current(w) {
		return false
	}
	job, ok := e.tracker.Get(w.state.JobID)
	if !ok || job.Status.Terminal() {
		e.watches.remove(w)
		return false
	}
	return true
}

func (e *Engine) tick(w *watch) {
	if !e.live(w) {
		return
	}
	st := w.state
	status, err := e.provider.Status(e.ctx, st.TaskID, st.Model)
	if !e.live(w) {
		return
	}

	class, patch := classify(status, err)
	attempts := e.watches.record(w, class, true)
	log := e.logger.With().Str("job_id", st.JobID).Str("task_id", st.TaskID).Int("attempt", attempts).Logger()

	if class == ClassRunning {
		if attempts < e.maxAttempts {
			log.Debug().Str("state", status.State).Msg("task still running")
			e.schedule(w, e.interval)
			return
		}
		class, patch = ClassTimeout, domain.Failed(e.timeoutMsg)
		e.watches.record(w, class, false)
	}

	if err != nil {
		log.Warn().Err(err).Msg("status query failed")
	}
	if _, terr := e.tracker.Transition(e.ctx, st.JobID, patch); terr != nil {
		log.Warn().Err(terr).Str("outcome", class.String()).
			Msg("outcome not applied; job stays active and will be resumed on restart")
	} else {
		log.Info().Str("outcome", class.String()).Msg("watch finished")
	}
	e.watches.remove(w)
}

// CheckOnce performs one synchronous status query for a manual refresh. Terminal outcomes are
// applied to the job; transport errors are reported without failing it.
func (e *Engine) CheckOnce(ctx context.Context, jobID string) (Outcome, error) {
	job, ok := e.tracker.Get(jobID)
	if !ok {
		return Outcome{}, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	if job.Status.Terminal() {
		return Outcome{Status: job.Status, Message: "Job already " + string(job.Status)}, nil
	}
	if job.ExternalTaskID == "" {
		return Outcome{Status: domain.JobStatusFailed, Message: msgNoTaskID}, nil
	}

	status, err := e.provider.Status(ctx, job.ExternalTaskID, job.Model)
	if err != nil {
		return Outcome{Status: domain.JobStatusFailed, Message: err.Error()}, nil
	}

	class, patch := classify(status, nil)
	var out Outcome
	switch class {
	case ClassRunning:
		return Outcome{
			Status:  domain.JobStatusGenerating,
			Message: fmt.Sprintf("Job is still processing (state: %s)", status.State),
		}, nil
	case ClassSuccess:
		out = Outcome{Status: domain.JobStatusCompleted, Message: "Job completed"}
	case ClassMissingResult:
		out = Outcome{Status: domain.JobStatusFailed, Message: "No video URL returned"}
	default:
		out = Outcome{Status: domain.JobStatusFailed, Message: patch.Error}
	}
	if _, err := e.tracker.Transition(ctx, jobID, patch); err != nil {
		return Outcome{}, err
	}
	e.watches.Cancel(jobID)
	return out, nil
}

// classify maps one status query onto a classification and the patch that applies it.
func classify(status *domain.TaskStatus, err error) (Classification, domain.JobPatch) {
	if err != nil {
		return ClassError, domain.Failed(err.Error())
	}
	if status == nil {
		return ClassError, domain.Failed(domain.ErrProviderMalformed.Error())
	}
	switch status.State {
	case domain.TaskStateSuccess:
		if status.ResultURL == "" {
			return ClassMissingResult, domain.Failed(msgMissingResult)
		}
		return ClassSuccess, domain.JobPatch{
			Status:       domain.JobStatusCompleted,
			ResultURL:    status.ResultURL,
			ThumbnailURL: status.ThumbnailURL,
		}
	case domain.TaskStateFail:
		msg := status.Message
		if msg == "" {
			msg = msgProviderFailed
		}
		return ClassFailure, domain.Failed(msg)
	default:
		return ClassRunning, domain.JobPatch{}
	}
}

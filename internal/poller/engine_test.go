package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videokit/internal/domain"
	"videokit/internal/infra"
)

type fakeTimer struct {
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type scheduled struct {
	delay time.Duration
	fn    func()
	timer *fakeTimer
}

// fakeScheduler queues calls until the test runs them.
type fakeScheduler struct {
	queue []*scheduled
}

func (s *fakeScheduler) After(d time.Duration, fn func()) Timer {
	item := &scheduled{delay: d, fn: fn, timer: &fakeTimer{}}
	s.queue = append(s.queue, item)
	return item.timer
}

// runNext runs the oldest pending call that was not stopped. It reports false when none is left.
func (s *fakeScheduler) runNext() bool {
	for len(s.queue) > 0 {
		item := s.queue[0]
		s.queue = s.queue[1:]
		if item.timer.stopped {
			continue
		}
		item.timer.fired = true
		item.fn()
		return true
	}
	return false
}

func (s *fakeScheduler) runAll() int {
	n := 0
	for s.runNext() {
		n++
	}
	return n
}

type fakeTracker struct {
	mu          sync.Mutex
	jobs        map[string]*domain.Job
	transitions []domain.JobPatch
	err         error
}

func newFakeTracker(jobs ...*domain.Job) *fakeTracker {
	t := &fakeTracker{jobs: map[string]*domain.Job{}}
	for _, j := range jobs {
		t.jobs[j.ID] = j
	}
	return t
}

func (t *fakeTracker) Get(id string) (*domain.Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return nil, false
	}
	return j.Clone(), true
}

func (t *fakeTracker) Transition(ctx context.Context, id string, patch domain.JobPatch) (*domain.Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transitions = append(t.transitions, patch)
	if t.err != nil {
		return nil, t.err
	}
	j, ok := t.jobs[id]
	if !ok {
		return nil, nil
	}
	next, err := patch.Apply(j, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	t.jobs[id] = next
	return next.Clone(), nil
}

func (t *fakeTracker) delete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, id)
}

type fakeProvider struct {
	responses []*domain.TaskStatus
	errs      []error
	calls     int
	onCall    func()
}

func (p *fakeProvider) Status(ctx context.Context, taskID, model string) (*domain.TaskStatus, error) {
	i := p.calls
	p.calls++
	if p.onCall != nil {
		p.onCall()
	}
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return &domain.TaskStatus{State: "generating"}, nil
}

func generatingJob(id string) *domain.Job {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Job{
		ID:             id,
		Model:          domain.ModelSora2,
		Status:         domain.JobStatusGenerating,
		ExternalTaskID: "task-" + id,
		Prompt:         "p",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func newTestEngine(tracker Tracker, provider StatusSource) (*Engine, *fakeScheduler) {
	sched := &fakeScheduler{}
	engine := NewEngine(tracker, provider, NewWatchSet(), sched, Options{
		Interval:    30 * time.Second,
		MaxAttempts: 20,
	})
	return engine, sched
}

func TestWatchCompletesAfterThreePolls(t *testing.T) {
	tracker := newFakeTracker(generatingJob("j1"))
	provider := &fakeProvider{responses: []*domain.TaskStatus{
		{State: "queuing"},
		{State: "generating"},
		{State: domain.TaskStateSuccess, ResultURL: "https://cdn.example.com/v.mp4"},
	}}
	engine, sched := newTestEngine(tracker, provider)

	engine.Watch("j1", "task-j1", domain.ModelSora2)
	require.Len(t, sched.queue, 1)
	assert.Equal(t, time.Duration(0), sched.queue[0].delay)

	assert.Equal(t, 3, sched.runAll())
	assert.Equal(t, 3, provider.calls)

	job, _ := tracker.Get("j1")
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, "https://cdn.example.com/v.mp4", job.ResultURL)
	assert.NotNil(t, job.CompletedAt)
	assert.Len(t, tracker.transitions, 1)
	assert.False(t, engine.Watching("j1"))
}

func TestWatchSchedulesAtInterval(t *testing.T) {
	tracker := newFakeTracker(generatingJob("j1"))
	engine, sched := newTestEngine(tracker, &fakeProvider{})

	engine.Watch("j1", "task-j1", domain.ModelSora2)
	require.True(t, sched.runNext())
	require.Len(t, sched.queue, 1)
	assert.Equal(t, 30*time.Second, sched.queue[0].delay)

	state, ok := engine.watches.State("j1")
	require.True(t, ok)
	assert.Equal(t, 1, state.Attempts)
	assert.Equal(t, ClassRunning, state.Last)
}

func TestWatchTimesOutAfterMaxAttempts(t *testing.T) {
	tracker := newFakeTracker(generatingJob("j1"))
	provider := &fakeProvider{}
	engine, sched := newTestEngine(tracker, provider)

	engine.Watch("j1", "task-j1", domain.ModelSora2)
	sched.runAll()

	assert.Equal(t, 20, provider.calls, "no 21st poll")
	job, _ := tracker.Get("j1")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "Generation timeout (exceeded 10m0s)", job.Error)
	assert.Len(t, tracker.transitions, 1)
	assert.False(t, engine.Watching("j1"))
}

func TestWatchMissingResultFailsWithoutRetry(t *testing.T) {
	tracker := newFakeTracker(generatingJob("j1"))
	provider := &fakeProvider{responses: []*domain.TaskStatus{{State: domain.TaskStateSuccess}}}
	engine, sched := newTestEngine(tracker, provider)

	engine.Watch("j1", "task-j1", domain.ModelSora2)
	sched.runAll()

	assert.Equal(t, 1, provider.calls)
	job, _ := tracker.Get("j1")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "No video URL returned from provider", job.Error)
}

func TestWatchExplicitFailure(t *testing.T) {
	tracker := newFakeTracker(generatingJob("j1"), generatingJob("j2"))
	provider := &fakeProvider{responses: []*domain.TaskStatus{
		{State: domain.TaskStateFail, Message: "content policy"},
		{State: domain.TaskStateFail},
	}}
	engine, sched := newTestEngine(tracker, provider)

	engine.Watch("j1", "task-j1", domain.ModelSora2)
	engine.Watch("j2", "task-j2", domain.ModelSora2)
	sched.runAll()

	j1, _ := tracker.Get("j1")
	j2, _ := tracker.Get("j2")
	assert.Equal(t, "content policy", j1.Error)
	assert.Equal(t, "Video generation failed on provider", j2.Error)
}

func TestWatchTransportErrorFailsImmediately(t *testing.T) {
	tracker := newFakeTracker(generatingJob("j1"))
	provider := &fakeProvider{errs: []error{fmt.Errorf("%w: connection reset", domain.ErrProviderUnavailable)}}
	engine, sched := newTestEngine(tracker, provider)

	engine.Watch("j1", "task-j1", domain.ModelSora2)
	sched.runAll()

	job, _ := tracker.Get("j1")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "connection reset")
	assert.Equal(t, 1, provider.calls)
}

func TestWatchIsIdempotentPerJob(t *testing.T) {
	tracker := newFakeTracker(generatingJob("j1"))
	engine, sched := newTestEngine(tracker, &fakeProvider{})

	engine.Watch("j1", "task-j1", domain.ModelSora2)
	engine.Watch("j1", "task-j1", domain.ModelSora2)
	assert.Len(t, sched.queue, 1)
}

func TestDeletedJobStopsLoopBeforePolling(t *testing.T) {
	tracker := newFakeTracker(generatingJob("j1"))
	provider := &fakeProvider{}
	engine, sched := newTestEngine(tracker, provider)

	engine.Watch("j1", "task-j1", domain.ModelSora2)
	sched.runNext()
	tracker.delete("j1")
	sched.runAll()

	assert.Equal(t, 1, provider.calls)
	assert.Empty(t, tracker.transitions)
	assert.False(t, engine.Watching("j1"))
}

func TestDeleteDuringInFlightQueryDiscardsResult(t *testing.T) {
	tracker := newFakeTracker(generatingJob("j1"))
	provider := &fakeProvider{responses: []*domain.TaskStatus{
		{State: domain.TaskStateSuccess, ResultURL: "https://cdn.example.com/v.mp4"},
	}}
	engine, sched := newTestEngine(tracker, provider)
	provider.onCall = func() {
		tracker.delete("j1")
		engine.Cancel("j1")
	}

	engine.Watch("j1", "task-j1", domain.ModelSora2)
	sched.runAll()

	assert.Empty(t, tracker.transitions)
	_, ok := tracker.Get("j1")
	assert.False(t, ok)
}

func TestCancelStopsPendingTick(t *testing.T) {
	tracker := newFakeTracker(generatingJob("j1"))
	provider := &fakeProvider{}
	engine, sched := newTestEngine(tracker, provider)

	engine.Watch("j1", "task-j1", domain.ModelSora2)
	engine.Cancel("j1")
	assert.Equal(t, 0, sched.runAll())
	assert.Zero(t, provider.calls)
}

func TestStopLeavesJobsResumable(t *testing.T) {
	tracker := newFakeTracker(generatingJob("j1"))
	provider := &fakeProvider{responses: []*domain.TaskStatus{
		{State: domain.TaskStateSuccess, ResultURL: "https://cdn.example.com/v.mp4"},
	}}
	engine, sched := newTestEngine(tracker, provider)
	provider.onCall = engine.Stop

	engine.Watch("j1", "task-j1", domain.ModelSora2)
	sched.runAll()

	job, _ := tracker.Get("j1")
	assert.Equal(t, domain.JobStatusGenerating, job.Status)
	assert.Empty(t, tracker.transitions)

	engine.Watch("j1", "task-j1", domain.ModelSora2)
	assert.Empty(t, sched.queue, "stopped engine starts no loops")
}

func TestFailedTransitionReleasesGuard(t *testing.T) {
	tracker := newFakeTracker(generatingJob("j1"))
	tracker.err = fmt.Errorf("put job: %w", domain.ErrStoreUnavailable)
	provider := &fakeProvider{responses: []*domain.TaskStatus{{State: domain.TaskStateFail}}}
	engine, sched := newTestEngine(tracker, provider)

	engine.Watch("j1", "task-j1", domain.ModelSora2)
	sched.runAll()

	assert.Len(t, tracker.transitions, 1)
	assert.False(t, engine.Watching("j1"))
}

func TestFailedTransitionWarnsJobWillResume(t *testing.T) {
	tracker := newFakeTracker(generatingJob("j1"))
	tracker.err = fmt.Errorf("put job: %w", domain.ErrStoreUnavailable)
	provider := &fakeProvider{responses: []*domain.TaskStatus{{State: domain.TaskStateFail}}}
	var buf bytes.Buffer
	logger := infra.Logger(zerolog.New(&buf))
	sched := &fakeScheduler{}
	engine := NewEngine(tracker, provider, NewWatchSet(), sched, Options{
		Interval:    30 * time.Second,
		MaxAttempts: 20,
		Logger:      &logger,
	})

	engine.Watch("j1", "task-j1", domain.ModelSora2)
	sched.runAll()

	var warn map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["level"] == "warn" {
			warn = entry
		}
	}
	require.NotNil(t, warn, buf.String())
	assert.Equal(t, "j1", warn["job_id"])
	assert.Equal(t, "failure", warn["outcome"])
	assert.Contains(t, warn["message"], "resumed on restart")
	assert.Contains(t, warn["error"], "store unavailable")
}

func TestCheckOnce(t *testing.T) {
	noTask := generatingJob("none")
	noTask.ExternalTaskID = ""
	noTask.Status = domain.JobStatusUploading

	tests := []struct {
		name       string
		job        *domain.Job
		status     *domain.TaskStatus
		err        error
		want       Outcome
		wantStatus domain.JobStatus
	}{
		{
			name:       "completed",
			job:        generatingJob("a"),
			status:     &domain.TaskStatus{State: domain.TaskStateSuccess, ResultURL: "https://cdn.example.com/a.mp4"},
			want:       Outcome{Status: domain.JobStatusCompleted, Message: "Job completed"},
			wantStatus: domain.JobStatusCompleted,
		},
		{
			name:       "missing result",
			job:        generatingJob("b"),
			status:     &domain.TaskStatus{State: domain.TaskStateSuccess},
			want:       Outcome{Status: domain.JobStatusFailed, Message: "No video URL returned"},
			wantStatus: domain.JobStatusFailed,
		},
		{
			name:       "still running",
			job:        generatingJob("c"),
			status:     &domain.TaskStatus{State: "queuing"},
			want:       Outcome{Status: domain.JobStatusGenerating, Message: "Job is still processing (state: queuing)"},
			wantStatus: domain.JobStatusGenerating,
		},
		{
			name:       "transport error does not fail the job",
			job:        generatingJob("d"),
			err:        errors.New("dial tcp: timeout"),
			want:       Outcome{Status: domain.JobStatusFailed, Message: "dial tcp: timeout"},
			wantStatus: domain.JobStatusGenerating,
		},
		{
			name:       "no task id",
			job:        noTask,
			want:       Outcome{Status: domain.JobStatusFailed, Message: "job has no task ID to check"},
			wantStatus: domain.JobStatusUploading,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newFakeTracker(tt.job)
			provider := &fakeProvider{}
			if tt.status != nil {
				provider.responses = []*domain.TaskStatus{tt.status}
			}
			if tt.err != nil {
				provider.errs = []error{tt.err}
			}
			engine, _ := newTestEngine(tracker, provider)

			out, err := engine.CheckOnce(context.Background(), tt.job.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
			job, _ := tracker.Get(tt.job.ID)
			assert.Equal(t, tt.wantStatus, job.Status)
		})
	}
}

func TestCheckOnceUnknownJob(t *testing.T) {
	engine, _ := newTestEngine(newFakeTracker(), &fakeProvider{})
	_, err := engine.CheckOnce(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

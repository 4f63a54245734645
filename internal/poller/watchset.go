package poller

import "sync"

// Classification is the engine's reading of one status query.
type Classification int

const (
	ClassNone Classification = iota
	ClassRunning
	ClassSuccess
	ClassMissingResult
	ClassFailure
	ClassError
	ClassTimeout
)

func (c Classification) String() string {
	switch c {
	case ClassRunning:
		return "running"
	case ClassSuccess:
		return "success"
	case ClassMissingResult:
		return "missing_result"
	case ClassFailure:
		return "failure"
	case ClassError:
		return "error"
	case ClassTimeout:
		return "timeout"
	default:
		return "none"
	}
}

// WatchState is a point-in-time view of one watch loop.
type WatchState struct {
	JobID    string
	TaskID   string
	Model    string
	Attempts int
	Last     Classification
}

type watch struct {
	state WatchState
	timer Timer
}

// WatchSet tracks the live watch loops, at most one per job id.
type WatchSet struct {
	mu      sync.Mutex
	watches map[string]*watch
}

func NewWatchSet() *WatchSet {
	return &WatchSet{watches: make(map[string]*watch)}
}

// add registers w unless its job already has a live watch.
func (s *WatchSet) add(w *watch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watches[w.state.JobID]; ok {
		return false
	}
	s.watches[w.state.JobID] = w
	return true
}

// current reports whether w is still the registered loop for its job.
func (s *WatchSet) current(w *watch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watches[w.state.JobID] == w
}

func (s *WatchSet) remove(w *watch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watches[w.state.JobID] == w {
		delete(s.watches, w.state.JobID)
	}
}

func (s *WatchSet) setTimer(w *watch, t Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watches[w.state.JobID] != w {
		t.Stop()
		return
	}
	w.timer = t
}

// record stores the classification of a completed poll and returns the attempt count so far.
func (s *WatchSet) record(w *watch, c Classification, polled bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if polled {
		w.state.Attempts++
	}
	w.state.Last = c
	return w.state.Attempts
}

// Cancel drops the loop for jobID and stops its pending tick.
func (s *WatchSet) Cancel(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.watches[jobID]; ok {
		delete(s.watches, jobID)
		if w.timer != nil {
			w.timer.Stop()
		}
	}
}

func (s *WatchSet) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, w := range s.watches {
		if w.timer != nil {
			w.timer.Stop()
		}
		delete(s.watches, id)
	}
}

func (s *WatchSet) Has(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watches[jobID]
	return ok
}

func (s *WatchSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}

func (s *WatchSet) State(jobID string) (WatchState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watches[jobID]
	if !ok {
		return WatchState{}, false
	}
	return w.state, true
}

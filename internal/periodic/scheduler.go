// Package periodic runs named recurring jobs. A job name is unique within a
// Scheduler; registering a name twice either keeps or replaces the running
// job depending on the Policy.
package periodic

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/logging"
)

var (
	ErrClosed         = errors.New("scheduler closed")
	ErrInvalidPeriod  = errors.New("period must be positive")
	ErrUnknownJobName = errors.New("unknown job")
)

type JobFunc func(ctx context.Context) error

// Policy decides what happens when a job with the same name exists.
type Policy int

const (
	KeepExisting Policy = iota
	ReplaceExisting
)

// Job describes a recurring task.
type Job struct {
	Name    string
	Period  time.Duration
	Timeout time.Duration // per run; zero means no limit
	// Delay before the first run. Zero runs the job immediately.
	InitialDelay time.Duration
	Fn           JobFunc
}

type running struct {
	job    Job
	cancel context.CancelFunc
	done   chan struct{}
	kick   chan struct{}
}

type Scheduler struct {
	log logging.Logger

	mu     sync.Mutex
	jobs   map[string]*running
	closed bool
}

func NewScheduler(log logging.Logger) *Scheduler {
	return &Scheduler{
		log:  log.With("module", "periodic"),
		jobs: make(map[string]*running),
	}
}

// Schedule registers j. It reports whether a new loop was started: with
// KeepExisting an already registered name is left alone and false is
// returned.
func (s *Scheduler) Schedule(j Job, policy Policy) (bool, error) {
	if j.Period <= 0 {
		return false, ErrInvalidPeriod
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}

	var old *running
	if existing, ok := s.jobs[j.Name]; ok {
		if policy == KeepExisting {
			s.mu.Unlock()
			s.log.Debug(context.Background(), "job already scheduled, keeping it", "job", j.Name)
			return false, nil
		}
		old = existing
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &running{
		job:    j,
		cancel: cancel,
		done:   make(chan struct{}),
		kick:   make(chan struct{}, 1),
	}
	s.jobs[j.Name] = r
	s.mu.Unlock()

	if old != nil {
		old.stop()
	}

	go s.loop(ctx, r)
	s.log.Info(ctx, "job scheduled", "job", j.Name, "period", j.Period.String())
	return true, nil
}

// Kick asks the named job to run now without waiting for its next tick. A
// kick arriving while the job is busy is coalesced into one extra run.
func (s *Scheduler) Kick(name string) error {
	s.mu.Lock()
	r, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return ErrUnknownJobName
	}

	select {
	case r.kick <- struct{}{}:
	default:
	}
	return nil
}

// Cancel stops the named job and waits for a running invocation to return.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	r, ok := s.jobs[name]
	delete(s.jobs, name)
	s.mu.Unlock()

	if ok {
		r.stop()
	}
}

func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for n := range s.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close stops every job. Schedule fails afterwards.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	jobs := s.jobs
	s.jobs = map[string]*running{}
	s.mu.Unlock()

	for _, r := range jobs {
		r.stop()
	}
}

func (r *running) stop() {
	r.cancel()
	<-r.done
}

func (s *Scheduler) loop(ctx context.Context, r *running) {
	defer close(r.done)

	call := func() {
		callCtx := ctx
		if r.job.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.job.Timeout)
			defer cancel()
		}
		if err := r.job.Fn(callCtx); err != nil {
			s.log.Warn(ctx, "periodic job failed", "job", r.job.Name, "error", err)
		}
	}

	if r.job.InitialDelay > 0 {
		timer := time.NewTimer(r.job.InitialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-r.kick:
			timer.Stop()
		}
	}
	call()

	ticker := time.NewTicker(r.job.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			call()
		case <-r.kick:
			call()
			ticker.Reset(r.job.Period)
		}
	}
}

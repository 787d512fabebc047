// Package executor runs the asynchronous jobs that requests decompose into and
// provides the per-command decomposition strategies for mesh edits.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nikoraes/formalink/internal/coordinator"
)

// ErrStopped is reported to jobs spawned after Stop.
var ErrStopped = errors.New("executor stopped")

// Spawner runs each job on its own goroutine and reports its outcome through
// the completion callback, including panics.
type Spawner struct {
	logger *slog.Logger

	// ctx and cancel for spawner lifecycle
	ctx    context.Context
	cancel context.CancelFunc

	// wg tracks running jobs
	wg      sync.WaitGroup
	running atomic.Int64

	mu      sync.Mutex
	stopped bool
}

var _ coordinator.Spawner = (*Spawner)(nil)

// NewSpawner creates a Spawner whose jobs are cancelled when ctx is.
func NewSpawner(ctx context.Context, logger *slog.Logger) *Spawner {
	ctx, cancel := context.WithCancel(ctx)
	return &Spawner{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Spawn starts job. done is called exactly once, from the job's goroutine.
func (s *Spawner) Spawn(job coordinator.Job, done func(error)) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		go done(ErrStopped)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.running.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Add(-1)

		err := s.run(job)
		if err != nil {
			s.logger.Debug("job finished with error", "kind", job.Kind, "prim", job.PrimPath, "error", err)
		}
		done(err)
	}()
}

func (s *Spawner) run(job coordinator.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "kind", job.Kind, "prim", job.PrimPath, "panic", r)
			err = fmt.Errorf("%s %s panicked: %v", job.Kind, job.PrimPath, r)
		}
	}()
	if err := s.ctx.Err(); err != nil {
		return err
	}
	return job.Run(s.ctx)
}

// Running returns the number of jobs that have not finished.
func (s *Spawner) Running() int {
	return int(s.running.Load())
}

// Stop cancels running jobs and waits for them to report.
func (s *Spawner) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

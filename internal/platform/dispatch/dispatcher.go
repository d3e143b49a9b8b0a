package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Result is the recorded outcome of one dispatched side effect.
type Result struct {
	Name       string        `json:"name"`
	Err        string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}

const maxResults = 256

var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher runs side effects (PHI access logs, document generation) on
// detached goroutines with a bounded per-task timeout. A failed task is
// logged and recorded, never reported to the caller: saving a note must not
// fail because a downstream collaborator is unhappy.
type Dispatcher struct {
	log     zerolog.Logger
	timeout time.Duration

	mu      sync.Mutex
	wg      sync.WaitGroup
	seen    map[string]bool
	results []Result
	closed  bool
}

func New(log zerolog.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		log:     log,
		timeout: timeout,
		seen:    make(map[string]bool),
	}
}

// Submit schedules a side effect. The returned error only reports scheduling
// problems; the task's own outcome goes to the log and the result buffer.
func (d *Dispatcher) Submit(name string, fn func(ctx context.Context) error) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go d.run(name, fn)
	return nil
}

// SubmitOnce schedules a side effect at most once per key for the lifetime of
// the dispatcher. Repeated opens of the same record during a session produce
// one access-log row, not a row per click.
func (d *Dispatcher) SubmitOnce(key, name string, fn func(ctx context.Context) error) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if d.seen[key] {
		d.mu.Unlock()
		return nil
	}
	d.seen[key] = true
	d.wg.Add(1)
	d.mu.Unlock()

	go d.run(name, fn)
	return nil
}

func (d *Dispatcher) run(name string, fn func(ctx context.Context) error) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	res := Result{
		Name:       name,
		Duration:   time.Since(start),
		FinishedAt: time.Now(),
	}
	if err != nil {
		res.Err = err.Error()
		d.log.Warn().Err(err).Str("task", name).Dur("duration", res.Duration).
			Msg("side effect failed")
	} else {
		d.log.Debug().Str("task", name).Dur("duration", res.Duration).
			Msg("side effect completed")
	}

	d.mu.Lock()
	d.results = append(d.results, res)
	if len(d.results) > maxResults {
		d.results = d.results[len(d.results)-maxResults:]
	}
	d.mu.Unlock()
}

// Results returns a snapshot of the most recent task outcomes.
func (d *Dispatcher) Results() []Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Result, len(d.results))
	copy(out, d.results)
	return out
}

// Wait blocks until every submitted task has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close stops accepting new tasks and waits for in-flight ones.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

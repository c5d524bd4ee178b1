package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/InfyniteHeap/gridcore/internal/checksum"
	gridhttp "github.com/InfyniteHeap/gridcore/internal/http"
	"github.com/InfyniteHeap/gridcore/internal/progress"
	"github.com/InfyniteHeap/gridcore/internal/store"
)

// Task is one file to download.
type Task struct {
	Dir  string // slash-separated directory relative to the game root
	Name string // file name
	URL  string // source URL
	SHA1 string // expected digest; empty when the file has no integrity anchor
}

// Key returns the task's destination key in the store.
func (t Task) Key() string {
	return store.Join(t.Dir, t.Name)
}

// Options configures the engine.
type Options struct {
	// Workers is the number of files transferred concurrently.
	// Default: runtime.NumCPU()
	Workers int

	// Attempts is the number of transfer attempts per file.
	// Default: 5
	Attempts int

	// RetryDelay is the delay before the first retry. Later retries double
	// it, with jitter, up to RetryMaxDelay. Zero retries immediately.
	RetryDelay time.Duration

	// RetryMaxDelay caps the delay between attempts.
	// Default: 30s
	RetryMaxDelay time.Duration

	// Progress is an optional progress reporter.
	Progress *progress.Reporter

	// Logger receives per-file diagnostics. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Workers:       runtime.NumCPU(),
		Attempts:      5,
		RetryMaxDelay: 30 * time.Second,
	}
}

// Engine executes download tasks against a store.
type Engine struct {
	client *gridhttp.Client
	store  *store.Store
	opts   Options
	log    *slog.Logger
}

// New creates an engine. Options are fixed for the engine's lifetime.
func New(client *gridhttp.Client, st *store.Store, opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = defaults.Workers
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaults.Attempts
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = defaults.RetryMaxDelay
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Engine{
		client: client,
		store:  st,
		opts:   opts,
		log:    log,
	}
}

// Workers returns the concurrency budget.
func (e *Engine) Workers() int {
	return e.opts.Workers
}

// Store returns the store files are written to.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Run downloads every task with at most Workers transfers in flight.
//
// A failing task never cancels its siblings: Run waits for all tasks and
// then returns a *RunError listing every task that failed permanently.
// Cancelling ctx stops scheduling and aborts in-flight attempts.
func (e *Engine) Run(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	workers := e.opts.Workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	var (
		mu     sync.Mutex
		failed []*TaskError
		wg     sync.WaitGroup
	)

	jobs := make(chan Task, workers)

	// Start workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				if terr := e.process(ctx, task); terr != nil {
					mu.Lock()
					failed = append(failed, terr)
					mu.Unlock()
				}
			}
		}()
	}

	// Feed jobs to workers
	go func() {
		defer close(jobs)
		for _, task := range tasks {
			select {
			case jobs <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("download interrupted: %w", err)
	}

	if len(failed) > 0 {
		sort.Slice(failed, func(i, j int) bool {
			return failed[i].Task.Key() < failed[j].Task.Key()
		})
		return &RunError{Total: len(tasks), Failed: failed}
	}
	return nil
}

// Fetch downloads a single task, skipping it when the destination is
// already correct. A failure is returned as a *TaskError.
func (e *Engine) Fetch(ctx context.Context, task Task) error {
	if terr := e.process(ctx, task); terr != nil {
		return terr
	}
	return nil
}

// process runs the fast-path check and then the attempt loop for one task.
func (e *Engine) process(ctx context.Context, task Task) *TaskError {
	key := task.Key()

	ok, err := e.satisfied(ctx, task)
	if err != nil {
		e.log.Error("cannot inspect destination", "key", key, "error", err)
		return &TaskError{Task: task, Kind: ErrFilesystem, Attempts: []error{err}}
	}
	if ok {
		e.log.Debug("file up to date", "key", key)
		if e.opts.Progress != nil {
			e.opts.Progress.FileSkipped()
		}
		return nil
	}

	if e.opts.Progress != nil {
		e.opts.Progress.FileStarted()
	}

	var errs []error
	for attempt := 1; attempt <= e.opts.Attempts; attempt++ {
		if attempt > 1 {
			if err := e.backoff(ctx, attempt-1); err != nil {
				errs = append(errs, fmt.Errorf("%w: %w", ErrNetwork, err))
				break
			}
		}

		n, err := e.attempt(ctx, task)
		if err == nil {
			e.log.Debug("file downloaded", "key", key, "bytes", n, "attempt", attempt)
			if e.opts.Progress != nil {
				e.opts.Progress.FileCompleted(n)
			}
			return nil
		}

		errs = append(errs, fmt.Errorf("attempt %d: %w", attempt, err))
		e.log.Warn("download attempt failed", "key", key, "url", task.URL, "attempt", attempt, "error", err)

		if errors.Is(err, ErrFilesystem) || ctx.Err() != nil {
			break
		}
	}

	if e.opts.Progress != nil {
		e.opts.Progress.FileFailed()
	}

	terr := &TaskError{Task: task, Kind: kindOf(errs[len(errs)-1]), Attempts: errs}
	e.log.Error("download failed", "key", key, "kind", terr.Kind, "attempts", len(errs))
	return terr
}

// satisfied reports whether the destination already holds the right content.
func (e *Engine) satisfied(ctx context.Context, task Task) (bool, error) {
	key := task.Key()

	exists, err := e.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrFilesystem, err)
	}
	if !exists {
		return false, nil
	}
	if task.SHA1 == "" {
		return true, nil
	}

	sum, err := e.store.Digest(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrFilesystem, err)
	}
	return checksum.Equal(sum, task.SHA1), nil
}

// attempt performs one transfer. The returned error is tagged with its kind.
func (e *Engine) attempt(ctx context.Context, task Task) (int64, error) {
	resp, err := e.client.Get(ctx, task.URL)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	n, err := e.store.Put(ctx, task.Key(), resp.Body, task.SHA1)
	if err == nil {
		return n, nil
	}

	var mismatch *checksum.MismatchError
	switch {
	case errors.As(err, &mismatch):
		return n, fmt.Errorf("%w: %w", ErrIntegrity, err)
	case errors.Is(err, store.ErrWrite):
		return n, fmt.Errorf("%w: %w", ErrFilesystem, err)
	default:
		return n, fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}
}

// backoff waits before retry number n (1-based). With no RetryDelay it only
// checks for cancellation.
func (e *Engine) backoff(ctx context.Context, n int) error {
	if e.opts.RetryDelay <= 0 {
		return ctx.Err()
	}

	if n > 16 {
		n = 16
	}
	backoff := e.opts.RetryDelay * time.Duration(1<<uint(n-1))
	if backoff > e.opts.RetryMaxDelay {
		backoff = e.opts.RetryMaxDelay
	}

	// Add jitter: 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Options configures the progress reporter.
type Options struct {
	// TotalFiles is the number of files in the plan.
	TotalFiles int

	// Workers is the number of parallel workers.
	Workers int

	// Output is where to write progress output.
	// Default: os.Stdout
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// Release is the release being downloaded (for display).
	Release string
}

// Reporter outputs human-readable progress information.
type Reporter struct {
	opts Options

	mu             sync.Mutex
	completedBytes atomic.Int64
	completedFiles atomic.Int32
	skippedFiles   atomic.Int32
	failedFiles    atomic.Int32
	inProgress     atomic.Int32
	startTime      time.Time
	lastUpdate     time.Time
	lastBytes      int64
	stopCh         chan struct{}
	doneCh         chan struct{}
	stopped        bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// SetTotal sets the number of files once the plan is known.
func (r *Reporter) SetTotal(files int) {
	r.mu.Lock()
	r.opts.TotalFiles = files
	r.mu.Unlock()
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.startTime = time.Now()
	r.lastUpdate = r.startTime

	fmt.Fprintf(r.opts.Output, "[gridcore] Downloading release: %s\n", r.opts.Release)
	fmt.Fprintf(r.opts.Output, "[gridcore] Files: %d | Workers: %d\n", r.total(), r.opts.Workers)

	go r.updateLoop()
}

// Stop stops the progress reporter and prints the final status.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// FileStarted marks a file transfer as in progress.
func (r *Reporter) FileStarted() {
	r.inProgress.Add(1)
}

// FileCompleted marks a transferred file as completed.
func (r *Reporter) FileCompleted(size int64) {
	r.completedBytes.Add(size)
	r.completedFiles.Add(1)
	r.inProgress.Add(-1)
}

// FileFailed marks a file as permanently failed.
func (r *Reporter) FileFailed() {
	r.failedFiles.Add(1)
	r.inProgress.Add(-1)
}

// FileSkipped marks a file that was already present and correct.
func (r *Reporter) FileSkipped() {
	r.skippedFiles.Add(1)
}

// Snapshot returns completed, skipped and failed file counts.
func (r *Reporter) Snapshot() (completed, skipped, failed int) {
	return int(r.completedFiles.Load()), int(r.skippedFiles.Load()), int(r.failedFiles.Load())
}

func (r *Reporter) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts.TotalFiles
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	now := time.Now()
	completed := r.completedBytes.Load()
	done, skipped, failed := r.Snapshot()
	inProgress := int(r.inProgress.Load())
	total := r.total()

	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(completed-r.lastBytes) / elapsed

	r.lastUpdate = now
	r.lastBytes = completed

	var percent float64
	if total > 0 {
		percent = float64(done+skipped+failed) / float64(total) * 100
	}

	pending := total - done - skipped - failed - inProgress
	if pending < 0 {
		pending = 0
	}

	fmt.Fprintf(r.opts.Output, "\r[gridcore] Progress: %.1f%% | %s | Speed: %s/s    ",
		percent,
		FormatBytes(completed),
		FormatBytes(int64(speed)),
	)
	fmt.Fprintf(r.opts.Output, "\n[gridcore] Files: %d downloaded | %d up-to-date | %d failed | %d in-progress | %d pending    \033[A",
		done,
		skipped,
		failed,
		inProgress,
		pending,
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	completed := r.completedBytes.Load()
	done, skipped, failed := r.Snapshot()
	duration := time.Since(r.startTime)
	avgSpeed := float64(completed) / duration.Seconds()

	fmt.Fprintf(r.opts.Output, "\r[gridcore] Files: %d downloaded | %d up-to-date | %d failed    \n",
		done,
		skipped,
		failed,
	)
	fmt.Fprintf(r.opts.Output, "[gridcore] Total: %s in %s | Average speed: %s/s\n",
		FormatBytes(completed),
		formatDuration(duration),
		FormatBytes(int64(avgSpeed)),
	)
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes formats bytes using IEC units, e.g. "1.5 KiB".
func FormatBytes(b int64) string {
	if b < 0 {
		b = 0
	}
	return humanize.IBytes(uint64(b))
}

// ParseBytes parses a human-readable byte string (e.g., "256KiB" or "1MB").
func ParseBytes(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte string: %s", s)
	}
	return int64(n), nil
}

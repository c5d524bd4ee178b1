package downloader

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/InfyniteHeap/gridcore/internal/checksum"
)

// ValidationResult contains the results of checking planned files on disk.
type ValidationResult struct {
	Valid     bool     // true if every file exists and matches its digest
	FileCount int      // number of files checked
	Missing   []string // keys that do not exist
	Corrupted []string // keys whose digest does not match
}

// Verify checks every task's destination without touching the network.
//
// Missing or corrupted files are reported in the result with Valid=false.
// An error is returned only when storage cannot be read or ctx is done.
func (e *Engine) Verify(ctx context.Context, tasks []Task) (*ValidationResult, error) {
	result := &ValidationResult{FileCount: len(tasks)}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for _, task := range tasks {
		task := task
		g.Go(func() error {
			key := task.Key()

			exists, err := e.store.Exists(gctx, key)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrFilesystem, err)
			}
			if !exists {
				mu.Lock()
				result.Missing = append(result.Missing, key)
				mu.Unlock()
				return nil
			}
			if task.SHA1 == "" {
				return nil
			}

			sum, err := e.store.Digest(gctx, key)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrFilesystem, err)
			}
			if !checksum.Equal(sum, task.SHA1) {
				e.log.Debug("digest mismatch", "key", key, "expected", task.SHA1, "actual", sum)
				mu.Lock()
				result.Corrupted = append(result.Corrupted, key)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(result.Missing)
	sort.Strings(result.Corrupted)
	result.Valid = len(result.Missing) == 0 && len(result.Corrupted) == 0
	return result, nil
}

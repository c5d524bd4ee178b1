package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/InfyniteHeap/gridcore/internal/downloader"
	"github.com/InfyniteHeap/gridcore/internal/progress"
)

// runDownload plans a release and downloads every file it needs into the
// game root. Files already present with the right digest are skipped, so an
// interrupted download resumes by running the command again.
func runDownload(args []string) int {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	flags := newFlags(fs)
	flags.releaseFlags(fs)
	flags.transferFlags(fs)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: gridcore download [options]

Download the game build, libraries, native libraries, assets and logging
configuration of a release into the game root.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, err := flags.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	if cfg.Version == "" {
		fmt.Fprintln(os.Stderr, "Error: -version is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	defer s.Close()

	if _, err := s.resolver.FetchCatalogue(ctx, s.source); err != nil {
		return fail(err)
	}

	tasks, err := s.planner.Plan(ctx, cfg.Version, s.category, s.source)
	if err != nil {
		return fail(err)
	}

	var reporter *progress.Reporter
	if cfg.Progress {
		reporter = progress.NewReporter(progress.Options{
			TotalFiles:     len(tasks),
			Workers:        cfg.Workers,
			Output:         os.Stderr,
			UpdateInterval: time.Second,
			Release:        cfg.Version,
		})
		reporter.Start()
		defer reporter.Stop()
	}

	err = s.engine(reporter).Run(ctx, tasks)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "[gridcore] Download interrupted, run again to resume")
			return ExitGeneralError
		}
		var runErr *downloader.RunError
		if errors.As(err, &runErr) {
			fmt.Fprintf(os.Stderr, "[gridcore] %d of %d file(s) failed:\n", len(runErr.Failed), runErr.Total)
			for _, f := range runErr.Failed {
				fmt.Fprintf(os.Stderr, "  - %s (%v)\n", f.Task.Key(), f.Kind)
			}
			fmt.Fprintln(os.Stderr, "[gridcore] Run again to retry the failed files")
			return exitCode(err)
		}
		return fail(err)
	}

	fmt.Fprintf(os.Stderr, "[gridcore] Download complete: %s (%d files) in %s\n", cfg.Version, len(tasks), cfg.Root)
	return ExitSuccess
}

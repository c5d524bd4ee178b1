package main

import (
	"flag"
	"fmt"
	"os"
)

// runValidate checks that every file of an installed release exists with the
// right digest. It reads only the cached documents in the game root and
// does not touch the network.
func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	flags := newFlags(fs)
	flags.releaseFlags(fs)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: gridcore validate [options]

Verify that every file of an installed release exists and matches its digest.
Works offline from the documents cached by a previous download.

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

	tasks, err := s.planner.PlanCached(ctx, cfg.Version, s.category, s.source)
	if err != nil {
		return fail(err)
	}

	result, err := s.engine(nil).Verify(ctx, tasks)
	if err != nil {
		return fail(err)
	}

	// Print results
	fmt.Fprintf(stdout, "Release: %s\n", cfg.Version)
	fmt.Fprintf(stdout, "Files: %d\n", result.FileCount)

	if result.Valid {
		fmt.Fprintln(stdout, "Status: VALID")
		return ExitSuccess
	}

	fmt.Fprintln(stdout, "Status: INVALID")
	fmt.Fprintf(stdout, "Missing files: %d\n", len(result.Missing))
	fmt.Fprintf(stdout, "Corrupted files: %d\n", len(result.Corrupted))

	if len(result.Missing)+len(result.Corrupted) > 0 {
		fmt.Fprintln(stdout, "\nErrors:")
		for _, key := range result.Missing {
			fmt.Fprintf(stdout, "  - missing: %s\n", key)
		}
		for _, key := range result.Corrupted {
			fmt.Fprintf(stdout, "  - corrupted: %s\n", key)
		}
	}

	return ExitValidationFailed
}

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// stdout is where command results are written.
var stdout io.Writer = os.Stdout

// runVersions fetches the catalogue and lists its releases.
func runVersions(args []string) int {
	fs := flag.NewFlagSet("versions", flag.ExitOnError)
	flags := newFlags(fs)
	typ := fs.String("type", "release", "Release type to list: release, snapshot, old_beta, old_alpha or all")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: gridcore versions [options]

Fetch the version catalogue and list the releases it contains.
The catalogue is cached in the game root.

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

	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	defer s.Close()

	catalogue, err := s.resolver.FetchCatalogue(ctx, s.source)
	if err != nil {
		return fail(err)
	}

	versions := catalogue.Filter(*typ)

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, v := range versions {
		marker := ""
		switch v.ID {
		case catalogue.Latest.Release:
			marker = "latest-release"
		case catalogue.Latest.Snapshot:
			marker = "latest-snapshot"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ID, v.Type, v.ReleaseTime, marker)
	}
	if err := w.Flush(); err != nil {
		return fail(err)
	}

	fmt.Fprintf(os.Stderr, "[gridcore] %d release(s)\n", len(versions))
	return ExitSuccess
}

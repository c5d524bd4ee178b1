// Package progress provides progress reporting for release downloads.
//
// This package outputs human-readable progress information to stdout,
// including completion percentage, transfer speed and per-state file counts.
//
// # Usage
//
//	reporter := progress.NewReporter(Options{
//	    Release: "1.21.5",
//	    Workers: 8,
//	    Output:  os.Stderr,
//	})
//	reporter.SetTotal(len(tasks))
//
//	reporter.Start()
//	defer reporter.Stop()
//
// # Output Format
//
//	[gridcore] Downloading release: 1.21.5
//	[gridcore] Files: 3912 | Workers: 8
//	[gridcore] Progress: 45.2% | 312 MiB | Speed: 12 MiB/s
//	[gridcore] Files: 1702 downloaded | 66 up-to-date | 0 failed | 8 in-progress | 2136 pending
package progress

// Package downloader executes file download tasks with bounded concurrency,
// per-attempt timeouts and retries.
//
// # Usage
//
//	engine := downloader.New(client, store, downloader.Options{
//	    Workers:  8,
//	    Attempts: 5,
//	})
//	err := engine.Run(ctx, tasks)
//
// # Per-file algorithm
//
// A task whose destination already exists and matches its digest (or has
// no digest) is skipped without any network access, which makes re-running
// a finished plan free. Otherwise the file is fetched up to Attempts times.
// Timeouts, connection failures, non-success statuses and digest mismatches
// each consume one attempt. Content is hashed while it streams to storage
// and is only committed when the digest matches. Filesystem errors end the
// task immediately.
//
// # Worker Pool
//
// Workers receive tasks from a channel. A permanently failed task does not
// cancel its siblings; Run reports every failure at the end as a
// [RunError].
package downloader

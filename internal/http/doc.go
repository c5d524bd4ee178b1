// Package http provides the HTTP client used to fetch game files.
//
// This package handles:
//   - Connection pooling for high parallelism
//   - A per-attempt timeout covering the request and the body
//   - Status classification into sentinel errors
//   - An optional client-side request rate limit
//
// The client never retries; the download engine owns the retry policy so
// that integrity failures and network failures share one attempt budget.
//
// # Usage
//
//	client := http.NewClient(Options{
//	    Timeout:           10 * time.Second,
//	    RequestsPerSecond: 50,
//	})
//
//	resp, err := client.Get(ctx, url)
//	defer resp.Body.Close()
package http

// Package planner expands a release into the flat list of files needed to
// install it: the main archive, applicable libraries and their native
// variants, content-addressed assets and the logging configuration.
//
// Planning is CPU-only once the release metadata document and its asset
// index have been fetched. The resulting tasks are independent and may run
// in any order; no two tasks share a destination with different digests.
package planner

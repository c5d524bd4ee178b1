// Package manifest fetches, caches and parses the release catalogue, the
// per-release metadata documents and asset indexes.
//
// Documents are validated against embedded JSON Schemas before they are
// decoded into typed structs, so later stages never see a document with a
// missing required field. Validation failures wrap [ErrParse].
//
// The catalogue has no integrity anchor and is always fetched live. Release
// metadata and asset indexes carry a digest and are fetched through the
// download engine, which skips them when the cached copy is correct.
package manifest

// Package store exposes the game root directory as a gocloud.dev/blob
// bucket and defines its layout.
//
// Writes go through [Store.Put], which hashes content while streaming and
// only commits the object when the digest matches. A failed or aborted
// write never leaves a partial file behind.
//
// # Layout
//
//	versions/version_manifest_v2.json
//	versions/<id>/<id>.json
//	versions/<id>/<id>.jar
//	libraries/<path>
//	assets/indexes/<assetIndexId>.json
//	assets/objects/<2-hex>/<hash>
//	assets/log_configs/<id>
package store

package store

import (
	"path"
	"runtime"
	"strings"
)

// Top-level directories of the game root.
const (
	VersionsDir   = "versions"
	LibrariesDir  = "libraries"
	AssetIndexDir = "assets/indexes"
	AssetObjDir   = "assets/objects"
	LogConfigDir  = "assets/log_configs"
)

// CatalogueName is the cached release catalogue under VersionsDir.
const CatalogueName = "version_manifest_v2.json"

// DefaultRoot returns the game root used when none is configured.
func DefaultRoot() string {
	if runtime.GOOS == "darwin" {
		return "./minecraft"
	}
	return "./.minecraft"
}

// Join builds a key from slash-separated parts.
func Join(parts ...string) string {
	return path.Join(parts...)
}

// CatalogueKey is the key of the cached catalogue.
func CatalogueKey() string {
	return Join(VersionsDir, CatalogueName)
}

// ReleaseDir is the directory holding a release's metadata and archive.
func ReleaseDir(id string) string {
	return Join(VersionsDir, id)
}

// ReleaseMetadataKey is the key of a release's cached metadata document.
func ReleaseMetadataKey(id string) string {
	return Join(ReleaseDir(id), id+".json")
}

// AssetIndexName is the file name of a cached asset index.
func AssetIndexName(id string) string {
	return id + ".json"
}

// AssetObjectDir is the sharded directory of a content-addressed asset.
func AssetObjectDir(hash string) string {
	return Join(AssetObjDir, hash[:2])
}

// SplitLibraryPath splits a library's relative path at the last slash into
// a directory under LibrariesDir and a file name.
func SplitLibraryPath(rel string) (dir, name string) {
	rel = strings.TrimPrefix(rel, "/")
	i := strings.LastIndex(rel, "/")
	if i < 0 {
		return LibrariesDir, rel
	}
	return Join(LibrariesDir, rel[:i]), rel[i+1:]
}

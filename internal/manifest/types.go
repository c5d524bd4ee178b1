package manifest

import (
	"fmt"
	"strings"
)

// Category selects which download entry supplies the main archive.
type Category string

const (
	Client Category = "client"
	Server Category = "server"
)

// ParseCategory parses a build category name. Empty means Client.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case "", Client:
		return Client, nil
	case Server:
		return Server, nil
	default:
		return "", fmt.Errorf("manifest: unknown category %q (want client or server)", s)
	}
}

// Release id aliases accepted wherever a release id is.
const (
	AliasLatestRelease  = "latest-release"
	AliasLatestSnapshot = "latest-snapshot"
)

// Catalogue is the top-level index of all known releases.
type Catalogue struct {
	Latest   Latest    `json:"latest"`
	Versions []Version `json:"versions"`
}

// Latest names the newest release and snapshot.
type Latest struct {
	Release  string `json:"release"`
	Snapshot string `json:"snapshot"`
}

// Version is one catalogue entry.
type Version struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	URL             string `json:"url"`
	SHA1            string `json:"sha1"`
	Time            string `json:"time,omitempty"`
	ReleaseTime     string `json:"releaseTime,omitempty"`
	ComplianceLevel int    `json:"complianceLevel,omitempty"`
}

// ResolveID maps the latest-release and latest-snapshot aliases onto
// concrete ids. Other ids are returned unchanged.
func (c *Catalogue) ResolveID(id string) string {
	switch id {
	case AliasLatestRelease, "latest":
		return c.Latest.Release
	case AliasLatestSnapshot:
		return c.Latest.Snapshot
	}
	return id
}

// Lookup finds a release by id or alias.
func (c *Catalogue) Lookup(id string) (Version, bool) {
	id = c.ResolveID(id)
	if id == "" {
		return Version{}, false
	}
	for _, v := range c.Versions {
		if v.ID == id {
			return v, true
		}
	}
	return Version{}, false
}

// Filter returns the versions of the given type in catalogue order.
// An empty type or "all" returns every version.
func (c *Catalogue) Filter(typ string) []Version {
	if typ == "" || typ == "all" {
		return c.Versions
	}
	var out []Version
	for _, v := range c.Versions {
		if v.Type == typ {
			out = append(out, v)
		}
	}
	return out
}

// Release is a per-release metadata document.
type Release struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	MainClass  string              `json:"mainClass"`
	Assets     string              `json:"assets"`
	Downloads  map[string]Download `json:"downloads"`
	Libraries  []Library           `json:"libraries"`
	AssetIndex *AssetIndexRef      `json:"assetIndex"`
	Logging    *Logging            `json:"logging"`
}

// Download returns the download entry for a build category.
func (r *Release) Download(c Category) (Download, bool) {
	d, ok := r.Downloads[string(c)]
	return d, ok
}

// Download is one downloadable archive.
type Download struct {
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Library is a dependency library entry.
type Library struct {
	Name      string            `json:"name"`
	Downloads LibraryDownloads  `json:"downloads"`
	Rules     []Rule            `json:"rules"`
	Natives   map[string]string `json:"natives"`
}

// LibraryDownloads holds the plain artifact and any classifier variants.
type LibraryDownloads struct {
	Artifact    *Artifact           `json:"artifact"`
	Classifiers map[string]Artifact `json:"classifiers"`
}

// Artifact is a file in a maven-style repository.
type Artifact struct {
	Path string `json:"path"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Rule allows or disallows a library on matching platforms.
type Rule struct {
	Action string  `json:"action"`
	OS     *OSRule `json:"os"`
}

// OSRule restricts a rule to a platform. Empty fields match anything.
type OSRule struct {
	Name    string `json:"name"`
	Arch    string `json:"arch"`
	Version string `json:"version"`
}

// AssetIndexRef points at the asset index document of a release.
type AssetIndexRef struct {
	ID        string `json:"id"`
	SHA1      string `json:"sha1"`
	Size      int64  `json:"size"`
	TotalSize int64  `json:"totalSize"`
	URL       string `json:"url"`
}

// Logging holds logging configuration references.
type Logging struct {
	Client *LoggingConfig `json:"client"`
}

// LoggingConfig is the client logging configuration reference.
type LoggingConfig struct {
	Argument string      `json:"argument"`
	Type     string      `json:"type"`
	File     LoggingFile `json:"file"`
}

// LoggingFile is the logging configuration file itself.
type LoggingFile struct {
	ID   string `json:"id"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// AssetIndex enumerates asset objects by logical name.
type AssetIndex struct {
	Objects        map[string]AssetObject `json:"objects"`
	Virtual        bool                   `json:"virtual,omitempty"`
	MapToResources bool                   `json:"map_to_resources,omitempty"`
}

// AssetObject is one content-addressed asset.
type AssetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Package testutils provides shared test infrastructure: an in-process fake
// CDN that publishes consistent release fixtures, and (behind the
// integration build tag) containerised CDN and bucket environments.
package testutils

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/InfyniteHeap/gridcore/internal/mirror"
)

// CataloguePath is where the fake CDN serves the release catalogue.
const CataloguePath = "/mc/game/version_manifest_v2.json"

// SHA1 returns the lowercase hex SHA-1 of data.
func SHA1(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// hostOS is the OS name release documents use for the running platform.
func hostOS() string {
	if runtime.GOOS == "darwin" {
		return "osx"
	}
	return runtime.GOOS
}

// CDN is a fake content server that counts requests per path.
type CDN struct {
	Server *httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	status   map[string]int
	hits     map[string]int
	official bool
}

// NewCDN starts a fake CDN that is closed when the test ends.
func NewCDN(t *testing.T) *CDN {
	t.Helper()
	c := &CDN{
		files:  make(map[string][]byte),
		status: make(map[string]int),
		hits:   make(map[string]int),
	}
	c.Server = httptest.NewServer(c)
	t.Cleanup(c.Server.Close)
	return c
}

// URL returns the server base URL without a trailing slash.
func (c *CDN) URL() string {
	return c.Server.URL
}

// UseOfficialURLs makes documents published afterwards refer to the
// official origin hosts instead of the CDN. The CDN's own paths follow the
// mirror layout, so a mirror.Resolver rooted at URL() maps them back here.
func (c *CDN) UseOfficialURLs() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.official = true
}

// Add serves data at path and returns its URL and digest.
func (c *CDN) Add(path string, data []byte) (url, digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[path] = data
	return c.link(path), SHA1(data)
}

// link returns the URL documents use for path.
func (c *CDN) link(path string) string {
	if !c.official {
		return c.Server.URL + path
	}
	if rest, ok := strings.CutPrefix(path, "/maven/"); ok {
		return mirror.LibrariesHost + rest
	}
	if rest, ok := strings.CutPrefix(path, "/assets/"); ok {
		return mirror.AssetsHost + rest
	}
	if strings.HasPrefix(path, "/v1/objects/") {
		return mirror.DataHost + path[1:]
	}
	return mirror.MetaHost + path[1:]
}

// AddJSON serves v encoded as JSON at path.
func (c *CDN) AddJSON(t *testing.T, path string, v any) (url, digest string, data []byte) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	url, digest = c.Add(path, data)
	return url, digest, data
}

// SetStatus makes path answer with code instead of its content.
// A zero code restores normal serving.
func (c *CDN) SetStatus(path string, code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if code == 0 {
		delete(c.status, path)
		return
	}
	c.status[path] = code
}

// Hits returns the number of requests made for path.
func (c *CDN) Hits(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits[path]
}

// TotalHits returns the number of requests made for any path.
func (c *CDN) TotalHits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.hits {
		total += n
	}
	return total
}

// ResetHits zeroes the request counters.
func (c *CDN) ResetHits() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits = make(map[string]int)
}

// Files returns a copy of the served files keyed by path.
func (c *CDN) Files() map[string][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]byte, len(c.files))
	for k, v := range c.files {
		out[k] = v
	}
	return out
}

func (c *CDN) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.hits[r.URL.Path]++
	data, ok := c.files[r.URL.Path]
	code := c.status[r.URL.Path]
	c.mu.Unlock()

	if code != 0 {
		w.WriteHeader(code)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Write(data)
}

// Library describes a dependency library to publish.
type Library struct {
	Path string // maven-style relative path
	Data []byte // plain artifact; nil publishes no artifact
	OS   string // restricts the library to one OS name when set

	// Natives maps an OS name to the native classifier content for it.
	Natives map[string][]byte
}

// Release describes a release to publish on the CDN.
type Release struct {
	ID        string
	Type      string // default "release"
	Client    []byte
	Server    []byte
	Libraries []Library

	// Assets maps logical asset names to content. Nil publishes a release
	// without an asset index.
	Assets map[string][]byte

	// LogConfig is the client logging configuration; nil publishes none.
	LogConfig []byte
}

// Published describes what Publish put on the CDN.
type Published struct {
	ID           string
	CatalogueURL string
	MetadataURL  string
	MetadataSHA1 string
	AssetIndexID string

	// Files maps every key the release expands to onto its digest.
	Files map[string]string
}

// Keys returns the keys of Files in sorted order.
func (p *Published) Keys() []string {
	keys := make([]string, 0, len(p.Files))
	for k := range p.Files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Publish serves the release's files, its metadata document and a catalogue
// listing every release published so far. URLs in the documents point at
// the CDN itself.
func (c *CDN) Publish(t *testing.T, rel Release) *Published {
	t.Helper()

	if rel.Type == "" {
		rel.Type = "release"
	}
	pub := &Published{ID: rel.ID, Files: make(map[string]string)}

	downloads := map[string]any{}
	if rel.Client != nil {
		url, digest := c.Add(fmt.Sprintf("/v1/objects/%s/client.jar", SHA1(rel.Client)), rel.Client)
		downloads["client"] = map[string]any{"sha1": digest, "size": len(rel.Client), "url": url}
		pub.Files[fmt.Sprintf("versions/%s/%s.jar", rel.ID, rel.ID)] = digest
	}
	if rel.Server != nil {
		url, digest := c.Add(fmt.Sprintf("/v1/objects/%s/server.jar", SHA1(rel.Server)), rel.Server)
		downloads["server"] = map[string]any{"sha1": digest, "size": len(rel.Server), "url": url}
	}

	libraries := []any{}
	for _, lib := range rel.Libraries {
		entry := map[string]any{"name": strings.ReplaceAll(lib.Path, "/", ":")}
		dl := map[string]any{}
		if lib.Data != nil {
			url, digest := c.Add("/maven/"+lib.Path, lib.Data)
			dl["artifact"] = map[string]any{"path": lib.Path, "sha1": digest, "size": len(lib.Data), "url": url}
			if lib.OS == "" || lib.OS == hostOS() {
				pub.Files["libraries/"+lib.Path] = digest
			}
		}
		if len(lib.Natives) > 0 {
			classifiers := map[string]any{}
			for osName, data := range lib.Natives {
				path := strings.TrimSuffix(lib.Path, ".jar") + "-natives-" + osName + ".jar"
				url, digest := c.Add("/maven/"+path, data)
				classifiers["natives-"+osName] = map[string]any{"path": path, "sha1": digest, "size": len(data), "url": url}
				if osName == hostOS() && (lib.OS == "" || lib.OS == hostOS()) {
					pub.Files["libraries/"+path] = digest
				}
			}
			dl["classifiers"] = classifiers
		}
		entry["downloads"] = dl
		if lib.OS != "" {
			entry["rules"] = []any{map[string]any{"action": "allow", "os": map[string]any{"name": lib.OS}}}
		}
		libraries = append(libraries, entry)
	}

	doc := map[string]any{
		"id":        rel.ID,
		"type":      rel.Type,
		"mainClass": "net.minecraft.client.main.Main",
		"downloads": downloads,
		"libraries": libraries,
	}

	if rel.Assets != nil {
		pub.AssetIndexID = rel.ID + "-assets"
		objects := map[string]any{}
		for name, data := range rel.Assets {
			hash := SHA1(data)
			c.Add("/assets/"+hash[:2]+"/"+hash, data)
			objects[name] = map[string]any{"hash": hash, "size": len(data)}
			pub.Files["assets/objects/"+hash[:2]+"/"+hash] = hash
		}
		url, digest, data := c.AddJSON(t, "/v1/packages/indexes/"+pub.AssetIndexID+".json", map[string]any{"objects": objects})
		doc["assetIndex"] = map[string]any{"id": pub.AssetIndexID, "sha1": digest, "size": len(data), "url": url}
		doc["assets"] = pub.AssetIndexID
		pub.Files["assets/indexes/"+pub.AssetIndexID+".json"] = digest
	}

	if rel.LogConfig != nil {
		id := "client-" + rel.ID + ".xml"
		url, digest := c.Add("/v1/objects/"+SHA1(rel.LogConfig)+"/"+id, rel.LogConfig)
		doc["logging"] = map[string]any{
			"client": map[string]any{
				"argument": "-Dlog4j.configurationFile=${path}",
				"type":     "log4j2-xml",
				"file":     map[string]any{"id": id, "sha1": digest, "size": len(rel.LogConfig), "url": url},
			},
		}
		pub.Files["assets/log_configs/"+id] = digest
	}

	pub.MetadataURL, pub.MetadataSHA1, _ = c.AddJSON(t, "/v1/packages/meta/"+rel.ID+".json", doc)
	pub.Files[fmt.Sprintf("versions/%s/%s.json", rel.ID, rel.ID)] = pub.MetadataSHA1

	c.addToCatalogue(t, rel, pub)
	c.mu.Lock()
	pub.CatalogueURL = c.link(CataloguePath)
	c.mu.Unlock()
	return pub
}

// addToCatalogue appends a release to the served catalogue, newest first.
func (c *CDN) addToCatalogue(t *testing.T, rel Release, pub *Published) {
	t.Helper()

	c.mu.Lock()
	raw := c.files[CataloguePath]
	c.mu.Unlock()

	catalogue := struct {
		Latest   map[string]string `json:"latest"`
		Versions []map[string]any  `json:"versions"`
	}{Latest: map[string]string{}}
	if raw != nil {
		if err := json.Unmarshal(raw, &catalogue); err != nil {
			t.Fatalf("decode catalogue: %v", err)
		}
	}

	entry := map[string]any{
		"id":          rel.ID,
		"type":        rel.Type,
		"url":         pub.MetadataURL,
		"sha1":        pub.MetadataSHA1,
		"time":        "2025-03-25T12:14:58+00:00",
		"releaseTime": "2025-03-25T12:14:58+00:00",
	}
	catalogue.Versions = append([]map[string]any{entry}, catalogue.Versions...)
	if rel.Type == "snapshot" {
		catalogue.Latest["snapshot"] = rel.ID
	} else {
		catalogue.Latest["release"] = rel.ID
		if catalogue.Latest["snapshot"] == "" {
			catalogue.Latest["snapshot"] = rel.ID
		}
	}

	c.AddJSON(t, CataloguePath, catalogue)
}

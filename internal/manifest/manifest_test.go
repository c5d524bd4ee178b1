package manifest

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gocloud.dev/blob/memblob"

	"github.com/InfyniteHeap/gridcore/internal/downloader"
	gridhttp "github.com/InfyniteHeap/gridcore/internal/http"
	"github.com/InfyniteHeap/gridcore/internal/mirror"
	"github.com/InfyniteHeap/gridcore/internal/store"
	"github.com/InfyniteHeap/gridcore/internal/testutils"
)

const sha1A = "0123456789abcdef0123456789abcdef01234567"

func newTestResolver(t *testing.T, opts Options) (*Resolver, *store.Store) {
	t.Helper()
	st := store.New(memblob.OpenBucket(nil))
	t.Cleanup(func() { st.Close() })

	client := gridhttp.NewClient(gridhttp.DefaultOptions())
	engine := downloader.New(client, st, downloader.Options{Workers: 2, Attempts: 2})
	return NewResolver(client, engine, opts), st
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input   string
		want    Category
		wantErr bool
	}{
		{"", Client, false},
		{"client", Client, false},
		{"SERVER", Server, false},
		{"bedrock", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCategory(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCategory(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseCatalogue(t *testing.T) {
	data := `{
		"latest": {"release": "1.21.5", "snapshot": "25w14a"},
		"versions": [
			{"id": "25w14a", "type": "snapshot", "url": "https://piston-meta.mojang.com/v1/packages/x/25w14a.json", "sha1": "` + sha1A + `"},
			{"id": "1.21.5", "type": "release", "url": "https://piston-meta.mojang.com/v1/packages/y/1.21.5.json", "sha1": "` + sha1A + `", "complianceLevel": 1}
		]
	}`

	c, err := ParseCatalogue([]byte(data))
	if err != nil {
		t.Fatalf("ParseCatalogue: %v", err)
	}

	v, ok := c.Lookup("1.21.5")
	if !ok || v.Type != "release" || v.ComplianceLevel != 1 {
		t.Errorf("Lookup(1.21.5) = %+v, %v", v, ok)
	}
	if v, ok := c.Lookup(AliasLatestRelease); !ok || v.ID != "1.21.5" {
		t.Errorf("Lookup(latest-release) = %+v, %v", v, ok)
	}
	if v, ok := c.Lookup(AliasLatestSnapshot); !ok || v.ID != "25w14a" {
		t.Errorf("Lookup(latest-snapshot) = %+v, %v", v, ok)
	}
	if _, ok := c.Lookup("0.0.1"); ok {
		t.Error("Lookup of unknown id succeeded")
	}

	ids := func(vs []Version) []string {
		var out []string
		for _, v := range vs {
			out = append(out, v.ID)
		}
		return out
	}
	if diff := cmp.Diff([]string{"1.21.5"}, ids(c.Filter("release"))); diff != "" {
		t.Errorf("Filter(release) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"25w14a", "1.21.5"}, ids(c.Filter("all"))); diff != "" {
		t.Errorf("Filter(all) mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCatalogueMalformed(t *testing.T) {
	tests := map[string]string{
		"not json":       `{"versions": [`,
		"no versions":    `{"latest": {}}`,
		"missing sha1":   `{"versions": [{"id": "a", "type": "release", "url": "u"}]}`,
		"malformed sha1": `{"versions": [{"id": "a", "type": "release", "url": "u", "sha1": "xyz"}]}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCatalogue([]byte(data)); !errors.Is(err, ErrParse) {
				t.Errorf("expected ErrParse, got %v", err)
			}
		})
	}
}

func TestParseRelease(t *testing.T) {
	data := `{
		"id": "1.12.2",
		"type": "release",
		"downloads": {
			"client": {"sha1": "` + sha1A + `", "size": 10, "url": "https://piston-data.mojang.com/v1/objects/a/client.jar"}
		},
		"libraries": [
			{
				"name": "org.lwjgl:lwjgl-platform:2.9.4",
				"downloads": {
					"classifiers": {
						"natives-linux": {"path": "org/lwjgl/lwjgl-platform-natives-linux.jar", "sha1": "` + sha1A + `", "url": "https://libraries.minecraft.net/org/lwjgl/lwjgl-platform-natives-linux.jar"}
					}
				},
				"natives": {"linux": "natives-linux", "windows": "natives-windows-${arch}"},
				"rules": [{"action": "allow"}, {"action": "disallow", "os": {"name": "osx"}}]
			}
		],
		"assetIndex": {"id": "1.12", "sha1": "` + sha1A + `", "url": "https://piston-meta.mojang.com/v1/packages/b/1.12.json", "totalSize": 100},
		"logging": {"client": {"argument": "-Dx=${path}", "type": "log4j2-xml", "file": {"id": "client-1.12.xml", "sha1": "` + sha1A + `", "url": "https://piston-data.mojang.com/v1/objects/c/client-1.12.xml"}}}
	}`

	r, err := ParseRelease([]byte(data))
	if err != nil {
		t.Fatalf("ParseRelease: %v", err)
	}

	if _, ok := r.Download(Client); !ok {
		t.Error("expected client download")
	}
	if _, ok := r.Download(Server); ok {
		t.Error("unexpected server download")
	}

	want := Library{
		Name: "org.lwjgl:lwjgl-platform:2.9.4",
		Downloads: LibraryDownloads{
			Classifiers: map[string]Artifact{
				"natives-linux": {
					Path: "org/lwjgl/lwjgl-platform-natives-linux.jar",
					SHA1: sha1A,
					URL:  "https://libraries.minecraft.net/org/lwjgl/lwjgl-platform-natives-linux.jar",
				},
			},
		},
		Natives: map[string]string{"linux": "natives-linux", "windows": "natives-windows-${arch}"},
		Rules:   []Rule{{Action: "allow"}, {Action: "disallow", OS: &OSRule{Name: "osx"}}},
	}
	if diff := cmp.Diff(want, r.Libraries[0]); diff != "" {
		t.Errorf("library mismatch (-want +got):\n%s", diff)
	}
	if r.AssetIndex == nil || r.AssetIndex.ID != "1.12" || r.AssetIndex.TotalSize != 100 {
		t.Errorf("AssetIndex = %+v", r.AssetIndex)
	}
	if r.Logging == nil || r.Logging.Client == nil || r.Logging.Client.File.ID != "client-1.12.xml" {
		t.Errorf("Logging = %+v", r.Logging)
	}
}

func TestParseReleaseMalformed(t *testing.T) {
	tests := map[string]string{
		"no downloads":     `{"id": "x"}`,
		"download no url":  `{"id": "x", "downloads": {"client": {"sha1": "` + sha1A + `"}}}`,
		"artifact no path": `{"id": "x", "downloads": {}, "libraries": [{"downloads": {"artifact": {"sha1": "` + sha1A + `", "url": "u"}}}]}`,
		"bad rule action":  `{"id": "x", "downloads": {}, "libraries": [{"rules": [{"action": "maybe"}]}]}`,
		"index no sha1":    `{"id": "x", "downloads": {}, "assetIndex": {"id": "i", "url": "u"}}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseRelease([]byte(data)); !errors.Is(err, ErrParse) {
				t.Errorf("expected ErrParse, got %v", err)
			}
		})
	}
}

func TestParseAssetIndex(t *testing.T) {
	a, err := ParseAssetIndex([]byte(`{"objects": {"icons/icon_16x16.png": {"hash": "` + sha1A + `", "size": 3665}}}`))
	if err != nil {
		t.Fatalf("ParseAssetIndex: %v", err)
	}
	want := map[string]AssetObject{"icons/icon_16x16.png": {Hash: sha1A, Size: 3665}}
	if diff := cmp.Diff(want, a.Objects); diff != "" {
		t.Errorf("objects mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParseAssetIndex([]byte(`{"objects": {"a": {"hash": "zz"}}}`)); !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for malformed hash, got %v", err)
	}
}

func TestFetchCatalogueCaches(t *testing.T) {
	cdn := testutils.NewCDN(t)
	pub := cdn.Publish(t, testutils.Release{ID: "1.21.5", Client: []byte("jar")})

	r, st := newTestResolver(t, Options{CatalogueURL: pub.CatalogueURL})
	ctx := context.Background()

	c, err := r.FetchCatalogue(ctx, mirror.Official)
	if err != nil {
		t.Fatalf("FetchCatalogue: %v", err)
	}
	if _, ok := c.Lookup("1.21.5"); !ok {
		t.Error("expected 1.21.5 in catalogue")
	}
	if ok, _ := st.Exists(ctx, "versions/version_manifest_v2.json"); !ok {
		t.Error("expected catalogue to be cached")
	}

	// Always live: a second fetch goes to the network again.
	if _, err := r.FetchCatalogue(ctx, mirror.Official); err != nil {
		t.Fatalf("FetchCatalogue: %v", err)
	}
	if n := cdn.Hits(testutils.CataloguePath); n != 2 {
		t.Errorf("expected 2 catalogue requests, got %d", n)
	}
}

func TestFetchCatalogueThroughMirror(t *testing.T) {
	cdn := testutils.NewCDN(t)
	cdn.UseOfficialURLs()
	cdn.Publish(t, testutils.Release{ID: "1.21.5", Client: []byte("jar")})

	r, _ := newTestResolver(t, Options{Mirror: mirror.New(cdn.URL())})
	if _, err := r.FetchCatalogue(context.Background(), mirror.Mirror); err != nil {
		t.Fatalf("FetchCatalogue: %v", err)
	}
	if n := cdn.Hits("/mc/game/version_manifest_v2.json"); n != 1 {
		t.Errorf("expected catalogue fetched from mirror, got %d requests", n)
	}
}

func TestFetchCatalogueFallsBackToCache(t *testing.T) {
	cdn := testutils.NewCDN(t)
	pub := cdn.Publish(t, testutils.Release{ID: "1.21.4", Client: []byte("old")})

	r, _ := newTestResolver(t, Options{CatalogueURL: pub.CatalogueURL})
	ctx := context.Background()

	if _, err := r.FetchCatalogue(ctx, mirror.Official); err != nil {
		t.Fatalf("FetchCatalogue: %v", err)
	}

	cdn.Publish(t, testutils.Release{ID: "1.21.5", Client: []byte("new")})
	cdn.SetStatus(testutils.CataloguePath, http.StatusServiceUnavailable)

	c, err := r.FetchCatalogue(ctx, mirror.Official)
	if err != nil {
		t.Fatalf("expected stale cache, got %v", err)
	}
	if _, ok := c.Lookup("1.21.5"); ok {
		t.Error("stale cache must not contain the newer release")
	}
	if _, ok := c.Lookup("1.21.4"); !ok {
		t.Error("expected cached release")
	}
}

func TestFetchCatalogueWithoutCacheFails(t *testing.T) {
	cdn := testutils.NewCDN(t)
	cdn.SetStatus(testutils.CataloguePath, http.StatusNotFound)

	r, _ := newTestResolver(t, Options{CatalogueURL: cdn.URL() + testutils.CataloguePath})
	_, err := r.FetchCatalogue(context.Background(), mirror.Official)
	if !errors.Is(err, downloader.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if !errors.Is(err, gridhttp.ErrNotFound) {
		t.Errorf("expected http.ErrNotFound in chain, got %v", err)
	}
}

func TestFetchCatalogueMalformedKeepsCache(t *testing.T) {
	cdn := testutils.NewCDN(t)
	pub := cdn.Publish(t, testutils.Release{ID: "1.21.4", Client: []byte("old")})

	r, st := newTestResolver(t, Options{CatalogueURL: pub.CatalogueURL})
	ctx := context.Background()
	if _, err := r.FetchCatalogue(ctx, mirror.Official); err != nil {
		t.Fatalf("FetchCatalogue: %v", err)
	}

	cdn.Add(testutils.CataloguePath, []byte(`{"versions": "nope"}`))
	if _, err := r.FetchCatalogue(ctx, mirror.Official); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}

	data, err := st.ReadAll(ctx, store.CatalogueKey())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !strings.Contains(string(data), "1.21.4") {
		t.Error("malformed catalogue replaced the cache")
	}
}

func TestFetchReleaseMetadata(t *testing.T) {
	cdn := testutils.NewCDN(t)
	pub := cdn.Publish(t, testutils.Release{ID: "1.21.5", Client: []byte("jar")})

	r, _ := newTestResolver(t, Options{CatalogueURL: pub.CatalogueURL})
	ctx := context.Background()
	if _, err := r.FetchCatalogue(ctx, mirror.Official); err != nil {
		t.Fatalf("FetchCatalogue: %v", err)
	}

	if err := r.FetchReleaseMetadata(ctx, AliasLatestRelease, mirror.Official); err != nil {
		t.Fatalf("FetchReleaseMetadata: %v", err)
	}
	rel, err := r.ReadCachedReleaseMetadata(ctx, "1.21.5")
	if err != nil {
		t.Fatalf("ReadCachedReleaseMetadata: %v", err)
	}
	if rel.ID != "1.21.5" {
		t.Errorf("ID = %s, want 1.21.5", rel.ID)
	}

	cdn.ResetHits()
	if err := r.FetchReleaseMetadata(ctx, "1.21.5", mirror.Official); err != nil {
		t.Fatalf("FetchReleaseMetadata: %v", err)
	}
	if n := cdn.TotalHits(); n != 0 {
		t.Errorf("expected cached metadata to be reused, got %d requests", n)
	}
}

func TestFetchReleaseMetadataNotFound(t *testing.T) {
	cdn := testutils.NewCDN(t)
	pub := cdn.Publish(t, testutils.Release{ID: "1.21.5", Client: []byte("jar")})

	r, _ := newTestResolver(t, Options{CatalogueURL: pub.CatalogueURL})
	ctx := context.Background()

	// No cached catalogue yet.
	if err := r.FetchReleaseMetadata(ctx, "1.21.5", mirror.Official); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound without catalogue, got %v", err)
	}

	if _, err := r.FetchCatalogue(ctx, mirror.Official); err != nil {
		t.Fatalf("FetchCatalogue: %v", err)
	}
	if err := r.FetchReleaseMetadata(ctx, "9.9.9", mirror.Official); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReadCachedReleaseMetadata(t *testing.T) {
	r, st := newTestResolver(t, Options{})
	ctx := context.Background()

	if _, err := r.ReadCachedReleaseMetadata(ctx, "1.0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := st.Put(ctx, store.ReleaseMetadataKey("1.0"), strings.NewReader(`{"id": 1}`), ""); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := r.ReadCachedReleaseMetadata(ctx, "1.0"); !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestFetchAssetIndex(t *testing.T) {
	cdn := testutils.NewCDN(t)
	pub := cdn.Publish(t, testutils.Release{
		ID:     "1.21.5",
		Client: []byte("jar"),
		Assets: map[string][]byte{"minecraft/sounds/a.ogg": []byte("ogg")},
	})

	r, st := newTestResolver(t, Options{CatalogueURL: pub.CatalogueURL})
	ctx := context.Background()
	if _, err := r.FetchCatalogue(ctx, mirror.Official); err != nil {
		t.Fatalf("FetchCatalogue: %v", err)
	}
	if err := r.FetchReleaseMetadata(ctx, "1.21.5", mirror.Official); err != nil {
		t.Fatalf("FetchReleaseMetadata: %v", err)
	}
	rel, err := r.ReadCachedReleaseMetadata(ctx, "1.21.5")
	if err != nil {
		t.Fatalf("ReadCachedReleaseMetadata: %v", err)
	}

	idx, err := r.FetchAssetIndex(ctx, rel.AssetIndex, mirror.Official)
	if err != nil {
		t.Fatalf("FetchAssetIndex: %v", err)
	}
	obj, ok := idx.Objects["minecraft/sounds/a.ogg"]
	if !ok || obj.Hash != testutils.SHA1([]byte("ogg")) || obj.Size != 3 {
		t.Errorf("object = %+v, %v", obj, ok)
	}
	if ok, _ := st.Exists(ctx, "assets/indexes/"+pub.AssetIndexID+".json"); !ok {
		t.Error("expected asset index to be cached")
	}
}

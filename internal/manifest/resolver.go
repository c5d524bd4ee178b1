package manifest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/InfyniteHeap/gridcore/internal/downloader"
	gridhttp "github.com/InfyniteHeap/gridcore/internal/http"
	"github.com/InfyniteHeap/gridcore/internal/mirror"
	"github.com/InfyniteHeap/gridcore/internal/store"
)

// CatalogueURL is the official location of the release catalogue.
const CatalogueURL = mirror.MetaHost + "mc/game/version_manifest_v2.json"

// Options configures a Resolver.
type Options struct {
	// Mirror rewrites URLs for the Mirror source.
	// Default: mirror.Default()
	Mirror *mirror.Resolver

	// CatalogueURL overrides the official catalogue location.
	// Default: CatalogueURL
	CatalogueURL string

	// Logger receives fallback warnings. Nil discards them.
	Logger *slog.Logger
}

// Resolver fetches and caches the catalogue, release metadata and asset
// indexes under the game root.
type Resolver struct {
	client       *gridhttp.Client
	engine       *downloader.Engine
	store        *store.Store
	mirror       *mirror.Resolver
	catalogueURL string
	log          *slog.Logger
}

// NewResolver creates a resolver. Documents with a digest are fetched
// through engine and cached in the engine's store.
func NewResolver(client *gridhttp.Client, engine *downloader.Engine, opts Options) *Resolver {
	if opts.Mirror == nil {
		opts.Mirror = mirror.Default()
	}
	if opts.CatalogueURL == "" {
		opts.CatalogueURL = CatalogueURL
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Resolver{
		client:       client,
		engine:       engine,
		store:        engine.Store(),
		mirror:       opts.Mirror,
		catalogueURL: opts.CatalogueURL,
		log:          log,
	}
}

// Mirror returns the URL rewriter used for the Mirror source.
func (r *Resolver) Mirror() *mirror.Resolver {
	return r.mirror
}

// FetchCatalogue performs a live fetch of the catalogue and overwrites the
// cached copy on success.
//
// When the fetch fails and a cached copy exists, the failure is logged and
// the stale copy is returned instead. A fetched document that does not
// parse never replaces the cache.
func (r *Resolver) FetchCatalogue(ctx context.Context, source mirror.Source) (*Catalogue, error) {
	url := r.mirror.Rewrite(r.catalogueURL, source)

	data, err := r.get(ctx, url)
	if err != nil {
		cached, cerr := r.ReadCachedCatalogue(ctx)
		if cerr != nil {
			return nil, fmt.Errorf("fetch catalogue: %w", err)
		}
		r.log.Warn("catalogue fetch failed, using cached copy", "url", url, "error", err)
		return cached, nil
	}

	c, err := ParseCatalogue(data)
	if err != nil {
		return nil, err
	}

	if _, err := r.store.Put(ctx, store.CatalogueKey(), bytes.NewReader(data), ""); err != nil {
		return nil, fmt.Errorf("%w: cache catalogue: %w", downloader.ErrFilesystem, err)
	}
	r.log.Debug("catalogue cached", "releases", len(c.Versions), "latest", c.Latest.Release)
	return c, nil
}

// ReadCachedCatalogue parses the cached catalogue.
func (r *Resolver) ReadCachedCatalogue(ctx context.Context) (*Catalogue, error) {
	data, err := r.read(ctx, store.CatalogueKey())
	if err != nil {
		return nil, err
	}
	return ParseCatalogue(data)
}

// Resolve looks up a release id or alias in the cached catalogue.
func (r *Resolver) Resolve(ctx context.Context, releaseID string) (Version, error) {
	c, err := r.ReadCachedCatalogue(ctx)
	if err != nil {
		return Version{}, err
	}
	v, ok := c.Lookup(releaseID)
	if !ok {
		return Version{}, fmt.Errorf("%w: release %q", ErrNotFound, releaseID)
	}
	return v, nil
}

// FetchReleaseMetadata downloads and verifies the metadata document of a
// release found in the cached catalogue. A document already cached with
// the right digest is not downloaded again.
func (r *Resolver) FetchReleaseMetadata(ctx context.Context, releaseID string, source mirror.Source) error {
	v, err := r.Resolve(ctx, releaseID)
	if err != nil {
		return err
	}

	task := downloader.Task{
		Dir:  store.ReleaseDir(v.ID),
		Name: v.ID + ".json",
		URL:  r.mirror.Rewrite(v.URL, source),
		SHA1: v.SHA1,
	}
	if err := r.engine.Fetch(ctx, task); err != nil {
		return fmt.Errorf("fetch release metadata %s: %w", v.ID, err)
	}
	return nil
}

// ReadCachedReleaseMetadata parses the cached metadata document of a
// release. Aliases are not resolved here.
func (r *Resolver) ReadCachedReleaseMetadata(ctx context.Context, releaseID string) (*Release, error) {
	data, err := r.read(ctx, store.ReleaseMetadataKey(releaseID))
	if err != nil {
		return nil, err
	}
	return ParseRelease(data)
}

// FetchAssetIndex downloads, verifies and parses the asset index a release
// refers to.
func (r *Resolver) FetchAssetIndex(ctx context.Context, ref *AssetIndexRef, source mirror.Source) (*AssetIndex, error) {
	task := downloader.Task{
		Dir:  store.AssetIndexDir,
		Name: store.AssetIndexName(ref.ID),
		URL:  r.mirror.Rewrite(ref.URL, source),
		SHA1: ref.SHA1,
	}
	if err := r.engine.Fetch(ctx, task); err != nil {
		return nil, fmt.Errorf("fetch asset index %s: %w", ref.ID, err)
	}
	return r.ReadCachedAssetIndex(ctx, ref.ID)
}

// ReadCachedAssetIndex parses a cached asset index.
func (r *Resolver) ReadCachedAssetIndex(ctx context.Context, id string) (*AssetIndex, error) {
	data, err := r.read(ctx, store.Join(store.AssetIndexDir, store.AssetIndexName(id)))
	if err != nil {
		return nil, err
	}
	return ParseAssetIndex(data)
}

// read loads a cached document, mapping absence to ErrNotFound.
func (r *Resolver) read(ctx context.Context, key string) ([]byte, error) {
	data, err := r.store.ReadAll(ctx, key)
	if err != nil {
		if store.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s is not cached", ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: %w", downloader.ErrFilesystem, err)
	}
	return data, nil
}

// get performs one live GET and reads the whole body.
func (r *Resolver) get(ctx context.Context, url string) ([]byte, error) {
	resp, err := r.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", downloader.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", downloader.ErrNetwork, url, err)
	}
	return data, nil
}

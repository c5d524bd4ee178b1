package planner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/InfyniteHeap/gridcore/internal/checksum"
	"github.com/InfyniteHeap/gridcore/internal/downloader"
	"github.com/InfyniteHeap/gridcore/internal/manifest"
	"github.com/InfyniteHeap/gridcore/internal/mirror"
	"github.com/InfyniteHeap/gridcore/internal/store"
)

// Options configures a Planner.
type Options struct {
	// Platform selects applicable libraries.
	// Default: Current()
	Platform Platform

	// Logger receives planning diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Planner expands a release into the download tasks needed to install it.
type Planner struct {
	resolver *manifest.Resolver
	mirror   *mirror.Resolver
	platform Platform
	log      *slog.Logger
}

// New creates a planner that reads documents through resolver.
func New(resolver *manifest.Resolver, opts Options) *Planner {
	if opts.Platform == (Platform{}) {
		opts.Platform = Current()
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Planner{
		resolver: resolver,
		mirror:   resolver.Mirror(),
		platform: opts.Platform,
		log:      log,
	}
}

// Platform returns the platform libraries are planned for.
func (p *Planner) Platform() Platform {
	return p.platform
}

// Plan expands a release found in the cached catalogue into tasks.
//
// The release metadata document and the asset index are fetched before the
// tasks they describe are planned. Both documents are included in the plan
// so that a plan can later be verified in full.
func (p *Planner) Plan(ctx context.Context, releaseID string, category manifest.Category, source mirror.Source) ([]downloader.Task, error) {
	v, err := p.resolver.Resolve(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if err := p.resolver.FetchReleaseMetadata(ctx, v.ID, source); err != nil {
		return nil, err
	}
	rel, err := p.resolver.ReadCachedReleaseMetadata(ctx, v.ID)
	if err != nil {
		return nil, err
	}

	var index *manifest.AssetIndex
	if rel.AssetIndex != nil {
		index, err = p.resolver.FetchAssetIndex(ctx, rel.AssetIndex, source)
		if err != nil {
			return nil, err
		}
	}

	return p.plan(v, rel, index, category, source)
}

// PlanCached expands a release using only cached documents. It performs no
// network access, so the resulting plan can be verified offline.
func (p *Planner) PlanCached(ctx context.Context, releaseID string, category manifest.Category, source mirror.Source) ([]downloader.Task, error) {
	v, err := p.resolver.Resolve(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	rel, err := p.resolver.ReadCachedReleaseMetadata(ctx, v.ID)
	if err != nil {
		return nil, err
	}

	var index *manifest.AssetIndex
	if rel.AssetIndex != nil {
		index, err = p.resolver.ReadCachedAssetIndex(ctx, rel.AssetIndex.ID)
		if err != nil {
			return nil, err
		}
	}

	return p.plan(v, rel, index, category, source)
}

func (p *Planner) plan(v manifest.Version, rel *manifest.Release, index *manifest.AssetIndex, category manifest.Category, source mirror.Source) ([]downloader.Task, error) {
	c := newCollector()
	c.add(downloader.Task{
		Dir:  store.ReleaseDir(v.ID),
		Name: v.ID + ".json",
		URL:  p.mirror.Rewrite(v.URL, source),
		SHA1: v.SHA1,
	})
	if err := p.expand(c, v.ID, rel, index, category, source); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}

	p.log.Info("release planned",
		"release", v.ID,
		"category", string(category),
		"source", source.String(),
		"platform", p.platform.OS+"/"+p.platform.Arch,
		"tasks", len(c.tasks),
	)
	return c.tasks, nil
}

// Expand turns an already parsed release and its asset index into tasks
// without any I/O. index may be nil. id names the release directory.
func (p *Planner) Expand(id string, rel *manifest.Release, index *manifest.AssetIndex, category manifest.Category, source mirror.Source) ([]downloader.Task, error) {
	c := newCollector()
	if err := p.expand(c, id, rel, index, category, source); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.tasks, nil
}

func (p *Planner) expand(c *collector, id string, rel *manifest.Release, index *manifest.AssetIndex, category manifest.Category, source mirror.Source) error {
	// Main archive
	d, ok := rel.Download(category)
	if !ok {
		return fmt.Errorf("%w: release %s has no %s download", manifest.ErrParse, id, category)
	}
	c.add(downloader.Task{
		Dir:  store.ReleaseDir(id),
		Name: id + ".jar",
		URL:  p.mirror.Rewrite(d.URL, source),
		SHA1: d.SHA1,
	})

	// Libraries
	for _, lib := range rel.Libraries {
		if !p.platform.Allows(lib.Rules) {
			p.log.Debug("library not applicable", "library", lib.Name)
			continue
		}
		if a := lib.Downloads.Artifact; a != nil {
			c.add(p.libraryTask(*a, source))
		}
		if a, ok := p.nativeArtifact(lib); ok {
			c.add(p.libraryTask(a, source))
		}
	}

	// Asset index and assets
	if rel.AssetIndex != nil {
		c.add(downloader.Task{
			Dir:  store.AssetIndexDir,
			Name: store.AssetIndexName(rel.AssetIndex.ID),
			URL:  p.mirror.Rewrite(rel.AssetIndex.URL, source),
			SHA1: rel.AssetIndex.SHA1,
		})
	}
	if index != nil {
		names := make([]string, 0, len(index.Objects))
		for name := range index.Objects {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			obj := index.Objects[name]
			if !checksum.Valid(obj.Hash) {
				return fmt.Errorf("%w: asset %s has malformed hash %q", manifest.ErrParse, name, obj.Hash)
			}
			c.add(AssetTask(obj.Hash, p.mirror, source))
		}
	}

	// Logging config
	if rel.Logging != nil && rel.Logging.Client != nil {
		f := rel.Logging.Client.File
		c.add(downloader.Task{
			Dir:  store.LogConfigDir,
			Name: f.ID,
			URL:  p.mirror.Rewrite(f.URL, source),
			SHA1: f.SHA1,
		})
	}
	return nil
}

// AssetTask returns the task for a content-addressed asset object.
func AssetTask(hash string, r *mirror.Resolver, source mirror.Source) downloader.Task {
	return downloader.Task{
		Dir:  store.AssetObjectDir(hash),
		Name: hash,
		URL:  r.Rewrite(mirror.AssetsHost+hash[:2]+"/"+hash, source),
		SHA1: hash,
	}
}

func (p *Planner) libraryTask(a manifest.Artifact, source mirror.Source) downloader.Task {
	dir, name := store.SplitLibraryPath(a.Path)
	return downloader.Task{
		Dir:  dir,
		Name: name,
		URL:  p.mirror.Rewrite(a.URL, source),
		SHA1: a.SHA1,
	}
}

// nativeArtifact returns the native classifier variant for the platform.
// A legacy natives map names the classifier, with ${arch} substituted;
// otherwise the classifier is natives-<os>.
func (p *Planner) nativeArtifact(lib manifest.Library) (manifest.Artifact, bool) {
	if len(lib.Downloads.Classifiers) == 0 {
		return manifest.Artifact{}, false
	}

	key := "natives-" + p.platform.OS
	if lib.Natives != nil {
		name, ok := lib.Natives[p.platform.OS]
		if !ok {
			return manifest.Artifact{}, false
		}
		key = strings.ReplaceAll(name, "${arch}", p.platform.Bits())
	}

	a, ok := lib.Downloads.Classifiers[key]
	return a, ok
}

// collector accumulates tasks, collapsing identical duplicates. The first
// conflicting task is remembered in err.
type collector struct {
	tasks []downloader.Task
	seen  map[string]downloader.Task
	err   error
}

func newCollector() *collector {
	return &collector{seen: make(map[string]downloader.Task)}
}

func (c *collector) add(t downloader.Task) {
	if c.err != nil {
		return
	}

	key := t.Key()
	if key == ".." || strings.HasPrefix(key, "../") || strings.HasPrefix(key, "/") {
		c.err = fmt.Errorf("%w: %s escapes the game root", manifest.ErrParse, key)
		return
	}

	if prev, ok := c.seen[key]; ok {
		if !checksum.Equal(prev.SHA1, t.SHA1) {
			c.err = fmt.Errorf("%w: conflicting digests for %s: %s and %s", manifest.ErrParse, key, prev.SHA1, t.SHA1)
		}
		return
	}
	c.seen[key] = t
	c.tasks = append(c.tasks, t)
}

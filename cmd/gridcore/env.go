package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/InfyniteHeap/gridcore/internal/config"
	"github.com/InfyniteHeap/gridcore/internal/downloader"
	gridhttp "github.com/InfyniteHeap/gridcore/internal/http"
	"github.com/InfyniteHeap/gridcore/internal/logging"
	"github.com/InfyniteHeap/gridcore/internal/manifest"
	"github.com/InfyniteHeap/gridcore/internal/mirror"
	"github.com/InfyniteHeap/gridcore/internal/planner"
	"github.com/InfyniteHeap/gridcore/internal/progress"
	"github.com/InfyniteHeap/gridcore/internal/store"
)

// cliFlags collects flag values on top of the file and environment
// configuration. Unset flags keep their zero value and are ignored by Merge.
type cliFlags struct {
	configPath string
	hashBuffer string
	override   config.Config
}

// newFlags registers the flags shared by every command.
func newFlags(fs *flag.FlagSet) *cliFlags {
	f := &cliFlags{}
	fs.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&f.override.Root, "root", "", "Game root directory or bucket URL (default ./.minecraft)")
	fs.StringVar(&f.override.Source, "source", "", "Download source: official or mirror")
	fs.StringVar(&f.override.MirrorBase, "mirror-base", "", "Base URL of the mirror")
	fs.DurationVar(&f.override.Timeout, "timeout", 0, "Per-request timeout (default 10s)")
	fs.Float64Var(&f.override.RequestsPerSecond, "rate", 0, "Maximum requests per second (0 = unlimited)")
	fs.StringVar(&f.override.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.StringVar(&f.override.LogFormat, "log-format", "", "Log format: text or json")
	return f
}

// releaseFlags registers the flags selecting a release.
func (f *cliFlags) releaseFlags(fs *flag.FlagSet) {
	fs.StringVar(&f.override.Version, "version", "", "Release id, latest-release or latest-snapshot (required)")
	fs.StringVar(&f.override.Category, "category", "", "Build category: client or server")
	fs.IntVar(&f.override.Workers, "workers", 0, "Number of parallel workers (default: number of CPUs)")
	fs.StringVar(&f.hashBuffer, "hash-buffer", "", "Read buffer for hashing, e.g. 256KiB")
}

// transferFlags registers the flags tuning downloads.
func (f *cliFlags) transferFlags(fs *flag.FlagSet) {
	fs.BoolVar(&f.override.Progress, "progress", false, "Show progress output")
	fs.IntVar(&f.override.Retry.Attempts, "retry-attempts", 0, "Max attempts per file (default 5)")
	fs.DurationVar(&f.override.Retry.Delay, "retry-delay", 0, "Initial delay between attempts (default none)")
	fs.DurationVar(&f.override.Retry.MaxDelay, "retry-max-delay", 0, "Max delay between attempts (default 30s)")
}

// load layers defaults, the config file, the environment and flags.
func (f *cliFlags) load() (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(f.configPath)
		if err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	override := f.override
	if f.hashBuffer != "" {
		size, err := progress.ParseBytes(f.hashBuffer)
		if err != nil {
			return config.Config{}, fmt.Errorf("parse -hash-buffer: %w", err)
		}
		override.HashBuffer = size
	}

	cfg = cfg.Merge(override)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// session holds the components a command works with.
type session struct {
	cfg      config.Config
	log      *slog.Logger
	source   mirror.Source
	category manifest.Category
	store    *store.Store
	client   *gridhttp.Client
	resolver *manifest.Resolver
	planner  *planner.Planner
}

// openSession wires the store, HTTP client, resolver and planner for cfg.
func openSession(ctx context.Context, cfg config.Config) (*session, error) {
	log, _ := logging.WithRun(logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr))
	log.Debug("configuration loaded", "root", cfg.Root, "source", cfg.Source, "workers", cfg.Workers)

	source, err := cfg.DownloadSource()
	if err != nil {
		return nil, err
	}
	category, err := cfg.BuildCategory()
	if err != nil {
		return nil, err
	}

	st, err := store.OpenRoot(ctx, cfg.Root, store.WithBufferSize(int(cfg.HashBuffer)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", downloader.ErrFilesystem, err)
	}

	s := &session{
		cfg:      cfg,
		log:      log,
		source:   source,
		category: category,
		store:    st,
		client: gridhttp.NewClient(gridhttp.Options{
			MaxIdleConnsPerHost: cfg.Workers * 2,
			Timeout:             cfg.Timeout,
			RequestsPerSecond:   cfg.RequestsPerSecond,
			UserAgent:           "gridcore/" + version,
		}),
	}

	// Metadata documents go through their own engine so they are not
	// counted by the progress reporter of the file transfer.
	s.resolver = manifest.NewResolver(s.client, s.engine(nil), manifest.Options{
		Mirror: mirror.New(cfg.MirrorBase),
		Logger: log,
	})
	s.planner = planner.New(s.resolver, planner.Options{Logger: log})
	return s, nil
}

// engine returns a download engine for the session's store.
func (s *session) engine(reporter *progress.Reporter) *downloader.Engine {
	return downloader.New(s.client, s.store, downloader.Options{
		Workers:       s.cfg.Workers,
		Attempts:      s.cfg.Retry.Attempts,
		RetryDelay:    s.cfg.Retry.Delay,
		RetryMaxDelay: s.cfg.Retry.MaxDelay,
		Progress:      reporter,
		Logger:        s.log,
	})
}

func (s *session) Close() error {
	return s.store.Close()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n[gridcore] Received interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// exitCode maps an error onto the process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, context.Canceled) {
		return ExitGeneralError
	}

	var runErr *downloader.RunError
	if errors.As(err, &runErr) {
		kinds := make(map[error]bool)
		for _, f := range runErr.Failed {
			kinds[f.Kind] = true
		}
		// Filesystem outranks integrity, which outranks network.
		for _, kind := range []error{downloader.ErrFilesystem, downloader.ErrIntegrity, downloader.ErrNetwork} {
			if kinds[kind] {
				return kindExitCode(kind)
			}
		}
		return ExitGeneralError
	}
	var taskErr *downloader.TaskError
	if errors.As(err, &taskErr) {
		return kindExitCode(taskErr.Kind)
	}

	switch {
	case errors.Is(err, manifest.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, manifest.ErrParse):
		return ExitGeneralError
	default:
		return kindExitCode(err)
	}
}

// kindExitCode maps a download error kind onto its exit code.
func kindExitCode(err error) int {
	switch {
	case errors.Is(err, downloader.ErrFilesystem):
		return ExitStorageError
	case errors.Is(err, downloader.ErrIntegrity):
		return ExitIntegrityError
	case errors.Is(err, downloader.ErrNetwork):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}

// fail prints err and returns its exit code.
func fail(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitCode(err)
}

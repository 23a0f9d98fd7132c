package plugins

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/plughost/pkg/observability"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPluginDirName is the directory under the base path that is scanned
const DefaultPluginDirName = "plugins"

// Registry holds the modules produced by the last scan of a plugin directory
type Registry struct {
	mu            sync.RWMutex
	scanMu        sync.Mutex
	loader        *Loader
	log           *logrus.Logger
	metrics       *observability.Metrics
	pluginDirName string
	release       bool

	modules  []*Module
	failures []*LoadError
}

type options struct {
	log           *logrus.Logger
	host          *Host
	metrics       *observability.Metrics
	pluginDirName string
	release       bool
	tracer        trace.TracerProvider
}

// Option configures a Registry
type Option func(*options)

// WithLogger sets the logger used for scan diagnostics
func WithLogger(log *logrus.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithHost sets the shared host every loading context delegates to
func WithHost(h *Host) Option {
	return func(o *options) { o.host = h }
}

// WithMetrics enables Prometheus metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracerProvider sets the provider spans are created with instead of the
// global one
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// WithPluginDirName overrides the scanned directory name under the base path
func WithPluginDirName(name string) Option {
	return func(o *options) { o.pluginDirName = name }
}

// WithReleaseOnRescan makes Scan close the modules of the previous scan once
// the new set is in place. Only use it when no caller keeps modules across
// scans.
func WithReleaseOnRescan() Option {
	return func(o *options) { o.release = true }
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	o := &options{pluginDirName: DefaultPluginDirName}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logrus.New()
	}
	if o.host == nil {
		o.host = DefaultHost()
	}

	loader := NewLoader(o.host, o.log, o.metrics)
	if o.tracer != nil {
		loader.tracer = o.tracer.Tracer(tracerName)
	}

	return &Registry{
		loader:        loader,
		log:           o.log,
		metrics:       o.metrics,
		pluginDirName: o.pluginDirName,
		release:       o.release,
	}
}

// LoadPlugins creates a registry and scans baseDir once
func LoadPlugins(ctx context.Context, baseDir string, opts ...Option) (*Registry, error) {
	r := NewRegistry(opts...)
	if err := r.Scan(ctx, baseDir); err != nil {
		return r, err
	}
	return r, nil
}

// PluginDir returns the directory scanned for baseDir. An empty baseDir
// means the working directory.
func (r *Registry) PluginDir(baseDir string) (string, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrPathResolution, err)
		}
		baseDir = wd
	}
	return filepath.Join(baseDir, r.pluginDirName), nil
}

// Scan loads every non-directory entry of <baseDir>/plugins and replaces the
// registry's module set with the result. A missing plugin directory is
// created and yields zero modules. A bad package is logged and skipped; only
// directory-level failures are returned. Concurrent scans run one at a time.
func (r *Registry) Scan(ctx context.Context, baseDir string) error {
	r.scanMu.Lock()
	defer r.scanMu.Unlock()

	ctx, span := r.loader.tracer.Start(ctx, "plugins.Scan")
	defer span.End()

	start := time.Now()
	log := r.log.WithField("scan_id", uuid.NewString())

	dir, err := r.PluginDir(baseDir)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.String("plugin.dir", dir))

	var (
		modules  []*Module
		failures []*LoadError
	)

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.Mkdir(dir, 0755); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create plugin directory: %w", err)
		}
		log.Infof("Directory created: %s", dir)

	case err != nil:
		span.RecordError(err)
		return fmt.Errorf("failed to stat plugin directory: %w", err)

	case !info.IsDir():
		return fmt.Errorf("plugin path is not a directory: %s", dir)

	default:
		entries, err := os.ReadDir(dir)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to read plugin directory: %w", err)
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if isDirEntry(entry, path) {
				continue
			}
			if r.metrics != nil {
				r.metrics.PackagesScannedTotal.Inc()
			}

			mod, err := r.loader.loadPackage(ctx, path, log)
			if err != nil {
				log.Warnf("Error on checking %s for plugin: %v", entry.Name(), err)
				le := asLoadError(path, err)
				failures = append(failures, le)
				if r.metrics != nil {
					r.metrics.PackagesSkippedTotal.WithLabelValues(string(le.Stage)).Inc()
				}
				continue
			}
			if r.metrics != nil {
				r.metrics.PackagesLoadedTotal.Inc()
			}
			modules = append(modules, mod)
		}
	}

	r.mu.Lock()
	previous := r.modules
	r.modules = modules
	r.failures = failures
	r.mu.Unlock()

	if r.release {
		for _, m := range previous {
			if err := m.Close(); err != nil {
				log.Warnf("Failed to release %s: %v", m.Path(), err)
			}
		}
	}

	if r.metrics != nil {
		r.metrics.ScansTotal.Inc()
		r.metrics.ScanDuration.Observe(time.Since(start).Seconds())
		r.metrics.LoadedPlugins.Set(float64(len(modules)))
	}
	span.SetAttributes(
		attribute.Int("plugin.loaded", len(modules)),
		attribute.Int("plugin.skipped", len(failures)),
	)
	log.Debugf("Scan of %s finished: %d loaded, %d skipped in %v", dir, len(modules), len(failures), time.Since(start))

	return nil
}

// LoadedPlugins returns the modules of the last scan in directory order.
// Callers must not rely on that order across platforms.
func (r *Registry) LoadedPlugins() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Module, len(r.modules))
	copy(out, r.modules)
	return out
}

// Failures returns why each rejected package of the last scan was skipped
func (r *Registry) Failures() []*LoadError {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*LoadError, len(r.failures))
	copy(out, r.failures)
	return out
}

// Lookup returns the first loaded module with the given Implementation-Title
func (r *Registry) Lookup(title string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.modules {
		if m.Title() == title {
			return m, true
		}
	}
	return nil, false
}

// Count returns the number of loaded modules
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.modules)
}

// Close releases every module of the last scan and empties the registry.
// Modules handed out by earlier scans are not touched.
func (r *Registry) Close() error {
	r.mu.Lock()
	modules := r.modules
	r.modules = nil
	r.failures = nil
	r.mu.Unlock()

	var errs []error
	for _, m := range modules {
		if err := m.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Path(), err))
		}
	}
	return errors.Join(errs...)
}

// isDirEntry reports whether entry is a directory, following symlinks
func isDirEntry(entry fs.DirEntry, path string) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&fs.ModeSymlink != 0 {
		if info, err := os.Stat(path); err == nil {
			return info.IsDir()
		}
	}
	return false
}

func asLoadError(path string, err error) *LoadError {
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	return newLoadError(path, StageOpen, err)
}

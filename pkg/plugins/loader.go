package plugins

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/platinummonkey/plughost/pkg/observability"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/platinummonkey/plughost/pkg/plugins"

// Loader loads single packages: inspect, resolve in an isolated context,
// check conformance, preload, instantiate
type Loader struct {
	host    *Host
	log     logrus.FieldLogger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// NewLoader creates a new package loader
func NewLoader(host *Host, log logrus.FieldLogger, metrics *observability.Metrics) *Loader {
	if host == nil {
		host = DefaultHost()
	}
	if log == nil {
		log = logrus.New()
	}

	return &Loader{
		host:    host,
		log:     log,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

// LoadPackage loads the package at path. Every failure is returned as a
// *LoadError; the archive handle is released on every path.
func (l *Loader) LoadPackage(ctx context.Context, path string) (*Module, error) {
	return l.loadPackage(ctx, path, l.log)
}

func (l *Loader) loadPackage(ctx context.Context, path string, log logrus.FieldLogger) (mod *Module, err error) {
	_, span := l.tracer.Start(ctx, "plugins.LoadPackage",
		trace.WithAttributes(attribute.String("plugin.path", path)))
	start := time.Now()

	defer func() {
		if l.metrics != nil {
			l.metrics.LoadDuration.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("plugin.type", mod.TypeName()))
		}
		span.End()
	}()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, newLoadError(path, StagePath, fmt.Errorf("%w: %v", ErrPathResolution, err))
	}

	archive, err := OpenArchive(abs)
	if err != nil {
		return nil, newLoadError(abs, StageOpen, err)
	}

	lctx := NewContext(l.host, archive, log)
	retained := false
	defer func() {
		if cerr := lctx.Close(); cerr != nil {
			log.Warnf("Failed to close %s: %v", abs, cerr)
		}
		if !retained {
			lctx.closeState()
		}
	}()

	manifest, err := Inspect(archive, log)
	if err != nil {
		return nil, newLoadError(abs, StageInspect, err)
	}

	// Script execution during loading stops when ctx is done
	lctx.L.SetContext(ctx)
	defer lctx.L.RemoveContext()

	typ, err := lctx.Resolve(manifest.MainClass)
	if err != nil {
		return nil, newLoadError(abs, StageResolve, err)
	}

	if !Implements(typ, PluginInterface) {
		return nil, newLoadError(abs, StageConformance,
			fmt.Errorf("%w: %s declares %v", ErrNonConformant, typ.Name, typ.Interfaces))
	}
	lctx.trust()

	stats, err := Preload(lctx)
	if err != nil {
		return nil, newLoadError(abs, StagePreload, err)
	}
	l.recordPreload(stats)

	plugin, err := construct(typ)
	if err != nil {
		return nil, newLoadError(abs, StageInstantiate, err)
	}

	if inst, ok := plugin.(*luaInstance); ok && inst.ctx == lctx {
		retained = true
	}

	log.Infof("Loaded plugin: %s (%s) from %s", manifest.ImplementationTitle, typ.Name, filepath.Base(abs))

	return &Module{
		manifest: manifest,
		path:     abs,
		typ:      typ,
		plugin:   plugin,
		loadedAt: time.Now(),
	}, nil
}

// construct runs a type's constructor, turning panics and nil results into
// ErrInstantiation
func construct(t *Type) (p Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("%w: %s panicked: %v", ErrInstantiation, t.Name, r)
		}
	}()

	p, err = t.New()
	if err != nil {
		if errors.Is(err, ErrInstantiation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInstantiation, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s constructor returned nil", ErrInstantiation, t.Name)
	}
	return p, nil
}

func (l *Loader) recordPreload(stats PreloadStats) {
	if l.metrics == nil {
		return
	}
	l.metrics.PreloadedEntriesTotal.WithLabelValues(string(EntryCode)).Add(float64(stats.CodeUnits))
	l.metrics.PreloadedEntriesTotal.WithLabelValues(string(EntryStructured)).Add(float64(stats.Structured))
	l.metrics.PreloadedEntriesTotal.WithLabelValues(string(EntryProperties)).Add(float64(stats.Properties))
}

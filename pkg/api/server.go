package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/plughost/pkg/httputil"
	"github.com/platinummonkey/plughost/pkg/observability"
	"github.com/platinummonkey/plughost/pkg/plugins"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/text/language"
)

// Server exposes the plugin registry over HTTP
type Server struct {
	router   *mux.Router
	registry *plugins.Registry
	baseDir  string
	locale   language.Tag
	log      logrus.FieldLogger
}

// NewServer creates the admin server. promRegistry may be nil, in which case
// /metrics is not served.
func NewServer(registry *plugins.Registry, baseDir string, locale language.Tag, promRegistry *prometheus.Registry, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.New()
	}

	s := &Server{
		router:   mux.NewRouter(),
		registry: registry,
		baseDir:  baseDir,
		locale:   locale,
		log:      log,
	}
	s.setupRoutes(promRegistry)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(promRegistry *prometheus.Registry) {
	// Plugin routes; failures must be registered before {title}
	s.router.HandleFunc("/api/v1/plugins", s.listPlugins).Methods("GET")
	s.router.HandleFunc("/api/v1/plugins/failures", s.listFailures).Methods("GET")
	s.router.HandleFunc("/api/v1/plugins/rescan", s.rescan).Methods("POST")
	s.router.HandleFunc("/api/v1/plugins/{title}", s.getPlugin).Methods("GET")
	s.router.HandleFunc("/api/v1/plugins/{title}/activate", s.activatePlugin).Methods("POST")

	// Health routes
	s.router.HandleFunc("/health/live", s.liveness).Methods("GET")

	if promRegistry != nil {
		observability.RegisterMetricsEndpoint(s.router, promRegistry)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped with request IDs, panic recovery,
// request logging and OpenTelemetry instrumentation
func (s *Server) Handler() http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(s.log),
		httputil.LoggingMiddleware(s.log),
	)
	return otelhttp.NewHandler(chain(s.router), "plughost.api")
}

// PluginInfo describes a loaded module
type PluginInfo struct {
	Title    string    `json:"title"`
	Type     string    `json:"type"`
	Origin   string    `json:"origin"`
	Version  string    `json:"version,omitempty"`
	Vendor   string    `json:"vendor,omitempty"`
	Path     string    `json:"path"`
	LoadedAt time.Time `json:"loaded_at"`
}

// FailureInfo describes a package the last scan skipped
type FailureInfo struct {
	Path  string `json:"path"`
	Stage string `json:"stage"`
	Error string `json:"error"`
	Fatal bool   `json:"fatal"`
}

func pluginInfo(m *plugins.Module) PluginInfo {
	manifest := m.Manifest()
	return PluginInfo{
		Title:    m.Title(),
		Type:     m.TypeName(),
		Origin:   m.Type().Origin,
		Version:  manifest.ImplementationVersion,
		Vendor:   manifest.ImplementationVendor,
		Path:     m.Path(),
		LoadedAt: m.LoadedAt(),
	}
}

// listPlugins handles GET /api/v1/plugins
func (s *Server) listPlugins(w http.ResponseWriter, r *http.Request) {
	modules := s.registry.LoadedPlugins()
	out := make([]PluginInfo, 0, len(modules))
	for _, m := range modules {
		out = append(out, pluginInfo(m))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// listFailures handles GET /api/v1/plugins/failures
func (s *Server) listFailures(w http.ResponseWriter, r *http.Request) {
	failures := s.registry.Failures()
	out := make([]FailureInfo, 0, len(failures))
	for _, f := range failures {
		out = append(out, FailureInfo{
			Path:  f.Path,
			Stage: string(f.Stage),
			Error: f.Err.Error(),
			Fatal: f.Fatal(),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// getPlugin handles GET /api/v1/plugins/{title}
func (s *Server) getPlugin(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookup(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pluginInfo(m))
}

// activatePlugin handles POST /api/v1/plugins/{title}/activate?locale=de-CH
func (s *Server) activatePlugin(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookup(w, r)
	if !ok {
		return
	}

	locale := s.locale
	if raw := r.URL.Query().Get("locale"); raw != "" {
		tag, err := language.Parse(raw)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid locale: "+raw)
			return
		}
		locale = tag
	}

	if err := m.ActivateResources(locale); err != nil {
		s.log.Errorf("Activation of %s failed: %v", m.Title(), err)
		httputil.WriteUnprocessable(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "activated",
		"title":  m.Title(),
		"locale": locale.String(),
	})
}

// rescan handles POST /api/v1/plugins/rescan
func (s *Server) rescan(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Scan(r.Context(), s.baseDir); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int{
		"loaded":  s.registry.Count(),
		"skipped": len(s.registry.Failures()),
	})
}

// liveness handles GET /health/live
func (s *Server) liveness(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"plugins":   s.registry.Count(),
		"timestamp": time.Now(),
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*plugins.Module, bool) {
	title := mux.Vars(r)["title"]
	m, ok := s.registry.Lookup(title)
	if !ok {
		httputil.WriteNotFound(w, "plugin not found: "+title)
		return nil, false
	}
	return m, true
}

// ListenAndServe serves s on addr until ctx is done, then shuts down
// gracefully within shutdownTimeout
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Admin server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.log.Info("Shutting down admin server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

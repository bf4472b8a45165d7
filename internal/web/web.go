package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"icalfilter/internal/config"
	"icalfilter/internal/ics"
	appLog "icalfilter/internal/log"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server serves the filter form, the build API and the feed preview.
type Server struct {
	cfg       atomic.Pointer[config.Config]
	mux       *http.ServeMux
	tmpl      *template.Template
	previewer *ics.Previewer

	// In-memory cache for /api/preview responses, keyed by feed URL.
	previewMu    sync.RWMutex
	previewCache map[string]previewCacheEntry
}

type previewCacheEntry struct {
	preview   ics.Preview
	updatedAt time.Time
}

const (
	previewCacheTTL     = 30 * time.Second
	previewCacheEntries = 64
)

// NewServer constructs a new Server. previewer may be nil, in which case
// /api/preview answers 503.
func NewServer(cfg *config.Config, previewer *ics.Previewer) *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		tmpl:         template.Must(template.ParseFS(templateFS, "templates/*.html")),
		previewer:    previewer,
		previewCache: make(map[string]previewCacheEntry),
	}
	s.SetConfig(cfg)
	s.registerRoutes()
	return s
}

// SetConfig swaps the active configuration. Host and Basic Auth take effect
// on the next request; preview settings are fixed at startup.
func (s *Server) SetConfig(cfg *config.Config) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if cfg.Host == "" {
		appLog.Warn("host not configured; built URLs follow the request Host and X-Forwarded-Proto headers, set host in production")
	}
	s.cfg.Store(cfg)
}

// Config returns the active configuration.
func (s *Server) Config() *config.Config {
	return s.cfg.Load()
}

// Handler returns the full middleware chain around the routes.
func (s *Server) Handler() http.Handler {
	return requestLogger(s.basicAuthMiddleware(s.mux))
}

// ListenAndServe serves on the configured listen address until ctx is
// canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	cfg := s.Config()
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen, "basic_auth", cfg.BasicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /api/custom-url", s.handleCustomURL)
	s.mux.HandleFunc("GET /api/preview", s.handlePreview)
}

// basicAuthMiddleware guards everything except /health when Basic Auth is
// configured. Credentials are read per request so reloads apply at once.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := s.Config()
		if r.URL.Path == "/health" || !cfg.BasicAuthEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, cfg.BasicAuth.Username) || !secureCompare(p, cfg.BasicAuth.Password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="iCal Filter", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// hostFor is the data-host value for a request: the configured host, or
// the origin the request arrived on. The latter is client controlled.
func (s *Server) hostFor(r *http.Request) string {
	if h := s.Config().Host; h != "" {
		return h
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func resolveLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", name)
		return time.UTC
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

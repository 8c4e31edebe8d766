// Package server exposes the mod list, refreshes, updates and overrides
// over HTTP/JSON.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/blackwell-systems/modsync/internal/mods"
	"github.com/blackwell-systems/modsync/internal/refresh"
	"github.com/blackwell-systems/modsync/internal/store"
	"github.com/blackwell-systems/modsync/internal/updater"
)

// Refresher is the refresh service as seen by the API.
type Refresher interface {
	Mods() []mods.Mod
	LastUpdated() *time.Time
	IsRefreshing() bool
	Progress() *refresh.Progress
	Begin(force bool) (func(ctx context.Context) ([]mods.Mod, error), bool)
}

// Updater installs updates.
type Updater interface {
	Update(ctx context.Context, fileName string, opts updater.Options) (*updater.Result, error)
	UpdateAll(ctx context.Context) (*updater.BulkResult, error)
}

// Overrides manages URL overrides.
type Overrides interface {
	GetOverride(name string) (*store.Override, error)
	SetOverride(name, url string) (*store.Override, error)
	DeleteOverride(name string) (bool, error)
	ListOverrides() ([]*store.Override, error)
}

// Scheduler reports the next scheduled refresh.
type Scheduler interface {
	NextRun() *time.Time
}

// Deps are the services behind the API. Metrics may be nil.
type Deps struct {
	Refresher Refresher
	Updater   Updater
	Overrides Overrides
	Scheduler Scheduler
	Metrics   http.Handler
}

// Server is the HTTP API.
type Server struct {
	deps   Deps
	logger *slog.Logger
	router chi.Router

	// ctx outlives requests; background refreshes run with it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the router.
func New(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{deps: deps, logger: logger, ctx: ctx, cancel: cancel}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Route("/mods", func(r chi.Router) {
			r.Get("/", s.handleListMods)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/update-all", s.handleUpdateAll)
			r.Post("/{fileName}/update", s.handleUpdate)
		})

		r.Route("/overrides", func(r chi.Router) {
			r.Get("/", s.handleListOverrides)
			r.Get("/{name}", s.handleGetOverride)
			r.Put("/{name}", s.handleSetOverride)
			r.Delete("/{name}", s.handleDeleteOverride)
		})
	})

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully and cancels background refreshes.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// Close cancels background work started by requests and waits for it.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

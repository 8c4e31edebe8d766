// Package refresh resolves installed mods against the catalog.
//
// A refresh runs extraction, overrides, the cache and then two catalog
// strategies (author search, then paginated batches). Only one refresh
// runs at a time; a request arriving while one is active is rejected
// with ErrInProgress and the previous snapshot.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/blackwell-systems/modsync/internal/catalog"
	"github.com/blackwell-systems/modsync/internal/matcher"
	"github.com/blackwell-systems/modsync/internal/mods"
	"github.com/blackwell-systems/modsync/internal/store"
)

// ErrInProgress is returned when another refresh holds the lock.
var ErrInProgress = errors.New("refresh already in progress")

// Defaults for Config.
const (
	DefaultRateLimit = 350 * time.Millisecond
	DefaultPageSize  = catalog.DefaultPageSize
	DefaultMaxOffset = 10000
)

// Catalog is the part of the catalog client a refresh needs.
type Catalog interface {
	Search(ctx context.Context, term string) []catalog.Entry
	Batch(ctx context.Context, offset, pageSize int) []catalog.Entry
}

// Extractor lists the installed mods of a directory.
type Extractor interface {
	ScanDir(dir string) ([]mods.Mod, error)
}

// Store persists cache entries, overrides and the last refresh time.
type Store interface {
	GetCachedMod(name string) (*store.CacheEntry, error)
	IsCacheValid(entry *store.CacheEntry) bool
	CacheMod(name, url, latestVersion string, notFound bool) error
	GetOverride(name string) (*store.Override, error)
	SetLastUpdated(t time.Time) error
	LastUpdated() (*time.Time, error)
}

// Recorder receives refresh outcomes. internal/metrics implements it.
type Recorder interface {
	RefreshDone(outcome string, d time.Duration)
	Resolved(method mods.Method)
}

// Refresh outcomes passed to Recorder.
const (
	OutcomeSuccess   = "success"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Config tunes a Service.
type Config struct {
	ModsPath  string
	RateLimit time.Duration
	PageSize  int
	MaxOffset int
}

// Progress describes a running refresh.
type Progress struct {
	Processed  int    `json:"processed"`
	Total      int    `json:"total"`
	CurrentMod string `json:"currentMod,omitempty"`
}

// Service coordinates refreshes and holds the latest snapshot.
type Service struct {
	cfg       Config
	extractor Extractor
	catalog   Catalog
	store     Store
	matcher   *matcher.Matcher
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time

	lock    *semaphore.Weighted
	running atomic.Bool

	mu          sync.RWMutex
	snapshot    []mods.Mod
	lastUpdated *time.Time

	progressMu sync.Mutex
	progress   *Progress
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder reports refresh outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. A negative rate limit disables the delay
// between catalog queries.
func NewService(cfg Config, ex Extractor, cat Catalog, st Store, m *matcher.Matcher, opts ...Option) *Service {
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxOffset <= 0 {
		cfg.MaxOffset = DefaultMaxOffset
	}

	s := &Service{
		cfg:       cfg,
		extractor: ex,
		catalog:   cat,
		store:     st,
		matcher:   m,
		now:       time.Now,
		lock:      semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// Mods returns a copy of the last completed snapshot.
func (s *Service) Mods() []mods.Mod {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return []mods.Mod{}
	}
	return mods.Clone(s.snapshot)
}

// Find returns the snapshot entry for fileName, compared case-insensitively.
func (s *Service) Find(fileName string) (mods.Mod, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.snapshot {
		if strings.EqualFold(m.FileName, fileName) {
			return mods.Clone([]mods.Mod{m})[0], true
		}
	}
	return mods.Mod{}, false
}

// LastUpdated returns the completion time of the last refresh, falling
// back to the persisted value after a restart.
func (s *Service) LastUpdated() *time.Time {
	s.mu.RLock()
	t := s.lastUpdated
	s.mu.RUnlock()
	if t != nil {
		return t
	}

	persisted, err := s.store.LastUpdated()
	if err != nil {
		s.logger.Warn("failed to read last refresh time", "error", err)
		return nil
	}
	return persisted
}

// IsRefreshing reports whether a refresh is running. It never touches
// the lock, so polling it cannot make a refresh request fail.
func (s *Service) IsRefreshing() bool {
	return s.running.Load()
}

// Progress returns a copy of the running refresh's progress, or nil.
func (s *Service) Progress() *Progress {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	if s.progress == nil {
		return nil
	}
	p := *s.progress
	return &p
}

// Refresh runs the pipeline. force skips the cache. On success the new
// snapshot is returned. When a refresh is already running the previous
// snapshot is returned together with ErrInProgress. On cancellation or
// failure the previous snapshot is kept.
func (s *Service) Refresh(ctx context.Context, force bool) ([]mods.Mod, error) {
	run, ok := s.Begin(force)
	if !ok {
		return s.Mods(), ErrInProgress
	}
	return run(ctx)
}

// Begin takes the refresh lock without blocking and reports whether it
// succeeded. On success the returned function must be called exactly
// once; it runs the refresh and releases the lock. Callers that start the
// refresh in the background use it to know the outcome up front.
func (s *Service) Begin(force bool) (func(ctx context.Context) ([]mods.Mod, error), bool) {
	if !s.lock.TryAcquire(1) {
		s.logger.Info("refresh already in progress, skipping")
		s.record(OutcomeSkipped, 0)
		return nil, false
	}
	s.running.Store(true)

	return func(ctx context.Context) ([]mods.Mod, error) {
		defer s.release()
		return s.refresh(ctx, force)
	}, true
}

func (s *Service) release() {
	s.setProgress(nil)
	s.running.Store(false)
	s.lock.Release(1)
}

func (s *Service) refresh(ctx context.Context, force bool) ([]mods.Mod, error) {
	start := s.now()
	s.logger.Info("starting mod refresh", "force", force)

	result, err := s.run(ctx, force)
	if err != nil {
		outcome := OutcomeFailed
		if ctx.Err() != nil {
			outcome = OutcomeCancelled
			err = ctx.Err()
			s.logger.Warn("refresh cancelled")
		} else {
			s.logger.Error("refresh failed", "error", err)
		}
		s.record(outcome, s.now().Sub(start))
		return s.Mods(), err
	}

	finished := s.now().UTC()
	s.mu.Lock()
	s.snapshot = result
	s.lastUpdated = &finished
	s.mu.Unlock()

	if err := s.store.SetLastUpdated(finished); err != nil {
		s.logger.Warn("failed to persist last refresh time", "error", err)
	}

	found := 0
	for _, m := range result {
		if m.Resolved() {
			found++
		}
	}
	s.logger.Info("refresh completed", "total", len(result), "resolved", found)
	s.record(OutcomeSuccess, s.now().Sub(start))

	return mods.Clone(result), nil
}

func (s *Service) run(ctx context.Context, force bool) ([]mods.Mod, error) {
	all, err := s.resolveLocal(force)
	if err != nil {
		return nil, err
	}

	for i := range all {
		if all[i].Resolved() {
			s.recordResolved(all[i].FoundVia)
		}
	}

	if pending := unresolved(all); len(pending) > 0 {
		if err := s.search(ctx, all, pending); err != nil {
			return nil, err
		}
	}

	return all, nil
}

// Local extracts the installed mods and resolves them from overrides and
// the cache only. The catalog is not queried and the snapshot is left
// untouched.
func (s *Service) Local() ([]mods.Mod, error) {
	return s.resolveLocal(false)
}

// resolveLocal runs the offline stages: extraction, overrides and, unless
// force is set, valid cache entries.
func (s *Service) resolveLocal(force bool) ([]mods.Mod, error) {
	all, err := s.extractor.ScanDir(s.cfg.ModsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to extract mods: %w", err)
	}
	s.logger.Info("extracted mods from files", "count", len(all))

	for i := range all {
		o, err := s.store.GetOverride(all[i].Name)
		if err != nil {
			return nil, fmt.Errorf("failed to read override: %w", err)
		}
		if o != nil {
			all[i].Resolve(o.URL, "", mods.MethodOverride)
			s.logger.Info("applied url override", "mod", all[i].Name)
		}
	}

	if force {
		return all, nil
	}

	hits := 0
	for _, i := range unresolved(all) {
		entry, err := s.store.GetCachedMod(all[i].Name)
		if err != nil {
			return nil, fmt.Errorf("failed to read cache: %w", err)
		}
		if entry != nil && entry.URL != "" && s.store.IsCacheValid(entry) {
			all[i].Resolve(entry.URL, entry.LatestVersion, mods.MethodCache)
			hits++
		}
	}
	s.logger.Info("cache applied", "hits", hits, "remaining", len(unresolved(all)))

	return all, nil
}

// unresolved returns the indexes of mods without a catalog URL.
func unresolved(all []mods.Mod) []int {
	var idx []int
	for i := range all {
		if !all[i].Resolved() {
			idx = append(idx, i)
		}
	}
	return idx
}

func (s *Service) record(outcome string, d time.Duration) {
	if s.recorder != nil {
		s.recorder.RefreshDone(outcome, d)
	}
}

func (s *Service) recordResolved(method mods.Method) {
	if s.recorder != nil {
		s.recorder.Resolved(method)
	}
}

func (s *Service) setProgress(p *Progress) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	s.progress = p
}

func (s *Service) updateProgress(fn func(p *Progress)) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	if s.progress != nil {
		fn(s.progress)
	}
}

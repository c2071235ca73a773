package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/calibration"
	"github.com/frahmantamala/scale-custody/internal/core/access"
	"github.com/frahmantamala/scale-custody/internal/core/cache"
	"github.com/frahmantamala/scale-custody/internal/core/events"
	"github.com/frahmantamala/scale-custody/internal/obs"
	"github.com/frahmantamala/scale-custody/pkg/logger"
)

// Cached stats live under statsKeyPrefix plus the current generation.
// Invalidation moves the generation, so an entry computed before a change
// can never be read after it.
const (
	StatsGenerationKey = "dashboard:stats-generation"
	statsKeyPrefix     = "dashboard:stats:"
)

type RepositoryAPI interface {
	Stats(ctx context.Context, now time.Time) (Stats, error)
	CalibrationDue(ctx context.Context, horizon time.Time) ([]DueScale, error)
	// NextStatsChange is the first instant after now at which a scale enters
	// the warning window or falls due, or nil when none will.
	NextStatsChange(ctx context.Context, now time.Time) (*time.Time, error)
}

type Service struct {
	repo     RepositoryAPI
	cache    cache.KVStore
	cacheTTL time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Service)

// WithCache enables read-through caching of Stats for ttl.
func WithCache(store cache.KVStore, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = store
		s.cacheTTL = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo RepositoryAPI, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	if _, err := access.Check(ctx, access.Dashboard); err != nil {
		return nil, err
	}
	log := logger.FromOr(ctx, s.logger)
	now := s.now()

	key, cacheable := s.statsKey(ctx, log)
	if cacheable {
		if cached, ok := s.cachedStats(ctx, key, log); ok {
			return cached, nil
		}
	}

	stats, err := s.repo.Stats(ctx, now)
	if err != nil {
		return nil, internal.NewInternalError("failed to compute dashboard stats", err)
	}

	if cacheable {
		s.storeStats(ctx, key, stats, now, log)
	}
	return &stats, nil
}

// statsKey resolves the cache key of the current generation, starting a
// generation when none exists. It reports false when the cache is off or
// unreachable.
func (s *Service) statsKey(ctx context.Context, log *slog.Logger) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	gen, err := s.cache.Get(ctx, StatsGenerationKey)
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrCacheMiss):
		gen = uuid.NewString()
		if err := s.cache.Set(ctx, StatsGenerationKey, gen, 0); err != nil {
			log.Warn("dashboard cache write failed", "error", err)
			return "", false
		}
	default:
		log.Warn("dashboard cache read failed", "error", err)
		return "", false
	}
	return statsKeyPrefix + gen, true
}

func (s *Service) cachedStats(ctx context.Context, key string, log *slog.Logger) (*Stats, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn("dashboard cache read failed", "error", err)
		}
		return nil, false
	}
	var stats Stats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		log.Warn("dashboard cache entry unreadable", "error", err)
		return nil, false
	}
	return &stats, true
}

// storeStats caches stats computed at now until the configured TTL or the
// next calibration boundary, whichever comes first.
func (s *Service) storeStats(ctx context.Context, key string, stats Stats, now time.Time, log *slog.Logger) {
	ttl := s.cacheTTL
	change, err := s.repo.NextStatsChange(ctx, now)
	if err != nil {
		log.Warn("dashboard cache skipped", "error", err)
		return
	}
	if change != nil {
		if until := change.Sub(now); until < ttl {
			ttl = until
		}
	}
	if ttl <= 0 {
		return
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), ttl); err != nil {
		log.Warn("dashboard cache write failed", "error", err)
	}
}

// Invalidate retires every cached stats entry. It is an events.Handler.
func (s *Service) Invalidate(ctx context.Context, _ events.Event) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Set(ctx, StatsGenerationKey, uuid.NewString(), 0)
}

// Subscribe invalidates the cached stats whenever inventory changes. The
// eviction runs inline so a read after a committed change sees it.
func (s *Service) Subscribe(bus *events.EventBus) {
	for _, eventType := range events.InventoryEventTypes {
		bus.SubscribeInline(eventType, s.Invalidate)
	}
}

// Alerts lists scales that are expired or inside the warning window.
func (s *Service) Alerts(ctx context.Context) ([]*Alert, error) {
	if _, err := access.Check(ctx, access.Dashboard); err != nil {
		return nil, err
	}
	return s.alerts(ctx, s.now())
}

func (s *Service) alerts(ctx context.Context, now time.Time) ([]*Alert, error) {
	due, err := s.repo.CalibrationDue(ctx, now.Add(calibration.WarningWindow))
	if err != nil {
		return nil, internal.NewInternalError("failed to load calibration alerts", err)
	}
	out := make([]*Alert, 0, len(due))
	for _, d := range due {
		out = append(out, NewAlert(d, now))
	}
	return out, nil
}

// Sweep recomputes the calibration gauges and returns the current alerts.
// It runs outside any request, so no actor is checked.
func (s *Service) Sweep(ctx context.Context) ([]*Alert, error) {
	now := s.now()
	stats, err := s.repo.Stats(ctx, now)
	if err != nil {
		return nil, internal.NewInternalError("failed to compute dashboard stats", err)
	}
	obs.CalibrationExpired.Set(float64(stats.Expired))
	obs.CalibrationExpiring.Set(float64(stats.Expiring))

	alerts, err := s.alerts(ctx, now)
	if err != nil {
		return nil, err
	}
	log := logger.FromOr(ctx, s.logger)
	for _, a := range alerts {
		log.Warn("calibration alert",
			"scale_id", a.ScaleID,
			"calibration", a.Calibration.Status,
			"next_due", a.NextCalibrationDate.Format(time.DateOnly))
	}
	log.Info("calibration sweep complete", "expired", stats.Expired, "expiring", stats.Expiring)
	return alerts, nil
}

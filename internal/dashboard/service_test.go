package dashboard_test

import (
	"context"
	"errors"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/calibration"
	"github.com/frahmantamala/scale-custody/internal/core/cache"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
	"github.com/frahmantamala/scale-custody/internal/core/events"
	"github.com/frahmantamala/scale-custody/internal/dashboard"
	"github.com/frahmantamala/scale-custody/internal/obs"
	"github.com/frahmantamala/scale-custody/pkg/logger"
)

type fakeRepo struct {
	stats      dashboard.Stats
	due        []dashboard.DueScale
	err        error
	statsCalls int
	horizon    time.Time
	change     *time.Time
	changeErr  error
	duringRead func()
}

func (f *fakeRepo) Stats(_ context.Context, _ time.Time) (dashboard.Stats, error) {
	f.statsCalls++
	stats := f.stats
	if f.duringRead != nil {
		f.duringRead()
	}
	return stats, f.err
}

func (f *fakeRepo) NextStatsChange(_ context.Context, _ time.Time) (*time.Time, error) {
	return f.change, f.changeErr
}

func (f *fakeRepo) CalibrationDue(_ context.Context, horizon time.Time) ([]dashboard.DueScale, error) {
	f.horizon = horizon
	return f.due, f.err
}

var _ = Describe("Dashboard Service", func() {
	var (
		repo *fakeRepo
		now  time.Time
		ctx  context.Context
	)

	BeforeEach(func() {
		now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
		repo = &fakeRepo{stats: dashboard.Stats{TotalUnits: 10, InField: 3, Expiring: 2, Expired: 1}}
		ctx = internal.ContextWithActor(context.Background(), internal.Actor{UserID: 1, Role: custody.RoleViewer})
	})

	clock := dashboard.WithClock(func() time.Time { return now })

	It("returns stats to any authenticated role", func() {
		service := dashboard.NewService(repo, logger.Discard(), clock)
		stats, err := service.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(*stats).To(Equal(repo.stats))

		_, err = service.Stats(context.Background())
		Expect(internal.HasCode(err, internal.ErrCodeAuthRequired)).To(BeTrue())
	})

	It("hides repository failures behind an internal error", func() {
		repo.err = errors.New("connection reset")
		service := dashboard.NewService(repo, logger.Discard(), clock)
		_, err := service.Stats(ctx)
		Expect(internal.HasCode(err, internal.ErrCodeInternal)).To(BeTrue())
	})

	Describe("with a cache", func() {
		var (
			mr      *miniredis.Miniredis
			service *dashboard.Service
			bus     *events.EventBus
		)

		BeforeEach(func() {
			var err error
			mr, err = miniredis.Run()
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(mr.Close)

			client := cache.NewRedisClient(cache.Options{Addr: mr.Addr()})
			DeferCleanup(client.Close)
			service = dashboard.NewService(repo, logger.Discard(), clock,
				dashboard.WithCache(cache.NewRedisKVStore(client), time.Minute))

			bus = events.NewEventBus(logger.Discard())
			service.Subscribe(bus)
		})

		It("serves repeated reads from the cache", func() {
			_, err := service.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(mr.Exists(dashboard.StatsGenerationKey)).To(BeTrue())

			repo.stats.InField = 9
			stats, err := service.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.InField).To(Equal(int64(3)))
			Expect(repo.statsCalls).To(Equal(1))
		})

		It("recomputes as soon as an inventory event is published", func() {
			for i := int64(0); i < 100; i++ {
				_, err := service.Stats(ctx)
				Expect(err).NotTo(HaveOccurred())

				repo.stats.InField = 100 + i
				Expect(bus.Publish(ctx, events.NewScaleAssignedEvent(1, 2, 3, 4))).To(Succeed())

				stats, err := service.Stats(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(stats.InField).To(Equal(100 + i))
			}
		})

		It("never caches counts computed across an invalidation", func() {
			repo.duringRead = func() {
				repo.duringRead = nil
				repo.stats.InField = 7
				Expect(service.Invalidate(ctx, nil)).To(Succeed())
			}
			stats, err := service.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.InField).To(Equal(int64(3)))

			stats, err = service.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.InField).To(Equal(int64(7)))
			Expect(repo.statsCalls).To(Equal(2))
		})

		It("expires the entry at the next calibration boundary", func() {
			boundary := now.Add(10 * time.Second)
			repo.change = &boundary

			_, err := service.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.statsCalls).To(Equal(1))

			mr.FastForward(11 * time.Second)
			repo.stats.Expired = 2
			stats, err := service.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Expired).To(Equal(int64(2)))
			Expect(repo.statsCalls).To(Equal(2))
		})

		It("does not cache when the boundary cannot be found", func() {
			repo.changeErr = errors.New("connection reset")

			_, err := service.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.statsCalls).To(Equal(2))
		})

		It("falls back to the store when the cache is down", func() {
			mr.Close()
			stats, err := service.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.TotalUnits).To(Equal(int64(10)))
		})
	})

	Describe("Alerts and Sweep", func() {
		BeforeEach(func() {
			repo.due = []dashboard.DueScale{
				{ID: 1, ScaleID: "SC-1", Model: "PX", Status: custody.ScaleAvailable, NextCalibrationDate: now.AddDate(0, 0, -2)},
				{ID: 2, ScaleID: "SC-2", Model: "PX", Status: custody.ScaleAssigned, NextCalibrationDate: now.AddDate(0, 0, 12)},
			}
		})

		It("classifies each due scale", func() {
			service := dashboard.NewService(repo, logger.Discard(), clock)
			alerts, err := service.Alerts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.horizon).To(Equal(now.Add(calibration.WarningWindow)))
			Expect(alerts).To(HaveLen(2))
			Expect(alerts[0].Calibration).To(Equal(calibration.Result{Status: calibration.StatusExpired, DaysOverdue: 2}))
			Expect(alerts[1].Calibration).To(Equal(calibration.Result{Status: calibration.StatusExpiring, DaysRemaining: 12}))
		})

		It("updates the calibration gauges without an actor", func() {
			service := dashboard.NewService(repo, logger.Discard(), clock)
			alerts, err := service.Sweep(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(alerts).To(HaveLen(2))
			Expect(testutil.ToFloat64(obs.CalibrationExpired)).To(Equal(1.0))
			Expect(testutil.ToFloat64(obs.CalibrationExpiring)).To(Equal(2.0))
		})
	})
})

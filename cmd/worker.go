package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/scale-custody/internal/dashboard"
	dashboardPostgres "github.com/frahmantamala/scale-custody/internal/dashboard/postgres"
	"github.com/frahmantamala/scale-custody/internal/obs"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
}

var (
	sweepInterval time.Duration
	sweepOnce     bool
	workerMetrics string
)

var calibrationWorkerCmd = &cobra.Command{
	Use:   "calibration",
	Short: "Periodically sweep scales for expired or expiring calibration",
	Long:  `Update the calibration gauges and log an alert for every scale that is past due or inside the warning window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := initializeDependencies()
		if err != nil {
			return err
		}
		defer closeDependencies(deps)

		obs.Init()
		service := dashboard.NewService(dashboardPostgres.NewDashboardRepository(deps.DB), deps.Logger)

		if sweepOnce {
			_, err := service.Sweep(cmd.Context())
			return err
		}

		interval := sweepInterval
		if interval <= 0 {
			interval = deps.Config.Calibration.SweepInterval
		}
		if interval <= 0 {
			interval = time.Hour
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if workerMetrics != "" {
			srv := &http.Server{Addr: workerMetrics, Handler: obs.Handler(), ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					deps.Logger.Error("metrics server failed", "error", err)
				}
			}()
			defer srv.Close()
		}

		deps.Logger.Info("calibration worker started", "interval", interval.String())
		runSweeps(ctx, service, interval, deps.Logger)
		deps.Logger.Info("calibration worker stopped")
		return nil
	},
}

type sweeper interface {
	Sweep(ctx context.Context) ([]*dashboard.Alert, error)
}

// runSweeps sweeps immediately and then on every tick until ctx is done.
// A failed sweep is logged and retried on the next tick.
func runSweeps(ctx context.Context, s sweeper, interval time.Duration, log *slog.Logger) {
	sweep := func() {
		alerts, err := s.Sweep(ctx)
		if err != nil {
			log.Error("calibration sweep failed", "error", err)
			return
		}
		log.Debug("calibration sweep finished", "alerts", len(alerts))
	}

	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

func init() {
	calibrationWorkerCmd.Flags().DurationVar(&sweepInterval, "interval", 0, "sweep interval (overrides calibration.sweep_interval)")
	calibrationWorkerCmd.Flags().BoolVar(&sweepOnce, "once", false, "sweep once and exit")
	calibrationWorkerCmd.Flags().StringVar(&workerMetrics, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9102")

	workerCmd.AddCommand(calibrationWorkerCmd)
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/assignment"
	assignmentPostgres "github.com/frahmantamala/scale-custody/internal/assignment/postgres"
	"github.com/frahmantamala/scale-custody/internal/audit"
	auditPostgres "github.com/frahmantamala/scale-custody/internal/audit/postgres"
	"github.com/frahmantamala/scale-custody/internal/auth"
	"github.com/frahmantamala/scale-custody/internal/core/cache"
	"github.com/frahmantamala/scale-custody/internal/core/database"
	"github.com/frahmantamala/scale-custody/internal/core/events"
	"github.com/frahmantamala/scale-custody/internal/dashboard"
	dashboardPostgres "github.com/frahmantamala/scale-custody/internal/dashboard/postgres"
	"github.com/frahmantamala/scale-custody/internal/obs"
	"github.com/frahmantamala/scale-custody/internal/scale"
	scalePostgres "github.com/frahmantamala/scale-custody/internal/scale/postgres"
	"github.com/frahmantamala/scale-custody/internal/transport"
	"github.com/frahmantamala/scale-custody/internal/transport/middleware"
	"github.com/frahmantamala/scale-custody/internal/transport/rest"
	"github.com/frahmantamala/scale-custody/internal/transport/swagger"
	"github.com/frahmantamala/scale-custody/internal/unit"
	unitPostgres "github.com/frahmantamala/scale-custody/internal/unit/postgres"
	"github.com/frahmantamala/scale-custody/internal/user"
	userPostgres "github.com/frahmantamala/scale-custody/internal/user/postgres"
	"github.com/frahmantamala/scale-custody/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

// Dependencies are the process-wide handles the application is built from.
// Cache is nil when the stats cache is disabled.
type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Gorm   *gorm.DB
	Cache  *cache.RedisKVStore
	Logger *slog.Logger
}

// Application is the wired service graph behind the router.
type Application struct {
	Router       *chi.Mux
	Bus          *events.EventBus
	Users        *user.Service
	Units        *unit.Service
	Scales       *scale.Service
	Assignments  *assignment.Service
	Dashboard    *dashboard.Service
	Audit        *audit.Service
	Auth         *auth.Service
	LoginLimiter *middleware.RateLimiter
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer closeDependencies(deps)

	if _, err := swagger.Document(context.Background()); err != nil {
		deps.Logger.Error("invalid OpenAPI document", "error", err)
		os.Exit(1)
	}

	obs.Init()
	app := NewApplication(deps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go app.LoginLimiter.Run(ctx)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		deps.Logger.Info("Received signal, shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		app.Bus.Wait()
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

// NewApplication wires repositories, services, handlers and routes.
func NewApplication(deps *Dependencies) *Application {
	cfg := deps.Config
	lg := deps.Logger
	db := deps.Gorm

	tx := database.NewTransactor(db)
	bus := events.NewEventBus(lg)

	auditService := audit.NewService(auditPostgres.NewAuditRepository(db), lg)
	userRepo := userPostgres.NewUserRepository(db)
	userService := user.NewService(userRepo, tx, auditService, cfg.Security.BCryptCost, lg)
	unitService := unit.NewService(unitPostgres.NewUnitRepository(db), tx, auditService, lg)
	scaleRepo := scalePostgres.NewScaleRepository(db)
	scaleService := scale.NewService(scaleRepo, tx, auditService, unitService, userService, lg,
		scale.WithPublisher(bus))
	assignmentService := assignment.NewService(
		assignmentPostgres.NewAssignmentRepository(db),
		scaleRepo,
		unitService,
		userService,
		tx,
		auditService,
		lg,
		assignment.WithPublisher(bus),
	)

	dashboardOpts := []dashboard.Option{}
	var cachePinger rest.Pinger
	if deps.Cache != nil {
		dashboardOpts = append(dashboardOpts, dashboard.WithCache(deps.Cache, cfg.Cache.StatsTTL))
		cachePinger = deps.Cache
	}
	dashboardService := dashboard.NewService(dashboardPostgres.NewDashboardRepository(deps.DB), lg, dashboardOpts...)
	dashboardService.Subscribe(bus)

	tokens := auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.AccessTokenDuration)
	authService := auth.NewService(userRepo, tx, auditService, tokens, cfg.Security.BCryptCost, lg)

	base := transport.NewBaseHandler(lg)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.LoginPerSecond, cfg.RateLimit.LoginBurst, lg)

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(
		router,
		rest.NewHealthHandler(deps.DB, cachePinger),
		auth.NewRBACAuthorization(base, authService),
		rest.Handlers{
			Auth:        auth.NewHandler(base, authService),
			Users:       user.NewHandler(base, userService),
			Units:       unit.NewHandler(base, unitService),
			Scales:      scale.NewHandler(base, scaleService),
			Assignments: assignment.NewHandler(base, assignmentService),
			Dashboard:   dashboard.NewHandler(base, dashboardService),
			Audit:       audit.NewHandler(base, auditService),
		},
		rest.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			LoginLimiter:   limiter,
			MetricsPath:    metricsPath,
		},
		lg,
	)

	return &Application{
		Router:       router,
		Bus:          bus,
		Users:        userService,
		Units:        unitService,
		Scales:       scaleService,
		Assignments:  assignmentService,
		Dashboard:    dashboardService,
		Audit:        auditService,
		Auth:         authService,
		LoginLimiter: limiter,
	}
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	initLogger(config)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := database.OpenPostgres(db.DB)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	deps := &Dependencies{
		Config: config,
		DB:     db,
		Gorm:   gdb,
		Logger: lg,
	}

	if config.Cache.Enabled {
		store := cache.NewRedisKVStore(cache.NewRedisClient(cache.Options{
			Addr:     config.Cache.Addr,
			Password: config.Cache.Password,
			DB:       config.Cache.DB,
		}))
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			lg.Warn("stats cache unreachable at startup; continuing", "addr", config.Cache.Addr, "error", err)
		}
		deps.Cache = store
	}

	return deps, nil
}

func closeDependencies(deps *Dependencies) {
	if deps.Cache != nil {
		if err := deps.Cache.Close(); err != nil {
			deps.Logger.Error("Cache close error", "error", err)
		}
	}
	if err := deps.DB.Close(); err != nil {
		deps.Logger.Error("Database close error", "error", err)
	}
}

// initDB opens the shared pgx pool used by sqlx and GORM.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbConn, nil
}

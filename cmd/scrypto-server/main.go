package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/scrypto/portal/internal/config"
	"github.com/scrypto/portal/internal/domain/aiscan"
	"github.com/scrypto/portal/internal/domain/carenet"
	"github.com/scrypto/portal/internal/domain/comm"
	"github.com/scrypto/portal/internal/domain/medhist"
	"github.com/scrypto/portal/internal/domain/medications"
	"github.com/scrypto/portal/internal/domain/persinfo"
	"github.com/scrypto/portal/internal/domain/pharmacy"
	"github.com/scrypto/portal/internal/domain/presc"
	"github.com/scrypto/portal/internal/domain/vitality"
	"github.com/scrypto/portal/internal/platform/auth"
	"github.com/scrypto/portal/internal/platform/cache"
	"github.com/scrypto/portal/internal/platform/db"
	"github.com/scrypto/portal/internal/platform/events"
	"github.com/scrypto/portal/internal/platform/httperr"
	"github.com/scrypto/portal/internal/platform/middleware"
	"github.com/scrypto/portal/internal/platform/storage"
)

const (
	version       = "0.1.0"
	notifyQueue   = "pharmacy.notify"
	defaultBody   = "1M"
	analyzeBody   = "10M"
	uploadBody    = "21M"
	shutdownGrace = 10 * time.Second

	analyzePath = "/api/patient/presc/analyze"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scrypto-server",
		Short: "Scrypto patient and pharmacy portal API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(workerCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(dev bool) zerolog.Logger {
	if dev {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// openPool loads the config and connects. Callers close the pool.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}
	cmd.PersistentFlags().String("dir", "./migrations", "Path to migrations directory")

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			target, _ := cmd.Flags().GetInt("to")

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).UpTo(ctx, target)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies everything)")
	cmd.AddCommand(upCmd)

	// migrate down
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Revert the most recent migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			steps, _ := cmd.Flags().GetInt("steps")
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Down(ctx, steps)
			if err != nil {
				return fmt.Errorf("revert failed: %w", err)
			}
			fmt.Printf("Reverted %d migration(s).\n", count)
			return nil
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migrations to revert")
	cmd.AddCommand(downCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format(time.RFC3339)
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume allocation events and notify pharmacies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker()
		},
	}
}

func runWorker() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, pool, err := openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger := newLogger(cfg.IsDev()).With().Str("component", "worker").Logger()

	if cfg.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL is required for the worker")
	}
	conn, ch, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer ch.Close()

	logger.Info().Str("queue", notifyQueue).Str("exchange", cfg.AMQPExchange).Msg("worker started")
	handler := pharmacy.NotifyHandler(pharmacy.NewStorePG(pool), logger)
	if err := events.Consume(ctx, ch, cfg.AMQPExchange, notifyQueue, events.PrescriptionAllocated, logger, handler); err != nil {
		return err
	}
	logger.Info().Msg("worker stopped")
	return nil
}

// apiAuth checks the request origin before the caller's identity, so a
// cross-site write is refused with 403 whether or not it carries a session.
func apiAuth(cfg *config.Config, logger zerolog.Logger) []echo.MiddlewareFunc {
	verify := auth.VerifyOrigin(cfg.SiteURL, cfg.CSRFAllowedOrigins)
	if !cfg.AuthConfigured() {
		logger.Warn().Msg("no token verifier configured, using development identity")
		return []echo.MiddlewareFunc{verify, auth.DevAuthMiddleware()}
	}
	return []echo.MiddlewareFunc{verify, auth.SessionMiddleware(auth.SessionConfig{
		Secret:     []byte(cfg.AuthJWTSecret),
		JWKSURL:    cfg.AuthJWKSURL,
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		CookieName: cfg.AuthSessionCookie,
	})}
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.IsDev())
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	var checks []db.Check

	// Object storage
	var objects storage.ObjectStore
	if cfg.StorageConfigured() {
		minioStore, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			UseSSL:    cfg.StorageUseSSL,
			Region:    cfg.StorageRegion,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create storage client")
		}
		objects = minioStore
	} else {
		logger.Warn().Msg("object storage not configured, using in-memory store")
		objects = storage.NewMemoryStore()
	}
	buckets := make([]string, 0, len(storage.AllowedBuckets))
	for b := range storage.AllowedBuckets {
		buckets = append(buckets, b)
	}
	if err := objects.EnsureBuckets(ctx, buckets...); err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare storage buckets")
	}

	// Redis
	var (
		counter  cache.Counter
		settings cache.JSONCache
	)
	if cfg.RedisURL != "" {
		client, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		rc := cache.NewRedisCache(client)
		counter, settings = rc, rc
		checks = append(checks, db.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
		logger.Info().Msg("connected to redis")
	} else {
		logger.Warn().Msg("REDIS_URL not set, AI quota is computed from the audit log")
	}

	// Events
	var publisher events.Publisher = events.LogPublisher{Logger: logger}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to message broker")
		}
		defer amqpPub.Close()
		publisher = amqpPub
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing events to amqp")
	}

	// AI analysis
	modelCfg, err := aiscan.LoadModelConfig(cfg.AIConfigFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load ai config")
	}
	aiRepo := aiscan.NewRepoPG(pool)
	quota := aiscan.NewQuota(aiscan.Limits{
		Requests: int64(cfg.AIDailyRequestLimit),
		Cost:     decimal.NewFromFloat(cfg.AIDailyCostLimit),
	}, counter, aiRepo)
	aiSvc := aiscan.NewService(aiRepo, aiscan.NewOpenAICompleter(cfg.OpenAIBaseURL, cfg.AIRequestsPerSecond),
		objects, quota, settings, modelCfg, cfg.OpenAIAPIKey)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httperr.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled || cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(defaultBody, map[string]string{
		analyzePath:                             analyzeBody,
		"/api/patient/persinfo/profile/picture": uploadBody,
		"/api/storage/upload":                   uploadBody,
	}))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, checks...))

	// API
	api := e.Group("/api", apiAuth(cfg, logger)...)

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))
	api.Use(middleware.Audit(logger))
	// The analyze route spends most of its time waiting on the model, so it
	// reads and writes through the pool instead of holding a scoped tx.
	api.Use(db.UserScopeWithConfig(pool, db.ScopeConfig{
		Skipper: func(c echo.Context) bool { return c.Path() == analyzePath },
	}))

	// Patient portal
	patient := api.Group("/patient", auth.RequireRole(auth.RolePatient))
	medhist.RegisterRoutes(patient, medhist.NewPGRepos(pool))
	vitality.RegisterRoutes(patient, vitality.NewPGRepos(pool))
	persinfo.RegisterRoutes(patient, persinfo.NewPGRepos(pool), objects)
	carenet.RegisterRoutes(patient, carenet.NewPGRepos(pool))
	medications.RegisterRoutes(patient, medications.NewPGRepos(pool))
	aiscan.NewHandler(aiSvc).RegisterRoutes(patient)
	presc.NewPGHandler(pool, objects, publisher).RegisterRoutes(patient)

	// Pharmacy workstation
	pharm := api.Group("/pharmacy", auth.RequireRole(auth.RolePharmacist))
	pharmacy.NewPGHandler(pool, objects).RegisterRoutes(pharm)

	// Messaging
	comm.NewPGHandler(pool).RegisterRoutes(api.Group("/comm", auth.RequireRole(auth.RolePatient, auth.RolePharmacist)))

	// Direct uploads
	storage.NewHandler(objects).RegisterRoutes(api.Group("/storage"))

	// Start server
	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/config"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/billing"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/cards"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/members"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/organization"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/receipts"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/requests"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/auth"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/db"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/filestore"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/middleware"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/scheduler"
	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/validation"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mutuelle-server",
		Short: "Mutual health insurance API server",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(orgCmd())
	return root
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

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			schema, dir := migrationTarget(cmd, cfg)

			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := db.NewMigrator(pool, dir).Up(cmd.Context(), schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "", "Target schema (default DB_SCHEMA)")
	upCmd.Flags().String("dir", "", "Migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			schema, dir := migrationTarget(cmd, cfg)

			statuses, err := db.NewMigrator(pool, dir).Status(cmd.Context(), schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "", "Target schema (default DB_SCHEMA)")
	statusCmd.Flags().String("dir", "", "Migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func migrationTarget(cmd *cobra.Command, cfg *config.Config) (schema, dir string) {
	schema, _ = cmd.Flags().GetString("schema")
	dir, _ = cmd.Flags().GetString("dir")
	if schema == "" {
		schema = cfg.DBSchema
	}
	if dir == "" {
		dir = cfg.MigrationsDir
	}
	return schema, dir
}

func orgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			prefix, _ := cmd.Flags().GetString("code-prefix")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			_, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			org, err := organization.NewService(organization.NewRepo(pool)).CreateOrganization(cmd.Context(), name, prefix)
			if err != nil {
				return err
			}
			fmt.Printf("Created organization %s (%s), member codes start with %s\n", org.Name, org.ID, org.CodePrefix)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Organization name")
	createCmd.Flags().String("code-prefix", organization.DefaultCodePrefix, "Member code prefix")
	cmd.AddCommand(createCmd)
	return cmd
}

func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// app holds the wired services behind the HTTP surface.
type app struct {
	orgs     *organization.Service
	members  *members.Service
	requests *requests.Service
	receipts *receipts.Service
	billing  *billing.Service
	cards    *cards.Service
	files    filestore.Store
	limiter  *middleware.RateLimiter
	idem     *middleware.MemoryIdempotencyStore
}

func newApp(cfg *config.Config, pool *pgxpool.Pool, files filestore.Store, logger zerolog.Logger) *app {
	tx := db.NewTransactor(pool)
	orgRepo := organization.NewRepo(pool)
	orgSvc := organization.NewService(orgRepo)
	memberSvc := members.NewService(members.NewMemberRepo(pool), members.NewCategoryRepo(pool), members.NewDocumentRepo(pool),
		orgRepo, files, tx, logger)
	requestSvc := requests.NewService(requests.NewRequestRepo(pool), requests.NewItemRepo(pool), memberSvc, tx, logger)

	return &app{
		orgs:     orgSvc,
		members:  memberSvc,
		requests: requestSvc,
		receipts: receipts.NewService(receipts.NewRepo(pool), requestSvc, memberSvc, orgSvc, files, tx, cfg.Currency, logger),
		billing:  billing.NewService(billing.NewRepo(pool), memberSvc, tx, cfg.InvoiceDueDays, logger),
		cards:    cards.NewService(cards.NewRepo(pool), memberSvc, orgSvc, files, logger),
		files:    files,
		limiter: middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		}),
		idem: middleware.NewMemoryIdempotencyStore(cfg.IdempotencyTTL),
	}
}

func authMiddleware(cfg *config.Config, logger zerolog.Logger) echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		SigningKey: []byte(cfg.JWTSigningKey),
	}
	if !cfg.IsDev() {
		return auth.JWTMiddleware(jwtCfg)
	}
	orgID, err := uuid.Parse(cfg.DevOrgID)
	if err != nil {
		logger.Warn().Msg("DEV_ORG_ID is not set; unauthenticated requests see no organization data")
	}
	dev := auth.Identity{UserID: uuid.Nil, OrgID: orgID, Role: auth.RoleHealthOwner}
	return auth.DevAuthMiddleware(dev, jwtCfg)
}

// newRouter builds the HTTP surface. pool may be nil when the database
// health route is not needed.
func newRouter(cfg *config.Config, a *app, pool *pgxpool.Pool, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", middleware.IdempotencyKeyHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	authn := authMiddleware(cfg, logger)

	apiV1 := e.Group("/api/v1", authn, a.limiter.Middleware(), middleware.Idempotency(a.idem), middleware.Audit(logger, nil))
	organization.NewHandler(a.orgs).RegisterRoutes(apiV1)
	members.NewHandler(a.members).RegisterRoutes(apiV1)
	requests.NewHandler(a.requests).RegisterRoutes(apiV1)
	receipts.NewHandler(a.receipts).RegisterRoutes(apiV1)
	billing.NewHandler(a.billing).RegisterRoutes(apiV1)
	cards.NewHandler(a.cards).RegisterRoutes(apiV1)

	filestore.NewHandler(a.files).RegisterRoutes(e.Group(cfg.FileBaseURL, authn))
	return e
}

func newScheduler(cfg *config.Config, a *app, logger zerolog.Logger) *scheduler.Scheduler {
	s := scheduler.New(cfg.HousekeepingAt, logger)
	s.Daily("invoices_overdue", a.billing.MarkOverdue)
	s.Daily("subscriptions_expired", a.members.DeactivateExpired)
	s.Every("rate_limiter_sweep", 10*time.Minute, a.limiter.Sweep)
	s.Every("idempotency_evict", 10*time.Minute, a.idem.EvictExpired)
	return s
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	files, err := filestore.NewLocalStore(cfg.FileStoreDir, cfg.FileBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open file store")
	}

	a := newApp(cfg, pool, files, logger)
	e := newRouter(cfg, a, pool, logger)

	jobs := newScheduler(cfg, a, logger)
	if err := jobs.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer jobs.Stop()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

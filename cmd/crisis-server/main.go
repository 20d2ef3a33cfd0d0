package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mindwell/crisis/internal/config"
	"github.com/mindwell/crisis/internal/domain/alert"
	"github.com/mindwell/crisis/internal/domain/contact"
	"github.com/mindwell/crisis/internal/domain/counselor"
	"github.com/mindwell/crisis/internal/domain/crisis"
	"github.com/mindwell/crisis/internal/domain/intervention"
	"github.com/mindwell/crisis/internal/domain/safetyplan"
	"github.com/mindwell/crisis/internal/platform/auth"
	"github.com/mindwell/crisis/internal/platform/db"
	"github.com/mindwell/crisis/internal/platform/middleware"
	"github.com/mindwell/crisis/internal/platform/notification"
	"github.com/mindwell/crisis/internal/platform/scheduler"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "crisis-server",
		Short: "Crisis risk assessment and escalation engine API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the crisis engine API server",
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
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return err
			}

			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = fmt.Sprintf("applied at %s", s.AppliedAt.Format(time.RFC3339))
				}
				fmt.Printf("%03d %-40s %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(cfg.JWTSecret))
	}

	// Scheduled timers (follow-ups, monitoring loops)
	sched := scheduler.New(logger)
	defer sched.Stop()

	// Notification delivery. The log sender stands in until a real
	// SMS/email/voice gateway is wired up.
	sender := notification.NewLogSender(logger)
	notify := notification.NewManager(sender, sender, sender, sender,
		notification.NewTemplateEngine(), cfg.DeliveryTimeout(), logger)

	// Repositories
	alertRepo := alert.NewRepoPG(pool)
	contactRepo := contact.NewRepoPG(pool)
	counselorRepo := counselor.NewRepoPG(pool)
	planRepo := safetyplan.NewRepoPG(pool)
	interventionRepo := intervention.NewRepoPG(pool)

	// Services
	alertSvc := alert.NewService(alertRepo, sched, logger)
	contactSvc := contact.NewService(contactRepo)
	counselorSvc := counselor.NewService(counselorRepo, logger)
	planSvc := safetyplan.NewService(planRepo, safetyplan.Defaults{
		Hotline:         cfg.CrisisHotline,
		TextLine:        cfg.CrisisTextLine,
		EmergencyNumber: cfg.EmergencyNumber,
	})

	dispatcher := intervention.NewDispatcher(
		interventionRepo, alertSvc, counselorSvc, contactSvc, planSvc,
		notify, sched,
		intervention.Config{
			Hotline:         cfg.CrisisHotline,
			TextLine:        cfg.CrisisTextLine,
			EmergencyNumber: cfg.EmergencyNumber,
		},
		logger,
	)

	engine := crisis.NewEngine(alertSvc, dispatcher, planSvc, counselorSvc, notify,
		crisis.Config{
			Hotline:         cfg.CrisisHotline,
			TextLine:        cfg.CrisisTextLine,
			EmergencyNumber: cfg.EmergencyNumber,
		},
		logger,
	)

	// Routes
	apiV1 := e.Group("/api/v1")
	crisis.NewHandler(engine, alertSvc).RegisterRoutes(apiV1)
	contact.NewHandler(contactSvc).RegisterRoutes(apiV1)
	counselor.NewHandler(counselorSvc).RegisterRoutes(apiV1)
	safetyplan.NewHandler(planSvc).RegisterRoutes(apiV1)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
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
	sched.Stop()
	logger.Info().Msg("server stopped")
	return nil
}

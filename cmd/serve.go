package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/tournament-core/clock"
	"github.com/Dosada05/tournament-core/config"
	"github.com/Dosada05/tournament-core/db"
	"github.com/Dosada05/tournament-core/handlers"
	"github.com/Dosada05/tournament-core/live"
	"github.com/Dosada05/tournament-core/metrics"
	"github.com/Dosada05/tournament-core/repositories"
	"github.com/Dosada05/tournament-core/repositories/memory"
	"github.com/Dosada05/tournament-core/routes"
	"github.com/Dosada05/tournament-core/services"
	"github.com/Dosada05/tournament-core/storage"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	var migrateOnStart bool

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				logger.Error("failed to load configuration", slog.Any("error", err))
				return err
			}
			logger.Info("configuration loaded",
				slog.Int("port", cfg.ServerPort),
				slog.String("storage_driver", cfg.StorageDriver),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger, migrateOnStart)
		},
	}

	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "Apply pending migrations before serving (postgres driver only)")
	return serveCmd
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrateOnStart bool) error {
	clk := clock.New()

	store, closeStore, err := openStore(ctx, cfg, clk, logger, migrateOnStart)
	if err != nil {
		return err
	}
	defer closeStore()

	var uploader storage.FileUploader
	if cfg.R2Enabled() {
		uploader, err = storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 is not configured, team logo uploads are disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	hub := live.NewHub(logger)

	identityService := services.NewIdentityService(store, logger)
	profileService := services.NewProfileService(store, logger)
	authService := services.NewAuthService(store, logger)
	rosterService := services.NewRosterService(store, uploader, logger)
	tournamentService := services.NewTournamentService(store, clk, logger)
	matchService := services.NewMatchService(store, hub, logger)
	paymentService := services.NewPaymentService(store, logger)

	router := chi.NewRouter()
	routes.SetupRoutes(router, routes.Handlers{
		Auth:       handlers.NewAuthHandler(authService, clk, cfg.JWTSecretKey, cfg.TokenTTL),
		Identity:   handlers.NewIdentityHandler(identityService, profileService),
		Team:       handlers.NewTeamHandler(rosterService),
		Tournament: handlers.NewTournamentHandler(tournamentService),
		Match:      handlers.NewMatchHandler(matchService),
		Payment:    handlers.NewPaymentHandler(paymentService),
		WebSocket:  handlers.NewWebSocketHandler(hub, tournamentService, nil),
	}, routes.Options{
		JWTSecret:        cfg.JWTSecretKey,
		SyncServiceToken: cfg.SyncServiceToken,
		CORSOrigins:      cfg.CORSOrigins,
		Gatherer:         registry,
		Logger:           logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			return server.Close()
		}
		logger.Info("server shutdown complete")
		return nil
	})

	return g.Wait()
}

// openStore выбирает драйвер хранилища по конфигурации.
func openStore(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger, migrateOnStart bool) (repositories.Store, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.NewStore(clk), func() {}, nil
	}

	conn, err := db.Connect(ctx, cfg.DatabaseURL, db.DefaultPoolOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("database connection established")

	if migrateOnStart {
		if err := db.MigrateUp(conn); err != nil {
			conn.Close()
			return nil, nil, err
		}
		logger.Info("migrations applied")
	}

	closeFn := func() {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
			return
		}
		logger.Info("database connection closed")
	}
	return repositories.NewPostgresStore(conn, logger), closeFn, nil
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gramy/gramy/internal/action"
	"github.com/gramy/gramy/internal/admin"
	"github.com/gramy/gramy/internal/app"
	"github.com/gramy/gramy/internal/auth"
	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/collections"
	"github.com/gramy/gramy/internal/follows"
	"github.com/gramy/gramy/internal/games"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/observability"
	"github.com/gramy/gramy/internal/platform/cache"
	"github.com/gramy/gramy/internal/platform/db"
	"github.com/gramy/gramy/internal/profiles"
	"github.com/gramy/gramy/internal/reviews"
	"github.com/gramy/gramy/internal/shared"
	"github.com/gramy/gramy/internal/view"
	"github.com/gramy/gramy/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "gramy_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

	versions := invalidate.NewRedisVersionStore(redisClient)
	versions.Subscribe(ctx, func(p invalidate.Path) {
		logger.Debug("view invalidated", slog.String("path", string(p)))
	})
	dispatcher := invalidate.NewDispatcher(versions, logger, metrics)
	viewCache := invalidate.NewViewCache(redisClient, versions, cfg.ViewCacheTTL, logger)

	profileRepo := profiles.NewRepository(dbpool)
	resolver := authctx.NewResolver(profileRepo, logger)
	runner := action.NewRunner(resolver, dispatcher, metrics, logger)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}
	renderer := view.NewRenderer(templates, csrfManager, resolver, logger)

	redisOpt, err := jobs.RedisOpt(cfg.RedisAddr)
	if err != nil {
		logger.Error("parse redis address", slog.Any("error", err))
		os.Exit(1)
	}
	jobClient, err := jobs.NewClient(redisOpt)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpt)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	authService := auth.NewService(auth.NewRepository(dbpool), runner, jobClient, logger)
	authHandler := auth.NewHandler(logger, authService, renderer, sessionManager, csrfManager)

	gameRepo := games.NewRepository(dbpool)
	catalog := games.NewCatalog(gameRepo, cfg.CatalogCacheTTL)
	tracker := games.NewTracker(gameRepo, runner)

	reviewService := reviews.NewService(reviews.NewRepository(dbpool), runner)
	collectionService := collections.NewService(collections.NewRepository(dbpool), runner)
	followService := follows.NewService(follows.NewRepository(dbpool), runner)
	profileService := profiles.NewService(profileRepo, runner)
	adminService := admin.NewService(admin.NewRepository(dbpool), runner)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Renderer:       renderer,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Resolver:       resolver,
		Home:           app.HomeSource{Catalog: catalog, Collections: collectionService},

		AuthHandler:        authHandler,
		GamesHandler:       games.NewHandler(logger, catalog, tracker, reviewService, collectionService, renderer, viewCache),
		ReviewsHandler:     reviews.NewHandler(logger, reviewService),
		CollectionsHandler: collections.NewHandler(logger, collectionService, renderer, viewCache),
		FollowsHandler:     follows.NewHandler(logger, followService),
		ProfilesHandler: profiles.NewHandler(logger, profileService, profiles.HandlerDeps{
			Guard:       resolver,
			Follows:     followService,
			Reviews:     reviewService,
			Collections: collectionService,
			Logs:        tracker,
			Renderer:    renderer,
			Cache:       viewCache,
		}),
		AdminHandler: admin.NewHandler(logger, adminService, resolver, renderer, viewCache),
		JobHandler:   jobs.NewHandler(inspector, logger),
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

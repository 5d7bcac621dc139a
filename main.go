package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"ecoQuestAPI/handlers"
	"ecoQuestAPI/internal/advice"
	"ecoQuestAPI/internal/catalog"
	"ecoQuestAPI/internal/config"
	"ecoQuestAPI/internal/firebaseapp"
	"ecoQuestAPI/internal/identity"
	lbcache "ecoQuestAPI/internal/leaderboard"
	"ecoQuestAPI/internal/logging"
	"ecoQuestAPI/internal/metrics"
	"ecoQuestAPI/internal/notification"
	"ecoQuestAPI/internal/store"
	"ecoQuestAPI/internal/store/firestore"
	"ecoQuestAPI/internal/store/memory"
	"ecoQuestAPI/internal/store/postgres"
	"ecoQuestAPI/middleware"
	"ecoQuestAPI/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("info", "console")
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("Server shutdown complete")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AuthDisabled {
		log.Warn().Msg("AUTH_DISABLED is set: trusting the X-User-ID header")
	} else {
		clerk.SetKey(cfg.ClerkSecretKey)
		log.Info().Msg("Clerk initialized successfully")
	}

	var fbApp *firebase.App
	if cfg.FirebaseConfigured() {
		// Firebase clients keep this context for token refresh and must
		// outlive the shutdown signal.
		app, err := firebaseapp.New(context.Background(), firebaseapp.Credentials{
			ProjectID:          cfg.FirebaseProjectID,
			ServiceAccountJSON: cfg.FirebaseServiceAccountJSON,
			CredentialsFile:    cfg.FirebaseCredentialsFile,
		})
		if err != nil {
			return err
		}
		fbApp = app
	}

	st, err := openStore(ctx, cfg, fbApp)
	if err != nil {
		return err
	}
	defer func() {
		log.Info().Msg("Closing store...")
		st.Close()
	}()

	cat := catalog.Default()
	if cfg.ChallengeCatalogPath != "" {
		if cat, err = catalog.Load(cfg.ChallengeCatalogPath); err != nil {
			return err
		}
		log.Info().Str("path", cfg.ChallengeCatalogPath).Msg("Loaded challenge catalog")
	}

	var cache *lbcache.Cache
	if cfg.RedisURL != "" {
		rdb, err := lbcache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		cache = lbcache.NewCache(rdb, cfg.LeaderboardCacheTTL)
		log.Info().Dur("ttl", cfg.LeaderboardCacheTTL).Msg("Leaderboard cache enabled")
	}

	var notifier services.CompletionNotifier
	if fbApp != nil {
		sender, err := notification.NewFCMSender(context.Background(), fbApp)
		if err != nil {
			log.Warn().Err(err).Msg("Could not initialize FCM, completion pushes disabled")
		} else {
			dispatcher := notification.NewDispatcher(sender, 4, 256)
			defer dispatcher.Stop()
			notifier = dispatcher
			log.Info().Msg("FCM push dispatcher started")
		}
	}

	var generator services.TextGenerator
	if cfg.GeminiAPIKey != "" {
		gem, err := advice.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Warn().Err(err).Msg("Could not initialize Gemini, advice uses the fallback")
		} else {
			generator = gem
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)
	middleware.InitPrometheus(reg)

	leaderboardService := services.NewLeaderboardService(st, cache)
	userService := services.NewUserService(st)
	challengeService := services.NewChallengeService(st, cat, notifier, leaderboardService)
	ecoLogService := services.NewEcoLogService(st, challengeService, leaderboardService)
	adviceService := services.NewAdviceService(st, generator)

	var resolver identity.Resolver = identity.ClerkResolver{}
	auth := middleware.ClerkAuthMiddleware
	if cfg.AuthDisabled {
		resolver = identity.UIDOnly{}
		auth = middleware.DevAuthMiddleware
	}

	webhookHandler, err := handlers.NewWebhookHandler(userService, cfg.ClerkWebhookSecret)
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustedProxies)
	go limiter.CleanupVisitors(ctx)

	router := handlers.Router{
		Users:       handlers.NewUserHandler(userService, adviceService, resolver),
		Logs:        handlers.NewEcoLogHandler(ecoLogService),
		Challenges:  handlers.NewChallengeHandler(challengeService),
		Leaderboard: handlers.NewLeaderboardHandler(leaderboardService),
		Webhooks:    webhookHandler,
		Health:      handlers.NewHealthHandler(st.Ping),
		Auth:        auth,
		Metrics:     middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		Middleware:  []mux.MiddlewareFunc{limiter.Middleware, middleware.MonitorMiddleware},
	}.Build()

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", handlers.IdempotencyKeyHeader, middleware.DevUserHeader}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length", "Retry-After"}),
	)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("store", cfg.StoreBackend).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, fbApp *firebase.App) (store.Store, error) {
	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := postgres.NewPool(initCtx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		st := postgres.New(pool, cfg.TxMaxAttempts)
		if err := st.Migrate(initCtx); err != nil {
			st.Close()
			return nil, err
		}
		log.Info().Msg("Successfully connected to Postgres")
		return st, nil

	case config.BackendFirestore:
		if fbApp == nil {
			return nil, firebaseapp.ErrNoCredentials
		}
		client, err := fbApp.Firestore(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		log.Info().Msg("Successfully connected to Firestore")
		return firestore.New(client, cfg.TxMaxAttempts), nil

	case config.BackendMemory:
		log.Warn().Msg("Using the in-memory store; data is lost on restart")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

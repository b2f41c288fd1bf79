// Package main is the entry point for the SeeIt report server.
// It provides a REST API for anonymous incident reporting, the police
// triage workflow and dashboard, and a websocket stream of live report
// events for the public and police audiences.
//
// Architecture:
//   - Reports are submitted anonymously; the submitter only ever sees an
//     anonymous identifier
//   - Police endpoints require a bearer token issued at login
//   - Status transitions fan events out to role-scoped websocket rooms
//   - With Redis configured, rate limits and events are shared across instances
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/seeit/report-server/internal/anonymizer"
	"github.com/seeit/report-server/internal/auth"
	"github.com/seeit/report-server/internal/config"
	"github.com/seeit/report-server/internal/database"
	"github.com/seeit/report-server/internal/events"
	"github.com/seeit/report-server/internal/handlers"
	"github.com/seeit/report-server/internal/media"
	"github.com/seeit/report-server/internal/middleware"
	"github.com/seeit/report-server/internal/services"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger, _ := zap.NewProduction()
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Infow("Starting SeeIt Report Server",
		"port", cfg.Port,
		"env", cfg.Environment,
		"redis", cfg.RedisURL != "",
		"amqp", cfg.AMQPURL != "",
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	db, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		sugar.Fatalf("Failed to apply schema: %v", err)
	}

	// Live events, rate limiting and optional cross-instance plumbing
	bus := events.NewBus(sugar)
	var (
		limiter     middleware.Limiter
		redisClient *redis.Client
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			sugar.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		limiter = middleware.NewRedisLimiter(redisClient, "seeit:ratelimit:", cfg.SubmissionLimit, cfg.SubmissionWindow)

		relay := events.NewRedisRelay(redisClient, events.DefaultRelayChannel, bus, sugar)
		bus.AddForwarder(relay)
		go func() {
			if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
				sugar.Errorw("Event relay stopped", "error", err)
			}
		}()
	} else {
		memLimiter := middleware.NewMemoryLimiter(cfg.SubmissionLimit, cfg.SubmissionWindow)
		go memLimiter.StartJanitor(ctx, time.Minute)
		limiter = memLimiter
	}

	if cfg.AMQPURL != "" {
		exporter, err := events.NewAMQPForwarder(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			sugar.Fatalf("Failed to connect to AMQP broker: %v", err)
		}
		defer exporter.Close()
		bus.AddForwarder(exporter)
	}

	uploads, err := media.NewStore(cfg.UploadDir, cfg.MaxFileSize, cfg.MaxFiles)
	if err != nil {
		sugar.Fatalf("Failed to prepare uploads: %v", err)
	}

	trustedProxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		sugar.Fatalf("Invalid TRUSTED_PROXIES: %v", err)
	}

	gate := auth.NewGate(cfg.JWTSecret, cfg.TokenTTL)

	// Initialize services
	reportStore := services.NewReportStore(db, anonymizer.New(), sugar)
	activitySvc := services.NewActivityLogService(db, sugar)
	reportSvc := services.NewReportService(reportStore, bus, activitySvc, sugar)
	policeSvc := services.NewPoliceService(db, gate, sugar)
	statsSvc := services.NewStatsService(db, sugar)

	// Initialize handlers
	reportHandler := handlers.NewReportHandler(reportSvc, uploads, sugar)
	policeHandler := handlers.NewPoliceHandler(policeSvc, sugar)
	activityHandler := handlers.NewActivityHandler(reportSvc, activitySvc, sugar)
	statsHandler := handlers.NewStatsHandler(statsSvc, sugar)
	healthHandler := handlers.NewHealthHandler(db, redisClient, bus, sugar)
	realtimeHandler := handlers.NewRealtimeHandler(bus, gate, cfg.AllowedOrigins, sugar)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.RealIP(trustedProxies))
	r.Use(middleware.StructuredLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.StripIPHeaders()) // Remove IP-identifying headers
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Websocket connections outlive the request timeout
	r.Get("/ws", realtimeHandler.Connect)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))

		// Health check
		r.Get("/health", healthHandler.Check)
		r.Get("/health/ready", healthHandler.Ready)

		// Evidence files
		r.Handle("/uploads/*", http.StripPrefix(media.URLPrefix, http.FileServer(http.Dir(uploads.Dir()))))

		r.Route("/api", func(r chi.Router) {
			// Public report endpoints (no auth)
			r.Route("/reports", func(r chi.Router) {
				r.With(middleware.SubmissionRateLimit(limiter, cfg.JWTSecret, sugar)).Post("/", reportHandler.Submit)
				r.Get("/", reportHandler.List)
				r.Get("/{id}", reportHandler.Get)
			})

			r.Post("/police/login", policeHandler.Login)

			// Police endpoints
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth(gate, sugar))
				r.Get("/police/profile", policeHandler.Profile)
				r.Get("/police/reports", reportHandler.PoliceList)
				r.Get("/police/reports/{id}", reportHandler.PoliceGet)
				r.Put("/police/reports/{id}/status", reportHandler.UpdateStatus)
				r.Get("/police/reports/{id}/activity", activityHandler.ByReport)
				r.Get("/stats", statsHandler.Dashboard)
			})
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	sugar.Info("Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Fatalf("Forced shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}

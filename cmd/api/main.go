// Package main is the entry point for the API server.
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
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/postelma/inbox-platform/internal/config"
	"github.com/postelma/inbox-platform/internal/handler"
	"github.com/postelma/inbox-platform/internal/llm"
	"github.com/postelma/inbox-platform/internal/middleware"
	"github.com/postelma/inbox-platform/internal/model"
	natsclient "github.com/postelma/inbox-platform/internal/nats"
	"github.com/postelma/inbox-platform/internal/sender"
	"github.com/postelma/inbox-platform/internal/service"
	"github.com/postelma/inbox-platform/internal/store"
	"github.com/postelma/inbox-platform/internal/webhook"
	"github.com/postelma/inbox-platform/pkg/logger"
	"github.com/postelma/inbox-platform/pkg/metrics"
	"github.com/postelma/inbox-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "inbox-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Open Postgres
	st, err := store.Open(cfg.PostgresDSN, log)
	if err != nil {
		log.Error("failed to open database", zap.Error(err))
		os.Exit(1)
	}

	// Redis deduplication cache. Optional: ingestion falls back to the
	// database unique index when unavailable.
	var rdb *redis.Client
	if cfg.DedupEnabled {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Warn("invalid redis URL, webhook dedup cache disabled", zap.Error(err))
		} else {
			rdb = redis.NewClient(opts)
			if err := rdb.Ping(ctx).Err(); err != nil {
				log.Warn("redis not reachable, webhook dedup cache disabled", zap.Error(err))
				rdb = nil
			}
		}
	}
	deduper := webhook.NewDeduper(rdb, cfg.DedupTTL)

	// Connect to NATS
	natsClient, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer natsClient.Close()

	// Ensure JetStream routing stream exists
	streamManager := natsclient.NewStreamManager(natsClient)
	if err := streamManager.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure stream", zap.Error(err))
		os.Exit(1)
	}

	// Sample queue depth for the pending-tasks gauge
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if pending, err := streamManager.Pending(ctx); err == nil {
				metrics.RoutingTasksPending.Set(float64(pending))
			}
		}
	}()

	// Initialize LLM client
	var llmClient llm.Client
	if cfg.AnthropicAPIKey != "" {
		llmClient, err = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
		if err != nil {
			log.Warn("failed to create Anthropic client, routing disabled", zap.Error(err))
		}
	} else if cfg.OpenAIAPIKey != "" {
		llmClient, err = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			log.Warn("failed to create OpenAI client, routing disabled", zap.Error(err))
		}
	}

	// Outbound adapters, one per configured provider
	var adapters []sender.Adapter
	if cfg.TelegramBotToken != "" {
		tg, err := sender.NewTelegramAdapter(cfg.TelegramBotToken)
		if err != nil {
			log.Warn("failed to create telegram adapter", zap.Error(err))
		} else {
			adapters = append(adapters, tg)
		}
	}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		adapters = append(adapters, sender.NewTwilioAdapter(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber))
	}
	if cfg.MetaAccessToken != "" {
		adapters = append(adapters,
			sender.NewMetaAdapter(cfg.MetaAccessToken, model.PlatformInstagram),
			sender.NewMetaAdapter(cfg.MetaAccessToken, model.PlatformFacebook),
		)
	}
	if cfg.GmailAccessToken != "" {
		adapters = append(adapters, sender.NewGmailAdapter(cfg.GmailAccessToken))
	}
	if cfg.OutlookAccessToken != "" {
		adapters = append(adapters, sender.NewOutlookAdapter(cfg.OutlookAccessToken))
	}
	registry := sender.NewRegistry(adapters...)

	// Initialize services
	ingestSvc := service.NewIngestService(st, deduper, streamManager, log)
	outboundSvc := service.NewOutboundService(st, registry, log)

	var routingSvc *service.RoutingService
	if llmClient != nil {
		routingSvc = service.NewRoutingService(st, llmClient, cfg.RoutingModel,
			cfg.RoutingConfidenceThreshold, cfg.RoutingTimeout, log)

		consumeCtx, err := streamManager.Consume(ctx, routingSvc.HandleTask)
		if err != nil {
			log.Error("failed to start routing consumer", zap.Error(err))
			os.Exit(1)
		}
		defer consumeCtx.Stop()
	} else {
		log.Warn("no LLM provider configured, routing disabled")
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(st, natsClient)
	webhookHandler := handler.NewWebhookHandler(ingestSvc, log,
		cfg.InboxOwnerUserID, cfg.TelegramSecretToken, cfg.MetaVerifyToken)
	conversationHandler := handler.NewConversationHandler(st, log)
	messageHandler := handler.NewMessageHandler(st, outboundSvc, log)
	teamHandler := handler.NewTeamHandler(st, log)
	routingHandler := handler.NewRoutingHandler(routingSvc, st, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Webhook receivers: authenticated by platform-specific mechanisms,
	// not by JWT.
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/telegram", webhookHandler.Telegram)
		r.Post("/twilio", webhookHandler.Twilio)
		r.Post("/meta", webhookHandler.Meta)
		r.Get("/meta", webhookHandler.MetaVerify)
	})

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)

			r.Route("/{conversationID}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Patch("/", conversationHandler.Update)

				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)

				r.Get("/teams", teamHandler.ListAssignments)
				r.Post("/teams", teamHandler.Assign)

				r.Get("/analyses", routingHandler.Analyses)
			})
		})

		r.Route("/teams", func(r chi.Router) {
			r.Post("/", teamHandler.Create)
			r.Get("/", teamHandler.List)

			r.Route("/{teamID}", func(r chi.Router) {
				r.Get("/", teamHandler.Get)
				r.Patch("/", teamHandler.Update)
				r.Delete("/", teamHandler.Delete)
			})
		})

		r.Post("/routing/analyze", routingHandler.Analyze)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

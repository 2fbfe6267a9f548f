// Package main is the entry point for the inbox API server.
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-platform/internal/channel"
	"github.com/capitalize-ai/inbox-platform/internal/config"
	"github.com/capitalize-ai/inbox-platform/internal/dedup"
	"github.com/capitalize-ai/inbox-platform/internal/delivery"
	"github.com/capitalize-ai/inbox-platform/internal/handler"
	"github.com/capitalize-ai/inbox-platform/internal/llm"
	"github.com/capitalize-ai/inbox-platform/internal/middleware"
	"github.com/capitalize-ai/inbox-platform/internal/model"
	natsclient "github.com/capitalize-ai/inbox-platform/internal/nats"
	"github.com/capitalize-ai/inbox-platform/internal/service"
	"github.com/capitalize-ai/inbox-platform/internal/store"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
	"github.com/capitalize-ai/inbox-platform/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting inbox API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "inbox-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// NATS JetStream backs the durable event stream. The server can start
	// without it; publishing is best effort.
	var streamManager *natsclient.StreamManager
	natsClient, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Warn("NATS unavailable, stream publishing disabled", zap.Error(err))
	} else {
		defer natsClient.Close()
		streamManager = natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure stream", zap.Error(err))
			os.Exit(1)
		}
	}

	// Assign only when connected so the interface stays a true nil.
	var publisher service.Publisher
	if streamManager != nil {
		publisher = streamManager
	}

	// Cross-instance webhook idempotency claims. Falls back to the
	// in-process deduper when Redis is not enabled.
	var deduper dedup.Deduper
	var redisDeduper *dedup.Redis
	if cfg.RedisEnabled {
		redisDeduper, err = dedup.NewRedis(cfg.RedisURL, cfg.DedupTTL)
		if err != nil {
			log.Error("failed to create Redis deduper", zap.Error(err))
			os.Exit(1)
		}
		defer redisDeduper.Close()
		deduper = redisDeduper
	} else {
		deduper = dedup.NewMemory(cfg.DedupTTL)
	}

	var llmClient llm.Client
	switch {
	case cfg.DefaultLLM == string(llm.ProviderOpenAI) && cfg.OpenAIAPIKey != "":
		llmClient, err = llm.NewClient(llm.ProviderOpenAI, cfg.OpenAIAPIKey)
	case cfg.AnthropicAPIKey != "":
		llmClient, err = llm.NewClient(llm.ProviderAnthropic, cfg.AnthropicAPIKey)
	case cfg.OpenAIAPIKey != "":
		llmClient, err = llm.NewClient(llm.ProviderOpenAI, cfg.OpenAIAPIKey)
	}
	if err != nil {
		log.Warn("failed to create LLM client, replies degrade to fallback", zap.Error(err))
		llmClient = nil
	}

	st := store.NewMemory()
	sender := delivery.NewLogSender(log)

	sessions := service.NewSessionRegistry(cfg.SessionIdleTimeout, log)
	sessions.Start(ctx)
	defer sessions.Stop()

	routerSvc := service.NewRouterService(st, publisher, log)
	handoffSvc := service.NewHandoffService(st, log)
	ticketSvc := service.NewTicketService(st, publisher, log)
	conversationSvc := service.NewConversationService(st, sessions, log)
	inboxSvc := service.NewInboxService(st, log)
	dispatcherSvc := service.NewDispatcherService(
		st,
		handoffSvc,
		ticketSvc,
		sessions,
		service.DefaultKeywordDetector(),
		llmClient,
		sender,
		publisher,
		service.DispatcherConfig{
			AITimeout:          cfg.AITimeout,
			DeliveryMaxRetries: cfg.DeliveryMaxRetries,
			DeliveryBackoff:    cfg.DeliveryBackoff,
		},
		log,
	)

	scheduler := service.NewSchedulerService(st, publisher, cfg.SLAScanSpec, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Error("failed to start SLA sweeper", zap.Error(err))
		os.Exit(1)
	}
	defer scheduler.Stop()

	var redisPinger handler.Pinger
	if redisDeduper != nil {
		redisPinger = redisDeduper
	}
	healthHandler := handler.NewHealthHandler(natsClient, redisPinger)
	webhookHandler := handler.NewWebhookHandler(
		routerSvc,
		dispatcherSvc,
		deduper,
		[]channel.Normalizer{
			channel.NewInstagram(log),
			channel.NewFacebook(log),
			channel.NewWhatsApp(log),
			channel.NewWebChat(log),
		},
		map[model.Channel]string{
			model.ChannelInstagram: cfg.InstagramVerifyToken,
			model.ChannelFacebook:  cfg.FacebookVerifyToken,
			model.ChannelWhatsApp:  cfg.WhatsAppVerifyToken,
		},
		log,
	)
	conversationHandler := handler.NewConversationHandler(inboxSvc, conversationSvc, handoffSvc, log)
	messageHandler := handler.NewMessageHandler(inboxSvc, dispatcherSvc, log)
	ticketHandler := handler.NewTicketHandler(ticketSvc, inboxSvc, log)
	inboxHandler := handler.NewInboxHandler(inboxSvc, log)

	var replayer handler.Replayer
	if streamManager != nil {
		replayer = streamManager
	}
	streamHandler := handler.NewStreamHandler(replayer, inboxSvc, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Provider webhooks carry their own verification; no JWT here.
	r.Route("/webhooks", func(r chi.Router) {
		r.Get("/instagram", webhookHandler.Verify(model.ChannelInstagram))
		r.Post("/instagram", webhookHandler.Receive(model.ChannelInstagram))
		r.Get("/facebook", webhookHandler.Verify(model.ChannelFacebook))
		r.Post("/facebook", webhookHandler.Receive(model.ChannelFacebook))
		r.Get("/whatsapp", webhookHandler.Verify(model.ChannelWhatsApp))
		r.Post("/whatsapp", webhookHandler.Receive(model.ChannelWhatsApp))
		r.Post("/webchat", webhookHandler.Receive(model.ChannelWebChat))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/inbox/stats", inboxHandler.Stats)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Put("/", conversationHandler.Update)
				r.Delete("/", conversationHandler.Delete)
				r.Put("/handling", conversationHandler.SetHandling)
				r.Post("/read", conversationHandler.MarkRead)

				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)
				r.Get("/replay", streamHandler.Replay)
			})
		})

		r.Route("/tickets", func(r chi.Router) {
			r.Post("/", ticketHandler.Create)
			r.Get("/", ticketHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", ticketHandler.Get)
				r.Put("/status", ticketHandler.UpdateStatus)
				r.Put("/assign", ticketHandler.Assign)
				r.Post("/escalate", ticketHandler.Escalate)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireScope("admin"))
					r.Post("/escalation/complete", ticketHandler.CompleteEscalation)
					r.Delete("/", ticketHandler.Purge)
				})
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// Package main is the entry point for the gateway API server.
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

	"github.com/flexihub/assistant-gateway/internal/assistant"
	"github.com/flexihub/assistant-gateway/internal/channel"
	"github.com/flexihub/assistant-gateway/internal/config"
	"github.com/flexihub/assistant-gateway/internal/handler"
	"github.com/flexihub/assistant-gateway/internal/middleware"
	natsclient "github.com/flexihub/assistant-gateway/internal/nats"
	"github.com/flexihub/assistant-gateway/internal/orchestrator"
	"github.com/flexihub/assistant-gateway/internal/registry"
	"github.com/flexihub/assistant-gateway/internal/session"
	"github.com/flexihub/assistant-gateway/internal/tool"
	"github.com/flexihub/assistant-gateway/pkg/logger"
	"github.com/flexihub/assistant-gateway/pkg/tokens"
	"github.com/flexihub/assistant-gateway/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting gateway API server")

	if cfg.OpenAIAPIKey == "" || cfg.AssistantID == "" {
		log.Fatal("OPENAI_API_KEY and ASSISTANT_ID must be set")
	}

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "assistant-gateway", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// NATS is optional; the channel only exists when configured.
	var natsConn *natsclient.Client
	if cfg.ChannelEnabled("nats") {
		natsConn, err = natsclient.Connect(natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Close()
	}

	client, err := assistant.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	if err != nil {
		log.Fatal("failed to create assistant client", zap.Error(err))
	}
	reg := registry.New(client, log)

	truncator := tokens.NewTruncator(cfg.TokenizerModel)
	toolReg := tool.NewRegistry()
	tool.RegisterBuiltins(toolReg)
	executor := tool.NewExecutor(toolReg, truncator, cfg.ToolOutputMaxTokens, log)

	sessions := session.NewManager(cfg.ReplayBuffer, log)

	var channels []channel.Channel
	if cfg.ChannelEnabled("sse") {
		channels = append(channels, session.NewHub(sessions))
	}
	if cfg.ChannelEnabled("nats") {
		channels = append(channels, channel.NewNATS(natsConn, cfg.NATSSubject))
	}
	if cfg.ChannelEnabled("cli") {
		channels = append(channels, channel.NewCLI(os.Stdout))
	}
	publisher := channel.NewPublisher(channels, log)

	orch := orchestrator.New(client, reg, executor, publisher, log)

	healthHandler := handler.NewHealthHandler(natsConn)
	chatHandler := handler.NewChatHandler(reg, orch, sessions, cfg.AssistantID, log)
	streamHandler := handler.NewStreamHandler(sessions, cfg.SSEHeartbeat, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.UserIDOverride))
		if cfg.JWTSecret != "" {
			r.Use(middleware.Auth(cfg.JWTSecret))
		}
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/chat", func(r chi.Router) {
			r.Post("/message", chatHandler.Message)
			r.Post("/ready", chatHandler.Ready)
			r.Get("/session", chatHandler.Session)
			r.Get("/stream", streamHandler.Stream)
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
			log.Fatal("server error", zap.Error(err))
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

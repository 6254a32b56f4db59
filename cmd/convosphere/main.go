package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ConvoSphere/convosphere/internal/adapter/httpapi"
	"github.com/ConvoSphere/convosphere/internal/adapter/memledger"
	"github.com/ConvoSphere/convosphere/internal/adapter/natskv"
	"github.com/ConvoSphere/convosphere/internal/adapter/natsrpc"
	csotel "github.com/ConvoSphere/convosphere/internal/adapter/otel"
	"github.com/ConvoSphere/convosphere/internal/adapter/ristretto"
	"github.com/ConvoSphere/convosphere/internal/adapter/tiered"
	"github.com/ConvoSphere/convosphere/internal/adapter/ws"
	"github.com/ConvoSphere/convosphere/internal/config"
	"github.com/ConvoSphere/convosphere/internal/logger"
	"github.com/ConvoSphere/convosphere/internal/port/cache"
	"github.com/ConvoSphere/convosphere/internal/service"
)

const maxBodySize = 1 << 20 // 1 MiB

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"providers", len(cfg.Providers),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	if cfg.OTel.Enabled {
		shutdown, err := csotel.Setup(ctx, cfg.Logging.Service, cfg.OTel.Endpoint)
		if err != nil {
			return fmt.Errorf("otel: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	metrics, err := csotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---
	hub := ws.NewHub()

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer l1.Close()

	ledger := memledger.New()

	// --- Middleware pipeline ---
	builder := service.NewRequestBuilder(cfg.Defaults)
	registry := service.NewProviderRegistry(buildProviders(cfg)...)
	costs := service.NewCostService(ledger, cfg.Budget, hub, metrics)
	responses := service.NewResponseHandler()

	// Retrieval and tool execution ride on NATS request/reply. A
	// missing broker degrades to plain completions, it is not fatal.
	var (
		rag   *service.RAGMiddleware
		tools *service.ToolMiddleware
	)
	if conn, err := natsrpc.Connect(cfg.NATS.URL, cfg.NATS.Timeout); err != nil {
		slog.Warn("nats unavailable, rag and tools disabled", "url", cfg.NATS.URL, "error", err)
	} else {
		defer conn.Close()

		// Retrieval cache: L1 in process, L2 shared across replicas in
		// a JetStream KV bucket when the server supports it.
		var ragCache cache.Cache = l1
		if kv, err := conn.KeyValue(ctx, "retrieval-cache", cfg.RAG.CacheTTL); err != nil {
			slog.Warn("jetstream kv unavailable, using in-process cache only", "error", err)
		} else {
			ragCache = tiered.New(l1, natskv.New(kv), time.Minute)
		}

		rag = service.NewRAGMiddleware(natsrpc.NewRetriever(conn), ragCache, cfg.RAG)
		tools = service.NewToolMiddleware(natsrpc.NewExecutor(conn), cfg.Tools, metrics)
	}

	processor := service.NewChatProcessor(
		builder, registry, rag, tools, costs, responses, hub, metrics, cfg.Budget,
	)

	// --- HTTP ---
	handlers := &httpapi.Handlers{
		Processor:   processor,
		Hub:         hub,
		MaxBodySize: maxBodySize,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           httpapi.NewRouter(handlers, cfg.Server.CORSOrigin),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // streaming responses manage their own deadlines
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

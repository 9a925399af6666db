package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/CodeMentor/internal/adapter/gemini"
	cmhttp "github.com/Strob0t/CodeMentor/internal/adapter/http"
	cmnats "github.com/Strob0t/CodeMentor/internal/adapter/nats"
	"github.com/Strob0t/CodeMentor/internal/adapter/natskv"
	"github.com/Strob0t/CodeMentor/internal/adapter/otel"
	"github.com/Strob0t/CodeMentor/internal/adapter/postgres"
	"github.com/Strob0t/CodeMentor/internal/adapter/ristretto"
	"github.com/Strob0t/CodeMentor/internal/adapter/tiered"
	"github.com/Strob0t/CodeMentor/internal/adapter/ws"
	"github.com/Strob0t/CodeMentor/internal/config"
	"github.com/Strob0t/CodeMentor/internal/logger"
	"github.com/Strob0t/CodeMentor/internal/middleware"
	"github.com/Strob0t/CodeMentor/internal/port/cache"
	"github.com/Strob0t/CodeMentor/internal/resilience"
	"github.com/Strob0t/CodeMentor/internal/service"
)

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

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"model", cfg.Gemini.Model,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx := context.Background()

	// --- Observability ---
	shutdownOTel, err := otel.InitProviders(ctx, cfg.OTel.Endpoint, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			slog.Error("otel shutdown failed", "error", err)
		}
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS (optional; an empty URL disables the event publisher and L2 cache)
	var queue *cmnats.Queue
	if cfg.NATS.URL != "" {
		queue, err = cmnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := queue.Drain(); err != nil {
				slog.Error("nats drain failed", "error", err)
			}
		}()
	} else {
		slog.Warn("nats disabled, turn events will not be published")
	}

	// Chat read cache: in-process ristretto, layered over a NATS KV bucket
	// when JetStream is available.
	l1, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("ristretto: %w", err)
	}
	defer l1.Close()

	var chatCache cache.Cache = l1
	if queue != nil {
		kv, err := queue.KeyValue(ctx, "chat-cache")
		if err != nil {
			return fmt.Errorf("nats kv: %w", err)
		}
		chatCache = tiered.New(l1, natskv.New(kv), cfg.Cache.TTL)
	}

	store := postgres.NewCachedStore(postgres.NewStore(pool), chatCache, cfg.Cache.TTL)

	// --- Services ---
	hub := ws.NewHub()

	admission := resilience.NewAdmissionGate(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst, cfg.Rate.MaxAdmitDelay)
	stopGateCleanup := admission.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopGateCleanup()

	llm := gemini.NewClient(cfg.Gemini)
	llm.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	chatSvc := service.NewChatService(store, admission, llm, hub, cfg.Chat, cfg.Gemini.Temperature)
	chatSvc.SetMetrics(metrics)
	if queue != nil {
		chatSvc.SetQueue(queue)
	}

	// --- HTTP ---
	handlers := &cmhttp.Handlers{
		Chats: chatSvc,
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopLimiterCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopLimiterCleanup()

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(cmhttp.SecurityHeaders)
	r.Use(cmhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cmhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(limiter.Handler)

	r.Get("/health", healthHandler(pool, queue))
	r.Get("/ws", hub.HandleWS)

	cmhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// healthHandler reports liveness of the service and its backing stores.
func healthHandler(pool *pgxpool.Pool, queue *cmnats.Queue) http.HandlerFunc {
	type healthStatus struct {
		Status   string `json:"status"`
		Postgres string `json:"postgres"`
		NATS     string `json:"nats"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{Status: "ok", Postgres: "ok", NATS: "disabled"}

		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			status.Status = "degraded"
			status.Postgres = "unreachable"
		}
		if queue != nil {
			if queue.IsConnected() {
				status.NATS = "ok"
			} else {
				status.Status = "degraded"
				status.NATS = "disconnected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/notmarket/launch-engine/internal/config"
	"github.com/notmarket/launch-engine/internal/curve"
	"github.com/notmarket/launch-engine/internal/engine"
	"github.com/notmarket/launch-engine/internal/launch"
	"github.com/notmarket/launch-engine/internal/limits"
	"github.com/notmarket/launch-engine/internal/metrics"
	"github.com/notmarket/launch-engine/internal/oracle"
	"github.com/notmarket/launch-engine/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.DebugLogging {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.PostgresURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid redis url", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, time.Duration(cfg.CacheTTLSeconds)*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("postgres_url not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Native currency pricing ---
	rateDec, err := decimal.NewFromString(cfg.NativePriceUSD)
	if err != nil {
		slog.Error("invalid native_price_usd", "value", cfg.NativePriceUSD, "err", err)
		os.Exit(1)
	}
	rateScaled := rateDec.Shift(8)
	if !rateScaled.IsInteger() || !rateScaled.IsPositive() {
		slog.Error("native_price_usd out of range", "value", cfg.NativePriceUSD)
		os.Exit(1)
	}
	rates := oracle.NewStatic(uint64(rateScaled.IntPart()))
	maxStaleness := time.Duration(cfg.MaxStalenessSeconds) * time.Second

	// --- Trade limits ---
	limiter := &limits.TradeLimiter{
		MinTradeUnits:  cfg.MinTradeUnits,
		MaxTradeUnits:  cfg.MaxTradeUnits,
		MaxHoldingsBps: uint16(cfg.MaxHoldingsBps),
	}

	// --- WebSocket hub ---
	wsHub := launch.NewWSHub()
	go wsHub.Run()

	// --- Launch service ---
	engCfg := engine.Config{
		FeeBps:        uint16(cfg.FeeBps),
		FeeRecipient:  cfg.FeeRecipient,
		GraduationUSD: uint64(cfg.GraduationUSD) * curve.USDScale,
	}
	svc := launch.NewService(st, engCfg, limiter, rates, maxStaleness, nil, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"launch-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time trade and graduation events.
		r.Get("/ws", wsHub.HandleWS)

		// Launch management.
		r.Get("/launches", svc.ListLaunches)
		r.Post("/launches", svc.CreateLaunch)
		r.Get("/launches/{launchID}", svc.GetLaunch)
		r.Get("/launches/{launchID}/curve", svc.GetCurve)
		r.Get("/launches/{launchID}/quote", svc.QuoteBuy)
		r.Get("/launches/{launchID}/trades", svc.GetTrades)
		r.Post("/launches/{launchID}/withdraw", svc.Withdraw)

		// Trade execution.
		r.Post("/trade", svc.ExecuteTrade)

		// Position queries.
		r.Get("/positions/{trader}", svc.GetPositions)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("launch-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down launch-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("launch-engine stopped")
}

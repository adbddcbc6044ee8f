package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"citizen-engagement/internal/auth"
	"citizen-engagement/internal/cache"
	"citizen-engagement/internal/config"
	"citizen-engagement/internal/httpapi"
	"citizen-engagement/internal/metrics"
	"citizen-engagement/internal/policy"
	"citizen-engagement/internal/store"
	"citizen-engagement/internal/workflow"
	"citizen-engagement/pkg/logger"
	"citizen-engagement/pkg/telemetry"
	"citizen-engagement/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	_ "modernc.org/sqlite"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := telemetry.Init(telemetry.Options{
		ServiceName: "citizen-engagement",
		Env:         cfg.App.Env,
		Stdout:      cfg.Telemetry.TracesStdout,
	})
	if err != nil {
		log.Error("telemetry init failed", "err", err)
		os.Exit(1)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	pol := policy.Default()
	if cfg.Policy.File != "" {
		pol, err = policy.FromFile(cfg.Policy.File)
		if err != nil {
			log.Error("policy load failed", "err", err, "file", cfg.Policy.File)
			os.Exit(1)
		}
	}

	driver, dsn := cfg.DataSource()
	dialect, err := store.DialectFor(driver)
	if err != nil {
		log.Error("store init failed", "err", err)
		os.Exit(1)
	}
	db, err := utils.OpenDB(rootCtx, driver, dsn, utils.PoolConfig{})
	if err != nil {
		log.Error("database init failed", "err", err, "driver", driver)
		os.Exit(1)
	}
	defer db.Close()

	if err := store.Migrate(rootCtx, db); err != nil {
		log.Error("database migration failed", "err", err)
		os.Exit(1)
	}

	opts := []workflow.Option{workflow.WithMetrics(metrics.New(prometheus.DefaultRegisterer))}

	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
			Addr:         cfg.RedisAddr(),
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolSize:     cfg.Redis.PoolSize,
		})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		opts = append(opts,
			workflow.WithCache(cache.NewProjectionCache(rdb, cfg.Cache.TTL)),
			workflow.WithGuard(cache.NewMutationGuard(rdb, cfg.Cache.MutationLeaseTTL)),
		)
	} else {
		log.Info("redis disabled, projection cache and mutation guard off")
	}

	svc := workflow.NewService(store.NewSQLRepo(db, dialect), pol, opts...)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		handlers:  httpapi.Handlers{Issues: svc, Auth: authManager},
		authMW:    auth.RequireAccessToken(authManager),
		db:        db,
		devTokens: !cfg.IsProduction() && cfg.App.Env != "staging",
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "db_driver", driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown failed", "err", err)
	}
}

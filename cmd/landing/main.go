package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wellingtonag/newsletter-node/internal/config"
	"github.com/wellingtonag/newsletter-node/internal/database"
	"github.com/wellingtonag/newsletter-node/internal/email"
	"github.com/wellingtonag/newsletter-node/internal/handlers"
	"github.com/wellingtonag/newsletter-node/internal/logger"
	"github.com/wellingtonag/newsletter-node/internal/metrics"
	"github.com/wellingtonag/newsletter-node/internal/ratelimit"
	"github.com/wellingtonag/newsletter-node/internal/render"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(cfg.DSN()); err != nil {
		lg.Fatal("failed to migrate database", zap.Error(err))
	}

	db, err := database.New(ctx, cfg.DSN())
	if err != nil {
		lg.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	limiter, closeLimiter := newLimiter(ctx, cfg, lg)
	defer closeLimiter()

	renderer := render.New(cfg.TemplatesDir)

	mailer := email.New(email.Config{
		Host:           cfg.SMTPHost,
		Port:           cfg.SMTPPort,
		User:           cfg.SMTPUser,
		Password:       cfg.SMTPPass,
		From:           cfg.MailFrom,
		Timeout:        cfg.SMTPTimeout,
		CompanyName:    cfg.CompanyName,
		LogoURL:        cfg.LogoURL,
		CompanyWebsite: cfg.CompanyWebsite,
	}, renderer)

	h := handlers.New(handlers.Deps{
		Store:    db,
		Mailer:   mailer,
		Renderer: renderer,
		Limiter:  limiter,
		Metrics:  metrics.New(),
		Logger:   lg,
	}, handlers.Config{
		BaseURL:     cfg.BaseURL,
		StaticDir:   cfg.StaticDir,
		CompanyName: cfg.CompanyName,
		LogoURL:     cfg.LogoURL,
		TrustProxy:  cfg.TrustProxy,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Leaves room for a slow SMTP relay on top of the store calls.
		WriteTimeout: cfg.SMTPTimeout + 30*time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		lg.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.Int("rate_limit_max", cfg.RateLimitMax),
			zap.Duration("rate_limit_window", cfg.RateLimitWindow),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newLimiter shares counters through Redis when REDIS_ADDR is set and
// keeps them in memory otherwise.
func newLimiter(ctx context.Context, cfg *config.Config, lg *zap.Logger) (ratelimit.Limiter, func()) {
	if cfg.RedisAddr == "" {
		mem := ratelimit.NewMemory(cfg.RateLimitMax, cfg.RateLimitWindow)
		mem.StartJanitor(ctx, time.Minute)
		return mem, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		lg.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	lg.Info("using redis rate limiter", zap.String("addr", cfg.RedisAddr))
	return ratelimit.NewRedis(rdb, cfg.RateLimitMax, cfg.RateLimitWindow), func() { _ = rdb.Close() }
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medassist/medassist-ai-platform/internal/ai"
	"github.com/medassist/medassist-ai-platform/internal/api/router"
	"github.com/medassist/medassist-ai-platform/internal/auth"
	"github.com/medassist/medassist-ai-platform/internal/chat"
	appconfig "github.com/medassist/medassist-ai-platform/internal/config"
	"github.com/medassist/medassist-ai-platform/internal/doctor"
	"github.com/medassist/medassist-ai-platform/internal/media"
	"github.com/medassist/medassist-ai-platform/internal/notify"
	"github.com/medassist/medassist-ai-platform/internal/observability/metrics"
	"github.com/medassist/medassist-ai-platform/internal/uploads"
	"github.com/medassist/medassist-ai-platform/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting medassist-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("failed to reach database", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Error("failed to create upload directory", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	turnMetrics := metrics.NewTurnMetrics(registry)

	aiClient, err := ai.NewClient(cfg.GroqAPIKey, cfg.GroqBaseURL, ai.Models{
		Chat:    cfg.ChatModel,
		Vision:  cfg.VisionModel,
		Whisper: cfg.WhisperModel,
	}, logger)
	if err != nil {
		logger.Error("failed to create inference client", "error", err)
		os.Exit(1)
	}

	extractor := media.NewExtractor(logger)
	explainer := ai.NewExplainer(aiClient, logger)
	orchestrator := chat.NewOrchestrator(aiClient, extractor, explainer, turnMetrics, logger)

	// The Redis history cache is optional; without it every turn reads
	// recent history from Postgres.
	var historyCache chat.HistoryCacher
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, history cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			historyCache = chat.NewHistoryCache(redisClient, nil)
		}
	}

	chatStore := chat.NewStore(db)
	uploadStore := uploads.NewStore(db)
	userStore := auth.NewStore(db)

	chatService := chat.NewService(chatStore, historyCache, orchestrator, uploadStore, logger)
	chatHandler := chat.NewHandler(chatService, logger)

	processor := uploads.NewProcessor(aiClient, extractor, orchestrator, turnMetrics, logger)
	uploadHandler := uploads.NewHandler(uploadStore, processor, uploads.Config{
		UploadDir:     cfg.UploadDir,
		PublicBaseURL: cfg.PublicBaseURL,
		MaxFiles:      cfg.MaxUploadFiles,
		MaxBytes:      cfg.MaxUploadBytes,
	}, logger)

	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	} else {
		sender = notify.NewStubEmailSender(logger)
	}
	mailer := notify.NewMailer(sender, cfg.FrontendURL, logger)

	authService := auth.NewService(userStore, mailer, cfg.JWTSecret, cfg.JWTExpiry, logger)
	authHandler := auth.NewHandler(authService, logger)

	doctorHandler := doctor.NewHandler(userStore, chatStore, uploadStore, aiClient, logger)

	routerCfg := &router.Config{
		Logger:             logger,
		AuthHandler:        authHandler,
		ChatHandler:        chatHandler,
		UploadHandler:      uploadHandler,
		DoctorHandler:      doctorHandler,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		JWTSecret:          cfg.JWTSecret,
		CORSAllowedOrigins: splitOrigins(cfg.CORSAllowedOrigins),
		UploadDir:          cfg.UploadDir,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/absolute0github/band-contract-plugin/config"
	"github.com/absolute0github/band-contract-plugin/handler"
	"github.com/absolute0github/band-contract-plugin/middleware"
	"github.com/absolute0github/band-contract-plugin/pkg/logger"
	"github.com/absolute0github/band-contract-plugin/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	slog.Info("configuration loaded successfully", "path", *configPath)

	ctx := context.Background()

	store, err := openStore(ctx, &cfg.Store)
	if err != nil {
		slog.Error("failed to open contract store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	signLimiter, err := openSignLimiter(&cfg.RateLimit)
	if err != nil {
		slog.Error("failed to open attempt limiter", "driver", cfg.RateLimit.Driver, "error", err)
		os.Exit(1)
	}
	defer signLimiter.Close()

	artifacts, err := openArtifacts(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize document storage", "driver", cfg.Documents.Driver, "error", err)
		os.Exit(1)
	}

	tokens := service.NewTokenManager(time.Duration(cfg.Token.ExpirationDays) * 24 * time.Hour)
	contracts := service.NewContractService(service.ContractServiceConfig{
		Store:          store,
		Tokens:         tokens,
		Documents:      service.NewHTMLDocuments(artifacts, cfg.Business),
		Artifacts:      artifacts,
		Notifier:       service.NewMailer(mailTransport(&cfg.Email), cfg.Email, cfg.Business),
		BaseURL:        cfg.Server.BaseURL,
		DefaultDeposit: cfg.Business.DefaultDeposit,
	})
	signer := service.NewSignatureWorkflow(contracts, signLimiter)

	authHandler := handler.NewAuthHandler(cfg)
	contractHandler := handler.NewContractHandler(contracts)
	publicHandler := handler.NewPublicHandler(contracts, signer)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.RemoteIPHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		slog.Error("invalid trusted proxies", "error", err)
		os.Exit(1)
	}

	apiLimiter := service.NewMemoryLimiter(cfg.RateLimit.APIRequests, time.Minute)
	defer apiLimiter.Close()

	router.Use(middleware.RequestID())
	router.Use(middleware.ClientIP())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	router.GET("/health", handler.Health)

	// Client facing routes keep the paths of the original WordPress plugin so existing links work.
	public := router.Group("/")
	public.Use(middleware.NoCache())
	{
		public.POST("/wp-json/smcb/v1/sign", publicHandler.Sign)
		public.GET("/wp-json/smcb/v1/contract/:token", publicHandler.ContractInfo)
		public.GET("/contract/view", publicHandler.View)
	}

	api := router.Group("/api")
	api.Use(middleware.NoCache())
	api.Use(middleware.RateLimit(apiLimiter))
	{
		api.POST("/auth/login", authHandler.Login)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.GET("/contracts", contractHandler.List)
		protected.POST("/contracts", contractHandler.Create)
		protected.GET("/contracts/stats", contractHandler.Stats)
		protected.GET("/contracts/lookup", contractHandler.Lookup)
		protected.GET("/contracts/:id", contractHandler.Get)
		protected.PUT("/contracts/:id", contractHandler.Update)
		protected.DELETE("/contracts/:id", contractHandler.Delete)
		protected.POST("/contracts/:id/send", contractHandler.Send)
		protected.POST("/contracts/:id/cancel", contractHandler.Cancel)
		protected.POST("/contracts/:id/token", contractHandler.RegenerateToken)
		protected.POST("/contracts/:id/documents", contractHandler.GenerateDocuments)
		protected.GET("/contracts/:id/documents/:kind", contractHandler.Document)
		protected.POST("/contracts/:id/payments", contractHandler.RecordPayment)
		protected.GET("/contracts/:id/activity", contractHandler.Activity)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "base_url", cfg.Server.BaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		return
	}

	slog.Info("server exited gracefully")
}

func openStore(ctx context.Context, cfg *config.StoreConfig) (service.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return service.OpenSQLite(cfg.DataDir)
	case "postgres":
		return service.OpenPostgres(ctx, cfg.DSN)
	default:
		slog.Warn("using in-memory contract store, data is lost on restart")
		return service.NewMemoryStore(), nil
	}
}

func openSignLimiter(cfg *config.RateLimitConfig) (service.AttemptLimiter, error) {
	window := time.Duration(cfg.SignWindowSeconds) * time.Second
	if cfg.Driver == "badger" {
		return service.OpenBadgerLimiter(cfg.BadgerPath, cfg.SignAttempts, window)
	}
	return service.NewMemoryLimiter(cfg.SignAttempts, window), nil
}

func openArtifacts(ctx context.Context, cfg *config.Config) (service.ArtifactStore, error) {
	if cfg.Documents.Driver != "minio" {
		return service.NewLocalArtifacts(cfg.Documents.Dir)
	}
	minioStore, err := service.NewMinioArtifacts(&cfg.Minio)
	if err != nil {
		return nil, err
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return minioStore, nil
}

func documentGenerator(artifacts service.ArtifactStore, cfg *config.Config) service.DocumentGenerator {
	if cfg.Documents.Format == "html" {
		return service.NewHTMLDocuments(artifacts, cfg.Business)
	}
	return service.NewPDFDocuments(artifacts, cfg.Business)
}

func mailTransport(cfg *config.EmailConfig) service.MailTransport {
	switch cfg.Driver {
	case "smtp":
		return service.NewSMTPTransport(cfg.SMTP)
	case "resend":
		return service.NewResendTransport(&cfg.Resend)
	default:
		return service.LogTransport{}
	}
}

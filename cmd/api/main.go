package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/testforge/smartfill/internal/api"
	"github.com/testforge/smartfill/internal/api/middleware"
	"github.com/testforge/smartfill/internal/channel"
	"github.com/testforge/smartfill/internal/config"
	"github.com/testforge/smartfill/internal/inject"
	"github.com/testforge/smartfill/internal/llm"
	"github.com/testforge/smartfill/internal/observability"
	"github.com/testforge/smartfill/internal/services/autofill"
	"github.com/testforge/smartfill/internal/services/profile"
	"github.com/testforge/smartfill/internal/storage"
	"github.com/testforge/smartfill/internal/store"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Env, cfg.GetLogLevel())
	defer logger.Sync()

	logger.Info("Starting SmartFill API",
		zap.String("version", cfg.App.Version),
		zap.String("environment", string(cfg.Env)),
		zap.String("store", cfg.Store.Backend),
	)

	ctx := context.Background()

	backend, cache, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer backend.Close()

	storeOpts, err := store.Options(cfg)
	if err != nil {
		logger.Fatal("Invalid store options", zap.Error(err))
	}
	st := store.New(backend, storeOpts...)

	metrics := observability.NewMetrics(cfg.App.Name)

	// Model providers
	factory := llm.NewFactory(llm.FactoryConfigFrom(cfg), logger)
	if cache != nil {
		factory.SetCache(llm.NewResponseCache(llm.DefaultCacheConfig(), cache.Client(), logger))
	} else {
		factory.SetCache(llm.NewResponseCache(llm.DefaultCacheConfig(), nil, logger))
	}
	factory.SetObserver(metrics.RecordModelRequest)

	deps := autofill.Deps{
		Store:     st,
		Providers: factory,
		Metrics:   metrics,
	}

	checks := []api.HealthCheck{
		{Name: "store", Check: backend.Health},
	}

	// Analysis archive (optional)
	if cfg.Storage.Enabled {
		archive, err := storage.NewMinIOClient(cfg.Storage)
		if err != nil {
			logger.Warn("Failed to connect to object storage, archive disabled", zap.Error(err))
		} else if err := archive.EnsureBucket(ctx); err != nil {
			logger.Warn("Failed to ensure archive bucket, archive disabled", zap.Error(err))
		} else {
			deps.Archive = archive
			logger.Info("Analysis archive enabled",
				zap.String("endpoint", cfg.Storage.Endpoint),
				zap.String("bucket", cfg.Storage.Bucket),
			)
		}
	}

	// Headless browser (optional)
	if cfg.Browser.Enabled {
		browser, err := inject.NewBrowser(cfg.Browser, inject.Options{
			TypingDelay:       cfg.Analysis.TypingDelay,
			HighlightDuration: cfg.Analysis.HighlightDuration,
			FillDelay:         cfg.Analysis.FillDelay,
		}, logger)
		if err != nil {
			logger.Warn("Failed to start browser, injection disabled", zap.Error(err))
		} else {
			defer browser.Close()
			deps.Injector = browser
			deps.PageSource = browser
			logger.Info("Browser started", zap.Bool("headless", cfg.Browser.Headless))
		}
	}

	svc := autofill.NewService(autofill.Config{
		MaxModelChars:  cfg.Analysis.MaxModelChars,
		NamePrecedence: profile.ParsePrecedence(cfg.Analysis.NamePrecedence),
	}, deps, logger)

	dispatcher := channel.NewDispatcher(logger)
	channel.Bind(dispatcher, svc, st)

	var limiter middleware.Limiter = middleware.NewLocalLimiter()
	if cache != nil {
		limiter = cache
	}
	rateLimit := 0
	if cfg.RateLimits.Enabled {
		rateLimit = cfg.RateLimits.RequestsPerMin
	}

	router := api.NewRouter(api.RouterConfig{
		Dispatcher:     dispatcher,
		Store:          st,
		Guard:          api.NewPageGuard(cfg.Analysis.Cooldown),
		Limiter:        limiter,
		RateLimit:      rateLimit,
		Metrics:        metrics,
		Checks:         checks,
		Logger:         logger,
		EnableCORS:     cfg.Security.CORSEnabled,
		AllowedOrigins: cfg.Security.CORSAllowedOrigins,
		RequestTimeout: cfg.Server.WriteTimeout - 5*time.Second,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      http.MaxBytesHandler(router, cfg.Server.MaxRequestSize),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening", zap.String("addr", addr))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal("Server error", zap.Error(err))

	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed, forcing close", zap.Error(err))
			server.Close()
		}

		// let in-flight async operations finish before the store closes
		dispatcher.Wait()
		logger.Info("Server stopped gracefully")
	}
}

// initLogger creates a configured zap logger
func initLogger(env config.Environment, level string) *zap.Logger {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	var cfg zap.Config
	if env == config.EnvProduction {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

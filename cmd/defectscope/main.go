package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/defectscope/defectscope/internal/config"
	dbRedis "github.com/defectscope/defectscope/internal/db/redis"
	"github.com/defectscope/defectscope/internal/domain"
	logpkg "github.com/defectscope/defectscope/internal/logger"
	"github.com/defectscope/defectscope/internal/metrics"
	"github.com/defectscope/defectscope/internal/repository/complaints"
	"github.com/defectscope/defectscope/internal/repository/embcache"
	sessionrepo "github.com/defectscope/defectscope/internal/repository/session"
	chiTransport "github.com/defectscope/defectscope/internal/transport/chi"
	natsTransport "github.com/defectscope/defectscope/internal/transport/nats"
	"github.com/defectscope/defectscope/internal/transport/nhtsa"
	openaiEmb "github.com/defectscope/defectscope/internal/transport/openai"
	embeddinguc "github.com/defectscope/defectscope/internal/usecase/embedding"
	healthuc "github.com/defectscope/defectscope/internal/usecase/health"
	indexuc "github.com/defectscope/defectscope/internal/usecase/index"
	searchuc "github.com/defectscope/defectscope/internal/usecase/search"
	sessionuc "github.com/defectscope/defectscope/internal/usecase/session"
	"github.com/defectscope/defectscope/internal/version"
)

const serviceName = "defectscope"

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(logpkg.Config{
		Env:     env,
		Level:   cfg.Logging.Level,
		Service: serviceName,
		Version: version.Version,
	})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting defectscope API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("snapshot", cfg.Dataset.SnapshotPath),
	)

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterAnalysisMetrics()

	ctx := context.Background()

	var store *dbRedis.Store
	if cfg.UsesRedis() {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:       cfg.Database.Addrs,
			Username:    cfg.Database.Username,
			Password:    cfg.Database.Password,
			DB:          cfg.Database.DB,
			ClientName:  "defectscope-" + version.Version,
			DialTimeout: time.Duration(cfg.Database.DialTimeout) * time.Second,
			Standalone:  cfg.Database.Standalone,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))
	}

	snapshot, err := complaints.Open(cfg.Dataset.SnapshotPath, logger)
	if err != nil {
		logger.Fatal("Failed to load complaint snapshot", zap.Error(err))
	}

	embedder := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("max_input_chars", cfg.Embedding.MaxInputChars),
		zap.Bool("cache", cfg.Embedding.Cache.Enabled),
	)

	nhtsaClient := nhtsa.New(nhtsa.Config{
		VPICBaseURL:    cfg.NHTSA.VPICBaseURL,
		RecallsBaseURL: cfg.NHTSA.RecallsBaseURL,
		Timeout:        time.Duration(cfg.NHTSA.TimeoutSec) * time.Second,
		RatePerSec:     cfg.NHTSA.RatePerSec,
		Burst:          cfg.NHTSA.Burst,
		MaxAttempts:    cfg.NHTSA.MaxAttempts,
		Logger:         logger,
	})

	events, err := natsTransport.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer events.Close()

	// Interfaces stay nil, not typed nil pointers, when Redis is off.
	var (
		sessions    sessionuc.Repository
		storePinger healthuc.Pinger
	)
	if store != nil {
		sessions = sessionrepo.New(store, cfg.Storage.KeyPrefix, cfg.SessionTTL())
		storePinger = store
	} else {
		sessions = sessionrepo.NewMemory(cfg.SessionTTL())
	}

	builder := indexuc.New(embedder, indexuc.Config{
		Workers:     cfg.Embedding.Workers,
		RatePerSec:  cfg.Embedding.RatePerSec,
		Burst:       cfg.Embedding.Burst,
		CallTimeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
	}, logger)
	searchSvc := searchuc.New(embedder, cfg.Search.DefaultK)
	sessionSvc := sessionuc.New(sessions, snapshot, nhtsaClient, nhtsaClient, builder, searchSvc, events, logger)
	healthSvc := healthuc.New(snapshot, storePinger, embedder)

	server := chiTransport.NewServer(sessionSvc, nhtsaClient, healthSvc, chiTransport.Options{
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		MaxK:         cfg.Search.MaxK,
	}, logger)
	router := chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Truncating -> Instrumented.
// Truncation sits above the cache so keys are computed on the text actually embedded.
func buildEmbedder(cfg config.Config, store *dbRedis.Store, logger *zap.Logger) *embeddinguc.InstrumentedEmbedder {
	ec := cfg.Embedding

	var embedder domain.Embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Logger:     logger,
	})

	if ec.Cache.Enabled && store != nil {
		embedder = embcache.New(embedder, store, embcache.Options{
			KeyPrefix:   cfg.Storage.KeyPrefix,
			Model:       ec.Model,
			TTL:         time.Duration(ec.Cache.TTLHours) * time.Hour,
			Lookups:     metrics.EmbeddingCacheTotal,
			CallTimeout: time.Duration(ec.TimeoutSec) * time.Second,
		}, logger)
	}

	embedder = domain.NewTruncatingEmbedder(embedder, ec.MaxInputChars)

	return embeddinguc.NewInstrumentedEmbedder(embedder, embeddinguc.Settings{
		Provider:      ec.Provider,
		Model:         ec.Model,
		MaxInputChars: ec.MaxInputChars,
	}, logger)
}

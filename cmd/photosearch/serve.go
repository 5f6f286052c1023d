package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openglam/photosearch/internal/config"
	dbRedis "github.com/openglam/photosearch/internal/db/redis"
	"github.com/openglam/photosearch/internal/domain"
	logpkg "github.com/openglam/photosearch/internal/logger"
	"github.com/openglam/photosearch/internal/metrics"
	"github.com/openglam/photosearch/internal/repository/embcache"
	qdrantrepo "github.com/openglam/photosearch/internal/repository/qdrant"
	chiTransport "github.com/openglam/photosearch/internal/transport/chi"
	"github.com/openglam/photosearch/internal/transport/inference"
	healthuc "github.com/openglam/photosearch/internal/usecase/health"
	searchuc "github.com/openglam/photosearch/internal/usecase/search"
	"github.com/openglam/photosearch/internal/version"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the IIIF Content Search API server",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting photosearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("qdrant_host", cfg.Qdrant.Host),
		zap.String("embedding_base_url", cfg.Embedding.BaseURL),
	)

	// Register embedding metrics explicitly (no init())
	metrics.Register()

	store, err := qdrantrepo.NewStore(qdrantrepo.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     cfg.Qdrant.UseTLS,
		Dimensions: cfg.Qdrant.Dimensions,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect to qdrant: %w", err)
	}
	defer store.Close()

	embClient := inference.NewClient(&inference.Config{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
		Model:   cfg.Embedding.Model,
		Timeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	// Optional query-embedding cache in front of the inference server.
	var queryEmbedder domain.TextEmbedder = embClient
	var cachePinger healthuc.CachePinger
	if len(cfg.Cache.Addrs) > 0 {
		cacheStore, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			return fmt.Errorf("connect to cache: %w", err)
		}
		defer cacheStore.Close()

		ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
		queryEmbedder = embcache.New(
			embClient, cacheStore, cfg.Embedding.Model, ttl, metrics.EmbeddingCacheTotal, logger,
		)
		cachePinger = cacheStore
		logger.Info("Query embedding cache enabled", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	searchSvc := searchuc.New(queryEmbedder, store, qdrantrepo.CollectionName, logger)
	healthSvc := healthuc.New(store, embClient, cachePinger)

	server := chiTransport.NewServer(
		searchSvc, healthSvc, cfg.HTTP.PublicBaseURL, cfg.Auth.APIKeys, logger,
	)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-quit:
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

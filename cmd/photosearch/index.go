package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openglam/photosearch/internal/config"
	logpkg "github.com/openglam/photosearch/internal/logger"
	"github.com/openglam/photosearch/internal/manifest"
	"github.com/openglam/photosearch/internal/metrics"
	qdrantrepo "github.com/openglam/photosearch/internal/repository/qdrant"
	"github.com/openglam/photosearch/internal/transport/inference"
	indexinguc "github.com/openglam/photosearch/internal/usecase/indexing"
)

type indexCommander struct {
	output string
}

func newIndexCmd() *cobra.Command {
	cmder := &indexCommander{}

	cmd := &cobra.Command{
		Use:   "index <manifest.json>",
		Short: "Index a manifest's photograph regions",
		Long: `Index reads a IIIF manifest, embeds every photograph region, writes the
vectors into the index, and emits the manifest with its search service
descriptor attached.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return cmder.run(args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.output, "output", "o", "",
		"Path for the annotated manifest (default: stdout)")

	return cmd
}

func (c *indexCommander) run(path string) error {
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

	metrics.Register()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	doc, err := manifest.Parse(data)
	if err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}

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

	svc := indexinguc.New(
		manifest.NewExtractor(cfg.Indexing.Marker),
		embClient, store, qdrantrepo.CollectionName,
		cfg.HTTP.PublicBaseURL,
		logger,
	).
		WithConcurrency(cfg.Indexing.Concurrency).
		WithRetry(cfg.Indexing.RetryAttempts,
			time.Duration(cfg.Indexing.RetryBackoffMs)*time.Millisecond).
		WithMaxFailureFraction(cfg.Indexing.MaxFailureFraction)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := svc.Run(ctx, doc)
	if err != nil {
		return fmt.Errorf("index %s: %w", report.ManifestID, err)
	}

	out, err := doc.Bytes()
	if err != nil {
		return fmt.Errorf("serialize manifest: %w", err)
	}
	if c.output == "" {
		fmt.Println(string(out))
	} else if err := os.WriteFile(c.output, out, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	logger.Info("Manifest indexed",
		zap.String("manifest_id", report.ManifestID),
		zap.Int("attempted", report.Attempted),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return nil
}

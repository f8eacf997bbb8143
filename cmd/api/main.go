package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/chromatone/backend/internal/adapters/blobstore"
	"github.com/ewilliams-labs/chromatone/backend/internal/adapters/imaging"
	"github.com/ewilliams-labs/chromatone/backend/internal/adapters/rest"
	"github.com/ewilliams-labs/chromatone/backend/internal/adapters/sqlite"
	"github.com/ewilliams-labs/chromatone/backend/internal/config"
	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
	"github.com/ewilliams-labs/chromatone/backend/internal/core/ports"
	"github.com/ewilliams-labs/chromatone/backend/internal/core/services"
	"github.com/ewilliams-labs/chromatone/backend/internal/core/synth"
	"github.com/ewilliams-labs/chromatone/backend/internal/logging"
	"github.com/ewilliams-labs/chromatone/backend/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

func run() error {
	// 1. Configuration (Environment Variables)
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize "Driven" Adapters (The Tools)
	// -- Waveform storage
	var store ports.WaveformStore
	switch cfg.StorageDriver {
	case config.DriverLocal:
		local, err := blobstore.NewLocal(cfg.AudioDir)
		if err != nil {
			return fmt.Errorf("failed to initialize audio dir: %w", err)
		}
		store = local
	case config.DriverS3:
		cli, err := blobstore.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize s3 client: %w", err)
		}
		remote, err := blobstore.NewS3(cli, cfg.S3.Bucket, cfg.S3.Prefix)
		if err != nil {
			return err
		}
		store = remote
	default:
		return fmt.Errorf("unknown storage driver: %s", cfg.StorageDriver)
	}

	// -- Database Adapter
	db, err := sqlite.NewAdapter(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// -- Palette extraction
	extractor := imaging.NewExtractor(cfg.PaletteMethod, cfg.MaxImagePixels, logger.Named("imaging"))

	// 3. Initialize Core Logic (The Driver)
	classifier, err := domain.NewClassifier(domain.DefaultPalette(), cfg.MatchThreshold, cfg.BlendPolicy)
	if err != nil {
		return err
	}
	synthesizer, err := synth.New(synth.DefaultOptions())
	if err != nil {
		return err
	}
	svc := services.NewOrchestrator(
		extractor,
		classifier,
		synthesizer,
		store,
		db,
		services.Options{Colors: cfg.Colors, TTL: cfg.AudioTTL},
		logger.Named("service"),
	)

	// -- Expiry sweeping
	pool := worker.NewPool(store, db, cfg.QueueSize, logger.Named("worker"))
	pool.Start(cfg.Workers)
	defer pool.Stop()

	sweeperCtx, cancelSweeper := context.WithCancel(ctx)
	defer cancelSweeper()
	if cfg.AudioTTL > 0 {
		sweeper := worker.NewSweeper(db, pool, logger.Named("sweeper"))
		go sweeper.Run(sweeperCtx, cfg.SweepInterval)
	}

	// 4. Initialize "Driving" Adapter (The Interface)
	handler := rest.NewHandler(svc, cfg.MaxUploadBytes, logger.Named("http"))

	// 5. Start the Server
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	logger.Info("chromatone api listening",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.StorageDriver),
		zap.String("palette_method", string(cfg.PaletteMethod)),
		zap.String("blend_policy", string(cfg.BlendPolicy)),
		zap.Int("colors", cfg.Colors),
	)

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down server")
		cancelSweeper()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
	}
	return nil
}

package main

import (
	"context"
	"dedupstore/internal/commands"
	"dedupstore/internal/config"
	"dedupstore/internal/filestore"
	"dedupstore/internal/files"
	"dedupstore/internal/http"
	"dedupstore/internal/storage"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	oshttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// openIndex opens the configured metadata index. The returned closer releases it.
func openIndex(ctx context.Context, cfg *config.Config) (storage.IndexLister, io.Closer, error) {
	var (
		index  storage.IndexLister
		closer io.Closer
	)
	switch cfg.IndexBackend {
	case config.BackendPostgres:
		pg, err := storage.NewPostgresStorage(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		index, closer = pg, pg
	default:
		bb, err := storage.NewBboltStorage(cfg.DBFile)
		if err != nil {
			return nil, nil, err
		}
		index, closer = bb, bb
	}

	if cfg.CacheTTL > 0 {
		index = storage.NewCachedIndex(ctx, index, cfg.CacheTTL)
	}
	return index, closer, nil
}

func run(ctx context.Context, args []string) error {
	cfg, flags, err := config.Parse(args)
	if err != nil {
		return err
	}

	if flags.Audit {
		return commands.Audit(cfg, os.Stdout)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	index, closer, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	blobs, err := filestore.NewLocalFileStore(cfg.UploadsPath)
	if err != nil {
		return err
	}

	if cfg.SpoolPath != "" {
		if err := os.MkdirAll(cfg.SpoolPath, 0755); err != nil {
			return fmt.Errorf("failed to create spool directory: %w", err)
		}
	}

	fileService := files.NewFileService(index, blobs, files.Config{
		SpoolDir: cfg.SpoolPath,
		Logger:   logger,
	})

	adminServer := http.NewAdminServer(fileService, cfg.AdminAddr)
	apiServer := http.NewAPIServer(fileService, http.APIConfig{
		Addr:           cfg.APIAddr,
		MaxUploadBytes: cfg.MaxUploadBytes,
		CORSOrigins:    cfg.CORSOrigins,
	})

	g, gCtx := errgroup.WithContext(ctx)

	// Start Admin Server
	g.Go(func() error {
		err := adminServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	// Start API Server
	g.Go(func() error {
		err := apiServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	// Wait for context cancellation (signal)
	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Admin server shutdown error: %v", err)
		}
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}

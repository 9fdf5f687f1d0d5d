package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/guessucla/campusguess/internal/database"
	"github.com/guessucla/campusguess/internal/imagestore"
	"github.com/guessucla/campusguess/internal/importer"
	"github.com/guessucla/campusguess/internal/server"
)

const (
	releaseVersion = "0.1.0"

	// importTimeout bounds a whole run, uploads included.
	importTimeout = 30 * time.Minute
)

func main() {
	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newLogger(cfg *Config) *slog.Logger {
	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func openStore(ctx context.Context, cfg *Config) (*server.DocStore, func() error, error) {
	db, err := database.Open(ctx, cfg.dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to sqlite: %w", err)
	}
	store, err := server.NewDocStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("initializing store: %w", err)
	}
	return store, db.Close, nil
}

func importLocations(ctx context.Context, cfg *Config, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, importTimeout)
	defer cancel()
	logger := newLogger(cfg)

	entries, err := importer.LoadManifest(cfg.manifest)
	if err != nil {
		return err
	}

	store, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	var up importer.Uploader
	if cfg.s3Enabled() {
		is, err := imagestore.New(imagestore.Config{
			Bucket:          cfg.s3Bucket,
			Endpoint:        cfg.s3Endpoint,
			Region:          cfg.s3Region,
			AccessKeyID:     cfg.s3AccessKey,
			SecretAccessKey: cfg.s3SecretKey,
		})
		if err != nil {
			return fmt.Errorf("configuring image storage: %w", err)
		}
		up = is
	} else {
		logger.Warn("no s3 bucket configured, skipping photos")
	}

	sum, err := importer.New(store, up, cfg.imagesDir, logger).Run(ctx, entries)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "imported %d locations (%d photos uploaded, %d skipped)\n", sum.Imported, sum.Uploaded, sum.Failed)
	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d locations failed", sum.Failed, len(entries))
	}
	return nil
}

func countLocations(ctx context.Context, cfg *Config, out io.Writer) error {
	store, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	n, err := store.LocationCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, n)
	return nil
}

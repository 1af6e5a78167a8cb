// Package backfill wires configuration, storage, and tracing for the
// one-shot backfill job.
package backfill

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	platformconfig "github.com/louisbranch/leasehold/internal/platform/config"
	platformotel "github.com/louisbranch/leasehold/internal/platform/otel"
	"github.com/louisbranch/leasehold/internal/tenancy/backfill"
	"github.com/louisbranch/leasehold/internal/tenancy/storage/sqlite"
)

// Config holds backfill command configuration.
type Config struct {
	DBPath   string `env:"LEASEHOLD_DB_PATH" envDefault:"leasehold.db"`
	PageSize int    `env:"LEASEHOLD_BACKFILL_PAGE_SIZE" envDefault:"100"`
	DryRun   bool
}

// ParseConfig reads env then flags; flags win.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformconfig.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the sqlite database")
	fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "owners per page")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "report drift without writing")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.DBPath) == "" {
		return Config{}, fmt.Errorf("database path is required")
	}
	if cfg.PageSize <= 0 {
		return Config{}, fmt.Errorf("page size must be positive")
	}
	return cfg, nil
}

// Run executes one backfill sweep and returns an error when any owner failed.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := platformotel.Setup(ctx, "leasehold-backfill")
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
	}()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	runner := backfill.New(store, log.Default(), backfill.Config{
		PageSize: cfg.PageSize,
		DryRun:   cfg.DryRun,
	})
	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if summary.OwnersFailed > 0 {
		return fmt.Errorf("%d owners failed", summary.OwnersFailed)
	}
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/trainctx/internal/config"
	"github.com/claude/trainctx/internal/ingest"
	"github.com/claude/trainctx/internal/ingest/alpha"
	"github.com/claude/trainctx/internal/logging"
	"github.com/claude/trainctx/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	csvPath := flag.String("file", "", "path to Alpha Progression CSV export (required)")
	userID := flag.String("user", "", "user id to import into (required)")
	dryRun := flag.Bool("dry-run", false, "report counts without writing to the database")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if *csvPath == "" || *userID == "" {
		fmt.Fprintf(os.Stderr, "Usage: trainctx-import -config config.yaml -user USER -file export.csv [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Error("cannot open export", "path", *csvPath, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logging.ParseLevel(cfg.Log.Level)}))

	dsn := cfg.Database.DSN()

	// Run migrations
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx := context.Background()

	if *dryRun {
		log.Info("DRY RUN mode, no data will be written to the database")
	}

	// Connect database
	db, err := storage.New(ctx, dsn, log)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	res, err := alpha.NewProvider(db, log, nil).DryRun(*dryRun).Ingest(ctx, f, *userID)
	if err != nil {
		log.Error("import failed", "error", err)
		if res != nil {
			printStats(log, res)
		}
		os.Exit(1)
	}

	printStats(log, res)
	log.Info("import complete")
}

func printStats(log *slog.Logger, res *ingest.Result) {
	log.Info("import stats",
		"workouts_received", res.WorkoutsReceived,
		"workouts_inserted", res.WorkoutsInserted,
		"workouts_skipped", res.WorkoutsSkipped,
		"sets_received", res.SetsReceived,
		"sets_inserted", res.SetsInserted,
	)
}

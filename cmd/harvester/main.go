// Command harvester runs one named cursor's signature-harvesting loop
// against a single Solana program until cancelled (direction=UP) or until
// the cursor's history is exhausted (direction=DOWN).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rogue-hub/marketplace-indexer/internal/config"
	"github.com/rogue-hub/marketplace-indexer/internal/harvester"
	"github.com/rogue-hub/marketplace-indexer/internal/rpcclient"
	"github.com/rogue-hub/marketplace-indexer/internal/store"
	"github.com/rogue-hub/marketplace-indexer/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("load config", "error", err)
	}

	log := logging.New(&logging.Config{Level: cfg.LogLevel, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("harvester %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	if err := cfg.RequireIndexerName(); err != nil {
		log.Fatal("config", "error", err)
	}

	time.Sleep(cfg.StartupDelay)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open store", "error", err)
	}
	defer st.Close()

	cursor, err := st.GetCursor(ctx, cfg.IndexerName)
	if err != nil {
		log.Fatal("load cursor", "name", cfg.IndexerName, "error", err)
	}

	program, err := solana.PublicKeyFromBase58(cursor.ProgramID)
	if err != nil {
		log.Fatal("parse program id", "program_id", cursor.ProgramID, "error", err)
	}

	rc := rpcclient.New(cfg.RPCURL)
	h := harvester.New(st, rc, cfg.IndexerName, program)

	log.Info("harvester starting", "cursor", cfg.IndexerName, "program_id", cursor.ProgramID, "direction", cursor.Direction)

	if err := h.Run(ctx); err != nil {
		if ctx.Err() != nil {
			log.Info("harvester stopped", "reason", ctx.Err())
			return
		}
		log.Fatal("harvester stopped with error", "error", err)
	}

	log.Info("harvester finished")
}

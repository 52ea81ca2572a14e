// Command decoder polls a single marketplace program's unprocessed
// signatures, decodes their exchange instructions, and persists the
// resulting trades. It polls until cancelled; --signature first decodes that
// one signature once, after which polling continues as usual.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rogue-hub/marketplace-indexer/internal/config"
	"github.com/rogue-hub/marketplace-indexer/internal/decoder"
	"github.com/rogue-hub/marketplace-indexer/internal/rpcclient"
	"github.com/rogue-hub/marketplace-indexer/internal/store"
	"github.com/rogue-hub/marketplace-indexer/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		signature   = flag.String("signature", "", "Decode a single base58 signature once, then continue polling")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("load config", "error", err)
	}

	log := logging.New(&logging.Config{Level: cfg.LogLevel, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("decoder %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	if err := cfg.RequireProgramID(); err != nil {
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

	rc := rpcclient.New(cfg.RPCURL)
	d := decoder.New(st, rc, cfg.ProgramID)

	if *signature != "" {
		log.Info("decoding single signature", "signature", *signature)
		if err := d.ProcessSignature(ctx, *signature); err != nil {
			log.Fatal("decode signature failed", "signature", *signature, "error", err)
		}
	}

	log.Info("decoder starting", "program_id", cfg.ProgramID)

	if err := d.Run(ctx); err != nil {
		if ctx.Err() != nil {
			log.Info("decoder stopped", "reason", ctx.Err())
			return
		}
		log.Fatal("decoder stopped with error", "error", err)
	}
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/ecotogether/internal/adapters/repository"
	"github.com/okian/ecotogether/internal/config"
	"github.com/okian/ecotogether/internal/ledgercheck"
	"github.com/okian/ecotogether/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}

	var (
		driver  = flag.String("driver", cfg.DBDriver, "Ledger driver: sqlite or postgres")
		dsn     = flag.String("dsn", cfg.DBDSN, "Ledger DSN")
		awards  = flag.Int("awards", ledgercheck.DefaultAwards, "Awards per user")
		users   = flag.Int("users", ledgercheck.DefaultUsers, "Distinct users written concurrently")
		workers = flag.Int("workers", ledgercheck.DefaultWorkers, "Concurrent award calls")
		prefix  = flag.String("prefix", "check", "Username prefix")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		ledgercheck.ShowHelp()
		return 0
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	log := logger.Get()

	ledger, err := repository.Open(ctx, *driver, *dsn, repository.WithLogger(log.Named("ledger")))
	if err != nil {
		log.Error(ctx, "open ledger", logger.Error(err))
		return 1
	}
	defer func() { _ = ledger.Close() }()

	if err := ledger.Migrate(ctx); err != nil {
		log.Error(ctx, "migrate ledger", logger.Error(err))
		return 1
	}

	rep, err := ledgercheck.Run(ctx, ledger, ledgercheck.Config{
		Awards:  *awards,
		Users:   *users,
		Workers: *workers,
		Prefix:  *prefix,
	})
	if err != nil {
		log.Error(ctx, "ledger check failed",
			logger.Int("awards", rep.Awards),
			logger.Int("failed", rep.Failed),
			logger.Error(err))
		return 1
	}
	return 0
}

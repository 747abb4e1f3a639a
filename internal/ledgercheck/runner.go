package ledgercheck

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/ecotogether/internal/adapters/repository"
	"github.com/okian/ecotogether/pkg/logger"
)

// Run awards one point Awards times to each of Users fresh usernames with
// Workers calls in flight, then checks every balance and history length.
func Run(ctx context.Context, ledger repository.Ledger, cfg Config) (Report, error) {
	if err := cfg.normalize(); err != nil {
		return Report{}, err
	}
	log := logger.Get()

	run := uuid.NewString()[:8]
	users := make([]string, cfg.Users)
	for i := range users {
		users[i] = fmt.Sprintf("%s-%s-%d", cfg.Prefix, run, i)
	}

	log.Info(ctx, "starting ledger check",
		logger.Int("awards", cfg.Awards),
		logger.Int("users", cfg.Users),
		logger.Int("workers", cfg.Workers),
		logger.String("run", run))

	var failed atomic.Int64
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Awards; i++ {
		for _, u := range users {
			g.Go(func() error {
				if _, err := ledger.Award(gctx, u, 1, cfg.Reason); err != nil {
					failed.Add(1)
					if errors.Is(err, context.Canceled) {
						return err
					}
					log.Warn(gctx, "award failed", logger.String("username", u), logger.Error(err))
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("award phase: %w", err)
	}

	rep := Report{
		Users:    users,
		Awards:   cfg.Awards * cfg.Users,
		Failed:   int(failed.Load()),
		Duration: time.Since(start),
	}
	if rep.Duration > 0 {
		rep.AwardsPerSec = float64(rep.Awards) / rep.Duration.Seconds()
	}

	if err := verify(ctx, ledger, users, int64(cfg.Awards)); err != nil {
		return rep, err
	}
	if rep.Failed > 0 {
		return rep, fmt.Errorf("%w: %d awards failed", ErrMismatch, rep.Failed)
	}

	log.Info(ctx, "ledger check passed",
		logger.Int("awards", rep.Awards),
		logger.Duration("duration", rep.Duration),
		logger.Float64("awardsPerSec", rep.AwardsPerSec))
	return rep, nil
}

// verify checks that each user's balance and history both equal want.
func verify(ctx context.Context, ledger repository.Ledger, users []string, want int64) error {
	var errs []error
	for _, u := range users {
		balance, err := ledger.Balance(ctx, u)
		if err != nil {
			return fmt.Errorf("balance %s: %w", u, err)
		}
		txs, err := ledger.History(ctx, u, 0)
		if err != nil {
			return fmt.Errorf("history %s: %w", u, err)
		}
		if balance != want {
			errs = append(errs, fmt.Errorf("%w: %s balance %d, want %d", ErrMismatch, u, balance, want))
		}
		if int64(len(txs)) != want {
			errs = append(errs, fmt.Errorf("%w: %s has %d transactions, want %d", ErrMismatch, u, len(txs), want))
		}
	}
	return errors.Join(errs...)
}

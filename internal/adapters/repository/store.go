// Package repository implements the point ledger: a per-user balance plus an
// append-only transaction log.
package repository

import (
	"context"

	"github.com/okian/ecotogether/internal/domain/model"
)

// Ledger provides read/write access to balances and their audit log.
type Ledger interface {
	// Balance returns the user's points, or 0 for an unknown username.
	Balance(ctx context.Context, username string) (int64, error)

	// Award atomically creates or increments the user's balance and appends
	// one transaction row. It returns the resulting balance.
	// Returns ErrNonPositiveAward when points <= 0.
	Award(ctx context.Context, username string, points int64, reason string) (int64, error)

	// History returns the user's transactions oldest first. A positive limit
	// keeps only the most recent rows.
	History(ctx context.Context, username string, limit int) ([]model.Transaction, error)

	// Stats summarizes the ledger.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// Stats is a ledger-wide summary.
type Stats struct {
	Users        int64 `json:"users" db:"users"`
	Transactions int64 `json:"transactions" db:"transactions"`
	TotalPoints  int64 `json:"total_points" db:"total_points"`
}

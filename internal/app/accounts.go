package service

import (
	"context"
	"io"

	"github.com/okian/ecotogether/internal/adapters/export"
	"github.com/okian/ecotogether/internal/domain/model"
)

// BalanceView is a user's balance plus reward progress.
type BalanceView struct {
	Username        string `json:"username"`
	Points          int64  `json:"points"`
	RewardThreshold int64  `json:"reward_threshold"`
	RewardEligible  bool   `json:"reward_eligible"`
	PointsToReward  int64  `json:"points_to_reward"`
}

// Balance returns the user's balance. Unknown users have zero points.
func (s *Service) Balance(ctx context.Context, username string) (BalanceView, error) {
	if !s.isStarted() {
		return BalanceView{}, ErrNotStarted
	}
	if username == "" {
		return BalanceView{}, ErrInvalidUsername
	}
	points, err := s.ledger.Balance(ctx, username)
	if err != nil {
		return BalanceView{}, err
	}
	v := BalanceView{
		Username:        username,
		Points:          points,
		RewardThreshold: s.rewardThreshold,
		RewardEligible:  points >= s.rewardThreshold,
	}
	if !v.RewardEligible {
		v.PointsToReward = s.rewardThreshold - points
	}
	return v, nil
}

// History returns the user's transactions oldest first. A positive limit keeps
// the most recent rows only.
func (s *Service) History(ctx context.Context, username string, limit int) ([]model.Transaction, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	if username == "" {
		return nil, ErrInvalidUsername
	}
	return s.ledger.History(ctx, username, limit)
}

// ExportTransactions writes the user's full history as an xlsx workbook.
func (s *Service) ExportTransactions(ctx context.Context, w io.Writer, username string) error {
	txs, err := s.History(ctx, username, 0)
	if err != nil {
		return err
	}
	balance, err := s.ledger.Balance(ctx, username)
	if err != nil {
		return err
	}
	return export.WriteTransactions(w, username, balance, txs)
}

// GetStats returns service statistics.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          started,
		"reward_threshold": s.rewardThreshold,
	}
	if !started {
		return stats
	}
	stats["pending_evaluations"] = s.pending.Len()
	stats["confirmed_evaluations"] = s.deduper.Size()

	ls, err := s.ledger.Stats(ctx)
	if err != nil {
		stats["ledger_error"] = err.Error()
		return stats
	}
	stats["users"] = ls.Users
	stats["transactions"] = ls.Transactions
	stats["total_points"] = ls.TotalPoints
	return stats
}

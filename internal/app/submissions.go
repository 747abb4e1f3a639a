package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/ecotogether/internal/domain/model"
	"github.com/okian/ecotogether/internal/domain/scoring"
	"github.com/okian/ecotogether/pkg/logger"
	"github.com/okian/ecotogether/pkg/metrics"
)

// Confirmation is the outcome of a successful Confirm.
type Confirmation struct {
	EvaluationID string `json:"evaluation_id"`
	Username     string `json:"username"`
	Awarded      int64  `json:"awarded"`
	Balance      int64  `json:"balance"`
}

// Evaluate runs the capture check, classifier and motion check over a
// submission and scores it. Nothing is written to the ledger; the result is
// held for Confirm until it expires.
func (s *Service) Evaluate(ctx context.Context, sub model.Submission) (model.Evaluation, error) {
	if !s.isStarted() {
		return model.Evaluation{}, ErrNotStarted
	}
	if sub.Username == "" {
		return model.Evaluation{}, ErrInvalidUsername
	}
	if !sub.HasPhoto() && !sub.HasVideo() {
		return model.Evaluation{}, ErrNoMedia
	}

	start := s.now()
	ev := model.Evaluation{
		ID:            s.newID(),
		Username:      sub.Username,
		PhotoSupplied: sub.HasPhoto(),
		VideoSupplied: sub.HasVideo(),
		CreatedAt:     start.UTC(),
	}

	in := scoring.Input{}
	if ev.PhotoSupplied {
		ev.FromCamera = s.capture.IsFromCamera(ctx, sub.Photo)
		in.FromCamera = ev.FromCamera
		if !ev.FromCamera {
			ev.Messages = append(ev.Messages, "photo has no camera metadata")
		} else {
			res, err := s.classifier.ClassifyBytes(ctx, sub.Photo)
			if err != nil {
				s.logger.Warn(ctx, "classify photo",
					logger.String("evaluation", ev.ID),
					logger.Error(err),
				)
				ev.Messages = append(ev.Messages, "photo could not be classified")
			} else {
				ev.Classification = &res
				in.Confidence = res.Confidence
			}
		}
	} else {
		ev.Messages = append(ev.Messages, "no photo supplied")
	}

	if ev.VideoSupplied {
		v := s.motion.Verify(ctx, sub.Video)
		ev.Motion = &v
		in.MotionValid = v.IsValid
		if v.IsValid {
			ev.Messages = append(ev.Messages, fmt.Sprintf("motion detected (score %d)", v.MotionScore))
		} else {
			ev.Messages = append(ev.Messages, "no motion detected in video")
		}
	} else {
		ev.Messages = append(ev.Messages, "no video supplied")
	}

	ev.Decision = s.scorer.Score(in)
	ev.Messages = append(ev.Messages, decisionMessages(ev)...)

	s.pending.Add(ev.ID, ev)

	metrics.RecordSubmissionEvaluated(float64(time.Since(start).Microseconds()) / 1000.0)
	metrics.RecordDecision(ev.Decision.TotalPoints)
	metrics.UpdatePendingEvaluations(s.pending.Len())

	s.logger.Debug(ctx, "submission evaluated",
		logger.String("evaluation", ev.ID),
		logger.String("username", ev.Username),
		logger.Bool("fromCamera", ev.FromCamera),
		logger.Int("points", ev.Decision.TotalPoints),
	)
	return ev, nil
}

func decisionMessages(ev model.Evaluation) []string {
	var out []string
	d := ev.Decision
	if c := ev.Classification; c != nil {
		if d.PhotoPoints > 0 {
			out = append(out, fmt.Sprintf("photo accepted as %s (%.1f%% confidence)", c.Label, c.Confidence))
		} else {
			out = append(out, fmt.Sprintf("classifier confidence %.1f%% is too low", c.Confidence))
		}
	}
	if d.PhotoPoints > 0 && d.VideoPoints > 0 && d.TotalPoints > d.PhotoPoints+d.VideoPoints {
		out = append(out, "photo and video combo bonus applied")
	}
	if d.Awardable() {
		out = append(out, fmt.Sprintf("%d points available to confirm", d.TotalPoints))
	} else {
		out = append(out, "no points earned")
	}
	return out
}

// Confirm awards the points of a pending evaluation exactly once. A paid
// evaluation leaves the pending set; confirming it again yields
// ErrAlreadyConfirmed while its id is still remembered and
// ErrEvaluationNotFound after that.
func (s *Service) Confirm(ctx context.Context, id, reason string) (Confirmation, error) {
	if !s.isStarted() {
		return Confirmation{}, ErrNotStarted
	}
	ev, ok := s.pending.Get(id)
	if !ok {
		if s.deduper.Seen(ctx, id) {
			metrics.RecordConfirmDuplicate()
			return Confirmation{}, ErrAlreadyConfirmed
		}
		return Confirmation{}, ErrEvaluationNotFound
	}
	if !ev.Decision.Awardable() {
		return Confirmation{}, ErrNotEligible
	}
	if s.deduper.SeenAndRecord(ctx, id) {
		metrics.RecordConfirmDuplicate()
		return Confirmation{}, ErrAlreadyConfirmed
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultReason
	}

	balance, err := s.ledger.Award(ctx, ev.Username, int64(ev.Decision.TotalPoints), reason)
	if err != nil {
		// Free the id so the client can retry.
		s.deduper.Unrecord(ctx, id)
		s.report(ctx, err, map[string]string{"component": "ledger", "op": "award"})
		s.logger.Error(ctx, "award points",
			logger.String("evaluation", id),
			logger.String("username", ev.Username),
			logger.Error(err),
		)
		return Confirmation{}, fmt.Errorf("%w: %w", ErrAwardNotRecorded, err)
	}

	// A paid evaluation must not outlive its dedupe entry.
	s.pending.Remove(id)
	metrics.UpdatePendingEvaluations(s.pending.Len())
	metrics.RecordAward(ev.Decision.TotalPoints)
	s.logger.Info(ctx, "points awarded",
		logger.String("evaluation", id),
		logger.String("username", ev.Username),
		logger.Int("points", ev.Decision.TotalPoints),
		logger.Int64("balance", balance),
	)
	return Confirmation{
		EvaluationID: id,
		Username:     ev.Username,
		Awarded:      int64(ev.Decision.TotalPoints),
		Balance:      balance,
	}, nil
}

// Evaluation returns a pending evaluation by id.
func (s *Service) Evaluation(id string) (model.Evaluation, bool) {
	if !s.isStarted() {
		return model.Evaluation{}, false
	}
	return s.pending.Get(id)
}

// Package service provides the submission service behind the HTTP API:
// evaluate a photo and video, confirm the award, and read balances back.
package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/okian/ecotogether/internal/adapters/repository"
	"github.com/okian/ecotogether/internal/domain/dedupe"
	"github.com/okian/ecotogether/internal/domain/model"
	"github.com/okian/ecotogether/internal/domain/scoring"
	"github.com/okian/ecotogether/pkg/logger"
)

// Defaults for the service.
const (
	DefaultReason          = "AI submit"
	DefaultRewardThreshold = 500
	defaultPendingTTL      = 15 * time.Minute
	defaultPendingSize     = 10_000
	defaultDedupeSize      = 100_000
)

// PhotoClassifier classifies an encoded photo.
type PhotoClassifier interface {
	ClassifyBytes(ctx context.Context, data []byte) (model.ClassificationResult, error)
}

// CaptureChecker decides whether a photo came from a camera.
type CaptureChecker interface {
	IsFromCamera(ctx context.Context, data []byte) bool
}

// MotionVerifier scores a video for motion. It never fails.
type MotionVerifier interface {
	Verify(ctx context.Context, data []byte) model.MotionVerdict
}

// ErrorReporter forwards hard failures to an error tracker.
type ErrorReporter func(ctx context.Context, err error, tags map[string]string)

// Service implements the API dependencies for the submission flow.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	classifier PhotoClassifier
	capture    CaptureChecker
	motion     MotionVerifier
	scorer     scoring.Scorer
	ledger     repository.Ledger
	report     ErrorReporter

	// Built on Start
	deduper dedupe.Deduper
	pending *expirable.LRU[string, model.Evaluation]

	// Configuration
	pendingTTL      time.Duration
	pendingSize     int
	dedupeSize      int
	rewardThreshold int64
	now             func() time.Time
	newID           func() string

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithClassifier sets the photo classifier.
func WithClassifier(c PhotoClassifier) Option {
	return func(s *Service) { s.classifier = c }
}

// WithCaptureChecker sets the camera metadata check.
func WithCaptureChecker(c CaptureChecker) Option {
	return func(s *Service) { s.capture = c }
}

// WithMotionVerifier sets the video motion verifier.
func WithMotionVerifier(m MotionVerifier) Option {
	return func(s *Service) { s.motion = m }
}

// WithScorer replaces the default scoring engine.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithLedger sets the point ledger.
func WithLedger(l repository.Ledger) Option {
	return func(s *Service) { s.ledger = l }
}

// WithErrorReporter sets where ledger failures are reported.
func WithErrorReporter(r ErrorReporter) Option {
	return func(s *Service) {
		if r != nil {
			s.report = r
		}
	}
}

// WithPendingTTL sets how long an evaluation stays confirmable.
func WithPendingTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.pendingTTL = ttl
		}
	}
}

// WithPendingSize bounds the number of unconfirmed evaluations.
func WithPendingSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pendingSize = size
		}
	}
}

// WithDedupeSize sets the size of the confirm deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithRewardThreshold sets the balance that qualifies for a reward.
func WithRewardThreshold(points int64) Option {
	return func(s *Service) {
		if points > 0 {
			s.rewardThreshold = points
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		scorer:          scoring.NewEngine(),
		report:          func(context.Context, error, map[string]string) {},
		pendingTTL:      defaultPendingTTL,
		pendingSize:     defaultPendingSize,
		dedupeSize:      defaultDedupeSize,
		rewardThreshold: DefaultRewardThreshold,
		now:             time.Now,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start validates dependencies and builds the in-memory state.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	switch {
	case s.classifier == nil:
		return wrapMissing("classifier")
	case s.capture == nil:
		return wrapMissing("capture checker")
	case s.motion == nil:
		return wrapMissing("motion verifier")
	case s.ledger == nil:
		return wrapMissing("ledger")
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.pending = expirable.NewLRU[string, model.Evaluation](s.pendingSize, nil, s.pendingTTL)

	s.started = true
	s.logger.Info(ctx, "submission service started",
		logger.Duration("pendingTTL", s.pendingTTL),
		logger.Int("pendingSize", s.pendingSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int64("rewardThreshold", s.rewardThreshold),
	)
	return nil
}

// Stop releases the ledger and, when closable, the classifier.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping submission service...")

	if err := s.ledger.Close(); err != nil {
		s.logger.Warn(ctx, "close ledger", logger.Error(err))
	}
	if c, ok := s.classifier.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.logger.Warn(ctx, "close classifier", logger.Error(err))
		}
	}
	s.pending.Purge()

	s.started = false
	s.logger.Info(ctx, "submission service stopped")
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func wrapMissing(what string) error {
	return fmt.Errorf("%w: %s", ErrNotConfigured, what)
}

// Package scoring turns the photo and video verdicts of a submission into a
// point award.
package scoring

import (
	"github.com/okian/ecotogether/internal/domain/model"
)

// Default scoring rule constants.
const (
	DefaultConfidenceThreshold = 60.0
	DefaultPhotoPoints         = 1
	DefaultVideoPoints         = 10
	DefaultComboPoints         = 15
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithConfidenceThreshold sets the inclusive minimum confidence (percent)
// for a camera photo to earn points.
func WithConfidenceThreshold(threshold float64) Option {
	return func(e *Engine) {
		if threshold >= 0 && threshold <= 100 {
			e.confidenceThreshold = threshold
		}
	}
}

// WithPoints overrides the photo, video and combo awards.
func WithPoints(photo, video, combo int) Option {
	return func(e *Engine) {
		if photo > 0 && video > 0 && combo > 0 {
			e.photoPoints = photo
			e.videoPoints = video
			e.comboPoints = combo
		}
	}
}

// Input abstracts the verdicts needed for scoring. A missing photo means
// FromCamera is false; a missing video means MotionValid is false.
type Input struct {
	Confidence  float64
	FromCamera  bool
	MotionValid bool
}

// Scorer computes a ScoreDecision from verdicts.
type Scorer interface {
	Score(in Input) model.ScoreDecision
}

// Engine is the deterministic Scorer. It is safe for concurrent use.
type Engine struct {
	confidenceThreshold float64
	photoPoints         int
	videoPoints         int
	comboPoints         int
}

// NewEngine creates an Engine with the default rules applied.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		confidenceThreshold: DefaultConfidenceThreshold,
		photoPoints:         DefaultPhotoPoints,
		videoPoints:         DefaultVideoPoints,
		comboPoints:         DefaultComboPoints,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score applies the rules in order: photo points, video points, then the
// combo override when both qualify. Confidence is a step function at the
// threshold, no partial credit.
func (e *Engine) Score(in Input) model.ScoreDecision {
	var d model.ScoreDecision
	if in.FromCamera && in.Confidence >= e.confidenceThreshold {
		d.PhotoPoints = e.photoPoints
	}
	if in.MotionValid {
		d.VideoPoints = e.videoPoints
	}
	if d.PhotoPoints > 0 && d.VideoPoints > 0 {
		d.TotalPoints = e.comboPoints
	} else {
		d.TotalPoints = d.PhotoPoints + d.VideoPoints
	}
	return d
}

// ConfidenceThreshold returns the configured photo threshold.
func (e *Engine) ConfidenceThreshold() float64 { return e.confidenceThreshold }

// Package model contains domain models passed between layers.
package model

import "time"

// Submission is one user interaction cycle: a username plus an optional
// photo and an optional video. It is never persisted.
type Submission struct {
	Username string
	Photo    []byte
	Video    []byte
}

// HasPhoto reports whether a photo was supplied.
func (s Submission) HasPhoto() bool { return len(s.Photo) > 0 }

// HasVideo reports whether a video was supplied.
func (s Submission) HasVideo() bool { return len(s.Video) > 0 }

// ClassificationResult is the classifier's top label with its confidence in [0,100].
type ClassificationResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// MotionVerdict is the outcome of verifying a video.
type MotionVerdict struct {
	IsValid     bool  `json:"is_valid"`
	MotionScore int64 `json:"motion_score"`
}

// ScoreDecision is the point award derived from the photo and video checks.
// TotalPoints is one of 0, 1, 10 or 15.
type ScoreDecision struct {
	PhotoPoints int `json:"photo_points"`
	VideoPoints int `json:"video_points"`
	TotalPoints int `json:"total_points"`
}

// Awardable reports whether the decision warrants a ledger write.
func (d ScoreDecision) Awardable() bool { return d.TotalPoints > 0 }

// Evaluation is a scored submission waiting to be confirmed.
type Evaluation struct {
	ID             string                `json:"id"`
	Username       string                `json:"username"`
	PhotoSupplied  bool                  `json:"photo_supplied"`
	VideoSupplied  bool                  `json:"video_supplied"`
	FromCamera     bool                  `json:"from_camera"`
	Classification *ClassificationResult `json:"classification,omitempty"`
	Motion         *MotionVerdict        `json:"motion,omitempty"`
	Decision       ScoreDecision         `json:"decision"`
	Messages       []string              `json:"messages"`
	CreatedAt      time.Time             `json:"created_at"`
}

// UserAccount is a user's cumulative balance.
type UserAccount struct {
	Username string `json:"username" db:"username"`
	Points   int64  `json:"points" db:"points"`
}

// Transaction is one append-only audit row of the ledger.
type Transaction struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Points    int64     `json:"points"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Package motion decides whether a short video shows real movement.
//
// The verdict is a cheap proxy: the absolute luminance difference between
// consecutive frames is summed over a bounded window and compared with a
// fixed threshold. Waving any object in front of the camera passes it.
package motion

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"time"

	"github.com/okian/ecotogether/internal/domain/model"
	"github.com/okian/ecotogether/pkg/logger"
	"github.com/okian/ecotogether/pkg/metrics"
)

// Defaults for the motion heuristic.
const (
	DefaultThreshold int64 = 1_000_000
	DefaultMaxFrames       = 10
)

// Motion check outcomes, used as metric labels.
const (
	resultValid       = "valid"
	resultInvalid     = "invalid"
	resultUndecodable = "undecodable"
)

// FrameSource yields decoded luminance frames in order. Next returns io.EOF
// once the stream is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (*image.Gray, error)
	Close() error
}

// Opener opens a decodable video file as a FrameSource.
type Opener interface {
	Open(ctx context.Context, path string) (FrameSource, error)
}

// Verifier scores videos for motion.
type Verifier struct {
	opener    Opener
	threshold int64
	maxFrames int
	tempDir   string
	log       logger.Logger
}

// NewVerifier creates a Verifier decoding through opener.
func NewVerifier(opener Opener, opts ...Option) *Verifier {
	v := &Verifier{
		opener:    opener,
		threshold: DefaultThreshold,
		maxFrames: DefaultMaxFrames,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify scores data. Any decode failure yields an invalid verdict with a
// zero score; it never returns an error.
func (v *Verifier) Verify(ctx context.Context, data []byte) model.MotionVerdict {
	start := time.Now()

	total, err := v.accumulate(ctx, data)
	verdict := model.MotionVerdict{
		IsValid:     err == nil && total > v.threshold,
		MotionScore: total,
	}

	result := resultInvalid
	switch {
	case err != nil:
		result = resultUndecodable
		v.log.Warn(ctx, "video not decodable", logger.Error(err))
	case verdict.IsValid:
		result = resultValid
	}
	metrics.RecordMotionCheck(result, total, float64(time.Since(start).Milliseconds()))
	v.log.Debug(ctx, "motion verified",
		logger.Int64("score", total),
		logger.Bool("valid", verdict.IsValid),
		logger.Duration("took", time.Since(start)))
	return verdict
}

// accumulate returns a non-nil error only when no reference frame could be
// decoded; in that case the score is zero.
func (v *Verifier) accumulate(ctx context.Context, data []byte) (int64, error) {
	if len(data) == 0 {
		return 0, ErrEmptyVideo
	}

	path, err := v.materialize(data)
	if err != nil {
		return 0, err
	}
	defer func() { _ = os.Remove(path) }()

	src, err := v.opener.Open(ctx, path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			v.log.Debug(ctx, "close frame source", logger.Error(cerr))
		}
	}()

	prev, err := src.Next(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: reference frame: %w", ErrDecodeFrame, err)
	}

	var total int64
	for range v.maxFrames {
		cur, err := src.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				v.log.Debug(ctx, "frame decode stopped early", logger.Error(err))
			}
			break
		}
		if !cur.Rect.Size().Eq(prev.Rect.Size()) {
			v.log.Debug(ctx, "frame size changed mid-stream")
			break
		}
		total += absDiffSum(prev, cur)
		prev = cur
	}
	return total, nil
}

func (v *Verifier) materialize(data []byte) (string, error) {
	f, err := os.CreateTemp(v.tempDir, "motion-*.video")
	if err != nil {
		return "", fmt.Errorf("create temp video: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write temp video: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close temp video: %w", err)
	}
	return path, nil
}

// absDiffSum sums |a-b| over every pixel. a and b must have equal sizes.
func absDiffSum(a, b *image.Gray) int64 {
	size := a.Rect.Size()
	var sum int64
	for y := range size.Y {
		ra := a.Pix[y*a.Stride : y*a.Stride+size.X]
		rb := b.Pix[y*b.Stride : y*b.Stride+size.X]
		for x := range ra {
			d := int64(ra[x]) - int64(rb[x])
			if d < 0 {
				d = -d
			}
			sum += d
		}
	}
	return sum
}

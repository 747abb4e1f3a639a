// Package capture decides whether a photo plausibly came from a camera.
//
// The check is a weak heuristic: a photo counts as camera-made when it
// carries at least one embedded EXIF tag. Stripping metadata or re-encoding
// defeats it, so it is best-effort and not a security control.
package capture

import (
	"bytes"
	"context"
	"errors"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/okian/ecotogether/pkg/logger"
	"github.com/okian/ecotogether/pkg/metrics"
)

// errStopWalk ends a tag walk at the first tag.
var errStopWalk = errors.New("stop walk")

type tagCounter int

func (c *tagCounter) Walk(_ exif.FieldName, _ *tiff.Tag) error {
	*c++
	return errStopWalk
}

// IsFromCamera reports whether data carries non-empty EXIF metadata.
// Missing, corrupt or empty metadata yields false; it never fails.
func IsFromCamera(data []byte) bool {
	ok, _ := inspect(data)
	return ok
}

func inspect(data []byte) (bool, error) {
	if len(data) == 0 {
		return false, errors.New("empty image")
	}
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	var n tagCounter
	if err := x.Walk(&n); err != nil && !errors.Is(err, errStopWalk) {
		return false, err
	}
	return n > 0, nil
}

// Checker wraps IsFromCamera with logging and metrics.
type Checker struct {
	log logger.Logger
}

// Option applies a configuration option to the Checker.
type Option func(*Checker)

// WithLogger sets the logger used to explain negative verdicts.
func WithLogger(l logger.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.log = l
		}
	}
}

// NewChecker creates a Checker.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{log: logger.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsFromCamera reports whether data carries non-empty EXIF metadata.
func (c *Checker) IsFromCamera(ctx context.Context, data []byte) bool {
	ok, err := inspect(data)
	if err != nil {
		c.log.Debug(ctx, "no usable exif metadata", logger.Error(err))
	}
	metrics.RecordCaptureCheck(ok)
	return ok
}

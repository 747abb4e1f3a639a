package motion

import "github.com/okian/ecotogether/pkg/logger"

// Option applies a configuration option to the Verifier.
type Option func(*Verifier)

// WithThreshold sets the accumulated difference a video must strictly exceed.
func WithThreshold(threshold int64) Option {
	return func(v *Verifier) {
		if threshold >= 0 {
			v.threshold = threshold
		}
	}
}

// WithMaxFrames bounds how many frames after the reference are compared.
func WithMaxFrames(n int) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.maxFrames = n
		}
	}
}

// WithTempDir sets where uploaded videos are materialized; os.TempDir by default.
func WithTempDir(dir string) Option {
	return func(v *Verifier) {
		v.tempDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.log = l
		}
	}
}

package classifier

import "github.com/okian/ecotogether/pkg/logger"

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithInputSize sets the square input edge expected by the model.
func WithInputSize(size int) Option {
	return func(c *Classifier) {
		if size > 0 {
			c.inputSize = size
		}
	}
}

// WithLogger sets the logger used for classification diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.log = l
		}
	}
}

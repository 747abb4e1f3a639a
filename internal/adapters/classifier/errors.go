package classifier

import "errors"

// Sentinel errors for the classifier adapter.
var (
	ErrModelUnavailable  = errors.New("classifier model unavailable")
	ErrLabelsUnavailable = errors.New("classifier labels unavailable")
	ErrLabelMismatch     = errors.New("model output does not match label list")
	ErrEmptyOutput       = errors.New("model produced no output")
	ErrDecodeImage       = errors.New("decode image failed")
	ErrInference         = errors.New("inference failed")
)

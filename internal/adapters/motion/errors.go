package motion

import "errors"

// Sentinel errors for video decoding. Verify never returns them; they only
// surface from an Opener or FrameSource and in logs.
var (
	ErrEmptyVideo    = errors.New("empty video")
	ErrNoVideoStream = errors.New("no video stream")
	ErrProbe         = errors.New("probe video failed")
	ErrDecodeFrame   = errors.New("decode frame failed")
)

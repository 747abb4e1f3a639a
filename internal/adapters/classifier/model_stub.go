//go:build !tflite

package classifier

import "fmt"

// OpenModel is unavailable without the tflite build tag; the service must be
// built with -tags tflite to classify photos.
func OpenModel(path string) (Model, error) {
	return nil, fmt.Errorf("%w: %s: binary built without tflite support", ErrModelUnavailable, path)
}

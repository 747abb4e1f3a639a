// Package classifier wraps a pretrained single-label image model.
//
// A Classifier is built once at startup and is read-only afterwards; it is
// safe for concurrent use as long as the underlying Model is.
package classifier

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"
	"strings"
	"time"

	"golang.org/x/image/draw"

	"github.com/okian/ecotogether/internal/domain/model"
	"github.com/okian/ecotogether/pkg/logger"
	"github.com/okian/ecotogether/pkg/metrics"
)

// DefaultInputSize is the square edge the model was trained on.
const DefaultInputSize = 224

const channels = 3

// Model runs one forward pass over a preprocessed NHWC float32 tensor with a
// batch of one and returns the per-class scores.
type Model interface {
	Predict(input []float32) ([]float32, error)
	Close() error
}

// Classifier maps model output through an ordered label list.
type Classifier struct {
	model     Model
	labels    []string
	inputSize int
	log       logger.Logger
}

// New creates a Classifier over an already opened model.
func New(m Model, labels []string, opts ...Option) (*Classifier, error) {
	if m == nil {
		return nil, ErrModelUnavailable
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: label list is empty", ErrLabelsUnavailable)
	}
	c := &Classifier{
		model:     m,
		labels:    labels,
		inputSize: DefaultInputSize,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Load reads the label file and opens the model file. Any failure is a
// startup error; callers are expected to halt.
func Load(ctx context.Context, modelPath, labelsPath string, opts ...Option) (*Classifier, error) {
	labels, err := LoadLabels(labelsPath)
	if err != nil {
		return nil, err
	}
	m, err := OpenModel(modelPath)
	if err != nil {
		return nil, err
	}
	c, err := New(m, labels, opts...)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	c.log.Info(ctx, "classifier loaded",
		logger.String("model", modelPath),
		logger.Int("labels", len(labels)),
		logger.Int("input_size", c.inputSize))
	return c, nil
}

// LoadLabels reads one label per line, trimming whitespace and skipping blank lines.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLabelsUnavailable, err)
	}
	defer func() { _ = f.Close() }()

	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			labels = append(labels, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLabelsUnavailable, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: %s has no labels", ErrLabelsUnavailable, path)
	}
	return labels, nil
}

// Labels returns a copy of the label list.
func (c *Classifier) Labels() []string {
	return append([]string(nil), c.labels...)
}

// Close releases the model.
func (c *Classifier) Close() error {
	return c.model.Close()
}

// ClassifyBytes decodes a JPEG or PNG blob and classifies it.
func (c *Classifier) ClassifyBytes(ctx context.Context, data []byte) (model.ClassificationResult, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		metrics.RecordClassificationError()
		return model.ClassificationResult{}, fmt.Errorf("%w: %w", ErrDecodeImage, err)
	}
	return c.Classify(ctx, img)
}

// Classify runs a single forward pass and returns the top label with its
// confidence as a percentage.
func (c *Classifier) Classify(ctx context.Context, img image.Image) (model.ClassificationResult, error) {
	if err := ctx.Err(); err != nil {
		return model.ClassificationResult{}, err
	}
	start := time.Now()

	out, err := c.model.Predict(Preprocess(img, c.inputSize))
	if err != nil {
		metrics.RecordClassificationError()
		return model.ClassificationResult{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if len(out) == 0 {
		metrics.RecordClassificationError()
		return model.ClassificationResult{}, ErrEmptyOutput
	}

	idx := argmax(out)
	if idx >= len(c.labels) {
		metrics.RecordClassificationError()
		return model.ClassificationResult{}, fmt.Errorf("%w: index %d, %d labels", ErrLabelMismatch, idx, len(c.labels))
	}

	res := model.ClassificationResult{
		Label:      c.labels[idx],
		Confidence: float64(out[idx]) * 100,
	}
	latency := time.Since(start)
	metrics.RecordClassification(float64(latency.Milliseconds()), res.Confidence)
	c.log.Debug(ctx, "image classified",
		logger.String("label", res.Label),
		logger.Float64("confidence", res.Confidence),
		logger.Duration("took", latency))
	return res, nil
}

// Preprocess converts img to RGB, resizes it to size x size and scales each
// channel to [0,1]. The result is laid out NHWC with a batch of one. Alpha
// is dropped, not blended: a transparent pixel keeps its stored color.
func Preprocess(img image.Image, size int) []float32 {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), dropAlpha(img), img.Bounds(), draw.Src, nil)

	out := make([]float32, 0, size*size*channels)
	for i := 0; i < len(dst.Pix); i += 4 {
		out = append(out,
			float32(dst.Pix[i])/255,
			float32(dst.Pix[i+1])/255,
			float32(dst.Pix[i+2])/255,
		)
	}
	return out
}

// dropAlpha returns an opaque copy of img holding its non-premultiplied
// colors. Images without an alpha channel are returned as is.
func dropAlpha(img image.Image) image.Image {
	switch src := img.(type) {
	case *image.Gray, *image.YCbCr:
		return img
	case *image.NRGBA:
		out := &image.NRGBA{Pix: bytes.Clone(src.Pix), Stride: src.Stride, Rect: src.Rect}
		for i := 3; i < len(out.Pix); i += 4 {
			out.Pix[i] = 0xff
		}
		return out
	}
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c, _ := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			c.A = 0xff
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

func argmax(v []float32) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

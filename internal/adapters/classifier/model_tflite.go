//go:build tflite

package classifier

import (
	"fmt"
	"sync"

	"github.com/mattn/go-tflite"
)

// tfliteModel runs a TensorFlow Lite flatbuffer. The interpreter is not safe
// for concurrent invocation, so Predict is serialized.
type tfliteModel struct {
	mu          sync.Mutex
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
}

// OpenModel loads a .tflite model and allocates its tensors.
func OpenModel(path string) (Model, error) {
	m := tflite.NewModelFromFile(path)
	if m == nil {
		return nil, fmt.Errorf("%w: cannot load %s", ErrModelUnavailable, path)
	}
	opts := tflite.NewInterpreterOptions()
	opts.SetNumThread(1)
	ip := tflite.NewInterpreter(m, opts)
	if ip == nil {
		opts.Delete()
		m.Delete()
		return nil, fmt.Errorf("%w: cannot create interpreter for %s", ErrModelUnavailable, path)
	}
	if status := ip.AllocateTensors(); status != tflite.OK {
		ip.Delete()
		opts.Delete()
		m.Delete()
		return nil, fmt.Errorf("%w: allocate tensors: status %v", ErrModelUnavailable, status)
	}
	if in := ip.GetInputTensor(0); in == nil || in.Type() != tflite.Float32 {
		ip.Delete()
		opts.Delete()
		m.Delete()
		return nil, fmt.Errorf("%w: %s does not take a float32 input", ErrModelUnavailable, path)
	}
	return &tfliteModel{model: m, options: opts, interpreter: ip}, nil
}

func (t *tfliteModel) Predict(input []float32) ([]float32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	in := t.interpreter.GetInputTensor(0)
	if status := in.CopyFromBuffer(input); status != tflite.OK {
		return nil, fmt.Errorf("copy input: status %v", status)
	}
	if status := t.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("invoke: status %v", status)
	}

	out := t.interpreter.GetOutputTensor(0)
	switch out.Type() {
	case tflite.Float32:
		return append([]float32(nil), out.Float32s()...), nil
	case tflite.UInt8:
		raw := out.UInt8s()
		scores := make([]float32, len(raw))
		for i, v := range raw {
			scores[i] = float32(v) / 255
		}
		return scores, nil
	default:
		return nil, fmt.Errorf("unsupported output type %v", out.Type())
	}
}

func (t *tfliteModel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interpreter.Delete()
	t.options.Delete()
	t.model.Delete()
	return nil
}

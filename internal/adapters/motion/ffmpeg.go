package motion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

// FFmpegOpener decodes videos by piping raw RGB frames out of ffmpeg.
// ffprobe supplies the frame geometry. Rotation metadata is ignored so the
// decoded frames keep the probed width and height.
type FFmpegOpener struct {
	FFmpegPath  string
	FFprobePath string
	// MaxFrames caps how many frames ffmpeg decodes, the reference frame
	// included; zero means no cap.
	MaxFrames int
}

// NewFFmpegOpener returns an opener that decodes at most maxFrames frames.
// A Verifier comparing n frames needs n+1 decoded.
func NewFFmpegOpener(ffmpegPath, ffprobePath string, maxFrames int) *FFmpegOpener {
	return &FFmpegOpener{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, MaxFrames: maxFrames}
}

type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
}

func (o *FFmpegOpener) probe(ctx context.Context, path string) (int, int, error) {
	cmd := exec.CommandContext(ctx, o.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w: %s", ErrProbe, err, bytes.TrimSpace(stderr.Bytes()))
	}
	var p probeOutput
	if err := json.Unmarshal(out, &p); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrProbe, err)
	}
	if len(p.Streams) == 0 || p.Streams[0].Width <= 0 || p.Streams[0].Height <= 0 {
		return 0, 0, ErrNoVideoStream
	}
	return p.Streams[0].Width, p.Streams[0].Height, nil
}

// Open starts an ffmpeg process for path.
func (o *FFmpegOpener) Open(ctx context.Context, path string) (FrameSource, error) {
	w, h, err := o.probe(ctx, path)
	if err != nil {
		return nil, err
	}

	args := []string{"-v", "error", "-nostdin", "-noautorotate", "-i", path}
	if o.MaxFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(o.MaxFrames))
	}
	args = append(args, "-an", "-f", "rawvideo", "-pix_fmt", "rgb24", "pipe:1")

	cmd := exec.CommandContext(ctx, o.FFmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFrame, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %w", ErrDecodeFrame, err)
	}
	return &ffmpegSource{
		cmd:    cmd,
		r:      bufio.NewReaderSize(stdout, w*3*16),
		width:  w,
		height: h,
		buf:    make([]byte, w*h*3),
	}, nil
}

type ffmpegSource struct {
	cmd       *exec.Cmd
	r         io.Reader
	width     int
	height    int
	buf       []byte
	closeOnce sync.Once
}

// Next reads one rgb24 frame and converts it to luminance.
func (s *ffmpegSource) Next(ctx context.Context) (*image.Gray, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(s.r, s.buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %w", ErrDecodeFrame, err)
	}
	return rgbToGray(s.buf, s.width, s.height), nil
}

// Close stops ffmpeg and reaps it. Safe to call more than once.
func (s *ffmpegSource) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.cmd.Wait()
	})
	return nil
}

// rgbToGray applies the ITU-R BT.601 luma weights, the same ones
// color.GrayModel uses.
func rgbToGray(rgb []byte, w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i, j := 0, 0; j < len(g.Pix); i, j = i+3, j+1 {
		r, gr, b := uint32(rgb[i]), uint32(rgb[i+1]), uint32(rgb[i+2])
		g.Pix[j] = uint8((19595*r + 38470*gr + 7471*b + 1<<15) >> 16)
	}
	return g
}

package motion_test

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"testing"

	"github.com/okian/ecotogether/internal/adapters/motion"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeSource replays frames and counts reads.
type fakeSource struct {
	frames []*image.Gray
	reads  int
	closed int
	err    error
}

func (s *fakeSource) Next(context.Context) (*image.Gray, error) {
	if s.reads >= len(s.frames) {
		s.reads++
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	f := s.frames[s.reads]
	s.reads++
	return f, nil
}

func (s *fakeSource) Close() error {
	s.closed++
	return nil
}

type fakeOpener struct {
	src      *fakeSource
	err      error
	paths    []string
	contents [][]byte
}

func (o *fakeOpener) Open(_ context.Context, path string) (motion.FrameSource, error) {
	o.paths = append(o.paths, path)
	b, _ := os.ReadFile(path)
	o.contents = append(o.contents, b)
	if o.err != nil {
		return nil, o.err
	}
	return o.src, nil
}

func frame(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func alternating(n, w, h int) []*image.Gray {
	out := make([]*image.Gray, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = frame(w, h, 0)
		} else {
			out[i] = frame(w, h, 255)
		}
	}
	return out
}

func TestVerify(t *testing.T) {
	Convey("Given a verifier over a fake decoder", t, func() {
		ctx := context.Background()
		video := []byte("fake mp4 bytes")

		Convey("When the video is empty", func() {
			o := &fakeOpener{src: &fakeSource{}}
			v := motion.NewVerifier(o, motion.WithTempDir(t.TempDir()))
			verdict := v.Verify(ctx, nil)

			Convey("Then it is invalid with a zero score and nothing is decoded", func() {
				So(verdict.IsValid, ShouldBeFalse)
				So(verdict.MotionScore, ShouldEqual, 0)
				So(len(o.paths), ShouldEqual, 0)
			})
		})

		Convey("When the container cannot be opened", func() {
			o := &fakeOpener{err: motion.ErrNoVideoStream}
			v := motion.NewVerifier(o, motion.WithTempDir(t.TempDir()))
			verdict := v.Verify(ctx, video)

			Convey("Then it is invalid and the temp file is removed", func() {
				So(verdict.IsValid, ShouldBeFalse)
				So(verdict.MotionScore, ShouldEqual, 0)
				So(o.contents[0], ShouldResemble, video)
				_, err := os.Stat(o.paths[0])
				So(os.IsNotExist(err), ShouldBeTrue)
			})
		})

		Convey("When no reference frame decodes", func() {
			src := &fakeSource{err: errors.New("corrupt")}
			v := motion.NewVerifier(&fakeOpener{src: src}, motion.WithTempDir(t.TempDir()))
			verdict := v.Verify(ctx, video)

			Convey("Then it is invalid with zero score and the source is closed", func() {
				So(verdict, ShouldResemble, verdictOf(false, 0))
				So(src.closed, ShouldEqual, 1)
			})
		})

		Convey("When every frame is identical", func() {
			src := &fakeSource{frames: []*image.Gray{frame(100, 100, 7), frame(100, 100, 7), frame(100, 100, 7)}}
			o := &fakeOpener{src: src}
			v := motion.NewVerifier(o, motion.WithTempDir(t.TempDir()))
			verdict := v.Verify(ctx, video)

			Convey("Then there is no motion", func() {
				So(verdict, ShouldResemble, verdictOf(false, 0))
				So(src.closed, ShouldEqual, 1)
				_, err := os.Stat(o.paths[0])
				So(os.IsNotExist(err), ShouldBeTrue)
			})
		})

		Convey("When frames flip between black and white", func() {
			src := &fakeSource{frames: alternating(2, 100, 100)}
			v := motion.NewVerifier(&fakeOpener{src: src}, motion.WithTempDir(t.TempDir()))
			verdict := v.Verify(ctx, video)

			Convey("Then one pair already exceeds the default threshold", func() {
				So(verdict.MotionScore, ShouldEqual, 100*100*255)
				So(verdict.IsValid, ShouldBeTrue)
			})
		})

		Convey("When more frames are available than the window", func() {
			src := &fakeSource{frames: alternating(30, 2, 2)}
			v := motion.NewVerifier(&fakeOpener{src: src}, motion.WithTempDir(t.TempDir()))
			verdict := v.Verify(ctx, video)

			Convey("Then only the reference plus ten frames are read", func() {
				So(src.reads, ShouldEqual, 11)
				So(verdict.MotionScore, ShouldEqual, 10*4*255)
			})
		})

		Convey("When the stream ends early", func() {
			src := &fakeSource{frames: alternating(3, 2, 2)}
			v := motion.NewVerifier(&fakeOpener{src: src}, motion.WithTempDir(t.TempDir()))
			verdict := v.Verify(ctx, video)

			Convey("Then the available pairs are summed", func() {
				So(verdict.MotionScore, ShouldEqual, 2*4*255)
				So(verdict.IsValid, ShouldBeFalse)
			})
		})

		Convey("When a frame changes size", func() {
			src := &fakeSource{frames: []*image.Gray{frame(2, 2, 0), frame(2, 2, 10), frame(4, 4, 200)}}
			v := motion.NewVerifier(&fakeOpener{src: src}, motion.WithTempDir(t.TempDir()))
			verdict := v.Verify(ctx, video)

			Convey("Then scoring stops at the mismatch", func() {
				So(verdict.MotionScore, ShouldEqual, 40)
			})
		})
	})
}

func TestVerifyThresholdBoundary(t *testing.T) {
	Convey("Given a verifier with threshold 1000", t, func() {
		ctx := context.Background()
		newVerifier := func(frames ...*image.Gray) *motion.Verifier {
			return motion.NewVerifier(&fakeOpener{src: &fakeSource{frames: frames}},
				motion.WithThreshold(1000), motion.WithTempDir(t.TempDir()))
		}

		Convey("When the total equals the threshold", func() {
			verdict := newVerifier(frame(10, 10, 0), frame(10, 10, 10)).Verify(ctx, []byte("v"))

			Convey("Then it is not valid", func() {
				So(verdict.MotionScore, ShouldEqual, 1000)
				So(verdict.IsValid, ShouldBeFalse)
			})
		})

		Convey("When the total is one above the threshold", func() {
			next := frame(10, 10, 10)
			next.Pix[0] = 11
			verdict := newVerifier(frame(10, 10, 0), next).Verify(ctx, []byte("v"))

			Convey("Then it is valid", func() {
				So(verdict.MotionScore, ShouldEqual, 1001)
				So(verdict.IsValid, ShouldBeTrue)
			})
		})
	})

	Convey("Given the default threshold", t, func() {
		Convey("Then 1,000,000 is invalid and 1,000,001 is valid", func() {
			// 1000x1000 frames, each pixel differs by exactly 1.
			a, b := frame(1000, 1000, 0), frame(1000, 1000, 1)
			v := motion.NewVerifier(&fakeOpener{src: &fakeSource{frames: []*image.Gray{a, b}}}, motion.WithTempDir(t.TempDir()))
			So(v.Verify(context.Background(), []byte("v")).IsValid, ShouldBeFalse)

			c := frame(1000, 1000, 1)
			c.Pix[0] = 2
			v = motion.NewVerifier(&fakeOpener{src: &fakeSource{frames: []*image.Gray{a, c}}}, motion.WithTempDir(t.TempDir()))
			verdict := v.Verify(context.Background(), []byte("v"))
			So(verdict.MotionScore, ShouldEqual, 1_000_001)
			So(verdict.IsValid, ShouldBeTrue)
		})
	})
}

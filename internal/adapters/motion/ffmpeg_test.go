package motion_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/okian/ecotogether/internal/adapters/motion"
	. "github.com/smartystreets/goconvey/convey"
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not on PATH", bin)
		}
	}
}

func TestFFmpegOpener(t *testing.T) {
	requireFFmpeg(t)

	Convey("Given a synthetic test pattern video", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "pattern.mp4")
		gen := exec.Command("ffmpeg", "-v", "error", "-f", "lavfi",
			"-i", "testsrc=size=160x120:rate=10", "-t", "2",
			"-c:v", "mpeg4", "-pix_fmt", "yuv420p", path)
		So(gen.Run(), ShouldBeNil)
		data, err := os.ReadFile(path)
		So(err, ShouldBeNil)

		opener := motion.NewFFmpegOpener("ffmpeg", "ffprobe", motion.DefaultMaxFrames+1)

		Convey("When opening it directly", func() {
			src, err := opener.Open(context.Background(), path)
			So(err, ShouldBeNil)
			defer func() { _ = src.Close() }()

			Convey("Then frames come out at the probed size", func() {
				f, err := src.Next(context.Background())
				So(err, ShouldBeNil)
				So(f.Rect.Dx(), ShouldEqual, 160)
				So(f.Rect.Dy(), ShouldEqual, 120)
				So(src.Close(), ShouldBeNil)
				So(src.Close(), ShouldBeNil)
			})
		})

		Convey("When verifying it", func() {
			verdict := motion.NewVerifier(opener, motion.WithTempDir(dir)).Verify(context.Background(), data)

			Convey("Then the moving pattern produces a positive score", func() {
				So(verdict.MotionScore, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When verifying garbage bytes", func() {
			verdict := motion.NewVerifier(opener, motion.WithTempDir(dir)).Verify(context.Background(), []byte("not a video"))

			Convey("Then it is invalid with a zero score", func() {
				So(verdict.IsValid, ShouldBeFalse)
				So(verdict.MotionScore, ShouldEqual, 0)
			})
		})
	})
}

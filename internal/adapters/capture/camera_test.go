package capture_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/okian/ecotogether/internal/adapters/capture"
	. "github.com/smartystreets/goconvey/convey"
)

func plainJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// tiffWithMake builds a little-endian TIFF block whose IFD0 holds a single
// Make tag, or no tags at all when withTag is false.
func tiffWithMake(withTag bool) []byte {
	var b bytes.Buffer
	b.WriteString("II*\x00")
	_ = binary.Write(&b, binary.LittleEndian, uint32(8))
	if !withTag {
		_ = binary.Write(&b, binary.LittleEndian, uint16(0))
		_ = binary.Write(&b, binary.LittleEndian, uint32(0))
		return b.Bytes()
	}
	_ = binary.Write(&b, binary.LittleEndian, uint16(1))      // entry count
	_ = binary.Write(&b, binary.LittleEndian, uint16(0x010F)) // Make
	_ = binary.Write(&b, binary.LittleEndian, uint16(2))      // ASCII
	_ = binary.Write(&b, binary.LittleEndian, uint32(4))      // count
	b.WriteString("Eco\x00")                                  // inline value
	_ = binary.Write(&b, binary.LittleEndian, uint32(0))      // next IFD
	return b.Bytes()
}

// withAPP1 inserts an EXIF APP1 segment right after the JPEG SOI marker.
func withAPP1(jpg, tiffBlock []byte) []byte {
	payload := append([]byte("Exif\x00\x00"), tiffBlock...)
	var out bytes.Buffer
	out.Write(jpg[:2])
	out.Write([]byte{0xFF, 0xE1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpg[2:])
	return out.Bytes()
}

func TestIsFromCamera(t *testing.T) {
	Convey("Given photos with and without metadata", t, func() {
		base := plainJPEG(t)

		Convey("When the JPEG carries an EXIF Make tag", func() {
			data := withAPP1(base, tiffWithMake(true))

			Convey("Then it counts as camera-made", func() {
				So(capture.IsFromCamera(data), ShouldBeTrue)
			})

			Convey("And it still decodes as an image", func() {
				_, format, err := image.Decode(bytes.NewReader(data))
				So(err, ShouldBeNil)
				So(format, ShouldEqual, "jpeg")
			})
		})

		Convey("When the JPEG carries an empty EXIF block", func() {
			So(capture.IsFromCamera(withAPP1(base, tiffWithMake(false))), ShouldBeFalse)
		})

		Convey("When the JPEG has no EXIF block", func() {
			So(capture.IsFromCamera(base), ShouldBeFalse)
		})

		Convey("When the EXIF block is corrupt", func() {
			So(capture.IsFromCamera(withAPP1(base, []byte("II*\x00\xff\xff"))), ShouldBeFalse)
		})

		Convey("When the photo is a PNG", func() {
			var buf bytes.Buffer
			So(png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))), ShouldBeNil)
			So(capture.IsFromCamera(buf.Bytes()), ShouldBeFalse)
		})

		Convey("When the data is garbage or empty", func() {
			So(capture.IsFromCamera([]byte("definitely not an image")), ShouldBeFalse)
			So(capture.IsFromCamera(nil), ShouldBeFalse)
		})
	})
}

func TestChecker(t *testing.T) {
	Convey("Given a checker", t, func() {
		c := capture.NewChecker()
		ctx := context.Background()

		Convey("Then it agrees with IsFromCamera", func() {
			base := plainJPEG(t)
			So(c.IsFromCamera(ctx, withAPP1(base, tiffWithMake(true))), ShouldBeTrue)
			So(c.IsFromCamera(ctx, base), ShouldBeFalse)
		})

		Convey("Then an empty JPEG stream is not camera-made", func() {
			So(c.IsFromCamera(ctx, []byte{0xFF, 0xD8, 0xFF, 0xD9}), ShouldBeFalse)
		})
	})
}

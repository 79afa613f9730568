package gif

import (
	"bytes"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/cam-per/gifstream/gif/lzw"
)

// Builders for synthetic streams. The canonical fixture is a 2x2 frame over
// a red/blue global palette whose code stream 4,0,1,0,1,5 decodes to the
// indices 0 1 0 1.

var rbPalette = []byte{0xFF, 0x00, 0x00, 0x00, 0x00, 0xFF}

// alternatingCodes is that code stream packed at min code size 2.
var alternatingCodes = []byte{0x44, 0x10, 0x05}

func gifStream(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func gifHeader(w, h int, packed, bg byte) []byte {
	return []byte{'G', 'I', 'F', '8', '9', 'a',
		byte(w), byte(w >> 8), byte(h), byte(h >> 8), packed, bg, 0}
}

func gce(packed byte, delay int, transparentIdx byte) []byte {
	return []byte{0x21, 0xF9, 4, packed, byte(delay), byte(delay >> 8), transparentIdx, 0}
}

func imgDesc(x, y, w, h int, packed byte) []byte {
	return []byte{0x2C, byte(x), byte(x >> 8), byte(y), byte(y >> 8),
		byte(w), byte(w >> 8), byte(h), byte(h >> 8), packed}
}

func imgData(minCode byte, compressed []byte, chunk int) []byte {
	out := []byte{minCode}
	for pos := 0; pos < len(compressed); pos += chunk {
		end := pos + chunk
		if end > len(compressed) {
			end = len(compressed)
		}
		out = append(out, byte(end-pos))
		out = append(out, compressed[pos:end]...)
	}
	return append(out, 0)
}

var trailer = []byte{0x3B}

func alternating2x2(chunk int) []byte {
	return gifStream(
		gifHeader(2, 2, 0x80, 0),
		rbPalette,
		gce(0x04, 10, 0), // disposal none, no transparency
		imgDesc(0, 0, 2, 2, 0),
		imgData(2, alternatingCodes, chunk),
		trailer,
	)
}

func TestDecodeAlternating2x2(t *testing.T) {
	doc, err := Decode(alternating2x2(255))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if doc.Header.Version != "89a" || doc.Width() != 2 || doc.Height() != 2 {
		t.Fatalf("header: %+v", doc.Header)
	}
	if doc.FrameCount() != 1 {
		t.Fatalf("frames: got %d, want 1", doc.FrameCount())
	}

	f := doc.Frames[0]
	if want := []byte{0, 1, 0, 1}; !bytes.Equal(f.Indexes.Indices(), want) {
		t.Fatalf("indices: got %v, want %v", f.Indexes.Indices(), want)
	}
	if f.DelayHundredths() != 10 || f.Disposal() != DisposalNone || f.TransparentIndex() != -1 {
		t.Fatalf("control: delay=%d disposal=%v transparent=%d",
			f.DelayHundredths(), f.Disposal(), f.TransparentIndex())
	}

	p := doc.PaletteFor(f)
	if len(p) != 2 {
		t.Fatalf("palette: got %d colors, want 2", len(p))
	}
	red := color.RGBA{R: 0xFF, A: 0xFF}
	blue := color.RGBA{B: 0xFF, A: 0xFF}
	if p[0] != red || p[1] != blue {
		t.Fatalf("palette: got %v", p)
	}

	if doc.RunTime() != 10 || doc.Duration() != 100*time.Millisecond {
		t.Fatalf("run time: %d hundredths, %v", doc.RunTime(), doc.Duration())
	}
}

func TestDecode87a(t *testing.T) {
	data := alternating2x2(255)
	data[4] = '7'
	doc, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Header.Version != "87a" {
		t.Fatalf("version: got %q, want 87a", doc.Header.Version)
	}
}

func TestDecodeSplitSubBlocks(t *testing.T) {
	whole, err := Decode(alternating2x2(255))
	if err != nil {
		t.Fatalf("whole: %v", err)
	}
	split, err := Decode(alternating2x2(1))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !bytes.Equal(whole.Frames[0].Indexes.Indices(), split.Frames[0].Indexes.Indices()) {
		t.Fatal("sub-block split changed the decoded indices")
	}
}

func TestDecodeCompressedConcat(t *testing.T) {
	doc, err := DecodeCompressed(alternating2x2(1))
	if err != nil {
		t.Fatalf("DecodeCompressed: %v", err)
	}
	f := doc.Frames[0]
	if !bytes.Equal(f.Compressed, alternatingCodes) {
		t.Fatalf("compressed: got % x, want % x", f.Compressed, alternatingCodes)
	}
	if f.Indexes != nil {
		t.Fatal("deferred mode decoded indices")
	}
}

// DecodeCompressed keeps the payload opaque, so streams whose image data is
// corrupt or short still parse.
func TestDecodeCompressedDefersDecompression(t *testing.T) {
	for _, payload := range [][]byte{
		{0xC4, 0x01}, // code past the next free slot
		{0x44, 0x0A}, // decodes 2 of 4 pixels
	} {
		data := gifStream(
			gifHeader(2, 2, 0x80, 0), rbPalette,
			imgDesc(0, 0, 2, 2, 0), imgData(2, payload, 255),
			trailer,
		)
		if _, err := DecodeCompressed(data); err != nil {
			t.Fatalf("payload % x: %v", payload, err)
		}
		if _, err := Decode(data); err == nil {
			t.Fatalf("payload % x: eager decode accepted it", payload)
		}
	}
}

func TestDecodeTwoFramesLocalPalette(t *testing.T) {
	local := []byte{0x00, 0xFF, 0x00, 0xFF, 0xFF, 0xFF} // green, white
	data := gifStream(
		gifHeader(2, 2, 0x80, 0), rbPalette,
		imgDesc(0, 0, 2, 2, 0), imgData(2, alternatingCodes, 255),
		gce(0x09, 20, 1), // disposal background, transparent index 1
		imgDesc(0, 0, 2, 2, 0x80), local,
		imgData(2, alternatingCodes, 255),
		trailer,
	)
	doc, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.FrameCount() != 2 {
		t.Fatalf("frames: got %d, want 2", doc.FrameCount())
	}

	f0, f1 := doc.Frames[0], doc.Frames[1]
	if f0.Control != nil || f0.DelayHundredths() != 0 || f0.Disposal() != DisposalUnspecified || f0.TransparentIndex() != -1 {
		t.Fatalf("frame 0 defaults: %+v", f0.Control)
	}
	if f1.DelayHundredths() != 20 || f1.Disposal() != DisposalBackground || f1.TransparentIndex() != 1 {
		t.Fatalf("frame 1 control: delay=%d disposal=%v transparent=%d",
			f1.DelayHundredths(), f1.Disposal(), f1.TransparentIndex())
	}

	green := color.RGBA{G: 0xFF, A: 0xFF}
	if p := doc.PaletteFor(f1); p[0] != green {
		t.Fatalf("local palette not preferred: %v", p[0])
	}
	if p := doc.PaletteFor(f0); p[0] != (color.RGBA{R: 0xFF, A: 0xFF}) {
		t.Fatalf("global palette lost: %v", p[0])
	}
	if doc.RunTime() != 20 {
		t.Fatalf("run time: got %d, want 20", doc.RunTime())
	}
}

func TestPendingControlReplaced(t *testing.T) {
	data := gifStream(
		gifHeader(2, 2, 0x80, 0), rbPalette,
		gce(0x04, 10, 0),
		gce(0x04, 30, 0),
		imgDesc(0, 0, 2, 2, 0), imgData(2, alternatingCodes, 255),
		trailer,
	)
	doc, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := doc.Frames[0].DelayHundredths(); got != 30 {
		t.Fatalf("delay: got %d, want the newer control's 30", got)
	}
}

func TestControlAttachesToNextImageOnly(t *testing.T) {
	data := gifStream(
		gifHeader(2, 2, 0x80, 0), rbPalette,
		gce(0x04, 10, 0),
		imgDesc(0, 0, 2, 2, 0), imgData(2, alternatingCodes, 255),
		imgDesc(0, 0, 2, 2, 0), imgData(2, alternatingCodes, 255),
		trailer,
	)
	doc, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Frames[0].Control == nil || doc.Frames[1].Control != nil {
		t.Fatalf("control attachment: frame0=%v frame1=%v", doc.Frames[0].Control, doc.Frames[1].Control)
	}
}

func TestSkippedExtensions(t *testing.T) {
	comment := []byte{0x21, 0xFE, 5, 'h', 'e', 'l', 'l', 'o', 0}
	app := append([]byte{0x21, 0xFF, 11}, []byte("NETSCAPE2.0")...)
	app = append(app, 3, 1, 0, 0, 0)
	plainText := append([]byte{0x21, 0x21, 12}, make([]byte, 12)...)
	plainText = append(plainText, 2, 'h', 'i', 0)

	data := gifStream(
		gifHeader(2, 2, 0x80, 0), rbPalette,
		comment, app,
		gce(0x04, 10, 0),
		plainText, // must not detach the pending control
		imgDesc(0, 0, 2, 2, 0), imgData(2, alternatingCodes, 255),
		trailer,
	)
	doc, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.FrameCount() != 1 || doc.Frames[0].DelayHundredths() != 10 {
		t.Fatalf("frames=%d delay=%d", doc.FrameCount(), doc.Frames[0].DelayHundredths())
	}
}

func TestDecodeRejects(t *testing.T) {
	pal := gifStream(gifHeader(2, 2, 0x80, 0), rbPalette)
	valid := alternating2x2(255)

	cases := []struct {
		name string
		data []byte
		want error
	}{
		{"bad signature", []byte("GIF90a"), ErrMalformed},
		{"truncated header", []byte("GIF89a\x02\x00"), ErrMalformed},
		{"truncated color table", gifStream(gifHeader(2, 2, 0x80, 0), rbPalette[:3]), ErrMalformed},
		{"unknown block", gifStream(pal, []byte{0x7E}), ErrUnsupported},
		{"unknown extension", gifStream(pal, []byte{0x21, 0x01, 0}), ErrUnsupported},
		{"graphics control size", gifStream(pal, []byte{0x21, 0xF9, 5, 0, 0, 0, 0, 0, 0}), ErrMalformed},
		{"disposal previous", gifStream(pal, gce(0x0C, 10, 0)), ErrUnsupported},
		{"disposal out of range", gifStream(pal, gce(0x10, 10, 0)), ErrUnsupported},
		{"missing terminator", gifStream(pal, []byte{0x21, 0xF9, 4, 0x04, 10, 0, 0, 1}), ErrMalformed},
		{"interlaced frame", gifStream(pal, imgDesc(0, 0, 2, 2, 0x40)), ErrUnsupported},
		{"sorted local table", gifStream(pal, imgDesc(0, 0, 2, 2, 0x20)), ErrUnsupported},
		{"frame outside canvas", gifStream(pal, imgDesc(1, 1, 2, 2, 0)), ErrMalformed},
		{"no color table", gifStream(gifHeader(2, 2, 0, 0), imgDesc(0, 0, 2, 2, 0)), ErrMalformed},
		{"min code size 13", gifStream(pal, imgDesc(0, 0, 2, 2, 0), []byte{13}), ErrCapacity},
		{"pixel shortfall", gifStream(pal, imgDesc(0, 0, 2, 2, 0), imgData(2, []byte{0x44, 0x0A}, 255), trailer), ErrMalformed},
		{"corrupt code stream", gifStream(pal, imgDesc(0, 0, 2, 2, 0), imgData(2, []byte{0xC4, 0x01}, 255), trailer), lzw.ErrCorrupt},
		{"canvas overflow", gifStream(gifHeader(1, 1, 0x80, 0), rbPalette, imgDesc(0, 0, 1, 1, 0), imgData(2, alternatingCodes, 255), trailer), lzw.ErrCapacity},
		{"truncated image data", gifStream(pal, imgDesc(0, 0, 2, 2, 0), []byte{2, 10, 0xAA}), ErrMalformed},
		{"unterminated image data", gifStream(pal, imgDesc(0, 0, 2, 2, 0), []byte{2, 3, 0x44, 0x10, 0x05}), ErrMalformed},
		{"unterminated comment", gifStream(pal, []byte{0x21, 0xFE, 5, 'a', 'b'}), ErrMalformed},
		{"missing trailer", valid[:len(valid)-1], ErrMalformed},
		{"no image data", gifStream(pal, trailer), ErrMalformed},
	}
	for _, tc := range cases {
		if _, err := Decode(tc.data); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestFrameBudget(t *testing.T) {
	// 4097 one-pixel frames: code stream 4,0,5 decodes a single index.
	onePixel := gifStream(imgDesc(0, 0, 1, 1, 0), imgData(2, []byte{0x44, 0x01}, 255))
	data := gifStream(gifHeader(1, 1, 0x80, 0), rbPalette)
	for i := 0; i <= MaxFrames; i++ {
		data = append(data, onePixel...)
	}
	data = append(data, trailer...)

	_, err := Decode(data)
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("got %v, want ErrCapacity", err)
	}
}

func TestZeroAreaFrame(t *testing.T) {
	data := gifStream(
		gifHeader(2, 2, 0x80, 0), rbPalette,
		imgDesc(0, 0, 0, 0, 0), []byte{2, 0},
		trailer,
	)
	doc, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Frames[0].Indexes.Len() != 0 {
		t.Fatalf("indices: got %d, want 0", doc.Frames[0].Indexes.Len())
	}
}

// Package gif parses animated GIF streams (87a/89a) into documents of
// palette-indexed frames and composites them onto RGBA canvases. Interlaced
// images, sorted color tables and the restore-to-previous disposal method
// are out of scope and rejected.
package gif

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/cam-per/gifstream/gif/lzw"
)

// MaxFrames caps how many image descriptors one stream may carry.
const MaxFrames = 4096

var (
	ErrUnsupported = errors.New("gif: unsupported feature")
	ErrMalformed   = errors.New("gif: malformed stream")
	ErrCapacity    = errors.New("gif: capacity exceeded")
)

const (
	blockExtension = 0x21
	blockImage     = 0x2C
	blockTrailer   = 0x3B

	extGraphicsControl = 0xF9
	extComment         = 0xFE
	extApplication     = 0xFF
	extPlainText       = 0x21
)

type Disposal uint8

const (
	DisposalUnspecified Disposal = 0
	DisposalNone        Disposal = 1
	DisposalBackground  Disposal = 2
	DisposalPrevious    Disposal = 3
)

func (d Disposal) String() string {
	switch d {
	case DisposalUnspecified:
		return "unspecified"
	case DisposalNone:
		return "none"
	case DisposalBackground:
		return "background"
	case DisposalPrevious:
		return "previous"
	}
	return fmt.Sprintf("disposal(%d)", uint8(d))
}

// Header is the logical screen descriptor. Packed keeps the raw flag byte;
// the accessors pull fields out of it.
type Header struct {
	Version         string
	Width           int
	Height          int
	Packed          byte
	BackgroundIndex byte
	AspectRatio     byte
}

func (h Header) HasGlobalPalette() bool { return h.Packed&0x80 != 0 }
func (h Header) ColorResolution() int   { return int(h.Packed>>4) & 0b111 }
func (h Header) Sorted() bool           { return h.Packed&0x08 != 0 }
func (h Header) PaletteSizeField() int  { return int(h.Packed & 0b111) }

func (h Header) Bounds() image.Rectangle { return image.Rect(0, 0, h.Width, h.Height) }

// ImageDescriptor places one frame's sub-rectangle on the canvas.
type ImageDescriptor struct {
	X, Y   int
	Width  int
	Height int
	Packed byte
}

func (d ImageDescriptor) HasLocalPalette() bool { return d.Packed&0x80 != 0 }
func (d ImageDescriptor) Interlaced() bool      { return d.Packed&0x40 != 0 }
func (d ImageDescriptor) Sorted() bool          { return d.Packed&0x20 != 0 }
func (d ImageDescriptor) PaletteSizeField() int { return int(d.Packed & 0b111) }

func (d ImageDescriptor) Rect() image.Rectangle {
	return image.Rect(d.X, d.Y, d.X+d.Width, d.Y+d.Height)
}

// GraphicsControl carries the timing and transparency settings that apply
// to the image descriptor following it.
type GraphicsControl struct {
	Packed          byte
	DelayHundredths int
	TransparentIdx  byte
}

func (g GraphicsControl) Disposal() Disposal    { return Disposal(g.Packed>>2) & 0b111 }
func (g GraphicsControl) HasTransparency() bool { return g.Packed&0x01 != 0 }

// TransparentIndex returns the palette index left untouched when
// compositing, or -1 when the frame has no transparency.
func (g GraphicsControl) TransparentIndex() int {
	if !g.HasTransparency() {
		return -1
	}
	return int(g.TransparentIdx)
}

// Palette holds decoded color table entries, alpha forced to 255.
type Palette []color.RGBA

// Frame is one image of the document. Exactly one of Indexes or Compressed
// is set, depending on the ingestion mode the document was decoded with.
type Frame struct {
	Desc        ImageDescriptor
	Palette     Palette          // local color table, nil when absent
	Control     *GraphicsControl // nil when the frame had no control block
	MinCodeSize byte

	Indexes    *lzw.IndexStream
	Compressed []byte
}

func (f *Frame) Rect() image.Rectangle { return f.Desc.Rect() }

func (f *Frame) DelayHundredths() int {
	if f.Control == nil {
		return 0
	}
	return f.Control.DelayHundredths
}

func (f *Frame) Disposal() Disposal {
	if f.Control == nil {
		return DisposalUnspecified
	}
	return f.Control.Disposal()
}

func (f *Frame) TransparentIndex() int {
	if f.Control == nil {
		return -1
	}
	return f.Control.TransparentIndex()
}

// Document is the parse product: header, optional global palette and the
// ordered frames of the stream.
type Document struct {
	Header Header
	Global Palette
	Frames []*Frame

	runTime int // sum of frame delays, hundredths of a second
}

func (doc *Document) Width() int      { return doc.Header.Width }
func (doc *Document) Height() int     { return doc.Header.Height }
func (doc *Document) FrameCount() int { return len(doc.Frames) }

// RunTime is the animation's total length in hundredths of a second.
func (doc *Document) RunTime() int { return doc.runTime }

func (doc *Document) Duration() time.Duration {
	return time.Duration(doc.runTime) * 10 * time.Millisecond
}

// PaletteFor resolves the color table a frame composites with: its local
// one when present, the global one otherwise.
func (doc *Document) PaletteFor(f *Frame) Palette {
	if f.Palette != nil {
		return f.Palette
	}
	return doc.Global
}

func (doc *Document) appendFrame(f *Frame) {
	doc.Frames = append(doc.Frames, f)
	doc.runTime += f.DelayHundredths()
}

package gif

import (
	"fmt"
	"image"
	"image/color"
)

// Composite paints one frame's palette indices into dst, an RGBA8888 canvas
// of canvasW by canvasH pixels, row-major over the frame rect r. An index
// equal to transparent leaves the canvas pixel untouched; every written
// pixel gets alpha 255.
func Composite(dst []byte, indices []byte, p Palette, transparent int, r image.Rectangle, canvasW, canvasH int) error {
	if len(dst) != canvasW*canvasH*4 {
		return fmt.Errorf("gif: canvas buffer is %d bytes, want %d: %w", len(dst), canvasW*canvasH*4, ErrMalformed)
	}
	if want := r.Dx() * r.Dy(); len(indices) != want {
		return fmt.Errorf("gif: %d indices for a %d pixel rect: %w", len(indices), want, ErrMalformed)
	}
	if !r.In(image.Rect(0, 0, canvasW, canvasH)) {
		return fmt.Errorf("gif: frame rect %v outside %dx%d canvas: %w", r, canvasW, canvasH, ErrMalformed)
	}

	pos := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := (y*canvasW + r.Min.X) * 4
		for x := r.Min.X; x < r.Max.X; x++ {
			idx := int(indices[pos])
			pos++
			if idx == transparent {
				off += 4
				continue
			}
			if idx >= len(p) {
				return fmt.Errorf("gif: pixel index %d outside %d-color table: %w", idx, len(p), ErrMalformed)
			}
			c := p[idx]
			dst[off+0] = c.R
			dst[off+1] = c.G
			dst[off+2] = c.B
			dst[off+3] = 0xFF
			off += 4
		}
	}
	return nil
}

// RenderFrame composites frame i's decoded indices onto dst using the
// frame's effective palette and transparency.
func (doc *Document) RenderFrame(dst []byte, i int, indices []byte) error {
	if i < 0 || i >= len(doc.Frames) {
		return fmt.Errorf("gif: frame %d of %d: %w", i, len(doc.Frames), ErrMalformed)
	}
	f := doc.Frames[i]
	return Composite(dst, indices, doc.PaletteFor(f), f.TransparentIndex(), f.Rect(), doc.Width(), doc.Height())
}

// FillBackground floods dst with the background color, the global palette
// entry at the header's background index. A frame whose predecessor asked
// for ClearToBackground disposal composites over this fill. Streams without
// a usable background entry fill opaque black.
func (doc *Document) FillBackground(dst []byte) {
	c := color.RGBA{A: 0xFF}
	if int(doc.Header.BackgroundIndex) < len(doc.Global) {
		c = doc.Global[doc.Header.BackgroundIndex]
	}
	for i := 0; i+3 < len(dst); i += 4 {
		dst[i+0] = c.R
		dst[i+1] = c.G
		dst[i+2] = c.B
		dst[i+3] = c.A
	}
}

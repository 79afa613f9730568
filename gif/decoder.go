package gif

import (
	"fmt"
	"image/color"

	"github.com/cam-per/gifstream/gif/lzw"
	"github.com/cam-per/gifstream/utils"
)

// Decode parses a complete GIF stream, decompressing every frame to an
// index stream as it goes. The input buffer is not retained.
func Decode(data []byte) (*Document, error) {
	return (&decoder{cur: utils.NewCursor(data)}).run()
}

// DecodeCompressed parses like Decode but keeps each frame's compressed
// bytes, concatenated across sub-blocks, for deferred decompression.
func DecodeCompressed(data []byte) (*Document, error) {
	return (&decoder{cur: utils.NewCursor(data), keep: true}).run()
}

type decoder struct {
	cur  *utils.Cursor
	keep bool

	doc     *Document
	pending *GraphicsControl
	table   lzw.CodeTable
}

func (d *decoder) corrupt(what string) error {
	return fmt.Errorf("gif: %s at offset %d: %w", what, d.cur.Pos(), ErrMalformed)
}

func (d *decoder) run() (*Document, error) {
	d.doc = &Document{}
	if err := d.header(); err != nil {
		return nil, err
	}

loop:
	for {
		introducer, err := d.cur.ReadByte()
		if err != nil {
			return nil, d.corrupt("missing trailer")
		}
		switch introducer {
		case blockExtension:
			if err := d.extension(); err != nil {
				return nil, err
			}
		case blockImage:
			if err := d.image(); err != nil {
				return nil, err
			}
		case blockTrailer:
			break loop
		default:
			return nil, fmt.Errorf("gif: unknown block %#02x at offset %d: %w", introducer, d.cur.Pos()-1, ErrUnsupported)
		}
	}

	if len(d.doc.Frames) == 0 {
		return nil, fmt.Errorf("gif: no image data: %w", ErrMalformed)
	}
	return d.doc, nil
}

func (d *decoder) header() error {
	sig, err := d.cur.Next(6)
	if err != nil {
		return d.corrupt("truncated header")
	}
	if string(sig[:3]) != "GIF" || (string(sig[3:]) != "87a" && string(sig[3:]) != "89a") {
		return fmt.Errorf("gif: bad signature %q: %w", sig, ErrMalformed)
	}
	version := string(sig[3:])

	w, err := d.cur.ReadUint16LE()
	if err != nil {
		return d.corrupt("truncated header")
	}
	h, err := d.cur.ReadUint16LE()
	if err != nil {
		return d.corrupt("truncated header")
	}
	rest, err := d.cur.Next(3)
	if err != nil {
		return d.corrupt("truncated header")
	}

	d.doc.Header = Header{
		Version:         version,
		Width:           int(w),
		Height:          int(h),
		Packed:          rest[0],
		BackgroundIndex: rest[1],
		AspectRatio:     rest[2],
	}

	if d.doc.Header.HasGlobalPalette() {
		p, err := d.palette(d.doc.Header.PaletteSizeField())
		if err != nil {
			return err
		}
		d.doc.Global = p
	}
	return nil
}

func (d *decoder) palette(sizeField int) (Palette, error) {
	n := 1 << (sizeField + 1)
	raw, err := d.cur.Next(3 * n)
	if err != nil {
		return nil, d.corrupt("truncated color table")
	}
	p := make(Palette, n)
	for i := range p {
		p[i] = color.RGBA{R: raw[3*i], G: raw[3*i+1], B: raw[3*i+2], A: 0xFF}
	}
	return p, nil
}

func (d *decoder) extension() error {
	sub, err := d.cur.ReadByte()
	if err != nil {
		return d.corrupt("truncated extension")
	}
	size, err := d.cur.ReadByte()
	if err != nil {
		return d.corrupt("truncated extension")
	}

	switch sub {
	case extGraphicsControl:
		return d.graphicsControl(size)
	case extApplication, extPlainText:
		// plain text reuses the 0x21 introducer value as its sub-type
		if err := d.cur.Skip(int(size)); err != nil {
			return d.corrupt("truncated extension header")
		}
		first, err := d.cur.ReadByte()
		if err != nil {
			return d.corrupt("truncated extension")
		}
		return d.skipSubBlocks(first)
	case extComment:
		// no fixed part: the size byte is already the first sub-block length
		return d.skipSubBlocks(size)
	default:
		return fmt.Errorf("gif: extension %#02x: %w", sub, ErrUnsupported)
	}
}

func (d *decoder) graphicsControl(size byte) error {
	if size != 4 {
		return fmt.Errorf("gif: graphics control block of %d bytes: %w", size, ErrMalformed)
	}
	packed, err := d.cur.ReadByte()
	if err != nil {
		return d.corrupt("truncated graphics control")
	}
	delay, err := d.cur.ReadUint16LE()
	if err != nil {
		return d.corrupt("truncated graphics control")
	}
	tIdx, err := d.cur.ReadByte()
	if err != nil {
		return d.corrupt("truncated graphics control")
	}

	ctl := &GraphicsControl{Packed: packed, DelayHundredths: int(delay), TransparentIdx: tIdx}
	if ctl.Disposal() >= DisposalPrevious {
		return fmt.Errorf("gif: disposal method %d: %w", ctl.Disposal(), ErrUnsupported)
	}

	term, err := d.cur.ReadByte()
	if err != nil || term != 0 {
		return d.corrupt("missing block terminator")
	}

	// a newer control before any image replaces the pending one
	d.pending = ctl
	return nil
}

func (d *decoder) skipSubBlocks(first byte) error {
	for size := first; size != 0; {
		if err := d.cur.Skip(int(size)); err != nil {
			return d.corrupt("truncated data sub-block")
		}
		var err error
		if size, err = d.cur.ReadByte(); err != nil {
			return d.corrupt("unterminated data sub-blocks")
		}
	}
	return nil
}

func (d *decoder) image() error {
	idx := len(d.doc.Frames)
	if idx >= MaxFrames {
		return fmt.Errorf("gif: more than %d frames: %w", MaxFrames, ErrCapacity)
	}

	var dims [4]int
	for i := range dims {
		v, err := d.cur.ReadUint16LE()
		if err != nil {
			return d.corrupt("truncated image descriptor")
		}
		dims[i] = int(v)
	}
	packed, err := d.cur.ReadByte()
	if err != nil {
		return d.corrupt("truncated image descriptor")
	}
	desc := ImageDescriptor{X: dims[0], Y: dims[1], Width: dims[2], Height: dims[3], Packed: packed}

	if desc.Interlaced() {
		return fmt.Errorf("gif: frame %d is interlaced: %w", idx, ErrUnsupported)
	}
	if desc.Sorted() {
		return fmt.Errorf("gif: frame %d has a sorted color table: %w", idx, ErrUnsupported)
	}
	if !desc.Rect().In(d.doc.Header.Bounds()) {
		return fmt.Errorf("gif: frame %d rect %v outside %dx%d canvas: %w",
			idx, desc.Rect(), d.doc.Width(), d.doc.Height(), ErrMalformed)
	}

	frame := &Frame{Desc: desc, Control: d.pending}
	d.pending = nil

	if desc.HasLocalPalette() {
		p, err := d.palette(desc.PaletteSizeField())
		if err != nil {
			return err
		}
		frame.Palette = p
	}
	if d.doc.PaletteFor(frame) == nil {
		return fmt.Errorf("gif: frame %d has no color table: %w", idx, ErrMalformed)
	}

	min, err := d.cur.ReadByte()
	if err != nil {
		return d.corrupt("truncated image data")
	}
	if min > 12 {
		return fmt.Errorf("gif: min code size %d: %w", min, ErrCapacity)
	}
	frame.MinCodeSize = min

	if d.keep {
		err = d.concat(frame)
	} else {
		err = d.decompress(frame, idx)
	}
	if err != nil {
		return err
	}

	d.doc.appendFrame(frame)
	return nil
}

// decompress feeds the image's sub-blocks through the LZW decoder one at a
// time, threading a single decompression state across the chain.
func (d *decoder) decompress(frame *Frame, idx int) error {
	d.table.Reset(frame.MinCodeSize)
	var st lzw.State
	stream := lzw.NewIndexStream(d.doc.Width() * d.doc.Height())

	done := false
	size, err := d.cur.ReadByte()
	if err != nil {
		return d.corrupt("truncated image data")
	}
	for size != 0 {
		chunk, err := d.cur.Next(int(size))
		if err != nil {
			return d.corrupt("truncated image data")
		}
		if !done {
			if done, err = lzw.Decode(chunk, &d.table, &st, stream); err != nil {
				return fmt.Errorf("gif: frame %d: %w", idx, err)
			}
		}
		if size, err = d.cur.ReadByte(); err != nil {
			return d.corrupt("unterminated image data")
		}
	}

	if want := frame.Desc.Width * frame.Desc.Height; stream.Len() != want {
		return fmt.Errorf("gif: frame %d decoded %d of %d pixels: %w", idx, stream.Len(), want, ErrMalformed)
	}
	frame.Indexes = stream
	return nil
}

func (d *decoder) concat(frame *Frame) error {
	size, err := d.cur.ReadByte()
	if err != nil {
		return d.corrupt("truncated image data")
	}
	for size != 0 {
		chunk, err := d.cur.Next(int(size))
		if err != nil {
			return d.corrupt("truncated image data")
		}
		frame.Compressed = append(frame.Compressed, chunk...)
		if size, err = d.cur.ReadByte(); err != nil {
			return d.corrupt("unterminated image data")
		}
	}
	return nil
}

package anim

import (
	"fmt"
	"time"

	"github.com/cam-per/gifstream/gif"
	"github.com/cam-per/gifstream/gif/lzw"
)

// CompressedStream retains only each frame's compressed bytes and decodes a
// frame again every time the playhead reaches it. One code table, one
// decompression state and one index stream serve the whole lifetime of the
// instance. The least memory, the most per-frame work.
type CompressedStream struct {
	playhead
	table  lzw.CodeTable
	state  lzw.State
	stream *lzw.IndexStream
}

func NewCompressed(data []byte) (*CompressedStream, error) {
	doc, err := gif.DecodeCompressed(data)
	if err != nil {
		return nil, err
	}

	c := &CompressedStream{
		playhead: newPlayhead(doc),
		stream:   lzw.NewIndexStream(doc.Width() * doc.Height()),
	}
	if err := c.renderCompressed(0); err != nil {
		return nil, err
	}
	c.snapshot()
	return c, nil
}

// renderCompressed decompresses frame i into the reused index stream and
// composites it. Table and state are reset at the frame boundary; within
// the frame the decoder threads them across the whole buffer.
func (c *CompressedStream) renderCompressed(i int) error {
	f := c.doc.Frames[i]
	c.table.Reset(f.MinCodeSize)
	c.state = lzw.State{}
	c.stream.Reset()
	if _, err := lzw.Decode(f.Compressed, &c.table, &c.state, c.stream); err != nil {
		return fmt.Errorf("anim: frame %d: %w", i, err)
	}
	return c.doc.RenderFrame(c.canvas, i, c.stream.Indices())
}

// Tick advances the clock by dt, decoding and compositing at most one frame
// per call; wrapping restores the first-frame snapshot without a decode.
func (c *CompressedStream) Tick(dt time.Duration) (bool, error) {
	next, ok := c.step(dt)
	if !ok {
		return false, nil
	}
	if next == 0 {
		copy(c.canvas, c.first)
	} else {
		if c.doc.Frames[next-1].Disposal() == gif.DisposalBackground {
			c.doc.FillBackground(c.canvas)
		}
		if err := c.renderCompressed(next); err != nil {
			return false, err
		}
	}
	c.frame = next
	return true, nil
}

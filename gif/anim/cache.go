package anim

import (
	"fmt"
	"image"
	"time"

	"github.com/cam-per/gifstream/gif"
)

// Cached decodes and composites every frame at construction, retaining one
// RGBA buffer per frame for random access. The most memory, the cheapest
// lookups.
type Cached struct {
	timeline
	frames [][]byte
}

func NewCached(data []byte) (*Cached, error) {
	doc, err := gif.Decode(data)
	if err != nil {
		return nil, err
	}

	c := &Cached{timeline: newTimeline(doc), frames: make([][]byte, 0, doc.FrameCount())}
	canvas := make([]byte, doc.Width()*doc.Height()*4)
	for i, f := range doc.Frames {
		if i > 0 && doc.Frames[i-1].Disposal() == gif.DisposalBackground {
			doc.FillBackground(canvas)
		}
		if err := doc.RenderFrame(canvas, i, f.Indexes.Indices()); err != nil {
			return nil, err
		}
		c.frames = append(c.frames, append([]byte(nil), canvas...))
		f.Indexes = nil // only the composited RGBA survives construction
	}
	return c, nil
}

// Frame returns frame i's composited RGBA buffer.
func (c *Cached) Frame(i int) ([]byte, error) {
	if i < 0 || i >= len(c.frames) {
		return nil, fmt.Errorf("anim: frame %d of %d: %w", i, len(c.frames), ErrFrameRange)
	}
	return c.frames[i], nil
}

// Image returns frame i as an image over the cached buffer, no copy.
func (c *Cached) Image(i int) (*image.RGBA, error) {
	buf, err := c.Frame(i)
	if err != nil {
		return nil, err
	}
	return rgbaImage(buf, c.Width(), c.Height()), nil
}

// FrameAt returns the frame visible at time t: the one whose cumulative
// delay first exceeds t, wrapped by the total run time when looping and
// clamped to the last frame otherwise. A zero run time always shows
// frame 0.
func (c *Cached) FrameAt(t time.Duration, loop bool) []byte {
	if t < 0 {
		t = 0
	}
	if c.runTime() <= 0 {
		return c.frames[0]
	}
	h := int(t / hundredth)
	if loop {
		h %= c.runTime()
	} else if h >= c.runTime() {
		return c.frames[len(c.frames)-1]
	}
	return c.frames[c.frameFor(h)]
}

// ImageAt is FrameAt as an image view.
func (c *Cached) ImageAt(t time.Duration, loop bool) *image.RGBA {
	return rgbaImage(c.FrameAt(t, loop), c.Width(), c.Height())
}

// Loop adapts a Cached animation to the Ticker surface. Unlike the
// streaming strategies it selects frames by absolute lookup, so a large dt
// lands on the right frame instead of stepping through the ones between.
type Loop struct {
	*Cached
	elapsed time.Duration
	frame   int
}

func NewLoop(c *Cached) *Loop { return &Loop{Cached: c} }

func (l *Loop) Tick(dt time.Duration) (bool, error) {
	l.elapsed += dt
	if l.elapsed < 0 {
		l.elapsed = 0
	}
	next := 0
	if l.runTime() > 0 {
		next = l.frameFor(int(l.elapsed/hundredth) % l.runTime())
	}
	changed := next != l.frame
	l.frame = next
	return changed, nil
}

func (l *Loop) CurrentFrame() []byte { return l.frames[l.frame] }

func (l *Loop) CurrentImage() *image.RGBA {
	return rgbaImage(l.frames[l.frame], l.Width(), l.Height())
}

func (l *Loop) FirstFrame() []byte { return l.frames[0] }
func (l *Loop) FrameIndex() int    { return l.frame }

// Package anim plays decoded GIF documents back as RGBA frames. Three
// strategies trade memory for per-frame work: a full cache of composited
// frames, retained index streams over one shared canvas, and retained
// compressed bytes decoded again at each frame step.
package anim

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/cam-per/gifstream/gif"
)

const hundredth = 10 * time.Millisecond

var ErrFrameRange = errors.New("anim: frame index out of range")

type Strategy uint8

const (
	FullCache Strategy = iota
	StreamIndexes
	StreamCompressed
)

func (s Strategy) String() string {
	switch s {
	case FullCache:
		return "cache"
	case StreamIndexes:
		return "stream"
	case StreamCompressed:
		return "compressed"
	}
	return fmt.Sprintf("strategy(%d)", uint8(s))
}

func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "cache":
		return FullCache, nil
	case "stream":
		return StreamIndexes, nil
	case "compressed":
		return StreamCompressed, nil
	}
	return 0, fmt.Errorf("anim: unknown strategy %q", name)
}

// Animation is the capability surface every strategy provides.
type Animation interface {
	Width() int
	Height() int
	FrameCount() int
	Duration() time.Duration
}

// Ticker is the streaming surface: advance with the caller's clock, read
// back the shared canvas.
type Ticker interface {
	Animation
	Tick(dt time.Duration) (bool, error)
	CurrentFrame() []byte
	CurrentImage() *image.RGBA
	FirstFrame() []byte
	FrameIndex() int
}

// Open constructs the strategy selected by s over one GIF stream.
func Open(data []byte, s Strategy) (Animation, error) {
	switch s {
	case FullCache:
		return NewCached(data)
	case StreamIndexes:
		return NewStreaming(data)
	case StreamCompressed:
		return NewCompressed(data)
	}
	return nil, fmt.Errorf("anim: unknown strategy %d", s)
}

// timeline is the immutable part shared by all strategies: the document and
// the cumulative delay mark, in hundredths, at which each frame ends.
type timeline struct {
	doc    *gif.Document
	bounds []int
}

func newTimeline(doc *gif.Document) timeline {
	bounds := make([]int, doc.FrameCount())
	total := 0
	for i, f := range doc.Frames {
		total += f.DelayHundredths()
		bounds[i] = total
	}
	return timeline{doc: doc, bounds: bounds}
}

func (t *timeline) Width() int              { return t.doc.Width() }
func (t *timeline) Height() int             { return t.doc.Height() }
func (t *timeline) FrameCount() int         { return t.doc.FrameCount() }
func (t *timeline) Duration() time.Duration { return t.doc.Duration() }

func (t *timeline) runTime() int { return t.doc.RunTime() }

// frameFor maps a wrapped time in hundredths to the frame whose cumulative
// delay first exceeds it.
func (t *timeline) frameFor(h int) int {
	for i, b := range t.bounds {
		if b > h {
			return i
		}
	}
	return len(t.bounds) - 1
}

// playhead adds the mutable cursor of the streaming strategies: a monotonic
// elapsed-time accumulator, the current frame, the shared canvas and the
// first-frame snapshot restored on wraparound.
type playhead struct {
	timeline
	elapsed time.Duration
	frame   int
	canvas  []byte
	first   []byte
}

func newPlayhead(doc *gif.Document) playhead {
	return playhead{
		timeline: newTimeline(doc),
		canvas:   make([]byte, doc.Width()*doc.Height()*4),
	}
}

func (p *playhead) CurrentFrame() []byte { return p.canvas }
func (p *playhead) FirstFrame() []byte   { return p.first }
func (p *playhead) FrameIndex() int      { return p.frame }

func (p *playhead) CurrentImage() *image.RGBA {
	return rgbaImage(p.canvas, p.Width(), p.Height())
}

// step accumulates dt and decides the single transition a Tick may take:
// one frame forward, wrapping to 0 after the last, and only once the
// wrapped time has left the current frame's window.
func (p *playhead) step(dt time.Duration) (int, bool) {
	p.elapsed += dt
	if p.elapsed < 0 {
		p.elapsed = 0
	}
	if p.runTime() <= 0 || p.FrameCount() < 2 {
		return p.frame, false
	}
	wrapped := int(p.elapsed/hundredth) % p.runTime()
	if p.frameFor(wrapped) == p.frame {
		return p.frame, false
	}
	next := p.frame + 1
	if next == p.FrameCount() {
		next = 0
	}
	return next, true
}

func (p *playhead) snapshot() {
	p.first = append([]byte(nil), p.canvas...)
}

func rgbaImage(buf []byte, w, h int) *image.RGBA {
	return &image.RGBA{Pix: buf, Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}
}

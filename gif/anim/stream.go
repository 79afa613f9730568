package anim

import (
	"time"

	"github.com/cam-per/gifstream/gif"
)

// Streaming retains every frame as a decoded index stream and composites
// onto one shared canvas as the playhead advances. Middle ground: no RGBA
// cache, no decompression after construction.
type Streaming struct {
	playhead
}

func NewStreaming(data []byte) (*Streaming, error) {
	doc, err := gif.Decode(data)
	if err != nil {
		return nil, err
	}

	s := &Streaming{playhead: newPlayhead(doc)}
	if err := doc.RenderFrame(s.canvas, 0, doc.Frames[0].Indexes.Indices()); err != nil {
		return nil, err
	}
	s.snapshot()
	return s, nil
}

// Tick advances the clock by dt and composites at most one frame per call,
// restoring the first-frame snapshot when playback wraps. It reports
// whether the visible frame changed.
func (s *Streaming) Tick(dt time.Duration) (bool, error) {
	next, ok := s.step(dt)
	if !ok {
		return false, nil
	}
	if next == 0 {
		copy(s.canvas, s.first)
	} else {
		if s.doc.Frames[next-1].Disposal() == gif.DisposalBackground {
			s.doc.FillBackground(s.canvas)
		}
		if err := s.doc.RenderFrame(s.canvas, next, s.doc.Frames[next].Indexes.Indices()); err != nil {
			return false, err
		}
	}
	s.frame = next
	return true, nil
}

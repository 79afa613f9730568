// Package lzw decodes the GIF variant of LZW: variable-width codes read
// LSB-first, a clear/end code pair, and a dictionary capped at 4096 rows.
package lzw

import (
	"errors"
	"fmt"
)

const (
	maxRows  = 4096
	maxChain = 1024

	noPrev = 0xFFFF
)

var (
	ErrCorrupt  = errors.New("lzw: corrupt code stream")
	ErrCapacity = errors.New("lzw: capacity exceeded")
)

type tableRow struct {
	b    byte
	prev uint16
}

// CodeTable is the decode dictionary. One table serves a whole stream:
// Reset clears it in place, nothing is ever reallocated.
type CodeTable struct {
	rows  [maxRows]tableRow
	min   uint8
	clear uint16
	end   uint16
	next  uint16
	width uint16
}

// Reset prepares the table for a stream with the given minimum code size:
// literal rows below the clear code, the first free slot right after the
// end code, and the code width back at minCodeSize+1 bits.
func (t *CodeTable) Reset(minCodeSize uint8) {
	t.min = minCodeSize
	t.clear = 1 << minCodeSize
	t.end = t.clear + 1
	t.next = t.clear + 2
	t.width = uint16(minCodeSize) + 1
	for i := range t.rows {
		t.rows[i] = tableRow{prev: noPrev}
	}
	for i := uint16(0); i < t.clear && i < maxRows; i++ {
		t.rows[i].b = byte(i)
	}
}

// State carries decode progress between calls: a partially assembled code
// with its bit count when the input ran out mid-code, the bit mask into the
// current byte, and the previously emitted code. The zero value is a fresh
// state.
type State struct {
	partial uint16
	bits    uint16
	pending bool
	mask    byte
	prev    uint16
	hasPrev bool
}

// IndexStream accumulates decoded palette indices for one frame. The limit
// is fixed at construction; decoding past it is a capacity error.
type IndexStream struct {
	indices []byte
	limit   int
}

func NewIndexStream(limit int) *IndexStream {
	return &IndexStream{indices: make([]byte, 0, limit), limit: limit}
}

func (s *IndexStream) Indices() []byte { return s.indices }

func (s *IndexStream) Len() int { return len(s.indices) }

func (s *IndexStream) Reset() { s.indices = s.indices[:0] }

func (s *IndexStream) push(b byte) error {
	if len(s.indices) >= s.limit {
		return fmt.Errorf("lzw: index stream full at %d: %w", s.limit, ErrCapacity)
	}
	s.indices = append(s.indices, b)
	return nil
}

// Decode consumes one chunk of compressed bytes, appending decoded indices
// to out and updating table and state in place. Feeding a stream in chunks
// split at any byte boundary produces the same output as feeding it whole:
// a code cut off by the end of data is saved in state and finished by the
// next call. Returns done once the end-of-information code is processed;
// the caller should stop feeding the frame then.
func Decode(data []byte, t *CodeTable, s *State, out *IndexStream) (bool, error) {
	mask := byte(0x01)
	if s.pending {
		mask = s.mask
	}

	pos := 0
	for pos < len(data) {
		var code, bit uint16
		if s.pending {
			code, bit = s.partial, s.bits
			s.pending = false
		}

		for ; bit < t.width; bit++ {
			if data[pos]&mask != 0 {
				code |= 1 << bit
			}
			mask <<= 1
			if mask == 0 {
				mask = 0x01
				pos++
				if pos == len(data) {
					// Out of input. Save the code so far, even a complete
					// one: the next call will finish or process it.
					s.partial = code
					s.bits = bit + 1
					s.pending = true
					s.mask = mask
					return false, nil
				}
			}
		}

		switch code {
		case t.clear:
			t.Reset(t.min)
			s.hasPrev = false
			continue
		case t.end:
			return true, nil
		}

		if code > t.next || (code == t.next && !s.hasPrev) {
			return false, fmt.Errorf("lzw: code %d past next slot %d: %w", code, t.next, ErrCorrupt)
		}

		if s.hasPrev && t.width <= 12 {
			if t.next >= maxRows {
				return false, fmt.Errorf("lzw: code table full: %w", ErrCapacity)
			}
			// The new row's byte is the first byte of the chain that code
			// resolves to; a code one past the table resolves through the
			// previous code.
			head := code
			if code == t.next {
				head = s.prev
			}
			for depth := 0; t.rows[head].prev != noPrev; depth++ {
				if t.rows[head].prev == head || depth >= maxChain {
					return false, fmt.Errorf("lzw: code chain cycles at %d: %w", head, ErrCorrupt)
				}
				head = t.rows[head].prev
			}
			t.rows[t.next] = tableRow{b: t.rows[head].b, prev: s.prev}
			t.next++
			// Widen once the next free slot needs one more bit to address.
			if t.next == 1<<t.width && t.width < 12 {
				t.width++
			}
		}

		s.prev = code
		s.hasPrev = true

		var chain [maxChain]byte
		n := 0
		for cur := code; cur != noPrev; {
			if n >= maxChain {
				return false, fmt.Errorf("lzw: code %d expands past %d indices: %w", code, maxChain, ErrCorrupt)
			}
			if cur >= maxRows {
				return false, fmt.Errorf("lzw: code chain escapes table at %d: %w", cur, ErrCorrupt)
			}
			row := t.rows[cur]
			if row.prev == cur {
				return false, fmt.Errorf("lzw: code chain cycles at %d: %w", cur, ErrCorrupt)
			}
			chain[n] = row.b
			n++
			cur = row.prev
		}
		for i := n - 1; i >= 0; i-- {
			if err := out.push(chain[i]); err != nil {
				return false, err
			}
		}
	}

	return false, nil
}

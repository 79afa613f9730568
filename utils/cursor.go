package utils

import (
	"encoding/binary"
	"io"
)

// Cursor is a forward-only reader over an in-memory buffer. Every read is
// bounds-checked; running past the end returns io.ErrUnexpectedEOF instead
// of panicking.
type Cursor struct {
	data []byte
	pos  int
}

func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

func (c *Cursor) Pos() int { return c.pos }

func (c *Cursor) Remaining() int { return len(c.data) - c.pos }

func (c *Cursor) ReadByte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, io.ErrUnexpectedEOF
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *Cursor) ReadUint16LE() (uint16, error) {
	if c.Remaining() < 2 {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint16(c.data[c.pos:])
	c.pos += 2
	return v, nil
}

// Next returns a view of the next n bytes. The view aliases the underlying
// buffer; callers that retain it must copy.
func (c *Cursor) Next(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, io.ErrUnexpectedEOF
	}
	buf := c.data[c.pos : c.pos+n]
	c.pos += n
	return buf, nil
}

func (c *Cursor) Skip(n int) error {
	if n < 0 || c.Remaining() < n {
		return io.ErrUnexpectedEOF
	}
	c.pos += n
	return nil
}

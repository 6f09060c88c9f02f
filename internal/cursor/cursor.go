// Package cursor provides a bounds-checked little-endian reader over an
// in-memory byte buffer. Every primitive returns ErrUnexpectedEOF rather
// than garbage when the buffer runs out.
package cursor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

var ErrUnexpectedEOF = errors.New("unexpected end of data")

type Cursor struct {
	buf []byte
	pos int
}

func New(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Open reads the whole file into memory. World files top out around a
// hundred megabytes, so a single read is fine.
func Open(path string) (*Cursor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(b), nil
}

func (c *Cursor) Len() int  { return len(c.buf) }
func (c *Cursor) Tell() int { return c.pos }

func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

func (c *Cursor) Seek(off int) error {
	if off < 0 || off > len(c.buf) {
		return fmt.Errorf("seek to %d (size %d): %w", off, len(c.buf), ErrUnexpectedEOF)
	}
	c.pos = off
	return nil
}

func (c *Cursor) Skip(n int) error {
	if n < 0 || c.pos+n > len(c.buf) {
		return ErrUnexpectedEOF
	}
	c.pos += n
	return nil
}

// Bytes returns a view of the next n bytes and advances past them.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, ErrUnexpectedEOF
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Rest returns everything from the current position to the end.
func (c *Cursor) Rest() []byte {
	b := c.buf[c.pos:]
	c.pos = len(c.buf)
	return b
}

func (c *Cursor) U8() (uint8, error) {
	if c.pos >= len(c.buf) {
		return 0, ErrUnexpectedEOF
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

func (c *Cursor) Bool() (bool, error) {
	v, err := c.U8()
	return v != 0, err
}

func (c *Cursor) U16() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Cursor) U32() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *Cursor) U64() (uint64, error) {
	b, err := c.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *Cursor) I32() (int32, error) {
	v, err := c.U32()
	return int32(v), err
}

func (c *Cursor) I64() (int64, error) {
	v, err := c.U64()
	return int64(v), err
}

func (c *Cursor) F32() (float32, error) {
	v, err := c.U32()
	return math.Float32frombits(v), err
}

func (c *Cursor) F64() (float64, error) {
	v, err := c.U64()
	return math.Float64frombits(v), err
}

// String reads a length-prefixed string. The length is a 7-bit varint:
// each byte carries seven payload bits, high bit set means more follow.
func (c *Cursor) String() (string, error) {
	n := 0
	shift := 0
	for {
		b, err := c.U8()
		if err != nil {
			return "", err
		}
		n |= int(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift > 28 {
			return "", fmt.Errorf("string length varint too long: %w", ErrUnexpectedEOF)
		}
	}
	b, err := c.Bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

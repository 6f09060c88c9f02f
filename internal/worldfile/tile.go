package worldfile

import (
	"fmt"

	"terramap/internal/cursor"
)

// Tile flag bits. Packed into one word to keep the grid compact; a large
// world carries over twenty million tiles.
const (
	flagActive uint16 = 1 << iota
	flagLava
	flagHoney
	flagRedWire
	flagBlueWire
	flagGreenWire
	flagHalf
	flagActuator
	flagInactive
	flagSeen
	flagYellowWire
	flagShimmer
)

type Tile struct {
	flags     uint16
	Type      uint16
	Wall      uint16
	Liquid    uint8
	Slope     uint8
	Color     uint8
	WallColor uint8
	U, V      int16
}

func (t *Tile) Active() bool     { return t.flags&flagActive != 0 }
func (t *Tile) Lava() bool       { return t.flags&flagLava != 0 }
func (t *Tile) Honey() bool      { return t.flags&flagHoney != 0 }
func (t *Tile) Shimmer() bool    { return t.flags&flagShimmer != 0 }
func (t *Tile) RedWire() bool    { return t.flags&flagRedWire != 0 }
func (t *Tile) BlueWire() bool   { return t.flags&flagBlueWire != 0 }
func (t *Tile) GreenWire() bool  { return t.flags&flagGreenWire != 0 }
func (t *Tile) YellowWire() bool { return t.flags&flagYellowWire != 0 }
func (t *Tile) HalfBlock() bool  { return t.flags&flagHalf != 0 }
func (t *Tile) Actuator() bool   { return t.flags&flagActuator != 0 }
func (t *Tile) Inactive() bool   { return t.flags&flagInactive != 0 }
func (t *Tile) Seen() bool       { return t.flags&flagSeen != 0 }

func (t *Tile) SetSeen(seen bool) {
	if seen {
		t.flags |= flagSeen
	} else {
		t.flags &^= flagSeen
	}
}

// readTile decodes one packed tile record and returns it together with
// its run length: the number of following cells in the same column that
// are byte-for-byte copies.
//
// The record starts with up to three flag bytes. Bit 0 of flags1 means a
// flags2 byte follows; bit 0 of flags2 means a flags3 byte follows.
// Absent flag bytes read as zero. The framed slice (from the importance
// bitmap) says which tile types carry u/v frame coordinates.
func readTile(c *cursor.Cursor, framed []bool) (Tile, int, error) {
	var t Tile

	flags1, err := c.U8()
	if err != nil {
		return t, 0, err
	}
	var flags2, flags3 uint8
	if flags1&1 != 0 {
		if flags2, err = c.U8(); err != nil {
			return t, 0, err
		}
		if flags2&1 != 0 {
			if flags3, err = c.U8(); err != nil {
				return t, 0, err
			}
		}
	}

	t.U, t.V = -1, -1
	if flags1&2 != 0 {
		t.flags |= flagActive
		lo, err := c.U8()
		if err != nil {
			return t, 0, err
		}
		t.Type = uint16(lo)
		if flags1&0x20 != 0 { // two-byte tile type
			hi, err := c.U8()
			if err != nil {
				return t, 0, err
			}
			t.Type |= uint16(hi) << 8
		}
		if int(t.Type) < len(framed) && framed[t.Type] {
			u, err := c.U16()
			if err != nil {
				return t, 0, err
			}
			v, err := c.U16()
			if err != nil {
				return t, 0, err
			}
			t.U, t.V = int16(u), int16(v)
		}
		if flags3&0x08 != 0 {
			if t.Color, err = c.U8(); err != nil {
				return t, 0, err
			}
		}
	}

	if flags1&4 != 0 {
		lo, err := c.U8()
		if err != nil {
			return t, 0, err
		}
		t.Wall = uint16(lo)
		if flags3&0x10 != 0 {
			if t.WallColor, err = c.U8(); err != nil {
				return t, 0, err
			}
		}
	}

	if flags1&0x18 != 0 {
		if t.Liquid, err = c.U8(); err != nil {
			return t, 0, err
		}
		switch flags1 & 0x18 {
		case 0x10:
			t.flags |= flagLava
		case 0x18:
			t.flags |= flagHoney
		}
		if flags3&0x80 != 0 {
			t.flags |= flagShimmer
		}
	}

	if flags2&2 != 0 {
		t.flags |= flagRedWire
	}
	if flags2&4 != 0 {
		t.flags |= flagBlueWire
	}
	if flags2&8 != 0 {
		t.flags |= flagGreenWire
	}
	switch slope := flags2 >> 4 & 7; {
	case slope == 1:
		t.flags |= flagHalf
	case slope > 1:
		t.Slope = slope - 1
	}

	if flags3&2 != 0 {
		t.flags |= flagActuator
	}
	if flags3&4 != 0 {
		t.flags |= flagInactive
	}
	if flags3&0x20 != 0 {
		t.flags |= flagYellowWire
	}
	if flags3&0x40 != 0 {
		// High wall byte sits after the wire/slope bits, not next to the
		// wall byte itself.
		hi, err := c.U8()
		if err != nil {
			return t, 0, err
		}
		t.Wall |= uint16(hi) << 8
	}

	rle := 0
	switch flags1 >> 6 {
	case 1:
		n, err := c.U8()
		if err != nil {
			return t, 0, err
		}
		rle = int(n)
	case 2:
		n, err := c.U16()
		if err != nil {
			return t, 0, err
		}
		rle = int(n)
	}
	return t, rle, nil
}

// readBitset reads a packed boolean list: one bit per entry, eight per
// byte, least significant bit first.
func readBitset(c *cursor.Cursor, n int) ([]bool, error) {
	if n < 0 {
		return nil, fmt.Errorf("bitset size %d: %w", n, ErrCorrupt)
	}
	out := make([]bool, n)
	var bits uint8
	mask := uint8(0x80)
	for i := 0; i < n; i++ {
		if mask == 0x80 {
			b, err := c.U8()
			if err != nil {
				return nil, err
			}
			bits = b
			mask = 1
		} else {
			mask <<= 1
		}
		out[i] = bits&mask != 0
	}
	return out, nil
}

// Package playermap overlays per-player exploration state onto a decoded
// world. The companion ".map" file lives next to the player save, named
// after the world GUID (or, failing that, the numeric world id). Two
// incompatible historical layouts exist; modern files embed a raw
// deflate stream with its own per-cell bit format.
package playermap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"

	"terramap/internal/cursor"
	"terramap/internal/worldfile"
)

var ErrDecompress = errors.New("corrupt deflate stream in map file")

// Overlay locates the companion map file for playerPath (a player save
// file; the map directory shares its base name) and marks each world
// tile's seen flag. A missing companion file is not an error: the world
// is marked fully explored instead.
func Overlay(w *worldfile.World, playerPath string) error {
	path, ok := locate(w, playerPath)
	if !ok {
		for i := range w.Tiles {
			w.Tiles[i].SetSeen(true)
		}
		return nil
	}
	c, err := cursor.Open(path)
	if err != nil {
		return fmt.Errorf("map file: %w", err)
	}
	if err := decode(c, w); err != nil {
		return fmt.Errorf("map file %s: %w", filepath.Base(path), err)
	}
	return nil
}

func locate(w *worldfile.World, playerPath string) (string, bool) {
	dir := strings.TrimSuffix(playerPath, filepath.Ext(playerPath))
	if guid, ok := w.Header.GUID(); ok {
		p := filepath.Join(dir, guid+".map")
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	p := filepath.Join(dir, fmt.Sprintf("%d.map", w.Header.Int("worldID")))
	if _, err := os.Stat(p); err == nil {
		return p, true
	}
	return "", false
}

func decode(c *cursor.Cursor, w *worldfile.World) error {
	version32, err := c.I32()
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	version := int(version32)
	if version <= 91 {
		return decodeLegacy(c, version, w)
	}
	return decodeModern(c, version, w)
}

// decodeLegacy handles versions up to 91: a column-major walk over the
// grid where each present cell carries a fixed-size tile descriptor and
// a run count of further seen cells, and each absent cell carries a run
// count of unseen cells.
func decodeLegacy(c *cursor.Cursor, version int, w *worldfile.World) error {
	if _, err := c.String(); err != nil { // player-visible world name
		return err
	}
	if _, err := c.I32(); err != nil { // world id
		return err
	}
	if _, err := c.I32(); err != nil { // tiles high
		return err
	}
	if _, err := c.I32(); err != nil { // tiles wide
		return err
	}

	descSize := 3 // tile id byte + light + misc
	if version > 77 {
		descSize++ // two-byte tile ids
	}
	if version >= 50 {
		descSize++ // misc2
	}

	for x := 0; x < w.TilesWide; x++ {
		for y := 0; y < w.TilesHigh; y++ {
			present, err := c.Bool()
			if err != nil {
				return err
			}
			if present {
				if err := c.Skip(descSize); err != nil {
					return err
				}
			}
			w.Tile(x, y).SetSeen(present)
			rle, err := c.U16()
			if err != nil {
				return err
			}
			if y+int(rle) >= w.TilesHigh {
				return fmt.Errorf("column %d row %d: run of %d overflows grid: %w",
					x, y, rle, worldfile.ErrCorrupt)
			}
			for r := 0; r < int(rle); r++ {
				y++
				w.Tile(x, y).SetSeen(present)
			}
		}
	}
	return nil
}

// decodeModern handles versions above 91. The header repeats the world
// name, id and dimensions, then two presence bitmaps size a byte
// catalogue that is consumed and discarded. From version 93 the rest of
// the stream is raw deflate (no zlib framing) holding a second, distinct
// per-cell bit layout walked in row order.
func decodeModern(c *cursor.Cursor, version int, w *worldfile.World) error {
	if version > worldfile.MaxVersion {
		return fmt.Errorf("version %d: %w", version, worldfile.ErrTooNew)
	}
	if version >= 135 {
		if err := worldfile.CheckMagic(c, worldfile.FileTypeMap); err != nil {
			return err
		}
	}

	if _, err := c.String(); err != nil { // world name
		return err
	}
	if _, err := c.I32(); err != nil { // world id
		return err
	}
	if _, err := c.I32(); err != nil { // tiles high
		return err
	}
	if _, err := c.I32(); err != nil { // tiles wide
		return err
	}

	numTiles, err := c.U16()
	if err != nil {
		return err
	}
	numWalls, err := c.U16()
	if err != nil {
		return err
	}
	if err := c.Skip(8); err != nil { // four unused u16 counts
		return err
	}

	tilePresent, err := readPresence(c, int(numTiles))
	if err != nil {
		return err
	}
	wallPresent, err := readPresence(c, int(numWalls))
	if err != nil {
		return err
	}
	// One catalogue byte per set presence bit; values unused.
	if err := skipPresent(c, tilePresent); err != nil {
		return err
	}
	if err := skipPresent(c, wallPresent); err != nil {
		return err
	}

	if version >= 93 {
		r := flate.NewReader(bytes.NewReader(c.Rest()))
		inflated, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDecompress, err)
		}
		if err := r.Close(); err != nil {
			return fmt.Errorf("%w: %v", ErrDecompress, err)
		}
		c = cursor.New(inflated)
	}

	return walkModernCells(c, w)
}

func walkModernCells(c *cursor.Cursor, w *worldfile.World) error {
	total := len(w.Tiles)
	offset := 0
	for y := 0; y < w.TilesHigh; y++ {
		for x := 0; x < w.TilesWide; x++ {
			flags, err := c.U8()
			if err != nil {
				return err
			}
			if flags&1 != 0 {
				if err := c.Skip(1); err != nil { // paint color
					return err
				}
			}
			kind := flags >> 1 & 7
			if kind == 1 || kind == 2 || kind == 7 {
				n := 1
				if flags&16 != 0 {
					n = 2
				}
				if err := c.Skip(n); err != nil { // tile id
					return err
				}
			}
			light := uint8(255)
			if flags&32 != 0 {
				if light, err = c.U8(); err != nil {
					return err
				}
			}

			rle := 0
			switch flags >> 6 & 3 {
			case 1:
				n, err := c.U8()
				if err != nil {
					return err
				}
				rle = int(n)
			case 2:
				n, err := c.U16()
				if err != nil {
					return err
				}
				rle = int(n)
			}

			if offset+rle >= total {
				return fmt.Errorf("cell %d: run of %d overflows grid: %w",
					offset, rle, worldfile.ErrCorrupt)
			}
			seen := kind != 0
			w.Tiles[offset].SetSeen(seen)
			for r := 0; r < rle; r++ {
				x++
				offset++
				if seen && light != 255 {
					// One light byte per expanded cell, a quirk of the
					// format: the run stores per-cell light, not one
					// value for the whole run.
					if err := c.Skip(1); err != nil {
						return err
					}
				}
				w.Tiles[offset].SetSeen(seen)
			}
			offset++
		}
	}
	return nil
}

func readPresence(c *cursor.Cursor, n int) ([]bool, error) {
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

func skipPresent(c *cursor.Cursor, present []bool) error {
	for _, p := range present {
		if p {
			if err := c.Skip(1); err != nil {
				return err
			}
		}
	}
	return nil
}

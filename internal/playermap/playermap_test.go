package playermap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/flate"

	"terramap/internal/worldfile"
)

type binWriter struct {
	buf []byte
}

func (w *binWriter) u8(v uint8)     { w.buf = append(w.buf, v) }
func (w *binWriter) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *binWriter) u16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *binWriter) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *binWriter) i32(v int32) { w.u32(uint32(v)) }

func (w *binWriter) str(s string) {
	w.u8(uint8(len(s)))
	w.bytes([]byte(s))
}

func testWorld(wide, high int) *worldfile.World {
	h := worldfile.NewHeader(200)
	h.Set("worldID", int32(777))
	return &worldfile.World{
		Header:    h,
		TilesWide: wide,
		TilesHigh: high,
		Tiles:     make([]worldfile.Tile, wide*high),
	}
}

// playerSetup creates a player save path whose map directory holds the
// given companion file content under name.
func playerSetup(t *testing.T, name string, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	playerPath := filepath.Join(dir, "player.plr")
	if err := os.WriteFile(playerPath, []byte("x"), 0o644); err != nil {
		t.Fatalf("write player: %v", err)
	}
	mapDir := filepath.Join(dir, "player")
	if err := os.MkdirAll(mapDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if name != "" {
		if err := os.WriteFile(filepath.Join(mapDir, name), content, 0o644); err != nil {
			t.Fatalf("write map: %v", err)
		}
	}
	return playerPath
}

func seenCount(w *worldfile.World) int {
	n := 0
	for i := range w.Tiles {
		if w.Tiles[i].Seen() {
			n++
		}
	}
	return n
}

// A missing companion file marks the whole grid explored.
func TestOverlay_NoCompanionFile(t *testing.T) {
	w := testWorld(4, 4)
	playerPath := playerSetup(t, "", nil)
	if err := Overlay(w, playerPath); err != nil {
		t.Fatalf("overlay: %v", err)
	}
	if seenCount(w) != 16 {
		t.Fatalf("seen %d, want all 16", seenCount(w))
	}
}

func TestOverlay_LegacyFormat(t *testing.T) {
	w := testWorld(2, 4)

	b := &binWriter{}
	b.i32(91) // legacy version
	b.str("Test World")
	b.i32(777)
	b.i32(4) // tiles high
	b.i32(2) // tiles wide
	// Column 0: present cell with descriptor (2-byte id, light, misc,
	// misc2 at version 91) and a run marking 2 more cells seen, then one
	// absent cell with no run.
	b.u8(1)
	b.bytes([]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee})
	b.u16(2)
	b.u8(0)
	b.u16(0)
	// Column 1: absent with a run covering the rest.
	b.u8(0)
	b.u16(3)

	playerPath := playerSetup(t, "777.map", b.buf)
	if err := Overlay(w, playerPath); err != nil {
		t.Fatalf("overlay: %v", err)
	}
	for y := 0; y < 3; y++ {
		if !w.Tile(0, y).Seen() {
			t.Fatalf("tile (0,%d) not seen", y)
		}
	}
	if w.Tile(0, 3).Seen() {
		t.Fatalf("tile (0,3) seen")
	}
	for y := 0; y < 4; y++ {
		if w.Tile(1, y).Seen() {
			t.Fatalf("tile (1,%d) seen", y)
		}
	}
}

func TestOverlay_LegacyRunOverflow(t *testing.T) {
	w := testWorld(1, 2)
	b := &binWriter{}
	b.i32(91)
	b.str("x")
	b.i32(777)
	b.i32(2)
	b.i32(1)
	b.u8(0)
	b.u16(5) // run past the bottom of the column
	playerPath := playerSetup(t, "777.map", b.buf)
	if err := Overlay(w, playerPath); !errors.Is(err, worldfile.ErrCorrupt) {
		t.Fatalf("want ErrCorrupt, got %v", err)
	}
}

func modernMapFile(t *testing.T, version int, cells []byte) []byte {
	t.Helper()
	b := &binWriter{}
	b.i32(int32(version))
	b.str("Test World")
	b.i32(777)
	b.i32(4) // tiles high
	b.i32(4) // tiles wide
	b.u16(2) // tile types
	b.u16(1) // wall types
	b.u16(0)
	b.u16(0)
	b.u16(0)
	b.u16(0)
	b.u8(0x03) // both tile types present
	b.u8(0x01) // wall type present
	b.bytes([]byte{9, 9, 9}) // catalogue bytes for the three set bits

	var deflated bytes.Buffer
	fw, err := flate.NewWriter(&deflated, flate.DefaultCompression)
	if err != nil {
		t.Fatalf("flate writer: %v", err)
	}
	if _, err := fw.Write(cells); err != nil {
		t.Fatalf("deflate: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("deflate close: %v", err)
	}
	b.bytes(deflated.Bytes())
	return b.buf
}

// One record with a nonzero tile kind, a light byte, and a run covering
// the rest of the row: each expanded cell consumes one light byte.
func TestOverlay_ModernPerCellLight(t *testing.T) {
	w := testWorld(4, 4)

	cells := &binWriter{}
	// Row 0: kind 1, light present, one-byte run selector.
	cells.u8(1<<1 | 32 | 64)
	cells.u8(7)   // tile id
	cells.u8(90)  // record light
	cells.u8(3)   // run: rest of the row
	cells.bytes([]byte{91, 92, 93}) // one light byte per expanded cell
	// Rows 1-3: unseen runs, no light bytes anywhere.
	for r := 0; r < 3; r++ {
		cells.u8(64)
		cells.u8(3)
	}

	playerPath := playerSetup(t, "777.map", modernMapFile(t, 93, cells.buf))
	if err := Overlay(w, playerPath); err != nil {
		t.Fatalf("overlay: %v", err)
	}
	for x := 0; x < 4; x++ {
		if !w.Tile(x, 0).Seen() {
			t.Fatalf("tile (%d,0) not seen", x)
		}
	}
	for y := 1; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if w.Tile(x, y).Seen() {
				t.Fatalf("tile (%d,%d) seen", x, y)
			}
		}
	}
}

// Without the light bit the run carries no per-cell light bytes.
func TestOverlay_ModernNoLightBytes(t *testing.T) {
	w := testWorld(4, 4)

	cells := &binWriter{}
	cells.u8(1<<1 | 64)
	cells.u8(7) // tile id
	cells.u8(3) // run
	for r := 0; r < 3; r++ {
		cells.u8(64)
		cells.u8(3)
	}

	playerPath := playerSetup(t, "777.map", modernMapFile(t, 93, cells.buf))
	if err := Overlay(w, playerPath); err != nil {
		t.Fatalf("overlay: %v", err)
	}
	if seenCount(w) != 4 {
		t.Fatalf("seen %d, want 4", seenCount(w))
	}
}

func TestOverlay_ModernBadDeflate(t *testing.T) {
	w := testWorld(4, 4)
	b := &binWriter{}
	b.i32(93)
	b.str("Test World")
	b.i32(777)
	b.i32(4)
	b.i32(4)
	b.u16(0)
	b.u16(0)
	b.u16(0)
	b.u16(0)
	b.u16(0)
	b.u16(0)
	b.bytes([]byte{0xff, 0xff, 0xff, 0xff}) // not a deflate stream
	playerPath := playerSetup(t, "777.map", b.buf)
	if err := Overlay(w, playerPath); !errors.Is(err, ErrDecompress) {
		t.Fatalf("want ErrDecompress, got %v", err)
	}
}

func TestOverlay_ModernMagicChecked(t *testing.T) {
	w := testWorld(2, 2)
	b := &binWriter{}
	b.i32(135)
	b.bytes([]byte("reloguc"))
	playerPath := playerSetup(t, "777.map", b.buf)
	if err := Overlay(w, playerPath); !errors.Is(err, worldfile.ErrBadMagic) {
		t.Fatalf("want ErrBadMagic, got %v", err)
	}
}

// The GUID-named file wins over the worldID-named one.
func TestOverlay_GuidPathPreferred(t *testing.T) {
	w := testWorld(1, 2)
	raw := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f}
	w.Header.Set("guid", raw)

	b := &binWriter{}
	b.i32(91)
	b.str("x")
	b.i32(777)
	b.i32(2)
	b.i32(1)
	// Single column: present cell, run marking the second cell seen.
	b.u8(1)
	b.bytes([]byte{0, 0, 0, 0, 0})
	b.u16(1)

	playerPath := playerSetup(t, "03020100-0504-0706-0809-0a0b0c0d0e0f.map", b.buf)
	// Decoy under the worldID name that would mark nothing.
	decoy := &binWriter{}
	decoy.i32(91)
	decoy.str("x")
	decoy.i32(777)
	decoy.i32(2)
	decoy.i32(1)
	decoy.u8(0)
	decoy.u16(1)
	mapDir := filepath.Join(filepath.Dir(playerPath), "player")
	if err := os.WriteFile(filepath.Join(mapDir, "777.map"), decoy.buf, 0o644); err != nil {
		t.Fatalf("write decoy: %v", err)
	}

	if err := Overlay(w, playerPath); err != nil {
		t.Fatalf("overlay: %v", err)
	}
	if seenCount(w) != 2 {
		t.Fatalf("seen %d, want 2 (guid file applied)", seenCount(w))
	}
}

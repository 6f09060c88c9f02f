package worldfile

import (
	"encoding/binary"
	"math"
)

// binWriter builds synthetic world streams for tests.
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

func (w *binWriter) u64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *binWriter) i32(v int32)   { w.u32(uint32(v)) }
func (w *binWriter) f32(v float32) { w.u32(math.Float32bits(v)) }
func (w *binWriter) f64(v float64) { w.u64(math.Float64bits(v)) }

func (w *binWriter) boolByte(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

// str writes a length-prefixed string; test strings stay under 128 bytes
// so a single varint byte suffices.
func (w *binWriter) str(s string) {
	w.u8(uint8(len(s)))
	w.bytes([]byte(s))
}

func (w *binWriter) pos() int { return len(w.buf) }

// reserveU32 leaves a placeholder to be patched later.
func (w *binWriter) reserveU32() int {
	at := len(w.buf)
	w.u32(0)
	return at
}

func (w *binWriter) patchU32(at int, v uint32) {
	binary.LittleEndian.PutUint32(w.buf[at:], v)
}

// writeHeader emits the header section for a version, using zero values
// except for the named overrides. It walks the same gate table as the
// reader so streams stay aligned at every version.
func writeHeader(w *binWriter, version int, over map[string]any) {
	for _, f := range headerFields {
		if f.min > version {
			continue
		}
		if f.max != 0 && version > f.max {
			continue
		}
		n := f.n
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			writeHeaderValue(w, f, over[f.name])
		}
	}
}

func writeHeaderValue(w *binWriter, f headerField, v any) {
	switch f.kind {
	case kindBool:
		b, _ := v.(bool)
		w.boolByte(b)
	case kindByte:
		x, _ := v.(uint8)
		w.u8(x)
	case kindI16:
		x, _ := v.(int)
		w.u16(uint16(x))
	case kindI32:
		x, _ := v.(int)
		w.i32(int32(x))
	case kindI64:
		x, _ := v.(int64)
		w.u64(uint64(x))
	case kindF32:
		x, _ := v.(float32)
		w.f32(x)
	case kindF64:
		x, _ := v.(float64)
		w.f64(x)
	case kindString:
		s, _ := v.(string)
		w.str(s)
	case kindGUID:
		b, _ := v.([]byte)
		var out [16]byte
		copy(out[:], b)
		w.bytes(out[:])
	}
}

// emptyColumnTiles writes one inactive record per column, each with a
// two-byte run covering the rest of the column.
func emptyColumnTiles(w *binWriter, wide, high int) {
	for x := 0; x < wide; x++ {
		w.u8(0x80) // inactive, two-byte run count
		w.u16(uint16(high - 1))
	}
}

type worldSpec struct {
	version int
	wide    int
	high    int
	header  map[string]any

	// Per-slot custom payloads; nil slots get a minimal valid default.
	sections map[int]func(*binWriter)

	// Importance bitmap: which tile types carry u/v coordinates.
	framedTypes []int
	numTypes    int
}

func sectionCount(version int) int {
	switch {
	case version >= 220:
		return 10
	case version >= 210:
		return 9
	case version >= 189:
		return 8
	case version >= 170:
		return 7
	default:
		return 6
	}
}

// buildWorld assembles a complete, internally consistent world stream.
func buildWorld(spec worldSpec) []byte {
	w := &binWriter{}
	w.i32(int32(spec.version))

	if spec.version >= 135 {
		w.bytes([]byte(Magic))
		w.u8(FileTypeWorld)
		w.u32(0) // revision
		w.u64(0) // favorites
	}

	count := sectionCount(spec.version)
	w.u16(uint16(count))
	offsetAt := make([]int, count)
	for i := range offsetAt {
		offsetAt[i] = w.reserveU32()
	}

	numTypes := spec.numTypes
	if numTypes == 0 {
		numTypes = 16
	}
	w.u16(uint16(numTypes))
	bits := make([]byte, (numTypes+7)/8)
	for _, ty := range spec.framedTypes {
		bits[ty/8] |= 1 << (ty % 8)
	}
	w.bytes(bits)

	over := map[string]any{
		"name":      "Test World",
		"worldID":   12345,
		"tilesHigh": spec.high,
		"tilesWide": spec.wide,
	}
	for k, v := range spec.header {
		over[k] = v
	}

	emit := func(slot int, def func(*binWriter)) {
		w.patchU32(offsetAt[slot], uint32(w.pos()))
		if fn, ok := spec.sections[slot]; ok && fn != nil {
			fn(w)
			return
		}
		if def != nil {
			def(w)
		}
	}

	emit(secHeader, func(w *binWriter) { writeHeader(w, spec.version, over) })
	emit(secTiles, func(w *binWriter) { emptyColumnTiles(w, spec.wide, spec.high) })
	emit(secChests, func(w *binWriter) {
		w.u16(0)  // chests
		w.u16(40) // slots per chest
	})
	emit(secSigns, func(w *binWriter) { w.u16(0) })
	emit(secNPCs, func(w *binWriter) {
		if spec.version >= 268 {
			w.i32(0) // shimmered list
		}
		w.u8(0) // primary sentinel
		if spec.version >= 140 {
			w.u8(0) // secondary sentinel
		}
	})
	emit(secEntities, func(w *binWriter) {
		if spec.version >= 116 {
			w.i32(0)
		}
	})
	if count > secPressurePlates {
		emit(secPressurePlates, func(w *binWriter) { w.i32(0) })
	}
	if count > secTownManager {
		emit(secTownManager, func(w *binWriter) { w.i32(0) })
	}
	if count > secBestiary {
		emit(secBestiary, func(w *binWriter) {
			w.i32(0)
			w.i32(0)
			w.i32(0)
		})
	}
	if count > secCreativePowers {
		emit(secCreativePowers, nil)
	}
	return w.buf
}

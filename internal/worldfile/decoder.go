package worldfile

import (
	"context"
	"fmt"

	"terramap/internal/cursor"
	"terramap/internal/defs"
)

// Fixed section slots in the offset table. Later slots only exist in
// later file versions; the section count says how many are present.
const (
	secHeader = iota
	secTiles
	secChests
	secSigns
	secNPCs
	secEntities
	secPressurePlates
	secTownManager
	secBestiary
	secCreativePowers
)

const maxTilesSpan = 50000 // sanity bound on either grid dimension

// ProgressFunc receives coarse decode progress: a stage name and, for
// the tiles stage, a percentage. It is called once per grid column while
// tiles are read and once when each later section starts.
type ProgressFunc func(stage string, pct int)

type Decoder struct {
	Defs     *defs.Tables
	Progress ProgressFunc
}

func (d *Decoder) progress(stage string, pct int) {
	if d.Progress != nil {
		d.Progress(stage, pct)
	}
}

// Decode reads a world file into a fresh World. Cancellation is checked
// between grid columns and between sections; a canceled decode returns
// ctx.Err() and no World.
func (d *Decoder) Decode(ctx context.Context, path string) (*World, error) {
	c, err := cursor.Open(path)
	if err != nil {
		return nil, err
	}
	return d.DecodeBytes(ctx, c)
}

// DecodeBytes decodes from an already loaded cursor.
func (d *Decoder) DecodeBytes(ctx context.Context, c *cursor.Cursor) (*World, error) {
	version32, err := c.I32()
	if err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}
	version := int(version32)
	if version > MaxVersion {
		return nil, fmt.Errorf("version %d: %w", version, ErrTooNew)
	}
	if version < MinVersion {
		return nil, fmt.Errorf("version %d: %w", version, ErrTooOld)
	}

	if version >= 135 {
		if err := CheckMagic(c, FileTypeWorld); err != nil {
			return nil, err
		}
	}

	sections, err := readSectionOffsets(c)
	if err != nil {
		return nil, fmt.Errorf("section offsets: %w", err)
	}

	numTileTypes, err := c.U16()
	if err != nil {
		return nil, fmt.Errorf("importance bitmap: %w", err)
	}
	framed, err := readBitset(c, int(numTileTypes))
	if err != nil {
		return nil, fmt.Errorf("importance bitmap: %w", err)
	}

	w := &World{Kills: map[string]int{}}

	if err := c.Seek(sections[secHeader]); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	d.progress("header", 0)
	if err := d.loadHeader(c, version, w); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.Seek(sections[secTiles]); err != nil {
		return nil, fmt.Errorf("tiles: %w", err)
	}
	if err := d.loadTiles(ctx, c, w, framed); err != nil {
		return nil, fmt.Errorf("tiles: %w", err)
	}

	type sectionStep struct {
		name string
		slot int
		min  int
		load func(*cursor.Cursor, int, *World) error
	}
	steps := []sectionStep{
		{"chests", secChests, 0, d.loadChests},
		{"signs", secSigns, 0, d.loadSigns},
		{"npcs", secNPCs, 0, d.loadNPCs},
		{"entities", secEntities, 116, d.loadEntities},
		{"pressure plates", secPressurePlates, 170, loadPressurePlates},
		{"town manager", secTownManager, 189, loadTownManager},
		{"bestiary", secBestiary, 210, loadBestiary},
		{"creative powers", secCreativePowers, 220, loadCreativePowers},
	}
	for _, s := range steps {
		if version < s.min {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.slot >= len(sections) {
			return nil, fmt.Errorf("%s: missing section slot %d: %w", s.name, s.slot, ErrBadSectionOffset)
		}
		if err := c.Seek(sections[s.slot]); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		d.progress(s.name, 0)
		if err := s.load(c, version, w); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return w, nil
}

// CheckMagic validates the "relogic" tag and file type byte present from
// version 135 on, then skips the revision counter and favorites bits.
// Shared with the companion map decoder, which expects a different type.
func CheckMagic(c *cursor.Cursor, wantType uint8) error {
	magic, err := c.Bytes(7)
	if err != nil {
		return fmt.Errorf("magic: %w", err)
	}
	if string(magic) != Magic {
		return fmt.Errorf("magic %q: %w", magic, ErrBadMagic)
	}
	fileType, err := c.U8()
	if err != nil {
		return fmt.Errorf("file type: %w", err)
	}
	if fileType != wantType {
		return fmt.Errorf("file type %d (want %d): %w", fileType, wantType, ErrBadFileType)
	}
	// Revision counter and favorites bitfield, unused here.
	if err := c.Skip(4 + 8); err != nil {
		return fmt.Errorf("revision: %w", err)
	}
	return nil
}

// readCount reads a signed record count. Counts are stored as i32 and
// must be non-negative; a negative value is corruption, not an empty
// list.
func readCount(c *cursor.Cursor) (int, error) {
	n, err := c.I32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d: %w", n, ErrCorrupt)
	}
	return int(n), nil
}

func readSectionOffsets(c *cursor.Cursor) ([]int, error) {
	n, err := c.U16()
	if err != nil {
		return nil, err
	}
	if int(n) <= secEntities {
		return nil, fmt.Errorf("only %d sections: %w", n, ErrBadSectionOffset)
	}
	offsets := make([]int, n)
	for i := range offsets {
		off, err := c.U32()
		if err != nil {
			return nil, err
		}
		// Offsets are not required to be contiguous (padding between
		// sections is legal) but must land inside the file.
		if int(off) > c.Len() {
			return nil, fmt.Errorf("section %d at %d (size %d): %w", i, off, c.Len(), ErrBadSectionOffset)
		}
		offsets[i] = int(off)
	}
	return offsets, nil
}

func (d *Decoder) loadHeader(c *cursor.Cursor, version int, w *World) error {
	h, err := readHeader(c, version)
	if err != nil {
		return err
	}
	w.Header = h
	w.TilesWide = h.Int("tilesWide")
	w.TilesHigh = h.Int("tilesHigh")
	if w.TilesWide <= 0 || w.TilesHigh <= 0 ||
		w.TilesWide > maxTilesSpan || w.TilesHigh > maxTilesSpan {
		return fmt.Errorf("grid %dx%d: %w", w.TilesWide, w.TilesHigh, ErrCorrupt)
	}
	w.Tiles = make([]Tile, w.TilesWide*w.TilesHigh)
	return nil
}

func (d *Decoder) loadTiles(ctx context.Context, c *cursor.Cursor, w *World, framed []bool) error {
	for x := 0; x < w.TilesWide; x++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.progress("tiles", x*100/w.TilesWide)
		for y := 0; y < w.TilesHigh; {
			t, rle, err := readTile(c, framed)
			if err != nil {
				return fmt.Errorf("column %d row %d: %w", x, y, err)
			}
			if y+rle >= w.TilesHigh {
				return fmt.Errorf("column %d row %d: run of %d overflows grid: %w", x, y, rle, ErrCorrupt)
			}
			w.Tiles[x+y*w.TilesWide] = t
			// Runs replicate downward within the same column.
			for r := 0; r < rle; r++ {
				y++
				w.Tiles[x+y*w.TilesWide] = t
			}
			y++
		}
	}
	return nil
}

func (d *Decoder) loadChests(c *cursor.Cursor, version int, w *World) error {
	numChests, err := c.U16()
	if err != nil {
		return err
	}
	itemsPerChest, err := c.U16()
	if err != nil {
		return err
	}
	w.Chests = make([]Chest, 0, numChests)
	for i := 0; i < int(numChests); i++ {
		var chest Chest
		x, err := c.I32()
		if err != nil {
			return err
		}
		y, err := c.I32()
		if err != nil {
			return err
		}
		chest.X, chest.Y = int(x), int(y)
		if chest.Name, err = c.String(); err != nil {
			return err
		}
		for j := 0; j < int(itemsPerChest); j++ {
			stack, err := c.U16()
			if err != nil {
				return err
			}
			if stack == 0 {
				continue
			}
			itemID, err := c.I32()
			if err != nil {
				return err
			}
			prefix, err := c.U8()
			if err != nil {
				return err
			}
			chest.Items = append(chest.Items, ChestItem{
				Stack:  int(stack),
				Name:   d.Defs.ItemName(int(itemID)),
				Prefix: d.Defs.PrefixName(int(prefix)),
			})
		}
		w.Chests = append(w.Chests, chest)
	}
	return nil
}

func (d *Decoder) loadSigns(c *cursor.Cursor, version int, w *World) error {
	numSigns, err := c.U16()
	if err != nil {
		return err
	}
	w.Signs = make([]Sign, 0, numSigns)
	for i := 0; i < int(numSigns); i++ {
		var sign Sign
		if sign.Text, err = c.String(); err != nil {
			return err
		}
		x, err := c.I32()
		if err != nil {
			return err
		}
		y, err := c.I32()
		if err != nil {
			return err
		}
		sign.X, sign.Y = int(x), int(y)
		w.Signs = append(w.Signs, sign)
	}
	return nil
}

func (d *Decoder) loadNPCs(c *cursor.Cursor, version int, w *World) error {
	if version >= 268 {
		n, err := readCount(c)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			id, err := c.I32()
			if err != nil {
				return err
			}
			w.ShimmeredNPCs = append(w.ShimmeredNPCs, int(id))
		}
	}

	// Primary list: sentinel terminated, one leading presence byte per
	// entry.
	for {
		present, err := c.Bool()
		if err != nil {
			return err
		}
		if !present {
			break
		}
		npc := NPC{Variation: -1}
		if err := d.resolveNPC(c, version, &npc, true); err != nil {
			return err
		}
		if npc.Name, err = c.String(); err != nil {
			return err
		}
		if npc.X, err = c.F32(); err != nil {
			return err
		}
		if npc.Y, err = c.F32(); err != nil {
			return err
		}
		if npc.Homeless, err = c.Bool(); err != nil {
			return err
		}
		hx, err := c.I32()
		if err != nil {
			return err
		}
		hy, err := c.I32()
		if err != nil {
			return err
		}
		npc.HomeX, npc.HomeY = int(hx), int(hy)
		if version >= 213 {
			hasVariation, err := c.Bool()
			if err != nil {
				return err
			}
			if hasVariation {
				v, err := c.I32()
				if err != nil {
					return err
				}
				npc.Variation = int(v)
			}
		}
		w.NPCs = append(w.NPCs, npc)
	}

	// Secondary list (version >= 140): reduced records with no name or
	// home, all homeless.
	if version < 140 {
		return nil
	}
	for {
		present, err := c.Bool()
		if err != nil {
			return err
		}
		if !present {
			break
		}
		npc := NPC{Homeless: true, Variation: -1}
		if err := d.resolveNPC(c, version, &npc, false); err != nil {
			return err
		}
		if npc.X, err = c.F32(); err != nil {
			return err
		}
		if npc.Y, err = c.F32(); err != nil {
			return err
		}
		w.NPCs = append(w.NPCs, npc)
	}
	return nil
}

// resolveNPC reads the NPC identity (numeric sprite id from version 190
// on, kind title before that) and fills in the rest from the definitions
// table. The lookup is one way only.
func (d *Decoder) resolveNPC(c *cursor.Cursor, version int, npc *NPC, wantHead bool) error {
	if version >= 190 {
		sprite, err := c.I32()
		if err != nil {
			return err
		}
		npc.Sprite = int(sprite)
		if def, ok := d.Defs.NPCByID(npc.Sprite); ok {
			npc.Title = def.Title
			if wantHead {
				npc.Head = def.Head
			}
		}
		return nil
	}
	title, err := c.String()
	if err != nil {
		return err
	}
	npc.Title = title
	if def, ok := d.Defs.NPCByTitle(title); ok {
		npc.Sprite = def.ID
		if wantHead {
			npc.Head = def.Head
		}
	}
	return nil
}

func (d *Decoder) loadEntities(c *cursor.Cursor, version int, w *World) error {
	if version < 122 {
		return loadLegacyDummies(c)
	}
	n, err := readCount(c)
	if err != nil {
		return err
	}
	w.Entities = make([]Entity, 0, n)
	for i := 0; i < n; i++ {
		kind, err := c.U8()
		if err != nil {
			return err
		}
		id, err := c.I32()
		if err != nil {
			return err
		}
		x, err := c.U16()
		if err != nil {
			return err
		}
		y, err := c.U16()
		if err != nil {
			return err
		}
		switch kind {
		case 0:
			npc, err := c.U16()
			if err != nil {
				return err
			}
			w.Entities = append(w.Entities, TrainingDummy{
				ID: int(id), X: int(x), Y: int(y), NPC: int(npc),
			})
		case 1:
			itemID, err := c.U16()
			if err != nil {
				return err
			}
			prefix, err := c.U8()
			if err != nil {
				return err
			}
			stack, err := c.U16()
			if err != nil {
				return err
			}
			w.Entities = append(w.Entities, ItemFrame{
				ID: int(id), X: int(x), Y: int(y),
				ItemID: int(itemID), Prefix: int(prefix), Stack: int(stack),
			})
		case 2:
			sensorKind, err := c.U8()
			if err != nil {
				return err
			}
			on, err := c.Bool()
			if err != nil {
				return err
			}
			w.Entities = append(w.Entities, LogicSensor{
				ID: int(id), X: int(x), Y: int(y), Kind: int(sensorKind), On: on,
			})
		default:
			return fmt.Errorf("entity %d: unknown type %d: %w", i, kind, ErrCorrupt)
		}
	}
	return nil
}

// Versions in [116,122) store only dummy positions; nothing downstream
// uses them, so the records are consumed and dropped.
func loadLegacyDummies(c *cursor.Cursor) error {
	n, err := readCount(c)
	if err != nil {
		return err
	}
	return c.Skip(n * 4)
}

func loadPressurePlates(c *cursor.Cursor, version int, w *World) error {
	n, err := readCount(c)
	if err != nil {
		return err
	}
	// Position pairs, kept only to advance the stream.
	return c.Skip(n * 8)
}

func loadTownManager(c *cursor.Cursor, version int, w *World) error {
	n, err := readCount(c)
	if err != nil {
		return err
	}
	// NPC id plus room position per record.
	return c.Skip(n * 12)
}

func loadBestiary(c *cursor.Cursor, version int, w *World) error {
	numKills, err := readCount(c)
	if err != nil {
		return err
	}
	for i := 0; i < numKills; i++ {
		name, err := c.String()
		if err != nil {
			return err
		}
		kills, err := c.I32()
		if err != nil {
			return err
		}
		w.Kills[name] = int(kills)
	}
	numSighted, err := readCount(c)
	if err != nil {
		return err
	}
	for i := 0; i < numSighted; i++ {
		name, err := c.String()
		if err != nil {
			return err
		}
		w.SightedCreatures = append(w.SightedCreatures, name)
	}
	numChats, err := readCount(c)
	if err != nil {
		return err
	}
	for i := 0; i < numChats; i++ {
		name, err := c.String()
		if err != nil {
			return err
		}
		w.UnlockedChats = append(w.UnlockedChats, name)
	}
	return nil
}

// The creative powers section is located so the offset table stays
// honest, but its payload is not modeled yet.
func loadCreativePowers(c *cursor.Cursor, version int, w *World) error {
	return nil
}

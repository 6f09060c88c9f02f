package worldfile

import (
	"fmt"

	"github.com/google/uuid"

	"terramap/internal/cursor"
)

// Header is the world metadata section, decoded as an ordered property
// bag. Which keys are present depends on the file version; callers that
// need a key should check Has first.
type Header struct {
	Version int

	order []string
	props map[string]any
}

func NewHeader(version int) *Header {
	return &Header{Version: version, props: map[string]any{}}
}

// Set stores a property, keeping first-write order for Keys.
func (h *Header) Set(name string, v any) {
	if _, exists := h.props[name]; !exists {
		h.order = append(h.order, name)
	}
	h.props[name] = v
}

func (h *Header) Has(name string) bool {
	_, ok := h.props[name]
	return ok
}

func (h *Header) Keys() []string { return h.order }

func (h *Header) Get(name string) any { return h.props[name] }

func (h *Header) Int(name string) int {
	switch v := h.props[name].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint8:
		return int(v)
	case int16:
		return int(v)
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

func (h *Header) Float(name string) float64 {
	switch v := h.props[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	}
	return 0
}

func (h *Header) String(name string) string {
	s, _ := h.props[name].(string)
	return s
}

func (h *Header) Bool(name string) bool {
	b, _ := h.props[name].(bool)
	return b
}

// GUID returns the dashed hex token for the world GUID. The file stores
// the first three groups little-endian and the rest big-endian, the way
// .NET serializes a Guid, so the bytes are swapped into RFC 4122 order
// before formatting.
func (h *Header) GUID() (string, bool) {
	raw, ok := h.props["guid"].([]byte)
	if !ok || len(raw) != 16 {
		return "", false
	}
	var b [16]byte
	copy(b[:], raw)
	b[0], b[1], b[2], b[3] = raw[3], raw[2], raw[1], raw[0]
	b[4], b[5] = raw[5], raw[4]
	b[6], b[7] = raw[7], raw[6]
	id, err := uuid.FromBytes(b[:])
	if err != nil {
		return "", false
	}
	return id.String(), true
}

type propKind int

const (
	kindBool propKind = iota
	kindByte
	kindI16
	kindI32
	kindI64
	kindF32
	kindF64
	kindString
	kindGUID
)

type headerField struct {
	name string
	kind propKind
	min  int // first version carrying the field (0 = always)
	max  int // last version carrying it (0 = still present)
	n    int // repeat count for fixed arrays (0 = scalar)
}

// The leading world header fields in stream order. Fields carry the
// version that introduced them; a field is read for every version at or
// above its threshold and never below it. The tail of the header (angler
// state, party/sandstorm events, saved-NPC flags added through 1.4) is
// not modeled: the decoder reaches the next section through its absolute
// offset, so unread trailing header bytes are skipped, and nothing
// downstream asks for those keys.
var headerFields = []headerField{
	{name: "name", kind: kindString},
	{name: "seed", kind: kindString, min: 179},
	{name: "worldGenVersion", kind: kindI64, min: 179},
	{name: "guid", kind: kindGUID, min: 181},
	{name: "worldID", kind: kindI32},
	{name: "leftWorld", kind: kindI32},
	{name: "rightWorld", kind: kindI32},
	{name: "topWorld", kind: kindI32},
	{name: "bottomWorld", kind: kindI32},
	{name: "tilesHigh", kind: kindI32},
	{name: "tilesWide", kind: kindI32},
	{name: "gameMode", kind: kindI32, min: 209},
	{name: "drunkWorld", kind: kindBool, min: 222},
	{name: "getGoodWorld", kind: kindBool, min: 227},
	{name: "tenthAnniversaryWorld", kind: kindBool, min: 238},
	{name: "dontStarveWorld", kind: kindBool, min: 239},
	{name: "notTheBeesWorld", kind: kindBool, min: 241},
	{name: "remixWorld", kind: kindBool, min: 249},
	{name: "noTrapsWorld", kind: kindBool, min: 266},
	{name: "zenithWorld", kind: kindBool, min: 267},
	{name: "expertMode", kind: kindBool, min: 112, max: 208},
	{name: "creationTime", kind: kindI64, min: 141},
	{name: "moonType", kind: kindByte, min: 63},
	{name: "treeX", kind: kindI32, min: 44, n: 3},
	{name: "treeStyle", kind: kindI32, min: 44, n: 4},
	{name: "caveBackX", kind: kindI32, min: 60, n: 3},
	{name: "caveBackStyle", kind: kindI32, min: 60, n: 4},
	{name: "iceBackStyle", kind: kindI32, min: 60},
	{name: "jungleBackStyle", kind: kindI32, min: 60},
	{name: "hellBackStyle", kind: kindI32, min: 60},
	{name: "spawnX", kind: kindI32},
	{name: "spawnY", kind: kindI32},
	{name: "groundLevel", kind: kindF64},
	{name: "rockLevel", kind: kindF64},
	{name: "time", kind: kindF64},
	{name: "dayTime", kind: kindBool},
	{name: "moonPhase", kind: kindI32},
	{name: "bloodMoon", kind: kindBool},
	{name: "eclipse", kind: kindBool, min: 70},
	{name: "dungeonX", kind: kindI32},
	{name: "dungeonY", kind: kindI32},
	{name: "crimson", kind: kindBool, min: 56},
	{name: "downedBoss1", kind: kindBool},
	{name: "downedBoss2", kind: kindBool},
	{name: "downedBoss3", kind: kindBool},
	{name: "downedQueenBee", kind: kindBool, min: 66},
	{name: "downedMechBoss1", kind: kindBool, min: 44},
	{name: "downedMechBoss2", kind: kindBool, min: 44},
	{name: "downedMechBoss3", kind: kindBool, min: 44},
	{name: "downedMechBossAny", kind: kindBool, min: 44},
	{name: "downedPlantBoss", kind: kindBool, min: 64},
	{name: "downedGolemBoss", kind: kindBool, min: 64},
	{name: "downedSlimeKing", kind: kindBool, min: 118},
	{name: "savedGoblin", kind: kindBool, min: 29},
	{name: "savedWizard", kind: kindBool, min: 29},
	{name: "savedMech", kind: kindBool, min: 34},
	{name: "downedGoblins", kind: kindBool, min: 29},
	{name: "downedClown", kind: kindBool, min: 32},
	{name: "downedFrost", kind: kindBool, min: 37},
	{name: "downedPirates", kind: kindBool, min: 56},
	{name: "shadowOrbSmashed", kind: kindBool},
	{name: "spawnMeteor", kind: kindBool},
	{name: "shadowOrbCount", kind: kindByte},
	{name: "altarCount", kind: kindI32, min: 23},
	{name: "hardMode", kind: kindBool, min: 23},
	{name: "invasionDelay", kind: kindI32},
	{name: "invasionSize", kind: kindI32},
	{name: "invasionType", kind: kindI32},
	{name: "invasionX", kind: kindF64},
	{name: "slimeRainTime", kind: kindF64, min: 118},
	{name: "sundialCooldown", kind: kindByte, min: 113},
	{name: "raining", kind: kindBool, min: 53},
	{name: "rainTime", kind: kindI32, min: 53},
	{name: "maxRain", kind: kindF32, min: 53},
	{name: "oreTier1", kind: kindI32, min: 54},
	{name: "oreTier2", kind: kindI32, min: 54},
	{name: "oreTier3", kind: kindI32, min: 54},
	{name: "treeBG", kind: kindByte, min: 55},
	{name: "corruptBG", kind: kindByte, min: 55},
	{name: "jungleBG", kind: kindByte, min: 55},
	{name: "snowBG", kind: kindByte, min: 60},
	{name: "hallowBG", kind: kindByte, min: 60},
	{name: "crimsonBG", kind: kindByte, min: 60},
	{name: "desertBG", kind: kindByte, min: 60},
	{name: "oceanBG", kind: kindByte, min: 60},
	{name: "cloudBGActive", kind: kindI32, min: 60},
	{name: "numClouds", kind: kindI16, min: 62},
	{name: "windSpeed", kind: kindF32, min: 62},
}

func readHeader(c *cursor.Cursor, version int) (*Header, error) {
	h := NewHeader(version)
	for _, f := range headerFields {
		if f.min > version {
			continue
		}
		if f.max != 0 && version > f.max {
			continue
		}
		if f.n > 0 {
			vals := make([]any, f.n)
			for i := range vals {
				v, err := readProp(c, f.kind)
				if err != nil {
					return nil, fmt.Errorf("%s[%d]: %w", f.name, i, err)
				}
				vals[i] = v
			}
			h.Set(f.name, vals)
			continue
		}
		v, err := readProp(c, f.kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		h.Set(f.name, v)
	}
	return h, nil
}

func readProp(c *cursor.Cursor, kind propKind) (any, error) {
	switch kind {
	case kindBool:
		return c.Bool()
	case kindByte:
		return c.U8()
	case kindI16:
		v, err := c.U16()
		return int16(v), err
	case kindI32:
		return c.I32()
	case kindI64:
		return c.I64()
	case kindF32:
		return c.F32()
	case kindF64:
		return c.F64()
	case kindString:
		return c.String()
	case kindGUID:
		b, err := c.Bytes(16)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 16)
		copy(out, b)
		return out, nil
	}
	return nil, fmt.Errorf("unknown header field kind %d", kind)
}

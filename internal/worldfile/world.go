package worldfile

// World is the in-memory model produced by one decode. It is exclusively
// owned by the caller; nothing in this package retains a reference once
// Decode returns.
type World struct {
	Header *Header

	TilesWide int
	TilesHigh int
	// Tiles holds exactly TilesWide*TilesHigh entries, indexed
	// x + y*TilesWide. The file stores them column by column.
	Tiles []Tile

	Chests   []Chest
	Signs    []Sign
	NPCs     []NPC
	Entities []Entity

	// Bestiary statistics, keyed by internal creature name.
	Kills            map[string]int
	SightedCreatures []string
	UnlockedChats    []string

	// Sprite ids of town NPCs that have been shimmered (version >= 268).
	ShimmeredNPCs []int
}

func (w *World) Tile(x, y int) *Tile {
	return &w.Tiles[x+y*w.TilesWide]
}

func (w *World) InBounds(x, y int) bool {
	return x >= 0 && x < w.TilesWide && y >= 0 && y < w.TilesHigh
}

type Chest struct {
	X, Y  int
	Name  string
	Items []ChestItem
}

type ChestItem struct {
	Stack  int
	Name   string
	Prefix string
}

type Sign struct {
	Text string
	X, Y int
}

type NPC struct {
	Sprite   int
	Title    string // kind display name, resolved from the NPC table
	Name     string // given name stored in the file
	Head     int
	X, Y     float32
	Homeless bool
	HomeX    int
	HomeY    int
	// Town variation (version >= 213); -1 when the file carries none.
	Variation int
}

// Entity is the tagged union stored in the entities section. The leading
// type byte selects the concrete variant.
type Entity interface {
	entity()
}

type TrainingDummy struct {
	ID   int
	X, Y int
	NPC  int
}

type ItemFrame struct {
	ID     int
	X, Y   int
	ItemID int
	Prefix int
	Stack  int
}

type LogicSensor struct {
	ID   int
	X, Y int
	Kind int
	On   bool
}

func (TrainingDummy) entity() {}
func (ItemFrame) entity()     {}
func (LogicSensor) entity()   {}

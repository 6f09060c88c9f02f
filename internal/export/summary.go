// Package export turns a decoded world into serializable documents: a
// JSON summary for tooling and a zstd-compressed snapshot for archival.
package export

import (
	"terramap/internal/worldfile"
)

const SummaryVersion = 1

type Summary struct {
	Version int `json:"version"`

	Name        string `json:"name"`
	WorldID     int    `json:"world_id"`
	GUID        string `json:"guid,omitempty"`
	FileVersion int    `json:"file_version"`

	TilesWide   int     `json:"tiles_wide"`
	TilesHigh   int     `json:"tiles_high"`
	GroundLevel float64 `json:"ground_level"`
	SpawnX      int     `json:"spawn_x"`
	SpawnY      int     `json:"spawn_y"`
	Hardmode    bool    `json:"hardmode"`

	Chests   []ChestSummary `json:"chests"`
	Signs    []SignSummary  `json:"signs"`
	NPCs     []NPCSummary   `json:"npcs"`
	Entities EntityCounts   `json:"entities"`

	Kills            map[string]int `json:"kills,omitempty"`
	SightedCreatures int            `json:"sighted_creatures"`
	UnlockedChats    int            `json:"unlocked_chats"`

	// Fraction of tiles carrying the explored flag, in percent. Only
	// meaningful when a player overlay was applied.
	ExploredPct float64 `json:"explored_pct"`
}

type ChestSummary struct {
	X     int      `json:"x"`
	Y     int      `json:"y"`
	Name  string   `json:"name,omitempty"`
	Items []string `json:"items,omitempty"`
}

type SignSummary struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Text string `json:"text"`
}

type NPCSummary struct {
	Sprite   int     `json:"sprite"`
	Title    string  `json:"title,omitempty"`
	Name     string  `json:"name,omitempty"`
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
	Homeless bool    `json:"homeless"`
}

type EntityCounts struct {
	TrainingDummies int `json:"training_dummies"`
	ItemFrames      int `json:"item_frames"`
	LogicSensors    int `json:"logic_sensors"`
}

func Summarize(w *worldfile.World) Summary {
	s := Summary{
		Version:          SummaryVersion,
		Name:             w.Header.String("name"),
		WorldID:          w.Header.Int("worldID"),
		FileVersion:      w.Header.Version,
		TilesWide:        w.TilesWide,
		TilesHigh:        w.TilesHigh,
		GroundLevel:      w.Header.Float("groundLevel"),
		SpawnX:           w.Header.Int("spawnX"),
		SpawnY:           w.Header.Int("spawnY"),
		Hardmode:         w.Header.Bool("hardMode"),
		Kills:            w.Kills,
		SightedCreatures: len(w.SightedCreatures),
		UnlockedChats:    len(w.UnlockedChats),
	}
	if guid, ok := w.Header.GUID(); ok {
		s.GUID = guid
	}

	s.Chests = make([]ChestSummary, 0, len(w.Chests))
	for _, chest := range w.Chests {
		cs := ChestSummary{X: chest.X, Y: chest.Y, Name: chest.Name}
		for _, item := range chest.Items {
			name := item.Name
			if item.Prefix != "" {
				name = item.Prefix + " " + name
			}
			cs.Items = append(cs.Items, name)
		}
		s.Chests = append(s.Chests, cs)
	}

	s.Signs = make([]SignSummary, 0, len(w.Signs))
	for _, sign := range w.Signs {
		s.Signs = append(s.Signs, SignSummary{X: sign.X, Y: sign.Y, Text: sign.Text})
	}

	s.NPCs = make([]NPCSummary, 0, len(w.NPCs))
	for _, npc := range w.NPCs {
		s.NPCs = append(s.NPCs, NPCSummary{
			Sprite: npc.Sprite, Title: npc.Title, Name: npc.Name,
			X: npc.X, Y: npc.Y, Homeless: npc.Homeless,
		})
	}

	for _, e := range w.Entities {
		switch e.(type) {
		case worldfile.TrainingDummy:
			s.Entities.TrainingDummies++
		case worldfile.ItemFrame:
			s.Entities.ItemFrames++
		case worldfile.LogicSensor:
			s.Entities.LogicSensors++
		}
	}

	if len(w.Tiles) > 0 {
		seen := 0
		for i := range w.Tiles {
			if w.Tiles[i].Seen() {
				seen++
			}
		}
		s.ExploredPct = float64(seen) * 100 / float64(len(w.Tiles))
	}
	return s
}

// Package defs loads the external lookup tables the decoder queries:
// item names, item prefixes, and NPC definitions. The tables are plain
// JSON files in a config directory and are immutable once loaded, so a
// single Tables value can back any number of concurrent decodes.
package defs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Tables struct {
	Items    ItemTable
	Prefixes PrefixTable
	NPCs     NPCTable
}

type ItemTable struct {
	ByID   map[int]string
	Digest string
}

type PrefixTable struct {
	ByID   map[int]string
	Digest string
}

type NPCTable struct {
	ByID   map[int]NPCDef
	ByName map[string]NPCDef
	Digest string
}

// NPCDef describes one town NPC kind. Title is the display name shared
// by every NPC of the kind ("Guide"); Head selects the portrait sprite.
type NPCDef struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Head  int    `json:"head"`
}

type namedID struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func Load(configDir string) (*Tables, error) {
	var t Tables
	if err := loadItems(filepath.Join(configDir, "items.json"), &t.Items); err != nil {
		return nil, err
	}
	if err := loadPrefixes(filepath.Join(configDir, "prefixes.json"), &t.Prefixes); err != nil {
		return nil, err
	}
	if err := loadNPCs(filepath.Join(configDir, "npcs.json"), &t.NPCs); err != nil {
		return nil, err
	}
	return &t, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(path string, out *ItemTable) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []namedID
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.ByID = map[int]string{}
	for _, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("items.json: empty name for id %d", d.ID)
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("items.json: duplicate id %d", d.ID)
		}
		out.ByID[d.ID] = d.Name
	}
	return nil
}

func loadPrefixes(path string, out *PrefixTable) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []namedID
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("prefixes.json: %w", err)
	}
	out.ByID = map[int]string{}
	for _, d := range defs {
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("prefixes.json: duplicate id %d", d.ID)
		}
		out.ByID[d.ID] = d.Name
	}
	return nil
}

func loadNPCs(path string, out *NPCTable) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []NPCDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("npcs.json: %w", err)
	}
	out.ByID = map[int]NPCDef{}
	out.ByName = map[string]NPCDef{}
	for _, d := range defs {
		if d.Title == "" {
			return fmt.Errorf("npcs.json: empty title for id %d", d.ID)
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("npcs.json: duplicate id %d", d.ID)
		}
		out.ByID[d.ID] = d
		out.ByName[d.Title] = d
	}
	return nil
}

// ItemName resolves an item id to its display name; unknown ids get a
// stable placeholder so chest listings never lose slots.
// Lookups tolerate a nil receiver so decoding works without any tables
// loaded; everything then falls back to placeholder names.
func (t *Tables) ItemName(id int) string {
	if t != nil {
		if name, ok := t.Items.ByID[id]; ok {
			return name
		}
	}
	return fmt.Sprintf("Item #%d", id)
}

// PrefixName resolves a prefix id; id 0 (no prefix) yields "".
func (t *Tables) PrefixName(id int) string {
	if t != nil {
		if name, ok := t.Prefixes.ByID[id]; ok {
			return name
		}
	}
	if id == 0 {
		return ""
	}
	return fmt.Sprintf("Prefix #%d", id)
}

func (t *Tables) NPCByID(id int) (NPCDef, bool) {
	if t == nil {
		return NPCDef{}, false
	}
	d, ok := t.NPCs.ByID[id]
	return d, ok
}

func (t *Tables) NPCByTitle(title string) (NPCDef, bool) {
	if t == nil {
		return NPCDef{}, false
	}
	d, ok := t.NPCs.ByName[title]
	return d, ok
}

// Package catalogs loads the content catalogs (block palette, items, brush
// templates) from the config directory and records their digests so both
// ends can detect drift.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type Catalogs struct {
	Blocks  BlockCatalog
	Items   ItemCatalog
	Brushes BrushCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID          string `json:"id"`
	Solid       bool   `json:"solid"`
	Replaceable bool   `json:"replaceable,omitempty"`
}

type ItemCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"` // "BLOCK","TOOL"
	PlaceAs string `json:"place_as,omitempty"`
	Starter int    `json:"starter,omitempty"` // count granted on join
}

type BrushCatalog struct {
	ByID   map[string]BrushDef
	Order  []string
	Digest string
}

type BrushDef struct {
	ID     string       `json:"id"`
	Name   string       `json:"name,omitempty"`
	Blocks []BrushBlock `json:"blocks"`
}

type BrushBlock struct {
	Off   [3]int `json:"off"`
	Block string `json:"block"`
}

// Load reads blocks.json, items.json and brushes.json from configDir.
// brushes.json is validated against schemaDir/brush_template.schema.json
// before decoding; the other two are validated structurally by the loaders.
func Load(configDir, schemaDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadBrushes(filepath.Join(configDir, "brushes.json"), filepath.Join(schemaDir, "brush_template.schema.json"), &c.Brushes); err != nil {
		return nil, err
	}

	// Cross-catalog references.
	for id, d := range c.Items.Defs {
		if d.PlaceAs != "" {
			if _, ok := c.Blocks.Defs[d.PlaceAs]; !ok {
				return nil, fmt.Errorf("items.json: %s place_as %q not in blocks", id, d.PlaceAs)
			}
		}
	}
	for id, b := range c.Brushes.ByID {
		for _, cell := range b.Blocks {
			if _, ok := c.Blocks.Defs[cell.Block]; !ok {
				return nil, fmt.Errorf("brushes.json: %s references block %q not in blocks", id, cell.Block)
			}
		}
	}

	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadBrushes(path, schemaPath string, out *BrushCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	sch, err := jsonschema.Compile(schemaPath)
	if err != nil {
		return fmt.Errorf("brush template schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("brushes.json: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("brushes.json: %w", err)
	}

	var defs []BrushDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("brushes.json: %w", err)
	}
	out.ByID = map[string]BrushDef{}
	out.Order = make([]string, 0, len(defs))
	for _, b := range defs {
		if _, dup := out.ByID[b.ID]; dup {
			return fmt.Errorf("brushes.json: duplicate id %q", b.ID)
		}
		out.ByID[b.ID] = b
		out.Order = append(out.Order, b.ID)
	}
	sort.Strings(out.Order)
	return nil
}

func filterOut(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

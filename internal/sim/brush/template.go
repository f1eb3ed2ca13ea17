package brush

import (
	"fmt"
	"sort"

	"voxelbrush.dev/internal/geo"

	"voxelbrush.dev/internal/sim/catalogs"
)

// Template is a compiled brush template: cells at identity orientation, the
// bounding size used by GRID snapping, and the per-item material cost of one
// stamp.
type Template struct {
	ID    string
	Cells []Cell
	Size  geo.Vec3i
	Cost  map[string]int
}

type Cell struct {
	Off   geo.Vec3i
	Block string
}

// CompileTemplates adapts the catalog brush defs. Every template block must
// be placeable through some item (place_as), otherwise stamping could mint
// blocks no inventory can pay for.
func CompileTemplates(cats *catalogs.Catalogs) (map[string]*Template, error) {
	blockItem := map[string]string{}
	for _, itemID := range cats.Items.Palette {
		d := cats.Items.Defs[itemID]
		if d.PlaceAs == "" {
			continue
		}
		if _, ok := blockItem[d.PlaceAs]; !ok {
			blockItem[d.PlaceAs] = itemID
		}
	}

	out := make(map[string]*Template, len(cats.Brushes.ByID))
	for _, id := range cats.Brushes.Order {
		def := cats.Brushes.ByID[id]
		t := &Template{ID: id, Cost: map[string]int{}}

		min := geo.Vec3i{}
		max := geo.Vec3i{}
		for i, cell := range def.Blocks {
			off := geo.FromArray(cell.Off)
			item, ok := blockItem[cell.Block]
			if !ok {
				return nil, fmt.Errorf("brush %s: block %q has no placing item", id, cell.Block)
			}
			t.Cells = append(t.Cells, Cell{Off: off, Block: cell.Block})
			t.Cost[item]++

			if i == 0 {
				min, max = off, off
				continue
			}
			min = geo.Vec3i{X: minInt(min.X, off.X), Y: minInt(min.Y, off.Y), Z: minInt(min.Z, off.Z)}
			max = geo.Vec3i{X: maxInt(max.X, off.X), Y: maxInt(max.Y, off.Y), Z: maxInt(max.Z, off.Z)}
		}
		t.Size = geo.Vec3i{X: max.X - min.X + 1, Y: max.Y - min.Y + 1, Z: max.Z - min.Z + 1}

		sort.Slice(t.Cells, func(a, b int) bool {
			ca, cb := t.Cells[a].Off, t.Cells[b].Off
			if ca.Y != cb.Y {
				return ca.Y < cb.Y
			}
			if ca.Z != cb.Z {
				return ca.Z < cb.Z
			}
			return ca.X < cb.X
		})
		out[id] = t
	}
	return out, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

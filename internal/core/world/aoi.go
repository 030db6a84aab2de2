package world

import (
	"math"

	"github.com/l1jgo/worldcore/internal/core/ecs"
)

// AOIGrid buckets objects by world position on the XZ plane so backends can
// query an area of interest without scanning every object. It is a snapshot:
// rebuild it after the frame to see movement. Not safe for concurrent use.
type AOIGrid struct {
	cellSize float32
	cells    map[cellKey][]aoiEntry
}

type cellKey struct {
	cx, cz int32
}

type aoiEntry struct {
	handle ecs.ObjectHandle
	pos    Vec3
}

func NewAOIGrid(cellSize float32) *AOIGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &AOIGrid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]aoiEntry),
	}
}

func (g *AOIGrid) key(p Vec3) cellKey {
	return cellKey{
		cx: int32(math.Floor(float64(p.X / g.cellSize))),
		cz: int32(math.Floor(float64(p.Z / g.cellSize))),
	}
}

// Add places an object at pos.
func (g *AOIGrid) Add(h ecs.ObjectHandle, pos Vec3) {
	k := g.key(pos)
	g.cells[k] = append(g.cells[k], aoiEntry{handle: h, pos: pos})
}

// Len returns the number of occupied cells.
func (g *AOIGrid) Len() int { return len(g.cells) }

// Nearby returns the active objects within radius of pos on the XZ plane.
func (g *AOIGrid) Nearby(pos Vec3, radius float32) []ecs.ObjectHandle {
	lo := g.key(Vec3{X: pos.X - radius, Z: pos.Z - radius})
	hi := g.key(Vec3{X: pos.X + radius, Z: pos.Z + radius})
	r2 := radius * radius

	var result []ecs.ObjectHandle
	for cx := lo.cx; cx <= hi.cx; cx++ {
		for cz := lo.cz; cz <= hi.cz; cz++ {
			for _, e := range g.cells[cellKey{cx, cz}] {
				dx, dz := e.pos.X-pos.X, e.pos.Z-pos.Z
				if dx*dx+dz*dz <= r2 {
					result = append(result, e.handle)
				}
			}
		}
	}
	return result
}

// BuildAOI indexes every active object of w by its world position.
func (w *World) BuildAOI(cellSize float32) *AOIGrid {
	g := NewAOIGrid(cellSize)
	w.VisitObjects(func(s ObjectSnapshot) bool {
		if !s.Active {
			return true
		}
		if t, ok := w.WorldTransform(s.Handle); ok {
			g.Add(s.Handle, t.Position)
		}
		return true
	})
	return g
}

package teb

import "github.com/golang/geo/r2"

// OccupancyGrid is a row-major 2D occupancy map, the Go stand-in for
// nav_msgs/OccupancyGrid: Data[y*Width+x] > 0 means cell (x, y) is occupied.
type OccupancyGrid struct {
	Width, Height int
	Resolution    float64
	OriginX       float64
	OriginY       float64
	Data          []int8
}

// CellIndex converts a world point to its grid index, or -1 if it falls
// outside the grid.
func (g *OccupancyGrid) CellIndex(p r2.Point) int {
	if g == nil || g.Resolution <= 0 {
		return -1
	}
	mx := int((p.X - g.OriginX) / g.Resolution)
	my := int((p.Y - g.OriginY) / g.Resolution)
	if mx < 0 || mx >= g.Width || my < 0 || my >= g.Height {
		return -1
	}
	return my*g.Width + mx
}

// occupied reports whether the grid cell at linear index idx is occupied,
// treating any out-of-range index as unoccupied.
func (g *OccupancyGrid) occupied(idx int) bool {
	if idx < 0 || idx >= len(g.Data) {
		return false
	}
	return g.Data[idx] > 0
}

// IsStatic classifies the grid cell at linear index idx as a static
// obstacle location by probing outward along a cross (left/right/up/down)
// up to 19 cells, the way the original planner's costmap lookup does.
//
// Any one of the four cardinal probes reporting occupied at a given radius
// is enough to classify the cell as static; the probes are not required to
// agree.
func (g *OccupancyGrid) IsStatic(idx int) bool {
	if g == nil {
		return false
	}
	for j := 0; j < 20; j++ {
		left := idx - j
		right := idx + j
		up := idx - j*g.Width
		down := idx + j*g.Width
		if g.occupied(left) || g.occupied(right) || g.occupied(up) || g.occupied(down) {
			return true
		}
	}
	return false
}

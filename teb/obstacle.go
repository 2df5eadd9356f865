package teb

import (
	"math"

	"github.com/golang/geo/r2"
)

// PredictionModel selects the motion model PredictAt uses to forecast a
// dynamic obstacle's future position.
type PredictionModel int

const (
	// ConstantVelocity extrapolates using velocity only.
	ConstantVelocity PredictionModel = iota
	// ConstantAcceleration extrapolates using velocity and acceleration.
	ConstantAcceleration
)

// ObstacleKind tags the variant behind the Obstacle interface (a "tagged
// sum" in place of a virtual-dispatch obstacle hierarchy).
type ObstacleKind int

const (
	// KindPoint is a zero-radius point obstacle.
	KindPoint ObstacleKind = iota
	// KindCircular is a disc obstacle.
	KindCircular
	// KindLine is a line-segment obstacle.
	KindLine
	// KindPolygon is a convex polygon obstacle.
	KindPolygon
	// KindDynamic is a moving obstacle with a velocity/acceleration state.
	KindDynamic
)

// Obstacle is the uniform interface over every obstacle variant.
// DistanceTo returns 0 when the query point lies inside the obstacle's
// boundary.
type Obstacle interface {
	Kind() ObstacleKind
	Centroid() r2.Point
	DistanceTo(p r2.Point) float64
	IsDynamic() bool
	// Velocity returns the obstacle's current linear velocity and whether
	// it has one at all (static obstacles return (zero, false)).
	Velocity() (r2.Point, bool)
}

// DynamicPredictor is implemented by obstacles that can forecast a future
// position, e.g. obstacles backed by the associator's Kalman filter.
type DynamicPredictor interface {
	Obstacle
	// PredictAt returns the predicted position t seconds into the future.
	PredictAt(t float64, model PredictionModel) r2.Point
}

// PointObstacle is a zero-radius point obstacle, the type the associator
// materializes for static occupancy-grid cells and for tiles of a dynamic
// obstacle's predicted bounding box.
type PointObstacle struct {
	Pos r2.Point
}

// NewPointObstacle constructs a PointObstacle at pos.
func NewPointObstacle(pos r2.Point) *PointObstacle { return &PointObstacle{Pos: pos} }

// Kind implements Obstacle.
func (o *PointObstacle) Kind() ObstacleKind { return KindPoint }

// Centroid implements Obstacle.
func (o *PointObstacle) Centroid() r2.Point { return o.Pos }

// DistanceTo implements Obstacle.
func (o *PointObstacle) DistanceTo(p r2.Point) float64 { return p.Sub(o.Pos).Norm() }

// IsDynamic implements Obstacle.
func (o *PointObstacle) IsDynamic() bool { return false }

// Velocity implements Obstacle.
func (o *PointObstacle) Velocity() (r2.Point, bool) { return r2.Point{}, false }

// CircularObstacle is a disc obstacle with a radius.
type CircularObstacle struct {
	Pos    r2.Point
	Radius float64
}

// Kind implements Obstacle.
func (o *CircularObstacle) Kind() ObstacleKind { return KindCircular }

// Centroid implements Obstacle.
func (o *CircularObstacle) Centroid() r2.Point { return o.Pos }

// DistanceTo implements Obstacle.
func (o *CircularObstacle) DistanceTo(p r2.Point) float64 {
	return math.Max(0, p.Sub(o.Pos).Norm()-o.Radius)
}

// IsDynamic implements Obstacle.
func (o *CircularObstacle) IsDynamic() bool { return false }

// Velocity implements Obstacle.
func (o *CircularObstacle) Velocity() (r2.Point, bool) { return r2.Point{}, false }

// LineObstacle is a line-segment obstacle between Start and End.
type LineObstacle struct {
	Start, End r2.Point
}

// Kind implements Obstacle.
func (o *LineObstacle) Kind() ObstacleKind { return KindLine }

// Centroid implements Obstacle.
func (o *LineObstacle) Centroid() r2.Point {
	return r2.Point{X: 0.5 * (o.Start.X + o.End.X), Y: 0.5 * (o.Start.Y + o.End.Y)}
}

// DistanceTo implements Obstacle, returning the distance from p to the
// nearest point on the segment.
func (o *LineObstacle) DistanceTo(p r2.Point) float64 {
	seg := o.End.Sub(o.Start)
	segLen2 := seg.Dot(seg)
	if segLen2 == 0 {
		return p.Sub(o.Start).Norm()
	}
	t := p.Sub(o.Start).Dot(seg) / segLen2
	t = math.Max(0, math.Min(1, t))
	closest := o.Start.Add(seg.Mul(t))
	return p.Sub(closest).Norm()
}

// IsDynamic implements Obstacle.
func (o *LineObstacle) IsDynamic() bool { return false }

// Velocity implements Obstacle.
func (o *LineObstacle) Velocity() (r2.Point, bool) { return r2.Point{}, false }

// PolygonObstacle is a convex polygon obstacle given by its vertices in
// order.
type PolygonObstacle struct {
	Vertices []r2.Point
}

// Kind implements Obstacle.
func (o *PolygonObstacle) Kind() ObstacleKind { return KindPolygon }

// Centroid implements Obstacle, returning the vertex average (sufficient
// for the association distance checks this module performs; it is not a
// signed-area centroid).
func (o *PolygonObstacle) Centroid() r2.Point {
	if len(o.Vertices) == 0 {
		return r2.Point{}
	}
	var sum r2.Point
	for _, v := range o.Vertices {
		sum = sum.Add(v)
	}
	return sum.Mul(1.0 / float64(len(o.Vertices)))
}

// DistanceTo implements Obstacle: 0 if p is inside the polygon, otherwise
// the distance to the nearest edge.
func (o *PolygonObstacle) DistanceTo(p r2.Point) float64 {
	if len(o.Vertices) < 2 {
		return math.Inf(1)
	}
	if pointInPolygon(o.Vertices, p) {
		return 0
	}
	minDist := math.Inf(1)
	n := len(o.Vertices)
	for i := 0; i < n; i++ {
		seg := LineObstacle{Start: o.Vertices[i], End: o.Vertices[(i+1)%n]}
		if d := seg.DistanceTo(p); d < minDist {
			minDist = d
		}
	}
	return minDist
}

// IsDynamic implements Obstacle.
func (o *PolygonObstacle) IsDynamic() bool { return false }

// Velocity implements Obstacle.
func (o *PolygonObstacle) Velocity() (r2.Point, bool) { return r2.Point{}, false }

func pointInPolygon(vertices []r2.Point, p r2.Point) bool {
	inside := false
	n := len(vertices)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := vertices[i], vertices[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) &&
			p.X < (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
	}
	return inside
}

// DynamicObstacle is a moving obstacle carrying the (x, y, vx, vy, ax, ay)
// state the rest of this package needs, plus the axis-aligned bounding
// box reported alongside it on the wire.
type DynamicObstacle struct {
	ID                 string
	Pos                r2.Point
	Vel                r2.Point
	Accel              r2.Point
	Width, Height      float64
}

// Kind implements Obstacle.
func (o *DynamicObstacle) Kind() ObstacleKind { return KindDynamic }

// Centroid implements Obstacle.
func (o *DynamicObstacle) Centroid() r2.Point { return o.Pos }

// DistanceTo implements Obstacle, treating the obstacle as a point at its
// current centroid (the associator instead tiles its predicted bounding box
// into PointObstacles for per-vertex checks; this method covers callers
// that want the obstacle's present-time distance).
func (o *DynamicObstacle) DistanceTo(p r2.Point) float64 { return p.Sub(o.Pos).Norm() }

// IsDynamic implements Obstacle.
func (o *DynamicObstacle) IsDynamic() bool { return true }

// Velocity implements Obstacle.
func (o *DynamicObstacle) Velocity() (r2.Point, bool) { return o.Vel, true }

// PredictAt implements DynamicPredictor using either a constant-velocity or
// constant-acceleration model.
func (o *DynamicObstacle) PredictAt(t float64, model PredictionModel) r2.Point {
	pos := o.Pos.Add(o.Vel.Mul(t))
	if model == ConstantAcceleration {
		pos = pos.Add(o.Accel.Mul(0.5 * t * t))
	}
	return pos
}

package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
)

// PoseSE2 is a 2D rigid-body pose: a position and a heading normalized to
// (-pi, pi]. It is the decision variable type for every "pose vertex" in the
// TEB hyper-graph.
type PoseSE2 struct {
	X, Y  float64
	Theta float64
}

// NewPoseSE2 constructs a PoseSE2, normalizing theta on the way in so every
// PoseSE2 value in the system satisfies the (-pi, pi] invariant.
func NewPoseSE2(x, y, theta float64) PoseSE2 {
	return PoseSE2{X: x, Y: y, Theta: NormalizeTheta(theta)}
}

// Position returns the (x, y) position as an r2.Point.
func (p PoseSE2) Position() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

// OrientationUnitVec returns the unit vector (cos theta, sin theta) pointing
// along the pose's heading.
func (p PoseSE2) OrientationUnitVec() r2.Point {
	return r2.Point{X: math.Cos(p.Theta), Y: math.Sin(p.Theta)}
}

// SetTheta sets theta, normalizing it.
func (p *PoseSE2) SetTheta(theta float64) {
	p.Theta = NormalizeTheta(theta)
}

// Translate returns a copy of p shifted by (dx, dy).
func (p PoseSE2) Translate(dx, dy float64) PoseSE2 {
	return PoseSE2{X: p.X + dx, Y: p.Y + dy, Theta: p.Theta}
}

// DistanceTo returns the Euclidean distance between two pose positions
// (heading is ignored).
func (p PoseSE2) DistanceTo(other PoseSE2) float64 {
	return p.Position().Sub(other.Position()).Norm()
}

// AngularDistanceTo returns the signed, shortest-arc angular distance from
// p's heading to other's heading.
func (p PoseSE2) AngularDistanceTo(other PoseSE2) float64 {
	return ShortestAngularDistance(p.Theta, other.Theta)
}

// Midpoint returns the linear midpoint position and the shorter-arc
// bisector heading between p and other — the rule TEB.AutoResize uses when
// it splits an over-long interval by inserting an interior pose.
func Midpoint(p, other PoseSE2) PoseSE2 {
	return PoseSE2{
		X:     0.5 * (p.X + other.X),
		Y:     0.5 * (p.Y + other.Y),
		Theta: InterpolateAngle(p.Theta, other.Theta, 0.5),
	}
}

// Interpolate returns the pose a fraction `frac` of the way from p to
// other, linear in position and shorter-arc in heading.
func Interpolate(p, other PoseSE2, frac float64) PoseSE2 {
	return PoseSE2{
		X:     p.X + frac*(other.X-p.X),
		Y:     p.Y + frac*(other.Y-p.Y),
		Theta: InterpolateAngle(p.Theta, other.Theta, frac),
	}
}

package spatialmath

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestNewPoseSE2NormalizesTheta(t *testing.T) {
	t.Parallel()
	p := NewPoseSE2(1, 2, 3*math.Pi)
	test.That(t, p.Theta, test.ShouldAlmostEqual, math.Pi, 1e-9)
}

func TestPoseSE2DistanceAndAngularDistance(t *testing.T) {
	t.Parallel()
	a := NewPoseSE2(0, 0, 0)
	b := NewPoseSE2(3, 4, math.Pi/2)
	test.That(t, a.DistanceTo(b), test.ShouldAlmostEqual, 5, 1e-9)
	test.That(t, a.AngularDistanceTo(b), test.ShouldAlmostEqual, math.Pi/2, 1e-9)
}

func TestMidpointBisectsPositionAndHeading(t *testing.T) {
	t.Parallel()
	a := NewPoseSE2(0, 0, 0)
	b := NewPoseSE2(2, 0, math.Pi/2)
	mid := Midpoint(a, b)
	test.That(t, mid.X, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, mid.Y, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, mid.Theta, test.ShouldAlmostEqual, math.Pi/4, 1e-9)
}

func TestInterpolateEndpoints(t *testing.T) {
	t.Parallel()
	a := NewPoseSE2(0, 0, 0)
	b := NewPoseSE2(10, 10, math.Pi)
	test.That(t, Interpolate(a, b, 0), test.ShouldResemble, a)
	got := Interpolate(a, b, 1)
	test.That(t, got.X, test.ShouldAlmostEqual, b.X, 1e-9)
	test.That(t, got.Y, test.ShouldAlmostEqual, b.Y, 1e-9)
	test.That(t, got.Theta, test.ShouldAlmostEqual, b.Theta, 1e-9)
}

func TestOrientationUnitVecIsUnitLength(t *testing.T) {
	t.Parallel()
	p := NewPoseSE2(0, 0, 1.2345)
	v := p.OrientationUnitVec()
	test.That(t, v.Norm(), test.ShouldAlmostEqual, 1, 1e-9)
}

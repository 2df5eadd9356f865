package teb

import (
	"math"
	"testing"

	"go.viam.com/test"

	"github.com/golang/geo/r2"
)

func TestPointObstacleDistanceTo(t *testing.T) {
	t.Parallel()
	o := NewPointObstacle(r2.Point{X: 1, Y: 1})
	test.That(t, o.Kind(), test.ShouldEqual, KindPoint)
	test.That(t, o.IsDynamic(), test.ShouldBeFalse)
	test.That(t, o.DistanceTo(r2.Point{X: 4, Y: 5}), test.ShouldAlmostEqual, 5, 1e-9)
}

func TestCircularObstacleDistanceToClampsAtZero(t *testing.T) {
	t.Parallel()
	o := &CircularObstacle{Pos: r2.Point{X: 0, Y: 0}, Radius: 2}
	test.That(t, o.DistanceTo(r2.Point{X: 1, Y: 0}), test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, o.DistanceTo(r2.Point{X: 5, Y: 0}), test.ShouldAlmostEqual, 3, 1e-9)
}

func TestLineObstacleDistanceToClampsToSegment(t *testing.T) {
	t.Parallel()
	o := &LineObstacle{Start: r2.Point{X: 0, Y: 0}, End: r2.Point{X: 10, Y: 0}}
	test.That(t, o.DistanceTo(r2.Point{X: 5, Y: 3}), test.ShouldAlmostEqual, 3, 1e-9)
	test.That(t, o.DistanceTo(r2.Point{X: -5, Y: 0}), test.ShouldAlmostEqual, 5, 1e-9)
	test.That(t, o.DistanceTo(r2.Point{X: 15, Y: 0}), test.ShouldAlmostEqual, 5, 1e-9)
}

func TestLineObstacleDegenerateSegmentIsAPoint(t *testing.T) {
	t.Parallel()
	o := &LineObstacle{Start: r2.Point{X: 2, Y: 2}, End: r2.Point{X: 2, Y: 2}}
	test.That(t, o.DistanceTo(r2.Point{X: 2, Y: 5}), test.ShouldAlmostEqual, 3, 1e-9)
}

func TestPolygonObstacleDistanceToInsideIsZero(t *testing.T) {
	t.Parallel()
	square := &PolygonObstacle{Vertices: []r2.Point{
		{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4},
	}}
	test.That(t, square.DistanceTo(r2.Point{X: 2, Y: 2}), test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, square.DistanceTo(r2.Point{X: 6, Y: 2}), test.ShouldAlmostEqual, 2, 1e-9)
}

func TestPolygonObstacleCentroidOfEmptyVertices(t *testing.T) {
	t.Parallel()
	empty := &PolygonObstacle{}
	test.That(t, empty.Centroid(), test.ShouldResemble, r2.Point{})
	test.That(t, math.IsInf(empty.DistanceTo(r2.Point{X: 1, Y: 1}), 1), test.ShouldBeTrue)
}

func TestDynamicObstaclePredictAtConstantVelocity(t *testing.T) {
	t.Parallel()
	o := &DynamicObstacle{Pos: r2.Point{X: 0, Y: 0}, Vel: r2.Point{X: 1, Y: 0}}
	got := o.PredictAt(2, ConstantVelocity)
	test.That(t, got.X, test.ShouldAlmostEqual, 2, 1e-9)
	test.That(t, got.Y, test.ShouldAlmostEqual, 0, 1e-9)
}

func TestDynamicObstaclePredictAtConstantAcceleration(t *testing.T) {
	t.Parallel()
	o := &DynamicObstacle{Pos: r2.Point{X: 0, Y: 0}, Vel: r2.Point{X: 1, Y: 0}, Accel: r2.Point{X: 2, Y: 0}}
	got := o.PredictAt(2, ConstantAcceleration)
	// x = x0 + v*t + 0.5*a*t^2 = 0 + 1*2 + 0.5*2*4 = 6
	test.That(t, got.X, test.ShouldAlmostEqual, 6, 1e-9)
}

func TestDynamicObstacleIsDynamicAndVelocity(t *testing.T) {
	t.Parallel()
	o := &DynamicObstacle{Vel: r2.Point{X: 3, Y: 4}}
	test.That(t, o.IsDynamic(), test.ShouldBeTrue)
	v, ok := o.Velocity()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldResemble, r2.Point{X: 3, Y: 4})
}

func TestStaticObstaclesReportNoVelocity(t *testing.T) {
	t.Parallel()
	for _, o := range []Obstacle{
		NewPointObstacle(r2.Point{}),
		&CircularObstacle{},
		&LineObstacle{},
		&PolygonObstacle{},
	} {
		_, ok := o.Velocity()
		test.That(t, ok, test.ShouldBeFalse)
		test.That(t, o.IsDynamic(), test.ShouldBeFalse)
	}
}

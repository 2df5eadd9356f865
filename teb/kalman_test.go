package teb

import (
	"testing"

	"go.viam.com/test"

	"github.com/golang/geo/r2"
)

func TestKalmanFilter6DPredictWithZeroVelocityStaysPut(t *testing.T) {
	t.Parallel()
	k := NewKalmanFilter6D(r2.Point{X: 0, Y: 0})
	// With zero initial velocity, a single predict with no correction stays put.
	got := k.Predict(1.0)
	test.That(t, got.X, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, got.Y, test.ShouldAlmostEqual, 0, 1e-9)
}

func TestKalmanFilter6DCorrectPullsStateTowardMeasurement(t *testing.T) {
	t.Parallel()
	k := NewKalmanFilter6D(r2.Point{X: 0, Y: 0})
	k.Predict(1.0)
	k.Correct(r2.Point{X: 2, Y: 0})
	v := k.Velocity()
	test.That(t, v.X, test.ShouldBeGreaterThan, 0)
}

func TestEstimateDynamicObstacleTracksVelocityDirection(t *testing.T) {
	t.Parallel()
	prior := r2.Point{X: 0, Y: 0}
	current := r2.Point{X: 1, Y: 0}
	obst := EstimateDynamicObstacle("a", prior, current, 1.0, 0.5, 0.5)
	test.That(t, obst.ID, test.ShouldEqual, "a")
	test.That(t, obst.Pos, test.ShouldResemble, current)
	test.That(t, obst.Vel.X, test.ShouldBeGreaterThan, 0)
}

func TestEstimateDynamicObstacleClampsNonPositiveDt(t *testing.T) {
	t.Parallel()
	// Must not panic or divide by zero when dt <= 0.
	obst := EstimateDynamicObstacle("b", r2.Point{X: 0, Y: 0}, r2.Point{X: 1, Y: 1}, 0, 0.2, 0.2)
	test.That(t, obst, test.ShouldNotBeNil)
}

package spatialmath

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestNormalizeTheta(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi, math.Pi},
		{-3 * math.Pi, math.Pi},
		{2 * math.Pi, 0},
	}
	for _, c := range cases {
		got := NormalizeTheta(c.in)
		test.That(t, got, test.ShouldAlmostEqual, c.want, 1e-9)
		test.That(t, got, test.ShouldBeLessThanOrEqualTo, math.Pi+1e-9)
		test.That(t, got, test.ShouldBeGreaterThan, -math.Pi-1e-9)
	}
}

func TestShortestAngularDistanceWrapsAround(t *testing.T) {
	t.Parallel()
	d := ShortestAngularDistance(3.0, -3.0)
	test.That(t, math.Abs(d), test.ShouldBeLessThan, math.Pi)
}

func TestInterpolateAngleHalfway(t *testing.T) {
	t.Parallel()
	got := InterpolateAngle(0, math.Pi/2, 0.5)
	test.That(t, got, test.ShouldAlmostEqual, math.Pi/4, 1e-9)
}

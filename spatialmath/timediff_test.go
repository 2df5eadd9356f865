package spatialmath

import (
	"errors"
	"testing"

	"go.viam.com/test"
)

func TestNewTimeDiffRejectsNonPositive(t *testing.T) {
	t.Parallel()
	_, err := NewTimeDiff(0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrNonPositiveTimeDiff), test.ShouldBeTrue)

	_, err = NewTimeDiff(-1)
	test.That(t, err, test.ShouldNotBeNil)

	dt, err := NewTimeDiff(0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dt.Seconds(), test.ShouldAlmostEqual, 0.5, 1e-9)
}

func TestTimeDiffClamp(t *testing.T) {
	t.Parallel()
	dt := TimeDiff(5)
	test.That(t, dt.Clamp(0, 1).Seconds(), test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, dt.Clamp(10, 20).Seconds(), test.ShouldAlmostEqual, 10, 1e-9)
	test.That(t, dt.Clamp(0, 10).Seconds(), test.ShouldAlmostEqual, 5, 1e-9)
}

package teb

import (
	"testing"

	"go.viam.com/test"
)

func TestPenaltyBoundToIntervalIsZeroInsideSlack(t *testing.T) {
	t.Parallel()
	test.That(t, penaltyBoundToInterval(5, 0, 10, 1), test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, penaltyBoundToInterval(0.5, 0, 10, 1), test.ShouldBeGreaterThan, 0)
	test.That(t, penaltyBoundToInterval(9.5, 0, 10, 1), test.ShouldBeGreaterThan, 0)
}

func TestPenaltyBoundToIntervalSymIsSymmetric(t *testing.T) {
	t.Parallel()
	test.That(t, penaltyBoundToIntervalSym(0, 5, 1), test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, penaltyBoundToIntervalSym(6, 5, 1), test.ShouldAlmostEqual, penaltyBoundToIntervalSym(-6, 5, 1), 1e-9)
}

func TestPenaltyBoundFromBelowEngagesBeforeMin(t *testing.T) {
	t.Parallel()
	test.That(t, penaltyBoundFromBelow(10, 5, 1), test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, penaltyBoundFromBelow(5.5, 5, 1), test.ShouldBeGreaterThan, 0)
	test.That(t, penaltyBoundFromBelow(3, 5, 1), test.ShouldAlmostEqual, 3, 1e-9)
}

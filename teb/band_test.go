package teb

import (
	"testing"

	"go.viam.com/test"

	"github.com/viam-labs/tebplanner/spatialmath"
)

func straightPlan(n int, step float64) []spatialmath.PoseSE2 {
	plan := make([]spatialmath.PoseSE2, 0, n)
	for i := 0; i < n; i++ {
		plan = append(plan, spatialmath.NewPoseSE2(float64(i)*step, 0, 0))
	}
	return plan
}

func TestBandInitFromPlanPopulatesBoundaryPoses(t *testing.T) {
	t.Parallel()
	b := NewBand()
	plan := straightPlan(5, 1.0)
	err := b.InitFromPlan(plan, 1.0, 1.0, false, 2, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.IsInit(), test.ShouldBeTrue)
	test.That(t, b.Pose(0), test.ShouldResemble, plan[0])
	test.That(t, b.BackPose(), test.ShouldResemble, plan[len(plan)-1])
	test.That(t, b.SizeTimeDiffs(), test.ShouldEqual, b.SizePoses()-1)
}

func TestBandInitFromPlanRejectsShortPlan(t *testing.T) {
	t.Parallel()
	b := NewBand()
	err := b.InitFromPlan([]spatialmath.PoseSE2{spatialmath.NewPoseSE2(0, 0, 0)}, 1.0, 1.0, false, 2, true)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBandInitFromPlanRejectsNonPositiveVMax(t *testing.T) {
	t.Parallel()
	b := NewBand()
	err := b.InitFromPlan(straightPlan(3, 1.0), 0, 1.0, false, 2, true)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBandInitFromStartGoalAnchorsEndpoints(t *testing.T) {
	t.Parallel()
	b := NewBand()
	start := spatialmath.NewPoseSE2(0, 0, 0)
	goal := spatialmath.NewPoseSE2(10, 0, 0)
	err := b.InitFromStartGoal(start, goal, 3, 1.0, 2, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.Pose(0), test.ShouldResemble, start)
	test.That(t, b.BackPose(), test.ShouldResemble, goal)
	test.That(t, b.SizePoses(), test.ShouldEqual, 5)
}

func TestBandInitFromStartGoalGrowsToMinSamples(t *testing.T) {
	t.Parallel()
	b := NewBand()
	start := spatialmath.NewPoseSE2(0, 0, 0)
	goal := spatialmath.NewPoseSE2(10, 0, 0)
	err := b.InitFromStartGoal(start, goal, 0, 1.0, 6, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.SizePoses(), test.ShouldBeGreaterThanOrEqualTo, 6)
}

func TestBandCloneAndRestoreFromAreIndependent(t *testing.T) {
	t.Parallel()
	b := NewBand()
	test.That(t, b.InitFromStartGoal(spatialmath.NewPoseSE2(0, 0, 0), spatialmath.NewPoseSE2(5, 0, 0), 2, 1.0, 2, true), test.ShouldBeNil)

	clone := b.Clone()
	b.SetPose(1, spatialmath.NewPoseSE2(99, 99, 0))
	test.That(t, clone.Pose(1), test.ShouldNotResemble, b.Pose(1))

	b.restoreFrom(clone)
	test.That(t, b.Pose(1), test.ShouldResemble, clone.Pose(1))
}

func TestBandClearResetsToUninitialized(t *testing.T) {
	t.Parallel()
	b := NewBand()
	test.That(t, b.InitFromStartGoal(spatialmath.NewPoseSE2(0, 0, 0), spatialmath.NewPoseSE2(5, 0, 0), 2, 1.0, 2, true), test.ShouldBeNil)
	b.Clear()
	test.That(t, b.IsInit(), test.ShouldBeFalse)
	test.That(t, b.SizePoses(), test.ShouldEqual, 0)
}

func TestBandAutoResizeSplitsLongIntervals(t *testing.T) {
	t.Parallel()
	b := NewBand()
	test.That(t, b.InitFromStartGoal(spatialmath.NewPoseSE2(0, 0, 0), spatialmath.NewPoseSE2(10, 0, 0), 0, 1.0, 2, true), test.ShouldBeNil)
	before := b.SizePoses()

	err := b.AutoResize(0.3, 0.03, 2, 500, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.SizePoses(), test.ShouldBeGreaterThan, before)
	for i := 0; i < b.SizeTimeDiffs(); i++ {
		test.That(t, b.TimeDiff(i).Seconds(), test.ShouldBeLessThanOrEqualTo, 0.3+0.03+1e-9)
	}
}

func TestBandAutoResizeRespectsMaxSamples(t *testing.T) {
	t.Parallel()
	b := NewBand()
	test.That(t, b.InitFromStartGoal(spatialmath.NewPoseSE2(0, 0, 0), spatialmath.NewPoseSE2(100, 0, 0), 0, 1.0, 2, true), test.ShouldBeNil)

	err := b.AutoResize(0.3, 0.03, 2, 4, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.SizePoses(), test.ShouldBeLessThanOrEqualTo, 4)
}

func TestBandAutoResizeOnUninitializedBandErrors(t *testing.T) {
	t.Parallel()
	b := NewBand()
	err := b.AutoResize(0.3, 0.03, 2, 500, false)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBandUpdateAndPruneReanchorsEndpoints(t *testing.T) {
	t.Parallel()
	b := NewBand()
	test.That(t, b.InitFromStartGoal(spatialmath.NewPoseSE2(0, 0, 0), spatialmath.NewPoseSE2(10, 0, 0), 4, 1.0, 2, true), test.ShouldBeNil)

	newStart := spatialmath.NewPoseSE2(2, 0, 0)
	newGoal := spatialmath.NewPoseSE2(12, 0, 0)
	err := b.UpdateAndPrune(newStart, newGoal, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.Pose(0), test.ShouldResemble, newStart)
	test.That(t, b.BackPose(), test.ShouldResemble, newGoal)
	test.That(t, b.SizePoses(), test.ShouldBeGreaterThanOrEqualTo, 2)
}

func TestBandUpdateAndPruneOnUninitializedBandErrors(t *testing.T) {
	t.Parallel()
	b := NewBand()
	err := b.UpdateAndPrune(spatialmath.NewPoseSE2(0, 0, 0), spatialmath.NewPoseSE2(1, 0, 0), 2)
	test.That(t, err, test.ShouldNotBeNil)
}

package teb

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/viam-labs/tebplanner/logging"
	"github.com/viam-labs/tebplanner/spatialmath"
)

func TestPublishMarkersReplacesUnreadValue(t *testing.T) {
	t.Parallel()
	a := NewAdapter(logging.NewTestLogger(t))
	a.PublishMarkers([]ObstacleMarker{{PoseIndex: 0}})
	a.PublishMarkers([]ObstacleMarker{{PoseIndex: 1}, {PoseIndex: 2}})

	got := <-a.Markers()
	test.That(t, len(got), test.ShouldEqual, 2)
}

func TestPublishTimeDiffsReplacesUnreadValue(t *testing.T) {
	t.Parallel()
	a := NewAdapter(logging.NewTestLogger(t))
	a.PublishTimeDiffs([]float64{0.1})
	a.PublishTimeDiffs([]float64{0.2, 0.3})

	got := <-a.TimeDiffs()
	test.That(t, got, test.ShouldResemble, []float64{0.2, 0.3})
}

func TestPublishFeedbackReplacesUnreadValue(t *testing.T) {
	t.Parallel()
	a := NewAdapter(logging.NewTestLogger(t))
	a.PublishFeedback(PlannerFeedback{Cost: 1})
	a.PublishFeedback(PlannerFeedback{Cost: 2, Diverged: true})

	got := <-a.Feedback()
	test.That(t, got.Cost, test.ShouldEqual, 2)
	test.That(t, got.Diverged, test.ShouldBeTrue)
}

func TestPublishLocalPlanReplacesUnreadValue(t *testing.T) {
	t.Parallel()
	a := NewAdapter(logging.NewTestLogger(t))
	a.PublishLocalPlan([]TrajectoryPoint{{TimeFromStart: 1}})
	a.PublishLocalPlan([]TrajectoryPoint{{TimeFromStart: 2}, {TimeFromStart: 3}})

	got := <-a.LocalPlan()
	test.That(t, len(got), test.ShouldEqual, 2)
}

func TestPublishFeasibilityFailureReplacesUnreadValue(t *testing.T) {
	t.Parallel()
	a := NewAdapter(logging.NewTestLogger(t))
	a.PublishFeasibilityFailure(FeasibilityFailure{Reason: "first"})
	a.PublishFeasibilityFailure(FeasibilityFailure{Reason: "second"})

	got := <-a.FeasibilityFailures()
	test.That(t, got.Reason, test.ShouldEqual, "second")
}

func TestPlanAndPublishPublishesFeedbackTimeDiffsMarkersAndLocalPlan(t *testing.T) {
	t.Parallel()
	a := NewAdapter(logging.NewTestLogger(t))
	cfg := DefaultConfig()
	p, err := NewPlanner(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	a.IngestStaticObstacles([]Obstacle{NewPointObstacle(straightPlan(6, 1.0)[2].Position())})

	plan := straightPlan(6, 1.0)
	err = a.PlanAndPublish(context.Background(), p, plan, &Velocity{}, true)
	test.That(t, err, test.ShouldBeNil)

	fb := <-a.Feedback()
	test.That(t, fb.Cost, test.ShouldBeGreaterThanOrEqualTo, 0)

	diffs := <-a.TimeDiffs()
	test.That(t, len(diffs), test.ShouldEqual, p.Band.SizeTimeDiffs())

	traj := <-a.LocalPlan()
	test.That(t, len(traj), test.ShouldEqual, p.Band.SizePoses())

	markers := <-a.Markers()
	test.That(t, len(markers), test.ShouldBeGreaterThanOrEqualTo, 0)
}

func TestPlanAndPublishReportsFeasibilityFailureWhenFootprintInstalled(t *testing.T) {
	t.Parallel()
	a := NewAdapter(logging.NewTestLogger(t))
	cfg := DefaultConfig()
	p, err := NewPlanner(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	a.SetFootprint(func(spatialmath.PoseSE2) bool { return false }, 0.3)

	plan := straightPlan(6, 1.0)
	_ = a.PlanAndPublish(context.Background(), p, plan, &Velocity{}, true)

	failure := <-a.FeasibilityFailures()
	test.That(t, failure.Reason, test.ShouldContainSubstring, "infeasible")
}

func TestPlanAndPublishSkipsFeasibilityChannelWhenNoFootprintInstalled(t *testing.T) {
	t.Parallel()
	a := NewAdapter(logging.NewTestLogger(t))
	cfg := DefaultConfig()
	p, err := NewPlanner(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	plan := straightPlan(6, 1.0)
	test.That(t, a.PlanAndPublish(context.Background(), p, plan, &Velocity{}, true), test.ShouldBeNil)

	select {
	case <-a.FeasibilityFailures():
		t.Fatal("expected no feasibility failure published")
	default:
	}
}

package teb

import (
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
)

func straightBand(t *testing.T, n int, step float64) *Band {
	t.Helper()
	b := NewBand()
	plan := straightPlan(n, step)
	test.That(t, b.InitFromPlan(plan, 1.0, 1.0, false, 2, true), test.ShouldBeNil)
	return b
}

func TestAssociateDefaultAttachesNearbyStaticObstacle(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	band := straightBand(t, 5, 1.0)
	grid := &OccupancyGrid{Width: 1, Height: 1, Resolution: 100, Data: []int8{1}}
	snap := ObstacleSnapshot{
		Static: []Obstacle{NewPointObstacle(r2.Point{X: 0.05, Y: 0})},
		Grid:   grid,
	}

	res := NewAssociator().Associate(band, snap, cfg)
	var total int
	for _, list := range res.ObstaclesPerVertex {
		total += len(list)
	}
	test.That(t, total, test.ShouldBeGreaterThan, 0)
}

func TestAssociateDefaultSkipsObstacleOutsideStaticCell(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	band := straightBand(t, 5, 1.0)
	// Grid with no occupied cells: IsStatic always false, so the default
	// association path attaches no static obstacle to any vertex.
	grid := &OccupancyGrid{Width: 1, Height: 1, Resolution: 100, Data: []int8{0}}
	snap := ObstacleSnapshot{
		Static: []Obstacle{NewPointObstacle(r2.Point{X: 0.05, Y: 0})},
		Grid:   grid,
	}

	res := NewAssociator().Associate(band, snap, cfg)
	for _, list := range res.ObstaclesPerVertex {
		test.That(t, len(list), test.ShouldEqual, 0)
	}
}

func TestAssociateLegacyAttachesClosestPoseAndNeighbors(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Obstacles.LegacyObstacleAssociation = true
	cfg.Obstacles.ObstaclePosesAffected = 2
	band := straightBand(t, 10, 1.0)
	snap := ObstacleSnapshot{
		Static: []Obstacle{NewPointObstacle(r2.Point{X: 5, Y: 0})},
	}

	res := NewAssociator().Associate(band, snap, cfg)
	var total int
	for _, list := range res.ObstaclesPerVertex {
		total += len(list)
	}
	test.That(t, total, test.ShouldBeGreaterThan, 0)
}

func TestAssociateLegacySkipsBoundaryPoses(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Obstacles.LegacyObstacleAssociation = true
	cfg.Obstacles.ObstaclePosesAffected = 2
	band := straightBand(t, 5, 1.0)
	// An obstacle right on top of the fixed start pose should never be attached.
	snap := ObstacleSnapshot{
		Static: []Obstacle{NewPointObstacle(r2.Point{X: 0, Y: 0})},
	}

	res := NewAssociator().Associate(band, snap, cfg)
	test.That(t, len(res.ObstaclesPerVertex[0]), test.ShouldEqual, 0)
}

func TestAssociateDynamicUsesMockClockElapsedTimeAsDt(t *testing.T) {
	t.Parallel()
	mock := clock.NewMock()
	a := NewAssociatorWithClock(mock)
	cfg := DefaultConfig()
	cfg.Obstacles.IncludeDynamicObstacles = true
	band := straightBand(t, 5, 1.0)

	report := DynamicObstacleReport{ID: "obs-1", Pos: r2.Point{X: 0, Y: 0}, Width: 0.2, Height: 0.2}
	snap := ObstacleSnapshot{Dynamic: []DynamicObstacleReport{report}}

	res := a.Associate(band, snap, cfg)
	test.That(t, len(res.Dynamic), test.ShouldEqual, 1)

	mock.Add(2 * time.Second)
	report2 := report
	report2.Pos = r2.Point{X: 2, Y: 0}
	snap2 := ObstacleSnapshot{Dynamic: []DynamicObstacleReport{report2}}
	res2 := a.Associate(band, snap2, cfg)

	test.That(t, len(res2.Dynamic), test.ShouldEqual, 1)
	dyn := res2.Dynamic[0].(*DynamicObstacle)
	test.That(t, dyn.Vel.X, test.ShouldBeGreaterThan, 0)
}

func TestAssociateDynamicFirstSightingUsesCurrentAsPrior(t *testing.T) {
	t.Parallel()
	mock := clock.NewMock()
	a := NewAssociatorWithClock(mock)
	cfg := DefaultConfig()
	cfg.Obstacles.IncludeDynamicObstacles = true
	band := straightBand(t, 5, 1.0)

	snap := ObstacleSnapshot{Dynamic: []DynamicObstacleReport{
		{ID: "first", Pos: r2.Point{X: 3, Y: 3}, Width: 0.1, Height: 0.1},
	}}
	res := a.Associate(band, snap, cfg)
	dyn := res.Dynamic[0].(*DynamicObstacle)
	test.That(t, dyn.Pos, test.ShouldResemble, r2.Point{X: 3, Y: 3})
}

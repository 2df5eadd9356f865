package teb

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
)

// DynamicObstacleReport is one frame of a tracked moving obstacle as
// ingested from the external adapter (C8): its current centroid and the
// axis-aligned bounding box the tracker reports alongside it.
type DynamicObstacleReport struct {
	ID            string
	Pos           r2.Point
	Width, Height float64
}

// ObstacleSnapshot is the per-plan()-call input the associator consumes:
// the static obstacle list, the occupancy grid backing is_static
// classification, and the latest dynamic obstacle reports.
type ObstacleSnapshot struct {
	Static  []Obstacle
	Grid    *OccupancyGrid
	Dynamic []DynamicObstacleReport
}

// Associator implements C6: it decides, for the current Band, which
// obstacles get attached to which pose vertex, and tracks dynamic
// obstacles across calls via a per-ID Kalman filter so velocity/
// acceleration can be estimated from two centroid reports. The filter
// itself is reconstructed fresh every call from the last-known position;
// Associator only remembers centroids, not filter state, between calls.
type Associator struct {
	lastDynamicPos map[string]r2.Point
	lastSeenAt     map[string]time.Time
	clock          clock.Clock
}

// NewAssociator returns an empty Associator using the real wall clock to
// time dynamic-obstacle sightings.
func NewAssociator() *Associator {
	return NewAssociatorWithClock(clock.New())
}

// NewAssociatorWithClock returns an empty Associator driven by c, letting
// tests substitute clock.NewMock() to control the elapsed time between
// consecutive Associate calls deterministically.
func NewAssociatorWithClock(c clock.Clock) *Associator {
	return &Associator{
		lastDynamicPos: map[string]r2.Point{},
		lastSeenAt:     map[string]time.Time{},
		clock:          c,
	}
}

// AssociateResult is everything GraphBuilder needs from one associator
// pass.
type AssociateResult struct {
	ObstaclesPerVertex [][]Obstacle
	Dynamic            []DynamicPredictor
	DynamicInScene     bool
}

// Associate runs the configured association policy (legacy or default)
// plus the dynamic-obstacle Kalman prediction and 0.1m grid tiling.
func (a *Associator) Associate(band *Band, snap ObstacleSnapshot, cfg *Config) *AssociateResult {
	n := band.SizePoses()
	res := &AssociateResult{ObstaclesPerVertex: make([][]Obstacle, n)}

	if cfg.Obstacles.LegacyObstacleAssociation {
		a.associateLegacy(band, snap, cfg, res)
	} else {
		a.associateDefault(band, snap, cfg, res)
	}

	if cfg.Obstacles.IncludeDynamicObstacles {
		a.associateDynamic(band, snap, cfg, res)
	}

	return res
}

// associateDefault implements the non-legacy association: for every pose
// except the last, every static obstacle within
// min_obstacle_dist*obstacle_association_force_inclusion_factor is
// attached directly. When snap.Grid is set, obstacles whose grid cell is
// NOT classified static by OccupancyGrid.IsStatic are skipped and are not
// attached to any vertex; moving obstacles reach the band only through the
// dynamic reports in snap.Dynamic.
func (a *Associator) associateDefault(band *Band, snap ObstacleSnapshot, cfg *Config, res *AssociateResult) {
	threshold := cfg.Obstacles.MinObstacleDist * cfg.Obstacles.ObstacleAssociationForceInclusionFactor
	n := band.SizePoses()
	for i := 0; i < n-1; i++ {
		pose := band.Pose(i)
		for _, obst := range snap.Static {
			idx := snap.Grid.CellIndex(obst.Centroid())
			if snap.Grid != nil && !snap.Grid.IsStatic(idx) {
				continue
			}
			if obst.DistanceTo(pose.Position()) < threshold || pose.Position().Sub(obst.Centroid()).Norm() < threshold {
				res.ObstaclesPerVertex[i] = append(res.ObstaclesPerVertex[i], obst)
			}
		}
	}
}

// associateLegacy implements the legacy single-closest-pose
// attachment: each obstacle is assigned to its closest trajectory pose
// (excluding the fixed boundary poses), plus up to
// floor(obstacle_poses_affected/2) neighbors on either side.
func (a *Associator) associateLegacy(band *Band, snap ObstacleSnapshot, cfg *Config, res *AssociateResult) {
	n := band.SizePoses()
	neighbors := cfg.Obstacles.ObstaclePosesAffected / 2

	for _, obst := range snap.Static {
		var index int
		if cfg.Obstacles.ObstaclePosesAffected >= n {
			index = n / 2
		} else {
			index = closestPoseToPoint(band, obst.Centroid())
		}
		if index <= 1 || index > n-2 {
			continue
		}
		res.ObstaclesPerVertex[index] = append(res.ObstaclesPerVertex[index], obst)
		for k := 0; k < neighbors; k++ {
			if index+k < n {
				res.ObstaclesPerVertex[index+k] = append(res.ObstaclesPerVertex[index+k], obst)
			}
			if index-k >= 0 {
				res.ObstaclesPerVertex[index-k] = append(res.ObstaclesPerVertex[index-k], obst)
			}
		}
	}
}

func closestPoseToPoint(band *Band, p r2.Point) int {
	best := 0
	bestDist := math.Inf(1)
	for i := 0; i < band.SizePoses(); i++ {
		if d := band.Pose(i).Position().Sub(p).Norm(); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// associateDynamic tracks each reported dynamic obstacle with a fresh
// Kalman filter seeded from the last known position (or the current one,
// on first sight), producing a DynamicObstacle usable by
// GraphBuilder.AddEdgesDynamicObstacles, and also tiles its predicted
// bounding box onto a 0.1m grid to feed the same per-vertex association
// path the static obstacles use. The bounding box is re-centered on the
// obstacle's predicted position (constant-acceleration model) at each
// vertex's own cumulative time
// before tiling, the same cumulative-time advancement
// AddEdgesDynamicObstacles applies to its own residuals, rather than
// reusing the obstacle's current position for every vertex.
func (a *Associator) associateDynamic(band *Band, snap ObstacleSnapshot, cfg *Config, res *AssociateResult) {
	const tileResolution = 0.1
	threshold := cfg.Obstacles.MinObstacleDist * cfg.Obstacles.ObstacleAssociationForceInclusionFactor
	n := band.SizePoses()

	now := a.clock.Now()
	for _, rep := range snap.Dynamic {
		prior, seen := a.lastDynamicPos[rep.ID]
		dt := cfg.Trajectory.DtRef
		if !seen {
			prior = rep.Pos
		} else if last, ok := a.lastSeenAt[rep.ID]; ok {
			if elapsed := now.Sub(last).Seconds(); elapsed > 0 {
				dt = elapsed
			}
		}
		dynObst := EstimateDynamicObstacle(rep.ID, prior, rep.Pos, dt, rep.Width, rep.Height)
		a.lastDynamicPos[rep.ID] = rep.Pos
		a.lastSeenAt[rep.ID] = now
		res.Dynamic = append(res.Dynamic, dynObst)

		speed := dynObst.Vel.Norm()
		if speed > 0.1 {
			res.DynamicInScene = true
		}

		cumulative := 0.0
		for i := 0; i < n-1; i++ {
			t := cumulative
			if i < band.SizeTimeDiffs() {
				cumulative += band.TimeDiff(i).Seconds()
			}
			center := dynObst.PredictAt(t, ConstantAcceleration)
			pose := band.Pose(i)
			for x := center.X - 0.5*rep.Width; x <= center.X+0.5*rep.Width; x += tileResolution {
				for y := center.Y - 0.5*rep.Height; y <= center.Y+0.5*rep.Height; y += tileResolution {
					tile := r2.Point{X: x, Y: y}
					if pose.Position().Sub(tile).Norm() < threshold {
						res.ObstaclesPerVertex[i] = append(res.ObstaclesPerVertex[i], NewPointObstacle(tile))
					}
				}
			}
		}
	}
}

// Package teb implements the Timed Elastic Band local trajectory optimizer:
// a Band of interleaved pose/time-diff vertices refined by repeated
// rebuild-and-solve passes against a sparse nonlinear least-squares
// hyper-graph (package teb/graph), subject to the kinematic, dynamic, and
// obstacle-avoidance soft constraints in the edge catalogue (edges.go).
package teb

import (
	"context"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/viam-labs/tebplanner/logging"
	"github.com/viam-labs/tebplanner/spatialmath"
	"github.com/viam-labs/tebplanner/teb/graph"
)

// Velocity is a planar twist: translational (Vx, Vy) and angular (Omega)
// components. Vy is always zero for a non-holonomic robot configuration
// (robot.max_vel_y == 0).
type Velocity struct {
	Vx, Vy, Omega float64
}

// TrajectoryPoint is one sample of the full trajectory (pose, the averaged
// velocity in/out of it, and elapsed time since the trajectory start).
type TrajectoryPoint struct {
	Pose          spatialmath.PoseSE2
	Velocity      Velocity
	TimeFromStart float64
}

// FootprintCostFunc reports whether the robot footprint at pose is
// collision-free. It mirrors base_local_planner::CostmapModel::footprintCost
// returning -1 for infeasible; here a bool return is the idiomatic Go
// equivalent.
type FootprintCostFunc func(pose spatialmath.PoseSE2) bool

// CircularFootprint is the simplest FootprintCostFunc: the robot is
// modeled as a disc of the given radius, infeasible when any obstacle in
// obstacles lies closer than radius to the pose.
func CircularFootprint(radius float64, obstacles []Obstacle) FootprintCostFunc {
	return func(pose spatialmath.PoseSE2) bool {
		for _, o := range obstacles {
			if o.DistanceTo(pose.Position()) < radius {
				return false
			}
		}
		return true
	}
}

// Planner implements C7: the orchestrator tying the Band, the obstacle
// associator, and the sparse optimizer together into plan()/optimizeTEB().
type Planner struct {
	Cfg        *Config
	Band       *Band
	Associator *Associator
	Logger     logging.Logger

	velStart *Velocity
	velGoal  *Velocity

	// PreferRotDir: -1 prefer right, 0 no preference, +1 prefer left
	// (the oscillation-recovery edge).
	PreferRotDir int

	dynamicObstacleInScene bool
	updateRate             int

	viaPoints []ViaPointAssociation

	lastStats              []graph.IterationStats
	cost                   float64
	lastObstaclesPerVertex [][]Obstacle
}

// SetViaPoints replaces the via-point associations buildGraph wires into
// AddEdgesViaPoints on the next plan. Callers driving the planner through
// Adapter get this populated automatically from Adapter.ViaPoints().
func (p *Planner) SetViaPoints(viaPoints []ViaPointAssociation) {
	p.viaPoints = viaPoints
}

// NewPlanner constructs a Planner ready for Plan/PlanPoseGoal. cfg is
// validated immediately so ErrConfigurationDegenerate surfaces before any
// planning attempt.
func NewPlanner(cfg *Config, logger logging.Logger) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewLogger("teb")
	}
	return &Planner{
		Cfg:        cfg,
		Band:       NewBand(),
		Associator: NewAssociator(),
		Logger:     logger,
	}, nil
}

// Plan is the initial_plan-based entry point: it either initializes the
// Band from a dense input plan, or warm-starts / reinitializes it
// depending on UpdateMode, then runs optimizeTEB. On any error the Band is
// restored to its pre-call contents.
func (p *Planner) Plan(ctx context.Context, initialPlan []spatialmath.PoseSE2, startVel *Velocity, freeGoalVel bool, snap ObstacleSnapshot) (retErr error) {
	if len(initialPlan) < 2 {
		return errors.New("teb: initial plan must contain at least a start and goal pose")
	}
	backup := p.Band.Clone()
	defer func() {
		if retErr != nil {
			p.Band.restoreFrom(backup)
		}
	}()
	robot := p.Cfg.Robot
	traj := p.Cfg.Trajectory

	if !p.Band.IsInit() {
		if err := p.Band.InitFromPlan(initialPlan, robot.MaxVelX, robot.MaxVelTheta, traj.GlobalPlanOverwriteOrientation, traj.MinSamples, traj.AllowInitWithBackwardsMotion); err != nil {
			return errors.Wrap(err, "teb: initializing band from plan")
		}
	} else {
		start := initialPlan[0]
		goal := initialPlan[len(initialPlan)-1]

		updateFlag := p.updateRate%1 == 0
		if p.updateRate > 10000 {
			p.updateRate = 0
		}
		p.updateRate++

		reinit := false
		switch p.Cfg.UpdateMode {
		case UpdateModeDynamicAware:
			reinit = p.dynamicObstacleInScene && updateFlag && p.Band.Pose(0).DistanceTo(p.Band.BackPose()) > 1
		default:
			reinit = !(p.Band.SizePoses() > 0 &&
				goal.DistanceTo(p.Band.BackPose()) < traj.ForceReinitNewGoalDist &&
				math.Abs(goal.AngularDistanceTo(p.Band.BackPose())) < traj.ForceReinitNewGoalAngular)
		}

		if reinit {
			p.Logger.Debugw("goal moved beyond reinit threshold, reinitializing band")
			p.Band.Clear()
			if err := p.Band.InitFromPlan(initialPlan, robot.MaxVelX, robot.MaxVelTheta, traj.GlobalPlanOverwriteOrientation, traj.MinSamples, traj.AllowInitWithBackwardsMotion); err != nil {
				return errors.Wrap(err, "teb: reinitializing band from plan")
			}
		} else {
			if err := p.Band.UpdateAndPrune(start, goal, traj.MinSamples); err != nil {
				return errors.Wrap(err, "teb: warm-starting band")
			}
		}
	}

	p.applyBoundaryVelocities(startVel, freeGoalVel)
	return p.optimizeTEB(ctx, snap, p.Cfg.Optim.NoInnerIterations, p.Cfg.Optim.NoOuterIterations, false, 1, 1, false)
}

// PlanPoseGoal is the start/goal-pose entry point (no dense input plan —
// used for direct point-to-point planning). On any error the Band is
// restored to its pre-call contents.
func (p *Planner) PlanPoseGoal(ctx context.Context, start, goal spatialmath.PoseSE2, startVel *Velocity, freeGoalVel bool, snap ObstacleSnapshot) (retErr error) {
	backup := p.Band.Clone()
	defer func() {
		if retErr != nil {
			p.Band.restoreFrom(backup)
		}
	}()
	traj := p.Cfg.Trajectory
	robot := p.Cfg.Robot

	if !p.Band.IsInit() {
		if err := p.Band.InitFromStartGoal(start, goal, 0, robot.MaxVelX, traj.MinSamples, traj.AllowInitWithBackwardsMotion); err != nil {
			return errors.Wrap(err, "teb: initializing band from start/goal")
		}
	} else {
		reinit := !(p.Band.SizePoses() > 0 &&
			goal.DistanceTo(p.Band.BackPose()) < traj.ForceReinitNewGoalDist &&
			math.Abs(goal.AngularDistanceTo(p.Band.BackPose())) < traj.ForceReinitNewGoalAngular)
		if reinit {
			p.Logger.Debugw("goal moved beyond reinit threshold, reinitializing band")
			p.Band.Clear()
			if err := p.Band.InitFromStartGoal(start, goal, 0, robot.MaxVelX, traj.MinSamples, traj.AllowInitWithBackwardsMotion); err != nil {
				return errors.Wrap(err, "teb: reinitializing band from start/goal")
			}
		} else {
			if err := p.Band.UpdateAndPrune(start, goal, traj.MinSamples); err != nil {
				return errors.Wrap(err, "teb: warm-starting band")
			}
		}
	}

	p.applyBoundaryVelocities(startVel, freeGoalVel)
	return p.optimizeTEB(ctx, snap, p.Cfg.Optim.NoInnerIterations, p.Cfg.Optim.NoOuterIterations, false, 1, 1, false)
}

func (p *Planner) applyBoundaryVelocities(startVel *Velocity, freeGoalVel bool) {
	if startVel != nil {
		v := *startVel
		p.velStart = &v
	}
	if freeGoalVel {
		p.velGoal = nil
	} else if p.velGoal == nil {
		zero := Velocity{}
		p.velGoal = &zero
	}
}

// optimizeTEB implements the outer resize/build/solve/clear loop,
// escalating the obstacle-edge weight by weight_adapt_factor every outer
// iteration.
func (p *Planner) optimizeTEB(ctx context.Context, snap ObstacleSnapshot, innerIters, outerIters int, computeCostAfterwards bool, obstCostScale, viaCostScale float64, altTimeCost bool) error {
	if !p.Cfg.Optim.OptimizationActivate {
		return nil
	}

	weightMultiplier := 1.0
	fastMode := !p.Cfg.Obstacles.IncludeDynamicObstacles

	for i := 0; i < outerIters; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if p.Cfg.Trajectory.TebAutosize {
			if err := p.Band.AutoResize(p.Cfg.Trajectory.DtRef, p.Cfg.Trajectory.DtHysteresis, p.Cfg.Trajectory.MinSamples, p.Cfg.Trajectory.MaxSamples, fastMode); err != nil {
				return errors.Wrap(err, "teb: autosize")
			}
		}

		gb, err := p.buildGraph(weightMultiplier, snap)
		if err != nil {
			return err
		}

		if err := p.optimizeGraph(gb, innerIters); err != nil {
			return err
		}

		if computeCostAfterwards && i == outerIters-1 {
			p.computeCurrentCost(gb, obstCostScale, viaCostScale, altTimeCost)
		}

		p.writeBack(gb)
		p.lastStats = gb.Opt.BatchStatistics()

		weightMultiplier *= p.Cfg.Optim.WeightAdaptFactor
	}

	return nil
}

// buildGraph implements C5's graph assembly contract: fresh vertices
// mirroring the current Band values, boundary poses fixed, the full edge
// catalogue wired in.
func (p *Planner) buildGraph(weightMultiplier float64, snap ObstacleSnapshot) (*GraphBuilder, error) {
	opt := graph.NewOptimizer()
	if p.Cfg.Recovery.DivergenceDetectionEnable {
		opt.DivergenceMaxChi2 = p.Cfg.Recovery.DivergenceDetectionMaxChiSquared
	}

	n := p.Band.SizePoses()
	poseVtx := make([]int, n)
	for i := 0; i < n; i++ {
		pose := p.Band.Pose(i)
		fixed := i == 0 || i == n-1
		poseVtx[i] = opt.AddVertex(3, []float64{pose.X, pose.Y, pose.Theta}, fixed)
	}
	tdVtx := make([]int, p.Band.SizeTimeDiffs())
	for i := range tdVtx {
		tdVtx[i] = opt.AddVertex(1, []float64{p.Band.TimeDiff(i).Seconds()}, false)
	}

	gb := &GraphBuilder{
		Opt:          opt,
		Cfg:          p.Cfg,
		Band:         p.Band,
		PoseVtx:      poseVtx,
		TimeDiffVtx:  tdVtx,
		VelStart:     velocityAsPoint(p.velStart),
		VelGoal:      velocityAsPoint(p.velGoal),
		PreferRotDir: p.PreferRotDir,
		ViaPointAssoc: p.viaPoints,
	}

	assoc := p.Associator.Associate(p.Band, snap, p.Cfg)
	gb.ObstaclesPerVertex = assoc.ObstaclesPerVertex
	p.dynamicObstacleInScene = assoc.DynamicInScene
	p.lastObstaclesPerVertex = assoc.ObstaclesPerVertex

	// Associator has already chosen legacy vs default association above;
	// AddEdgesObstacles only needs the resulting per-vertex obstacle lists.
	if err := gb.AddEdgesObstacles(weightMultiplier); err != nil {
		return nil, err
	}
	if p.Cfg.Obstacles.IncludeDynamicObstacles {
		if err := gb.AddEdgesDynamicObstacles(assoc.Dynamic, weightMultiplier); err != nil {
			return nil, err
		}
	}
	if err := gb.AddEdgesViaPoints(); err != nil {
		return nil, err
	}
	if err := gb.AddEdgesVelocity(); err != nil {
		return nil, err
	}
	if err := gb.AddEdgesAcceleration(); err != nil {
		return nil, err
	}
	if err := gb.AddEdgesTimeOptimal(); err != nil {
		return nil, err
	}
	if err := gb.AddEdgesShortestPath(); err != nil {
		return nil, err
	}
	if p.Cfg.Robot.MinTurningRadius == 0 || p.Cfg.Optim.WeightKinematicsTurningRadius == 0 {
		if err := gb.AddEdgesKinematicsDiffDrive(); err != nil {
			return nil, err
		}
	} else {
		if err := gb.AddEdgesKinematicsCarlike(); err != nil {
			return nil, err
		}
	}
	if err := gb.AddEdgesPreferRotDir(); err != nil {
		return nil, err
	}
	if p.Cfg.Optim.WeightVelocityObstacleRatio > 0 {
		if err := gb.AddEdgesVelocityObstacleRatio(); err != nil {
			return nil, err
		}
	}

	return gb, nil
}

// velocityAsPoint adapts a boundary Velocity into the (translational,
// angular) r2.Point pair GraphBuilder's acceleration edges expect.
func velocityAsPoint(v *Velocity) *r2.Point {
	if v == nil {
		return nil
	}
	p := r2.Point{X: v.Vx, Y: v.Omega}
	return &p
}

// optimizeGraph validates the velocity/sample-count preconditions, then
// runs the LM solve.
func (p *Planner) optimizeGraph(gb *GraphBuilder, iterations int) error {
	if p.Cfg.Robot.MaxVelX < 0.01 {
		return errors.Wrap(ErrConfigurationDegenerate, "optimizeGraph: robot.max_vel_x below 0.01")
	}
	if !p.Band.IsInit() || p.Band.SizePoses() < p.Cfg.Trajectory.MinSamples {
		return errors.Wrap(ErrTEBTooSmall, "optimizeGraph")
	}

	if err := gb.Opt.Initialize(); err != nil {
		return err
	}
	iters, err := gb.Opt.Optimize(iterations)
	if err != nil {
		return err
	}
	if iters == 0 {
		return ErrOptimizerNoIterations
	}
	if gb.Opt.HasDiverged() {
		return ErrDiverged
	}
	return nil
}

// writeBack copies optimized vertex values from the graph back into the
// Band, clamping time diffs to stay strictly positive.
func (p *Planner) writeBack(gb *GraphBuilder) {
	for i, id := range gb.PoseVtx {
		v := gb.Opt.VertexValue(id)
		p.Band.SetPose(i, spatialmath.NewPoseSE2(v[0], v[1], v[2]))
	}
	for i, id := range gb.TimeDiffVtx {
		v := gb.Opt.VertexValue(id)
		dt, err := spatialmath.NewTimeDiff(math.Max(v[0], minPositiveTimeDiff))
		if err == nil {
			p.Band.SetTimeDiff(i, dt)
		}
	}
}

// HasDiverged reports whether the most recent optimizeTEB call's final
// inner iteration exceeded the configured chi-squared threshold.
func (p *Planner) HasDiverged() bool {
	if !p.Cfg.Recovery.DivergenceDetectionEnable || len(p.lastStats) == 0 {
		return false
	}
	return p.lastStats[len(p.lastStats)-1].Chi2 > p.Cfg.Recovery.DivergenceDetectionMaxChiSquared
}

// computeCurrentCost produces the per-edge-kind cost breakdown:
// obstacle/dynamic-obstacle costs scaled by obstCostScale,
// via-point costs by viaCostScale, and time-optimal edges either included
// normally or replaced wholesale by the Band's summed time diffs when
// altTimeCost is set.
func (p *Planner) computeCurrentCost(gb *GraphBuilder, obstCostScale, viaCostScale float64, altTimeCost bool) {
	cost := 0.0
	if altTimeCost {
		cost += p.Band.SumOfAllTimeDiffs()
	}
	// Re-evaluate every edge's own chi-squared contribution individually so
	// per-kind scaling can be applied; this mirrors the original's
	// dynamic_cast-based edge-kind dispatch.
	cost += gb.Opt.KindWeightedChi2(func(kind string) float64 {
		switch kind {
		case "obstacle", "inflated_obstacle", "dynamic_obstacle":
			return obstCostScale
		case "via_point":
			return viaCostScale
		case "time_optimal":
			if altTimeCost {
				return 0
			}
			return 1
		default:
			return 1
		}
	})
	p.cost = cost
}

// Cost returns the cost computed by the most recent ComputeCurrentCost (or
// optimizeTEB call with computeCostAfterwards set).
func (p *Planner) Cost() float64 { return p.cost }

// LastObstacleMarkers converts the per-vertex obstacle associations from
// the most recent buildGraph call into the flat ObstacleMarker list
// Adapter.PublishMarkers expects, one marker per (vertex, obstacle) pair.
func (p *Planner) LastObstacleMarkers() []ObstacleMarker {
	var markers []ObstacleMarker
	for i, obstacles := range p.lastObstaclesPerVertex {
		for _, o := range obstacles {
			markers = append(markers, ObstacleMarker{PoseIndex: i, Point: PointObstacle{Pos: o.Centroid()}})
		}
	}
	return markers
}

// ComputeCurrentCost recomputes Cost() against the Band's current state by
// rebuilding a throwaway graph, so callers can invoke it between
// buildGraph and clearGraph, or standalone.
func (p *Planner) ComputeCurrentCost(obstCostScale, viaCostScale float64, altTimeCost bool, snap ObstacleSnapshot) error {
	gb, err := p.buildGraph(1.0, snap)
	if err != nil {
		return err
	}
	p.computeCurrentCost(gb, obstCostScale, viaCostScale, altTimeCost)
	return nil
}

// extractVelocity computes the velocity between two poses separated by
// dt seconds.
func (p *Planner) extractVelocity(pose1, pose2 spatialmath.PoseSE2, dt float64) Velocity {
	if dt == 0 {
		return Velocity{}
	}
	dx := pose2.X - pose1.X
	dy := pose2.Y - pose1.Y

	var vx, vy float64
	if p.Cfg.Robot.MaxVelY == 0 {
		dir := dx*math.Cos(pose1.Theta) + dy*math.Sin(pose1.Theta)
		dist := math.Hypot(dx, dy)
		vx = math.Copysign(dist, dir) / dt
		vy = 0
	} else {
		cosT, sinT := math.Cos(pose1.Theta), math.Sin(pose1.Theta)
		vx = (cosT*dx + sinT*dy) / dt
		vy = (-sinT*dx + cosT*dy) / dt
	}
	omega := spatialmath.ShortestAngularDistance(pose1.Theta, pose2.Theta) / dt
	return Velocity{Vx: vx, Vy: vy, Omega: omega}
}

// GetVelocityCommand performs the one-shot velocity command extraction:
// it looks ahead up to lookAheadPoses samples (bounded by
// trajectory.prevent_look_ahead_poses_near_goal), accumulating dt until it
// reaches dt_ref*lookAheadPoses or runs out of poses, then extracts the
// velocity between the first pose and that look-ahead pose.
func (p *Planner) GetVelocityCommand(lookAheadPoses int) (Velocity, error) {
	if p.Band.SizePoses() < 2 {
		return Velocity{}, errors.New("teb: trajectory has fewer than 2 poses")
	}
	maxLookAhead := p.Band.SizePoses() - 1 - p.Cfg.Trajectory.PreventLookAheadPosesNearGoal
	if lookAheadPoses > maxLookAhead {
		lookAheadPoses = maxLookAhead
	}
	if lookAheadPoses < 1 {
		lookAheadPoses = 1
	}

	dt := 0.0
	for counter := 0; counter < lookAheadPoses; counter++ {
		dt += p.Band.TimeDiff(counter).Seconds()
		if dt >= p.Cfg.Trajectory.DtRef*float64(lookAheadPoses) {
			lookAheadPoses = counter + 1
			break
		}
	}
	if dt <= 0 {
		return Velocity{}, errors.New("teb: accumulated time diff is non-positive")
	}

	return p.extractVelocity(p.Band.Pose(0), p.Band.Pose(lookAheadPoses), dt), nil
}

// GetVelocityProfile performs the full-trajectory velocity extraction:
// boundary entries use the stored start/goal velocities, and
// interior entries extract the velocity from the preceding interval.
func (p *Planner) GetVelocityProfile() []Velocity {
	n := p.Band.SizePoses()
	profile := make([]Velocity, n+1)
	if p.velStart != nil {
		profile[0] = *p.velStart
	}
	for i := 1; i < n; i++ {
		profile[i] = p.extractVelocity(p.Band.Pose(i-1), p.Band.Pose(i), p.Band.TimeDiff(i-1).Seconds())
	}
	if p.velGoal != nil {
		profile[n] = *p.velGoal
	}
	return profile
}

// GetFullTrajectory annotates every pose with its time-from-start and a
// velocity averaged from its two
// incident intervals (central difference), except at the boundaries where
// the stored start/goal velocities are used directly.
func (p *Planner) GetFullTrajectory() []TrajectoryPoint {
	n := p.Band.SizePoses()
	traj := make([]TrajectoryPoint, n)
	if n == 0 {
		return traj
	}

	currentTime := 0.0
	traj[0] = TrajectoryPoint{Pose: p.Band.Pose(0), TimeFromStart: 0}
	if p.velStart != nil {
		traj[0].Velocity = *p.velStart
	}
	if p.Band.SizeTimeDiffs() > 0 {
		currentTime += p.Band.TimeDiff(0).Seconds()
	}

	for i := 1; i < n-1; i++ {
		v1 := p.extractVelocity(p.Band.Pose(i-1), p.Band.Pose(i), p.Band.TimeDiff(i-1).Seconds())
		v2 := p.extractVelocity(p.Band.Pose(i), p.Band.Pose(i+1), p.Band.TimeDiff(i).Seconds())
		traj[i] = TrajectoryPoint{
			Pose:          p.Band.Pose(i),
			Velocity:      Velocity{Vx: 0.5 * (v1.Vx + v2.Vx), Vy: 0.5 * (v1.Vy + v2.Vy), Omega: 0.5 * (v1.Omega + v2.Omega)},
			TimeFromStart: currentTime,
		}
		currentTime += p.Band.TimeDiff(i).Seconds()
	}

	if n > 1 {
		traj[n-1] = TrajectoryPoint{Pose: p.Band.BackPose(), TimeFromStart: currentTime}
		if p.velGoal != nil {
			traj[n-1].Velocity = *p.velGoal
		}
	}
	return traj
}

// IsTrajectoryFeasible walks the trajectory up to lookAheadIdx (or the
// full length if negative/out of
// range), testing the footprint at every pose and, when consecutive poses
// are far apart or rotate sharply, at interpolated intermediate poses too.
func (p *Planner) IsTrajectoryFeasible(footprint FootprintCostFunc, inscribedRadius float64, lookAheadIdx int) (bool, error) {
	n := p.Band.SizePoses()
	if lookAheadIdx < 0 || lookAheadIdx >= n {
		lookAheadIdx = n - 1
	}

	for i := 0; i <= lookAheadIdx; i++ {
		pose := p.Band.Pose(i)
		if !footprint(pose) {
			return false, errors.Wrapf(ErrFeasibilityFail, "pose %d infeasible", i)
		}

		if i < lookAheadIdx {
			next := p.Band.Pose(i + 1)
			deltaRot := spatialmath.ShortestAngularDistance(pose.Theta, next.Theta)
			deltaDist := next.DistanceTo(pose)

			if math.Abs(deltaRot) > p.Cfg.Trajectory.MinResolutionCollisionCheckAngular || deltaDist > inscribedRadius {
				nAdditional := int(math.Max(
					math.Ceil(math.Abs(deltaRot)/p.Cfg.Trajectory.MinResolutionCollisionCheckAngular),
					math.Ceil(deltaDist/inscribedRadius),
				)) - 1
				for step := 0; step < nAdditional; step++ {
					frac := float64(step+1) / float64(nAdditional+1)
					intermediate := spatialmath.Interpolate(pose, next, frac)
					if !footprint(intermediate) {
						return false, errors.Wrapf(ErrFeasibilityFail, "interpolated pose between %d and %d infeasible", i, i+1)
					}
				}
			}
		}
	}
	return true, nil
}

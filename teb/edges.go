package teb

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/tebplanner/spatialmath"
	"github.com/viam-labs/tebplanner/teb/graph"
)

// GraphBuilder assembles the full edge catalogue against a single
// Optimizer instance for one outer iteration. It is constructed fresh by
// Planner.buildGraph on every outer loop pass: the graph is rebuilt from
// scratch every outer iteration, while the Band's vertex values persist
// across iterations.
type GraphBuilder struct {
	Opt    *graph.Optimizer
	Cfg    *Config
	Band   *Band
	// PoseVtx[i] and TimeDiffVtx[i] are the Optimizer vertex IDs backing
	// Band.Poses[i] and Band.TimeDiffs[i].
	PoseVtx     []int
	TimeDiffVtx []int

	// VelStart and VelGoal carry (translational, angular) boundary
	// velocities, when known, for the acceleration edges' start/goal
	// variants. A nil value means "unknown, omit the boundary edge".
	VelStart *r2.Point
	VelGoal  *r2.Point

	// PreferRotDir: -1 prefer right, 0 no preference, +1 prefer left.
	PreferRotDir int

	// ObstaclesPerVertex[i] lists the obstacles the associator attached to
	// pose i.
	ObstaclesPerVertex [][]Obstacle

	// ViaPointAssoc pairs a via point with the pose index it is closest to
	// (the EdgeViaPoint row).
	ViaPointAssoc []ViaPointAssociation
}

// ViaPointAssociation binds a via point to the nearest TEB pose vertex.
type ViaPointAssociation struct {
	PoseIndex int
	Point     r2.Point
}

func diagInfo(vals ...float64) *mat.SymDense {
	n := len(vals)
	m := mat.NewSymDense(n, nil)
	for i, v := range vals {
		m.SetSym(i, i, v)
	}
	return m
}

func (g *GraphBuilder) pose(i int) spatialmath.PoseSE2  { return g.Band.Pose(i) }
func (g *GraphBuilder) dt(i int) float64                { return g.Band.TimeDiff(i).Seconds() }
func (g *GraphBuilder) numPoses() int                   { return g.Band.SizePoses() }

// AddEdgesTimeOptimal implements the EdgeTimeOptimal row: penalizes total
// trajectory duration directly.
func (g *GraphBuilder) AddEdgesTimeOptimal() error {
	w := g.Cfg.Optim.WeightOptimalTime
	if w == 0 {
		return nil
	}
	info := diagInfo(w)
	for i := 0; i < g.Band.SizeTimeDiffs(); i++ {
		tdID := g.TimeDiffVtx[i]
		if err := g.Opt.AddEdge("time_optimal", []int{tdID}, info, func(v [][]float64) []float64 {
			return []float64{v[0][0]}
		}); err != nil {
			return err
		}
	}
	return nil
}

// AddEdgesShortestPath implements the EdgeShortestPath row: penalizes
// Euclidean arc length between consecutive poses.
func (g *GraphBuilder) AddEdgesShortestPath() error {
	w := g.Cfg.Optim.WeightShortestPath
	if w == 0 {
		return nil
	}
	info := diagInfo(w)
	for i := 0; i < g.numPoses()-1; i++ {
		if err := g.Opt.AddEdge("shortest_path", []int{g.PoseVtx[i], g.PoseVtx[i+1]}, info, func(v [][]float64) []float64 {
			dx := v[1][0] - v[0][0]
			dy := v[1][1] - v[0][1]
			return []float64{math.Hypot(dx, dy)}
		}); err != nil {
			return err
		}
	}
	return nil
}

// AddEdgesVelocity implements the EdgeVelocity / EdgeVelocityHolonomic rows.
func (g *GraphBuilder) AddEdgesVelocity() error {
	robot := g.Cfg.Robot
	optim := g.Cfg.Optim
	n := g.numPoses()

	if robot.MaxVelY == 0 {
		if optim.WeightMaxVelX == 0 && optim.WeightMaxVelTheta == 0 {
			return nil
		}
		info := diagInfo(optim.WeightMaxVelX, optim.WeightMaxVelTheta)
		for i := 0; i < n-1; i++ {
			maxVelX, maxVelTheta := robot.MaxVelX, robot.MaxVelTheta
			if err := g.Opt.AddEdge("velocity", []int{g.PoseVtx[i], g.PoseVtx[i+1], g.TimeDiffVtx[i]}, info, func(v [][]float64) []float64 {
				p1 := spatialmath.NewPoseSE2(v[0][0], v[0][1], v[0][2])
				p2 := spatialmath.NewPoseSE2(v[1][0], v[1][1], v[1][2])
				dtv := math.Max(v[2][0], minPositiveTimeDiff)
				dx := p2.X - p1.X
				dy := p2.Y - p1.Y
				dist := math.Hypot(dx, dy)
				// signed by travel direction relative to p1's heading
				forward := dx*math.Cos(p1.Theta) + dy*math.Sin(p1.Theta)
				if forward < 0 {
					dist = -dist
				}
				vel := dist / dtv
				omega := spatialmath.ShortestAngularDistance(p1.Theta, p2.Theta) / dtv
				return []float64{
					penaltyBoundToIntervalSym(vel, maxVelX, penaltyEpsilon),
					penaltyBoundToIntervalSym(omega, maxVelTheta, penaltyEpsilon),
				}
			}); err != nil {
				return err
			}
		}
		return nil
	}

	if optim.WeightMaxVelX == 0 && optim.WeightMaxVelY == 0 && optim.WeightMaxVelTheta == 0 {
		return nil
	}
	info := diagInfo(optim.WeightMaxVelX, optim.WeightMaxVelY, optim.WeightMaxVelTheta)
	for i := 0; i < n-1; i++ {
		maxVelX, maxVelY, maxVelTheta := robot.MaxVelX, robot.MaxVelY, robot.MaxVelTheta
		if err := g.Opt.AddEdge("velocity_holonomic", []int{g.PoseVtx[i], g.PoseVtx[i+1], g.TimeDiffVtx[i]}, info, func(v [][]float64) []float64 {
			p1 := spatialmath.NewPoseSE2(v[0][0], v[0][1], v[0][2])
			p2 := spatialmath.NewPoseSE2(v[1][0], v[1][1], v[1][2])
			dtv := math.Max(v[2][0], minPositiveTimeDiff)
			dx, dy := p2.X-p1.X, p2.Y-p1.Y
			cosT, sinT := math.Cos(p1.Theta), math.Sin(p1.Theta)
			vx := (dx*cosT + dy*sinT) / dtv
			vy := (-dx*sinT + dy*cosT) / dtv
			omega := spatialmath.ShortestAngularDistance(p1.Theta, p2.Theta) / dtv
			return []float64{
				penaltyBoundToIntervalSym(vx, maxVelX, penaltyEpsilon),
				penaltyBoundToIntervalSym(vy, maxVelY, penaltyEpsilon),
				penaltyBoundToIntervalSym(omega, maxVelTheta, penaltyEpsilon),
			}
		}); err != nil {
			return err
		}
	}
	return nil
}

// AddEdgesAcceleration implements the EdgeAcceleration family (start, mid,
// goal variants), matching the non-holonomic two-row information matrix.
func (g *GraphBuilder) AddEdgesAcceleration() error {
	optim := g.Cfg.Optim
	robot := g.Cfg.Robot
	if optim.WeightAccLimX == 0 && optim.WeightAccLimTheta == 0 {
		return nil
	}
	n := g.numPoses()
	info := diagInfo(optim.WeightAccLimX, optim.WeightAccLimTheta)
	accLimX, accLimTheta := robot.AccLimX, robot.AccLimTheta

	if g.VelStart != nil && n >= 2 {
		v0 := *g.VelStart
		if err := g.Opt.AddEdge("acceleration_start", []int{g.PoseVtx[0], g.PoseVtx[1], g.TimeDiffVtx[0]}, info, func(v [][]float64) []float64 {
			p1 := spatialmath.NewPoseSE2(v[0][0], v[0][1], v[0][2])
			p2 := spatialmath.NewPoseSE2(v[1][0], v[1][1], v[1][2])
			dtv := math.Max(v[2][0], minPositiveTimeDiff)
			vel1, omega1 := linVelOmega(p1, p2, dtv)
			accLin := (vel1 - v0.X) / dtv
			accRot := (omega1 - v0.Y) / dtv
			return []float64{
				penaltyBoundToIntervalSym(accLin, accLimX, penaltyEpsilon),
				penaltyBoundToIntervalSym(accRot, accLimTheta, penaltyEpsilon),
			}
		}); err != nil {
			return err
		}
	}

	for i := 0; i < n-2; i++ {
		if err := g.Opt.AddEdge("acceleration", []int{g.PoseVtx[i], g.PoseVtx[i+1], g.PoseVtx[i+2], g.TimeDiffVtx[i], g.TimeDiffVtx[i+1]}, info, func(v [][]float64) []float64 {
			p1 := spatialmath.NewPoseSE2(v[0][0], v[0][1], v[0][2])
			p2 := spatialmath.NewPoseSE2(v[1][0], v[1][1], v[1][2])
			p3 := spatialmath.NewPoseSE2(v[2][0], v[2][1], v[2][2])
			dt1 := math.Max(v[3][0], minPositiveTimeDiff)
			dt2 := math.Max(v[4][0], minPositiveTimeDiff)
			vel1, omega1 := linVelOmega(p1, p2, dt1)
			vel2, omega2 := linVelOmega(p2, p3, dt2)
			denom := 0.5 * (dt1 + dt2)
			accLin := (vel2 - vel1) / denom
			accRot := (omega2 - omega1) / denom
			return []float64{
				penaltyBoundToIntervalSym(accLin, accLimX, penaltyEpsilon),
				penaltyBoundToIntervalSym(accRot, accLimTheta, penaltyEpsilon),
			}
		}); err != nil {
			return err
		}
	}

	if g.VelGoal != nil && n >= 2 {
		vg := *g.VelGoal
		lastTD := g.Band.SizeTimeDiffs() - 1
		if err := g.Opt.AddEdge("acceleration_goal", []int{g.PoseVtx[n-2], g.PoseVtx[n-1], g.TimeDiffVtx[lastTD]}, info, func(v [][]float64) []float64 {
			p1 := spatialmath.NewPoseSE2(v[0][0], v[0][1], v[0][2])
			p2 := spatialmath.NewPoseSE2(v[1][0], v[1][1], v[1][2])
			dtv := math.Max(v[2][0], minPositiveTimeDiff)
			vel1, omega1 := linVelOmega(p1, p2, dtv)
			accLin := (vg.X - vel1) / dtv
			accRot := (vg.Y - omega1) / dtv
			return []float64{
				penaltyBoundToIntervalSym(accLin, accLimX, penaltyEpsilon),
				penaltyBoundToIntervalSym(accRot, accLimTheta, penaltyEpsilon),
			}
		}); err != nil {
			return err
		}
	}
	return nil
}

func linVelOmega(p1, p2 spatialmath.PoseSE2, dt float64) (float64, float64) {
	dx, dy := p2.X-p1.X, p2.Y-p1.Y
	dist := math.Hypot(dx, dy)
	forward := dx*math.Cos(p1.Theta) + dy*math.Sin(p1.Theta)
	if forward < 0 {
		dist = -dist
	}
	return dist / dt, spatialmath.ShortestAngularDistance(p1.Theta, p2.Theta) / dt
}

// AddEdgesKinematicsDiffDrive implements the nonholonomic constraint for a
// differential-drive robot: no lateral motion between consecutive poses,
// plus a soft forward-drive preference.
func (g *GraphBuilder) AddEdgesKinematicsDiffDrive() error {
	w := g.Cfg.Optim
	if w.WeightKinematicsNh == 0 && w.WeightKinematicsForwardDrive == 0 {
		return nil
	}
	info := diagInfo(w.WeightKinematicsNh, w.WeightKinematicsForwardDrive)
	for i := 0; i < g.numPoses()-1; i++ {
		if err := g.Opt.AddEdge("kinematics_diff_drive", []int{g.PoseVtx[i], g.PoseVtx[i+1]}, info, func(v [][]float64) []float64 {
			p1 := spatialmath.NewPoseSE2(v[0][0], v[0][1], v[0][2])
			p2 := spatialmath.NewPoseSE2(v[1][0], v[1][1], v[1][2])
			dx, dy := p2.X-p1.X, p2.Y-p1.Y
			nh := math.Abs((math.Cos(p1.Theta)+math.Cos(p2.Theta))*dy - (math.Sin(p1.Theta)+math.Sin(p2.Theta))*dx)
			forward := dx*math.Cos(p1.Theta) + dy*math.Sin(p1.Theta)
			return []float64{nh, penaltyBoundFromBelow(forward, 0, 0)}
		}); err != nil {
			return err
		}
	}
	return nil
}

// AddEdgesKinematicsCarlike implements the nonholonomic constraint plus a
// minimum-turning-radius bound for a car-like robot.
func (g *GraphBuilder) AddEdgesKinematicsCarlike() error {
	w := g.Cfg.Optim
	if w.WeightKinematicsNh == 0 && w.WeightKinematicsTurningRadius == 0 {
		return nil
	}
	minRadius := g.Cfg.Robot.MinTurningRadius
	info := diagInfo(w.WeightKinematicsNh, w.WeightKinematicsTurningRadius)
	for i := 0; i < g.numPoses()-1; i++ {
		if err := g.Opt.AddEdge("kinematics_carlike", []int{g.PoseVtx[i], g.PoseVtx[i+1]}, info, func(v [][]float64) []float64 {
			p1 := spatialmath.NewPoseSE2(v[0][0], v[0][1], v[0][2])
			p2 := spatialmath.NewPoseSE2(v[1][0], v[1][1], v[1][2])
			dx, dy := p2.X-p1.X, p2.Y-p1.Y
			nh := math.Abs((math.Cos(p1.Theta)+math.Cos(p2.Theta))*dy - (math.Sin(p1.Theta)+math.Sin(p2.Theta))*dx)
			angleDiff := spatialmath.ShortestAngularDistance(p1.Theta, p2.Theta)
			dist := math.Hypot(dx, dy)
			var radius float64
			if math.Abs(angleDiff) > 1e-6 {
				radius = math.Abs(dist / (2 * math.Sin(angleDiff/2)))
			} else {
				radius = math.Inf(1)
			}
			return []float64{nh, penaltyBoundFromBelow(radius, minRadius, 0)}
		}); err != nil {
			return err
		}
	}
	return nil
}

// AddEdgesPreferRotDir implements the oscillation-recovery rotation-bias
// edge, applied to only the first 3 rotations as in the original.
func (g *GraphBuilder) AddEdgesPreferRotDir() error {
	w := g.Cfg.Optim.WeightPreferRotDir
	if g.PreferRotDir == 0 || w == 0 {
		return nil
	}
	info := diagInfo(w)
	sign := float64(g.PreferRotDir)
	limit := g.numPoses() - 1
	if limit > 3 {
		limit = 3
	}
	for i := 0; i < limit; i++ {
		if err := g.Opt.AddEdge("prefer_rotdir", []int{g.PoseVtx[i], g.PoseVtx[i+1]}, info, func(v [][]float64) []float64 {
			diff := spatialmath.ShortestAngularDistance(v[0][2], v[1][2])
			return []float64{penaltyBoundFromBelow(sign*diff, 0, 0)}
		}); err != nil {
			return err
		}
	}
	return nil
}

// AddEdgesViaPoints implements the EdgeViaPoint row: a soft attraction from
// the associated pose toward its via point.
func (g *GraphBuilder) AddEdgesViaPoints() error {
	w := g.Cfg.Optim.WeightViaPoint
	if w == 0 {
		return nil
	}
	info := diagInfo(w)
	for _, assoc := range g.ViaPointAssoc {
		idx := assoc.PoseIndex
		target := assoc.Point
		if err := g.Opt.AddEdge("via_point", []int{g.PoseVtx[idx]}, info, func(v [][]float64) []float64 {
			dx := v[0][0] - target.X
			dy := v[0][1] - target.Y
			return []float64{math.Hypot(dx, dy)}
		}); err != nil {
			return err
		}
	}
	return nil
}

// AddEdgesObstacles implements the EdgeObstacle / EdgeInflatedObstacle rows
// weighted by weightMultiplier (the outer-loop obstacle-weight escalation).
func (g *GraphBuilder) AddEdgesObstacles(weightMultiplier float64) error {
	obst := g.Cfg.Obstacles
	optim := g.Cfg.Optim
	if optim.WeightObstacle == 0 && optim.WeightInflation == 0 {
		return nil
	}
	useInflation := obst.InflationDist > 0 && optim.WeightInflation > 0
	wObs := optim.WeightObstacle * weightMultiplier
	wInf := optim.WeightInflation * weightMultiplier
	minDist := obst.MinObstacleDist
	inflationDist := obst.InflationDist

	for i := 0; i < g.numPoses(); i++ {
		obstacles := g.ObstaclesPerVertex[i]
		for _, o := range obstacles {
			o := o
			if useInflation {
				info := diagInfo(wObs, wInf)
				if err := g.Opt.AddEdge("inflated_obstacle", []int{g.PoseVtx[i]}, info, func(v [][]float64) []float64 {
					p := r2.Point{X: v[0][0], Y: v[0][1]}
					dist := o.DistanceTo(p)
					e1 := 0.0
					if dist < minDist+inflationDist {
						e1 = penaltyBoundFromBelow(dist, minDist+inflationDist, 0)
					}
					return []float64{penaltyBoundFromBelow(dist, minDist, penaltyEpsilon), e1}
				}); err != nil {
					return err
				}
			} else {
				info := diagInfo(wObs)
				if err := g.Opt.AddEdge("obstacle", []int{g.PoseVtx[i]}, info, func(v [][]float64) []float64 {
					p := r2.Point{X: v[0][0], Y: v[0][1]}
					return []float64{penaltyBoundFromBelow(o.DistanceTo(p), minDist, penaltyEpsilon)}
				}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// AddEdgesDynamicObstacles implements the EdgeDynamicObstacle(t) row: the
// obstacle's predicted position at each pose's cumulative time is checked
// against that pose, not its present-time position.
func (g *GraphBuilder) AddEdgesDynamicObstacles(dynamic []DynamicPredictor, weightMultiplier float64) error {
	optim := g.Cfg.Optim
	obst := g.Cfg.Obstacles
	if optim.WeightDynamicObstacle == 0 || len(dynamic) == 0 {
		return nil
	}
	info := diagInfo(optim.WeightDynamicObstacle*weightMultiplier, optim.WeightDynamicObstacleInflation*weightMultiplier)
	minDist := obst.MinObstacleDist

	cumulative := 0.0
	for i := 0; i < g.numPoses(); i++ {
		t := cumulative
		if i < g.Band.SizeTimeDiffs() {
			cumulative += g.dt(i)
		}
		for _, o := range dynamic {
			o := o
			tt := t
			if err := g.Opt.AddEdge("dynamic_obstacle", []int{g.PoseVtx[i]}, info, func(v [][]float64) []float64 {
				p := r2.Point{X: v[0][0], Y: v[0][1]}
				predicted := o.PredictAt(tt, ConstantVelocity)
				dist := p.Sub(predicted).Norm()
				e1 := 0.0
				if dist < minDist+obst.InflationDist {
					e1 = penaltyBoundFromBelow(dist, minDist+obst.InflationDist, 0)
				}
				return []float64{penaltyBoundFromBelow(dist, minDist, penaltyEpsilon), e1}
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddEdgesVelocityObstacleRatio implements the EdgeVelocityObstacleRatio
// row: penalizes high velocity near obstacles to encourage slowing down,
// as an alternative/supplement to the obstacle-distance edges.
func (g *GraphBuilder) AddEdgesVelocityObstacleRatio() error {
	w := g.Cfg.Optim.WeightVelocityObstacleRatio
	if w == 0 {
		return nil
	}
	info := diagInfo(w, w)
	minDist := g.Cfg.Obstacles.MinObstacleDist
	for i := 0; i < g.numPoses()-1; i++ {
		for _, o := range g.ObstaclesPerVertex[i] {
			o := o
			if err := g.Opt.AddEdge("velocity_obstacle_ratio", []int{g.PoseVtx[i], g.PoseVtx[i+1], g.TimeDiffVtx[i]}, info, func(v [][]float64) []float64 {
				p1 := spatialmath.NewPoseSE2(v[0][0], v[0][1], v[0][2])
				p2 := spatialmath.NewPoseSE2(v[1][0], v[1][1], v[1][2])
				dtv := math.Max(v[2][0], minPositiveTimeDiff)
				vel, omega := linVelOmega(p1, p2, dtv)
				dist := math.Max(o.DistanceTo(p1.Position()), 1e-3)
				ratio := math.Abs(vel) * minDist / dist
				return []float64{ratio, math.Abs(omega) * minDist / dist}
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

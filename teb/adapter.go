package teb

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.viam.com/utils"

	"github.com/viam-labs/tebplanner/logging"
	"github.com/viam-labs/tebplanner/spatialmath"
)

// ObstacleMarker is one obstacle association published for visualization,
// the Go analogue of the original's per-vertex marker_array publishing.
type ObstacleMarker struct {
	PoseIndex int
	Point     PointObstacle
}

// PlannerFeedback carries the per-plan() diagnostic bundle external
// callers need to observe: the cost breakdown, the divergence flag, and
// whether a dynamic obstacle was in scene.
type PlannerFeedback struct {
	Cost                   float64
	Diverged               bool
	DynamicObstacleInScene bool
}

// FeasibilityFailure reports that IsTrajectoryFeasible rejected the most
// recently planned trajectory, for consumers watching for footprint
// violations out-of-band from the Plan error return.
type FeasibilityFailure struct {
	Reason string
}

// Adapter implements C8: the external I/O boundary between the planner and
// whatever ingests occupancy grids / dynamic obstacle reports on a
// separate goroutine and wants trajectory/feedback data back out.
// Mutex-protected "slots" hold the latest occupancy grid, dynamic obstacle
// reports, static obstacles and via points; Snapshot copies the grid,
// static and dynamic slots out atomically for a single
// plan() call, matching the single-threaded-plan()-plus-async-input
// concurrency model the rest of this package assumes.
type Adapter struct {
	mu        sync.Mutex
	grid      *OccupancyGrid
	dynamic   []DynamicObstacleReport
	static    []Obstacle
	viaPoints []ViaPointAssociation

	footprint       FootprintCostFunc
	inscribedRadius float64

	markers     chan []ObstacleMarker
	timeDiffs   chan []float64
	feedback    chan PlannerFeedback
	localPlan   chan []TrajectoryPoint
	feasibility chan FeasibilityFailure

	logger logging.Logger
}

// NewAdapter constructs an Adapter with buffered output channels of
// capacity 1 (latest-value semantics: a slow consumer only ever sees the
// most recent publish, never an unbounded backlog).
func NewAdapter(logger logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.NewLogger("teb.adapter")
	}
	return &Adapter{
		markers:     make(chan []ObstacleMarker, 1),
		timeDiffs:   make(chan []float64, 1),
		feedback:    make(chan PlannerFeedback, 1),
		localPlan:   make(chan []TrajectoryPoint, 1),
		feasibility: make(chan FeasibilityFailure, 1),
		logger:      logger,
	}
}

// SetFootprint installs the footprint-feasibility check PlanAndPublish runs
// after every Plan call. Leaving it unset (the default) skips the
// feasibility check and the FeasibilityFailures channel stays silent.
func (a *Adapter) SetFootprint(footprint FootprintCostFunc, inscribedRadius float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.footprint = footprint
	a.inscribedRadius = inscribedRadius
}

// IngestOccupancyGrid replaces the adapter's occupancy grid slot. Safe to
// call from any goroutine.
func (a *Adapter) IngestOccupancyGrid(grid *OccupancyGrid) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.grid = grid
}

// IngestDynamicObstacles replaces the adapter's dynamic obstacle report
// slot. Safe to call from any goroutine. A report arriving without a
// stable ID (upstream trackers don't always assign one) is given a fresh
// UUID so the associator has a non-empty key for it. The UUID is not
// carried over between calls: a report that arrives again without an ID
// gets a new UUID and the associator treats it as a first sighting.
func (a *Adapter) IngestDynamicObstacles(reports []DynamicObstacleReport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range reports {
		if reports[i].ID == "" {
			reports[i].ID = uuid.NewString()
		}
	}
	a.dynamic = reports
}

// IngestStaticObstacles replaces the adapter's static obstacle slot.
func (a *Adapter) IngestStaticObstacles(obstacles []Obstacle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.static = obstacles
}

// IngestViaPoints replaces the via-point association slot.
func (a *Adapter) IngestViaPoints(assoc []ViaPointAssociation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.viaPoints = assoc
}

// StartIngest launches a background goroutine reading from grids/dynamic
// and writing into the adapter's slots until ctx is canceled, wrapped in
// utils.PanicCapturingGo so a bad message never takes the whole process
// down with it.
func (a *Adapter) StartIngest(ctx context.Context, grids <-chan *OccupancyGrid, dynamic <-chan []DynamicObstacleReport) {
	utils.PanicCapturingGo(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case g, ok := <-grids:
				if !ok {
					grids = nil
					continue
				}
				a.IngestOccupancyGrid(g)
			case d, ok := <-dynamic:
				if !ok {
					dynamic = nil
					continue
				}
				a.IngestDynamicObstacles(d)
			}
		}
	})
}

// Snapshot copies the current grid/static/dynamic slots out atomically for
// a single plan() call.
func (a *Adapter) Snapshot() ObstacleSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ObstacleSnapshot{
		Static:  append([]Obstacle(nil), a.static...),
		Grid:    a.grid,
		Dynamic: append([]DynamicObstacleReport(nil), a.dynamic...),
	}
}

// ViaPoints returns the current via-point associations for buildGraph.
func (a *Adapter) ViaPoints() []ViaPointAssociation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ViaPointAssociation(nil), a.viaPoints...)
}

// PublishMarkers sends the latest per-vertex obstacle markers, replacing
// any unread prior value (latest-value channel semantics).
func (a *Adapter) PublishMarkers(markers []ObstacleMarker) {
	select {
	case <-a.markers:
	default:
	}
	a.markers <- markers
}

// Markers returns the channel obstacle markers are published on.
func (a *Adapter) Markers() <-chan []ObstacleMarker { return a.markers }

// PublishTimeDiffs sends the Band's current time-diff array, the Go
// analogue of the original's this->time_diff publishing.
func (a *Adapter) PublishTimeDiffs(diffs []float64) {
	select {
	case <-a.timeDiffs:
	default:
	}
	a.timeDiffs <- diffs
}

// TimeDiffs returns the channel time-diff arrays are published on.
func (a *Adapter) TimeDiffs() <-chan []float64 { return a.timeDiffs }

// PublishFeedback sends a PlannerFeedback bundle, replacing any unread
// prior value.
func (a *Adapter) PublishFeedback(fb PlannerFeedback) {
	select {
	case <-a.feedback:
	default:
	}
	a.feedback <- fb
}

// Feedback returns the channel PlannerFeedback bundles are published on.
func (a *Adapter) Feedback() <-chan PlannerFeedback { return a.feedback }

// PublishLocalPlan sends the full annotated trajectory for visualization,
// replacing any unread prior value.
func (a *Adapter) PublishLocalPlan(traj []TrajectoryPoint) {
	select {
	case <-a.localPlan:
	default:
	}
	a.localPlan <- traj
}

// LocalPlan returns the channel full-trajectory visualizations are
// published on.
func (a *Adapter) LocalPlan() <-chan []TrajectoryPoint { return a.localPlan }

// PublishFeasibilityFailure sends a FeasibilityFailure, replacing any
// unread prior value.
func (a *Adapter) PublishFeasibilityFailure(f FeasibilityFailure) {
	select {
	case <-a.feasibility:
	default:
	}
	a.feasibility <- f
}

// FeasibilityFailures returns the channel FeasibilityFailure values are
// published on.
func (a *Adapter) FeasibilityFailures() <-chan FeasibilityFailure { return a.feasibility }

// PlanAndPublish runs one Plan call against the adapter's current snapshot
// and via points, then publishes markers/time-diffs/feedback/local-plan
// (and, when a footprint is installed via SetFootprint, feasibility
// failures). Feedback is published on every call; the
// trajectory.publish_feedback option is not consulted. Callers that don't need the channel outputs can call Planner.Plan
// directly instead.
func (a *Adapter) PlanAndPublish(ctx context.Context, p *Planner, initialPlan []spatialmath.PoseSE2, startVel *Velocity, freeGoalVel bool) error {
	snap := a.Snapshot()
	p.SetViaPoints(a.ViaPoints())
	err := p.Plan(ctx, initialPlan, startVel, freeGoalVel, snap)

	fb := PlannerFeedback{
		Cost:                   p.Cost(),
		Diverged:               p.HasDiverged(),
		DynamicObstacleInScene: p.dynamicObstacleInScene,
	}
	a.PublishFeedback(fb)

	diffs := make([]float64, p.Band.SizeTimeDiffs())
	for i := range diffs {
		diffs[i] = p.Band.TimeDiff(i).Seconds()
	}
	a.PublishTimeDiffs(diffs)

	a.PublishMarkers(p.LastObstacleMarkers())
	a.PublishLocalPlan(p.GetFullTrajectory())

	a.mu.Lock()
	footprint, inscribedRadius := a.footprint, a.inscribedRadius
	a.mu.Unlock()
	if footprint != nil {
		if feasible, ferr := p.IsTrajectoryFeasible(footprint, inscribedRadius, -1); !feasible {
			a.PublishFeasibilityFailure(FeasibilityFailure{Reason: ferr.Error()})
		}
	}

	return err
}

package teb

import (
	"math"

	"github.com/pkg/errors"

	"github.com/viam-labs/tebplanner/spatialmath"
)

// Band is the TEB container (C2): an ordered sequence of N pose vertices
// and N-1 time-diff vertices, indexed so that TimeDiffs[i] is the interval
// from Poses[i] to Poses[i+1]. Pose 0 and the last pose are fixed during
// optimization; every other vertex is free.
//
// Band is not safe for concurrent use; the planner owns one
// Band and touches it only from the single plan() call in flight.
type Band struct {
	Poses      []spatialmath.PoseSE2
	TimeDiffs  []spatialmath.TimeDiff
	initialized bool
}

// NewBand returns an empty, uninitialized Band.
func NewBand() *Band {
	return &Band{}
}

// IsInit reports whether the band has been populated by an Init* call.
func (b *Band) IsInit() bool { return b.initialized }

// SizePoses returns the number of pose vertices.
func (b *Band) SizePoses() int { return len(b.Poses) }

// SizeTimeDiffs returns the number of time-diff vertices.
func (b *Band) SizeTimeDiffs() int { return len(b.TimeDiffs) }

// Pose returns the i'th pose vertex.
func (b *Band) Pose(i int) spatialmath.PoseSE2 { return b.Poses[i] }

// SetPose overwrites the i'th pose vertex, e.g. after the optimizer writes
// back an optimized value.
func (b *Band) SetPose(i int, p spatialmath.PoseSE2) { b.Poses[i] = p }

// TimeDiff returns the i'th time-diff vertex.
func (b *Band) TimeDiff(i int) spatialmath.TimeDiff { return b.TimeDiffs[i] }

// SetTimeDiff overwrites the i'th time-diff vertex.
func (b *Band) SetTimeDiff(i int, dt spatialmath.TimeDiff) { b.TimeDiffs[i] = dt }

// BackPose returns the last pose vertex.
func (b *Band) BackPose() spatialmath.PoseSE2 { return b.Poses[len(b.Poses)-1] }

// SumOfAllTimeDiffs returns the total planned trajectory time, used by the
// "alternative time cost" in Planner.ComputeCurrentCost.
func (b *Band) SumOfAllTimeDiffs() float64 {
	var total float64
	for _, dt := range b.TimeDiffs {
		total += dt.Seconds()
	}
	return total
}

// Clear resets the band to its uninitialized, empty state. This is what
// Planner calls on the "reinit" branch of the warm-start decision before
// calling InitFromPlan/InitFromStartGoal again.
func (b *Band) Clear() {
	b.Poses = nil
	b.TimeDiffs = nil
	b.initialized = false
}

// Clone returns a deep copy, used by Planner to snapshot the band before a
// risky operation so it can roll back on ErrTEBTooSmall/ErrDiverged per the
// "recovered by rejection" error policy.
func (b *Band) Clone() *Band {
	clone := &Band{initialized: b.initialized}
	clone.Poses = append([]spatialmath.PoseSE2(nil), b.Poses...)
	clone.TimeDiffs = append([]spatialmath.TimeDiff(nil), b.TimeDiffs...)
	return clone
}

// restoreFrom overwrites b's contents with other's, in place, so callers
// that already hold a *Band (e.g. the one embedded in a Planner) can roll
// back without re-pointing it.
func (b *Band) restoreFrom(other *Band) {
	b.Poses = other.Poses
	b.TimeDiffs = other.TimeDiffs
	b.initialized = other.initialized
}

// InitFromPlan samples a coarse global plan into a band whose inter-pose
// time gaps are the translation distance divided by vMax (at least
// minPositiveTimeDiff); omegaMax is not used in that computation.
// If overwriteOrientation, each intermediate pose's heading
// is overwritten with the bearing to the next sample. Samples are added
// until at least minSamples poses exist.
func (b *Band) InitFromPlan(
	plan []spatialmath.PoseSE2,
	vMax, omegaMax float64,
	overwriteOrientation bool,
	minSamples int,
	allowBackwards bool,
) error {
	if len(plan) < 2 {
		return errors.New("teb: InitFromPlan needs at least 2 plan poses")
	}
	if vMax <= 0 {
		return errors.Wrap(ErrConfigurationDegenerate, "InitFromPlan: vMax must be > 0")
	}

	initialHeading := plan[0].Theta

	poses := make([]spatialmath.PoseSE2, 0, len(plan))
	poses = append(poses, plan[0])
	for i := 1; i < len(plan); i++ {
		candidate := plan[i]
		if overwriteOrientation && i < len(plan)-1 {
			bearing := math.Atan2(plan[i+1].Y-candidate.Y, plan[i+1].X-candidate.X)
			candidate.SetTheta(bearing)
		}
		if !allowBackwards && travelsBackward(initialHeading, poses[len(poses)-1], candidate) {
			continue
		}
		poses = append(poses, candidate)
	}
	if len(poses) < 2 {
		poses = append(poses, plan[len(plan)-1])
	}

	timeDiffs := make([]spatialmath.TimeDiff, 0, len(poses)-1)
	for i := 0; i < len(poses)-1; i++ {
		dist := poses[i].DistanceTo(poses[i+1])
		dt, err := spatialmath.NewTimeDiff(math.Max(dist/vMax, minPositiveTimeDiff))
		if err != nil {
			return err
		}
		timeDiffs = append(timeDiffs, dt)
	}

	b.Poses = poses
	b.TimeDiffs = timeDiffs
	b.initialized = true
	return b.growToMinSamples(minSamples)
}

// InitFromStartGoal builds a straight-line interpolation between start and
// goal with the given number of intermediate samples.
func (b *Band) InitFromStartGoal(
	start, goal spatialmath.PoseSE2,
	intermediateSamples int,
	vMax float64,
	minSamples int,
	allowBackwards bool,
) error {
	if vMax <= 0 {
		return errors.Wrap(ErrConfigurationDegenerate, "InitFromStartGoal: vMax must be > 0")
	}
	n := intermediateSamples + 2
	poses := make([]spatialmath.PoseSE2, 0, n)
	for i := 0; i < n; i++ {
		frac := float64(i) / float64(n-1)
		poses = append(poses, spatialmath.Interpolate(start, goal, frac))
	}
	poses[0] = start
	poses[len(poses)-1] = goal

	timeDiffs := make([]spatialmath.TimeDiff, 0, len(poses)-1)
	for i := 0; i < len(poses)-1; i++ {
		dist := poses[i].DistanceTo(poses[i+1])
		dt, err := spatialmath.NewTimeDiff(math.Max(dist/vMax, minPositiveTimeDiff))
		if err != nil {
			return err
		}
		timeDiffs = append(timeDiffs, dt)
	}

	b.Poses = poses
	b.TimeDiffs = timeDiffs
	b.initialized = true
	_ = allowBackwards // straight-line interpolation has no backward-travel ambiguity to filter
	return b.growToMinSamples(minSamples)
}

// growToMinSamples repeatedly bisects the longest interval until at least
// minSamples poses exist, used as a fallback by both Init* entry points so
// InitFromStartGoal's "0 intermediate samples, dt=1" case (the C++ source's
// convention of relying on the first AutoResize to add samples) still
// satisfies the min_samples invariant immediately after construction.
func (b *Band) growToMinSamples(minSamples int) error {
	for len(b.Poses) < minSamples {
		longest := 0
		for i := 1; i < len(b.TimeDiffs); i++ {
			if b.TimeDiffs[i] > b.TimeDiffs[longest] {
				longest = i
			}
		}
		if len(b.TimeDiffs) == 0 {
			return errors.Wrap(ErrTEBTooSmall, "cannot reach min_samples with a single pose")
		}
		if err := b.splitInterval(longest); err != nil {
			return err
		}
	}
	return nil
}

// UpdateAndPrune implements the warm-start update: it
// projects newStart onto the current polyline, removes the pose/timediff
// pairs between the old index 0 and the projection (keeping at least
// minSamples), and re-anchors the goal vertex to newGoal.
func (b *Band) UpdateAndPrune(newStart, newGoal spatialmath.PoseSE2, minSamples int) error {
	if !b.initialized {
		return errors.New("teb: UpdateAndPrune called on an uninitialized band")
	}
	projIdx := b.closestPoseIndex(newStart)

	maxPrune := len(b.Poses) - minSamples
	if maxPrune < 0 {
		maxPrune = 0
	}
	if projIdx > maxPrune {
		projIdx = maxPrune
	}
	if projIdx > 0 {
		b.Poses = b.Poses[projIdx:]
		b.TimeDiffs = b.TimeDiffs[projIdx:]
	}
	if len(b.Poses) > 0 {
		b.Poses[0] = newStart
	}
	if len(b.Poses) > 0 {
		b.Poses[len(b.Poses)-1] = newGoal
	}
	return nil
}

// closestPoseIndex returns the index of the existing pose vertex nearest to
// p, the projection of the new start pose onto the current polyline.
func (b *Band) closestPoseIndex(p spatialmath.PoseSE2) int {
	best := 0
	bestDist := math.Inf(1)
	for i, pose := range b.Poses {
		if d := pose.DistanceTo(p); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// AutoResize splits intervals longer than
// dtRef+dtHysteresis, merges intervals shorter than dtRef-dtHysteresis,
// repeating until stable (fastMode=false) or only once bottom-up
// (fastMode=true), never exceeding maxSamples or dropping below minSamples.
func (b *Band) AutoResize(dtRef, dtHysteresis float64, minSamples, maxSamples int, fastMode bool) error {
	if !b.initialized {
		return errors.New("teb: AutoResize called on an uninitialized band")
	}
	for pass := 0; ; pass++ {
		changed := false
		i := 0
		for i < len(b.TimeDiffs) {
			dt := b.TimeDiffs[i].Seconds()
			switch {
			case dt > dtRef+dtHysteresis && len(b.Poses) < maxSamples:
				if err := b.splitInterval(i); err != nil {
					return err
				}
				changed = true
				i += 2 // skip over the two new intervals
			case dt < dtRef-dtHysteresis && len(b.Poses) > minSamples && i+1 < len(b.TimeDiffs):
				b.mergeInterval(i)
				changed = true
				// do not advance i: re-examine the merged interval
			default:
				i++
			}
		}
		if fastMode || !changed {
			break
		}
		if pass > len(b.Poses)+maxSamples {
			// Defensive bound: AutoResize's fixed point should always be
			// reached well before this; this guards against a pathological
			// dtRef/hysteresis configuration oscillating forever.
			break
		}
	}
	if len(b.Poses) < minSamples {
		return errors.Wrap(ErrTEBTooSmall, "AutoResize")
	}
	return nil
}

// splitInterval inserts a new pose at the midpoint of interval i, replacing
// TimeDiffs[i] with two halves. The interior pose's heading is the
// shorter-arc bisector of its neighbors.
func (b *Band) splitInterval(i int) error {
	mid := spatialmath.Midpoint(b.Poses[i], b.Poses[i+1])
	half, err := spatialmath.NewTimeDiff(b.TimeDiffs[i].Seconds() / 2)
	if err != nil {
		return err
	}

	poses := make([]spatialmath.PoseSE2, 0, len(b.Poses)+1)
	poses = append(poses, b.Poses[:i+1]...)
	poses = append(poses, mid)
	poses = append(poses, b.Poses[i+1:]...)

	timeDiffs := make([]spatialmath.TimeDiff, 0, len(b.TimeDiffs)+1)
	timeDiffs = append(timeDiffs, b.TimeDiffs[:i]...)
	timeDiffs = append(timeDiffs, half, half)
	timeDiffs = append(timeDiffs, b.TimeDiffs[i+1:]...)

	b.Poses = poses
	b.TimeDiffs = timeDiffs
	return nil
}

// mergeInterval deletes pose i+1, summing TimeDiffs[i] and TimeDiffs[i+1].
func (b *Band) mergeInterval(i int) {
	merged := b.TimeDiffs[i] + b.TimeDiffs[i+1]

	poses := make([]spatialmath.PoseSE2, 0, len(b.Poses)-1)
	poses = append(poses, b.Poses[:i+1]...)
	poses = append(poses, b.Poses[i+2:]...)

	timeDiffs := make([]spatialmath.TimeDiff, 0, len(b.TimeDiffs)-1)
	timeDiffs = append(timeDiffs, b.TimeDiffs[:i]...)
	timeDiffs = append(timeDiffs, merged)
	timeDiffs = append(timeDiffs, b.TimeDiffs[i+2:]...)

	b.Poses = poses
	b.TimeDiffs = timeDiffs
}

const minPositiveTimeDiff = 1e-3

// travelsBackward reports whether moving from `from` to `to` requires net
// backward travel relative to the robot's initial heading.
func travelsBackward(initialHeading float64, from, to spatialmath.PoseSE2) bool {
	dir := to.Position().Sub(from.Position())
	if dir.Norm() == 0 {
		return false
	}
	headingVec := spatialmath.PoseSE2{Theta: initialHeading}.OrientationUnitVec()
	return dir.Dot(headingVec) < 0
}

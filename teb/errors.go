package teb

import "github.com/pkg/errors"

// Sentinel error kinds. Every non-fatal failure is "recovered by
// rejection": the caller gets one of these back wrapped with context, and
// the TEB is left in its pre-call state so the next control cycle can retry.
var (
	// ErrConfigurationDegenerate is returned when a configuration value
	// makes planning meaningless, e.g. robot.max_vel_x < 0.01.
	ErrConfigurationDegenerate = errors.New("teb: configuration is degenerate")

	// ErrTEBTooSmall is returned when fewer than min_samples poses remain
	// after a resize.
	ErrTEBTooSmall = errors.New("teb: band has fewer than min_samples poses")

	// ErrGraphNotEmpty names the failure of rebuilding over a graph that was
	// not cleared. buildGraph starts every pass from a fresh
	// graph.NewOptimizer(), so no code path in this package returns it.
	ErrGraphNotEmpty = errors.New("teb: graph is not empty, missing clearGraph call")

	// ErrOptimizerNoIterations is returned when the LM back-end performs
	// zero iterations.
	ErrOptimizerNoIterations = errors.New("teb: optimizer performed zero iterations")

	// ErrDiverged is surfaced when the last inner iteration's chi-squared
	// exceeds the configured divergence threshold.
	ErrDiverged = errors.New("teb: optimization diverged")

	// ErrFeasibilityFail is returned by IsTrajectoryFeasible (as a reason,
	// not as its boolean return) for callers that want the cause logged.
	ErrFeasibilityFail = errors.New("teb: trajectory is not feasible")
)

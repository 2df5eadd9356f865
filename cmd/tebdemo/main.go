// Command tebdemo exercises the teb planner against a scripted
// straight-line-with-obstacle scenario, printing the current pose, the
// resulting velocity command and the divergence flag on every simulated
// control cycle.
package main

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/golang/geo/r2"
	"github.com/urfave/cli/v2"

	"github.com/viam-labs/tebplanner/logging"
	"github.com/viam-labs/tebplanner/spatialmath"
	"github.com/viam-labs/tebplanner/teb"
)

func main() {
	app := &cli.App{
		Name:  "tebdemo",
		Usage: "run a scripted TEB planning scenario",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "cycles", Value: 10, Usage: "number of simulated control cycles to run"},
			&cli.Float64Flag{Name: "goal-x", Value: 4.0, Usage: "goal pose x coordinate"},
			&cli.Float64Flag{Name: "goal-y", Value: 0.0, Usage: "goal pose y coordinate"},
			&cli.Float64Flag{Name: "obstacle-x", Value: 2.0, Usage: "static obstacle x coordinate"},
			&cli.Float64Flag{Name: "obstacle-y", Value: 0.1, Usage: "static obstacle y coordinate"},
			&cli.BoolFlag{Name: "verbose", Usage: "enable debug logging"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := logging.NewLogger("tebdemo", logging.NewStdoutAppender())
	if c.Bool("verbose") {
		logger.Debugw("verbose logging enabled")
	}

	cfg := teb.DefaultConfig()
	planner, err := teb.NewPlanner(cfg, logger)
	if err != nil {
		return err
	}

	start := spatialmath.NewPoseSE2(0, 0, 0)
	goal := spatialmath.NewPoseSE2(c.Float64("goal-x"), c.Float64("goal-y"), 0)

	obstacles := []teb.Obstacle{
		teb.NewPointObstacle(r2.Point{X: c.Float64("obstacle-x"), Y: c.Float64("obstacle-y")}),
	}
	grid := &teb.OccupancyGrid{Width: 1, Height: 1, Resolution: 1, Data: []int8{1}}
	snap := teb.ObstacleSnapshot{Static: obstacles, Grid: grid}

	footprint := teb.CircularFootprint(0.2, obstacles)

	ctx := context.Background()
	cur := start
	for cycle := 0; cycle < c.Int("cycles"); cycle++ {
		if err := planner.PlanPoseGoal(ctx, cur, goal, nil, true, snap); err != nil {
			logger.Errorw("plan failed", "cycle", cycle, "error", err)
			return err
		}

		cmd, err := planner.GetVelocityCommand(3)
		if err != nil {
			logger.Errorw("velocity command failed", "cycle", cycle, "error", err)
			return err
		}

		feasible, feasErr := planner.IsTrajectoryFeasible(footprint, 0.2, -1)
		if !feasible {
			logger.Warnw("trajectory infeasible", "cycle", cycle, "error", feasErr)
		}

		fmt.Printf("cycle %2d: pose=(%.2f, %.2f, %.2f) cmd=(vx=%.3f omega=%.3f) diverged=%v\n",
			cycle, cur.X, cur.Y, cur.Theta, cmd.Vx, cmd.Omega, planner.HasDiverged())

		const dt = 0.3
		cur = spatialmath.NewPoseSE2(
			cur.X+cmd.Vx*dt*math.Cos(cur.Theta),
			cur.Y+cmd.Vx*dt*math.Sin(cur.Theta),
			cur.Theta+cmd.Omega*dt,
		)

		if cur.DistanceTo(goal) < 0.05 {
			fmt.Println("goal reached")
			break
		}
	}

	return nil
}

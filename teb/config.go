package teb

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// TrajectoryConfig controls TEB resizing, initialization, and warm-start
// policy.
type TrajectoryConfig struct {
	DtRef       float64 `mapstructure:"dt_ref"`
	DtHysteresis float64 `mapstructure:"dt_hysteresis"`
	MinSamples  int     `mapstructure:"min_samples"`
	MaxSamples  int     `mapstructure:"max_samples"`
	TebAutosize bool    `mapstructure:"teb_autosize"`

	GlobalPlanOverwriteOrientation bool `mapstructure:"global_plan_overwrite_orientation"`
	AllowInitWithBackwardsMotion   bool `mapstructure:"allow_init_with_backwards_motion"`

	ForceReinitNewGoalDist    float64 `mapstructure:"force_reinit_new_goal_dist"`
	ForceReinitNewGoalAngular float64 `mapstructure:"force_reinit_new_goal_angular"`

	ViaPointsOrdered bool `mapstructure:"via_points_ordered"`

	MinResolutionCollisionCheckAngular float64 `mapstructure:"min_resolution_collision_check_angular"`
	PreventLookAheadPosesNearGoal      int     `mapstructure:"prevent_look_ahead_poses_near_goal"`

	PublishFeedback bool `mapstructure:"publish_feedback"`
}

// RobotConfig holds the robot's kinematic and dynamic limits.
type RobotConfig struct {
	MaxVelX        float64 `mapstructure:"max_vel_x"`
	MaxVelY        float64 `mapstructure:"max_vel_y"` // 0 => non-holonomic
	MaxVelTheta    float64 `mapstructure:"max_vel_theta"`
	AccLimX        float64 `mapstructure:"acc_lim_x"`
	AccLimY        float64 `mapstructure:"acc_lim_y"`
	AccLimTheta    float64 `mapstructure:"acc_lim_theta"`
	MinTurningRadius float64 `mapstructure:"min_turning_radius"`
}

// ObstaclesConfig controls the obstacle associator (C6).
type ObstaclesConfig struct {
	MinObstacleDist                       float64 `mapstructure:"min_obstacle_dist"`
	InflationDist                         float64 `mapstructure:"inflation_dist"`
	ObstaclePosesAffected                 int     `mapstructure:"obstacle_poses_affected"`
	LegacyObstacleAssociation             bool    `mapstructure:"legacy_obstacle_association"`
	ObstacleAssociationForceInclusionFactor float64 `mapstructure:"obstacle_association_force_inclusion_factor"`
	IncludeDynamicObstacles                bool    `mapstructure:"include_dynamic_obstacles"`
}

// OptimConfig holds the edge weights (information-matrix scales) and the
// outer/inner iteration budget.
type OptimConfig struct {
	WeightOptimalTime             float64 `mapstructure:"weight_optimaltime"`
	WeightShortestPath            float64 `mapstructure:"weight_shortest_path"`
	WeightMaxVelX                 float64 `mapstructure:"weight_max_vel_x"`
	WeightMaxVelY                 float64 `mapstructure:"weight_max_vel_y"`
	WeightMaxVelTheta             float64 `mapstructure:"weight_max_vel_theta"`
	WeightAccLimX                 float64 `mapstructure:"weight_acc_lim_x"`
	WeightAccLimY                 float64 `mapstructure:"weight_acc_lim_y"`
	WeightAccLimTheta             float64 `mapstructure:"weight_acc_lim_theta"`
	WeightKinematicsNh            float64 `mapstructure:"weight_kinematics_nh"`
	WeightKinematicsForwardDrive  float64 `mapstructure:"weight_kinematics_forward_drive"`
	WeightKinematicsTurningRadius float64 `mapstructure:"weight_kinematics_turning_radius"`
	WeightObstacle                float64 `mapstructure:"weight_obstacle"`
	WeightInflation               float64 `mapstructure:"weight_inflation"`
	WeightDynamicObstacle         float64 `mapstructure:"weight_dynamic_obstacle"`
	WeightDynamicObstacleInflation float64 `mapstructure:"weight_dynamic_obstacle_inflation"`
	WeightViaPoint                float64 `mapstructure:"weight_viapoint"`
	WeightPreferRotDir            float64 `mapstructure:"weight_prefer_rotdir"`
	WeightVelocityObstacleRatio   float64 `mapstructure:"weight_velocity_obstacle_ratio"`
	WeightAdaptFactor             float64 `mapstructure:"weight_adapt_factor"`

	NoInnerIterations     int  `mapstructure:"no_inner_iterations"`
	NoOuterIterations     int  `mapstructure:"no_outer_iterations"`
	OptimizationActivate  bool `mapstructure:"optimization_activate"`
	OptimizationVerbose   bool `mapstructure:"optimization_verbose"`
}

// RecoveryConfig controls divergence detection.
type RecoveryConfig struct {
	DivergenceDetectionEnable        bool    `mapstructure:"divergence_detection_enable"`
	DivergenceDetectionMaxChiSquared float64 `mapstructure:"divergence_detection_max_chi_squared"`
}

// UpdateMode selects the warm-start-vs-reinit decision policy.
type UpdateMode int

const (
	// UpdateModeClassic is mode 0: distance/angle threshold warm start.
	UpdateModeClassic UpdateMode = 0
	// UpdateModeDynamicAware is mode 1: reinit when a dynamic obstacle is
	// in scene and the trajectory spans more than 1m.
	UpdateModeDynamicAware UpdateMode = 1
)

// Config is the full recognized configuration surface.
type Config struct {
	Trajectory TrajectoryConfig `mapstructure:"trajectory"`
	Robot      RobotConfig      `mapstructure:"robot"`
	Obstacles  ObstaclesConfig  `mapstructure:"obstacles"`
	Optim      OptimConfig      `mapstructure:"optim"`
	Recovery   RecoveryConfig   `mapstructure:"recovery"`
	UpdateMode UpdateMode       `mapstructure:"update_mode"`
}

// DefaultConfig returns a Config with the conventional teb_local_planner
// defaults, letting callers override a subset via DecodeOptions.
func DefaultConfig() *Config {
	return &Config{
		Trajectory: TrajectoryConfig{
			DtRef:                              0.3,
			DtHysteresis:                       0.03,
			MinSamples:                         3,
			MaxSamples:                         500,
			TebAutosize:                        true,
			GlobalPlanOverwriteOrientation:      true,
			AllowInitWithBackwardsMotion:        false,
			ForceReinitNewGoalDist:              1.0,
			ForceReinitNewGoalAngular:           0.78,
			ViaPointsOrdered:                    false,
			MinResolutionCollisionCheckAngular:  0.1,
			PreventLookAheadPosesNearGoal:       0,
			PublishFeedback:                     false,
		},
		Robot: RobotConfig{
			MaxVelX:          0.4,
			MaxVelY:          0,
			MaxVelTheta:      0.3,
			AccLimX:          0.5,
			AccLimY:          0.5,
			AccLimTheta:      0.5,
			MinTurningRadius: 0,
		},
		Obstacles: ObstaclesConfig{
			MinObstacleDist:                         0.25,
			InflationDist:                           0.6,
			ObstaclePosesAffected:                    25,
			LegacyObstacleAssociation:                false,
			ObstacleAssociationForceInclusionFactor:  1.5,
			IncludeDynamicObstacles:                  false,
		},
		Optim: OptimConfig{
			WeightOptimalTime:             1.0,
			WeightShortestPath:            0,
			WeightMaxVelX:                 2.0,
			WeightMaxVelY:                 2.0,
			WeightMaxVelTheta:             1.0,
			WeightAccLimX:                 1.0,
			WeightAccLimY:                 1.0,
			WeightAccLimTheta:             1.0,
			WeightKinematicsNh:            1000,
			WeightKinematicsForwardDrive:  1.0,
			WeightKinematicsTurningRadius: 1.0,
			WeightObstacle:                50,
			WeightInflation:               0.1,
			WeightDynamicObstacle:         50,
			WeightDynamicObstacleInflation: 0.1,
			WeightViaPoint:                1.0,
			WeightPreferRotDir:            0,
			WeightVelocityObstacleRatio:   0,
			WeightAdaptFactor:             2.0,
			NoInnerIterations:             5,
			NoOuterIterations:             4,
			OptimizationActivate:          true,
			OptimizationVerbose:           false,
		},
		Recovery: RecoveryConfig{
			DivergenceDetectionEnable:        true,
			DivergenceDetectionMaxChiSquared: 1e5,
		},
		UpdateMode: UpdateModeClassic,
	}
}

// DecodeOptions overlays a flat option map (e.g. from a JSON config blob)
// onto a copy of cfg, the way daoran-rdk/motionplan/planManager.go overlays
// `map[string]interface{}` motion-config options onto planner defaults —
// here via mapstructure rather than a JSON marshal/unmarshal round trip.
func DecodeOptions(cfg *Config, opts map[string]interface{}) (*Config, error) {
	out := *cfg
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "teb: building option decoder")
	}
	if err := decoder.Decode(opts); err != nil {
		return nil, errors.Wrap(err, "teb: decoding options")
	}
	return &out, nil
}

// Validate implements the ConfigurationDegenerate check: a
// max_vel_x too small to plan meaningfully is rejected up front.
func (c *Config) Validate() error {
	const minViableVelocity = 0.01
	if c.Robot.MaxVelX < minViableVelocity {
		return errors.Wrapf(ErrConfigurationDegenerate, "robot.max_vel_x=%f is below %f", c.Robot.MaxVelX, minViableVelocity)
	}
	if c.Trajectory.MinSamples < 2 {
		return errors.Wrapf(ErrConfigurationDegenerate, "trajectory.min_samples=%d must be >= 2", c.Trajectory.MinSamples)
	}
	if c.Trajectory.MaxSamples < c.Trajectory.MinSamples {
		return errors.Wrapf(ErrConfigurationDegenerate, "trajectory.max_samples=%d < min_samples=%d", c.Trajectory.MaxSamples, c.Trajectory.MinSamples)
	}
	if c.Trajectory.DtRef <= 0 {
		return errors.Wrapf(ErrConfigurationDegenerate, "trajectory.dt_ref=%f must be > 0", c.Trajectory.DtRef)
	}
	return nil
}

package teb

import (
	"testing"

	"go.viam.com/test"
)

func TestDefaultConfigValidates(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	test.That(t, cfg.Validate(), test.ShouldBeNil)
}

func TestValidateRejectsTinyMaxVelX(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Robot.MaxVelX = 0.001
	err := cfg.Validate()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestValidateRejectsMinSamplesBelowTwo(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Trajectory.MinSamples = 1
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)
}

func TestValidateRejectsMaxSamplesBelowMinSamples(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Trajectory.MinSamples = 10
	cfg.Trajectory.MaxSamples = 5
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)
}

func TestValidateRejectsNonPositiveDtRef(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Trajectory.DtRef = 0
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)
}

func TestDecodeOptionsOverlaysNestedFields(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	opts := map[string]interface{}{
		"robot": map[string]interface{}{
			"max_vel_x": 0.8,
		},
		"obstacles": map[string]interface{}{
			"legacy_obstacle_association": true,
		},
	}
	out, err := DecodeOptions(cfg, opts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Robot.MaxVelX, test.ShouldAlmostEqual, 0.8, 1e-9)
	test.That(t, out.Obstacles.LegacyObstacleAssociation, test.ShouldBeTrue)
	// DecodeOptions must not mutate the original cfg.
	test.That(t, cfg.Robot.MaxVelX, test.ShouldAlmostEqual, 0.4, 1e-9)
}

func TestDecodeOptionsWeaklyTypedInputAcceptsStrings(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	out, err := DecodeOptions(cfg, map[string]interface{}{
		"trajectory": map[string]interface{}{
			"dt_ref": "0.5",
		},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Trajectory.DtRef, test.ShouldAlmostEqual, 0.5, 1e-9)
}

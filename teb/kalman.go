package teb

import (
	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// kalmanProcessNoise and kalmanMeasurementNoise are the sigma values the
// original planner configures its 6-state constant-acceleration filter
// with (position/velocity/acceleration process noise, position-only
// measurement noise).
const (
	kalmanProcessNoise     = 0.01
	kalmanMeasurementNoise = 0.1
)

// KalmanFilter6D tracks a 2D point's (x, y, vx, vy, ax, ay) state with a
// constant-acceleration process model, mirroring the cv::KalmanFilter setup
// in the original dynamic-obstacle tracker. The filter is stateless across
// plan() calls: the associator constructs one, seeds it from the two most
// recent reported positions, and discards it after producing one
// prediction.
type KalmanFilter6D struct {
	state mat.VecDense // [x y vx vy ax ay]
	cov   mat.Dense    // 6x6 error covariance
}

// NewKalmanFilter6D seeds a filter at pos with zero velocity/acceleration
// and an identity-scaled initial covariance.
func NewKalmanFilter6D(pos r2.Point) *KalmanFilter6D {
	k := &KalmanFilter6D{
		state: *mat.NewVecDense(6, []float64{pos.X, pos.Y, 0, 0, 0, 0}),
		cov:   *mat.NewDense(6, 6, nil),
	}
	for i := 0; i < 6; i++ {
		k.cov.Set(i, i, 1.0)
	}
	return k
}

// transition returns the constant-acceleration state transition matrix for
// a time step of dt seconds.
func transition(dt float64) *mat.Dense {
	f := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		f.Set(i, i, 1)
	}
	f.Set(0, 2, dt)
	f.Set(0, 4, 0.5*dt*dt)
	f.Set(1, 3, dt)
	f.Set(1, 5, 0.5*dt*dt)
	f.Set(2, 4, dt)
	f.Set(3, 5, dt)
	return f
}

// Predict advances the filter state dt seconds with no new measurement and
// returns the predicted position.
func (k *KalmanFilter6D) Predict(dt float64) r2.Point {
	f := transition(dt)

	var newState mat.VecDense
	newState.MulVec(f, &k.state)
	k.state = newState

	var ft mat.Dense
	ft.Mul(&k.cov, f.T())
	var fcft mat.Dense
	fcft.Mul(f, &ft)
	for i := 0; i < 6; i++ {
		fcft.Set(i, i, fcft.At(i, i)+kalmanProcessNoise)
	}
	k.cov = fcft

	return r2.Point{X: k.state.AtVec(0), Y: k.state.AtVec(1)}
}

// Correct folds in a new position measurement via a simplified (position
// only, diagonal-gain) Kalman update: since only position is observed and
// the measurement noise is isotropic, the full H/S/K matrix algebra
// collapses to an independent scalar gain per position axis.
func (k *KalmanFilter6D) Correct(measured r2.Point) {
	for axis, z := range [2]float64{measured.X, measured.Y} {
		posIdx := axis
		s := k.cov.At(posIdx, posIdx) + kalmanMeasurementNoise
		gain := k.cov.At(posIdx, posIdx) / s
		innovation := z - k.state.AtVec(posIdx)
		for i := 0; i < 6; i++ {
			g := gain * k.cov.At(posIdx, i) / k.cov.At(posIdx, posIdx)
			k.state.SetVec(i, k.state.AtVec(i)+g*innovation)
		}
		for i := 0; i < 6; i++ {
			k.cov.Set(posIdx, i, k.cov.At(posIdx, i)*(1-gain))
		}
	}
}

// Velocity returns the filter's current (vx, vy) estimate.
func (k *KalmanFilter6D) Velocity() r2.Point {
	return r2.Point{X: k.state.AtVec(2), Y: k.state.AtVec(3)}
}

// Acceleration returns the filter's current (ax, ay) estimate.
func (k *KalmanFilter6D) Acceleration() r2.Point {
	return r2.Point{X: k.state.AtVec(4), Y: k.state.AtVec(5)}
}

// EstimateDynamicObstacle runs a single predict/correct cycle from a prior
// observed position to a new one dt seconds later and returns a
// DynamicObstacle populated with the filter's velocity/acceleration
// estimate, ready for the associator to hand to the edge catalogue.
func EstimateDynamicObstacle(id string, prior, current r2.Point, dt float64, width, height float64) *DynamicObstacle {
	if dt <= 0 {
		dt = minPositiveTimeDiff
	}
	k := NewKalmanFilter6D(prior)
	k.Predict(dt)
	k.Correct(current)
	return &DynamicObstacle{
		ID:     id,
		Pos:    current,
		Vel:    k.Velocity(),
		Accel:  k.Acceleration(),
		Width:  width,
		Height: height,
	}
}

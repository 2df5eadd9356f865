package spatialmath

import "github.com/pkg/errors"

// ErrNonPositiveTimeDiff is returned when a TimeDiff is constructed from a
// non-positive value. A TimeDiff of zero is never valid on the wire: it
// would divide-by-zero in velocity extraction.
var ErrNonPositiveTimeDiff = errors.New("spatialmath: time diff must be strictly positive")

// TimeDiff is the temporal gap, in seconds, between two consecutive TEB
// poses. It is always strictly positive once constructed.
type TimeDiff float64

// NewTimeDiff constructs a TimeDiff, rejecting non-positive values.
func NewTimeDiff(seconds float64) (TimeDiff, error) {
	if seconds <= 0 {
		return 0, errors.Wrapf(ErrNonPositiveTimeDiff, "got %f", seconds)
	}
	return TimeDiff(seconds), nil
}

// Clamp returns dt restricted to [min, max].
func (dt TimeDiff) Clamp(min, max TimeDiff) TimeDiff {
	switch {
	case dt < min:
		return min
	case dt > max:
		return max
	default:
		return dt
	}
}

// Seconds returns the underlying float64 value.
func (dt TimeDiff) Seconds() float64 {
	return float64(dt)
}

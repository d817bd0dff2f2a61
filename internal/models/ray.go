package models

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// Ray is a parametric ray: the point at time t is Origin + t*Direction.
// Direction need not be normalized, so ray time is a parameter rather than
// a distance.
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
	TMin      float64
	TMax      float64
}

// At returns the point on the ray at time t.
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Validate checks that the ray has a finite, non-zero direction, a finite
// origin and an ordered time interval.
func (r Ray) Validate() error {
	for i := 0; i < 3; i++ {
		if !isFinite(r.Origin[i]) {
			return errors.Errorf("ray origin %v is not finite", r.Origin)
		}
		if !isFinite(r.Direction[i]) {
			return errors.Errorf("ray direction %v is not finite", r.Direction)
		}
	}
	if r.Direction.Dot(r.Direction) == 0 {
		return errors.New("ray direction is zero")
	}
	if math.IsNaN(r.TMin) || math.IsNaN(r.TMax) {
		return errors.Errorf("ray time interval [%v, %v] contains NaN", r.TMin, r.TMax)
	}
	if r.TMin > r.TMax {
		return errors.Errorf("ray time interval [%v, %v] is reversed", r.TMin, r.TMax)
	}
	return nil
}

// TimeSpan is a closed interval [T0, T1] of ray time covering one maximal
// run of active space.
type TimeSpan struct {
	T0, T1 float64
}

// Length returns T1 - T0.
func (s TimeSpan) Length() float64 {
	return s.T1 - s.T0
}

// SamplePoint is a position on a ray together with its ray time.
type SamplePoint struct {
	T        float64
	Position mgl64.Vec3
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

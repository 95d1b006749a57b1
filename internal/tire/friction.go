package tire

import (
	"math"

	"github.com/cxd309/vehicle-sim/internal/numeric"
)

// FrictionCurve maps slip magnitude to a friction coefficient. It rises from
// (0, 0) to the extremum with a quadratic ease-out, falls to the asymptote with
// a smoothstep, and stays flat beyond.
type FrictionCurve struct {
	ExtremumSlip   float64 `json:"extremum_slip"`
	ExtremumValue  float64 `json:"extremum_value"`
	AsymptoteSlip  float64 `json:"asymptote_slip"`
	AsymptoteValue float64 `json:"asymptote_value"`
	Stiffness      float64 `json:"stiffness"`
}

// DefaultForwardCurve is the longitudinal curve of a road tyre.
func DefaultForwardCurve() FrictionCurve {
	return FrictionCurve{ExtremumSlip: 0.2, ExtremumValue: 1, AsymptoteSlip: 0.6, AsymptoteValue: 0.75, Stiffness: 1}
}

// DefaultSidewaysCurve is the lateral curve of a road tyre.
func DefaultSidewaysCurve() FrictionCurve {
	return FrictionCurve{ExtremumSlip: 0.25, ExtremumValue: 1, AsymptoteSlip: 0.7, AsymptoteValue: 0.7, Stiffness: 1}
}

// Sanitize clamps out-of-range values in place.
func (c *FrictionCurve) Sanitize() {
	c.ExtremumSlip = math.Max(0.001, c.ExtremumSlip)
	c.AsymptoteSlip = math.Max(c.ExtremumSlip, c.AsymptoteSlip)
	c.ExtremumValue = math.Max(0, c.ExtremumValue)
	c.AsymptoteValue = math.Max(0, c.AsymptoteValue)
	c.Stiffness = math.Max(0, c.Stiffness)
}

// Evaluate returns the curve value (before stiffness) for a slip of either sign.
func (c FrictionCurve) Evaluate(slip float64) float64 {
	s := math.Abs(slip)
	switch {
	case s <= 0:
		return 0
	case s < c.ExtremumSlip:
		t := s / c.ExtremumSlip
		return c.ExtremumValue * t * (2 - t)
	case s < c.AsymptoteSlip:
		t := numeric.InverseLerp(c.ExtremumSlip, c.AsymptoteSlip, s)
		t = t * t * (3 - 2*t)
		return c.ExtremumValue + (c.AsymptoteValue-c.ExtremumValue)*t
	}
	return c.AsymptoteValue
}

// Peak returns the highest coefficient the curve can deliver, stiffness included.
func (c FrictionCurve) Peak() float64 {
	return math.Max(c.ExtremumValue, c.AsymptoteValue) * c.Stiffness
}

// Scaled returns a copy with its stiffness multiplied by k.
func (c FrictionCurve) Scaled(k float64) FrictionCurve {
	c.Stiffness *= k
	return c
}

// GroundMaterial describes how a surface modifies tyre friction.
type GroundMaterial struct {
	Name              string  `json:"name"`
	ForwardStiffness  float64 `json:"forward_stiffness"`
	SidewaysStiffness float64 `json:"sideways_stiffness"`
	Grip              float64 `json:"grip"`               // friction coefficient multiplier
	SkidThreshold     float64 `json:"skid_threshold"`     // combined slip above which a wheel skids
	RollingResistance float64 `json:"rolling_resistance"` // Nm
}

// DefaultGroundMaterials returns asphalt (index 0), grass, gravel and ice.
func DefaultGroundMaterials() []GroundMaterial {
	return []GroundMaterial{
		{Name: "asphalt", ForwardStiffness: 1, SidewaysStiffness: 1, Grip: 1, SkidThreshold: 0.3, RollingResistance: 5},
		{Name: "grass", ForwardStiffness: 0.7, SidewaysStiffness: 0.6, Grip: 0.6, SkidThreshold: 0.2, RollingResistance: 40},
		{Name: "gravel", ForwardStiffness: 0.8, SidewaysStiffness: 0.7, Grip: 0.7, SkidThreshold: 0.25, RollingResistance: 25},
		{Name: "ice", ForwardStiffness: 0.3, SidewaysStiffness: 0.25, Grip: 0.15, SkidThreshold: 0.1, RollingResistance: 2},
	}
}

// Sanitize clamps out-of-range values in place.
func (m *GroundMaterial) Sanitize() {
	m.ForwardStiffness = math.Max(0, m.ForwardStiffness)
	m.SidewaysStiffness = math.Max(0, m.SidewaysStiffness)
	if m.Grip <= 0 {
		m.Grip = 1
	}
	if m.SkidThreshold <= 0 {
		m.SkidThreshold = 0.3
	}
	m.RollingResistance = math.Max(0, m.RollingResistance)
}

package kinematics

import "math"

// FrictionModelName is the JSON discriminator string for the FrictionLimited model.
const FrictionModelName = "friction"

// FrictionLimited derives both braking and cornering limits from a single tyre
// friction coefficient: a = μ·g.
//
// JSON discriminator: "model": "friction"
type FrictionLimited struct {
	Mu              float64 `json:"mu"`
	Gravity         float64 `json:"gravity"`          // m/s²
	BrakeEfficiency float64 `json:"brake_efficiency"` // fraction of μ·g usable under braking
}

// DefaultFrictionLimited returns a dry-asphalt road car envelope.
func DefaultFrictionLimited() FrictionLimited {
	return FrictionLimited{Mu: 1.1, Gravity: StandardGravity, BrakeEfficiency: 0.8}
}

func (f FrictionLimited) decel() float64 {
	eff := f.BrakeEfficiency
	if eff <= 0 {
		eff = 1
	}
	return f.Mu * f.Gravity * eff
}

func (f FrictionLimited) BrakingDistance(v float64) float64 {
	return f.BrakingDistanceTo(v, 0)
}

func (f FrictionLimited) BrakingDistanceTo(v, targetV float64) float64 {
	a := f.decel()
	if a <= 0 {
		return math.Inf(1)
	}
	if v <= targetV {
		return 0
	}
	return (v*v - targetV*targetV) / (2 * a)
}

func (f FrictionLimited) VelocityAfterBraking(v0, dist float64) float64 {
	a := f.decel()
	if a <= 0 {
		return v0
	}
	return math.Sqrt(math.Max(0, v0*v0-2*a*dist))
}

func (f FrictionLimited) CornerSpeed(radius float64) float64 {
	if radius <= 0 || f.Mu <= 0 || f.Gravity <= 0 {
		return 0
	}
	return math.Sqrt(f.Mu * f.Gravity * radius)
}

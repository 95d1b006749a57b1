package kinematics

import "math"

// ConstantModelName is the JSON discriminator string for the ConstantDeceleration model.
const ConstantModelName = "constant"

// ConstantDeceleration implements Model using fixed braking and lateral
// acceleration limits, e.g. measured values for a specific car.
//
// JSON discriminator: "model": "constant"
type ConstantDeceleration struct {
	ADcc float64 `json:"a_dcc"` // braking deceleration, m/s² (positive)
	ALat float64 `json:"a_lat"` // sustained lateral acceleration, m/s²
}

func (c ConstantDeceleration) BrakingDistance(v float64) float64 {
	if c.ADcc <= 0 {
		return math.Inf(1)
	}
	return (v * v) / (2 * c.ADcc)
}

func (c ConstantDeceleration) BrakingDistanceTo(v, targetV float64) float64 {
	if c.ADcc <= 0 {
		return math.Inf(1)
	}
	if v <= targetV {
		return 0
	}
	return (v*v - targetV*targetV) / (2 * c.ADcc)
}

func (c ConstantDeceleration) VelocityAfterBraking(v0, dist float64) float64 {
	if c.ADcc <= 0 {
		return v0
	}
	return math.Sqrt(math.Max(0, v0*v0-2*c.ADcc*dist))
}

func (c ConstantDeceleration) CornerSpeed(radius float64) float64 {
	if radius <= 0 || c.ALat <= 0 {
		return 0
	}
	return math.Sqrt(c.ALat * radius)
}

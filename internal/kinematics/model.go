// Package kinematics defines the Model interface describing a vehicle's
// longitudinal and lateral grip envelope, along with built-in implementations.
//
// The AI driver only talks to Model: it asks how far it needs to stop and how
// fast a corner of a given radius can be taken. Adding a new model requires
// implementing Model and registering it in Decode.
package kinematics

import (
	"encoding/json"
	"fmt"
)

// StandardGravity in m/s².
const StandardGravity = 9.81

// Model is the grip-envelope contract every kinematics implementation must satisfy.
// All distance values are in metres, velocities in m/s, and radii in metres.
type Model interface {
	// BrakingDistance returns the minimum distance needed to stop from velocity v.
	BrakingDistance(v float64) float64

	// BrakingDistanceTo returns the distance needed to decelerate from v to targetV.
	// Returns 0 if v ≤ targetV.
	BrakingDistanceTo(v, targetV float64) float64

	// VelocityAfterBraking returns the velocity reached after braking from v0 over dist metres.
	VelocityAfterBraking(v0, dist float64) float64

	// CornerSpeed returns the highest steady speed for a turn of the given radius.
	// A non-positive radius returns 0; an infinite radius returns +Inf.
	CornerSpeed(radius float64) float64
}

// modelDisc is the minimum JSON structure needed to read the model discriminator.
type modelDisc struct {
	Model string `json:"model"`
}

// Decode resolves a JSON object with a "model" discriminator into a concrete Model.
// An empty message yields the default friction-limited model.
//
// Supported models:
//   - "friction": tyre friction coefficient and gravity.
//   - "constant": fixed braking and lateral accelerations.
func Decode(raw json.RawMessage) (Model, error) {
	if len(raw) == 0 {
		return DefaultFrictionLimited(), nil
	}
	var disc modelDisc
	if err := json.Unmarshal(raw, &disc); err != nil {
		return nil, fmt.Errorf("reading kinematics model discriminator: %w", err)
	}
	switch disc.Model {
	case FrictionModelName, "":
		k := DefaultFrictionLimited()
		if err := json.Unmarshal(raw, &k); err != nil {
			return nil, fmt.Errorf("parsing friction kinematics: %w", err)
		}
		return k, nil
	case ConstantModelName:
		var k ConstantDeceleration
		if err := json.Unmarshal(raw, &k); err != nil {
			return nil, fmt.Errorf("parsing constant kinematics: %w", err)
		}
		return k, nil
	default:
		return nil, fmt.Errorf("unknown kinematics model %q", disc.Model)
	}
}

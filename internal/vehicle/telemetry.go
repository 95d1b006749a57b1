package vehicle

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/cxd309/vehicle-sim/internal/numeric"
	"github.com/cxd309/vehicle-sim/internal/powertrain"
	"github.com/cxd309/vehicle-sim/internal/stability"
	"github.com/cxd309/vehicle-sim/internal/tire"
)

// Telemetry is a read-only snapshot of a vehicle after its last tick.
type Telemetry struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
	HalfWidth       float64
	HalfLength      float64

	EngineRPM     float64
	EngineRunning bool
	Gear          powertrain.GearboxState
	ClutchInput   float64
	Command       Command
	Stability     stability.Flags
	Wheels        []tire.WheelState

	BlowOffs    int // engine notifications since the start
	LimiterCuts int
}

// Forward returns the unit heading.
func (t Telemetry) Forward() mgl64.Vec3 { return t.Rotation.Rotate(mgl64.Vec3{0, 0, 1}) }

// Yaw returns the heading angle in radians.
func (t Telemetry) Yaw() float64 { return numeric.Yaw(t.Rotation) }

// Speed returns the planar speed in m/s.
func (t Telemetry) Speed() float64 { return numeric.Flatten(t.Velocity).Len() }

// SpeedKph returns the planar speed in km/h.
func (t Telemetry) SpeedKph() float64 { return t.Speed() * numeric.MpsToKph }

// ForwardSpeed returns the velocity along the heading in m/s, negative when
// rolling backwards.
func (t Telemetry) ForwardSpeed() float64 { return t.Velocity.Dot(t.Forward()) }

// ToLocal expresses a world point in the vehicle frame.
func (t Telemetry) ToLocal(world mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Inverse().Rotate(world.Sub(t.Position))
}

package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"

	"github.com/cxd309/vehicle-sim/internal/numeric"
	"github.com/cxd309/vehicle-sim/internal/powertrain"
	"github.com/cxd309/vehicle-sim/internal/stability"
	"github.com/cxd309/vehicle-sim/internal/tire"
)

// AxleConfig groups a left and a right wheel by index into Config.Wheels.
type AxleConfig struct {
	Name         string                        `json:"name"`
	Left         int                           `json:"left"`
	Right        int                           `json:"right"`
	Steer        bool                          `json:"steer"`
	Power        bool                          `json:"power"`
	Brake        bool                          `json:"brake"`
	Handbrake    bool                          `json:"handbrake"`
	Differential powertrain.DifferentialConfig `json:"differential"`
}

// Config holds the static parameters of a vehicle type.
type Config struct {
	Name       string  `json:"name"`
	Mass       float64 `json:"mass"` // kg
	HalfWidth  float64 `json:"half_width"`
	HalfLength float64 `json:"half_length"`
	CGHeight   float64 `json:"cg_height"`

	Wheels    []tire.WheelConfig    `json:"wheels"`
	Axles     []AxleConfig          `json:"axles"`
	Materials []tire.GroundMaterial `json:"ground_materials,omitempty"`

	Engine    powertrain.EngineConfig  `json:"engine"`
	Clutch    powertrain.ClutchConfig  `json:"clutch"`
	Gearbox   powertrain.GearboxConfig `json:"gearbox"`
	Stability stability.Config         `json:"stability"`

	MaxSteerAngle         float64 `json:"max_steer_angle"`         // degrees
	SteerSpeedSensitivity float64 `json:"steer_speed_sensitivity"` // share of lock removed at steerReferenceKph
	CenterSplit           float64 `json:"center_split"`            // front share of drive torque when both axles are powered
	AeroDrag              float64 `json:"aero_drag"`               // N per (m/s)²
	StartDelayed          bool    `json:"start_delayed,omitempty"` // run the engine start sequence instead of starting at idle
}

// steerReferenceKph is the speed at which the full steer speed sensitivity applies.
const steerReferenceKph = 200

// DefaultConfig returns a rear-wheel-drive saloon.
func DefaultConfig() Config {
	const track, front, rear = 0.8, 1.35, -1.35
	rearDiff := powertrain.DefaultDifferentialConfig()
	return Config{
		Name:       "saloon",
		Mass:       1400,
		HalfWidth:  0.9,
		HalfLength: 2.25,
		CGHeight:   0.5,
		Wheels: []tire.WheelConfig{
			tire.DefaultWheelConfig("front_left", tire.Front, mgl64.Vec3{-track, 0, front}),
			tire.DefaultWheelConfig("front_right", tire.Front, mgl64.Vec3{track, 0, front}),
			tire.DefaultWheelConfig("rear_left", tire.Rear, mgl64.Vec3{-track, 0, rear}),
			tire.DefaultWheelConfig("rear_right", tire.Rear, mgl64.Vec3{track, 0, rear}),
		},
		Axles: []AxleConfig{
			{Name: "front", Left: 0, Right: 1, Steer: true, Brake: true},
			{Name: "rear", Left: 2, Right: 3, Power: true, Brake: true, Handbrake: true, Differential: rearDiff},
		},
		Engine:                powertrain.DefaultEngineConfig(),
		Clutch:                powertrain.DefaultClutchConfig(),
		Gearbox:               powertrain.DefaultGearboxConfig(),
		Stability:             stability.DefaultConfig(),
		MaxSteerAngle:         35,
		SteerSpeedSensitivity: 0.5,
		CenterSplit:           0.4,
		AeroDrag:              0.4,
	}
}

// Sanitize clamps out-of-range values in place and drops axles that point at
// wheels that do not exist.
func (c *Config) Sanitize() {
	if c.Mass <= 0 {
		c.Mass = 1400
	}
	c.HalfWidth = math.Max(0.3, c.HalfWidth)
	c.HalfLength = math.Max(0.3, c.HalfLength)
	c.CGHeight = math.Max(0, c.CGHeight)
	c.MaxSteerAngle = lo.Clamp(c.MaxSteerAngle, 0, 60)
	c.SteerSpeedSensitivity = numeric.Clamp01(c.SteerSpeedSensitivity)
	c.CenterSplit = numeric.Clamp01(c.CenterSplit)
	c.AeroDrag = math.Max(0, c.AeroDrag)

	n := len(c.Wheels)
	c.Axles = lo.Filter(c.Axles, func(a AxleConfig, _ int) bool {
		return a.Left >= 0 && a.Left < n && a.Right >= 0 && a.Right < n && a.Left != a.Right
	})
}

// WheelLocals returns the wheel mounting points in body space, in wheel order.
func (c Config) WheelLocals() []mgl64.Vec3 {
	return lo.Map(c.Wheels, func(w tire.WheelConfig, _ int) mgl64.Vec3 { return w.LocalPosition })
}

// SteerAngle returns the wheel angle in degrees for a steer input at speedKph.
func (c Config) SteerAngle(steer, speedKph float64) float64 {
	k := 1 - c.SteerSpeedSensitivity*numeric.Clamp01(math.Abs(speedKph)/steerReferenceKph)
	return lo.Clamp(steer, -1, 1) * c.MaxSteerAngle * k
}

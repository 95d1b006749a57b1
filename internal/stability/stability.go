// Package stability observes wheel slip after integration and writes
// corrections back: brake and drive-torque cuts consumed by the wheels on the
// next tick, plus helper velocity changes applied to the body immediately.
package stability

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"

	"github.com/cxd309/vehicle-sim/internal/numeric"
	"github.com/cxd309/vehicle-sim/internal/physics"
	"github.com/cxd309/vehicle-sim/internal/tire"
)

const (
	// helper strengths are expressed per step of this length
	referenceStep = 0.02
	// below this speed the velocity heading is too noisy to act on
	minHelperSpeed   = 2.0
	factorSmoothTime = 0.25
	gravity          = 9.81
	// the drift limiter needs at least this grounded share to grip against
	minGroundedFactor = 0.5
)

// Config holds the switches and gains of every assist.
type Config struct {
	ABS          bool    `json:"abs"`
	ABSThreshold float64 `json:"abs_threshold"`
	ABSIntensity float64 `json:"abs_intensity"`

	ESP          bool    `json:"esp"`
	ESPThreshold float64 `json:"esp_threshold"`
	ESPIntensity float64 `json:"esp_intensity"`
	ESPMaxBrake  float64 `json:"esp_max_brake"` // Nm at full intensity and slip

	TCS          bool    `json:"tcs"`
	TCSThreshold float64 `json:"tcs_threshold"`
	TCSIntensity float64 `json:"tcs_intensity"`

	SteerHelper        bool    `json:"steer_helper"`
	SteerHelperLinear  float64 `json:"steer_helper_linear"`
	SteerHelperAngular float64 `json:"steer_helper_angular"`

	TractionHelper         bool    `json:"traction_helper"`
	TractionHelperStrength float64 `json:"traction_helper_strength"`
	TractionHelperFloor    float64 `json:"traction_helper_floor"`

	AngularDrag       bool    `json:"angular_drag"`
	AngularDragPerKph float64 `json:"angular_drag_per_kph"`
	AngularDragMax    float64 `json:"angular_drag_max"`

	DriftAngleLimiter bool    `json:"drift_angle_limiter"`
	MaxDriftAngle     float64 `json:"max_drift_angle"` // degrees
}

// DefaultConfig enables ABS, ESP, TCS and both helpers.
func DefaultConfig() Config {
	return Config{
		ABS: true, ABSThreshold: 0.35, ABSIntensity: 0.75,
		ESP: true, ESPThreshold: 0.5, ESPIntensity: 0.5, ESPMaxBrake: 1500,
		TCS: true, TCSThreshold: 0.5, TCSIntensity: 0.5,
		SteerHelper: true, SteerHelperLinear: 0.1, SteerHelperAngular: 0.1,
		TractionHelper: true, TractionHelperStrength: 0.1, TractionHelperFloor: 0.2,
		AngularDragPerKph: 0.001, AngularDragMax: 1,
		MaxDriftAngle: 35,
	}
}

// Sanitize clamps out-of-range values in place.
func (c *Config) Sanitize() {
	c.ABSThreshold = math.Max(0.01, c.ABSThreshold)
	c.ABSIntensity = numeric.Clamp01(c.ABSIntensity)
	c.ESPThreshold = math.Max(0.01, c.ESPThreshold)
	c.ESPIntensity = numeric.Clamp01(c.ESPIntensity)
	c.ESPMaxBrake = math.Max(0, c.ESPMaxBrake)
	c.TCSThreshold = math.Max(0.01, c.TCSThreshold)
	c.TCSIntensity = numeric.Clamp01(c.TCSIntensity)
	c.SteerHelperLinear = numeric.Clamp01(c.SteerHelperLinear)
	c.SteerHelperAngular = numeric.Clamp01(c.SteerHelperAngular)
	c.TractionHelperStrength = math.Max(0, c.TractionHelperStrength)
	c.TractionHelperFloor = numeric.Clamp01(c.TractionHelperFloor)
	c.AngularDragPerKph = math.Max(0, c.AngularDragPerKph)
	c.AngularDragMax = math.Max(0, c.AngularDragMax)
	c.MaxDriftAngle = lo.Clamp(c.MaxDriftAngle, 1, 90)
}

// Wheel is the part of a wheel unit the controller reads and corrects.
type Wheel interface {
	State() tire.WheelState
	Correct() *tire.Corrections
}

// WheelRef places a wheel on the vehicle.
type WheelRef struct {
	Wheel   Wheel
	Side    float64 // -1 left, +1 right
	Front   bool
	Powered bool
	Braked  bool
}

// Inputs are the driver commands and drivetrain direction of the current tick.
type Inputs struct {
	Steer     float64
	Brake     float64
	Direction float64 // +1 forward gear, -1 reverse, 0 neutral
}

// Flags report which systems acted this tick.
type Flags struct {
	ABS              bool    `json:"abs"`
	ESP              bool    `json:"esp"`
	TCS              bool    `json:"tcs"`
	Understeer       bool    `json:"understeer"`
	Oversteer        bool    `json:"oversteer"`
	DriftAngle       float64 `json:"drift_angle"` // degrees, positive when sliding toward +X
	WheelForceFactor float64 `json:"wheel_force_factor"`
	GroundedFactor   float64 `json:"grounded_factor"`
}

// Controller runs the assists. Only the two smoothed grounding factors carry
// over between ticks.
type Controller struct {
	cfg              Config
	wheelForceFactor float64
	groundedFactor   float64
	flags            Flags
}

// New returns a controller; the grounding factors start fully grounded.
func New(cfg Config) *Controller {
	cfg.Sanitize()
	return &Controller{cfg: cfg, wheelForceFactor: 1, groundedFactor: 1}
}

func (c *Controller) Config() Config { return c.cfg }
func (c *Controller) Flags() Flags   { return c.flags }

// Tick inspects the wheels after integration and applies corrections.
func (c *Controller) Tick(dt float64, body physics.Body, wheels []WheelRef, in Inputs) Flags {
	c.flags = Flags{}
	if len(wheels) == 0 || dt <= 0 {
		return c.flags
	}
	c.updateFactors(dt, body, wheels)

	if c.cfg.ABS {
		c.abs(wheels, in)
	}
	if c.cfg.ESP {
		c.esp(wheels, in)
	}
	if c.cfg.TCS {
		c.tcs(wheels, in)
	}

	localVel := physics.LocalVelocity(body)
	speed := math.Hypot(localVel.X(), localVel.Z())
	if speed >= minHelperSpeed {
		c.flags.DriftAngle = mgl64.RadToDeg(math.Atan2(localVel.X(), math.Abs(localVel.Z())))
	}

	if c.cfg.TractionHelper {
		c.tractionHelper(body, wheels, in)
	}
	if c.cfg.SteerHelper && speed >= minHelperSpeed {
		c.steerHelper(dt, body)
	}
	if c.cfg.AngularDrag {
		body.SetAngularDrag(math.Min(c.cfg.AngularDragMax, speed*numeric.MpsToKph*c.cfg.AngularDragPerKph))
	}
	if c.cfg.DriftAngleLimiter && speed >= minHelperSpeed && c.groundedFactor >= minGroundedFactor {
		c.limitDriftAngle(body)
	}

	c.flags.WheelForceFactor = c.wheelForceFactor
	c.flags.GroundedFactor = c.groundedFactor
	return c.flags
}

// updateFactors smooths grounding confidence: average contact load against
// static per-wheel weight, and the share of wheels on the ground.
func (c *Controller) updateFactors(dt float64, body physics.Body, wheels []WheelRef) {
	static := body.Mass() * gravity / float64(len(wheels))
	load := lo.SumBy(wheels, func(w WheelRef) float64 { return w.Wheel.State().Load }) / float64(len(wheels))
	grounded := lo.CountBy(wheels, func(w WheelRef) bool { return w.Wheel.State().Grounded })

	var force float64
	if static > 0 {
		force = numeric.Clamp01(load / static)
	}
	c.wheelForceFactor = numeric.LowPass(c.wheelForceFactor, force, factorSmoothTime, dt)
	c.groundedFactor = numeric.LowPass(c.groundedFactor, float64(grounded)/float64(len(wheels)), factorSmoothTime, dt)
}

func (c *Controller) abs(wheels []WheelRef, in Inputs) {
	if in.Brake <= 0 {
		return
	}
	for _, w := range wheels {
		if !w.Braked {
			continue
		}
		if math.Abs(w.Wheel.State().ForwardSlip)*in.Brake >= c.cfg.ABSThreshold {
			w.Wheel.Correct().ABSCut = c.cfg.ABSIntensity
			c.flags.ABS = true
		}
	}
}

func axleSlip(wheels []WheelRef, front bool) float64 {
	return lo.SumBy(wheels, func(w WheelRef) float64 {
		if w.Front != front {
			return 0
		}
		return w.Wheel.State().SidewaysSlip
	})
}

// esp brakes the outer wheel of the sliding axle. The outer side is the one
// the axle slides toward, which is the sign of its summed sideways slip.
func (c *Controller) esp(wheels []WheelRef, in Inputs) {
	front, rear := axleSlip(wheels, true), axleSlip(wheels, false)
	c.flags.Understeer = math.Abs(front) >= c.cfg.ESPThreshold
	c.flags.Oversteer = math.Abs(rear) >= c.cfg.ESPThreshold
	if !c.flags.Understeer && !c.flags.Oversteer {
		return
	}
	c.flags.ESP = true

	brakeOuter := func(isFront bool, slip, weight float64) {
		side := numeric.Sign(slip)
		torque := math.Min(1, math.Abs(slip)) * c.cfg.ESPIntensity * c.cfg.ESPMaxBrake * weight
		for _, w := range wheels {
			if w.Front == isFront && w.Side == side {
				w.Wheel.Correct().ESPBrake += torque
			}
		}
	}
	if c.flags.Understeer {
		brakeOuter(true, front, 1)
	}
	if c.flags.Oversteer {
		brakeOuter(false, rear, 2)
	}

	cut := c.cfg.ESPIntensity * numeric.Clamp01(math.Max(math.Abs(front), math.Abs(rear)))
	for _, w := range wheels {
		if w.Powered {
			w.Wheel.Correct().ESPCut = cut
			w.Wheel.Correct().Direction = in.Direction
		}
	}
}

func (c *Controller) tcs(wheels []WheelRef, in Inputs) {
	if in.Direction == 0 {
		return
	}
	for _, w := range wheels {
		if !w.Powered {
			continue
		}
		slip := w.Wheel.State().ForwardSlip
		if math.Abs(slip) >= c.cfg.TCSThreshold && numeric.Sign(slip) == numeric.Sign(in.Direction) {
			w.Wheel.Correct().TCSCut = c.cfg.TCSIntensity
			w.Wheel.Correct().Direction = in.Direction
			c.flags.TCS = true
		}
	}
}

// tractionHelper softens the front axle while the slide opposes the steering.
// The softening fades with the grounded share of wheels.
func (c *Controller) tractionHelper(body physics.Body, wheels []WheelRef, in Inputs) {
	if c.flags.DriftAngle*in.Steer >= 0 {
		return
	}
	yawRate := body.AngularVelocity().Y()
	mult := math.Max(c.cfg.TractionHelperFloor, 1-numeric.Clamp01(c.cfg.TractionHelperStrength*math.Abs(yawRate)))
	mult = numeric.Lerp(1, mult, c.groundedFactor)
	for _, w := range wheels {
		if w.Front {
			w.Wheel.Correct().TractionHelper = mult
		}
	}
}

// steerHelper removes part of the lateral velocity and damps yaw that grows
// the slide, both scaled by the squared wheel force factor.
func (c *Controller) steerHelper(dt float64, body physics.Body) {
	f2 := c.wheelForceFactor * c.wheelForceFactor
	steps := dt / referenceStep

	rot := body.Rotation()
	local := rot.Inverse().Rotate(body.Velocity())
	kLin := 1 - math.Pow(1-c.cfg.SteerHelperLinear*f2, steps)
	local[0] *= 1 - kLin
	body.SetVelocity(rot.Rotate(local))

	yawRate := body.AngularVelocity().Y()
	if yawRate*c.flags.DriftAngle < 0 {
		kAng := 1 - math.Pow(1-c.cfg.SteerHelperAngular*f2, steps)
		body.SetAngularVelocity(mgl64.Vec3{0, yawRate * (1 - kAng), 0})
	}
}

// limitDriftAngle stops the yaw that would push the slide past the limit.
func (c *Controller) limitDriftAngle(body physics.Body) {
	if math.Abs(c.flags.DriftAngle) <= c.cfg.MaxDriftAngle {
		return
	}
	yawRate := body.AngularVelocity().Y()
	if yawRate*c.flags.DriftAngle < 0 {
		body.SetAngularVelocity(mgl64.Vec3{})
	}
}

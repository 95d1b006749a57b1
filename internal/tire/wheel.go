// Package tire implements the wheel unit: it turns motor and brake torque into
// wheel spin and tyre forces on the vehicle body using slip-based friction
// curves, and reports slip, spin and temperature back to the drivetrain.
package tire

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/cxd309/vehicle-sim/internal/numeric"
	"github.com/cxd309/vehicle-sim/internal/physics"
)

// ErrModelUnset is returned when a wheel has no usable radius or mass.
var ErrModelUnset = errors.New("wheel model unset")

const (
	minTemperature = 20.0
	maxTemperature = 125.0
	motorDeadband  = 1.0 // Nm
	gravity        = 9.81
)

// Axle tells a wheel where it sits; drift mode biases front and rear differently.
type Axle string

const (
	Front Axle = "front"
	Rear  Axle = "rear"
)

// WheelConfig describes one wheel.
type WheelConfig struct {
	Name               string        `json:"name"`
	LocalPosition      mgl64.Vec3    `json:"local_position"`
	Axle               Axle          `json:"axle"`
	Radius             float64       `json:"radius"`
	Mass               float64       `json:"mass"`
	MaxMotorTorque     float64       `json:"max_motor_torque"` // 0 means unlimited
	MaxBrakeTorque     float64       `json:"max_brake_torque"`
	MaxHandbrakeTorque float64       `json:"max_handbrake_torque"`
	Forward            FrictionCurve `json:"forward_friction"`
	Sideways           FrictionCurve `json:"sideways_friction"`
	SlipFilterTime     float64       `json:"slip_filter_time"`
	LateralDamping     float64       `json:"lateral_damping"` // share of contact-patch lateral velocity removable per step
	HeatRate           float64       `json:"heat_rate"`       // °C/s per unit of slip above the skid threshold
	CoolRate           float64       `json:"cool_rate"`       // °C/s
	DeflatedRadius     float64       `json:"deflated_radius_multiplier"`
	DeflatedStiffness  float64       `json:"deflated_stiffness_multiplier"`
	DriftMode          bool          `json:"drift_mode"`
	DriftReference     float64       `json:"drift_reference_speed"` // lateral m/s at which drift bias saturates
}

// DefaultWheelConfig returns a road wheel on the given axle.
func DefaultWheelConfig(name string, axle Axle, local mgl64.Vec3) WheelConfig {
	cfg := WheelConfig{
		Name:              name,
		LocalPosition:     local,
		Axle:              axle,
		Radius:            0.34,
		Mass:              20,
		MaxBrakeTorque:    2000,
		Forward:           DefaultForwardCurve(),
		Sideways:          DefaultSidewaysCurve(),
		SlipFilterTime:    0.05,
		LateralDamping:    0.9,
		HeatRate:          15,
		CoolRate:          2,
		DeflatedRadius:    0.5,
		DeflatedStiffness: 0.5,
		DriftReference:    6,
	}
	if axle == Rear {
		cfg.MaxHandbrakeTorque = 3000
	}
	return cfg
}

// Sanitize clamps out-of-range values in place. Radius and mass are left for
// NewWheel to reject.
func (c *WheelConfig) Sanitize() {
	if c.Axle != Rear {
		c.Axle = Front
	}
	c.MaxMotorTorque = math.Max(0, c.MaxMotorTorque)
	c.MaxBrakeTorque = math.Max(0, c.MaxBrakeTorque)
	c.MaxHandbrakeTorque = math.Max(0, c.MaxHandbrakeTorque)
	c.Forward.Sanitize()
	c.Sideways.Sanitize()
	c.SlipFilterTime = math.Max(0, c.SlipFilterTime)
	c.LateralDamping = numeric.Clamp01(c.LateralDamping)
	c.HeatRate = math.Max(0, c.HeatRate)
	c.CoolRate = math.Max(0, c.CoolRate)
	if c.DeflatedRadius <= 0 || c.DeflatedRadius > 1 {
		c.DeflatedRadius = 0.5
	}
	c.DeflatedStiffness = numeric.Clamp01(c.DeflatedStiffness)
	if c.DriftReference <= 0 {
		c.DriftReference = 6
	}
}

// Corrections are written by the stability controller during a tick and
// consumed, then reset, by the next ApplyTorque.
type Corrections struct {
	ABSCut         float64 // 0..1 share of brake torque removed
	ESPCut         float64 // 0..1 share of drive torque removed
	TCSCut         float64 // 0..1 share of drive torque removed
	ESPBrake       float64 // Nm added to the brake
	TractionHelper float64 // sideways stiffness multiplier, 0 means none
	Direction      float64 // sign of drive torque the cuts apply to, 0 means forward
}

// WheelState is the read-only view of a wheel.
type WheelState struct {
	MotorTorqueNm  float64 `json:"motor_torque_nm"`
	BrakeTorqueNm  float64 `json:"brake_torque_nm"`
	SteerAngleDeg  float64 `json:"steer_angle_deg"`
	ForwardSlip    float64 `json:"forward_slip"`
	SidewaysSlip   float64 `json:"sideways_slip"`
	GroundMaterial int     `json:"ground_material"`
	Grounded       bool    `json:"grounded"`
	Temperature    float64 `json:"temperature"`
	Deflated       bool    `json:"deflated"`
	Skidding       bool    `json:"skidding"`
	RPM            float64 `json:"rpm"`
	Radius         float64 `json:"radius"`
	Load           float64 `json:"load"`
	ForwardForce   float64 `json:"forward_force"`
	SidewaysForce  float64 `json:"sideways_force"`
}

// Wheel is one wheel unit.
type Wheel struct {
	cfg       WheelConfig
	materials []GroundMaterial
	state     WheelState
	corr      Corrections

	omega          float64 // rad/s
	originalRadius float64
	stiffness      float64 // deflation multiplier
	handbrake      float64
	helper         float64 // traction helper multiplier for the current tick
	err            error
}

// NewWheel builds a wheel. A config without radius or mass yields a disabled
// wheel whose Err reports ErrModelUnset; it never produces force.
func NewWheel(cfg WheelConfig, materials []GroundMaterial) *Wheel {
	cfg.Sanitize()
	if len(materials) == 0 {
		materials = DefaultGroundMaterials()
	}
	ms := make([]GroundMaterial, len(materials))
	for i, m := range materials {
		m.Sanitize()
		ms[i] = m
	}
	w := &Wheel{
		cfg:            cfg,
		materials:      ms,
		originalRadius: cfg.Radius,
		stiffness:      1,
		helper:         1,
	}
	w.state.Radius = cfg.Radius
	w.state.Temperature = minTemperature
	if cfg.Radius <= 0 || cfg.Mass <= 0 {
		w.err = errors.Wrapf(ErrModelUnset, "wheel %q: radius %.3f mass %.3f", cfg.Name, cfg.Radius, cfg.Mass)
	}
	return w
}

func (w *Wheel) Config() WheelConfig { return w.cfg }
func (w *Wheel) State() WheelState   { return w.state }
func (w *Wheel) Err() error          { return w.err }
func (w *Wheel) Disabled() bool      { return w.err != nil }
func (w *Wheel) RPM() float64        { return w.state.RPM }
func (w *Wheel) Radius() float64     { return w.state.Radius }

// AngularVelocity returns the spin in rad/s, positive when rolling forward.
func (w *Wheel) AngularVelocity() float64 { return w.omega }

// Correct exposes the correction fields for the current tick.
func (w *Wheel) Correct() *Corrections { return &w.corr }

// SetSteerAngle sets the steer angle in degrees, positive toward +X.
func (w *Wheel) SetSteerAngle(deg float64) { w.state.SteerAngleDeg = deg }

// SetHandbrake sets the handbrake input (0..1).
func (w *Wheel) SetHandbrake(input float64) { w.handbrake = numeric.Clamp01(input) }

// Deflate halves the effective radius (by the configured multiplier) and
// softens the tyre. Calling it twice has no further effect.
func (w *Wheel) Deflate() {
	if w.state.Deflated {
		return
	}
	w.state.Deflated = true
	w.state.Radius = w.originalRadius * w.cfg.DeflatedRadius
	w.stiffness = w.cfg.DeflatedStiffness
}

// Inflate restores the cached radius and stiffness.
func (w *Wheel) Inflate() {
	w.state.Deflated = false
	w.state.Radius = w.originalRadius
	w.stiffness = 1
}

// ApplyTorque loads motor and brake torque for this tick, consuming the
// pending corrections. Cuts only act on torque that drives the wheel in the
// correction's direction; engine braking passes.
func (w *Wheel) ApplyTorque(motor, brake float64) {
	c := w.corr
	w.corr = Corrections{}

	dir := numeric.Sign(c.Direction)
	if dir == 0 {
		dir = 1
	}
	if motor*dir > 0 {
		motor *= (1 - numeric.Clamp01(c.ESPCut)) * (1 - numeric.Clamp01(c.TCSCut))
	}
	if m := w.cfg.MaxMotorTorque; m > 0 {
		motor = math.Max(-m, math.Min(m, motor))
	}
	if math.Abs(motor) < motorDeadband {
		motor = 0
	}

	brake = math.Max(0, brake)
	if w.cfg.MaxBrakeTorque > 0 {
		brake = math.Min(brake, w.cfg.MaxBrakeTorque)
	}
	brake = brake*(1-numeric.Clamp01(c.ABSCut)) + math.Max(0, c.ESPBrake)
	brake += w.handbrake * w.cfg.MaxHandbrakeTorque

	w.helper = 1
	if c.TractionHelper > 0 {
		w.helper = c.TractionHelper
	}
	w.state.MotorTorqueNm = motor
	w.state.BrakeTorqueNm = math.Max(0, brake)
}

func (w *Wheel) inertia() float64 {
	r := w.state.Radius
	return math.Max(0.05, 0.5*w.cfg.Mass*r*r)
}

func (w *Wheel) material(index int) GroundMaterial {
	if index < 0 || index >= len(w.materials) {
		return w.materials[0]
	}
	return w.materials[index]
}

// curves returns the forward and sideways curves in effect for this tick.
func (w *Wheel) curves(m GroundMaterial, lateralSpeed float64) (FrictionCurve, FrictionCurve) {
	fwd := w.cfg.Forward.Scaled(m.ForwardStiffness)
	side := w.cfg.Sideways.Scaled(m.SidewaysStiffness)

	if w.cfg.MaxHandbrakeTorque > 0 && w.handbrake > 0 {
		k := 1 - w.handbrake/5
		fwd = fwd.Scaled(k)
		side = side.Scaled(k)
	}
	side = side.Scaled(w.helper)
	fwd = fwd.Scaled(w.stiffness)
	side = side.Scaled(w.stiffness)

	if w.cfg.DriftMode {
		k := numeric.Clamp01(lateralSpeed * lateralSpeed / (w.cfg.DriftReference * w.cfg.DriftReference))
		if w.cfg.Axle == Front {
			side.ExtremumValue *= 1 + 0.25*k
			side.AsymptoteValue *= 1 + 0.25*k
		} else {
			fwd.ExtremumValue *= 1 + 0.5*k
			fwd.AsymptoteValue *= 1 + 0.5*k
			side.ExtremumValue *= 1 - 0.35*k
			side.AsymptoteValue *= 1 - 0.35*k
		}
	}
	return fwd, side
}

// spin integrates motor and brake torque into the wheel spin. Brake torque
// slows the wheel toward zero and never reverses it.
func (w *Wheel) spin(dt float64) {
	i := w.inertia()
	w.omega += w.state.MotorTorqueNm / i * dt
	w.omega = numeric.MoveTowards(w.omega, 0, w.state.BrakeTorqueNm/i*dt)
}

// Integrate advances the wheel by dt against body, applying tyre forces to it.
// It returns the filtered forward and sideways slip and the ground material.
func (w *Wheel) Integrate(dt float64, body physics.Body) (forwardSlip, sidewaysSlip float64, material int) {
	if w.err != nil || dt <= 0 {
		return w.state.ForwardSlip, w.state.SidewaysSlip, w.state.GroundMaterial
	}

	w.spin(dt)
	contact := body.WheelContact(w.cfg.LocalPosition)
	w.state.Grounded = contact.Grounded
	w.state.GroundMaterial = contact.Material
	w.state.Load = contact.Force

	var rawFwd, rawSide float64
	w.state.ForwardForce, w.state.SidewaysForce = 0, 0
	m := w.material(contact.Material)

	if contact.Grounded && contact.Force > 0 {
		rot := body.Rotation().Mul(numeric.YawRotation(mgl64.DegToRad(w.state.SteerAngleDeg)))
		fwdAxis := rot.Rotate(mgl64.Vec3{0, 0, 1})
		sideAxis := rot.Rotate(mgl64.Vec3{1, 0, 0})

		v := body.PointVelocity(contact.Point)
		vx, vy := v.Dot(fwdAxis), v.Dot(sideAxis)
		r := w.state.Radius
		inertia := w.inertia()
		denom := math.Max(math.Abs(vx), 1)

		// rolling resistance acts like a light brake on the spin
		w.omega = numeric.MoveTowards(w.omega, 0, m.RollingResistance/inertia*dt)

		fwdCurve, sideCurve := w.curves(m, physics.LocalVelocity(body).X())
		load := contact.Force * m.Grip

		rawFwd = lo.Clamp((w.omega*r-vx)/denom, -1, 1)
		rawSide = lo.Clamp(vy/denom, -1, 1)

		fx := load * fwdCurve.Evaluate(rawFwd) * fwdCurve.Stiffness
		fxZero := (w.omega - vx/r) * inertia / (dt * r)
		fx = numeric.Sign(fxZero) * math.Min(math.Abs(fxZero), fx)

		fy := load * sideCurve.Evaluate(rawSide) * sideCurve.Stiffness
		fyZero := -vy * (contact.Force / gravity) * w.cfg.LateralDamping / dt
		fy = numeric.Sign(fyZero) * math.Min(math.Abs(fyZero), fy)

		if limit := load * math.Max(fwdCurve.Peak(), sideCurve.Peak()); limit > 0 {
			if total := math.Hypot(fx, fy); total > limit {
				fx *= limit / total
				fy *= limit / total
			}
		} else {
			fx, fy = 0, 0
		}

		w.omega -= fx * r / inertia * dt
		body.AddForceAtPosition(fwdAxis.Mul(fx).Add(sideAxis.Mul(fy)), contact.Point)
		w.state.ForwardForce, w.state.SidewaysForce = fx, fy
	}

	w.state.ForwardSlip = lo.Clamp(numeric.LowPass(w.state.ForwardSlip, rawFwd, w.cfg.SlipFilterTime, dt), -1, 1)
	w.state.SidewaysSlip = lo.Clamp(numeric.LowPass(w.state.SidewaysSlip, rawSide, w.cfg.SlipFilterTime, dt), -1, 1)
	w.state.RPM = w.omega * numeric.RadPerSToRPM

	combined := math.Hypot(w.state.ForwardSlip, w.state.SidewaysSlip)
	w.state.Skidding = contact.Grounded && combined > m.SkidThreshold
	if w.state.Skidding {
		w.state.Temperature += w.cfg.HeatRate * (combined - m.SkidThreshold + 0.1) * dt
	} else {
		w.state.Temperature -= w.cfg.CoolRate * dt
	}
	w.state.Temperature = lo.Clamp(w.state.Temperature, minTemperature, maxTemperature)

	return w.state.ForwardSlip, w.state.SidewaysSlip, w.state.GroundMaterial
}

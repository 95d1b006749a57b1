// Package vehicle assembles a drivable car from its components and runs the
// per-tick pipeline: input, gearbox, clutch, engine, torque delivery through
// the differentials, wheel integration and stability assists.
//
// Wheels live in a slice and are addressed by index for the whole session;
// axles, the stability controller and the telemetry all refer to them that way.
package vehicle

import (
	"log"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/cxd309/vehicle-sim/internal/numeric"
	"github.com/cxd309/vehicle-sim/internal/physics"
	"github.com/cxd309/vehicle-sim/internal/powertrain"
	"github.com/cxd309/vehicle-sim/internal/stability"
	"github.com/cxd309/vehicle-sim/internal/tire"
)

var (
	// ErrNoWheels disables a vehicle configured without wheels.
	ErrNoWheels = errors.New("vehicle has no wheels")
	// ErrWheelModelUnset is the cause of a wheel disabled for missing radius or mass.
	ErrWheelModelUnset = tire.ErrModelUnset
)

// axle is an assembled AxleConfig. diff is nil on unpowered axles.
type axle struct {
	cfg   AxleConfig
	front bool
	diff  *powertrain.Differential
}

// engineEvents counts the engine notifications for the telemetry.
type engineEvents struct {
	blowOffs    int
	limiterCuts int
}

func (e *engineEvents) BlowOff(float64) { e.blowOffs++ }
func (e *engineEvents) RevLimiterCut()  { e.limiterCuts++ }

// Vehicle is one simulated car. It is not safe for concurrent use; the
// simulation ticks every vehicle from a single goroutine.
type Vehicle struct {
	id     string
	cfg    Config
	body   physics.Body
	input  InputSource
	logger *log.Logger

	engine  *powertrain.Engine
	clutch  *powertrain.Clutch
	gearbox *powertrain.Gearbox
	axles   []axle
	wheels  []*tire.Wheel
	refs    []stability.WheelRef
	esc     *stability.Controller
	events  engineEvents

	cmd      Command
	flags    stability.Flags
	errs     []error
	reported bool
}

// New assembles a vehicle on body. Configuration errors do not fail
// construction: a vehicle without wheels is disabled and wheels without a
// model are left out of the force pipeline. Err reports the first of them and
// the logger (nil discards) receives each one once, on the first Tick.
func New(id string, cfg Config, body physics.Body, input InputSource, logger *log.Logger) *Vehicle {
	cfg.Sanitize()
	v := &Vehicle{
		id:      id,
		cfg:     cfg,
		body:    body,
		input:   input,
		logger:  logger,
		clutch:  powertrain.NewClutch(cfg.Clutch),
		gearbox: powertrain.NewGearbox(cfg.Gearbox),
		esc:     stability.New(cfg.Stability),
	}
	v.engine = powertrain.NewEngine(cfg.Engine, &v.events)
	if cfg.StartDelayed {
		v.engine.Start()
	} else {
		v.engine.StartImmediately()
	}

	if len(cfg.Wheels) == 0 {
		v.errs = append(v.errs, errors.Wrapf(ErrNoWheels, "vehicle %q", id))
		return v
	}

	v.wheels = lo.Map(cfg.Wheels, func(wc tire.WheelConfig, _ int) *tire.Wheel {
		return tire.NewWheel(wc, cfg.Materials)
	})
	for _, w := range v.wheels {
		if err := w.Err(); err != nil {
			v.errs = append(v.errs, errors.Wrapf(err, "vehicle %q", id))
		}
	}

	for _, ac := range cfg.Axles {
		a := axle{cfg: ac, front: v.wheels[ac.Left].Config().Axle == tire.Front}
		if ac.Power {
			a.diff = powertrain.NewDifferential(ac.Differential)
		}
		v.axles = append(v.axles, a)
	}

	v.refs = make([]stability.WheelRef, len(v.wheels))
	for i, w := range v.wheels {
		v.refs[i] = stability.WheelRef{
			Wheel: w,
			Side:  numeric.Sign(w.Config().LocalPosition.X()),
			Front: w.Config().Axle == tire.Front,
		}
	}
	for _, a := range v.axles {
		for i, side := range []int{a.cfg.Left, a.cfg.Right} {
			r := &v.refs[side]
			r.Side = float64(2*i - 1)
			r.Powered = r.Powered || a.cfg.Power
			r.Braked = r.Braked || a.cfg.Brake
		}
	}
	return v
}

// ID returns the identifier given at construction.
func (v *Vehicle) ID() string { return v.id }

func (v *Vehicle) Config() Config     { return v.cfg }
func (v *Vehicle) Body() physics.Body { return v.body }

// Err returns the first configuration error, or nil.
func (v *Vehicle) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return v.errs[0]
}

// Disabled reports whether the vehicle is out of the simulation for the session.
func (v *Vehicle) Disabled() bool { return len(v.wheels) == 0 }

// Wheel returns the wheel at index i, or nil.
func (v *Vehicle) Wheel(i int) *tire.Wheel {
	if i < 0 || i >= len(v.wheels) {
		return nil
	}
	return v.wheels[i]
}

// SetInput replaces the input source. nil holds the brake.
func (v *Vehicle) SetInput(in InputSource) { v.input = in }

func (v *Vehicle) report() {
	if v.reported {
		return
	}
	v.reported = true
	if v.logger == nil {
		return
	}
	for _, err := range v.errs {
		v.logger.Printf("configuration error, component disabled: %v", err)
	}
}

// Tick advances the vehicle by dt. The physics backend is stepped by the
// caller afterwards.
func (v *Vehicle) Tick(dt float64) {
	v.report()
	if v.Disabled() || dt <= 0 {
		return
	}

	cmd := Command{Brake: 1}
	if v.input != nil {
		cmd = v.input.Command(dt, v.Telemetry()).Clamp()
	}
	v.cmd = cmd
	v.selectGear(cmd)
	v.steer(cmd)

	v.gearbox.Tick(dt, v.engine.RPM(), cmd.Throttle)
	v.clutch.SetManualInput(cmd.Clutch)
	slip := v.clutch.Tick(dt, cmd.Throttle, v.engine.RPM(), v.gearbox.Shifting(), cmd.Handbrake > 0.1)
	v.engine.SetDrivenRPM(v.drivenRPM())
	engineSlip := slip
	if v.gearbox.Direction() == 0 {
		// neutral leaves the crank free whatever the pedal does
		engineSlip = 1
	}
	torque := v.engine.Tick(dt, cmd.Throttle, engineSlip)
	v.deliver(v.gearbox.Transmit(v.clutch.Transmit(torque)), cmd)

	for _, w := range v.wheels {
		w.Integrate(dt, v.body)
	}
	v.applyDrag()

	v.flags = v.esc.Tick(dt, v.body, v.refs, stability.Inputs{
		Steer:     cmd.Steer,
		Brake:     cmd.Brake,
		Direction: v.gearbox.Direction(),
	})
}

// selectGear follows the neutral and reverse requests of the command.
func (v *Vehicle) selectGear(cmd Command) {
	switch mode := v.gearbox.State().Mode; {
	case cmd.Neutral:
		if mode != powertrain.GearNeutral {
			v.gearbox.SelectNeutral()
		}
	case cmd.Reverse && mode != powertrain.GearReverse:
		v.gearbox.SelectReverse()
	case !cmd.Reverse && mode != powertrain.GearDrive:
		v.gearbox.SelectDrive()
	}
}

func (v *Vehicle) steer(cmd Command) {
	angle := v.cfg.SteerAngle(cmd.Steer, numeric.Flatten(v.body.Velocity()).Len()*numeric.MpsToKph)
	for _, a := range v.axles {
		if !a.cfg.Steer {
			continue
		}
		v.wheels[a.cfg.Left].SetSteerAngle(angle)
		v.wheels[a.cfg.Right].SetSteerAngle(angle)
	}
}

// drivenRPM is the crank speed implied by the powered wheels, averaged over
// the powered axles.
func (v *Vehicle) drivenRPM() float64 {
	powered := lo.Filter(v.axles, func(a axle, _ int) bool { return a.diff != nil })
	if len(powered) == 0 {
		return 0
	}
	return lo.SumBy(powered, func(a axle) float64 {
		wheelRPM := (v.wheels[a.cfg.Left].RPM() + v.wheels[a.cfg.Right].RPM()) / 2
		return v.gearbox.DrivenRPM(wheelRPM, a.diff.FinalDriveRatio())
	}) / float64(len(powered))
}

// axleShares returns the share of gearbox torque each axle receives. Front
// powered axles split centerSplit between them and rear ones the rest; when
// only one end is powered it takes everything.
func axleShares(axles []axle, centerSplit float64) []float64 {
	var front, rear int
	for _, a := range axles {
		switch {
		case a.diff == nil:
		case a.front:
			front++
		default:
			rear++
		}
	}
	frontShare, rearShare := centerSplit, 1-centerSplit
	switch {
	case front == 0:
		frontShare, rearShare = 0, 1
	case rear == 0:
		frontShare, rearShare = 1, 0
	}

	shares := make([]float64, len(axles))
	for i, a := range axles {
		switch {
		case a.diff == nil:
		case a.front:
			shares[i] = frontShare / float64(front)
		default:
			shares[i] = rearShare / float64(rear)
		}
	}
	return shares
}

// deliver splits the gearbox output through the differentials and loads every
// wheel with its motor, brake and handbrake torque for this tick.
func (v *Vehicle) deliver(gearboxTorque float64, cmd Command) {
	motor := make([]float64, len(v.wheels))
	brake := make([]float64, len(v.wheels))
	handbrake := make([]float64, len(v.wheels))

	for i, share := range axleShares(v.axles, v.cfg.CenterSplit) {
		a := v.axles[i]
		l, r := a.cfg.Left, a.cfg.Right
		if a.diff != nil {
			ol, or := a.diff.Tick(gearboxTorque*share, v.wheels[l].RPM(), v.wheels[r].RPM())
			motor[l] += ol
			motor[r] += or
		}
		if a.cfg.Brake {
			brake[l] = cmd.Brake * v.wheels[l].Config().MaxBrakeTorque
			brake[r] = cmd.Brake * v.wheels[r].Config().MaxBrakeTorque
		}
		if a.cfg.Handbrake {
			handbrake[l], handbrake[r] = cmd.Handbrake, cmd.Handbrake
		}
	}

	for i, w := range v.wheels {
		w.SetHandbrake(handbrake[i])
		w.ApplyTorque(motor[i], brake[i])
	}
}

func (v *Vehicle) applyDrag() {
	if v.cfg.AeroDrag <= 0 {
		return
	}
	vel := numeric.Flatten(v.body.Velocity())
	speed := vel.Len()
	if speed < 1e-3 {
		return
	}
	v.body.AddForceAtPosition(vel.Mul(-v.cfg.AeroDrag*speed), v.body.Position())
}

// Telemetry returns a snapshot of the vehicle after its last tick.
func (v *Vehicle) Telemetry() Telemetry {
	return Telemetry{
		Position:        v.body.Position(),
		Rotation:        v.body.Rotation(),
		Velocity:        v.body.Velocity(),
		AngularVelocity: v.body.AngularVelocity(),
		HalfWidth:       v.cfg.HalfWidth,
		HalfLength:      v.cfg.HalfLength,
		EngineRPM:       v.engine.RPM(),
		EngineRunning:   v.engine.Running(),
		Gear:            v.gearbox.State(),
		ClutchInput:     v.clutch.Input(),
		Command:         v.cmd,
		Stability:       v.flags,
		Wheels:          lo.Map(v.wheels, func(w *tire.Wheel, _ int) tire.WheelState { return w.State() }),
		BlowOffs:        v.events.blowOffs,
		LimiterCuts:     v.events.limiterCuts,
	}
}

// SpeedKph is the planar body speed in km/h.
func (v *Vehicle) SpeedKph() float64 {
	return numeric.Flatten(v.body.Velocity()).Len() * numeric.MpsToKph
}

// ForwardSpeed is the body velocity along its heading in m/s.
func (v *Vehicle) ForwardSpeed() float64 {
	return physics.LocalVelocity(v.body).Z()
}

// Heading returns the yaw in degrees, positive toward +X.
func (v *Vehicle) Heading() float64 {
	return mgl64.RadToDeg(numeric.Yaw(v.body.Rotation()))
}

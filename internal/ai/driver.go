// Package ai implements the autonomous driver: pure-pursuit steering toward a
// look-ahead point, curvature-limited target speed, PID throttle and brake
// blending, and a timed reverse when the car is stuck.
package ai

import (
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/cxd309/vehicle-sim/internal/kinematics"
	"github.com/cxd309/vehicle-sim/internal/numeric"
	"github.com/cxd309/vehicle-sim/internal/vehicle"
)

var (
	// ErrNoPath is reported when a path mode runs without waypoints.
	ErrNoPath = errors.New("no path")
	// ErrNoTarget is reported when a target mode runs without a target.
	ErrNoTarget = errors.New("no target")
)

// Target is anything the driver can follow or chase.
type Target interface {
	Position() mgl64.Vec3
	Velocity() mgl64.Vec3
}

// State is the driver's view of its last decision.
type State struct {
	Mode           Mode          `json:"mode"`
	WaypointIndex  int           `json:"waypoint_index"`
	TargetSpeedKph float64       `json:"target_speed_kph"`
	SafeSpeedKph   float64       `json:"safe_speed_kph"`
	TurnRadius     float64       `json:"turn_radius,omitempty"` // 0 when the scan is straight
	LookAhead      mgl64.Vec3    `json:"look_ahead"`
	HeadingError   float64       `json:"heading_error"` // degrees, positive to the right
	Recovery       RecoveryState `json:"recovery"`
	Holding        bool          `json:"holding,omitempty"` // no path or target, brake held
}

// Driver is an InputSource that drives a path or a target.
type Driver struct {
	cfg    Config
	model  kinematics.Model
	logger *log.Logger

	path   []Waypoint
	target Target
	index  int
	seek   bool

	pid   PID
	rec   recovery
	state State
	err   error
}

var _ vehicle.InputSource = (*Driver)(nil)

// NewDriver returns a driver. A nil model uses kinematics.DefaultFrictionLimited
// and a nil logger discards diagnostics.
func NewDriver(cfg Config, model kinematics.Model, logger *log.Logger) *Driver {
	cfg.Sanitize()
	if model == nil {
		model = kinematics.DefaultFrictionLimited()
	}
	d := &Driver{
		cfg:    cfg,
		model:  model,
		logger: logger,
		pid:    PID{Kp: cfg.Kp, Ki: cfg.Ki, Kd: cfg.Kd, IntegralLimit: cfg.IntegralLimit},
		rec:    newRecovery(),
		seek:   true,
	}
	d.state.Mode = cfg.Mode
	d.state.Recovery = d.rec.State
	return d
}

func (d *Driver) Config() Config { return d.cfg }
func (d *Driver) Mode() Mode     { return d.cfg.Mode }
func (d *Driver) State() State   { return d.state }

// Err returns the reason the driver is holding the brake, or nil.
func (d *Driver) Err() error { return d.err }

// SetPath replaces the waypoints; the nearest one ahead is sought next tick.
func (d *Driver) SetPath(path []Waypoint) {
	d.path = path
	d.seek = true
}

// SetTarget sets the followed or chased target. nil clears it.
func (d *Driver) SetTarget(t Target) { d.target = t }

// SetMode switches behaviour. Any change resets the speed controller, the
// stuck recovery and the waypoint index in one step.
func (d *Driver) SetMode(m Mode) {
	if m == d.cfg.Mode {
		return
	}
	d.cfg.Mode = m
	d.pid.Reset()
	d.rec = newRecovery()
	d.seek = true
	d.state = State{Mode: m, Recovery: d.rec.State}
}

// frame is the predicted vehicle pose.
type frame struct {
	pos mgl64.Vec3
	rot mgl64.Quat
}

func (f frame) forward() mgl64.Vec3 { return f.rot.Rotate(mgl64.Vec3{0, 0, 1}) }

func (f frame) toLocal(p mgl64.Vec3) mgl64.Vec3 { return f.rot.Inverse().Rotate(p.Sub(f.pos)) }

// predict extrapolates the pose dt ahead at constant velocity and yaw rate.
func predict(dt float64, t vehicle.Telemetry) frame {
	yaw := t.Yaw() + t.AngularVelocity.Y()*dt
	return frame{pos: t.Position.Add(numeric.Flatten(t.Velocity).Mul(dt)), rot: numeric.YawRotation(yaw)}
}

// Command implements vehicle.InputSource.
func (d *Driver) Command(dt float64, t vehicle.Telemetry) vehicle.Command {
	f := predict(dt, t)
	speedKph := t.SpeedKph()
	lookDist := math.Max(d.cfg.MinLookAhead, d.cfg.LookAheadPerKph*speedKph)

	var aim mgl64.Vec3
	var targetKph float64
	var err error
	if d.cfg.Mode.followsPath() {
		aim, targetKph, err = d.pathAim(f, t.Speed(), lookDist)
	} else {
		aim, targetKph, err = d.targetAim(f, t.Speed())
	}
	if err != nil {
		d.hold(err)
		return vehicle.Command{Brake: 1}
	}
	d.err = nil
	d.state.Holding = false

	local := f.toLocal(aim)
	heading := math.Atan2(local.X(), local.Z())
	steer := lo.Clamp(heading*d.cfg.SteerSensitivity, -1, 1)

	cmd := d.speedControl(dt, speedKph, targetKph, math.Abs(mgl64.RadToDeg(heading)))
	cmd.Steer = steer
	if d.rec.Advance(dt, cmd.Throttle, speedKph, d.cfg) {
		cmd = vehicle.Command{Steer: -steer, Throttle: d.cfg.ReverseThrottle, Reverse: true}
	}

	d.state.Mode = d.cfg.Mode
	d.state.TargetSpeedKph = targetKph
	d.state.LookAhead = aim
	d.state.HeadingError = mgl64.RadToDeg(heading)
	d.state.Recovery = d.rec.State
	return cmd.Clamp()
}

// hold records why the driver cannot drive and logs it once per cause.
func (d *Driver) hold(err error) {
	if d.err != err && d.logger != nil {
		d.logger.Printf("ai driver (%s): %v, holding brake", d.cfg.Mode, err)
	}
	d.err = err
	d.state.Mode = d.cfg.Mode
	d.state.Holding = true
	d.state.TargetSpeedKph = 0
}

// pathAim picks the steering point and the target speed for the path modes.
func (d *Driver) pathAim(f frame, speed, lookDist float64) (mgl64.Vec3, float64, error) {
	if len(d.path) == 0 {
		return mgl64.Vec3{}, 0, ErrNoPath
	}
	w := walker{path: d.path, loop: d.cfg.Loop}
	fwd := f.forward()
	if d.seek || d.index >= len(d.path) {
		d.index = nearestAhead(d.path, f.pos, fwd)
		d.seek = false
	}

	reach := d.cfg.ReachDistance
	if d.cfg.Mode == FollowWaypoints {
		reach = math.Max(reach, lookDist)
	}
	for range d.path {
		off := numeric.Flatten(d.path[d.index].Position.Sub(f.pos))
		passed := off.Dot(fwd) < 0 && off.Len() < lookDist
		if off.Len() > reach && !passed {
			break
		}
		n, ok := w.next(d.index)
		if !ok {
			break
		}
		d.index = n
	}
	d.state.WaypointIndex = d.index

	var aim mgl64.Vec3
	if d.cfg.Mode == RaceWaypoints {
		aim = w.pointAlong(f.pos, d.index, lookDist)
	} else {
		aim = d.path[d.index].Position
	}

	scan := d.cfg.ScanDistance + d.model.BrakingDistance(speed)
	radius, _ := w.tightestRadius(f.pos, d.index, scan, d.cfg.MinTurnRadius)
	target := d.cfg.MaxSpeedKph
	d.state.TurnRadius = 0
	d.state.SafeSpeedKph = target
	if !math.IsInf(radius, 1) {
		safe := d.model.CornerSpeed(radius) * numeric.MpsToKph
		d.state.TurnRadius = radius
		d.state.SafeSpeedKph = math.Min(safe, target)
		target = math.Min(target, safe)
	}
	if s := d.path[d.index].TargetSpeed; s > 0 {
		target = math.Min(target, s)
	}
	if rem := w.remaining(f.pos, d.index); !math.IsInf(rem, 1) {
		target = math.Min(target, d.stoppingSpeed(rem)*numeric.MpsToKph)
	}
	return aim, target, nil
}

// stoppingSpeed is the highest speed from which the car can stop within dist.
func (d *Driver) stoppingSpeed(dist float64) float64 {
	const refSpeed = 10.0
	bd := d.model.BrakingDistance(refSpeed)
	if bd <= 0 || math.IsInf(bd, 1) {
		return 0
	}
	decel := refSpeed * refSpeed / (2 * bd)
	return math.Sqrt(2 * decel * math.Max(0, dist))
}

// targetAim handles FollowTarget and ChaseTarget.
func (d *Driver) targetAim(f frame, speed float64) (mgl64.Vec3, float64, error) {
	if d.target == nil {
		return mgl64.Vec3{}, 0, ErrNoTarget
	}
	tp := d.target.Position()
	tv := numeric.Flatten(d.target.Velocity())
	gap := numeric.Flatten(tp.Sub(f.pos)).Len()
	d.state.SafeSpeedKph = d.cfg.MaxSpeedKph
	d.state.TurnRadius = 0

	if d.cfg.Mode == ChaseTarget {
		lead := lo.Clamp(gap/math.Max(speed, 1), 0, d.cfg.MaxPredictionTime)
		return tp.Add(tv.Mul(lead)), d.cfg.MaxSpeedKph, nil
	}
	target := tv.Len()*numeric.MpsToKph + (gap-d.cfg.FollowDistance)*d.cfg.FollowGapGain
	return tp, lo.Clamp(target, 0, d.cfg.MaxSpeedKph), nil
}

// speedControl blends the PID output with the feed-forward and angle brakes.
func (d *Driver) speedControl(dt, speedKph, targetKph, headingDeg float64) vehicle.Command {
	u := d.pid.Update(targetKph-speedKph, dt)
	throttle := numeric.Clamp01(u)
	pidBrake := numeric.Clamp01(-u)

	var ff float64
	if speedKph > targetKph {
		ff = numeric.Clamp01((speedKph - targetKph) * d.cfg.FeedForwardBrake)
	}
	var angle float64
	if headingDeg > d.cfg.AngleBrakeStart && speedKph > d.cfg.AngleBrakeMinKph {
		angle = d.cfg.AngleBrakeMax * numeric.InverseLerp(d.cfg.AngleBrakeStart, d.cfg.AngleBrakeFull, headingDeg)
	}

	brake := math.Max(pidBrake, math.Max(ff, angle))
	crawling := speedKph < d.cfg.BrakeGateKph && brake < d.cfg.BrakeGate
	if brake > 0 && !crawling {
		throttle = 0
	}
	return vehicle.Command{Throttle: throttle, Brake: brake}
}

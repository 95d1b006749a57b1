// Package avoidance adds obstacle avoidance on top of another input source.
// A pool of nearby colliders is rebuilt periodically; every tick the
// obstacles inside a forward cone are sampled and confirmed by raycasts, a
// steer-away side is chosen from the clearance either side, and the steer and
// brake corrections are scaled by the urgency of the worst risk.
package avoidance

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"

	"github.com/cxd309/vehicle-sim/internal/numeric"
	"github.com/cxd309/vehicle-sim/internal/physics"
	"github.com/cxd309/vehicle-sim/internal/vehicle"
)

// rayOvershoot extends threat rays past the sampled point so points on the
// far edge of a box still register a hit.
const rayOvershoot = 0.5

// State describes the last correction.
type State struct {
	Threats         int            `json:"threats"` // confirmed sample points
	ThreatDirection mgl64.Vec3     `json:"threat_direction"`
	Side            float64        `json:"side"` // +1 steer right, -1 left
	Highest         RiskAssessment `json:"highest_risk"`
	SteerDelta      float64        `json:"steer_delta"`
	BrakeDelta      float64        `json:"brake_delta"`
}

// Avoider wraps an InputSource and corrects its commands.
type Avoider struct {
	cfg    Config
	inner  vehicle.InputSource
	source Source
	ray    physics.Raycaster
	self   physics.Body

	pool   *Pool
	timer  float64
	primed bool
	state  State
}

var _ vehicle.InputSource = (*Avoider)(nil)

// NewAvoider wraps inner. source may be nil (nothing to avoid) and so may ray,
// in which case every sampled point counts as visible and both sides as clear.
// self is skipped by raycasts and selfID by the pool.
func NewAvoider(cfg Config, inner vehicle.InputSource, source Source, ray physics.Raycaster, self physics.Body, selfID string) *Avoider {
	cfg.Sanitize()
	return &Avoider{
		cfg:    cfg,
		inner:  inner,
		source: source,
		ray:    ray,
		self:   self,
		pool:   NewPool(selfID),
	}
}

func (a *Avoider) Config() Config { return a.cfg }
func (a *Avoider) State() State   { return a.state }

// Pool exposes the obstacle snapshot.
func (a *Avoider) Pool() *Pool { return a.pool }

// Command implements vehicle.InputSource.
func (a *Avoider) Command(dt float64, t vehicle.Telemetry) vehicle.Command {
	cmd := vehicle.Command{Brake: 1}
	if a.inner != nil {
		cmd = a.inner.Command(dt, t)
	}
	a.state = State{}
	if !a.cfg.Enabled || cmd.Reverse {
		return cmd
	}
	a.refresh(dt)

	candidates := a.inCone(t)
	if len(candidates) == 0 {
		return cmd
	}
	dir, n := a.threat(t, candidates)
	a.state.Threats = n
	a.state.ThreatDirection = dir
	if n == 0 {
		return cmd
	}

	ego := Box{
		Center:     t.Position,
		HalfExtent: mgl64.Vec3{t.HalfWidth, 0, t.HalfLength},
		Yaw:        t.Yaw(),
	}
	speedKph := t.SpeedKph()
	risks := lo.Map(candidates, func(o Obstacle, _ int) RiskAssessment {
		return Assess(ego, t.Velocity, o, speedKph, a.cfg)
	})
	a.state.Highest = lo.MaxBy(risks, func(x, y RiskAssessment) bool { return x.Urgency > y.Urgency })
	u := a.state.Highest.Urgency
	if u <= 0 {
		return cmd
	}

	a.state.Side = a.steerAway(t, dir)
	a.state.SteerDelta = a.state.Side * u * a.cfg.MaxSteer
	a.state.BrakeDelta = u * a.cfg.MaxBrake
	cmd.Steer += a.state.SteerDelta
	cmd.Brake += a.state.BrakeDelta
	cmd.Throttle *= 1 - u
	return cmd.Clamp()
}

// refresh rebuilds the pool every RefreshInterval and ages it in between.
func (a *Avoider) refresh(dt float64) {
	a.timer += dt
	a.pool.Advance(dt)
	if a.primed && a.timer < a.cfg.RefreshInterval {
		return
	}
	a.primed = true
	a.timer = 0
	if a.source == nil {
		a.pool.Refresh(nil)
		return
	}
	a.pool.Refresh(a.source.Obstacles())
}

// inCone returns the pooled obstacles within the radius whose centre lies
// inside the forward cone.
func (a *Avoider) inCone(t vehicle.Telemetry) []Obstacle {
	fwd := numeric.Flatten(t.Forward()).Normalize()
	limit := math.Cos(mgl64.DegToRad(a.cfg.ConeAngle))
	return lo.Filter(a.pool.Nearby(t.Position, a.cfg.Radius), func(o Obstacle, _ int) bool {
		off := numeric.Flatten(o.Box.Center.Sub(t.Position))
		d := off.Len()
		if d > a.cfg.Radius+o.Box.BoundingRadius() {
			return false
		}
		return d < 1e-6 || off.Dot(fwd)/d >= limit
	})
}

// threat samples a Samples×Samples grid over every candidate box and averages
// the directions of the points in line of sight, closer points weighing more.
// It returns the unit threat direction and the number of confirmed points.
func (a *Avoider) threat(t vehicle.Telemetry, candidates []Obstacle) (mgl64.Vec3, int) {
	from := numeric.Flatten(t.Position)
	var sum mgl64.Vec3
	var weight float64
	n := 0
	s := a.cfg.Samples
	for _, o := range candidates {
		for i := 0; i < s; i++ {
			for j := 0; j < s; j++ {
				p := o.Box.Point(gridCoord(i, s), gridCoord(j, s))
				off := p.Sub(from)
				d := off.Len()
				if d < 1e-6 {
					continue
				}
				if !a.visible(from, p.Add(off.Mul(rayOvershoot/d)), o.ID) {
					continue
				}
				w := 1 / math.Max(d, 0.5)
				sum = sum.Add(off.Mul(w / d))
				weight += w
				n++
			}
		}
	}
	if n == 0 || weight <= 0 {
		return mgl64.Vec3{}, 0
	}
	dir := sum.Mul(1 / weight)
	if l := dir.Len(); l > 1e-9 {
		dir = dir.Mul(1 / l)
	}
	return dir, n
}

func gridCoord(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return -1 + 2*float64(i)/float64(n-1)
}

// visible reports whether the first thing a ray toward to meets is the
// obstacle id.
func (a *Avoider) visible(from, to mgl64.Vec3, id string) bool {
	if a.ray == nil {
		return true
	}
	hit, ok := a.ray.Raycast(from, to, a.self)
	return ok && (hit.ID == id || hit.ID == "")
}

// clearance is the free distance along a probe at angle (radians) from the
// heading.
func (a *Avoider) clearance(t vehicle.Telemetry, angle float64) float64 {
	if a.ray == nil {
		return a.cfg.ProbeDistance
	}
	dir := numeric.YawRotation(t.Yaw() + angle).Rotate(mgl64.Vec3{0, 0, 1})
	from := numeric.Flatten(t.Position)
	if hit, ok := a.ray.Raycast(from, from.Add(dir.Mul(a.cfg.ProbeDistance)), a.self); ok {
		return hit.Distance
	}
	return a.cfg.ProbeDistance
}

// steerAway picks the side with more clearance; when both are about as clear
// it steers away from the threat.
func (a *Avoider) steerAway(t vehicle.Telemetry, threatDir mgl64.Vec3) float64 {
	probe := mgl64.DegToRad(a.cfg.ProbeAngle)
	left, right := a.clearance(t, -probe), a.clearance(t, probe)
	if math.Abs(left-right) > 0.5 {
		if right > left {
			return 1
		}
		return -1
	}
	local := t.Rotation.Inverse().Rotate(threatDir)
	if local.X() > 0 {
		return -1
	}
	return 1
}

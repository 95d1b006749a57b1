package physics

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/cxd309/vehicle-sim/internal/numeric"
)

// FreeBodyConfig describes a FreeBody.
type FreeBodyConfig struct {
	Mass            float64
	YawInertia      float64 // kg·m²; 0 derives it from a 4.5 m × 1.8 m box
	CGHeight        float64
	Gravity         float64
	Position        mgl64.Vec3
	Yaw             float64
	Velocity        mgl64.Vec3
	WheelLocals     []mgl64.Vec3
	Zones           []GroundZone
	DefaultMaterial int
}

// FreeBody is a planar rigid body on flat ground that integrates itself with
// semi-implicit Euler. It needs no world and backs unit tests and single
// vehicle runs.
type FreeBody struct {
	pos         mgl64.Vec3
	yaw         float64
	vel         mgl64.Vec3
	yawRate     float64
	mass        float64
	inertia     float64
	angularDrag float64
	force       mgl64.Vec3
	torque      float64
	zones       []GroundZone
	defaultMat  int
	load        loadModel
}

// NewFreeBody builds a FreeBody from cfg.
func NewFreeBody(cfg FreeBodyConfig) *FreeBody {
	if cfg.Mass <= 0 {
		cfg.Mass = 1200
	}
	if cfg.Gravity <= 0 {
		cfg.Gravity = 9.81
	}
	if cfg.YawInertia <= 0 {
		cfg.YawInertia = cfg.Mass * (4.5*4.5 + 1.8*1.8) / 12
	}
	return &FreeBody{
		pos:        cfg.Position,
		yaw:        cfg.Yaw,
		vel:        numeric.Flatten(cfg.Velocity),
		mass:       cfg.Mass,
		inertia:    cfg.YawInertia,
		zones:      cfg.Zones,
		defaultMat: cfg.DefaultMaterial,
		load:       newLoadModel(cfg.Mass, cfg.Gravity, cfg.CGHeight, cfg.WheelLocals),
	}
}

func (b *FreeBody) Position() mgl64.Vec3        { return b.pos }
func (b *FreeBody) Rotation() mgl64.Quat        { return numeric.YawRotation(b.yaw) }
func (b *FreeBody) Velocity() mgl64.Vec3        { return b.vel }
func (b *FreeBody) AngularVelocity() mgl64.Vec3 { return mgl64.Vec3{0, b.yawRate, 0} }
func (b *FreeBody) Mass() float64               { return b.mass }

func (b *FreeBody) PointVelocity(point mgl64.Vec3) mgl64.Vec3 {
	r := point.Sub(b.pos)
	return b.vel.Add(b.AngularVelocity().Cross(r))
}

func (b *FreeBody) AddForceAtPosition(force, point mgl64.Vec3) {
	force = numeric.Flatten(force)
	b.force = b.force.Add(force)
	b.torque += point.Sub(b.pos).Cross(force).Y()
}

func (b *FreeBody) SetVelocity(v mgl64.Vec3)        { b.vel = numeric.Flatten(v) }
func (b *FreeBody) SetAngularVelocity(w mgl64.Vec3) { b.yawRate = w.Y() }
func (b *FreeBody) SetAngularDrag(d float64)        { b.angularDrag = d }

func (b *FreeBody) WheelContact(local mgl64.Vec3) Contact {
	return contactFor(b, b.load, b.zones, b.defaultMat, local)
}

// Step integrates accumulated forces over dt and clears them.
func (b *FreeBody) Step(dt float64) {
	if dt <= 0 {
		return
	}
	accel := b.force.Mul(1 / b.mass)
	b.vel = b.vel.Add(accel.Mul(dt))
	b.yawRate += b.torque / b.inertia * dt
	b.yawRate *= 1 / (1 + dt*b.angularDrag)
	b.pos = b.pos.Add(b.vel.Mul(dt))
	b.yaw += b.yawRate * dt
	b.load.accel = b.Rotation().Inverse().Rotate(accel)
	b.force = mgl64.Vec3{}
	b.torque = 0
}

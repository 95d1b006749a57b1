package physics

import (
	"math"

	"github.com/bytearena/box2d"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/cxd309/vehicle-sim/internal/numeric"
)

const (
	velocityIterations = 8
	positionIterations = 3
)

// WorldConfig configures the planar world.
type WorldConfig struct {
	Gravity         float64      `json:"gravity"` // m/s², used for wheel loads only
	DefaultMaterial int          `json:"default_material"`
	Zones           []GroundZone `json:"ground_zones"`
}

// Obstacle is a static box placed in the world.
type Obstacle struct {
	ID         string     `json:"id"`
	Center     mgl64.Vec3 `json:"center"`
	HalfExtent mgl64.Vec3 `json:"half_extent"`
	Yaw        float64    `json:"yaw"`
}

// BodySpec describes a vehicle body to spawn.
type BodySpec struct {
	ID          string
	Mass        float64
	HalfWidth   float64
	HalfLength  float64
	CGHeight    float64
	Position    mgl64.Vec3
	Yaw         float64
	Velocity    mgl64.Vec3
	WheelLocals []mgl64.Vec3
}

// World is a top-down box2d world. World X/Z map onto box2d x/y and yaw is
// the negated box2d angle.
type World struct {
	b2      *box2d.B2World
	cfg     WorldConfig
	bodies  []*RigidBody
	statics map[string]*box2d.B2Body
}

// NewWorld creates an empty world with no gravity in the plane.
func NewWorld(cfg WorldConfig) *World {
	if cfg.Gravity <= 0 {
		cfg.Gravity = 9.81
	}
	world := box2d.MakeB2World(box2d.MakeB2Vec2(0, 0)) // seen from the top
	return &World{b2: &world, cfg: cfg, statics: make(map[string]*box2d.B2Body)}
}

func toB2(v mgl64.Vec3) box2d.B2Vec2   { return box2d.MakeB2Vec2(v.X(), v.Z()) }
func fromB2(v box2d.B2Vec2) mgl64.Vec3 { return mgl64.Vec3{v.X, 0, v.Y} }

// AddObstacle inserts a static box. IDs must be unique.
func (w *World) AddObstacle(o Obstacle) {
	bodydef := box2d.MakeB2BodyDef()
	bodydef.Type = box2d.B2BodyType.B2_staticBody
	bodydef.Position = toB2(o.Center)
	bodydef.Angle = -o.Yaw
	body := w.b2.CreateBody(&bodydef)
	body.SetUserData(o.ID)

	shape := box2d.MakeB2PolygonShape()
	shape.SetAsBox(math.Max(0.05, o.HalfExtent.X()), math.Max(0.05, o.HalfExtent.Z()))
	body.CreateFixture(&shape, 0.0)
	w.statics[o.ID] = body
}

// AddBody spawns a dynamic vehicle body.
func (w *World) AddBody(spec BodySpec) *RigidBody {
	bodydef := box2d.MakeB2BodyDef()
	bodydef.Type = box2d.B2BodyType.B2_dynamicBody
	bodydef.Position = toB2(spec.Position)
	bodydef.Angle = -spec.Yaw
	bodydef.LinearVelocity = toB2(spec.Velocity)
	bodydef.AllowSleep = false
	body := w.b2.CreateBody(&bodydef)
	body.SetUserData(spec.ID)

	hx, hy := math.Max(0.1, spec.HalfWidth), math.Max(0.1, spec.HalfLength)
	shape := box2d.MakeB2PolygonShape()
	shape.SetAsBox(hx, hy)
	fixturedef := box2d.MakeB2FixtureDef()
	fixturedef.Shape = &shape
	fixturedef.Density = spec.Mass / (4 * hx * hy)
	fixturedef.Friction = 0.3
	fixturedef.Restitution = 0.1
	body.CreateFixtureFromDef(&fixturedef)

	rb := &RigidBody{
		world: w,
		body:  body,
		id:    spec.ID,
		load:  newLoadModel(body.GetMass(), w.cfg.Gravity, spec.CGHeight, spec.WheelLocals),
	}
	rb.prevVel = rb.Velocity()
	w.bodies = append(w.bodies, rb)
	return rb
}

// Step advances the box2d world and refreshes each body's measured acceleration.
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	w.b2.Step(dt, velocityIterations, positionIterations)
	for _, rb := range w.bodies {
		v := rb.Velocity()
		accel := v.Sub(rb.prevVel).Mul(1 / dt)
		rb.load.accel = rb.Rotation().Inverse().Rotate(accel)
		rb.prevVel = v
	}
}

// Raycast returns the closest hit between from and to, skipping ignore.
func (w *World) Raycast(from, to mgl64.Vec3, ignore Body) (Hit, bool) {
	var skip *box2d.B2Body
	if rb, ok := ignore.(*RigidBody); ok {
		skip = rb.body
	}
	length := numeric.Flatten(to.Sub(from)).Len()
	if length < 1e-6 {
		return Hit{}, false
	}

	var (
		hit   Hit
		found bool
	)
	w.b2.RayCast(
		func(fixture *box2d.B2Fixture, point box2d.B2Vec2, normal box2d.B2Vec2, fraction float64) float64 {
			if fixture.GetBody() == skip {
				return -1 // ignore this fixture and continue
			}
			id, _ := fixture.GetBody().GetUserData().(string)
			hit = Hit{Point: fromB2(point), Normal: fromB2(normal), Distance: fraction * length, ID: id}
			found = true
			return fraction // clip the ray to find the closest hit
		},
		toB2(from),
		toB2(to),
	)
	return hit, found
}

// RigidBody is a box2d-backed vehicle body.
type RigidBody struct {
	world   *World
	body    *box2d.B2Body
	id      string
	load    loadModel
	prevVel mgl64.Vec3
}

// ID returns the identifier given at spawn.
func (b *RigidBody) ID() string { return b.id }

func (b *RigidBody) Position() mgl64.Vec3 { return fromB2(b.body.GetPosition()) }
func (b *RigidBody) Rotation() mgl64.Quat { return numeric.YawRotation(-b.body.GetAngle()) }
func (b *RigidBody) Velocity() mgl64.Vec3 { return fromB2(b.body.GetLinearVelocity()) }
func (b *RigidBody) Mass() float64        { return b.body.GetMass() }

func (b *RigidBody) AngularVelocity() mgl64.Vec3 {
	return mgl64.Vec3{0, -b.body.GetAngularVelocity(), 0}
}

func (b *RigidBody) PointVelocity(point mgl64.Vec3) mgl64.Vec3 {
	return fromB2(b.body.GetLinearVelocityFromWorldPoint(toB2(point)))
}

func (b *RigidBody) AddForceAtPosition(force, point mgl64.Vec3) {
	b.body.ApplyForce(toB2(force), toB2(point), true)
}

func (b *RigidBody) SetVelocity(v mgl64.Vec3) { b.body.SetLinearVelocity(toB2(v)) }

func (b *RigidBody) SetAngularVelocity(w mgl64.Vec3) { b.body.SetAngularVelocity(-w.Y()) }

func (b *RigidBody) SetAngularDrag(d float64) { b.body.SetAngularDamping(d) }

func (b *RigidBody) WheelContact(local mgl64.Vec3) Contact {
	return contactFor(b, b.load, b.world.cfg.Zones, b.world.cfg.DefaultMaterial, local)
}

// Package physics defines the contract between the vehicle simulation and the
// rigid-body backend that integrates it, plus two backends: World, a planar
// box2d world, and FreeBody, a standalone body on flat ground.
//
// Coordinates follow a Y-up frame: +Z is forward and +X is right. A positive
// yaw rate turns the nose toward +X.
package physics

import "github.com/go-gl/mathgl/mgl64"

// Contact is the result of a wheel ground-contact query.
type Contact struct {
	Grounded bool
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Force    float64 // suspension force along Normal, N
	Material int     // ground material index
}

// Body is the rigid body a vehicle drives. The simulation reads its state and
// writes forces and velocity corrections; integration belongs to the backend.
type Body interface {
	Position() mgl64.Vec3
	Rotation() mgl64.Quat
	Velocity() mgl64.Vec3
	AngularVelocity() mgl64.Vec3
	// PointVelocity returns the velocity of a world-space point attached to the body.
	PointVelocity(point mgl64.Vec3) mgl64.Vec3
	Mass() float64

	AddForceAtPosition(force, point mgl64.Vec3)
	SetVelocity(v mgl64.Vec3)
	SetAngularVelocity(w mgl64.Vec3)
	SetAngularDrag(d float64)

	// WheelContact queries the ground below a wheel mounted at local (body space).
	WheelContact(local mgl64.Vec3) Contact
}

// Hit is a raycast result.
type Hit struct {
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Distance float64
	ID       string // obstacle or body identifier, empty for unnamed geometry
}

// Raycaster answers line-of-sight queries. ignore may be nil.
type Raycaster interface {
	Raycast(from, to mgl64.Vec3, ignore Body) (Hit, bool)
}

// ToWorld transforms a body-local point to world space.
func ToWorld(b Body, local mgl64.Vec3) mgl64.Vec3 {
	return b.Position().Add(b.Rotation().Rotate(local))
}

// ToLocal transforms a world-space point into the body frame.
func ToLocal(b Body, world mgl64.Vec3) mgl64.Vec3 {
	return b.Rotation().Inverse().Rotate(world.Sub(b.Position()))
}

// LocalVelocity returns the body velocity in its own frame.
func LocalVelocity(b Body) mgl64.Vec3 {
	return b.Rotation().Inverse().Rotate(b.Velocity())
}

package avoidance

import (
	"math"

	polyclip "github.com/akavel/polyclip-go"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/cxd309/vehicle-sim/internal/numeric"
)

// Box is an oriented rectangle on the ground plane. HalfExtent uses X for the
// half width and Z for the half length; Y is ignored.
type Box struct {
	Center     mgl64.Vec3 `json:"center"`
	HalfExtent mgl64.Vec3 `json:"half_extent"`
	Yaw        float64    `json:"yaw"` // radians, positive toward +X
}

// Moved returns the box translated by d.
func (b Box) Moved(d mgl64.Vec3) Box {
	b.Center = b.Center.Add(numeric.Flatten(d))
	return b
}

// Point maps box-local coordinates in [-1, 1] onto the ground plane.
func (b Box) Point(u, w float64) mgl64.Vec3 {
	local := mgl64.Vec3{u * b.HalfExtent.X(), 0, w * b.HalfExtent.Z()}
	p := numeric.YawRotation(b.Yaw).Rotate(local)
	return mgl64.Vec3{b.Center.X() + p.X(), 0, b.Center.Z() + p.Z()}
}

// Corners returns the four corners as X/Z points, counter-clockwise seen from
// above with +X right and +Z up.
func (b Box) Corners() []mgl64.Vec2 {
	out := make([]mgl64.Vec2, 0, 4)
	for _, c := range [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
		p := b.Point(c[0], c[1])
		out = append(out, mgl64.Vec2{p.X(), p.Z()})
	}
	return out
}

// Area is the footprint of the box.
func (b Box) Area() float64 { return 4 * math.Abs(b.HalfExtent.X()*b.HalfExtent.Z()) }

// BoundingRadius is the radius of the circle around the box.
func (b Box) BoundingRadius() float64 { return math.Hypot(b.HalfExtent.X(), b.HalfExtent.Z()) }

// Bounds returns the axis-aligned min and max X/Z of the box.
func (b Box) Bounds() (lower, upper mgl64.Vec2) {
	lower = mgl64.Vec2{math.Inf(1), math.Inf(1)}
	upper = mgl64.Vec2{math.Inf(-1), math.Inf(-1)}
	for _, c := range b.Corners() {
		lower = mgl64.Vec2{math.Min(lower.X(), c.X()), math.Min(lower.Y(), c.Y())}
		upper = mgl64.Vec2{math.Max(upper.X(), c.X()), math.Max(upper.Y(), c.Y())}
	}
	return lower, upper
}

// OverlapArea is the area shared by two boxes.
func OverlapArea(a, b Box) float64 {
	aLow, aHigh := a.Bounds()
	bLow, bHigh := b.Bounds()
	if aHigh.X() < bLow.X() || bHigh.X() < aLow.X() || aHigh.Y() < bLow.Y() || bHigh.Y() < aLow.Y() {
		return 0
	}
	// one box inside the other; coincident edges are left out of the clipper
	if a.Encloses(b) {
		return b.Area()
	}
	if b.Encloses(a) {
		return a.Area()
	}
	result := footprint(a).Construct(polyclip.INTERSECTION, footprint(b))
	var area float64
	for _, c := range result {
		area += contourArea(c)
	}
	return area
}

// Encloses reports whether every corner of other lies inside b.
func (b Box) Encloses(other Box) bool {
	const eps = 1e-9
	inv := numeric.YawRotation(b.Yaw).Inverse()
	for _, c := range other.Corners() {
		local := inv.Rotate(mgl64.Vec3{c.X() - b.Center.X(), 0, c.Y() - b.Center.Z()})
		if math.Abs(local.X()) > b.HalfExtent.X()+eps || math.Abs(local.Z()) > b.HalfExtent.Z()+eps {
			return false
		}
	}
	return true
}

func footprint(b Box) polyclip.Polygon {
	corners := b.Corners()
	contour := make(polyclip.Contour, len(corners))
	for i, c := range corners {
		contour[i] = polyclip.Point{X: c.X(), Y: c.Y()}
	}
	return polyclip.Polygon{contour}
}

// contourArea is the shoelace area of a clipper contour.
func contourArea(c polyclip.Contour) float64 {
	if len(c) < 3 {
		return 0
	}
	var sum float64
	for i := range c {
		p, q := c[i], c[(i+1)%len(c)]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(sum) / 2
}

// OverlapRatio is the shared area over the smaller footprint, in [0, 1].
func OverlapRatio(a, b Box) float64 {
	smaller := math.Min(a.Area(), b.Area())
	if smaller <= 0 {
		return 0
	}
	return numeric.Clamp01(OverlapArea(a, b) / smaller)
}

// Gap is the clearance between the bounding circles of two boxes; negative
// when they overlap.
func Gap(a, b Box) float64 {
	d := numeric.Flatten(b.Center.Sub(a.Center)).Len()
	return d - a.BoundingRadius() - b.BoundingRadius()
}

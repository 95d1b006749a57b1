package ai

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/cxd309/vehicle-sim/internal/numeric"
)

// Waypoint is a point on the driven path with an optional speed.
type Waypoint struct {
	Position    mgl64.Vec3 `json:"position"`
	TargetSpeed float64    `json:"target_speed,omitempty"` // km/h, 0 = none
}

// nearestAhead returns the closest waypoint in front of pos (positive dot with
// forward), falling back to the closest overall. Returns -1 for an empty path.
func nearestAhead(path []Waypoint, pos, forward mgl64.Vec3) int {
	best, bestAhead := -1, -1
	bestD, bestAheadD := math.Inf(1), math.Inf(1)
	for i, w := range path {
		off := numeric.Flatten(w.Position.Sub(pos))
		d := off.Len()
		if d < bestD {
			best, bestD = i, d
		}
		if off.Dot(forward) > 0 && d < bestAheadD {
			bestAhead, bestAheadD = i, d
		}
	}
	if bestAhead >= 0 {
		return bestAhead
	}
	return best
}

// walker steps along the path from a start index, wrapping when loop is set.
type walker struct {
	path []Waypoint
	loop bool
}

func (w walker) next(i int) (int, bool) {
	if i+1 < len(w.path) {
		return i + 1, true
	}
	if w.loop && len(w.path) > 1 {
		return 0, true
	}
	return i, false
}

// pointAlong returns the point dist metres along the polyline that starts at
// from and continues through path[index], path[index+1], ... It stops at the
// end of an open path.
func (w walker) pointAlong(from mgl64.Vec3, index int, dist float64) mgl64.Vec3 {
	if len(w.path) == 0 {
		return from
	}
	prev := from
	i := index
	for steps := 0; steps <= len(w.path); steps++ {
		p := w.path[i].Position
		seg := p.Sub(prev).Len()
		if seg >= dist && seg > 1e-9 {
			return prev.Add(p.Sub(prev).Mul(dist / seg))
		}
		dist -= seg
		prev = p
		n, ok := w.next(i)
		if !ok {
			return p
		}
		i = n
	}
	return prev
}

// remaining returns the path length left from pos through path[index] to the
// end of an open path, or +Inf for a loop.
func (w walker) remaining(pos mgl64.Vec3, index int) float64 {
	if w.loop || len(w.path) == 0 {
		return math.Inf(1)
	}
	d := w.path[index].Position.Sub(pos).Len()
	for i := index + 1; i < len(w.path); i++ {
		d += w.path[i].Position.Sub(w.path[i-1].Position).Len()
	}
	return d
}

// circumradius is the radius of the circle through a, b and c, from the law of
// cosines at b. Collinear or coincident points give +Inf.
func circumradius(a, b, c mgl64.Vec3) float64 {
	ab := b.Sub(a).Len()
	bc := c.Sub(b).Len()
	ac := c.Sub(a).Len()
	if ab < 1e-9 || bc < 1e-9 || ac < 1e-9 {
		return math.Inf(1)
	}
	cosB := (ab*ab + bc*bc - ac*ac) / (2 * ab * bc)
	sinB := math.Sqrt(math.Max(0, 1-cosB*cosB))
	if sinB < 1e-6 {
		return math.Inf(1)
	}
	return ac / (2 * sinB)
}

// tightestRadius scans the path from pos through index over dist metres and
// returns the smallest circumradius of consecutive point triples, floored at
// minRadius, with the index of its apex. +Inf means straight.
func (w walker) tightestRadius(pos mgl64.Vec3, index int, dist, minRadius float64) (float64, int) {
	if len(w.path) < 2 {
		return math.Inf(1), -1
	}
	radius, apex := math.Inf(1), -1
	a := numeric.Flatten(pos)
	i := index
	travelled := 0.0
	for steps := 0; steps < len(w.path) && travelled <= dist; steps++ {
		n, ok := w.next(i)
		if !ok {
			break
		}
		b := numeric.Flatten(w.path[i].Position)
		c := numeric.Flatten(w.path[n].Position)
		travelled += b.Sub(a).Len()
		if r := circumradius(a, b, c); r < radius {
			radius, apex = r, i
		}
		a, i = b, n
	}
	if radius < minRadius {
		radius = minRadius
	}
	return radius, apex
}

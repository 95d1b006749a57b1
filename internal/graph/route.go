package graph

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultSpacing is the waypoint spacing used when a route does not set one.
const DefaultSpacing = 5.0

// Route is an ordered list of nodes to visit. Consecutive stops are joined by
// their shortest path.
type Route struct {
	Stops   []NodeID `json:"stops"`
	Spacing float64  `json:"waypoint_spacing,omitempty"` // metres
	Loop    bool     `json:"loop,omitempty"`             // return to the first stop
}

// Sample is one waypoint produced by Expand.
type Sample struct {
	Position    mgl64.Vec3
	TargetSpeed float64 // km/h, 0 = none
	Edge        EdgeID
}

// Expand turns a route into waypoints spaced at most r.Spacing apart along
// each edge. Every node on the route appears exactly once, in order.
func (g *Graph) Expand(r Route) ([]Sample, error) {
	if len(r.Stops) < 2 {
		return nil, fmt.Errorf("route needs at least two stops, got %d", len(r.Stops))
	}
	spacing := r.Spacing
	if spacing <= 0 {
		spacing = DefaultSpacing
	}
	stops := r.Stops
	if r.Loop && stops[0] != stops[len(stops)-1] {
		stops = append(append([]NodeID{}, stops...), stops[0])
	}

	nodes := []NodeID{stops[0]}
	for i := 1; i < len(stops); i++ {
		p, err := g.GetShortestPath(stops[i-1], stops[i])
		if err != nil {
			return nil, fmt.Errorf("route leg %d: %w", i, err)
		}
		nodes = append(nodes, p.Route[1:]...)
	}
	if r.Loop {
		// the closing node repeats the first waypoint
		nodes = nodes[:len(nodes)-1]
	}

	var out []Sample
	for i := range nodes {
		from := g.nodeMap[nodes[i]]
		if i == len(nodes)-1 && !r.Loop {
			out = append(out, Sample{Position: from.Loc.Vec(), TargetSpeed: lastSpeed(out)})
			break
		}
		to := g.nodeMap[nodes[(i+1)%len(nodes)]]
		e, err := g.GetEdge(from.ID, to.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, sampleEdge(from.Loc.Vec(), to.Loc.Vec(), e, spacing)...)
	}
	return out, nil
}

// sampleEdge returns points from a (inclusive) toward b (exclusive).
func sampleEdge(a, b mgl64.Vec3, e Edge, spacing float64) []Sample {
	var speed float64
	if e.TargetSpeed != nil {
		speed = *e.TargetSpeed
	}
	d := b.Sub(a).Len()
	n := int(math.Ceil(d / spacing))
	if n < 1 {
		n = 1
	}
	out := make([]Sample, 0, n)
	for k := 0; k < n; k++ {
		t := float64(k) / float64(n)
		out = append(out, Sample{Position: a.Add(b.Sub(a).Mul(t)), TargetSpeed: speed, Edge: e.ID})
	}
	return out
}

func lastSpeed(s []Sample) float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].TargetSpeed
}

package avoidance

import (
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/go-gl/mathgl/mgl64"
)

// Obstacle is a collider the avoider steers around: a static box or another
// vehicle with its velocity.
type Obstacle struct {
	ID       string     `json:"id"`
	Box      Box        `json:"box"`
	Velocity mgl64.Vec3 `json:"velocity,omitempty"`
}

// Source lists the colliders currently in the world. It is queried on every
// pool refresh.
type Source interface {
	Obstacles() []Obstacle
}

// SourceFunc adapts a function to Source.
type SourceFunc func() []Obstacle

func (f SourceFunc) Obstacles() []Obstacle { return f() }

// minRectSide keeps degenerate boxes insertable.
const minRectSide = 0.01

// poolEntry is an obstacle as stored in the R-tree.
type poolEntry struct {
	Obstacle
	rect rtreego.Rect
}

func (e *poolEntry) Bounds() rtreego.Rect { return e.rect }

func rectAround(lower, upper mgl64.Vec2) rtreego.Rect {
	w := math.Max(minRectSide, upper.X()-lower.X())
	h := math.Max(minRectSide, upper.Y()-lower.Y())
	r, _ := rtreego.NewRect(rtreego.Point{lower.X(), lower.Y()}, []float64{w, h})
	return r
}

// Pool is a snapshot of nearby colliders indexed in an R-tree. Moving
// obstacles are extrapolated from the snapshot until the next refresh.
type Pool struct {
	tree   *rtreego.Rtree
	size   int
	age    float64
	ignore string
}

// NewPool returns an empty pool that never reports the obstacle named ignore.
func NewPool(ignore string) *Pool {
	return &Pool{tree: rtreego.NewTree(2, 25, 50), ignore: ignore}
}

// Refresh rebuilds the index from obstacles.
func (p *Pool) Refresh(obstacles []Obstacle) {
	spatials := make([]rtreego.Spatial, 0, len(obstacles))
	for _, o := range obstacles {
		if o.ID != "" && o.ID == p.ignore {
			continue
		}
		lower, upper := o.Box.Bounds()
		spatials = append(spatials, &poolEntry{Obstacle: o, rect: rectAround(lower, upper)})
	}
	p.tree = rtreego.NewTree(2, 25, 50, spatials...)
	p.size = len(spatials)
	p.age = 0
}

// Advance ages the snapshot by dt.
func (p *Pool) Advance(dt float64) { p.age += dt }

// Len returns the number of indexed obstacles.
func (p *Pool) Len() int { return p.size }

// Nearby returns the obstacles whose bounds come within radius of center,
// moved to where they are expected to be now.
func (p *Pool) Nearby(center mgl64.Vec3, radius float64) []Obstacle {
	if p.size == 0 {
		return nil
	}
	query := rectAround(
		mgl64.Vec2{center.X() - radius, center.Z() - radius},
		mgl64.Vec2{center.X() + radius, center.Z() + radius},
	)
	hits := p.tree.SearchIntersect(query)
	out := make([]Obstacle, 0, len(hits))
	for _, h := range hits {
		o := h.(*poolEntry).Obstacle
		o.Box = o.Box.Moved(o.Velocity.Mul(p.age))
		out = append(out, o)
	}
	return out
}

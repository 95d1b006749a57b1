package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// GroundZone is an axis-aligned patch of ground in the X/Z plane.
// Zones are checked in order; the first match wins.
type GroundZone struct {
	MinX     float64 `json:"min_x"`
	MinZ     float64 `json:"min_z"`
	MaxX     float64 `json:"max_x"`
	MaxZ     float64 `json:"max_z"`
	Material int     `json:"material"`
	Airborne bool    `json:"airborne,omitempty"` // no ground under this patch (jumps, gaps)
}

func (z GroundZone) contains(x, zz float64) bool {
	return x >= z.MinX && x <= z.MaxX && zz >= z.MinZ && zz <= z.MaxZ
}

// groundAt resolves the material below a world point.
func groundAt(zones []GroundZone, defaultMaterial int, p mgl64.Vec3) (material int, grounded bool) {
	for _, z := range zones {
		if z.contains(p.X(), p.Z()) {
			return z.Material, !z.Airborne
		}
	}
	return defaultMaterial, true
}

// loadModel distributes the body weight over its wheels with longitudinal and
// lateral load transfer from the last measured acceleration.
type loadModel struct {
	mass     float64
	gravity  float64
	cgHeight float64
	wheels   int
	sumX2    float64
	sumZ2    float64
	accel    mgl64.Vec3 // body-local acceleration
}

func newLoadModel(mass, gravity, cgHeight float64, wheelLocals []mgl64.Vec3) loadModel {
	lm := loadModel{mass: mass, gravity: gravity, cgHeight: cgHeight, wheels: len(wheelLocals)}
	for _, w := range wheelLocals {
		lm.sumX2 += w.X() * w.X()
		lm.sumZ2 += w.Z() * w.Z()
	}
	return lm
}

func (lm loadModel) wheelLoad(local mgl64.Vec3) float64 {
	n := lm.wheels
	if n <= 0 {
		n = 4
	}
	load := lm.mass * lm.gravity / float64(n)
	if lm.sumZ2 > 1e-9 {
		load -= lm.mass * lm.cgHeight * lm.accel.Z() * local.Z() / lm.sumZ2
	}
	if lm.sumX2 > 1e-9 {
		load -= lm.mass * lm.cgHeight * lm.accel.X() * local.X() / lm.sumX2
	}
	return math.Max(0, load)
}

func contactFor(b Body, lm loadModel, zones []GroundZone, defaultMaterial int, local mgl64.Vec3) Contact {
	p := ToWorld(b, local)
	p[1] = 0
	mat, grounded := groundAt(zones, defaultMaterial, p)
	if !grounded {
		return Contact{Point: p, Material: mat}
	}
	return Contact{
		Grounded: true,
		Point:    p,
		Normal:   mgl64.Vec3{0, 1, 0},
		Force:    lm.wheelLoad(local),
		Material: mat,
	}
}

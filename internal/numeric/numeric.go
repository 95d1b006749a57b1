// Package numeric holds the small scalar and planar helpers shared by the
// simulation components: smoothing filters, keyed curves and yaw angles.
package numeric

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"
)

// Unit conversions.
const (
	MpsToKph     = 3.6
	KphToMps     = 1 / 3.6
	RadPerSToRPM = 60 / (2 * math.Pi)
	RPMToRadPerS = (2 * math.Pi) / 60
)

// Up is the world vertical axis. Forward is +Z and right is +X.
var Up = mgl64.Vec3{0, 1, 0}

// Clamp01 clamps v to [0, 1].
func Clamp01(v float64) float64 { return lo.Clamp(v, 0, 1) }

// Lerp interpolates from a to b by t, with t clamped to [0, 1].
func Lerp(a, b, t float64) float64 { return a + (b-a)*Clamp01(t) }

// InverseLerp returns where v lies between a and b, clamped to [0, 1].
// A degenerate range returns 0.
func InverseLerp(a, b, v float64) float64 {
	if a == b {
		return 0
	}
	return Clamp01((v - a) / (b - a))
}

// Sign returns -1, 0 or 1.
func Sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// MoveTowards moves current toward target by at most maxDelta.
func MoveTowards(current, target, maxDelta float64) float64 {
	if math.Abs(target-current) <= maxDelta {
		return target
	}
	return current + Sign(target-current)*maxDelta
}

// LowPass is a first-order exponential filter with time constant tau (seconds).
// tau <= 0 passes the target through.
func LowPass(current, target, tau, dt float64) float64 {
	if tau <= 0 || dt <= 0 {
		return target
	}
	return current + (target-current)*(1-math.Exp(-dt/tau))
}

// SmoothDamp moves current toward target with a critically damped spring that
// settles in roughly smoothTime seconds. velocity carries the filter state
// between calls. maxSpeed <= 0 leaves the rate unbounded.
func SmoothDamp(current, target float64, velocity *float64, smoothTime, maxSpeed, dt float64) float64 {
	if dt <= 0 {
		return current
	}
	smoothTime = math.Max(0.0001, smoothTime)
	omega := 2 / smoothTime
	x := omega * dt
	decay := 1 / (1 + x + 0.48*x*x + 0.235*x*x*x)

	change := current - target
	originalTarget := target
	if maxSpeed > 0 {
		maxChange := maxSpeed * smoothTime
		change = lo.Clamp(change, -maxChange, maxChange)
	}
	target = current - change

	temp := (*velocity + omega*change) * dt
	*velocity = (*velocity - omega*temp) * decay
	output := target + (change+temp)*decay

	// no overshoot past the original target
	if (originalTarget-current > 0) == (output > originalTarget) {
		output = originalTarget
		*velocity = (output - originalTarget) / dt
	}
	return output
}

// Key is one point of a Curve.
type Key struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Curve is a piecewise linear function through keys sorted by X.
// Values outside the key range are held at the end keys.
type Curve []Key

// Evaluate returns the curve value at x. An empty curve evaluates to 0.
func (c Curve) Evaluate(x float64) float64 {
	if len(c) == 0 {
		return 0
	}
	if x <= c[0].X {
		return c[0].Y
	}
	for i := 1; i < len(c); i++ {
		if x <= c[i].X {
			return Lerp(c[i-1].Y, c[i].Y, InverseLerp(c[i-1].X, c[i].X, x))
		}
	}
	return c[len(c)-1].Y
}

// Flatten drops the vertical component.
func Flatten(v mgl64.Vec3) mgl64.Vec3 { return mgl64.Vec3{v[0], 0, v[2]} }

// SignedAngleY returns the yaw angle (radians) that rotates from onto to about
// the vertical axis. Positive means to lies to the right of from.
func SignedAngleY(from, to mgl64.Vec3) float64 {
	from, to = Flatten(from), Flatten(to)
	if from.Len() < 1e-9 || to.Len() < 1e-9 {
		return 0
	}
	return math.Atan2(from.Cross(to).Y(), from.Dot(to))
}

// YawRotation returns the orientation for a heading of yaw radians.
func YawRotation(yaw float64) mgl64.Quat {
	return mgl64.QuatRotate(yaw, Up)
}

// Yaw extracts the heading angle of an orientation.
func Yaw(q mgl64.Quat) float64 {
	f := q.Rotate(mgl64.Vec3{0, 0, 1})
	return math.Atan2(f.X(), f.Z())
}

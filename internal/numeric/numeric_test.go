package numeric

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestSmoothDampConvergesWithoutOvershoot(t *testing.T) {
	var vel float64
	v := 0.0
	for i := 0; i < 200; i++ {
		v = SmoothDamp(v, 100, &vel, 0.1, 0, 0.01)
		assert.LessOrEqual(t, v, 100.0)
	}
	assert.InDelta(t, 100, v, 0.01)
}

func TestSmoothDampRespectsMaxSpeed(t *testing.T) {
	var vel float64
	v := SmoothDamp(0, 1, &vel, 0.01, 0.5, 0.1)
	// at most maxSpeed*dt per step once the spring saturates
	assert.LessOrEqual(t, v, 0.5*0.1+1e-9)
	assert.Greater(t, v, 0.0)
}

func TestMoveTowards(t *testing.T) {
	assert.Equal(t, 0.5, MoveTowards(0, 1, 0.5))
	assert.Equal(t, 1.0, MoveTowards(0.8, 1, 0.5))
	assert.Equal(t, -0.5, MoveTowards(0, -1, 0.5))
}

func TestCurveEvaluate(t *testing.T) {
	c := Curve{{0, 0}, {10, 1}, {20, 0.5}}
	tests := []struct {
		x, want float64
	}{
		{-5, 0},
		{5, 0.5},
		{10, 1},
		{15, 0.75},
		{40, 0.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, c.Evaluate(tt.x), 1e-9, "x=%v", tt.x)
	}
	assert.Equal(t, 0.0, Curve(nil).Evaluate(3))
}

func TestSignedAngleY(t *testing.T) {
	fwd := mgl64.Vec3{0, 0, 1}
	assert.InDelta(t, math.Pi/2, SignedAngleY(fwd, mgl64.Vec3{1, 0, 0}), 1e-9)
	assert.InDelta(t, -math.Pi/2, SignedAngleY(fwd, mgl64.Vec3{-1, 0, 0}), 1e-9)
	assert.InDelta(t, 0, SignedAngleY(fwd, mgl64.Vec3{0, 3, 5}), 1e-9)
	assert.Equal(t, 0.0, SignedAngleY(fwd, mgl64.Vec3{}))
}

func TestYawRoundTrip(t *testing.T) {
	for _, yaw := range []float64{0, 0.3, -1.2, 2.5} {
		assert.InDelta(t, yaw, Yaw(YawRotation(yaw)), 1e-9)
	}
	right := YawRotation(0.5).Rotate(mgl64.Vec3{0, 0, 1})
	assert.Greater(t, right.X(), 0.0, "positive yaw turns toward +X")
}

func TestLowPass(t *testing.T) {
	assert.Equal(t, 1.0, LowPass(0, 1, 0, 0.02))
	v := LowPass(0, 1, 0.1, 0.1)
	assert.InDelta(t, 1-math.Exp(-1), v, 1e-9)
}

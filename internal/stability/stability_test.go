package stability

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/vehicle-sim/internal/physics"
	"github.com/cxd309/vehicle-sim/internal/tire"
)

type fakeWheel struct {
	state tire.WheelState
	corr  tire.Corrections
}

func (f *fakeWheel) State() tire.WheelState     { return f.state }
func (f *fakeWheel) Correct() *tire.Corrections { return &f.corr }

type rig struct {
	fl, fr, rl, rr *fakeWheel
	refs           []WheelRef
	body           *physics.FreeBody
}

// newRig builds a rear-wheel-drive car whose wheels carry their static load.
func newRig(velocity mgl64.Vec3) *rig {
	mk := func() *fakeWheel {
		return &fakeWheel{state: tire.WheelState{Grounded: true, Load: 1200 * 9.81 / 4}}
	}
	r := &rig{fl: mk(), fr: mk(), rl: mk(), rr: mk()}
	r.refs = []WheelRef{
		{Wheel: r.fl, Side: -1, Front: true, Braked: true},
		{Wheel: r.fr, Side: 1, Front: true, Braked: true},
		{Wheel: r.rl, Side: -1, Powered: true, Braked: true},
		{Wheel: r.rr, Side: 1, Powered: true, Braked: true},
	}
	r.body = physics.NewFreeBody(physics.FreeBodyConfig{Mass: 1200, Velocity: velocity})
	return r
}

func onlyConfig(mutate func(*Config)) Config {
	cfg := Config{}
	cfg.Sanitize()
	def := DefaultConfig()
	cfg.ABSThreshold, cfg.ABSIntensity = def.ABSThreshold, def.ABSIntensity
	cfg.ESPThreshold, cfg.ESPIntensity, cfg.ESPMaxBrake = def.ESPThreshold, def.ESPIntensity, def.ESPMaxBrake
	cfg.TCSThreshold, cfg.TCSIntensity = def.TCSThreshold, def.TCSIntensity
	cfg.SteerHelperLinear, cfg.SteerHelperAngular = def.SteerHelperLinear, def.SteerHelperAngular
	cfg.TractionHelperStrength, cfg.TractionHelperFloor = def.TractionHelperStrength, def.TractionHelperFloor
	cfg.AngularDragPerKph, cfg.AngularDragMax = def.AngularDragPerKph, def.AngularDragMax
	cfg.MaxDriftAngle = def.MaxDriftAngle
	mutate(&cfg)
	return cfg
}

func TestABS(t *testing.T) {
	tests := []struct {
		name    string
		slip    float64
		brake   float64
		engaged bool
	}{
		{"locking wheel", 0.5, 1.0, true},
		{"negative slip", -0.5, 1.0, true},
		{"at threshold", 0.35, 1.0, true},
		{"light slip", 0.1, 1.0, false},
		{"light brake", 0.5, 0.5, false},
		{"no brake", 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(mgl64.Vec3{0, 0, 20})
			r.fl.state.ForwardSlip = tt.slip
			c := New(onlyConfig(func(c *Config) { c.ABS = true }))

			flags := c.Tick(0.02, r.body, r.refs, Inputs{Brake: tt.brake, Direction: 1})
			assert.Equal(t, tt.engaged, flags.ABS)
			if tt.engaged {
				assert.Equal(t, 0.75, r.fl.corr.ABSCut)
			} else {
				assert.Equal(t, 0.0, r.fl.corr.ABSCut)
			}
			assert.Equal(t, 0.0, r.fr.corr.ABSCut)
		})
	}
}

func TestTCSMatchesDriveDirection(t *testing.T) {
	tests := []struct {
		name      string
		slip      float64
		direction float64
		engaged   bool
	}{
		{"wheelspin forward", 0.6, 1, true},
		{"wheelspin reverse", -0.6, -1, true},
		{"braking slip forward", -0.6, 1, false},
		{"below threshold", 0.3, 1, false},
		{"neutral", 0.9, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(mgl64.Vec3{0, 0, 10})
			r.rl.state.ForwardSlip = tt.slip
			r.fl.state.ForwardSlip = tt.slip
			c := New(onlyConfig(func(c *Config) { c.TCS = true }))

			flags := c.Tick(0.02, r.body, r.refs, Inputs{Direction: tt.direction})
			assert.Equal(t, tt.engaged, flags.TCS)
			if tt.engaged {
				assert.Equal(t, 0.5, r.rl.corr.TCSCut)
				assert.Equal(t, tt.direction, r.rl.corr.Direction)
			}
			// unpowered wheels are never cut
			assert.Equal(t, 0.0, r.fl.corr.TCSCut)
		})
	}
}

func TestESPUndersteerBrakesOuterFront(t *testing.T) {
	r := newRig(mgl64.Vec3{0, 0, 20})
	// front axle sliding toward -X: left is outside
	r.fl.state.SidewaysSlip = -0.4
	r.fr.state.SidewaysSlip = -0.4
	c := New(onlyConfig(func(c *Config) { c.ESP = true }))

	flags := c.Tick(0.02, r.body, r.refs, Inputs{Direction: 1})
	require.True(t, flags.ESP)
	assert.True(t, flags.Understeer)
	assert.False(t, flags.Oversteer)

	assert.InDelta(t, 600, r.fl.corr.ESPBrake, 1e-9)
	assert.Equal(t, 0.0, r.fr.corr.ESPBrake)
	assert.Equal(t, 0.0, r.rl.corr.ESPBrake)
	assert.InDelta(t, 0.4, r.rl.corr.ESPCut, 1e-9)
	assert.Equal(t, 0.0, r.fl.corr.ESPCut)
}

func TestESPOversteerWeightsRear(t *testing.T) {
	r := newRig(mgl64.Vec3{0, 0, 20})
	r.rl.state.SidewaysSlip = 0.3
	r.rr.state.SidewaysSlip = 0.3
	c := New(onlyConfig(func(c *Config) { c.ESP = true }))

	flags := c.Tick(0.02, r.body, r.refs, Inputs{Direction: 1})
	require.True(t, flags.Oversteer)
	assert.False(t, flags.Understeer)

	// 0.6 summed slip * 0.5 intensity * 1500 Nm * 2
	assert.InDelta(t, 900, r.rr.corr.ESPBrake, 1e-9)
	assert.Equal(t, 0.0, r.rl.corr.ESPBrake)
}

func TestESPQuietBelowThreshold(t *testing.T) {
	r := newRig(mgl64.Vec3{0, 0, 20})
	r.fl.state.SidewaysSlip = 0.2
	r.rl.state.SidewaysSlip = -0.2
	c := New(onlyConfig(func(c *Config) { c.ESP = true }))

	flags := c.Tick(0.02, r.body, r.refs, Inputs{Direction: 1})
	assert.False(t, flags.ESP)
	for _, w := range []*fakeWheel{r.fl, r.fr, r.rl, r.rr} {
		assert.Equal(t, tire.Corrections{}, w.corr)
	}
}

func TestSteerHelperRemovesLateralVelocity(t *testing.T) {
	r := newRig(mgl64.Vec3{3, 0, 20})
	c := New(onlyConfig(func(c *Config) { c.SteerHelper = true }))

	c.Tick(0.02, r.body, r.refs, Inputs{})
	assert.InDelta(t, 2.7, r.body.Velocity().X(), 1e-9)
	assert.InDelta(t, 20, r.body.Velocity().Z(), 1e-9)
}

func TestSteerHelperFadesWhenAirborne(t *testing.T) {
	r := newRig(mgl64.Vec3{3, 0, 20})
	for _, w := range []*fakeWheel{r.fl, r.fr, r.rl, r.rr} {
		w.state = tire.WheelState{}
	}
	c := New(onlyConfig(func(c *Config) { c.SteerHelper = true }))

	for i := 0; i < 100; i++ {
		c.Tick(0.02, r.body, r.refs, Inputs{})
	}
	assert.Less(t, c.Flags().WheelForceFactor, 0.01)
	assert.Less(t, c.Flags().GroundedFactor, 0.01)

	before := r.body.Velocity().X()
	c.Tick(0.02, r.body, r.refs, Inputs{})
	assert.InDelta(t, before, r.body.Velocity().X(), 1e-4)
}

func TestSteerHelperDampsYawGrowingTheSlide(t *testing.T) {
	r := newRig(mgl64.Vec3{-3, 0, 20})
	r.body.SetAngularVelocity(mgl64.Vec3{0, 1, 0})
	c := New(onlyConfig(func(c *Config) { c.SteerHelper = true }))

	flags := c.Tick(0.02, r.body, r.refs, Inputs{})
	assert.Less(t, flags.DriftAngle, 0.0)
	assert.InDelta(t, 0.9, r.body.AngularVelocity().Y(), 1e-9)

	// yaw toward the velocity is left alone
	r2 := newRig(mgl64.Vec3{3, 0, 20})
	r2.body.SetAngularVelocity(mgl64.Vec3{0, 1, 0})
	New(onlyConfig(func(c *Config) { c.SteerHelper = true })).Tick(0.02, r2.body, r2.refs, Inputs{})
	assert.Equal(t, 1.0, r2.body.AngularVelocity().Y())
}

func TestTractionHelperFloor(t *testing.T) {
	r := newRig(mgl64.Vec3{-5, 0, 10})
	r.body.SetAngularVelocity(mgl64.Vec3{0, 2, 0})
	c := New(onlyConfig(func(c *Config) { c.TractionHelper = true }))

	c.Tick(0.02, r.body, r.refs, Inputs{Steer: 0.5})
	assert.InDelta(t, 0.8, r.fl.corr.TractionHelper, 1e-9)
	assert.InDelta(t, 0.8, r.fr.corr.TractionHelper, 1e-9)
	assert.Equal(t, 0.0, r.rl.corr.TractionHelper)

	r.body.SetAngularVelocity(mgl64.Vec3{0, 50, 0})
	r.fl.corr = tire.Corrections{}
	c.Tick(0.02, r.body, r.refs, Inputs{Steer: 0.5})
	assert.InDelta(t, 0.2, r.fl.corr.TractionHelper, 1e-9)

	// slide agrees with steering: no change
	r.fl.corr = tire.Corrections{}
	c.Tick(0.02, r.body, r.refs, Inputs{Steer: -0.5})
	assert.Equal(t, 0.0, r.fl.corr.TractionHelper)
}

func TestDriftAngleLimiter(t *testing.T) {
	// 45 degree slide with yaw growing it
	r := newRig(mgl64.Vec3{-10, 0, 10})
	r.body.SetAngularVelocity(mgl64.Vec3{0, 1.5, 0})
	c := New(onlyConfig(func(c *Config) { c.DriftAngleLimiter = true }))

	flags := c.Tick(0.02, r.body, r.refs, Inputs{})
	assert.InDelta(t, -45, flags.DriftAngle, 1e-9)
	assert.Equal(t, 0.0, r.body.AngularVelocity().Y())

	// within the limit
	r = newRig(mgl64.Vec3{-5, 0, 10})
	r.body.SetAngularVelocity(mgl64.Vec3{0, 1.5, 0})
	c.Tick(0.02, r.body, r.refs, Inputs{})
	assert.Equal(t, 1.5, r.body.AngularVelocity().Y())
}

func TestGroundingGatesTractionAndDriftLimiter(t *testing.T) {
	tests := []struct {
		name       string
		grounded   bool
		wantHelper float64
		wantYaw    float64
	}{
		{"grounded", true, 0.85, 0},
		{"airborne", false, 1, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(mgl64.Vec3{-10, 0, 10})
			if !tt.grounded {
				for _, w := range []*fakeWheel{r.fl, r.fr, r.rl, r.rr} {
					w.state = tire.WheelState{}
				}
			}
			c := New(onlyConfig(func(c *Config) {
				c.TractionHelper = true
				c.DriftAngleLimiter = true
			}))
			for i := 0; i < 100; i++ {
				r.body.SetAngularVelocity(mgl64.Vec3{0, 1.5, 0})
				c.Tick(0.02, r.body, r.refs, Inputs{Steer: 0.5})
			}
			assert.InDelta(t, tt.wantHelper, r.fl.corr.TractionHelper, 0.01)
			assert.InDelta(t, tt.wantYaw, r.body.AngularVelocity().Y(), 1e-9)
		})
	}
}

func TestAngularDragGrowsWithSpeed(t *testing.T) {
	r := newRig(mgl64.Vec3{0, 0, 100 / 3.6})
	r.body.SetAngularVelocity(mgl64.Vec3{0, 1, 0})
	c := New(onlyConfig(func(c *Config) { c.AngularDrag = true }))
	c.Tick(0.02, r.body, r.refs, Inputs{})

	r.body.Step(0.02)
	// drag 0.1 at 100 km/h
	assert.InDelta(t, 1/(1+0.02*0.1), r.body.AngularVelocity().Y(), 1e-9)
}

func TestSanitize(t *testing.T) {
	cfg := Config{ABSIntensity: 3, MaxDriftAngle: 400, TractionHelperFloor: -1}
	cfg.Sanitize()
	assert.Equal(t, 1.0, cfg.ABSIntensity)
	assert.Equal(t, 90.0, cfg.MaxDriftAngle)
	assert.Equal(t, 0.0, cfg.TractionHelperFloor)
	assert.False(t, math.IsNaN(cfg.ABSThreshold))
}

package powertrain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct {
	blowOffs    int
	limiterCuts int
}

func (r *eventRecorder) BlowOff(float64) { r.blowOffs++ }
func (r *eventRecorder) RevLimiterCut()  { r.limiterCuts++ }

func tickN(e *Engine, n int, throttle, clutch float64) float64 {
	var torque float64
	for i := 0; i < n; i++ {
		torque = e.Tick(0.02, throttle, clutch)
	}
	return torque
}

func TestEngineStoppedProducesNoTorque(t *testing.T) {
	e := NewEngine(DefaultEngineConfig(), nil)
	assert.Equal(t, 0.0, tickN(e, 10, 1, 1))
	assert.Equal(t, 0.0, e.RPM())

	e.StartImmediately()
	tickN(e, 25, 1, 1)
	require.Greater(t, e.RPM(), 1000.0)

	e.Stop()
	assert.Equal(t, 0.0, tickN(e, 200, 1, 1))
	assert.Less(t, e.RPM(), 1.0)
	assert.GreaterOrEqual(t, e.RPM(), 0.0)
}

func TestEngineStartDelay(t *testing.T) {
	e := NewEngine(DefaultEngineConfig(), nil)
	e.Start()
	tickN(e, 30, 0, 1)
	assert.False(t, e.Running())
	assert.True(t, e.State().Starting)
	tickN(e, 20, 0, 1)
	assert.True(t, e.Running())
	assert.False(t, e.State().Starting)
}

func TestEngineFreeRevsUnderThrottle(t *testing.T) {
	e := NewEngine(DefaultEngineConfig(), nil)
	e.StartImmediately()
	tickN(e, 50, 1, 1)
	assert.Greater(t, e.RPM(), 3000.0)
	assert.LessOrEqual(t, e.RPM(), e.Config().MaxRPM)
}

func TestEngineRevLimiterCutsFuel(t *testing.T) {
	rec := &eventRecorder{}
	e := NewEngine(DefaultEngineConfig(), rec)
	e.StartImmediately()

	cut := false
	for i := 0; i < 150; i++ {
		torque := e.Tick(0.02, 1, 1)
		s := e.State()
		if s.RevLimiterCutting {
			cut = true
			assert.Equal(t, 0.0, s.FuelInput)
			assert.Equal(t, 0.0, torque)
		}
		assert.LessOrEqual(t, s.RPM, e.Config().MaxRPM)
	}
	assert.True(t, cut)
	assert.Greater(t, rec.limiterCuts, 0)
}

func TestEngineTorqueClampedToRatedMultiple(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.MaxTorqueNm = 100
	cfg.VVT = true
	cfg.VVTLowRPM = 0
	cfg.VVTHighRPM = 10000
	cfg.VVTMultiplier = 5
	e := NewEngine(cfg, nil)
	e.StartImmediately()
	torque := e.Tick(0.02, 1, 0)
	assert.InDelta(t, 180.0, torque, 1e-9)
}

func TestEngineBlowOff(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Turbo = true
	cfg.RevLimiter = false
	rec := &eventRecorder{}
	e := NewEngine(cfg, rec)
	e.StartImmediately()

	tickN(e, 50, 1, 1)
	require.Greater(t, e.State().TurboPSI, cfg.BlowOffMinPSI)
	assert.Equal(t, 0, rec.blowOffs)

	e.Tick(0.02, 0, 1)
	assert.Equal(t, 1, rec.blowOffs)
	assert.Equal(t, 0.0, e.State().TurboPSI)
}

func TestEngineBraking(t *testing.T) {
	e := NewEngine(DefaultEngineConfig(), nil)
	e.StartImmediately()
	e.SetDrivenRPM(5000)
	tickN(e, 50, 1, 0)
	require.Greater(t, e.RPM(), 2000.0)
	assert.Less(t, e.Tick(0.02, 0, 0), 0.0)
}

func TestEngineIdleCompensation(t *testing.T) {
	tests := []struct {
		name     string
		rpm      float64
		throttle float64
		wantFuel float64
	}{
		{"at idle", 800, 0, 0.5},
		{"inside the band", 900, 0, 0.25},
		{"top of the band", 1000, 0, 0},
		{"cruising", 3000, 0, 0},
		{"adds to throttle", 900, 0.6, 0.85},
		{"saturates", 800, 0.8, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(DefaultEngineConfig(), nil)
			e.StartImmediately()
			e.state.RPM = tt.rpm
			e.Tick(0.02, tt.throttle, 1)
			assert.InDelta(t, tt.wantFuel, e.State().FuelInput, 1e-9)
		})
	}
}

func TestEngineHoldsIdleWithoutThrottle(t *testing.T) {
	e := NewEngine(DefaultEngineConfig(), nil)
	e.StartImmediately()
	cfg := e.Config()

	tickN(e, 250, 0, 1)
	assert.GreaterOrEqual(t, e.RPM(), cfg.MinRPM*0.9)
	assert.LessOrEqual(t, e.RPM(), cfg.MinRPM+cfg.IdleBand)
	assert.Greater(t, e.State().FuelInput, 0.0)
}

func TestEngineTemperatureMultiplier(t *testing.T) {
	tests := []struct {
		name     string
		simulate bool
		temp     float64
		want     float64
	}{
		{"disabled", false, 20, 1},
		{"ambient", true, 20, 0.85},
		{"warming", true, 50, 0.925},
		{"warm", true, 80, 1},
		{"operating", true, 90, 1},
		{"hot", true, 110, 1},
		{"overheating", true, 120, 0.9},
		{"overheated", true, 150, 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			cfg.SimulateTemperature = tt.simulate
			e := NewEngine(cfg, nil)
			e.state.EngineTemperature = tt.temp
			assert.InDelta(t, tt.want, e.temperatureMultiplier(), 1e-9)
		})
	}
}

func TestEngineWarmsUpAndCools(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.SimulateTemperature = true
	e := NewEngine(cfg, nil)
	require.Equal(t, cfg.AmbientTemperature, e.State().EngineTemperature)
	e.StartImmediately()

	tickN(e, 50, 0, 1)
	warming := e.State().EngineTemperature
	assert.Greater(t, warming, cfg.AmbientTemperature)
	assert.Less(t, warming, cfg.AmbientTemperature+10)

	tickN(e, 3000, 0, 1)
	assert.InDelta(t, cfg.OperatingTemp, e.State().EngineTemperature, 3)
	assert.Zero(t, e.State().KnockFactor)

	e.Stop()
	hot := e.State().EngineTemperature
	tickN(e, 500, 0, 1)
	assert.Less(t, e.State().EngineTemperature, hot)
	assert.GreaterOrEqual(t, e.State().EngineTemperature, cfg.AmbientTemperature)

	// without the model the engine sits at operating temperature
	e = NewEngine(DefaultEngineConfig(), nil)
	e.StartImmediately()
	e.Tick(0.02, 1, 1)
	assert.Equal(t, cfg.OperatingTemp, e.State().EngineTemperature)
}

func TestEngineKnock(t *testing.T) {
	tests := []struct {
		name      string
		fuel      float64
		temp      float64
		wantKnock float64
	}{
		{"overheated at full throttle", 1, 125, 0.5},
		{"overheated at part throttle", 0.5, 125, 0},
		{"operating temperature", 1, 90, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			cfg.SimulateTemperature = true
			e := NewEngine(cfg, nil)
			e.state = EngineState{Running: true, RPM: cfg.MaxRPM, FuelInput: tt.fuel, EngineTemperature: tt.temp}
			e.updateTemperature(0.5)
			assert.InDelta(t, tt.wantKnock, e.State().KnockFactor, 1e-9)
		})
	}
}

func TestEngineKnockCostsTorque(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.SimulateTemperature = true
	clean, knocking := NewEngine(cfg, nil), NewEngine(cfg, nil)
	for _, e := range []*Engine{clean, knocking} {
		e.StartImmediately()
		e.state.RPM, e.state.TargetRPMRaw = 4500, 4500
		e.state.EngineTemperature = cfg.OperatingTemp
	}
	knocking.state.KnockFactor = 1

	// part throttle keeps the knock target at zero, so the factor only decays
	want := clean.Tick(0.001, 0.5, 1) * (1 - knockPenalty*(1-0.001))
	assert.InDelta(t, want, knocking.Tick(0.001, 0.5, 1), 1e-6)
}

func TestEngineVVTBand(t *testing.T) {
	tests := []struct {
		name string
		vvt  bool
		rpm  float64
		want float64
	}{
		{"below the band", true, 3499, 1},
		{"low edge", true, 3500, 1.08},
		{"inside", true, 4500, 1.08},
		{"high edge", true, 6000, 1.08},
		{"above the band", true, 6001, 1},
		{"disabled", false, 4500, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			cfg.VVT = tt.vvt
			e := NewEngine(cfg, nil)
			e.state.RPM = tt.rpm
			assert.InDelta(t, tt.want, e.vvtMultiplier(), 1e-9)
		})
	}
}

func TestEngineVVTRaisesTorqueInBand(t *testing.T) {
	for _, tt := range []struct {
		rpm   float64
		ratio float64
	}{
		{4500, 1.08},
		{2000, 1},
	} {
		cfg := DefaultEngineConfig()
		plain := NewEngine(cfg, nil)
		cfg.VVT = true
		vvt := NewEngine(cfg, nil)
		for _, e := range []*Engine{plain, vvt} {
			e.StartImmediately()
			e.state.RPM, e.state.TargetRPMRaw = tt.rpm, tt.rpm
		}
		base := plain.Tick(0.001, 0.5, 1)
		require.Greater(t, base, 0.0)
		assert.InDelta(t, tt.ratio, vvt.Tick(0.001, 0.5, 1)/base, 1e-9)
	}
}

func TestClutchTransmitScalesTorque(t *testing.T) {
	c := NewClutch(DefaultClutchConfig())
	for _, in := range []float64{0, 0.25, 0.5, 0.75, 1} {
		c.state.ClutchInput = in
		assert.InDelta(t, 200*(1-in), c.Transmit(200), 1e-12)
	}
	c.state.ClutchInput = 1
	assert.Equal(t, 0.0, c.Transmit(-350))
}

func TestClutchTarget(t *testing.T) {
	c := NewClutch(DefaultClutchConfig())
	tests := []struct {
		name        string
		throttle    float64
		rpm         float64
		shifting    bool
		handbraking bool
		want        float64
	}{
		{"closed under throttle", 0.5, 3000, false, false, 0},
		{"partial at light throttle", 0.05, 3000, false, false, 0.5},
		{"open at zero throttle", 0, 3000, false, false, 1},
		{"slips below engage rpm", 1, 800, false, false, 0.5},
		{"open while shifting", 1, 3000, true, false, 1},
		{"open while handbraking", 1, 3000, false, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, c.Target(tt.throttle, tt.rpm, tt.shifting, tt.handbraking), 1e-9)
		})
	}
}

func TestClutchRateBoundedByInertia(t *testing.T) {
	cfg := DefaultClutchConfig()
	cfg.Inertia = 0.5
	c := NewClutch(cfg)
	before := c.Input()
	after := c.Tick(0.1, 1, 3000, false, false)
	assert.Less(t, after, before)
	assert.LessOrEqual(t, before-after, (1-cfg.Inertia)*0.1+1e-9)
}

func TestClutchSnapsToEnds(t *testing.T) {
	c := NewClutch(DefaultClutchConfig())
	for i := 0; i < 300; i++ {
		c.Tick(0.02, 1, 3000, false, false)
	}
	assert.Equal(t, 0.0, c.Input())
	for i := 0; i < 300; i++ {
		c.Tick(0.02, 0, 3000, false, false)
	}
	assert.Equal(t, 1.0, c.Input())
}

func TestGearboxShiftIsTimed(t *testing.T) {
	g := NewGearbox(DefaultGearboxConfig())
	assert.InDelta(t, 4.35, g.Ratio(), 1e-9)
	assert.InDelta(t, 100*4.35*3.2, g.DrivenRPM(100, 3.2), 1e-9)

	g.SelectReverse()
	assert.True(t, g.Shifting())
	assert.Equal(t, 0.0, g.Transmit(100))
	g.Tick(0.15, 3000, 0)
	assert.True(t, g.Shifting())
	g.Tick(0.15, 3000, 0)
	assert.False(t, g.Shifting())
	assert.Equal(t, GearReverse, g.State().Mode)
	assert.InDelta(t, -3.9, g.Ratio(), 1e-9)
	assert.Equal(t, -1.0, g.Direction())
	assert.InDelta(t, -390.0, g.Transmit(100), 1e-9)
}

func TestGearboxAutomaticShifts(t *testing.T) {
	g := NewGearbox(DefaultGearboxConfig())
	g.Tick(0.01, 6500, 1)
	require.True(t, g.Shifting())
	for i := 0; i < 30; i++ {
		g.Tick(0.01, 4000, 1)
	}
	assert.Equal(t, 1, g.State().Gear)

	g.Tick(0.01, 1500, 0)
	for i := 0; i < 30; i++ {
		g.Tick(0.01, 4000, 0)
	}
	assert.Equal(t, 0, g.State().Gear)
}

func TestGearboxSanitize(t *testing.T) {
	g := NewGearbox(GearboxConfig{Ratios: []float64{-1, 0}})
	assert.Equal(t, []float64{1}, g.cfg.Ratios)
	assert.Equal(t, 1.0, g.cfg.ReverseRatio)
}

func TestOpenDifferentialEqualRPMSplitsEvenly(t *testing.T) {
	d := NewDifferential(DifferentialConfig{Mode: DiffOpen, FinalDriveRatio: 3.2})
	l, r := d.Tick(100, 500, 500)
	assert.Equal(t, 0.0, d.State().LeftSlipRatio)
	assert.Equal(t, 0.0, d.State().RightSlipRatio)
	assert.InDelta(t, 160.0, l, 1e-9)
	assert.InDelta(t, 160.0, r, 1e-9)
}

func TestDifferentialModes(t *testing.T) {
	tests := []struct {
		mode      DifferentialMode
		wantLeft  float64
		wantRight float64
	}{
		// left at 100 rpm, right at 300: slip ratio 0.5
		{DiffOpen, 200, 0},
		{DiffLimited, 120, 80},
		{DiffFullLocked, 100, 100},
		{DiffDirect, 100, 100},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			d := NewDifferential(DifferentialConfig{Mode: tt.mode, FinalDriveRatio: 2, LimitedSlipRatio: 80})
			l, r := d.Tick(100, 100, 300)
			assert.InDelta(t, tt.wantLeft, l, 1e-9)
			assert.InDelta(t, tt.wantRight, r, 1e-9)
		})
	}
}

func TestDifferentialNeverExceedsOrReversesInput(t *testing.T) {
	modes := []DifferentialMode{DiffOpen, DiffLimited, DiffFullLocked, DiffDirect}
	torques := []float64{-250, 0, 80, 400}
	rpms := [][2]float64{{0, 0}, {100, 300}, {-50, 200}, {900, 10}, {300, -300}, {-400, -100}}

	for _, mode := range modes {
		d := NewDifferential(DifferentialConfig{Mode: mode, FinalDriveRatio: 3.7, LimitedSlipRatio: 40})
		for _, torque := range torques {
			for _, rpm := range rpms {
				l, r := d.Tick(torque, rpm[0], rpm[1])
				raw := torque * 3.7
				assert.LessOrEqual(t, math.Abs(l)+math.Abs(r), math.Abs(raw)+1e-9)
				if sum := l + r; sum != 0 {
					assert.Equal(t, math.Signbit(raw), math.Signbit(sum), "mode %s torque %v rpm %v", mode, torque, rpm)
				}
				for _, out := range []float64{l, r} {
					if out != 0 {
						assert.Equal(t, math.Signbit(raw), math.Signbit(out))
					}
				}
			}
		}
	}
}

func TestSlipRatioGuardsZeroRPM(t *testing.T) {
	assert.Equal(t, 0.0, SlipRatio(0, 0))
	assert.InDelta(t, 1.0, SlipRatio(0, 50), 1e-9)
}

func TestDifferentialSanitize(t *testing.T) {
	d := NewDifferential(DifferentialConfig{Mode: "bogus", FinalDriveRatio: -2, LimitedSlipRatio: 250})
	assert.Equal(t, DiffOpen, d.Config().Mode)
	assert.Equal(t, 1.0, d.Config().FinalDriveRatio)
	assert.Equal(t, 100.0, d.Config().LimitedSlipRatio)
}

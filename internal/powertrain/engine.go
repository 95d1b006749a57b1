// Package powertrain implements the torque-producing half of the drivetrain:
// Engine, Clutch, Gearbox and Differential. Each stage is advanced with an
// explicit Tick and hands its output to the next stage by plain function call.
package powertrain

import (
	"math"

	"github.com/samber/lo"

	"github.com/cxd309/vehicle-sim/internal/numeric"
)

const (
	// freeRevClutch is the clutch input at and above which the engine is
	// considered decoupled from the wheels.
	freeRevClutch = 0.9
	// knockPenalty is the torque share lost at full knock.
	knockPenalty = 0.15
)

// EngineConfig holds the static engine parameters.
type EngineConfig struct {
	MinRPM      float64       `json:"min_rpm"`                // idle
	MaxRPM      float64       `json:"max_rpm"`                // redline
	PeakRPM     float64       `json:"peak_rpm"`               // rpm of rated torque, used by the default curve
	MaxTorqueNm float64       `json:"max_torque_nm"`          // rated torque
	TorqueCurve numeric.Curve `json:"torque_curve,omitempty"` // rpm -> 0..1 of rated torque

	AccelerationRate float64 `json:"acceleration_rate"` // fraction of MaxRPM per second at full fuel
	DecelerationRate float64 `json:"deceleration_rate"` // fraction of MaxRPM per second at full friction
	FreeRevAccel     float64 `json:"free_rev_accel"`    // multiplier while the clutch is open
	FreeRevDecel     float64 `json:"free_rev_decel"`
	CouplingRate     float64 `json:"coupling_rate"`   // 1/s pull toward the driven rpm at a closed clutch
	RPMSmoothTime    float64 `json:"rpm_smooth_time"` // seconds
	IdleBand         float64 `json:"idle_band"`       // rpm above idle over which idle compensation fades out
	EngineBraking    float64 `json:"engine_braking"`  // fraction of rated torque at redline with no fuel

	RevLimiter          bool    `json:"rev_limiter"`
	RevLimiterFrequency float64 `json:"rev_limiter_frequency"` // cut cycles per second
	RevLimiterBleed     float64 `json:"rev_limiter_bleed"`     // rpm per second shed while cutting

	Turbo            bool    `json:"turbo"`
	MaxTurboPSI      float64 `json:"max_turbo_psi"`
	TurboSpoolRate   float64 `json:"turbo_spool_rate"`   // psi per second
	TurboTorqueGain  float64 `json:"turbo_torque_gain"`  // torque multiplier at max psi is 1+gain
	BlowOffThreshold float64 `json:"blow_off_threshold"` // fuel input
	BlowOffMinPSI    float64 `json:"blow_off_min_psi"`

	VVT           bool    `json:"vvt"`
	VVTLowRPM     float64 `json:"vvt_low_rpm"`
	VVTHighRPM    float64 `json:"vvt_high_rpm"`
	VVTMultiplier float64 `json:"vvt_multiplier"`

	SimulateTemperature bool    `json:"simulate_temperature"`
	AmbientTemperature  float64 `json:"ambient_temperature"`
	OperatingTemp       float64 `json:"operating_temperature"`
	HeatRate            float64 `json:"heat_rate"` // °C per second at full load

	StartDelay float64 `json:"start_delay"` // seconds from Start() to running
}

// DefaultEngineConfig returns a 300 Nm naturally aspirated petrol engine.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinRPM:              800,
		MaxRPM:              7000,
		PeakRPM:             4500,
		MaxTorqueNm:         300,
		AccelerationRate:    0.75,
		DecelerationRate:    0.35,
		FreeRevAccel:        2.0,
		FreeRevDecel:        1.5,
		CouplingRate:        12,
		RPMSmoothTime:       0.05,
		IdleBand:            200,
		EngineBraking:       0.15,
		RevLimiter:          true,
		RevLimiterFrequency: 12,
		RevLimiterBleed:     1500,
		MaxTurboPSI:         6,
		TurboSpoolRate:      4,
		TurboTorqueGain:     0.3,
		BlowOffThreshold:    0.25,
		BlowOffMinPSI:       1,
		VVTLowRPM:           3500,
		VVTHighRPM:          6000,
		VVTMultiplier:       1.08,
		AmbientTemperature:  20,
		OperatingTemp:       90,
		HeatRate:            0.6,
		StartDelay:          0.75,
	}
}

// Sanitize clamps out-of-range values in place.
func (c *EngineConfig) Sanitize() {
	c.MinRPM = math.Max(100, c.MinRPM)
	c.MaxRPM = math.Max(c.MinRPM+500, c.MaxRPM)
	c.PeakRPM = lo.Clamp(c.PeakRPM, c.MinRPM, c.MaxRPM)
	c.MaxTorqueNm = math.Max(0, c.MaxTorqueNm)
	c.AccelerationRate = math.Max(0, c.AccelerationRate)
	c.DecelerationRate = math.Max(0, c.DecelerationRate)
	c.FreeRevAccel = math.Max(1, c.FreeRevAccel)
	c.FreeRevDecel = math.Max(1, c.FreeRevDecel)
	c.CouplingRate = math.Max(0, c.CouplingRate)
	c.RPMSmoothTime = math.Max(0.001, c.RPMSmoothTime)
	c.IdleBand = math.Max(1, c.IdleBand)
	c.EngineBraking = numeric.Clamp01(c.EngineBraking)
	c.RevLimiterFrequency = math.Max(0.1, c.RevLimiterFrequency)
	c.MaxTurboPSI = math.Max(0, c.MaxTurboPSI)
	c.TurboSpoolRate = math.Max(0.01, c.TurboSpoolRate)
	c.BlowOffThreshold = numeric.Clamp01(c.BlowOffThreshold)
	c.VVTMultiplier = math.Max(0, c.VVTMultiplier)
	c.StartDelay = math.Max(0, c.StartDelay)
	if len(c.TorqueCurve) == 0 {
		c.TorqueCurve = defaultTorqueCurve(c.MinRPM, c.PeakRPM, c.MaxRPM)
	}
}

func defaultTorqueCurve(minRPM, peakRPM, maxRPM float64) numeric.Curve {
	return numeric.Curve{
		{X: 0, Y: 0},
		{X: minRPM, Y: 0.65},
		{X: peakRPM, Y: 1},
		{X: maxRPM, Y: 0.8},
	}
}

// EngineEvents receives the engine's edge-triggered notifications.
type EngineEvents interface {
	BlowOff(psi float64)
	RevLimiterCut()
}

// EngineState is the mutable engine state. Owned by Engine.
type EngineState struct {
	RPM               float64 `json:"rpm"`
	TargetRPMRaw      float64 `json:"target_rpm_raw"`
	FuelInput         float64 `json:"fuel_input"`
	ProducedTorqueNm  float64 `json:"produced_torque_nm"`
	TurboPSI          float64 `json:"turbo_psi"`
	EngineTemperature float64 `json:"engine_temperature"`
	KnockFactor       float64 `json:"knock_factor"`
	Running           bool    `json:"running"`
	Starting          bool    `json:"starting"`
	RevLimiterCutting bool    `json:"rev_limiter_cutting"`
}

// Engine turns throttle into crank torque.
type Engine struct {
	cfg    EngineConfig
	state  EngineState
	events EngineEvents

	drivenRPM    float64
	rpmVelocity  float64
	startTimer   float64
	limiterTimer float64
	prevFuel     float64
}

// NewEngine returns a stopped engine. events may be nil.
func NewEngine(cfg EngineConfig, events EngineEvents) *Engine {
	cfg.Sanitize()
	return &Engine{
		cfg:    cfg,
		events: events,
		state:  EngineState{EngineTemperature: cfg.AmbientTemperature},
	}
}

// Config returns the sanitized configuration.
func (e *Engine) Config() EngineConfig { return e.cfg }

// State returns a copy of the current state.
func (e *Engine) State() EngineState { return e.state }

// RPM returns the current crank speed.
func (e *Engine) RPM() float64 { return e.state.RPM }

// Running reports whether the engine is producing torque.
func (e *Engine) Running() bool { return e.state.Running }

// Start begins the start sequence. The engine runs after StartDelay seconds of ticks.
func (e *Engine) Start() {
	if e.state.Running || e.state.Starting {
		return
	}
	e.state.Starting = true
	e.startTimer = 0
}

// StartImmediately puts the engine straight into the running state at idle.
func (e *Engine) StartImmediately() {
	e.state.Starting = false
	e.state.Running = true
	e.state.RPM = e.cfg.MinRPM
	e.state.TargetRPMRaw = e.cfg.MinRPM
}

// Stop kills the engine.
func (e *Engine) Stop() {
	e.state.Running = false
	e.state.Starting = false
}

// SetDrivenRPM feeds back the crank speed implied by the wheels through the
// current gear. It is used for RPM coupling when the clutch is closed.
func (e *Engine) SetDrivenRPM(rpm float64) { e.drivenRPM = math.Abs(rpm) }

// Tick advances the engine by dt and returns the produced torque in Nm.
// clutchSlip is the clutch input: 0 locked, 1 fully open.
func (e *Engine) Tick(dt, throttleInput, clutchSlip float64) float64 {
	if dt <= 0 {
		return e.state.ProducedTorqueNm
	}
	cfg := e.cfg
	s := &e.state

	if s.Starting {
		e.startTimer += dt
		// crank the engine up toward idle while starting
		s.TargetRPMRaw = cfg.MinRPM * numeric.InverseLerp(0, cfg.StartDelay, e.startTimer)
		if e.startTimer >= cfg.StartDelay {
			s.Starting = false
			s.Running = true
		}
	}

	if !s.Running {
		s.FuelInput = 0
		s.ProducedTorqueNm = 0
		s.RevLimiterCutting = false
		if !s.Starting {
			s.TargetRPMRaw = 0
		}
		s.RPM = math.Max(0, numeric.SmoothDamp(s.RPM, s.TargetRPMRaw, &e.rpmVelocity, cfg.RPMSmoothTime*4, 0, dt))
		s.TurboPSI = numeric.MoveTowards(s.TurboPSI, 0, cfg.TurboSpoolRate*2*dt)
		e.updateTemperature(dt)
		return 0
	}

	throttleInput = numeric.Clamp01(throttleInput)
	clutchSlip = numeric.Clamp01(clutchSlip)

	idleInput := numeric.Clamp01((cfg.MinRPM+cfg.IdleBand-s.RPM)/cfg.IdleBand) * 0.5
	s.FuelInput = numeric.Clamp01(throttleInput + idleInput)

	e.updateRevLimiter(dt)

	freeRev := clutchSlip >= freeRevClutch
	accelMul, decelMul := 1.0, 1.0
	if freeRev {
		accelMul, decelMul = cfg.FreeRevAccel, cfg.FreeRevDecel
	}

	rpmPosition := numeric.InverseLerp(0, cfg.MaxRPM, s.RPM)
	friction := numeric.Lerp(0.3, 1, rpmPosition) * e.temperatureFriction()

	s.TargetRPMRaw += s.FuelInput * cfg.AccelerationRate * accelMul * cfg.MaxRPM * dt
	s.TargetRPMRaw -= friction * cfg.DecelerationRate * decelMul * cfg.MaxRPM * dt
	if s.RevLimiterCutting {
		s.TargetRPMRaw -= cfg.RevLimiterBleed * dt
	}
	if !freeRev {
		coupled := math.Max(e.drivenRPM, cfg.MinRPM*0.5)
		s.TargetRPMRaw = numeric.Lerp(s.TargetRPMRaw, coupled, (1-clutchSlip)*cfg.CouplingRate*dt)
	}
	s.TargetRPMRaw = lo.Clamp(s.TargetRPMRaw, 0, cfg.MaxRPM)

	s.RPM = numeric.SmoothDamp(s.RPM, s.TargetRPMRaw, &e.rpmVelocity, cfg.RPMSmoothTime, 0, dt)
	s.RPM = lo.Clamp(s.RPM, 0, cfg.MaxRPM)

	e.updateTurbo(dt)
	e.updateTemperature(dt)

	torque := cfg.TorqueCurve.Evaluate(s.RPM) * cfg.MaxTorqueNm * s.FuelInput
	torque *= e.temperatureMultiplier()
	torque *= e.vvtMultiplier()
	torque *= 1 - knockPenalty*s.KnockFactor
	torque *= e.turboMultiplier()

	if !freeRev && s.FuelInput < 0.01 {
		span := math.Max(1, cfg.MaxRPM-cfg.MinRPM)
		torque -= cfg.EngineBraking * cfg.MaxTorqueNm * numeric.Clamp01((s.RPM-cfg.MinRPM)/span)
	}

	limit := cfg.MaxTorqueNm * 1.8
	s.ProducedTorqueNm = lo.Clamp(torque, -limit, limit)
	e.prevFuel = s.FuelInput
	return s.ProducedTorqueNm
}

func (e *Engine) updateRevLimiter(dt float64) {
	s := &e.state
	if !e.cfg.RevLimiter || s.RPM < e.cfg.MaxRPM-100 {
		e.limiterTimer = 0
		s.RevLimiterCutting = false
		return
	}
	e.limiterTimer += dt
	phase := math.Mod(e.limiterTimer*e.cfg.RevLimiterFrequency, 1)
	cutting := phase < 0.5
	if cutting && !s.RevLimiterCutting && e.events != nil {
		e.events.RevLimiterCut()
	}
	s.RevLimiterCutting = cutting
	if cutting {
		s.FuelInput = 0
	}
}

func (e *Engine) updateTurbo(dt float64) {
	cfg := e.cfg
	s := &e.state
	if !cfg.Turbo || cfg.MaxTurboPSI <= 0 {
		s.TurboPSI = 0
		return
	}
	// boost builds from ~30% of the rev range
	spool := numeric.InverseLerp(0.3*cfg.MaxRPM, 0.75*cfg.MaxRPM, s.RPM)
	spool = spool * spool * (3 - 2*spool)
	target := cfg.MaxTurboPSI * s.FuelInput * spool

	if e.prevFuel >= cfg.BlowOffThreshold && s.FuelInput < cfg.BlowOffThreshold && s.TurboPSI > cfg.BlowOffMinPSI {
		if e.events != nil {
			e.events.BlowOff(s.TurboPSI)
		}
		s.TurboPSI = 0
		return
	}
	rate := cfg.TurboSpoolRate
	if target < s.TurboPSI {
		rate *= 2
	}
	s.TurboPSI = numeric.MoveTowards(s.TurboPSI, target, rate*dt)
}

func (e *Engine) turboMultiplier() float64 {
	if !e.cfg.Turbo || e.cfg.MaxTurboPSI <= 0 {
		return 1
	}
	return 1 + e.cfg.TurboTorqueGain*e.state.TurboPSI/e.cfg.MaxTurboPSI
}

// vvtMultiplier applies inside the VVT band, edges included.
func (e *Engine) vvtMultiplier() float64 {
	rpm := e.state.RPM
	if !e.cfg.VVT || rpm < e.cfg.VVTLowRPM || rpm > e.cfg.VVTHighRPM {
		return 1
	}
	return e.cfg.VVTMultiplier
}

func (e *Engine) updateTemperature(dt float64) {
	cfg := e.cfg
	s := &e.state
	if !cfg.SimulateTemperature {
		s.EngineTemperature = cfg.OperatingTemp
		s.KnockFactor = 0
		return
	}
	load := 0.0
	if s.Running {
		load = s.FuelInput * numeric.InverseLerp(0, cfg.MaxRPM, s.RPM)
	}
	target := cfg.AmbientTemperature
	if s.Running {
		// the thermostat holds operating temperature; sustained load pushes past it
		target = cfg.OperatingTemp + 30*load
	}
	rate := cfg.HeatRate * (0.5 + 2*load)
	s.EngineTemperature = numeric.MoveTowards(s.EngineTemperature, target, rate*10*dt)

	knockTarget := 0.0
	if s.EngineTemperature > cfg.OperatingTemp+15 && s.FuelInput > 0.8 {
		knockTarget = numeric.InverseLerp(cfg.OperatingTemp+15, cfg.OperatingTemp+30, s.EngineTemperature)
	}
	s.KnockFactor = numeric.MoveTowards(s.KnockFactor, knockTarget, dt)
}

// temperatureMultiplier scales torque: a cold engine is down on power, an
// overheated one loses more.
func (e *Engine) temperatureMultiplier() float64 {
	if !e.cfg.SimulateTemperature {
		return 1
	}
	t := e.state.EngineTemperature
	op := e.cfg.OperatingTemp
	switch {
	case t < op-10:
		return numeric.Lerp(0.85, 1, numeric.InverseLerp(e.cfg.AmbientTemperature, op-10, t))
	case t > op+20:
		return numeric.Lerp(1, 0.8, numeric.InverseLerp(op+20, op+40, t))
	}
	return 1
}

func (e *Engine) temperatureFriction() float64 {
	if !e.cfg.SimulateTemperature {
		return 1
	}
	cold := 1 - numeric.InverseLerp(e.cfg.AmbientTemperature, e.cfg.OperatingTemp, e.state.EngineTemperature)
	return 1 + 0.25*cold
}

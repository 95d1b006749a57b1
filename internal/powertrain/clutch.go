package powertrain

import (
	"math"

	"github.com/cxd309/vehicle-sim/internal/numeric"
)

// ClutchConfig holds the static clutch parameters.
type ClutchConfig struct {
	Inertia             float64 `json:"inertia"`    // 0..1; higher engages slower
	EngageRPM           float64 `json:"engage_rpm"` // below this the clutch slips to avoid stalling
	Automatic           bool    `json:"automatic"`
	SlipWhileShifting   bool    `json:"slip_while_shifting"`
	SlipWhileHandbraked bool    `json:"slip_while_handbraked"`
}

// DefaultClutchConfig returns an automatic clutch.
func DefaultClutchConfig() ClutchConfig {
	return ClutchConfig{
		Inertia:             0.125,
		EngageRPM:           1600,
		Automatic:           true,
		SlipWhileShifting:   true,
		SlipWhileHandbraked: true,
	}
}

// Sanitize clamps out-of-range values in place.
func (c *ClutchConfig) Sanitize() {
	c.Inertia = math.Min(numeric.Clamp01(c.Inertia), 0.99)
	c.EngageRPM = math.Max(0, c.EngageRPM)
}

// ClutchState is owned by Clutch.
type ClutchState struct {
	ClutchInput      float64 `json:"clutch_input"` // 0 locked, 1 fully slipping
	ProducedTorqueNm float64 `json:"produced_torque_nm"`
}

// clutchSnap is the distance from 0 or 1 below which the clutch snaps to the end.
const clutchSnap = 0.02

// Clutch couples the engine to the gearbox.
type Clutch struct {
	cfg         ClutchConfig
	state       ClutchState
	velocity    float64
	manualInput float64
}

// NewClutch returns an open clutch.
func NewClutch(cfg ClutchConfig) *Clutch {
	cfg.Sanitize()
	return &Clutch{cfg: cfg, state: ClutchState{ClutchInput: 1}}
}

// State returns a copy of the clutch state.
func (c *Clutch) State() ClutchState { return c.state }

// Input returns the current clutch input.
func (c *Clutch) Input() float64 { return c.state.ClutchInput }

// SetManualInput sets the pedal position used when the clutch is not automatic.
func (c *Clutch) SetManualInput(v float64) { c.manualInput = numeric.Clamp01(v) }

// Target returns the clutch input the automatic clutch is heading for.
func (c *Clutch) Target(throttleInput, rpm float64, shifting, handbraking bool) float64 {
	if !c.cfg.Automatic {
		return c.manualInput
	}
	target := 1 - math.Min(1, numeric.Clamp01(throttleInput)*10)
	if c.cfg.EngageRPM > 0 && rpm < c.cfg.EngageRPM {
		target = math.Max(target, numeric.Clamp01(1-rpm/c.cfg.EngageRPM))
	}
	if (shifting && c.cfg.SlipWhileShifting) || (handbraking && c.cfg.SlipWhileHandbraked) {
		target = 1
	}
	return target
}

// Tick moves the clutch toward its target and returns the clutch input.
// The rate of change is bounded by (1 - inertia) per second.
func (c *Clutch) Tick(dt, throttleInput, rpm float64, shifting, handbraking bool) float64 {
	target := c.Target(throttleInput, rpm, shifting, handbraking)
	v := numeric.SmoothDamp(c.state.ClutchInput, target, &c.velocity, 0.1, 1-c.cfg.Inertia, dt)
	switch {
	case v < clutchSnap:
		v = 0
	case v > 1-clutchSnap:
		v = 1
	}
	c.state.ClutchInput = numeric.Clamp01(v)
	return c.state.ClutchInput
}

// Transmit passes engine torque through the clutch.
func (c *Clutch) Transmit(receivedTorqueNm float64) float64 {
	c.state.ProducedTorqueNm = receivedTorqueNm * (1 - c.state.ClutchInput)
	return c.state.ProducedTorqueNm
}

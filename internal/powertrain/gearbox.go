package powertrain

import (
	"math"
)

// GearMode selects the drive direction of the gearbox.
type GearMode string

const (
	GearDrive   GearMode = "drive"
	GearNeutral GearMode = "neutral"
	GearReverse GearMode = "reverse"
)

// GearboxConfig holds the static gearbox parameters.
type GearboxConfig struct {
	Ratios       []float64 `json:"ratios"`        // forward ratios, first gear first
	ReverseRatio float64   `json:"reverse_ratio"` // positive; applied with a negative sign
	ShiftTime    float64   `json:"shift_time"`    // seconds
	ShiftUpRPM   float64   `json:"shift_up_rpm"`
	ShiftDownRPM float64   `json:"shift_down_rpm"`
	Automatic    bool      `json:"automatic"`
}

// DefaultGearboxConfig returns a six-speed automatic.
func DefaultGearboxConfig() GearboxConfig {
	return GearboxConfig{
		Ratios:       []float64{4.35, 2.5, 1.66, 1.23, 1.0, 0.85},
		ReverseRatio: 3.9,
		ShiftTime:    0.2,
		ShiftUpRPM:   6200,
		ShiftDownRPM: 2600,
		Automatic:    true,
	}
}

// Sanitize clamps out-of-range values in place.
func (c *GearboxConfig) Sanitize() {
	ratios := c.Ratios[:0:0]
	for _, r := range c.Ratios {
		if r > 0 {
			ratios = append(ratios, r)
		}
	}
	if len(ratios) == 0 {
		ratios = []float64{1}
	}
	c.Ratios = ratios
	c.ReverseRatio = math.Abs(c.ReverseRatio)
	if c.ReverseRatio == 0 {
		c.ReverseRatio = ratios[0]
	}
	c.ShiftTime = math.Max(0, c.ShiftTime)
	if c.ShiftDownRPM >= c.ShiftUpRPM {
		c.ShiftDownRPM = c.ShiftUpRPM * 0.5
	}
}

// GearboxState is owned by Gearbox.
type GearboxState struct {
	Mode     GearMode `json:"mode"`
	Gear     int      `json:"gear"` // 0-based forward gear index
	Shifting bool     `json:"shifting"`
}

// Gearbox multiplies clutch torque by the selected ratio. A shift is an
// elapsed-time state during which no torque passes.
type Gearbox struct {
	cfg        GearboxConfig
	state      GearboxState
	shiftTimer float64
	pending    GearboxState
}

// NewGearbox returns a gearbox in first gear.
func NewGearbox(cfg GearboxConfig) *Gearbox {
	cfg.Sanitize()
	return &Gearbox{cfg: cfg, state: GearboxState{Mode: GearDrive}}
}

// State returns a copy of the gearbox state.
func (g *Gearbox) State() GearboxState { return g.state }

// Shifting reports whether a shift is in progress.
func (g *Gearbox) Shifting() bool { return g.state.Shifting }

// Ratio returns the signed ratio currently engaged; 0 in neutral or mid-shift.
func (g *Gearbox) Ratio() float64 {
	if g.state.Shifting {
		return 0
	}
	return g.ratioOf(g.state)
}

func (g *Gearbox) ratioOf(s GearboxState) float64 {
	switch s.Mode {
	case GearDrive:
		return g.cfg.Ratios[s.Gear]
	case GearReverse:
		return -g.cfg.ReverseRatio
	}
	return 0
}

// Direction returns +1 in drive, -1 in reverse and 0 in neutral.
func (g *Gearbox) Direction() float64 {
	switch g.state.Mode {
	case GearDrive:
		return 1
	case GearReverse:
		return -1
	}
	return 0
}

// SelectDrive engages first gear if not already driving forward.
func (g *Gearbox) SelectDrive() {
	if g.target().Mode != GearDrive {
		g.beginShift(GearboxState{Mode: GearDrive, Gear: 0})
	}
}

// SelectReverse engages reverse.
func (g *Gearbox) SelectReverse() {
	if g.target().Mode != GearReverse {
		g.beginShift(GearboxState{Mode: GearReverse})
	}
}

// SelectNeutral disengages the drive.
func (g *Gearbox) SelectNeutral() {
	g.state = GearboxState{Mode: GearNeutral}
	g.shiftTimer = 0
}

// ShiftUp requests the next forward gear.
func (g *Gearbox) ShiftUp() {
	t := g.target()
	if t.Mode == GearDrive && t.Gear < len(g.cfg.Ratios)-1 {
		g.beginShift(GearboxState{Mode: GearDrive, Gear: t.Gear + 1})
	}
}

// ShiftDown requests the previous forward gear.
func (g *Gearbox) ShiftDown() {
	t := g.target()
	if t.Mode == GearDrive && t.Gear > 0 {
		g.beginShift(GearboxState{Mode: GearDrive, Gear: t.Gear - 1})
	}
}

func (g *Gearbox) target() GearboxState {
	if g.state.Shifting {
		return g.pending
	}
	return g.state
}

func (g *Gearbox) beginShift(to GearboxState) {
	if g.cfg.ShiftTime <= 0 {
		g.state = to
		return
	}
	g.pending = to
	g.state.Shifting = true
	g.shiftTimer = 0
}

// Tick advances a pending shift and, for an automatic gearbox, decides the
// next one from the engine rpm.
func (g *Gearbox) Tick(dt, engineRPM, throttleInput float64) {
	if g.state.Shifting {
		g.shiftTimer += dt
		if g.shiftTimer >= g.cfg.ShiftTime {
			g.state = g.pending
			g.state.Shifting = false
		}
		return
	}
	if !g.cfg.Automatic || g.state.Mode != GearDrive {
		return
	}
	switch {
	case engineRPM >= g.cfg.ShiftUpRPM && throttleInput > 0.05:
		g.ShiftUp()
	case engineRPM <= g.cfg.ShiftDownRPM:
		g.ShiftDown()
	}
}

// Transmit multiplies clutch output torque by the engaged ratio.
func (g *Gearbox) Transmit(torqueNm float64) float64 {
	return torqueNm * g.Ratio()
}

// DrivenRPM converts a wheel rpm into the crank rpm implied by the engaged
// gear and final drive. Neutral or mid-shift returns 0.
func (g *Gearbox) DrivenRPM(wheelRPM, finalDrive float64) float64 {
	return math.Abs(wheelRPM * g.Ratio() * finalDrive)
}

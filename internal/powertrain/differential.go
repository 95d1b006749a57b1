package powertrain

import (
	"math"

	"github.com/cxd309/vehicle-sim/internal/numeric"
)

// DifferentialMode selects how torque is split between the two outputs.
type DifferentialMode string

const (
	DiffOpen       DifferentialMode = "open"
	DiffLimited    DifferentialMode = "limited"
	DiffFullLocked DifferentialMode = "full_locked"
	DiffDirect     DifferentialMode = "direct"
)

// DifferentialConfig holds the static differential parameters.
type DifferentialConfig struct {
	Mode             DifferentialMode `json:"mode"`
	FinalDriveRatio  float64          `json:"final_drive_ratio"`
	LimitedSlipRatio float64          `json:"limited_slip_ratio"` // 0..100, Limited mode only
}

// DefaultDifferentialConfig returns a limited-slip differential.
func DefaultDifferentialConfig() DifferentialConfig {
	return DifferentialConfig{Mode: DiffLimited, FinalDriveRatio: 3.2, LimitedSlipRatio: 80}
}

// Sanitize clamps out-of-range values in place.
func (c *DifferentialConfig) Sanitize() {
	switch c.Mode {
	case DiffOpen, DiffLimited, DiffFullLocked, DiffDirect:
	default:
		c.Mode = DiffOpen
	}
	if c.FinalDriveRatio <= 0 {
		c.FinalDriveRatio = 1
	}
	c.LimitedSlipRatio = math.Max(0, math.Min(100, c.LimitedSlipRatio))
}

// DifferentialState is owned by Differential.
type DifferentialState struct {
	LeftSlipRatio  float64 `json:"left_slip_ratio"`
	RightSlipRatio float64 `json:"right_slip_ratio"`
	OutputLeftNm   float64 `json:"output_left_nm"`
	OutputRightNm  float64 `json:"output_right_nm"`
}

// Differential splits gearbox torque between the left and right wheels of an axle.
type Differential struct {
	cfg   DifferentialConfig
	state DifferentialState
}

// NewDifferential returns a differential with cfg sanitized.
func NewDifferential(cfg DifferentialConfig) *Differential {
	cfg.Sanitize()
	return &Differential{cfg: cfg}
}

// Config returns the sanitized configuration.
func (d *Differential) Config() DifferentialConfig { return d.cfg }

// State returns a copy of the differential state.
func (d *Differential) State() DifferentialState { return d.state }

// FinalDriveRatio returns the axle ratio.
func (d *Differential) FinalDriveRatio() float64 { return d.cfg.FinalDriveRatio }

// SlipRatio returns |ΔRPM| / Σ|RPM| clamped to [0, 1]. Both wheels at rest give 0.
func SlipRatio(leftWheelRPM, rightWheelRPM float64) float64 {
	sum := math.Abs(leftWheelRPM) + math.Abs(rightWheelRPM)
	if sum < 1e-6 {
		return 0
	}
	return numeric.Clamp01(math.Abs(leftWheelRPM-rightWheelRPM) / sum)
}

// Tick splits receivedTorqueNm between the wheels. The split is computed on
// magnitudes and the drive sign is reapplied, so a wheel can lose torque but
// never receives torque against the drive direction, and the unsigned total
// never exceeds |receivedTorque × finalDriveRatio|.
func (d *Differential) Tick(receivedTorqueNm, leftWheelRPM, rightWheelRPM float64) (outputLeftNm, outputRightNm float64) {
	rawTotal := receivedTorqueNm * d.cfg.FinalDriveRatio
	slip := SlipRatio(leftWheelRPM, rightWheelRPM)

	var left, right float64
	switch d.cfg.Mode {
	case DiffOpen, DiffLimited:
		if d.cfg.Mode == DiffLimited {
			slip *= 1 - d.cfg.LimitedSlipRatio/100
		}
		// the slower wheel takes the slip and robs torque from the faster one
		if math.Abs(leftWheelRPM) < math.Abs(rightWheelRPM) {
			left, right = -slip, slip
		} else if math.Abs(rightWheelRPM) < math.Abs(leftWheelRPM) {
			left, right = slip, -slip
		}
	}
	d.state.LeftSlipRatio = left
	d.state.RightSlipRatio = right

	magnitude := math.Abs(rawTotal)
	half := magnitude / 2
	leftMag := math.Max(0, math.Min(magnitude, half-magnitude*left))
	rightMag := math.Max(0, math.Min(magnitude, half-magnitude*right))

	sign := numeric.Sign(rawTotal)
	d.state.OutputLeftNm = leftMag * sign
	d.state.OutputRightNm = rightMag * sign
	return d.state.OutputLeftNm, d.state.OutputRightNm
}

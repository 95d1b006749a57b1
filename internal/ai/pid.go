package ai

import "github.com/samber/lo"

// PID is a textbook controller with a clamped integrator. The derivative term
// is skipped on the first update after a reset.
type PID struct {
	Kp, Ki, Kd    float64
	IntegralLimit float64

	integral  float64
	lastError float64
	primed    bool
}

// Update returns the control output for err over dt seconds.
func (p *PID) Update(err, dt float64) float64 {
	if dt <= 0 {
		return p.Kp * err
	}
	p.integral += err * dt
	if p.IntegralLimit > 0 {
		p.integral = lo.Clamp(p.integral, -p.IntegralLimit, p.IntegralLimit)
	}
	var derivative float64
	if p.primed {
		derivative = (err - p.lastError) / dt
	}
	p.lastError = err
	p.primed = true
	return p.Kp*err + p.Ki*p.integral + p.Kd*derivative
}

// Reset clears the integrator and derivative history.
func (p *PID) Reset() {
	p.integral = 0
	p.lastError = 0
	p.primed = false
}

// Integral returns the accumulated error.
func (p *PID) Integral() float64 { return p.integral }

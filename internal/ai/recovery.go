package ai

import "math"

// RecoveryState is the stuck-recovery phase.
type RecoveryState string

const (
	StateDriving   RecoveryState = "driving"
	StateReversing RecoveryState = "reversing"
)

// recovery detects a car that is pushing without moving and backs it out for
// a fixed time. Both transitions are evaluated once per tick.
type recovery struct {
	State     RecoveryState
	StuckFor  float64 // seconds spent pushing below the stuck speed
	Remaining float64 // seconds of reverse left
}

func newRecovery() recovery { return recovery{State: StateDriving} }

// Advance updates the phase from the forward command about to be issued and
// reports whether the car should reverse this tick.
func (r *recovery) Advance(dt, throttle, speedKph float64, cfg Config) bool {
	switch r.State {
	case StateReversing:
		r.Remaining -= dt
		if r.Remaining <= 0 {
			r.endReverse()
			return false
		}
		return true
	default:
		if throttle >= cfg.StuckThrottle && math.Abs(speedKph) < cfg.StuckSpeedKph {
			r.StuckFor += dt
		} else {
			r.StuckFor = 0
		}
		if r.StuckFor > cfg.StuckTime && cfg.ReverseTime > 0 {
			r.startReverse(cfg.ReverseTime)
			return true
		}
		return false
	}
}

func (r *recovery) startReverse(d float64) {
	r.State = StateReversing
	r.StuckFor = 0
	r.Remaining = d
}

func (r *recovery) endReverse() {
	r.State = StateDriving
	r.StuckFor = 0
	r.Remaining = 0
}

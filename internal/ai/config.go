package ai

import (
	"fmt"
	"math"

	"github.com/samber/lo"
)

// Mode is the driver behaviour.
type Mode string

const (
	FollowWaypoints Mode = "follow_waypoints"
	RaceWaypoints   Mode = "race_waypoints"
	FollowTarget    Mode = "follow_target"
	ChaseTarget     Mode = "chase_target"
)

// ParseMode validates a mode name. The empty string selects FollowWaypoints.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return FollowWaypoints, nil
	case FollowWaypoints, RaceWaypoints, FollowTarget, ChaseTarget:
		return m, nil
	}
	return "", fmt.Errorf("unknown ai mode %q", s)
}

func (m Mode) followsPath() bool { return m == FollowWaypoints || m == RaceWaypoints }

// Config tunes the driver. Speeds are km/h, distances metres, times seconds.
type Config struct {
	Mode Mode `json:"mode"`
	Loop bool `json:"loop"`

	MinLookAhead     float64 `json:"min_look_ahead"`
	LookAheadPerKph  float64 `json:"look_ahead_per_kph"`
	SteerSensitivity float64 `json:"steer_sensitivity"`
	ReachDistance    float64 `json:"reach_distance"`

	MaxSpeedKph   float64 `json:"max_speed_kph"`
	MinTurnRadius float64 `json:"min_turn_radius"`
	ScanDistance  float64 `json:"scan_distance"` // braking distance is added on top

	Kp            float64 `json:"kp"`
	Ki            float64 `json:"ki"`
	Kd            float64 `json:"kd"`
	IntegralLimit float64 `json:"integral_limit"`

	FeedForwardBrake float64 `json:"feed_forward_brake"` // brake per km/h over the target speed
	AngleBrakeStart  float64 `json:"angle_brake_start"`  // degrees
	AngleBrakeFull   float64 `json:"angle_brake_full"`   // degrees
	AngleBrakeMax    float64 `json:"angle_brake_max"`
	AngleBrakeMinKph float64 `json:"angle_brake_min_kph"`
	BrakeGate        float64 `json:"brake_gate"`     // brake below this at crawl speed keeps the throttle
	BrakeGateKph     float64 `json:"brake_gate_kph"` // crawl speed

	FollowDistance    float64 `json:"follow_distance"`
	FollowGapGain     float64 `json:"follow_gap_gain"` // km/h per metre of gap error
	MaxPredictionTime float64 `json:"max_prediction_time"`

	StuckThrottle   float64 `json:"stuck_throttle"`
	StuckSpeedKph   float64 `json:"stuck_speed_kph"`
	StuckTime       float64 `json:"stuck_time"`
	ReverseTime     float64 `json:"reverse_time"`
	ReverseThrottle float64 `json:"reverse_throttle"`
}

// DefaultConfig returns the stock driver.
func DefaultConfig() Config {
	return Config{
		Mode:              FollowWaypoints,
		MinLookAhead:      8,
		LookAheadPerKph:   0.25,
		SteerSensitivity:  1.6,
		ReachDistance:     4,
		MaxSpeedKph:       160,
		MinTurnRadius:     8,
		ScanDistance:      30,
		Kp:                0.08,
		Ki:                0.005,
		Kd:                0.02,
		IntegralLimit:     100,
		FeedForwardBrake:  0.05,
		AngleBrakeStart:   30,
		AngleBrakeFull:    90,
		AngleBrakeMax:     0.6,
		AngleBrakeMinKph:  30,
		BrakeGate:         0.1,
		BrakeGateKph:      5,
		FollowDistance:    12,
		FollowGapGain:     2,
		MaxPredictionTime: 2,
		StuckThrottle:     0.3,
		StuckSpeedKph:     2,
		StuckTime:         2,
		ReverseTime:       1.5,
		ReverseThrottle:   0.5,
	}
}

// Sanitize clamps out-of-range values in place.
func (c *Config) Sanitize() {
	if m, err := ParseMode(string(c.Mode)); err == nil {
		c.Mode = m
	} else {
		c.Mode = FollowWaypoints
	}
	c.MinLookAhead = math.Max(1, c.MinLookAhead)
	c.LookAheadPerKph = math.Max(0, c.LookAheadPerKph)
	if c.SteerSensitivity <= 0 {
		c.SteerSensitivity = 1
	}
	c.ReachDistance = math.Max(0.5, c.ReachDistance)
	if c.MaxSpeedKph <= 0 {
		c.MaxSpeedKph = 160
	}
	c.MinTurnRadius = math.Max(1, c.MinTurnRadius)
	c.ScanDistance = math.Max(0, c.ScanDistance)
	c.Kp, c.Ki, c.Kd = math.Max(0, c.Kp), math.Max(0, c.Ki), math.Max(0, c.Kd)
	c.IntegralLimit = math.Max(0, c.IntegralLimit)
	c.FeedForwardBrake = math.Max(0, c.FeedForwardBrake)
	if c.AngleBrakeFull <= c.AngleBrakeStart {
		c.AngleBrakeFull = c.AngleBrakeStart + 1
	}
	c.AngleBrakeMax = lo.Clamp(c.AngleBrakeMax, 0, 1)
	c.BrakeGate = lo.Clamp(c.BrakeGate, 0, 1)
	c.FollowDistance = math.Max(0, c.FollowDistance)
	c.MaxPredictionTime = math.Max(0, c.MaxPredictionTime)
	c.StuckThrottle = lo.Clamp(c.StuckThrottle, 0, 1)
	c.StuckTime = math.Max(0, c.StuckTime)
	c.ReverseTime = math.Max(0, c.ReverseTime)
	c.ReverseThrottle = lo.Clamp(c.ReverseThrottle, 0, 1)
}

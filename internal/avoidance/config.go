package avoidance

import (
	"math"

	"github.com/samber/lo"
)

// Config tunes obstacle avoidance. Distances are metres, times seconds and
// angles degrees.
type Config struct {
	Enabled         bool    `json:"enabled"`
	RefreshInterval float64 `json:"refresh_interval"` // pool rebuild period
	Radius          float64 `json:"radius"`           // pool query radius
	ConeAngle       float64 `json:"cone_angle"`       // half angle of the forward threat cone
	Samples         int     `json:"samples"`          // points per box side, Samples² per obstacle

	ProbeAngle    float64 `json:"probe_angle"`    // clearance probes either side of the heading
	ProbeDistance float64 `json:"probe_distance"` // clearance probe length

	Horizon         float64 `json:"horizon"`           // trajectory sampling horizon
	HorizonStep     float64 `json:"horizon_step"`      // trajectory sampling step
	PredictionTime  float64 `json:"prediction_time"`   // look-ahead of the intersection test
	SafeDistance    float64 `json:"safe_distance"`     // gap at which proximity risk reaches zero
	UrgencySpeedKph float64 `json:"urgency_speed_kph"` // speed at which urgency is no longer scaled down

	MaxSteer float64 `json:"max_steer"` // steer added at full urgency
	MaxBrake float64 `json:"max_brake"` // brake added at full urgency
}

// DefaultConfig returns avoidance switched on.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		RefreshInterval: 0.2,
		Radius:          40,
		ConeAngle:       60,
		Samples:         3,
		ProbeAngle:      30,
		ProbeDistance:   20,
		Horizon:         3,
		HorizonStep:     0.25,
		PredictionTime:  0.5,
		SafeDistance:    6,
		UrgencySpeedKph: 60,
		MaxSteer:        0.6,
		MaxBrake:        0.8,
	}
}

// Sanitize clamps out-of-range values in place.
func (c *Config) Sanitize() {
	c.RefreshInterval = math.Max(0, c.RefreshInterval)
	c.Radius = math.Max(1, c.Radius)
	c.ConeAngle = lo.Clamp(c.ConeAngle, 1, 180)
	c.Samples = lo.Clamp(c.Samples, 1, 8)
	c.ProbeAngle = lo.Clamp(c.ProbeAngle, 1, 90)
	c.ProbeDistance = math.Max(1, c.ProbeDistance)
	c.Horizon = math.Max(0.1, c.Horizon)
	if c.HorizonStep <= 0 || c.HorizonStep > c.Horizon {
		c.HorizonStep = c.Horizon / 12
	}
	c.PredictionTime = math.Max(0, c.PredictionTime)
	c.SafeDistance = math.Max(0.1, c.SafeDistance)
	c.UrgencySpeedKph = math.Max(1, c.UrgencySpeedKph)
	c.MaxSteer = lo.Clamp(c.MaxSteer, 0, 1)
	c.MaxBrake = lo.Clamp(c.MaxBrake, 0, 1)
}

package avoidance

import (
	"encoding/json"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/cxd309/vehicle-sim/internal/numeric"
)

// RiskAssessment rates the collision threat of one obstacle.
type RiskAssessment struct {
	ObstacleID      string  `json:"obstacle_id"`
	Risk            float64 `json:"risk"`              // 0..1; above 0.5 only when the boxes overlap
	TimeToCollision float64 `json:"time_to_collision"` // seconds, +Inf when not closing
	Intersecting    bool    `json:"intersecting"`
	Urgency         float64 `json:"urgency"`
}

// MarshalJSON writes an infinite time to collision as null.
func (r RiskAssessment) MarshalJSON() ([]byte, error) {
	type plain RiskAssessment
	out := struct {
		plain
		TimeToCollision *float64 `json:"time_to_collision"`
	}{plain: plain(r)}
	if !math.IsInf(r.TimeToCollision, 0) && !math.IsNaN(r.TimeToCollision) {
		out.TimeToCollision = &r.TimeToCollision
	}
	return json.Marshal(out)
}

// TimeToCollision projects the relative velocity on the line between the two
// boxes. It returns +Inf when they are not closing, whatever the gap, and 0
// when they are closing with their bounding circles already touching.
func TimeToCollision(ego Box, egoVel mgl64.Vec3, obs Box, obsVel mgl64.Vec3) float64 {
	rel := numeric.Flatten(obs.Center.Sub(ego.Center))
	dist := rel.Len()
	if dist < 1e-9 {
		return 0
	}
	closing := -rel.Dot(numeric.Flatten(obsVel.Sub(egoVel))) / dist
	if closing <= 1e-6 {
		return math.Inf(1)
	}
	return math.Max(0, Gap(ego, obs)) / closing
}

// Assess predicts both boxes forward. Overlap now or at the prediction time
// scores 0.5 plus half the overlap ratio. Otherwise, only while the boxes are
// closing, the trajectory is sampled over the horizon and the worst proximity
// risk, at most 0.5, is kept. Boxes that are moving apart carry no risk.
func Assess(ego Box, egoVel mgl64.Vec3, obs Obstacle, speedKph float64, cfg Config) RiskAssessment {
	r := RiskAssessment{
		ObstacleID:      obs.ID,
		TimeToCollision: TimeToCollision(ego, egoVel, obs.Box, obs.Velocity),
	}

	tp := cfg.PredictionTime
	ratio := math.Max(
		OverlapRatio(ego, obs.Box),
		OverlapRatio(ego.Moved(egoVel.Mul(tp)), obs.Box.Moved(obs.Velocity.Mul(tp))),
	)
	switch {
	case ratio > 0:
		r.Intersecting = true
		r.Risk = 0.5 + 0.5*ratio
	case math.IsInf(r.TimeToCollision, 1):
	default:
		steps := int(math.Round(cfg.Horizon / cfg.HorizonStep))
		for i := 1; i <= steps; i++ {
			t := float64(i) * cfg.HorizonStep
			gap := Gap(ego.Moved(egoVel.Mul(t)), obs.Box.Moved(obs.Velocity.Mul(t)))
			risk := 0.5 * numeric.Clamp01(1-gap/cfg.SafeDistance) * (1 - 0.5*t/cfg.Horizon)
			r.Risk = math.Max(r.Risk, risk)
		}
	}
	r.Urgency = urgency(r, speedKph, cfg)
	return r
}

// urgency grows with risk, with speed and as the time to collision shrinks.
func urgency(r RiskAssessment, speedKph float64, cfg Config) float64 {
	if r.Risk <= 0 {
		return 0
	}
	timeFactor := 1.0
	if !r.Intersecting {
		if math.IsInf(r.TimeToCollision, 1) {
			return 0
		}
		timeFactor = numeric.Clamp01(1 - r.TimeToCollision/cfg.Horizon)
	}
	speedFactor := 0.5 + 0.5*numeric.Clamp01(speedKph/cfg.UrgencySpeedKph)
	return numeric.Clamp01(2 * r.Risk * timeFactor * speedFactor)
}

package vehicle

import (
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/cxd309/vehicle-sim/internal/numeric"
)

// Command is one tick of driver input.
type Command struct {
	Steer     float64 `json:"steer"`    // -1 full left .. +1 full right
	Throttle  float64 `json:"throttle"` // 0..1
	Brake     float64 `json:"brake"`    // 0..1
	Handbrake float64 `json:"handbrake"`
	Reverse   bool    `json:"reverse,omitempty"`
	Clutch    float64 `json:"clutch,omitempty"`  // pedal of a manual clutch, 1 fully pressed
	Neutral   bool    `json:"neutral,omitempty"` // wins over Reverse
}

// Clamp returns c with every axis inside its valid range. NaN reads as zero.
func (c Command) Clamp() Command {
	fix := func(v float64) float64 {
		if math.IsNaN(v) {
			return 0
		}
		return v
	}
	return Command{
		Steer:     lo.Clamp(fix(c.Steer), -1, 1),
		Throttle:  numeric.Clamp01(fix(c.Throttle)),
		Brake:     numeric.Clamp01(fix(c.Brake)),
		Handbrake: numeric.Clamp01(fix(c.Handbrake)),
		Reverse:   c.Reverse,
		Clutch:    numeric.Clamp01(fix(c.Clutch)),
		Neutral:   c.Neutral,
	}
}

// InputSource produces the command for the next tick from the latest telemetry.
type InputSource interface {
	Command(dt float64, t Telemetry) Command
}

// Keyframe is a scripted command that takes effect at Time and holds until the
// next keyframe.
type Keyframe struct {
	Time float64 `json:"t"`
	Command
}

// ScriptedInput replays a timeline of commands.
type ScriptedInput struct {
	frames  []Keyframe
	elapsed float64
}

// NewScriptedInput sorts the keyframes by time.
func NewScriptedInput(frames []Keyframe) *ScriptedInput {
	fs := append([]Keyframe(nil), frames...)
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].Time < fs[j].Time })
	return &ScriptedInput{frames: fs}
}

// Command returns the last keyframe at or before the elapsed time. Before the
// first keyframe the car is held on the brake.
func (s *ScriptedInput) Command(dt float64, _ Telemetry) Command {
	t := s.elapsed
	s.elapsed += dt
	cmd := Command{Brake: 1}
	for _, f := range s.frames {
		if f.Time > t {
			break
		}
		cmd = f.Command
	}
	return cmd.Clamp()
}

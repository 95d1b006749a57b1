package vehicle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandClamp(t *testing.T) {
	got := Command{Steer: -3, Throttle: 1.5, Brake: math.NaN(), Handbrake: -1, Reverse: true, Clutch: 2, Neutral: true}.Clamp()
	assert.Equal(t, Command{Steer: -1, Throttle: 1, Brake: 0, Handbrake: 0, Reverse: true, Clutch: 1, Neutral: true}, got)
}

func TestScriptedInput(t *testing.T) {
	s := NewScriptedInput([]Keyframe{
		{Time: 2, Command: Command{Brake: 0.5}},
		{Time: 0.5, Command: Command{Throttle: 1, Steer: 0.2}},
		{Time: 3, Command: Command{Throttle: 2}},
	})

	tests := []struct {
		at   float64
		want Command
	}{
		{0, Command{Brake: 1}},
		{0.25, Command{Brake: 1}},
		{0.5, Command{Throttle: 1, Steer: 0.2}},
		{1.75, Command{Throttle: 1, Steer: 0.2}},
		{2, Command{Brake: 0.5}},
		{2.75, Command{Brake: 0.5}},
		{3, Command{Throttle: 1}},
		{10, Command{Throttle: 1}},
	}
	elapsed := 0.0
	for _, tt := range tests {
		// step to the sample time in quarter seconds, which are exact in binary
		for elapsed < tt.at {
			s.Command(0.25, Telemetry{})
			elapsed += 0.25
		}
		assert.Equal(t, tt.want, s.Command(0, Telemetry{}), "t=%v", tt.at)
	}
}

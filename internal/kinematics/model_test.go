package kinematics

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrictionCornerSpeed(t *testing.T) {
	f := FrictionLimited{Mu: 1.1, Gravity: 9.81}
	v := f.CornerSpeed(50)
	assert.InDelta(t, 23.23, v, 0.05)
	assert.InDelta(t, 83.6, v*3.6, 0.3)
	assert.Equal(t, 0.0, f.CornerSpeed(0))
	assert.True(t, math.IsInf(f.CornerSpeed(math.Inf(1)), 1))
}

func TestFrictionBraking(t *testing.T) {
	f := FrictionLimited{Mu: 1.0, Gravity: 10, BrakeEfficiency: 1}
	assert.InDelta(t, 20.0, f.BrakingDistance(20), 1e-9)
	assert.Equal(t, 0.0, f.BrakingDistanceTo(10, 15))
	assert.InDelta(t, 15.0, f.BrakingDistanceTo(20, 10), 1e-9)
	assert.InDelta(t, 0.0, f.VelocityAfterBraking(20, 50), 1e-9)
}

func TestConstantDeceleration(t *testing.T) {
	c := ConstantDeceleration{ADcc: 5, ALat: 8}
	assert.InDelta(t, 40.0, c.BrakingDistance(20), 1e-9)
	assert.InDelta(t, 20.0, c.CornerSpeed(50), 1e-9)
	assert.True(t, math.IsInf(ConstantDeceleration{}.BrakingDistance(3), 1))
}

func TestDecode(t *testing.T) {
	m, err := Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultFrictionLimited(), m)

	m, err = Decode(json.RawMessage(`{"model":"constant","a_dcc":6,"a_lat":7}`))
	require.NoError(t, err)
	assert.Equal(t, ConstantDeceleration{ADcc: 6, ALat: 7}, m)

	m, err = Decode(json.RawMessage(`{"model":"friction","mu":0.6}`))
	require.NoError(t, err)
	assert.Equal(t, 0.6, m.(FrictionLimited).Mu)
	assert.Equal(t, StandardGravity, m.(FrictionLimited).Gravity)

	_, err = Decode(json.RawMessage(`{"model":"warp"}`))
	assert.Error(t, err)
}

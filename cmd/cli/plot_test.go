package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/vehicle-sim/internal/sim"
)

func TestTraces(t *testing.T) {
	simLog := sim.SimulationLog{Output: []sim.SimulationLogRow{
		{Timestamp: 0, VehicleLogs: []sim.VehicleLog{{VehicleID: "b", SpeedKph: 1}, {VehicleID: "a", SpeedKph: 2}}},
		{Timestamp: 0.5, VehicleLogs: []sim.VehicleLog{{VehicleID: "b", SpeedKph: 3}, {VehicleID: "a", SpeedKph: 4}}},
	}}

	ids, series := traces(simLog, func(l sim.VehicleLog) float64 { return l.SpeedKph })
	assert.Equal(t, []string{"b", "a"}, ids)
	require.Len(t, series["a"], 2)
	assert.Equal(t, 0.5, series["a"][1].X)
	assert.Equal(t, 4.0, series["a"][1].Y)
	assert.Equal(t, 3.0, series["b"][1].Y)
}

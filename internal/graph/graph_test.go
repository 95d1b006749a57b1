package graph

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func speed(v float64) *float64 { return &v }

// square is a one-way loop A→B→C→D→A of 20 m sides with a slow B→C edge.
func square(t *testing.T) *Graph {
	t.Helper()
	g, err := NewGraph(GraphData{
		Nodes: []Node{
			{ID: "A", Loc: Coordinate{X: 0, Z: 0}},
			{ID: "B", Loc: Coordinate{X: 0, Z: 20}},
			{ID: "C", Loc: Coordinate{X: 20, Z: 20}, Type: NodeTypeJunction},
			{ID: "D", Loc: Coordinate{X: 20, Z: 0}},
		},
		Edges: []Edge{
			{ID: "AB", U: "A", V: "B"},
			{ID: "BC", U: "B", V: "C", TargetSpeed: speed(40)},
			{ID: "CD", U: "C", V: "D"},
			{ID: "DA", U: "D", V: "A"},
		},
	})
	require.NoError(t, err)
	return g
}

func TestEdgeLengthFromNodes(t *testing.T) {
	g := square(t)
	e, err := g.GetEdgeByID("AB")
	require.NoError(t, err)
	assert.InDelta(t, 20, e.Length, 1e-9)

	n, err := g.GetNode("A")
	require.NoError(t, err)
	assert.Equal(t, NodeTypeRoad, n.Type)
}

func TestShortestPath(t *testing.T) {
	g := square(t)

	p, err := g.GetShortestPath("A", "D")
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"A", "B", "C", "D"}, p.Route)
	assert.InDelta(t, 60, p.Length, 1e-9)

	require.NoError(t, g.AddEdge(Edge{ID: "AD", U: "A", V: "D"}))
	p, err = g.GetShortestPath("A", "D")
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"A", "D"}, p.Route)

	p, err = g.GetShortestPath("B", "B")
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"B"}, p.Route)

	_, err = g.GetShortestPath("A", "nowhere")
	assert.Error(t, err)
}

func TestNoPath(t *testing.T) {
	g, err := NewGraph(GraphData{
		Nodes: []Node{{ID: "A"}, {ID: "B", Loc: Coordinate{Z: 10}}},
		Edges: []Edge{{ID: "AB", U: "A", V: "B"}},
	})
	require.NoError(t, err)
	_, err = g.GetShortestPath("B", "A")
	assert.Error(t, err)
}

func TestGraphValidation(t *testing.T) {
	tests := []struct {
		name string
		data GraphData
	}{
		{"duplicate node", GraphData{Nodes: []Node{{ID: "A"}, {ID: "A"}}}},
		{"missing source", GraphData{Nodes: []Node{{ID: "A"}}, Edges: []Edge{{ID: "e", U: "X", V: "A"}}}},
		{"missing target", GraphData{Nodes: []Node{{ID: "A"}}, Edges: []Edge{{ID: "e", U: "A", V: "X"}}}},
		{"negative length", GraphData{Nodes: []Node{{ID: "A"}, {ID: "B"}}, Edges: []Edge{{ID: "e", U: "A", V: "B", Length: -1}}}},
		{"duplicate edge", GraphData{
			Nodes: []Node{{ID: "A"}, {ID: "B"}},
			Edges: []Edge{{ID: "e", U: "A", V: "B"}, {ID: "e", U: "B", V: "A"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestExpandRoute(t *testing.T) {
	g := square(t)

	samples, err := g.Expand(Route{Stops: []NodeID{"A", "C"}, Spacing: 5})
	require.NoError(t, err)
	require.Len(t, samples, 9)

	assert.Equal(t, mgl64.Vec3{0, 0, 0}, samples[0].Position)
	assert.Equal(t, mgl64.Vec3{0, 0, 5}, samples[1].Position)
	assert.Equal(t, mgl64.Vec3{0, 0, 20}, samples[4].Position)
	assert.Equal(t, mgl64.Vec3{20, 0, 20}, samples[8].Position)

	assert.Equal(t, 0.0, samples[0].TargetSpeed)
	assert.Equal(t, "AB", samples[0].Edge)
	assert.Equal(t, 40.0, samples[4].TargetSpeed)
	assert.Equal(t, 40.0, samples[8].TargetSpeed)
}

func TestExpandLoop(t *testing.T) {
	g := square(t)

	samples, err := g.Expand(Route{Stops: []NodeID{"A", "C"}, Spacing: 10, Loop: true})
	require.NoError(t, err)
	require.Len(t, samples, 8)
	assert.Equal(t, mgl64.Vec3{0, 0, 0}, samples[0].Position)
	assert.Equal(t, mgl64.Vec3{10, 0, 0}, samples[7].Position)
	assert.Equal(t, "DA", samples[7].Edge)
}

func TestExpandDefaultSpacing(t *testing.T) {
	g := square(t)
	samples, err := g.Expand(Route{Stops: []NodeID{"A", "B"}})
	require.NoError(t, err)
	assert.Len(t, samples, 5)
}

func TestExpandErrors(t *testing.T) {
	g := square(t)

	_, err := g.Expand(Route{Stops: []NodeID{"A"}})
	assert.Error(t, err)

	_, err = g.Expand(Route{Stops: []NodeID{"A", "Q"}})
	assert.Error(t, err)
}

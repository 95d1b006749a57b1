// Package graph provides the road network: nodes placed in the world, directed
// edges with optional target speeds, all-pairs shortest paths, and expansion of
// a route into evenly spaced waypoints for the AI driver.
package graph

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// NodeID, EdgeID, PathID are string aliases used as identifiers.
type (
	NodeID = string
	EdgeID = string
	PathID = string
)

// NodeType classifies a node in the network.
type NodeType string

const (
	NodeTypeRoad       NodeType = "road"
	NodeTypeJunction   NodeType = "junction"
	NodeTypeCheckpoint NodeType = "checkpoint"
)

// Coordinate is a world position in metres. Y is up.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y,omitempty"`
	Z float64 `json:"z"`
}

// Vec returns the coordinate as a vector.
func (c Coordinate) Vec() mgl64.Vec3 { return mgl64.Vec3{c.X, c.Y, c.Z} }

// Node is a point in the road network.
type Node struct {
	ID   NodeID     `json:"node_id"`
	Loc  Coordinate `json:"loc"`
	Type NodeType   `json:"type,omitempty"`
}

// Edge is a directed straight road between two nodes. A zero Length is taken
// from the node positions. TargetSpeed is optional: if nil the edge imposes no
// speed and the driver's curvature limit alone applies.
type Edge struct {
	ID          EdgeID   `json:"edge_id"`
	U           NodeID   `json:"u"`
	V           NodeID   `json:"v"`
	Length      float64  `json:"length,omitempty"`       // metres
	TargetSpeed *float64 `json:"target_speed,omitempty"` // km/h; nil = no restriction
}

// GraphData is the serialisable input representation of a road network.
type GraphData struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// PathInfo holds the result of a shortest-path computation.
type PathInfo struct {
	ID     PathID
	Route  []NodeID // ordered node IDs from start to end
	Length float64  // total path length in metres
}

// Graph is a directed weighted graph with cached shortest-path computation.
type Graph struct {
	nodes       []Node
	edges       []Edge
	nodeMap     map[NodeID]Node
	edgeMap     map[EdgeID]Edge
	edgeByNodes map[NodeID]map[NodeID]Edge // u → v → edge
	// Floyd-Warshall tables; nil until first needed.
	dist     map[NodeID]map[NodeID]float64
	nextNode map[NodeID]map[NodeID]NodeID
	// Path cache; cleared whenever the graph topology changes.
	pathCache map[PathID]PathInfo
}

// NewGraph builds a Graph from GraphData, returning an error if any node or edge
// references are invalid.
func NewGraph(data GraphData) (*Graph, error) {
	g := &Graph{
		nodeMap:     make(map[NodeID]Node),
		edgeMap:     make(map[EdgeID]Edge),
		edgeByNodes: make(map[NodeID]map[NodeID]Edge),
		pathCache:   make(map[PathID]PathInfo),
	}
	for _, n := range data.Nodes {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range data.Edges {
		if err := g.AddEdge(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddNode adds a node to the graph. Returns an error if the node ID already exists.
func (g *Graph) AddNode(n Node) error {
	if _, exists := g.nodeMap[n.ID]; exists {
		return fmt.Errorf("node %q already exists", n.ID)
	}
	if n.Type == "" {
		n.Type = NodeTypeRoad
	}
	g.nodes = append(g.nodes, n)
	g.nodeMap[n.ID] = n
	g.dist = nil // invalidate cached paths
	g.pathCache = make(map[PathID]PathInfo)
	return nil
}

// AddEdge adds a directed edge to the graph. Returns an error if the edge ID already
// exists, either endpoint node is missing, or the length is negative.
func (g *Graph) AddEdge(e Edge) error {
	if _, exists := g.edgeMap[e.ID]; exists {
		return fmt.Errorf("edge %q already exists", e.ID)
	}
	u, ok := g.nodeMap[e.U]
	if !ok {
		return fmt.Errorf("edge %q: source node %q not found", e.ID, e.U)
	}
	v, ok := g.nodeMap[e.V]
	if !ok {
		return fmt.Errorf("edge %q: target node %q not found", e.ID, e.V)
	}
	if e.Length < 0 {
		return fmt.Errorf("edge %q: negative length %.2f", e.ID, e.Length)
	}
	if e.Length == 0 {
		e.Length = v.Loc.Vec().Sub(u.Loc.Vec()).Len()
	}
	g.edges = append(g.edges, e)
	g.edgeMap[e.ID] = e
	if g.edgeByNodes[e.U] == nil {
		g.edgeByNodes[e.U] = make(map[NodeID]Edge)
	}
	g.edgeByNodes[e.U][e.V] = e
	g.dist = nil // invalidate cached paths
	g.pathCache = make(map[PathID]PathInfo)
	return nil
}

// pathKey returns a canonical string key for a start→end pair.
func pathKey(start, end NodeID) PathID { return start + "->" + end }

// GetNode looks up a node by its ID.
func (g *Graph) GetNode(id NodeID) (Node, error) {
	n, ok := g.nodeMap[id]
	if !ok {
		return Node{}, fmt.Errorf("node %q not found", id)
	}
	return n, nil
}

// GetEdgeByID looks up an edge by its ID.
func (g *Graph) GetEdgeByID(id EdgeID) (Edge, error) {
	e, ok := g.edgeMap[id]
	if !ok {
		return Edge{}, fmt.Errorf("edge %q not found", id)
	}
	return e, nil
}

// GetEdge returns the directed edge from u to v.
func (g *Graph) GetEdge(u, v NodeID) (Edge, error) {
	if m, ok := g.edgeByNodes[u]; ok {
		if e, ok := m[v]; ok {
			return e, nil
		}
	}
	return Edge{}, fmt.Errorf("no edge from %q to %q", u, v)
}

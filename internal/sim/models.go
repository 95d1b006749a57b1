package sim

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/cxd309/vehicle-sim/internal/ai"
	"github.com/cxd309/vehicle-sim/internal/avoidance"
	"github.com/cxd309/vehicle-sim/internal/graph"
	"github.com/cxd309/vehicle-sim/internal/kinematics"
	"github.com/cxd309/vehicle-sim/internal/physics"
	"github.com/cxd309/vehicle-sim/internal/powertrain"
	"github.com/cxd309/vehicle-sim/internal/stability"
	"github.com/cxd309/vehicle-sim/internal/vehicle"
)

// SimulationMeta holds the identity and timing parameters for a simulation run.
type SimulationMeta struct {
	SimulationID string  `json:"simulation_id"`
	RunTime      float64 `json:"run_time"`               // seconds
	TimeStep     float64 `json:"time_step"`              // seconds
	LogInterval  float64 `json:"log_interval,omitempty"` // seconds; 0 logs every step
}

// WorldInput is the physics world plus its static obstacles.
type WorldInput struct {
	physics.WorldConfig
	Obstacles []physics.Obstacle `json:"obstacles,omitempty"`
}

// Controller type discriminators.
const (
	ControllerAI       = "ai"
	ControllerScripted = "scripted"
)

// Controller selects and configures the input source of a vehicle.
type Controller struct {
	Type string

	AI        ai.Config
	Model     kinematics.Model
	Waypoints []ai.Waypoint
	Route     *graph.Route
	Target    string // vehicle ID followed or chased

	Script []vehicle.Keyframe

	// Avoidance wraps either controller when set.
	Avoidance *avoidance.Config
}

// controllerJSON is the raw JSON shape of a Controller, before the nested
// configs are laid over their defaults.
type controllerJSON struct {
	Type       string             `json:"type"`
	AI         json.RawMessage    `json:"ai"`
	Kinematics json.RawMessage    `json:"kinematics"`
	Waypoints  []ai.Waypoint      `json:"waypoints"`
	Route      *graph.Route       `json:"route"`
	Target     string             `json:"target"`
	Script     []vehicle.Keyframe `json:"script"`
	Avoidance  json.RawMessage    `json:"avoidance"`
}

// UnmarshalJSON implements json.Unmarshaler for Controller.
// The "type" key selects the input source; an empty type means "ai". Partial
// "ai" and "avoidance" objects override the stock configuration.
//
// Supported types:
//   - "ai": the autonomous driver on waypoints, a route or a target vehicle.
//   - "scripted": a timeline of commands.
func (c *Controller) UnmarshalJSON(data []byte) error {
	var aux controllerJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Controller{
		Type:      aux.Type,
		Waypoints: aux.Waypoints,
		Route:     aux.Route,
		Target:    aux.Target,
		Script:    aux.Script,
	}
	if c.Type == "" {
		c.Type = ControllerAI
	}

	switch c.Type {
	case ControllerAI:
		c.AI = ai.DefaultConfig()
		if len(aux.AI) > 0 {
			if err := json.Unmarshal(aux.AI, &c.AI); err != nil {
				return fmt.Errorf("parsing ai config: %w", err)
			}
		}
		if _, err := ai.ParseMode(string(c.AI.Mode)); err != nil {
			return err
		}
		model, err := kinematics.Decode(aux.Kinematics)
		if err != nil {
			return err
		}
		c.Model = model
	case ControllerScripted:
	default:
		return fmt.Errorf("unknown controller type %q", c.Type)
	}

	if len(aux.Avoidance) > 0 {
		cfg := avoidance.DefaultConfig()
		if err := json.Unmarshal(aux.Avoidance, &cfg); err != nil {
			return fmt.Errorf("parsing avoidance config: %w", err)
		}
		c.Avoidance = &cfg
	}
	return nil
}

// VehicleInput places one vehicle in the world. A missing config uses the
// stock saloon; a partial one overrides it field by field.
type VehicleInput struct {
	VehicleID      string           `json:"vehicle_id,omitempty"`
	Config         json.RawMessage  `json:"config,omitempty"`
	Position       graph.Coordinate `json:"position"`
	StartNode      graph.NodeID     `json:"start_node,omitempty"` // overrides Position
	Heading        float64          `json:"heading"`              // degrees, positive toward +X
	InitialSpeed   float64          `json:"initial_speed,omitempty"`
	DeflatedWheels []int            `json:"deflated_wheels,omitempty"`
	Controller     *Controller      `json:"controller,omitempty"` // nil holds the brake
}

// config resolves the vehicle configuration.
func (in VehicleInput) config() (vehicle.Config, error) {
	cfg := vehicle.DefaultConfig()
	if len(in.Config) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(in.Config, &cfg); err != nil {
		return vehicle.Config{}, fmt.Errorf("parsing vehicle config: %w", err)
	}
	return cfg, nil
}

// SimulationInput is the JSON-serialisable input to the simulation.
type SimulationInput struct {
	Meta      SimulationMeta  `json:"simulation_meta"`
	World     WorldInput      `json:"world"`
	RoadGraph graph.GraphData `json:"road_graph"`
	Vehicles  []VehicleInput  `json:"vehicles"`
}

// VehicleLog is a point-in-time snapshot of one vehicle.
type VehicleLog struct {
	VehicleID string                  `json:"vehicle_id"`
	Position  mgl64.Vec3              `json:"position"`
	Heading   float64                 `json:"heading"` // degrees
	SpeedKph  float64                 `json:"speed_kph"`
	EngineRPM float64                 `json:"engine_rpm"`
	Gear      powertrain.GearboxState `json:"gear"`
	Command   vehicle.Command         `json:"command"`
	Stability stability.Flags         `json:"stability"`
	AI        *ai.State               `json:"ai,omitempty"`
	Avoidance *avoidance.State        `json:"avoidance,omitempty"`
	Disabled  bool                    `json:"disabled,omitempty"`
}

// SimulationLogRow is the state of all vehicles at a single simulation timestep.
type SimulationLogRow struct {
	Timestamp   float64      `json:"timestamp"` // seconds
	VehicleLogs []VehicleLog `json:"vehicle_logs"`
}

// SimulationLog is the complete output of a simulation run.
type SimulationLog struct {
	Meta   SimulationMeta     `json:"simulation_meta"`
	Output []SimulationLogRow `json:"output"`
}

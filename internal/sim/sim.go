// Package sim runs vehicles in a shared physics world.
//
// The simulation advances in fixed timesteps. Each step ticks every vehicle
// in input order (controller, powertrain, wheels, stability) and then steps
// the physics world once, so every controller sees the state left by the
// previous step.
package sim

import (
	"encoding/json"
	"fmt"
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	uuid "github.com/satori/go.uuid"

	"github.com/cxd309/vehicle-sim/internal/ai"
	"github.com/cxd309/vehicle-sim/internal/avoidance"
	"github.com/cxd309/vehicle-sim/internal/graph"
	"github.com/cxd309/vehicle-sim/internal/numeric"
	"github.com/cxd309/vehicle-sim/internal/physics"
	"github.com/cxd309/vehicle-sim/internal/vehicle"
)

// ErrUnknownTarget is returned when a controller follows a vehicle that is
// not in the input.
var ErrUnknownTarget = errors.New("unknown target vehicle")

// simVehicle is a vehicle with its body and controllers.
type simVehicle struct {
	*vehicle.Vehicle
	body    *physics.RigidBody
	driver  *ai.Driver
	avoider *avoidance.Avoider
}

// Simulation engine state.
type Simulation struct {
	meta      SimulationMeta
	world     *physics.World
	graph     *graph.Graph
	obstacles []avoidance.Obstacle
	vehicles  []*simVehicle
	logEvery  int
	curTime   float64
	logger    *log.Logger
}

var _ avoidance.Source = (*Simulation)(nil)

// NewSimulation builds the world, spawns every vehicle and wires its
// controller. A nil logger discards diagnostics.
func NewSimulation(input SimulationInput, logger *log.Logger) (*Simulation, error) {
	meta := input.Meta
	if meta.TimeStep <= 0 || math.IsNaN(meta.TimeStep) {
		return nil, errors.Errorf("time_step must be positive, got %v", meta.TimeStep)
	}
	if meta.RunTime < 0 || math.IsNaN(meta.RunTime) {
		return nil, errors.Errorf("run_time must not be negative, got %v", meta.RunTime)
	}

	s := &Simulation{
		meta:     meta,
		world:    physics.NewWorld(input.World.WorldConfig),
		logEvery: int(math.Max(1, math.Round(meta.LogInterval/meta.TimeStep))),
		logger:   logger,
	}

	if len(input.RoadGraph.Nodes) > 0 {
		g, err := graph.NewGraph(input.RoadGraph)
		if err != nil {
			return nil, fmt.Errorf("building road graph: %w", err)
		}
		s.graph = g
	}

	for _, o := range input.World.Obstacles {
		if o.ID == "" {
			o.ID = uuid.NewV4().String()
		}
		s.world.AddObstacle(o)
		s.obstacles = append(s.obstacles, avoidance.Obstacle{
			ID:  o.ID,
			Box: avoidance.Box{Center: o.Center, HalfExtent: o.HalfExtent, Yaw: o.Yaw},
		})
	}

	byID := make(map[string]*simVehicle, len(input.Vehicles))
	for i := range input.Vehicles {
		in := &input.Vehicles[i]
		if in.VehicleID == "" {
			in.VehicleID = uuid.NewV4().String()
		}
		if _, dup := byID[in.VehicleID]; dup {
			return nil, errors.Errorf("duplicate vehicle id %q", in.VehicleID)
		}
		sv, err := s.spawn(*in)
		if err != nil {
			return nil, errors.Wrapf(err, "vehicle %q", in.VehicleID)
		}
		byID[in.VehicleID] = sv
		s.vehicles = append(s.vehicles, sv)
	}

	// Controllers are wired once every vehicle exists so targets can refer to
	// vehicles later in the list.
	for i, in := range input.Vehicles {
		if err := s.wire(s.vehicles[i], in.Controller, byID); err != nil {
			return nil, errors.Wrapf(err, "vehicle %q controller", in.VehicleID)
		}
	}
	return s, nil
}

// spawn creates the body and the vehicle.
func (s *Simulation) spawn(in VehicleInput) (*simVehicle, error) {
	cfg, err := in.config()
	if err != nil {
		return nil, err
	}
	cfg.Sanitize()

	pos := in.Position.Vec()
	if in.StartNode != "" {
		if s.graph == nil {
			return nil, errors.Errorf("start node %q given without a road graph", in.StartNode)
		}
		n, err := s.graph.GetNode(in.StartNode)
		if err != nil {
			return nil, err
		}
		pos = n.Loc.Vec()
	}
	yaw := mgl64.DegToRad(in.Heading)
	forward := numeric.YawRotation(yaw).Rotate(mgl64.Vec3{0, 0, 1})

	body := s.world.AddBody(physics.BodySpec{
		ID:          in.VehicleID,
		Mass:        cfg.Mass,
		HalfWidth:   cfg.HalfWidth,
		HalfLength:  cfg.HalfLength,
		CGHeight:    cfg.CGHeight,
		Position:    pos,
		Yaw:         yaw,
		Velocity:    forward.Mul(in.InitialSpeed / numeric.MpsToKph),
		WheelLocals: cfg.WheelLocals(),
	})
	v := vehicle.New(in.VehicleID, cfg, body, nil, s.logger)

	for _, i := range in.DeflatedWheels {
		w := v.Wheel(i)
		if w == nil {
			return nil, errors.Errorf("deflated wheel %d out of range", i)
		}
		w.Deflate()
	}
	return &simVehicle{Vehicle: v, body: body}, nil
}

// wire builds the input source of sv from its controller.
func (s *Simulation) wire(sv *simVehicle, c *Controller, byID map[string]*simVehicle) error {
	if c == nil {
		return nil
	}

	var input vehicle.InputSource
	switch c.Type {
	case ControllerScripted:
		input = vehicle.NewScriptedInput(c.Script)
	default:
		cfg := c.AI
		path := c.Waypoints
		if c.Route != nil {
			if s.graph == nil {
				return errors.New("route given without a road graph")
			}
			samples, err := s.graph.Expand(*c.Route)
			if err != nil {
				return errors.Wrap(err, "expanding route")
			}
			path = lo.Map(samples, func(p graph.Sample, _ int) ai.Waypoint {
				return ai.Waypoint{Position: p.Position, TargetSpeed: p.TargetSpeed}
			})
			cfg.Loop = cfg.Loop || c.Route.Loop
		}

		d := ai.NewDriver(cfg, c.Model, s.logger)
		d.SetPath(path)
		if c.Target != "" {
			target, ok := byID[c.Target]
			if !ok {
				return errors.Wrapf(ErrUnknownTarget, "%q", c.Target)
			}
			if target == sv {
				return errors.Errorf("vehicle cannot target itself")
			}
			d.SetTarget(target.body)
		}
		sv.driver = d
		input = d
	}

	if c.Avoidance != nil {
		sv.avoider = avoidance.NewAvoider(*c.Avoidance, input, s, s.world, sv.body, sv.ID())
		input = sv.avoider
	}
	sv.SetInput(input)
	return nil
}

// Obstacles implements avoidance.Source: the static obstacles followed by
// every vehicle body with its velocity.
func (s *Simulation) Obstacles() []avoidance.Obstacle {
	out := make([]avoidance.Obstacle, 0, len(s.obstacles)+len(s.vehicles))
	out = append(out, s.obstacles...)
	for _, sv := range s.vehicles {
		cfg := sv.Config()
		out = append(out, avoidance.Obstacle{
			ID: sv.ID(),
			Box: avoidance.Box{
				Center:     sv.body.Position(),
				HalfExtent: mgl64.Vec3{cfg.HalfWidth, 0, cfg.HalfLength},
				Yaw:        numeric.Yaw(sv.body.Rotation()),
			},
			Velocity: sv.body.Velocity(),
		})
	}
	return out
}

// Time returns the simulated time in seconds.
func (s *Simulation) Time() float64 { return s.curTime }

// Run executes the full simulation and returns the log. The initial state is
// logged at t=0.
func (s *Simulation) Run() SimulationLog {
	out := SimulationLog{Meta: s.meta}
	steps := int(math.Floor(s.meta.RunTime/s.meta.TimeStep + 1e-9))
	for i := 0; i <= steps; i++ {
		if i > 0 {
			s.Step()
		}
		if i%s.logEvery == 0 {
			out.Output = append(out.Output, s.Snapshot())
		}
	}
	return out
}

// Step advances every vehicle and then the world by one time step.
func (s *Simulation) Step() {
	dt := s.meta.TimeStep
	for _, sv := range s.vehicles {
		sv.Tick(dt)
	}
	s.world.Step(dt)
	s.curTime += dt
}

// Snapshot returns the log row for the current time.
func (s *Simulation) Snapshot() SimulationLogRow {
	return SimulationLogRow{
		Timestamp:   s.curTime,
		VehicleLogs: lo.Map(s.vehicles, func(sv *simVehicle, _ int) VehicleLog { return sv.log() }),
	}
}

func (sv *simVehicle) log() VehicleLog {
	t := sv.Telemetry()
	l := VehicleLog{
		VehicleID: sv.ID(),
		Position:  t.Position,
		Heading:   sv.Heading(),
		SpeedKph:  t.SpeedKph(),
		EngineRPM: t.EngineRPM,
		Gear:      t.Gear,
		Command:   t.Command,
		Stability: t.Stability,
		Disabled:  sv.Disabled(),
	}
	if sv.driver != nil {
		st := sv.driver.State()
		l.AI = &st
	}
	if sv.avoider != nil {
		st := sv.avoider.State()
		l.Avoidance = &st
	}
	return l
}

// Vehicle returns the vehicle with the given ID, or nil.
func (s *Simulation) Vehicle(id string) *vehicle.Vehicle {
	sv, ok := lo.Find(s.vehicles, func(sv *simVehicle) bool { return sv.ID() == id })
	if !ok {
		return nil
	}
	return sv.Vehicle
}

// VehicleIDs lists the vehicles in input order.
func (s *Simulation) VehicleIDs() []string {
	return lo.Map(s.vehicles, func(sv *simVehicle, _ int) string { return sv.ID() })
}

// DecodeInput parses a JSON-encoded SimulationInput.
func DecodeInput(data []byte) (SimulationInput, error) {
	var input SimulationInput
	if err := json.Unmarshal(data, &input); err != nil {
		return SimulationInput{}, fmt.Errorf("invalid input JSON: %w", err)
	}
	return input, nil
}

// RunJSON is the entry point for the CLI and WASM targets. It accepts a
// JSON-encoded SimulationInput, runs the simulation, and returns a
// JSON-encoded SimulationLog.
func RunJSON(jsonInput string) (string, error) {
	input, err := DecodeInput([]byte(jsonInput))
	if err != nil {
		return "", err
	}

	s, err := NewSimulation(input, nil)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(s.Run())
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}

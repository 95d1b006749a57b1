// Command vehsim reads a SimulationInput JSON from a file argument (or stdin),
// runs the simulation, and writes the SimulationLog JSON to stdout.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/ttacon/chalk"
	"github.com/urfave/cli"

	"github.com/cxd309/vehicle-sim/internal/sim"
)

func main() {
	app := makeapp()
	if err := app.Run(os.Args); err != nil {
		failWith(err)
	}
}

func makeapp() *cli.App {
	app := cli.NewApp()
	app.Name = "vehsim"
	app.Usage = "vehicle drivetrain and AI driver simulation"
	app.Description = "Runs fixed-timestep vehicle simulations described by a JSON input"

	app.Commands = []cli.Command{
		{
			Name:      "run",
			Aliases:   []string{"r"},
			Usage:     "Run a simulation and write the log as JSON",
			ArgsUsage: "[INPUT]",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "pretty", Usage: "Indent the JSON output"},
				cli.StringFlag{Name: "out", Value: "", Usage: "Destination file; stdout when empty"},
			},
			Action: func(c *cli.Context) error {
				return runAction(c.Args().First(), c.String("out"), c.Bool("pretty"))
			},
		},
		{
			Name:      "plot",
			Usage:     "Run a simulation and plot speed and steering traces",
			ArgsUsage: "[INPUT]",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "png", Value: "vehsim.png", Usage: "Speed plot; the steering plot gets a -steer suffix"},
			},
			Action: func(c *cli.Context) error {
				return plotAction(c.Args().First(), c.String("png"))
			},
		},
		{
			Name:      "validate",
			Usage:     "Check an input without running it",
			ArgsUsage: "[INPUT]",
			Action: func(c *cli.Context) error {
				return validateAction(c.Args().First())
			},
		},
	}
	return app
}

// warnLogger reports component configuration errors found while running.
func warnLogger() *log.Logger {
	return log.New(os.Stderr, chalk.Yellow.Color("warning: "), 0)
}

func failWith(err error) {
	fmt.Fprint(os.Stderr, chalk.Red)
	fmt.Fprintf(os.Stderr, "error: %v", err)
	fmt.Fprintln(os.Stderr, chalk.Reset)
	os.Exit(1)
}

func readInput(path string) (sim.SimulationInput, error) {
	var (
		data []byte
		err  error
	)
	if path != "" && path != "-" {
		data, err = os.ReadFile(path)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return sim.SimulationInput{}, errors.Wrap(err, "reading input")
	}
	return sim.DecodeInput(data)
}

func simulate(path string) (sim.SimulationLog, error) {
	input, err := readInput(path)
	if err != nil {
		return sim.SimulationLog{}, err
	}
	s, err := sim.NewSimulation(input, warnLogger())
	if err != nil {
		return sim.SimulationLog{}, errors.Wrap(err, "building simulation")
	}
	return s.Run(), nil
}

func runAction(path, out string, pretty bool) error {
	simLog, err := simulate(path)
	if err != nil {
		return err
	}

	var data []byte
	if pretty {
		data, err = json.MarshalIndent(simLog, "", "  ")
	} else {
		data, err = json.Marshal(simLog)
	}
	if err != nil {
		return errors.Wrap(err, "marshaling output")
	}

	if out == "" {
		fmt.Println(string(data))
		return nil
	}
	return errors.Wrapf(os.WriteFile(out, append(data, '\n'), 0o644), "writing %s", out)
}

func validateAction(path string) error {
	input, err := readInput(path)
	if err != nil {
		return err
	}
	s, err := sim.NewSimulation(input, warnLogger())
	if err != nil {
		return err
	}
	for _, id := range s.VehicleIDs() {
		if err := s.Vehicle(id).Err(); err != nil {
			log.Print(chalk.Yellow.Color(fmt.Sprintf("vehicle %s: %v", id, err)))
		}
	}
	fmt.Println(chalk.Green.Color(fmt.Sprintf("ok: %d vehicles, %.0f steps",
		len(s.VehicleIDs()), input.Meta.RunTime/input.Meta.TimeStep)))
	return nil
}

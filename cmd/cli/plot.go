package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/cxd309/vehicle-sim/internal/sim"
)

func plotAction(path, png string) error {
	simLog, err := simulate(path)
	if err != nil {
		return err
	}
	if len(simLog.Output) == 0 {
		return errors.New("nothing to plot")
	}

	speed := func(l sim.VehicleLog) float64 { return l.SpeedKph }
	steer := func(l sim.VehicleLog) float64 { return l.Command.Steer }

	if err := savePlot(simLog, "Speed", "speed (km/h)", speed, png); err != nil {
		return err
	}
	ext := filepath.Ext(png)
	return savePlot(simLog, "Steering", "steer", steer, strings.TrimSuffix(png, ext)+"-steer"+ext)
}

// traces returns one series per vehicle, keyed by vehicle ID in log order.
func traces(simLog sim.SimulationLog, value func(sim.VehicleLog) float64) ([]string, map[string]plotter.XYs) {
	var ids []string
	series := make(map[string]plotter.XYs)
	for _, row := range simLog.Output {
		for _, l := range row.VehicleLogs {
			if _, ok := series[l.VehicleID]; !ok {
				ids = append(ids, l.VehicleID)
			}
			series[l.VehicleID] = append(series[l.VehicleID], plotter.XY{X: row.Timestamp, Y: value(l)})
		}
	}
	return ids, series
}

func savePlot(simLog sim.SimulationLog, title, ylabel string, value func(sim.VehicleLog) float64, filename string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())

	ids, series := traces(simLog, value)
	for i, id := range ids {
		line, err := plotter.NewLine(series[id])
		if err != nil {
			return errors.Wrapf(err, "plotting %s", id)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(i)
		if i > 0 {
			line.LineStyle.Dashes = []vg.Length{vg.Points(2 + float64(i)), vg.Points(2)}
		}
		p.Add(line)
		p.Legend.Add(id, line)
	}

	if err := p.Save(8*vg.Inch, 5*vg.Inch, filename); err != nil {
		return errors.Wrapf(err, "saving %s", filename)
	}
	fmt.Println("wrote", filename)
	return nil
}

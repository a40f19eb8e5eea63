/*
Copyright © 2024 the vedrop authors.
This file is part of vedrop.

vedrop is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

vedrop is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with vedrop.  If not, see <http://www.gnu.org/licenses/>.
*/

package vedroputil

import (
	"fmt"
	"io"
	"os"

	"github.com/comphy-lab/vedrop"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// EnergyPlot returns a plot of the kinetic energy in recs against time.
func EnergyPlot(recs []vedrop.Record, title string) (*plot.Plot, error) {
	if len(recs) == 0 {
		return nil, fmt.Errorf("vedrop: no records to plot")
	}
	p, err := plot.New()
	if err != nil {
		return nil, err
	}
	p.Title.Text = title
	p.X.Label.Text = "t"
	p.Y.Label.Text = "kinetic energy"
	xy := make(plotter.XYs, len(recs))
	for i, r := range recs {
		xy[i].X = r.Time
		xy[i].Y = r.Energy
	}
	if err := plotutil.AddLines(p, "ke", xy); err != nil {
		return nil, err
	}
	p.Y.Min = 0
	return p, nil
}

// WriteEnergyPlot reads a run log from r and writes a PNG plot of its
// energy history to w.
func WriteEnergyPlot(w io.Writer, r io.Reader, title string) error {
	recs, err := vedrop.ReadLog(r)
	if err != nil {
		return err
	}
	p, err := EnergyPlot(recs, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// PlotEnergy plots the energy history in the run log logFile to the PNG
// file out.
func PlotEnergy(logFile, out, title string) error {
	r, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("vedrop: opening run log: %v", err)
	}
	defer r.Close()
	w, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("vedrop: creating plot: %v", err)
	}
	if err := WriteEnergyPlot(w, r, title); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

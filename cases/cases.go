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

// Package cases holds the preset drop simulations: a drop atomising in
// a gas stream, a drop impacting a wall, and the pinch-off of a
// viscoelastic jet.
package cases

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/comphy-lab/vedrop"
)

// Case is the configuration of a drop simulation.
type Case struct {
	Name     string
	Geometry vedrop.Geometry

	// Vanilla selects the full-tensor viscoelastic model instead of the
	// scalar one. It only changes the run log name.
	Vanilla bool

	vedrop.Params

	// RhoInOut is the liquid to gas density ratio when the groups are
	// based on the gas density. Zero means the liquid density is 1 and
	// the gas density is 1e-3.
	RhoInOut float64 `toml:",omitempty"`

	// Unscaled means the groups are used directly as viscosity, elastic
	// modulus and relaxation time, with unit surface tension.
	Unscaled bool `toml:",omitempty"`

	L0        float64    // domain size
	Origin    [3]float64 // lowest corner of the domain
	InitLevel int        // level of the initial uniform grid

	Tmax  float64 // end time
	Tsnap float64 // time between snapshots
	DtMax float64 // maximum timestep

	// Wavelet error tolerances. A zero KErr leaves the curvature out of
	// the refinement criteria.
	FErr, KErr, VelErr float64

	// Kinetic energy bounds.
	Upper, Lower float64

	// MinRadius adds the smallest interface radius to the run log.
	MinRadius bool `toml:",omitempty"`

	shape    func(x [3]float64) float64
	velocity func(c vedrop.Cell) [3]float64
}

// Shape is a level set of the initial liquid region: positive inside
// the liquid and negative in the gas.
func (c Case) Shape(x [3]float64) float64 {
	if c.shape == nil {
		return -1
	}
	return c.shape(x)
}

// Velocity returns the initial velocity of a cell.
func (c Case) Velocity(cell vedrop.Cell) [3]float64 {
	if c.velocity == nil {
		return [3]float64{}
	}
	return c.velocity(cell)
}

// Fluid returns the material properties derived from the
// dimensionless groups.
func (c Case) Fluid() vedrop.TwoPhase {
	switch {
	case c.Unscaled:
		return vedrop.TwoPhase{
			Rho1: 1, Rho2: 1e-3,
			Mu1: c.Oh, Mu2: c.Oha,
			G1: c.Ec, Lambda1: c.De,
			Sigma: 1,
		}
	case c.RhoInOut > 0:
		// The groups are based on the gas density, so the liquid
		// viscosities carry the square root of the density ratio.
		sq := math.Sqrt(c.RhoInOut)
		return vedrop.TwoPhase{
			Rho1: c.RhoInOut, Rho2: 1,
			Mu1: sq * c.Oh / math.Sqrt(c.We), Mu2: sq * c.Oha / math.Sqrt(c.We),
			G1: c.Ec / c.We, Lambda1: c.De * math.Sqrt(c.We),
			Sigma: 1 / c.We,
		}
	default:
		return vedrop.TwoPhase{
			Rho1: 1, Rho2: 1e-3,
			Mu1: c.Oh / math.Sqrt(c.We), Mu2: c.Oha / math.Sqrt(c.We),
			G1: c.Ec / c.We, Lambda1: c.De * math.Sqrt(c.We),
			Sigma: 1 / c.We,
		}
	}
}

// LogFile returns the name of the run log.
func (c Case) LogFile() string {
	switch {
	case c.Vanilla:
		return "logAxi-vanilla.dat"
	case c.Geometry == vedrop.ThreeD:
		return "log3D-scalar.dat"
	default:
		return "logAxi-scalar.dat"
	}
}

// Refinement returns the refinement criteria of the case.
func (c Case) Refinement() (vedrop.RefinementSpec, error) {
	return vedrop.NewRefinementSpec(c.Geometry, c.FErr, c.KErr, c.VelErr, c.Level)
}

// Monitor returns the kinetic energy bounds of the case.
func (c Case) Monitor() vedrop.MonitorConfig {
	return vedrop.MonitorConfig{Upper: c.Upper, Lower: c.Lower, GraceSteps: vedrop.DefaultGraceSteps}
}

// Schedule returns the snapshot schedule of the case.
func (c Case) Schedule() vedrop.Schedule {
	return vedrop.Schedule{Start: 0, Interval: c.Tsnap, End: c.Tmax}
}

// Probes returns the extra diagnostics logged by the case.
func (c Case) Probes() []vedrop.Probe {
	if c.MinRadius {
		return []vedrop.Probe{vedrop.MinInterfaceRadius()}
	}
	return nil
}

// Validate checks the case for settings that would make a run fail.
func (c Case) Validate() error {
	if c.Geometry == vedrop.Axisymmetric && c.Origin[1] < 0 {
		return fmt.Errorf("cases: %s: axisymmetric domain must not extend below the axis", c.Name)
	}
	if c.Geometry == vedrop.ThreeD && c.Vanilla {
		return fmt.Errorf("cases: %s: the full-tensor model cannot run in 3D", c.Name)
	}
	if !c.Unscaled && !(c.We > 0) {
		return fmt.Errorf("cases: %s: Weber number must be positive, got %g", c.Name, c.We)
	}
	if !(c.L0 > 0) || !(c.Tmax > 0) || !(c.DtMax > 0) {
		return fmt.Errorf("cases: %s: domain size, end time and timestep must be positive", c.Name)
	}
	if c.InitLevel < 0 || c.InitLevel > c.Level {
		return fmt.Errorf("cases: %s: initial level %d is outside [0, %d]", c.Name, c.InitLevel, c.Level)
	}
	if err := c.Fluid().Validate(); err != nil {
		return fmt.Errorf("cases: %s: %v", c.Name, err)
	}
	if _, err := c.Refinement(); err != nil {
		return fmt.Errorf("cases: %s: %v", c.Name, err)
	}
	if err := c.Monitor().Validate(); err != nil {
		return fmt.Errorf("cases: %s: %v", c.Name, err)
	}
	if err := c.Schedule().Validate(); err != nil {
		return fmt.Errorf("cases: %s: %v", c.Name, err)
	}
	return nil
}

var presets = map[string]func() Case{
	"dropAtomisation": DropAtomisation,
	"dropImpact":      DropImpact,
	"pinchOff":        PinchOff,
}

// Names returns the names of the preset cases in sorted order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the preset case with the given name.
func Get(name string) (Case, error) {
	f, ok := presets[name]
	if !ok {
		return Case{}, fmt.Errorf("cases: unknown case %q; valid cases are %s",
			name, strings.Join(Names(), ", "))
	}
	return f(), nil
}

// DropAtomisation is a drop broken up by a fast gas stream entering
// from the left.
func DropAtomisation() Case {
	r2 := func(x [3]float64) float64 { return (x[0]-3)*(x[0]-3) + x[1]*x[1] + x[2]*x[2] }
	return Case{
		Name:      "dropAtomisation",
		Geometry:  vedrop.ThreeD,
		Params:    vedrop.Params{Level: 7, We: 15000, Oh: 3e-3, Oha: 0.018 * 3e-3},
		RhoInOut:  830,
		L0:        20,
		Origin:    [3]float64{0, -10, -10},
		InitLevel: 6,
		Tmax:      200,
		Tsnap:     0.1,
		DtMax:     1e-2, // nominal; the flow solver limits the step itself

		FErr:   1e-2,
		KErr:   1e-4,
		VelErr: 1e-2,
		Upper:  1e6,
		Lower:  1e-6,
		shape:  func(x [3]float64) float64 { return 1 - r2(x) },
		velocity: func(c vedrop.Cell) [3]float64 {
			return [3]float64{1 - c.F, 0, 0}
		},
	}
}

// DropImpact is a viscoelastic drop moving onto a wall at x = 0.
func DropImpact() Case {
	const gap = 0.05
	return Case{
		Name:      "dropImpact",
		Geometry:  vedrop.ThreeD,
		Params:    vedrop.Params{Level: 6, We: 5, Oh: 1e-2, Oha: 1e-2 * 1e-2, De: 1, Ec: 1},
		L0:        4,
		Origin:    [3]float64{0, -2, -2},
		InitLevel: 4,
		Tmax:      3,
		Tsnap:     1e-2,
		DtMax:     1e-5,
		FErr:      1e-3,
		VelErr:    1e-2,
		Upper:     1e2,
		Lower:     1e-8,
		shape: func(x [3]float64) float64 {
			dx := x[0] - (1 + gap)
			return 1 - (dx*dx + x[1]*x[1] + x[2]*x[2])
		},
		velocity: func(c vedrop.Cell) [3]float64 {
			return [3]float64{-c.F, 0, 0}
		},
	}
}

// PinchOff is an axisymmetric viscoelastic jet with a sinusoidal
// perturbation that thins and breaks.
func PinchOff() Case {
	const eps = 0.5
	return Case{
		Name:      "pinchOff",
		Geometry:  vedrop.Axisymmetric,
		Vanilla:   true,
		Params:    vedrop.Params{Level: 6, Oh: 1e-2, Oha: 1e-2 * 1e-2, De: 1, Ec: 1},
		Unscaled:  true,
		L0:        2 * math.Pi,
		InitLevel: 4,
		Tmax:      10,
		Tsnap:     1e-2,
		DtMax:     1e-3,
		FErr:      1e-3,
		KErr:      1e-6,
		VelErr:    1e-2,
		Upper:     1e2,
		Lower:     1e-8,
		shape: func(x [3]float64) float64 {
			return 1 - (x[1] + eps*math.Sin(x[0]/4))
		},
		velocity: func(c vedrop.Cell) [3]float64 {
			return [3]float64{0, -0.1 * c.F * math.Sin(c.X[0]/4), 0}
		},
		MinRadius: true,
	}
}

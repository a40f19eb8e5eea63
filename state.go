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

package vedrop

import (
	"context"
	"encoding"
	"fmt"
	"math"
	"strings"
)

// Names of the fields the control loop hands to the flow solver.
const (
	FieldF     = "f"     // liquid volume fraction
	FieldKappa = "KAPPA" // interface curvature from the height-function estimator
	FieldUx    = "u.x"
	FieldUy    = "u.y"
	FieldUz    = "u.z"
)

// State is the part of the solver state the control loop reads and
// checkpoints. It is owned by the driver.
type State struct {
	Step int     // timestep index i
	Time float64 // simulation time t
	Dt   float64 // size of the step that led to Time
	Mesh Mesh
}

// Cell holds the fields of a single grid cell as seen by the control loop.
type Cell struct {
	F     float64    // volume fraction of the liquid phase
	U     [3]float64 // velocity; U[2] is zero in two dimensions
	X     [3]float64 // cell centre; X[1] is the radial coordinate in axisymmetric runs
	Delta float64    // cell edge length
	Level int        // refinement level
}

// Mesh is the adaptive mesh owned by the flow solver. Its cells are
// divided into partitions that may be visited concurrently.
type Mesh interface {
	// Dims returns the number of spatial dimensions.
	Dims() int

	// Partitions returns the number of disjoint cell partitions.
	Partitions() int

	// ForEach calls fn for each cell in partition part. The order of
	// the cells is not specified.
	ForEach(part int, fn func(c *Cell))

	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// Solver is the external flow solver driven by a Simulation.
type Solver interface {
	// Mesh returns the mesh holding the solver fields.
	Mesh() Mesh

	// Curvature computes the interface curvature of the volume fraction
	// field src and stores it in the scalar field dst.
	Curvature(src, dst string) error

	// AdaptWavelet refines and coarsens the mesh so that the wavelet
	// error estimate of each criterion field stays below its tolerance,
	// with at most maxLevel levels and minCells cells per refined block.
	AdaptWavelet(criteria []Criterion, maxLevel, minCells int) error

	// Advance takes one timestep, updating s.Step, s.Time and s.Dt.
	// If limit > s.Time, the step must not go past limit.
	Advance(ctx context.Context, s *State, limit float64) error
}

// Geometry selects the coordinate system of a run.
type Geometry int

// Supported geometries.
const (
	Planar Geometry = iota
	Axisymmetric
	ThreeD
)

var geometryNames = [...]string{Planar: "planar", Axisymmetric: "axi", ThreeD: "3d"}

// geometryFuncs holds what differs between geometries: the velocity
// components used for refinement and the per-cell energy terms.
type geometryFuncs struct {
	dims     int
	velocity []string
	speed2   func(c *Cell) float64
	measure  func(c *Cell) float64
}

var geometries = [...]geometryFuncs{
	Planar: {
		dims:     2,
		velocity: []string{FieldUx, FieldUy},
		speed2:   func(c *Cell) float64 { return c.U[0]*c.U[0] + c.U[1]*c.U[1] },
		measure:  func(c *Cell) float64 { return c.Delta * c.Delta },
	},
	Axisymmetric: {
		dims:     2,
		velocity: []string{FieldUx, FieldUy},
		speed2:   func(c *Cell) float64 { return c.U[0]*c.U[0] + c.U[1]*c.U[1] },
		measure:  func(c *Cell) float64 { return 2 * math.Pi * c.X[1] * c.Delta * c.Delta },
	},
	ThreeD: {
		dims:     3,
		velocity: []string{FieldUx, FieldUy, FieldUz},
		speed2: func(c *Cell) float64 {
			return c.U[0]*c.U[0] + c.U[1]*c.U[1] + c.U[2]*c.U[2]
		},
		measure: func(c *Cell) float64 { return c.Delta * c.Delta * c.Delta },
	},
}

// ParseGeometry returns the geometry with the given name: "planar",
// "axi" or "3d".
func ParseGeometry(name string) (Geometry, error) {
	for g, n := range geometryNames {
		if strings.EqualFold(name, n) {
			return Geometry(g), nil
		}
	}
	return Planar, fmt.Errorf("vedrop: invalid geometry %q; valid options are %s",
		name, strings.Join(geometryNames[:], ", "))
}

func (g Geometry) valid() bool { return g >= Planar && g <= ThreeD }

func (g Geometry) String() string {
	if !g.valid() {
		return fmt.Sprintf("Geometry(%d)", int(g))
	}
	return geometryNames[g]
}

// MarshalText implements encoding.TextMarshaler.
func (g Geometry) MarshalText() ([]byte, error) {
	if !g.valid() {
		return nil, fmt.Errorf("vedrop: invalid geometry %d", int(g))
	}
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Geometry) UnmarshalText(b []byte) error {
	v, err := ParseGeometry(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// Dims returns the number of spatial dimensions of the mesh.
func (g Geometry) Dims() int { return geometries[g].dims }

// VelocityFields returns the names of the velocity components that are
// passed to the solver as refinement criteria.
func (g Geometry) VelocityFields() []string {
	return append([]string(nil), geometries[g].velocity...)
}

// CellEnergy returns the kinetic energy held by cell c, ½ρ|u|² times
// the cell measure (Δ² planar, Δ³ in 3D, 2πyΔ² axisymmetric).
func (g Geometry) CellEnergy(c *Cell, rho float64) float64 {
	f := geometries[g]
	return 0.5 * rho * f.speed2(c) * f.measure(c)
}

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

// Package synthetic provides a uniform mesh and a kinematic solver that
// evolve fields by a prescribed analytic law. They stand in for the flow
// solver in dry runs and tests of the control loop.
package synthetic

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/comphy-lab/vedrop"
)

// maxCells bounds the size of a Grid.
const maxCells = 1 << 24

// Grid is a uniform Cartesian mesh of (2^level)^dims cells, divided
// into contiguous partitions.
type Grid struct {
	dims   int
	level  int
	l0     float64
	origin [3]float64
	parts  int
	cells  []vedrop.Cell
	kappa  []float64
}

// gridData is the serialized form of a Grid.
type gridData struct {
	Dims, Level int
	L0          float64
	Origin      [3]float64
	Cells       []vedrop.Cell
	Kappa       []float64
}

// NewGrid returns a grid of edge length l0 with its lowest corner at
// origin. In two dimensions the third coordinate is ignored.
func NewGrid(dims, level int, l0 float64, origin [3]float64, partitions int) (*Grid, error) {
	if dims != 2 && dims != 3 {
		return nil, fmt.Errorf("synthetic: invalid number of dimensions %d", dims)
	}
	if level < 0 || level > 24/dims {
		return nil, fmt.Errorf("synthetic: level %d is outside [0, %d] for %d dimensions",
			level, 24/dims, dims)
	}
	if !(l0 > 0) {
		return nil, fmt.Errorf("synthetic: domain size must be positive, got %g", l0)
	}
	n := 1 << uint(level)
	total := n * n
	if dims == 3 {
		total *= n
	}
	if total > maxCells {
		return nil, fmt.Errorf("synthetic: %d cells is too many", total)
	}
	if partitions < 1 {
		partitions = 1
	}
	if partitions > total {
		partitions = total
	}
	g := &Grid{
		dims:   dims,
		level:  level,
		l0:     l0,
		origin: origin,
		parts:  partitions,
		cells:  make([]vedrop.Cell, total),
		kappa:  make([]float64, total),
	}
	delta := l0 / float64(n)
	for i := range g.cells {
		idx := [3]int{i % n, (i / n) % n, i / (n * n)}
		c := &g.cells[i]
		c.Delta = delta
		c.Level = level
		for k := 0; k < dims; k++ {
			c.X[k] = origin[k] + (float64(idx[k])+0.5)*delta
		}
	}
	return g, nil
}

// Dims implements vedrop.Mesh.
func (g *Grid) Dims() int { return g.dims }

// Partitions implements vedrop.Mesh.
func (g *Grid) Partitions() int { return g.parts }

// ForEach implements vedrop.Mesh.
func (g *Grid) ForEach(part int, fn func(c *vedrop.Cell)) {
	lo := part * len(g.cells) / g.parts
	hi := (part + 1) * len(g.cells) / g.parts
	for i := lo; i < hi; i++ {
		fn(&g.cells[i])
	}
}

// Len returns the number of cells.
func (g *Grid) Len() int { return len(g.cells) }

// Cell returns cell i.
func (g *Grid) Cell(i int) *vedrop.Cell { return &g.cells[i] }

// Curvature returns the curvature stored for cell i.
func (g *Grid) Curvature(i int) float64 { return g.kappa[i] }

// SetFraction sets the volume fraction from the level set phi, which
// is positive inside the liquid. The interface is smeared over about one
// cell.
func (g *Grid) SetFraction(phi func(x [3]float64) float64) {
	for i := range g.cells {
		c := &g.cells[i]
		f := 0.5 + phi(c.X)/(2*c.Delta)
		switch {
		case f < 0:
			f = 0
		case f > 1:
			f = 1
		}
		c.F = f
	}
}

// SetVelocity sets the velocity of every cell to u(c).
func (g *Grid) SetVelocity(u func(c vedrop.Cell) [3]float64) {
	for i := range g.cells {
		v := u(g.cells[i])
		if g.dims == 2 {
			v[2] = 0
		}
		g.cells[i].U = v
	}
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (g *Grid) MarshalBinary() ([]byte, error) {
	var b bytes.Buffer
	err := gob.NewEncoder(&b).Encode(gridData{
		Dims:   g.dims,
		Level:  g.level,
		L0:     g.l0,
		Origin: g.origin,
		Cells:  g.cells,
		Kappa:  g.kappa,
	})
	if err != nil {
		return nil, fmt.Errorf("synthetic: encoding grid: %v", err)
	}
	return b.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The number of
// partitions of g is kept.
func (g *Grid) UnmarshalBinary(b []byte) error {
	var d gridData
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&d); err != nil {
		return fmt.Errorf("synthetic: decoding grid: %v", err)
	}
	if g.cells != nil && (d.Dims != g.dims || len(d.Cells) != len(g.cells)) {
		return fmt.Errorf("synthetic: grid of %d cells in %d dimensions does not match "+
			"saved grid of %d cells in %d dimensions", len(g.cells), g.dims, len(d.Cells), d.Dims)
	}
	if len(d.Kappa) != len(d.Cells) {
		d.Kappa = make([]float64, len(d.Cells))
	}
	g.dims, g.level, g.l0, g.origin = d.Dims, d.Level, d.L0, d.Origin
	g.cells, g.kappa = d.Cells, d.Kappa
	if g.parts < 1 {
		g.parts = 1
	}
	if g.parts > len(g.cells) && len(g.cells) > 0 {
		g.parts = len(g.cells)
	}
	return nil
}

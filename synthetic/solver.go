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

package synthetic

import (
	"context"
	"fmt"
	"math"

	"github.com/comphy-lab/vedrop"
)

// Solver advances a Grid by scaling every velocity by exp(-Rate·dt)
// each step. The volume fraction is not transported. A negative Rate
// makes the kinetic energy grow.
type Solver struct {
	Grid *Grid

	// DtMax is the size of a full step.
	DtMax float64

	Rate float64

	// FixedStep makes every step DtMax long, even when that goes past
	// the limit given to Advance.
	FixedStep bool

	// Calls made by the control loop.
	Curvatures  int
	Adaptations int
	Criteria    []vedrop.Criterion
	MaxLevel    int
	MinCells    int
}

// Mesh implements vedrop.Solver.
func (s *Solver) Mesh() vedrop.Mesh { return s.Grid }

func (s *Solver) known(field string) bool {
	switch field {
	case vedrop.FieldF, vedrop.FieldKappa, vedrop.FieldUx, vedrop.FieldUy:
		return true
	case vedrop.FieldUz:
		return s.Grid.dims == 3
	}
	return false
}

// Curvature implements vedrop.Solver. Interfacial cells get the
// curvature of a sphere (or circle in 2D) centred on the liquid centroid
// and passing through the cell.
func (s *Solver) Curvature(src, dst string) error {
	if src != vedrop.FieldF || dst != vedrop.FieldKappa {
		return fmt.Errorf("synthetic: cannot compute curvature of %s into %s", src, dst)
	}
	s.Curvatures++
	g := s.Grid
	var vol float64
	var centre [3]float64
	for _, c := range g.cells {
		vol += c.F
		for k := range centre {
			centre[k] += c.F * c.X[k]
		}
	}
	for i := range g.kappa {
		g.kappa[i] = 0
	}
	if vol == 0 {
		return nil
	}
	for k := range centre {
		centre[k] /= vol
	}
	for i, c := range g.cells {
		if c.F <= 0 || c.F >= 1 {
			continue
		}
		var r2 float64
		for k := 0; k < g.dims; k++ {
			r2 += (c.X[k] - centre[k]) * (c.X[k] - centre[k])
		}
		if r2 > 0 {
			g.kappa[i] = float64(g.dims-1) / math.Sqrt(r2)
		}
	}
	return nil
}

// AdaptWavelet implements vedrop.Solver. A uniform grid cannot be
// adapted, so the call is only checked and recorded and each cell's
// level is capped at maxLevel.
func (s *Solver) AdaptWavelet(criteria []vedrop.Criterion, maxLevel, minCells int) error {
	for _, c := range criteria {
		if !s.known(c.Field) {
			return fmt.Errorf("synthetic: unknown refinement field %q", c.Field)
		}
	}
	s.Adaptations++
	s.Criteria = append(s.Criteria[:0], criteria...)
	s.MaxLevel, s.MinCells = maxLevel, minCells
	level := s.Grid.level
	if maxLevel < level {
		level = maxLevel
	}
	for i := range s.Grid.cells {
		s.Grid.cells[i].Level = level
	}
	return nil
}

// Advance implements vedrop.Solver.
func (s *Solver) Advance(ctx context.Context, st *vedrop.State, limit float64) error {
	if !(s.DtMax > 0) {
		return fmt.Errorf("synthetic: timestep must be positive, got %g", s.DtMax)
	}
	dt := s.DtMax
	landed := false
	if !s.FixedStep && limit > st.Time && st.Time+dt >= limit {
		dt = limit - st.Time
		landed = true
	}
	scale := math.Exp(-s.Rate * dt)
	for i := range s.Grid.cells {
		u := &s.Grid.cells[i].U
		for k := range u {
			u[k] *= scale
		}
	}
	st.Step++
	st.Dt = dt
	if landed {
		st.Time = limit
	} else {
		st.Time += dt
	}
	return nil
}

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

import "fmt"

// MinCellsPerBlock is the minimum number of cells in a refined block.
const MinCellsPerBlock = 4

// Criterion is a field whose wavelet error estimate must stay below
// Tolerance.
type Criterion struct {
	Field     string
	Tolerance float64
}

// RefinementSpec is the ordered set of refinement criteria of a run.
type RefinementSpec struct {
	Criteria []Criterion
	MaxLevel int
	MinCells int
}

// NewRefinementSpec returns the criteria for the volume fraction, the
// curvature and each velocity component of geometry g, in that order.
// A zero kErr leaves out the curvature.
func NewRefinementSpec(g Geometry, fErr, kErr, velErr float64, maxLevel int) (RefinementSpec, error) {
	if !g.valid() {
		return RefinementSpec{}, fmt.Errorf("vedrop: invalid geometry %d", int(g))
	}
	r := RefinementSpec{
		Criteria: []Criterion{{Field: FieldF, Tolerance: fErr}},
		MaxLevel: maxLevel,
		MinCells: MinCellsPerBlock,
	}
	if kErr != 0 {
		r.Criteria = append(r.Criteria, Criterion{Field: FieldKappa, Tolerance: kErr})
	}
	for _, v := range g.VelocityFields() {
		r.Criteria = append(r.Criteria, Criterion{Field: v, Tolerance: velErr})
	}
	return r, r.Validate()
}

// Validate checks that every tolerance is positive and that the
// maximum level is not negative.
func (r RefinementSpec) Validate() error {
	if len(r.Criteria) == 0 {
		return fmt.Errorf("vedrop: no refinement criteria")
	}
	seen := make(map[string]bool)
	for _, c := range r.Criteria {
		if !(c.Tolerance > 0) {
			return fmt.Errorf("vedrop: refinement tolerance for %s must be positive, got %g",
				c.Field, c.Tolerance)
		}
		if seen[c.Field] {
			return fmt.Errorf("vedrop: duplicate refinement field %s", c.Field)
		}
		seen[c.Field] = true
	}
	if r.MaxLevel < 0 {
		return fmt.Errorf("vedrop: maximum refinement level must not be negative, got %d", r.MaxLevel)
	}
	if r.MinCells < 1 {
		return fmt.Errorf("vedrop: minimum cells per block must be positive, got %d", r.MinCells)
	}
	return nil
}

func (r RefinementSpec) has(field string) bool {
	for _, c := range r.Criteria {
		if c.Field == field {
			return true
		}
	}
	return false
}

// AdaptiveRefinement returns a function that adapts the mesh once per
// step. When the curvature is one of the criteria it is recomputed from
// the volume fraction first so the estimate is current.
func AdaptiveRefinement(r RefinementSpec) DomainManipulator {
	if err := r.Validate(); err != nil {
		return func(*Simulation) error { return err }
	}
	criteria := append([]Criterion(nil), r.Criteria...)
	curvature := r.has(FieldKappa)

	return func(s *Simulation) error {
		if curvature {
			if err := s.Solver.Curvature(FieldF, FieldKappa); err != nil {
				return fmt.Errorf("vedrop: computing curvature at step %d: %v", s.State.Step, err)
			}
		}
		if err := s.Solver.AdaptWavelet(criteria, r.MaxLevel, r.MinCells); err != nil {
			return fmt.Errorf("vedrop: adapting mesh at step %d: %v", s.State.Step, err)
		}
		return nil
	}
}

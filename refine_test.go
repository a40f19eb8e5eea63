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
	"errors"
	"reflect"
	"testing"
)

func TestNewRefinementSpec(t *testing.T) {
	r, err := NewRefinementSpec(ThreeD, 1e-2, 1e-4, 1e-2, 7)
	if err != nil {
		t.Fatal(err)
	}
	want := RefinementSpec{
		Criteria: []Criterion{
			{FieldF, 1e-2}, {FieldKappa, 1e-4}, {FieldUx, 1e-2}, {FieldUy, 1e-2}, {FieldUz, 1e-2},
		},
		MaxLevel: 7,
		MinCells: 4,
	}
	if !reflect.DeepEqual(r, want) {
		t.Errorf("have %+v, want %+v", r, want)
	}

	r, err = NewRefinementSpec(Axisymmetric, 1e-3, 0, 1e-2, 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Criteria) != 3 || r.has(FieldKappa) {
		t.Errorf("zero curvature tolerance: %+v", r.Criteria)
	}
}

func TestRefinementSpecValidate(t *testing.T) {
	for _, test := range []struct {
		name string
		r    RefinementSpec
	}{
		{"empty", RefinementSpec{MinCells: 4}},
		{"tolerance", RefinementSpec{Criteria: []Criterion{{FieldF, -1}}, MinCells: 4}},
		{"duplicate", RefinementSpec{Criteria: []Criterion{{FieldF, 1}, {FieldF, 1}}, MinCells: 4}},
		{"level", RefinementSpec{Criteria: []Criterion{{FieldF, 1}}, MaxLevel: -1, MinCells: 4}},
		{"cells", RefinementSpec{Criteria: []Criterion{{FieldF, 1}}}},
	} {
		if err := test.r.Validate(); err == nil {
			t.Errorf("%s: expected an error", test.name)
		}
	}
}

func TestAdaptiveRefinement(t *testing.T) {
	r, err := NewRefinementSpec(Planar, 1e-3, 1e-6, 1e-2, 6)
	if err != nil {
		t.Fatal(err)
	}
	solver := &fakeSolver{mesh: uniformMesh(4, 1, 1), dt: 0.1}
	s := &Simulation{
		Solver:   solver,
		RunFuncs: []DomainManipulator{AdaptiveRefinement(r), TimeLimit(0.25)},
	}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Steps at t = 0, 0.1, 0.2 and 0.3.
	if len(solver.calls) != 8 {
		t.Fatalf("calls: %v", solver.calls)
	}
	for i := 0; i < len(solver.calls); i += 2 {
		if solver.calls[i] != "curvature f KAPPA" {
			t.Errorf("call %d: have %q, want curvature first", i, solver.calls[i])
		}
		want := "adapt [{f 0.001} {KAPPA 1e-06} {u.x 0.01} {u.y 0.01}] 6 4"
		if solver.calls[i+1] != want {
			t.Errorf("call %d: have %q, want %q", i+1, solver.calls[i+1], want)
		}
	}
}

func TestAdaptiveRefinementNoCurvature(t *testing.T) {
	r, err := NewRefinementSpec(ThreeD, 1e-3, 0, 1e-2, 6)
	if err != nil {
		t.Fatal(err)
	}
	solver := &fakeSolver{mesh: uniformMesh(4, 1, 1)}
	s := &Simulation{Solver: solver}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := AdaptiveRefinement(r)(s); err != nil {
		t.Fatal(err)
	}
	if len(solver.calls) != 1 {
		t.Errorf("calls: %v", solver.calls)
	}
}

func TestAdaptiveRefinementErrors(t *testing.T) {
	s := &Simulation{Solver: &fakeSolver{mesh: uniformMesh(4, 1, 1)}}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := AdaptiveRefinement(RefinementSpec{})(s); err == nil {
		t.Error("expected an error for an invalid spec")
	}
	r, err := NewRefinementSpec(Planar, 1e-3, 1e-6, 1e-2, 6)
	if err != nil {
		t.Fatal(err)
	}
	s.Solver.(*fakeSolver).err = errors.New("out of memory")
	if err := AdaptiveRefinement(r)(s); err == nil {
		t.Error("expected the solver error to be returned")
	}
}

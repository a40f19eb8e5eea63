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
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"
)

// different reports whether a and b differ by more than tolerance,
// relative to their mean.
func different(a, b, tolerance float64) bool {
	if a == b {
		return false
	}
	return 2*math.Abs(a-b)/math.Abs(a+b) > tolerance
}

// sliceMesh is a Mesh backed by a slice of cells.
type sliceMesh struct {
	dims  int
	parts int
	Cells []Cell
}

func (m *sliceMesh) Dims() int       { return m.dims }
func (m *sliceMesh) Partitions() int { return m.parts }
func (m *sliceMesh) ForEach(part int, fn func(c *Cell)) {
	for i := part; i < len(m.Cells); i += m.parts {
		fn(&m.Cells[i])
	}
}
func (m *sliceMesh) MarshalBinary() ([]byte, error) {
	var b bytes.Buffer
	err := gob.NewEncoder(&b).Encode(m.Cells)
	return b.Bytes(), err
}
func (m *sliceMesh) UnmarshalBinary(b []byte) error {
	m.Cells = nil
	return gob.NewDecoder(bytes.NewReader(b)).Decode(&m.Cells)
}

// uniformMesh returns n unit cells moving with speed u along x.
func uniformMesh(n, parts int, u float64) *sliceMesh {
	m := &sliceMesh{dims: 2, parts: parts, Cells: make([]Cell, n)}
	for i := range m.Cells {
		m.Cells[i] = Cell{F: 1, U: [3]float64{u}, X: [3]float64{float64(i) + 0.5, 0.5}, Delta: 1}
	}
	return m
}

// fakeSolver records the calls it gets and scales the velocity by
// Growth each step.
type fakeSolver struct {
	mesh   *sliceMesh
	dt     float64
	growth float64
	calls  []string
	err    error
}

func (s *fakeSolver) Mesh() Mesh { return s.mesh }

func (s *fakeSolver) Curvature(src, dst string) error {
	s.calls = append(s.calls, fmt.Sprintf("curvature %s %s", src, dst))
	return s.err
}

func (s *fakeSolver) AdaptWavelet(criteria []Criterion, maxLevel, minCells int) error {
	s.calls = append(s.calls, fmt.Sprintf("adapt %v %d %d", criteria, maxLevel, minCells))
	return s.err
}

func (s *fakeSolver) Advance(ctx context.Context, st *State, limit float64) error {
	dt := s.dt
	if limit > st.Time && st.Time+dt > limit {
		dt = limit - st.Time
	}
	g := s.growth
	if g == 0 {
		g = 1
	}
	for i := range s.mesh.Cells {
		s.mesh.Cells[i].U[0] *= g
	}
	st.Step++
	st.Dt = dt
	st.Time += dt
	return nil
}

// memCheckpointer keeps checkpoints in memory and records the keys it
// writes in order.
type memCheckpointer struct {
	data   map[string][]byte
	writes []string
}

func newMemCheckpointer() *memCheckpointer {
	return &memCheckpointer{data: make(map[string][]byte)}
}

func (m *memCheckpointer) Write(ctx context.Context, key string, s *State) error {
	var b bytes.Buffer
	if err := Save(&b, s); err != nil {
		return err
	}
	m.data[key] = b.Bytes()
	m.writes = append(m.writes, key)
	return nil
}

func (m *memCheckpointer) Read(ctx context.Context, key string, s *State) error {
	b, ok := m.data[key]
	if !ok {
		return ErrNotFound
	}
	return Load(bytes.NewReader(b), s)
}

func (m *memCheckpointer) count(key string) int {
	n := 0
	for _, k := range m.writes {
		if k == key {
			n++
		}
	}
	return n
}

func TestRunOrder(t *testing.T) {
	var order []string
	mark := func(name string) DomainManipulator {
		return func(s *Simulation) error {
			order = append(order, fmt.Sprintf("%s%d", name, s.State.Step))
			return nil
		}
	}
	s := &Simulation{
		Solver:    &fakeSolver{mesh: uniformMesh(4, 1, 1), dt: 0.1},
		InitFuncs: []DomainManipulator{mark("init")},
		RunFuncs: []DomainManipulator{
			mark("a"),
			mark("b"),
			func(s *Simulation) error {
				if s.State.Step == 2 {
					s.Stop(Decision{Kind: StopNormal, Reason: "done"})
				}
				return nil
			},
		},
		CleanupFuncs: []DomainManipulator{mark("cleanup")},
	}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{"init0", "a0", "b0", "a1", "b1", "a2", "b2", "cleanup2"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order: have %v, want %v", order, want)
	}
	if s.Decision.Kind != StopNormal || !s.Done {
		t.Errorf("decision: %+v", s.Decision)
	}
}

func TestRunCleanupOnError(t *testing.T) {
	errStep := errors.New("solver failure")
	cleaned := 0
	s := &Simulation{
		Solver: &fakeSolver{mesh: uniformMesh(4, 1, 1), dt: 0.1},
		RunFuncs: []DomainManipulator{func(s *Simulation) error {
			if s.State.Step == 3 {
				return errStep
			}
			return nil
		}},
		CleanupFuncs: []DomainManipulator{
			func(*Simulation) error { cleaned++; return errors.New("close failure") },
			func(*Simulation) error { cleaned++; return nil },
		},
	}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background()); err != errStep {
		t.Errorf("have error %v, want %v", err, errStep)
	}
	if cleaned != 2 {
		t.Errorf("ran %d cleanup functions, want 2", cleaned)
	}
}

func TestRunAbortSkipsRemainingFuncs(t *testing.T) {
	ran := false
	s := &Simulation{
		Solver: &fakeSolver{mesh: uniformMesh(4, 1, 1), dt: 0.1},
		RunFuncs: []DomainManipulator{
			func(s *Simulation) error {
				s.Stop(Decision{Kind: StopAbort, Reason: "boom"})
				return nil
			},
			func(s *Simulation) error { ran = true; return nil },
		},
	}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ran {
		t.Error("function after an abort was run")
	}
	if s.State.Step != 0 {
		t.Errorf("solver advanced to step %d after abort", s.State.Step)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Simulation{
		Solver: &fakeSolver{mesh: uniformMesh(4, 1, 1), dt: 0.1},
		RunFuncs: []DomainManipulator{func(s *Simulation) error {
			if s.State.Step == 5 {
				cancel()
			}
			return nil
		}},
	}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := s.Run(ctx); err != context.Canceled {
		t.Errorf("have error %v, want %v", err, context.Canceled)
	}
	if s.State.Step != 6 {
		t.Errorf("stopped at step %d, want 6", s.State.Step)
	}
}

func TestStop(t *testing.T) {
	s := &Simulation{}
	s.Stop(Decision{Kind: Continue})
	if s.Done {
		t.Fatal("continue stopped the run")
	}
	s.Stop(Decision{Kind: StopNormal, Reason: "first"})
	s.Stop(Decision{Kind: StopNormal, Reason: "second"})
	if s.Decision.Reason != "first" {
		t.Errorf("reason: have %q, want first", s.Decision.Reason)
	}
	s.Stop(Decision{Kind: StopAbort, Reason: ReasonBlewUp})
	s.Stop(Decision{Kind: StopNormal, Reason: ReasonEndTime})
	if s.Decision.Kind != StopAbort || s.Decision.Reason != ReasonBlewUp || !s.Done {
		t.Errorf("decision: %+v", s.Decision)
	}
}

func TestNextStop(t *testing.T) {
	s := &Simulation{Stops: []Stopper{
		Schedule{Start: 0, Interval: 0.1, End: 1},
		Schedule{Start: 0, Interval: 0.25, End: 1},
	}}
	s.State.Time = 0.2
	if have := s.nextStop(); different(have, 0.25, 1e-12) {
		t.Errorf("next stop: have %g, want 0.25", have)
	}
	s.State.Time = 1
	if have := s.nextStop(); have != 1 {
		t.Errorf("next stop after the end: have %g, want 1", have)
	}
}

func TestInitNoSolver(t *testing.T) {
	if err := (&Simulation{}).Init(); err == nil {
		t.Error("expected an error")
	}
}

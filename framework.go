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

// Package vedrop is the per-step control loop of adaptive multiphase
// drop simulations. It decides when the mesh is adapted, when state is
// checkpointed, what is logged, and when a run stops, while an external
// flow solver advances the fields.
package vedrop

import (
	"context"
	"fmt"
)

// Version gives the version number.
const Version = "0.3.0"

// DomainManipulator is a function that operates on a simulation.
type DomainManipulator func(s *Simulation) error

// DecisionKind is the outcome of a termination check.
type DecisionKind int

// Termination outcomes. A run leaves Continue at most once and never
// goes back.
const (
	Continue DecisionKind = iota
	StopNormal
	StopAbort
)

func (k DecisionKind) String() string {
	switch k {
	case Continue:
		return "continue"
	case StopNormal:
		return "normal"
	case StopAbort:
		return "abort"
	default:
		return fmt.Sprintf("DecisionKind(%d)", int(k))
	}
}

// Decision is a termination outcome and the message explaining it.
type Decision struct {
	Kind   DecisionKind
	Reason string
}

// Simulation holds the state of a run and the functions that act on it.
type Simulation struct {
	// InitFuncs are run once, in order, before the first step.
	InitFuncs []DomainManipulator

	// RunFuncs are run in order at every step, before the solver
	// advances the fields.
	RunFuncs []DomainManipulator

	// CleanupFuncs are run after the last step on every exit path,
	// including failures.
	CleanupFuncs []DomainManipulator

	// Stops are the schedules whose points the solver must land on
	// exactly.
	Stops []Stopper

	Solver Solver
	State  State

	// Done is set when the run should stop after the current step.
	Done bool

	// Decision tells why the run stopped.
	Decision Decision

	ctx context.Context
}

// Stopper gives the next time after t that a timestep must end on.
type Stopper interface {
	Next(t float64) (next float64, ok bool)
}

// Init attaches the solver mesh to the state and runs the InitFuncs.
func (s *Simulation) Init() error {
	if s.Solver == nil {
		return fmt.Errorf("vedrop: simulation has no solver")
	}
	s.State.Mesh = s.Solver.Mesh()
	for i, f := range s.InitFuncs {
		if err := f(s); err != nil {
			return fmt.Errorf("vedrop: init function %d: %v", i, err)
		}
	}
	return nil
}

// Run runs the RunFuncs and advances the solver until one of the
// RunFuncs sets Done or returns an error. The CleanupFuncs are always
// run before Run returns. ctx is only checked between steps.
func (s *Simulation) Run(ctx context.Context) (err error) {
	s.ctx = ctx
	defer func() {
		if cerr := s.cleanup(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, f := range s.RunFuncs {
			if err := f(s); err != nil {
				return err
			}
			if s.Decision.Kind == StopAbort {
				break
			}
		}
		if s.Done {
			return nil
		}
		if err := s.Solver.Advance(ctx, &s.State, s.nextStop()); err != nil {
			return fmt.Errorf("vedrop: advancing step %d: %v", s.State.Step, err)
		}
	}
}

func (s *Simulation) cleanup() error {
	var first error
	for _, f := range s.CleanupFuncs {
		if err := f(s); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// nextStop returns the earliest scheduled time after the current one,
// or the current time if nothing is scheduled.
func (s *Simulation) nextStop() float64 {
	t := s.State.Time
	limit := t
	for _, st := range s.Stops {
		next, ok := st.Next(t)
		if !ok {
			continue
		}
		if limit == t || next < limit {
			limit = next
		}
	}
	return limit
}

// Stop ends the run after the current step. An abort replaces an
// earlier normal stop; nothing replaces an abort.
func (s *Simulation) Stop(d Decision) {
	switch {
	case d.Kind == Continue, s.Decision.Kind == StopAbort:
		return
	case s.Decision.Kind == StopNormal && d.Kind != StopAbort:
		return
	}
	s.Decision = d
	s.Done = true
}

// Context returns the context passed to Run.
func (s *Simulation) Context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

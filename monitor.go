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
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/sirupsen/logrus"
)

// NegativeEnergyTolerance is the most negative total kinetic energy that
// is still treated as round-off.
const NegativeEnergyTolerance = -1e-10

// DefaultGraceSteps is the number of initial steps during which the
// energy bounds are not checked.
const DefaultGraceSteps = 10

// ErrorLogName is the default name of the file that abort reasons are
// appended to.
const ErrorLogName = "log"

// Abort reasons.
const (
	ReasonBlewUp   = "The kinetic energy blew up. Stopping simulation"
	ReasonTooSmall = "kinetic energy too small now! Stopping!"
)

// MonitorConfig holds the kinetic energy bounds of a run. Once the step
// index exceeds GraceSteps, a run whose energy leaves [Lower, Upper] is
// aborted.
type MonitorConfig struct {
	Upper, Lower float64
	GraceSteps   int
}

// Validate checks that the bounds are ordered.
func (c MonitorConfig) Validate() error {
	switch {
	case !(c.Upper > c.Lower):
		return fmt.Errorf("vedrop: upper energy bound %g is not above lower bound %g", c.Upper, c.Lower)
	case c.Lower < 0:
		return fmt.Errorf("vedrop: lower energy bound %g is negative", c.Lower)
	case c.GraceSteps < 0:
		return fmt.Errorf("vedrop: grace steps must not be negative, got %d", c.GraceSteps)
	}
	return nil
}

// Evaluate returns the termination decision for energy at the given step.
func (c MonitorConfig) Evaluate(step int, energy float64) Decision {
	if step <= c.GraceSteps {
		return Decision{Kind: Continue}
	}
	switch {
	case energy > c.Upper:
		return Decision{Kind: StopAbort, Reason: ReasonBlewUp}
	case energy < c.Lower:
		return Decision{Kind: StopAbort, Reason: ReasonTooSmall}
	}
	return Decision{Kind: Continue}
}

// ConsistencyError is returned when the kinetic energy is negative
// beyond round-off, which means the solver state is corrupt.
type ConsistencyError struct {
	Step   int
	Time   float64
	Energy float64
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("vedrop: kinetic energy %g is negative at step %d (t = %g)",
		e.Energy, e.Step, e.Time)
}

// Monitor computes the diagnostics of each step, logs them, and aborts
// runs whose kinetic energy leaves its bounds.
type Monitor struct {
	Config   MonitorConfig
	Geometry Geometry
	Fluid    TwoPhase

	// Log receives a record every step. It is required.
	Log    *LogWriter
	Probes []Probe

	// ErrorLog is the file abort reasons are appended to.
	ErrorLog string

	// Status receives abort reasons. It is usually the same stream
	// the LogWriter mirrors to.
	Status io.Writer

	// Checkpoints receives the restart checkpoint written on abort. It
	// is required.
	Checkpoints Checkpointer

	Logger logrus.FieldLogger
}

// Diagnose is a DomainManipulator that logs the kinetic energy of the
// current step and stops the run if it is out of bounds. A negative
// energy is returned as a *ConsistencyError.
func (m *Monitor) Diagnose(s *Simulation) error {
	switch {
	case m.Log == nil:
		return fmt.Errorf("vedrop: monitor has no run log")
	case m.Checkpoints == nil:
		return fmt.Errorf("vedrop: monitor has no checkpointer for the restart file")
	}
	ke := KineticEnergy(s.State.Mesh, m.Geometry, m.Fluid)
	rec := Record{Step: s.State.Step, Dt: s.State.Dt, Time: s.State.Time, Energy: ke}
	for _, p := range m.Probes {
		rec.Extra = append(rec.Extra, p.Eval(s.State.Mesh))
	}
	if err := m.Log.Record(rec); err != nil {
		return err
	}
	if !(ke > NegativeEnergyTolerance) {
		return &ConsistencyError{Step: s.State.Step, Time: s.State.Time, Energy: ke}
	}
	d := m.Config.Evaluate(s.State.Step, ke)
	if d.Kind != StopAbort {
		return nil
	}
	return m.abort(s, d)
}

// abort reports d, writes a restart checkpoint of the current state,
// and stops the run.
func (m *Monitor) abort(s *Simulation, d Decision) error {
	status := m.Status
	if status == nil {
		status = ioutil.Discard
	}
	fmt.Fprintln(status, d.Reason)

	name := m.ErrorLog
	if name == "" {
		name = ErrorLogName
	}
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("vedrop: opening error log: %v", err)
	}
	if _, err := fmt.Fprintln(f, d.Reason); err != nil {
		f.Close()
		return fmt.Errorf("vedrop: writing error log: %v", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("vedrop: writing error log: %v", err)
	}

	if err := m.Checkpoints.Write(s.Context(), RestartKey, &s.State); err != nil {
		return err
	}
	if m.Logger != nil {
		m.Logger.WithFields(logrus.Fields{
			"step":   s.State.Step,
			"t":      s.State.Time,
			"reason": d.Reason,
		}).Warn("aborting run")
	}
	s.Stop(d)
	return nil
}

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
	"math"

	"github.com/sirupsen/logrus"
)

// SnapshotDir is the directory holding the timestamped archives.
const SnapshotDir = "intermediate"

// MinSnapshotInterval is the smallest snapshot interval whose archive
// names are still distinct at four decimal places. Schedules that do not
// start on a multiple of it need at least twice this interval.
const MinSnapshotInterval = 1e-4

// onNameGrid reports whether t is a multiple of MinSnapshotInterval, so
// that it is printed exactly in an archive name.
func onNameGrid(t float64) bool {
	r := t / MinSnapshotInterval
	return math.Abs(r-math.Round(r)) <= 1e-6
}

// Schedule is the set of times Start + k·Interval that are not later
// than End.
type Schedule struct {
	Start, Interval, End float64
}

// Validate checks that the schedule has a usable interval.
func (sc Schedule) Validate() error {
	switch {
	case math.IsNaN(sc.Start) || math.IsNaN(sc.Interval) || math.IsNaN(sc.End):
		return fmt.Errorf("vedrop: snapshot schedule %+v contains NaN", sc)
	case sc.Start < 0:
		return fmt.Errorf("vedrop: snapshot schedule starts at negative time %g", sc.Start)
	case sc.Interval < MinSnapshotInterval:
		return fmt.Errorf("vedrop: snapshot interval %g is smaller than %g", sc.Interval, MinSnapshotInterval)
	case sc.Interval < 2*MinSnapshotInterval && !onNameGrid(sc.Start):
		return fmt.Errorf("vedrop: snapshot interval %g is smaller than %g for a schedule "+
			"starting at %g, which is not a multiple of %g",
			sc.Interval, 2*MinSnapshotInterval, sc.Start, MinSnapshotInterval)
	case sc.End < sc.Start:
		return fmt.Errorf("vedrop: snapshot schedule ends (%g) before it starts (%g)", sc.End, sc.Start)
	}
	return nil
}

// tol is the distance within which a time counts as a schedule point.
func (sc Schedule) tol() float64 { return sc.Interval * 1e-6 }

func (sc Schedule) point(k int) float64 { return sc.Start + float64(k)*sc.Interval }

// len returns the number of points in the schedule.
func (sc Schedule) len() int {
	return int(math.Floor((sc.End-sc.Start)/sc.Interval+1e-6)) + 1
}

// index returns the index of the first point that is not before t.
func (sc Schedule) index(t float64) int {
	k := int(math.Ceil((t - sc.Start - sc.tol()) / sc.Interval))
	if k < 0 {
		return 0
	}
	return k
}

// Due reports whether t is a schedule point.
func (sc Schedule) Due(t float64) bool {
	k := sc.index(t)
	return k < sc.len() && math.Abs(sc.point(k)-t) <= sc.tol()
}

// Next returns the first schedule point after t. It implements Stopper.
func (sc Schedule) Next(t float64) (float64, bool) {
	k := sc.index(t)
	if k < sc.len() && sc.point(k) <= t+sc.tol() {
		k++
	}
	if k >= sc.len() {
		return 0, false
	}
	return sc.point(k), true
}

// SnapshotName returns the archive name for time t in a run ending at
// end. The name is zero-padded to the width of end printed the same way,
// so that the names of times in [0, end] sort in time order.
func SnapshotName(t, end float64) string {
	width := len(fmt.Sprintf("%.4f", math.Max(end, 0)))
	return fmt.Sprintf("%s/snapshot-%0*.4f", SnapshotDir, width, t)
}

// Snapshots returns a function that checkpoints the state at every
// point of sc: first to the restart file and then to a new archive.
// A point is written once even if the function is called again at the
// same time. When the solver steps past a point, the state is written at
// the current time instead and a warning is logged.
func Snapshots(sc Schedule, cp Checkpointer, log logrus.FieldLogger) DomainManipulator {
	if err := sc.Validate(); err != nil {
		return func(*Simulation) error { return err }
	}
	next := -1 // index of the next point to write

	return func(s *Simulation) error {
		t := s.State.Time
		if next < 0 {
			// Points before the start of a resumed run were written by
			// the earlier run.
			next = sc.index(t)
		}
		n := sc.len()
		if next >= n {
			return nil
		}
		var missed []float64
		for next < n && sc.point(next) < t-sc.tol() {
			missed = append(missed, sc.point(next))
			next++
		}
		name := ""
		switch {
		case next < n && math.Abs(sc.point(next)-t) <= sc.tol():
			name = SnapshotName(sc.point(next), sc.End)
			next++
		case len(missed) > 0:
			name = SnapshotName(t, sc.End)
			log.WithFields(logrus.Fields{
				"step":   s.State.Step,
				"t":      t,
				"missed": missed,
			}).Warn("timestep went past scheduled snapshot; writing at current time")
		default:
			return nil
		}
		ctx := s.Context()
		if err := cp.Write(ctx, RestartKey, &s.State); err != nil {
			return err
		}
		if err := cp.Write(ctx, name, &s.State); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"step": s.State.Step, "t": t, "file": name}).Debug("wrote snapshot")
		return nil
	}
}

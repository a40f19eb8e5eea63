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
	"math"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
)

// ReasonEndTime is the reason given when a run reaches its end time.
const ReasonEndTime = "reached end time"

// TimeLimit returns a function that stops the run normally once the
// simulation time reaches tmax.
func TimeLimit(tmax float64) DomainManipulator {
	tol := 1e-9 * math.Max(1, math.Abs(tmax))
	return func(s *Simulation) error {
		if s.State.Time >= tmax-tol {
			s.Stop(Decision{Kind: StopNormal, Reason: ReasonEndTime})
		}
		return nil
	}
}

// Summary describes a finished run.
type Summary struct {
	Decision string
	Reason   string `toml:",omitempty"`
	Steps    int
	Time     float64
	Walltime string
	Params   Params
	Info     map[string]string `toml:",omitempty"`
}

// Ending returns a cleanup function that, if the run stopped normally,
// prints the parameter line to status and writes a TOML summary of the
// run to summaryPath. No summary is written if summaryPath is empty.
// info is copied into the summary.
func Ending(status io.Writer, p Params, summaryPath string, info map[string]string) DomainManipulator {
	start := time.Now()
	return func(s *Simulation) error {
		if s.Decision.Kind != StopNormal {
			return nil
		}
		if status != nil {
			fmt.Fprintln(status, p.Header())
		}
		if summaryPath == "" {
			return nil
		}
		sum := Summary{
			Decision: s.Decision.Kind.String(),
			Reason:   s.Decision.Reason,
			Steps:    s.State.Step,
			Time:     s.State.Time,
			Walltime: time.Since(start).Round(time.Millisecond).String(),
			Params:   p,
			Info:     info,
		}
		f, err := os.Create(summaryPath)
		if err != nil {
			return fmt.Errorf("vedrop: writing run summary: %v", err)
		}
		if err := toml.NewEncoder(f).Encode(sum); err != nil {
			f.Close()
			return fmt.Errorf("vedrop: writing run summary: %v", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("vedrop: writing run summary: %v", err)
		}
		return nil
	}
}

// Progress returns a function that logs wall-clock progress every
// `every` steps. It does nothing if every < 1.
func Progress(log logrus.FieldLogger, every int) DomainManipulator {
	startTime := time.Now()
	lastTime := time.Now()
	lastStep := 0

	return func(s *Simulation) error {
		if every < 1 || s.State.Step%every != 0 || s.State.Step == lastStep {
			return nil
		}
		log.WithFields(logrus.Fields{
			"step":       s.State.Step,
			"t":          fmt.Sprintf("%.4g", s.State.Time),
			"dt":         fmt.Sprintf("%.3g", s.State.Dt),
			"walltime":   fmt.Sprintf("%.3gh", time.Since(startTime).Hours()),
			"s_per_step": fmt.Sprintf("%.2g", time.Since(lastTime).Seconds()/float64(s.State.Step-lastStep)),
		}).Info("progress")
		lastTime = time.Now()
		lastStep = s.State.Step
		return nil
	}
}

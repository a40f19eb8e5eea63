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

package vedroputil

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/comphy-lab/vedrop"
	"github.com/comphy-lab/vedrop/cases"
	"github.com/comphy-lab/vedrop/cloud"
	"github.com/comphy-lab/vedrop/internal/hash"
	"github.com/comphy-lab/vedrop/synthetic"
	"github.com/sirupsen/logrus"
)

// RunOptions are the settings of a run that are not part of its case.
type RunOptions struct {
	// Output is the bucket the restart file and snapshots are kept in.
	Output string

	// LogDir is the directory of the run log, error log and summary.
	LogDir string

	// Summary is the file name of the run summary. Empty skips it.
	Summary string

	// Info is copied into the run summary.
	Info map[string]string

	// Fresh removes the restart file and snapshots of earlier runs.
	Fresh bool

	// Partitions is the number of mesh partitions. Zero uses
	// runtime.GOMAXPROCS.
	Partitions int

	// Rate is the velocity decay rate of the kinematic solver.
	Rate float64

	// ProgressEvery is the number of steps between progress messages.
	ProgressEvery int
}

// Run runs case c on the kinematic solver and returns why it stopped.
// Log records and abort reasons are written to status and driver
// messages to log.
func Run(ctx context.Context, c cases.Case, o RunOptions, status io.Writer, log logrus.FieldLogger) (vedrop.Decision, error) {
	if err := c.Validate(); err != nil {
		return vedrop.Decision{}, err
	}
	if o.LogDir == "" {
		o.LogDir = "."
	}
	if err := os.MkdirAll(o.LogDir, 0755); err != nil {
		return vedrop.Decision{}, fmt.Errorf("vedrop: creating log directory: %v", err)
	}

	bucket, err := cloud.OpenBucket(ctx, o.Output)
	if err != nil {
		return vedrop.Decision{}, err
	}
	defer bucket.Close()
	if o.Fresh {
		for _, prefix := range []string{vedrop.RestartKey, vedrop.SnapshotDir + "/"} {
			n, err := cloud.Delete(ctx, bucket, prefix)
			if err != nil {
				return vedrop.Decision{}, err
			}
			if n > 0 {
				log.WithFields(logrus.Fields{"prefix": prefix, "n": n}).Info("removed earlier checkpoints")
			}
		}
	}

	parts := o.Partitions
	if parts < 1 {
		parts = runtime.GOMAXPROCS(0)
	}
	grid, err := synthetic.NewGrid(c.Geometry.Dims(), c.InitLevel, c.L0, c.Origin, parts)
	if err != nil {
		return vedrop.Decision{}, err
	}
	solver := &synthetic.Solver{Grid: grid, DtMax: c.DtMax, Rate: o.Rate}

	refine, err := c.Refinement()
	if err != nil {
		return vedrop.Decision{}, err
	}
	sched := c.Schedule()
	cp := &vedrop.BlobCheckpointer{Bucket: bucket}
	probes := c.Probes()
	var extra []string
	for _, p := range probes {
		extra = append(extra, p.Name)
	}
	lw := vedrop.NewLogWriter(filepath.Join(o.LogDir, c.LogFile()), c.Params.Header(), status, extra...)
	mon := &vedrop.Monitor{
		Config:      c.Monitor(),
		Geometry:    c.Geometry,
		Fluid:       c.Fluid(),
		Log:         lw,
		Probes:      probes,
		ErrorLog:    filepath.Join(o.LogDir, vedrop.ErrorLogName),
		Status:      status,
		Checkpoints: cp,
		Logger:      log,
	}

	info := map[string]string{
		"case":     c.Name,
		"geometry": c.Geometry.String(),
		"config":   hash.Object(c),
	}
	for k, v := range o.Info {
		info[k] = v
	}
	summary := ""
	if o.Summary != "" {
		summary = filepath.Join(o.LogDir, o.Summary)
	}

	initial := func(s *vedrop.Simulation) error {
		grid.SetFraction(c.Shape)
		grid.SetVelocity(c.Velocity)
		log.WithField("case", c.Name).Info("applied initial condition")
		return nil
	}

	sim := &vedrop.Simulation{
		Solver: solver,
		Stops:  []vedrop.Stopper{sched},
		InitFuncs: []vedrop.DomainManipulator{
			vedrop.Restore(cp, vedrop.RestartKey, initial),
		},
		RunFuncs: []vedrop.DomainManipulator{
			vedrop.AdaptiveRefinement(refine),
			vedrop.Snapshots(sched, cp, log),
			mon.Diagnose,
			vedrop.TimeLimit(c.Tmax),
			vedrop.Progress(log, o.ProgressEvery),
		},
		CleanupFuncs: []vedrop.DomainManipulator{
			vedrop.CloseLog(lw),
			vedrop.Ending(status, c.Params, summary, info),
		},
	}
	if err := sim.Init(); err != nil {
		return vedrop.Decision{}, err
	}
	if sim.State.Step > 0 {
		log.WithFields(logrus.Fields{"step": sim.State.Step, "t": sim.State.Time}).Info("resuming from restart file")
	}
	if err := sim.Run(ctx); err != nil {
		return sim.Decision, fmt.Errorf("vedrop: running %s: %w", c.Name, err)
	}
	return sim.Decision, nil
}

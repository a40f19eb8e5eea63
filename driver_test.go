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

package vedrop_test

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/comphy-lab/vedrop"
	"github.com/comphy-lab/vedrop/cloud"
	"github.com/comphy-lab/vedrop/synthetic"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"gocloud.dev/blob"
)

type driver struct {
	dir    string
	bucket *blob.Bucket
	grid   *synthetic.Grid
	solver *synthetic.Solver
	status bytes.Buffer
	sim    *vedrop.Simulation
}

// newDriver sets up an axisymmetric jet run on the synthetic solver
// whose velocity decays (rate > 0) or grows (rate < 0).
func newDriver(t *testing.T, dir string, rate, tmax float64) *driver {
	ctx := context.Background()
	d := &driver{dir: dir}
	var err error
	if d.bucket, err = cloud.OpenBucket(ctx, filepath.Join(dir, "out")); err != nil {
		t.Fatal(err)
	}
	if d.grid, err = synthetic.NewGrid(2, 4, 2, [3]float64{}, 4); err != nil {
		t.Fatal(err)
	}
	d.solver = &synthetic.Solver{Grid: d.grid, DtMax: 0.003, Rate: rate}

	params := vedrop.Params{Level: 4, Oh: 1e-2, Oha: 1e-4, De: 1, Ec: 1}
	fluid := vedrop.TwoPhase{Rho1: 1, Rho2: 1e-3, Mu1: 1e-2, Mu2: 1e-4, G1: 1, Lambda1: 1, Sigma: 1}
	refine, err := vedrop.NewRefinementSpec(vedrop.Axisymmetric, 1e-3, 1e-6, 1e-2, params.Level)
	if err != nil {
		t.Fatal(err)
	}
	sched := vedrop.Schedule{Start: 0, Interval: 0.01, End: tmax}
	cp := &vedrop.BlobCheckpointer{Bucket: d.bucket}
	log, _ := logtest.NewNullLogger()
	probe := vedrop.MinInterfaceRadius()
	lw := vedrop.NewLogWriter(filepath.Join(dir, "logAxi-vanilla.dat"), params.Header(), &d.status, probe.Name)
	mon := &vedrop.Monitor{
		Config:      vedrop.MonitorConfig{Upper: 1e2, Lower: 1e-8, GraceSteps: vedrop.DefaultGraceSteps},
		Geometry:    vedrop.Axisymmetric,
		Fluid:       fluid,
		Log:         lw,
		Probes:      []vedrop.Probe{probe},
		ErrorLog:    filepath.Join(dir, vedrop.ErrorLogName),
		Status:      &d.status,
		Checkpoints: cp,
		Logger:      log,
	}
	initial := func(s *vedrop.Simulation) error {
		d.grid.SetFraction(func(x [3]float64) float64 { return 0.5 - x[1] })
		d.grid.SetVelocity(func(c vedrop.Cell) [3]float64 { return [3]float64{0, -c.F} })
		return nil
	}
	d.sim = &vedrop.Simulation{
		Solver:    d.solver,
		Stops:     []vedrop.Stopper{sched},
		InitFuncs: []vedrop.DomainManipulator{vedrop.Restore(cp, vedrop.RestartKey, initial)},
		RunFuncs: []vedrop.DomainManipulator{
			vedrop.AdaptiveRefinement(refine),
			vedrop.Snapshots(sched, cp, log),
			mon.Diagnose,
			vedrop.TimeLimit(tmax),
		},
		CleanupFuncs: []vedrop.DomainManipulator{
			vedrop.CloseLog(lw),
			vedrop.Ending(&d.status, params, filepath.Join(dir, "summary.toml"), nil),
		},
	}
	if err := d.sim.Init(); err != nil {
		t.Fatal(err)
	}
	return d
}

func (d *driver) archives(t *testing.T) []string {
	objs, err := cloud.List(context.Background(), d.bucket, vedrop.SnapshotDir+"/")
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	return keys
}

func TestDriverNormalRun(t *testing.T) {
	dir, err := ioutil.TempDir("", "vedrop_driver")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	d := newDriver(t, dir, 0.5, 0.05)
	defer d.bucket.Close()

	if err := d.sim.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if d.sim.Decision.Kind != vedrop.StopNormal {
		t.Fatalf("decision: %+v", d.sim.Decision)
	}
	want := []string{
		"intermediate/snapshot-0.0000",
		"intermediate/snapshot-0.0100",
		"intermediate/snapshot-0.0200",
		"intermediate/snapshot-0.0300",
		"intermediate/snapshot-0.0400",
		"intermediate/snapshot-0.0500",
	}
	if have := d.archives(t); strings.Join(have, ",") != strings.Join(want, ",") {
		t.Errorf("archives: have %v, want %v", have, want)
	}
	// Every step advanced the mesh exactly once.
	if d.solver.Adaptations != d.sim.State.Step+1 || d.solver.Curvatures != d.solver.Adaptations {
		t.Errorf("%d steps, %d adaptations, %d curvature evaluations",
			d.sim.State.Step+1, d.solver.Adaptations, d.solver.Curvatures)
	}
	if _, err := os.Stat(filepath.Join(dir, "summary.toml")); err != nil {
		t.Error(err)
	}
	if !strings.HasSuffix(d.status.String(), "Level 4, Oh 1.0e-02, We 0.0e+00, Oha 1.0e-04, De 1.0e+00, Ec 1.0e+00\n") {
		t.Errorf("status does not end with the parameter line:\n%s", d.status.String())
	}
	f, err := os.Open(filepath.Join(dir, "logAxi-vanilla.dat"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	recs, err := vedrop.ReadLog(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != d.sim.State.Step+1 {
		t.Errorf("log records: have %d, want %d", len(recs), d.sim.State.Step+1)
	}
	for i := 1; i < len(recs); i++ {
		if !(recs[i].Energy < recs[i-1].Energy) {
			t.Fatalf("energy did not decay at step %d: %g then %g", i, recs[i-1].Energy, recs[i].Energy)
		}
		if len(recs[i].Extra) != 1 || !(recs[i].Extra[0] > 0.3 && recs[i].Extra[0] < 0.7) {
			t.Fatalf("ymin at step %d: %v", i, recs[i].Extra)
		}
	}
}

func TestDriverAbortAndResume(t *testing.T) {
	dir, err := ioutil.TempDir("", "vedrop_driver")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	// The energy grows until it passes the upper bound.
	d := newDriver(t, dir, -600, 1)
	if err := d.sim.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	d.bucket.Close()
	if d.sim.Decision.Reason != vedrop.ReasonBlewUp {
		t.Fatalf("decision: %+v", d.sim.Decision)
	}
	b, err := ioutil.ReadFile(filepath.Join(dir, vedrop.ErrorLogName))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != vedrop.ReasonBlewUp+"\n" {
		t.Errorf("error log: %q", b)
	}
	if _, err := os.Stat(filepath.Join(dir, "summary.toml")); !os.IsNotExist(err) {
		t.Error("aborted run wrote a summary")
	}
	abortStep, abortTime := d.sim.State.Step, d.sim.State.Time

	// A new run resumes from the restart checkpoint written on abort.
	d2 := newDriver(t, dir, 0.5, 1)
	defer d2.bucket.Close()
	if d2.sim.State.Step != abortStep || d2.sim.State.Time != abortTime {
		t.Errorf("resumed at step %d t=%g, want step %d t=%g",
			d2.sim.State.Step, d2.sim.State.Time, abortStep, abortTime)
	}
}

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
	"bufio"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"strings"
)

// Columns are the names of the fixed columns of the run log.
var Columns = []string{"i", "dt", "t", "ke"}

// Record is one line of the run log.
type Record struct {
	Step   int
	Dt     float64
	Time   float64
	Energy float64
	Extra  []float64 // probe values, in probe order
}

// String formats r the way it appears in the run log.
func (r Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %.6g %.6g %.6g", r.Step, r.Dt, r.Time, r.Energy)
	for _, v := range r.Extra {
		fmt.Fprintf(&b, " %.6g", v)
	}
	return b.String()
}

// LogWriter appends diagnostic records to the run log and mirrors them
// to a status stream. The file is opened on the first record: it is
// truncated when that record is for step 0 and appended to otherwise,
// so a resumed run continues the log of the run it resumes.
type LogWriter struct {
	path    string
	header  string
	columns []string
	status  io.Writer

	f           *os.File
	w           *bufio.Writer
	wroteHeader bool
	closed      bool
}

// NewLogWriter returns a writer for the run log at path. header is the
// parameter line written before the first record of a new log, extra
// are the names of any probe columns, and status receives a copy of
// every line. A nil status discards the copy.
func NewLogWriter(path, header string, status io.Writer, extra ...string) *LogWriter {
	if status == nil {
		status = ioutil.Discard
	}
	return &LogWriter{
		path:    path,
		header:  header,
		columns: append(append([]string(nil), Columns...), extra...),
		status:  status,
	}
}

// Path returns the location of the log file.
func (l *LogWriter) Path() string { return l.path }

func (l *LogWriter) open(step int) error {
	flag := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if step == 0 {
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(l.path, flag, 0644)
	if err != nil {
		return fmt.Errorf("vedrop: opening run log: %v", err)
	}
	l.f = f
	l.w = bufio.NewWriter(f)
	return nil
}

// writeLine writes s to both the file and the status stream.
func (l *LogWriter) writeLine(s string) error {
	if _, err := fmt.Fprintln(l.w, s); err != nil {
		return fmt.Errorf("vedrop: writing run log: %v", err)
	}
	fmt.Fprintln(l.status, s)
	return nil
}

// Record appends r to the log. The header and column names are written
// once, before the record for step 0.
func (l *LogWriter) Record(r Record) error {
	if l.closed {
		return fmt.Errorf("vedrop: run log %s is closed", l.path)
	}
	if l.f == nil {
		if err := l.open(r.Step); err != nil {
			return err
		}
	}
	if r.Step == 0 && !l.wroteHeader {
		if err := l.writeLine(l.header); err != nil {
			return err
		}
		if err := l.writeLine(strings.Join(l.columns, " ")); err != nil {
			return err
		}
		l.wroteHeader = true
	}
	if err := l.writeLine(r.String()); err != nil {
		return err
	}
	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("vedrop: writing run log: %v", err)
	}
	return nil
}

// Close flushes and closes the log file. It may be called more than once.
func (l *LogWriter) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	if l.f == nil {
		return nil
	}
	if err := l.w.Flush(); err != nil {
		l.f.Close()
		return fmt.Errorf("vedrop: closing run log: %v", err)
	}
	if err := l.f.Close(); err != nil {
		return fmt.Errorf("vedrop: closing run log: %v", err)
	}
	return nil
}

// CloseLog returns a cleanup function that closes l.
func CloseLog(l *LogWriter) DomainManipulator {
	return func(*Simulation) error { return l.Close() }
}

// ReadLog parses the records of a run log. Lines that do not start with
// a step number, such as the header and the column names, are skipped.
func ReadLog(r io.Reader) ([]Record, error) {
	var recs []Record
	s := bufio.NewScanner(r)
	line := 0
	for s.Scan() {
		line++
		fields := strings.Fields(s.Text())
		if len(fields) == 0 {
			continue
		}
		step, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		if len(fields) < len(Columns) {
			return nil, fmt.Errorf("vedrop: run log line %d: have %d columns, want at least %d",
				line, len(fields), len(Columns))
		}
		v := make([]float64, len(fields)-1)
		for i, f := range fields[1:] {
			if v[i], err = strconv.ParseFloat(f, 64); err != nil {
				return nil, fmt.Errorf("vedrop: run log line %d: %v", line, err)
			}
		}
		rec := Record{Step: step, Dt: v[0], Time: v[1], Energy: v[2]}
		if len(v) > 3 {
			rec.Extra = v[3:]
		}
		recs = append(recs, rec)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("vedrop: reading run log: %v", err)
	}
	return recs, nil
}

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
	"io"

	"github.com/comphy-lab/vedrop/internal/hash"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// RestartKey is the name of the checkpoint that is overwritten at every
// snapshot and read back when a run resumes.
const RestartKey = "restart"

// ErrNotFound is returned by a Checkpointer when the requested
// checkpoint does not exist.
var ErrNotFound = errors.New("vedrop: checkpoint not found")

// Checkpointer stores and retrieves full solver states by name.
type Checkpointer interface {
	// Write stores s under key, replacing any earlier checkpoint with
	// that key. The checkpoint must be complete when Write returns.
	Write(ctx context.Context, key string, s *State) error

	// Read loads the checkpoint stored under key into s. s.Mesh must
	// already be set.
	Read(ctx context.Context, key string, s *State) error
}

// checkpoint is the on-disk form of a State.
type checkpoint struct {
	Step        int
	Time, Dt    float64
	Mesh        []byte
	Fingerprint string
}

// Save writes s to w in gob format.
func Save(w io.Writer, s *State) error {
	if s.Mesh == nil {
		return fmt.Errorf("vedrop: saving state: no mesh")
	}
	m, err := s.Mesh.MarshalBinary()
	if err != nil {
		return fmt.Errorf("vedrop: saving state: %v", err)
	}
	c := checkpoint{
		Step:        s.Step,
		Time:        s.Time,
		Dt:          s.Dt,
		Mesh:        m,
		Fingerprint: hash.Bytes(m),
	}
	if err := gob.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("vedrop: saving state: %v", err)
	}
	return nil
}

// Load reads a state previously written by Save into s.
func Load(r io.Reader, s *State) error {
	if s.Mesh == nil {
		return fmt.Errorf("vedrop: loading state: no mesh to load into")
	}
	var c checkpoint
	if err := gob.NewDecoder(r).Decode(&c); err != nil {
		return fmt.Errorf("vedrop: loading state: %v", err)
	}
	if f := hash.Bytes(c.Mesh); f != c.Fingerprint {
		return fmt.Errorf("vedrop: loading state: corrupt mesh data (fingerprint %s, want %s)",
			f, c.Fingerprint)
	}
	if err := s.Mesh.UnmarshalBinary(c.Mesh); err != nil {
		return fmt.Errorf("vedrop: loading state: %v", err)
	}
	s.Step, s.Time, s.Dt = c.Step, c.Time, c.Dt
	return nil
}

// BlobCheckpointer keeps checkpoints in a blob storage bucket.
type BlobCheckpointer struct {
	Bucket *blob.Bucket
}

// Write implements Checkpointer. The state is encoded in memory first
// so a failed encoding never leaves a partial blob behind.
func (b *BlobCheckpointer) Write(ctx context.Context, key string, s *State) error {
	var buf bytes.Buffer
	if err := Save(&buf, s); err != nil {
		return err
	}
	w, err := b.Bucket.NewWriter(ctx, key, &blob.WriterOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("vedrop: creating writer for checkpoint %s: %v", key, err)
	}
	if _, err = io.Copy(w, &buf); err != nil {
		w.Close()
		return fmt.Errorf("vedrop: writing checkpoint %s: %v", key, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("vedrop: writing checkpoint %s: %v", key, err)
	}
	return nil
}

// Read implements Checkpointer.
func (b *BlobCheckpointer) Read(ctx context.Context, key string, s *State) error {
	r, err := b.Bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("vedrop: opening checkpoint %s: %v", key, err)
	}
	defer r.Close()
	if err := Load(r, s); err != nil {
		return fmt.Errorf("%v (checkpoint %s)", err, key)
	}
	return nil
}

// Restore returns an init function that resumes the run from the
// checkpoint stored under key. If there is no such checkpoint, initial
// is run instead to set up the initial condition.
func Restore(cp Checkpointer, key string, initial DomainManipulator) DomainManipulator {
	return func(s *Simulation) error {
		err := cp.Read(s.Context(), key, &s.State)
		if err == nil {
			return nil
		}
		if err != ErrNotFound {
			return err
		}
		if initial == nil {
			return nil
		}
		return initial(s)
	}
}

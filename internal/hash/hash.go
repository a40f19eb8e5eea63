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

// Package hash computes fingerprints used to verify checkpoints.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

func sum(h hash.Hash) string {
	return fmt.Sprintf("%x", h.Sum(nil)[0:h.Size()])
}

// Bytes returns the fnv-128a digest of b in hexadecimal.
func Bytes(b []byte) string {
	h := fnv.New128a()
	h.Write(b)
	return sum(h)
}

// Object returns a digest of the gob encoding of object. Values gob
// cannot encode, such as functions or structs without exported fields,
// are hashed from a sorted spew dump instead.
func Object(object interface{}) string {
	h := fnv.New128a()
	if err := gob.NewEncoder(h).Encode(object); err == nil {
		return sum(h)
	}
	h.Reset()
	printer := spew.ConfigState{
		Indent:                  " ",
		SortKeys:                true,
		DisableMethods:          true,
		SpewKeys:                true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}
	printer.Fprintf(h, "%#v", object)
	return sum(h)
}

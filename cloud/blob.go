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

package cloud

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gocloud.dev/blob"
)

// Object describes a stored checkpoint.
type Object struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// List returns the objects in bucket whose keys start with prefix,
// sorted by key. Attribute side files of local buckets are skipped.
func List(ctx context.Context, bucket *blob.Bucket, prefix string) ([]Object, error) {
	var o []Object
	iter := bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cloud: listing %s: %v", prefix, err)
		}
		if obj.IsDir || strings.HasSuffix(obj.Key, ".attrs") {
			continue
		}
		o = append(o, Object{Key: obj.Key, Size: obj.Size, ModTime: obj.ModTime})
	}
	sort.Slice(o, func(i, j int) bool { return o[i].Key < o[j].Key })
	return o, nil
}

// Delete removes every object in bucket whose key starts with prefix
// and returns the number removed.
func Delete(ctx context.Context, bucket *blob.Bucket, prefix string) (int, error) {
	objs, err := List(ctx, bucket, prefix)
	if err != nil {
		return 0, err
	}
	for i, obj := range objs {
		if err = bucket.Delete(ctx, obj.Key); err != nil {
			return i, fmt.Errorf("cloud: deleting %s: %v", obj.Key, err)
		}
	}
	return len(objs), nil
}

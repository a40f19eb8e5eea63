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
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// neumaier is a compensated running sum.
type neumaier struct{ sum, c float64 }

func (n *neumaier) add(v float64) {
	t := n.sum + v
	if math.Abs(n.sum) >= math.Abs(v) {
		n.c += (n.sum - t) + v
	} else {
		n.c += (v - t) + n.sum
	}
	n.sum = t
}

func (n *neumaier) value() float64 { return n.sum + n.c }

// eachPartition runs fn for every partition of m, one goroutine per
// partition, and returns the results in partition order.
func eachPartition(m Mesh, fn func(part int) float64) []float64 {
	out := make([]float64, m.Partitions())
	var wg sync.WaitGroup
	wg.Add(len(out))
	for p := range out {
		go func(p int) {
			out[p] = fn(p)
			wg.Done()
		}(p)
	}
	wg.Wait()
	return out
}

// Sum returns the sum of term over all cells of m. Each partition is
// summed concurrently with compensation and the partial sums are
// combined in partition order, so the result does not depend on how the
// goroutines are scheduled.
func Sum(m Mesh, term func(c *Cell) float64) float64 {
	partial := eachPartition(m, func(part int) float64 {
		var acc neumaier
		m.ForEach(part, func(c *Cell) { acc.add(term(c)) })
		return acc.value()
	})
	var total neumaier
	for _, v := range partial {
		total.add(v)
	}
	return total.value()
}

// Min returns the smallest value of term over the cells of m for which
// term reports ok, or +Inf if there are none.
func Min(m Mesh, term func(c *Cell) (v float64, ok bool)) float64 {
	mins := eachPartition(m, func(part int) float64 {
		min := math.Inf(1)
		m.ForEach(part, func(c *Cell) {
			if v, ok := term(c); ok && v < min {
				min = v
			}
		})
		return min
	})
	if len(mins) == 0 {
		return math.Inf(1)
	}
	return floats.Min(mins)
}

// KineticEnergy returns the total kinetic energy of the fluid in m.
func KineticEnergy(m Mesh, g Geometry, fluid TwoPhase) float64 {
	return Sum(m, func(c *Cell) float64 {
		return g.CellEnergy(c, fluid.Density(c.F))
	})
}

// Probe is an extra diagnostic logged after the kinetic energy.
type Probe struct {
	Name string
	Eval func(m Mesh) float64
}

// MinInterfaceRadius returns a probe of the smallest radial position of
// the interfacial cells, which tracks the neck of a thinning jet.
func MinInterfaceRadius() Probe {
	return Probe{
		Name: "ymin",
		Eval: func(m Mesh) float64 {
			return Min(m, func(c *Cell) (float64, bool) {
				return c.X[1], c.F > 1e-6 && c.F < 1-1e-6
			})
		},
	}
}

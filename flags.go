/*
Copyright © 2019 the NPZD authors.
This file is part of NPZD.

NPZD is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

NPZD is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with NPZD.  If not, see <http://www.gnu.org/licenses/>.
*/

package npzd

// flagState tracks, for each tracer at each horizontal point, whether the
// tracer may still be depleted in the current layer. Flags are reset at
// the start of every layer and can only be cleared during the sub-steps
// of that layer.
type flagState struct {
	ok [][]bool // by tracer id, then point
}

func newFlagState(ntracers, npoints int) *flagState {
	f := &flagState{ok: make([][]bool, ntracers)}
	for i := range f.ok {
		f.ok[i] = make([]bool, npoints)
	}
	return f
}

// reset sets the flag at the start of a layer from concentration c.
func (f *flagState) reset(id, p int, c, min float64) {
	f.ok[id][p] = c > min
}

// update clears the flag if c has fallen to min.
func (f *flagState) update(id, p int, c, min float64) {
	f.ok[id][p] = f.ok[id][p] && c > min
}

// factor returns 1 if the flag is set and 0 otherwise.
func (f *flagState) factor(id, p int) float64 {
	if f.ok[id][p] {
		return 1
	}
	return 0
}

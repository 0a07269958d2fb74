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

// Package limitation holds nutrient limitation kernels for phytoplankton
// growth.
package limitation

import "math"

// MichaelisMenten returns the saturating limitation factor n/(h+n) for
// nutrient concentration n and half-saturation constant h.
func MichaelisMenten(n, h float64) float64 {
	return n / (h + n)
}

// Kernel limits the growth of a plankton type by a single nutrient.
type Kernel struct {
	// Nutrient is the name of the tracer that limits growth.
	Nutrient string

	// HalfSaturation is the nutrient concentration at which growth is
	// reduced by half, in the units of the nutrient tracer.
	HalfSaturation float64
}

// Limit returns the limitation factor for nutrient concentration c.
func (k Kernel) Limit(c float64) float64 {
	return MichaelisMenten(c, k.HalfSaturation)
}

// Realized returns the realized growth rate given the light-limited
// growth rate avej, the maximum growth rate jmax and the nutrient
// limitation factors u. The most limiting nutrient sets the rate.
func Realized(avej, jmax float64, u ...float64) float64 {
	umin := 1.
	for _, v := range u {
		umin = math.Min(umin, v)
	}
	return math.Min(avej, umin*jmax)
}

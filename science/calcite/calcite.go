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

// Package calcite distributes calcite (CaCO3) produced in the upper ocean
// over the water column below, following an exponential dissolution
// profile.
package calcite

import "math"

// Profile holds the per-layer weights [1/m] used to redistribute a column
// amount of calcite [amount/m²] into layer concentrations.
// Layer index 0 is the deepest layer.
type Profile struct {
	// Dissolution is the fraction of calcite dissolving within each
	// layer, divided by the layer thickness.
	Dissolution []float64

	// Bottom is the fraction of calcite reaching the sea floor,
	// divided by the thickness of the deepest wet layer. It is only
	// nonzero in that layer.
	Bottom []float64
}

// NewProfile calculates the dissolution profile for a column with layer
// top depths zTop [m] and thicknesses dz [m], where bottom is the index of
// the deepest wet layer (-1 for a column without water) and depthScale [m]
// is the e-folding depth of dissolution. Depths are measured from the top
// of the surface layer.
func NewProfile(zTop, dz []float64, bottom int, depthScale float64) *Profile {
	nz := len(dz)
	p := &Profile{
		Dissolution: make([]float64, nz),
		Bottom:      make([]float64, nz),
	}
	if bottom < 0 {
		return p
	}
	z0 := zTop[nz-1]
	for k := bottom; k < nz; k++ {
		top := math.Exp(-(zTop[k] - z0) / depthScale)
		bot := math.Exp(-(zTop[k] + dz[k] - z0) / depthScale)
		p.Dissolution[k] = (top - bot) / dz[k]
		if k == bottom {
			p.Bottom[k] = bot / dz[k]
		}
	}
	return p
}

// Weight returns the total weight of layer k.
func (p *Profile) Weight(k int) float64 {
	return p.Dissolution[k] + p.Bottom[k]
}

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

import (
	"sort"

	"github.com/ctessum/sparse"
)

// Tracer names.
const (
	Phosphate       = "po4"
	Phytoplankton   = "phytoplankton"
	Zooplankton     = "zooplankton"
	Detritus        = "detritus"
	DIC             = "DIC"
	Alkalinity      = "alkalinity"
	Nitrate         = "no3"
	DOP             = "DOP"
	DON             = "DON"
	Diazotroph      = "diazotroph"
	Coccolithophore = "coccolithophore"
	CaCO3           = "caco3"

	// CO2 is the atmospheric gas exchanged with DIC at the surface.
	CO2 = "co2"
)

// tracerInfo holds output metadata for each tracer.
var tracerInfo = map[string]struct{ units, description string }{
	Phosphate:       {"mmol P/m³", "Phosphate"},
	Phytoplankton:   {"mmol N/m³", "Phytoplankton"},
	Zooplankton:     {"mmol N/m³", "Zooplankton"},
	Detritus:        {"mmol N/m³", "Detritus"},
	DIC:             {"mmol C/m³", "Dissolved inorganic carbon"},
	Alkalinity:      {"meq/m³", "Total alkalinity"},
	Nitrate:         {"mmol N/m³", "Nitrate"},
	DOP:             {"mmol P/m³", "Dissolved organic phosphorus"},
	DON:             {"mmol N/m³", "Dissolved organic nitrogen"},
	Diazotroph:      {"mmol N/m³", "Diazotrophs"},
	Coccolithophore: {"mmol N/m³", "Coccolithophores"},
	CaCO3:           {"mmol C/m³", "Calcium carbonate"},
}

// Tracers holds tracer concentrations, shaped (Nx, Ny, Nz), by name.
type Tracers map[string]*sparse.DenseArray

// Names returns the tracer names in sorted order.
func (t Tracers) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Copy returns a deep copy of t.
func (t Tracers) Copy() Tracers {
	o := make(Tracers, len(t))
	for name, a := range t {
		o[name] = a.Copy()
	}
	return o
}

// clamp raises every value in t below min to min.
func (t Tracers) clamp(min float64) {
	for _, a := range t {
		for i, v := range a.Elements {
			if v < min {
				a.Elements[i] = min
			}
		}
	}
}

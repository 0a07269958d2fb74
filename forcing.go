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
	"fmt"

	"github.com/ctessum/sparse"
)

// Forcing holds the physical fields the biogeochemistry depends on.
type Forcing struct {
	// Temperature is the in-situ temperature at the previous time level
	// [°C], shaped (Nx, Ny, Nz).
	Temperature *sparse.DenseArray

	// SWR is the shortwave radiation entering each column at the
	// surface [W/m²], indexed by i*Ny + j.
	SWR []float64

	// RCTheta is the light attenuation coefficient of sea water along
	// the path of the sun's rays [1/m] for each column. It equals the
	// vertical attenuation coefficient of water for overhead sun.
	RCTheta []float64
}

// NewUniformForcing returns forcing with the same temperature [°C], surface
// radiation [W/m²] and water light attenuation [1/m] everywhere in grid g.
func NewUniformForcing(g *Grid, temperature, swr, rctheta float64) *Forcing {
	f := &Forcing{
		Temperature: sparse.ZerosDense(g.Nx, g.Ny, g.Nz),
		SWR:         make([]float64, g.columns()),
		RCTheta:     make([]float64, g.columns()),
	}
	for i := range f.Temperature.Elements {
		f.Temperature.Elements[i] = temperature
	}
	for p := range f.SWR {
		f.SWR[p] = swr
		f.RCTheta[p] = rctheta
	}
	return f
}

// Validate checks that the forcing matches grid g.
func (f *Forcing) Validate(g *Grid) error {
	if err := checkShape("temperature", f.Temperature, g.Nx, g.Ny, g.Nz); err != nil {
		return err
	}
	if len(f.SWR) != g.columns() || len(f.RCTheta) != g.columns() {
		return fmt.Errorf("npzd: forcing has %d radiation and %d attenuation values for %d columns",
			len(f.SWR), len(f.RCTheta), g.columns())
	}
	return nil
}

// ConstantGasFlux is a GasFlux that returns the same flux
// [amount/m²/s, positive into the ocean] at every point, by gas name.
// Gases that are not included have no flux.
type ConstantGasFlux map[string]float64

// Flux fulfils the GasFlux interface.
func (c ConstantGasFlux) Flux(d *NPZD, gas, _ string) ([]float64, error) {
	f := make([]float64, d.Grid.columns())
	v := c[gas]
	for p := range f {
		f[p] = v
	}
	return f, nil
}

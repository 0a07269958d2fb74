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

// Grid describes the ocean model grid the biogeochemistry runs on.
// Arrays are shaped (Nx, Ny, Nz). Vertical index Nz-1 is the surface
// layer and index 0 is the deepest layer.
type Grid struct {
	Nx, Ny, Nz int

	// Dz is the thickness of each layer [m].
	Dz []float64

	// ZTop is the depth of the top face of each layer [m, positive down].
	ZTop []float64

	// Area is the horizontal area of each water column [m²],
	// indexed by i*Ny + j.
	Area []float64

	// Mask is 1 in wet cells and 0 in land cells.
	Mask *sparse.DenseArray

	// Bottom is the index of the deepest wet layer in each column,
	// or -1 for land columns. It is calculated by SetMask.
	Bottom []int

	// Halo is the number of cyclic halo columns at each end of the
	// x dimension.
	Halo int
}

// NewGrid returns a grid of nx × ny columns with layer thicknesses dz,
// ordered from the deepest layer to the surface, a uniform column area
// [m²], and all cells wet.
func NewGrid(nx, ny int, dz []float64, area float64) *Grid {
	nz := len(dz)
	g := &Grid{
		Nx:   nx,
		Ny:   ny,
		Nz:   nz,
		Dz:   append([]float64{}, dz...),
		ZTop: make([]float64, nz),
		Area: make([]float64, nx*ny),
		Halo: 2,
	}
	for k := nz - 2; k >= 0; k-- {
		g.ZTop[k] = g.ZTop[k+1] + dz[k+1]
	}
	for p := range g.Area {
		g.Area[p] = area
	}
	mask := sparse.ZerosDense(nx, ny, nz)
	for i := range mask.Elements {
		mask.Elements[i] = 1
	}
	if err := g.SetMask(mask); err != nil {
		panic(err)
	}
	return g
}

// SetMask sets the land-sea mask and recalculates the bottom layer of
// each column. Within a column, wet cells must be contiguous from the
// surface downward.
func (g *Grid) SetMask(mask *sparse.DenseArray) error {
	if err := checkShape("mask", mask, g.Nx, g.Ny, g.Nz); err != nil {
		return err
	}
	g.Mask = mask
	g.Bottom = make([]int, g.Nx*g.Ny)
	for p := range g.Bottom {
		g.Bottom[p] = -1
		for k := g.Nz - 1; k >= 0; k-- {
			if mask.Elements[p*g.Nz+k] == 0 {
				break
			}
			g.Bottom[p] = k
		}
		dry := g.Bottom[p]
		if dry < 0 {
			dry = g.Nz
		}
		for k := 0; k < dry; k++ {
			if mask.Elements[p*g.Nz+k] != 0 {
				return fmt.Errorf("npzd: column %d has a wet cell in layer %d below land", p, k)
			}
		}
	}
	return nil
}

// Validate checks the grid for consistency.
func (g *Grid) Validate() error {
	if g.Nx <= 0 || g.Ny <= 0 || g.Nz <= 0 {
		return fmt.Errorf("npzd: invalid grid dimensions %d×%d×%d", g.Nx, g.Ny, g.Nz)
	}
	if len(g.Dz) != g.Nz || len(g.ZTop) != g.Nz {
		return fmt.Errorf("npzd: grid has %d layers but %d thicknesses and %d depths", g.Nz, len(g.Dz), len(g.ZTop))
	}
	for k, dz := range g.Dz {
		if !(dz > 0) {
			return fmt.Errorf("npzd: layer %d has thickness %g", k, dz)
		}
	}
	if len(g.Area) != g.Nx*g.Ny {
		return fmt.Errorf("npzd: grid has %d columns but %d areas", g.Nx*g.Ny, len(g.Area))
	}
	if g.Mask == nil || len(g.Bottom) != g.Nx*g.Ny {
		return fmt.Errorf("npzd: grid mask is not set")
	}
	return checkShape("mask", g.Mask, g.Nx, g.Ny, g.Nz)
}

// CellVolume returns the volume [m³] of layer k in column p.
func (g *Grid) CellVolume(p, k int) float64 {
	return g.Area[p] * g.Dz[k]
}

// columns returns the number of horizontal grid points.
func (g *Grid) columns() int { return g.Nx * g.Ny }

func checkShape(name string, a *sparse.DenseArray, shape ...int) error {
	if a == nil {
		return fmt.Errorf("npzd: %s is missing", name)
	}
	if len(a.Shape) != len(shape) {
		return fmt.Errorf("npzd: %s has shape %v; want %v", name, a.Shape, shape)
	}
	for i, s := range shape {
		if a.Shape[i] != s {
			return fmt.Errorf("npzd: %s has shape %v; want %v", name, a.Shape, shape)
		}
	}
	return nil
}

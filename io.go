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

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// integratedVars holds the names, descriptions and accessors of
// column-integrated process amounts included in output files.
var integratedVars = []struct {
	name, description string
	get               func(*Accumulators) []float64
}{
	{"npp_integrated", "Column-integrated net primary production over the last timestep", func(a *Accumulators) []float64 { return a.IntegratedNPP }},
	{"grazing_integrated", "Column-integrated grazing over the last timestep", func(a *Accumulators) []float64 { return a.IntegratedGrazing }},
	{"mortality_integrated", "Column-integrated mortality over the last timestep", func(a *Accumulators) []float64 { return a.IntegratedMortality }},
	{"recycled_integrated", "Column-integrated recycling over the last timestep", func(a *Accumulators) []float64 { return a.IntegratedRecycled }},
}

// CheckOutputVars returns a function that makes sure all of the requested
// output variables are tracers of the model.
func CheckOutputVars(outputVariables ...string) DomainManipulator {
	return func(d *NPZD) error {
		for _, v := range outputVariables {
			if _, ok := d.Tracers[v]; !ok {
				return fmt.Errorf("npzd: output variable %q is not a tracer; tracers are %v", v, d.Tracers.Names())
			}
		}
		return nil
	}
}

// Output returns a function that writes the tracer concentrations,
// layer thicknesses and column-integrated process amounts to rw in
// NetCDF format. If no outputVariables are specified, all tracers
// are written.
func Output(rw cdf.ReaderWriterAt, outputVariables ...string) DomainManipulator {
	return func(d *NPZD) error {
		return d.WriteNetCDF(rw, outputVariables...)
	}
}

// WriteNetCDF writes the model state to rw in NetCDF format.
func (d *NPZD) WriteNetCDF(rw cdf.ReaderWriterAt, outputVariables ...string) error {
	g := d.Grid
	if len(outputVariables) == 0 {
		outputVariables = d.Tracers.Names()
	}
	h := cdf.NewHeader([]string{"x", "y", "z"}, []int{g.Nx, g.Ny, g.Nz})
	h.AddAttribute("", "comment", "NPZD ocean biogeochemistry output; vertical index z=0 is the deepest layer")
	h.AddAttribute("", "npzd_version", Version)
	h.AddAttribute("", "time", []float64{d.Time})

	h.AddVariable("dz", []string{"z"}, []float64{0})
	h.AddAttribute("dz", "description", "Layer thickness")
	h.AddAttribute("dz", "units", "m")
	for _, v := range outputVariables {
		a, ok := d.Tracers[v]
		if !ok {
			return fmt.Errorf("npzd: writing output: %q is not a tracer", v)
		}
		if err := checkShape(v, a, g.Nx, g.Ny, g.Nz); err != nil {
			return err
		}
		h.AddVariable(v, []string{"x", "y", "z"}, []float64{0})
		info := tracerInfo[v]
		h.AddAttribute(v, "description", info.description)
		h.AddAttribute(v, "units", info.units)
	}
	acc := d.Accumulators()
	if acc != nil {
		for _, iv := range integratedVars {
			h.AddVariable(iv.name, []string{"x", "y"}, []float64{0})
			h.AddAttribute(iv.name, "description", iv.description)
			h.AddAttribute(iv.name, "units", "mmol N/m²")
		}
	}
	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("npzd: creating netcdf file: %v", err)
	}
	f, err := cdf.Create(rw, h)
	if err != nil {
		return fmt.Errorf("npzd: creating netcdf file: %v", err)
	}

	if err := writeNCF(f, "dz", g.Dz); err != nil {
		return err
	}
	for _, v := range outputVariables {
		if err := writeNCF(f, v, d.Tracers[v].Elements); err != nil {
			return err
		}
	}
	if acc != nil {
		for _, iv := range integratedVars {
			if err := writeNCF(f, iv.name, iv.get(acc)); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeNCF(f *cdf.File, v string, data []float64) error {
	end := f.Header.Lengths(v)
	start := make([]int, len(end))
	w := f.Writer(v, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("npzd: writing netcdf variable %s: %v", v, err)
	}
	return nil
}

// ReadInitialConditions reads tracer concentrations from NetCDF-formatted
// rw. Every variable whose name is a tracer name is read; variables must be
// shaped (x, y, z) with z=0 the deepest layer, and may be stored as
// float32 or float64.
func ReadInitialConditions(rw cdf.ReaderWriterAt) (Tracers, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("npzd: opening initial conditions: %v", err)
	}
	o := make(Tracers)
	for _, v := range f.Header.Variables() {
		if _, ok := tracerInfo[v]; !ok {
			continue
		}
		a, err := readNCF(v, f)
		if err != nil {
			return nil, err
		}
		o[v] = a
	}
	return o, nil
}

// readNCF reads variable v out of netcdf file f.
func readNCF(v string, f *cdf.File) (*sparse.DenseArray, error) {
	dims := f.Header.Lengths(v)
	if len(dims) != 3 {
		return nil, fmt.Errorf("npzd: netcdf variable %s has dimensions %v; want (x, y, z)", v, dims)
	}
	r := f.Reader(v, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("npzd: reading netcdf variable %s: %v", v, err)
	}
	data := sparse.ZerosDense(dims...)
	switch b := buf.(type) {
	case []float32:
		for i, val := range b {
			data.Elements[i] = float64(val)
		}
	case []float64:
		copy(data.Elements, b)
	default:
		return nil, fmt.Errorf("npzd: netcdf variable %s has unsupported type %T", v, buf)
	}
	return data, nil
}

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
	"math"

	"github.com/ctessum/unit"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// Mmol is the dimension of amounts of substance in millimoles.
var Mmol = unit.NewDimension("mmol")

var perArea = unit.Dimensions{Mmol: 1, unit.LengthDim: -2}

// organic holds the tracers that contain organic matter in Redfield proportions.
var organic = []string{Phytoplankton, Zooplankton, Detritus, Diazotroph, Coccolithophore}

// inventory returns the total amount of tracer name in all wet cells
// [amount], multiplied by ratio. It returns 0 for tracers that are not
// part of the model.
func (d *NPZD) inventory(name string, ratio float64) float64 {
	a, ok := d.Tracers[name]
	if !ok {
		return 0
	}
	g := d.Grid
	v := make([]float64, len(a.Elements))
	for p := 0; p < g.columns(); p++ {
		for k := 0; k < g.Nz; k++ {
			i := p*g.Nz + k
			v[i] = a.Elements[i] * g.CellVolume(p, k) * g.Mask.Elements[i]
		}
	}
	return ratio * floats.Sum(v)
}

// PhosphorusInventory returns the total amount of phosphorus in the
// ocean [mmol P].
func (d *NPZD) PhosphorusInventory() float64 {
	total := d.inventory(Phosphate, 1)
	for _, name := range organic {
		total += d.inventory(name, d.Params.RedfieldPN)
	}
	return total
}

// CarbonInventory returns the total amount of carbon in the ocean
// [mmol C], or 0 if the carbon cycle is not enabled.
func (d *NPZD) CarbonInventory() float64 {
	if !d.Features.Carbon {
		return 0
	}
	total := d.inventory(DIC, 1) + d.inventory(CaCO3, 1)
	for _, name := range organic {
		total += d.inventory(name, d.Params.RedfieldCN())
	}
	return total
}

// ConservationMonitor returns a function that logs the total phosphorus
// and carbon in the ocean, their change since the previous timestep, and
// the total rates of the main biological processes. It does not change the
// model state.
func ConservationMonitor() DomainManipulator {
	var oldP, oldC float64
	first := true
	return func(d *NPZD) error {
		p, c := d.PhosphorusInventory(), d.CarbonInventory()
		fields := logrus.Fields{
			"step":       d.Step,
			"phosphorus": p,
		}
		if !first {
			fields["phosphorus drift"] = relativeChange(p, oldP)
		}
		if d.Features.Carbon {
			fields["carbon"] = c
			if !first {
				fields["carbon drift"] = relativeChange(c, oldC)
			}
		}
		if acc := d.Accumulators(); acc != nil {
			fields["npp"] = d.surfaceTotal(acc.IntegratedNPP)
			fields["grazing"] = d.surfaceTotal(acc.IntegratedGrazing)
			fields["mortality"] = d.surfaceTotal(acc.IntegratedMortality)
			fields["recycled"] = d.surfaceTotal(acc.IntegratedRecycled)
		}
		d.log().WithFields(fields).Info("npzd: conservation")
		oldP, oldC, first = p, c, false
		return nil
	}
}

// surfaceTotal returns the sum of the per-column amount v [mmol/m²]
// times column area.
func (d *NPZD) surfaceTotal(v []float64) *unit.Unit {
	total := unit.New(0, unit.Dimensions{Mmol: 1})
	for p, a := range d.Grid.Area {
		total.Add(unit.Mul(unit.New(v[p], perArea), unit.New(a, unit.Meter2)))
	}
	return total
}

func relativeChange(new, old float64) float64 {
	if old == 0 {
		return math.NaN()
	}
	return (new - old) / old
}

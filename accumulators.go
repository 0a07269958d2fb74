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

// Accumulators holds the process rates of the most recent biological
// sub-step [concentration/s], by tracer name and horizontal point.
// They are overwritten at the start of every sub-step.
type Accumulators struct {
	NetPrimaryProduction map[string][]float64
	Recycled             map[string][]float64
	Mortality            map[string][]float64
	Grazing              map[string][]float64
	Digestion            map[string][]float64
	Excretion            map[string][]float64
	SloppyFeeding        map[string][]float64

	// ExcretionTotal is the sum of Excretion over all prey.
	ExcretionTotal []float64

	// CalciteProduction is the production rate of calcite that is not
	// carried as a tracer.
	CalciteProduction []float64

	// Column-integrated amounts over the most recent timestep
	// [amount/m²], summed over tracers.
	IntegratedNPP, IntegratedRecycled, IntegratedMortality, IntegratedGrazing []float64

	// The same arrays indexed by tracer id; nil where a process does
	// not apply to a tracer.
	npp, recycled, mortality, grazing, digestion, excretion, sloppy [][]float64
}

func newAccumulators(ntracers, npoints int) *Accumulators {
	idx := func() [][]float64 { return make([][]float64, ntracers) }
	return &Accumulators{
		NetPrimaryProduction: make(map[string][]float64),
		Recycled:             make(map[string][]float64),
		Mortality:            make(map[string][]float64),
		Grazing:              make(map[string][]float64),
		Digestion:            make(map[string][]float64),
		Excretion:            make(map[string][]float64),
		SloppyFeeding:        make(map[string][]float64),
		ExcretionTotal:       make([]float64, npoints),
		CalciteProduction:    make([]float64, npoints),
		IntegratedNPP:        make([]float64, npoints),
		IntegratedRecycled:   make([]float64, npoints),
		IntegratedMortality:  make([]float64, npoints),
		IntegratedGrazing:    make([]float64, npoints),
		npp:                  idx(),
		recycled:             idx(),
		mortality:            idx(),
		grazing:              idx(),
		digestion:            idx(),
		excretion:            idx(),
		sloppy:               idx(),
	}
}

// track allocates an accumulator array for tracer id in m and byID.
func track(m map[string][]float64, byID [][]float64, name string, id, npoints int) {
	if byID[id] != nil {
		return
	}
	a := make([]float64, npoints)
	byID[id] = a
	m[name] = a
}

// trackPrey allocates the grazing arrays for a prey tracer.
func (a *Accumulators) trackPrey(name string, id, npoints int) {
	track(a.Grazing, a.grazing, name, id, npoints)
	track(a.Digestion, a.digestion, name, id, npoints)
	track(a.Excretion, a.excretion, name, id, npoints)
	track(a.SloppyFeeding, a.sloppy, name, id, npoints)
}

// resetIntegrated zeroes the column-integrated amounts at point p.
func (a *Accumulators) resetIntegrated(p int) {
	a.IntegratedNPP[p] = 0
	a.IntegratedRecycled[p] = 0
	a.IntegratedMortality[p] = 0
	a.IntegratedGrazing[p] = 0
}

// integrate adds the current rates at point p, multiplied by
// scale (timestep × layer thickness), to the column-integrated amounts.
func (a *Accumulators) integrate(p int, scale float64) {
	a.IntegratedNPP[p] += scale * sumAt(a.npp, p)
	a.IntegratedRecycled[p] += scale * sumAt(a.recycled, p)
	a.IntegratedMortality[p] += scale * sumAt(a.mortality, p)
	a.IntegratedGrazing[p] += scale * sumAt(a.grazing, p)
}

func sumAt(v [][]float64, p int) float64 {
	var s float64
	for _, x := range v {
		if x != nil {
			s += x[p]
		}
	}
	return s
}

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
	"math"
	"runtime"
	"sync"

	"github.com/ctessum/sparse"

	"github.com/spatialmodel/npzd/science/grazing"
	"github.com/spatialmodel/npzd/science/growth"
)

// Diagnostics holds the sinking fluxes of the most recent timestep,
// by sinking species.
type Diagnostics struct {
	// Import is the rate at which material sinks into each cell
	// from the cell above [concentration/s].
	Import map[string]*sparse.DenseArray

	// Export is the amount of material leaving each cell through its
	// bottom face per biological sub-step [concentration × m].
	Export map[string]*sparse.DenseArray
}

// state holds the working arrays of the column integrator. Arrays are
// indexed by tracer id (where applicable) and then horizontal point, so
// that workers handling different points never share an element.
type state struct {
	trc   []*sparse.DenseArray
	conc  [][]float64
	delta [][]float64
	flags *flagState
	acc   *Accumulators

	export [][]float64 // by sinking species
	prca   []float64   // column calcite amount

	dic, alk                                 int
	calciteFactor, assimilation, dissolution float64
	rules                                    []*Rule
}

func (d *NPZD) newState() *state {
	e, reg := d.eco, d.Registry
	n, np := len(reg.Tracers()), d.Grid.columns()
	s := &state{
		trc:           make([]*sparse.DenseArray, n),
		conc:          make([][]float64, n),
		delta:         make([][]float64, n),
		flags:         newFlagState(n, np),
		acc:           newAccumulators(n, np),
		export:        make([][]float64, len(e.sinking)),
		prca:          make([]float64, np),
		dic:           e.dic,
		alk:           e.alk,
		calciteFactor: e.calciteFactor,
		assimilation:  d.Params.AssimilationEfficiency,
		dissolution:   e.dissolution,
	}
	for id := range reg.Tracers() {
		s.conc[id] = make([]float64, np)
		s.delta[id] = make([]float64, np)
	}
	for i := range s.export {
		s.export[i] = make([]float64, np)
	}
	for _, pl := range e.plankton {
		track(s.acc.NetPrimaryProduction, s.acc.npp, pl.Name, pl.id, np)
		track(s.acc.Recycled, s.acc.recycled, pl.Name, pl.id, np)
		track(s.acc.Mortality, s.acc.mortality, pl.Name, pl.id, np)
	}
	track(s.acc.Recycled, s.acc.recycled, Detritus, e.det, np)
	track(s.acc.Mortality, s.acc.mortality, Zooplankton, e.zoo, np)
	for i, name := range e.grazer.Prey {
		s.acc.trackPrey(name, e.preyIDs[i], np)
	}
	rules := reg.Rules()
	for i := range rules {
		if rules[i].Kind != Structural {
			s.rules = append(s.rules, &rules[i])
		}
	}
	return s
}

// Accumulators returns the process rates of the most recent biological
// sub-step, or nil if the model has not been run.
func (d *NPZD) Accumulators() *Accumulators {
	if d.state == nil {
		return nil
	}
	return d.state.acc
}

// Biogeochemistry returns a function that applies surface fluxes and then
// integrates the biological sources and sinks in every water column over
// one model timestep, using NBio sub-steps of length DtBio. Columns are
// divided among GOMAXPROCS workers.
func Biogeochemistry() DomainManipulator {
	nprocs := runtime.GOMAXPROCS(0)
	return func(d *NPZD) error {
		if d.NBio() < 1 {
			return fmt.Errorf("npzd: %d biological sub-steps per timestep", d.NBio())
		}
		if d.state == nil {
			d.state = d.newState()
		}
		for id, name := range d.Registry.Tracers() {
			d.state.trc[id] = d.Tracers[name]
		}
		if err := d.surfaceFluxes(); err != nil {
			return err
		}
		d.resetDiagnostics()

		np := d.Grid.columns()
		var wg sync.WaitGroup
		wg.Add(nprocs)
		for pp := 0; pp < nprocs; pp++ {
			go func(pp int) {
				w := d.newWorker()
				for p := pp * np / nprocs; p < (pp+1)*np/nprocs; p++ {
					d.column(p, w)
				}
				wg.Done()
			}(pp)
		}
		wg.Wait()
		return nil
	}
}

// surfaceFluxes adds air-sea gas fluxes to the surface layer.
func (d *NPZD) surfaceFluxes() error {
	rules := d.Registry.SurfaceRules()
	if d.GasFlux == nil || len(rules) == 0 {
		return nil
	}
	g := d.Grid
	k := g.Nz - 1
	for _, r := range rules {
		flux, err := d.GasFlux.Flux(d, r.Source, r.Sink)
		if err != nil {
			return fmt.Errorf("npzd: surface flux of %s into %s: %v", r.Source, r.Sink, err)
		}
		if len(flux) != g.columns() {
			return fmt.Errorf("npzd: surface flux of %s has %d values for %d columns", r.Source, len(flux), g.columns())
		}
		a := d.Tracers[r.Sink]
		for p, f := range flux {
			i := p*g.Nz + k
			a.Elements[i] += f * d.DtMom / g.Dz[k] * g.Mask.Elements[i]
		}
	}
	return nil
}

func (d *NPZD) resetDiagnostics() {
	g := d.Grid
	if d.Diagnostics == nil {
		d.Diagnostics = &Diagnostics{
			Import: make(map[string]*sparse.DenseArray),
			Export: make(map[string]*sparse.DenseArray),
		}
		for _, s := range d.eco.sinking {
			d.Diagnostics.Import[s.Name] = sparse.ZerosDense(g.Nx, g.Ny, g.Nz)
			d.Diagnostics.Export[s.Name] = sparse.ZerosDense(g.Nx, g.Ny, g.Nz)
		}
	}
}

// worker holds scratch space for one goroutine.
type worker struct {
	jmax, avej []float64 // by plankton
	imp        []float64 // by sinking species
	prey       []float64
	preyOK     []bool
	fluxes     *grazing.Fluxes
}

func (d *NPZD) newWorker() *worker {
	e := d.eco
	return &worker{
		jmax:   make([]float64, len(e.plankton)),
		avej:   make([]float64, len(e.plankton)),
		imp:    make([]float64, len(e.sinking)),
		prey:   make([]float64, len(e.preyIDs)),
		preyOK: make([]bool, len(e.preyIDs)),
		fluxes: grazing.NewFluxes(len(e.preyIDs)),
	}
}

// column integrates the biology of water column p from the surface
// to the deepest layer.
func (d *NPZD) column(p int, w *worker) {
	s, e, g, prm := d.state, d.eco, d.Grid, d.Params
	nz, nbio, dt := g.Nz, d.NBio(), d.DtBio
	trcmin := prm.TracerMinimum

	swr := d.Forcing.SWR[p]
	shade := 0. // optical thickness of the layer above due to plankton and calcite
	for si := range s.export {
		s.export[si][p] = 0
	}
	s.prca[p] = 0
	s.acc.resetIntegrated(p)

	for k := nz - 1; k >= 0; k-- {
		i := p*nz + k
		dz := g.Dz[k]

		// Snapshot, clamp and reset flags.
		for id, a := range s.trc {
			c := a.Elements[i]
			s.flags.reset(id, p, c, trcmin)
			if c < trcmin {
				c = trcmin
				a.Elements[i] = c
			}
			s.conc[id][p] = c
		}

		// Light.
		swr *= math.Exp(-shade)
		light := swr * math.Exp(-g.ZTop[k]*d.Forcing.RCTheta[p])
		var plankton float64
		for _, pl := range e.plankton {
			plankton += s.conc[pl.id][p]
		}
		shade = prm.LightAttenuationPhytoplankton * plankton * dz
		if e.caco3 >= 0 {
			shade += prm.LightAttenuationCaCO3 * s.conc[e.caco3][p] * dz
		}
		attenuation := prm.LightAttenuationWater*dz + shade

		// Potential growth.
		temp := d.Forcing.Temperature.Elements[i]
		bctCapped := growth.TemperatureFactor(prm.TemperatureBase, prm.TemperatureCoefficient, temp, prm.TemperatureCap)
		bct := growth.TemperatureFactor(prm.TemperatureBase, prm.TemperatureCoefficient, temp, math.Inf(1))
		for pi, pl := range e.plankton {
			if pl.Diazotroph {
				w.jmax[pi], w.avej[pi] = growth.Diazotroph(bctCapped, light, attenuation, pl.MaxGrowth,
					prm.DiazotrophGrowthFactor, prm.DiazotrophThreshold, dt)
			} else {
				w.jmax[pi], w.avej[pi] = growth.Potential(bctCapped, light, attenuation, pl.MaxGrowth, dt)
			}
		}

		// Material sinking in from the layer above.
		for si, sk := range e.sinking {
			w.imp[si] = s.export[si][p] / (dz * dt)
			s.export[si][p] = 0
			d.Diagnostics.Import[sk.Name].Elements[i] = w.imp[si]
		}

		var calciteAmount float64
		for n := 0; n < nbio; n++ {
			d.accumulate(p, bct, prm.MaxGrazing*bctCapped, w)

			for id := range s.delta {
				s.delta[id][p] = 0
			}
			for _, r := range s.rules {
				r.apply(s, p)
			}
			s.acc.integrate(p, dt*dz*g.Mask.Elements[i])
			for id, a := range s.trc {
				a.Elements[i] += s.delta[id][p] * dt
			}

			for si, sk := range e.sinking {
				out := sk.Speed.Elements[i] * s.conc[sk.id][p] * s.flags.factor(sk.id, p)
				s.trc[sk.id].Elements[i] += (w.imp[si] - out) * dt
				s.export[si][p] += out * dt
			}
			if e.implicitCalcite {
				calciteAmount += s.acc.CalciteProduction[p] * dt * g.Mask.Elements[i]
			}

			for id, a := range s.trc {
				c := a.Elements[i]
				s.flags.update(id, p, c, trcmin)
				if c < trcmin {
					c = trcmin
					a.Elements[i] = c
				}
				s.conc[id][p] = c
			}
		}

		// Remineralization at the sea floor.
		if k == g.Bottom[p] {
			for si, sk := range e.sinking {
				for _, prod := range sk.Products {
					s.trc[prod.id].Elements[i] += s.export[si][p] * prod.Ratio
				}
				s.export[si][p] = 0
			}
		}
		for si, sk := range e.sinking {
			s.export[si][p] *= dz / float64(nbio)
			d.Diagnostics.Export[sk.Name].Elements[i] = s.export[si][p]
		}

		if e.implicitCalcite {
			s.trc[e.dic].Elements[i] -= calciteAmount
			s.trc[e.alk].Elements[i] -= 2 * calciteAmount
			s.prca[p] += calciteAmount * dz
		}
	}

	if e.implicitCalcite {
		d.dissolveCalcite(p)
	}
}

// accumulate calculates the process rates of one sub-step at point p,
// given the uncapped temperature factor bct and the maximum grazing rate.
func (d *NPZD) accumulate(p int, bct, gmax float64, w *worker) {
	s, e, prm := d.state, d.eco, d.Params
	a, f := s.acc, s.flags
	for pi, pl := range e.plankton {
		c := s.conc[pl.id][p]
		u := 1.
		for li, lid := range pl.limitIDs {
			u = math.Min(u, pl.Limits[li].Limit(s.conc[lid][p]))
		}
		npp := math.Min(w.avej[pi], u*w.jmax[pi]) * c
		for _, id := range pl.uptake {
			npp *= f.factor(id, p)
		}
		a.npp[pl.id][p] = npp
		a.recycled[pl.id][p] = f.factor(pl.id, p) * pl.Recycling * bct * c
		a.mortality[pl.id][p] = f.factor(pl.id, p) * pl.Mortality * c
	}
	a.recycled[e.det][p] = f.factor(e.det, p) * prm.RemineralizationDetritus * bct * s.conc[e.det][p]
	zoo := s.conc[e.zoo][p]
	a.mortality[e.zoo][p] = f.factor(e.zoo, p) * prm.QuadraticMortalityZooplankton * zoo * zoo

	for i, id := range e.preyIDs {
		w.prey[i] = s.conc[id][p]
		w.preyOK[i] = f.ok[id][p]
	}
	e.grazer.Graze(w.prey, w.preyOK, zoo, f.ok[e.zoo][p], gmax, w.fluxes)
	var excretion float64
	for i, id := range e.preyIDs {
		a.grazing[id][p] = w.fluxes.Grazing[i]
		a.digestion[id][p] = w.fluxes.Digestion[i]
		a.excretion[id][p] = w.fluxes.Excretion[i]
		a.sloppy[id][p] = w.fluxes.SloppyFeeding[i]
		excretion += w.fluxes.Excretion[i]
	}
	a.ExcretionTotal[p] = excretion
	a.CalciteProduction[p] = 0
}

// dissolveCalcite redistributes the calcite produced in column p over
// the water column.
func (d *NPZD) dissolveCalcite(p int) {
	s, e, g := d.state, d.eco, d.Grid
	prof := e.profiles[p]
	trcmin := d.Params.TracerMinimum
	for k := 0; k < g.Nz; k++ {
		i := p*g.Nz + k
		w := prof.Weight(k)
		dic, alk := s.trc[e.dic], s.trc[e.alk]
		dic.Elements[i] += s.prca[p] * w
		alk.Elements[i] += 2 * s.prca[p] * w
		dic.Elements[i] = math.Max(dic.Elements[i], trcmin)
		alk.Elements[i] = math.Max(alk.Elements[i], trcmin)
	}
	s.prca[p] = 0
}

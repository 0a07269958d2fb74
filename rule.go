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

import "fmt"

// RuleKind specifies the process a Rule represents and therefore how its
// rate is calculated.
type RuleKind int

// Rule kinds. Kinds ending in Uptake or Release change only the nutrient
// pool they name and are registered alongside a PrimaryProduction,
// Recycling or Excretion rule whose plankton side they share.
const (
	// Structural rules document a pathway but move no mass.
	Structural RuleKind = iota
	// PrimaryProduction moves Ratio × NPP[Sink] from the nutrient Source to the plankton Sink.
	PrimaryProduction
	// NutrientUptake removes Ratio × NPP[Sink] from Source.
	NutrientUptake
	// Recycling moves Recycled[Source] from Source into Ratio × Recycled[Source] of Sink.
	Recycling
	// NutrientRelease adds Ratio × Recycled[Source] to Sink.
	NutrientRelease
	// Mortality moves Mortality[Source] from Source to Sink.
	Mortality
	// Grazing removes Grazing[Source] from the prey Source and adds Digestion[Source] to the predator Sink.
	Grazing
	// SelfGrazing adds Digestion[Source] - Grazing[Source] to Source.
	SelfGrazing
	// SloppyFeeding adds SloppyFeeding[Source] to Sink.
	SloppyFeeding
	// Excretion moves the total excretion from Source into Ratio × total of Sink.
	Excretion
	// ExcretionRelease adds Ratio × total excretion to Sink.
	ExcretionRelease
	// CalciteProduction turns DIC into calcite in proportion to the
	// losses of the calcifying Source.
	CalciteProduction
	// CalciteDissolution returns calcite in Source to DIC in Sink.
	CalciteDissolution
	// SurfaceFlux adds an air-sea gas flux from the gas Source to the tracer Sink.
	SurfaceFlux
)

var ruleKindNames = []string{"structural", "primary production", "nutrient uptake",
	"recycling", "nutrient release", "mortality", "grazing", "self grazing",
	"sloppy feeding", "excretion", "excretion release", "calcite production",
	"calcite dissolution", "surface flux"}

func (k RuleKind) String() string {
	if k < 0 || int(k) >= len(ruleKindNames) {
		return fmt.Sprintf("RuleKind(%d)", int(k))
	}
	return ruleKindNames[k]
}

// Rule is one pathway of mass between two tracers.
type Rule struct {
	Kind RuleKind

	// Source and Sink name the tracers mass moves between.
	Source, Sink string

	// Ratio converts plankton units into units of the nutrient side
	// of the rule (for example the P:N ratio for phosphate).
	Ratio float64

	// Label describes the rule for diagrams.
	Label string

	// interned tracer ids; -1 when the name is not a tracer.
	source, sink int
}

func (r Rule) String() string {
	return fmt.Sprintf("%s → %s (%s): %s", r.Source, r.Sink, r.Kind, r.Label)
}

// apply adds the rates of the rule at point p to s.delta.
func (r *Rule) apply(s *state, p int) {
	d := s.delta
	a := s.acc
	switch r.Kind {
	case Structural, SurfaceFlux:
	case PrimaryProduction:
		npp := a.npp[r.sink][p]
		d[r.source][p] -= r.Ratio * npp
		d[r.sink][p] += npp
	case NutrientUptake:
		d[r.source][p] -= r.Ratio * a.npp[r.sink][p]
	case Recycling:
		rec := a.recycled[r.source][p]
		d[r.source][p] -= rec
		d[r.sink][p] += r.Ratio * rec
	case NutrientRelease:
		d[r.sink][p] += r.Ratio * a.recycled[r.source][p]
	case Mortality:
		m := a.mortality[r.source][p]
		d[r.source][p] -= m
		d[r.sink][p] += m
	case Grazing:
		d[r.source][p] -= a.grazing[r.source][p]
		d[r.sink][p] += a.digestion[r.source][p]
	case SelfGrazing:
		d[r.source][p] += a.digestion[r.source][p] - a.grazing[r.source][p]
	case SloppyFeeding:
		d[r.sink][p] += a.sloppy[r.source][p]
	case Excretion:
		e := a.ExcretionTotal[p]
		d[r.source][p] -= e
		d[r.sink][p] += r.Ratio * e
	case ExcretionRelease:
		d[r.sink][p] += r.Ratio * a.ExcretionTotal[p]
	case CalciteProduction:
		rate := (a.mortality[r.source][p] + (1-s.assimilation)*a.grazing[r.source][p]) * s.calciteFactor
		if !s.flags.ok[s.dic][p] {
			return
		}
		if r.sink < 0 {
			a.CalciteProduction[p] += rate
			return
		}
		d[r.sink][p] += rate
		d[s.dic][p] -= rate
		if s.alk >= 0 {
			d[s.alk][p] -= 2 * rate
		}
	case CalciteDissolution:
		if !s.flags.ok[r.source][p] {
			return
		}
		rate := s.dissolution * s.conc[r.source][p]
		d[r.source][p] -= rate
		d[r.sink][p] += rate
		if s.alk >= 0 {
			d[s.alk][p] += 2 * rate
		}
	default:
		panic(fmt.Errorf("npzd: invalid rule kind %d", int(r.Kind)))
	}
}

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

// Package grazing implements zooplankton grazing with preference-weighted,
// saturating (Holling type II) ingestion of several prey types.
package grazing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// NormalizePreferences scales grazing preferences so that they sum to one.
// It returns an error if the preferences do not sum to a positive number.
func NormalizePreferences(prefs map[string]float64) (map[string]float64, error) {
	v := make([]float64, 0, len(prefs))
	for _, p := range prefs {
		if p < 0 {
			return nil, fmt.Errorf("grazing: negative preference %g", p)
		}
		v = append(v, p)
	}
	sum := floats.Sum(v)
	if !(sum > 0) {
		return nil, fmt.Errorf("grazing: preferences sum to %g; they must sum to a positive number", sum)
	}
	o := make(map[string]float64, len(prefs))
	for name, p := range prefs {
		o[name] = p / sum
	}
	return o, nil
}

// Model holds the parameters of a single predator grazing on
// several prey types.
type Model struct {
	// Prey holds the prey names, sorted.
	Prey []string

	// Preferences holds the normalized preference for each prey.
	Preferences []float64

	// Saturation is the total food concentration at which ingestion
	// is reduced by half.
	Saturation float64

	// Assimilation is the fraction of grazed material that is ingested;
	// the remainder is lost as sloppy feeding.
	Assimilation float64

	// GrowthEfficiency is the fraction of ingested material that goes
	// into predator growth; the remainder is excreted.
	GrowthEfficiency float64
}

// New returns a new grazing model. The preferences are normalized.
func New(prefs map[string]float64, saturation, assimilation, growthEfficiency float64) (*Model, error) {
	norm, err := NormalizePreferences(prefs)
	if err != nil {
		return nil, err
	}
	m := &Model{
		Saturation:       saturation,
		Assimilation:     assimilation,
		GrowthEfficiency: growthEfficiency,
	}
	for name := range norm {
		m.Prey = append(m.Prey, name)
	}
	sort.Strings(m.Prey)
	m.Preferences = make([]float64, len(m.Prey))
	for i, name := range m.Prey {
		m.Preferences[i] = norm[name]
	}
	return m, nil
}

// Fluxes holds grazing rates for each prey, in the order of Model.Prey.
type Fluxes struct {
	Grazing       []float64 // total prey loss
	Digestion     []float64 // gain of the predator before excretion
	Excretion     []float64 // ingested material returned as nutrients
	SloppyFeeding []float64 // material lost to detritus
}

// NewFluxes allocates grazing fluxes for n prey types.
func NewFluxes(n int) *Fluxes {
	return &Fluxes{
		Grazing:       make([]float64, n),
		Digestion:     make([]float64, n),
		Excretion:     make([]float64, n),
		SloppyFeeding: make([]float64, n),
	}
}

// Graze calculates grazing rates given prey concentrations, the predator
// concentration and the maximum grazing rate gmax [1/s]. preyOK and
// predatorOK are false when the corresponding tracer is depleted, in which
// case it is not grazed (or does not graze). Results are written to out.
func (m *Model) Graze(prey []float64, preyOK []bool, predator float64, predatorOK bool, gmax float64, out *Fluxes) {
	theta := m.Saturation
	for i, c := range prey {
		theta += m.Preferences[i] * c
	}
	for i, c := range prey {
		var g float64
		if preyOK[i] && predatorOK {
			g = gmax * m.Preferences[i] / theta * c * predator
		}
		out.Grazing[i] = g
		out.Digestion[i] = m.Assimilation * g
		out.Excretion[i] = m.Assimilation * (1 - m.GrowthEfficiency) * g
		out.SloppyFeeding[i] = (1 - m.Assimilation) * g
	}
}

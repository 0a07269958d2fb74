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

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/npzd/internal/hash"
	"github.com/spatialmodel/npzd/science/calcite"
	"github.com/spatialmodel/npzd/science/grazing"
	"github.com/spatialmodel/npzd/science/limitation"
)

// Features selects the optional tracer groups of the ecosystem.
type Features struct {
	// Carbon adds dissolved inorganic carbon, alkalinity, air-sea CO2
	// exchange and calcite production.
	Carbon bool

	// Nitrogen adds nitrate, dissolved organic matter and
	// nitrogen-fixing diazotrophs.
	Nitrogen bool

	// Calcifiers adds coccolithophores and carries calcite as a sinking
	// tracer. It requires Carbon.
	Calcifiers bool
}

// Plankton describes the growth of one phytoplankton type.
type Plankton struct {
	Name string

	// Diazotroph selects the nitrogen-fixer growth kernel.
	Diazotroph bool

	// MaxGrowth is the maximum growth parameter [1/s].
	MaxGrowth float64

	// Limits are the nutrient limitation kernels.
	Limits []limitation.Kernel

	// Recycling is the fast recycling rate [1/s] and Mortality the
	// linear mortality rate [1/s].
	Recycling, Mortality float64

	id       int
	limitIDs []int
	// uptake holds the ids of the nutrient pools depleted by primary production.
	uptake []int
}

// SinkingSpecies describes a tracer that sinks through the water column.
type SinkingSpecies struct {
	Name string

	// Speed is the sinking rate of each cell [1/s], already divided by the
	// layer thickness and masked.
	Speed *sparse.DenseArray

	// Products are the tracers the exported material is remineralized
	// into at the sea floor.
	Products []Product

	id int
}

// Product is a tracer receiving Ratio units per unit of a remineralized tracer.
type Product struct {
	Name  string
	Ratio float64
	id    int
}

// ecosystem holds the tables built during setup.
type ecosystem struct {
	plankton []Plankton
	sinking  []SinkingSpecies
	grazer   *grazing.Model

	preyIDs                            []int
	zoo, det, dic, alk, caco3          int
	implicitCalcite                    bool
	profiles                           []*calcite.Profile
	calciteFactor, dissolution, satZoo float64
}

// Setup returns a function that registers the tracers and rules of the
// ecosystem selected by features and initializes the tracers. Tracers
// missing from initial start at the tracer minimum. Setup must run after
// Grid is set.
func Setup(p Params, features Features, initial Tracers) DomainManipulator {
	return func(d *NPZD) error {
		if d.Grid == nil {
			return fmt.Errorf("npzd: setup requires a grid")
		}
		if err := d.Grid.Validate(); err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return err
		}
		if features.Calcifiers && !features.Carbon {
			return fmt.Errorf("npzd: calcifiers require the carbon cycle to be enabled")
		}
		d.Params = p
		d.Features = features
		d.Registry = NewRegistry()
		if err := d.registerEcosystem(); err != nil {
			return err
		}
		if err := d.initTracers(initial); err != nil {
			return err
		}
		if err := d.buildTables(); err != nil {
			return err
		}
		d.Registry.Seal()
		d.log().WithFields(logrus.Fields{
			"tracers":     len(d.Registry.Tracers()),
			"rules":       len(d.Registry.Rules()),
			"fingerprint": hash.Fingerprint(p, features, d.Registry.Rules()),
		}).Info("npzd: ecosystem set up")
		return nil
	}
}

// Tracers returns the names of the tracers the features enable, in
// registration order.
func (f Features) Tracers() []string {
	tracers := []string{Phosphate, Phytoplankton, Zooplankton, Detritus}
	if f.Carbon {
		tracers = append(tracers, DIC, Alkalinity)
	}
	if f.Nitrogen {
		tracers = append(tracers, Nitrate, DOP, DON, Diazotroph)
	}
	if f.Calcifiers {
		tracers = append(tracers, Coccolithophore, CaCO3)
	}
	return tracers
}

type ruleSpec struct {
	kind         RuleKind
	source, sink string
	ratio        float64
	label        string
}

func (d *NPZD) registerEcosystem() error {
	p, f := d.Params, d.Features
	pn, cn := p.RedfieldPN, p.RedfieldCN()

	rules := []ruleSpec{
		{PrimaryProduction, Phosphate, Phytoplankton, pn, "Primary production"},
		{Recycling, Phytoplankton, Phosphate, pn, "Fast recycling"},
		{Mortality, Phytoplankton, Detritus, 1, "Mortality"},
		{Grazing, Phytoplankton, Zooplankton, 1, "Grazing"},
		{SloppyFeeding, Phytoplankton, Detritus, 1, "Sloppy feeding"},
		{SelfGrazing, Zooplankton, Zooplankton, 1, "Grazing"},
		{SloppyFeeding, Zooplankton, Detritus, 1, "Sloppy feeding"},
		{Excretion, Zooplankton, Phosphate, pn, "Excretion"},
		{Mortality, Zooplankton, Detritus, 1, "Mortality"},
		{Grazing, Detritus, Zooplankton, 1, "Grazing"},
		{SloppyFeeding, Detritus, Detritus, 1, "Sloppy feeding"},
		{Recycling, Detritus, Phosphate, pn, "Remineralization"},
	}
	var surface []ruleSpec
	if f.Carbon {
		rules = append(rules,
			ruleSpec{NutrientUptake, DIC, Phytoplankton, cn, "Primary production"},
			ruleSpec{NutrientRelease, Phytoplankton, DIC, cn, "Fast recycling"},
			ruleSpec{NutrientRelease, Detritus, DIC, cn, "Remineralization"},
			ruleSpec{ExcretionRelease, Zooplankton, DIC, cn, "Excretion"},
		)
		surface = append(surface, ruleSpec{SurfaceFlux, CO2, DIC, 1, "Air-sea gas exchange"})
		if !f.Calcifiers {
			rules = append(rules,
				ruleSpec{CalciteProduction, Phytoplankton, CaCO3, 1, "Calcite production"},
				ruleSpec{CalciteProduction, Zooplankton, CaCO3, 1, "Calcite production"},
			)
		}
	}
	if f.Nitrogen {
		rules = append(rules,
			ruleSpec{PrimaryProduction, Phosphate, Diazotroph, pn, "Primary production"},
			ruleSpec{Structural, Nitrate, Diazotroph, 1, "Primary production"},
			ruleSpec{Structural, DOP, Diazotroph, 1, "Primary production"},
			ruleSpec{Structural, DON, Diazotroph, 1, "Primary production"},
			ruleSpec{Recycling, Diazotroph, Phosphate, pn, "Fast recycling"},
			ruleSpec{NutrientRelease, Diazotroph, Nitrate, 1, "Fast recycling"},
			ruleSpec{Structural, Diazotroph, DON, 1, "Fast recycling"},
			ruleSpec{Structural, Diazotroph, DOP, 1, "Fast recycling"},
			ruleSpec{Mortality, Diazotroph, Detritus, 1, "Mortality"},
			ruleSpec{Grazing, Diazotroph, Zooplankton, 1, "Grazing"},
			ruleSpec{SloppyFeeding, Diazotroph, Detritus, 1, "Sloppy feeding"},
			ruleSpec{NutrientRelease, Detritus, Nitrate, 1, "Remineralization"},
			ruleSpec{ExcretionRelease, Zooplankton, Nitrate, 1, "Excretion"},
			ruleSpec{Structural, DOP, Phosphate, 1, "Remineralization"},
			ruleSpec{Structural, DON, Nitrate, 1, "Remineralization"},
			ruleSpec{Structural, DOP, Phytoplankton, 1, "Primary production"},
		)
		if f.Carbon {
			rules = append(rules,
				ruleSpec{NutrientUptake, DIC, Diazotroph, cn, "Primary production"},
				ruleSpec{NutrientRelease, Diazotroph, DIC, cn, "Fast recycling"},
			)
		}
	}
	if f.Calcifiers {
		rules = append(rules,
			ruleSpec{PrimaryProduction, Phosphate, Coccolithophore, pn, "Primary production"},
			ruleSpec{NutrientUptake, DIC, Coccolithophore, cn, "Primary production"},
			ruleSpec{Recycling, Coccolithophore, Phosphate, pn, "Fast recycling"},
			ruleSpec{NutrientRelease, Coccolithophore, DIC, cn, "Fast recycling"},
			ruleSpec{Mortality, Coccolithophore, Detritus, 1, "Mortality"},
			ruleSpec{Grazing, Coccolithophore, Zooplankton, 1, "Grazing"},
			ruleSpec{SloppyFeeding, Coccolithophore, Detritus, 1, "Sloppy feeding"},
			ruleSpec{CalciteProduction, Coccolithophore, CaCO3, 1, "Calcite production"},
			ruleSpec{CalciteProduction, Zooplankton, CaCO3, 1, "Calcite production"},
			ruleSpec{CalciteDissolution, CaCO3, DIC, 1, "Calcite dissolution"},
		)
	}

	for _, name := range f.Tracers() {
		if _, err := d.Registry.AddTracer(name); err != nil {
			return err
		}
	}
	for _, r := range rules {
		if err := d.Registry.Register(Rule{Kind: r.kind, Source: r.source, Sink: r.sink,
			Ratio: r.ratio, Label: r.label}); err != nil {
			return err
		}
	}
	for _, r := range surface {
		if err := d.Registry.RegisterSurfaceFlux(Rule{Kind: r.kind, Source: r.source, Sink: r.sink,
			Ratio: r.ratio, Label: r.label}); err != nil {
			return err
		}
	}
	return nil
}

// initTracers creates the tracer arrays from the initial conditions.
func (d *NPZD) initTracers(initial Tracers) error {
	g := d.Grid
	d.Tracers = make(Tracers)
	for name := range initial {
		if _, ok := d.Registry.ID(name); !ok {
			return fmt.Errorf("npzd: initial conditions for unknown tracer %q", name)
		}
	}
	for _, name := range d.Registry.Tracers() {
		a := sparse.ZerosDense(g.Nx, g.Ny, g.Nz)
		if init, ok := initial[name]; ok {
			if err := checkShape("initial "+name, init, g.Nx, g.Ny, g.Nz); err != nil {
				return err
			}
			copy(a.Elements, init.Elements)
		}
		d.Tracers[name] = a
	}
	d.Tracers.clamp(d.Params.TracerMinimum)
	return nil
}

// buildTables builds the plankton, sinking and grazing tables.
func (d *NPZD) buildTables() error {
	p, f, g, reg := d.Params, d.Features, d.Grid, d.Registry
	id := func(name string) int {
		i, ok := reg.ID(name)
		if !ok {
			return -1
		}
		return i
	}
	e := &ecosystem{
		zoo:           id(Zooplankton),
		det:           id(Detritus),
		dic:           id(DIC),
		alk:           id(Alkalinity),
		caco3:         id(CaCO3),
		calciteFactor: p.CalciteRatio * p.RedfieldCN(),
		dissolution:   p.CalciteDissolution * (1 - p.CalciteSaturation),
		satZoo:        p.SaturationGrazing * p.RedfieldPN,
	}
	e.implicitCalcite = f.Carbon && !f.Calcifiers

	e.plankton = []Plankton{{
		Name:      Phytoplankton,
		MaxGrowth: p.MaxGrowthPhytoplankton,
		Limits:    []limitation.Kernel{{Nutrient: Phosphate, HalfSaturation: p.SaturationN / p.RedfieldPN}},
		Recycling: p.RecyclingPhytoplankton,
		Mortality: p.MortalityPhytoplankton,
	}}
	prefs := map[string]float64{
		Phytoplankton: p.PreferencePhytoplankton,
		Zooplankton:   p.PreferenceZooplankton,
		Detritus:      p.PreferenceDetritus,
	}
	if f.Nitrogen {
		e.plankton = append(e.plankton, Plankton{
			Name:       Diazotroph,
			Diazotroph: true,
			MaxGrowth:  p.MaxGrowthPhytoplankton,
			Limits: []limitation.Kernel{
				{Nutrient: Phosphate, HalfSaturation: p.SaturationN / p.RedfieldPN},
				{Nutrient: Nitrate, HalfSaturation: p.SaturationN},
			},
			Recycling: p.RecyclingDiazotroph,
			Mortality: p.MortalityDiazotroph,
		})
		prefs[Diazotroph] = p.PreferenceDiazotroph
	}
	if f.Calcifiers {
		e.plankton = append(e.plankton, Plankton{
			Name:      Coccolithophore,
			MaxGrowth: p.MaxGrowthCoccolithophore,
			Limits:    []limitation.Kernel{{Nutrient: Phosphate, HalfSaturation: p.SaturationNC / p.RedfieldPN}},
			Recycling: p.RecyclingCoccolithophore,
			Mortality: p.MortalityCoccolithophore,
		})
		prefs[Coccolithophore] = p.PreferenceCoccolithophore
	}
	for i := range e.plankton {
		pl := &e.plankton[i]
		pl.id = id(pl.Name)
		for _, k := range pl.Limits {
			lid := id(k.Nutrient)
			if lid < 0 {
				return fmt.Errorf("npzd: %s is limited by unknown tracer %q", pl.Name, k.Nutrient)
			}
			pl.limitIDs = append(pl.limitIDs, lid)
		}
		for _, r := range reg.Rules() {
			if (r.Kind == PrimaryProduction || r.Kind == NutrientUptake) && r.sink == pl.id {
				pl.uptake = append(pl.uptake, r.source)
			}
		}
	}

	var err error
	e.grazer, err = grazing.New(prefs, e.satZoo, p.AssimilationEfficiency, p.GrowthEfficiency)
	if err != nil {
		return fmt.Errorf("npzd: %v", err)
	}
	for _, name := range e.grazer.Prey {
		e.preyIDs = append(e.preyIDs, id(name))
	}

	detritus := SinkingSpecies{
		Name:     Detritus,
		Speed:    sinkingSpeed(g, p.SinkingDetritus, p.SinkingIncrease, p.SinkingMaxDepth),
		Products: []Product{{Name: Phosphate, Ratio: p.RedfieldPN}},
	}
	if f.Carbon {
		detritus.Products = append(detritus.Products, Product{Name: DIC, Ratio: p.RedfieldCN()})
	}
	if f.Nitrogen {
		detritus.Products = append(detritus.Products, Product{Name: Nitrate, Ratio: 1})
	}
	e.sinking = []SinkingSpecies{detritus}
	if f.Calcifiers {
		e.sinking = append(e.sinking, SinkingSpecies{
			Name:     CaCO3,
			Speed:    sinkingSpeed(g, p.SinkingCaCO3, p.SinkingIncreaseCaCO3, p.SinkingMaxDepth),
			Products: []Product{{Name: DIC, Ratio: 1}, {Name: Alkalinity, Ratio: 2}},
		})
	}
	for i := range e.sinking {
		s := &e.sinking[i]
		s.id = id(s.Name)
		for j := range s.Products {
			s.Products[j].id = id(s.Products[j].Name)
			if s.Products[j].id < 0 {
				return fmt.Errorf("npzd: %s remineralizes into unknown tracer %q", s.Name, s.Products[j].Name)
			}
		}
	}

	if e.implicitCalcite {
		e.profiles = make([]*calcite.Profile, g.columns())
		for pt := range e.profiles {
			e.profiles[pt] = calcite.NewProfile(g.ZTop, g.Dz, g.Bottom[pt], p.CalciteDepth)
		}
	}
	d.eco = e
	d.state = nil
	return nil
}

// sinkingSpeed returns (w0 + dw × min(depth, zmax)) / dz × mask, where depth
// is the depth of the bottom of each cell.
func sinkingSpeed(g *Grid, w0, dw, zmax float64) *sparse.DenseArray {
	w := sparse.ZerosDense(g.Nx, g.Ny, g.Nz)
	for pt := 0; pt < g.columns(); pt++ {
		for k := 0; k < g.Nz; k++ {
			i := pt*g.Nz + k
			depth := g.ZTop[k] + g.Dz[k]
			w.Elements[i] = (w0 + dw*math.Min(depth, zmax)) / g.Dz[k] * g.Mask.Elements[i]
		}
	}
	return w
}

// Plankton returns the phytoplankton types of the ecosystem.
func (d *NPZD) Plankton() []Plankton { return d.eco.plankton }

// Sinking returns the sinking species of the ecosystem.
func (d *NPZD) Sinking() []SinkingSpecies { return d.eco.sinking }

// Preferences returns the normalized grazing preferences of zooplankton.
func (d *NPZD) Preferences() map[string]float64 {
	o := make(map[string]float64)
	for i, name := range d.eco.grazer.Prey {
		o[name] = d.eco.grazer.Preferences[i]
	}
	return o
}

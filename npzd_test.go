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
	"io/ioutil"
	"math"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

const testTolerance = 1e-10

func different(a, b, tolerance float64) bool {
	if a == b {
		return false
	}
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

// uniform returns initial conditions with the same value in every cell.
func uniform(g *Grid, values map[string]float64) Tracers {
	o := make(Tracers)
	for name, v := range values {
		a := sparse.ZerosDense(g.Nx, g.Ny, g.Nz)
		for i := range a.Elements {
			a.Elements[i] = v
		}
		o[name] = a
	}
	return o
}

// zeroRates returns p with all biological and sinking rates set to zero.
func zeroRates(p Params) Params {
	p.MaxGrowthPhytoplankton = 0
	p.MaxGrowthCoccolithophore = 0
	p.RecyclingPhytoplankton = 0
	p.RecyclingDiazotroph = 0
	p.RecyclingCoccolithophore = 0
	p.RemineralizationDetritus = 0
	p.MortalityPhytoplankton = 0
	p.MortalityDiazotroph = 0
	p.MortalityCoccolithophore = 0
	p.QuadraticMortalityZooplankton = 0
	p.MaxGrazing = 0
	p.SinkingDetritus = 0
	p.SinkingIncrease = 0
	p.SinkingCaCO3 = 0
	p.SinkingIncreaseCaCO3 = 0
	p.CalciteDissolution = 0
	return p
}

var testInitial = map[string]float64{
	Phosphate:       2.17,
	Phytoplankton:   0.14,
	Zooplankton:     0.014,
	Detritus:        0.1,
	DIC:             2000,
	Alkalinity:      2300,
	Nitrate:         30,
	DOP:             0.1,
	DON:             0.1,
	Diazotroph:      0.05,
	Coccolithophore: 0.1,
	CaCO3:           0.1,
}

// testModel returns an initialized model on grid g with initial
// concentrations from values for the tracers that exist in the
// configuration.
func testModel(t *testing.T, g *Grid, p Params, f Features, values map[string]float64, dtMom, dtBio float64, run ...DomainManipulator) *NPZD {
	enabled := make(map[string]float64)
	for _, name := range f.Tracers() {
		if v, ok := values[name]; ok {
			enabled[name] = v
		}
	}
	init := uniform(g, enabled)
	d := &NPZD{
		Grid:      g,
		Forcing:   NewUniformForcing(g, 15, 200, p.LightAttenuationWater),
		DtMom:     dtMom,
		DtBio:     dtBio,
		Log:       quietLogger(),
		InitFuncs: []DomainManipulator{Setup(p, f, init)},
		RunFuncs:  run,
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestSetup(t *testing.T) {
	g := NewGrid(2, 3, []float64{100, 50, 25}, 1e6)
	d := testModel(t, g, DefaultParams(), Features{}, testInitial, 3600, 900)

	want := []string{Phosphate, Phytoplankton, Zooplankton, Detritus}
	if len(d.Registry.Tracers()) != len(want) {
		t.Fatalf("tracers = %v, want %v", d.Registry.Tracers(), want)
	}
	for i, name := range want {
		if d.Registry.Tracers()[i] != name {
			t.Errorf("tracer %d = %s, want %s", i, d.Registry.Tracers()[i], name)
		}
		if d.Tracers[name].Elements[0] != testInitial[name] {
			t.Errorf("%s initial value = %g", name, d.Tracers[name].Elements[0])
		}
	}
	if !d.Registry.Sealed() {
		t.Error("registry is not sealed after setup")
	}
	if err := d.Registry.Register(Rule{Kind: Mortality, Source: Phytoplankton, Sink: Detritus}); err != ErrSealed {
		t.Errorf("registering after setup: err = %v, want ErrSealed", err)
	}
	if len(d.Registry.SurfaceRules()) != 0 {
		t.Errorf("surface rules without carbon: %v", d.Registry.SurfaceRules())
	}
	if len(d.Sinking()) != 1 || d.Sinking()[0].Name != Detritus {
		t.Errorf("sinking species = %v", d.Sinking())
	}
	if len(d.Plankton()) != 1 || d.Plankton()[0].Name != Phytoplankton {
		t.Errorf("plankton = %v", d.Plankton())
	}
}

func TestSetupFeatures(t *testing.T) {
	g := NewGrid(1, 1, []float64{100, 50}, 1e6)
	d := testModel(t, g, DefaultParams(), Features{Carbon: true, Nitrogen: true, Calcifiers: true}, testInitial, 3600, 900)
	for name := range testInitial {
		if _, ok := d.Tracers[name]; !ok {
			t.Errorf("missing tracer %s", name)
		}
	}
	if len(d.Registry.SurfaceRules()) != 1 || d.Registry.SurfaceRules()[0].Sink != DIC {
		t.Errorf("surface rules = %v", d.Registry.SurfaceRules())
	}
	prefs := d.Preferences()
	if len(prefs) != 5 {
		t.Errorf("preferences = %v", prefs)
	}
	var sum float64
	for _, v := range prefs {
		sum += v
	}
	if different(sum, 1, 1e-14) {
		t.Errorf("preferences sum to %g", sum)
	}
	if len(d.Sinking()) != 2 {
		t.Errorf("sinking species = %v", d.Sinking())
	}
}

func TestSetupErrors(t *testing.T) {
	g := NewGrid(1, 1, []float64{100, 50}, 1e6)
	tests := []struct {
		name  string
		p     Params
		f     Features
		init  Tracers
		dtMom float64
		dtBio float64
	}{
		{name: "calcifiers without carbon", p: DefaultParams(), f: Features{Calcifiers: true}, dtMom: 3600, dtBio: 900},
		{name: "bio timestep too long", p: DefaultParams(), dtMom: 900, dtBio: 3600},
		{name: "unknown initial tracer", p: DefaultParams(), init: uniform(g, map[string]float64{DIC: 1}), dtMom: 3600, dtBio: 900},
		{name: "zero preferences", p: func() Params {
			p := DefaultParams()
			p.PreferencePhytoplankton, p.PreferenceZooplankton, p.PreferenceDetritus = 0, 0, 0
			return p
		}(), dtMom: 3600, dtBio: 900},
		{name: "invalid parameter", p: func() Params {
			p := DefaultParams()
			p.AssimilationEfficiency = 1.5
			return p
		}(), dtMom: 3600, dtBio: 900},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d := &NPZD{
				Grid:      g,
				Forcing:   NewUniformForcing(g, 15, 200, 0.04),
				DtMom:     test.dtMom,
				DtBio:     test.dtBio,
				Log:       quietLogger(),
				InitFuncs: []DomainManipulator{Setup(test.p, test.f, test.init)},
			}
			if err := d.Init(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestTracerMinimum(t *testing.T) {
	g := NewGrid(2, 2, []float64{200, 100, 50, 25}, 1e6)
	p := DefaultParams()
	p.MaxGrazing = 100 / day
	p.QuadraticMortalityZooplankton = 50 / day
	p.RemineralizationDetritus = 10 / day
	values := map[string]float64{
		Phosphate:     0.001,
		Phytoplankton: 0,
		Zooplankton:   5,
		Detritus:      1e-20,
		DIC:           1,
		Alkalinity:    0,
		Nitrate:       0,
	}
	d := testModel(t, g, p, Features{Carbon: true, Nitrogen: true}, values, 86400, 3600,
		Biogeochemistry(), SteadyStateConvergenceCheck(4, 0))
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	for name, a := range d.Tracers {
		for i, v := range a.Elements {
			if !(v >= p.TracerMinimum) {
				t.Errorf("%s[%d] = %g is below the minimum", name, i, v)
			}
		}
	}
}

func TestConservation(t *testing.T) {
	for _, test := range []struct {
		name string
		f    Features
	}{
		{name: "default"},
		{name: "carbon", f: Features{Carbon: true}},
		{name: "nitrogen", f: Features{Carbon: true, Nitrogen: true}},
		{name: "calcifiers", f: Features{Carbon: true, Nitrogen: true, Calcifiers: true}},
	} {
		t.Run(test.name, func(t *testing.T) {
			g := NewGrid(2, 1, []float64{400, 100, 50, 25}, 1e6)
			d := testModel(t, g, DefaultParams(), test.f, testInitial, 3600, 900,
				Biogeochemistry(), SteadyStateConvergenceCheck(3, 0))
			p0, c0 := d.PhosphorusInventory(), d.CarbonInventory()
			if err := d.Run(); err != nil {
				t.Fatal(err)
			}
			p1, c1 := d.PhosphorusInventory(), d.CarbonInventory()
			if different(p0, p1, testTolerance) {
				t.Errorf("phosphorus: %g before, %g after", p0, p1)
			}
			if test.f.Carbon && different(c0, c1, testTolerance) {
				t.Errorf("carbon: %g before, %g after", c0, c1)
			}
			if d.Tracers[Detritus].Elements[0] == testInitial[Detritus] {
				t.Error("the model did not change the bottom detritus concentration")
			}
		})
	}
}

func TestSinking(t *testing.T) {
	dz := []float64{40, 20} // bottom, surface
	g := NewGrid(1, 1, dz, 1)
	p := zeroRates(DefaultParams())
	const w0 = 1e-4 // m/s
	p.SinkingDetritus = w0
	const dtMom, dtBio, nbio = 3600., 600., 6
	d := testModel(t, g, p, Features{}, map[string]float64{
		Phosphate: 1, Phytoplankton: 1, Zooplankton: 1, Detritus: 1,
	}, dtMom, dtBio, Biogeochemistry(), SteadyStateConvergenceCheck(1, 0))
	p0 := d.PhosphorusInventory()
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}

	rate := w0 / dz[1] * dtBio // fraction lost per sub-step from the surface layer
	remaining := math.Pow(1-rate, nbio)
	if v := d.Tracers[Detritus].Get(0, 0, 1); different(v, remaining, testTolerance) {
		t.Errorf("surface detritus = %g, want %g", v, remaining)
	}
	export := d.Diagnostics.Export[Detritus].Get(0, 0, 1)
	if want := (1 - remaining) * dz[1] / nbio; different(export, want, testTolerance) {
		t.Errorf("surface export = %g, want %g", export, want)
	}
	imp := d.Diagnostics.Import[Detritus].Get(0, 0, 0)
	if different(imp*dz[0]*dtBio, export, testTolerance) {
		t.Errorf("bottom import × dz × dt = %g, surface export = %g", imp*dz[0]*dtBio, export)
	}
	if v := d.Diagnostics.Export[Detritus].Get(0, 0, 0); v != 0 {
		t.Errorf("material left the bottom layer: %g", v)
	}
	if v := d.Tracers[Phosphate].Get(0, 0, 0); !(v > 1) {
		t.Errorf("bottom phosphate = %g; sinking material was not remineralized", v)
	}
	if v := d.Tracers[Phosphate].Get(0, 0, 1); v != 1 {
		t.Errorf("surface phosphate = %g, want 1", v)
	}
	if p1 := d.PhosphorusInventory(); different(p0, p1, testTolerance) {
		t.Errorf("phosphorus: %g before, %g after", p0, p1)
	}
}

// tendency is a Transport returning fixed tendencies.
type tendency Tracers

func (t tendency) Tendency(_ *NPZD) (Tracers, error) { return Tracers(t), nil }

func TestZeroRates(t *testing.T) {
	g := NewGrid(2, 2, []float64{100, 50, 25}, 1e6)
	p := zeroRates(DefaultParams())
	f := Features{Carbon: true, Nitrogen: true, Calcifiers: true}
	d := testModel(t, g, p, f, testInitial, 3600, 1200,
		AddTransport(), Biogeochemistry(), ClampMinimum(), SteadyStateConvergenceCheck(1, 0))
	tend := uniform(g, map[string]float64{Phosphate: 0.01, Phytoplankton: 0.002, DIC: -3})
	d.Transport = tendency(tend)
	before := d.Tracers.Copy()
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	for name, a := range d.Tracers {
		for i, v := range a.Elements {
			want := before[name].Elements[i]
			if td, ok := tend[name]; ok {
				want += td.Elements[i]
			}
			if different(v, want, 1e-12) {
				t.Errorf("%s[%d] = %g, want %g", name, i, v, want)
			}
		}
	}
}

// phi is the light-limitation primitive written out in full.
func phi(u float64) float64 {
	s := math.Sqrt(1 + u*u)
	return math.Log(u+s) - u/(1+s)
}

func TestScenario(t *testing.T) {
	dz := []float64{50, 50}
	g := NewGrid(1, 1, dz, 1)
	p := DefaultParams()
	p.TracerMinimum = 1e-6
	p.SinkingDetritus, p.SinkingIncrease = 0, 0
	const dt = 3600.
	// Dim enough that growth in the lower layer is limited by light
	// and growth at the surface by phosphate.
	const temperature, swr = 15., 1e-3
	d := testModel(t, g, p, Features{}, map[string]float64{
		Phytoplankton: 1, Zooplankton: 0.1, Detritus: 0, Phosphate: 2.17,
	}, dt, dt, Biogeochemistry(), SteadyStateConvergenceCheck(1, 0))
	d.Forcing.SWR[0] = swr
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}

	type result struct {
		phyto, zoo, det, po4 float64
		lightLimited         bool
	}
	layer := func(light float64) result {
		P, Z, D, N := 1., 0.1, p.TracerMinimum, 2.17
		bct := math.Pow(p.TemperatureBase, p.TemperatureCoefficient*temperature)
		jmax := p.MaxGrowthPhytoplankton * bct
		gd := jmax * dt
		att := dz[1] * (p.LightAttenuationWater + p.LightAttenuationPhytoplankton*P)
		u1 := light / gd
		u2 := u1 * math.Exp(-att)
		avej := gd * (phi(u1) - phi(u2)) / att
		u := N / (p.SaturationN/p.RedfieldPN + N)
		npp := math.Min(avej, u*jmax) * P
		lightLimited := avej < u*jmax
		rec := p.RecyclingPhytoplankton * bct * P
		mort := p.MortalityPhytoplankton * P
		mortZ := p.QuadraticMortalityZooplankton * Z * Z

		prefSum := p.PreferencePhytoplankton + p.PreferenceZooplankton + p.PreferenceDetritus
		pP := p.PreferencePhytoplankton / prefSum
		pZ := p.PreferenceZooplankton / prefSum
		pD := p.PreferenceDetritus / prefSum
		theta := pP*P + pZ*Z + pD*D + p.SaturationGrazing*p.RedfieldPN
		gmax := p.MaxGrazing * bct
		gP := gmax * pP / theta * P * Z
		gZ := gmax * pZ / theta * Z * Z
		a, e := p.AssimilationEfficiency, p.GrowthEfficiency
		excretion := a * (1 - e) * (gP + gZ)

		return result{
			phyto: P + (npp-rec-mort-gP)*dt,
			zoo:   Z + (a*gP+a*gZ-gZ-excretion-mortZ)*dt,
			det:   D + (mort+mortZ+(1-a)*(gP+gZ))*dt,
			po4:   N + p.RedfieldPN*(rec+excretion-npp)*dt,

			lightLimited: lightLimited,
		}
	}

	surface := layer(swr)
	lightBelow := swr * math.Exp(-p.LightAttenuationPhytoplankton*1*dz[1]) * math.Exp(-dz[1]*p.LightAttenuationWater)
	below := layer(lightBelow)
	if surface.lightLimited || !below.lightLimited {
		t.Fatalf("light limitation: surface %v, below %v; want false, true", surface.lightLimited, below.lightLimited)
	}

	for k, want := range []result{below, surface} {
		have := result{
			phyto: d.Tracers[Phytoplankton].Get(0, 0, k),
			zoo:   d.Tracers[Zooplankton].Get(0, 0, k),
			det:   d.Tracers[Detritus].Get(0, 0, k),
			po4:   d.Tracers[Phosphate].Get(0, 0, k),
		}
		for _, c := range []struct {
			name       string
			have, want float64
		}{
			{Phytoplankton, have.phyto, want.phyto},
			{Zooplankton, have.zoo, want.zoo},
			{Detritus, have.det, want.det},
			{Phosphate, have.po4, want.po4},
		} {
			if different(c.have, c.want, testTolerance) {
				t.Errorf("layer %d %s = %.15g, want %.15g", k, c.name, c.have, c.want)
			}
		}
	}
	if !(surface.phyto > below.phyto) {
		t.Errorf("surface phytoplankton (%g) should grow faster than deeper phytoplankton (%g)", surface.phyto, below.phyto)
	}
}

func TestDryColumn(t *testing.T) {
	g := NewGrid(2, 1, []float64{100, 50, 25}, 1e6)
	mask := g.Mask.Copy()
	for k := 0; k < g.Nz; k++ {
		mask.Elements[mask.Index1d(1, 0, k)] = 0 // land column
	}
	mask.Elements[mask.Index1d(0, 0, 0)] = 0 // shallow column
	if err := g.SetMask(mask); err != nil {
		t.Fatal(err)
	}
	if g.Bottom[0] != 1 || g.Bottom[1] != -1 {
		t.Fatalf("bottom = %v", g.Bottom)
	}
	d := testModel(t, g, DefaultParams(), Features{Carbon: true}, testInitial, 3600, 900,
		Biogeochemistry(), ClampMinimum(), SteadyStateConvergenceCheck(2, 0))
	p0, c0 := d.PhosphorusInventory(), d.CarbonInventory()
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	for name, a := range d.Tracers {
		for i, v := range a.Elements {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < d.Params.TracerMinimum {
				t.Errorf("%s[%d] = %g", name, i, v)
			}
		}
	}
	if p1 := d.PhosphorusInventory(); different(p0, p1, testTolerance) {
		t.Errorf("phosphorus: %g before, %g after", p0, p1)
	}
	if c1 := d.CarbonInventory(); different(c0, c1, testTolerance) {
		t.Errorf("carbon: %g before, %g after", c0, c1)
	}
}

func TestSetMaskInvalid(t *testing.T) {
	g := NewGrid(1, 1, []float64{100, 50, 25}, 1e6)
	mask := g.Mask.Copy()
	mask.Elements[mask.Index1d(0, 0, 1)] = 0 // land between two wet cells
	if err := g.SetMask(mask); err == nil {
		t.Error("expected an error for a wet cell below land")
	}
}

func TestSurfaceFlux(t *testing.T) {
	dz := []float64{100, 50}
	g := NewGrid(2, 1, dz, 1e6)
	d := testModel(t, g, zeroRates(DefaultParams()), Features{Carbon: true}, testInitial, 3600, 900,
		Biogeochemistry(), SteadyStateConvergenceCheck(1, 0))
	const flux = 1e-3
	d.GasFlux = ConstantGasFlux{CO2: flux}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	want := testInitial[DIC] + flux*3600/dz[1]
	if v := d.Tracers[DIC].Get(1, 0, 1); different(v, want, 1e-12) {
		t.Errorf("surface DIC = %g, want %g", v, want)
	}
	if v := d.Tracers[DIC].Get(1, 0, 0); different(v, testInitial[DIC], 1e-12) {
		t.Errorf("deep DIC = %g, want %g", v, testInitial[DIC])
	}
}

func TestCyclicBoundary(t *testing.T) {
	g := NewGrid(6, 1, []float64{10}, 1)
	d := testModel(t, g, DefaultParams(), Features{}, testInitial, 3600, 900, CyclicBoundary())
	a := d.Tracers[Phosphate]
	for i := 0; i < g.Nx; i++ {
		a.Set(float64(i+1), i, 0, 0)
	}
	if err := d.RunFuncs[0](d); err != nil {
		t.Fatal(err)
	}
	want := []float64{3, 4, 3, 4, 3, 4}
	for i, w := range want {
		if v := a.Get(i, 0, 0); v != w {
			t.Errorf("x=%d: have %g, want %g", i, v, w)
		}
	}
}

func TestAddTransportUnknownTracer(t *testing.T) {
	g := NewGrid(1, 1, []float64{10}, 1)
	d := testModel(t, g, DefaultParams(), Features{}, testInitial, 3600, 900, AddTransport())
	d.Transport = tendency(uniform(g, map[string]float64{DIC: 1}))
	if err := d.RunFuncs[0](d); err == nil {
		t.Error("expected an error for a tendency of an unknown tracer")
	}
}

func TestSteadyStateConvergenceCheck(t *testing.T) {
	g := NewGrid(1, 1, []float64{10}, 1)
	d := testModel(t, g, zeroRates(DefaultParams()), Features{}, testInitial, 3600, 900,
		Biogeochemistry(), SteadyStateConvergenceCheck(0, 1e-8))
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	if d.Step != 2 {
		t.Errorf("converged after %d steps, want 2", d.Step)
	}
	if d.Time != 2*3600 {
		t.Errorf("time = %g", d.Time)
	}
}

func TestImplicitCalciteDepletedDIC(t *testing.T) {
	for _, test := range []struct {
		dic        float64
		production bool
	}{
		{dic: testInitial[DIC], production: true},
		{dic: 0, production: false},
	} {
		g := NewGrid(1, 1, []float64{50}, 1e6)
		values := make(map[string]float64)
		for k, v := range testInitial {
			values[k] = v
		}
		values[DIC] = test.dic
		d := testModel(t, g, DefaultParams(), Features{Carbon: true}, values, 3600, 900,
			Biogeochemistry(), SteadyStateConvergenceCheck(1, 0))
		if err := d.Run(); err != nil {
			t.Fatal(err)
		}
		rate := d.Accumulators().CalciteProduction[0]
		if test.production && !(rate > 0) {
			t.Errorf("DIC=%g: calcite production = %g, want > 0", test.dic, rate)
		}
		if !test.production && rate != 0 {
			t.Errorf("DIC=%g: calcite production = %g, want 0", test.dic, rate)
		}
		if v := d.Tracers[DIC].Elements[0]; v < d.Params.TracerMinimum {
			t.Errorf("DIC=%g: DIC fell to %g", test.dic, v)
		}
	}
}

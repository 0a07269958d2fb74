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

package npzdutil

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/npzd"
)

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "npzdutil_test")
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

// setCfg sets configuration values and returns a function that restores
// the previous values.
func setCfg(vals map[string]interface{}) func() {
	old := make(map[string]interface{}, len(vals))
	for k, v := range vals {
		old[k] = Cfg.Get(k)
		Cfg.Set(k, v)
	}
	return func() {
		for k, v := range old {
			Cfg.Set(k, v)
		}
	}
}

func TestSetCfg(t *testing.T) {
	outputFile, numSteps := Cfg.GetString("OutputFile"), Cfg.GetInt("NumSteps")
	restore := setCfg(map[string]interface{}{
		"OutputFile": "/nonexistent/out.nc",
		"NumSteps":   99,
	})
	if Cfg.GetInt("NumSteps") != 99 {
		t.Errorf("NumSteps = %d, want 99", Cfg.GetInt("NumSteps"))
	}
	restore()
	if v := Cfg.GetString("OutputFile"); v != outputFile {
		t.Errorf("OutputFile = %q after restoring, want %q", v, outputFile)
	}
	if v := Cfg.GetInt("NumSteps"); v != numSteps {
		t.Errorf("NumSteps = %d after restoring, want %d", v, numSteps)
	}
}

func TestVersion(t *testing.T) {
	buf := new(bytes.Buffer)
	Root.SetOutput(buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := "NPZD v" + npzd.Version; !strings.Contains(buf.String(), want) {
		t.Errorf("have %q, want %q", buf.String(), want)
	}
}

func TestRun(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	outputFile := filepath.Join(dir, "out.nc")

	defer setCfg(map[string]interface{}{
		"OutputFile":      outputFile,
		"NumSteps":        2,
		"Carbon":          true,
		"Grid.Nx":         2,
		"Grid.Dz":         []float64{200, 100, 50},
		"Forcing.CO2Flux": 1e-4,
	})()

	buf := new(bytes.Buffer)
	Root.SetOutput(buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"run"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "simulation complete") {
		t.Errorf("log output is missing the completion message:\n%s", buf.String())
	}

	f, err := os.Open(outputFile)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	out, err := npzd.ReadInitialConditions(f)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{npzd.Phosphate, npzd.Phytoplankton, npzd.Zooplankton, npzd.Detritus, npzd.DIC, npzd.Alkalinity} {
		a, ok := out[name]
		if !ok {
			t.Errorf("output is missing %s", name)
			continue
		}
		if a.Shape[0] != 2 || a.Shape[1] != 1 || a.Shape[2] != 3 {
			t.Errorf("%s has shape %v", name, a.Shape)
		}
	}
	if _, ok := out[npzd.Nitrate]; ok {
		t.Error("output includes nitrate, which is not enabled")
	}

	b, err := ioutil.ReadFile(filepath.Join(dir, "out.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "npzd: conservation") {
		t.Errorf("log file is missing conservation messages:\n%s", b)
	}
}

func TestRules(t *testing.T) {
	buf := new(bytes.Buffer)
	Root.SetOutput(buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"rules", "--Nitrogen"})
	defer Cfg.Set("Nitrogen", false)
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"po4 → phytoplankton (primary production): Primary production",
		"po4 → diazotroph (primary production): Primary production",
		"detritus → no3 (nutrient release): Remineralization",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output is missing %q:\n%s", want, buf.String())
		}
	}
	if strings.Contains(buf.String(), "Surface fluxes") {
		t.Errorf("surface fluxes without the carbon cycle:\n%s", buf.String())
	}
}

func TestConfigFile(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)
	cfgFile := filepath.Join(dir, "config.toml")
	err := ioutil.WriteFile(cfgFile, []byte(`
Carbon = true
DtMom = 86400.0
DtBio = 3600.0
OutputFile = "`+filepath.Join(dir, "out.nc")+`"

[Grid]
Nx = 3
Ny = 2
Dz = [100.0, 50.0, 25.0]
Area = 1.0e6

[InitialConcentrations]
po4 = 2.0
DIC = 2100.0
`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	cfg := viper.New()
	cfg.SetConfigFile(cfgFile)
	if err := cfg.ReadInConfig(); err != nil {
		t.Fatal(err)
	}
	c, err := ReadConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if c.Nx != 3 || c.Ny != 2 {
		t.Errorf("grid is %d×%d", c.Nx, c.Ny)
	}
	if len(c.Dz) != 3 || c.Dz[2] != 25 {
		t.Errorf("Dz = %v", c.Dz)
	}
	if !c.Features.Carbon || c.Features.Nitrogen {
		t.Errorf("features = %+v", c.Features)
	}
	if c.LogFile != filepath.Join(dir, "out.log") {
		t.Errorf("log file = %s", c.LogFile)
	}
	if c.DtMom != 86400 || c.DtBio != 3600 {
		t.Errorf("timesteps = %g, %g", c.DtMom, c.DtBio)
	}

	init, err := c.initialConditions(c.Grid())
	if err != nil {
		t.Fatal(err)
	}
	if len(init) != 2 {
		t.Errorf("initial conditions for %d tracers, want 2", len(init))
	}
	if v := init[npzd.DIC].Get(2, 1, 0); v != 2100 {
		t.Errorf("DIC = %g", v)
	}
}

func TestReadConfigErrors(t *testing.T) {
	base := func() *viper.Viper {
		cfg := viper.New()
		cfg.Set("Grid.Nx", 1)
		cfg.Set("Grid.Ny", 1)
		cfg.Set("Grid.Dz", []float64{10})
		cfg.Set("Grid.Area", 1.0)
		cfg.Set("DtMom", 3600.0)
		cfg.Set("DtBio", 900.0)
		cfg.Set("OutputFile", "out.nc")
		return cfg
	}
	if _, err := ReadConfig(base()); err != nil {
		t.Fatalf("valid configuration: %v", err)
	}
	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"no columns", "Grid.Nx", 0},
		{"no layers", "Grid.Dz", []float64{}},
		{"bad layers", "Grid.Dz", []string{"ten"}},
		{"no area", "Grid.Area", 0.0},
		{"no timestep", "DtBio", 0.0},
		{"no output", "OutputFile", ""},
		{"missing output directory", "OutputFile", "/nonexistent/directory/out.nc"},
		{"bad concentrations", "InitialConcentrations", "{po4: 1"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := base()
			cfg.Set(test.key, test.value)
			if _, err := ReadConfig(cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestInitialConditionsUnknownTracer(t *testing.T) {
	c := &Config{
		Nx: 1, Ny: 1, Dz: []float64{10}, Area: 1,
		InitialConcentrations: map[string]float64{"oxygen": 200},
	}
	if _, err := c.initialConditions(c.Grid()); err == nil {
		t.Error("expected an error")
	}
}

func TestToFloat64SliceE(t *testing.T) {
	want := []float64{1, 2.5, 3}
	for _, in := range []interface{}{
		[]float64{1, 2.5, 3},
		[]interface{}{int64(1), 2.5, "3"},
		[]string{"1", " 2.5", "3"},
		"[1, 2.5, 3]",
	} {
		have, err := toFloat64SliceE(in)
		if err != nil {
			t.Errorf("%#v: %v", in, err)
			continue
		}
		if len(have) != len(want) {
			t.Errorf("%#v: have %v, want %v", in, have, want)
			continue
		}
		for i := range want {
			if have[i] != want[i] {
				t.Errorf("%#v: have %v, want %v", in, have, want)
				break
			}
		}
	}
	if _, err := toFloat64SliceE(42); err == nil {
		t.Error("expected an error for an integer")
	}
}

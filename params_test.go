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
	"strings"
	"testing"
)

func TestParamsFromTOML(t *testing.T) {
	p, err := ParamsFromTOML(strings.NewReader(`
trcmin = 1e-6
zprefP = 2.0
max_grazing = 4.4e-6
`))
	if err != nil {
		t.Fatal(err)
	}
	if p.TracerMinimum != 1e-6 {
		t.Errorf("trcmin = %g", p.TracerMinimum)
	}
	if p.PreferencePhytoplankton != 2 {
		t.Errorf("zprefP = %g", p.PreferencePhytoplankton)
	}
	if p.MaxGrazing != 4.4e-6 {
		t.Errorf("max_grazing = %g", p.MaxGrazing)
	}
	if p.RedfieldPN != DefaultParams().RedfieldPN {
		t.Errorf("unspecified parameter changed: redfield_ratio_pn = %g", p.RedfieldPN)
	}
}

func TestParamsFromTOMLErrors(t *testing.T) {
	for _, s := range []string{
		"trcmin = ",
		"assimilation_efficiency = 1.5",
		"redfield_ratio_pn = 0.0",
		"wd0 = -1.0",
	} {
		if _, err := ParamsFromTOML(strings.NewReader(s)); err == nil {
			t.Errorf("%q: expected an error", s)
		}
	}
}

func TestRedfieldCN(t *testing.T) {
	p := DefaultParams()
	if different(p.RedfieldCN(), 7.1, 1e-14) {
		t.Errorf("C:N = %g", p.RedfieldCN())
	}
}

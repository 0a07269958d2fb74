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

// Package growth calculates light- and temperature-limited potential growth
// rates of phytoplankton, averaged over the thickness of an ocean model layer
// and over one biological timestep.
package growth

import "math"

// Lower bounds used to keep the growth integral finite in the dark,
// in masked cells and when the maximum growth rate is zero.
const (
	MinGrowthDose  = 1e-14 // minimum of maximum growth × timestep
	MinLightRatio  = 1e-6  // minimum of light / growth dose
	MinAttenuation = 1e-14 // minimum optical thickness of a layer
)

// TemperatureFactor returns base^(coefficient × min(temperature, cap)), the
// multiplier applied to temperature-dependent biological rates.
// Temperature is in °C.
func TemperatureFactor(base, coefficient, temperature, cap float64) float64 {
	return math.Pow(base, coefficient*math.Min(temperature, cap))
}

// phi is the primitive of the light-limitation curve integrated over
// the optical depth of a layer:
// ln(u + sqrt(1+u²)) - (sqrt(1+u²) - 1)/u.
// The second term is written as u/(1+sqrt(1+u²)) which is the same value
// without the cancellation at small u.
func phi(u float64) float64 {
	return math.Asinh(u) - u/(1+math.Sqrt(1+u*u))
}

// AverageJ returns the growth rate averaged over a layer with
// optical thickness attenuation, given growth dose gd (maximum growth
// rate × timestep) and the light at the top of the layer.
func AverageJ(gd, light, attenuation float64) float64 {
	gd = math.Max(gd, MinGrowthDose)
	u1 := math.Max(light/gd, MinLightRatio)
	u2 := u1 * math.Exp(-attenuation)
	return gd * (phi(u1) - phi(u2)) / math.Max(attenuation, MinAttenuation)
}

// Potential returns the maximum growth rate jmax [1/s] and the
// layer-averaged light-limited growth rate avej [1/s] for a phytoplankton
// type with maximum growth parameter maxGrowth [1/s], given temperature
// factor bct, light at the top of the layer [W/m²], the optical
// thickness of the layer, and the biological timestep dt [s].
func Potential(bct, light, attenuation, maxGrowth, dt float64) (jmax, avej float64) {
	jmax = maxGrowth * bct
	avej = AverageJ(jmax*dt, light, attenuation)
	return jmax, avej
}

// Diazotroph is the same as Potential except that the maximum growth
// rate of nitrogen fixers is reduced by factor and goes to zero when
// the temperature factor is below threshold.
func Diazotroph(bct, light, attenuation, maxGrowth, factor, threshold, dt float64) (jmax, avej float64) {
	jmax = math.Max(0, maxGrowth*factor*(bct-threshold))
	avej = AverageJ(jmax*dt, light, attenuation)
	return jmax, avej
}

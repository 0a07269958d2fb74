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
	"io"

	"github.com/BurntSushi/toml"
)

const day = 86400. // seconds

// Params holds the biological parameters of the ecosystem.
// Rates are per second.
type Params struct {
	// TracerMinimum is the floor applied to all tracer concentrations.
	TracerMinimum float64 `toml:"trcmin"`

	// Light attenuation [1/m, per unit concentration for plankton and calcite].
	LightAttenuationWater         float64 `toml:"light_attenuation_water"`
	LightAttenuationPhytoplankton float64 `toml:"light_attenuation_phytoplankton"`
	LightAttenuationCaCO3         float64 `toml:"light_attenuation_caco3"`

	// Temperature dependence: rates are multiplied by
	// TemperatureBase^(TemperatureCoefficient × T).
	TemperatureBase        float64 `toml:"temperature_base"`
	TemperatureCoefficient float64 `toml:"temperature_coefficient"`
	// TemperatureCap [°C] limits the temperature used for growth and grazing.
	TemperatureCap float64 `toml:"temperature_cap"`

	MaxGrowthPhytoplankton   float64 `toml:"max_growth_phytoplankton"`
	MaxGrowthCoccolithophore float64 `toml:"max_growth_coccolithophore"`
	// DiazotrophGrowthFactor scales phytoplankton maximum growth for diazotrophs.
	DiazotrophGrowthFactor float64 `toml:"diazotroph_growth_factor"`
	// DiazotrophThreshold is subtracted from the temperature factor of diazotrophs.
	DiazotrophThreshold float64 `toml:"diazotroph_threshold"`

	// Half-saturation constants for nutrient uptake [mmol N/m³].
	SaturationN  float64 `toml:"saturation_constant_n"`
	SaturationNC float64 `toml:"saturation_constant_nc"`

	// Redfield ratios.
	RedfieldPN float64 `toml:"redfield_ratio_pn"`
	RedfieldCP float64 `toml:"redfield_ratio_cp"`

	// Fast recycling of living plankton to nutrients.
	RecyclingPhytoplankton   float64 `toml:"fast_recycling_phytoplankton"`
	RecyclingDiazotroph      float64 `toml:"fast_recycling_diazotroph"`
	RecyclingCoccolithophore float64 `toml:"fast_recycling_coccolithophore"`
	// RemineralizationDetritus is the detritus remineralization rate.
	RemineralizationDetritus float64 `toml:"remineralization_detritus"`

	MortalityPhytoplankton   float64 `toml:"mortality_phytoplankton"`
	MortalityDiazotroph      float64 `toml:"mortality_diazotroph"`
	MortalityCoccolithophore float64 `toml:"mortality_coccolithophore"`
	// QuadraticMortalityZooplankton [m³/(mmol N s)].
	QuadraticMortalityZooplankton float64 `toml:"quadratic_mortality_zooplankton"`

	MaxGrazing float64 `toml:"max_grazing"`
	// SaturationGrazing is the half-saturation food concentration for
	// grazing; it is multiplied by the P:N ratio.
	SaturationGrazing float64 `toml:"saturation_constant_z_grazing"`
	// AssimilationEfficiency is the fraction of grazed food that is ingested.
	AssimilationEfficiency float64 `toml:"assimilation_efficiency"`
	// GrowthEfficiency is the fraction of ingested food used for growth.
	GrowthEfficiency float64 `toml:"zooplankton_growth_efficiency"`

	// Grazing preferences, normalized after setup.
	PreferencePhytoplankton   float64 `toml:"zprefP"`
	PreferenceZooplankton     float64 `toml:"zprefZ"`
	PreferenceDetritus        float64 `toml:"zprefDet"`
	PreferenceDiazotroph      float64 `toml:"zprefD"`
	PreferenceCoccolithophore float64 `toml:"zprefC"`

	// Detritus sinking speed is SinkingDetritus + SinkingIncrease × min(depth, SinkingMaxDepth) [m/s].
	SinkingDetritus float64 `toml:"wd0"`
	SinkingIncrease float64 `toml:"mw"`
	SinkingMaxDepth float64 `toml:"mwz"`
	// Calcite sinking speed, as for detritus.
	SinkingCaCO3         float64 `toml:"wc0"`
	SinkingIncreaseCaCO3 float64 `toml:"mw_c"`

	// CalciteRatio is the ratio of calcite to organic carbon in
	// material lost by calcifying plankton.
	CalciteRatio float64 `toml:"capr"`
	// CalciteDepth is the e-folding depth of calcite dissolution [m]
	// when calcite is not carried as a tracer.
	CalciteDepth float64 `toml:"dcaco3"`
	// CalciteDissolution is the dissolution rate of the calcite tracer.
	CalciteDissolution float64 `toml:"dissk0"`
	// CalciteSaturation is the calcite saturation state Ω.
	CalciteSaturation float64 `toml:"omega_c"`
}

// DefaultParams returns the default ecosystem parameters.
func DefaultParams() Params {
	return Params{
		TracerMinimum: 1e-13,

		LightAttenuationWater:         0.04,
		LightAttenuationPhytoplankton: 0.047,
		LightAttenuationCaCO3:         0.058,

		TemperatureBase:        1.066,
		TemperatureCoefficient: 1,
		TemperatureCap:         20,

		MaxGrowthPhytoplankton:   0.6 / day,
		MaxGrowthCoccolithophore: 0.52 / day,
		DiazotrophGrowthFactor:   0.08,
		DiazotrophThreshold:      2.6,

		SaturationN:  0.7,
		SaturationNC: 0.1,

		RedfieldPN: 1. / 16,
		RedfieldCP: 7.1 * 16,

		RecyclingPhytoplankton:   0.015 / day,
		RecyclingDiazotroph:      0.0001 / day,
		RecyclingCoccolithophore: 0.02 / day,
		RemineralizationDetritus: 0.07 / day,

		MortalityPhytoplankton:        0.03 / day,
		MortalityDiazotroph:           0.0001 / day,
		MortalityCoccolithophore:      0.03 / day,
		QuadraticMortalityZooplankton: 0.06 / day,

		MaxGrazing:             0.38 / day,
		SaturationGrazing:      0.15,
		AssimilationEfficiency: 0.5,
		GrowthEfficiency:       0.6,

		PreferencePhytoplankton:   1,
		PreferenceZooplankton:     0.3,
		PreferenceDetritus:        0.1,
		PreferenceDiazotroph:      1. / 3,
		PreferenceCoccolithophore: 1,

		SinkingDetritus:      14 / day,
		SinkingIncrease:      0.02 / day,
		SinkingMaxDepth:      1000,
		SinkingCaCO3:         35 / day,
		SinkingIncreaseCaCO3: 0.06 / day,

		CalciteRatio:       0.022,
		CalciteDepth:       650,
		CalciteDissolution: 0.013 / day,
		CalciteSaturation:  0.5,
	}
}

// ParamsFromTOML reads parameters from TOML-formatted r. Parameters that
// are not specified keep their default values.
func ParamsFromTOML(r io.Reader) (Params, error) {
	p := DefaultParams()
	if _, err := toml.DecodeReader(r, &p); err != nil {
		return p, fmt.Errorf("npzd: reading parameters: %v", err)
	}
	return p, p.Validate()
}

// RedfieldCN is the carbon to nitrogen ratio.
func (p Params) RedfieldCN() float64 { return p.RedfieldCP * p.RedfieldPN }

// Validate checks that the parameters are physically meaningful.
func (p Params) Validate() error {
	if !(p.TracerMinimum >= 0) {
		return fmt.Errorf("npzd: trcmin must be non-negative, not %g", p.TracerMinimum)
	}
	positive := map[string]float64{
		"redfield_ratio_pn":             p.RedfieldPN,
		"redfield_ratio_cp":             p.RedfieldCP,
		"temperature_base":              p.TemperatureBase,
		"saturation_constant_n":         p.SaturationN,
		"saturation_constant_nc":        p.SaturationNC,
		"saturation_constant_z_grazing": p.SaturationGrazing,
		"dcaco3":                        p.CalciteDepth,
	}
	for name, v := range positive {
		if !(v > 0) {
			return fmt.Errorf("npzd: parameter %s must be positive, not %g", name, v)
		}
	}
	nonNegative := map[string]float64{
		"light_attenuation_water":         p.LightAttenuationWater,
		"light_attenuation_phytoplankton": p.LightAttenuationPhytoplankton,
		"light_attenuation_caco3":         p.LightAttenuationCaCO3,
		"max_growth_phytoplankton":        p.MaxGrowthPhytoplankton,
		"max_growth_coccolithophore":      p.MaxGrowthCoccolithophore,
		"fast_recycling_phytoplankton":    p.RecyclingPhytoplankton,
		"fast_recycling_diazotroph":       p.RecyclingDiazotroph,
		"fast_recycling_coccolithophore":  p.RecyclingCoccolithophore,
		"remineralization_detritus":       p.RemineralizationDetritus,
		"mortality_phytoplankton":         p.MortalityPhytoplankton,
		"mortality_diazotroph":            p.MortalityDiazotroph,
		"mortality_coccolithophore":       p.MortalityCoccolithophore,
		"quadratic_mortality_zooplankton": p.QuadraticMortalityZooplankton,
		"max_grazing":                     p.MaxGrazing,
		"wd0":                             p.SinkingDetritus,
		"mw":                              p.SinkingIncrease,
		"mwz":                             p.SinkingMaxDepth,
		"wc0":                             p.SinkingCaCO3,
		"mw_c":                            p.SinkingIncreaseCaCO3,
		"capr":                            p.CalciteRatio,
		"dissk0":                          p.CalciteDissolution,
	}
	for name, v := range nonNegative {
		if !(v >= 0) {
			return fmt.Errorf("npzd: parameter %s must not be negative, not %g", name, v)
		}
	}
	fractions := map[string]float64{
		"assimilation_efficiency":       p.AssimilationEfficiency,
		"zooplankton_growth_efficiency": p.GrowthEfficiency,
	}
	for name, v := range fractions {
		if !(v >= 0 && v <= 1) {
			return fmt.Errorf("npzd: parameter %s must be between 0 and 1, not %g", name, v)
		}
	}
	return nil
}

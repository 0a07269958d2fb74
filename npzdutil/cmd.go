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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/npzd"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to NPZD.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "ParamsFile",
			usage: `
              ParamsFile is the path to a TOML file holding ecosystem parameters.
              Parameters that are not in the file keep their default values.
              If it is empty, the default parameters are used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), rulesCmd.Flags()},
		},
		{
			name: "Carbon",
			usage: `
              Carbon specifies whether to include the carbon cycle: dissolved
              inorganic carbon, alkalinity, air-sea CO2 exchange and calcite.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), rulesCmd.Flags()},
		},
		{
			name: "Nitrogen",
			usage: `
              Nitrogen specifies whether to include nitrate, dissolved organic
              matter and nitrogen-fixing diazotrophs.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), rulesCmd.Flags()},
		},
		{
			name: "Calcifiers",
			usage: `
              Calcifiers specifies whether to include coccolithophores and carry
              calcite as a sinking tracer. It requires Carbon to be true.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), rulesCmd.Flags()},
		},
		{
			name: "Grid.Nx",
			usage: `
              Grid.Nx is the number of grid columns in the x direction,
              including halo columns.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), rulesCmd.Flags()},
		},
		{
			name: "Grid.Ny",
			usage: `
              Grid.Ny is the number of grid columns in the y direction.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), rulesCmd.Flags()},
		},
		{
			name: "Grid.Dz",
			usage: `
              Grid.Dz gives the layer thicknesses in meters, from the deepest
              layer to the surface layer.`,
			defaultVal: []string{"1000", "500", "250", "100", "50", "50", "25", "25"},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), rulesCmd.Flags()},
		},
		{
			name: "Grid.Area",
			usage: `
              Grid.Area is the horizontal area of each grid column in m².`,
			defaultVal: 1.0e10,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), rulesCmd.Flags()},
		},
		{
			name: "Grid.Cyclic",
			usage: `
              Grid.Cyclic specifies whether the domain is periodic in the x
              direction. If true, halo columns are updated after every timestep.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Forcing.Temperature",
			usage: `
              Forcing.Temperature is the sea water temperature in °C.`,
			defaultVal: 15.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Forcing.SWR",
			usage: `
              Forcing.SWR is the shortwave radiation at the sea surface in W/m².`,
			defaultVal: 200.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Forcing.RCTheta",
			usage: `
              Forcing.RCTheta is the light attenuation coefficient of sea water
              along the path of the sun's rays, in 1/m.`,
			defaultVal: 0.04,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Forcing.CO2Flux",
			usage: `
              Forcing.CO2Flux is a constant air-sea CO2 flux into the ocean
              in mmol C/m²/s. It is only used when Carbon is true.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "InitialConditionsFile",
			usage: `
              InitialConditionsFile is the path to a NetCDF file holding initial
              tracer concentrations, shaped (x, y, z). If it is empty,
              InitialConcentrations is used instead.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "InitialConcentrations",
			usage: `
              InitialConcentrations gives uniform initial concentrations by tracer
              name. Tracers that are not enabled are ignored and enabled tracers
              that are not listed start at the tracer minimum.`,
			defaultVal: map[string]float64{
				npzd.Phosphate:       2.17,
				npzd.Phytoplankton:   0.14,
				npzd.Zooplankton:     0.014,
				npzd.Detritus:        1e-4,
				npzd.DIC:             2000,
				npzd.Alkalinity:      2300,
				npzd.Nitrate:         30,
				npzd.DOP:             0.01,
				npzd.DON:             0.01,
				npzd.Diazotroph:      0.01,
				npzd.Coccolithophore: 0.01,
				npzd.CaCO3:           0.01,
			},
			flagsets: []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DtMom",
			usage: `
              DtMom is the model timestep in seconds.`,
			defaultVal: 3600.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), rulesCmd.Flags()},
		},
		{
			name: "DtBio",
			usage: `
              DtBio is the biological sub-step in seconds. DtMom must be at
              least as long as DtBio.`,
			defaultVal: 900.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), rulesCmd.Flags()},
		},
		{
			name: "NumSteps",
			usage: `
              NumSteps is the number of timesteps to run. If it is less than 1,
              the simulation runs until the total amount of every tracer changes
              by less than ConvergenceTolerance between timesteps.`,
			defaultVal: 24,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ConvergenceTolerance",
			usage: `
              ConvergenceTolerance is the fractional change in tracer totals
              below which a simulation is considered converged.`,
			defaultVal: 1e-8,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the NetCDF output file.`,
			shorthand:  "o",
			defaultVal: "npzd_output.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables lists the tracers to include in the output file.
              If it is empty, all tracers are included.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. If it is
              empty, the log is written next to OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("NPZD")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
			case int:
				set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
			case map[string]float64:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				set.StringP(option.name, option.shorthand, strings.TrimSpace(b.String()), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(rulesCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("npzd: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "npzd",
	Short: "An NPZD ocean biogeochemistry model.",
	Long: `NPZD calculates the biological sources and sinks of nutrients, plankton
and detritus in ocean water columns. Use the subcommands specified below
to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'NPZD_var' where 'var' is the
name of the variable to be set, with dots replaced by underscores.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of NPZD.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("NPZD v%s\n", npzd.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that runs a simulation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the model.",
	Long: `run runs an NPZD simulation on a horizontally uniform grid with
constant forcing and writes the final tracer concentrations to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := ReadConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(cmd, c)
	},
	DisableAutoGenTag: true,
}

// rulesCmd is a command that prints the rules of an ecosystem.
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the ecosystem rules.",
	Long: `rules prints the tracers and the rules moving mass between them
for the ecosystem selected by the Carbon, Nitrogen and Calcifiers options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := ReadConfig(Cfg)
		if err != nil {
			return err
		}
		return Rules(cmd, c)
	},
	DisableAutoGenTag: true,
}

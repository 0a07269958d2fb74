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
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/npzd"
	"github.com/spf13/cast"
)

// Config holds the settings of a simulation.
type Config struct {
	ParamsFile string
	Features   npzd.Features

	Nx, Ny int
	Dz     []float64 // deepest layer first
	Area   float64
	Cyclic bool

	Temperature, SWR, RCTheta, CO2Flux float64

	InitialConditionsFile string
	InitialConcentrations map[string]float64

	DtMom, DtBio         float64
	NumSteps             int
	ConvergenceTolerance float64

	OutputFile      string
	OutputVariables []string
	LogFile         string
}

// ReadConfig unmarshals a viper configuration for a simulation and
// checks it for obvious errors.
func ReadConfig(cfg *viper.Viper) (*Config, error) {
	dz, err := toFloat64SliceE(cfg.Get("Grid.Dz"))
	if err != nil {
		return nil, fmt.Errorf("npzd: reading Grid.Dz: %v", err)
	}
	initial, err := getStringMapFloat64("InitialConcentrations", cfg)
	if err != nil {
		return nil, fmt.Errorf("npzd: reading InitialConcentrations: %v", err)
	}
	c := &Config{
		ParamsFile: os.ExpandEnv(cfg.GetString("ParamsFile")),
		Features: npzd.Features{
			Carbon:     cfg.GetBool("Carbon"),
			Nitrogen:   cfg.GetBool("Nitrogen"),
			Calcifiers: cfg.GetBool("Calcifiers"),
		},
		Nx:                    cfg.GetInt("Grid.Nx"),
		Ny:                    cfg.GetInt("Grid.Ny"),
		Dz:                    dz,
		Area:                  cfg.GetFloat64("Grid.Area"),
		Cyclic:                cfg.GetBool("Grid.Cyclic"),
		Temperature:           cfg.GetFloat64("Forcing.Temperature"),
		SWR:                   cfg.GetFloat64("Forcing.SWR"),
		RCTheta:               cfg.GetFloat64("Forcing.RCTheta"),
		CO2Flux:               cfg.GetFloat64("Forcing.CO2Flux"),
		InitialConditionsFile: os.ExpandEnv(cfg.GetString("InitialConditionsFile")),
		InitialConcentrations: initial,
		DtMom:                 cfg.GetFloat64("DtMom"),
		DtBio:                 cfg.GetFloat64("DtBio"),
		NumSteps:              cfg.GetInt("NumSteps"),
		ConvergenceTolerance:  cfg.GetFloat64("ConvergenceTolerance"),
		OutputVariables:       expandStringSlice(cfg.GetStringSlice("OutputVariables")),
	}

	if c.Nx < 1 || c.Ny < 1 {
		return nil, fmt.Errorf("npzd: parsing grid configuration: Grid.Nx=%d and Grid.Ny=%d but both should be >0", c.Nx, c.Ny)
	}
	if len(c.Dz) == 0 {
		return nil, fmt.Errorf("npzd: parsing grid configuration: Grid.Dz is not specified")
	}
	if !(c.Area > 0) {
		return nil, fmt.Errorf("npzd: parsing grid configuration: Grid.Area=%g but should be >0", c.Area)
	}
	for _, v := range []struct {
		name string
		val  float64
	}{{"DtMom", c.DtMom}, {"DtBio", c.DtBio}} {
		if !(v.val > 0) {
			return nil, fmt.Errorf("npzd: %s=%g but should be >0", v.name, v.val)
		}
	}

	c.OutputFile, err = checkOutputFile(cfg.GetString("OutputFile"))
	if err != nil {
		return nil, err
	}
	c.LogFile = checkLogFile(os.ExpandEnv(cfg.GetString("LogFile")), c.OutputFile)
	return c, nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expand any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="output.nc")`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("npzd: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// toFloat64SliceE converts a configuration value to a slice of numbers. The
// value may be a list from a configuration file, a list of strings from a
// command line flag, or a JSON array.
func toFloat64SliceE(s interface{}) ([]float64, error) {
	switch v := s.(type) {
	case []float64:
		return v, nil
	case []interface{}:
		o := make([]float64, len(v))
		for i, val := range v {
			f, err := cast.ToFloat64E(val)
			if err != nil {
				return nil, err
			}
			o[i] = f
		}
		return o, nil
	case []string:
		o := make([]float64, len(v))
		for i, val := range v {
			f, err := cast.ToFloat64E(strings.TrimSpace(val))
			if err != nil {
				return nil, err
			}
			o[i] = f
		}
		return o, nil
	case string:
		var o []float64
		if err := json.Unmarshal([]byte(v), &o); err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("invalid type %T for a list of numbers", s)
	}
}

// getStringMapFloat64 returns a map[string]float64 from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func getStringMapFloat64(varName string, cfg *viper.Viper) (map[string]float64, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return make(map[string]float64), nil
	case map[string]float64:
		return v, nil
	case map[string]interface{}:
		o := make(map[string]float64, len(v))
		for k, val := range v {
			f, err := cast.ToFloat64E(val)
			if err != nil {
				return nil, fmt.Errorf("%s: %v", k, err)
			}
			o[k] = f
		}
		return o, nil
	case string:
		o := make(map[string]float64)
		if v == "" {
			return o, nil
		}
		d := json.NewDecoder(bytes.NewBufferString(v))
		if err := d.Decode(&o); err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("invalid type for variable %s: %#v", varName, i)
	}
}

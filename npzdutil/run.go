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
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/npzd"
	"github.com/spf13/cobra"
)

// Params returns the ecosystem parameters: the defaults, overridden by
// the contents of c.ParamsFile if it is set.
func (c *Config) Params() (npzd.Params, error) {
	if c.ParamsFile == "" {
		return npzd.DefaultParams(), nil
	}
	f, err := os.Open(c.ParamsFile)
	if err != nil {
		return npzd.Params{}, fmt.Errorf("npzd: opening parameter file: %v", err)
	}
	defer f.Close()
	return npzd.ParamsFromTOML(f)
}

// Grid returns a grid of c.Nx × c.Ny identical, entirely wet columns.
func (c *Config) Grid() *npzd.Grid {
	return npzd.NewGrid(c.Nx, c.Ny, c.Dz, c.Area)
}

// initialConditions reads the initial tracer concentrations for the
// enabled tracers from c.InitialConditionsFile, or creates them from
// c.InitialConcentrations.
func (c *Config) initialConditions(g *npzd.Grid) (npzd.Tracers, error) {
	enabled := make(map[string]bool)
	for _, name := range c.Features.Tracers() {
		enabled[name] = true
	}
	o := make(npzd.Tracers)
	if c.InitialConditionsFile != "" {
		f, err := os.Open(c.InitialConditionsFile)
		if err != nil {
			return nil, fmt.Errorf("npzd: opening initial conditions: %v", err)
		}
		defer f.Close()
		init, err := npzd.ReadInitialConditions(f)
		if err != nil {
			return nil, err
		}
		for name, a := range init {
			if enabled[name] {
				o[name] = a
			}
		}
		return o, nil
	}
	// Configuration keys may have been converted to lower case.
	canonical := make(map[string]string)
	for _, name := range (npzd.Features{Carbon: true, Nitrogen: true, Calcifiers: true}).Tracers() {
		canonical[strings.ToLower(name)] = name
	}
	for key, v := range c.InitialConcentrations {
		name, ok := canonical[strings.ToLower(key)]
		if !ok {
			return nil, fmt.Errorf("npzd: initial concentration for unknown tracer %q", key)
		}
		if !enabled[name] {
			continue
		}
		a := sparse.ZerosDense(g.Nx, g.Ny, g.Nz)
		for i := range a.Elements {
			a.Elements[i] = v
		}
		o[name] = a
	}
	return o, nil
}

// Model returns an initialized model as specified by c, logging to log.
// Output is written to w after the simulation if w is not nil.
func (c *Config) Model(log logrus.FieldLogger, w cdf.ReaderWriterAt) (*npzd.NPZD, error) {
	p, err := c.Params()
	if err != nil {
		return nil, err
	}
	g := c.Grid()
	init, err := c.initialConditions(g)
	if err != nil {
		return nil, err
	}
	d := &npzd.NPZD{
		Grid:    g,
		Forcing: npzd.NewUniformForcing(g, c.Temperature, c.SWR, c.RCTheta),
		DtMom:   c.DtMom,
		DtBio:   c.DtBio,
		Log:     log,
		InitFuncs: []npzd.DomainManipulator{
			npzd.Setup(p, c.Features, init),
			npzd.CheckOutputVars(c.OutputVariables...),
		},
	}
	if c.Features.Carbon && c.CO2Flux != 0 {
		d.GasFlux = npzd.ConstantGasFlux{npzd.CO2: c.CO2Flux}
	}
	d.RunFuncs = []npzd.DomainManipulator{
		npzd.AddTransport(),
		npzd.Biogeochemistry(),
		npzd.ClampMinimum(),
	}
	if c.Cyclic {
		d.RunFuncs = append(d.RunFuncs, npzd.CyclicBoundary())
	}
	d.RunFuncs = append(d.RunFuncs,
		npzd.ConservationMonitor(),
		npzd.SteadyStateConvergenceCheck(c.NumSteps, c.ConvergenceTolerance),
		npzd.Log(),
	)
	if w != nil {
		d.CleanupFuncs = []npzd.DomainManipulator{npzd.Output(w, c.OutputVariables...)}
	}
	if err := d.Init(); err != nil {
		return nil, err
	}
	return d, nil
}

// newLogger returns a logger writing to w.
func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.Out = w
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true, DisableColors: true}
	return l
}

// Run runs a simulation as specified by c. Log messages are written to
// the output of cmd and to c.LogFile.
func Run(cmd *cobra.Command, c *Config) error {
	startTime := time.Now()

	logfile, err := os.Create(c.LogFile)
	if err != nil {
		return fmt.Errorf("npzd: problem creating log file: %v", err)
	}
	defer logfile.Close()
	log := newLogger(io.MultiWriter(cmd.OutOrStdout(), logfile))

	out, err := os.Create(c.OutputFile)
	if err != nil {
		return fmt.Errorf("npzd: problem creating output file: %v", err)
	}
	defer out.Close()

	d, err := c.Model(log, out)
	if err != nil {
		return err
	}
	log.Info("npzd: running simulation")
	if err := d.Run(); err != nil {
		return err
	}
	log.Info("npzd: writing output")
	if err := d.Cleanup(); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"steps":    d.Step,
		"walltime": time.Since(startTime).Round(time.Millisecond).String(),
		"output":   c.OutputFile,
	}).Info("npzd: simulation complete")
	return nil
}

// Rules prints the tracers and rules of the ecosystem specified by c to
// the output of cmd.
func Rules(cmd *cobra.Command, c *Config) error {
	log := newLogger(ioutil.Discard)
	c2 := *c
	c2.OutputVariables = nil
	c2.InitialConditionsFile = ""
	c2.InitialConcentrations = nil
	d, err := c2.Model(log, nil)
	if err != nil {
		return err
	}
	cmd.Printf("Tracers: %v\n", d.Registry.Tracers())
	cmd.Println("Rules:")
	for _, r := range d.Registry.Rules() {
		cmd.Printf("\t%v\n", r)
	}
	if s := d.Registry.SurfaceRules(); len(s) > 0 {
		cmd.Println("Surface fluxes:")
		for _, r := range s {
			cmd.Printf("\t%v\n", r)
		}
	}
	return nil
}

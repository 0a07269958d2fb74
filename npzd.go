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

// Package npzd is a nutrient-phytoplankton-zooplankton-detritus (NPZD)
// ocean biogeochemistry model. It calculates the local, vertical part of
// the evolution of biogeochemical tracers in each water column of an
// ocean model grid: growth, grazing, mortality, recycling, sinking and
// exchange at the sea surface and sea floor.
package npzd

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Version gives the version number.
const Version = "0.1.0"

// NPZD holds the current state of the model.
type NPZD struct {
	// Grid is the ocean model grid.
	Grid *Grid

	// Forcing holds the physical fields driving the biology.
	Forcing *Forcing

	// DtMom is the model timestep [s] and DtBio the biological
	// sub-step [s]. DtMom must be at least as long as DtBio.
	DtMom, DtBio float64

	// Params and Features are set by Setup.
	Params   Params
	Features Features

	// Tracers holds the tracer concentrations.
	Tracers Tracers

	// Registry holds the tracers and rules of the ecosystem.
	Registry *Registry

	// Transport, if not nil, supplies the change in tracer
	// concentrations caused by physical transport.
	Transport Transport

	// GasFlux, if not nil, supplies air-sea gas fluxes.
	GasFlux GasFlux

	// Diagnostics holds sinking fluxes from the most recent timestep.
	Diagnostics *Diagnostics

	// Log receives status messages. The standard logrus logger is
	// used if it is nil.
	Log logrus.FieldLogger

	// Step is the number of completed timesteps and Time the
	// simulated time [s].
	Step int
	Time float64

	// InitFuncs are functions to be called in the given order
	// at the beginning of the simulation.
	InitFuncs []DomainManipulator

	// RunFuncs are functions to be called in the given order repeatedly
	// until "Done" is true. Therefore, the simulation will not end
	// until one of the RunFuncs sets "Done" to true.
	RunFuncs []DomainManipulator

	// CleanupFuncs are functions to be called in the given order
	// at the end of the simulation.
	CleanupFuncs []DomainManipulator

	// Done specifies whether the simulation is finished.
	Done bool

	eco   *ecosystem
	state *state
}

// DomainManipulator is a class of functions that operate on the entire model.
type DomainManipulator func(d *NPZD) error

// Transport supplies the change in tracer concentrations caused by
// advection and diffusion over one model timestep.
type Transport interface {
	// Tendency returns the concentration change of each tracer.
	// Tracers that are not included do not change.
	Tendency(d *NPZD) (Tracers, error)
}

// GasFlux supplies air-sea gas exchange.
type GasFlux interface {
	// Flux returns the flux of gas into tracer at the sea surface
	// [amount/m²/s, positive into the ocean] for each horizontal point.
	Flux(d *NPZD, gas, tracer string) ([]float64, error)
}

// Init initializes the simulation by running d.InitFuncs.
func (d *NPZD) Init() error {
	for _, f := range d.InitFuncs {
		if err := f(d); err != nil {
			return err
		}
	}
	return d.check()
}

// Run carries out the simulation by running d.RunFuncs until d.Done is true.
func (d *NPZD) Run() error {
	for !d.Done {
		for _, f := range d.RunFuncs {
			if err := f(d); err != nil {
				return err
			}
		}
	}
	return nil
}

// Cleanup finishes the simulation by running d.CleanupFuncs.
func (d *NPZD) Cleanup() error {
	for _, f := range d.CleanupFuncs {
		if err := f(d); err != nil {
			return err
		}
	}
	return nil
}

// NBio returns the number of biological sub-steps per model timestep.
func (d *NPZD) NBio() int {
	if !(d.DtBio > 0) {
		return 0
	}
	return int(d.DtMom / d.DtBio)
}

// check makes sure the model is ready to run.
func (d *NPZD) check() error {
	if d.Registry == nil || d.eco == nil {
		return fmt.Errorf("npzd: the ecosystem has not been set up")
	}
	if err := d.Grid.Validate(); err != nil {
		return err
	}
	if d.Forcing == nil {
		return fmt.Errorf("npzd: forcing is missing")
	}
	if err := d.Forcing.Validate(d.Grid); err != nil {
		return err
	}
	if n := d.NBio(); n < 1 {
		return fmt.Errorf("npzd: the model timestep (%g s) must be at least as long as the biological timestep (%g s)", d.DtMom, d.DtBio)
	}
	return nil
}

func (d *NPZD) log() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}

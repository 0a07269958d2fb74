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
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

const daysPerSecond = 1. / 3600. / 24.

// AddTransport returns a function that adds the tendency from d.Transport
// to the tracers. It does nothing if d.Transport is nil.
func AddTransport() DomainManipulator {
	return func(d *NPZD) error {
		if d.Transport == nil {
			return nil
		}
		tendency, err := d.Transport.Tendency(d)
		if err != nil {
			return fmt.Errorf("npzd: transport: %v", err)
		}
		for name, t := range tendency {
			a, ok := d.Tracers[name]
			if !ok {
				return fmt.Errorf("npzd: transport tendency for unknown tracer %q", name)
			}
			if err := checkShape("tendency of "+name, t, d.Grid.Nx, d.Grid.Ny, d.Grid.Nz); err != nil {
				return err
			}
			floats.Add(a.Elements, t.Elements)
		}
		return nil
	}
}

// ClampMinimum returns a function that raises all tracer concentrations
// below the tracer minimum to the minimum.
func ClampMinimum() DomainManipulator {
	return func(d *NPZD) error {
		d.Tracers.clamp(d.Params.TracerMinimum)
		return nil
	}
}

// CyclicBoundary returns a function that copies the interior columns next
// to each end of the x dimension into the halo columns at the opposite
// end, for domains that are periodic in x.
func CyclicBoundary() DomainManipulator {
	return func(d *NPZD) error {
		g := d.Grid
		h := g.Halo
		if 2*h > g.Nx {
			return fmt.Errorf("npzd: halo of %d columns is too wide for %d columns", h, g.Nx)
		}
		n := g.Ny * g.Nz // elements per x index
		for _, a := range d.Tracers {
			for i := 0; i < h; i++ {
				copy(a.Elements[i*n:(i+1)*n], a.Elements[(g.Nx-2*h+i)*n:(g.Nx-2*h+i+1)*n])
				copy(a.Elements[(g.Nx-h+i)*n:(g.Nx-h+i+1)*n], a.Elements[(h+i)*n:(h+i+1)*n])
			}
		}
		return nil
	}
}

// SteadyStateConvergenceCheck checks whether a simulation is finished and
// sets the Done flag if it is. If numSteps > 0, the simulation is finished
// after that number of timesteps have completed. Otherwise, the simulation
// has finished when the total amount of every tracer changes by less than
// tolerance (as a fraction) between consecutive timesteps.
func SteadyStateConvergenceCheck(numSteps int, tolerance float64) DomainManipulator {
	var oldSum map[string]float64

	return func(d *NPZD) error {
		d.Step++
		d.Time += d.DtMom

		if numSteps > 0 {
			if d.Step >= numSteps {
				d.Done = true
			}
			return nil
		}
		sum := make(map[string]float64)
		for name := range d.Tracers {
			sum[name] = d.inventory(name, 1)
		}
		if oldSum != nil {
			timeToQuit := true
			for _, name := range d.Tracers.Names() {
				if !checkConvergence(d.log(), sum[name], oldSum[name], tolerance, name) {
					timeToQuit = false
				}
			}
			if timeToQuit {
				d.Done = true
			}
		}
		oldSum = sum
		return nil
	}
}

func checkConvergence(log logrus.FieldLogger, newSum, oldSum, tolerance float64, name string) bool {
	bias := (newSum - oldSum) / oldSum
	log.WithFields(logrus.Fields{
		"tracer":     name,
		"change (%)": bias * 100,
	}).Debug("npzd: total amount difference from last timestep")
	if math.Abs(bias) > tolerance || math.IsInf(bias, 0) || math.IsNaN(bias) {
		return false
	}
	return true
}

// Log returns a function that logs simulation status messages.
func Log() DomainManipulator {
	startTime := time.Now()
	timeStepTime := time.Now()

	return func(d *NPZD) error {
		d.log().WithFields(logrus.Fields{
			"step":      d.Step,
			"walltime":  time.Since(startTime).Round(time.Millisecond).String(),
			"Δwalltime": time.Since(timeStepTime).Round(time.Millisecond).String(),
			"timestep":  d.DtMom,
			"day":       d.Time * daysPerSecond,
		}).Info("npzd: timestep complete")
		timeStepTime = time.Now()
		return nil
	}
}

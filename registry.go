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
	"errors"
	"fmt"
)

// ErrSealed is returned when a rule or tracer is registered after the
// model has been set up.
var ErrSealed = errors.New("npzd: registry is sealed; rules must be registered during setup")

// Registry holds the tracers and the rules that move mass between them.
// Tracer names are interned to integer ids in registration order.
type Registry struct {
	names   []string
	ids     map[string]int
	rules   []Rule
	surface []Rule
	sealed  bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]int)}
}

// AddTracer registers a tracer name and returns its id. Registering
// an existing name returns the existing id.
func (r *Registry) AddTracer(name string) (int, error) {
	if id, ok := r.ids[name]; ok {
		return id, nil
	}
	if r.sealed {
		return -1, ErrSealed
	}
	id := len(r.names)
	r.names = append(r.names, name)
	r.ids[name] = id
	return id, nil
}

// ID returns the id of the named tracer and whether it is registered.
func (r *Registry) ID(name string) (int, bool) {
	id, ok := r.ids[name]
	return id, ok
}

// Tracers returns the registered tracer names in id order.
func (r *Registry) Tracers() []string { return r.names }

// Register adds a rule applied at every biological sub-step.
// Source and sink must be registered tracers, except that the sink of a
// CalciteProduction rule may be an unregistered calcite pool, in which case
// production is carried implicitly.
func (r *Registry) Register(rule Rule) error {
	if r.sealed {
		return ErrSealed
	}
	if rule.Kind == SurfaceFlux {
		return fmt.Errorf("npzd: rule %v: surface fluxes must be registered with RegisterSurfaceFlux", rule)
	}
	if rule.Kind < Structural || rule.Kind > SurfaceFlux {
		return fmt.Errorf("npzd: rule %v: invalid kind", rule)
	}
	var err error
	if rule.source, err = r.mustLookup(rule, rule.Source); err != nil {
		return err
	}
	if rule.Kind == CalciteProduction {
		if _, err = r.mustLookup(rule, DIC); err != nil {
			return err
		}
		rule.sink = r.lookup(rule.Sink)
	} else if rule.sink, err = r.mustLookup(rule, rule.Sink); err != nil {
		return err
	}
	r.rules = append(r.rules, rule)
	return nil
}

// RegisterSurfaceFlux adds a rule applied once per model timestep to the
// surface layer. Its Source names an atmospheric gas and its Sink must be a
// registered tracer.
func (r *Registry) RegisterSurfaceFlux(rule Rule) error {
	if r.sealed {
		return ErrSealed
	}
	if rule.Kind != SurfaceFlux {
		return fmt.Errorf("npzd: rule %v is not a surface flux", rule)
	}
	if rule.Source == "" {
		return fmt.Errorf("npzd: surface flux %q has no gas", rule.Label)
	}
	var err error
	rule.source = -1
	if rule.sink, err = r.mustLookup(rule, rule.Sink); err != nil {
		return err
	}
	r.surface = append(r.surface, rule)
	return nil
}

// Seal prevents further registration.
func (r *Registry) Seal() { r.sealed = true }

// Sealed reports whether the registry has been sealed.
func (r *Registry) Sealed() bool { return r.sealed }

// Rules returns the sub-step rules in registration order.
func (r *Registry) Rules() []Rule { return r.rules }

// SurfaceRules returns the surface flux rules in registration order.
func (r *Registry) SurfaceRules() []Rule { return r.surface }

func (r *Registry) lookup(name string) int {
	if id, ok := r.ids[name]; ok {
		return id
	}
	return -1
}

func (r *Registry) mustLookup(rule Rule, name string) (int, error) {
	id, ok := r.ids[name]
	if !ok {
		return -1, fmt.Errorf("npzd: rule %v: tracer %q is not registered", rule, name)
	}
	return id, nil
}

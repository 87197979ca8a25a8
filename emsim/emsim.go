/*
Copyright © 2024 the SnowLayer authors.
This file is part of SnowLayer.

SnowLayer is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SnowLayer is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SnowLayer.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package emsim describes layered snow media, radar sensors and
// electromagnetic model configurations, and provides access to an
// external microwave radiative transfer simulator that computes
// backscatter and extinction for them.
package emsim

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// iceDensity is the density of solid ice [kg/m³].
const iceDensity = 916.7

// Sensor describes an active (radar) microwave sensor.
type Sensor struct {
	// Frequency is the sensor frequency [Hz].
	Frequency float64

	// IncidenceAngle is the incidence angle [degrees].
	IncidenceAngle float64
}

// Active returns an active sensor at frequency freq [Hz] and incidence
// angle theta [degrees].
func Active(freq, theta float64) Sensor {
	return Sensor{Frequency: freq, IncidenceAngle: theta}
}

// InterfaceType is the type of boundary at the top of a layer.
type InterfaceType string

const (
	// Flat is a specular boundary. This is the default.
	Flat InterfaceType = "flat"

	// Transparent is a boundary with no reflection.
	Transparent InterfaceType = "transparent"
)

// Layer is a single homogeneous layer of snow.
type Layer struct {
	Thickness   float64 // [m]
	Density     float64 // [kg/m³]
	Temperature float64 // [K]

	// CorrLength is the correlation length of the microstructure [m].
	CorrLength float64

	// Microstructure is the name of the microstructure model.
	Microstructure string
}

// Reflector is a substrate with a prescribed reflectivity.
type Reflector struct {
	Temperature        float64 // [K]
	SpecularReflection float64

	// Backscatter holds the backscattering coefficient for each
	// polarization ("VV", "HH").
	Backscatter map[string]float64
}

// Snowpack is a stack of layers, listed from the surface down,
// optionally above a substrate.
type Snowpack struct {
	Layers []Layer

	// Interfaces holds the boundary type at the top of each layer.
	Interfaces []InterfaceType

	Substrate *Reflector
}

// NewSnowpack creates a snowpack with an exponential microstructure from
// per-layer thickness, density, temperature and correlation length. All
// interfaces are flat. It returns an error if the inputs are inconsistent
// or physically invalid.
func NewSnowpack(thickness, density, temperature, corrLength []float64, substrate *Reflector) (*Snowpack, error) {
	n := len(thickness)
	if n == 0 {
		return nil, fmt.Errorf("emsim: snowpack has no layers")
	}
	for name, v := range map[string][]float64{"density": density, "temperature": temperature, "corr_length": corrLength} {
		if len(v) != n {
			return nil, fmt.Errorf("emsim: snowpack has %d layers but %d %s values", n, len(v), name)
		}
	}
	sp := &Snowpack{
		Layers:     make([]Layer, n),
		Interfaces: make([]InterfaceType, n),
		Substrate:  substrate,
	}
	for i := 0; i < n; i++ {
		l := Layer{
			Thickness:      thickness[i],
			Density:        density[i],
			Temperature:    temperature[i],
			CorrLength:     corrLength[i],
			Microstructure: "exponential",
		}
		if err := l.check(); err != nil {
			return nil, fmt.Errorf("emsim: layer %d: %v", i, err)
		}
		sp.Layers[i] = l
		sp.Interfaces[i] = Flat
	}
	return sp, nil
}

func (l Layer) check() error {
	switch {
	case !(l.Thickness > 0) || math.IsInf(l.Thickness, 0):
		return fmt.Errorf("invalid thickness %g", l.Thickness)
	case !(l.Density > 0) || l.Density > iceDensity:
		return fmt.Errorf("invalid density %g", l.Density)
	case !(l.Temperature > 0) || math.IsInf(l.Temperature, 0):
		return fmt.Errorf("invalid temperature %g", l.Temperature)
	case !(l.CorrLength > 0) || math.IsInf(l.CorrLength, 0):
		return fmt.Errorf("invalid correlation length %g", l.CorrLength)
	}
	return nil
}

// SetInterfaces sets the boundary at the top of every layer to t.
func (sp *Snowpack) SetInterfaces(t InterfaceType) {
	for i := range sp.Interfaces {
		sp.Interfaces[i] = t
	}
}

// Model is an electromagnetic model and radiative transfer solver
// configuration.
type Model struct {
	// Name is the name the model is referred to by.
	Name string

	// EMModel is the electromagnetic model name.
	EMModel string

	// EMOptions are options passed to the electromagnetic model.
	EMOptions map[string]string `json:",omitempty"`

	// RTSolver is the radiative transfer solver name.
	RTSolver string

	// ErrorHandling is the solver error policy. "nan" returns NaN
	// for failed computations instead of raising an error.
	ErrorHandling string

	// DiagonalizationMethod is the eigenvalue solver used by RTSolver.
	DiagonalizationMethod string
}

// IBA is the improved Born approximation with the discrete ordinates
// solver.
var IBA = Model{
	Name:                  "iba",
	EMModel:               "iba",
	RTSolver:              "dort",
	ErrorHandling:         "nan",
	DiagonalizationMethod: "eig",
}

// IBADense is the improved Born approximation with the dense snow
// correction enabled.
var IBADense = Model{
	Name:                  "iba_inv",
	EMModel:               "iba",
	EMOptions:             map[string]string{"dense_snow_correction": "auto"},
	RTSolver:              "dort",
	ErrorHandling:         "nan",
	DiagonalizationMethod: "eig",
}

// SymSCE is the symmetrized strong contrast expansion of
// Torquato and Kom (2021).
var SymSCE = Model{
	Name:                  "symsce",
	EMModel:               "symsce_torquato21",
	RTSolver:              "dort",
	ErrorHandling:         "nan",
	DiagonalizationMethod: "eig",
}

// Extinction is the model used to compute per-layer scattering and
// absorption coefficients.
var Extinction = Model{
	Name:      "iba_extinction",
	EMModel:   "iba",
	EMOptions: map[string]string{"dense_snow_correction": "auto"},
}

var models = map[string]Model{
	IBA.Name:      IBA,
	IBADense.Name: IBADense,
	SymSCE.Name:   SymSCE,
}

// ModelByName returns the backscatter model with the given name.
func ModelByName(name string) (Model, error) {
	m, ok := models[name]
	if !ok {
		names := make([]string, 0, len(models))
		for n := range models {
			names = append(names, n)
		}
		sort.Strings(names)
		return Model{}, fmt.Errorf("emsim: model '%s' not implemented. Choose one of [%s]", name, strings.Join(names, ", "))
	}
	return m, nil
}

// Coefficients holds the scattering and absorption coefficients [1/m]
// of each layer of a snowpack.
type Coefficients struct {
	Scattering []float64
	Absorption []float64
}

// Extinction returns the extinction coefficient [1/m] of each layer,
// the sum of the scattering and absorption coefficients.
func (c *Coefficients) Extinction() []float64 {
	ke := make([]float64, len(c.Scattering))
	for i := range ke {
		ke[i] = c.Scattering[i] + c.Absorption[i]
	}
	return ke
}

// Simulator is an implementation of a microwave radiative transfer
// simulator.
type Simulator interface {
	// Backscatter returns the VV backscatter coefficient of each
	// snowpack as observed by sensor s using model m. Computations that
	// fail numerically are returned as NaN.
	Backscatter(ctx context.Context, m Model, s Sensor, snowpacks []*Snowpack) ([]float64, error)

	// Coefficients returns the scattering and absorption coefficients
	// of each layer of sp as observed by sensor s using model m.
	Coefficients(ctx context.Context, m Model, s Sensor, sp *Snowpack) (*Coefficients, error)
}

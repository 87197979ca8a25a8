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

package snowlayer

import (
	"context"
	"fmt"

	"github.com/spatialmodel/snowlayer/emsim"
)

// corrLengthScale scales the Debye correlation length for the
// exponential microstructure of simulated snowpacks.
const corrLengthScale = 0.75

// substrateTemperature is the temperature of the ground below the
// snowpack [K].
const substrateTemperature = 265

// DebyeCorrelationLength returns the Debye correlation length [m] of snow
// with specific surface area ssa [m²/kg] and density [kg/m³].
func DebyeCorrelationLength(ssa, density float64) float64 {
	return 4 * (1 - density/IceDensity) / (ssa * IceDensity)
}

// InterfaceMode specifies the boundaries between the layers of a
// simulated snowpack.
type InterfaceMode string

const (
	// NormalInterfaces uses the simulator's default (flat) boundaries.
	NormalInterfaces InterfaceMode = "normal"

	// TransparentInterfaces makes all boundaries transparent.
	TransparentInterfaces InterfaceMode = "transparent"

	// TransparentBelowSurface makes all boundaries transparent except
	// the snow surface.
	TransparentBelowSurface InterfaceMode = "transparent_nosurf"
)

// ParseInterfaceMode returns the interface mode named s.
func ParseInterfaceMode(s string) (InterfaceMode, error) {
	switch m := InterfaceMode(s); m {
	case NormalInterfaces, TransparentInterfaces, TransparentBelowSurface:
		return m, nil
	}
	return "", fmt.Errorf("snowlayer: interface mode '%s' not implemented. Choose one of ['normal', 'transparent', 'transparent_nosurf']", s)
}

// substrate returns the reflector below simulated snowpacks: a
// non-reflecting ground.
func substrate() *emsim.Reflector {
	return &emsim.Reflector{
		Temperature:        substrateTemperature,
		SpecularReflection: 0,
		Backscatter:        map[string]float64{"VV": 0, "HH": 0},
	}
}

// BuildSnowpack creates a snowpack for simulation from reduced layers,
// with the boundaries specified by mode. It returns an error if the layers
// cannot form a valid snowpack.
func BuildSnowpack(layers []ReducedLayer, mode InterfaceMode) (*emsim.Snowpack, error) {
	n := len(layers)
	thickness := make([]float64, n)
	density := make([]float64, n)
	temperature := make([]float64, n)
	corrLength := make([]float64, n)
	for i, l := range layers {
		thickness[i] = l.Thickness
		density[i] = l.Density
		temperature[i] = l.Temperature
		corrLength[i] = corrLengthScale * DebyeCorrelationLength(l.SSA, l.Density)
	}
	sp, err := emsim.NewSnowpack(thickness, density, temperature, corrLength, substrate())
	if err != nil {
		return nil, fmt.Errorf("snowlayer: building snowpack: %v", err)
	}
	switch mode {
	case NormalInterfaces, "":
	case TransparentInterfaces:
		sp.SetInterfaces(emsim.Transparent)
	case TransparentBelowSurface:
		sp.SetInterfaces(emsim.Transparent)
		sp.Interfaces[0] = emsim.Flat
	default:
		_, err := ParseInterfaceMode(string(mode))
		return nil, err
	}
	return sp, nil
}

// ExtinctionCoefficients returns the extinction coefficient [1/m] of each
// layer as computed by sim for sensor s. The layers are simulated without
// a substrate and with the unscaled Debye correlation length.
func ExtinctionCoefficients(ctx context.Context, sim emsim.Simulator, s emsim.Sensor, layers []Layer) ([]float64, error) {
	n := len(layers)
	thickness := make([]float64, n)
	density := make([]float64, n)
	temperature := make([]float64, n)
	corrLength := make([]float64, n)
	for i, l := range layers {
		thickness[i] = l.Thickness
		density[i] = l.Density
		temperature[i] = l.Temperature
		corrLength[i] = DebyeCorrelationLength(l.SSA, l.Density)
	}
	sp, err := emsim.NewSnowpack(thickness, density, temperature, corrLength, nil)
	if err != nil {
		return nil, fmt.Errorf("computing extinction: %v", err)
	}
	c, err := sim.Coefficients(ctx, emsim.Extinction, s, sp)
	if err != nil {
		return nil, fmt.Errorf("computing extinction: %v", err)
	}
	return c.Extinction(), nil
}

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
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Method specifies how layer attributes are weighted when a group of
// layers is averaged.
type Method string

const (
	// Thick weights each layer by its thickness.
	Thick Method = "thick"

	// ThickKe weights each layer by its thickness times its extinction
	// coefficient.
	ThickKe Method = "thick-ke"

	// ThickKeDensity weights like ThickKe, except for density, which is
	// weighted by thickness only.
	ThickKeDensity Method = "thick-ke-density"
)

// Methods lists the implemented averaging methods.
var Methods = []Method{Thick, ThickKe, ThickKeDensity}

// ParseMethod returns the averaging method named s.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if err := m.check(); err != nil {
		return "", err
	}
	return m, nil
}

func (m Method) check() error {
	for _, mm := range Methods {
		if m == mm {
			return nil
		}
	}
	return fmt.Errorf("snowlayer: requested method '%s' not implemented. Choose one of ['thick', 'thick-ke', 'thick-ke-density']", string(m))
}

// NeedsExtinction returns whether m weights layers by their extinction
// coefficient.
func (m Method) NeedsExtinction() bool { return m == ThickKe || m == ThickKeDensity }

// ReducedLayer is the aggregate of a group of layers.
type ReducedLayer struct {
	// Layer holds the weighted average of each attribute of the group,
	// except Thickness, which is the total thickness of the group.
	Layer

	// Extinction is the weighted average extinction coefficient [1/m].
	// It is only set by methods that use extinction weighting.
	Extinction float64
}

// Average combines layers into a single layer using method m.
// ke holds the extinction coefficient of each layer and is only used
// (and required) by extinction-weighted methods.
func Average(layers []Layer, ke []float64, m Method) (ReducedLayer, error) {
	if err := m.check(); err != nil {
		return ReducedLayer{}, err
	}
	if len(layers) == 0 {
		return ReducedLayer{}, fmt.Errorf("snowlayer: averaging an empty group of layers")
	}
	thickness := column(layers, func(l Layer) float64 { return l.Thickness })

	weights := thickness
	if m.NeedsExtinction() {
		if len(ke) != len(layers) {
			return ReducedLayer{}, fmt.Errorf("snowlayer: method %s needs %d extinction coefficients but got %d", m, len(layers), len(ke))
		}
		weights = make([]float64, len(layers))
		floats.MulTo(weights, thickness, ke)
	}
	if !(floats.Sum(weights) > 0) {
		return ReducedLayer{}, fmt.Errorf("snowlayer: averaging weights sum to %g", floats.Sum(weights))
	}

	mean := func(f func(Layer) float64) float64 {
		return stat.Mean(column(layers, f), weights)
	}
	r := ReducedLayer{
		Layer: Layer{
			Density:         mean(func(l Layer) float64 { return l.Density }),
			Mass:            mean(func(l Layer) float64 { return l.Mass }),
			Temperature:     mean(func(l Layer) float64 { return l.Temperature }),
			OpticalDiameter: mean(func(l Layer) float64 { return l.OpticalDiameter }),
			SnowDepth:       mean(func(l Layer) float64 { return l.SnowDepth }),
			SSA:             mean(func(l Layer) float64 { return l.SSA }),
			Height:          mean(func(l Layer) float64 { return l.Height }),
			Thickness:       floats.Sum(thickness),
		},
	}
	if m.NeedsExtinction() {
		r.Extinction = stat.Mean(ke, weights)
	}
	if m == ThickKeDensity {
		r.Density = stat.Mean(column(layers, func(l Layer) float64 { return l.Density }), thickness)
	}
	return r, nil
}

// SWE returns the snow water equivalent [kg/m²] of a set of reduced
// layers: the sum of density times thickness.
func SWE(layers []ReducedLayer) float64 {
	var swe float64
	for _, l := range layers {
		swe += l.Density * l.Thickness
	}
	return swe
}

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

// Package snowlayer reduces multi-layer snowpack profiles simulated by the
// Crocus snow model into a small number of homogeneous layers and runs
// the reduced profiles through an electromagnetic model to estimate radar
// backscatter and snow water equivalent.
package snowlayer

import (
	"time"

	"gonum.org/v1/gonum/floats"
)

// Version gives the version number.
const Version = "0.3.0"

// physical constants
const (
	// iceDensitySSA is the ice density [kg/m³] used when converting
	// optical diameter to specific surface area.
	iceDensitySSA = 917.0

	// IceDensity is the density of solid ice [kg/m³] used by the
	// electromagnetic model.
	IceDensity = 916.7
)

// Filter thresholds applied when loading profiles.
const (
	// MinSnowDepth is the total snow depth [m] at or below which a
	// timestep is discarded.
	MinSnowDepth = 0.10

	// MinThickness is the layer thickness [m] at or below which a layer
	// is discarded.
	MinThickness = 0.005
)

// Layer holds the properties of a single snow layer.
type Layer struct {
	// Density is snow density [kg/m³].
	Density float64

	// Mass is the layer mass per unit area, i.e. its contribution to
	// snow water equivalent [kg/m²].
	Mass float64

	// Temperature is snow temperature [K].
	Temperature float64

	// OpticalDiameter is the optical grain diameter [m].
	OpticalDiameter float64

	// SnowDepth is the total snow depth of the profile the layer
	// belongs to [m].
	SnowDepth float64

	// Thickness is Mass / Density [m].
	Thickness float64

	// SSA is the specific surface area [m²/kg].
	SSA float64

	// Height is the sum of the thickness of this layer and of every
	// layer stored after it in its profile [m].
	Height float64
}

// NewLayer returns a layer with the given measured properties and with
// Thickness and SSA derived from them. Height is set when the layer is
// added to a Profile.
func NewLayer(density, mass, temperature, opticalDiameter, snowDepth float64) Layer {
	return Layer{
		Density:         density,
		Mass:            mass,
		Temperature:     temperature,
		OpticalDiameter: opticalDiameter,
		SnowDepth:       snowDepth,
		Thickness:       mass / density,
		SSA:             SSA(opticalDiameter),
	}
}

// SSA returns the specific surface area [m²/kg] of snow with optical
// diameter d [m]. It returns 0 when d <= 0.
func SSA(d float64) float64 {
	if d > 0 {
		return 6 / (d * iceDensitySSA)
	}
	return 0
}

// Profile is the snowpack at a single timestep. It is not modified after
// creation.
type Profile struct {
	time   time.Time
	layers []Layer
}

// NewProfile creates a profile at time t from a copy of layers and sets
// the Height of each layer to the reverse cumulative sum of thickness.
func NewProfile(t time.Time, layers []Layer) Profile {
	l := make([]Layer, len(layers))
	copy(l, layers)
	var h float64
	for i := len(l) - 1; i >= 0; i-- {
		h += l[i].Thickness
		l[i].Height = h
	}
	return Profile{time: t, layers: l}
}

// Time returns the profile timestamp.
func (p Profile) Time() time.Time { return p.time }

// Len returns the number of layers in the profile.
func (p Profile) Len() int { return len(p.layers) }

// Layers returns a copy of the layers in the profile.
func (p Profile) Layers() []Layer {
	l := make([]Layer, len(p.layers))
	copy(l, p.layers)
	return l
}

// Thickness returns the total thickness of the profile [m].
func (p Profile) Thickness() float64 {
	return floats.Sum(column(p.layers, func(l Layer) float64 { return l.Thickness }))
}

// column extracts a single attribute from each layer.
func column(layers []Layer, f func(Layer) float64) []float64 {
	o := make([]float64, len(layers))
	for i, l := range layers {
		o[i] = f(l)
	}
	return o
}

// Dataset holds the profiles of a simulation, ordered by time.
type Dataset struct {
	profiles []Profile
	index    map[int64]int
}

// NewDataset creates a dataset from profiles, which must already be
// sorted by time.
func NewDataset(profiles []Profile) *Dataset {
	d := &Dataset{
		profiles: profiles,
		index:    make(map[int64]int, len(profiles)),
	}
	for i, p := range profiles {
		d.index[p.time.UnixNano()] = i
	}
	return d
}

// Profiles returns the profiles in the dataset.
func (d *Dataset) Profiles() []Profile {
	o := make([]Profile, len(d.profiles))
	copy(o, d.profiles)
	return o
}

// Times returns the distinct timestamps in the dataset.
func (d *Dataset) Times() []time.Time {
	o := make([]time.Time, len(d.profiles))
	for i, p := range d.profiles {
		o[i] = p.time
	}
	return o
}

// Profile returns the profile at time t.
func (d *Dataset) Profile(t time.Time) (Profile, bool) {
	i, ok := d.index[t.UnixNano()]
	if !ok {
		return Profile{}, false
	}
	return d.profiles[i], true
}

// Len returns the number of timesteps in the dataset.
func (d *Dataset) Len() int { return len(d.profiles) }

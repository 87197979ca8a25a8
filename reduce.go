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
	"github.com/spatialmodel/snowlayer/kmeans"
)

// Strategy specifies how a profile is split into groups of layers.
type Strategy string

const (
	// TwoLayer splits a profile at half of its normalized height.
	TwoLayer Strategy = "two"

	// ThreeLayer splits a profile at 0.34 and 0.66 of its normalized
	// height. Layers at exactly 0.66 are in both the top and middle
	// groups.
	ThreeLayer Strategy = "three"

	// TwoLayerCluster groups layers into two k-means clusters of
	// extinction coefficient and height.
	TwoLayerCluster Strategy = "two_k"

	// ThreeLayerCluster groups layers into three k-means clusters of
	// extinction coefficient and height.
	ThreeLayerCluster Strategy = "three_k"
)

// Strategies lists the implemented reduction strategies.
var Strategies = []Strategy{TwoLayer, TwoLayerCluster, ThreeLayer, ThreeLayerCluster}

// ParseStrategy returns the reduction strategy named s.
func ParseStrategy(s string) (Strategy, error) {
	for _, st := range Strategies {
		if Strategy(s) == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("snowlayer: layer type '%s' not implemented. Choose one of ['two', 'two_k', 'three', 'three_k']", s)
}

// Layers returns the target number of reduced layers.
func (s Strategy) Layers() int {
	switch s {
	case TwoLayer, TwoLayerCluster:
		return 2
	case ThreeLayer, ThreeLayerCluster:
		return 3
	}
	return 0
}

// Clustered returns whether s groups layers by clustering.
func (s Strategy) Clustered() bool { return s == TwoLayerCluster || s == ThreeLayerCluster }

// Default values for sensor configuration.
const (
	// DefaultFrequency is the default sensor frequency [Hz].
	DefaultFrequency = 17.5e9

	// IncidenceAngle is the sensor incidence angle [degrees].
	IncidenceAngle = 35.0
)

// Reducer collapses the layers of a profile into a small number of
// aggregate layers.
type Reducer struct {
	// Method is the averaging method.
	Method Method

	// Simulator computes extinction coefficients. It is required by
	// extinction-weighted methods and clustering strategies.
	Simulator emsim.Simulator

	// Sensor is the sensor extinction coefficients are computed for.
	Sensor emsim.Sensor

	// Seed seeds the clustering.
	Seed uint64
}

// NewReducer returns a Reducer using method m that computes extinction
// coefficients with sim at the default sensor configuration.
func NewReducer(m Method, sim emsim.Simulator) *Reducer {
	return &Reducer{
		Method:    m,
		Simulator: sim,
		Sensor:    emsim.Active(DefaultFrequency, IncidenceAngle),
	}
}

// Reduce collapses the layers of p according to strategy s. Groups that
// would be empty are omitted, so the result may have fewer layers than
// s.Layers(). With the clustering strategies, a profile with no more
// layers than clusters is not an error: each layer forms its own group.
// With ThreeLayer, a layer at normalized height 0.66 belongs to both the
// top and the middle group.
func (r *Reducer) Reduce(ctx context.Context, p Profile, s Strategy) ([]ReducedLayer, error) {
	if err := r.Method.check(); err != nil {
		return nil, err
	}
	if p.Len() == 0 {
		return nil, fmt.Errorf("snowlayer: profile at %v has no layers", p.Time())
	}
	var ke []float64
	if r.Method.NeedsExtinction() || s.Clustered() {
		var err error
		ke, err = r.extinction(ctx, p.layers)
		if err != nil {
			return nil, fmt.Errorf("snowlayer: profile at %v: %v", p.Time(), err)
		}
	}

	var groups [][]int
	switch s {
	case TwoLayer:
		groups = splitHeight(p, twoLayerBands)
	case ThreeLayer:
		groups = splitHeight(p, threeLayerBands)
	case TwoLayerCluster, ThreeLayerCluster:
		var err error
		groups, err = r.cluster(p, ke, s.Layers())
		if err != nil {
			return nil, fmt.Errorf("snowlayer: profile at %v: %v", p.Time(), err)
		}
	default:
		_, err := ParseStrategy(string(s))
		return nil, err
	}

	out := make([]ReducedLayer, 0, len(groups))
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		layers := make([]Layer, len(g))
		var gke []float64
		if ke != nil {
			gke = make([]float64, len(g))
		}
		for i, j := range g {
			layers[i] = p.layers[j]
			if ke != nil {
				gke[i] = ke[j]
			}
		}
		rl, err := Average(layers, gke, r.Method)
		if err != nil {
			return nil, fmt.Errorf("snowlayer: profile at %v: %v", p.Time(), err)
		}
		out = append(out, rl)
	}
	return out, nil
}

func (r *Reducer) extinction(ctx context.Context, layers []Layer) ([]float64, error) {
	if r.Simulator == nil {
		return nil, fmt.Errorf("method %s with extinction coefficients requires a simulator", r.Method)
	}
	return ExtinctionCoefficients(ctx, r.Simulator, r.Sensor, layers)
}

// heightBand reports whether a layer at normalized height h belongs to
// a group.
type heightBand func(h float64) bool

// twoLayerBands split a profile at half of its height, upper group first.
var twoLayerBands = []heightBand{
	func(h float64) bool { return h >= 0.5 },
	func(h float64) bool { return h < 0.5 },
}

// threeLayerBands are the top, middle and bottom groups of a profile.
// The top and middle bands share the boundary at 0.66.
var threeLayerBands = []heightBand{
	func(h float64) bool { return h >= 0.66 },
	func(h float64) bool { return h >= 0.34 && h <= 0.66 },
	func(h float64) bool { return h < 0.34 },
}

// splitHeight returns the indices of the layers of p in each band, by
// their height normalized by the total thickness of p. A layer is placed
// in every band it falls in.
func splitHeight(p Profile, bands []heightBand) [][]int {
	total := p.Thickness()
	groups := make([][]int, len(bands))
	for i, l := range p.layers {
		h := l.Height / total
		for j, in := range bands {
			if in(h) {
				groups[j] = append(groups[j], i)
			}
		}
	}
	return groups
}

// cluster groups the layers of p into k clusters of extinction
// coefficient and height. Groups are ordered by the first layer that
// belongs to them.
func (r *Reducer) cluster(p Profile, ke []float64, k int) ([][]int, error) {
	points := make([][]float64, p.Len())
	for i, l := range p.layers {
		points[i] = []float64{ke[i], l.Height}
	}
	res, err := kmeans.Cluster(points, k, r.Seed)
	if err != nil {
		return nil, err
	}
	return groupByLabel(res.Labels), nil
}

// groupByLabel returns the indices of each label, with labels in the
// order they first appear.
func groupByLabel(labels []int) [][]int {
	var groups [][]int
	index := make(map[int]int)
	for i, l := range labels {
		g, ok := index[l]
		if !ok {
			g = len(groups)
			index[l] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

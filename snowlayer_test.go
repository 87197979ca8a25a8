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
	"math"
	"sync"
	"testing"
	"time"

	"github.com/spatialmodel/snowlayer/emsim"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

const testTolerance = 1.e-8

// fakeSimulator computes an extinction coefficient of density/100 for
// each layer and a backscatter of the total mass of each snowpack. It
// records the snowpacks it receives.
type fakeSimulator struct {
	mu           sync.Mutex
	coefficients []*emsim.Snowpack
	backscatter  []*emsim.Snowpack
	models       []emsim.Model

	// nanAbove makes Backscatter return NaN for snowpacks whose total
	// mass exceeds it, if positive.
	nanAbove float64
}

func (f *fakeSimulator) Coefficients(ctx context.Context, m emsim.Model, s emsim.Sensor, sp *emsim.Snowpack) (*emsim.Coefficients, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coefficients = append(f.coefficients, sp)
	f.models = append(f.models, m)
	c := &emsim.Coefficients{
		Scattering: make([]float64, len(sp.Layers)),
		Absorption: make([]float64, len(sp.Layers)),
	}
	for i, l := range sp.Layers {
		c.Scattering[i] = l.Density / 100
	}
	return c, nil
}

func (f *fakeSimulator) Backscatter(ctx context.Context, m emsim.Model, s emsim.Sensor, snowpacks []*emsim.Snowpack) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backscatter = append(f.backscatter, snowpacks...)
	f.models = append(f.models, m)
	o := make([]float64, len(snowpacks))
	for i, sp := range snowpacks {
		for _, l := range sp.Layers {
			o[i] += l.Density * l.Thickness
		}
		if f.nanAbove > 0 && o[i] > f.nanAbove {
			o[i] = math.NaN()
		}
	}
	return o, nil
}

// errSimulator fails every request.
type errSimulator struct{}

func (errSimulator) Coefficients(ctx context.Context, m emsim.Model, s emsim.Sensor, sp *emsim.Snowpack) (*emsim.Coefficients, error) {
	return nil, fmt.Errorf("simulator failure")
}

func (errSimulator) Backscatter(ctx context.Context, m emsim.Model, s emsim.Sensor, snowpacks []*emsim.Snowpack) ([]float64, error) {
	return nil, fmt.Errorf("simulator failure")
}

var testTime = time.Date(2019, time.December, 1, 6, 0, 0, 0, time.UTC)

// layerStack returns a profile of layers 0.1 m thick with the given
// densities, top layer first.
func layerStack(t time.Time, densities ...float64) Profile {
	layers := make([]Layer, len(densities))
	for i, d := range densities {
		layers[i] = NewLayer(d, d/10, 260+float64(i), 2e-4, 0.1*float64(len(densities)))
	}
	return NewProfile(t, layers)
}

func TestNewProfile(t *testing.T) {
	p := layerStack(testTime, 100, 200, 300, 400)
	want := []float64{0.4, 0.3, 0.2, 0.1}
	for i, l := range p.Layers() {
		if different(l.Thickness, 0.1, testTolerance) {
			t.Errorf("layer %d thickness: %g", i, l.Thickness)
		}
		if different(l.Height, want[i], testTolerance) {
			t.Errorf("layer %d height: have %g, want %g", i, l.Height, want[i])
		}
	}
	if different(p.Thickness(), 0.4, testTolerance) {
		t.Errorf("thickness: %g", p.Thickness())
	}
	if !p.Time().Equal(testTime) {
		t.Errorf("time: %v", p.Time())
	}

	l := p.Layers()
	l[0].Density = -1
	if p.Layers()[0].Density != 100 {
		t.Error("profile layers should not be modifiable")
	}
}

func TestNewProfileSingleLayer(t *testing.T) {
	p := NewProfile(testTime, []Layer{NewLayer(250, 50, 270, 1e-4, 0.2)})
	if p.Len() != 1 {
		t.Fatalf("len = %d", p.Len())
	}
	if l := p.Layers()[0]; different(l.Height, l.Thickness, testTolerance) {
		t.Errorf("height %g != thickness %g", l.Height, l.Thickness)
	}
}

func TestDataset(t *testing.T) {
	t2 := testTime.Add(time.Hour)
	d := NewDataset([]Profile{layerStack(testTime, 100), layerStack(t2, 100, 200)})
	if d.Len() != 2 {
		t.Fatalf("len = %d", d.Len())
	}
	times := d.Times()
	if !times[0].Equal(testTime) || !times[1].Equal(t2) {
		t.Errorf("times = %v", times)
	}
	p, ok := d.Profile(t2)
	if !ok {
		t.Fatal("missing profile")
	}
	if p.Len() != 2 {
		t.Errorf("profile has %d layers", p.Len())
	}
	if _, ok := d.Profile(t2.Add(time.Minute)); ok {
		t.Error("found a profile that does not exist")
	}
}

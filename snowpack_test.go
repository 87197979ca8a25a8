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
	"testing"

	"github.com/spatialmodel/snowlayer/emsim"
)

func TestDebyeCorrelationLength(t *testing.T) {
	ssa := SSA(2e-4)
	want := 4 * (1 - 300/916.7) / (ssa * 916.7)
	if have := DebyeCorrelationLength(ssa, 300); different(have, want, testTolerance) {
		t.Errorf("have %g, want %g", have, want)
	}
}

func TestBuildSnowpack(t *testing.T) {
	red := []ReducedLayer{
		{Layer: NewLayer(150, 30, 260, 3e-4, 0.5)},
		{Layer: NewLayer(350, 105, 268, 1e-3, 0.5)},
	}
	tests := []struct {
		mode InterfaceMode
		want []emsim.InterfaceType
	}{
		{mode: NormalInterfaces, want: []emsim.InterfaceType{emsim.Flat, emsim.Flat}},
		{mode: TransparentInterfaces, want: []emsim.InterfaceType{emsim.Transparent, emsim.Transparent}},
		{mode: TransparentBelowSurface, want: []emsim.InterfaceType{emsim.Flat, emsim.Transparent}},
	}
	for _, test := range tests {
		t.Run(string(test.mode), func(t *testing.T) {
			sp, err := BuildSnowpack(red, test.mode)
			if err != nil {
				t.Fatal(err)
			}
			if len(sp.Layers) != 2 {
				t.Fatalf("have %d layers", len(sp.Layers))
			}
			for i, l := range sp.Layers {
				want := 0.75 * DebyeCorrelationLength(red[i].SSA, red[i].Density)
				if different(l.CorrLength, want, testTolerance) {
					t.Errorf("layer %d correlation length: have %g, want %g", i, l.CorrLength, want)
				}
				if l.Thickness != red[i].Thickness || l.Density != red[i].Density || l.Temperature != red[i].Temperature {
					t.Errorf("layer %d: %+v", i, l)
				}
				if sp.Interfaces[i] != test.want[i] {
					t.Errorf("interface %d: have %s, want %s", i, sp.Interfaces[i], test.want[i])
				}
			}
			if sp.Substrate == nil || sp.Substrate.Temperature != 265 || sp.Substrate.SpecularReflection != 0 {
				t.Errorf("substrate: %+v", sp.Substrate)
			}
			if sp.Substrate.Backscatter["VV"] != 0 || sp.Substrate.Backscatter["HH"] != 0 {
				t.Errorf("substrate backscatter: %v", sp.Substrate.Backscatter)
			}
		})
	}
}

func TestBuildSnowpackSingleLayer(t *testing.T) {
	sp, err := BuildSnowpack([]ReducedLayer{{Layer: NewLayer(200, 40, 265, 2e-4, 0.2)}}, TransparentBelowSurface)
	if err != nil {
		t.Fatal(err)
	}
	if len(sp.Interfaces) != 1 || sp.Interfaces[0] != emsim.Flat {
		t.Errorf("interfaces: %v", sp.Interfaces)
	}
}

func TestBuildSnowpackInvalid(t *testing.T) {
	t.Run("density", func(t *testing.T) {
		_, err := BuildSnowpack([]ReducedLayer{{Layer: NewLayer(950, 95, 265, 2e-4, 0.2)}}, NormalInterfaces)
		if err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("ssa", func(t *testing.T) {
		_, err := BuildSnowpack([]ReducedLayer{{Layer: NewLayer(200, 20, 265, 0, 0.2)}}, NormalInterfaces)
		if err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("mode", func(t *testing.T) {
		_, err := BuildSnowpack([]ReducedLayer{{Layer: NewLayer(200, 20, 265, 2e-4, 0.2)}}, InterfaceMode("rough"))
		if err == nil {
			t.Error("expected an error")
		}
	})
}

func TestExtinctionCoefficients(t *testing.T) {
	sim := new(fakeSimulator)
	p := layerStack(testTime, 100, 250)
	s := emsim.Active(DefaultFrequency, IncidenceAngle)
	ke, err := ExtinctionCoefficients(context.Background(), sim, s, p.Layers())
	if err != nil {
		t.Fatal(err)
	}
	if len(ke) != 2 || different(ke[0], 1, testTolerance) || different(ke[1], 2.5, testTolerance) {
		t.Errorf("ke = %v", ke)
	}
	sp := sim.coefficients[0]
	if sp.Substrate != nil {
		t.Error("extinction snowpack should not have a substrate")
	}
	for i, l := range p.Layers() {
		want := DebyeCorrelationLength(l.SSA, l.Density)
		if different(sp.Layers[i].CorrLength, want, testTolerance) {
			t.Errorf("layer %d correlation length: have %g, want %g", i, sp.Layers[i].CorrLength, want)
		}
	}
	if sim.models[0].Name != emsim.Extinction.Name {
		t.Errorf("model = %s", sim.models[0].Name)
	}
}

func TestParseInterfaceMode(t *testing.T) {
	for _, m := range []InterfaceMode{NormalInterfaces, TransparentInterfaces, TransparentBelowSurface} {
		if mm, err := ParseInterfaceMode(string(m)); err != nil || mm != m {
			t.Errorf("%s: %v", m, err)
		}
	}
	if _, err := ParseInterfaceMode("rough"); err == nil {
		t.Error("expected an error")
	}
}

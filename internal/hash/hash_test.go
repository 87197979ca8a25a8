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

package hash

import (
	"math"
	"testing"
)

type layer struct {
	Thickness, Density float64
	Options            map[string]string
}

func TestKey(t *testing.T) {
	a := &layer{Thickness: 0.1, Density: 250, Options: map[string]string{"a": "1", "b": "2"}}
	b := &layer{Thickness: 0.1, Density: 250, Options: map[string]string{"b": "2", "a": "1"}}
	c := &layer{Thickness: 0.2, Density: 250}

	if Key(a) != Key(b) {
		t.Errorf("equal objects have different keys: %s != %s", Key(a), Key(b))
	}
	if Key(a) == Key(c) {
		t.Errorf("different objects have the same key %s", Key(a))
	}
	if Key(a, 1) == Key(a, 2) {
		t.Error("additional objects are not part of the key")
	}
	n := &layer{Thickness: math.NaN()}
	if Key(n) != Key(n) {
		t.Error("NaN values give unstable keys")
	}
}

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
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/snowlayer/emsim"
)

// Result holds the outcome of simulating a series of profiles. All
// fields are aligned by timestep.
type Result struct {
	Times []time.Time

	// SigmaVV is the VV backscatter coefficient [linear]. It is NaN where
	// the snowpack could not be built or simulated.
	SigmaVV []float64

	// SWE is the snow water equivalent of the reduced layers [kg/m²].
	// It is NaN where the profile could not be reduced.
	SWE []float64

	// Layers holds the reduced layers of each profile.
	Layers [][]ReducedLayer
}

// Runner reduces profiles and simulates their backscatter.
type Runner struct {
	Reducer   *Reducer
	Simulator emsim.Simulator

	// Model is the backscatter model configuration.
	Model emsim.Model

	// Sensor is the simulated sensor.
	Sensor emsim.Sensor

	// Interfaces specifies the boundaries between simulated layers.
	Interfaces InterfaceMode

	// Log receives diagnostic messages. If nil,
	// logrus.StandardLogger() is used.
	Log logrus.FieldLogger
}

// NewRunner returns a runner that uses sim both for extinction and
// backscatter, with the default sensor and normal interfaces.
func NewRunner(sim emsim.Simulator, m Method, model emsim.Model) *Runner {
	red := NewReducer(m, sim)
	return &Runner{
		Reducer:    red,
		Simulator:  sim,
		Model:      model,
		Sensor:     red.Sensor,
		Interfaces: NormalInterfaces,
	}
}

func (r *Runner) log() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

// Reduce reduces each profile using strategy s. Profiles that cannot be
// reduced are logged and have nil layers in the output.
func (r *Runner) Reduce(ctx context.Context, profiles []Profile, s Strategy) ([][]ReducedLayer, error) {
	if err := r.Reducer.Method.check(); err != nil {
		return nil, err
	}
	if _, err := ParseStrategy(string(s)); err != nil {
		return nil, err
	}
	out := make([][]ReducedLayer, len(profiles))
	for i, p := range profiles {
		layers, err := r.Reducer.Reduce(ctx, p, s)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log().WithFields(logrus.Fields{
				"time":     p.Time(),
				"layers":   p.Len(),
				"strategy": s,
				"method":   r.Reducer.Method,
			}).WithError(err).Warn("skipping profile that could not be reduced")
			continue
		}
		out[i] = layers
	}
	return out, nil
}

// Run reduces each profile using strategy s, builds a snowpack from the
// reduced layers and simulates the backscatter of all snowpacks in one
// simulator call.
func (r *Runner) Run(ctx context.Context, profiles []Profile, s Strategy) (*Result, error) {
	reduced, err := r.Reduce(ctx, profiles, s)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Times:   make([]time.Time, len(profiles)),
		SigmaVV: make([]float64, len(profiles)),
		SWE:     make([]float64, len(profiles)),
		Layers:  reduced,
	}

	var snowpacks []*emsim.Snowpack
	var index []int
	for i, p := range profiles {
		res.Times[i] = p.Time()
		res.SigmaVV[i] = math.NaN()
		if reduced[i] == nil {
			res.SWE[i] = math.NaN()
			continue
		}
		res.SWE[i] = SWE(reduced[i])
		sp, err := BuildSnowpack(reduced[i], r.Interfaces)
		if err != nil {
			r.log().WithFields(logrus.Fields{
				"time":   p.Time(),
				"layers": fmt.Sprintf("%+v", reduced[i]),
			}).WithError(err).Warn("skipping snowpack that could not be built")
			continue
		}
		snowpacks = append(snowpacks, sp)
		index = append(index, i)
	}

	start := time.Now()
	sigma, err := r.Simulator.Backscatter(ctx, r.Model, r.Sensor, snowpacks)
	if err != nil {
		return nil, fmt.Errorf("snowlayer: simulating backscatter: %v", err)
	}
	if len(sigma) != len(snowpacks) {
		return nil, fmt.Errorf("snowlayer: simulator returned %d values for %d snowpacks", len(sigma), len(snowpacks))
	}
	for j, i := range index {
		res.SigmaVV[i] = sigma[j]
	}
	r.log().WithFields(logrus.Fields{
		"timesteps": len(profiles),
		"simulated": len(snowpacks),
		"model":     r.Model.Name,
		"duration":  time.Since(start),
	}).Info("simulated backscatter")
	return res, nil
}

// Decibels converts a linear backscatter coefficient to decibels.
func Decibels(sigma float64) float64 {
	return 10 * math.Log10(sigma)
}

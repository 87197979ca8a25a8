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

package snowlayerutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/snowlayer"
)

// load reads the profiles specified by c.
func load(c *Config) ([]snowlayer.Profile, error) {
	start := time.Now()
	d, err := snowlayer.LoadCrocus(c.CrocusFile, c.SeasonStartYear)
	if err != nil {
		return nil, err
	}
	if d.Len() == 0 {
		return nil, fmt.Errorf("snowlayer: no snow in %s after October 1 %d", c.CrocusFile, c.SeasonStartYear)
	}
	logrus.WithFields(logrus.Fields{
		"file":      c.CrocusFile,
		"timesteps": d.Len(),
		"duration":  time.Since(start),
	}).Info("loaded Crocus profiles")
	return d.Profiles(), nil
}

// newRunner creates a runner for the settings in c.
func newRunner(c *Config) *snowlayer.Runner {
	r := snowlayer.NewRunner(c.Simulator(), c.Method, c.Model)
	r.Reducer.Sensor = c.Sensor()
	r.Sensor = c.Sensor()
	r.Interfaces = c.Interfaces
	return r
}

// Reduce reduces the profiles specified by c and writes the reduced
// layers to c.OutputFile.
func Reduce(ctx context.Context, c *Config) error {
	profiles, err := load(c)
	if err != nil {
		return err
	}
	r := newRunner(c)
	layers, err := r.Reduce(ctx, profiles, c.LayerType)
	if err != nil {
		return err
	}
	res := &snowlayer.Result{
		Times:  make([]time.Time, len(profiles)),
		Layers: layers,
	}
	for i, p := range profiles {
		res.Times[i] = p.Time()
	}
	f, err := os.Create(c.OutputFile)
	if err != nil {
		return fmt.Errorf("snowlayer: creating output file: %v", err)
	}
	if err := snowlayer.WriteReducedCSV(f, res); err != nil {
		f.Close()
		return err
	}
	logrus.WithField("file", c.OutputFile).Info("wrote reduced layers")
	return f.Close()
}

// Run reduces the profiles specified by c, simulates their backscatter and
// writes the results to c.OutputFile, and plots them to c.PlotFile if it
// is set.
func Run(ctx context.Context, c *Config) error {
	profiles, err := load(c)
	if err != nil {
		return err
	}
	r := newRunner(c)
	logrus.WithFields(logrus.Fields{
		"strategy":   c.LayerType,
		"method":     c.Method,
		"model":      c.Model.Name,
		"interfaces": c.Interfaces,
		"frequency":  c.Frequency,
	}).Info("running simulation")
	res, err := r.Run(ctx, profiles, c.LayerType)
	if err != nil {
		return err
	}

	f, err := os.Create(c.OutputFile)
	if err != nil {
		return fmt.Errorf("snowlayer: creating output file: %v", err)
	}
	if isNetCDF(c.OutputFile) {
		err = snowlayer.WriteNetCDF(f, res)
	} else {
		err = snowlayer.WriteCSV(f, res)
	}
	if err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("snowlayer: closing output file: %v", err)
	}
	logrus.WithField("file", c.OutputFile).Info("wrote results")

	if c.PlotFile != "" {
		if err := snowlayer.PlotResult(res, c.PlotFile); err != nil {
			return err
		}
		logrus.WithField("file", c.PlotFile).Info("wrote plots")
	}
	return nil
}

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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/ctessum/cdf"
)

// timeUnits are the units of the time variable in output NetCDF files.
const timeUnits = "seconds since 1970-01-01 00:00:00"

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// WriteCSV writes the backscatter and snow water equivalent time series in
// res to w, one row per timestep.
func WriteCSV(w io.Writer, res *Result) error {
	c := csv.NewWriter(w)
	if err := c.Write([]string{"time", "sigma_vv", "sigma_vv_db", "swe"}); err != nil {
		return fmt.Errorf("snowlayer: writing csv: %v", err)
	}
	for i, t := range res.Times {
		row := []string{
			t.UTC().Format(time.RFC3339),
			formatFloat(res.SigmaVV[i]),
			formatFloat(Decibels(res.SigmaVV[i])),
			formatFloat(res.SWE[i]),
		}
		if err := c.Write(row); err != nil {
			return fmt.Errorf("snowlayer: writing csv: %v", err)
		}
	}
	c.Flush()
	if err := c.Error(); err != nil {
		return fmt.Errorf("snowlayer: writing csv: %v", err)
	}
	return nil
}

// WriteReducedCSV writes the reduced layers in res to w, one row per
// layer, top layer first.
func WriteReducedCSV(w io.Writer, res *Result) error {
	c := csv.NewWriter(w)
	header := []string{"time", "layer", "thickness", "density", "mass", "temperature",
		"optical_diameter", "snow_depth", "ssa", "height", "extinction"}
	if err := c.Write(header); err != nil {
		return fmt.Errorf("snowlayer: writing reduced layers: %v", err)
	}
	for i, layers := range res.Layers {
		for j, l := range layers {
			row := []string{
				res.Times[i].UTC().Format(time.RFC3339),
				strconv.Itoa(j),
				formatFloat(l.Thickness),
				formatFloat(l.Density),
				formatFloat(l.Mass),
				formatFloat(l.Temperature),
				formatFloat(l.OpticalDiameter),
				formatFloat(l.SnowDepth),
				formatFloat(l.SSA),
				formatFloat(l.Height),
				formatFloat(l.Extinction),
			}
			if err := c.Write(row); err != nil {
				return fmt.Errorf("snowlayer: writing reduced layers: %v", err)
			}
		}
	}
	c.Flush()
	if err := c.Error(); err != nil {
		return fmt.Errorf("snowlayer: writing reduced layers: %v", err)
	}
	return nil
}

// WriteNetCDF writes the time series in res to NetCDF file w. Missing
// values are stored as NaN.
func WriteNetCDF(w *os.File, res *Result) error {
	n := len(res.Times)
	if n == 0 {
		return fmt.Errorf("snowlayer: writing netcdf: no timesteps")
	}
	h := cdf.NewHeader([]string{"time"}, []int{n})
	h.AddAttribute("", "comment", "SnowLayer reduced snowpack backscatter")
	h.AddAttribute("", "snowlayer_version", Version)

	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", timeUnits)
	h.AddAttribute("time", "calendar", "standard")

	h.AddVariable("sigma_vv", []string{"time"}, []float64{0})
	h.AddAttribute("sigma_vv", "description", "VV backscatter coefficient")
	h.AddAttribute("sigma_vv", "units", "1")

	h.AddVariable("swe", []string{"time"}, []float64{0})
	h.AddAttribute("swe", "description", "Snow water equivalent of the reduced layers")
	h.AddAttribute("swe", "units", "kg m-2")
	h.Define()

	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return fmt.Errorf("snowlayer: writing netcdf: %v", err)
	}
	t := make([]float64, n)
	for i, tt := range res.Times {
		t[i] = float64(tt.Unix()) + float64(tt.Nanosecond())/1e9
	}
	for _, v := range []struct {
		name string
		data []float64
	}{
		{"time", t},
		{"sigma_vv", res.SigmaVV},
		{"swe", res.SWE},
	} {
		if err := writeNCF(f, v.name, v.data); err != nil {
			return fmt.Errorf("snowlayer: writing variable %s to netcdf file: %v", v.name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeNCF(f *cdf.File, v string, data []float64) error {
	end := f.Header.Lengths(v)
	if len(end) != 1 || end[0] != len(data) {
		return fmt.Errorf("dims are %v but array length is %d", end, len(data))
	}
	start := make([]int, len(end))
	w := f.Writer(v, start, end)
	_, err := w.Write(data)
	return err
}

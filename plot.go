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
	"image/color"
	"math"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot dimensions.
const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 3 * vg.Inch
)

// PlotSeries plots values against times as a line and saves the figure
// to filename, in the format implied by its extension. Missing (NaN)
// values break the line.
func PlotSeries(times []time.Time, values []float64, title, ylabel, filename string) error {
	if len(times) != len(values) {
		return fmt.Errorf("snowlayer: plotting %s: %d times but %d values", title, len(times), len(values))
	}
	segments := finiteSegments(times, values)
	if len(segments) == 0 {
		return fmt.Errorf("snowlayer: plotting %s: no values to plot", title)
	}

	p, err := plot.New()
	if err != nil {
		return fmt.Errorf("snowlayer: plotting %s: %v", title, err)
	}
	p.Title.Text = title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = ylabel
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Add(plotter.NewGrid())

	for _, s := range segments {
		l, err := plotter.NewLine(s)
		if err != nil {
			return fmt.Errorf("snowlayer: plotting %s: %v", title, err)
		}
		l.Color = color.NRGBA{0, 0, 0, 255}
		l.Width = vg.Points(1)
		p.Add(l)
	}
	if err := p.Save(plotWidth, plotHeight, filename); err != nil {
		return fmt.Errorf("snowlayer: saving plot %s: %v", filename, err)
	}
	return nil
}

// finiteSegments splits a time series into runs of finite values.
func finiteSegments(times []time.Time, values []float64) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XYs{{X: float64(times[i].Unix()), Y: v}}...)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// PlotResult plots the backscatter [dB] and snow water equivalent series
// of res. The figures are saved next to path with "_sigma_vv" and "_swe"
// appended to its base name.
func PlotResult(res *Result, path string) error {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	if ext == "" {
		ext = ".png"
	}
	db := make([]float64, len(res.SigmaVV))
	for i, s := range res.SigmaVV {
		db[i] = Decibels(s)
	}
	if err := PlotSeries(res.Times, db, "VV backscatter", "σ° VV (dB)", base+"_sigma_vv"+ext); err != nil {
		return err
	}
	return PlotSeries(res.Times, res.SWE, "Snow water equivalent", "SWE (kg/m²)", base+"_swe"+ext)
}

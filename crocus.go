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
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/cdf"
)

// Names of the Crocus output variables.
const (
	varDensity         = "SNODEN_ML"
	varMass            = "SNOMA_ML"
	varTemperature     = "TSNOW_ML"
	varOpticalDiameter = "SNODOPT_ML"
	varSnowDepth       = "SNODP"
	varTime            = "time"
)

// crocusVars are the Crocus output variables read at each timestep.
var crocusVars = []string{varDensity, varMass, varTemperature, varOpticalDiameter, varSnowDepth}

// LoadCrocus reads Crocus snowpack output from the NetCDF file at path
// and returns the profiles at or after October 1 of seasonStartYear.
// Classic (CDF-1 and CDF-2) files are read with the cdf package; NetCDF 4
// (HDF5) and CDF-5 files are read with go-native-netcdf.
func LoadCrocus(path string, seasonStartYear int) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snowlayer: opening Crocus file: %v", err)
	}
	defer f.Close()
	format, err := sniffFormat(f)
	if err != nil {
		return nil, fmt.Errorf("snowlayer: opening Crocus file %s: %v", path, err)
	}
	var d *Dataset
	switch format {
	case formatClassic:
		d, err = loadClassic(f, seasonStartYear)
	case formatNative:
		d, err = loadNative(path, seasonStartYear)
	}
	if err != nil {
		return nil, fmt.Errorf("snowlayer: Crocus file %s: %v", path, err)
	}
	return d, nil
}

type fileFormat int

const (
	formatClassic fileFormat = iota
	formatNative
)

var hdf5Magic = []byte("\x89HDF\r\n\x1a\n")

// sniffFormat returns the format of the NetCDF file r from its magic
// number and rewinds r.
func sniffFormat(r io.ReadSeeker) (fileFormat, error) {
	magic := make([]byte, len(hdf5Magic))
	n, err := io.ReadFull(r, magic)
	if err != nil && err != io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("reading magic number: %v", err)
	}
	magic = magic[:n]
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	switch {
	case bytes.HasPrefix(magic, []byte("CDF\x01")), bytes.HasPrefix(magic, []byte("CDF\x02")):
		return formatClassic, nil
	case bytes.HasPrefix(magic, []byte("CDF\x05")), bytes.Equal(magic, hdf5Magic):
		return formatNative, nil
	}
	return 0, fmt.Errorf("not a NetCDF file (magic number %q)", magic)
}

func loadClassic(f *os.File, seasonStartYear int) (*Dataset, error) {
	nc, err := cdf.Open(f)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	ntime := nc.Header.Lengths(varTime)
	if len(ntime) == 0 {
		return nil, fmt.Errorf("variable %s not in file", varTime)
	}
	n := ntime[0]
	if nc.Header.IsRecordVariable(varTime) {
		n = int(nc.Header.NumRecs(fi.Size()))
	}
	return ReadCrocus(nc, n, seasonStartYear)
}

func loadNative(path string, seasonStartYear int) (*Dataset, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer g.Close()
	return ReadCrocusGroup(g, seasonStartYear)
}

// ReadCrocus reads the first ntime timesteps of Crocus output from the
// classic NetCDF file nc and returns the profiles at or after October 1
// of seasonStartYear.
// Layers with missing values, layers thinner than MinThickness and
// timesteps with snow depth not above MinSnowDepth are removed.
func ReadCrocus(nc *cdf.File, ntime, seasonStartYear int) (*Dataset, error) {
	return readCrocus(&cdfSource{nc: nc, ntime: ntime}, seasonStartYear)
}

// ReadCrocusGroup is like ReadCrocus for the root group of a file opened
// with go-native-netcdf.
func ReadCrocusGroup(g api.Group, seasonStartYear int) (*Dataset, error) {
	src, err := newGroupSource(g, append([]string{varTime}, crocusVars...))
	if err != nil {
		return nil, err
	}
	return readCrocus(src, seasonStartYear)
}

// crocusSource provides the variables of a Crocus output file.
type crocusSource interface {
	// lengths returns the dimension lengths of variable v, time first,
	// or nil if v is not in the file.
	lengths(v string) []int

	// record returns the values of v at time index t, with fill values
	// replaced by NaN.
	record(v string, t int) ([]float64, error)

	// units returns the units attribute of v.
	units(v string) (string, bool)
}

func readCrocus(src crocusSource, seasonStartYear int) (*Dataset, error) {
	times, err := readTimes(src)
	if err != nil {
		return nil, err
	}
	nlayer, err := layerCount(src)
	if err != nil {
		return nil, err
	}
	begin := time.Date(seasonStartYear, time.October, 1, 0, 0, 0, 0, time.UTC)

	var profiles []Profile
	for t, date := range times {
		if date.Before(begin) {
			continue
		}
		vars := make(map[string][]float64)
		for _, v := range crocusVars {
			data, err := src.record(v, t)
			if err != nil {
				return nil, err
			}
			vars[v] = data
		}
		depth := vars[varSnowDepth][0]
		if math.IsNaN(depth) || !(depth > MinSnowDepth) {
			continue
		}
		var layers []Layer
		for i := 0; i < nlayer; i++ {
			l := NewLayer(vars[varDensity][i], vars[varMass][i], vars[varTemperature][i], vars[varOpticalDiameter][i], depth)
			if missing(l) || !(l.Thickness > MinThickness) {
				continue
			}
			layers = append(layers, l)
		}
		if len(layers) == 0 {
			continue
		}
		profiles = append(profiles, NewProfile(date, layers))
	}
	return NewDataset(profiles), nil
}

// cdfSource reads Crocus variables from a classic NetCDF file.
type cdfSource struct {
	nc    *cdf.File
	ntime int
}

func (s *cdfSource) lengths(v string) []int {
	l := s.nc.Header.Lengths(v)
	if len(l) == 0 {
		return nil
	}
	out := make([]int, len(l))
	copy(out, l)
	if s.nc.Header.IsRecordVariable(v) || s.ntime < out[0] {
		out[0] = s.ntime
	}
	return out
}

func (s *cdfSource) record(v string, t int) ([]float64, error) {
	return readRecord(s.nc, v, t)
}

func (s *cdfSource) units(v string) (string, bool) {
	u, ok := s.nc.Header.GetAttribute(v, "units").(string)
	return u, ok
}

// groupVar is a variable read in full from a go-native-netcdf group.
type groupVar struct {
	data  []float64
	shape []int
	units string
	ok    bool
}

// groupSource holds Crocus variables read from a go-native-netcdf group.
type groupSource struct {
	vars map[string]groupVar
}

func newGroupSource(g api.Group, names []string) (*groupSource, error) {
	s := &groupSource{vars: make(map[string]groupVar)}
	for _, name := range names {
		v, err := g.GetVariable(name)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %v", name, err)
		}
		data, shape, err := flatten(v.Values)
		if err != nil {
			return nil, fmt.Errorf("reading variable %s: %v", name, err)
		}
		if len(shape) != len(v.Dimensions) {
			return nil, fmt.Errorf("variable %s has %d dimensions but %d were read", name, len(v.Dimensions), len(shape))
		}
		gv := groupVar{data: data, shape: shape}
		if v.Attributes != nil {
			if fillI, ok := v.Attributes.Get("_FillValue"); ok {
				fill, _, err := flatten(fillI)
				if err != nil || len(fill) == 0 {
					return nil, fmt.Errorf("invalid type for %s _FillValue: %T", name, fillI)
				}
				replaceFill(data, fill[0])
			} else {
				replaceFill(data, math.NaN())
			}
			if u, ok := v.Attributes.Get("units"); ok {
				gv.units, gv.ok = u.(string)
			}
		}
		s.vars[name] = gv
	}
	return s, nil
}

func (s *groupSource) lengths(v string) []int {
	gv, ok := s.vars[v]
	if !ok {
		return nil
	}
	return gv.shape
}

func (s *groupSource) record(v string, t int) ([]float64, error) {
	gv, ok := s.vars[v]
	if !ok || len(gv.shape) == 0 {
		return nil, fmt.Errorf("variable %s not in file", v)
	}
	if t < 0 || t >= gv.shape[0] {
		return nil, fmt.Errorf("reading variable %s: time index %d out of range [0, %d)", v, t, gv.shape[0])
	}
	n := len(gv.data) / gv.shape[0]
	out := make([]float64, n)
	copy(out, gv.data[t*n:(t+1)*n])
	return out, nil
}

func (s *groupSource) units(v string) (string, bool) {
	gv := s.vars[v]
	return gv.units, gv.ok
}

// flatten converts a (possibly nested) slice of numbers, or a single
// number, to a flat []float64 in row-major order and returns it with the
// lengths of each slice level.
func flatten(values interface{}) ([]float64, []int, error) {
	rv := reflect.ValueOf(values)
	if !rv.IsValid() {
		return nil, nil, fmt.Errorf("no data")
	}
	var shape []int
	for v := rv; v.Kind() == reflect.Slice; {
		shape = append(shape, v.Len())
		if v.Len() == 0 {
			break
		}
		v = v.Index(0)
	}
	size := 1
	for _, n := range shape {
		size *= n
	}
	data := make([]float64, 0, size)
	var walk func(v reflect.Value) error
	walk = func(v reflect.Value) error {
		switch v.Kind() {
		case reflect.Slice:
			for i := 0; i < v.Len(); i++ {
				if err := walk(v.Index(i)); err != nil {
					return err
				}
			}
		case reflect.Float32, reflect.Float64:
			data = append(data, v.Float())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			data = append(data, float64(v.Int()))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			data = append(data, float64(v.Uint()))
		default:
			return fmt.Errorf("unsupported data type %s", v.Type())
		}
		return nil
	}
	if err := walk(rv); err != nil {
		return nil, nil, err
	}
	if len(data) != size {
		return nil, nil, fmt.Errorf("ragged array of shape %v has %d values", shape, len(data))
	}
	return data, shape, nil
}

// replaceFill sets values equal to fill, and infinite values, to NaN.
func replaceFill(data []float64, fill float64) {
	for i, d := range data {
		if d == fill || math.IsInf(d, 0) {
			data[i] = math.NaN()
		}
	}
}

// missing returns whether any of the input values of l is missing.
func missing(l Layer) bool {
	for _, v := range []float64{l.Density, l.Mass, l.Temperature, l.OpticalDiameter} {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// layerCount returns the number of layers in the layered variables,
// checking that they all have the same shape.
func layerCount(src crocusSource) (int, error) {
	n := -1
	for _, v := range []string{varDensity, varMass, varTemperature, varOpticalDiameter} {
		dims := src.lengths(v)
		if len(dims) < 2 {
			return 0, fmt.Errorf("variable %s should have dimensions (time, layer, ...)", v)
		}
		for _, d := range dims[2:] {
			if d != 1 {
				return 0, fmt.Errorf("variable %s has dimension lengths %v; only single-point output is supported", v, dims)
			}
		}
		if n >= 0 && dims[1] != n {
			return 0, fmt.Errorf("variable %s has %d layers but %s has %d", v, dims[1], varDensity, n)
		}
		n = dims[1]
	}
	dims := src.lengths(varSnowDepth)
	if len(dims) == 0 {
		return 0, fmt.Errorf("variable %s not in file", varSnowDepth)
	}
	for _, d := range dims[1:] {
		if d != 1 {
			return 0, fmt.Errorf("variable %s has dimension lengths %v; only single-point output is supported", varSnowDepth, dims)
		}
	}
	return n, nil
}

// readRecord reads variable v out of netcdf file nc at the index 0 value
// specified by t. Fill values are replaced with NaN.
func readRecord(nc *cdf.File, v string, t int) ([]float64, error) {
	dims := nc.Header.Lengths(v)
	if len(dims) == 0 {
		return nil, fmt.Errorf("variable %s not in file", v)
	}
	nread := 1
	for _, d := range dims[1:] {
		nread *= d
	}
	start, end := make([]int, len(dims)), make([]int, len(dims))
	start[0], end[0] = t, t+1
	r := nc.Reader(v, start, end)
	buf := r.Zero(nread)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading variable %s at time index %d: %v", v, t, err)
	}
	data, err := toFloat64(buf)
	if err != nil {
		return nil, fmt.Errorf("reading variable %s: %v", v, err)
	}
	fill, err := fillValue(nc, v)
	if err != nil {
		return nil, err
	}
	replaceFill(data, fill)
	return data, nil
}

func toFloat64(buf interface{}) ([]float64, error) {
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int16:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unsupported data type %T", buf)
	}
}

// fillValue returns the _FillValue attribute of v, or NaN if there is
// none.
func fillValue(nc *cdf.File, v string) (float64, error) {
	fillI := nc.Header.GetAttribute(v, "_FillValue")
	if fillI == nil {
		return math.NaN(), nil
	}
	fill, err := toFloat64(fillI)
	if err != nil || len(fill) == 0 {
		return math.NaN(), fmt.Errorf("invalid type for %s _FillValue: %T", v, fillI)
	}
	return fill[0], nil
}

// readTimes reads the time variable and converts it using its CF
// "units" attribute.
func readTimes(src crocusSource) ([]time.Time, error) {
	dims := src.lengths(varTime)
	if len(dims) == 0 {
		return nil, fmt.Errorf("variable %s not in file", varTime)
	}
	n := dims[0]
	units, ok := src.units(varTime)
	if !ok {
		return nil, fmt.Errorf("variable %s has no units attribute", varTime)
	}
	step, origin, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, n)
	for t := 0; t < n; t++ {
		v, err := src.record(varTime, t)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(v[0]) {
			return nil, fmt.Errorf("missing value in variable %s at index %d", varTime, t)
		}
		times[t] = origin.Add(time.Duration(math.Round(v[0] * float64(step))))
	}
	return times, nil
}

// timeLayouts are the reference date formats accepted in time units.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-1-2 15:04:05",
	"2006-1-2 15:4:5",
	"2006-1-2",
}

// parseTimeUnits parses CF time units such as "hours since 1980-01-01
// 00:00:00" and returns the duration of one unit and the reference time.
// Reference times are in UTC.
func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("invalid time units '%s'", units)
	}
	var step time.Duration
	switch strings.ToLower(parts[0]) {
	case "seconds", "second", "secs", "sec", "s":
		step = time.Second
	case "minutes", "minute", "mins", "min":
		step = time.Minute
	case "hours", "hour", "hrs", "hr", "h":
		step = time.Hour
	case "days", "day", "d":
		step = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("invalid time step in units '%s'", units)
	}
	ref := strings.TrimSpace(parts[1])
	ref = strings.TrimSuffix(ref, " UTC")
	ref = strings.TrimSuffix(ref, "Z")
	if i := strings.Index(ref, "."); i > 0 {
		// Drop fractional seconds.
		if _, err := strconv.Atoi(ref[i+1:]); err == nil {
			ref = ref[:i]
		}
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, ref, time.UTC); err == nil {
			return step, t, nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("invalid reference time in units '%s'", units)
}

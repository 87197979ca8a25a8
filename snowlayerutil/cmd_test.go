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
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/snowlayer/emsim"
)

// fakeSimulator is the simulator behind the helper driver process.
type fakeSimulator struct{}

func (fakeSimulator) Coefficients(ctx context.Context, m emsim.Model, s emsim.Sensor, sp *emsim.Snowpack) (*emsim.Coefficients, error) {
	c := new(emsim.Coefficients)
	for _, l := range sp.Layers {
		c.Scattering = append(c.Scattering, l.Density/100)
		c.Absorption = append(c.Absorption, 0)
	}
	return c, nil
}

func (fakeSimulator) Backscatter(ctx context.Context, m emsim.Model, s emsim.Sensor, snowpacks []*emsim.Snowpack) ([]float64, error) {
	o := make([]float64, len(snowpacks))
	for i, sp := range snowpacks {
		for _, l := range sp.Layers {
			o[i] += l.Density * l.Thickness / 1000
		}
	}
	return o, nil
}

// TestHelperProcess is not a real test. It acts as a simulator driver
// when the test binary is run as Simulator.Command.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("SNOWLAYER_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)
	if err := emsim.Serve(context.Background(), fakeSimulator{}, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

// writeCrocus writes a Crocus-like file with 3 daily timesteps of 3 layers
// to dir and returns its path.
func writeCrocus(t *testing.T, dir string) string {
	h := cdf.NewHeader([]string{"time", "snow_layer", "xx"}, []int{3, 3, 1})
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "days since 2019-10-01 00:00:00")
	for _, v := range []string{"SNODEN_ML", "SNOMA_ML", "TSNOW_ML", "SNODOPT_ML"} {
		h.AddVariable(v, []string{"time", "snow_layer", "xx"}, []float32{0})
	}
	h.AddVariable("SNODP", []string{"time", "xx"}, []float32{0})
	h.Define()

	path := filepath.Join(dir, "PRO.nc")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	nc, err := cdf.Create(f, h)
	if err != nil {
		t.Fatal(err)
	}
	data := map[string]interface{}{
		"time":       []float64{0, 1, 2},
		"SNODEN_ML":  []float32{100, 200, 300, 120, 220, 320, 150, 250, 350},
		"SNOMA_ML":   []float32{10, 20, 30, 12, 22, 32, 15, 25, 35},
		"TSNOW_ML":   []float32{260, 262, 264, 261, 263, 265, 258, 260, 262},
		"SNODOPT_ML": []float32{1e-4, 2e-4, 4e-4, 1e-4, 2e-4, 4e-4, 1e-4, 2e-4, 4e-4},
		"SNODP":      []float32{0.3, 0.3, 0.3},
	}
	for v, d := range data {
		end := nc.Header.Lengths(v)
		w := nc.Writer(v, make([]int, len(end)), end)
		if _, err := w.Write(d); err != nil {
			t.Fatalf("writing %s: %v", v, err)
		}
	}
	if err := cdf.UpdateNumRecs(f); err != nil {
		t.Fatal(err)
	}
	return path
}

// setup writes a test input file and configures a run that uses the
// helper driver process. It returns the temporary directory.
func setup(t *testing.T) string {
	dir, err := ioutil.TempDir("", "snowlayerutil")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	os.Setenv("SNOWLAYER_WANT_HELPER_PROCESS", "1")
	t.Cleanup(func() { os.Unsetenv("SNOWLAYER_WANT_HELPER_PROCESS") })

	Cfg.Set("config", "")
	Cfg.Set("LogLevel", "error")
	Cfg.Set("CrocusFile", writeCrocus(t, dir))
	Cfg.Set("SeasonStartYear", 2019)
	Cfg.Set("LayerType", "two")
	Cfg.Set("Method", "thick-ke")
	Cfg.Set("Model", "iba")
	Cfg.Set("Interfaces", "normal")
	Cfg.Set("Frequency", 17.5e9)
	Cfg.Set("Simulator.Command", os.Args[0])
	Cfg.Set("Simulator.Args", []string{"-test.run=TestHelperProcess", "--"})
	Cfg.Set("Simulator.CacheSize", 100)
	Cfg.Set("PlotFile", "")
	return dir
}

func readCSV(t *testing.T, path string) [][]string {
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestVersion(t *testing.T) {
	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(b.String(), "SnowLayer v") {
		t.Errorf("version output: %q", b.String())
	}
}

func TestRun(t *testing.T) {
	dir := setup(t)
	out := filepath.Join(dir, "out.csv")
	Cfg.Set("OutputFile", out)
	Cfg.Set("PlotFile", filepath.Join(dir, "plot.png"))
	Root.SetArgs([]string{"run"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	rows := readCSV(t, out)
	if len(rows) != 4 {
		t.Fatalf("have %d rows, want 4", len(rows))
	}
	if strings.Join(rows[0], ",") != "time,sigma_vv,sigma_vv_db,swe" {
		t.Errorf("header: %v", rows[0])
	}
	if rows[1][0] != "2019-10-01T00:00:00Z" || rows[1][1] == "NaN" || rows[1][3] == "NaN" {
		t.Errorf("row 1: %v", rows[1])
	}
	for _, name := range []string{"plot_sigma_vv.png", "plot_swe.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Error(err)
		}
	}
}

func TestRunNetCDF(t *testing.T) {
	dir := setup(t)
	out := filepath.Join(dir, "out.nc")
	Cfg.Set("OutputFile", out)
	Cfg.Set("LayerType", "three_k")
	Cfg.Set("Method", "thick-ke-density")
	Cfg.Set("Interfaces", "transparent_nosurf")
	c, err := LoadConfig(Cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := Run(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	nc, err := cdf.Open(f)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []string{"time", "sigma_vv", "swe"} {
		if l := nc.Header.Lengths(v); len(l) != 1 || l[0] != 3 {
			t.Errorf("variable %s has lengths %v", v, l)
		}
	}
}

func TestReduce(t *testing.T) {
	dir := setup(t)
	out := filepath.Join(dir, "reduced.csv")
	Cfg.Set("OutputFile", out)
	Cfg.Set("LayerType", "three")
	Cfg.Set("Method", "thick")
	Root.SetArgs([]string{"reduce"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	rows := readCSV(t, out)
	// The middle band of each profile is empty, so there are two layers
	// per timestep plus the header.
	if len(rows) != 7 {
		t.Fatalf("have %d rows, want 7", len(rows))
	}
	if rows[0][0] != "time" || rows[2][1] != "1" || rows[3][1] != "0" {
		t.Errorf("rows: %v", rows)
	}
}

func TestReduceNoSnow(t *testing.T) {
	dir := setup(t)
	Cfg.Set("OutputFile", filepath.Join(dir, "reduced.csv"))
	Cfg.Set("SeasonStartYear", 2020)
	c, err := LoadConfig(Cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := Reduce(context.Background(), c); err == nil {
		t.Error("expected an error")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name, key string
		val       interface{}
	}{
		{name: "layer type", key: "LayerType", val: "four"},
		{name: "method", key: "Method", val: "thin"},
		{name: "model", key: "Model", val: "geometrical_optics"},
		{name: "interfaces", key: "Interfaces", val: "rough"},
		{name: "frequency", key: "Frequency", val: -1.0},
		{name: "crocus file", key: "CrocusFile", val: "does_not_exist.nc"},
		{name: "no crocus file", key: "CrocusFile", val: ""},
		{name: "output dir", key: "OutputFile", val: "no_such_dir/out.csv"},
		{name: "command", key: "Simulator.Command", val: ""},
		{name: "cache", key: "Simulator.CacheSize", val: 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dir := setup(t)
			Cfg.Set("OutputFile", filepath.Join(dir, "out.csv"))
			Cfg.Set(test.key, test.val)
			if _, err := LoadConfig(Cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestGetStringSlice(t *testing.T) {
	Cfg.Set("Simulator.Args", "-a ${SNOWLAYER_TEST_ARG}")
	defer Cfg.Set("Simulator.Args", []string{})
	os.Setenv("SNOWLAYER_TEST_ARG", "b")
	defer os.Unsetenv("SNOWLAYER_TEST_ARG")
	args := expandStringSlice(getStringSlice("Simulator.Args", Cfg))
	if len(args) != 2 || args[0] != "-a" || args[1] != "b" {
		t.Errorf("args = %v", args)
	}
}

func TestIsNetCDF(t *testing.T) {
	for f, want := range map[string]bool{"a.nc": true, "a.NC": true, "a.ncf": true, "a.csv": false, "a": false} {
		if isNetCDF(f) != want {
			t.Errorf("isNetCDF(%s) != %v", f, want)
		}
	}
}

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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/snowlayer"
	"github.com/spatialmodel/snowlayer/emsim"
	"github.com/spf13/cast"
)

// Config holds the settings of a SnowLayer run.
type Config struct {
	CrocusFile      string
	SeasonStartYear int

	LayerType  snowlayer.Strategy
	Method     snowlayer.Method
	Model      emsim.Model
	Interfaces snowlayer.InterfaceMode
	Frequency  float64

	SimulatorCommand   string
	SimulatorArgs      []string
	SimulatorCacheSize int

	OutputFile string
	PlotFile   string
}

// LoadConfig reads and checks the run settings in cfg.
func LoadConfig(cfg *viper.Viper) (*Config, error) {
	c := &Config{
		SeasonStartYear:    cfg.GetInt("SeasonStartYear"),
		Frequency:          cfg.GetFloat64("Frequency"),
		SimulatorCommand:   os.ExpandEnv(cfg.GetString("Simulator.Command")),
		SimulatorArgs:      expandStringSlice(getStringSlice("Simulator.Args", cfg)),
		SimulatorCacheSize: cfg.GetInt("Simulator.CacheSize"),
		PlotFile:           os.ExpandEnv(cfg.GetString("PlotFile")),
	}
	var err error
	if c.CrocusFile, err = checkCrocusFile(cfg.GetString("CrocusFile")); err != nil {
		return nil, err
	}
	if c.OutputFile, err = checkOutputFile(cfg.GetString("OutputFile")); err != nil {
		return nil, err
	}
	if c.LayerType, err = snowlayer.ParseStrategy(cfg.GetString("LayerType")); err != nil {
		return nil, err
	}
	if c.Method, err = snowlayer.ParseMethod(cfg.GetString("Method")); err != nil {
		return nil, err
	}
	if c.Model, err = emsim.ModelByName(cfg.GetString("Model")); err != nil {
		return nil, err
	}
	if c.Interfaces, err = snowlayer.ParseInterfaceMode(cfg.GetString("Interfaces")); err != nil {
		return nil, err
	}
	if !(c.Frequency > 0) {
		return nil, fmt.Errorf("snowlayer: Frequency must be positive but is %g", c.Frequency)
	}
	if c.SimulatorCommand == "" {
		return nil, fmt.Errorf("snowlayer: you need to specify a simulator driver program (Simulator.Command)")
	}
	if c.SimulatorCacheSize <= 0 {
		return nil, fmt.Errorf("snowlayer: Simulator.CacheSize must be positive but is %d", c.SimulatorCacheSize)
	}
	return c, nil
}

// Simulator returns the electromagnetic simulator specified by c, with
// extinction coefficient requests cached.
func (c *Config) Simulator() emsim.Simulator {
	return emsim.NewCache(&emsim.Process{
		Command: c.SimulatorCommand,
		Args:    c.SimulatorArgs,
	}, c.SimulatorCacheSize)
}

// Sensor returns the simulated sensor.
func (c *Config) Sensor() emsim.Sensor {
	return emsim.Active(c.Frequency, snowlayer.IncidenceAngle)
}

// checkCrocusFile makes sure that the input file is specified and
// exists, and expands any environment variables.
func checkCrocusFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`snowlayer: you need to specify an input file configuration variable (for example: CrocusFile="PRO.nc")`)
	}
	f = os.ExpandEnv(f)
	if _, err := os.Stat(f); err != nil {
		return f, fmt.Errorf("snowlayer: problem with CrocusFile: %v", err)
	}
	return f, nil
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`snowlayer: you need to specify an output file configuration variable (for example: OutputFile="output.csv")`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("snowlayer: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// isNetCDF returns whether file f should be written in NetCDF format.
func isNetCDF(f string) bool {
	switch strings.ToLower(filepath.Ext(f)) {
	case ".nc", ".ncf", ".cdf":
		return true
	}
	return false
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// getStringSlice returns a []string from a viper configuration,
// accounting for the fact that it might be a single space-separated string
// if it was set from an environment variable.
func getStringSlice(varName string, cfg *viper.Viper) []string {
	switch v := cfg.Get(varName).(type) {
	case nil:
		return nil
	case string:
		return strings.Fields(v)
	default:
		return cast.ToStringSlice(v)
	}
}

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

// Package snowlayerutil contains the command-line interface to SnowLayer.
package snowlayerutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/snowlayer"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to SnowLayer.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum severity of log messages: one of
              debug, info, warning, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "CrocusFile",
			usage: `
              CrocusFile is the path to the Crocus snowpack output file
              (classic, CDF-5 or NetCDF 4 format). It can include environment variables.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{reduceCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "SeasonStartYear",
			usage: `
              SeasonStartYear is the year the snow season of interest begins.
              Timesteps before October 1 of this year are ignored.`,
			defaultVal: 2019,
			flagsets:   []*pflag.FlagSet{reduceCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "LayerType",
			usage: `
              LayerType specifies how each profile is reduced. 'two' and
              'three' split the profile at fixed fractions of its height;
              'two_k' and 'three_k' group layers by k-means clustering of
              extinction coefficient and height.`,
			shorthand:  "l",
			defaultVal: "two",
			flagsets:   []*pflag.FlagSet{reduceCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "Method",
			usage: `
              Method specifies how the layers in a group are averaged:
              'thick' weights by thickness, 'thick-ke' by thickness times
              extinction coefficient, and 'thick-ke-density' is like
              'thick-ke' except density is weighted by thickness only.`,
			shorthand:  "m",
			defaultVal: "thick",
			flagsets:   []*pflag.FlagSet{reduceCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "Model",
			usage: `
              Model is the electromagnetic model used to simulate backscatter:
              one of iba, iba_inv, or symsce.`,
			defaultVal: "iba",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Interfaces",
			usage: `
              Interfaces specifies the boundaries between simulated layers:
              'normal' (flat), 'transparent', or 'transparent_nosurf'
              (transparent except at the snow surface).`,
			defaultVal: "normal",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Frequency",
			usage: `
              Frequency is the radar frequency in Hz.`,
			defaultVal: snowlayer.DefaultFrequency,
			flagsets:   []*pflag.FlagSet{reduceCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "Simulator.Command",
			usage: `
              Simulator.Command is the electromagnetic simulator driver
              program. It can include environment variables.`,
			defaultVal: "smrt-driver",
			flagsets:   []*pflag.FlagSet{reduceCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "Simulator.Args",
			usage: `
              Simulator.Args are additional arguments for the simulator
              driver program. They can include environment variables.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{reduceCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "Simulator.CacheSize",
			usage: `
              Simulator.CacheSize is the number of extinction coefficient
              results to keep in memory.`,
			defaultVal: 1000,
			flagsets:   []*pflag.FlagSet{reduceCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the desired output file. Files ending
              in '.nc' are written in NetCDF format and others in CSV format.
              For the reduce command, the reduced layers are written in CSV
              format. It can include environment variables.`,
			shorthand:  "o",
			defaultVal: "snowlayer_output.csv",
			flagsets:   []*pflag.FlagSet{reduceCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "PlotFile",
			usage: `
              PlotFile is the base path for time series plots of backscatter
              and snow water equivalent. No plots are created if it is empty.
              It can include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("SNOWLAYER")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(reduceCmd)
	Root.AddCommand(runCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the log level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("snowlayer: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("snowlayer: invalid LogLevel: %v", err)
	}
	logrus.SetLevel(level)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "snowlayer",
	Short: "Reduce simulated snowpacks and estimate their radar backscatter.",
	Long: `SnowLayer reduces the multi-layer snowpack profiles simulated by the
Crocus snow model into two or three homogeneous layers and estimates the radar
backscatter and snow water equivalent of the reduced snowpacks.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'SNOWLAYER_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of SnowLayer.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("SnowLayer v%s\n", snowlayer.Version)
	},
	DisableAutoGenTag: true,
}

// reduceCmd is a command that reduces profiles without simulating them.
var reduceCmd = &cobra.Command{
	Use:   "reduce",
	Short: "Reduce snowpack profiles.",
	Long: `reduce loads a Crocus output file, reduces the profile at each timestep
into two or three layers and writes the reduced layers to OutputFile in CSV format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := LoadConfig(Cfg)
		if err != nil {
			return err
		}
		return Reduce(context.Background(), c)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that reduces profiles and simulates their
// backscatter.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reduce snowpack profiles and simulate their backscatter.",
	Long: `run loads a Crocus output file, reduces the profile at each timestep
into two or three layers and simulates the backscatter of the reduced snowpacks.
The backscatter and snow water equivalent time series are written to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := LoadConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(context.Background(), c)
	},
	DisableAutoGenTag: true,
}

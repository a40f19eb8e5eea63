/*
Copyright © 2024 the vedrop authors.
This file is part of vedrop.

vedrop is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

vedrop is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with vedrop.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package vedroputil is the command-line interface of vedrop.
package vedroputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/comphy-lab/vedrop"
	"github.com/comphy-lab/vedrop/cases"
	"github.com/comphy-lab/vedrop/cloud"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
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
	// Options are the configuration options available to vedrop.
	// Negative numbers and empty strings keep the value of the
	// selected case.
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
			name: "case",
			usage: `
              case selects the preset simulation: dropAtomisation,
              dropImpact, or pinchOff. The remaining options override
              the values of the preset.`,
			shorthand:  "c",
			defaultVal: "dropImpact",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), plotCmd.Flags()},
		},
		{
			name: "geometry",
			usage: `
              geometry is the coordinate system of the run: planar,
              axi, or 3d.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), plotCmd.Flags()},
		},
		{
			name: "Level",
			usage: `
              Level is the maximum refinement level.`,
			defaultVal: -1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "InitLevel",
			usage: `
              InitLevel is the refinement level of the initial grid.`,
			defaultVal: -1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "We",
			usage: `
              We is the Weber number.`,
			defaultVal: -1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Oh",
			usage: `
              Oh is the Ohnesorge number of the liquid.`,
			defaultVal: -1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Oha",
			usage: `
              Oha is the Ohnesorge number of the surrounding gas.`,
			defaultVal: -1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "De",
			usage: `
              De is the Deborah number of the liquid.`,
			defaultVal: -1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Ec",
			usage: `
              Ec is the elasto-capillary number of the liquid.`,
			defaultVal: -1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "tmax",
			usage: `
              tmax is the simulation end time.`,
			defaultVal: -1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "tsnap",
			usage: `
              tsnap is the time between snapshots. It must be at
              least 1e-4.`,
			defaultVal: -1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "dtmax",
			usage: `
              dtmax is the largest timestep.`,
			defaultVal: -1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Errors.f",
			usage: `
              Errors.f is the wavelet error tolerance of the volume fraction.`,
			defaultVal: -1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Errors.kappa",
			usage: `
              Errors.kappa is the wavelet error tolerance of the interface
              curvature. Zero leaves the curvature out of the refinement
              criteria.`,
			defaultVal: -1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Errors.velocity",
			usage: `
              Errors.velocity is the wavelet error tolerance of each
              velocity component.`,
			defaultVal: -1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Monitor.Upper",
			usage: `
              Monitor.Upper is the kinetic energy above which the run is
              aborted after the first ten steps.`,
			defaultVal: -1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Monitor.Lower",
			usage: `
              Monitor.Lower is the kinetic energy below which the run is
              aborted after the first ten steps.`,
			defaultVal: -1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Output",
			usage: `
              Output is where the restart file and the snapshot archives
              are stored: a local directory or a bucket in the format
              'provider://name' where provider is file, gs, or s3.`,
			shorthand:  "o",
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), snapshotsCmd.Flags()},
		},
		{
			name: "LogDir",
			usage: `
              LogDir is the directory holding the run log, the error log,
              and the run summary.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), plotCmd.Flags()},
		},
		{
			name: "Summary",
			usage: `
              Summary is the name of the TOML run summary written when a
              run ends normally. Empty skips the summary.`,
			defaultVal: "summary.toml",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Info",
			usage: `
              Info holds labels copied into the run summary, for example
              {"machine": "cluster-a"}.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "fresh",
			usage: `
              fresh deletes any existing restart file and snapshots so
              the run starts from the initial condition.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Partitions",
			usage: `
              Partitions is the number of mesh partitions processed
              concurrently. Zero uses one per processor.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Synthetic.Rate",
			usage: `
              Synthetic.Rate is the exponential decay rate of the velocity
              field in the built-in kinematic solver. Negative values make
              the flow grow.`,
			defaultVal: 0.1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ProgressEvery",
			usage: `
              ProgressEvery is the number of steps between progress
              messages. Zero disables them.`,
			defaultVal: 1000,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the level of the driver messages: debug, info,
              warning, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "PlotFile",
			usage: `
              PlotFile is the PNG image the energy history is drawn to.`,
			defaultVal: "energy.png",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("VEDROP")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				json.NewEncoder(b).Encode(v)
				set.StringP(option.name, option.shorthand, strings.TrimSpace(b.String()), option.usage)
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
	Root.AddCommand(runCmd)
	Root.AddCommand(casesCmd)
	Root.AddCommand(snapshotsCmd)
	Root.AddCommand(plotCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("vedrop: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// newLogger returns a logger writing driver messages to the standard
// error stream of cmd.
func newLogger(cmd *cobra.Command) (*logrus.Logger, error) {
	log := logrus.New()
	log.Out = cmd.OutOrStderr()
	level, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return nil, fmt.Errorf("vedrop: %v", err)
	}
	log.SetLevel(level)
	return log, nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "vedrop",
	Short: "Control loop for adaptive multiphase drop simulations.",
	Long: `vedrop drives simulations of drops and jets of viscoelastic liquids:
it adapts the mesh every step, checkpoints the state on a fixed schedule,
logs the kinetic energy, and stops runs whose energy blows up or vanishes.
Use the subcommands specified below to access the functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'VEDROP_var' where 'var' is the
name of the variable to be set, with '.' replaced by '_'.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of vedrop.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "vedrop v%s\n", vedrop.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation.",
	Long: `run runs the selected case to its end time with the built-in kinematic
solver. The run resumes from the restart file in the output location if
there is one. The run log lines, abort reasons and the final parameter line
are also written to standard error. Runs stopped by the kinetic energy
monitor exit normally after writing the reason to the error log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := CaseConfig(Cfg)
		if err != nil {
			return err
		}
		info, err := GetStringMapString("Info", Cfg)
		if err != nil {
			return err
		}
		log, err := newLogger(cmd)
		if err != nil {
			return err
		}
		o := RunOptions{
			Output:        os.ExpandEnv(Cfg.GetString("Output")),
			LogDir:        os.ExpandEnv(Cfg.GetString("LogDir")),
			Summary:       os.ExpandEnv(Cfg.GetString("Summary")),
			Info:          info,
			Fresh:         Cfg.GetBool("fresh"),
			Partitions:    Cfg.GetInt("Partitions"),
			Rate:          Cfg.GetFloat64("Synthetic.Rate"),
			ProgressEvery: Cfg.GetInt("ProgressEvery"),
		}
		d, err := Run(context.Background(), c, o, cmd.OutOrStderr(), log)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"case": c.Name, "outcome": d.Kind, "reason": d.Reason}).Info("run finished")
		return nil
	},
	DisableAutoGenTag: true,
}

var casesCmd = &cobra.Command{
	Use:   "cases [name...]",
	Short: "List the preset cases.",
	Long: `cases lists the names of the preset cases. When names are given,
the settings of those cases are printed in TOML format, suitable as a
starting point for a configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			for _, n := range cases.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		}
		for _, n := range args {
			c, err := cases.Get(n)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", n)
			if err := toml.NewEncoder(cmd.OutOrStdout()).Encode(c); err != nil {
				return fmt.Errorf("vedrop: encoding case %s: %v", n, err)
			}
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List the stored snapshots.",
	Long: `snapshots lists the snapshot archives in the output location in time
order, with their sizes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		bucket, err := cloud.OpenBucket(ctx, os.ExpandEnv(Cfg.GetString("Output")))
		if err != nil {
			return err
		}
		defer bucket.Close()
		objs, err := cloud.List(ctx, bucket, vedrop.SnapshotDir+"/")
		if err != nil {
			return err
		}
		for _, o := range objs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", o.Key, o.Size, o.ModTime.Format("2006-01-02T15:04:05"))
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Plot the kinetic energy history.",
	Long: `plot draws the kinetic energy recorded in the run log of the
selected case against time and saves it as a PNG image.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := CaseConfig(Cfg)
		if err != nil {
			return err
		}
		logFile := filepath.Join(os.ExpandEnv(Cfg.GetString("LogDir")), c.LogFile())
		out := os.ExpandEnv(Cfg.GetString("PlotFile"))
		return PlotEnergy(logFile, out, c.Params.Header())
	},
	DisableAutoGenTag: true,
}

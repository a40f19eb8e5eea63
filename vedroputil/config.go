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

package vedroputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/comphy-lab/vedrop"
	"github.com/comphy-lab/vedrop/cases"
	"github.com/lnashier/viper"
	"github.com/spf13/cast"
)

// Exit codes of the vedrop command.
const (
	ExitOK           = 0
	ExitFailure      = 1 // configuration or I/O failure
	ExitInconsistent = 2 // the solver state violated an invariant
)

// ExitCode returns the process exit code for the error returned by a
// command. Runs stopped by the kinetic energy monitor return no error
// and exit normally.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ce *vedrop.ConsistencyError
	if errors.As(err, &ce) {
		return ExitInconsistent
	}
	return ExitFailure
}

// CaseConfig returns the preset case selected by the "case" option, with
// every other option that is set and not negative overriding the value
// of the preset.
func CaseConfig(cfg *viper.Viper) (cases.Case, error) {
	c, err := cases.Get(os.ExpandEnv(cfg.GetString("case")))
	if err != nil {
		return c, err
	}
	if g := cfg.GetString("geometry"); g != "" {
		geom, err := vedrop.ParseGeometry(os.ExpandEnv(g))
		if err != nil {
			return c, err
		}
		if geom == vedrop.Axisymmetric && c.Geometry != vedrop.Axisymmetric {
			// Axisymmetric domains start at the axis.
			c.Origin[1], c.Origin[2] = 0, 0
		}
		c.Geometry = geom
	}
	setInt(cfg, "Level", &c.Level)
	setInt(cfg, "InitLevel", &c.InitLevel)
	for _, o := range []struct {
		name string
		v    *float64
	}{
		{"We", &c.We},
		{"Oh", &c.Oh},
		{"Oha", &c.Oha},
		{"De", &c.De},
		{"Ec", &c.Ec},
		{"tmax", &c.Tmax},
		{"tsnap", &c.Tsnap},
		{"dtmax", &c.DtMax},
		{"Errors.f", &c.FErr},
		{"Errors.kappa", &c.KErr},
		{"Errors.velocity", &c.VelErr},
		{"Monitor.Upper", &c.Upper},
		{"Monitor.Lower", &c.Lower},
	} {
		if !cfg.IsSet(o.name) {
			continue
		}
		if v := cfg.GetFloat64(o.name); v >= 0 {
			*o.v = v
		}
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func setInt(cfg *viper.Viper, name string, v *int) {
	if !cfg.IsSet(name) {
		return
	}
	if i := cfg.GetInt(name); i >= 0 {
		*v = i
	}
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		o := make(map[string]string)
		if v == "" {
			return o, nil
		}
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("vedrop: parsing %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("vedrop: invalid type for %s: %#v", varName, i)
	}
}

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

package vedrop

import "fmt"

// Params are the dimensionless groups of a run.
type Params struct {
	Level int     // maximum refinement level
	We    float64 // Weber number
	Oh    float64 // Ohnesorge number of the liquid
	Oha   float64 // Ohnesorge number of the surrounding gas
	De    float64 // Deborah number
	Ec    float64 // elasto-capillary number
}

// Header returns the parameter line that opens the run log.
func (p Params) Header() string {
	return fmt.Sprintf("Level %d, Oh %2.1e, We %2.1e, Oha %2.1e, De %2.1e, Ec %2.1e",
		p.Level, p.Oh, p.We, p.Oha, p.De, p.Ec)
}

// TwoPhase holds the material properties of the liquid (1) and the
// gas (2). G and Lambda are the elastic modulus and relaxation time of
// the viscoelastic liquid.
type TwoPhase struct {
	Rho1, Rho2       float64
	Mu1, Mu2         float64
	G1, G2           float64
	Lambda1, Lambda2 float64
	Sigma            float64
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Density returns the mixture density of a cell with liquid fraction f.
func (tp TwoPhase) Density(f float64) float64 {
	return clamp(f)*(tp.Rho1-tp.Rho2) + tp.Rho2
}

// Viscosity returns the mixture viscosity of a cell with liquid fraction f.
func (tp TwoPhase) Viscosity(f float64) float64 {
	return clamp(f)*(tp.Mu1-tp.Mu2) + tp.Mu2
}

// Validate checks that the properties are physically meaningful.
func (tp TwoPhase) Validate() error {
	switch {
	case tp.Rho1 <= 0 || tp.Rho2 <= 0:
		return fmt.Errorf("vedrop: densities must be positive, got %g and %g", tp.Rho1, tp.Rho2)
	case tp.Mu1 < 0 || tp.Mu2 < 0:
		return fmt.Errorf("vedrop: viscosities must not be negative, got %g and %g", tp.Mu1, tp.Mu2)
	case tp.G1 < 0 || tp.G2 < 0 || tp.Lambda1 < 0 || tp.Lambda2 < 0:
		return fmt.Errorf("vedrop: elastic modulus and relaxation time must not be negative")
	case tp.Sigma < 0:
		return fmt.Errorf("vedrop: surface tension must not be negative, got %g", tp.Sigma)
	}
	return nil
}

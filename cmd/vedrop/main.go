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

// Command vedrop is a command-line interface for running adaptive
// multiphase drop simulations.
package main

import (
	"fmt"
	"os"

	"github.com/comphy-lab/vedrop/vedroputil"
)

func main() {
	if err := vedroputil.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(vedroputil.ExitCode(err))
	}
}

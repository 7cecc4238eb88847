// Copyright 2025 Philipp Hossner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package main provides the liquid-render CLI.
//
// liquid-render renders a template file against YAML data and database
// tables exposed as deferred collections:
//
//	liquid-render render report.liquid --config liquid.yaml --data data.yaml
//	liquid-render validate --config liquid.yaml report.liquid
//
// Configuration is read from the --config flag, the LIQUID_RENDER_CONFIG
// environment variable, or defaults when neither is set. Rendered output
// goes to stdout (or --output) and logs go to stderr.
package main

import (
	"os"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/spf13/cobra"
)

// configEnvVar names the environment variable holding the config path.
const configEnvVar = "LIQUID_RENDER_CONFIG"

var rootCmd = &cobra.Command{
	Use:   "liquid-render",
	Short: "Render templates over lazily queried collections",
	Long: `liquid-render renders templates whose array filters (where, sort, map,
skip, take, ...) are pushed down into database queries when the data comes
from a configured source, and applied in memory otherwise.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

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


package main

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"liquidcore/pkg/core/config"
	"liquidcore/pkg/core/logging"
	"liquidcore/pkg/templating"
)

var validateConfigFile string

var validateCmd = &cobra.Command{
	Use:   "validate [TEMPLATE...]",
	Short: "Validate configuration and compile templates",
	Long: `Validate a configuration file and compile its templates, together with
any template files given as arguments. Sources are not opened.

Example usage:
  liquid-render validate -c liquid.yaml
  liquid-render validate -c liquid.yaml report.liquid summary.liquid`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return validate(validateConfigFile, args, cmd.OutOrStdout())
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "config", "c", "", "Path to configuration YAML file (env: "+configEnvVar+")")
}

// validate checks the configuration and compiles every template, writing a
// summary to out.
func validate(configFile string, templateFiles []string, out io.Writer) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if err := config.ValidateStructure(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(io.Discard, cfg.Logging.Level, cfg.Logging.Format)
	r := newRenderer(cfg, logger)

	// Configured templates are compiled with every engine; compile them on
	// their own when no file is given.
	compiled := len(cfg.Templates)
	if len(templateFiles) == 0 {
		_, err := templating.New(templating.EngineTypeGonja, cfg.Templates, &templating.Options{
			Values: r.values,
			Logger: logger,
		})
		if err != nil {
			return err
		}
	}
	for _, file := range templateFiles {
		name, content, err := readTemplate(file)
		if err != nil {
			return err
		}
		if _, err := r.engine(name, content); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		compiled++
	}

	fmt.Fprintf(out, "Configuration valid: %d templates compiled, %d sources (%v)\n",
		compiled, len(cfg.Sources), slices.Sorted(maps.Keys(cfg.Sources)))
	return nil
}

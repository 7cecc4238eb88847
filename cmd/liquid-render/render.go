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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"liquidcore/pkg/core/config"
	"liquidcore/pkg/core/logging"
	"liquidcore/pkg/metrics"
)

// renderOptions are the inputs of one render invocation.
type renderOptions struct {
	ConfigFile   string
	TemplateFile string
	DataFile     string
	OutputFile   string

	// LogLevel and MetricsPort override the configuration when set.
	LogLevel    string
	MetricsPort int

	// MetricsLinger keeps the metrics server up after rendering.
	MetricsLinger time.Duration
}

var renderOpts renderOptions

var renderCmd = &cobra.Command{
	Use:   "render TEMPLATE",
	Short: "Render a template file",
	Long: `Render a template file against YAML data and the configured sources.

Every configured source is exposed to the template under its name as a
deferred collection: filters such as where, sort, skip and take compose a
database query, and only the first max_items rows are ever loaded.

Example usage:
  # Render with YAML data only
  liquid-render render report.liquid --data data.yaml

  # Render against database tables, serving metrics while rendering
  liquid-render render report.liquid -c liquid.yaml --metrics-port 9090`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderOpts.ConfigFile, "config", "c", "", "Path to configuration YAML file (env: "+configEnvVar+")")
	renderCmd.Flags().StringVarP(&renderOpts.DataFile, "data", "d", "", "Path to YAML file with template data")
	renderCmd.Flags().StringVarP(&renderOpts.OutputFile, "output", "o", "", "Write output to file instead of stdout")
	renderCmd.Flags().StringVar(&renderOpts.LogLevel, "log-level", "", "Log level: ERROR, WARNING, INFO, DEBUG")
	renderCmd.Flags().IntVar(&renderOpts.MetricsPort, "metrics-port", 0, "Port for the metrics server (0 uses the configured port)")
	renderCmd.Flags().DurationVar(&renderOpts.MetricsLinger, "metrics-linger", 0, "Keep serving metrics for this long after rendering")
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	opts := renderOpts
	opts.TemplateFile = args[0]

	if opts.OutputFile == "" {
		return render(ctx, opts, cmd.OutOrStdout(), os.Stderr)
	}

	out, err := os.Create(opts.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := render(ctx, opts, out, os.Stderr); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// render loads configuration, data and the template, renders it to out and
// logs to logOut.
func render(ctx context.Context, opts renderOptions, out, logOut io.Writer) error {
	cfg, err := loadConfig(opts.ConfigFile)
	if err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.MetricsPort != 0 {
		cfg.Metrics.Port = opts.MetricsPort
	}
	if err := config.ValidateStructure(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(logOut, cfg.Logging.Level, cfg.Logging.Format)
	logStartup(logger, cfg)

	name, content, err := readTemplate(opts.TemplateFile)
	if err != nil {
		return err
	}
	data, err := loadData(opts.DataFile)
	if err != nil {
		return err
	}

	r := newRenderer(cfg, logger)
	defer func() {
		if err := r.Close(); err != nil {
			logger.Warn("Failed to close sources", "error", err)
		}
	}()

	engine, err := r.engine(name, content)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	stopMetrics := func() {}
	if cfg.Metrics.Port > 0 {
		metricsCtx, cancel := context.WithCancel(gctx)
		stopMetrics = cancel
		server := metrics.NewServer(fmt.Sprintf(":%d", cfg.Metrics.Port), r.registry, logger)
		g.Go(func() error {
			return server.Start(metricsCtx)
		})
	}

	g.Go(func() error {
		defer stopMetrics()

		if err := r.openSources(gctx); err != nil {
			return err
		}
		output, err := r.render(gctx, engine, name, data)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(out, output); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}

		if cfg.Metrics.Port > 0 && opts.MetricsLinger > 0 {
			logger.Info("Serving metrics after render", "linger", opts.MetricsLinger.String())
			select {
			case <-time.After(opts.MetricsLinger):
			case <-gctx.Done():
			}
		}
		return nil
	})

	return g.Wait()
}

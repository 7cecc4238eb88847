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
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"liquidcore/pkg/core/config"
	"liquidcore/pkg/metrics"
	"liquidcore/pkg/path"
	"liquidcore/pkg/scope"
	"liquidcore/pkg/sequence/sqlsource"
	"liquidcore/pkg/templating"
	"liquidcore/pkg/value"
)

// renderer owns everything one invocation renders with: the value options,
// the opened sources and the metrics they report to.
type renderer struct {
	cfg    *config.Config
	logger *slog.Logger

	registry *prometheus.Registry
	metrics  *metrics.CollectionMetrics
	values   *value.Options

	sources map[string]*sqlsource.Source
	dbs     []*sql.DB
}

func newRenderer(cfg *config.Config, logger *slog.Logger) *renderer {
	registry := prometheus.NewRegistry()
	collection := metrics.NewCollectionMetrics(registry)

	prefix := cfg.Values.AliasPrefix()
	resolver := &path.Resolver{
		AliasPrefix:       prefix,
		DisableAliases:    prefix == "",
		MaxPredicateItems: cfg.Values.MaxPredicateItems,
	}

	return &renderer{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  collection,
		values: &value.Options{
			MaxItems: cfg.Values.MaxItems,
			Resolver: resolver,
			Logger:   logger,
			Recorder: collection,
		},
		sources: make(map[string]*sqlsource.Source),
	}
}

// openSources connects every configured source, in name order.
func (r *renderer) openSources(ctx context.Context) error {
	for _, name := range slices.Sorted(maps.Keys(r.cfg.Sources)) {
		sc := r.cfg.Sources[name]

		db, err := sql.Open(sc.Driver, sc.DSN)
		if err != nil {
			return fmt.Errorf("source %s: failed to open database: %w", name, err)
		}
		r.dbs = append(r.dbs, db)

		if sc.Driver == config.DefaultDriver {
			// Each connection to a ":memory:" DSN is a separate database.
			db.SetMaxOpenConns(1)
		}
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("source %s: failed to connect: %w", name, err)
		}

		src, err := sqlsource.New(ctx, db, sc.Table, sqlsource.Options{
			Logger:   r.logger,
			Resolver: r.values.Resolver,
		})
		if err != nil {
			return fmt.Errorf("source %s: %w", name, err)
		}
		r.sources[name] = src

		r.logger.Info("Source opened",
			"source", name,
			"driver", sc.Driver,
			"table", sc.Table,
			"columns", len(src.Columns()))
	}
	return nil
}

// Close closes all opened databases.
func (r *renderer) Close() error {
	var errs []error
	for _, db := range r.dbs {
		errs = append(errs, db.Close())
	}
	r.dbs = nil
	return errors.Join(errs...)
}

// scope binds base in a root scope and the opened sources in a child
// scope, so sources shadow data keys of the same name.
func (r *renderer) scope(base map[string]interface{}) *scope.Scope {
	root := scope.New()
	for name, host := range base {
		root.Set(name, value.Create(host, r.values))
	}

	sources := root.EnterChild(true)
	for name, src := range r.sources {
		if _, exists := base[name]; exists {
			r.logger.Warn("Source shadows data key", "source", name)
		}
		sources.Set(name, value.Create(src, r.values))
	}
	return sources
}

// engine compiles the configured templates plus the main template.
func (r *renderer) engine(mainName, mainTemplate string) (*templating.TemplateEngine, error) {
	if _, exists := r.cfg.Templates[mainName]; exists {
		return nil, fmt.Errorf("template %q is also defined in the configuration", mainName)
	}

	templates := make(map[string]string, len(r.cfg.Templates)+1)
	maps.Copy(templates, r.cfg.Templates)
	templates[mainName] = mainTemplate

	return templating.New(templating.EngineTypeGonja, templates, &templating.Options{
		Values:   r.values,
		Recorder: r.metrics,
		Logger:   r.logger,
	})
}

// render executes a template and records the outcome.
func (r *renderer) render(ctx context.Context, engine *templating.TemplateEngine, name string, data map[string]interface{}) (string, error) {
	start := time.Now()
	out, err := engine.RenderScope(ctx, name, r.scope(data))
	duration := time.Since(start)
	r.metrics.ObserveRender(name, duration, err)

	if err != nil {
		return "", err
	}
	r.logger.Debug("Template rendered",
		"template", name,
		"bytes", len(out),
		"duration_ms", duration.Milliseconds())
	return out, nil
}

// loadConfig reads the configuration at file, falling back to the
// LIQUID_RENDER_CONFIG environment variable and then to defaults.
func loadConfig(file string) (*config.Config, error) {
	if file == "" {
		file = os.Getenv(configEnvVar)
	}
	if file == "" {
		return config.Default(), nil
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := config.LoadConfig(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", file, err)
	}
	return cfg, nil
}

// loadData reads a YAML mapping used as template data. An empty path
// yields no data.
func loadData(file string) (map[string]interface{}, error) {
	data := make(map[string]interface{})
	if file == "" {
		return data, nil
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("failed to parse data file %s: %w", file, err)
	}
	return data, nil
}

// readTemplate returns the template name (the file's base name) and
// content.
func readTemplate(file string) (string, string, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return "", "", fmt.Errorf("failed to read template: %w", err)
	}
	return filepath.Base(file), string(content), nil
}

// logStartup logs the detected resource limits.
func logStartup(logger *slog.Logger, cfg *config.Config) {
	gomaxprocs := runtime.GOMAXPROCS(0)
	var gomemlimit string
	if limit := debug.SetMemoryLimit(-1); limit != math.MaxInt64 {
		gomemlimit = fmt.Sprintf("%d bytes (%.2f MiB)", limit, float64(limit)/(1024*1024))
	} else {
		gomemlimit = "unlimited"
	}

	logger.Debug("liquid-render starting",
		"log_level", cfg.Logging.Level,
		"max_items", cfg.Values.MaxItems,
		"sources", len(cfg.Sources),
		"metrics_port", cfg.Metrics.Port,
		"gomaxprocs", gomaxprocs,
		"gomemlimit", gomemlimit)
}

package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidcore/pkg/core/config"
	"liquidcore/pkg/core/logging"
)

// writeFile writes content to name under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	file := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	return file
}

// seedPeople creates a SQLite database file with a people table.
func seedPeople(t *testing.T, dir string) string {
	t.Helper()
	dsn := filepath.Join(dir, "people.db")

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE people (name TEXT, age INTEGER, city TEXT)`,
		`INSERT INTO people VALUES ('Carol', 20, 'Paris'), ('alice', 30, 'Berlin'), ('Bob', 30, 'Paris')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return dsn
}

func TestRender_DataOnly(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "report.liquid", `{{ title }}: {{ items | sort | join(",") }}`)
	data := writeFile(t, dir, "data.yaml", "title: Items\nitems: [3, 1, 2]\n")

	var out, logs bytes.Buffer
	err := render(context.Background(), renderOptions{TemplateFile: tmpl, DataFile: data}, &out, &logs)
	require.NoError(t, err)
	assert.Equal(t, "Items: 1,2,3", out.String())
}

func TestRender_SQLSource(t *testing.T) {
	dir := t.TempDir()
	dsn := seedPeople(t, dir)

	cfg := writeFile(t, dir, "liquid.yaml", fmt.Sprintf(`
values:
  max_items: 2
logging:
  level: DEBUG
sources:
  people:
    dsn: %q
templates:
  footer: "-- {{ title }}"
`, dsn))
	tmpl := writeFile(t, dir, "report.liquid",
		`{{ people | where("city", "Paris") | sort("name") | map("name") | join(",") }}|{{ people | size }}|{% include "footer" %}`)
	data := writeFile(t, dir, "data.yaml", "title: Report\n")

	var out, logs bytes.Buffer
	err := render(context.Background(), renderOptions{
		ConfigFile:   cfg,
		TemplateFile: tmpl,
		DataFile:     data,
	}, &out, &logs)
	require.NoError(t, err)
	assert.Equal(t, "Bob,Carol|3|-- Report", out.String())

	assert.Contains(t, logs.String(), "Source opened")
	assert.Contains(t, logs.String(), "Executing query")
}

func TestRender_SQLSourceAsTemplateData(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "liquid.yaml", fmt.Sprintf(`
values:
  max_items: 2
sources:
  people:
    dsn: %q
`, seedPeople(t, dir)))
	data := writeFile(t, dir, "data.yaml", "people: shadowed\ntitle: Report\n")

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{name: "loop over source", template: `{% for p in people %}{{ p.name }};{% endfor %}`, want: "Carol;alice;"},
		{name: "index into source", template: `{{ people[1].name }}`, want: "alice"},
		{name: "size member", template: `{{ people.size }}`, want: "3"},
		{name: "map of unknown column", template: `[{{ people | map("salary") | join(",") }}]`, want: "[]"},
		{name: "data beside sources", template: `{{ title }}: {{ people | where("city", "Paris") | size }}`, want: "Report: 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := writeFile(t, t.TempDir(), "report.liquid", tt.template)

			var out, logs bytes.Buffer
			err := render(context.Background(), renderOptions{
				ConfigFile:   cfg,
				TemplateFile: tmpl,
				DataFile:     data,
			}, &out, &logs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.String())
			assert.Contains(t, logs.String(), "Source shadows data key")
		})
	}
}

func TestRenderer_RecordsMetrics(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Sources = map[string]config.SourceConfig{
		"people": {Driver: config.DefaultDriver, DSN: seedPeople(t, dir), Table: "people"},
	}

	var logs bytes.Buffer
	r := newRenderer(cfg, logging.New(&logs, "INFO", logging.FormatText))
	defer r.Close()

	ctx := context.Background()
	require.NoError(t, r.openSources(ctx))

	engine, err := r.engine("names", `{{ people | sort("age", "name") | map("name") | join(",") }}`)
	require.NoError(t, err)

	out, err := r.render(ctx, engine, "names", nil)
	require.NoError(t, err)
	assert.Equal(t, "Carol,Bob,alice", out)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.Renders.WithLabelValues("names", "success")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(r.metrics.SourceQueries.WithLabelValues("sql:people", "prefix", "success")), 1.0)

	_, err = r.render(ctx, engine, "missing", nil)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.Renders.WithLabelValues("missing", "error")))
}

func TestRender_ConfigFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "liquid.yaml", "templates:\n  greeting: \"hello\"\n")
	tmpl := writeFile(t, dir, "main.liquid", `{% include "greeting" %} world`)
	t.Setenv(configEnvVar, cfg)

	var out, logs bytes.Buffer
	err := render(context.Background(), renderOptions{TemplateFile: tmpl}, &out, &logs)
	require.NoError(t, err)
	assert.Equal(t, "hello world", out.String())
}

func TestRender_Errors(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "report.liquid", `{{ 1 }}`)

	tests := []struct {
		name    string
		opts    renderOptions
		wantErr string
	}{
		{
			name:    "missing template",
			opts:    renderOptions{TemplateFile: filepath.Join(dir, "missing.liquid")},
			wantErr: "failed to read template",
		},
		{
			name:    "missing data",
			opts:    renderOptions{TemplateFile: tmpl, DataFile: filepath.Join(dir, "missing.yaml")},
			wantErr: "failed to read data file",
		},
		{
			name:    "invalid data",
			opts:    renderOptions{TemplateFile: tmpl, DataFile: writeFile(t, dir, "bad.yaml", "- not\n- a map\n")},
			wantErr: "failed to parse data file",
		},
		{
			name:    "invalid log level",
			opts:    renderOptions{TemplateFile: tmpl, LogLevel: "LOUD"},
			wantErr: "invalid configuration",
		},
		{
			name: "unsupported driver",
			opts: renderOptions{
				TemplateFile: tmpl,
				ConfigFile:   writeFile(t, dir, "pg.yaml", "sources:\n  people:\n    driver: postgres\n    dsn: x\n"),
			},
			wantErr: "unsupported driver",
		},
		{
			name: "missing table",
			opts: renderOptions{
				TemplateFile: tmpl,
				ConfigFile: writeFile(t, dir, "missing-table.yaml",
					fmt.Sprintf("sources:\n  nobody:\n    dsn: %q\n", filepath.Join(dir, "empty.db"))),
			},
			wantErr: "source nobody",
		},
		{
			name: "template name collision",
			opts: renderOptions{
				TemplateFile: tmpl,
				ConfigFile:   writeFile(t, dir, "collide.yaml", "templates:\n  report.liquid: \"x\"\n"),
			},
			wantErr: "also defined in the configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, logs bytes.Buffer
			err := render(context.Background(), tt.opts, &out, &logs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, out.String())
		})
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "liquid.yaml", `
sources:
  people:
    dsn: /nonexistent/people.db
templates:
  footer: "-- end"
`)
	good := writeFile(t, dir, "good.liquid", `{{ people | size }}{% include "footer" %}`)
	bad := writeFile(t, dir, "bad.liquid", `{% if %}`)

	var out bytes.Buffer
	require.NoError(t, validate(cfg, []string{good}, &out))
	assert.Equal(t, "Configuration valid: 2 templates compiled, 1 sources ([people])\n", out.String())

	out.Reset()
	require.NoError(t, validate(cfg, nil, &out))
	assert.Contains(t, out.String(), "1 templates compiled")

	err := validate(cfg, []string{bad}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.liquid")

	err = validate(writeFile(t, dir, "invalid.yaml", "values:\n  max_items: -1\n"), nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_items")
}

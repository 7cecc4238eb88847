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

// Package templating renders gonja templates with the liquidcore filter
// table installed.
//
// Filter inputs are lifted into values and results are lowered back into
// plain Go data gonja can print and iterate. A deferred result is lowered
// to its capped prefix, except where the template pipes it straight into
// another liquidcore filter: compiled templates name those filters by a
// chained variant that hands the deferred array on unloaded, so chains
// such as `rows | where("city", "Paris") | size` cost one count query.
// `.size` on any expression is rewritten into a filter call so it reaches
// the value layer too.
package templating

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/nikolalohinski/gonja/v2/builtins"
	"github.com/nikolalohinski/gonja/v2/config"
	"github.com/nikolalohinski/gonja/v2/exec"

	"liquidcore/pkg/filters"
	"liquidcore/pkg/scope"
	"liquidcore/pkg/value"
)

// EngineType identifies a template engine implementation.
type EngineType int

const (
	// EngineTypeGonja uses the Gonja template engine (Jinja2-like syntax).
	EngineTypeGonja EngineType = iota
)

func (e EngineType) String() string {
	switch e {
	case EngineTypeGonja:
		return "gonja"
	default:
		return "unknown"
	}
}

// GlobalFunc is a custom global function that can be called from templates.
// It receives variadic arguments and returns a result or an error.
type GlobalFunc func(args ...interface{}) (interface{}, error)

// Options configures a TemplateEngine. The zero value installs the array
// filters with default value options.
type Options struct {
	// Filters is the filter table installed into the engine. Filters
	// replace gonja builtins of the same name. Defaults to the array
	// filters.
	Filters *filters.Registry

	// Functions are global functions callable from templates.
	Functions map[string]GlobalFunc

	// Values configures how template data is lifted into values.
	Values *value.Options

	// Recorder observes filter fallbacks. Optional.
	Recorder filters.FallbackRecorder

	Logger *slog.Logger
}

// TemplateEngine compiles templates once and renders them against data.
//
// Gonja filter functions receive no context, so the engine serializes
// renders and hands the render's context to filters through the engine.
// Concurrent Render calls are safe but run one at a time.
type TemplateEngine struct {
	engineType EngineType

	rawTemplates      map[string]string
	compiledTemplates map[string]*exec.Template

	registry  *filters.Registry
	filterCtx *filters.Context
	logger    *slog.Logger

	// exposed holds the names any template uses other than as the input of
	// a liquidcore filter.
	exposed map[string]bool

	mu      sync.Mutex
	current *render
}

// New compiles templates with the filter table of opts installed.
// Returns an error if any template fails to compile or if the engine type
// is not supported.
//
// Example:
//
//	engine, err := templating.New(templating.EngineTypeGonja, map[string]string{
//	    "report": `{{ people | where("city", "Paris") | map("name") | join(", ") }}`,
//	}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := engine.Render(ctx, "report", data)
func New(engineType EngineType, templates map[string]string, opts *Options) (*TemplateEngine, error) {
	if engineType != EngineTypeGonja {
		return nil, NewUnsupportedEngineError(engineType)
	}
	if opts == nil {
		opts = &Options{}
	}

	values := opts.Values.Normalize()
	logger := opts.Logger
	if logger == nil {
		logger = values.Logger
	}

	registry := opts.Filters
	if registry == nil {
		registry = filters.WithArrayFilters(filters.NewRegistry())
	}

	engine := &TemplateEngine{
		engineType:        engineType,
		rawTemplates:      make(map[string]string, len(templates)),
		compiledTemplates: make(map[string]*exec.Template, len(templates)),
		registry:          registry,
		filterCtx:         filters.NewContext(values, opts.Recorder),
		logger:            logger.With("component", "templating"),
		exposed:           make(map[string]bool),
	}

	// TrimBlocks removes the first newline after a block, LeftStripBlocks
	// strips leading whitespace before one ({%+ opts out).
	cfg := &config.Config{
		BlockStartString:    "{%",
		BlockEndString:      "%}",
		VariableStartString: "{{",
		VariableEndString:   "}}",
		CommentStartString:  "{#",
		CommentEndString:    "#}",
		AutoEscape:          false,
		StrictUndefined:     false,
		TrimBlocks:          true,
		LeftStripBlocks:     true,
	}

	filterMap := map[string]exec.FilterFunction{
		memberFilter: engine.memberFilter(),
	}
	for _, name := range registry.Names() {
		filterMap[name] = engine.gonjaFilter(name, false)
		filterMap[chainedPrefix+name] = engine.gonjaFilter(name, true)
	}

	globalFunctions := builtins.GlobalFunctions
	if len(opts.Functions) > 0 {
		functionMap := make(map[string]interface{}, len(opts.Functions))
		for name, fn := range opts.Functions {
			functionMap[name] = wrapGlobalFunction(fn)
		}
		globalFunctions = globalFunctions.Update(exec.NewContext(functionMap))
	}

	environment := &exec.Environment{
		Filters:           builtins.Filters.Update(exec.NewFilterSet(filterMap)),
		Tests:             builtins.Tests,
		ControlStructures: builtins.ControlStructures,
		Methods:           builtins.Methods,
		Context:           globalFunctions,
	}

	isFilter := func(name string) bool {
		_, ok := registry.Get(name)
		return ok
	}
	prepared := make(map[string]string, len(templates))
	for name, content := range templates {
		a := analyze(content, cfg, isFilter)
		prepared[name] = a.source
		for n := range a.exposed {
			engine.exposed[n] = true
		}
	}

	loader := newMapLoader(prepared)
	for name, content := range templates {
		engine.rawTemplates[name] = content

		compiled, err := exec.NewTemplate(name, cfg, loader, environment)
		if err != nil {
			return nil, NewCompilationError(name, content, err)
		}
		engine.compiledTemplates[name] = compiled
	}

	engine.logger.Debug("Compiled templates",
		"templates", len(engine.compiledTemplates),
		"filters", len(filterMap))

	return engine, nil
}

// Render executes the named template against data. Cancelling ctx stops
// the render at the next filter application and cancels in-flight source
// queries.
//
// Sources in data (queries, Queryable hosts and deferred arrays) are
// queried through one deferred array per render.
func (e *TemplateEngine) Render(ctx context.Context, templateName string, data map[string]interface{}) (output string, err error) {
	template, exists := e.compiledTemplates[templateName]
	if !exists {
		return "", NewTemplateNotFoundError(templateName, e.TemplateNames())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r := newRender(ctx, e.filterCtx.Options)
	e.current = r
	defer func() { e.current = nil }()

	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("Template render panicked", "template", templateName, "panic", p)
			output, err = "", NewRenderError(templateName, fmt.Errorf("panic: %v", p))
		}
	}()

	bound, err := r.bind(data, e.exposed)
	if err != nil {
		return "", NewRenderError(templateName, err)
	}

	output, err = template.ExecuteToString(exec.NewContext(bound))
	if r.err != nil {
		// The filter error carries the cause gonja only has as text.
		err = r.err
	}
	if err != nil {
		e.logger.Debug("Template render failed", "template", templateName, "error", err)
		return "", NewRenderError(templateName, err)
	}
	return output, nil
}

// RenderScope executes the named template against the names visible from
// sc. Inner bindings shadow outer ones.
func (e *TemplateEngine) RenderScope(ctx context.Context, templateName string, sc *scope.Scope) (string, error) {
	names := sc.Visible()
	data := make(map[string]interface{}, len(names))
	for _, name := range names {
		data[name] = sc.Get(name)
	}
	return e.Render(ctx, templateName, data)
}

// EngineType returns the template engine type used by this instance.
func (e *TemplateEngine) EngineType() EngineType {
	return e.engineType
}

// TemplateNames returns the names of all templates, sorted.
func (e *TemplateEngine) TemplateNames() []string {
	names := make([]string, 0, len(e.rawTemplates))
	for name := range e.rawTemplates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasTemplate returns true if a template with the given name exists.
func (e *TemplateEngine) HasTemplate(templateName string) bool {
	_, exists := e.compiledTemplates[templateName]
	return exists
}

// GetRawTemplate returns the uncompiled template source.
func (e *TemplateEngine) GetRawTemplate(templateName string) (string, error) {
	template, exists := e.rawTemplates[templateName]
	if !exists {
		return "", NewTemplateNotFoundError(templateName, e.TemplateNames())
	}
	return template, nil
}

// TemplateCount returns the number of templates in this engine.
func (e *TemplateEngine) TemplateCount() int {
	return len(e.compiledTemplates)
}

// String returns a string representation of the engine for debugging.
func (e *TemplateEngine) String() string {
	return fmt.Sprintf("TemplateEngine{type=%s, templates=%d}", e.engineType, e.TemplateCount())
}

// gonjaFilter adapts the registered filter name to gonja. The chained
// variant keeps a deferred result unloaded. It runs within Render, which
// holds the engine lock.
func (e *TemplateEngine) gonjaFilter(name string, chained bool) exec.FilterFunction {
	return e.filter(name, func(r *render, input value.Value, args value.Arguments) (interface{}, error) {
		out, err := e.registry.Apply(r.ctx, name, input, args, e.filterCtx)
		if err != nil {
			return nil, err
		}
		return r.lower(out, chained)
	})
}

// memberFilter looks up the member named by its argument.
func (e *TemplateEngine) memberFilter() exec.FilterFunction {
	return e.filter("member", func(r *render, input value.Value, args value.Arguments) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected a member name, got %d arguments", len(args))
		}
		name, err := args[0].ToText(r.ctx)
		if err != nil {
			return nil, err
		}
		out, err := input.GetMember(r.ctx, name)
		if err != nil {
			return nil, err
		}
		return r.lower(out, false)
	})
}

type filterBody func(r *render, input value.Value, args value.Arguments) (interface{}, error)

// filter lifts the input and arguments of a gonja filter call and records
// the first failure of the render.
func (e *TemplateEngine) filter(name string, body filterBody) exec.FilterFunction {
	return func(_ *exec.Evaluator, in *exec.Value, params *exec.VarArgs) *exec.Value {
		r := e.current
		if r == nil {
			return exec.AsValue(exec.ErrInvalidCall(fmt.Errorf("filter %s called outside a render", name)))
		}
		if r.err != nil {
			return exec.AsValue(exec.ErrInvalidCall(r.err))
		}

		input := r.lift(in.Interface())
		var args value.Arguments
		if params != nil {
			for _, arg := range params.Args {
				args = append(args, r.lift(arg.Interface()))
			}
		}

		out, err := body(r, input, args)
		if err != nil {
			r.err = fmt.Errorf("filter %s: %w", name, err)
			return exec.AsValue(exec.ErrInvalidCall(r.err))
		}
		return exec.AsValue(out)
	}
}

// wrapGlobalFunction wraps a GlobalFunc into a function callable from Gonja templates.
func wrapGlobalFunction(customFunc GlobalFunc) func(_ *exec.Evaluator, params *exec.VarArgs) *exec.Value {
	return func(_ *exec.Evaluator, params *exec.VarArgs) *exec.Value {
		var args []interface{}
		if params != nil {
			for _, arg := range params.Args {
				args = append(args, arg.Interface())
			}
		}

		result, err := customFunc(args...)
		if err != nil {
			return exec.AsValue(exec.ErrInvalidCall(err))
		}
		return exec.AsValue(result)
	}
}

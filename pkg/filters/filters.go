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

// Package filters implements the array filters of the template language.
//
// Filters are total from the template author's point of view: applied to
// the wrong kind of value they return their input, unknown members degrade
// to Nil, and operations a data source cannot express return the input
// unchanged. Only failures of an external source are returned as errors.
package filters

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"liquidcore/pkg/sequence"
	"liquidcore/pkg/value"
)

// FilterFunc applies a filter to input.
type FilterFunc func(ctx context.Context, input value.Value, args value.Arguments, fc *Context) (value.Value, error)

// FallbackRecorder observes filters that returned their input because the
// source could not express the requested operation.
type FallbackRecorder interface {
	ObservePlanFallback(filter, provider string)
}

// Context carries the render-wide settings filters use to lift results.
type Context struct {
	// Options are used to lift filter results into values.
	Options *value.Options

	Logger *slog.Logger

	// Recorder is optional.
	Recorder FallbackRecorder
}

// NewContext creates a filter context. Nil options get the defaults.
func NewContext(opts *value.Options, recorder FallbackRecorder) *Context {
	opts = opts.Normalize()
	return &Context{
		Options:  opts,
		Logger:   opts.Logger.With("component", "filters"),
		Recorder: recorder,
	}
}

func (fc *Context) options() *value.Options {
	if fc == nil {
		return (*value.Options)(nil).Normalize()
	}
	return fc.Options.Normalize()
}

func (fc *Context) logger() *slog.Logger {
	if fc == nil || fc.Logger == nil {
		return fc.options().Logger
	}
	return fc.Logger
}

// fallback returns input when err reports an operation the source cannot
// express. Any other error is returned.
func (fc *Context) fallback(filter string, input value.Value, err error) (value.Value, error) {
	if !errors.Is(err, sequence.ErrPlanUnsupported) {
		return nil, err
	}

	provider := ""
	var planErr *sequence.PlanError
	if errors.As(err, &planErr) {
		provider = planErr.Provider
	}

	fc.logger().Debug("Filter operation not supported by source, returning input",
		"filter", filter,
		"provider", provider,
		"error", err)

	if fc != nil && fc.Recorder != nil {
		fc.Recorder.ObservePlanFallback(filter, provider)
	}
	return input, nil
}

// observe records a terminal a filter ran against a source. Eager inputs
// are evaluated in memory and not recorded.
func (fc *Context) observe(input value.Value, q *sequence.Query, operation string, start time.Time, err error) {
	if _, eager := input.(*value.Array); eager {
		return
	}
	fc.options().Observe(q.Provider().Name(), operation, start, err)
}

// Registry maps filter names to filters.
type Registry struct {
	filters map[string]FilterFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{filters: make(map[string]FilterFunc)}
}

// Add registers fn under name, replacing any filter of the same name.
func (r *Registry) Add(name string, fn FilterFunc) *Registry {
	r.filters[name] = fn
	return r
}

// Get returns the filter registered under name.
func (r *Registry) Get(name string) (FilterFunc, bool) {
	fn, ok := r.filters[name]
	return fn, ok
}

// Names returns the registered filter names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.filters))
	for name := range r.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply runs the filter registered under name. A cancelled context stops
// the render before the filter runs.
func (r *Registry) Apply(ctx context.Context, name string, input value.Value, args value.Arguments, fc *Context) (value.Value, error) {
	fn, ok := r.filters[name]
	if !ok {
		return nil, NewUnknownFilterError(name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input == nil {
		input = value.Nil
	}
	return fn(ctx, input, args, fc)
}

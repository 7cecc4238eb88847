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

package templating

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	"github.com/nikolalohinski/gonja/v2/exec"
	"gopkg.in/inf.v0"

	"liquidcore/pkg/sequence"
	"liquidcore/pkg/value"
)

// render is the state of one Render call.
type render struct {
	ctx  context.Context
	opts *value.Options

	// deferred maps the lowered prefix of each deferred filter result,
	// keyed by its first element, back to the deferred array.
	deferred map[*interface{}]*value.DeferredArray

	// sources holds the deferred array of each source seen in the render,
	// so its count and prefix are queried once.
	sources map[interface{}]*value.DeferredArray

	// err is the first filter failure.
	err error
}

func newRender(ctx context.Context, opts *value.Options) *render {
	return &render{
		ctx:      ctx,
		opts:     opts,
		deferred: make(map[*interface{}]*value.DeferredArray),
		sources:  make(map[interface{}]*value.DeferredArray),
	}
}

// deferredHandle carries a deferred array between filters without loading
// it. Only filter chains see handles; printing one renders its prefix.
type deferredHandle struct {
	array *value.DeferredArray
	r     *render
}

func (h *deferredHandle) String() string {
	prefix, err := h.array.Prefix(h.r.ctx)
	if err != nil {
		if h.r.err == nil {
			h.r.err = err
		}
		return ""
	}
	return exec.AsValue(prefix).String()
}

// bind prepares template data. Sources become deferred arrays shared by the
// whole render: names only ever piped into liquidcore filters are bound to
// an unloaded handle, other names to the loaded prefix gonja can iterate
// and index. Other values are lowered to plain Go data.
func (r *render) bind(data map[string]interface{}, exposed map[string]bool) (map[string]interface{}, error) {
	bound := make(map[string]interface{}, len(data))
	for name, obj := range data {
		if d, ok := r.source(obj); ok {
			if !exposed[name] {
				bound[name] = &deferredHandle{array: d, r: r}
				continue
			}
			obj = d
		}

		v, ok := obj.(value.Value)
		if !ok {
			bound[name] = obj
			continue
		}
		lowered, err := r.lower(v, false)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", name, err)
		}
		bound[name] = lowered
	}
	return bound, nil
}

// source returns the deferred array of a source host, creating it on first
// use.
func (r *render) source(obj interface{}) (*value.DeferredArray, bool) {
	switch obj := obj.(type) {
	case *value.DeferredArray:
		return obj, obj != nil
	case *sequence.Query, sequence.Queryable:
	default:
		return nil, false
	}

	keyed := reflect.ValueOf(obj).Comparable()
	if keyed {
		if d, ok := r.sources[obj]; ok {
			return d, true
		}
	}
	d, ok := value.Create(obj, r.opts).(*value.DeferredArray)
	if ok && keyed {
		r.sources[obj] = d
	}
	return d, ok
}

// lift turns gonja data into a value, recovering deferred arrays handed
// between filters or lowered earlier in the render.
func (r *render) lift(obj interface{}) value.Value {
	switch o := obj.(type) {
	case *deferredHandle:
		return o.array
	case []interface{}:
		if len(o) > 0 {
			if d, ok := r.deferred[&o[0]]; ok {
				return d
			}
		}
	}
	if d, ok := r.source(obj); ok {
		return d
	}
	return value.Create(obj, r.opts)
}

// lower turns a value into plain Go data. A chained deferred result stays
// unloaded for the next filter; otherwise it is lowered to its prefix.
func (r *render) lower(v value.Value, chained bool) (interface{}, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case *value.DeferredArray:
		if chained {
			return &deferredHandle{array: v, r: r}, nil
		}
		prefix, err := v.Prefix(r.ctx)
		if err != nil {
			return nil, err
		}
		items := append([]interface{}{}, prefix...)
		// An empty prefix is the whole, empty, source.
		if len(items) > 0 {
			r.deferred[&items[0]] = v
		}
		return items, nil
	case value.Number:
		return lowerNumber(v.Dec()), nil
	case value.Boolean:
		return bool(v), nil
	case value.String:
		return string(v), nil
	}

	if v.Type() == value.NilType {
		return nil, nil
	}
	return v.ToObject(r.ctx)
}

// lowerNumber returns integral decimals as int and others as float64.
func lowerNumber(d *inf.Dec) interface{} {
	whole := new(inf.Dec).Round(d, 0, inf.RoundDown)
	if whole.Cmp(d) == 0 {
		if n := whole.UnscaledBig(); n.IsInt64() {
			return int(n.Int64())
		}
	}
	f, err := strconv.ParseFloat(d.String(), 64)
	if err != nil {
		return d.String()
	}
	return f
}

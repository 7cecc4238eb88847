// Package path resolves dotted member paths against host element types.
//
// A path such as "user.roles" is split on dots and each segment is resolved
// against the type reached so far. Every segment is looked up under an alias
// (the segment with a configurable prefix, "_" by default) before the raw
// name, so hosts can expose a member whose natural name collides with a
// reserved word. Segments whose static type is unknown (interface values,
// maps with interface elements) are resolved against each value at
// evaluation time with the same alias-first rule.
//
// Resolved paths are compiled into Selectors (projections, sort keys) and
// Predicates (where/all tests).
package path

import (
	"context"
	"reflect"
	"strings"
)

const (
	// DefaultAliasPrefix is prepended to a segment to form its alias.
	DefaultAliasPrefix = "_"

	// DefaultMaxPredicateItems caps collection targets embedded in a
	// membership predicate.
	DefaultMaxPredicateItems = 50
)

var defaultAccessor = NewReflectAccessor()

// Resolver builds selectors and predicates. The zero value uses
// ReflectAccessor, DefaultAliasPrefix and DefaultMaxPredicateItems.
type Resolver struct {
	Accessor          MemberAccessor
	AliasPrefix       string
	MaxPredicateItems int

	// DisableAliases resolves segments by their raw name only.
	DisableAliases bool
}

// NewResolver creates a Resolver with default settings.
func NewResolver() *Resolver {
	return &Resolver{
		Accessor:          defaultAccessor,
		AliasPrefix:       DefaultAliasPrefix,
		MaxPredicateItems: DefaultMaxPredicateItems,
	}
}

func (r *Resolver) accessor() MemberAccessor {
	if r == nil || r.Accessor == nil {
		return defaultAccessor
	}
	return r.Accessor
}

func (r *Resolver) maxPredicateItems() int {
	if r == nil || r.MaxPredicateItems <= 0 {
		return DefaultMaxPredicateItems
	}
	return r.MaxPredicateItems
}

// Candidates returns the names tried for a segment, alias first.
func (r *Resolver) Candidates(segment string) []string {
	if r != nil && r.DisableAliases {
		return []string{segment}
	}
	prefix := DefaultAliasPrefix
	if r != nil && r.AliasPrefix != "" {
		prefix = r.AliasPrefix
	}
	return []string{prefix + segment, segment}
}

// Step is one resolved path segment.
type Step struct {
	// Segment is the raw segment from the path.
	Segment string

	// Member is the name the segment resolved to, or empty when the step is
	// resolved at evaluation time.
	Member string

	// Type is the static type reached by the step, nil when unknown.
	Type reflect.Type

	accessor Accessor
}

func (r *Resolver) resolveStep(t reflect.Type, fullPath, segment string) (Step, error) {
	if t == nil || t.Kind() == reflect.Interface {
		return Step{Segment: segment}, nil
	}

	base := t
	for base.Kind() == reflect.Ptr {
		base = base.Elem()
	}
	if base.Kind() == reflect.Map {
		// Keys are only known per value.
		return Step{Segment: segment, Type: staticType(base.Elem())}, nil
	}

	for _, name := range r.Candidates(segment) {
		if acc, ok := r.accessor().Resolve(t, name); ok {
			return Step{Segment: segment, Member: acc.Name(), Type: acc.Type(), accessor: acc}, nil
		}
	}
	return Step{}, &ResolveError{Path: fullPath, Segment: segment, Type: t}
}

func (r *Resolver) eval(ctx context.Context, s Step, obj interface{}) (interface{}, error) {
	if obj == nil {
		return nil, nil
	}
	if s.accessor != nil {
		v, _, err := s.accessor.Get(ctx, obj)
		return v, err
	}
	return r.lookup(ctx, obj, s.Segment)
}

func (r *Resolver) lookup(ctx context.Context, obj interface{}, segment string) (interface{}, error) {
	v, _, err := r.Member(ctx, obj, segment)
	return v, err
}

// Member reads the member name of obj, resolved alias first against the
// concrete type of obj. The boolean is false when obj has no such member.
func (r *Resolver) Member(ctx context.Context, obj interface{}, name string) (interface{}, bool, error) {
	if obj == nil {
		return nil, false, nil
	}

	t := reflect.TypeOf(obj)
	for _, candidate := range r.Candidates(name) {
		acc, ok := r.accessor().Resolve(t, candidate)
		if !ok {
			continue
		}
		v, found, err := acc.Get(ctx, obj)
		if err != nil {
			return nil, false, err
		}
		if found {
			return v, true, nil
		}
	}
	return nil, false, nil
}

// Selector reads the value at a path from an element.
type Selector struct {
	path     string
	elem     reflect.Type
	steps    []Step
	resolver *Resolver
}

// Selector compiles path against elements of type elem. An empty path
// selects the element itself. Unknown members of statically typed elements
// fail with a *ResolveError.
func (r *Resolver) Selector(elem reflect.Type, path string) (*Selector, error) {
	sel := &Selector{path: path, elem: elem, resolver: r}

	cur := elem
	for _, segment := range Split(path) {
		step, err := r.resolveStep(cur, path, segment)
		if err != nil {
			return nil, err
		}
		sel.steps = append(sel.steps, step)
		cur = step.Type
	}
	return sel, nil
}

// Path returns the source path.
func (s *Selector) Path() string { return s.path }

// Steps returns the resolved steps.
func (s *Selector) Steps() []Step { return s.steps }

// IsIdentity reports whether the selector returns the element itself.
func (s *Selector) IsIdentity() bool { return len(s.steps) == 0 }

// Type returns the static type of the selected value, nil when unknown.
func (s *Selector) Type() reflect.Type {
	if len(s.steps) == 0 {
		return s.elem
	}
	return s.steps[len(s.steps)-1].Type
}

// Select reads the selected value. Missing members yield nil.
func (s *Selector) Select(ctx context.Context, obj interface{}) (interface{}, error) {
	v := obj
	for _, step := range s.steps {
		next, err := s.resolver.eval(ctx, step, v)
		if err != nil {
			return nil, err
		}
		v = next
	}
	return v, nil
}

func (s *Selector) String() string {
	if s.IsIdentity() {
		return "."
	}
	return s.path
}

// Split splits a dotted path into segments, dropping empty ones.
func Split(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, ".") {
		if segment = strings.TrimSpace(segment); segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

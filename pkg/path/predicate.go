package path

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"liquidcore/pkg/ordering"
)

// Op is the test a Predicate applies to the value reached by its path.
type Op int

const (
	// OpEqual tests the value for equality with the target.
	OpEqual Op = iota
	// OpIn tests the value for membership in the target collection.
	OpIn
	// OpAny tests whether any item of a nested collection satisfies the
	// inner predicate.
	OpAny
)

func (o Op) String() string {
	switch o {
	case OpEqual:
		return "=="
	case OpIn:
		return "in"
	case OpAny:
		return "any"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Predicate tests elements against a target value at a path.
//
// When the path reaches a collection member the predicate is existential:
// it matches if any item of the nested collection satisfies the predicate
// built from the remaining path. When the target is a collection the test is
// membership, with the target capped at the resolver's MaxPredicateItems.
// Otherwise it is equality.
type Predicate struct {
	path     string
	relative string
	steps    []Step
	op       Op
	target   interface{}
	set      []interface{}
	inner    *Predicate

	// tail holds steps after a member of unknown type; at each of them the
	// reached value is inspected and collections switch to existential
	// matching.
	tail     []Step
	deferred bool

	resolver *Resolver
}

// Predicate compiles a predicate matching elements of type elem whose
// member at path equals (or, for collection targets, is contained in)
// target.
func (r *Resolver) Predicate(elem reflect.Type, path string, target interface{}) (*Predicate, error) {
	return r.buildPredicate(elem, path, Split(path), target)
}

func (r *Resolver) buildPredicate(t reflect.Type, fullPath string, segments []string, target interface{}) (*Predicate, error) {
	p := &Predicate{
		path:     fullPath,
		relative: strings.Join(segments, "."),
		target:   target,
		op:       OpEqual,
		resolver: r,
	}
	if items, ok := ordering.Items(target); ok {
		if limit := r.maxPredicateItems(); len(items) > limit {
			items = items[:limit]
		}
		p.op = OpIn
		p.set = items
	}

	cur := t
	if cur == nil || cur.Kind() == reflect.Interface {
		return p.deferRest(r, segments), nil
	}

	for i, segment := range segments {
		step, err := r.resolveStep(cur, fullPath, segment)
		if err != nil {
			return nil, err
		}
		p.steps = append(p.steps, step)
		if step.Type == nil {
			return p.deferRest(r, segments[i+1:]), nil
		}

		cur = step.Type
		if ordering.IsCollectionType(cur) {
			inner, err := r.buildPredicate(cur.Elem(), fullPath, segments[i+1:], target)
			if err != nil {
				return nil, err
			}
			p.op = OpAny
			p.set = nil
			p.inner = inner
			return p, nil
		}
	}
	return p, nil
}

func (p *Predicate) deferRest(r *Resolver, segments []string) *Predicate {
	p.deferred = true
	for _, segment := range segments {
		p.tail = append(p.tail, Step{Segment: segment})
	}
	return p
}

// Path returns the source path.
func (p *Predicate) Path() string { return p.path }

// Op returns the test applied once the path is resolved. Predicates with
// members of unknown type may still turn existential per value.
func (p *Predicate) Op() Op { return p.op }

// Target returns the target value the predicate was built with.
func (p *Predicate) Target() interface{} { return p.target }

// Set returns the capped membership set of an OpIn predicate.
func (p *Predicate) Set() []interface{} { return p.set }

// Inner returns the item predicate of an OpAny predicate.
func (p *Predicate) Inner() *Predicate { return p.inner }

// Steps returns all resolved steps including those resolved per value.
func (p *Predicate) Steps() []Step {
	steps := make([]Step, 0, len(p.steps)+len(p.tail))
	steps = append(steps, p.steps...)
	return append(steps, p.tail...)
}

// Deferred reports whether part of the path is resolved per value.
func (p *Predicate) Deferred() bool { return p.deferred }

// Match tests obj.
func (p *Predicate) Match(ctx context.Context, obj interface{}) (bool, error) {
	v := obj
	for _, step := range p.steps {
		next, err := p.resolver.eval(ctx, step, v)
		if err != nil {
			return false, err
		}
		v = next
	}

	switch {
	case p.inner != nil:
		items, _ := ordering.Items(v)
		for _, item := range items {
			ok, err := p.inner.Match(ctx, item)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case p.deferred:
		return p.matchTail(ctx, v, p.tail)
	default:
		return p.test(v), nil
	}
}

func (p *Predicate) matchTail(ctx context.Context, v interface{}, tail []Step) (bool, error) {
	if items, ok := ordering.Items(v); ok {
		for _, item := range items {
			ok, err := p.matchTail(ctx, item, tail)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}

	if len(tail) == 0 {
		return p.test(v), nil
	}

	next, err := p.resolver.eval(ctx, tail[0], v)
	if err != nil {
		return false, err
	}
	return p.matchTail(ctx, next, tail[1:])
}

func (p *Predicate) test(v interface{}) bool {
	if p.op == OpIn {
		for _, candidate := range p.set {
			if ordering.Equal(v, candidate) {
				return true
			}
		}
		return false
	}
	return ordering.Equal(v, p.target)
}

func (p *Predicate) String() string {
	return p.path + p.testString()
}

func (p *Predicate) testString() string {
	switch {
	case p.inner != nil:
		return " any(" + p.inner.relative + p.inner.testString() + ")"
	case p.op == OpIn:
		return fmt.Sprintf(" in %v", p.set)
	default:
		return fmt.Sprintf("==%v", p.target)
	}
}

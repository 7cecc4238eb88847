// Package sequence applies generic sequence operations to sources whose
// element type and execution strategy are only known at runtime.
//
// A Query pairs a Provider with an element type and an immutable plan of
// lazy operations. Lazy methods (Project, Filter, OrderBy, ...) never
// execute anything: they ask the provider whether it can express the
// operation and return a new Query with the operation appended. Terminal
// methods (Count, Contains, First, ToList, ...) hand the plan to the
// provider for execution. Providers that cannot express an operation return
// ErrPlanUnsupported wrapped in a *PlanError.
package sequence

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"liquidcore/pkg/path"
)

var anyType = reflect.TypeOf((*interface{})(nil)).Elem()

// Provider executes query plans against one kind of source.
type Provider interface {
	// Name identifies the provider in errors and logs.
	Name() string

	// Supports reports whether op can be appended to plan. It returns nil
	// or an error wrapping ErrPlanUnsupported.
	Supports(plan Plan, op Op) error

	// Execute runs the plan of q and applies the terminal operation.
	Execute(ctx context.Context, q *Query, t Terminal) (Result, error)
}

// Queryable is implemented by host values that expose a query.
type Queryable interface {
	AsQuery() *Query
}

// Query is a type-erased handle to a source with a composed plan. Queries
// are immutable; two queries are the same source only if they are the same
// pointer.
type Query struct {
	id       uuid.UUID
	provider Provider
	elem     reflect.Type
	plan     Plan
	resolver *path.Resolver
}

// New creates a query over a provider's source with elements of type elem.
// A nil elem means elements are only typed at runtime. A nil resolver uses
// path defaults.
func New(provider Provider, elem reflect.Type, resolver *path.Resolver) *Query {
	if elem == nil {
		elem = anyType
	}
	if resolver == nil {
		resolver = path.NewResolver()
	}
	return &Query{id: uuid.New(), provider: provider, elem: elem, resolver: resolver}
}

// ID identifies the query in logs.
func (q *Query) ID() uuid.UUID { return q.id }

// Provider returns the provider executing the query.
func (q *Query) Provider() Provider { return q.provider }

// ElementType returns the static element type.
func (q *Query) ElementType() reflect.Type { return q.elem }

// Plan returns the composed operations. The returned slice must not be
// modified.
func (q *Query) Plan() Plan { return q.plan }

// Resolver returns the resolver used to compile paths.
func (q *Query) Resolver() *path.Resolver { return q.resolver }

func (q *Query) with(op Op, elem reflect.Type) (*Query, error) {
	if err := q.provider.Supports(q.plan, op); err != nil {
		return nil, &PlanError{Op: op.Kind, Provider: q.provider.Name(), Err: err}
	}

	plan := make(Plan, len(q.plan), len(q.plan)+1)
	copy(plan, q.plan)
	return &Query{
		id:       uuid.New(),
		provider: q.provider,
		elem:     elem,
		plan:     append(plan, op),
		resolver: q.resolver,
	}, nil
}

// Project maps each element to the value at a member path.
func (q *Query) Project(memberPath string) (*Query, error) {
	sel, err := q.resolver.Selector(q.elem, memberPath)
	if err != nil {
		return nil, err
	}
	elem := sel.Type()
	if elem == nil {
		elem = anyType
	}
	return q.with(Op{Kind: OpProject, Selector: sel}, elem)
}

// Filter keeps elements whose member at memberPath matches target.
func (q *Query) Filter(memberPath string, target interface{}) (*Query, error) {
	pred, err := q.resolver.Predicate(q.elem, memberPath, target)
	if err != nil {
		return nil, err
	}
	return q.with(Op{Kind: OpFilter, Predicate: pred}, q.elem)
}

// OrderBy sorts elements by the value at memberPath. An empty path sorts
// by the elements themselves.
func (q *Query) OrderBy(memberPath string, descending, natural bool) (*Query, error) {
	return q.order(OpOrderBy, memberPath, descending, natural)
}

// ThenBy adds a tie-breaking key to the preceding OrderBy. Without a
// preceding OrderBy it orders like OrderBy.
func (q *Query) ThenBy(memberPath string, descending, natural bool) (*Query, error) {
	return q.order(OpThenBy, memberPath, descending, natural)
}

func (q *Query) order(kind OpKind, memberPath string, descending, natural bool) (*Query, error) {
	sel, err := q.resolver.Selector(q.elem, memberPath)
	if err != nil {
		return nil, err
	}
	key := SortKey{Selector: sel, Descending: descending, Natural: natural}
	return q.with(Op{Kind: kind, Key: key}, q.elem)
}

// Distinct removes duplicate elements, keeping first occurrences.
func (q *Query) Distinct() (*Query, error) {
	return q.with(Op{Kind: OpDistinct}, q.elem)
}

// Skip bypasses the first n elements. Negative n is treated as 0.
func (q *Query) Skip(n int) (*Query, error) {
	return q.with(Op{Kind: OpSkip, Count: max(n, 0)}, q.elem)
}

// Take keeps at most n elements. Negative n is treated as 0.
func (q *Query) Take(n int) (*Query, error) {
	return q.with(Op{Kind: OpTake, Count: max(n, 0)}, q.elem)
}

// Reverse inverts the element order.
func (q *Query) Reverse() (*Query, error) {
	return q.with(Op{Kind: OpReverse}, q.elem)
}

// Concat appends the elements of other.
func (q *Query) Concat(other *Query) (*Query, error) {
	return q.setOp(OpConcat, other)
}

// Union appends the elements of other and removes duplicates.
func (q *Query) Union(other *Query) (*Query, error) {
	return q.setOp(OpUnion, other)
}

// Intersect keeps the distinct elements also present in other.
func (q *Query) Intersect(other *Query) (*Query, error) {
	return q.setOp(OpIntersect, other)
}

// Except keeps the distinct elements not present in other.
func (q *Query) Except(other *Query) (*Query, error) {
	return q.setOp(OpExcept, other)
}

func (q *Query) setOp(kind OpKind, other *Query) (*Query, error) {
	elem := q.elem
	if kind != OpIntersect && kind != OpExcept && other.elem != q.elem {
		elem = anyType
	}
	return q.with(Op{Kind: kind, Other: other}, elem)
}

// Count returns the number of elements.
func (q *Query) Count(ctx context.Context) (int, error) {
	n, err := q.LongCount(ctx)
	return int(n), err
}

// LongCount returns the number of elements as int64.
func (q *Query) LongCount(ctx context.Context) (int64, error) {
	res, err := q.provider.Execute(ctx, q, Terminal{Kind: TerminalCount})
	return res.Count, err
}

// Contains reports whether an element equals v.
func (q *Query) Contains(ctx context.Context, v interface{}) (bool, error) {
	res, err := q.provider.Execute(ctx, q, Terminal{Kind: TerminalContains, Value: v})
	return res.Bool, err
}

// First returns the first element. The boolean is false for an empty
// sequence.
func (q *Query) First(ctx context.Context) (interface{}, bool, error) {
	res, err := q.provider.Execute(ctx, q, Terminal{Kind: TerminalFirst})
	return res.Item, res.Found, err
}

// Last returns the last element. The boolean is false for an empty
// sequence.
func (q *Query) Last(ctx context.Context) (interface{}, bool, error) {
	res, err := q.provider.Execute(ctx, q, Terminal{Kind: TerminalLast})
	return res.Item, res.Found, err
}

// Any reports whether the sequence has at least one element.
func (q *Query) Any(ctx context.Context) (bool, error) {
	res, err := q.provider.Execute(ctx, q, Terminal{Kind: TerminalAny})
	return res.Bool, err
}

// All reports whether every element's member at memberPath matches target.
// An empty sequence satisfies All.
func (q *Query) All(ctx context.Context, memberPath string, target interface{}) (bool, error) {
	pred, err := q.resolver.Predicate(q.elem, memberPath, target)
	if err != nil {
		return false, err
	}
	res, err := q.provider.Execute(ctx, q, Terminal{Kind: TerminalAll, Predicate: pred})
	return res.Bool, err
}

// ToList executes the plan and returns all elements.
func (q *Query) ToList(ctx context.Context) ([]interface{}, error) {
	res, err := q.provider.Execute(ctx, q, Terminal{Kind: TerminalList})
	return res.Items, err
}

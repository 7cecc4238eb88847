package sequence

import (
	"context"
	"reflect"
	"slices"

	"liquidcore/pkg/ordering"
	"liquidcore/pkg/path"
)

// Memory executes plans over an in-memory slice. It supports every
// operation; set operations materialize the right-hand query, whatever its
// provider, under the caller's context.
type Memory struct {
	items []interface{}
}

// NewMemory creates a provider over items. The slice is not copied and must
// not be modified afterwards.
func NewMemory(items []interface{}) *Memory {
	return &Memory{items: items}
}

// FromSlice creates a query over a Go slice or array. The element type is
// the slice's static element type. Non-sequence values yield an empty
// query.
func FromSlice(slice interface{}, resolver *path.Resolver) *Query {
	items, _ := ordering.Items(slice)

	var elem reflect.Type
	if t := reflect.TypeOf(slice); t != nil {
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
			elem = t.Elem()
		}
	}
	return New(NewMemory(items), elem, resolver)
}

// Name implements Provider.
func (m *Memory) Name() string { return "memory" }

// Supports implements Provider.
func (m *Memory) Supports(Plan, Op) error { return nil }

// Execute implements Provider.
func (m *Memory) Execute(ctx context.Context, q *Query, t Terminal) (Result, error) {
	items, err := Apply(ctx, q.Plan(), m.items)
	if err != nil {
		return Result{}, err
	}
	return Evaluate(ctx, items, t)
}

// Evaluate applies a terminal operation to materialized items.
func Evaluate(ctx context.Context, items []interface{}, t Terminal) (Result, error) {
	switch t.Kind {
	case TerminalList:
		return Result{Items: slices.Clone(items)}, nil
	case TerminalCount:
		return Result{Count: int64(len(items))}, nil
	case TerminalContains:
		return Result{Bool: containsValue(items, t.Value)}, nil
	case TerminalFirst:
		if len(items) == 0 {
			return Result{}, nil
		}
		return Result{Item: items[0], Found: true}, nil
	case TerminalLast:
		if len(items) == 0 {
			return Result{}, nil
		}
		return Result{Item: items[len(items)-1], Found: true}, nil
	case TerminalAny:
		return Result{Bool: len(items) > 0}, nil
	case TerminalAll:
		for _, item := range items {
			ok, err := t.Predicate.Match(ctx, item)
			if err != nil {
				return Result{}, err
			}
			if !ok {
				return Result{Bool: false}, nil
			}
		}
		return Result{Bool: true}, nil
	default:
		return Result{}, Unsupported("terminal %s", t.Kind)
	}
}

// Apply runs a plan over items in memory. The input slice is never
// modified.
func Apply(ctx context.Context, plan Plan, items []interface{}) ([]interface{}, error) {
	out := items
	var keys []SortKey

	for _, op := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var err error
		switch op.Kind {
		case OpProject:
			out, err = project(ctx, out, op.Selector)
		case OpFilter:
			out, err = filter(ctx, out, op.Predicate)
		case OpOrderBy:
			keys = []SortKey{op.Key}
			out, err = sortItems(ctx, out, keys)
		case OpThenBy:
			keys = append(keys, op.Key)
			out, err = sortItems(ctx, out, keys)
		case OpDistinct:
			out = distinct(out)
		case OpSkip:
			out = out[min(op.Count, len(out)):]
		case OpTake:
			out = out[:min(op.Count, len(out))]
		case OpReverse:
			reversed := slices.Clone(out)
			slices.Reverse(reversed)
			out = reversed
		case OpConcat, OpUnion, OpIntersect, OpExcept:
			out, err = combine(ctx, op, out)
		default:
			err = Unsupported("operation %s", op.Kind)
		}
		if err != nil {
			return nil, err
		}

		if op.Kind != OpOrderBy && op.Kind != OpThenBy {
			keys = nil
		}
	}
	return out, nil
}

func project(ctx context.Context, items []interface{}, sel *path.Selector) ([]interface{}, error) {
	out := make([]interface{}, len(items))
	for i, item := range items {
		v, err := sel.Select(ctx, item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func filter(ctx context.Context, items []interface{}, pred *path.Predicate) ([]interface{}, error) {
	var out []interface{}
	for _, item := range items {
		ok, err := pred.Match(ctx, item)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

type keyed struct {
	item interface{}
	keys []interface{}
}

func sortItems(ctx context.Context, items []interface{}, keys []SortKey) ([]interface{}, error) {
	rows := make([]keyed, len(items))
	for i, item := range items {
		rows[i] = keyed{item: item, keys: make([]interface{}, len(keys))}
		for k, key := range keys {
			v, err := key.Selector.Select(ctx, item)
			if err != nil {
				return nil, err
			}
			rows[i].keys[k] = v
		}
	}

	slices.SortStableFunc(rows, func(a, b keyed) int {
		for k, key := range keys {
			var c int
			if key.Natural {
				c = ordering.CompareNatural(a.keys[k], b.keys[k])
			} else {
				c = ordering.Compare(a.keys[k], b.keys[k])
			}
			if key.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})

	out := make([]interface{}, len(rows))
	for i, row := range rows {
		out[i] = row.item
	}
	return out, nil
}

// itemSet tracks values under ordering.Equal, hashing where possible.
type itemSet struct {
	hashed map[interface{}]struct{}
	other  []interface{}
}

func newItemSet(items []interface{}) *itemSet {
	s := &itemSet{hashed: make(map[interface{}]struct{})}
	for _, item := range items {
		s.add(item)
	}
	return s
}

// add returns false when the item was already present.
func (s *itemSet) add(item interface{}) bool {
	if key, ok := ordering.HashKey(item); ok {
		if _, seen := s.hashed[key]; seen {
			return false
		}
		s.hashed[key] = struct{}{}
		return true
	}
	if containsValue(s.other, item) {
		return false
	}
	s.other = append(s.other, item)
	return true
}

func (s *itemSet) has(item interface{}) bool {
	if key, ok := ordering.HashKey(item); ok {
		_, seen := s.hashed[key]
		return seen
	}
	return containsValue(s.other, item)
}

func distinct(items []interface{}) []interface{} {
	seen := newItemSet(nil)
	var out []interface{}
	for _, item := range items {
		if seen.add(item) {
			out = append(out, item)
		}
	}
	return out
}

func combine(ctx context.Context, op Op, items []interface{}) ([]interface{}, error) {
	other, err := op.Other.ToList(ctx)
	if err != nil {
		return nil, err
	}

	switch op.Kind {
	case OpConcat:
		out := make([]interface{}, 0, len(items)+len(other))
		return append(append(out, items...), other...), nil
	case OpUnion:
		return distinct(append(slices.Clone(items), other...)), nil
	}

	set := newItemSet(other)
	wantPresent := op.Kind == OpIntersect
	var out []interface{}
	for _, item := range distinct(items) {
		if set.has(item) == wantPresent {
			out = append(out, item)
		}
	}
	return out, nil
}

func containsValue(items []interface{}, v interface{}) bool {
	for _, item := range items {
		if ordering.Equal(item, v) {
			return true
		}
	}
	return false
}

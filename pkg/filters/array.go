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

package filters

import (
	"context"
	"errors"
	"strings"
	"time"

	"liquidcore/pkg/path"
	"liquidcore/pkg/sequence"
	"liquidcore/pkg/value"
)

// WithArrayFilters registers the array filters in r.
func WithArrayFilters(r *Registry) *Registry {
	return r.
		Add("join", Join).
		Add("first", First).
		Add("last", Last).
		Add("concat", Concat).
		Add("map", Map).
		Add("reverse", Reverse).
		Add("size", Size).
		Add("sort", Sort).
		Add("sort_natural", SortNatural).
		Add("uniq", Uniq).
		Add("where", Where).
		Add("skip", Skip).
		Add("take", Take).
		Add("any", Any).
		Add("all", All).
		Add("intersect", Intersect).
		Add("union", Union).
		Add("except", Except).
		Add("to_array", ToArray)
}

// Join concatenates the text of the elements with the separator given as
// the first argument.
func Join(ctx context.Context, input value.Value, args value.Arguments, _ *Context) (value.Value, error) {
	if _, ok := asSequence(input); !ok {
		return input, nil
	}

	separator, err := args.At(0).ToText(ctx)
	if err != nil {
		return nil, err
	}

	var texts []string
	for item, err := range input.Enumerate(ctx) {
		if err != nil {
			return nil, err
		}
		text, err := item.ToText(ctx)
		if err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return value.String(strings.Join(texts, separator)), nil
}

// First returns the first element, Nil for an empty array.
func First(ctx context.Context, input value.Value, _ value.Arguments, _ *Context) (value.Value, error) {
	seq, ok := asSequence(input)
	if !ok {
		return input, nil
	}
	return seq.First(ctx)
}

// Last returns the last element, Nil for an empty array.
func Last(ctx context.Context, input value.Value, _ value.Arguments, _ *Context) (value.Value, error) {
	seq, ok := asSequence(input)
	if !ok {
		return input, nil
	}
	return seq.Last(ctx)
}

// Concat appends the array given as the first argument.
func Concat(ctx context.Context, input value.Value, args value.Arguments, fc *Context) (value.Value, error) {
	return combine(ctx, "concat", input, args, fc, (*sequence.Query).Concat)
}

// Union returns the distinct elements of both arrays.
func Union(ctx context.Context, input value.Value, args value.Arguments, fc *Context) (value.Value, error) {
	return combine(ctx, "union", input, args, fc, (*sequence.Query).Union)
}

// Intersect returns the distinct elements present in both arrays.
func Intersect(ctx context.Context, input value.Value, args value.Arguments, fc *Context) (value.Value, error) {
	return combine(ctx, "intersect", input, args, fc, (*sequence.Query).Intersect)
}

// Except returns the distinct elements of input absent from the argument.
func Except(ctx context.Context, input value.Value, args value.Arguments, fc *Context) (value.Value, error) {
	return combine(ctx, "except", input, args, fc, (*sequence.Query).Except)
}

func combine(
	ctx context.Context,
	filter string,
	input value.Value,
	args value.Arguments,
	fc *Context,
	op func(q, other *sequence.Query) (*sequence.Query, error),
) (value.Value, error) {
	seq, ok := asSequence(input)
	if !ok {
		return input, nil
	}
	other, ok := asSequence(args.At(0))
	if !ok {
		return input, nil
	}

	left, err := seq.Query(ctx)
	if err != nil {
		return nil, err
	}
	right, err := other.Query(ctx)
	if err != nil {
		return nil, err
	}

	q, err := op(left, right)
	if err != nil {
		return fc.fallback(filter, input, err)
	}
	return fc.result(ctx, filter, input, q, input, other)
}

// Map projects each element to the member at the path given as the first
// argument. An unknown member yields Nil.
func Map(ctx context.Context, input value.Value, args value.Arguments, fc *Context) (value.Value, error) {
	seq, ok := asSequence(input)
	if !ok {
		return input, nil
	}
	source, err := seq.Query(ctx)
	if err != nil {
		return nil, err
	}

	member, err := args.At(0).ToText(ctx)
	if err != nil {
		return nil, err
	}

	q, err := source.Project(member)
	if err != nil {
		if isResolveError(err) {
			fc.logger().Debug("Cannot map unknown member", "member", member, "error", err)
			return value.Nil, nil
		}
		return fc.fallback("map", input, err)
	}
	return fc.result(ctx, "map", input, q, input)
}

// Reverse reverses the element order.
func Reverse(ctx context.Context, input value.Value, _ value.Arguments, fc *Context) (value.Value, error) {
	seq, ok := asSequence(input)
	if !ok {
		return input, nil
	}
	source, err := seq.Query(ctx)
	if err != nil {
		return nil, err
	}

	q, err := source.Reverse()
	if err != nil {
		return fc.fallback("reverse", input, err)
	}
	return fc.result(ctx, "reverse", input, q, input)
}

// Size returns the element count of arrays and the character count of
// strings. Other values have no size.
func Size(ctx context.Context, input value.Value, _ value.Arguments, _ *Context) (value.Value, error) {
	if seq, ok := asSequence(input); ok {
		n, err := seq.Size(ctx)
		if err != nil {
			return nil, err
		}
		return value.NumberFromInt(n), nil
	}
	if input.Type() == value.StringType {
		return input.GetMember(ctx, "size")
	}
	return value.Nil, nil
}

// Sort orders elements by the keys given as arguments, or by the elements
// themselves without arguments. A key is a member path with an optional
// "asc:" or "desc:" prefix; later keys break ties of earlier ones.
func Sort(ctx context.Context, input value.Value, args value.Arguments, fc *Context) (value.Value, error) {
	return orderBy(ctx, "sort", input, args, fc, false)
}

// SortNatural sorts like Sort but compares strings case-insensitively.
func SortNatural(ctx context.Context, input value.Value, args value.Arguments, fc *Context) (value.Value, error) {
	return orderBy(ctx, "sort_natural", input, args, fc, true)
}

func orderBy(ctx context.Context, filter string, input value.Value, args value.Arguments, fc *Context, natural bool) (value.Value, error) {
	seq, ok := asSequence(input)
	if !ok {
		return input, nil
	}
	q, err := seq.Query(ctx)
	if err != nil {
		return nil, err
	}

	if args.Len() == 0 {
		sorted, err := q.OrderBy("", false, natural)
		if err != nil {
			return fc.fallback(filter, input, err)
		}
		return fc.result(ctx, filter, input, sorted, input)
	}

	for i := range args.Len() {
		text, err := args.At(i).ToText(ctx)
		if err != nil {
			return nil, err
		}
		member, descending := sortKey(text)

		if i == 0 {
			q, err = q.OrderBy(member, descending, natural)
		} else {
			q, err = q.ThenBy(member, descending, natural)
		}
		if err != nil {
			if isResolveError(err) {
				fc.logger().Debug("Cannot sort by unknown member", "filter", filter, "member", member, "error", err)
				return input, nil
			}
			return fc.fallback(filter, input, err)
		}
	}
	return fc.result(ctx, filter, input, q, input)
}

// sortKey splits an optional direction prefix off a sort key.
func sortKey(key string) (member string, descending bool) {
	direction, rest, found := strings.Cut(key, ":")
	if !found {
		return strings.TrimSpace(key), false
	}
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "desc":
		return strings.TrimSpace(rest), true
	case "asc":
		return strings.TrimSpace(rest), false
	default:
		return strings.TrimSpace(key), false
	}
}

// Uniq removes duplicate elements.
func Uniq(ctx context.Context, input value.Value, _ value.Arguments, fc *Context) (value.Value, error) {
	seq, ok := asSequence(input)
	if !ok {
		return input, nil
	}
	source, err := seq.Query(ctx)
	if err != nil {
		return nil, err
	}

	q, err := source.Distinct()
	if err != nil {
		return fc.fallback("uniq", input, err)
	}
	return fc.result(ctx, "uniq", input, q, input)
}

// Where keeps the elements whose member at the path given as the first
// argument matches the second argument, true by default. A member holding
// a list matches when any of its items matches; a list target matches any
// of its items.
func Where(ctx context.Context, input value.Value, args value.Arguments, fc *Context) (value.Value, error) {
	seq, ok := asSequence(input)
	if !ok {
		return input, nil
	}
	source, err := seq.Query(ctx)
	if err != nil {
		return nil, err
	}

	member, target, err := predicateArgs(ctx, args)
	if err != nil {
		return nil, err
	}

	q, err := source.Filter(member, target)
	if err != nil {
		if isResolveError(err) {
			fc.logger().Debug("Where on unknown member matches nothing", "member", member, "error", err)
			return value.NewArray(nil, fc.options()), nil
		}
		return fc.fallback("where", input, err)
	}
	return fc.result(ctx, "where", input, q, input)
}

// Skip drops the number of leading elements given as the first argument.
func Skip(ctx context.Context, input value.Value, args value.Arguments, fc *Context) (value.Value, error) {
	seq, ok := asSequence(input)
	if !ok {
		return input, nil
	}
	source, err := seq.Query(ctx)
	if err != nil {
		return nil, err
	}

	n, err := countArg(ctx, args.At(0))
	if err != nil {
		return nil, err
	}
	q, err := source.Skip(n)
	if err != nil {
		return fc.fallback("skip", input, err)
	}
	return fc.result(ctx, "skip", input, q, input)
}

// Take keeps the number of leading elements given as the first argument.
func Take(ctx context.Context, input value.Value, args value.Arguments, fc *Context) (value.Value, error) {
	seq, ok := asSequence(input)
	if !ok {
		return input, nil
	}
	source, err := seq.Query(ctx)
	if err != nil {
		return nil, err
	}

	n, err := countArg(ctx, args.At(0))
	if err != nil {
		return nil, err
	}
	q, err := source.Take(n)
	if err != nil {
		return fc.fallback("take", input, err)
	}
	return fc.result(ctx, "take", input, q, input)
}

// Any reports whether the array has elements. With arguments it reports
// whether an element matches them as in Where.
func Any(ctx context.Context, input value.Value, args value.Arguments, fc *Context) (value.Value, error) {
	seq, ok := asSequence(input)
	if !ok {
		return input, nil
	}
	q, err := seq.Query(ctx)
	if err != nil {
		return nil, err
	}

	if args.Len() > 0 {
		member, target, err := predicateArgs(ctx, args)
		if err != nil {
			return nil, err
		}
		q, err = q.Filter(member, target)
		if err != nil {
			if isResolveError(err) {
				return value.False, nil
			}
			return fc.fallback("any", input, err)
		}
	}

	start := time.Now()
	found, err := q.Any(ctx)
	fc.observe(input, q, "any", start, err)
	if err != nil {
		return fc.fallback("any", input, err)
	}
	return value.Boolean(found), nil
}

// All reports whether every element's member at the path given as the
// first argument matches the second argument, true by default.
func All(ctx context.Context, input value.Value, args value.Arguments, fc *Context) (value.Value, error) {
	seq, ok := asSequence(input)
	if !ok {
		return input, nil
	}
	source, err := seq.Query(ctx)
	if err != nil {
		return nil, err
	}

	member, target, err := predicateArgs(ctx, args)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	all, err := source.All(ctx, member, target)
	fc.observe(input, source, "all", start, err)
	if err != nil {
		if isResolveError(err) {
			return value.False, nil
		}
		return fc.fallback("all", input, err)
	}
	return value.Boolean(all), nil
}

// ToArray materializes the input into an eager array. Deferred arrays
// contribute their capped prefix.
func ToArray(ctx context.Context, input value.Value, _ value.Arguments, fc *Context) (value.Value, error) {
	if _, ok := asSequence(input); !ok {
		return input, nil
	}

	switch v := input.(type) {
	case *value.Array:
		return v, nil
	case *value.DeferredArray:
		prefix, err := v.Prefix(ctx)
		if err != nil {
			return nil, err
		}
		return value.Create(append([]interface{}{}, prefix...), fc.options()), nil
	}

	items, err := value.Collect(ctx, input)
	if err != nil {
		return nil, err
	}
	return value.NewArray(items, fc.options()), nil
}

// asSequence returns input as a sequence when it is an array.
func asSequence(input value.Value) (value.Sequence, bool) {
	if input == nil || input.Type() != value.ArrayType {
		return nil, false
	}
	seq, ok := input.(value.Sequence)
	return seq, ok
}

// result lifts the query a filter built. Operations over eager arrays only
// are executed in memory right away and yield an eager array; anything
// touching a deferred source stays deferred.
func (fc *Context) result(ctx context.Context, filter string, input value.Value, q *sequence.Query, operands ...value.Value) (value.Value, error) {
	opts := fc.options()

	for _, operand := range operands {
		if _, eager := operand.(*value.Array); !eager {
			return value.NewDeferredArray(q, opts), nil
		}
	}

	items, err := q.ToList(ctx)
	if err != nil {
		return fc.fallback(filter, input, err)
	}
	return value.Create(items, opts), nil
}

func predicateArgs(ctx context.Context, args value.Arguments) (string, interface{}, error) {
	member, err := args.At(0).ToText(ctx)
	if err != nil {
		return "", nil, err
	}
	target, err := value.Or(args.At(1), value.True).ToObject(ctx)
	if err != nil {
		return "", nil, err
	}
	return member, target, nil
}

// countArg reads a non-negative count, 0 when missing.
func countArg(ctx context.Context, v value.Value) (int, error) {
	n, err := value.Or(v, value.NumberFromInt(0)).ToNumber(ctx)
	if err != nil {
		return 0, err
	}
	return max(value.Truncate(n), 0), nil
}

func isResolveError(err error) bool {
	var resolveErr *path.ResolveError
	return errors.As(err, &resolveErr)
}

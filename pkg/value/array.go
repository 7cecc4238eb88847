package value

import (
	"context"
	"iter"
	"strings"

	"gopkg.in/inf.v0"

	"liquidcore/pkg/sequence"
)

// Array is a fully materialized sequence.
type Array struct {
	items []Value
	host  interface{}
	opts  *Options
}

// NewArray creates an array of items.
func NewArray(items []Value, opts *Options) *Array {
	return &Array{items: items, opts: opts.normalize()}
}

// arrayOf lifts each element of a host slice. The slice is kept so queries
// over the array see its static element type.
func arrayOf(host interface{}, items []interface{}, opts *Options) *Array {
	values := make([]Value, len(items))
	for i, item := range items {
		values[i] = Create(item, opts)
	}
	return &Array{items: values, host: host, opts: opts}
}

// Items returns the elements. The slice must not be modified.
func (a *Array) Items() []Value { return a.items }

func (a *Array) Type() Type      { return ArrayType }
func (a *Array) ToBoolean() bool { return true }

func (a *Array) ToNumber(context.Context) (*inf.Dec, error) {
	return inf.NewDec(int64(len(a.items)), 0), nil
}

// ToText concatenates the text of the elements.
func (a *Array) ToText(ctx context.Context) (string, error) {
	var b strings.Builder
	for _, item := range a.items {
		text, err := item.ToText(ctx)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// ToObject returns the host slice the array was created from, or the host
// objects of its elements.
func (a *Array) ToObject(ctx context.Context) (interface{}, error) {
	if a.host != nil {
		return a.host, nil
	}
	return a.objects(ctx)
}

func (a *Array) objects(ctx context.Context) ([]interface{}, error) {
	out := make([]interface{}, len(a.items))
	for i, item := range a.items {
		obj, err := item.ToObject(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = obj
	}
	return out, nil
}

// Equals compares element-wise with another eager array.
func (a *Array) Equals(ctx context.Context, other Value) (bool, error) {
	o, ok := other.(*Array)
	if !ok || len(o.items) != len(a.items) {
		return false, nil
	}
	for i := range a.items {
		eq, err := a.items[i].Equals(ctx, o.items[i])
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

func (a *Array) Enumerate(context.Context) iter.Seq2[Value, error] {
	return func(yield func(Value, error) bool) {
		for _, item := range a.items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// GetMember exposes size, first and last.
func (a *Array) GetMember(ctx context.Context, name string) (Value, error) {
	return sequenceMember(ctx, a, name)
}

func (a *Array) GetIndex(ctx context.Context, index Value) (Value, error) {
	return sequenceIndex(ctx, a, index)
}

func (a *Array) Size(context.Context) (int64, error) { return int64(len(a.items)), nil }

// At returns the element at i, or Nil when i is out of range.
func (a *Array) At(_ context.Context, i int) (Value, error) {
	if i < 0 || i >= len(a.items) {
		return Nil, nil
	}
	return a.items[i], nil
}

func (a *Array) Contains(ctx context.Context, v Value) (bool, error) {
	for _, item := range a.items {
		eq, err := item.Equals(ctx, v)
		if err != nil {
			return false, err
		}
		if eq {
			return true, nil
		}
	}
	return false, nil
}

func (a *Array) First(ctx context.Context) (Value, error) { return a.At(ctx, 0) }

func (a *Array) Last(ctx context.Context) (Value, error) { return a.At(ctx, len(a.items)-1) }

// Query returns an in-memory query over the elements' host objects.
// Elements without a host, such as deferred arrays, are materialized.
func (a *Array) Query(ctx context.Context) (*sequence.Query, error) {
	if a.host != nil {
		return sequence.FromSlice(a.host, a.opts.Resolver), nil
	}
	objects, err := a.objects(ctx)
	if err != nil {
		return nil, err
	}
	return sequence.FromSlice(objects, a.opts.Resolver), nil
}

func sequenceMember(ctx context.Context, s Sequence, name string) (Value, error) {
	switch name {
	case "size":
		n, err := s.Size(ctx)
		if err != nil {
			return nil, err
		}
		return NumberFromInt(n), nil
	case "first":
		return s.First(ctx)
	case "last":
		return s.Last(ctx)
	default:
		return Nil, nil
	}
}

func sequenceIndex(ctx context.Context, s Sequence, index Value) (Value, error) {
	if index.Type() != NumberType {
		return Nil, nil
	}
	n, err := index.ToNumber(ctx)
	if err != nil {
		return nil, err
	}
	return s.At(ctx, Truncate(n))
}

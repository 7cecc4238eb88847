// Package value defines the runtime values templates operate on.
//
// A Value is one of Nil, Boolean, Number, String, Array or Object. Arrays
// come in two forms: the eager *Array holding materialized elements and the
// *DeferredArray wrapping a sequence.Query whose elements are pulled from
// the source on demand, capped at Options.MaxItems. Both report ArrayType and
// implement Sequence, so filters treat them alike.
//
// Operations that may reach an external source take a context and return an
// error. Lookup misses never fail: they yield Nil.
package value

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"gopkg.in/inf.v0"

	"liquidcore/pkg/path"
	"liquidcore/pkg/sequence"
)

// DefaultMaxItems is the default materialization cap of deferred arrays.
const DefaultMaxItems = 50

// Type identifies the active variant of a Value.
type Type int

const (
	NilType Type = iota
	BooleanType
	NumberType
	StringType
	ArrayType
	ObjectType
)

func (t Type) String() string {
	switch t {
	case NilType:
		return "nil"
	case BooleanType:
		return "boolean"
	case NumberType:
		return "number"
	case StringType:
		return "string"
	case ArrayType:
		return "array"
	case ObjectType:
		return "object"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Value is a runtime template value.
type Value interface {
	Type() Type

	// ToBoolean applies the truthiness rule: only Nil and false are falsy.
	ToBoolean() bool

	ToNumber(ctx context.Context) (*inf.Dec, error)
	ToText(ctx context.Context) (string, error)

	// ToObject returns the host representation of the value.
	ToObject(ctx context.Context) (interface{}, error)

	Equals(ctx context.Context, other Value) (bool, error)

	// Enumerate yields the elements of arrays. Other values yield nothing.
	Enumerate(ctx context.Context) iter.Seq2[Value, error]

	GetMember(ctx context.Context, name string) (Value, error)
	GetIndex(ctx context.Context, index Value) (Value, error)
}

// Sequence is implemented by array values.
type Sequence interface {
	Value

	Size(ctx context.Context) (int64, error)
	At(ctx context.Context, i int) (Value, error)
	Contains(ctx context.Context, v Value) (bool, error)
	First(ctx context.Context) (Value, error)
	Last(ctx context.Context) (Value, error)

	// Query unwraps the sequence to a query over its source.
	Query(ctx context.Context) (*sequence.Query, error)
}

// Recorder observes queries issued to sources. Operations are prefix,
// count, at, first, last, contains, any and all.
type Recorder interface {
	ObserveQuery(provider, operation string, duration time.Duration, err error)
}

// Options configures how host values are lifted.
type Options struct {
	// MaxItems caps the elements a deferred array materializes.
	MaxItems int

	// Accessor resolves object members when Resolver is nil.
	Accessor path.MemberAccessor

	// Resolver compiles member paths for queries and member lookups.
	Resolver *path.Resolver

	Logger   *slog.Logger
	Recorder Recorder

	normalized bool
}

// normalize returns options with defaults applied, reusing o when it is
// already complete.
func (o *Options) normalize() *Options {
	if o != nil && o.normalized {
		return o
	}

	n := &Options{}
	if o != nil {
		*n = *o
	}
	if n.MaxItems <= 0 {
		n.MaxItems = DefaultMaxItems
	}
	if n.Resolver == nil {
		n.Resolver = path.NewResolver()
		if n.Accessor != nil {
			n.Resolver.Accessor = n.Accessor
		}
	}
	if n.Logger == nil {
		n.Logger = slog.Default()
	}
	n.normalized = true
	return n
}

// Observe reports a source query started at start to the Recorder, if any.
func (o *Options) Observe(provider, operation string, start time.Time, err error) {
	if o == nil || o.Recorder == nil {
		return
	}
	o.Recorder.ObserveQuery(provider, operation, time.Since(start), err)
}

// Normalize returns a copy of o with defaults applied. Lifting many values
// with normalized options avoids repeating the defaulting.
func (o *Options) Normalize() *Options {
	return o.normalize()
}

// Collect drains the enumeration of v.
func Collect(ctx context.Context, v Value) ([]Value, error) {
	var out []Value
	for item, err := range v.Enumerate(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func empty(yield func(Value, error) bool) {}

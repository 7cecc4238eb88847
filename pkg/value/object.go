package value

import (
	"context"
	"fmt"
	"iter"

	"gopkg.in/inf.v0"

	"liquidcore/pkg/ordering"
)

// Object is a host value whose members are resolved through the member
// access capability.
type Object struct {
	host interface{}
	opts *Options
}

// NewObject wraps host.
func NewObject(host interface{}, opts *Options) *Object {
	return &Object{host: host, opts: opts.normalize()}
}

func (o *Object) Type() Type      { return ObjectType }
func (o *Object) ToBoolean() bool { return true }

// ToNumber parses the object's text; unparsable text is zero.
func (o *Object) ToNumber(ctx context.Context) (*inf.Dec, error) {
	text, err := o.ToText(ctx)
	if err != nil {
		return nil, err
	}
	return String(text).ToNumber(ctx)
}

func (o *Object) ToText(context.Context) (string, error) {
	if s, ok := o.host.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return fmt.Sprint(o.host), nil
}

func (o *Object) ToObject(context.Context) (interface{}, error) { return o.host, nil }

func (o *Object) Equals(_ context.Context, other Value) (bool, error) {
	x, ok := other.(*Object)
	return ok && ordering.Equal(o.host, x.host), nil
}

func (o *Object) Enumerate(context.Context) iter.Seq2[Value, error] { return empty }

func (o *Object) GetMember(ctx context.Context, name string) (Value, error) {
	v, found, err := o.opts.Resolver.Member(ctx, o.host, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return Nil, nil
	}
	return Create(v, o.opts), nil
}

// GetIndex looks up the member named by the index's text.
func (o *Object) GetIndex(ctx context.Context, index Value) (Value, error) {
	name, err := index.ToText(ctx)
	if err != nil {
		return nil, err
	}
	return o.GetMember(ctx, name)
}

package value

import (
	"context"
	"iter"
	"math"
	"strings"
	"unicode/utf8"

	"gopkg.in/inf.v0"

	"liquidcore/pkg/ordering"
)

type nilValue struct{}

// Nil is the absent value.
var Nil Value = nilValue{}

func (nilValue) Type() Type      { return NilType }
func (nilValue) ToBoolean() bool { return false }

func (nilValue) ToNumber(context.Context) (*inf.Dec, error) { return new(inf.Dec), nil }
func (nilValue) ToText(context.Context) (string, error)     { return "", nil }
func (nilValue) ToObject(context.Context) (interface{}, error) {
	return nil, nil
}

func (nilValue) Equals(_ context.Context, other Value) (bool, error) {
	return other.Type() == NilType, nil
}

func (nilValue) Enumerate(context.Context) iter.Seq2[Value, error] { return empty }
func (nilValue) GetMember(context.Context, string) (Value, error)  { return Nil, nil }
func (nilValue) GetIndex(context.Context, Value) (Value, error)    { return Nil, nil }

// Boolean is a boolean value.
type Boolean bool

const (
	True  Boolean = true
	False Boolean = false
)

func (b Boolean) Type() Type      { return BooleanType }
func (b Boolean) ToBoolean() bool { return bool(b) }

func (b Boolean) ToNumber(context.Context) (*inf.Dec, error) {
	if b {
		return inf.NewDec(1, 0), nil
	}
	return new(inf.Dec), nil
}

func (b Boolean) ToText(context.Context) (string, error) {
	if b {
		return "true", nil
	}
	return "false", nil
}

func (b Boolean) ToObject(context.Context) (interface{}, error) { return bool(b), nil }

func (b Boolean) Equals(_ context.Context, other Value) (bool, error) {
	o, ok := other.(Boolean)
	return ok && o == b, nil
}

func (b Boolean) Enumerate(context.Context) iter.Seq2[Value, error] { return empty }
func (b Boolean) GetMember(context.Context, string) (Value, error)  { return Nil, nil }
func (b Boolean) GetIndex(context.Context, Value) (Value, error)    { return Nil, nil }

// Number is an arbitrary-precision decimal.
type Number struct {
	d *inf.Dec
}

// NewNumber wraps d. A nil d is zero.
func NewNumber(d *inf.Dec) Number {
	if d == nil {
		d = new(inf.Dec)
	}
	return Number{d: d}
}

// NumberFromInt creates an integral number.
func NumberFromInt(n int64) Number {
	return Number{d: inf.NewDec(n, 0)}
}

// Dec returns a copy of the decimal.
func (n Number) Dec() *inf.Dec {
	return new(inf.Dec).Set(n.dec())
}

func (n Number) dec() *inf.Dec {
	if n.d == nil {
		return new(inf.Dec)
	}
	return n.d
}

// Int truncates toward zero, saturating at the int range.
func (n Number) Int() int {
	return Truncate(n.dec())
}

func (n Number) Type() Type      { return NumberType }
func (n Number) ToBoolean() bool { return true }

func (n Number) ToNumber(context.Context) (*inf.Dec, error) { return n.Dec(), nil }

func (n Number) ToText(context.Context) (string, error) {
	return ordering.Canonical(n.dec()), nil
}

func (n Number) ToObject(context.Context) (interface{}, error) { return n.Dec(), nil }

func (n Number) Equals(_ context.Context, other Value) (bool, error) {
	o, ok := other.(Number)
	return ok && n.dec().Cmp(o.dec()) == 0, nil
}

func (n Number) Enumerate(context.Context) iter.Seq2[Value, error] { return empty }
func (n Number) GetMember(context.Context, string) (Value, error)  { return Nil, nil }
func (n Number) GetIndex(context.Context, Value) (Value, error)    { return Nil, nil }

// Truncate converts d to an int, rounding toward zero and saturating at the
// int range.
func Truncate(d *inf.Dec) int {
	r := new(inf.Dec).Round(d, 0, inf.RoundDown)
	u := r.UnscaledBig()
	switch {
	case !u.IsInt64():
		if u.Sign() < 0 {
			return math.MinInt
		}
		return math.MaxInt
	case u.Int64() > math.MaxInt:
		return math.MaxInt
	case u.Int64() < math.MinInt:
		return math.MinInt
	default:
		return int(u.Int64())
	}
}

// String is a text value.
type String string

func (s String) Type() Type      { return StringType }
func (s String) ToBoolean() bool { return true }

// ToNumber parses the text as a decimal; unparsable text is zero.
func (s String) ToNumber(context.Context) (*inf.Dec, error) {
	if d, ok := new(inf.Dec).SetString(strings.TrimSpace(string(s))); ok {
		return d, nil
	}
	return new(inf.Dec), nil
}

func (s String) ToText(context.Context) (string, error)        { return string(s), nil }
func (s String) ToObject(context.Context) (interface{}, error) { return string(s), nil }

func (s String) Equals(_ context.Context, other Value) (bool, error) {
	o, ok := other.(String)
	return ok && o == s, nil
}

func (s String) Enumerate(context.Context) iter.Seq2[Value, error] { return empty }

// GetMember exposes size, the number of characters.
func (s String) GetMember(_ context.Context, name string) (Value, error) {
	if name == "size" {
		return NumberFromInt(int64(utf8.RuneCountInString(string(s)))), nil
	}
	return Nil, nil
}

func (s String) GetIndex(context.Context, Value) (Value, error) { return Nil, nil }

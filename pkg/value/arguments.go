package value

// Arguments is the positional argument list of a filter invocation.
type Arguments []Value

// NewArguments creates an argument list.
func NewArguments(values ...Value) Arguments {
	return Arguments(values)
}

// At returns the argument at i, or Nil when i is out of range.
func (a Arguments) At(i int) Value {
	if i < 0 || i >= len(a) {
		return Nil
	}
	if a[i] == nil {
		return Nil
	}
	return a[i]
}

// Len returns the number of arguments.
func (a Arguments) Len() int { return len(a) }

// Or returns v, or fallback when v is Nil.
func Or(v, fallback Value) Value {
	if v == nil || v.Type() == NilType {
		return fallback
	}
	return v
}

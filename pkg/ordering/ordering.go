// Package ordering defines equality and ordering of host values as seen by
// templates.
//
// Host values are arbitrary Go values handed to the template engine. Numbers
// of any Go numeric kind (and *inf.Dec) compare by value, so the integer 30
// equals the decimal 30.0. Strings never equal numbers. Values of different
// kinds order by a fixed rank: nil < bool < number < string < time < other.
package ordering

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/inf.v0"
)

type rank int

const (
	rankNil rank = iota
	rankBool
	rankNumber
	rankString
	rankTime
	rankOther
)

// Decimal converts a numeric host value to an arbitrary-precision decimal.
// Returns false for non-numeric values, NaN and infinities.
func Decimal(v interface{}) (*inf.Dec, bool) {
	switch n := v.(type) {
	case *inf.Dec:
		if n == nil {
			return nil, false
		}
		return n, true
	case inf.Dec:
		return &n, true
	}

	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return nil, false
	}

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return inf.NewDec(rv.Int(), 0), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u <= math.MaxInt64 {
			return inf.NewDec(int64(u), 0), true
		}
		return inf.NewDecBig(new(big.Int).SetUint64(u), 0), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		bits := 64
		if rv.Kind() == reflect.Float32 {
			bits = 32
		}
		d, ok := new(inf.Dec).SetString(strconv.FormatFloat(f, 'f', -1, bits))
		return d, ok
	default:
		return nil, false
	}
}

// IsCollectionType reports whether t is a sequence type other than text.
// Byte slices are treated as text.
func IsCollectionType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t.Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

// Items returns the elements of a non-text sequence value.
func Items(v interface{}) ([]interface{}, bool) {
	if list, ok := v.([]interface{}); ok {
		return list, true
	}

	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() || !IsCollectionType(rv.Type()) {
		return nil, false
	}

	items := make([]interface{}, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// Equal reports whether two host values are equal.
func Equal(a, b interface{}) bool {
	ra, rb := rankOf(a), rankOf(b)
	if ra != rb {
		return false
	}

	switch ra {
	case rankNil:
		return true
	case rankBool:
		return boolOf(a) == boolOf(b)
	case rankNumber:
		da, _ := Decimal(a)
		db, _ := Decimal(b)
		return da.Cmp(db) == 0
	case rankString:
		return stringOf(a) == stringOf(b)
	case rankTime:
		return timeOf(a).Equal(timeOf(b))
	}

	if itemsA, ok := Items(a); ok {
		itemsB, ok := Items(b)
		if !ok || len(itemsA) != len(itemsB) {
			return false
		}
		for i := range itemsA {
			if !Equal(itemsA[i], itemsB[i]) {
				return false
			}
		}
		return true
	}

	// A comparable type can still hold an uncomparable dynamic value, such
	// as a struct with an interface field set to a slice.
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() == vb.Type() && va.Comparable() && vb.Comparable() {
		return va.Equal(vb)
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two host values, returning -1, 0 or +1.
func Compare(a, b interface{}) int {
	return compare(a, b, false)
}

// CompareNatural orders like Compare but compares strings case-insensitively.
// Strings that are equal ignoring case fall back to a case-sensitive
// comparison so the order stays total.
func CompareNatural(a, b interface{}) int {
	return compare(a, b, true)
}

func compare(a, b interface{}, natural bool) int {
	ra, rb := rankOf(a), rankOf(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case rankNil:
		return 0
	case rankBool:
		x, y := boolOf(a), boolOf(b)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case rankNumber:
		da, _ := Decimal(a)
		db, _ := Decimal(b)
		return da.Cmp(db)
	case rankString:
		x, y := stringOf(a), stringOf(b)
		if natural {
			if c := strings.Compare(strings.ToLower(x), strings.ToLower(y)); c != 0 {
				return c
			}
		}
		return strings.Compare(x, y)
	case rankTime:
		return timeOf(a).Compare(timeOf(b))
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

// HashKey returns a comparable key such that Equal(a, b) implies
// HashKey(a) == HashKey(b). The second result is false for values that have
// no cheap key (collections, maps, structs); callers fall back to Equal.
func HashKey(v interface{}) (interface{}, bool) {
	switch rankOf(v) {
	case rankNil:
		return "n:", true
	case rankBool:
		return "b:" + strconv.FormatBool(boolOf(v)), true
	case rankNumber:
		d, _ := Decimal(v)
		return "d:" + Canonical(d), true
	case rankString:
		return "s:" + stringOf(v), true
	case rankTime:
		return "t:" + timeOf(v).UTC().Format(time.RFC3339Nano), true
	default:
		return nil, false
	}
}

// Canonical renders a decimal in its shortest form: integral values have no
// fractional part and trailing fractional zeros are removed.
func Canonical(d *inf.Dec) string {
	s := d.String()
	if strings.ContainsRune(s, '.') {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

func rankOf(v interface{}) rank {
	if v == nil {
		return rankNil
	}
	switch n := v.(type) {
	case *inf.Dec:
		if n == nil {
			return rankNil
		}
		return rankNumber
	case inf.Dec:
		return rankNumber
	case time.Time:
		return rankTime
	case []byte:
		return rankString
	}

	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return rankNil
	}
	if _, ok := rv.Interface().(time.Time); ok {
		return rankTime
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rankBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rankNumber
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return rankOther
		}
		return rankNumber
	case reflect.String:
		return rankString
	default:
		return rankOther
	}
}

func boolOf(v interface{}) bool {
	return indirect(reflect.ValueOf(v)).Bool()
}

func stringOf(v interface{}) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return indirect(reflect.ValueOf(v)).String()
}

func timeOf(v interface{}) time.Time {
	t, _ := indirect(reflect.ValueOf(v)).Interface().(time.Time)
	return t
}

// indirect dereferences pointers and interfaces; nil pointers yield the
// zero reflect.Value.
func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

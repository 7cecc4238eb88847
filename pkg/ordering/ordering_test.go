package ordering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/inf.v0"
)

type labelled struct {
	Name string
	Tags interface{}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b interface{}
		want bool
	}{
		{name: "nil and nil", a: nil, b: nil, want: true},
		{name: "int and float", a: 30, b: 30.0, want: true},
		{name: "int and decimal", a: int64(30), b: inf.NewDec(300, 1), want: true},
		{name: "uint and int", a: uint8(7), b: 7, want: true},
		{name: "different numbers", a: 1, b: 2, want: false},
		{name: "string and number", a: "30", b: 30, want: false},
		{name: "strings", a: "a", b: "a", want: true},
		{name: "bytes and string", a: []byte("a"), b: "a", want: true},
		{name: "bools", a: true, b: true, want: true},
		{name: "bool and nil", a: false, b: nil, want: false},
		{name: "slices", a: []int{1, 2}, b: []interface{}{1, 2.0}, want: true},
		{name: "slices of different length", a: []int{1}, b: []int{1, 2}, want: false},
		{name: "maps", a: map[string]interface{}{"a": 1}, b: map[string]interface{}{"a": 1}, want: true},
		{name: "nil decimal", a: (*inf.Dec)(nil), b: nil, want: true},
		{name: "structs holding slices", a: labelled{Tags: []string{"x"}}, b: labelled{Tags: []string{"x"}}, want: true},
		{name: "structs holding different slices", a: labelled{Tags: []string{"x"}}, b: labelled{Tags: []string{"y"}}, want: false},
		{name: "comparable structs", a: labelled{Name: "a"}, b: labelled{Name: "a"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestCompare(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		a, b interface{}
		want int
	}{
		{name: "numbers", a: 2, b: 10, want: -1},
		{name: "decimal and float", a: inf.NewDec(15, 1), b: 1.4, want: 1},
		{name: "strings are case sensitive", a: "B", b: "a", want: -1},
		{name: "nil sorts first", a: nil, b: 0, want: -1},
		{name: "numbers before strings", a: "1", b: 2, want: 1},
		{name: "false before true", a: false, b: true, want: -1},
		{name: "times", a: now, b: now.Add(time.Second), want: -1},
		{name: "equal", a: 3, b: 3.0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

func TestCompareNatural(t *testing.T) {
	assert.Equal(t, 1, CompareNatural("B", "a"))
	assert.Equal(t, -1, CompareNatural("apple", "Banana"))
	assert.Equal(t, -1, CompareNatural("A", "a"), "ties fall back to case-sensitive order")
	assert.Equal(t, 0, CompareNatural("a", "a"))
}

func TestHashKey(t *testing.T) {
	k1, ok := HashKey(30)
	require.True(t, ok)
	k2, ok := HashKey(inf.NewDec(3000, 2))
	require.True(t, ok)
	assert.Equal(t, k1, k2)

	_, ok = HashKey(map[string]interface{}{})
	assert.False(t, ok)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "30", Canonical(inf.NewDec(3000, 2)))
	assert.Equal(t, "1.5", Canonical(inf.NewDec(150, 2)))
	assert.Equal(t, "300", Canonical(inf.NewDec(3, -2)))
	assert.Equal(t, "0", Canonical(inf.NewDec(0, 3)))
}

func TestItems(t *testing.T) {
	items, ok := Items([]string{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"a", "b"}, items)

	_, ok = Items("text")
	assert.False(t, ok)

	_, ok = Items([]byte("text"))
	assert.False(t, ok)
}

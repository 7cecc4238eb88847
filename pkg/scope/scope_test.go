package scope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidcore/pkg/value"
)

func TestScope_Lookup(t *testing.T) {
	root := New()
	root.Set("a", value.String("root-a"))
	root.Set("b", value.String("root-b"))

	tests := []struct {
		name       string
		keepParent bool
		lookup     string
		want       value.Value
	}{
		{name: "local binding shadows parent", keepParent: true, lookup: "a", want: value.String("child-a")},
		{name: "miss falls through to parent", keepParent: true, lookup: "b", want: value.String("root-b")},
		{name: "unknown name is nil", keepParent: true, lookup: "c", want: value.Nil},
		{name: "isolated child shadows", keepParent: false, lookup: "a", want: value.String("child-a")},
		{name: "isolated child does not see parent", keepParent: false, lookup: "b", want: value.Nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			child := root.EnterChild(tt.keepParent)
			child.Set("a", value.String("child-a"))
			assert.Equal(t, tt.want, child.Get(tt.lookup))
		})
	}
}

func TestScope_IsolationBoundaryStopsChain(t *testing.T) {
	root := New()
	root.Set("x", value.True)

	boundary := root.EnterChild(false)
	leaf := boundary.EnterChild(true)

	assert.Equal(t, value.Nil, leaf.Get("x"))

	boundary.Set("x", value.False)
	assert.Equal(t, value.False, leaf.Get("x"))
}

func TestScope_SetDeleteLeave(t *testing.T) {
	root := New()
	child := root.EnterChild(true)

	root.Set("n", value.NumberFromInt(1))
	child.Set("n", value.NumberFromInt(2))
	child.Set("n", value.NumberFromInt(3))
	assert.Equal(t, value.NumberFromInt(3), child.Get("n"), "last write wins")

	child.Delete("n")
	assert.Equal(t, value.NumberFromInt(1), child.Get("n"), "delete only affects the local scope")

	child.Set("none", nil)
	assert.Equal(t, value.Nil, child.Get("none"))

	assert.Same(t, root, child.Leave())
	assert.Nil(t, root.Leave())
}

func TestScope_Properties(t *testing.T) {
	s := New()
	s.Set("b", value.True)
	s.Set("a", value.True)
	s.EnterChild(true).Set("c", value.True)

	assert.Equal(t, []string{"a", "b"}, s.Properties())
}

func TestScope_Visible(t *testing.T) {
	root := New()
	root.Set("data", value.True)
	root.Set("people", value.String("shadowed"))

	sources := root.EnterChild(true)
	sources.Set("people", value.String("source"))
	sources.Set("orders", value.String("source"))

	assert.Equal(t, []string{"data", "orders", "people"}, sources.Visible())
	assert.Equal(t, []string{"orders", "people"}, sources.Properties())

	isolated := sources.EnterChild(false)
	isolated.Set("row", value.True)
	assert.Equal(t, []string{"row"}, isolated.Visible())
}

func TestScope_GetIndex(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Set("30", value.String("by number"))

	v, err := s.GetIndex(ctx, value.NumberFromInt(30))
	require.NoError(t, err)
	assert.Equal(t, value.String("by number"), v)

	v, err = s.GetIndex(ctx, value.Nil)
	require.NoError(t, err)
	assert.Equal(t, value.Nil, v)
}

func TestScope_EmptyNamePanics(t *testing.T) {
	s := New()
	assert.Panics(t, func() { s.Get("") })
	assert.Panics(t, func() { s.Set("", value.True) })
}

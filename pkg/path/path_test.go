package path

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type role struct {
	Name string
}

type user struct {
	Name    string
	Age     int
	Tags    []string
	Roles   []role
	Manager *user
	Extra   interface{}
	Label   string `liquid:"_label"`
	Type    string `liquid:"_type"`
	Hidden  string `liquid:"-"`
}

func (u user) Initials() string {
	if u.Name == "" {
		return ""
	}
	return u.Name[:1]
}

func (u user) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "loaded:" + u.Name, nil
}

var userType = reflect.TypeOf(user{})

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"user", "roles"}, Split("user.roles"))
	assert.Equal(t, []string{"a", "b"}, Split(" a..b. "))
	assert.Nil(t, Split(""))
}

func TestSelector(t *testing.T) {
	ctx := context.Background()
	boss := &user{Name: "Ann"}
	u := user{Name: "Bob", Age: 30, Manager: boss, Label: "aliased", Type: "admin"}

	tests := []struct {
		name string
		path string
		want interface{}
	}{
		{name: "field", path: "name", want: "Bob"},
		{name: "case insensitive", path: "AGE", want: 30},
		{name: "nested pointer", path: "manager.name", want: "Ann"},
		{name: "nil pointer", path: "manager.manager.name", want: nil},
		{name: "alias tag wins", path: "type", want: "admin"},
		{name: "alias by tag only", path: "label", want: "aliased"},
		{name: "method", path: "initials", want: "B"},
		{name: "method with context", path: "load", want: "loaded:Bob"},
		{name: "identity", path: "", want: u},
	}

	r := NewResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := r.Selector(userType, tt.path)
			require.NoError(t, err)

			got, err := sel.Select(ctx, u)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelector_UnknownMember(t *testing.T) {
	r := NewResolver()

	_, err := r.Selector(userType, "manager.salary")
	require.Error(t, err)

	var resolveErr *ResolveError
	require.True(t, errors.As(err, &resolveErr))
	assert.Equal(t, "salary", resolveErr.Segment)
	assert.Equal(t, "manager.salary", resolveErr.Path)

	_, err = r.Selector(userType, "hidden")
	assert.Error(t, err, "fields tagged '-' are not exposed")
}

func TestSelector_Maps(t *testing.T) {
	ctx := context.Background()
	r := NewResolver()
	row := map[string]interface{}{
		"name":  "plain",
		"_type": "aliased",
		"type":  "shadowed",
		"nested": map[string]interface{}{
			"value": 42,
		},
	}

	tests := []struct {
		path string
		want interface{}
	}{
		{path: "name", want: "plain"},
		{path: "type", want: "aliased"},
		{path: "nested.value", want: 42},
		{path: "missing.value", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			sel, err := r.Selector(reflect.TypeOf(row), tt.path)
			require.NoError(t, err)
			assert.Nil(t, sel.Type())

			got, err := sel.Select(ctx, row)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelector_CustomAliasPrefix(t *testing.T) {
	r := &Resolver{AliasPrefix: "$"}
	row := map[string]interface{}{"type": "raw", "$type": "aliased"}

	sel, err := r.Selector(reflect.TypeOf(row), "type")
	require.NoError(t, err)

	got, err := sel.Select(context.Background(), row)
	require.NoError(t, err)
	assert.Equal(t, "aliased", got)
}

func TestSelector_AliasesDisabled(t *testing.T) {
	r := &Resolver{DisableAliases: true}
	assert.Equal(t, []string{"type"}, r.Candidates("type"))

	row := map[string]interface{}{"type": "raw", "_type": "aliased"}
	sel, err := r.Selector(reflect.TypeOf(row), "type")
	require.NoError(t, err)

	got, err := sel.Select(context.Background(), row)
	require.NoError(t, err)
	assert.Equal(t, "raw", got)
}

func TestSelector_MethodError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sel, err := NewResolver().Selector(userType, "load")
	require.NoError(t, err)

	_, err = sel.Select(ctx, user{Name: "Bob"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelector_Type(t *testing.T) {
	r := NewResolver()

	sel, err := r.Selector(userType, "roles")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf([]role{}), sel.Type())

	sel, err = r.Selector(userType, "")
	require.NoError(t, err)
	assert.True(t, sel.IsIdentity())
	assert.Equal(t, userType, sel.Type())

	sel, err = r.Selector(userType, "extra")
	require.NoError(t, err)
	assert.Nil(t, sel.Type())
}

func TestPredicate(t *testing.T) {
	ctx := context.Background()
	alice := user{Name: "Alice", Age: 30, Tags: []string{"x", "y"}, Roles: []role{{Name: "admin"}}}
	bob := user{Name: "Bob", Age: 20, Tags: []string{"y"}, Roles: []role{{Name: "dev"}, {Name: "ops"}}}

	tests := []struct {
		name   string
		path   string
		target interface{}
		op     Op
		want   []bool
	}{
		{name: "equality", path: "age", target: 30, op: OpEqual, want: []bool{true, false}},
		{name: "equality does not coerce text", path: "age", target: "30", op: OpEqual, want: []bool{false, false}},
		{name: "existential over nested list", path: "tags", target: "x", op: OpAny, want: []bool{true, false}},
		{name: "existential with remaining path", path: "roles.name", target: "ops", op: OpAny, want: []bool{false, true}},
		{name: "membership", path: "name", target: []string{"Bob", "Carol"}, op: OpIn, want: []bool{false, true}},
		{name: "existential membership", path: "roles.name", target: []interface{}{"admin", "ops"}, op: OpAny, want: []bool{true, true}},
	}

	r := NewResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := r.Predicate(userType, tt.path, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.op, pred.Op())

			for i, u := range []user{alice, bob} {
				got, err := pred.Match(ctx, u)
				require.NoError(t, err)
				assert.Equal(t, tt.want[i], got, u.Name)
			}
		})
	}
}

func TestPredicate_MembershipCap(t *testing.T) {
	target := make([]int, 60)
	for i := range target {
		target[i] = i
	}

	pred, err := NewResolver().Predicate(userType, "age", target)
	require.NoError(t, err)
	require.Equal(t, OpIn, pred.Op())
	assert.Len(t, pred.Set(), DefaultMaxPredicateItems)

	ok, err := pred.Match(context.Background(), user{Age: 49})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = pred.Match(context.Background(), user{Age: 55})
	require.NoError(t, err)
	assert.False(t, ok, "items beyond the cap are not part of the predicate")

	small := &Resolver{MaxPredicateItems: 2}
	pred, err = small.Predicate(userType, "age", target)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{0, 1}, pred.Set())
}

func TestPredicate_DynamicElements(t *testing.T) {
	ctx := context.Background()
	rows := []interface{}{
		map[string]interface{}{"name": "a", "tags": []interface{}{"x", "y"}},
		map[string]interface{}{"name": "b", "tags": []interface{}{"y"}},
		map[string]interface{}{"name": "c", "tags": "x"},
		map[string]interface{}{"name": "d", "roles": []interface{}{
			map[string]interface{}{"name": "admin"},
		}},
	}

	tests := []struct {
		path   string
		target interface{}
		want   []bool
	}{
		{path: "tags", target: "x", want: []bool{true, false, true, false}},
		{path: "name", target: []interface{}{"a", "d"}, want: []bool{true, false, false, true}},
		{path: "roles.name", target: "admin", want: []bool{false, false, false, true}},
		{path: "missing", target: true, want: []bool{false, false, false, false}},
	}

	r := NewResolver()
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			pred, err := r.Predicate(reflect.TypeOf((*interface{})(nil)).Elem(), tt.path, tt.target)
			require.NoError(t, err)
			assert.True(t, pred.Deferred())

			for i, row := range rows {
				got, err := pred.Match(ctx, row)
				require.NoError(t, err)
				assert.Equal(t, tt.want[i], got, "row %d", i)
			}
		})
	}
}

func TestPredicate_UnknownMember(t *testing.T) {
	_, err := NewResolver().Predicate(userType, "roles.level", 1)

	var resolveErr *ResolveError
	require.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, "level", resolveErr.Segment)
}

func TestPredicate_String(t *testing.T) {
	r := NewResolver()

	pred, err := r.Predicate(userType, "roles.name", "admin")
	require.NoError(t, err)
	assert.Equal(t, "roles.name any(name==admin)", pred.String())

	pred, err = r.Predicate(userType, "age", []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "age in [1 2]", pred.String())
}

func TestReflectAccessor_Cache(t *testing.T) {
	a := NewReflectAccessor()

	first, ok := a.Resolve(userType, "name")
	require.True(t, ok)
	second, ok := a.Resolve(userType, "name")
	require.True(t, ok)
	assert.Same(t, first, second)

	_, ok = a.Resolve(userType, "nope")
	assert.False(t, ok)
	_, ok = a.Resolve(userType, "nope")
	assert.False(t, ok)
}

func TestResolver_Member(t *testing.T) {
	ctx := context.Background()
	r := NewResolver()

	v, ok, err := r.Member(ctx, user{Name: "Bob"}, "name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Bob", v)

	_, ok, err = r.Member(ctx, map[string]int{"a": 1}, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = r.Member(ctx, nil, "name")
	require.NoError(t, err)
	assert.False(t, ok)
}

package path

import (
	"context"
	"reflect"
	"strings"
	"sync"
)

// DefaultTagName is the struct tag consulted by ReflectAccessor.
const DefaultTagName = "liquid"

// Accessor reads one member of a host value.
type Accessor interface {
	// Name is the member name as declared on the host type.
	Name() string

	// Type is the static type of the member, or nil when it is only known
	// at evaluation time.
	Type() reflect.Type

	// Get reads the member from obj. The boolean is false when obj does not
	// carry the member (missing map key, nil embedded pointer). Accessors
	// backed by methods taking a context may block.
	Get(ctx context.Context, obj interface{}) (interface{}, bool, error)
}

// MemberAccessor maps a member name on a host type to an accessor.
type MemberAccessor interface {
	Resolve(t reflect.Type, name string) (Accessor, bool)
}

// ReflectAccessor resolves members through reflection.
//
// Struct fields match by struct tag first and by case-insensitive field name
// second. Exported methods without arguments (or with a single
// context.Context argument) returning a value and optionally an error are
// exposed under their case-insensitive name. Maps with string keys expose
// every key.
type ReflectAccessor struct {
	// TagName overrides DefaultTagName.
	TagName string

	cache sync.Map // accessorKey -> Accessor (nil when unresolved)
}

type accessorKey struct {
	t    reflect.Type
	name string
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// NewReflectAccessor creates a ReflectAccessor using DefaultTagName.
func NewReflectAccessor() *ReflectAccessor {
	return &ReflectAccessor{TagName: DefaultTagName}
}

// Resolve implements MemberAccessor.
func (a *ReflectAccessor) Resolve(t reflect.Type, name string) (Accessor, bool) {
	if t == nil || name == "" {
		return nil, false
	}

	key := accessorKey{t: t, name: name}
	if cached, ok := a.cache.Load(key); ok {
		acc, _ := cached.(Accessor)
		return acc, acc != nil
	}

	acc := a.resolve(t, name)
	if acc == nil {
		a.cache.Store(key, nil)
		return nil, false
	}
	a.cache.Store(key, acc)
	return acc, true
}

func (a *ReflectAccessor) resolve(t reflect.Type, name string) Accessor {
	base := t
	for base.Kind() == reflect.Ptr {
		base = base.Elem()
	}

	switch base.Kind() {
	case reflect.Struct:
		if f, ok := a.field(base, name); ok {
			return &fieldAccessor{structType: base, field: f}
		}
	case reflect.Map:
		if base.Key().Kind() == reflect.String {
			return &mapAccessor{name: name, mapType: base}
		}
	}

	if m, ok := method(t, name); ok {
		return m
	}
	return nil
}

func (a *ReflectAccessor) field(t reflect.Type, name string) (reflect.StructField, bool) {
	tag := a.TagName
	if tag == "" {
		tag = DefaultTagName
	}

	fields := reflect.VisibleFields(t)
	for _, f := range fields {
		if !f.IsExported() {
			continue
		}
		if v, ok := f.Tag.Lookup(tag); ok {
			if tagName, _, _ := strings.Cut(v, ","); tagName == name {
				return f, true
			}
		}
	}

	for _, f := range fields {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if v, ok := f.Tag.Lookup(tag); ok && v == "-" {
			continue
		}
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func method(t reflect.Type, name string) (*methodAccessor, bool) {
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !strings.EqualFold(m.Name, name) {
			continue
		}

		// Method types from reflect.Type include the receiver for concrete
		// types but not for interface types.
		mt := m.Type
		offset := 1
		if t.Kind() == reflect.Interface {
			offset = 0
		}

		withContext := false
		switch mt.NumIn() - offset {
		case 0:
		case 1:
			if mt.In(offset) != contextType {
				continue
			}
			withContext = true
		default:
			continue
		}

		switch {
		case mt.NumOut() == 1 && mt.Out(0) != errorType:
		case mt.NumOut() == 2 && mt.Out(1) == errorType:
		default:
			continue
		}

		return &methodAccessor{
			name:        m.Name,
			result:      mt.Out(0),
			withContext: withContext,
		}, true
	}
	return nil, false
}

type fieldAccessor struct {
	structType reflect.Type
	field      reflect.StructField
}

func (f *fieldAccessor) Name() string { return f.field.Name }

func (f *fieldAccessor) Type() reflect.Type { return staticType(f.field.Type) }

func (f *fieldAccessor) Get(_ context.Context, obj interface{}) (interface{}, bool, error) {
	rv := indirect(reflect.ValueOf(obj))
	if !rv.IsValid() || rv.Type() != f.structType {
		return nil, false, nil
	}
	v, err := rv.FieldByIndexErr(f.field.Index)
	if err != nil {
		// nil embedded pointer
		return nil, false, nil
	}
	return v.Interface(), true, nil
}

type mapAccessor struct {
	name    string
	mapType reflect.Type
}

func (m *mapAccessor) Name() string { return m.name }

func (m *mapAccessor) Type() reflect.Type { return staticType(m.mapType.Elem()) }

func (m *mapAccessor) Get(_ context.Context, obj interface{}) (interface{}, bool, error) {
	rv := indirect(reflect.ValueOf(obj))
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.IsNil() {
		return nil, false, nil
	}
	v := rv.MapIndex(reflect.ValueOf(m.name).Convert(rv.Type().Key()))
	if !v.IsValid() {
		return nil, false, nil
	}
	return v.Interface(), true, nil
}

type methodAccessor struct {
	name        string
	result      reflect.Type
	withContext bool
}

func (m *methodAccessor) Name() string { return m.name }

func (m *methodAccessor) Type() reflect.Type { return staticType(m.result) }

func (m *methodAccessor) Get(ctx context.Context, obj interface{}) (interface{}, bool, error) {
	rv := reflect.ValueOf(obj)
	if !rv.IsValid() {
		return nil, false, nil
	}
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil, false, nil
	}

	fn := rv.MethodByName(m.name)
	if !fn.IsValid() {
		return nil, false, nil
	}

	var args []reflect.Value
	if m.withContext {
		args = []reflect.Value{reflect.ValueOf(ctx)}
	}
	out := fn.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, false, out[1].Interface().(error)
	}
	return out[0].Interface(), true, nil
}

// staticType returns t unless values of t only reveal their type at
// evaluation time.
func staticType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Interface {
		return nil
	}
	return t
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

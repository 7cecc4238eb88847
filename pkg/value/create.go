package value

import (
	"reflect"

	"gopkg.in/inf.v0"

	"liquidcore/pkg/ordering"
	"liquidcore/pkg/sequence"
)

type unstructured interface {
	UnstructuredContent() map[string]interface{}
}

// Create lifts a host value.
//
// Queries and Queryable hosts become deferred arrays; slices and arrays
// become eager arrays; numbers of any Go kind become decimals; maps,
// structs and other values become objects. Objects exposing
// UnstructuredContent (Kubernetes unstructured resources) are lifted
// through their content map. Values are returned as is.
func Create(host interface{}, opts *Options) Value {
	opts = opts.normalize()

	switch v := host.(type) {
	case nil:
		return Nil
	case Value:
		return v
	case bool:
		return Boolean(v)
	case string:
		return String(v)
	case []byte:
		return String(v)
	case *inf.Dec:
		if v == nil {
			return Nil
		}
		return NewNumber(v)
	case *sequence.Query:
		if v == nil {
			return Nil
		}
		return NewDeferredArray(v, opts)
	case sequence.Queryable:
		return NewDeferredArray(v.AsQuery(), opts)
	case unstructured:
		return Create(v.UnstructuredContent(), opts)
	}

	if d, ok := ordering.Decimal(host); ok {
		return NewNumber(d)
	}

	rv := reflect.ValueOf(host)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return Nil
		}
		if elem := rv.Elem(); elem.Kind() != reflect.Struct {
			return Create(elem.Interface(), opts)
		}
	case reflect.Bool:
		return Boolean(rv.Bool())
	case reflect.String:
		return String(rv.String())
	case reflect.Slice, reflect.Array:
		if items, ok := ordering.Items(host); ok {
			return arrayOf(host, items, opts)
		}
	case reflect.Map:
		if rv.IsNil() {
			return Nil
		}
	}
	return NewObject(host, opts)
}

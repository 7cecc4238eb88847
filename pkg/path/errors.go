package path

import (
	"fmt"
	"reflect"
)

// ResolveError reports a path segment that names no member of a statically
// typed element.
type ResolveError struct {
	// Path is the full dotted path being resolved
	Path string

	// Segment is the segment that failed to resolve
	Segment string

	// Type is the type the segment was resolved against
	Type reflect.Type
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	return fmt.Sprintf("cannot resolve '%s' in path '%s' on type %s", e.Segment, e.Path, e.Type)
}

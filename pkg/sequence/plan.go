package sequence

import (
	"fmt"
	"strings"

	"liquidcore/pkg/path"
)

// OpKind identifies a lazy operation in a plan.
type OpKind int

const (
	OpProject OpKind = iota
	OpFilter
	OpOrderBy
	OpThenBy
	OpDistinct
	OpSkip
	OpTake
	OpReverse
	OpConcat
	OpUnion
	OpIntersect
	OpExcept
)

var opNames = map[OpKind]string{
	OpProject:   "project",
	OpFilter:    "filter",
	OpOrderBy:   "orderBy",
	OpThenBy:    "thenBy",
	OpDistinct:  "distinct",
	OpSkip:      "skip",
	OpTake:      "take",
	OpReverse:   "reverse",
	OpConcat:    "concat",
	OpUnion:     "union",
	OpIntersect: "intersect",
	OpExcept:    "except",
}

func (k OpKind) String() string {
	if name, ok := opNames[k]; ok {
		return name
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// IsSetOp reports whether the operation combines two queries.
func (k OpKind) IsSetOp() bool {
	switch k {
	case OpConcat, OpUnion, OpIntersect, OpExcept:
		return true
	default:
		return false
	}
}

// SortKey is one ordering key.
type SortKey struct {
	Selector   *path.Selector
	Descending bool
	// Natural compares text case-insensitively.
	Natural bool
}

// Op is one lazy operation. Which fields are set depends on Kind.
type Op struct {
	Kind      OpKind
	Selector  *path.Selector
	Predicate *path.Predicate
	Key       SortKey
	Count     int
	Other     *Query
}

func (o Op) String() string {
	switch o.Kind {
	case OpProject:
		return fmt.Sprintf("project(%s)", o.Selector)
	case OpFilter:
		return fmt.Sprintf("filter(%s)", o.Predicate)
	case OpOrderBy, OpThenBy:
		var mods []string
		if o.Key.Descending {
			mods = append(mods, "desc")
		}
		if o.Key.Natural {
			mods = append(mods, "natural")
		}
		return fmt.Sprintf("%s(%s)", o.Kind, strings.Join(append([]string{o.Key.Selector.String()}, mods...), " "))
	case OpSkip, OpTake:
		return fmt.Sprintf("%s(%d)", o.Kind, o.Count)
	case OpConcat, OpUnion, OpIntersect, OpExcept:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Other.provider.Name())
	default:
		return o.Kind.String() + "()"
	}
}

// Plan is the composed, not yet executed list of operations of a query.
type Plan []Op

func (p Plan) String() string {
	parts := make([]string, len(p))
	for i, op := range p {
		parts[i] = op.String()
	}
	return strings.Join(parts, " | ")
}

// TerminalKind identifies an operation that executes a plan.
type TerminalKind int

const (
	TerminalList TerminalKind = iota
	TerminalCount
	TerminalContains
	TerminalFirst
	TerminalLast
	TerminalAny
	TerminalAll
)

var terminalNames = map[TerminalKind]string{
	TerminalList:     "list",
	TerminalCount:    "count",
	TerminalContains: "contains",
	TerminalFirst:    "first",
	TerminalLast:     "last",
	TerminalAny:      "any",
	TerminalAll:      "all",
}

func (k TerminalKind) String() string {
	if name, ok := terminalNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TerminalKind(%d)", int(k))
}

// Terminal describes how a plan is executed.
type Terminal struct {
	Kind TerminalKind

	// Value is the searched value of TerminalContains.
	Value interface{}

	// Predicate is the test of TerminalAll.
	Predicate *path.Predicate
}

// Result carries the outcome of a terminal operation. Which fields are set
// depends on the terminal kind.
type Result struct {
	Items []interface{}
	Count int64
	Bool  bool
	Item  interface{}
	Found bool
}

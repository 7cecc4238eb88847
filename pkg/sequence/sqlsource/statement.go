package sqlsource

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"liquidcore/pkg/ordering"
	"liquidcore/pkg/path"
	"liquidcore/pkg/sequence"
)

// valueColumn names the single output column of projected statements.
const valueColumn = "value"

type orderTerm struct {
	column string // empty for the statement's position key
	nocase bool
	desc   bool
}

func (t orderTerm) render(key string, grouped bool) string {
	expr := key
	if t.column != "" {
		expr = quote(t.column)
	}
	if grouped {
		// every group sorts where its first row did
		expr = "MIN(" + expr + ")"
	}
	if t.nocase {
		expr += " COLLATE NOCASE"
	}
	if t.desc {
		expr += " DESC"
	}
	return expr
}

// statement is a single SELECT under construction. Operations that cannot be
// merged into it (a filter after a LIMIT, say) wrap it as a subquery.
type statement struct {
	from     string
	fromArgs []interface{}
	columns  []string

	// key is the expression giving each row's position in source order:
	// rowid on the table, a ROW_NUMBER column once wrapped, empty when
	// unknown.
	key   string
	depth int

	// scalar marks elements that are the single output column rather than
	// rows. It survives wrapping, unlike projection.
	scalar bool

	projection string
	distinct   bool
	where      []string
	whereArgs  []interface{}
	order      []orderTerm
	thenAt     int
	lastOrder  bool
	limit      int
	offset     int
}

func newStatement(table string, columns []string) *statement {
	return &statement{from: quote(table), columns: columns, key: "rowid", limit: -1}
}

func (st *statement) clone() *statement {
	c := *st
	c.fromArgs = append([]interface{}(nil), st.fromArgs...)
	c.where = append([]string(nil), st.where...)
	c.whereArgs = append([]interface{}(nil), st.whereArgs...)
	c.order = append([]orderTerm(nil), st.order...)
	return &c
}

func (st *statement) limited() bool {
	return st.limit >= 0 || st.offset > 0
}

func (st *statement) output() []string {
	if st.projection != "" {
		return []string{valueColumn}
	}
	return st.columns
}

// terms returns the ORDER BY terms. Without explicit ordering a limited
// or grouped statement follows the position key.
func (st *statement) terms(positioned bool) []orderTerm {
	if len(st.order) > 0 || st.key == "" {
		return st.order
	}
	if positioned || st.limited() || st.distinct {
		return []orderTerm{{}}
	}
	return nil
}

func (st *statement) orderBy(positioned bool) string {
	terms := st.terms(positioned)
	rendered := make([]string, len(terms))
	for i, t := range terms {
		rendered[i] = t.render(st.key, st.distinct)
	}
	return strings.Join(rendered, ", ")
}

func (st *statement) render() (string, []interface{}) {
	return st.sql("")
}

// sql renders the statement. A non-empty position names an extra output
// column numbering the rows in statement order.
func (st *statement) sql(position string) (string, []interface{}) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if st.projection != "" {
		b.WriteString(quote(st.projection) + " AS " + quote(valueColumn))
	} else {
		b.WriteString(quoteAll(st.columns))
	}
	if position != "" {
		fmt.Fprintf(&b, ", ROW_NUMBER() OVER (ORDER BY %s) AS %s", st.orderBy(true), quote(position))
	}
	b.WriteString(" FROM " + st.from)

	if len(st.where) > 0 {
		b.WriteString(" WHERE " + strings.Join(st.where, " AND "))
	}
	if st.distinct {
		group := quoteAll(st.columns)
		if st.projection != "" {
			group = quote(st.projection)
		}
		b.WriteString(" GROUP BY " + group)
	}
	if order := st.orderBy(false); order != "" {
		b.WriteString(" ORDER BY " + order)
	}
	if st.limited() {
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", st.limit, st.offset)
	}

	args := make([]interface{}, 0, len(st.fromArgs)+len(st.whereArgs))
	args = append(args, st.fromArgs...)
	return b.String(), append(args, st.whereArgs...)
}

// wrap turns the statement into a subquery. The subquery numbers its rows,
// so the outer statement keeps their order and ties.
func (st *statement) wrap() *statement {
	next := &statement{
		columns: st.output(),
		scalar:  st.scalar,
		depth:   st.depth + 1,
		limit:   -1,
	}

	position := ""
	if len(st.terms(true)) > 0 {
		position = fmt.Sprintf("_pos%d", next.depth)
		next.key = quote(position)
		next.order = []orderTerm{{}}
	}
	next.thenAt = len(next.order)

	query, args := st.sql(position)
	next.from, next.fromArgs = "("+query+")", args
	return next
}

// keyOrdered reports whether the statement is ordered by its position key
// alone.
func (st *statement) keyOrdered() bool {
	return len(st.order) == 0 || (len(st.order) == 1 && st.order[0].column == "")
}

func (s *Source) apply(st *statement, op sequence.Op) (*statement, error) {
	if op.Kind.IsSetOp() {
		return s.compound(st, op)
	}

	st = st.clone()
	wasOrder := st.lastOrder
	st.lastOrder = false

	switch op.Kind {
	case sequence.OpProject:
		if op.Selector.IsIdentity() {
			return st, nil
		}
		if st.scalar {
			return nil, sequence.Unsupported("member access on projected values")
		}
		if st.distinct {
			st = st.wrap()
		}
		col, err := s.column(st, op.Selector.Steps())
		if err != nil {
			return nil, err
		}
		st.projection = col
		st.scalar = true

	case sequence.OpFilter:
		if st.projection != "" || st.distinct || st.limited() {
			st = st.wrap()
		}
		cond, args, err := s.condition(st, op.Predicate)
		if err != nil {
			return nil, err
		}
		st.where = append(st.where, cond)
		st.whereArgs = append(st.whereArgs, args...)

	case sequence.OpOrderBy, sequence.OpThenBy:
		if st.projection != "" || st.distinct || st.limited() {
			st = st.wrap()
			wasOrder = false
		}
		terms, err := s.orderTerms(st, op.Key)
		if err != nil {
			return nil, err
		}
		if op.Kind == sequence.OpThenBy && wasOrder {
			st.order = slices.Insert(st.order, st.thenAt, terms...)
			st.thenAt += len(terms)
		} else {
			// Sorting is stable: the existing order breaks ties.
			if len(st.order) == 0 && st.key != "" {
				st.order = []orderTerm{{}}
			}
			st.order = append(terms, st.order...)
			st.thenAt = len(terms)
		}
		st.lastOrder = true

	case sequence.OpDistinct:
		// A group sorts by the minimum of each term, which only matches
		// the first occurrence for a single position term.
		if st.limited() || !st.keyOrdered() {
			st = st.wrap()
		}
		st.distinct = true

	case sequence.OpSkip:
		st.offset += op.Count
		if st.limit >= 0 {
			st.limit = max(st.limit-op.Count, 0)
		}

	case sequence.OpTake:
		if st.limit < 0 || op.Count < st.limit {
			st.limit = op.Count
		}

	case sequence.OpReverse:
		if st.limited() {
			st = st.wrap()
		}
		switch {
		case len(st.order) > 0:
			for i := range st.order {
				st.order[i].desc = !st.order[i].desc
			}
		case st.key != "":
			st.order = []orderTerm{{desc: true}}
		default:
			return nil, sequence.Unsupported("reverse without a known order")
		}

	default:
		return nil, sequence.Unsupported("operation %s", op.Kind)
	}
	return st, nil
}

var compoundOperators = map[sequence.OpKind]string{
	sequence.OpConcat:    "UNION ALL",
	sequence.OpUnion:     "UNION",
	sequence.OpIntersect: "INTERSECT",
	sequence.OpExcept:    "EXCEPT",
}

func (s *Source) compound(st *statement, op sequence.Op) (*statement, error) {
	other, ok := op.Other.Provider().(*Source)
	if !ok || other.db != s.db {
		return nil, sequence.Unsupported("%s with a source outside this database", op.Kind)
	}
	right, err := other.compile(op.Other.Plan())
	if err != nil {
		return nil, err
	}

	left := st.output()
	if !slices.Equal(left, right.output()) || st.scalar != right.scalar {
		return nil, sequence.Unsupported("%s of sources with different columns", op.Kind)
	}

	lsql, largs := st.render()
	rsql, rargs := right.render()
	cols := quoteAll(left)
	query := fmt.Sprintf("SELECT %s FROM (%s) %s SELECT %s FROM (%s)",
		cols, lsql, compoundOperators[op.Kind], cols, rsql)

	return &statement{
		from:     "(" + query + ")",
		fromArgs: append(largs, rargs...),
		columns:  left,
		scalar:   st.scalar,
		depth:    max(st.depth, right.depth),
		limit:    -1,
	}, nil
}

// column maps resolved path steps to an output column, alias first. An
// unknown column fails like an unknown struct field.
func (s *Source) column(st *statement, steps []path.Step) (string, error) {
	switch {
	case len(steps) == 0 && st.scalar:
		return st.output()[0], nil
	case len(steps) == 0:
		return "", sequence.Unsupported("comparing whole rows")
	case st.scalar:
		return "", sequence.Unsupported("member access on projected values")
	case len(steps) > 1:
		return "", sequence.Unsupported("nested member path")
	}

	segment := steps[0].Segment
	for _, name := range s.resolver.Candidates(segment) {
		if slices.Contains(st.columns, name) {
			return name, nil
		}
	}
	return "", &path.ResolveError{Path: segment, Segment: segment, Type: rowType}
}

func (s *Source) orderTerms(st *statement, key sequence.SortKey) ([]orderTerm, error) {
	col, err := s.column(st, key.Selector.Steps())
	if err != nil {
		return nil, err
	}
	if key.Natural {
		// case-sensitive tiebreak keeps the order total
		return []orderTerm{
			{column: col, nocase: true, desc: key.Descending},
			{column: col, desc: key.Descending},
		}, nil
	}
	return []orderTerm{{column: col, desc: key.Descending}}, nil
}

func (s *Source) condition(st *statement, p *path.Predicate) (string, []interface{}, error) {
	if p.Inner() != nil {
		return "", nil, sequence.Unsupported("existential predicate on %q", p.Path())
	}
	col, err := s.column(st, p.Steps())
	if err != nil {
		return "", nil, err
	}
	qcol := quote(col)

	if p.Op() != path.OpIn {
		if p.Target() == nil {
			return qcol + " IS NULL", nil, nil
		}
		arg, err := sqlArg(p.Target())
		if err != nil {
			return "", nil, err
		}
		return qcol + " = ?", []interface{}{arg}, nil
	}

	var (
		holders []string
		args    []interface{}
		hasNil  bool
	)
	for _, v := range p.Set() {
		if v == nil {
			hasNil = true
			continue
		}
		arg, err := sqlArg(v)
		if err != nil {
			return "", nil, err
		}
		holders = append(holders, "?")
		args = append(args, arg)
	}

	cond := "0"
	if len(holders) > 0 {
		cond = qcol + " IN (" + strings.Join(holders, ", ") + ")"
	}
	if hasNil {
		cond = "(" + cond + " OR " + qcol + " IS NULL)"
	}
	return cond, args, nil
}

// sqlArg converts a host value to a driver argument.
func sqlArg(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string, []byte, time.Time:
		return x, nil
	}

	if d, ok := ordering.Decimal(v); ok {
		text := ordering.Canonical(d)
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, sequence.Unsupported("number %s out of range", text)
		}
		return f, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return int64(1), nil
		}
		return int64(0), nil
	case reflect.String:
		return rv.String(), nil
	default:
		return nil, sequence.Unsupported("cannot compare %T in SQL", v)
	}
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func quoteAll(idents []string) string {
	quoted := make([]string, len(idents))
	for i, ident := range idents {
		quoted[i] = quote(ident)
	}
	return strings.Join(quoted, ", ")
}

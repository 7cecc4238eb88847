// Package sqlsource provides a sequence provider that pushes query plans
// down to a SQL database.
//
// Elements are table rows, exposed as map[string]interface{} keyed by
// column name. Filters become WHERE clauses, orderings ORDER BY, skip and
// take LIMIT/OFFSET, and set operations between tables of the same
// database compound selects. Paths longer than one segment and existential
// predicates cannot be expressed and are reported as
// sequence.ErrPlanUnsupported.
//
// The generated SQL targets SQLite.
package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"

	"liquidcore/pkg/path"
	"liquidcore/pkg/sequence"
)

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	rowType           = reflect.TypeOf(map[string]interface{}{})
)

// Options configures a Source.
type Options struct {
	// Logger receives generated SQL at debug level. Defaults to slog.Default().
	Logger *slog.Logger

	// Resolver supplies the member alias convention. Defaults to
	// path.NewResolver().
	Resolver *path.Resolver
}

// Source is a sequence provider over one table.
type Source struct {
	db       *sql.DB
	table    string
	columns  []string
	logger   *slog.Logger
	resolver *path.Resolver
}

// New creates a Source for table, reading its column list from the
// database.
func New(ctx context.Context, db *sql.DB, table string, opts Options) (*Source, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	s := &Source{db: db, table: table, logger: opts.Logger, resolver: opts.Resolver}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.resolver == nil {
		s.resolver = path.NewResolver()
	}
	s.logger = s.logger.With("component", "sqlsource", "table", table)

	columns, err := s.readColumns(ctx)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q not found or has no columns", table)
	}
	s.columns = columns
	return s, nil
}

func (s *Source) readColumns(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", quote(s.table))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, NewQueryError("columns", query, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue interface{}
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, NewQueryError("columns", query, err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, NewQueryError("columns", query, err)
	}
	return columns, nil
}

// Table returns the table name.
func (s *Source) Table() string { return s.table }

// Columns returns the table's columns in declaration order.
func (s *Source) Columns() []string { return append([]string(nil), s.columns...) }

// AsQuery returns a query over all rows of the table.
func (s *Source) AsQuery() *sequence.Query {
	return sequence.New(s, rowType, s.resolver)
}

// Name implements sequence.Provider.
func (s *Source) Name() string { return "sql:" + s.table }

// Supports implements sequence.Provider.
func (s *Source) Supports(plan sequence.Plan, op sequence.Op) error {
	st, err := s.compile(plan)
	if err != nil {
		return err
	}
	_, err = s.apply(st, op)
	return err
}

// compiledSQL returns the statement a query compiles to.
func (s *Source) compiledSQL(q *sequence.Query) (string, []interface{}, error) {
	st, err := s.compile(q.Plan())
	if err != nil {
		return "", nil, err
	}
	query, args := st.render()
	return query, args, nil
}

func (s *Source) compile(plan sequence.Plan) (*statement, error) {
	st := newStatement(s.table, s.columns)
	for _, op := range plan {
		next, err := s.apply(st, op)
		if err != nil {
			return nil, err
		}
		st = next
	}
	return st, nil
}

// Execute implements sequence.Provider.
func (s *Source) Execute(ctx context.Context, q *sequence.Query, t sequence.Terminal) (sequence.Result, error) {
	st, err := s.compile(q.Plan())
	if err != nil {
		return sequence.Result{}, err
	}

	switch t.Kind {
	case sequence.TerminalList:
		items, err := s.list(ctx, q, st)
		return sequence.Result{Items: items}, err

	case sequence.TerminalCount:
		inner, args := st.render()
		var n int64
		err := s.scalar(ctx, q, "count", "SELECT COUNT(*) FROM ("+inner+")", args, &n)
		return sequence.Result{Count: n}, err

	case sequence.TerminalAny:
		inner, args := st.render()
		var found bool
		err := s.scalar(ctx, q, "any", "SELECT EXISTS("+inner+")", args, &found)
		return sequence.Result{Bool: found}, err

	case sequence.TerminalContains:
		found, err := s.contains(ctx, q, st, t.Value)
		return sequence.Result{Bool: found}, err

	case sequence.TerminalFirst:
		first, err := s.apply(st, sequence.Op{Kind: sequence.OpTake, Count: 1})
		if err != nil {
			return sequence.Result{}, err
		}
		return s.single(ctx, q, first)

	case sequence.TerminalLast:
		return s.last(ctx, q, st)

	case sequence.TerminalAll:
		cond, condArgs, err := s.condition(st, t.Predicate)
		if err != nil {
			return sequence.Result{}, err
		}
		inner, args := st.render()
		query := "SELECT NOT EXISTS(SELECT 1 FROM (" + inner + ") WHERE NOT COALESCE((" + cond + "), 0))"
		var all bool
		err = s.scalar(ctx, q, "all", query, append(args, condArgs...), &all)
		return sequence.Result{Bool: all}, err

	default:
		return sequence.Result{}, sequence.Unsupported("terminal %s", t.Kind)
	}
}

func (s *Source) last(ctx context.Context, q *sequence.Query, st *statement) (sequence.Result, error) {
	if reversed, err := s.apply(st, sequence.Op{Kind: sequence.OpReverse}); err == nil {
		last, err := s.apply(reversed, sequence.Op{Kind: sequence.OpTake, Count: 1})
		if err != nil {
			return sequence.Result{}, err
		}
		return s.single(ctx, q, last)
	}

	// No known order to invert: count, then skip to the end.
	inner, args := st.render()
	var n int64
	if err := s.scalar(ctx, q, "count", "SELECT COUNT(*) FROM ("+inner+")", args, &n); err != nil {
		return sequence.Result{}, err
	}
	if n == 0 {
		return sequence.Result{}, nil
	}
	tail, err := s.apply(st, sequence.Op{Kind: sequence.OpSkip, Count: int(n - 1)})
	if err != nil {
		return sequence.Result{}, err
	}
	return s.single(ctx, q, tail)
}

func (s *Source) contains(ctx context.Context, q *sequence.Query, st *statement, v interface{}) (bool, error) {
	columns := st.output()

	var (
		conds []string
		args  []interface{}
	)
	if st.scalar {
		cond, arg, ok := equals(columns[0], v)
		if !ok {
			return false, nil
		}
		conds, args = append(conds, cond), append(args, arg...)
	} else {
		row, ok := v.(map[string]interface{})
		if !ok || len(row) != len(columns) {
			return false, nil
		}
		for _, col := range columns {
			cell, present := row[col]
			if !present {
				return false, nil
			}
			cond, arg, ok := equals(col, cell)
			if !ok {
				return false, nil
			}
			conds, args = append(conds, cond), append(args, arg...)
		}
	}

	inner, innerArgs := st.render()
	query := "SELECT EXISTS(SELECT 1 FROM (" + inner + ") WHERE " + strings.Join(conds, " AND ") + ")"
	var found bool
	err := s.scalar(ctx, q, "contains", query, append(innerArgs, args...), &found)
	return found, err
}

func equals(col string, v interface{}) (string, []interface{}, bool) {
	if v == nil {
		return quote(col) + " IS NULL", nil, true
	}
	arg, err := sqlArg(v)
	if err != nil {
		return "", nil, false
	}
	return quote(col) + " = ?", []interface{}{arg}, true
}

func (s *Source) single(ctx context.Context, q *sequence.Query, st *statement) (sequence.Result, error) {
	items, err := s.list(ctx, q, st)
	if err != nil || len(items) == 0 {
		return sequence.Result{}, err
	}
	return sequence.Result{Item: items[0], Found: true}, nil
}

func (s *Source) scalar(ctx context.Context, q *sequence.Query, operation, query string, args []interface{}, dest interface{}) error {
	s.logger.Debug("Executing query", "query_id", q.ID(), "operation", operation, "sql", query)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(dest); err != nil {
		return NewQueryError(operation, query, err)
	}
	return nil
}

func (s *Source) list(ctx context.Context, q *sequence.Query, st *statement) ([]interface{}, error) {
	query, args := st.render()
	s.logger.Debug("Executing query", "query_id", q.ID(), "operation", "list", "sql", query)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewQueryError("list", query, err)
	}
	defer rows.Close()

	columns := st.output()
	projected := st.scalar

	var items []interface{}
	for rows.Next() {
		cells := make([]interface{}, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, NewQueryError("list", query, err)
		}

		if projected {
			items = append(items, cells[0])
			continue
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = cells[i]
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, NewQueryError("list", query, err)
	}
	return items, nil
}

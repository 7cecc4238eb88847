package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"testing"

	"github.com/rekby/fixenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"liquidcore/pkg/path"
	"liquidcore/pkg/sequence"
)

var seed = []string{
	`CREATE TABLE people (name TEXT, age INTEGER, city TEXT)`,
	`INSERT INTO people VALUES ('Bob', 30, 'Paris'), ('alice', 30, 'Berlin'), ('Carol', 20, 'Paris'), ('dave', 40, NULL), ('Eve', 20, 'Berlin')`,
	`CREATE TABLE staff (name TEXT, age INTEGER, city TEXT)`,
	`INSERT INTO staff VALUES ('Bob', 30, 'Paris'), ('Zed', 50, 'Oslo')`,
}

// testDB provides a seeded in-memory SQLite database for one test.
func testDB(env fixenv.Env) *sql.DB {
	return fixenv.CacheResult(env, func() (*fixenv.GenericResult[*sql.DB], error) {
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)

		for _, stmt := range seed {
			if _, err := db.Exec(stmt); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to seed database: %w", err)
			}
		}
		return fixenv.NewGenericResultWithCleanup(db, func() {
			_ = db.Close()
		}), nil
	})
}

func peopleSource(env fixenv.Env) *Source {
	db := testDB(env)
	return fixenv.CacheResult(env, func() (*fixenv.GenericResult[*Source], error) {
		src, err := New(context.Background(), db, "people", Options{})
		if err != nil {
			return nil, err
		}
		return fixenv.NewGenericResult(src), nil
	})
}

func staffSource(env fixenv.Env) *Source {
	db := testDB(env)
	return fixenv.CacheResult(env, func() (*fixenv.GenericResult[*Source], error) {
		src, err := New(context.Background(), db, "staff", Options{})
		if err != nil {
			return nil, err
		}
		return fixenv.NewGenericResult(src), nil
	})
}

// inMemory copies all rows of src into a memory query.
func inMemory(t *testing.T, src *Source) *sequence.Query {
	t.Helper()
	rows, err := src.AsQuery().ToList(context.Background())
	require.NoError(t, err)
	return sequence.New(sequence.NewMemory(rows), reflect.TypeOf(map[string]interface{}{}), nil)
}

func TestNew(t *testing.T) {
	env := fixenv.New(t)
	db := testDB(env)
	ctx := context.Background()

	src, err := New(ctx, db, "people", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age", "city"}, src.Columns())
	assert.Equal(t, "sql:people", src.Name())

	_, err = New(ctx, db, "people; DROP TABLE people", Options{})
	assert.Error(t, err)

	_, err = New(ctx, db, "missing", Options{})
	assert.Error(t, err)
}

type planFunc func(*sequence.Query) (*sequence.Query, error)

func chain(steps ...planFunc) planFunc {
	return func(q *sequence.Query) (*sequence.Query, error) {
		var err error
		for _, step := range steps {
			if q, err = step(q); err != nil {
				return nil, err
			}
		}
		return q, nil
	}
}

func filter(p string, target interface{}) planFunc {
	return func(q *sequence.Query) (*sequence.Query, error) { return q.Filter(p, target) }
}

func orderBy(p string, desc, natural bool) planFunc {
	return func(q *sequence.Query) (*sequence.Query, error) { return q.OrderBy(p, desc, natural) }
}

func thenBy(p string, desc, natural bool) planFunc {
	return func(q *sequence.Query) (*sequence.Query, error) { return q.ThenBy(p, desc, natural) }
}

func project(p string) planFunc {
	return func(q *sequence.Query) (*sequence.Query, error) { return q.Project(p) }
}

func skip(n int) planFunc {
	return func(q *sequence.Query) (*sequence.Query, error) { return q.Skip(n) }
}

func take(n int) planFunc {
	return func(q *sequence.Query) (*sequence.Query, error) { return q.Take(n) }
}

func reverse() planFunc {
	return func(q *sequence.Query) (*sequence.Query, error) { return q.Reverse() }
}

func distinct() planFunc {
	return func(q *sequence.Query) (*sequence.Query, error) { return q.Distinct() }
}

func TestSource_MatchesMemoryProvider(t *testing.T) {
	tests := []struct {
		name string
		plan planFunc
	}{
		{name: "filter equality", plan: filter("age", 30)},
		{name: "filter membership with null", plan: filter("city", []interface{}{"Paris", nil})},
		{name: "order by then by", plan: chain(orderBy("age", false, false), thenBy("name", false, false))},
		{name: "order descending then natural", plan: chain(orderBy("age", true, false), thenBy("name", false, true))},
		{name: "order with nulls is stable", plan: orderBy("city", false, false)},
		{name: "skip take", plan: chain(skip(1), take(2))},
		{name: "natural order reversed", plan: chain(orderBy("name", false, true), reverse())},
		{name: "reverse source order", plan: reverse()},
		{name: "reverse after skip", plan: chain(skip(1), reverse())},
		{name: "reverse after take", plan: chain(orderBy("name", false, false), take(3), reverse())},
		{name: "filter then project", plan: chain(filter("age", 20), project("name"))},
		{name: "filter after take", plan: chain(take(10), filter("city", "Berlin"))},
		{name: "order after filter keeps stability", plan: chain(orderBy("name", false, false), filter("city", "Paris"), thenBy("age", false, false))},
		{name: "distinct projection keeps first occurrences", plan: chain(project("city"), distinct())},
		{name: "distinct projection reversed", plan: chain(project("city"), distinct(), reverse())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertMatchesMemory(t, tt.plan)
		})
	}
}

// Plans whose later operations force the statement into a subquery.
func TestSource_WrappedPlansMatchMemoryProvider(t *testing.T) {
	tests := []struct {
		name string
		plan planFunc
	}{
		{name: "project then sort", plan: chain(project("name"), orderBy("", false, false))},
		{name: "project then natural sort", plan: chain(project("name"), orderBy("", false, true))},
		{name: "project then sort descending", plan: chain(project("age"), orderBy("", true, false))},
		{name: "sort project distinct", plan: chain(orderBy("age", false, false), project("city"), distinct())},
		{name: "sort distinct rows", plan: chain(orderBy("city", false, false), distinct())},
		{name: "sort take reverse keeps ties", plan: chain(orderBy("age", false, false), take(3), reverse())},
		{name: "filter after take", plan: chain(take(3), filter("city", "Paris"))},
		{name: "filter after skip on sorted", plan: chain(orderBy("age", true, false), skip(1), filter("age", 30))},
		{name: "sort after take", plan: chain(take(4), orderBy("age", false, false))},
		{name: "project after distinct", plan: chain(distinct(), project("name"))},
		{name: "take after projected sort", plan: chain(project("city"), orderBy("", false, false), take(2))},
		{name: "filter projected values", plan: chain(project("age"), filter("", 30))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertMatchesMemory(t, tt.plan)
		})
	}
}

func assertMatchesMemory(t *testing.T, plan planFunc) {
	t.Helper()
	env := fixenv.New(t)
	ctx := context.Background()
	src := peopleSource(env)

	sqlQuery, err := plan(src.AsQuery())
	require.NoError(t, err)
	memQuery, err := plan(inMemory(t, src))
	require.NoError(t, err)

	got, err := sqlQuery.ToList(ctx)
	require.NoError(t, err)
	want, err := memQuery.ToList(ctx)
	require.NoError(t, err)

	require.NotEmpty(t, want)
	assert.Equal(t, want, got)
}

func TestSource_SQL(t *testing.T) {
	tests := []struct {
		name string
		plan planFunc
		want string
		args []interface{}
	}{
		{
			name: "merged into one select",
			plan: chain(filter("age", 30), orderBy("name", false, false), take(2)),
			want: `SELECT "name", "age", "city" FROM "people" WHERE "age" = ? ORDER BY "name", rowid LIMIT 2 OFFSET 0`,
			args: []interface{}{int64(30)},
		},
		{
			name: "subquery numbers its rows",
			plan: chain(orderBy("age", false, false), take(3), reverse()),
			want: `SELECT "name", "age", "city" FROM (SELECT "name", "age", "city", ROW_NUMBER() OVER (ORDER BY "age", rowid) AS "_pos1" ` +
				`FROM "people" ORDER BY "age", rowid LIMIT 3 OFFSET 0) ORDER BY "_pos1" DESC`,
			args: []interface{}{},
		},
		{
			name: "distinct keeps first occurrences",
			plan: chain(project("city"), distinct()),
			want: `SELECT "city" AS "value" FROM "people" GROUP BY "city" ORDER BY MIN(rowid)`,
			args: []interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := fixenv.New(t)
			src := peopleSource(env)

			q, err := tt.plan(src.AsQuery())
			require.NoError(t, err)

			query, args, err := src.compiledSQL(q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestSource_Terminals(t *testing.T) {
	env := fixenv.New(t)
	ctx := context.Background()
	src := peopleSource(env)
	q := src.AsQuery()

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	thirty, err := q.Filter("age", 30)
	require.NoError(t, err)
	n, err = thirty.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	anyRows, err := thirty.Any(ctx)
	require.NoError(t, err)
	assert.True(t, anyRows)

	none, err := q.Filter("age", 99)
	require.NoError(t, err)
	anyRows, err = none.Any(ctx)
	require.NoError(t, err)
	assert.False(t, anyRows)

	_, found, err := none.First(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	oldest, err := q.OrderBy("age", true, false)
	require.NoError(t, err)
	first, found, err := oldest.First(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "dave", first.(map[string]interface{})["name"])
}

func TestSource_Last(t *testing.T) {
	env := fixenv.New(t)
	ctx := context.Background()
	q := peopleSource(env).AsQuery()

	tests := []struct {
		name string
		plan planFunc
		want string
	}{
		{name: "source order", plan: chain(), want: "Eve"},
		{name: "ordered", plan: orderBy("name", false, false), want: "dave"},
		{name: "after take", plan: take(2), want: "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planned, err := tt.plan(q)
			require.NoError(t, err)

			last, found, err := planned.Last(ctx)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, tt.want, last.(map[string]interface{})["name"])
		})
	}
}

func TestSource_Contains(t *testing.T) {
	env := fixenv.New(t)
	ctx := context.Background()
	q := peopleSource(env).AsQuery()

	found, err := q.Contains(ctx, map[string]interface{}{"name": "Bob", "age": 30, "city": "Paris"})
	require.NoError(t, err)
	assert.True(t, found)

	found, err = q.Contains(ctx, map[string]interface{}{"name": "dave", "age": 40, "city": nil})
	require.NoError(t, err)
	assert.True(t, found)

	found, err = q.Contains(ctx, map[string]interface{}{"name": "Bob"})
	require.NoError(t, err)
	assert.False(t, found, "partial rows never match")

	found, err = q.Contains(ctx, "Bob")
	require.NoError(t, err)
	assert.False(t, found)

	names, err := q.Project("name")
	require.NoError(t, err)
	found, err = names.Contains(ctx, "Eve")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = names.Contains(ctx, "Zed")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSource_All(t *testing.T) {
	env := fixenv.New(t)
	ctx := context.Background()
	q := peopleSource(env).AsQuery()

	all, err := q.All(ctx, "age", []int{20, 30, 40})
	require.NoError(t, err)
	assert.True(t, all)

	all, err = q.All(ctx, "city", "Paris")
	require.NoError(t, err)
	assert.False(t, all)

	young, err := q.Filter("age", 20)
	require.NoError(t, err)
	all, err = young.All(ctx, "city", []string{"Paris", "Berlin"})
	require.NoError(t, err)
	assert.True(t, all)
}

func TestSource_SetOperations(t *testing.T) {
	tests := []struct {
		name  string
		op    func(left, right *sequence.Query) (*sequence.Query, error)
		count int
	}{
		{name: "concat", op: (*sequence.Query).Concat, count: 7},
		{name: "union", op: (*sequence.Query).Union, count: 6},
		{name: "intersect", op: (*sequence.Query).Intersect, count: 1},
		{name: "except", op: (*sequence.Query).Except, count: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := fixenv.New(t)
			ctx := context.Background()
			people, staff := peopleSource(env), staffSource(env)

			pushed, err := tt.op(people.AsQuery(), staff.AsQuery())
			require.NoError(t, err)
			got, err := pushed.ToList(ctx)
			require.NoError(t, err)

			inMem, err := tt.op(inMemory(t, people), inMemory(t, staff))
			require.NoError(t, err)
			want, err := inMem.ToList(ctx)
			require.NoError(t, err)

			assert.Len(t, got, tt.count)
			assert.ElementsMatch(t, want, got)
		})
	}
}

func TestSource_PlanUnsupported(t *testing.T) {
	tests := []struct {
		name string
		plan planFunc
	}{
		{name: "nested path", plan: filter("address.city", "Paris")},
		{name: "reverse without order", plan: func(q *sequence.Query) (*sequence.Query, error) {
			union, err := q.Union(q)
			if err != nil {
				return nil, err
			}
			return union.Reverse()
		}},
		{name: "member of projected value", plan: chain(project("name"), project("length"))},
		{name: "member of wrapped projected value", plan: chain(project("name"), orderBy("", false, false), filter("length", 4))},
		{name: "concat with memory source", plan: func(q *sequence.Query) (*sequence.Query, error) {
			return q.Concat(sequence.FromSlice([]int{1}, nil))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := fixenv.New(t)
			_, err := tt.plan(peopleSource(env).AsQuery())
			require.Error(t, err)
			assert.ErrorIs(t, err, sequence.ErrPlanUnsupported)

			var planErr *sequence.PlanError
			assert.ErrorAs(t, err, &planErr)
		})
	}
}

func TestSource_UnknownColumn(t *testing.T) {
	tests := []struct {
		name string
		plan planFunc
	}{
		{name: "order by", plan: orderBy("salary", false, false)},
		{name: "project", plan: project("salary")},
		{name: "filter", plan: filter("salary", 10)},
		{name: "project after subquery", plan: chain(take(2), filter("city", "Paris"), project("salary"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := fixenv.New(t)
			_, err := tt.plan(peopleSource(env).AsQuery())
			require.Error(t, err)

			var resolveErr *path.ResolveError
			require.ErrorAs(t, err, &resolveErr)
			assert.Equal(t, "salary", resolveErr.Segment)
			assert.NotErrorIs(t, err, sequence.ErrPlanUnsupported)
		})
	}
}

func TestSource_QueryError(t *testing.T) {
	env := fixenv.New(t)
	q := peopleSource(env).AsQuery()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Count(ctx)
	require.Error(t, err)

	var queryErr *QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, "count", queryErr.Operation)
	assert.ErrorIs(t, err, context.Canceled)
}

package filters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidcore/pkg/sequence"
	"liquidcore/pkg/value"
)

type fakeRecorder struct {
	mu        sync.Mutex
	fallbacks []string
	queries   []string
}

func (r *fakeRecorder) ObservePlanFallback(filter, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, filter+"@"+provider)
}

func (r *fakeRecorder) ObserveQuery(provider, operation string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, operation+"@"+provider)
}

// noReverse is an in-memory provider that cannot reverse.
type noReverse struct {
	*sequence.Memory
}

func (noReverse) Name() string { return "no-reverse" }

func (noReverse) Supports(_ sequence.Plan, op sequence.Op) error {
	if op.Kind == sequence.OpReverse {
		return sequence.Unsupported("reverse")
	}
	return nil
}

func TestWithArrayFilters_RegistersArrayFilters(t *testing.T) {
	r := WithArrayFilters(NewRegistry())

	assert.Equal(t, []string{
		"all", "any", "concat", "except", "first", "intersect", "join", "last", "map",
		"reverse", "size", "skip", "sort", "sort_natural", "take", "to_array", "union", "uniq", "where",
	}, r.Names())

	_, ok := r.Get("where")
	assert.True(t, ok)
	_, ok = r.Get("upcase")
	assert.False(t, ok)
}

func TestRegistry_AddReplaces(t *testing.T) {
	r := WithArrayFilters(NewRegistry())
	r.Add("size", func(context.Context, value.Value, value.Arguments, *Context) (value.Value, error) {
		return value.String("replaced"), nil
	})

	got, err := r.Apply(context.Background(), "size", value.String("abc"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, value.String("replaced"), got)
}

func TestRegistry_Apply(t *testing.T) {
	r := WithArrayFilters(NewRegistry())

	t.Run("unknown filter", func(t *testing.T) {
		_, err := r.Apply(context.Background(), "nope", value.Nil, nil, nil)
		var unknown *UnknownFilterError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "nope", unknown.Name)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.Apply(ctx, "size", value.String("abc"), nil, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("nil input", func(t *testing.T) {
		got, err := r.Apply(context.Background(), "first", nil, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, value.Nil, got)
	})
}

func TestFallback_UnsupportedReturnsInput(t *testing.T) {
	ctx := context.Background()
	recorder := &fakeRecorder{}
	fc := NewContext(nil, recorder)

	q := sequence.New(noReverse{sequence.NewMemory([]interface{}{1, 2, 3})}, nil, nil)
	input := value.Create(q, fc.Options)

	got, err := Reverse(ctx, input, nil, fc)
	require.NoError(t, err)
	assert.Same(t, input, got)
	assert.Equal(t, []string{"reverse@no-reverse"}, recorder.fallbacks)

	got, err = Take(ctx, input, value.NewArguments(value.NumberFromInt(2)), fc)
	require.NoError(t, err)
	assert.NotSame(t, input, got)
	assert.Len(t, recorder.fallbacks, 1)
}

func TestAnyAll_RecordSourceQueries(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	fc := NewContext(&value.Options{Recorder: rec}, rec)

	deferred := value.Create(sequence.New(sequence.NewMemory([]interface{}{1, 2}), nil, nil), fc.Options)
	eager := value.Create([]int{1, 2}, fc.Options)

	for _, input := range []value.Value{deferred, eager} {
		_, err := Any(ctx, input, nil, fc)
		require.NoError(t, err)
		_, err = All(ctx, input, value.NewArguments(value.String(""), value.NumberFromInt(1)), fc)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"any@memory", "all@memory"}, rec.queries, "eager arrays are not sources")
}

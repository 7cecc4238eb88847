package value

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gopkg.in/inf.v0"

	"liquidcore/pkg/ordering"
	"liquidcore/pkg/sequence"
)

// DeferredArray is a lazily evaluated sequence backed by a query.
//
// At most MaxItems elements are materialized, into a prefix cache that is
// loaded once and never refreshed. The total count is queried separately
// and memoized, unless the prefix already shows the source is exhausted.
// Reads beyond the cap, Contains and Last on a source larger than the cap go
// back to the query. A DeferredArray is safe for concurrent use.
type DeferredArray struct {
	query    *sequence.Query
	opts     *Options
	maxItems int

	loads singleflight.Group

	mu      sync.Mutex
	prefix  []interface{}
	loaded  bool
	count   int64
	counted bool
}

// NewDeferredArray wraps q.
func NewDeferredArray(q *sequence.Query, opts *Options) *DeferredArray {
	opts = opts.normalize()
	return &DeferredArray{query: q, opts: opts, maxItems: opts.MaxItems}
}

// MaxItems returns the materialization cap.
func (d *DeferredArray) MaxItems() int { return d.maxItems }

// Query returns the wrapped query.
func (d *DeferredArray) Query(context.Context) (*sequence.Query, error) { return d.query, nil }

// cached returns the prefix when it has been loaded.
func (d *DeferredArray) cached() ([]interface{}, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prefix, d.loaded
}

// exhausted returns the prefix when it is known to hold the whole source.
func (d *DeferredArray) exhausted() ([]interface{}, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prefix, d.loaded && len(d.prefix) < d.maxItems
}

// Prefix returns up to MaxItems leading elements, querying the source on
// first use only.
func (d *DeferredArray) Prefix(ctx context.Context) ([]interface{}, error) {
	if prefix, ok := d.cached(); ok {
		return prefix, nil
	}

	v, err, _ := d.loads.Do("prefix", func() (interface{}, error) {
		if prefix, ok := d.cached(); ok {
			return prefix, nil
		}

		items, err := d.load(ctx)
		if err != nil {
			return nil, err
		}

		d.mu.Lock()
		defer d.mu.Unlock()
		if !d.loaded {
			d.prefix = items
			d.loaded = true
			if len(items) < d.maxItems && !d.counted {
				d.count = int64(len(items))
				d.counted = true
			}
		}
		return d.prefix, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]interface{}), nil
}

func (d *DeferredArray) load(ctx context.Context) ([]interface{}, error) {
	provider := d.query.Provider().Name()
	start := time.Now()

	capped, err := d.query.Take(d.maxItems)
	if err != nil {
		if !errors.Is(err, sequence.ErrPlanUnsupported) {
			return nil, err
		}
		d.opts.Logger.Debug("Source cannot cap results, loading all",
			"query_id", d.query.ID(),
			"provider", provider,
			"error", err)
		capped = d.query
	}

	items, err := capped.ToList(ctx)
	d.opts.Observe(provider, "prefix", start, err)
	if err != nil {
		return nil, err
	}
	if len(items) > d.maxItems {
		items = items[:d.maxItems]
	}

	d.opts.Logger.Debug("Loaded deferred prefix",
		"query_id", d.query.ID(),
		"provider", provider,
		"plan", d.query.Plan().String(),
		"items", len(items),
		"duration", time.Since(start))
	return items, nil
}

// Size returns the total number of elements. It is memoized; when the
// prefix shows the source is exhausted no count query is issued.
func (d *DeferredArray) Size(ctx context.Context) (int64, error) {
	d.mu.Lock()
	if d.counted {
		n := d.count
		d.mu.Unlock()
		return n, nil
	}
	d.mu.Unlock()

	v, err, _ := d.loads.Do("count", func() (interface{}, error) {
		d.mu.Lock()
		if d.counted {
			n := d.count
			d.mu.Unlock()
			return n, nil
		}
		d.mu.Unlock()

		start := time.Now()
		n, err := d.query.LongCount(ctx)
		d.opts.Observe(d.query.Provider().Name(), "count", start, err)
		if err != nil {
			return nil, err
		}

		d.mu.Lock()
		defer d.mu.Unlock()
		if !d.counted {
			d.count = n
			d.counted = true
		}
		return d.count, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// At returns the element at i. Indices below the cap are served from the
// prefix; larger ones skip into the source.
func (d *DeferredArray) At(ctx context.Context, i int) (Value, error) {
	if i < 0 {
		return Nil, nil
	}

	if i < d.maxItems {
		prefix, err := d.Prefix(ctx)
		if err != nil {
			return nil, err
		}
		if i >= len(prefix) {
			return Nil, nil
		}
		return Create(prefix[i], d.opts), nil
	}

	skipped, err := d.query.Skip(i)
	if err != nil {
		return d.unsupported("at", err)
	}
	item, found, err := d.first(ctx, "at", skipped)
	if err != nil || !found {
		return Nil, err
	}
	return Create(item, d.opts), nil
}

func (d *DeferredArray) unsupported(operation string, err error) (Value, error) {
	if !errors.Is(err, sequence.ErrPlanUnsupported) {
		return nil, err
	}
	d.opts.Logger.Debug("Deferred array operation not supported by source",
		"query_id", d.query.ID(),
		"operation", operation,
		"error", err)
	return Nil, nil
}

// Contains reports whether an element equals v. The prefix answers only
// when it holds the whole source.
func (d *DeferredArray) Contains(ctx context.Context, v Value) (bool, error) {
	target, err := v.ToObject(ctx)
	if err != nil {
		return false, err
	}

	if prefix, ok := d.exhausted(); ok {
		for _, item := range prefix {
			if ordering.Equal(item, target) {
				return true, nil
			}
		}
		return false, nil
	}

	start := time.Now()
	found, err := d.query.Contains(ctx, target)
	d.opts.Observe(d.query.Provider().Name(), "contains", start, err)
	return found, err
}

// First returns the first element.
func (d *DeferredArray) First(ctx context.Context) (Value, error) {
	if prefix, ok := d.cached(); ok {
		if len(prefix) == 0 {
			return Nil, nil
		}
		return Create(prefix[0], d.opts), nil
	}

	item, found, err := d.first(ctx, "first", d.query)
	if err != nil || !found {
		return Nil, err
	}
	return Create(item, d.opts), nil
}

// Last returns the last element. Unless the prefix holds the whole source
// this queries the source, as the last element may lie beyond the cap.
func (d *DeferredArray) Last(ctx context.Context) (Value, error) {
	if prefix, ok := d.exhausted(); ok {
		if len(prefix) == 0 {
			return Nil, nil
		}
		return Create(prefix[len(prefix)-1], d.opts), nil
	}

	start := time.Now()
	item, found, err := d.query.Last(ctx)
	d.opts.Observe(d.query.Provider().Name(), "last", start, err)
	if err != nil || !found {
		return Nil, err
	}
	return Create(item, d.opts), nil
}

// first runs a First terminal on q, recorded as operation.
func (d *DeferredArray) first(ctx context.Context, operation string, q *sequence.Query) (interface{}, bool, error) {
	start := time.Now()
	item, found, err := q.First(ctx)
	d.opts.Observe(d.query.Provider().Name(), operation, start, err)
	return item, found, err
}

func (d *DeferredArray) Type() Type      { return ArrayType }
func (d *DeferredArray) ToBoolean() bool { return true }

// ToNumber returns the size.
func (d *DeferredArray) ToNumber(ctx context.Context) (*inf.Dec, error) {
	n, err := d.Size(ctx)
	if err != nil {
		return nil, err
	}
	return inf.NewDec(n, 0), nil
}

// ToText concatenates the text of the prefix elements.
func (d *DeferredArray) ToText(ctx context.Context) (string, error) {
	var b strings.Builder
	for item, err := range d.Enumerate(ctx) {
		if err != nil {
			return "", err
		}
		text, err := item.ToText(ctx)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// ToObject returns a copy of the prefix.
func (d *DeferredArray) ToObject(ctx context.Context) (interface{}, error) {
	prefix, err := d.Prefix(ctx)
	if err != nil {
		return nil, err
	}
	return append([]interface{}(nil), prefix...), nil
}

// Equals holds only for the same deferred array.
func (d *DeferredArray) Equals(_ context.Context, other Value) (bool, error) {
	o, ok := other.(*DeferredArray)
	return ok && o == d, nil
}

// Enumerate yields the prefix elements.
func (d *DeferredArray) Enumerate(ctx context.Context) iter.Seq2[Value, error] {
	return func(yield func(Value, error) bool) {
		prefix, err := d.Prefix(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, item := range prefix {
			if !yield(Create(item, d.opts), nil) {
				return
			}
		}
	}
}

// GetMember exposes size, first and last.
func (d *DeferredArray) GetMember(ctx context.Context, name string) (Value, error) {
	return sequenceMember(ctx, d, name)
}

func (d *DeferredArray) GetIndex(ctx context.Context, index Value) (Value, error) {
	return sequenceIndex(ctx, d, index)
}

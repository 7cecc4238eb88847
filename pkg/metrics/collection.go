// Copyright 2025 Philipp Hossner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess = "success"
	resultError   = "error"
)

// CollectionMetrics records how deferred collections and filters use their
// data sources.
//
// It implements value.Recorder and filters.FallbackRecorder.
type CollectionMetrics struct {
	// SourceQueries counts queries issued to data sources by provider,
	// operation (prefix, count, at, first, last, contains, any or all) and
	// result.
	SourceQueries *prometheus.CounterVec

	// SourceQueryDuration observes source query latency by provider and
	// operation.
	SourceQueryDuration *prometheus.HistogramVec

	// PlanFallbacks counts filters that returned their input because the
	// source could not express the operation.
	PlanFallbacks *prometheus.CounterVec

	// Renders counts template renders by template and result.
	Renders *prometheus.CounterVec

	RenderDuration *prometheus.HistogramVec
}

// NewCollectionMetrics creates and registers the collection metrics.
func NewCollectionMetrics(registry prometheus.Registerer) *CollectionMetrics {
	return &CollectionMetrics{
		SourceQueries: NewCounterVec(registry,
			"source_queries_total",
			"Queries issued to data sources by deferred collections",
			[]string{"provider", "operation", "result"}),
		SourceQueryDuration: NewHistogramVec(registry,
			"source_query_duration_seconds",
			"Latency of data source queries issued by deferred collections",
			[]string{"provider", "operation"},
			DurationBuckets()),
		PlanFallbacks: NewCounterVec(registry,
			"filter_plan_fallbacks_total",
			"Filters that returned their input because the source could not express the operation",
			[]string{"filter", "provider"}),
		Renders: NewCounterVec(registry,
			"renders_total",
			"Template renders",
			[]string{"template", "result"}),
		RenderDuration: NewHistogramVec(registry,
			"render_duration_seconds",
			"Template render latency",
			[]string{"template"},
			DurationBuckets()),
	}
}

// ObserveQuery records a query a collection issued to its source.
func (m *CollectionMetrics) ObserveQuery(provider, operation string, duration time.Duration, err error) {
	m.SourceQueries.WithLabelValues(provider, operation, result(err)).Inc()
	m.SourceQueryDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// ObservePlanFallback records a filter fallback.
func (m *CollectionMetrics) ObservePlanFallback(filter, provider string) {
	m.PlanFallbacks.WithLabelValues(filter, provider).Inc()
}

// ObserveRender records a template render.
func (m *CollectionMetrics) ObserveRender(template string, duration time.Duration, err error) {
	m.Renders.WithLabelValues(template, result(err)).Inc()
	m.RenderDuration.WithLabelValues(template).Observe(duration.Seconds())
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

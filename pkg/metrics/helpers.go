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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// All constructors register with the registry they are given and never
// with prometheus.DefaultRegisterer, so a discarded registry takes its
// metrics with it.

// Namespace prefixes every metric of this module.
const Namespace = "liquidcore"

// NewCounterVec creates and registers a counter vector.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	loads := metrics.NewCounterVec(registry, "prefix_loads_total", "Prefix loads", []string{"provider"})
//	loads.WithLabelValues("memory").Inc()
func NewCounterVec(registry prometheus.Registerer, name, help string, labels []string) *prometheus.CounterVec {
	return promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
	}, labels)
}

// NewHistogramVec creates and registers a histogram vector with the given
// buckets.
func NewHistogramVec(registry prometheus.Registerer, name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

// DurationBuckets returns histogram buckets in seconds for source queries
// and renders, from 1ms to 10s.
func DurationBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
}

// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package readme

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kraklabs/readmegen/internal/errors"
)

// metricsReadme holds Prometheus metrics for README requests.
type metricsReadme struct {
	once sync.Once

	requests           *prometheus.CounterVec
	inFlight           prometheus.Gauge
	requestDuration    prometheus.Histogram
	generations        *prometheus.CounterVec
	generationDuration prometheus.Histogram
	contentChars       prometheus.Histogram
}

var rdMetrics metricsReadme

func (m *metricsReadme) init() {
	m.once.Do(func() {
		m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "readmegen_requests_total", Help: "README requests by outcome"}, []string{"outcome"})
		m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{Name: "readmegen_requests_in_flight", Help: "README requests being processed"})
		m.requestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "readmegen_request_seconds", Help: "End-to-end README request duration", Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}})
		m.generations = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "readmegen_generations_total", Help: "Calls to the text-generation service by result"}, []string{"result"})
		m.generationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "readmegen_generation_seconds", Help: "Text-generation call duration", Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}})
		m.contentChars = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "readmegen_content_chars", Help: "Characters in the content blob before truncation", Buckets: prometheus.ExponentialBuckets(100, 4, 8)})

		prometheus.MustRegister(m.requests, m.inFlight, m.requestDuration, m.generations, m.generationDuration, m.contentChars)
	})
}

// record helpers - used by Service and Generator

func recordRequestStart() { rdMetrics.init(); rdMetrics.inFlight.Inc() }

func recordRequestEnd(err error, d time.Duration) {
	rdMetrics.init()
	rdMetrics.inFlight.Dec()
	outcome := "success"
	if err != nil {
		outcome = string(errors.KindOf(err))
	}
	rdMetrics.requests.WithLabelValues(outcome).Inc()
	rdMetrics.requestDuration.Observe(d.Seconds())
}

func recordGeneration(ok bool, d time.Duration) {
	rdMetrics.init()
	result := "ok"
	if !ok {
		result = "error"
	}
	rdMetrics.generations.WithLabelValues(result).Inc()
	rdMetrics.generationDuration.Observe(d.Seconds())
}

func recordContent(chars int) { rdMetrics.init(); rdMetrics.contentChars.Observe(float64(chars)) }

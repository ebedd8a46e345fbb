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

package server

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsHTTP holds Prometheus metrics for the HTTP surface.
type metricsHTTP struct {
	once sync.Once

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	queued   prometheus.Gauge
	streams  prometheus.Gauge
}

var httpMetrics metricsHTTP

func (m *metricsHTTP) init() {
	m.once.Do(func() {
		m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "readmegen_http_requests_total", Help: "HTTP requests by route and status"}, []string{"route", "status"})
		m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "readmegen_http_request_seconds", Help: "HTTP request duration by route", Buckets: prometheus.DefBuckets}, []string{"route"})
		m.queued = prometheus.NewGauge(prometheus.GaugeOpts{Name: "readmegen_http_queued_requests", Help: "Generation requests waiting for a slot"})
		m.streams = prometheus.NewGauge(prometheus.GaugeOpts{Name: "readmegen_http_open_streams", Help: "Open progress streams"})

		prometheus.MustRegister(m.requests, m.duration, m.queued, m.streams)
	})
}

func recordHTTP(route string, status int, d time.Duration) {
	httpMetrics.init()
	if route == "" {
		route = "unmatched"
	}
	httpMetrics.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	httpMetrics.duration.WithLabelValues(route).Observe(d.Seconds())
}

func recordQueued(delta float64) { httpMetrics.init(); httpMetrics.queued.Add(delta) }

func recordStream(delta float64) { httpMetrics.init(); httpMetrics.streams.Add(delta) }

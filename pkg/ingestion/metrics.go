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

package ingestion

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsIngestion holds Prometheus metrics for the ingestion subsystem.
type metricsIngestion struct {
	once sync.Once

	// Archives
	archivesExtracted prometheus.Counter
	archivesRejected  prometheus.Counter
	archiveBytes      prometheus.Counter

	// Clones
	clonesSucceeded prometheus.Counter
	clonesFailed    prometheus.Counter

	// Scanner
	filesIncluded *prometheus.CounterVec
	filesSkipped  *prometheus.CounterVec
	bytesIncluded prometheus.Counter

	// Workspaces
	workspacesCreated prometheus.Counter
	cleanupRetries    prometheus.Counter
	cleanupErrors     prometheus.Counter

	// Durations
	extractDuration prometheus.Histogram
	cloneDuration   prometheus.Histogram
	scanDuration    prometheus.Histogram
}

var ingMetrics metricsIngestion

func (m *metricsIngestion) init() {
	m.once.Do(func() {
		m.archivesExtracted = prometheus.NewCounter(prometheus.CounterOpts{Name: "readmegen_ing_archives_extracted_total", Help: "ZIP archives extracted"})
		m.archivesRejected = prometheus.NewCounter(prometheus.CounterOpts{Name: "readmegen_ing_archives_rejected_total", Help: "Uploads rejected as invalid or unsafe archives"})
		m.archiveBytes = prometheus.NewCounter(prometheus.CounterOpts{Name: "readmegen_ing_archive_bytes_total", Help: "Uncompressed bytes written by archive extraction"})

		m.clonesSucceeded = prometheus.NewCounter(prometheus.CounterOpts{Name: "readmegen_ing_clones_succeeded_total", Help: "Shallow clones that completed"})
		m.clonesFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "readmegen_ing_clones_failed_total", Help: "Shallow clones that failed or were rejected"})

		m.filesIncluded = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "readmegen_ing_files_included_total", Help: "Files appended to the content blob, by extension"}, []string{"ext"})
		m.filesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "readmegen_ing_files_skipped_total", Help: "Allow-listed files skipped, by reason"}, []string{"reason"})
		m.bytesIncluded = prometheus.NewCounter(prometheus.CounterOpts{Name: "readmegen_ing_bytes_included_total", Help: "Decoded bytes appended to content blobs"})

		m.workspacesCreated = prometheus.NewCounter(prometheus.CounterOpts{Name: "readmegen_ing_workspaces_created_total", Help: "Scratch workspaces created"})
		m.cleanupRetries = prometheus.NewCounter(prometheus.CounterOpts{Name: "readmegen_ing_cleanup_retries_total", Help: "Workspace removals that needed permission remediation"})
		m.cleanupErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "readmegen_ing_cleanup_errors_total", Help: "Workspace removals that failed after remediation"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
		m.extractDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "readmegen_ing_extract_seconds", Help: "Archive extraction duration", Buckets: buckets})
		m.cloneDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "readmegen_ing_clone_seconds", Help: "Shallow clone duration", Buckets: buckets})
		m.scanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "readmegen_ing_scan_seconds", Help: "Project scan duration", Buckets: buckets})

		prometheus.MustRegister(
			m.archivesExtracted, m.archivesRejected, m.archiveBytes,
			m.clonesSucceeded, m.clonesFailed,
			m.filesIncluded, m.filesSkipped, m.bytesIncluded,
			m.workspacesCreated, m.cleanupRetries, m.cleanupErrors,
			m.extractDuration, m.cloneDuration, m.scanDuration,
		)
	})
}

// record helpers - used by the ingestion components
func recordArchiveExtracted(bytes int64, d time.Duration) {
	ingMetrics.init()
	ingMetrics.archivesExtracted.Inc()
	ingMetrics.archiveBytes.Add(float64(bytes))
	ingMetrics.extractDuration.Observe(d.Seconds())
}
func recordArchiveRejected() { ingMetrics.init(); ingMetrics.archivesRejected.Inc() }
func recordClone(ok bool, d time.Duration) {
	ingMetrics.init()
	if ok {
		ingMetrics.clonesSucceeded.Inc()
	} else {
		ingMetrics.clonesFailed.Inc()
	}
	ingMetrics.cloneDuration.Observe(d.Seconds())
}
func recordFileIncluded(ext string, bytes int) {
	ingMetrics.init()
	ingMetrics.filesIncluded.WithLabelValues(ext).Inc()
	ingMetrics.bytesIncluded.Add(float64(bytes))
}
func recordFileSkipped(reason string) { ingMetrics.init(); ingMetrics.filesSkipped.WithLabelValues(reason).Inc() }
func recordScan(d time.Duration)      { ingMetrics.init(); ingMetrics.scanDuration.Observe(d.Seconds()) }
func recordWorkspaceCreated()         { ingMetrics.init(); ingMetrics.workspacesCreated.Inc() }
func recordCleanupRetry()             { ingMetrics.init(); ingMetrics.cleanupRetries.Inc() }
func recordCleanupError()             { ingMetrics.init(); ingMetrics.cleanupErrors.Inc() }

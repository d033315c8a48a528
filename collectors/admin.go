/*
 * This file is part of Chihaya.
 *
 * Chihaya is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * Chihaya is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with Chihaya.  If not, see <http://www.gnu.org/licenses/>.
 */

package collectors

import (
	"privateannounce/log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type AdminCollector struct {
	deadlockTimeMetric    *prometheus.Desc
	deadlockCountMetric   *prometheus.Desc
	deadlockAbortedMetric *prometheus.Desc
	sqlErrorCountMetric   *prometheus.Desc
	erroredRequestsMetric *prometheus.Desc

	serializationTimeSummary *prometheus.Histogram
	reloadTimeSummary        *prometheus.HistogramVec
	flushTimeSummary         *prometheus.HistogramVec

	peersQueueLenHistogram     *prometheus.Histogram
	historiesQueueLenHistogram *prometheus.Histogram
	torrentsQueueLenHistogram  *prometheus.Histogram
	usersQueueLenHistogram     *prometheus.Histogram
}

var (
	peersQueueLenBuckets     int
	historiesQueueLenBuckets int
	torrentsQueueLenBuckets  int
	usersQueueLenBuckets     int
)

var (
	serializationTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_serialization_seconds",
		Help:    "Histogram of the time taken to serialize the in-memory cache to disk",
		Buckets: []float64{.25, .5, 1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5},
	})
	reloadTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracker_reload_seconds",
		Help:    "Histogram of the time taken to reload data from the database",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"type"})
	flushTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracker_flush_seconds",
		Help:    "Histogram of the time taken to flush a queue's batch to the database",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"type"})

	peersQueueLen     prometheus.Histogram
	historiesQueueLen prometheus.Histogram
	torrentsQueueLen  prometheus.Histogram
	usersQueueLen     prometheus.Histogram

	deadlockTime    = time.Duration(0)
	deadlockCount   = 0
	deadlockAborted = 0
	sqlErrorCount   = 0
	erroredRequests = 0
)

func init() {
	peersQueueLenBuckets = 5000
	historiesQueueLenBuckets = 5000
	torrentsQueueLenBuckets = 5000
	usersQueueLenBuckets = 5000

	peersQueueLen = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_peers_queue_len",
		Help:    "Histogram representing the peer update queue's length at flush time",
		Buckets: prometheus.LinearBuckets(0, float64(peersQueueLenBuckets)*0.05, 20),
	})
	historiesQueueLen = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_histories_queue_len",
		Help:    "Histogram representing the history update queue's length at flush time",
		Buckets: prometheus.LinearBuckets(0, float64(historiesQueueLenBuckets)*0.05, 20),
	})
	torrentsQueueLen = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_torrents_queue_len",
		Help:    "Histogram representing the torrent update queue's length at flush time",
		Buckets: prometheus.LinearBuckets(0, float64(torrentsQueueLenBuckets)*0.05, 20),
	})
	usersQueueLen = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_users_queue_len",
		Help:    "Histogram representing the user update queue's length at flush time",
		Buckets: prometheus.LinearBuckets(0, float64(usersQueueLenBuckets)*0.05, 20),
	})
}

func NewAdminCollector() *AdminCollector {
	return &AdminCollector{
		deadlockCountMetric: prometheus.NewDesc("tracker_deadlock_count",
			"Number of unique database deadlocks encountered", nil, nil),
		deadlockTimeMetric: prometheus.NewDesc("tracker_deadlock_seconds_total",
			"Total time wasted awaiting to free deadlock", nil, nil),
		deadlockAbortedMetric: prometheus.NewDesc("tracker_deadlock_aborted",
			"Number of database operations abandoned after exhausting deadlock retries", nil, nil),
		sqlErrorCountMetric: prometheus.NewDesc("tracker_sql_error_count",
			"Number of non-deadlock SQL errors encountered", nil, nil),
		erroredRequestsMetric: prometheus.NewDesc("tracker_requests_fail",
			"Number of failed requests", nil, nil),

		peersQueueLenHistogram:     &peersQueueLen,
		historiesQueueLenHistogram: &historiesQueueLen,
		torrentsQueueLenHistogram:  &torrentsQueueLen,
		usersQueueLenHistogram:     &usersQueueLen,

		serializationTimeSummary: &serializationTime,
		reloadTimeSummary:        reloadTime,
		flushTimeSummary:         flushTime,
	}
}

func (collector *AdminCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.deadlockTimeMetric
	ch <- collector.deadlockCountMetric
	ch <- collector.deadlockAbortedMetric
	ch <- collector.sqlErrorCountMetric
	ch <- collector.erroredRequestsMetric

	serializationTime.Describe(ch)
	reloadTime.Describe(ch)
	flushTime.Describe(ch)

	peersQueueLen.Describe(ch)
	historiesQueueLen.Describe(ch)
	torrentsQueueLen.Describe(ch)
	usersQueueLen.Describe(ch)
}

func (collector *AdminCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(collector.deadlockCountMetric, prometheus.CounterValue, float64(deadlockCount))
	ch <- prometheus.MustNewConstMetric(collector.deadlockTimeMetric, prometheus.CounterValue, deadlockTime.Seconds())
	ch <- prometheus.MustNewConstMetric(collector.deadlockAbortedMetric, prometheus.CounterValue, float64(deadlockAborted))
	ch <- prometheus.MustNewConstMetric(collector.sqlErrorCountMetric, prometheus.CounterValue, float64(sqlErrorCount))
	ch <- prometheus.MustNewConstMetric(collector.erroredRequestsMetric, prometheus.CounterValue, float64(erroredRequests))

	serializationTime.Collect(ch)
	reloadTime.Collect(ch)
	flushTime.Collect(ch)

	peersQueueLen.Collect(ch)
	historiesQueueLen.Collect(ch)
	torrentsQueueLen.Collect(ch)
	usersQueueLen.Collect(ch)
}

func IncrementDeadlockCount() {
	deadlockCount++
}

func IncrementDeadlockTime(time time.Duration) {
	deadlockTime += time
}

func IncrementDeadlockAborted() {
	deadlockAborted++
}

func IncrementSQLErrorCount() {
	sqlErrorCount++
}

func IncrementErroredRequests() {
	erroredRequests++
}

func UpdateSerializationTime(time time.Duration) {
	serializationTime.Observe(time.Seconds())
}

// UpdateFlushTime records how long one queue's batch took to reach the
// database. flushType is a free-form label (e.g. "peers", "torrents",
// "announces") rather than a fixed set, since every queue kind reports
// through the same histogram vector.
func UpdateFlushTime(flushType string, time time.Duration) {
	flushTime.WithLabelValues(flushType).Observe(time.Seconds())
}

func UpdateReloadTime(reloadType string, time time.Duration) {
	reloadTime.WithLabelValues(reloadType).Observe(time.Seconds())
}

// UpdateChannelsLen records a queue's length at flush time. Only the
// four coalescing queues with meaningful steady-state backlogs get a
// dedicated histogram; an unrecognised name is logged rather than
// silently dropped so a renamed queue doesn't go dark.
func UpdateChannelsLen(channelType string, length int) {
	switch channelType {
	case "peers":
		peersQueueLen.Observe(float64(length))
	case "histories":
		historiesQueueLen.Observe(float64(length))
	case "torrents":
		torrentsQueueLen.Observe(float64(length))
	case "users":
		usersQueueLen.Observe(float64(length))
	default:
		log.Error.Printf("Trying to update channel length for unknown type %s", channelType)
		log.WriteStack()
	}
}

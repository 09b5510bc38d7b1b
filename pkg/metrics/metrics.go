// Package metrics provides centralized Prometheus metrics registry for ajaxctl.
// All metrics are defined in their respective packages (session, pagination,
// batch, checkpoint, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation for all available metrics and the
// HTTP endpoint exposing them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by ajaxctl.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry the /metrics endpoint reads from.
var Gatherer = prometheus.DefaultGatherer

// Metrics Documentation
//
// Request Metrics (pkg/session):
//   - ajax_requests_total{method, status} (Counter): AJAX requests by method and HTTP status
//   - ajax_request_duration_seconds{method} (Histogram): Request duration by method
//   - ajax_errors_total{class} (Counter): Failures by class (client, server, network, malformed_body)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - ajax_rate_limit_remaining (Gauge): Requests remaining in the current window
//   - ajax_rate_limit_pauses_total (Counter): Pauses taken because the window was nearly spent
//   - ajax_rate_limit_pause_seconds (Histogram): Pause durations
//
// Collection Metrics (pkg/pagination):
//   - pagination_pages_fetched_total{resource} (Counter): Resource pages fetched
//   - pagination_records_collected_total{resource} (Counter): Records returned by collections
//   - pagination_collect_duration_seconds{resource} (Histogram): Collection duration
//
// Batch Metrics (pkg/batch):
//   - batch_outcomes_total{result} (Counter): Records processed by result (succeeded, remote_failure, failed)
//   - batch_run_duration_seconds (Histogram): Batch run duration
//
// Checkpoint Metrics (pkg/checkpoint):
//   - checkpoint_hits_total (Counter): Resume points found
//   - checkpoint_misses_total (Counter): Lookups without a resume point
//   - checkpoint_errors_total{operation} (Counter): Redis operation errors
//
// Example Prometheus Queries:
//
//   # Batch failure ratio
//   sum(rate(batch_outcomes_total{result!="succeeded"}[5m])) /
//   sum(rate(batch_outcomes_total[5m]))
//
//   # Rate limit headroom
//   ajax_rate_limit_remaining < 10
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ajax_request_duration_seconds_bucket[5m]))

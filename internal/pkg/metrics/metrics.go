// Package metrics defines and registers all custom Prometheus metrics of the
// intake API. It is the single source of truth for metric names, labels and
// help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric of the service.
const Namespace = "intake"

const namespace = Namespace

// ── Auth metrics ─────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts.
// Labels:
//   - role: the namespace logged into (applicant, admin, assessor)
//   - result: "success", "invalid" or "locked"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by role and result.",
	},
	[]string{"role", "result"},
)

// ── Document metrics ─────────────────────────────────────────────────────────

// DocumentsSubmittedTotal counts documents committed by the submission pipeline.
var DocumentsSubmittedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "documents_submitted_total",
		Help:      "Total number of documents committed.",
	},
)

// BatchesRejectedTotal counts submission batches that were not committed.
// Label:
//   - reason: "validation", "blob_write" or "commit"
var BatchesRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_rejected_total",
		Help:      "Total number of submission batches rejected, by reason.",
	},
	[]string{"reason"},
)

// ReviewDecisionsTotal counts review status transitions.
// Label:
//   - status: "accepted" or "rejected"
var ReviewDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "review_decisions_total",
		Help:      "Total number of review decisions, by resulting status.",
	},
	[]string{"status"},
)

// DocumentDeletesTotal counts delete outcomes.
// Label:
//   - result: "deleted", "rolled_back" or "orphaned"
var DocumentDeletesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "document_deletes_total",
		Help:      "Total number of document deletions, by result.",
	},
	[]string{"result"},
)

// BlobOperationDuration measures blob store round trips.
// Label:
//   - op: "put", "get", "delete" or "list"
var BlobOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "blob_operation_duration_seconds",
		Help:      "Duration of blob store operations.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"op"},
)

// ── Orphan reaper metrics ────────────────────────────────────────────────────

// OrphansReapedTotal counts orphan blobs handled by the reaper.
// Label:
//   - result: "removed", "kept" (metadata exists) or "failed"
var OrphansReapedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orphans_reaped_total",
		Help:      "Total number of orphan blob keys processed, by result.",
	},
	[]string{"result"},
)

// OrphanQueueDepth tracks keys waiting in each reaper worker channel.
var OrphanQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "orphan_queue_depth",
		Help:      "Current number of orphan keys pending in each reaper worker channel.",
	},
	[]string{"worker_id"},
)

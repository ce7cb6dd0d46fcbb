// Package metrics defines and registers all custom Prometheus metrics for the
// registry API. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry at import time
// via promauto; the /metrics endpoint exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "registry"

// ── Credential metrics ────────────────────────────────────────────────────────

// CredentialsGeneratedTotal counts credential records created.
var CredentialsGeneratedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credentials_generated_total",
		Help:      "Total number of credential records generated.",
	},
)

// VerificationRequestsTotal counts verification submissions, including the
// double submissions that short-circuit as no-ops.
var VerificationRequestsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verification_requests_total",
		Help:      "Total number of verification requests submitted.",
	},
)

// VerificationDecisionsTotal counts admin decisions.
// Label:
//   - decision: "approved" or "rejected"
var VerificationDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verification_decisions_total",
		Help:      "Total number of admin verification decisions, by outcome.",
	},
	[]string{"decision"},
)

// ── Update protocol metrics ───────────────────────────────────────────────────

// UpdateRetriesTotal counts conflict retries taken by the safe writer.
var UpdateRetriesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "update_retries_total",
		Help:      "Total number of document update retries after a store conflict.",
	},
)

// SchemaFallbacksTotal counts writes that had to be filtered down to the
// collection's accepted attributes.
var SchemaFallbacksTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schema_fallbacks_total",
		Help:      "Total number of writes retried with schema-filtered attributes.",
	},
)

// ── Notification metrics ──────────────────────────────────────────────────────

// NotificationsDerivedTotal counts alerts produced by derivation.
// Label:
//   - type: "rejection", "approval", "reminder", or "info"
var NotificationsDerivedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_derived_total",
		Help:      "Total number of notifications derived, by type.",
	},
	[]string{"type"},
)

// StateKeysSweptTotal counts stale notification state keys removed by the
// retention sweep.
var StateKeysSweptTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "state_keys_swept_total",
		Help:      "Total number of stale notification state keys removed.",
	},
)

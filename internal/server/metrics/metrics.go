// Package metrics holds the Prometheus collectors of the auth core.
package metrics

import (
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/prometheus/client_golang/prometheus"
)

// ResultSuccess labels a flow that returned no error. Failed flows are
// labelled with common.Kind of their error.
const ResultSuccess = "success"

// AuthOperations counts orchestrator flows by operation and result.
var AuthOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gophauth_auth_operations_total",
		Help: "Total number of auth operations",
	},
	[]string{"operation", "result"},
)

var AuthDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "gophauth_auth_operation_duration_seconds",
		Help:    "Auth operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// TokensRevoked counts ledger rows flipped to revoked, by purpose.
var TokensRevoked = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gophauth_tokens_revoked_total",
		Help: "Total number of issued tokens revoked",
	},
	[]string{"purpose"},
)

// RegisterMetrics registers the collectors with reg. Panics on duplicate
// registration.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AuthOperations, AuthDuration, TokensRevoked)
}

// RecordOperation counts one flow outcome and its latency.
func RecordOperation(operation string, err error, duration time.Duration) {
	result := ResultSuccess
	if err != nil {
		result = common.Kind(err)
	}
	AuthOperations.WithLabelValues(operation, result).Inc()
	AuthDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func RecordRevoked(purpose string, n int64) {
	if n <= 0 {
		return
	}
	TokensRevoked.WithLabelValues(purpose).Add(float64(n))
}

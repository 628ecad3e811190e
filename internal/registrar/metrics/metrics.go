package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registrar module.
type Metrics struct {
	Mutations       *prometheus.CounterVec
	MutationErrors  *prometheus.CounterVec
	ListingDuration prometheus.Histogram
	SnapshotCache   *prometheus.CounterVec
	DomainsDeleted  prometheus.Counter
}

// New creates a new Metrics instance with all registrar module metrics
// registered.
func New() *Metrics {
	return &Metrics{
		Mutations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_domain_mutations_total",
			Help: "Registry mutations applied to managed domains, by kind",
		}, []string{"kind"}),
		MutationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_domain_mutation_errors_total",
			Help: "Registry mutations rejected by the registry, by kind",
		}, []string{"kind"}),
		ListingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_domain_listing_duration_seconds",
			Help:    "Duration of the per-user domain listing fan-out",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SnapshotCache: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_snapshot_cache_total",
			Help: "Registry snapshot cache lookups, by result",
		}, []string{"result"}),
		DomainsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_domains_deleted_total",
			Help: "Domains deleted at the registry through the portal",
		}),
	}
}

func (m *Metrics) ObserveMutation(kind string, err error) {
	m.Mutations.WithLabelValues(kind).Inc()
	if err != nil {
		m.MutationErrors.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ObserveCacheHit(hit bool) {
	if hit {
		m.SnapshotCache.WithLabelValues("hit").Inc()
		return
	}
	m.SnapshotCache.WithLabelValues("miss").Inc()
}

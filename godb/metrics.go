package godb

import "github.com/prometheus/client_golang/prometheus"

// poolMetrics instruments a single BufferPool. Each BufferPool owns its own
// collectors (rather than registering against the global default registry
// via promauto) so that tests can construct many independent pools without
// tripping prometheus's duplicate-registration panic; callers that want the
// numbers scraped can pull them into their own registry via Register.
type poolMetrics struct {
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	evictions    prometheus.Counter
	lockGrants   prometheus.Counter
	lockDenials  prometheus.Counter
	cachedPages  prometheus.Gauge
}

func newPoolMetrics() *poolMetrics {
	return &poolMetrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "godb_buffer_pool_cache_hits_total",
			Help: "Pages served from the buffer pool without a disk read.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "godb_buffer_pool_cache_misses_total",
			Help: "Pages served that required a disk read.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "godb_buffer_pool_evictions_total",
			Help: "Clean pages evicted to make room for a miss.",
		}),
		lockGrants: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "godb_lock_manager_grants_total",
			Help: "Lock acquisitions granted.",
		}),
		lockDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "godb_lock_manager_denials_total",
			Help: "Lock acquisition attempts that conflicted and were retried.",
		}),
		cachedPages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "godb_buffer_pool_cached_pages",
			Help: "Pages currently resident in the buffer pool.",
		}),
	}
}

// Register adds every collector in m to reg, so an embedding process can
// expose them on its own /metrics endpoint.
func (m *poolMetrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.cacheHits, m.cacheMisses, m.evictions,
		m.lockGrants, m.lockDenials, m.cachedPages,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

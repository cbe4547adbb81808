package database

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var poolMetricsOnce sync.Once

// registerPoolMetrics exposes the sql.DB pool counters. Called once from
// Open; a second Open reuses the first registration, which is fine for a
// process with a single database handle.
func (db *DB) registerPoolMetrics() {
	poolMetricsOnce.Do(func() {
		opts := func(name, help string) prometheus.GaugeOpts {
			return prometheus.GaugeOpts{
				Namespace: "craftdesk",
				Subsystem: "db",
				Name:      name,
				Help:      help,
			}
		}
		promauto.NewGaugeFunc(opts("pool_open_connections", "Open connections, in use and idle."),
			func() float64 { return float64(db.Stats().OpenConnections) })
		promauto.NewGaugeFunc(opts("pool_in_use_connections", "Connections currently executing."),
			func() float64 { return float64(db.Stats().InUse) })
		promauto.NewGaugeFunc(opts("pool_idle_connections", "Idle connections."),
			func() float64 { return float64(db.Stats().Idle) })
		promauto.NewGaugeFunc(opts("pool_max_open_connections", "Configured connection limit."),
			func() float64 { return float64(db.Stats().MaxOpenConnections) })
		promauto.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "craftdesk",
			Subsystem: "db",
			Name:      "pool_wait_total",
			Help:      "Times a query waited for a free connection.",
		}, func() float64 { return float64(db.Stats().WaitCount) })
	})
}

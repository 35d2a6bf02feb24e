package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStats is the subset of *pgxpool.Stat exported as metrics.
type PoolStats interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
	MaxConns() int32
	AcquireCount() int64
	EmptyAcquireCount() int64
	CanceledAcquireCount() int64
}

// PoolStatsCollector implements prometheus.Collector for connection pool
// metrics. Blacklist lookups run on every authenticated request, so pool
// saturation shows up here before it shows up as 503s.
type PoolStatsCollector struct {
	stat    func() PoolStats
	service string

	acquired *prometheus.Desc
	idle     *prometheus.Desc
	total    *prometheus.Desc
	max      *prometheus.Desc
	acquires *prometheus.Desc
	waits    *prometheus.Desc
	canceled *prometheus.Desc
}

// NewPoolStatsCollector returns a collector reading pool.Stat on each scrape.
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	return newPoolStatsCollector(func() PoolStats { return pool.Stat() }, service)
}

func newPoolStatsCollector(stat func() PoolStats, service string) *PoolStatsCollector {
	labels := []string{"service"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("authcore_db_pool_"+name, help, labels, nil)
	}
	return &PoolStatsCollector{
		stat:     stat,
		service:  service,
		acquired: desc("acquired_connections", "Number of currently acquired connections"),
		idle:     desc("idle_connections", "Number of currently idle connections"),
		total:    desc("total_connections", "Total number of connections in the pool"),
		max:      desc("max_connections", "Maximum number of connections allowed"),
		acquires: desc("acquire_count_total", "Total number of connection acquires"),
		waits:    desc("empty_acquire_count_total", "Total number of acquires that had to wait for a connection"),
		canceled: desc("canceled_acquire_count_total", "Total number of canceled connection acquires"),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.max
	ch <- c.acquires
	ch <- c.waits
	ch <- c.canceled
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stat()
	gauge := func(d *prometheus.Desc, v int32) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), c.service)
	}
	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), c.service)
	}

	gauge(c.acquired, s.AcquiredConns())
	gauge(c.idle, s.IdleConns())
	gauge(c.total, s.TotalConns())
	gauge(c.max, s.MaxConns())
	counter(c.acquires, s.AcquireCount())
	counter(c.waits, s.EmptyAcquireCount())
	counter(c.canceled, s.CanceledAcquireCount())
}

// RegisterPoolMetrics registers a pool collector with the default registry.
func RegisterPoolMetrics(pool *pgxpool.Pool, service string) {
	prometheus.MustRegister(NewPoolStatsCollector(pool, service))
}

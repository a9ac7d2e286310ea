// File: internal/metrics/manager.go
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Manager handles all application metrics
type Manager struct {
	metrics   *Metrics
	logger    *logrus.Entry
	startTime time.Time
}

// NewManager creates a new metrics manager
func NewManager() *Manager {
	return &Manager{
		metrics:   NewMetrics(),
		logger:    logrus.WithField("component", "metrics"),
		startTime: time.Now(),
	}
}

// GetMetrics returns the Prometheus metrics instance
func (m *Manager) GetMetrics() *Metrics {
	return m.metrics
}

// UpdateSystemMetrics updates memory, goroutine, and uptime gauges
func (m *Manager) UpdateSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.metrics.MemoryUsage.Set(float64(memStats.Alloc))
	m.metrics.GoroutineCount.Set(float64(runtime.NumGoroutine()))
	m.metrics.Uptime.Set(time.Since(m.startTime).Seconds())
}

// Run updates system metrics periodically until the context is cancelled
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.WithField("interval", interval).Debug("System metrics collection started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.UpdateSystemMetrics()
		}
	}
}

// File: internal/poller/poller.go
package poller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/sirupsen/logrus"

	"github.com/auspex-monitoring/auspex/internal/alerting"
	"github.com/auspex-monitoring/auspex/internal/config"
	"github.com/auspex-monitoring/auspex/internal/metrics"
	"github.com/auspex-monitoring/auspex/internal/models"
	"github.com/auspex-monitoring/auspex/internal/storage"
	"github.com/auspex-monitoring/auspex/pkg/utils"
)

// Standard MIB-II system OIDs queried on every poll.
const (
	oidSysDescr  = "1.3.6.1.2.1.1.1.0"
	oidSysUpTime = "1.3.6.1.2.1.1.3.0"
	oidSysName   = "1.3.6.1.2.1.1.5.0"
)

// Poller periodically polls every enabled target over SNMP, persists the
// observation, and hands it to the alert engine. Polls across targets run
// concurrently up to the configured ceiling.
type Poller struct {
	config  *config.PollerConfig
	store   storage.Store
	engine  *alerting.Engine
	metrics *metrics.Metrics
	logger  *logrus.Entry

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stats   PollerStats
}

// PollerStats provides poller statistics
type PollerStats struct {
	CyclesCompleted uint64     `json:"cycles_completed"`
	PollsTotal      uint64     `json:"polls_total"`
	PollsUp         uint64     `json:"polls_up"`
	PollsDown       uint64     `json:"polls_down"`
	LastCycle       *time.Time `json:"last_cycle,omitempty"`
}

// NewPoller creates an SNMP poller
func NewPoller(cfg *config.PollerConfig, store storage.Store, engine *alerting.Engine, m *metrics.Metrics) *Poller {
	return &Poller{
		config:  cfg,
		store:   store,
		engine:  engine,
		metrics: m,
		logger:  utils.GetLogger().WithField("component", "poller"),
	}
}

// Start launches the polling loop
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(1)
	go p.loop(loopCtx)

	p.logger.WithFields(logrus.Fields{
		"interval":        p.config.Interval,
		"max_concurrent":  p.config.MaxConcurrentPolls,
		"request_timeout": p.config.RequestTimeout,
	}).Info("Poller started")
	return nil
}

// Stop stops the polling loop and waits for in-flight polls to finish
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.logger.Info("Poller stopped")
	return nil
}

// IsHealthy reports whether the polling loop is running
func (p *Poller) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// GetStats returns a snapshot of poller statistics
func (p *Poller) GetStats() PollerStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// First cycle runs immediately rather than one interval in.
	p.pollAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

// pollAll polls every enabled target once, bounded by a worker semaphore
func (p *Poller) pollAll(ctx context.Context) {
	enabled := true
	targets, err := p.store.GetTargets(ctx, &enabled)
	if err != nil {
		p.logger.WithError(err).Error("Failed to load targets for poll cycle")
		return
	}

	sem := make(chan struct{}, p.config.MaxConcurrentPolls)
	var wg sync.WaitGroup
	for _, target := range targets {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(target *models.Target) {
			defer wg.Done()
			defer func() { <-sem }()
			p.pollTarget(ctx, target)
		}(target)
	}
	wg.Wait()

	now := time.Now().UTC()
	p.mu.Lock()
	p.stats.CyclesCompleted++
	p.stats.LastCycle = &now
	p.mu.Unlock()
}

// pollTarget performs one SNMP GET, persists the observation, and feeds it
// to the alert engine
func (p *Poller) pollTarget(ctx context.Context, target *models.Target) {
	observation := p.probe(target)

	if p.metrics != nil {
		var duration time.Duration
		if observation.LatencyMs != nil {
			duration = time.Duration(*observation.LatencyMs) * time.Millisecond
		}
		p.metrics.RecordPoll(string(observation.Status), duration)
		p.metrics.UpdateTargetStatus(target.Name, observation.Status == models.StatusUp)
	}

	p.mu.Lock()
	p.stats.PollsTotal++
	if observation.Status == models.StatusUp {
		p.stats.PollsUp++
	} else {
		p.stats.PollsDown++
	}
	p.mu.Unlock()

	if err := p.store.SavePollResult(ctx, observation); err != nil {
		p.logger.WithError(err).WithField("target", target.Name).Error("Failed to persist poll result")
		return
	}

	if p.engine != nil {
		if err := p.engine.OnPollResult(ctx, observation); err != nil {
			p.logger.WithError(err).WithField("target", target.Name).Error("Alert evaluation failed")
		}
	}
}

// probe runs the SNMP GET against the target's system OIDs
func (p *Poller) probe(target *models.Target) *models.PollResult {
	observation := &models.PollResult{
		TargetID: target.ID,
		PolledAt: time.Now().UTC(),
	}

	client := &gosnmp.GoSNMP{
		Target:    target.Host,
		Port:      uint16(target.Port),
		Community: target.Community,
		Version:   snmpVersion(target.SNMPVersion),
		Timeout:   p.config.RequestTimeout,
		Retries:   p.config.Retries,
	}

	start := time.Now()
	if err := client.Connect(); err != nil {
		observation.Status = models.StatusDown
		observation.Message = fmt.Sprintf("connect failed: %v", err)
		return observation
	}
	defer client.Conn.Close()

	result, err := client.Get([]string{oidSysDescr, oidSysUpTime, oidSysName})
	latency := int(time.Since(start).Milliseconds())
	if err != nil {
		observation.Status = models.StatusDown
		observation.Message = fmt.Sprintf("snmp get failed: %v", err)
		return observation
	}

	observation.Status = models.StatusUp
	observation.LatencyMs = &latency
	observation.Message = describeSystem(result)
	return observation
}

// describeSystem extracts a short description from the GET response
func describeSystem(packet *gosnmp.SnmpPacket) string {
	var name, descr string
	for _, variable := range packet.Variables {
		value, ok := variable.Value.([]byte)
		if !ok {
			continue
		}
		switch {
		case strings.HasSuffix(variable.Name, oidSysName):
			name = string(value)
		case strings.HasSuffix(variable.Name, oidSysDescr):
			descr = string(value)
		}
	}

	switch {
	case name != "" && descr != "":
		if i := strings.IndexByte(descr, '\n'); i >= 0 {
			descr = descr[:i]
		}
		return fmt.Sprintf("%s: %s", name, descr)
	case name != "":
		return name
	default:
		return descr
	}
}

func snmpVersion(version string) gosnmp.SnmpVersion {
	switch version {
	case "1":
		return gosnmp.Version1
	default:
		return gosnmp.Version2c
	}
}

// File: internal/alerting/engine.go
package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/auspex-monitoring/auspex/internal/config"
	"github.com/auspex-monitoring/auspex/internal/metrics"
	"github.com/auspex-monitoring/auspex/internal/models"
	"github.com/auspex-monitoring/auspex/internal/notification"
	"github.com/auspex-monitoring/auspex/internal/rules"
	"github.com/auspex-monitoring/auspex/internal/storage"
	"github.com/auspex-monitoring/auspex/internal/suppression"
	"github.com/auspex-monitoring/auspex/pkg/utils"
)

// Engine is the evaluation orchestrator: it drives one full evaluation per
// incoming poll observation, sequencing rule matching, lifecycle
// transitions, suppression checks, and delivery dispatch.
//
// Concurrency model: observations for different targets evaluate in
// parallel up to the configured ceiling; the (target, rule) pair lock
// serializes only the lifecycle read-check-write. The lock is never held
// across dispatch, so a slow channel cannot delay state truth.
type Engine struct {
	config      *config.EngineConfig
	store       storage.Store
	matcher     *rules.Matcher
	suppression *suppression.Evaluator
	lifecycle   *LifecycleManager
	dispatcher  *notification.Dispatcher
	locks       *LockTable
	metrics     *metrics.Metrics
	logger      *logrus.Entry

	sem chan struct{}

	mu      sync.RWMutex
	running bool
	stats   EngineStats
}

// EngineStats provides engine statistics
type EngineStats struct {
	EvaluationsTotal  uint64     `json:"evaluations_total"`
	EvaluationsFailed uint64     `json:"evaluations_failed"`
	AlertsOpened      uint64     `json:"alerts_opened"`
	AlertsResolved    uint64     `json:"alerts_resolved"`
	EventsSuppressed  uint64     `json:"events_suppressed"`
	LastEvaluation    *time.Time `json:"last_evaluation,omitempty"`
}

// NewEngine creates the evaluation orchestrator
func NewEngine(cfg *config.EngineConfig, store storage.Store, dispatcher *notification.Dispatcher, m *metrics.Metrics) *Engine {
	maxConcurrent := cfg.MaxConcurrentEvaluations
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Engine{
		config:      cfg,
		store:       store,
		matcher:     rules.NewMatcher(),
		suppression: suppression.NewEvaluator(),
		lifecycle:   NewLifecycleManager(store, m),
		dispatcher:  dispatcher,
		locks:       NewLockTable(),
		metrics:     m,
		logger:      utils.GetLogger().WithField("component", "engine"),
		sem:         make(chan struct{}, maxConcurrent),
	}
}

// Start marks the engine as running
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	e.running = true
	e.logger.WithField("max_concurrent", cap(e.sem)).Info("Alert engine started")
	return nil
}

// Stop marks the engine as stopped; in-flight evaluations drain naturally
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	e.running = false
	e.logger.Info("Alert engine stopped")
	return nil
}

// IsHealthy reports whether the engine accepts observations
func (e *Engine) IsHealthy() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// GetStats returns a snapshot of engine statistics
func (e *Engine) GetStats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// OnPollResult runs one full evaluation for an observation. Failures for
// one rule do not block the remaining rules; the observation as a whole is
// reported failed if any rule failed, so the caller may retry it.
func (e *Engine) OnPollResult(ctx context.Context, observation *models.PollResult) error {
	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	if !running {
		return utils.NewAppError(utils.ErrCodeInternal, "alert engine is not running")
	}

	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return ctx.Err()
	}

	if e.config.EvaluationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.EvaluationTimeout)
		defer cancel()
	}

	start := time.Now()
	err := e.evaluate(ctx, observation)
	duration := time.Since(start)

	result := "success"
	if err != nil {
		result = "failure"
	}
	if e.metrics != nil {
		e.metrics.RecordEvaluation(result, duration)
	}

	now := time.Now().UTC()
	e.mu.Lock()
	e.stats.EvaluationsTotal++
	if err != nil {
		e.stats.EvaluationsFailed++
	}
	e.stats.LastEvaluation = &now
	e.mu.Unlock()

	return err
}

func (e *Engine) evaluate(ctx context.Context, observation *models.PollResult) error {
	logger := e.logger.WithFields(logrus.Fields{
		"target_id": observation.TargetID,
		"status":    observation.Status,
	})

	target, err := e.store.GetTarget(ctx, observation.TargetID)
	if err != nil {
		return err
	}

	previous, err := e.store.GetPreviousStatus(ctx, target.ID, observation.PolledAt)
	if err != nil {
		return err
	}

	candidates, err := e.store.GetEnabledRules(ctx, target.ID)
	if err != nil {
		return err
	}

	matched := e.matcher.Match(candidates, previous, observation.Status)
	if len(matched) == 0 {
		logger.WithField("previous", previous).Debug("No rules matched")
		return nil
	}

	// One consistent suppression snapshot per observation: a window toggled
	// mid-evaluation cannot split the decision across rules.
	suppressions, err := e.store.GetEnabledSuppressions(ctx, target.ID)
	if err != nil {
		return err
	}
	suppressed := e.suppression.IsSuppressed(suppressions, observation.PolledAt)

	var failed int
	for _, rule := range matched {
		if err := e.evaluateRule(ctx, logger, target, rule, observation, suppressed); err != nil {
			failed++
			logger.WithError(err).WithField("rule_id", rule.ID).Error("Rule evaluation failed")
		}
	}
	if failed > 0 {
		return utils.NewAppError(utils.ErrCodeEvaluation,
			fmt.Sprintf("%d of %d rule evaluations failed", failed, len(matched)),
			fmt.Sprintf("target_id=%d", target.ID))
	}
	return nil
}

// evaluateRule commits the lifecycle transition under the pair lock, then
// dispatches with the lock released.
func (e *Engine) evaluateRule(ctx context.Context, logger *logrus.Entry, target *models.Target, rule *models.AlertRule, observation *models.PollResult, suppressed bool) error {
	unlock := e.locks.Lock(target.ID, rule.ID)
	transition, err := e.lifecycle.Apply(ctx, target, rule, observation)
	unlock()
	if err != nil {
		return err
	}
	if !transition.Changed() {
		return nil
	}

	e.mu.Lock()
	switch transition.Kind {
	case TransitionOpened:
		e.stats.AlertsOpened++
	case TransitionResolved:
		e.stats.AlertsResolved++
	}
	e.mu.Unlock()

	// Suppression affects notification, not alert truth: state was
	// committed above, only delivery is withheld, and it is not replayed
	// when the window lapses.
	if suppressed {
		if e.metrics != nil {
			e.metrics.RecordSuppressed()
		}
		e.mu.Lock()
		e.stats.EventsSuppressed++
		e.mu.Unlock()
		logger.WithFields(logrus.Fields{
			"rule_id":    rule.ID,
			"transition": transition.Kind,
		}).Info("Alert event suppressed, skipping delivery")
		return nil
	}

	if e.dispatcher == nil || len(rule.Channels) == 0 {
		return nil
	}

	channels, err := e.store.GetChannels(ctx, rule.Channels)
	if err != nil {
		// Lifecycle truth is already recorded; a channel lookup failure
		// only degrades notification.
		logger.WithError(err).WithField("rule_id", rule.ID).Error("Failed to load channels for dispatch")
		return nil
	}

	eventKind := notification.EventTriggered
	if transition.Kind == TransitionResolved {
		eventKind = notification.EventResolved
	}
	e.dispatcher.Dispatch(ctx, rule.Channels, channels, &notification.AlertMessage{
		EventKind: eventKind,
		Alert:     transition.Alert,
		Target:    target,
		Rule:      rule,
		Timestamp: observation.PolledAt,
	})
	return nil
}

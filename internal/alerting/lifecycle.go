// File: internal/alerting/lifecycle.go
package alerting

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/auspex-monitoring/auspex/internal/metrics"
	"github.com/auspex-monitoring/auspex/internal/models"
	"github.com/auspex-monitoring/auspex/internal/storage"
	"github.com/auspex-monitoring/auspex/pkg/utils"
)

// Transition kinds produced by the lifecycle manager.
const (
	TransitionOpened   = "opened"
	TransitionResolved = "resolved"
	TransitionNone     = "none"
)

// Transition describes the lifecycle outcome for one rule evaluation
type Transition struct {
	Kind  string               `json:"kind"`
	Alert *models.AlertHistory `json:"alert,omitempty"`
}

// Changed reports whether the evaluation actually moved the state machine.
func (t *Transition) Changed() bool {
	return t.Kind == TransitionOpened || t.Kind == TransitionResolved
}

// LifecycleManager owns the per-(target, rule) alert state machine: Inactive
// (no open row) and Active (one open row). Callers must hold the pair lock
// across Apply; the storage uniqueness constraint is the backstop if they
// do not.
type LifecycleManager struct {
	store   storage.Store
	metrics *metrics.Metrics
	logger  *logrus.Entry
}

// NewLifecycleManager creates a lifecycle manager
func NewLifecycleManager(store storage.Store, m *metrics.Metrics) *LifecycleManager {
	return &LifecycleManager{
		store:   store,
		metrics: m,
		logger:  utils.GetLogger().WithField("component", "lifecycle"),
	}
}

// Apply computes and commits the transition for one rule given the new
// observation. Repeated observations of the same status are no-ops, so a
// duplicated observation never produces a duplicate alert.
func (lm *LifecycleManager) Apply(ctx context.Context, target *models.Target, rule *models.AlertRule, observation *models.PollResult) (*Transition, error) {
	active, err := lm.store.GetActiveAlert(ctx, target.ID, rule.ID)
	if err != nil {
		return nil, err
	}

	switch observation.Status {
	case models.StatusDown:
		if active != nil {
			return &Transition{Kind: TransitionNone, Alert: active}, nil
		}
		return lm.open(ctx, target, rule, observation)
	case models.StatusUp:
		if active == nil {
			return &Transition{Kind: TransitionNone}, nil
		}
		return lm.resolve(ctx, target, active, observation)
	default:
		return &Transition{Kind: TransitionNone}, nil
	}
}

func (lm *LifecycleManager) open(ctx context.Context, target *models.Target, rule *models.AlertRule, observation *models.PollResult) (*Transition, error) {
	alert := &models.AlertHistory{
		TargetID:  target.ID,
		RuleID:    rule.ID,
		AlertType: models.AlertTypeDeviceDown,
		Severity:  rule.Severity,
		Message:   fmt.Sprintf("Target %s (%s) is DOWN - %s", target.Name, target.Host, observation.Message),
		FiredAt:   observation.PolledAt,
	}

	if err := lm.store.OpenAlert(ctx, alert); err != nil {
		// A concurrent evaluation won the race; the invariant held, so
		// this is a no-op rather than a failure.
		if utils.IsCode(err, utils.ErrCodeInvariant) {
			lm.logger.WithFields(logrus.Fields{
				"target_id": target.ID,
				"rule_id":   rule.ID,
			}).Warn("Active alert already exists, skipping open")
			return &Transition{Kind: TransitionNone}, nil
		}
		return nil, err
	}

	if lm.metrics != nil {
		lm.metrics.RecordAlertOpened()
	}
	lm.logger.WithFields(logrus.Fields{
		"alert_id":  alert.ID,
		"target_id": target.ID,
		"rule_id":   rule.ID,
		"severity":  alert.Severity,
	}).Info("Alert opened")

	return &Transition{Kind: TransitionOpened, Alert: alert}, nil
}

func (lm *LifecycleManager) resolve(ctx context.Context, target *models.Target, active *models.AlertHistory, observation *models.PollResult) (*Transition, error) {
	resolvedAt := observation.PolledAt
	if err := lm.store.ResolveAlert(ctx, active.ID, resolvedAt); err != nil {
		// Already resolved by a concurrent evaluation.
		if utils.IsCode(err, utils.ErrCodeNotFound) {
			return &Transition{Kind: TransitionNone}, nil
		}
		return nil, err
	}
	active.ResolvedAt = &resolvedAt

	// The in-memory copy carries the recovery text for notification; the
	// stored row keeps the original firing message.
	if observation.LatencyMs != nil {
		active.Message = fmt.Sprintf("Target %s (%s) is back UP (latency: %dms)", target.Name, target.Host, *observation.LatencyMs)
	} else {
		active.Message = fmt.Sprintf("Target %s (%s) is back UP", target.Name, target.Host)
	}

	if lm.metrics != nil {
		lm.metrics.RecordAlertResolved()
	}
	lm.logger.WithFields(logrus.Fields{
		"alert_id":  active.ID,
		"target_id": target.ID,
		"duration":  resolvedAt.Sub(active.FiredAt).String(),
	}).Info("Alert resolved")

	return &Transition{Kind: TransitionResolved, Alert: active}, nil
}

// ActiveFor is a read-only convenience used by the HTTP views.
func (lm *LifecycleManager) ActiveFor(ctx context.Context, targetID, ruleID int64) (*models.AlertHistory, error) {
	return lm.store.GetActiveAlert(ctx, targetID, ruleID)
}

// File: internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/auspex-monitoring/auspex/internal/models"
)

// Store defines the interface for monitoring and alerting persistence.
type Store interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Target operations
	SaveTarget(ctx context.Context, target *models.Target) error
	GetTarget(ctx context.Context, id int64) (*models.Target, error)
	GetTargets(ctx context.Context, enabled *bool) ([]*models.Target, error)
	DeleteTarget(ctx context.Context, id int64) error

	// Poll result operations. Results are append-only.
	SavePollResult(ctx context.Context, result *models.PollResult) error
	GetLatestPollResult(ctx context.Context, targetID int64) (*models.PollResult, error)
	// GetPreviousStatus returns the status of the last poll result for the
	// target strictly before the given time, or StatusUnknown when none
	// exists.
	GetPreviousStatus(ctx context.Context, targetID int64, before time.Time) (models.Status, error)
	GetPollResults(ctx context.Context, filter models.PollResultFilter) ([]*models.PollResult, error)

	// Rule, channel, and suppression snapshots read by the engine
	SaveRule(ctx context.Context, rule *models.AlertRule) error
	GetEnabledRules(ctx context.Context, targetID int64) ([]*models.AlertRule, error)
	SaveChannel(ctx context.Context, channel *models.AlertChannel) error
	GetChannels(ctx context.Context, ids []int64) ([]*models.AlertChannel, error)
	SaveSuppression(ctx context.Context, suppression *models.AlertSuppression) error
	// GetEnabledSuppressions returns enabled windows scoped to the target
	// plus global windows (nil target id).
	GetEnabledSuppressions(ctx context.Context, targetID int64) ([]*models.AlertSuppression, error)

	// Alert lifecycle operations. OpenAlert fails with ErrCodeInvariant if
	// an active row already exists for the (target, rule) pair.
	GetActiveAlert(ctx context.Context, targetID, ruleID int64) (*models.AlertHistory, error)
	OpenAlert(ctx context.Context, alert *models.AlertHistory) error
	ResolveAlert(ctx context.Context, alertID int64, at time.Time) error
	GetAlertHistory(ctx context.Context, filter models.AlertHistoryFilter) ([]*models.AlertHistory, error)

	// Delivery log. One row per attempt, retries included.
	SaveDelivery(ctx context.Context, delivery *models.AlertDelivery) error
	GetDeliveries(ctx context.Context, alertHistoryID int64) ([]*models.AlertDelivery, error)

	// Maintenance operations
	Cleanup(ctx context.Context, retentionDays int) error
	GetStorageStats(ctx context.Context) (*StorageStats, error)
	GetHealth() *StorageHealth
}

// StorageStats provides storage statistics
type StorageStats struct {
	TotalTargets     int64      `json:"total_targets"`
	TotalPollResults int64      `json:"total_poll_results"`
	TotalAlerts      int64      `json:"total_alerts"`
	ActiveAlerts     int64      `json:"active_alerts"`
	TotalDeliveries  int64      `json:"total_deliveries"`
	OldestPollResult *time.Time `json:"oldest_poll_result,omitempty"`
	LatestPollResult *time.Time `json:"latest_poll_result,omitempty"`
}

// StorageHealth describes the backend's health
type StorageHealth struct {
	StorageType string            `json:"storage_type"`
	Healthy     bool              `json:"healthy"`
	Details     map[string]string `json:"details,omitempty"`
	LastPing    time.Time         `json:"last_ping"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
	RetentionDays    int           `json:"retention_days"`
}

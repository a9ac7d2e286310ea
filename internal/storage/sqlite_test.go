// File: internal/storage/sqlite_test.go
package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auspex-monitoring/auspex/internal/models"
	"github.com/auspex-monitoring/auspex/pkg/utils"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()

	store := NewSQLiteStorage(&StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "test.db"),
		MaxIdleTime:      time.Minute,
	})
	require.NoError(t, store.Connect())
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })
	return store
}

func seedTarget(t *testing.T, store *SQLiteStorage) *models.Target {
	t.Helper()

	target := &models.Target{
		Name:        "core-sw-01",
		Host:        "192.168.1.10",
		Port:        161,
		Community:   "public",
		SNMPVersion: "2c",
		Enabled:     true,
	}
	require.NoError(t, store.SaveTarget(context.Background(), target))
	return target
}

func TestSQLiteTargetCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	target := seedTarget(t, store)
	require.NotZero(t, target.ID)

	got, err := store.GetTarget(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, "core-sw-01", got.Name)
	assert.Equal(t, "192.168.1.10", got.Host)

	got.Enabled = false
	require.NoError(t, store.SaveTarget(ctx, got))

	enabled := true
	targets, err := store.GetTargets(ctx, &enabled)
	require.NoError(t, err)
	assert.Empty(t, targets)

	require.NoError(t, store.DeleteTarget(ctx, target.ID))
	_, err = store.GetTarget(ctx, target.ID)
	assert.True(t, utils.IsCode(err, utils.ErrCodeNotFound))
}

func TestSQLitePreviousStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	target := seedTarget(t, store)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// No history yet: previous status is the unknown sentinel.
	status, err := store.GetPreviousStatus(ctx, target.ID, base)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnknown, status)

	latency := 12
	require.NoError(t, store.SavePollResult(ctx, &models.PollResult{
		TargetID:  target.ID,
		Status:    models.StatusUp,
		LatencyMs: &latency,
		PolledAt:  base,
	}))
	require.NoError(t, store.SavePollResult(ctx, &models.PollResult{
		TargetID: target.ID,
		Status:   models.StatusDown,
		Message:  "timeout",
		PolledAt: base.Add(time.Minute),
	}))

	// Strictly-before semantics: the observation at base is excluded when
	// asking at base itself.
	status, err = store.GetPreviousStatus(ctx, target.ID, base)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnknown, status)

	status, err = store.GetPreviousStatus(ctx, target.ID, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.StatusUp, status)

	status, err = store.GetPreviousStatus(ctx, target.ID, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.StatusDown, status)

	latest, err := store.GetLatestPollResult(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDown, latest.Status)
	assert.Nil(t, latest.LatencyMs)
}

func TestSQLiteRulesAndChannels(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	target := seedTarget(t, store)

	channel := &models.AlertChannel{
		Name:    "ops-email",
		Type:    "email",
		Config:  map[string]interface{}{"to": "ops@example.com"},
		Enabled: true,
	}
	require.NoError(t, store.SaveChannel(ctx, channel))

	rule := &models.AlertRule{
		TargetID: target.ID,
		Name:     "availability",
		RuleType: models.RuleTypeStatusChange,
		Severity: models.SeverityCritical,
		Enabled:  true,
		Channels: []int64{channel.ID},
	}
	require.NoError(t, store.SaveRule(ctx, rule))

	disabled := &models.AlertRule{
		TargetID: target.ID,
		Name:     "muted",
		RuleType: models.RuleTypeStatusChange,
		Severity: models.SeverityInfo,
		Enabled:  false,
	}
	require.NoError(t, store.SaveRule(ctx, disabled))

	rules, err := store.GetEnabledRules(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "availability", rules[0].Name)
	assert.Equal(t, []int64{channel.ID}, rules[0].Channels)

	channels, err := store.GetChannels(ctx, []int64{channel.ID, 9999})
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "ops@example.com", channels[0].Config["to"])
}

func TestSQLiteSuppressionScoping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	target := seedTarget(t, store)
	other := &models.Target{Name: "edge-rtr-01", Host: "10.0.0.1", Port: 161, Community: "public", SNMPVersion: "2c", Enabled: true}
	require.NoError(t, store.SaveTarget(ctx, other))

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Hour)

	global := &models.AlertSuppression{Name: "global-maint", StartTime: start, EndTime: end, Enabled: true}
	require.NoError(t, store.SaveSuppression(ctx, global))

	weekly := "weekly"
	scoped := &models.AlertSuppression{
		Name: "sw-backup", TargetID: &target.ID,
		StartTime: start, EndTime: end,
		Recurrence: &weekly, DaysOfWeek: []int{0, 6},
		Enabled: true,
	}
	require.NoError(t, store.SaveSuppression(ctx, scoped))

	disabled := &models.AlertSuppression{Name: "off", TargetID: &target.ID, StartTime: start, EndTime: end, Enabled: false}
	require.NoError(t, store.SaveSuppression(ctx, disabled))

	got, err := store.GetEnabledSuppressions(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []int{0, 6}, got[1].DaysOfWeek)

	// The other target only sees the global window.
	got, err = store.GetEnabledSuppressions(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "global-maint", got[0].Name)
}

func TestSQLiteActiveAlertUniqueness(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	target := seedTarget(t, store)

	rule := &models.AlertRule{TargetID: target.ID, Name: "availability", RuleType: models.RuleTypeStatusChange, Severity: models.SeverityCritical, Enabled: true}
	require.NoError(t, store.SaveRule(ctx, rule))

	firedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	alert := &models.AlertHistory{
		TargetID:  target.ID,
		RuleID:    rule.ID,
		AlertType: models.AlertTypeDeviceDown,
		Severity:  models.SeverityCritical,
		Message:   "Target core-sw-01 (192.168.1.10) is DOWN - timeout",
		FiredAt:   firedAt,
	}
	require.NoError(t, store.OpenAlert(ctx, alert))
	require.NotZero(t, alert.ID)

	// Second active row for the same pair violates the invariant.
	dup := &models.AlertHistory{TargetID: target.ID, RuleID: rule.ID, AlertType: models.AlertTypeDeviceDown, Severity: models.SeverityCritical, FiredAt: firedAt.Add(time.Minute)}
	err := store.OpenAlert(ctx, dup)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.ErrCodeInvariant))

	active, err := store.GetActiveAlert(ctx, target.ID, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, alert.ID, active.ID)

	resolvedAt := firedAt.Add(5 * time.Minute)
	require.NoError(t, store.ResolveAlert(ctx, alert.ID, resolvedAt))

	active, err = store.GetActiveAlert(ctx, target.ID, rule.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	// Resolving the same alert twice is a not-found, not a silent success.
	err = store.ResolveAlert(ctx, alert.ID, resolvedAt)
	assert.True(t, utils.IsCode(err, utils.ErrCodeNotFound))

	// A fresh incident may open once the previous one is resolved.
	again := &models.AlertHistory{TargetID: target.ID, RuleID: rule.ID, AlertType: models.AlertTypeDeviceDown, Severity: models.SeverityCritical, FiredAt: firedAt.Add(10 * time.Minute)}
	require.NoError(t, store.OpenAlert(ctx, again))

	history, err := store.GetAlertHistory(ctx, models.AlertHistoryFilter{TargetID: &target.ID})
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSQLiteDeliveryLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	target := seedTarget(t, store)

	rule := &models.AlertRule{TargetID: target.ID, Name: "availability", RuleType: models.RuleTypeStatusChange, Severity: models.SeverityWarning, Enabled: true}
	require.NoError(t, store.SaveRule(ctx, rule))

	alert := &models.AlertHistory{TargetID: target.ID, RuleID: rule.ID, AlertType: models.AlertTypeDeviceDown, Severity: models.SeverityWarning, FiredAt: time.Now().UTC()}
	require.NoError(t, store.OpenAlert(ctx, alert))

	now := time.Now().UTC()
	for attempt := 1; attempt <= 3; attempt++ {
		outcome := models.DeliveryOutcomeFailure
		detail := "connection refused"
		if attempt == 3 {
			outcome = models.DeliveryOutcomeSuccess
			detail = ""
		}
		require.NoError(t, store.SaveDelivery(ctx, &models.AlertDelivery{
			AlertHistoryID: alert.ID,
			ChannelID:      1,
			Attempt:        attempt,
			Outcome:        outcome,
			Detail:         detail,
			DeliveredAt:    now.Add(time.Duration(attempt) * time.Second),
		}))
	}

	deliveries, err := store.GetDeliveries(ctx, alert.ID)
	require.NoError(t, err)
	require.Len(t, deliveries, 3)
	assert.Equal(t, 1, deliveries[0].Attempt)
	assert.Equal(t, models.DeliveryOutcomeFailure, deliveries[0].Outcome)
	assert.Equal(t, models.DeliveryOutcomeSuccess, deliveries[2].Outcome)
}

func TestSQLiteCleanupAndStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	target := seedTarget(t, store)

	old := time.Now().UTC().AddDate(0, 0, -60)
	recent := time.Now().UTC()

	require.NoError(t, store.SavePollResult(ctx, &models.PollResult{TargetID: target.ID, Status: models.StatusUp, PolledAt: old}))
	require.NoError(t, store.SavePollResult(ctx, &models.PollResult{TargetID: target.ID, Status: models.StatusUp, PolledAt: recent}))

	require.NoError(t, store.Cleanup(ctx, 30))

	stats, err := store.GetStorageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalTargets)
	assert.Equal(t, int64(1), stats.TotalPollResults)

	// The MIN/MAX aggregates come back from the driver as text and must
	// still surface as parsed timestamps.
	require.NotNil(t, stats.OldestPollResult)
	require.NotNil(t, stats.LatestPollResult)
	assert.WithinDuration(t, recent, *stats.OldestPollResult, time.Second)
	assert.WithinDuration(t, recent, *stats.LatestPollResult, time.Second)
}

func TestStorageFactory(t *testing.T) {
	store, err := NewStorage(&StorageConfig{Type: "sqlite", ConnectionString: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStorage{}, store)

	store, err = NewStorage(&StorageConfig{Type: "postgres", ConnectionString: "postgres://localhost/auspex"})
	require.NoError(t, err)
	assert.IsType(t, &PostgresStorage{}, store)

	_, err = NewStorage(&StorageConfig{Type: "cassandra"})
	assert.Error(t, err)
}

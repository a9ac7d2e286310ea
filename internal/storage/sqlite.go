// File: internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/auspex-monitoring/auspex/internal/models"
	"github.com/auspex-monitoring/auspex/pkg/utils"
)

// SQLiteStorage implements Store backed by SQLite
type SQLiteStorage struct {
	config    *StorageConfig
	db        *sql.DB
	logger    *logrus.Logger
	connected bool
	mu        sync.RWMutex
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(config *StorageConfig) *SQLiteStorage {
	return &SQLiteStorage{
		config: config,
		logger: utils.GetLogger(),
	}
}

// Connect establishes the database connection
func (s *SQLiteStorage) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}

	db, err := sql.Open("sqlite", s.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to open SQLite database", err.Error())
	}

	db.SetMaxOpenConns(1) // SQLite serializes writers anyway
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(s.config.MaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to ping SQLite database", err.Error())
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to apply pragma", err.Error())
		}
	}

	s.db = db
	s.connected = true

	s.logger.WithField("path", s.config.ConnectionString).Info("Connected to SQLite database")
	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected || s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.connected = false
	s.db = nil

	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to close SQLite database", err.Error())
	}
	return nil
}

// Ping checks database connectivity
func (s *SQLiteStorage) Ping() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected || s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "database not connected")
	}
	return s.db.Ping()
}

// Migrate applies pending migrations
func (s *SQLiteStorage) Migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected || s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "database not connected")
	}

	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to create migrations table", err.Error())
	}

	for _, migration := range GetSQLiteMigrations() {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", migration.Version).Scan(&count)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to check migration status", err.Error())
		}
		if count > 0 {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to begin migration transaction", err.Error())
		}
		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("failed to apply migration %s", migration.Version), err.Error())
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			migration.Version, migration.Description); err != nil {
			tx.Rollback()
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to record migration", err.Error())
		}
		if err := tx.Commit(); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to commit migration", err.Error())
		}

		s.logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("Applied database migration")
	}

	return nil
}

// SaveTarget inserts or updates a target
func (s *SQLiteStorage) SaveTarget(ctx context.Context, target *models.Target) error {
	now := time.Now().UTC()
	if target.ID == 0 {
		target.CreatedAt = now
		target.UpdatedAt = now
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO targets (name, host, port, community, snmp_version, enabled, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			target.Name, target.Host, target.Port, target.Community,
			target.SNMPVersion, target.Enabled, target.CreatedAt, target.UpdatedAt)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to insert target", err.Error())
		}
		id, err := result.LastInsertId()
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to get target id", err.Error())
		}
		target.ID = id
		return nil
	}

	target.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		UPDATE targets SET name = ?, host = ?, port = ?, community = ?, snmp_version = ?, enabled = ?, updated_at = ?
		WHERE id = ?`,
		target.Name, target.Host, target.Port, target.Community,
		target.SNMPVersion, target.Enabled, target.UpdatedAt, target.ID)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to update target", err.Error())
	}
	return nil
}

// GetTarget retrieves a target by ID
func (s *SQLiteStorage) GetTarget(ctx context.Context, id int64) (*models.Target, error) {
	target := &models.Target{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, host, port, community, snmp_version, enabled, created_at, updated_at
		FROM targets WHERE id = ?`, id).Scan(
		&target.ID, &target.Name, &target.Host, &target.Port, &target.Community,
		&target.SNMPVersion, &target.Enabled, &target.CreatedAt, &target.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrCodeNotFound, "target not found", fmt.Sprintf("id=%d", id))
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to get target", err.Error())
	}
	return target, nil
}

// GetTargets retrieves targets, optionally filtered by enabled state
func (s *SQLiteStorage) GetTargets(ctx context.Context, enabled *bool) ([]*models.Target, error) {
	query := `SELECT id, name, host, port, community, snmp_version, enabled, created_at, updated_at FROM targets`
	args := []interface{}{}
	if enabled != nil {
		query += " WHERE enabled = ?"
		args = append(args, *enabled)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to query targets", err.Error())
	}
	defer rows.Close()

	var targets []*models.Target
	for rows.Next() {
		target := &models.Target{}
		if err := rows.Scan(&target.ID, &target.Name, &target.Host, &target.Port,
			&target.Community, &target.SNMPVersion, &target.Enabled,
			&target.CreatedAt, &target.UpdatedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to scan target", err.Error())
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// DeleteTarget removes a target and its dependent rows
func (s *SQLiteStorage) DeleteTarget(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM targets WHERE id = ?", id)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to delete target", err.Error())
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return utils.NewAppError(utils.ErrCodeNotFound, "target not found", fmt.Sprintf("id=%d", id))
	}
	return nil
}

// SavePollResult appends a poll observation
func (s *SQLiteStorage) SavePollResult(ctx context.Context, result *models.PollResult) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO poll_results (target_id, status, latency_ms, message, polled_at)
		VALUES (?, ?, ?, ?, ?)`,
		result.TargetID, result.Status, result.LatencyMs, result.Message, result.PolledAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to insert poll result", err.Error())
	}
	id, err := res.LastInsertId()
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to get poll result id", err.Error())
	}
	result.ID = id
	return nil
}

// GetLatestPollResult retrieves the most recent observation for a target
func (s *SQLiteStorage) GetLatestPollResult(ctx context.Context, targetID int64) (*models.PollResult, error) {
	result := &models.PollResult{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, target_id, status, latency_ms, message, polled_at
		FROM poll_results WHERE target_id = ?
		ORDER BY polled_at DESC, id DESC LIMIT 1`, targetID).Scan(
		&result.ID, &result.TargetID, &result.Status, &result.LatencyMs,
		&result.Message, &result.PolledAt)
	if err == sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrCodeNotFound, "no poll results for target", fmt.Sprintf("target_id=%d", targetID))
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to get latest poll result", err.Error())
	}
	return result, nil
}

// GetPreviousStatus returns the status observed strictly before the given
// time, or StatusUnknown when the target has no earlier observation.
func (s *SQLiteStorage) GetPreviousStatus(ctx context.Context, targetID int64, before time.Time) (models.Status, error) {
	var status models.Status
	err := s.db.QueryRowContext(ctx, `
		SELECT status FROM poll_results
		WHERE target_id = ? AND polled_at < ?
		ORDER BY polled_at DESC, id DESC LIMIT 1`, targetID, before).Scan(&status)
	if err == sql.ErrNoRows {
		return models.StatusUnknown, nil
	}
	if err != nil {
		return models.StatusUnknown, utils.NewAppError(utils.ErrCodeDatabase, "failed to get previous status", err.Error())
	}
	return status, nil
}

// GetPollResults retrieves observations matching a filter
func (s *SQLiteStorage) GetPollResults(ctx context.Context, filter models.PollResultFilter) ([]*models.PollResult, error) {
	query := `SELECT id, target_id, status, latency_ms, message, polled_at FROM poll_results WHERE 1=1`
	args := []interface{}{}

	if filter.TargetID != nil {
		query += " AND target_id = ?"
		args = append(args, *filter.TargetID)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.From != nil {
		query += " AND polled_at >= ?"
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		query += " AND polled_at <= ?"
		args = append(args, *filter.To)
	}

	query += " ORDER BY polled_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to query poll results", err.Error())
	}
	defer rows.Close()

	var results []*models.PollResult
	for rows.Next() {
		result := &models.PollResult{}
		if err := rows.Scan(&result.ID, &result.TargetID, &result.Status,
			&result.LatencyMs, &result.Message, &result.PolledAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to scan poll result", err.Error())
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// SaveRule inserts or updates an alert rule
func (s *SQLiteStorage) SaveRule(ctx context.Context, rule *models.AlertRule) error {
	channels, err := json.Marshal(rule.Channels)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeValidation, "failed to encode rule channels", err.Error())
	}

	now := time.Now().UTC()
	if rule.ID == 0 {
		rule.CreatedAt = now
		rule.UpdatedAt = now
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO alert_rules (target_id, name, rule_type, severity, enabled, channels, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rule.TargetID, rule.Name, rule.RuleType, rule.Severity,
			rule.Enabled, string(channels), rule.CreatedAt, rule.UpdatedAt)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to insert alert rule", err.Error())
		}
		id, err := result.LastInsertId()
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to get rule id", err.Error())
		}
		rule.ID = id
		return nil
	}

	rule.UpdatedAt = now
	_, err = s.db.ExecContext(ctx, `
		UPDATE alert_rules SET target_id = ?, name = ?, rule_type = ?, severity = ?, enabled = ?, channels = ?, updated_at = ?
		WHERE id = ?`,
		rule.TargetID, rule.Name, rule.RuleType, rule.Severity,
		rule.Enabled, string(channels), rule.UpdatedAt, rule.ID)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to update alert rule", err.Error())
	}
	return nil
}

// GetEnabledRules retrieves enabled rules for a target ordered by id
func (s *SQLiteStorage) GetEnabledRules(ctx context.Context, targetID int64) ([]*models.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target_id, name, rule_type, severity, enabled, channels, created_at, updated_at
		FROM alert_rules WHERE target_id = ? AND enabled = TRUE
		ORDER BY id`, targetID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to query alert rules", err.Error())
	}
	defer rows.Close()

	var rules []*models.AlertRule
	for rows.Next() {
		rule := &models.AlertRule{}
		var channels string
		if err := rows.Scan(&rule.ID, &rule.TargetID, &rule.Name, &rule.RuleType,
			&rule.Severity, &rule.Enabled, &channels, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to scan alert rule", err.Error())
		}
		if err := json.Unmarshal([]byte(channels), &rule.Channels); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to decode rule channels", err.Error())
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// SaveChannel inserts or updates a notification channel
func (s *SQLiteStorage) SaveChannel(ctx context.Context, channel *models.AlertChannel) error {
	config, err := json.Marshal(channel.Config)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeValidation, "failed to encode channel config", err.Error())
	}

	if channel.ID == 0 {
		channel.CreatedAt = time.Now().UTC()
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO alert_channels (name, type, config, enabled, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			channel.Name, channel.Type, string(config), channel.Enabled, channel.CreatedAt)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to insert alert channel", err.Error())
		}
		id, err := result.LastInsertId()
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to get channel id", err.Error())
		}
		channel.ID = id
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE alert_channels SET name = ?, type = ?, config = ?, enabled = ? WHERE id = ?`,
		channel.Name, channel.Type, string(config), channel.Enabled, channel.ID)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to update alert channel", err.Error())
	}
	return nil
}

// GetChannels retrieves channels by id. Missing ids are simply absent from
// the result; callers treat them as unavailable.
func (s *SQLiteStorage) GetChannels(ctx context.Context, ids []int64) ([]*models.AlertChannel, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, name, type, config, enabled, created_at
		FROM alert_channels WHERE id IN (%s) ORDER BY id`,
		strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to query alert channels", err.Error())
	}
	defer rows.Close()

	var channels []*models.AlertChannel
	for rows.Next() {
		channel := &models.AlertChannel{}
		var config string
		if err := rows.Scan(&channel.ID, &channel.Name, &channel.Type,
			&config, &channel.Enabled, &channel.CreatedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to scan alert channel", err.Error())
		}
		if err := json.Unmarshal([]byte(config), &channel.Config); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to decode channel config", err.Error())
		}
		channels = append(channels, channel)
	}
	return channels, rows.Err()
}

// SaveSuppression inserts or updates a suppression window
func (s *SQLiteStorage) SaveSuppression(ctx context.Context, suppression *models.AlertSuppression) error {
	days, err := json.Marshal(suppression.DaysOfWeek)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeValidation, "failed to encode days of week", err.Error())
	}

	if suppression.ID == 0 {
		suppression.CreatedAt = time.Now().UTC()
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO alert_suppressions (name, target_id, start_time, end_time, recurrence, days_of_week, enabled, reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			suppression.Name, suppression.TargetID, suppression.StartTime, suppression.EndTime,
			suppression.Recurrence, string(days), suppression.Enabled, suppression.Reason, suppression.CreatedAt)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to insert suppression", err.Error())
		}
		id, err := result.LastInsertId()
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "failed to get suppression id", err.Error())
		}
		suppression.ID = id
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE alert_suppressions SET name = ?, target_id = ?, start_time = ?, end_time = ?, recurrence = ?, days_of_week = ?, enabled = ?, reason = ?
		WHERE id = ?`,
		suppression.Name, suppression.TargetID, suppression.StartTime, suppression.EndTime,
		suppression.Recurrence, string(days), suppression.Enabled, suppression.Reason, suppression.ID)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to update suppression", err.Error())
	}
	return nil
}

// GetEnabledSuppressions retrieves enabled windows scoped to the target plus
// global windows
func (s *SQLiteStorage) GetEnabledSuppressions(ctx context.Context, targetID int64) ([]*models.AlertSuppression, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, target_id, start_time, end_time, recurrence, days_of_week, enabled, reason, created_at
		FROM alert_suppressions
		WHERE enabled = TRUE AND (target_id IS NULL OR target_id = ?)
		ORDER BY id`, targetID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to query suppressions", err.Error())
	}
	defer rows.Close()

	var suppressions []*models.AlertSuppression
	for rows.Next() {
		suppression := &models.AlertSuppression{}
		var days string
		if err := rows.Scan(&suppression.ID, &suppression.Name, &suppression.TargetID,
			&suppression.StartTime, &suppression.EndTime, &suppression.Recurrence,
			&days, &suppression.Enabled, &suppression.Reason, &suppression.CreatedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to scan suppression", err.Error())
		}
		if err := json.Unmarshal([]byte(days), &suppression.DaysOfWeek); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to decode days of week", err.Error())
		}
		suppressions = append(suppressions, suppression)
	}
	return suppressions, rows.Err()
}

// GetActiveAlert retrieves the active alert for a (target, rule) pair, or
// nil when the pair is inactive
func (s *SQLiteStorage) GetActiveAlert(ctx context.Context, targetID, ruleID int64) (*models.AlertHistory, error) {
	alert := &models.AlertHistory{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, target_id, rule_id, alert_type, severity, message, fired_at, resolved_at
		FROM alert_history
		WHERE target_id = ? AND rule_id = ? AND resolved_at IS NULL`, targetID, ruleID).Scan(
		&alert.ID, &alert.TargetID, &alert.RuleID, &alert.AlertType,
		&alert.Severity, &alert.Message, &alert.FiredAt, &alert.ResolvedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to get active alert", err.Error())
	}
	return alert, nil
}

// OpenAlert inserts a new active alert row. Fails with ErrCodeInvariant if
// the pair already has an active alert.
func (s *SQLiteStorage) OpenAlert(ctx context.Context, alert *models.AlertHistory) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_history (target_id, rule_id, alert_type, severity, message, fired_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		alert.TargetID, alert.RuleID, alert.AlertType, alert.Severity, alert.Message, alert.FiredAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return utils.NewAppError(utils.ErrCodeInvariant, "active alert already exists for pair",
				fmt.Sprintf("target_id=%d rule_id=%d", alert.TargetID, alert.RuleID))
		}
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to insert alert", err.Error())
	}
	id, err := result.LastInsertId()
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to get alert id", err.Error())
	}
	alert.ID = id
	return nil
}

// ResolveAlert stamps resolved_at on an active alert row
func (s *SQLiteStorage) ResolveAlert(ctx context.Context, alertID int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE alert_history SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL`, at, alertID)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to resolve alert", err.Error())
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return utils.NewAppError(utils.ErrCodeNotFound, "active alert not found", fmt.Sprintf("id=%d", alertID))
	}
	return nil
}

// GetAlertHistory retrieves alerts matching a filter
func (s *SQLiteStorage) GetAlertHistory(ctx context.Context, filter models.AlertHistoryFilter) ([]*models.AlertHistory, error) {
	query := `SELECT id, target_id, rule_id, alert_type, severity, message, fired_at, resolved_at FROM alert_history WHERE 1=1`
	args := []interface{}{}

	if filter.TargetID != nil {
		query += " AND target_id = ?"
		args = append(args, *filter.TargetID)
	}
	if filter.RuleID != nil {
		query += " AND rule_id = ?"
		args = append(args, *filter.RuleID)
	}
	if filter.Active != nil {
		if *filter.Active {
			query += " AND resolved_at IS NULL"
		} else {
			query += " AND resolved_at IS NOT NULL"
		}
	}
	if filter.From != nil {
		query += " AND fired_at >= ?"
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		query += " AND fired_at <= ?"
		args = append(args, *filter.To)
	}

	query += " ORDER BY fired_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to query alert history", err.Error())
	}
	defer rows.Close()

	var alerts []*models.AlertHistory
	for rows.Next() {
		alert := &models.AlertHistory{}
		if err := rows.Scan(&alert.ID, &alert.TargetID, &alert.RuleID, &alert.AlertType,
			&alert.Severity, &alert.Message, &alert.FiredAt, &alert.ResolvedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to scan alert", err.Error())
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// SaveDelivery appends a delivery attempt row
func (s *SQLiteStorage) SaveDelivery(ctx context.Context, delivery *models.AlertDelivery) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_deliveries (alert_history_id, channel_id, attempt, outcome, detail, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		delivery.AlertHistoryID, delivery.ChannelID, delivery.Attempt,
		delivery.Outcome, delivery.Detail, delivery.DeliveredAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to insert delivery", err.Error())
	}
	id, err := result.LastInsertId()
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to get delivery id", err.Error())
	}
	delivery.ID = id
	return nil
}

// GetDeliveries retrieves delivery attempts for an alert ordered by attempt
func (s *SQLiteStorage) GetDeliveries(ctx context.Context, alertHistoryID int64) ([]*models.AlertDelivery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, alert_history_id, channel_id, attempt, outcome, detail, delivered_at
		FROM alert_deliveries WHERE alert_history_id = ?
		ORDER BY channel_id, attempt`, alertHistoryID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to query deliveries", err.Error())
	}
	defer rows.Close()

	var deliveries []*models.AlertDelivery
	for rows.Next() {
		delivery := &models.AlertDelivery{}
		if err := rows.Scan(&delivery.ID, &delivery.AlertHistoryID, &delivery.ChannelID,
			&delivery.Attempt, &delivery.Outcome, &delivery.Detail, &delivery.DeliveredAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to scan delivery", err.Error())
		}
		deliveries = append(deliveries, delivery)
	}
	return deliveries, rows.Err()
}

// Cleanup removes poll results and resolved alerts older than the retention
// window
func (s *SQLiteStorage) Cleanup(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	pollResult, err := s.db.ExecContext(ctx, "DELETE FROM poll_results WHERE polled_at < ?", cutoff)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to clean up poll results", err.Error())
	}
	alertResult, err := s.db.ExecContext(ctx,
		"DELETE FROM alert_history WHERE resolved_at IS NOT NULL AND resolved_at < ?", cutoff)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "failed to clean up alert history", err.Error())
	}

	polls, _ := pollResult.RowsAffected()
	alerts, _ := alertResult.RowsAffected()
	if polls > 0 || alerts > 0 {
		s.logger.WithFields(map[string]interface{}{
			"poll_results": polls,
			"alerts":       alerts,
			"cutoff":       cutoff,
		}).Info("Cleaned up expired rows")
	}
	return nil
}

// GetStorageStats returns storage statistics
func (s *SQLiteStorage) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{}

	queries := map[string]*int64{
		"SELECT COUNT(*) FROM targets":                                 &stats.TotalTargets,
		"SELECT COUNT(*) FROM poll_results":                            &stats.TotalPollResults,
		"SELECT COUNT(*) FROM alert_history":                           &stats.TotalAlerts,
		"SELECT COUNT(*) FROM alert_history WHERE resolved_at IS NULL": &stats.ActiveAlerts,
		"SELECT COUNT(*) FROM alert_deliveries":                        &stats.TotalDeliveries,
	}
	for query, dest := range queries {
		if err := s.db.QueryRowContext(ctx, query).Scan(dest); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to get storage stats", err.Error())
		}
	}

	// MIN/MAX strip the column type, so the driver hands the aggregates
	// back as text rather than time.Time.
	var oldest, latest sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT MIN(polled_at), MAX(polled_at) FROM poll_results").Scan(&oldest, &latest)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "failed to get poll result range", err.Error())
	}
	if oldest.Valid {
		if ts, err := parseSQLiteTime(oldest.String); err == nil {
			stats.OldestPollResult = &ts
		}
	}
	if latest.Valid {
		if ts, err := parseSQLiteTime(latest.String); err == nil {
			stats.LatestPollResult = &ts
		}
	}

	return stats, nil
}

// parseSQLiteTime parses a timestamp string in any of the layouts the sqlite
// driver writes for time.Time values.
func parseSQLiteTime(value string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	}
	var lastErr error
	for _, layout := range layouts {
		ts, err := time.Parse(layout, value)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// GetHealth returns storage health information
func (s *SQLiteStorage) GetHealth() *StorageHealth {
	health := &StorageHealth{
		StorageType: "sqlite",
		LastPing:    time.Now().UTC(),
		Details: map[string]string{
			"path": s.config.ConnectionString,
		},
	}
	health.Healthy = s.Ping() == nil
	return health
}

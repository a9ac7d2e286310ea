package models

import (
	"time"
)

// Severity of an alert rule and the alerts it produces.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rule types. Unknown values never match and never error, so new types can
// be rolled out ahead of engine support.
const (
	RuleTypeStatusChange = "status_change"
)

// Alert types recorded on AlertHistory rows.
const (
	AlertTypeDeviceDown = "device_down"
	AlertTypeDeviceUp   = "device_up"
)

// Suppression recurrence values. Empty recurrence means a one-shot
// absolute window.
const (
	RecurrenceDaily  = "daily"
	RecurrenceWeekly = "weekly"
)

// AlertRule binds a target to notification behavior
type AlertRule struct {
	ID        int64     `json:"id" db:"id"`
	TargetID  int64     `json:"target_id" db:"target_id"`
	Name      string    `json:"name" db:"name"`
	RuleType  string    `json:"rule_type" db:"rule_type"`
	Severity  Severity  `json:"severity" db:"severity"`
	Enabled   bool      `json:"enabled" db:"enabled"`
	Channels  []int64   `json:"channels" db:"channels"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AlertChannel is a notification sink. Config is an opaque payload whose
// keys depend on Type (smtp addresses, webhook URL, pagerduty routing key).
type AlertChannel struct {
	ID        int64                  `json:"id" db:"id"`
	Name      string                 `json:"name" db:"name"`
	Type      string                 `json:"type" db:"type"`
	Config    map[string]interface{} `json:"config" db:"config"`
	Enabled   bool                   `json:"enabled" db:"enabled"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// AlertHistory is one alert instance. ResolvedAt == nil means the alert is
// active; at most one active row may exist per (target, rule) pair.
type AlertHistory struct {
	ID         int64      `json:"id" db:"id"`
	TargetID   int64      `json:"target_id" db:"target_id"`
	RuleID     int64      `json:"rule_id" db:"rule_id"`
	AlertType  string     `json:"alert_type" db:"alert_type"`
	Severity   Severity   `json:"severity" db:"severity"`
	Message    string     `json:"message" db:"message"`
	FiredAt    time.Time  `json:"fired_at" db:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Active reports whether the alert is still open.
func (a *AlertHistory) Active() bool {
	return a.ResolvedAt == nil
}

// AlertSuppression is a maintenance window during which notifications for a
// target (or every target, when TargetID is nil) are withheld.
type AlertSuppression struct {
	ID         int64     `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	TargetID   *int64    `json:"target_id,omitempty" db:"target_id"`
	StartTime  time.Time `json:"start_time" db:"start_time"`
	EndTime    time.Time `json:"end_time" db:"end_time"`
	Recurrence *string   `json:"recurrence,omitempty" db:"recurrence"`
	DaysOfWeek []int     `json:"days_of_week,omitempty" db:"days_of_week"`
	Enabled    bool      `json:"enabled" db:"enabled"`
	Reason     string    `json:"reason" db:"reason"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Delivery outcomes recorded on AlertDelivery rows.
const (
	DeliveryOutcomeSuccess     = "success"
	DeliveryOutcomeFailure     = "failure"
	DeliveryOutcomeUnavailable = "channel unavailable"
)

// AlertDelivery is one delivery attempt for an alert on one channel.
// Append-only; retries each get their own row with an incremented Attempt.
type AlertDelivery struct {
	ID             int64     `json:"id" db:"id"`
	AlertHistoryID int64     `json:"alert_history_id" db:"alert_history_id"`
	ChannelID      int64     `json:"channel_id" db:"channel_id"`
	Attempt        int       `json:"attempt" db:"attempt"`
	Outcome        string    `json:"outcome" db:"outcome"`
	Detail         string    `json:"detail,omitempty" db:"detail"`
	DeliveredAt    time.Time `json:"delivered_at" db:"delivered_at"`
}

// AlertHistoryFilter for querying alert history
type AlertHistoryFilter struct {
	TargetID *int64     `json:"target_id,omitempty"`
	RuleID   *int64     `json:"rule_id,omitempty"`
	Active   *bool      `json:"active,omitempty"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Offset   int        `json:"offset,omitempty"`
}

package models

import (
	"time"
)

// Status is the availability state observed for a target.
type Status string

const (
	// StatusUnknown is the sentinel previous status for a target that has
	// never been polled; the first observation is treated as a transition
	// from it.
	StatusUnknown Status = "unknown"
	StatusUp      Status = "up"
	StatusDown    Status = "down"
)

// Target represents a monitored SNMP endpoint
type Target struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Host        string    `json:"host" db:"host"`
	Port        int       `json:"port" db:"port"`
	Community   string    `json:"community" db:"community"`
	SNMPVersion string    `json:"snmp_version" db:"snmp_version"`
	Enabled     bool      `json:"enabled" db:"enabled"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// PollResult is one availability observation for a target. Rows are
// append-only and ordered by PolledAt per target.
type PollResult struct {
	ID        int64     `json:"id" db:"id"`
	TargetID  int64     `json:"target_id" db:"target_id"`
	Status    Status    `json:"status" db:"status"`
	LatencyMs *int      `json:"latency_ms,omitempty" db:"latency_ms"`
	Message   string    `json:"message" db:"message"`
	PolledAt  time.Time `json:"polled_at" db:"polled_at"`
}

// PollResultFilter for querying poll results
type PollResultFilter struct {
	TargetID *int64     `json:"target_id,omitempty"`
	Status   *Status    `json:"status,omitempty"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Offset   int        `json:"offset,omitempty"`
}

// File: internal/notification/notification.go
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/auspex-monitoring/auspex/internal/models"
)

// Event kinds carried on an alert message.
const (
	EventTriggered = "triggered"
	EventResolved  = "resolved"
)

// AlertMessage is the structured payload handed to channel transports.
type AlertMessage struct {
	EventKind string               `json:"event_kind"`
	Alert     *models.AlertHistory `json:"alert"`
	Target    *models.Target       `json:"target"`
	Rule      *models.AlertRule    `json:"rule"`
	Timestamp time.Time            `json:"timestamp"`
}

// Subject returns a short one-line summary suitable for email subjects and
// page titles.
func (m *AlertMessage) Subject() string {
	switch m.EventKind {
	case EventResolved:
		return fmt.Sprintf("[RESOLVED] %s: %s", m.Alert.Severity, m.Target.Name)
	default:
		return fmt.Sprintf("[%s] %s: %s", m.Alert.Severity, m.Target.Name, m.Alert.AlertType)
	}
}

// Transport delivers an alert message over one channel type. Implementations
// make a single attempt; retry policy lives in the Dispatcher.
type Transport interface {
	Type() string
	Send(ctx context.Context, channel *models.AlertChannel, message *AlertMessage) error
}

// configString extracts a string value from an opaque channel config.
func configString(config map[string]interface{}, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// configStrings extracts a string list value; a single string is accepted as
// a one-element list.
func configStrings(config map[string]interface{}, key string) []string {
	v, ok := config[key]
	if !ok {
		return nil
	}
	switch value := v.(type) {
	case string:
		if value == "" {
			return nil
		}
		return []string{value}
	case []interface{}:
		var out []string
		for _, item := range value {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return value
	}
	return nil
}

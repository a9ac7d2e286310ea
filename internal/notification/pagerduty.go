// File: internal/notification/pagerduty.go
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/auspex-monitoring/auspex/internal/models"
	"github.com/auspex-monitoring/auspex/pkg/utils"
)

const pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

// PagerDutySender delivers alert notifications through the PagerDuty Events
// v2 API. The channel config supplies the integration routing key. Incidents
// are deduplicated per target so a resolve event closes the incident opened
// by the matching trigger.
type PagerDutySender struct {
	client    *http.Client
	logger    *logrus.Entry
	eventsURL string
}

type pagerDutyEvent struct {
	RoutingKey  string           `json:"routing_key"`
	EventAction string           `json:"event_action"`
	DedupKey    string           `json:"dedup_key"`
	Payload     pagerDutyPayload `json:"payload"`
}

type pagerDutyPayload struct {
	Summary   string `json:"summary"`
	Source    string `json:"source"`
	Severity  string `json:"severity"`
	Timestamp string `json:"timestamp"`
}

// NewPagerDutySender creates a new PagerDuty transport
func NewPagerDutySender(timeout time.Duration) *PagerDutySender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PagerDutySender{
		client:    &http.Client{Timeout: timeout},
		logger:    utils.GetLogger().WithField("component", "pagerduty_sender"),
		eventsURL: pagerDutyEventsURL,
	}
}

// Type returns the channel type this transport serves
func (ps *PagerDutySender) Type() string {
	return "pagerduty"
}

// Send enqueues one trigger or resolve event
func (ps *PagerDutySender) Send(ctx context.Context, channel *models.AlertChannel, message *AlertMessage) error {
	routingKey := configString(channel.Config, "routing_key")
	if routingKey == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "pagerduty channel has no routing key",
			fmt.Sprintf("channel_id=%d", channel.ID))
	}

	action := "trigger"
	if message.EventKind == EventResolved {
		action = "resolve"
	}

	event := &pagerDutyEvent{
		RoutingKey:  routingKey,
		EventAction: action,
		DedupKey:    fmt.Sprintf("auspex-target-%d", message.Target.ID),
		Payload: pagerDutyPayload{
			Summary:   message.Alert.Message,
			Source:    message.Target.Host,
			Severity:  pagerDutySeverity(message.Alert.Severity),
			Timestamp: message.Timestamp.Format(time.RFC3339),
		},
	}

	body, err := json.Marshal(event)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "failed to encode pagerduty event", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ps.eventsURL, bytes.NewReader(body))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "failed to create pagerduty request", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ps.client.Do(req)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeExternal, "pagerduty request failed", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return utils.NewAppError(utils.ErrCodeExternal, "pagerduty rejected event",
			fmt.Sprintf("status=%d body=%s", resp.StatusCode, string(detail)))
	}

	ps.logger.WithFields(logrus.Fields{
		"action":    action,
		"dedup_key": event.DedupKey,
	}).Debug("PagerDuty event enqueued")
	return nil
}

// pagerDutySeverity maps rule severities onto the values the Events API
// accepts.
func pagerDutySeverity(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "critical"
	case models.SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

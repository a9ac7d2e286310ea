// File: internal/notification/pagerduty_test.go
package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auspex-monitoring/auspex/internal/models"
	"github.com/auspex-monitoring/auspex/pkg/utils"
)

func pagerDutyFixture(t *testing.T, status int) (*PagerDutySender, *[]pagerDutyEvent) {
	t.Helper()

	var events []pagerDutyEvent
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event pagerDutyEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		events = append(events, event)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	sender := NewPagerDutySender(time.Second)
	sender.eventsURL = server.URL
	return sender, &events
}

func pagerDutyMessage(kind string) *AlertMessage {
	return &AlertMessage{
		EventKind: kind,
		Alert: &models.AlertHistory{
			ID:       7,
			Severity: models.SeverityCritical,
			Message:  "Target core-sw-01 (192.168.1.10) is DOWN - timeout",
		},
		Target:    &models.Target{ID: 42, Name: "core-sw-01", Host: "192.168.1.10"},
		Rule:      &models.AlertRule{ID: 3, Name: "availability"},
		Timestamp: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestPagerDutyTriggerAndResolveEvents(t *testing.T) {
	sender, events := pagerDutyFixture(t, http.StatusAccepted)
	channel := &models.AlertChannel{ID: 1, Type: "pagerduty", Config: map[string]interface{}{"routing_key": "rk-123"}, Enabled: true}

	require.NoError(t, sender.Send(context.Background(), channel, pagerDutyMessage(EventTriggered)))
	require.NoError(t, sender.Send(context.Background(), channel, pagerDutyMessage(EventResolved)))

	require.Len(t, *events, 2)
	trigger, resolve := (*events)[0], (*events)[1]

	assert.Equal(t, "trigger", trigger.EventAction)
	assert.Equal(t, "resolve", resolve.EventAction)
	assert.Equal(t, "rk-123", trigger.RoutingKey)
	assert.Equal(t, "auspex-target-42", trigger.DedupKey)
	// Resolve must carry the same dedup key so it closes the open incident.
	assert.Equal(t, trigger.DedupKey, resolve.DedupKey)
	assert.Equal(t, "critical", trigger.Payload.Severity)
	assert.Equal(t, "192.168.1.10", trigger.Payload.Source)
}

func TestPagerDutyMissingRoutingKey(t *testing.T) {
	sender, events := pagerDutyFixture(t, http.StatusAccepted)
	channel := &models.AlertChannel{ID: 1, Type: "pagerduty", Config: map[string]interface{}{}, Enabled: true}

	err := sender.Send(context.Background(), channel, pagerDutyMessage(EventTriggered))
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.ErrCodeValidation))
	assert.Empty(t, *events)
}

func TestPagerDutyRejectedEvent(t *testing.T) {
	sender, _ := pagerDutyFixture(t, http.StatusBadRequest)
	channel := &models.AlertChannel{ID: 1, Type: "pagerduty", Config: map[string]interface{}{"routing_key": "rk-123"}, Enabled: true}

	err := sender.Send(context.Background(), channel, pagerDutyMessage(EventTriggered))
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.ErrCodeExternal))
}

func TestPagerDutySeverityMapping(t *testing.T) {
	assert.Equal(t, "critical", pagerDutySeverity(models.SeverityCritical))
	assert.Equal(t, "warning", pagerDutySeverity(models.SeverityWarning))
	assert.Equal(t, "info", pagerDutySeverity(models.SeverityInfo))
}

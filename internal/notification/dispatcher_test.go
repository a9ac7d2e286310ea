// File: internal/notification/dispatcher_test.go
package notification

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auspex-monitoring/auspex/internal/config"
	"github.com/auspex-monitoring/auspex/internal/models"
	"github.com/auspex-monitoring/auspex/internal/storage"
	"github.com/auspex-monitoring/auspex/pkg/utils"
)

var testSMTPConfig = config.SMTPConfig{
	Host:      "smtp.example.com",
	Port:      587,
	FromEmail: "alerts@example.com",
	FromName:  "Auspex Monitor",
	UseTLS:    true,
}

// flakyTransport fails a configured number of times before succeeding.
type flakyTransport struct {
	mu       sync.Mutex
	typ      string
	failures int
	calls    int
}

func (f *flakyTransport) Type() string { return f.typ }

func (f *flakyTransport) Send(ctx context.Context, channel *models.AlertChannel, message *AlertMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return utils.NewAppError(utils.ErrCodeExternal, "transport unavailable", "connection refused")
	}
	return nil
}

func newDispatcherFixture(t *testing.T, transports ...Transport) (*Dispatcher, storage.Store, *AlertMessage) {
	t.Helper()

	store := storage.NewSQLiteStorage(&storage.StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, store.Connect())
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	target := &models.Target{Name: "core-sw-01", Host: "192.168.1.10", Port: 161, Community: "public", SNMPVersion: "2c", Enabled: true}
	require.NoError(t, store.SaveTarget(ctx, target))
	rule := &models.AlertRule{TargetID: target.ID, Name: "availability", RuleType: models.RuleTypeStatusChange, Severity: models.SeverityCritical, Enabled: true}
	require.NoError(t, store.SaveRule(ctx, rule))
	alert := &models.AlertHistory{TargetID: target.ID, RuleID: rule.ID, AlertType: models.AlertTypeDeviceDown, Severity: models.SeverityCritical, Message: "Target core-sw-01 (192.168.1.10) is DOWN - timeout", FiredAt: time.Now().UTC()}
	require.NoError(t, store.OpenAlert(ctx, alert))

	dispatcher := NewDispatcher(&DispatcherConfig{
		RetryAttempts:       3,
		RetryDelay:          time.Millisecond,
		MaxRetryDelay:       5 * time.Millisecond,
		NotificationTimeout: time.Second,
	}, store, nil, transports...)

	message := &AlertMessage{
		EventKind: EventTriggered,
		Alert:     alert,
		Target:    target,
		Rule:      rule,
		Timestamp: time.Now().UTC(),
	}
	return dispatcher, store, message
}

func seedChannel(t *testing.T, store storage.Store, channelType string, enabled bool) *models.AlertChannel {
	t.Helper()
	channel := &models.AlertChannel{
		Name:    channelType + "-channel",
		Type:    channelType,
		Config:  map[string]interface{}{"to": "ops@example.com"},
		Enabled: enabled,
	}
	require.NoError(t, store.SaveChannel(context.Background(), channel))
	return channel
}

func TestDispatchSuccessFirstAttempt(t *testing.T) {
	transport := &flakyTransport{typ: "email"}
	dispatcher, store, message := newDispatcherFixture(t, transport)
	channel := seedChannel(t, store, "email", true)

	outcomes := dispatcher.Dispatch(context.Background(),
		[]int64{channel.ID}, []*models.AlertChannel{channel}, message)

	require.Len(t, outcomes, 1)
	assert.Equal(t, models.DeliveryOutcomeSuccess, outcomes[0].Outcome)
	assert.Equal(t, 1, outcomes[0].Attempts)

	deliveries, err := store.GetDeliveries(context.Background(), message.Alert.ID)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, models.DeliveryOutcomeSuccess, deliveries[0].Outcome)
}

func TestDispatchRetriesThenSucceeds(t *testing.T) {
	// Fails twice, succeeds on the third attempt.
	transport := &flakyTransport{typ: "email", failures: 2}
	dispatcher, store, message := newDispatcherFixture(t, transport)
	channel := seedChannel(t, store, "email", true)

	outcomes := dispatcher.Dispatch(context.Background(),
		[]int64{channel.ID}, []*models.AlertChannel{channel}, message)

	require.Len(t, outcomes, 1)
	assert.Equal(t, models.DeliveryOutcomeSuccess, outcomes[0].Outcome)
	assert.Equal(t, 3, outcomes[0].Attempts)

	deliveries, err := store.GetDeliveries(context.Background(), message.Alert.ID)
	require.NoError(t, err)
	require.Len(t, deliveries, 3)
	assert.Equal(t, models.DeliveryOutcomeFailure, deliveries[0].Outcome)
	assert.Equal(t, "connection refused", deliveries[0].Detail)
	assert.Equal(t, models.DeliveryOutcomeFailure, deliveries[1].Outcome)
	assert.Equal(t, models.DeliveryOutcomeSuccess, deliveries[2].Outcome)
}

func TestDispatchExhaustsRetryBudget(t *testing.T) {
	transport := &flakyTransport{typ: "email", failures: 10}
	dispatcher, store, message := newDispatcherFixture(t, transport)
	channel := seedChannel(t, store, "email", true)

	outcomes := dispatcher.Dispatch(context.Background(),
		[]int64{channel.ID}, []*models.AlertChannel{channel}, message)

	require.Len(t, outcomes, 1)
	assert.Equal(t, models.DeliveryOutcomeFailure, outcomes[0].Outcome)
	assert.Equal(t, 3, outcomes[0].Attempts)

	deliveries, err := store.GetDeliveries(context.Background(), message.Alert.ID)
	require.NoError(t, err)
	assert.Len(t, deliveries, 3)
}

func TestDispatchUnavailableChannels(t *testing.T) {
	transport := &flakyTransport{typ: "email"}
	dispatcher, store, message := newDispatcherFixture(t, transport)

	enabled := seedChannel(t, store, "email", true)
	disabled := seedChannel(t, store, "email", false)
	unknownType := seedChannel(t, store, "carrier-pigeon", true)
	missingID := int64(9999)

	channels := []*models.AlertChannel{enabled, disabled, unknownType}
	outcomes := dispatcher.Dispatch(context.Background(),
		[]int64{enabled.ID, disabled.ID, unknownType.ID, missingID}, channels, message)

	require.Len(t, outcomes, 4)
	byChannel := map[int64]*ChannelOutcome{}
	for _, o := range outcomes {
		byChannel[o.ChannelID] = o
	}

	// The healthy channel is unaffected by the broken ones.
	assert.Equal(t, models.DeliveryOutcomeSuccess, byChannel[enabled.ID].Outcome)
	assert.Equal(t, models.DeliveryOutcomeUnavailable, byChannel[disabled.ID].Outcome)
	assert.Equal(t, "channel is disabled", byChannel[disabled.ID].Detail)
	assert.Equal(t, models.DeliveryOutcomeUnavailable, byChannel[unknownType.ID].Outcome)
	assert.Equal(t, models.DeliveryOutcomeUnavailable, byChannel[missingID].Outcome)
	assert.Equal(t, "channel does not exist", byChannel[missingID].Detail)

	// One unavailable row per broken channel, no transport attempts.
	deliveries, err := store.GetDeliveries(context.Background(), message.Alert.ID)
	require.NoError(t, err)
	assert.Len(t, deliveries, 4)
	assert.Equal(t, 1, transport.calls)
}

func TestDispatchDoesNotRetryMisconfiguredChannel(t *testing.T) {
	dispatcher, store, message := newDispatcherFixture(t, NewEmailSender(&testSMTPConfig))
	channel := &models.AlertChannel{Name: "no-recipients", Type: "email", Config: map[string]interface{}{}, Enabled: true}
	require.NoError(t, store.SaveChannel(context.Background(), channel))

	outcomes := dispatcher.Dispatch(context.Background(),
		[]int64{channel.ID}, []*models.AlertChannel{channel}, message)

	require.Len(t, outcomes, 1)
	assert.Equal(t, models.DeliveryOutcomeFailure, outcomes[0].Outcome)
	assert.Equal(t, 1, outcomes[0].Attempts)
}

func TestRetryDelayBackoff(t *testing.T) {
	dispatcher := &Dispatcher{config: &DispatcherConfig{
		RetryDelay:    5 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}}

	assert.Equal(t, 5*time.Second, dispatcher.retryDelay(2))
	assert.Equal(t, 10*time.Second, dispatcher.retryDelay(3))
	assert.Equal(t, 20*time.Second, dispatcher.retryDelay(4))
	assert.Equal(t, 30*time.Second, dispatcher.retryDelay(5)) // capped
	assert.Equal(t, 30*time.Second, dispatcher.retryDelay(6))
}

// File: internal/notification/dispatcher.go
package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/auspex-monitoring/auspex/internal/metrics"
	"github.com/auspex-monitoring/auspex/internal/models"
	"github.com/auspex-monitoring/auspex/internal/storage"
	"github.com/auspex-monitoring/auspex/pkg/utils"
)

// DispatcherConfig holds dispatcher retry and timeout configuration
type DispatcherConfig struct {
	RetryAttempts       int           `json:"retry_attempts"`
	RetryDelay          time.Duration `json:"retry_delay"`
	MaxRetryDelay       time.Duration `json:"max_retry_delay"`
	NotificationTimeout time.Duration `json:"notification_timeout"`
}

// Dispatcher fans an alert event out to its configured channels, retries
// transient failures with exponential backoff, and records one AlertDelivery
// row per attempt. Channels are independent: a failing channel never blocks
// or aborts the others.
type Dispatcher struct {
	config     *DispatcherConfig
	store      storage.Store
	metrics    *metrics.Metrics
	logger     *logrus.Entry
	transports map[string]Transport
}

// ChannelOutcome summarizes the terminal result for one channel
type ChannelOutcome struct {
	ChannelID int64  `json:"channel_id"`
	Outcome   string `json:"outcome"`
	Attempts  int    `json:"attempts"`
	Detail    string `json:"detail,omitempty"`
}

// NewDispatcher creates a delivery dispatcher
func NewDispatcher(config *DispatcherConfig, store storage.Store, m *metrics.Metrics, transports ...Transport) *Dispatcher {
	d := &Dispatcher{
		config:     config,
		store:      store,
		metrics:    m,
		logger:     utils.GetLogger().WithField("component", "dispatcher"),
		transports: make(map[string]Transport),
	}
	for _, t := range transports {
		d.transports[t.Type()] = t
	}
	return d
}

// Dispatch delivers the message to every channel id the rule references.
// Channels missing from the snapshot, disabled, or of an unknown type get a
// single "channel unavailable" delivery row instead of transport attempts.
func (d *Dispatcher) Dispatch(ctx context.Context, channelIDs []int64, channels []*models.AlertChannel, message *AlertMessage) []*ChannelOutcome {
	if len(channelIDs) == 0 {
		return nil
	}

	traceID := uuid.NewString()
	logger := d.logger.WithFields(logrus.Fields{
		"trace_id":   traceID,
		"alert_id":   message.Alert.ID,
		"event_kind": message.EventKind,
	})

	byID := make(map[int64]*models.AlertChannel, len(channels))
	for _, channel := range channels {
		byID[channel.ID] = channel
	}

	outcomes := make([]*ChannelOutcome, len(channelIDs))
	var wg sync.WaitGroup
	for i, channelID := range channelIDs {
		wg.Add(1)
		go func(i int, channelID int64) {
			defer wg.Done()
			outcomes[i] = d.dispatchChannel(ctx, logger, byID[channelID], channelID, message)
		}(i, channelID)
	}
	wg.Wait()

	return outcomes
}

// dispatchChannel runs the bounded retry loop for one channel
func (d *Dispatcher) dispatchChannel(ctx context.Context, logger *logrus.Entry, channel *models.AlertChannel, channelID int64, message *AlertMessage) *ChannelOutcome {
	transport := d.resolveTransport(channel)
	if transport == nil {
		detail := d.unavailableDetail(channel)
		d.recordAttempt(ctx, logger, message, channelID, channelType(channel), 1, models.DeliveryOutcomeUnavailable, detail, 0)
		return &ChannelOutcome{ChannelID: channelID, Outcome: models.DeliveryOutcomeUnavailable, Attempts: 1, Detail: detail}
	}

	maxAttempts := d.config.RetryAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastDetail string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := d.retryDelay(attempt)
			logger.WithFields(logrus.Fields{
				"channel_id":   channelID,
				"attempt":      attempt,
				"max_attempts": maxAttempts,
				"retry_delay":  delay.String(),
			}).Warn("Retrying notification delivery")
			select {
			case <-ctx.Done():
				d.recordAttempt(ctx, logger, message, channelID, channel.Type, attempt, models.DeliveryOutcomeFailure, ctx.Err().Error(), 0)
				return &ChannelOutcome{ChannelID: channelID, Outcome: models.DeliveryOutcomeFailure, Attempts: attempt, Detail: ctx.Err().Error()}
			case <-time.After(delay):
			}
		}

		start := time.Now()
		err := d.send(ctx, transport, channel, message)
		duration := time.Since(start)

		if err == nil {
			d.recordAttempt(ctx, logger, message, channelID, channel.Type, attempt, models.DeliveryOutcomeSuccess, "", duration)
			return &ChannelOutcome{ChannelID: channelID, Outcome: models.DeliveryOutcomeSuccess, Attempts: attempt}
		}

		lastDetail = deliveryDetail(err)
		d.recordAttempt(ctx, logger, message, channelID, channel.Type, attempt, models.DeliveryOutcomeFailure, lastDetail, duration)

		// Misconfigured channels will not heal on retry.
		if utils.IsCode(err, utils.ErrCodeValidation) || utils.IsCode(err, utils.ErrCodeConfiguration) {
			return &ChannelOutcome{ChannelID: channelID, Outcome: models.DeliveryOutcomeFailure, Attempts: attempt, Detail: lastDetail}
		}
	}

	logger.WithFields(logrus.Fields{
		"channel_id": channelID,
		"attempts":   maxAttempts,
	}).Error("Notification delivery exhausted retry budget")
	return &ChannelOutcome{ChannelID: channelID, Outcome: models.DeliveryOutcomeFailure, Attempts: maxAttempts, Detail: lastDetail}
}

// send runs a single transport attempt under the configured timeout
func (d *Dispatcher) send(ctx context.Context, transport Transport, channel *models.AlertChannel, message *AlertMessage) error {
	timeout := d.config.NotificationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return transport.Send(sendCtx, channel, message)
}

// recordAttempt appends one AlertDelivery row. A failure to record is logged
// but never interrupts the dispatch: delivery truth is best-effort relative
// to the attempt itself.
func (d *Dispatcher) recordAttempt(ctx context.Context, logger *logrus.Entry, message *AlertMessage, channelID int64, channelType string, attempt int, outcome, detail string, duration time.Duration) {
	if d.metrics != nil {
		d.metrics.RecordDelivery(channelType, outcome, duration)
	}

	delivery := &models.AlertDelivery{
		AlertHistoryID: message.Alert.ID,
		ChannelID:      channelID,
		Attempt:        attempt,
		Outcome:        outcome,
		Detail:         detail,
		DeliveredAt:    time.Now().UTC(),
	}
	if err := d.store.SaveDelivery(ctx, delivery); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"channel_id": channelID,
			"attempt":    attempt,
		}).Error("Failed to record delivery attempt")
	}
}

// deliveryDetail extracts the underlying transport detail for the delivery
// row, without the error-code framing.
func deliveryDetail(err error) string {
	var appErr *utils.AppError
	if errors.As(err, &appErr) && appErr.Details != "" {
		return appErr.Details
	}
	return err.Error()
}

// retryDelay computes exponential backoff: base * 2^(attempt-2), capped.
func (d *Dispatcher) retryDelay(attempt int) time.Duration {
	delay := d.config.RetryDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	if attempt > 2 {
		delay = time.Duration(int64(delay) << uint(attempt-2))
	}
	if d.config.MaxRetryDelay > 0 && delay > d.config.MaxRetryDelay {
		delay = d.config.MaxRetryDelay
	}
	return delay
}

func (d *Dispatcher) resolveTransport(channel *models.AlertChannel) Transport {
	if channel == nil || !channel.Enabled {
		return nil
	}
	return d.transports[channel.Type]
}

func (d *Dispatcher) unavailableDetail(channel *models.AlertChannel) string {
	switch {
	case channel == nil:
		return "channel does not exist"
	case !channel.Enabled:
		return "channel is disabled"
	default:
		return "no transport for channel type " + channel.Type
	}
}

func channelType(channel *models.AlertChannel) string {
	if channel == nil {
		return "unknown"
	}
	return channel.Type
}

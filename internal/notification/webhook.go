// File: internal/notification/webhook.go
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

// WebhookSender delivers alert notifications via HTTP POST. The channel
// config supplies the URL and optional headers.
type WebhookSender struct {
	client *http.Client
	logger *logrus.Entry
}

// WebhookPayload is the JSON body posted to webhook channels
type WebhookPayload struct {
	EventKind  string    `json:"event_kind"`
	AlertID    int64     `json:"alert_id"`
	TargetName string    `json:"target_name"`
	TargetHost string    `json:"target_host"`
	Severity   string    `json:"severity"`
	AlertType  string    `json:"alert_type"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewWebhookSender creates a new webhook transport
func NewWebhookSender(timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookSender{
		client: &http.Client{Timeout: timeout},
		logger: utils.GetLogger().WithField("component", "webhook_sender"),
	}
}

// Type returns the channel type this transport serves
func (ws *WebhookSender) Type() string {
	return "webhook"
}

// Send posts one alert message to the channel's URL. Any 2xx response is a
// success; everything else is a failure with the status and body recorded.
func (ws *WebhookSender) Send(ctx context.Context, channel *models.AlertChannel, message *AlertMessage) error {
	url := configString(channel.Config, "url")
	if url == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "webhook channel has no url",
			fmt.Sprintf("channel_id=%d", channel.ID))
	}

	payload := &WebhookPayload{
		EventKind:  message.EventKind,
		AlertID:    message.Alert.ID,
		TargetName: message.Target.Name,
		TargetHost: message.Target.Host,
		Severity:   string(message.Alert.Severity),
		AlertType:  message.Alert.AlertType,
		Message:    message.Alert.Message,
		Timestamp:  message.Timestamp,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "failed to encode webhook payload", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "failed to create webhook request", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "auspex-alerter/1.0")
	if headers, ok := channel.Config["headers"].(map[string]interface{}); ok {
		for key, value := range headers {
			if s, ok := value.(string); ok {
				req.Header.Set(key, s)
			}
		}
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeExternal, "webhook request failed", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return utils.NewAppError(utils.ErrCodeExternal, "webhook returned non-2xx status",
			fmt.Sprintf("status=%d body=%s", resp.StatusCode, string(detail)))
	}

	ws.logger.WithFields(logrus.Fields{
		"url":    url,
		"status": resp.StatusCode,
	}).Debug("Webhook delivered")
	return nil
}

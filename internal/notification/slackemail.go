// File: internal/notification/slackemail.go
package notification

import (
	"context"
	"fmt"

	"github.com/auspex-monitoring/auspex/internal/config"
	"github.com/auspex-monitoring/auspex/internal/models"
	"github.com/auspex-monitoring/auspex/pkg/utils"
)

// SlackEmailSender delivers alert notifications to a Slack channel through
// Slack's email-to-channel gateway, over the same shared SMTP relay as the
// email transport. The channel config carries the gateway address under
// "email".
type SlackEmailSender struct {
	email *EmailSender
}

// NewSlackEmailSender creates a new Slack email-gateway transport
func NewSlackEmailSender(cfg *config.SMTPConfig) *SlackEmailSender {
	return &SlackEmailSender{email: NewEmailSender(cfg)}
}

// Type returns the channel type this transport serves
func (ss *SlackEmailSender) Type() string {
	return "slack_email"
}

// Send delivers one alert message to the channel's Slack gateway address
func (ss *SlackEmailSender) Send(ctx context.Context, channel *models.AlertChannel, message *AlertMessage) error {
	gateway := configString(channel.Config, "email")
	if gateway == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "slack_email channel has no gateway address",
			fmt.Sprintf("channel_id=%d", channel.ID))
	}

	relay := *channel
	relay.Config = map[string]interface{}{"to": gateway}
	return ss.email.Send(ctx, &relay, message)
}

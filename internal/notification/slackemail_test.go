// File: internal/notification/slackemail_test.go
package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auspex-monitoring/auspex/internal/config"
	"github.com/auspex-monitoring/auspex/internal/models"
	"github.com/auspex-monitoring/auspex/pkg/utils"
)

func TestSlackEmailMissingGatewayAddress(t *testing.T) {
	sender := NewSlackEmailSender(&testSMTPConfig)
	assert.Equal(t, "slack_email", sender.Type())

	channel := &models.AlertChannel{ID: 1, Type: "slack_email", Config: map[string]interface{}{}, Enabled: true}
	err := sender.Send(context.Background(), channel, pagerDutyMessage(EventTriggered))
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.ErrCodeValidation))
}

func TestSlackEmailRoutesGatewayThroughSMTP(t *testing.T) {
	// No relay host configured: reaching the configuration check proves the
	// gateway address passed the email transport's recipient validation.
	sender := NewSlackEmailSender(&config.SMTPConfig{})

	channel := &models.AlertChannel{
		ID:      1,
		Type:    "slack_email",
		Config:  map[string]interface{}{"email": "ops-alerts@acme.slack.com"},
		Enabled: true,
	}
	err := sender.Send(context.Background(), channel, pagerDutyMessage(EventTriggered))
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.ErrCodeConfiguration))
	// The original channel's config must stay untouched.
	assert.NotContains(t, channel.Config, "to")
}

// File: internal/notification/email.go
package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/auspex-monitoring/auspex/internal/config"
	"github.com/auspex-monitoring/auspex/internal/models"
	"github.com/auspex-monitoring/auspex/pkg/utils"
)

// EmailSender delivers alert notifications over a shared SMTP relay. The
// per-channel config supplies recipients; the relay itself comes from
// application configuration.
type EmailSender struct {
	config *config.SMTPConfig
	logger *logrus.Entry
	auth   smtp.Auth
}

// NewEmailSender creates a new email transport
func NewEmailSender(cfg *config.SMTPConfig) *EmailSender {
	es := &EmailSender{
		config: cfg,
		logger: utils.GetLogger().WithField("component", "email_sender"),
	}
	if cfg.Username != "" && cfg.Password != "" {
		es.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return es
}

// Type returns the channel type this transport serves
func (es *EmailSender) Type() string {
	return "email"
}

// Send delivers one alert message to the channel's recipients
func (es *EmailSender) Send(ctx context.Context, channel *models.AlertChannel, message *AlertMessage) error {
	to := configStrings(channel.Config, "to")
	if len(to) == 0 {
		return utils.NewAppError(utils.ErrCodeValidation, "email channel has no recipients",
			fmt.Sprintf("channel_id=%d", channel.ID))
	}
	if es.config.Host == "" {
		return utils.NewAppError(utils.ErrCodeConfiguration, "SMTP relay not configured")
	}

	body := es.buildMessage(to, message)

	var err error
	if es.config.UseTLS {
		err = es.sendTLS(to, body)
	} else {
		err = es.sendPlain(to, body)
	}
	if err != nil {
		return utils.NewAppError(utils.ErrCodeExternal, "failed to send email", err.Error())
	}

	es.logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": message.Subject(),
	}).Debug("Email sent")
	return nil
}

func (es *EmailSender) sendTLS(to []string, message string) error {
	addr := fmt.Sprintf("%s:%d", es.config.Host, es.config.Port)

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: es.config.Host})
	if err != nil {
		return fmt.Errorf("failed to connect with TLS: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, es.config.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if es.auth != nil {
		if err := client.Auth(es.auth); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}
	if err := client.Mail(es.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, recipient := range to {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", recipient, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	defer writer.Close()

	if _, err := writer.Write([]byte(message)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (es *EmailSender) sendPlain(to []string, message string) error {
	addr := fmt.Sprintf("%s:%d", es.config.Host, es.config.Port)
	return smtp.SendMail(addr, es.auth, es.config.FromEmail, to, []byte(message))
}

func (es *EmailSender) buildMessage(to []string, message *AlertMessage) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("From: %s <%s>\r\n", es.config.FromName, es.config.FromEmail))
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", message.Subject()))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(message.Alert.Message)
	b.WriteString("\r\n\r\n")
	b.WriteString(fmt.Sprintf("Target: %s (%s)\r\n", message.Target.Name, message.Target.Host))
	b.WriteString(fmt.Sprintf("Severity: %s\r\n", message.Alert.Severity))
	b.WriteString(fmt.Sprintf("Fired at: %s\r\n", message.Alert.FiredAt.Format("2006-01-02 15:04:05 MST")))
	if message.Alert.ResolvedAt != nil {
		b.WriteString(fmt.Sprintf("Resolved at: %s\r\n", message.Alert.ResolvedAt.Format("2006-01-02 15:04:05 MST")))
	}
	return b.String()
}

// Package adapters wraps outbound delivery channels behind small interfaces
// so the alert notifier stays vendor-agnostic.
package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/whalewatch/whalewatch/pkg/logger"
)

// EmailServiceConfig holds SendGrid delivery configuration.
type EmailServiceConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// EmailService delivers alert emails through SendGrid.
type EmailService struct {
	logger *logger.Logger
	config EmailServiceConfig
	client *sendgrid.Client
}

func NewEmailService(logger *logger.Logger, config EmailServiceConfig) (*EmailService, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if strings.TrimSpace(config.FromEmail) == "" {
		return nil, fmt.Errorf("email from address is required")
	}

	return &EmailService{
		logger: logger,
		config: config,
		client: sendgrid.NewSendClient(config.APIKey),
	}, nil
}

// SendAlertEmail delivers one transfer alert to a single recipient.
func (e *EmailService) SendAlertEmail(ctx context.Context, to, subject, htmlContent, textContent string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	from := mail.NewEmail(e.config.FromName, e.config.FromEmail)
	toEmail := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, toEmail, textContent, htmlContent)

	response, err := e.client.SendWithContext(ctx, message)
	if err != nil {
		e.logger.Error("failed to send alert email",
			"to", to,
			"subject", subject,
			"error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		e.logger.Error("email service returned error",
			"to", to,
			"subject", subject,
			"status_code", response.StatusCode,
			"response_body", response.Body)
		return fmt.Errorf("email service error: status %d", response.StatusCode)
	}

	e.logger.Info("alert email sent",
		"to", to,
		"subject", subject,
		"status_code", response.StatusCode)

	return nil
}

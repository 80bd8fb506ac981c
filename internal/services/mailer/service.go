// -----------------------------------------------------------------------
// Mailer Service - SMTP delivery for scheduler alerts and insight reports
// -----------------------------------------------------------------------

package mailer

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/common"
	"github.com/ternarybob/harvester/internal/interfaces"
)

// Attachment represents an email attachment
type Attachment struct {
	Filename    string // Filename for the attachment
	ContentType string // MIME type (e.g., "text/markdown", "application/json")
	Content     []byte // Raw content bytes
}

// sendFunc delivers a prepared message to addr
type sendFunc func(addr string, auth smtp.Auth, mail *email.Email) error

// Service sends email through the SMTP server configured in [alerts.email]
type Service struct {
	config common.EmailConfig
	logger arbor.ILogger
	send   sendFunc
}

var _ interfaces.AlertNotifier = (*Service)(nil)

// NewService creates a new mailer service
func NewService(config common.EmailConfig, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		logger: logger,
		send: func(addr string, auth smtp.Auth, mail *email.Email) error {
			return mail.Send(addr, auth)
		},
	}
}

// IsConfigured checks if email delivery is enabled and has a server, sender and recipients
func (s *Service) IsConfigured() bool {
	return s.config.Enabled && s.config.Server != "" && s.config.From != "" && len(s.config.To) > 0
}

// Notify sends a plain-text alert to the configured recipients.
// It is a no-op when email delivery is not configured.
func (s *Service) Notify(ctx context.Context, subject string, message string) error {
	if !s.IsConfigured() {
		s.logger.Debug().Msg("Email alerts not configured, skipping notification")
		return nil
	}

	mail := s.newEmail(subject)
	mail.Text = []byte(message + "\n")
	return s.deliver(ctx, mail)
}

// SendReport sends an HTML report with a plain-text alternative and optional attachments
func (s *Service) SendReport(ctx context.Context, subject, htmlBody, textBody string, attachments []Attachment) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email delivery not configured - enable [alerts.email] with server, from and to")
	}

	mail := s.newEmail(subject)
	mail.HTML = []byte(htmlBody)
	mail.Text = []byte(textBody)

	for _, att := range attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if _, err := mail.Attach(bytes.NewReader(att.Content), att.Filename, contentType); err != nil {
			return fmt.Errorf("failed to attach %s: %w", att.Filename, err)
		}
	}

	return s.deliver(ctx, mail)
}

func (s *Service) newEmail(subject string) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Harvester <%s>", s.config.From)
	mail.To = append([]string(nil), s.config.To...)
	mail.Subject = subject
	return mail
}

func (s *Service) deliver(ctx context.Context, mail *email.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	port := s.config.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", s.config.Server, port)

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Server)
	}

	err := s.send(addr, auth, mail)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = s.send(addr, nil, mail)
	}
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("server", addr).
			Str("subject", mail.Subject).
			Msg("Failed to send email")
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info().
		Str("to", strings.Join(mail.To, ",")).
		Str("subject", mail.Subject).
		Msg("Email sent successfully")

	return nil
}

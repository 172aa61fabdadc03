package mailer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/mail.v2"
)

// SMTPSender delivers email through a plain SMTP relay. Deployments
// that do not run on AWS point the pipeline at their provider's relay
// instead of SES.
type SMTPSender struct {
	dialer *mail.Dialer
	from   string
	logger *zap.Logger
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func NewSMTPSender(cfg SMTPConfig, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{
		dialer: mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

// Send sends a reminder email over SMTP. The dial-and-send happens in
// a goroutine so the caller's context deadline still bounds a hung
// relay connection.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("email missing recipient")
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(msg)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("smtp send aborted: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
	}

	s.logger.Info("email sent via SMTP",
		zap.String("to", to),
		zap.String("host", s.dialer.Host),
	)

	return nil
}

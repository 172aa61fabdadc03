// Package mailer is the email channel of the reminder pipeline.
// The processor only sees the Sender interface; the concrete transport
// (SES, SMTP, or a log sink in development) is chosen at startup.
package mailer

import (
	"context"

	"go.uber.org/zap"
)

// Sender dispatches one rendered email. Implementations report a
// definitive result: nil means the provider accepted the message,
// an error means this dispatch failed.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes emails to the log instead of sending them.
// Used in development and as a safe default when no provider is
// configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.Info("email logged (development mode)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}

package mailer

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestLogSender(t *testing.T) {
	sender := NewLogSender(zap.NewNop())

	err := sender.Send(context.Background(), "maya@example.com", "Starting soon", "See you there")
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestSMTPSenderRejectsEmptyRecipient(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "localhost", Port: 587, From: "noreply@craftwise.app"}, zap.NewNop())

	err := sender.Send(context.Background(), "", "subject", "body")
	if err == nil {
		t.Error("expected error for empty recipient")
	}
}

func TestSMTPSenderHonorsCancelledContext(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "192.0.2.1", Port: 587, From: "noreply@craftwise.app"}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sender.Send(ctx, "maya@example.com", "subject", "body")
	if err == nil {
		t.Error("expected error when context is already cancelled")
	}
}

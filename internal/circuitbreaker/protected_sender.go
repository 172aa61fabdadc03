package circuitbreaker

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Sender mirrors the mailer.Sender interface to avoid a dependency cycle.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ProtectedSender wraps an email sender with a CircuitBreaker. When
// the provider starts failing, the circuit opens and dispatches fail
// fast instead of piling up; the processor records each rejection as
// an ordinary dispatch failure.
type ProtectedSender struct {
	sender  Sender
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedSender wraps a sender with circuit breaker protection.
func NewProtectedSender(sender Sender, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedSender {
	return &ProtectedSender{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
	}
}

// Send attempts a dispatch through the circuit breaker. If the circuit
// is open, returns ErrCircuitOpen immediately.
func (p *ProtectedSender) Send(ctx context.Context, to, subject, body string) error {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected dispatch",
			zap.String("breaker", p.breaker.config.Name),
			zap.String("state", p.breaker.GetState().String()),
		)
		return fmt.Errorf("%w: %s sender unavailable", ErrCircuitOpen, p.breaker.config.Name)
	}

	err := p.sender.Send(ctx, to, subject, body)
	if err != nil {
		p.breaker.RecordFailure()
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}

// Breaker returns the underlying circuit breaker for monitoring.
func (p *ProtectedSender) Breaker() *CircuitBreaker {
	return p.breaker
}

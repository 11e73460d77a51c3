package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Messenger delivers prompts to a user of a transport.
type Messenger interface {
	Send(ctx context.Context, identity string, prompt Prompt) (string, error)
	Edit(ctx context.Context, identity, messageRef string, prompt Prompt) error
}

// OutboundPolicy bounds delivery retries.
type OutboundPolicy struct {
	RetryMax     int
	RetryBackoff time.Duration
	// Retryable reports whether a failed attempt may succeed if repeated.
	// Nil treats every error except context cancellation as retryable.
	Retryable func(error) bool
}

func DefaultOutboundPolicy() OutboundPolicy {
	return OutboundPolicy{RetryMax: 3, RetryBackoff: 500 * time.Millisecond}
}

func NormalizeOutboundPolicy(policy OutboundPolicy) OutboundPolicy {
	if policy.RetryMax <= 0 {
		policy.RetryMax = 1
	}
	if policy.RetryBackoff < 0 {
		policy.RetryBackoff = 0
	}
	return policy
}

// RetryMessenger retries failed deliveries with linear backoff.
type RetryMessenger struct {
	next   Messenger
	policy OutboundPolicy
	logger *slog.Logger
}

func NewRetryMessenger(log *slog.Logger, next Messenger, policy OutboundPolicy) *RetryMessenger {
	if log == nil {
		log = slog.Default()
	}
	return &RetryMessenger{
		next:   next,
		policy: NormalizeOutboundPolicy(policy),
		logger: log.With(slog.String("component", "outbound")),
	}
}

func (m *RetryMessenger) Send(ctx context.Context, identity string, prompt Prompt) (string, error) {
	if prompt.IsEmpty() {
		return "", fmt.Errorf("message is required")
	}
	var ref string
	err := m.retry(ctx, "send", identity, func() error {
		var err error
		ref, err = m.next.Send(ctx, identity, prompt)
		return err
	})
	return ref, err
}

func (m *RetryMessenger) Edit(ctx context.Context, identity, messageRef string, prompt Prompt) error {
	if prompt.IsEmpty() {
		return fmt.Errorf("message is required")
	}
	return m.retry(ctx, "edit", identity, func() error {
		return m.next.Edit(ctx, identity, messageRef, prompt)
	})
}

func (m *RetryMessenger) retry(ctx context.Context, op, identity string, attempt func() error) error {
	var lastErr error
	for i := 0; i < m.policy.RetryMax; i++ {
		err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err
		if !m.retryable(ctx, err) || i == m.policy.RetryMax-1 {
			break
		}
		m.logger.Warn(op+" outbound retry",
			slog.String("identity", identity),
			slog.Int("attempt", i+1),
			slog.Any("error", err))
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s outbound: %w", op, ctx.Err())
		case <-time.After(time.Duration(i+1) * m.policy.RetryBackoff):
		}
	}
	return fmt.Errorf("%s outbound failed: %w", op, lastErr)
}

func (m *RetryMessenger) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if m.policy.Retryable == nil {
		return true
	}
	return m.policy.Retryable(err)
}

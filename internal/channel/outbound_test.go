package channel

import (
	"context"
	"errors"
	"testing"
	"time"
)

type flakyMessenger struct {
	failures int
	calls    int
	err      error
}

func (f *flakyMessenger) Send(context.Context, string, Prompt) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return "1:2", nil
}

func (f *flakyMessenger) Edit(context.Context, string, string, Prompt) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func TestRetryMessengerRecovers(t *testing.T) {
	t.Parallel()

	inner := &flakyMessenger{failures: 2, err: errors.New("timeout")}
	m := NewRetryMessenger(nil, inner, OutboundPolicy{RetryMax: 3, RetryBackoff: time.Millisecond})
	ref, err := m.Send(context.Background(), "1", Prompt{Text: "hi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if ref != "1:2" || inner.calls != 3 {
		t.Fatalf("ref=%q calls=%d", ref, inner.calls)
	}
}

func TestRetryMessengerGivesUp(t *testing.T) {
	t.Parallel()

	boom := errors.New("timeout")
	inner := &flakyMessenger{failures: 10, err: boom}
	m := NewRetryMessenger(nil, inner, OutboundPolicy{RetryMax: 2, RetryBackoff: time.Millisecond})
	err := m.Edit(context.Background(), "1", "1:2", Prompt{Text: "hi"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("calls=%d", inner.calls)
	}
}

func TestRetryMessengerStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	permanent := errors.New("forbidden: bot was blocked by the user")
	inner := &flakyMessenger{failures: 10, err: permanent}
	m := NewRetryMessenger(nil, inner, OutboundPolicy{
		RetryMax:     5,
		RetryBackoff: time.Millisecond,
		Retryable:    func(err error) bool { return !errors.Is(err, permanent) },
	})
	if _, err := m.Send(context.Background(), "1", Prompt{Text: "hi"}); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Fatalf("calls=%d", inner.calls)
	}
}

func TestRetryMessengerRejectsEmptyPrompt(t *testing.T) {
	t.Parallel()

	inner := &flakyMessenger{}
	m := NewRetryMessenger(nil, inner, DefaultOutboundPolicy())
	if _, err := m.Send(context.Background(), "1", Prompt{Text: " "}); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 0 {
		t.Fatalf("calls=%d", inner.calls)
	}
}

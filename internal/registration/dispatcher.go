package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/crossfellowship/registrar/internal/channel"
)

const DefaultEventTimeout = 2 * time.Minute

var ErrDispatcherClosed = errors.New("dispatcher closed")

// Handler processes one event.
type Handler interface {
	Handle(ctx context.Context, ev channel.Event) error
}

type HandlerFunc func(ctx context.Context, ev channel.Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev channel.Event) error { return f(ctx, ev) }

// Dispatcher serializes events per identity while different identities are
// handled concurrently. Each identity gets a mailbox drained by one goroutine
// that exits when the mailbox is empty.
type Dispatcher struct {
	logger  *slog.Logger
	handler Handler
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	mailboxes map[string]*mailbox
	closed    bool
	wg        sync.WaitGroup
}

type mailbox struct {
	queue []channel.Event
}

// NewDispatcher wraps handler. A non-positive timeout uses DefaultEventTimeout.
func NewDispatcher(log *slog.Logger, handler Handler, timeout time.Duration) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultEventTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		logger:    log.With(slog.String("service", "dispatcher")),
		handler:   handler,
		timeout:   timeout,
		ctx:       ctx,
		cancel:    cancel,
		mailboxes: map[string]*mailbox{},
	}
}

// Dispatch enqueues ev behind any pending events of the same identity.
func (d *Dispatcher) Dispatch(ev channel.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	box, ok := d.mailboxes[ev.Identity]
	if ok {
		box.queue = append(box.queue, ev)
		return nil
	}
	box = &mailbox{queue: []channel.Event{ev}}
	d.mailboxes[ev.Identity] = box
	d.wg.Add(1)
	go d.drain(ev.Identity, box)
	return nil
}

func (d *Dispatcher) drain(identity string, box *mailbox) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(box.queue) == 0 {
			delete(d.mailboxes, identity)
			d.mu.Unlock()
			return
		}
		ev := box.queue[0]
		box.queue[0] = channel.Event{}
		box.queue = box.queue[1:]
		d.mu.Unlock()

		d.run(ev)
	}
}

func (d *Dispatcher) run(ev channel.Event) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()
	if err := d.safeHandle(ctx, ev); err != nil {
		d.logger.Error("handle event failed",
			slog.String("identity", ev.Identity),
			slog.String("modality", ev.Modality.String()),
			slog.Any("error", err),
		)
	}
}

func (d *Dispatcher) safeHandle(ctx context.Context, ev channel.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked", slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.handler.Handle(ctx, ev)
}

// Shutdown stops accepting events and waits for queued ones to finish.
// When ctx expires first, in-flight handlers are cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}

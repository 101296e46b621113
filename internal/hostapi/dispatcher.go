package hostapi

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentic-research/ttsync/internal/protocol"
)

// ErrRequestPending is returned when a second request is issued while one is
// still awaiting its reply.
var ErrRequestPending = errors.New("another request is awaiting a reply")

// HostError is a script error the host reported while a request was pending.
type HostError struct {
	GUID    string
	Prefix  string
	Message string
}

func (e *HostError) Error() string {
	return e.Prefix + e.Message
}

// match reports whether a decoded answer is the reply a waiter expects.
type match func(protocol.Answer) bool

// Notification is an inbound message that was not a reply, with the
// document it was decoded from.
type Notification struct {
	protocol.Answer
	Raw []byte
}

type result struct {
	answer protocol.Answer
	err    error
}

type waiter struct {
	match match
	reply chan result
}

// Dispatcher is the only reader of the inbound document stream. Each
// document goes to the pending waiter when it matches (or is an error
// notification); everything else goes to the notification queue.
type Dispatcher struct {
	log zerolog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending *waiter
	queue   []Notification
	stopped bool
	err     error

	notes chan Notification
}

// NewDispatcher starts routing docs. It stops when docs is closed; closeErr
// is consulted then to report why.
func NewDispatcher(docs <-chan []byte, closeErr func() error, log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		log:   log.With().Str("component", "dispatcher").Logger(),
		notes: make(chan Notification),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.route(docs, closeErr)
	go d.pump()
	return d
}

// Notifications yields every inbound message that was not a reply to a
// pending request. It is closed after the inbound stream ends and the queue
// drains.
func (d *Dispatcher) Notifications() <-chan Notification { return d.notes }

// Err reports why the inbound stream ended, once Notifications is closed.
func (d *Dispatcher) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *Dispatcher) route(docs <-chan []byte, closeErr func() error) {
	for doc := range docs {
		a, err := protocol.Decode(doc)
		d.deliver(doc, a, err)
	}

	d.mu.Lock()
	d.stopped = true
	d.err = closeErr()
	if d.pending != nil {
		d.pending.reply <- result{err: fmt.Errorf("awaiting reply: %w", d.err)}
		d.pending = nil
	}
	d.cond.Broadcast()
	d.mu.Unlock()
}

func (d *Dispatcher) deliver(doc []byte, a protocol.Answer, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if w := d.pending; w != nil {
		switch {
		case err != nil:
			w.reply <- result{err: err}
			d.pending = nil
			return
		case w.match(a):
			w.reply <- result{answer: a}
			d.pending = nil
			return
		}
		if e, ok := a.(*protocol.Error); ok {
			w.reply <- result{err: &HostError{GUID: e.GUID, Prefix: e.ErrorMessagePrefix, Message: e.Error}}
			d.pending = nil
			return
		}
	}
	if err != nil {
		d.log.Warn().Err(err).Msg("discarding inbound document")
		return
	}
	d.queue = append(d.queue, Notification{Answer: a, Raw: doc})
	d.cond.Signal()
}

// pump forwards queued notifications so routing never blocks on a slow
// consumer.
func (d *Dispatcher) pump() {
	defer close(d.notes)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.stopped {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		n := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()
		d.notes <- n
	}
}

// Exchange registers a waiter for the reply selected by m, runs send, and
// blocks until the reply arrives, the host reports an error, ctx ends, or
// the inbound stream stops. The waiter is gone when Exchange returns.
func (d *Dispatcher) Exchange(ctx context.Context, m match, send func() error) (protocol.Answer, error) {
	w := &waiter{match: m, reply: make(chan result, 1)}

	d.mu.Lock()
	if d.stopped {
		err := d.err
		d.mu.Unlock()
		return nil, fmt.Errorf("awaiting reply: %w", err)
	}
	if d.pending != nil {
		d.mu.Unlock()
		return nil, ErrRequestPending
	}
	d.pending = w
	d.mu.Unlock()

	release := func() {
		d.mu.Lock()
		if d.pending == w {
			d.pending = nil
		}
		d.mu.Unlock()
	}

	if err := send(); err != nil {
		release()
		return nil, err
	}

	select {
	case r := <-w.reply:
		return r.answer, r.err
	case <-ctx.Done():
		release()
		// A reply may have landed between ctx firing and release.
		select {
		case r := <-w.reply:
			return r.answer, r.err
		default:
		}
		return nil, ctx.Err()
	}
}

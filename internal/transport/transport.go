// Package transport moves single JSON documents over short-lived TCP
// connections: one connection per message, written in full and closed.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultHostAddr is where the host listens for our requests.
	DefaultHostAddr = "127.0.0.1:39999"
	// DefaultListenAddr is where the host delivers its messages.
	DefaultListenAddr = "127.0.0.1:39998"

	// MaxDocumentSize bounds a single inbound document. Reload messages carry
	// every script in the save, so this is generous.
	MaxDocumentSize = 256 << 20

	readTimeout = 10 * time.Second
)

var (
	// ErrHostUnreachable reports that nothing accepted a connection at the
	// host address, typically because the game is not running.
	ErrHostUnreachable = errors.New("host unreachable")
	// ErrListenerClosed reports that the inbound listener stopped.
	ErrListenerClosed = errors.New("listener closed")
)

// Send dials addr, writes doc, and closes the connection.
func Send(ctx context.Context, addr string, doc []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w at %s: %v", ErrHostUnreachable, addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.Write(doc); err != nil {
		return fmt.Errorf("write to %s: %w", addr, err)
	}
	return nil
}

// Listener accepts inbound connections and delivers each connection's full
// contents as one document. Connections are read concurrently, so documents
// arrive in the order their connections finish, and a stalled peer holds up
// nobody but itself.
type Listener struct {
	ln     net.Listener
	docs   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	err    error
	log    zerolog.Logger
}

// Listen binds addr. Inbound documents are available from Docs until Close
// is called or accepting fails.
func Listen(ctx context.Context, addr string, log zerolog.Logger) (*Listener, error) {
	lc := net.ListenConfig{Control: reuseAddr}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	lctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		ln:     ln,
		docs:   make(chan []byte),
		ctx:    lctx,
		cancel: cancel,
		log:    log.With().Str("component", "listener").Logger(),
	}
	go l.accept()
	return l, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Docs yields one document per inbound connection. It is closed when the
// listener stops.
func (l *Listener) Docs() <-chan []byte { return l.docs }

// Err reports why the listener stopped. It is only meaningful after Docs is
// closed; a listener stopped by Close reports ErrListenerClosed.
func (l *Listener) Err() error { return l.err }

// Close stops accepting connections.
func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		l.cancel()
		err = l.ln.Close()
	})
	return err
}

func (l *Listener) accept() {
	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		close(l.docs)
	}()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.ctx.Err() != nil {
				l.err = ErrListenerClosed
			} else {
				l.err = fmt.Errorf("accept: %w", err)
			}
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.serve(conn)
		}()
	}
}

// serve reads one document from conn and hands it on. Closing the listener
// aborts the read.
func (l *Listener) serve(conn net.Conn) {
	stop := context.AfterFunc(l.ctx, func() { _ = conn.Close() })
	defer stop()

	remote := conn.RemoteAddr().String()
	doc, err := readDocument(conn)
	if err != nil {
		if l.ctx.Err() == nil {
			l.log.Warn().Err(err).Str("remote", remote).Msg("dropping inbound connection")
		}
		return
	}
	if len(doc) == 0 {
		return
	}
	select {
	case l.docs <- doc:
	case <-l.ctx.Done():
	}
}

func readDocument(conn net.Conn) ([]byte, error) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	doc, err := io.ReadAll(io.LimitReader(conn, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if len(doc) > MaxDocumentSize {
		return nil, fmt.Errorf("document exceeds %d bytes", MaxDocumentSize)
	}
	return doc, nil
}

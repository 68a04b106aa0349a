package multistream

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/dep2p/go-multistream/internal/log"
)

var lazyLog = log.Component("lazy")

// lazyState is the handshake state of a LazyStream.
type lazyState int

const (
	lazyNotYet lazyState = iota
	lazyHandshaking
	lazyReady
	lazyFailed
)

// LazyStream wraps an io.ReadWriteCloser and an initiator-side
// protocol selection, deferring the actual handshake until the first
// Read or Write instead of performing it in a constructor. Concurrent
// callers that race to trigger the handshake all observe the same
// outcome: exactly one of them runs it, via singleflight, and the
// rest block until it completes and share its result.
type LazyStream struct {
	rwc      io.ReadWriteCloser
	protocol string

	mu    sync.Mutex
	state lazyState
	err   error

	group singleflight.Group
}

// NewLazyStream returns a LazyStream that will select protocol on
// rwc the first time application code reads or writes to it.
func NewLazyStream(rwc io.ReadWriteCloser, protocol string) *LazyStream {
	return &LazyStream{rwc: rwc, protocol: protocol, state: lazyNotYet}
}

func (l *LazyStream) ensureNegotiated(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case lazyReady:
		l.mu.Unlock()
		return nil
	case lazyFailed:
		err := l.err
		l.mu.Unlock()
		return err
	}
	l.mu.Unlock()

	_, err, _ := l.group.Do("negotiate", func() (interface{}, error) {
		l.mu.Lock()
		if l.state == lazyReady {
			l.mu.Unlock()
			return nil, nil
		}
		if l.state == lazyFailed {
			err := l.err
			l.mu.Unlock()
			return nil, err
		}
		l.state = lazyHandshaking
		l.mu.Unlock()

		lazyLog.Debug("performing deferred handshake", "protocol", l.protocol)
		negErr := SelectProtoOrFailContext(ctx, l.protocol, l.rwc)

		l.mu.Lock()
		if negErr != nil {
			l.state = lazyFailed
			l.err = negErr
		} else {
			l.state = lazyReady
		}
		l.mu.Unlock()
		return nil, negErr
	})
	return err
}

// Read triggers the deferred handshake if it has not run yet, then
// reads from the underlying stream.
func (l *LazyStream) Read(p []byte) (int, error) {
	if err := l.ensureNegotiated(context.Background()); err != nil {
		return 0, err
	}
	return l.rwc.Read(p)
}

// Write triggers the deferred handshake if it has not run yet, then
// writes to the underlying stream.
func (l *LazyStream) Write(p []byte) (int, error) {
	if err := l.ensureNegotiated(context.Background()); err != nil {
		return 0, err
	}
	return l.rwc.Write(p)
}

// ReadContext and WriteContext are the cooperative forms of Read and
// Write: the deferred handshake, if still pending, observes ctx.
func (l *LazyStream) ReadContext(ctx context.Context, p []byte) (int, error) {
	if err := l.ensureNegotiated(ctx); err != nil {
		return 0, err
	}
	return l.rwc.Read(p)
}

func (l *LazyStream) WriteContext(ctx context.Context, p []byte) (int, error) {
	if err := l.ensureNegotiated(ctx); err != nil {
		return 0, err
	}
	return l.rwc.Write(p)
}

// Close closes the underlying stream regardless of whether the
// handshake ever ran. If the handshake had already failed, both
// errors are combined.
func (l *LazyStream) Close() error {
	l.mu.Lock()
	handshakeErr := l.err
	l.mu.Unlock()

	closeErr := l.rwc.Close()
	if handshakeErr != nil {
		return multierr.Append(fmt.Errorf("lazy stream handshake: %w", handshakeErr), closeErr)
	}
	return closeErr
}

// Protocol returns the protocol this stream will select, regardless
// of whether the handshake has run yet.
func (l *LazyStream) Protocol() string { return l.protocol }

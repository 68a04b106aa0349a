package multistream

import (
	"context"
	"fmt"
	"io"

	"github.com/jbenet/goprocess"

	"github.com/dep2p/go-multistream/internal/log"
)

var muxerLog = log.Component("muxer")

// maxNegotiationAttempts bounds the listener-side negotiation loop,
// so a peer that keeps offering "ls" or unsupported protocols forever
// cannot pin a goroutine indefinitely.
const maxNegotiationAttempts = 100

// Muxer is the listener half of multistream-select: it owns a
// Registry of supported protocols and runs the handshake/select state
// machine against an incoming connection.
type Muxer struct {
	registry *Registry
	config   Config
	metrics  *Metrics
}

// NewMuxer returns a Muxer backed by registry. If registry is nil, a
// fresh empty Registry is created.
func NewMuxer(registry *Registry, opts ...ConfigOption) *Muxer {
	if registry == nil {
		registry = NewRegistry()
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Muxer{registry: registry, config: cfg}
}

// SetMetrics attaches m to the Muxer; pass nil to disable metrics.
func (mux *Muxer) SetMetrics(m *Metrics) { mux.metrics = m }

// AddHandler registers h on the Muxer's registry.
func (mux *Muxer) AddHandler(h Handler) { mux.registry.Add(h) }

// AddHandlerFunc registers a synchronous handler function.
func (mux *Muxer) AddHandlerFunc(protocol string, fn HandlerFunc) {
	mux.registry.AddFunc(protocol, fn)
}

// AddHandlerFuncContext registers a cooperative handler function.
func (mux *Muxer) AddHandlerFuncContext(protocol string, fn HandlerFuncContext) {
	mux.registry.AddFuncContext(protocol, fn)
}

// RemoveHandler unregisters protocol.
func (mux *Muxer) RemoveHandler(protocol string) { mux.registry.Remove(protocol) }

// Protocols returns the Muxer's currently registered protocol IDs.
func (mux *Muxer) Protocols() []string { return mux.registry.Protocols() }

// Negotiate runs the listener-side handshake and protocol selection
// loop against rwc, without dispatching a handler. It returns the
// agreed protocol ID, or ("", nil) if the peer closed the connection
// before offering one.
func (mux *Muxer) Negotiate(rwc io.ReadWriteCloser) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mux.config.NegotiationTimeout)
	defer cancel()
	return mux.NegotiateContext(ctx, rwc)
}

// NegotiateContext is the cooperative form of Negotiate.
func (mux *Muxer) NegotiateContext(ctx context.Context, rwc io.ReadWriteCloser) (string, error) {
	defer applyContextDeadline(ctx, rwc)()

	if err := HandshakeAsListenerContext(ctx, rwc); err != nil {
		if err == io.EOF {
			return "", nil
		}
		return "", fmt.Errorf("listener handshake: %w", err)
	}

	for attempt := 0; attempt < maxNegotiationAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrCancelled, err)
		}

		tok, err := readTokenCtx(ctx, rwc)
		if err != nil {
			if err == io.EOF {
				return "", nil
			}
			return "", fmt.Errorf("reading protocol token: %w", err)
		}

		switch {
		case tok == LSToken:
			mux.metrics.ls()
			if err := WriteLsResponse(rwc, mux.registry.Protocols()); err != nil {
				return "", fmt.Errorf("writing ls response: %w", err)
			}
			continue
		case mux.registry.Has(tok):
			if err := WriteBufferedTokenString(rwc, tok); err != nil {
				return "", fmt.Errorf("echoing selected protocol: %w", err)
			}
			mux.metrics.accept(tok)
			return tok, nil
		default:
			mux.metrics.reject(tok)
			if err := WriteBufferedTokenString(rwc, NAToken); err != nil {
				return "", fmt.Errorf("writing na response: %w", err)
			}
			continue
		}
	}
	return "", fmt.Errorf("multistream: exceeded %d negotiation attempts", maxNegotiationAttempts)
}

// Handle negotiates a protocol on rwc and dispatches to its
// registered handler. It returns false, nil if the peer closed before
// offering any protocol.
func (mux *Muxer) Handle(rwc io.ReadWriteCloser) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mux.config.NegotiationTimeout)
	defer cancel()
	return mux.HandleContext(ctx, rwc)
}

// HandleContext is the cooperative form of Handle. The negotiation
// step observes ctx's deadline; the dispatched handler's own context
// is a fresh context.Background(), since a handler typically outlives
// the negotiation timeout.
func (mux *Muxer) HandleContext(ctx context.Context, rwc io.ReadWriteCloser) (bool, error) {
	protocol, err := mux.NegotiateContext(ctx, rwc)
	if err != nil {
		return false, err
	}
	if protocol == "" {
		return false, nil
	}
	h, ok := mux.registry.Get(protocol)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrProtocolNotSupported, protocol)
	}
	muxerLog.Debug("dispatching handler", "protocol", protocol)
	return h.Dispatch(context.Background(), rwc)
}

// Serve runs HandleContext under the lifetime of a goprocess.Process,
// so the negotiation's context is cancelled when proc closes; the
// dispatched handler still runs with its own context.Background(), as
// in HandleContext. This is the
// entry point for callers that manage connection lifetimes as a
// goprocess tree instead of passing contexts by hand.
func (mux *Muxer) Serve(proc goprocess.Process, rwc io.ReadWriteCloser) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mux.config.NegotiationTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-proc.Closing():
			cancel()
		case <-done:
		}
	}()
	defer close(done)

	return mux.HandleContext(ctx, rwc)
}

// Ls runs the listener side of an "ls" exchange in isolation, for
// callers that want to answer introspection requests without running
// the full negotiation loop (e.g. a lightweight status probe).
func (mux *Muxer) Ls(rwc io.ReadWriteCloser) error {
	mux.metrics.ls()
	return WriteLsResponse(rwc, mux.registry.Protocols())
}

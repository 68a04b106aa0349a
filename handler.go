package multistream

import (
	"context"
	"fmt"
	"io"
)

// HandlerFunc is a synchronous protocol handler: given the negotiated
// protocol ID and the now-committed stream, it serves the connection
// and reports whether it completed without error.
type HandlerFunc func(protocol string, rwc io.ReadWriteCloser) bool

// HandlerFuncContext is the cooperative counterpart to HandlerFunc. It
// receives a context so a long-running handler can observe
// cancellation, and it can report an error directly instead of
// collapsing failure to a bool.
type HandlerFuncContext func(ctx context.Context, protocol string, rwc io.ReadWriteCloser) (bool, error)

// Handler pairs a protocol ID with up to one synchronous and one
// cooperative implementation. At least one of Sync or Async must be
// set; a Handler with both set lets the caller decide which form to
// invoke depending on whether it has a context worth propagating.
type Handler struct {
	Protocol string
	Sync     HandlerFunc
	Async    HandlerFuncContext
}

// NewHandler builds a Handler wrapping a synchronous implementation.
func NewHandler(protocol string, fn HandlerFunc) Handler {
	return Handler{Protocol: protocol, Sync: fn}
}

// NewHandlerContext builds a Handler wrapping a cooperative implementation.
func NewHandlerContext(protocol string, fn HandlerFuncContext) Handler {
	return Handler{Protocol: protocol, Async: fn}
}

// Dispatch runs the handler against rwc, preferring Async when present
// so cancellation via ctx is honored; it falls back to Sync run on the
// calling goroutine, ignoring ctx, when Async is nil. A plain boolean
// outcome is surfaced unchanged, with a nil error either way; an error
// returned by Async is wrapped with ErrHandlerError. A Handler with
// neither Sync nor Async set simply reports false.
func (h Handler) Dispatch(ctx context.Context, rwc io.ReadWriteCloser) (bool, error) {
	switch {
	case h.Async != nil:
		ok, err := h.Async(ctx, h.Protocol, rwc)
		if err != nil {
			return ok, fmt.Errorf("%w: %w", ErrHandlerError, err)
		}
		return ok, nil
	case h.Sync != nil:
		return h.Sync(h.Protocol, rwc), nil
	default:
		return false, nil
	}
}

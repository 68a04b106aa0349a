package multistream

import "errors"

// Sentinel errors for the negotiation state machine. Each is wrapped
// with call-site context via fmt.Errorf's %w before it reaches a
// caller, so errors.Is still matches against these values.
var (
	// ErrVersionMismatch means the first token read during a handshake
	// was not PROTOCOL_ID.
	ErrVersionMismatch = errors.New("multistream: version mismatch")

	// ErrMessageTooLarge means a declared token length exceeded
	// MaxTokenPayload. A best-effort TOO_LARGE_MSG token is sent back
	// to the peer before this error is returned.
	ErrMessageTooLarge = errors.New("multistream: message too large")

	// ErrMissingDelimiter means a token's declared-length payload did
	// not end in the delimiter byte.
	ErrMissingDelimiter = errors.New("multistream: token missing delimiter")

	// ErrBadEncoding means a token's payload was not valid UTF-8, or
	// contained an interior newline before the trailing delimiter.
	ErrBadEncoding = errors.New("multistream: invalid token encoding")

	// ErrProtocolNotSupported means try_select was rejected by the
	// peer, or select_one_of exhausted every candidate.
	ErrProtocolNotSupported = errors.New("multistream: protocol not supported")

	// ErrUnexpectedToken means try_select received a response that was
	// neither the requested protocol nor "na".
	ErrUnexpectedToken = errors.New("multistream: unexpected token")

	// ErrCancelled means a cancellation signal was observed mid-operation.
	ErrCancelled = errors.New("multistream: negotiation cancelled")

	// ErrTransportClosed means end-of-stream was observed where the
	// protocol required more bytes: mid-frame (after the frame's varint
	// length was already read), or before the listener answered the
	// initiator's version token.
	ErrTransportClosed = errors.New("multistream: transport closed mid-frame")

	// ErrHandlerError wraps a failure propagated by a registered
	// handler's async dispatch function. The wire negotiation itself
	// already completed successfully by the time this can occur.
	ErrHandlerError = errors.New("multistream: handler error")
)

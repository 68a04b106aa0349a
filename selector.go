package multistream

import (
	"context"
	"fmt"
	"io"
)

// SelectProtoOrFail runs the full initiator handshake and tries to
// select exactly one protocol: the version handshake, then a single
// TrySelect. It returns ErrProtocolNotSupported if the listener
// rejects it.
func SelectProtoOrFail(protocol string, rwc io.ReadWriteCloser) error {
	ctx, cancel := negotiationDeadline()
	defer cancel()
	return SelectProtoOrFailContext(ctx, protocol, rwc)
}

// SelectProtoOrFailContext is the cooperative form of SelectProtoOrFail.
func SelectProtoOrFailContext(ctx context.Context, protocol string, rwc io.ReadWriteCloser) error {
	defer applyContextDeadline(ctx, rwc)()

	if err := HandshakeAsInitiatorContext(ctx, rwc); err != nil {
		return err
	}
	return TrySelectContext(ctx, rwc, protocol)
}

// SelectOneOf runs the initiator handshake once, then tries each
// candidate protocol in order until the listener accepts one or the
// list is exhausted. It returns the accepted protocol.
func SelectOneOf(protocols []string, rwc io.ReadWriteCloser) (string, error) {
	ctx, cancel := negotiationDeadline()
	defer cancel()
	return SelectOneOfContext(ctx, protocols, rwc)
}

// SelectOneOfContext is the cooperative form of SelectOneOf.
func SelectOneOfContext(ctx context.Context, protocols []string, rwc io.ReadWriteCloser) (string, error) {
	if len(protocols) == 0 {
		return "", fmt.Errorf("%w: no candidate protocols supplied", ErrProtocolNotSupported)
	}
	defer applyContextDeadline(ctx, rwc)()

	if err := HandshakeAsInitiatorContext(ctx, rwc); err != nil {
		return "", err
	}
	var lastErr error
	for _, p := range protocols {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		if err := TrySelectContext(ctx, rwc, p); err != nil {
			lastErr = err
			continue
		}
		return p, nil
	}
	return "", fmt.Errorf("%w: none of %d candidates accepted: %v", ErrProtocolNotSupported, len(protocols), lastErr)
}

// ReadNextToken reads a single raw token from rwc, without any
// protocol interpretation. It exists for callers driving their own
// custom negotiation loop on top of the token codec.
func ReadNextToken(r io.Reader) (string, error) {
	return ReadToken(r)
}

// ReadNextTokenContext is the cooperative form of ReadNextToken.
func ReadNextTokenContext(ctx context.Context, r io.Reader) (string, error) {
	return readTokenCtx(ctx, r)
}

// Ls runs the initiator side of an "ls" exchange: handshake, request
// the listener's protocol list, and return it.
func Ls(rwc io.ReadWriteCloser) ([]string, error) {
	ctx, cancel := negotiationDeadline()
	defer cancel()
	return LsContext(ctx, rwc)
}

// LsContext is the cooperative form of Ls.
func LsContext(ctx context.Context, rwc io.ReadWriteCloser) ([]string, error) {
	defer applyContextDeadline(ctx, rwc)()

	if err := HandshakeAsInitiatorContext(ctx, rwc); err != nil {
		return nil, err
	}
	if err := WriteLs(rwc); err != nil {
		return nil, fmt.Errorf("writing ls request: %w", err)
	}
	return ReadLsResponseContext(ctx, rwc)
}

// negotiationDeadline is a small helper shared by the blocking
// entry points above to derive a context with the package default
// timeout; kept as a named function so the timeout is documented in
// one place rather than repeated at each call site.
func negotiationDeadline() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), DefaultNegotiationTimeout)
}

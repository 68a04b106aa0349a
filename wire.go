package multistream

import (
	"bytes"
	"context"
	"fmt"
	"io"

	varint "github.com/multiformats/go-varint"
)

// HandshakeAsInitiator writes the multistream-select version token and
// verifies the listener echoes it back. It is the first step of every
// initiator-side negotiation.
func HandshakeAsInitiator(rw io.ReadWriter) error {
	return HandshakeAsInitiatorContext(context.Background(), rw)
}

// HandshakeAsInitiatorContext is the cooperative form of HandshakeAsInitiator.
func HandshakeAsInitiatorContext(ctx context.Context, rw io.ReadWriter) error {
	if err := WriteBufferedTokenString(rw, ProtocolID); err != nil {
		return fmt.Errorf("writing version token: %w", err)
	}
	tok, err := readTokenCtx(ctx, rw)
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: peer closed before echoing version", ErrTransportClosed)
		}
		return err
	}
	if tok != ProtocolID {
		return fmt.Errorf("%w: got %q", ErrVersionMismatch, tok)
	}
	return nil
}

// HandshakeAsListener reads the peer's version token and echoes it
// back. It is the first step of every listener-side negotiation. A
// peer that closes before sending any byte yields a bare io.EOF.
func HandshakeAsListener(rw io.ReadWriter) error {
	return HandshakeAsListenerContext(context.Background(), rw)
}

// HandshakeAsListenerContext is the cooperative form of HandshakeAsListener.
func HandshakeAsListenerContext(ctx context.Context, rw io.ReadWriter) error {
	tok, err := readTokenCtx(ctx, rw)
	if err != nil {
		return err
	}
	if tok != ProtocolID {
		return fmt.Errorf("%w: got %q", ErrVersionMismatch, tok)
	}
	return WriteBufferedTokenString(rw, ProtocolID)
}

// TrySelect writes protocol as a token and interprets the listener's
// single-token reply: an echo of protocol means acceptance, "na"
// means the listener does not support it, anything else is
// ErrUnexpectedToken. A peer that closes before replying is treated
// like "na" (ErrProtocolNotSupported).
func TrySelect(rw io.ReadWriter, protocol string) error {
	return TrySelectContext(context.Background(), rw, protocol)
}

// TrySelectContext is the cooperative form of TrySelect.
func TrySelectContext(ctx context.Context, rw io.ReadWriter, protocol string) error {
	if err := WriteBufferedTokenString(rw, protocol); err != nil {
		return fmt.Errorf("writing protocol token: %w", err)
	}
	tok, err := readTokenCtx(ctx, rw)
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: %q: peer closed before responding", ErrProtocolNotSupported, protocol)
		}
		return err
	}
	switch tok {
	case protocol:
		return nil
	case NAToken:
		return fmt.Errorf("%w: %q", ErrProtocolNotSupported, protocol)
	default:
		return fmt.Errorf("%w: expected %q or %q, got %q", ErrUnexpectedToken, protocol, NAToken, tok)
	}
}

// WriteLs sends the "ls" introspection request.
func WriteLs(rw io.ReadWriter) error {
	return WriteBufferedTokenString(rw, LSToken)
}

// ReadLsResponse reads the listener's reply to an "ls" request: an
// outer varint length wrapping an inner varint count followed by that
// many protocol tokens. The outer length lets a reader skip the whole
// listing without parsing any of the tokens inside it.
func ReadLsResponse(r io.Reader) ([]string, error) {
	return ReadLsResponseContext(context.Background(), r)
}

// ReadLsResponseContext is the cooperative form of ReadLsResponse.
func ReadLsResponseContext(ctx context.Context, r io.Reader) ([]string, error) {
	br := byteReader(r)

	outerLen, err := varint.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading ls outer length: %v", ErrTransportClosed, err)
	}

	inner := make([]byte, outerLen)
	if _, err := readFullYielding(br, inner); err != nil {
		return nil, fmt.Errorf("%w: reading ls body: %v", ErrTransportClosed, err)
	}
	ibr := byteReader(bytes.NewReader(inner))

	count, err := varint.ReadUvarint(ibr)
	if err != nil {
		return nil, fmt.Errorf("%w: reading ls count: %v", ErrTransportClosed, err)
	}
	protocols := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		tok, err := ReadToken(ibr)
		if err != nil {
			return nil, fmt.Errorf("reading ls entry %d/%d: %w", i+1, count, err)
		}
		protocols = append(protocols, tok)
	}
	return protocols, nil
}

// WriteLsResponse writes the listener's reply to an "ls" request as a
// single buffered message: an inner buffer holding a varint count
// followed by one token per protocol, wrapped in an outer varint
// length covering that whole inner buffer.
func WriteLsResponse(w io.Writer, protocols []string) error {
	var inner bytes.Buffer
	if err := writeUvarint(&inner, uint64(len(protocols))); err != nil {
		return err
	}
	for _, p := range protocols {
		if err := WriteToken(&inner, []byte(p)); err != nil {
			return err
		}
	}

	var outer bytes.Buffer
	if err := writeUvarint(&outer, uint64(inner.Len())); err != nil {
		return err
	}
	if _, err := outer.Write(inner.Bytes()); err != nil {
		return err
	}

	if _, err := w.Write(outer.Bytes()); err != nil {
		return err
	}
	return flushIfPossible(w)
}

// readTokenCtx reads one token, returning ErrCancelled promptly if ctx
// is already done. When r is also an io.Writer (the peer's stream), it
// reads through ReadTokenFrom so a too-large token is answered with the
// TooLargeMsg notice. It does not itself interrupt an in-flight
// blocking Read; that is handled once per operation by
// applyContextDeadline in Muxer.NegotiateContext,
// SelectProtoOrFailContext, SelectOneOfContext and LsContext, which set
// rwc's I/O deadline from ctx's deadline when rwc supports one.
func readTokenCtx(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	if w, ok := r.(io.Writer); ok {
		return ReadTokenFrom(r, w)
	}
	return ReadToken(r)
}

package multistream

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	varint "github.com/multiformats/go-varint"
)

const (
	// ProtocolID is the literal multistream-select version this
	// package speaks. There is no negotiation of this constant itself.
	ProtocolID = "/multistream/1.0.0"

	// Delimiter terminates every token's payload.
	Delimiter byte = '\n'

	// NAToken is the payload a listener sends back for a protocol it
	// does not support.
	NAToken = "na"

	// LSToken requests a listing of the listener's registered protocols.
	LSToken = "ls"

	// MaxTokenPayload bounds the declared varint length of a token's
	// payload (including the trailing delimiter byte).
	MaxTokenPayload = 65536

	// TooLargeMsg is sent back to a peer whose declared token length
	// exceeded MaxTokenPayload, best-effort, before ErrMessageTooLarge
	// is returned locally.
	TooLargeMsg = "Messages over 64k are not allowed"
)

// shortReadYield is the workaround delay for a non-blocking io.Reader
// that returns (0, nil) without signaling end-of-stream. A correct
// io.Reader never does this (see the io.Reader doc), but the wire
// protocol historically tolerated it, so the read loop still yields
// here instead of busy-spinning. The context-aware *Context functions
// read through the same loop: they check ctx only between tokens, and
// ctx is not observed during this sleep.
const shortReadYield = time.Millisecond

// writeUvarint writes x as a varint to w, since go-varint does not
// expose a WriteUvarint helper for io.Writer.
func writeUvarint(w io.Writer, x uint64) error {
	buf := make([]byte, varint.UvarintSize(x))
	n := varint.PutUvarint(buf, x)
	_, err := w.Write(buf[:n])
	return err
}

// WriteToken writes one token: varint(len(payload)+1), payload, then
// the delimiter byte. It does not flush; callers writing to a
// *bufio.Writer must flush themselves once the frame is complete.
func WriteToken(w io.Writer, payload []byte) error {
	length := uint64(len(payload) + 1)
	if err := writeUvarint(w, length); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	_, err := w.Write([]byte{Delimiter})
	return err
}

// WriteTokenString is WriteToken for a string payload.
func WriteTokenString(w io.Writer, s string) error {
	return WriteToken(w, []byte(s))
}

// WriteBufferedToken builds the full frame (varint length, payload,
// delimiter) in memory and emits it as a single Write, flushing
// afterward if w supports it. This is required wherever the peer must
// not observe the length and payload split across separate writes —
// the listener's handshake and "na"/too-large responses in particular.
func WriteBufferedToken(w io.Writer, payload []byte) error {
	var buf bytes.Buffer
	if err := WriteToken(&buf, payload); err != nil {
		return err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	return flushIfPossible(w)
}

// WriteBufferedTokenString is WriteBufferedToken for a string payload.
func WriteBufferedTokenString(w io.Writer, s string) error {
	return WriteBufferedToken(w, []byte(s))
}

type flusher interface {
	Flush() error
}

func flushIfPossible(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// tokenReader is an io.Reader that also satisfies the io.ByteReader
// go-varint needs for the length prefix.
type tokenReader interface {
	io.Reader
	io.ByteReader
}

// byteReader adapts an io.Reader to the io.ByteReader go-varint needs,
// without double-buffering readers that already satisfy it. Other
// readers are read one byte at a time for the length, so no byte past
// the end of the frame is consumed.
func byteReader(r io.Reader) tokenReader {
	if br, ok := r.(tokenReader); ok {
		return br
	}
	return singleByteReader{r}
}

type singleByteReader struct{ io.Reader }

func (s singleByteReader) ReadByte() (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(s.Reader, b[:])
	return b[0], err
}

// ReadToken reads one token and returns its decoded string.
//
// Three end-of-stream outcomes are distinguished, per the wire
// protocol's token-boundary rule:
//   - L == 0: a valid empty token. Returns ("", nil).
//   - clean end-of-stream before any byte of the next varint arrives:
//     returns ("", io.EOF). Callers at a token boundary (the listener's
//     main negotiation loop) treat this as "no protocol offered", not
//     a failure.
//   - end-of-stream after the varint length is known but before all of
//     the payload and delimiter arrive: returns ("", ErrTransportClosed),
//     since the peer is now mid-frame and the stream cannot be resynced.
func ReadToken(r io.Reader) (string, error) {
	br := byteReader(r)

	length, err := varint.ReadUvarint(br)
	if err != nil {
		if err == io.EOF {
			return "", io.EOF
		}
		return "", fmt.Errorf("%w: reading token length: %v", ErrTransportClosed, err)
	}

	if length == 0 {
		return "", nil
	}

	if length > MaxTokenPayload {
		_ = WriteBufferedTokenString(discardSink{}, TooLargeMsg) // best effort, see ReadTokenFrom
		return "", ErrMessageTooLarge
	}

	buf := make([]byte, length)
	if _, err := readFullYielding(br, buf); err != nil {
		return "", fmt.Errorf("%w: reading token payload: %v", ErrTransportClosed, err)
	}

	return decodeTokenBody(buf)
}

// discardSink receives the too-large notice in ReadToken, which has no
// connection to send it to. The negotiation reads in wire.go go through
// ReadTokenFrom when the stream is writable, which writes the notice
// back to the peer's actual connection.
type discardSink struct{}

func (discardSink) Write(p []byte) (int, error) { return len(p), nil }

// ReadTokenFrom is ReadToken, but on ErrMessageTooLarge it writes the
// TOO_LARGE_MSG notice to w (the peer's own connection) instead of
// discarding it, matching spec step "write a buffered token carrying
// TOO_LARGE_MSG back to the peer, then fail".
func ReadTokenFrom(r io.Reader, w io.Writer) (string, error) {
	br := byteReader(r)

	length, err := varint.ReadUvarint(br)
	if err != nil {
		if err == io.EOF {
			return "", io.EOF
		}
		return "", fmt.Errorf("%w: reading token length: %v", ErrTransportClosed, err)
	}

	if length == 0 {
		return "", nil
	}

	if length > MaxTokenPayload {
		_ = WriteBufferedTokenString(w, TooLargeMsg)
		return "", ErrMessageTooLarge
	}

	buf := make([]byte, length)
	if _, err := readFullYielding(br, buf); err != nil {
		return "", fmt.Errorf("%w: reading token payload: %v", ErrTransportClosed, err)
	}

	return decodeTokenBody(buf)
}

func decodeTokenBody(buf []byte) (string, error) {
	if buf[len(buf)-1] != Delimiter {
		return "", ErrMissingDelimiter
	}
	body := buf[:len(buf)-1]
	if !utf8.Valid(body) {
		return "", ErrBadEncoding
	}
	s := string(body)
	if strings.IndexByte(s, '\n') >= 0 {
		// The trailing delimiter was already stripped above; a
		// newline surviving inside the body means the frame carried
		// more than one delimiter. Treat as malformed rather than
		// silently truncating at the first one.
		return "", ErrBadEncoding
	}
	return s, nil
}

// readFullYielding is io.ReadFull with one addition: a Read that
// returns (0, nil) without error is retried after a short sleep
// instead of busy-spinning. Both the blocking reads and the
// context-aware reads in wire.go use it; the latter do not watch
// ctx.Done() inside it.
func readFullYielding(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			if n >= len(buf) {
				return n, nil
			}
			if err == io.EOF {
				if n == 0 {
					return n, io.EOF
				}
				return n, io.ErrUnexpectedEOF
			}
			return n, err
		}
		if m == 0 {
			time.Sleep(shortReadYield)
		}
	}
	return n, nil
}

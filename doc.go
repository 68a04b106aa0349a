// Package multistream implements the multistream-select protocol
// negotiation core: a length-prefixed, newline-terminated token codec,
// the listener (Muxer) and initiator (Selector) halves of the
// /multistream/1.0.0 handshake, a thread-safe handler registry, and a
// lazy initiator stream that defers the handshake to the first
// application I/O.
//
// # Wire format
//
// Every message on the wire is one token: a varint length L, followed
// by L bytes of payload whose final byte is always '\n'. The token
// string is the UTF-8 decoding of the first L-1 bytes.
//
// # Listener side
//
//	registry := multistream.NewRegistry()
//	registry.AddFunc("/echo/1.0.0", func(proto string, rwc io.ReadWriteCloser) bool {
//	    _, err := io.Copy(rwc, rwc)
//	    return err == nil
//	})
//	mux := multistream.NewMuxer(registry)
//	ok, err := mux.Handle(conn)
//
// # Initiator side
//
//	proto, err := multistream.SelectOneOf([]string{"/foo/2.0.0", "/foo/1.0.0"}, conn)
//
// # Lazy initiator
//
//	lazy := multistream.NewLazyStream(conn, "/foo/1.0.0")
//	// the handshake for "/foo/1.0.0" runs on the first Read or Write.
//	n, err := lazy.Write(data)
//
// # Scope
//
// This package assumes a reliable, ordered, bidirectional byte stream
// already exists (a TCP socket, a net.Pipe, anything implementing
// io.ReadWriteCloser). It does not dial, encrypt, authenticate,
// compress, retry, or multiplex more than one sub-protocol on a single
// stream, and it does not negotiate anything beyond the literal
// constant "/multistream/1.0.0". Those concerns belong to layers above
// and below this one.
package multistream

package multistream

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func newEchoRegistry() *Registry {
	r := NewRegistry()
	r.AddFunc("/echo/1.0.0", func(protocol string, rwc io.ReadWriteCloser) bool {
		buf := make([]byte, 1)
		n, err := rwc.Read(buf)
		if n > 0 {
			_, _ = rwc.Write(buf[:n])
		}
		return err == nil || err == io.EOF
	})
	return r
}

func TestMuxerHandleAcceptsRegisteredProtocol(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	mux := NewMuxer(newEchoRegistry())
	done := make(chan struct{})
	go func() {
		ok, err := mux.Handle(b)
		require.NoError(t, err)
		require.True(t, ok)
		close(done)
	}()

	require.NoError(t, HandshakeAsInitiator(a))
	require.NoError(t, TrySelect(a, "/echo/1.0.0"))
	_, err := a.Write([]byte("x"))
	require.NoError(t, err)

	reply := make([]byte, 1)
	_, err = a.Read(reply)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), reply)

	a.Close()
	<-done
}

func TestMuxerRejectsUnsupportedThenAcceptsNext(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	mux := NewMuxer(newEchoRegistry())
	go func() { _, _ = mux.Handle(b) }()

	require.NoError(t, HandshakeAsInitiator(a))
	proto, err := SelectOneOfContextHelper(a, []string{"/nope/1.0.0", "/echo/1.0.0"})
	require.NoError(t, err)
	require.Equal(t, "/echo/1.0.0", proto)
}

// SelectOneOfContextHelper mirrors SelectOneOf but without re-running
// the initiator handshake, since the test above already performed it.
func SelectOneOfContextHelper(rwc io.ReadWriteCloser, protocols []string) (string, error) {
	var lastErr error
	for _, p := range protocols {
		if err := TrySelect(rwc, p); err != nil {
			lastErr = err
			continue
		}
		return p, nil
	}
	return "", lastErr
}

func TestMuxerLsListsRegisteredProtocols(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	reg := newEchoRegistry()
	reg.AddFunc("/other/1.0.0", func(string, io.ReadWriteCloser) bool { return true })
	mux := NewMuxer(reg)

	go func() { _, _ = mux.Handle(b) }()

	require.NoError(t, HandshakeAsInitiator(a))
	require.NoError(t, WriteLs(a))
	protos, err := ReadLsResponse(a)
	require.NoError(t, err)
	require.Equal(t, []string{"/echo/1.0.0", "/other/1.0.0"}, protos)

	proto, err := SelectOneOfContextHelper(a, []string{"/echo/1.0.0"})
	require.NoError(t, err)
	require.Equal(t, "/echo/1.0.0", proto)
}

func TestMuxerLsOrderMatchesRegistrationOrderForFiveProtocols(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	reg := NewRegistry()
	names := []string{"/a/1.0.0", "/b/1.0.0", "/c/1.0.0", "/d/1.0.0", "/e/1.0.0"}
	for _, name := range names {
		reg.AddFunc(name, func(string, io.ReadWriteCloser) bool { return true })
	}
	mux := NewMuxer(reg)
	go func() { _, _ = mux.Handle(b) }()

	require.NoError(t, HandshakeAsInitiator(a))
	require.NoError(t, WriteLs(a))
	protos, err := ReadLsResponse(a)
	require.NoError(t, err)
	require.Equal(t, names, protos)
}

func TestMuxerLsEmptyRegistry(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	mux := NewMuxer(NewRegistry())
	go func() { _, _ = mux.Handle(b) }()

	require.NoError(t, HandshakeAsInitiator(a))
	require.NoError(t, WriteLs(a))
	protos, err := ReadLsResponse(a)
	require.NoError(t, err)
	require.Empty(t, protos)
}

func TestMuxerNegotiateNoProtocolOffered(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()

	mux := NewMuxer(newEchoRegistry())
	errCh := make(chan error, 1)
	protoCh := make(chan string, 1)
	go func() {
		p, err := mux.Negotiate(b)
		protoCh <- p
		errCh <- err
	}()

	require.NoError(t, HandshakeAsInitiator(a))
	a.Close()

	require.Equal(t, "", <-protoCh)
	require.NoError(t, <-errCh)
}

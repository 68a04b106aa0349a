package multistream

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLazyStreamDefersHandshakeUntilFirstWrite(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	mux := NewMuxer(newEchoRegistry())
	go func() { _, _ = mux.Handle(b) }()

	lazy := NewLazyStream(a, "/echo/1.0.0")

	n, err := lazy.Write([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	reply := make([]byte, 1)
	_, err = lazy.Read(reply)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), reply)
}

func TestLazyStreamFailureIsSticky(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	mux := NewMuxer(NewRegistry())
	go func() { _, _ = mux.Handle(b) }()

	lazy := NewLazyStream(a, "/missing/1.0.0")

	_, err := lazy.Write([]byte("x"))
	require.ErrorIs(t, err, ErrProtocolNotSupported)

	_, err = lazy.Write([]byte("y"))
	require.ErrorIs(t, err, ErrProtocolNotSupported)
}

func TestLazyStreamConcurrentCallersShareOneHandshake(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	mux := NewMuxer(newEchoRegistry())
	go func() { _, _ = mux.Handle(b) }()

	lazy := NewLazyStream(a, "/echo/1.0.0")

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = lazy.ensureNegotiated(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
}

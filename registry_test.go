package multistream

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func echoOK(protocol string, rwc io.ReadWriteCloser) bool { return true }

func TestRegistryAddAndGet(t *testing.T) {
	r := NewRegistry()
	r.AddFunc("/echo/1.0.0", echoOK)

	h, ok := r.Get("/echo/1.0.0")
	require.True(t, ok)
	require.Equal(t, "/echo/1.0.0", h.Protocol)
}

func TestRegistryAddReplacesExistingHandler(t *testing.T) {
	r := NewRegistry()
	r.AddFunc("/echo/1.0.0", func(string, io.ReadWriteCloser) bool { return true })
	r.AddFunc("/echo/1.0.0", func(string, io.ReadWriteCloser) bool { return false })

	require.Equal(t, 1, r.Len())
	h, ok := r.Get("/echo/1.0.0")
	require.True(t, ok)

	var pipe pipeRWC
	accepted, err := h.Dispatch(context.Background(), pipe)
	require.NoError(t, err)
	require.False(t, accepted)
}

// pipeRWC is a minimal no-op io.ReadWriteCloser used where a handler
// never actually touches its connection.
type pipeRWC struct{}

func (pipeRWC) Read([]byte) (int, error)  { return 0, io.EOF }
func (pipeRWC) Write([]byte) (int, error) { return 0, nil }
func (pipeRWC) Close() error              { return nil }

func TestRegistryRemoveIsSilentNoOp(t *testing.T) {
	r := NewRegistry()
	require.NotPanics(t, func() { r.Remove("/not/registered") })
}

func TestRegistryProtocolsSnapshot(t *testing.T) {
	r := NewRegistry()
	r.AddFunc("/a/1.0.0", echoOK)
	r.AddFunc("/b/1.0.0", echoOK)

	require.Equal(t, []string{"/a/1.0.0", "/b/1.0.0"}, r.Protocols())
}

func TestRegistryProtocolsOrderSurvivesReplace(t *testing.T) {
	r := NewRegistry()
	r.AddFunc("/a/1.0.0", echoOK)
	r.AddFunc("/b/1.0.0", echoOK)
	r.AddFunc("/a/1.0.0", echoOK) // replace, should not move to the end

	require.Equal(t, []string{"/a/1.0.0", "/b/1.0.0"}, r.Protocols())
}

func TestRegistryProtocolsOrderAfterRemove(t *testing.T) {
	r := NewRegistry()
	r.AddFunc("/a/1.0.0", echoOK)
	r.AddFunc("/b/1.0.0", echoOK)
	r.AddFunc("/c/1.0.0", echoOK)
	r.Remove("/b/1.0.0")
	r.AddFunc("/d/1.0.0", echoOK)

	require.Equal(t, []string{"/a/1.0.0", "/c/1.0.0", "/d/1.0.0"}, r.Protocols())
}

func TestRegistryHas(t *testing.T) {
	r := NewRegistry()
	require.False(t, r.Has("/x/1.0.0"))
	r.AddFunc("/x/1.0.0", echoOK)
	require.True(t, r.Has("/x/1.0.0"))
}

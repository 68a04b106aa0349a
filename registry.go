package multistream

import (
	"sync"

	"github.com/dep2p/go-multistream/internal/log"
)

var registryLog = log.Component("registry")

// Registry holds the set of protocols a Muxer will accept, keyed by
// exact protocol string. Registering an id that is already present
// replaces the prior handler rather than erroring, matching the
// semantics a peer expects from re-registration at runtime (version
// upgrades, hot-swapped services). Protocols() lists registered
// protocols in registration order, since an "ls" response must be
// deterministic within a single exchange.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	order    []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Add registers h under h.Protocol, replacing any existing handler
// for that protocol. Replacing an existing protocol does not change
// its position in registration order.
func (r *Registry) Add(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.Protocol]; exists {
		registryLog.Debug("replacing handler", "protocol", h.Protocol)
	} else {
		r.order = append(r.order, h.Protocol)
	}
	r.handlers[h.Protocol] = h
}

// AddFunc registers a synchronous handler function under protocol.
func (r *Registry) AddFunc(protocol string, fn HandlerFunc) {
	r.Add(NewHandler(protocol, fn))
}

// AddFuncContext registers a cooperative handler function under protocol.
func (r *Registry) AddFuncContext(protocol string, fn HandlerFuncContext) {
	r.Add(NewHandlerContext(protocol, fn))
}

// Remove unregisters protocol. It is a silent no-op if protocol was
// never registered.
func (r *Registry) Remove(protocol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[protocol]; !ok {
		return
	}
	delete(r.handlers, protocol)
	for i, p := range r.order {
		if p == protocol {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the handler for protocol and whether it was found.
func (r *Registry) Get(protocol string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[protocol]
	return h, ok
}

// Has reports whether protocol is currently registered.
func (r *Registry) Has(protocol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[protocol]
	return ok
}

// Protocols returns a snapshot of every registered protocol ID, in
// the order each was first registered.
func (r *Registry) Protocols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered protocols.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

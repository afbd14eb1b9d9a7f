package socket

import (
	"net/netip"
	"sync"

	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

// pendingConn is one accepted-but-not-yet-accept()ed child connection.
type pendingConn struct {
	child  Handle
	remote netip.AddrPort
}

// listenerEntry is the bookkeeping for one bound server port: its
// accept queue, and the remote→child map used to route send_to calls back
// to the right child socket.
type listenerEntry struct {
	port     uint16
	queue    []pendingConn
	outgoing map[netip.AddrPort]Handle
}

// ListenerRegistry maps each bound server socket, TCP or UDP, to its accept
// queue and its remote-endpoint→child-socket map, implementing the
// AutoConnect server semantics: every inbound ConnectEvent on a bound port
// creates a child socket queued here until Accept claims it. send_to finds
// a child only after Accept has claimed it.
type ListenerRegistry struct {
	mu        sync.Mutex
	listeners map[Handle]*listenerEntry
	byPort    map[uint16]Handle
}

// NewListenerRegistry creates an empty registry.
func NewListenerRegistry() *ListenerRegistry {
	return &ListenerRegistry{
		listeners: make(map[Handle]*listenerEntry),
		byPort:    make(map[uint16]Handle),
	}
}

// Bind registers h as a listener on port. Fails with ErrDuplicateSocket if
// h is already bound, or if port is already bound by a different socket.
func (r *ListenerRegistry) Bind(h Handle, port uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listeners[h]; ok {
		return pkg.ErrDuplicateSocket
	}
	if _, ok := r.byPort[port]; ok {
		return pkg.ErrDuplicateSocket
	}
	r.listeners[h] = &listenerEntry{port: port, outgoing: make(map[netip.AddrPort]Handle)}
	r.byPort[port] = h
	return nil
}

// Unbind removes h's listener registration entirely.
func (r *ListenerRegistry) Unbind(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.listeners[h]; ok {
		delete(r.byPort, entry.port)
		delete(r.listeners, h)
	}
}

// IsBound reports whether h is a registered listener.
func (r *ListenerRegistry) IsBound(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.listeners[h]
	return ok
}

// IsPortBound reports whether some listener already owns port.
func (r *ListenerRegistry) IsPortBound(port uint16) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byPort[port]
	return ok
}

// Enqueue records a newly auto-connected child socket for listener h,
// called by the runner when a ConnectEvent arrives on h's bound port.
func (r *ListenerRegistry) Enqueue(h Handle, child Handle, remote netip.AddrPort) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.listeners[h]
	if !ok {
		return pkg.ErrNotBound
	}
	entry.queue = append(entry.queue, pendingConn{child: child, remote: remote})
	return nil
}

// Available reports whether h has a queued connection ready for Accept.
func (r *ListenerRegistry) Available(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.listeners[h]
	return ok && len(entry.queue) > 0
}

// PeekRemote returns the remote endpoint of the next queued connection
// without removing it.
func (r *ListenerRegistry) PeekRemote(h Handle) (netip.AddrPort, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.listeners[h]
	if !ok || len(entry.queue) == 0 {
		return netip.AddrPort{}, false
	}
	return entry.queue[0].remote, true
}

// Accept pops the next queued child connection, and records it in the
// outgoing map so a subsequent send_to(remote, ...) finds it.
func (r *ListenerRegistry) Accept(h Handle) (Handle, netip.AddrPort, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.listeners[h]
	if !ok {
		return 0, netip.AddrPort{}, pkg.ErrNotBound
	}
	if len(entry.queue) == 0 {
		return 0, netip.AddrPort{}, pkg.ErrSocketNotConnected
	}
	next := entry.queue[0]
	entry.queue = entry.queue[1:]
	entry.outgoing[next.remote] = next.child
	return next.child, next.remote, nil
}

// GetOutgoing looks up the child socket a prior Accept associated with
// remote, for a server's send_to(remote, ...) call.
func (r *ListenerRegistry) GetOutgoing(remote netip.AddrPort) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.listeners {
		if h, ok := entry.outgoing[remote]; ok {
			return h, true
		}
	}
	return 0, false
}

// ClearOutgoing removes the remote→child mapping once the child socket it
// named has been closed (send_to only ever targets a child once).
func (r *ListenerRegistry) ClearOutgoing(remote netip.AddrPort) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.listeners {
		delete(entry.outgoing, remote)
	}
}

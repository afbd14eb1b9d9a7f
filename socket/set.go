package socket

import (
	"sync"
	"time"

	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

// Set is a fixed-capacity socket container with three lookup indices — by
// handle, by peer handle, and by EDM channel id — guarded by a single
// mutex. No await (blocking I/O) ever happens while the lock is held, so a
// plain non-reentrant sync.Mutex suffices.
type Set struct {
	mu sync.Mutex

	capacity int
	sockets  []Socket // nil entries mark a free slot
	byPeer   map[uint16]Handle
	byChan   map[byte]Handle

	nextHandle Handle
	dropped    []uint16 // peer handles pending ClosePeerConnection
}

// NewSet creates an empty set that can hold up to capacity sockets
// simultaneously.
func NewSet(capacity int) *Set {
	return &Set{
		capacity: capacity,
		sockets:  make([]Socket, 0, capacity),
		byPeer:   make(map[uint16]Handle),
		byChan:   make(map[byte]Handle),
	}
}

// Add inserts a socket, reusing a free slot if one exists from a prior
// Remove, and returns the socket's handle (see assignHandle). Fails with
// ErrSocketSetFull once capacity sockets are live.
func (s *Set) Add(sock Socket) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, slot := range s.sockets {
		if slot == nil {
			h := s.allocHandle()
			s.assignHandle(sock, h)
			s.sockets[i] = sock
			return sock.Handle(), nil
		}
	}
	if len(s.sockets) >= s.capacity {
		return 0, pkg.ErrSocketSetFull
	}
	h := s.allocHandle()
	s.assignHandle(sock, h)
	s.sockets = append(s.sockets, sock)
	return sock.Handle(), nil
}

// assignHandle sets sock's handle field via the Meta it embeds, since
// Socket only exposes Handle() (no setter). A socket constructed with a
// non-zero handle keeps it; one constructed with NewTCPSocket(0, ...) or
// NewUDPSocket(0, ...) takes h, so Add numbers it.
func (s *Set) assignHandle(sock Socket, h Handle) {
	switch v := sock.(type) {
	case *TCPSocket:
		if v.handle == 0 {
			v.handle = h
		}
	case *UDPSocket:
		if v.handle == 0 {
			v.handle = h
		}
	}
}

func (s *Set) allocHandle() Handle {
	s.nextHandle++
	return s.nextHandle
}

// Remove deletes the socket with the given handle, along with any
// peer-handle/channel-id mappings pointing at it.
func (s *Set) Remove(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, slot := range s.sockets {
		if slot == nil || slot.Handle() != h {
			continue
		}
		if peer, ok := slot.PeerHandle(); ok {
			delete(s.byPeer, peer)
		}
		if ch, ok := slot.ChannelID(); ok {
			delete(s.byChan, ch)
		}
		s.sockets[i] = nil
		return nil
	}
	return pkg.ErrInvalidSocket
}

// Get returns the socket with the given handle.
func (s *Set) Get(h Handle) (Socket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range s.sockets {
		if slot != nil && slot.Handle() == h {
			return slot, true
		}
	}
	return nil, false
}

// ByPeerHandle looks a socket up by its module-assigned peer handle,
// installed and indexed by IndexPeerHandle.
func (s *Set) ByPeerHandle(peer uint16) (Socket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.byPeer[peer]
	if !ok {
		return nil, false
	}
	return s.getLocked(h)
}

// ByChannelID looks a socket up by its EDM channel id, installed by a
// ConnectEvent and indexed here.
func (s *Set) ByChannelID(ch byte) (Socket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.byChan[ch]
	if !ok {
		return nil, false
	}
	return s.getLocked(h)
}

func (s *Set) getLocked(h Handle) (Socket, bool) {
	for _, slot := range s.sockets {
		if slot != nil && slot.Handle() == h {
			return slot, true
		}
	}
	return nil, false
}

// IndexPeerHandle installs or updates the peer-handle index for a socket
// already in the set. Callers (the network runner) call this once a
// ConnectPeer response or accepting ConnectEvent reveals the peer handle.
func (s *Set) IndexPeerHandle(h Handle, peer uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sock, ok := s.getLocked(h)
	if !ok {
		return pkg.ErrInvalidSocket
	}
	if old, had := sock.PeerHandle(); had {
		delete(s.byPeer, old)
	}
	sock.SetPeerHandle(peer)
	s.byPeer[peer] = h
	return nil
}

// IndexChannelID installs or updates the channel-id index for a socket
// already in the set, called when a ConnectEvent names this socket's
// channel.
func (s *Set) IndexChannelID(h Handle, ch byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sock, ok := s.getLocked(h)
	if !ok {
		return pkg.ErrInvalidSocket
	}
	if old, had := sock.ChannelID(); had {
		delete(s.byChan, old)
	}
	sock.SetChannelID(ch)
	s.byChan[ch] = h
	return nil
}

// UnindexChannelID removes a channel-id mapping on DisconnectEvent without
// removing the socket itself (its buffered rx data survives until Remove).
func (s *Set) UnindexChannelID(ch byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.byChan[ch]; ok {
		if sock, ok := s.getLocked(h); ok {
			sock.ClearChannelID()
		}
		delete(s.byChan, ch)
	}
}

// Iter returns every live socket in the set. The returned slice is a
// snapshot; mutating the set afterward does not affect it.
func (s *Set) Iter() []Socket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Socket, 0, len(s.sockets))
	for _, slot := range s.sockets {
		if slot != nil {
			out = append(out, slot)
		}
	}
	return out
}

// Len returns the number of live sockets.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, slot := range s.sockets {
		if slot != nil {
			n++
		}
	}
	return n
}

// Recycle scans for at most one eligible socket (a TCPSocket in
// ShutdownForWrite past its read timeout) and removes it, reporting
// whether one was recycled.
func (s *Set) Recycle(now time.Time) bool {
	s.mu.Lock()
	var victim Handle
	found := false
	for _, slot := range s.sockets {
		if slot == nil {
			continue
		}
		tcp, ok := slot.(*TCPSocket)
		if !ok {
			continue
		}
		if tcp.Recyclable(now) {
			victim = tcp.Handle()
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return false
	}
	return s.Remove(victim) == nil
}

// EnqueueDropped records a peer handle whose owning socket was dropped
// locally without first telling the module; the runner issues
// ClosePeerConnection for each at its next poll.
func (s *Set) EnqueueDropped(peer uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped = append(s.dropped, peer)
}

// DrainDropped returns and clears the pending dropped-peer-handle list.
func (s *Set) DrainDropped() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.dropped
	s.dropped = nil
	return out
}

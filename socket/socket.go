// Package socket implements the host-side socket set: TCP/UDP state
// tracking, the channel-id/peer-handle indices the runner maintains from
// EDM URCs, and the listener registry for TCP and UDP AutoConnect server
// sockets.
//
// Actual byte transfer happens one layer up (the network/control packages):
// a Socket here only tracks connection state and buffers bytes already
// delivered by a DataEvent; outgoing bytes are not buffered here (Fragment
// only splits them into DataCommand-sized chunks). This mirrors the Rust original's split between
// ublox_sockets' pure state machines and the AT-command layer that drives
// them.
package socket

import "net/netip"

// Handle identifies a socket within a Set. It is assigned by Set.Add and is
// stable for the socket's lifetime in the set.
type Handle uint16

// Type distinguishes the two socket kinds a Set can hold.
type Type int

const (
	TypeTCP Type = iota
	TypeUDP
)

func (t Type) String() string {
	if t == TypeUDP {
		return "udp"
	}
	return "tcp"
}

// Meta is the bookkeeping every socket carries, embedded by both TCPSocket
// and UDPSocket: its Set-assigned handle, and the two URC-installed
// mappings (peer handle from ConnectPeer/ConnectEvent, channel id from
// ConnectEvent) that let the Set route inbound events back to it.
type Meta struct {
	handle        Handle
	peerHandle    uint16
	hasPeer       bool
	channelID     byte
	hasChannel    bool
	endpoint      netip.AddrPort
	hasEndpoint   bool
}

// Handle returns the socket's Set-assigned handle.
func (m *Meta) Handle() Handle { return m.handle }

// PeerHandle returns the module-assigned peer handle installed by
// ConnectPeer's response, if one has been set.
func (m *Meta) PeerHandle() (uint16, bool) { return m.peerHandle, m.hasPeer }

// SetPeerHandle installs the peer handle, called once the ConnectPeer
// response (or a ConnectEvent for a passively-accepted socket) is known.
func (m *Meta) SetPeerHandle(h uint16) {
	m.peerHandle = h
	m.hasPeer = true
}

// ClearPeerHandle removes the peer-handle mapping, e.g. after the peer
// connection has been closed and the handle is no longer meaningful.
func (m *Meta) ClearPeerHandle() {
	m.peerHandle = 0
	m.hasPeer = false
}

// ChannelID returns the EDM channel id installed by a ConnectEvent, if any.
func (m *Meta) ChannelID() (byte, bool) { return m.channelID, m.hasChannel }

// SetChannelID installs the EDM channel id mapping for this socket.
func (m *Meta) SetChannelID(id byte) {
	m.channelID = id
	m.hasChannel = true
}

// ClearChannelID removes the channel-id mapping, e.g. on DisconnectEvent.
func (m *Meta) ClearChannelID() {
	m.channelID = 0
	m.hasChannel = false
}

// Endpoint returns the remote endpoint associated with this socket, if set.
func (m *Meta) Endpoint() (netip.AddrPort, bool) { return m.endpoint, m.hasEndpoint }

// SetEndpoint records the remote endpoint (the connect target for a client
// socket, or the peer that connected in for a server-accepted one).
func (m *Meta) SetEndpoint(ep netip.AddrPort) {
	m.endpoint = ep
	m.hasEndpoint = true
}

// Socket is implemented by *TCPSocket and *UDPSocket. The Set stores this
// interface; callers recover the concrete type with a type switch or
// assertion, matching the original's AnySocket downcast without needing an
// inheritance hierarchy.
type Socket interface {
	Handle() Handle
	Type() Type
	PeerHandle() (uint16, bool)
	SetPeerHandle(uint16)
	ClearPeerHandle()
	ChannelID() (byte, bool)
	SetChannelID(byte)
	ClearChannelID()
	Endpoint() (netip.AddrPort, bool)
	SetEndpoint(netip.AddrPort)
}

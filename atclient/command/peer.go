package command

import (
	"fmt"
	"strings"
	"time"
)

// ConnectPeerResponse carries the module-assigned peer handle.
type ConnectPeerResponse struct {
	PeerHandle uint16
}

// ConnectPeer opens a TCP or UDP connection to the URL produced by the
// peerurl package.
type ConnectPeer struct {
	URL string
}

func (c ConnectPeer) Bytes() []byte {
	return []byte(fmt.Sprintf("AT+UDCP=%q\r\n", c.URL))
}
func (ConnectPeer) MaxTimeout() time.Duration { return 15 * time.Second }
func (ConnectPeer) ExpectsResponse() bool     { return true }
func (ConnectPeer) Parse(payload []byte) (any, error) {
	_, value, ok := strings.Cut(strings.TrimSpace(string(payload)), ":")
	if !ok {
		value = strings.TrimSpace(string(payload))
	}
	n, err := parseInt(value)
	if err != nil {
		return nil, err
	}
	return ConnectPeerResponse{PeerHandle: uint16(n)}, nil
}

// ClosePeerConnection closes a previously connected peer by its handle.
type ClosePeerConnection struct {
	PeerHandle uint16
}

func (c ClosePeerConnection) Bytes() []byte {
	return []byte(fmt.Sprintf("AT+UDCPC=%d\r\n", c.PeerHandle))
}
func (ClosePeerConnection) MaxTimeout() time.Duration         { return 5 * time.Second }
func (ClosePeerConnection) ExpectsResponse() bool             { return true }
func (ClosePeerConnection) Parse(payload []byte) (any, error) { return struct{}{}, nil }

// ServerProtocol selects the listening protocol for ServerConfiguration.
type ServerProtocol int

const (
	ServerTCP ServerProtocol = iota
	ServerUDP
)

// ServerConfiguration configures a listening server slot (used to implement
// UDP "bind" / the listener registry's module-side counterpart).
type ServerConfiguration struct {
	ServerID uint8
	Protocol ServerProtocol
	Port     uint16
}

func (c ServerConfiguration) Bytes() []byte {
	return []byte(fmt.Sprintf("AT+UDSC=%d,%d,%d\r\n", c.ServerID, int(c.Protocol), c.Port))
}
func (ServerConfiguration) MaxTimeout() time.Duration         { return 5 * time.Second }
func (ServerConfiguration) ExpectsResponse() bool             { return true }
func (ServerConfiguration) Parse(payload []byte) (any, error) { return struct{}{}, nil }

// PeerConfigParameter selects which AT+UDCFG field SetPeerConfiguration
// writes.
type PeerConfigParameter int

const (
	// PeerConfigTLSBufferSizeIn sizes the module's inbound TLS record
	// reassembly buffer, in bytes.
	PeerConfigTLSBufferSizeIn PeerConfigParameter = iota
	// PeerConfigTLSBufferSizeOut sizes the module's outbound TLS record
	// buffer, in bytes.
	PeerConfigTLSBufferSizeOut
)

// SetPeerConfiguration sets a peer-layer tuning parameter — currently only
// the TLS in/out buffer sizes the runner applies once at steady-state
// configuration, before any TLS socket can be opened.
type SetPeerConfiguration struct {
	Parameter PeerConfigParameter
	Value     uint16
}

func (c SetPeerConfiguration) Bytes() []byte {
	return []byte(fmt.Sprintf("AT+UDCFG=%d,%d\r\n", int(c.Parameter), c.Value))
}
func (SetPeerConfiguration) MaxTimeout() time.Duration         { return defaultTimeout }
func (SetPeerConfiguration) ExpectsResponse() bool             { return true }
func (SetPeerConfiguration) Parse(payload []byte) (any, error) { return struct{}{}, nil }

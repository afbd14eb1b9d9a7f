package ppp

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/FactbirdHQ/ublox-short-range-go/hal"
	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

var _ hal.Transport = (*TunnelTransport)(nil)

// noDeadline clears a previously set read/write deadline.
var noDeadline time.Time

// TunnelTransport implements hal.Transport over a UDP socket bound to the
// host's PPP-assigned address, so the rest of the driver's AT client can
// keep using the same Transport seam once the real UART has been handed
// over to the PPP framing engine. Every packet sent is addressed to the
// module's fixed AT-channel endpoint on the PPP link; every packet
// received is assumed to come from it (the PPP link is point-to-point, so
// nothing else can be on the other end).
type TunnelTransport struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
}

// DialTunnel binds a UDP socket at local. Production callers bind to
// netip.AddrPortFrom(hostAddr, atPort); tests are free to bind an ephemeral
// port instead.
func DialTunnel(local netip.AddrPort) (*TunnelTransport, error) {
	conn, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(local))
	if err != nil {
		return nil, fmt.Errorf("%w: bind ppp control tunnel: %v", pkg.ErrTransport, err)
	}
	return &TunnelTransport{conn: conn}, nil
}

// SetPeer records the module's PPP address once the Engine's negotiated
// config reveals it. Write fails with ErrTransport until this is called.
func (t *TunnelTransport) SetPeer(remote netip.AddrPort) {
	addr := net.UDPAddrFromAddrPort(remote)
	t.remote = addr
}

// Read implements hal.Transport.
func (t *TunnelTransport) Read(ctx context.Context, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetReadDeadline(deadline)
	} else {
		_ = t.conn.SetReadDeadline(noDeadline)
	}
	n, _, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		return n, fmt.Errorf("%w: %v", pkg.ErrTransport, err)
	}
	return n, nil
}

// Write implements hal.Transport.
func (t *TunnelTransport) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.remote == nil {
		return fmt.Errorf("%w: ppp control tunnel has no peer address yet", pkg.ErrTransport)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	} else {
		_ = t.conn.SetWriteDeadline(noDeadline)
	}
	if _, err := t.conn.WriteToUDP(data, t.remote); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrTransport, err)
	}
	return nil
}

// moduleTunnelAddr is the module's fixed address on the PPP link, assigned
// by the module's own PPP server side and constant across deployments.
var moduleTunnelAddr = netip.MustParseAddr("172.30.0.251")

// controlTunnelPeer is the module's fixed endpoint for the AT control
// tunnel, composed out for testing without requiring a privileged bind.
func controlTunnelPeer() netip.AddrPort {
	return netip.AddrPortFrom(moduleTunnelAddr, atPort)
}

// OpenControlTunnel binds a UDP control-channel transport at hostAddr (the
// address an Engine assigns via onIPv4Up) targeting the module's fixed PPP
// peer address. The result is a hal.Transport a separate atclient.Client or
// network.Runner can use in place of the UART for as long as PPP owns it.
func OpenControlTunnel(hostAddr netip.Addr) (*TunnelTransport, error) {
	tt, err := DialTunnel(netip.AddrPortFrom(hostAddr, atPort))
	if err != nil {
		return nil, err
	}
	tt.SetPeer(controlTunnelPeer())
	return tt, nil
}

// SetBaudRate is a no-op: there is no physical UART once PPP owns it.
func (t *TunnelTransport) SetBaudRate(uint32) error { return nil }

// Close releases the UDP socket.
func (t *TunnelTransport) Close() error { return t.conn.Close() }

package network

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"github.com/FactbirdHQ/ublox-short-range-go/atclient/command"
	"github.com/FactbirdHQ/ublox-short-range-go/edm"
	"github.com/FactbirdHQ/ublox-short-range-go/peerurl"
	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
	"github.com/FactbirdHQ/ublox-short-range-go/socket"
)

// recycleTimeout is how long a TCP socket sits in ShutdownForWrite before
// runMaintenance's Recycle pass frees its slot.
const recycleTimeout = 30 * time.Second

const (
	tcpServerID uint8 = 1
	udpServerID uint8 = 2
)

// NewTCP allocates an unconnected TCP socket and returns its handle.
func (r *Runner) NewTCP() (socket.Handle, error) {
	return r.sockets.Add(socket.NewTCPSocket(0, r.cfg.SocketRxBuffer))
}

// NewUDP allocates a closed UDP socket and returns its handle.
func (r *Runner) NewUDP() (socket.Handle, error) {
	return r.sockets.Add(socket.NewUDPSocket(0, r.cfg.SocketRxBuffer))
}

// ConnectTCP opens a TCP connection from h to remote, blocking until the
// module's ConnectEvent assigns the socket a channel id.
func (r *Runner) ConnectTCP(ctx context.Context, h socket.Handle, remote netip.AddrPort) error {
	return r.connect(ctx, h, remote, (*peerurl.Builder).TCP)
}

// ConnectUDP opens a UDP association from h to remote, blocking until the
// module's ConnectEvent assigns the socket a channel id.
func (r *Runner) ConnectUDP(ctx context.Context, h socket.Handle, remote netip.AddrPort) error {
	return r.connect(ctx, h, remote, (*peerurl.Builder).UDP)
}

// connect renders a peer URL, sends ConnectPeer, and waits for the
// matching ConnectEvent. The socket's Endpoint must be set before
// ConnectPeer is sent, since handleConnectEvent matches outbound connects
// by endpoint, not by (not yet assigned) channel id.
func (r *Runner) connect(ctx context.Context, h socket.Handle, remote netip.AddrPort, render func(*peerurl.Builder) (string, error)) error {
	sock, ok := r.sockets.Get(h)
	if !ok {
		return pkg.ErrInvalidSocket
	}
	sock.SetEndpoint(remote)

	url, err := render(peerurl.New().Address(remote))
	if err != nil {
		return err
	}

	resp, err := r.client.SendRetry(ctx, command.ConnectPeer{URL: url}, 3)
	if err != nil {
		return err
	}
	connResp, ok := resp.(command.ConnectPeerResponse)
	if !ok {
		return pkg.ErrInvalidResponse
	}
	if err := r.sockets.IndexPeerHandle(h, connResp.PeerHandle); err != nil {
		return err
	}

	return r.awaitChannelID(ctx, h)
}

// awaitChannelID blocks until h's socket has been assigned a channel id by
// handleConnectEvent, waking on sockChanged instead of polling.
func (r *Runner) awaitChannelID(ctx context.Context, h socket.Handle) error {
	for {
		sock, ok := r.sockets.Get(h)
		if !ok {
			return pkg.ErrInvalidSocket
		}
		if _, ok := sock.ChannelID(); ok {
			return nil
		}

		r.sockMu.Lock()
		changed := r.sockChanged
		r.sockMu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// writeChunks fragments data into EGRESS_CHUNK_SIZE frames and writes each
// as a DataCommand over the ingress bridge, returning the total bytes
// accepted.
func (r *Runner) writeChunks(ctx context.Context, channelID byte, data []byte) (int, error) {
	n := 0
	for _, chunk := range socket.Fragment(data) {
		wire := edm.WriteData(channelID, chunk, nil)
		if err := r.ingress.Writer().Write(ctx, wire); err != nil {
			return n, errors.Join(pkg.ErrTransport, err)
		}
		n += len(chunk)
	}
	return n, nil
}

// WriteTCP writes data to an established TCP socket, fragmenting it across
// as many DataCommand frames as needed.
func (r *Runner) WriteTCP(ctx context.Context, h socket.Handle, data []byte) (int, error) {
	sock, ok := r.sockets.Get(h)
	if !ok {
		return 0, pkg.ErrInvalidSocket
	}
	tcp, ok := sock.(*socket.TCPSocket)
	if !ok {
		return 0, pkg.ErrInvalidSocket
	}
	if !tcp.MaySend() {
		return 0, pkg.ErrSocketNotConnected
	}
	ch, ok := tcp.ChannelID()
	if !ok {
		return 0, pkg.ErrSocketNotConnected
	}
	return r.writeChunks(ctx, ch, data)
}

// SendUDP writes data on an established UDP association.
func (r *Runner) SendUDP(ctx context.Context, h socket.Handle, data []byte) error {
	sock, ok := r.sockets.Get(h)
	if !ok {
		return pkg.ErrInvalidSocket
	}
	udp, ok := sock.(*socket.UDPSocket)
	if !ok {
		return pkg.ErrInvalidSocket
	}
	if !udp.IsOpen() {
		return pkg.ErrSocketNotConnected
	}
	ch, ok := udp.ChannelID()
	if !ok {
		return pkg.ErrSocketNotConnected
	}
	_, err := r.writeChunks(ctx, ch, data)
	return err
}

// SendToUDP sends data from a bound listener's auto-connected child
// targeting remote, then unconditionally closes that child — send_to only
// ever targets a given remote once, matching the module's AutoConnect
// server semantics.
func (r *Runner) SendToUDP(ctx context.Context, remote netip.AddrPort, data []byte) error {
	h, ok := r.listeners.GetOutgoing(remote)
	if !ok {
		return pkg.ErrNotBound
	}

	var sendErr error
	if len(data) > 0 {
		sendErr = r.SendUDP(ctx, h, data)
	}

	r.listeners.ClearOutgoing(remote)
	if err := r.CloseUDP(ctx, h); err != nil && sendErr == nil {
		sendErr = err
	}
	return sendErr
}

// ReadTCP dequeues buffered received bytes into dst.
func (r *Runner) ReadTCP(h socket.Handle, dst []byte) (int, bool, error) {
	sock, ok := r.sockets.Get(h)
	if !ok {
		return 0, false, pkg.ErrInvalidSocket
	}
	tcp, ok := sock.(*socket.TCPSocket)
	if !ok {
		return 0, false, pkg.ErrInvalidSocket
	}
	n, open := tcp.RecvSlice(dst)
	return n, open, nil
}

// RecvUDP dequeues buffered received bytes into dst, along with the
// socket's associated remote endpoint.
func (r *Runner) RecvUDP(h socket.Handle, dst []byte) (int, netip.AddrPort, error) {
	sock, ok := r.sockets.Get(h)
	if !ok {
		return 0, netip.AddrPort{}, pkg.ErrInvalidSocket
	}
	udp, ok := sock.(*socket.UDPSocket)
	if !ok {
		return 0, netip.AddrPort{}, pkg.ErrInvalidSocket
	}
	n := udp.RecvSlice(dst)
	remote, _ := udp.Endpoint()
	return n, remote, nil
}

// CloseTCP closes a TCP socket. A socket still in Created (never
// connected) is simply freed; otherwise the write half is shut down and,
// if the module has a peer handle for it, the peer is queued for
// ClosePeerConnection at the next maintenance pass rather than sent
// synchronously here.
func (r *Runner) CloseTCP(ctx context.Context, h socket.Handle) error {
	sock, ok := r.sockets.Get(h)
	if !ok {
		return pkg.ErrInvalidSocket
	}
	tcp, ok := sock.(*socket.TCPSocket)
	if !ok {
		return pkg.ErrInvalidSocket
	}

	if tcp.State() == socket.TCPCreated {
		return r.sockets.Remove(h)
	}

	tcp.Close(r.clock.Now())
	tcp.SetReadTimeout(recycleTimeout)
	if peer, ok := tcp.PeerHandle(); ok {
		r.sockets.EnqueueDropped(peer)
	}
	return nil
}

// CloseUDP closes a UDP association and frees its socket slot immediately
// (UDP has no ShutdownForWrite half-state to linger in).
func (r *Runner) CloseUDP(ctx context.Context, h socket.Handle) error {
	sock, ok := r.sockets.Get(h)
	if !ok {
		return pkg.ErrInvalidSocket
	}
	udp, ok := sock.(*socket.UDPSocket)
	if !ok {
		return pkg.ErrInvalidSocket
	}

	if peer, ok := udp.PeerHandle(); ok {
		r.sockets.EnqueueDropped(peer)
	}
	udp.Close()
	return r.sockets.Remove(h)
}

// BindTCP configures a TCP server on port and registers h as its listener.
func (r *Runner) BindTCP(ctx context.Context, h socket.Handle, port uint16) error {
	return r.bindListener(ctx, h, port, tcpServerID, command.ServerTCP)
}

// BindUDP configures a UDP server on port and registers h as its listener.
func (r *Runner) BindUDP(ctx context.Context, h socket.Handle, port uint16) error {
	return r.bindListener(ctx, h, port, udpServerID, command.ServerUDP)
}

// bindListener sends ServerConfiguration and registers h in the listener
// registry, then marks h's own socket endpoint with the bound port so
// listenerForLocalPort can match inbound ConnectEvents to it.
func (r *Runner) bindListener(ctx context.Context, h socket.Handle, port uint16, serverID uint8, proto command.ServerProtocol) error {
	sock, ok := r.sockets.Get(h)
	if !ok {
		return pkg.ErrInvalidSocket
	}

	if _, err := r.client.SendRetry(ctx, command.ServerConfiguration{
		ServerID: serverID,
		Protocol: proto,
		Port:     port,
	}, 3); err != nil {
		return err
	}
	if err := r.listeners.Bind(h, port); err != nil {
		return err
	}
	sock.SetEndpoint(netip.AddrPortFrom(netip.IPv4Unspecified(), port))
	return nil
}

// Accept pops the next queued inbound connection for listener h.
func (r *Runner) Accept(h socket.Handle) (socket.Handle, netip.AddrPort, error) {
	return r.listeners.Accept(h)
}

package network

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FactbirdHQ/ublox-short-range-go/atclient"
	"github.com/FactbirdHQ/ublox-short-range-go/atclient/command"
	"github.com/FactbirdHQ/ublox-short-range-go/digest"
	"github.com/FactbirdHQ/ublox-short-range-go/edm"
	"github.com/FactbirdHQ/ublox-short-range-go/hal"
	"github.com/FactbirdHQ/ublox-short-range-go/ingress"
	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
	"github.com/FactbirdHQ/ublox-short-range-go/socket"
	"github.com/FactbirdHQ/ublox-short-range-go/urc"
)

// defaultBaudRate is the module's factory RS-232 default.
const defaultBaudRate = 115200

// probeBauds is, after the configured rate, the exact fallback list the
// baud-detection step works through.
var probeBauds = []uint32{9600, 14400, 19200, 28800, 38400, 57600, 76800, 115200, 230400, 250000, 460800, 921600, 3000000, 5250000}

// Config parameterizes a Runner.
type Config struct {
	// BaudRate is the target operating baud rate; probeBaud tries this
	// first before falling back to the rest of probeBauds.
	BaudRate uint32
	// FlowControl enables RTS/CTS hardware flow control at the target
	// baud rate.
	FlowControl bool
	// SocketCapacity bounds how many sockets may be live at once.
	SocketCapacity int
	// SocketRxBuffer sizes each socket's rx ring buffer in bytes.
	SocketRxBuffer int
	// TLSBufferSizeIn and TLSBufferSizeOut, when non-nil, override the
	// module's default TLS record in/out buffer sizes via
	// command.SetPeerConfiguration during steady-state configuration.
	TLSBufferSizeIn  *uint16
	TLSBufferSizeOut *uint16
}

// Runner is the long-lived task driving baud detection, EDM bring-up,
// steady-state configuration, and the URC handling loop. Its exported
// accessors are the seam control.Control uses to sequence higher-level
// Wi-Fi operations.
type Runner struct {
	cfg       Config
	transport hal.Transport
	reset     hal.ResetPin // nil if no reset GPIO is wired
	clock     hal.Clock

	digester *digest.Digester
	slot     *atclient.Slot
	client   *atclient.Client
	ingress  *ingress.Task
	urc      *urc.Channel
	router   *router

	conn      *Connection
	sockets   *socket.Set
	listeners *socket.ListenerRegistry
	dns       *DNSTable

	// sockChanged is swapped and closed by broadcastSocketEvent under
	// sockMu, the same changed-channel idiom Connection.Update/Wait use,
	// so a blocked ConnectTCP/ConnectUDP wakes as soon as a channel id is
	// assigned instead of polling.
	sockMu      sync.Mutex
	sockChanged chan struct{}

	initialized bool
}

// New creates a Runner. reset may be nil, in which case a software reboot
// (RebootDCE) substitutes for the hardware reset line.
func New(transport hal.Transport, reset hal.ResetPin, clock hal.Clock, cfg Config) *Runner {
	if cfg.SocketCapacity == 0 {
		cfg.SocketCapacity = 7
	}
	if cfg.SocketRxBuffer == 0 {
		cfg.SocketRxBuffer = 4096
	}

	digester := digest.New()
	slot := atclient.NewSlot()
	urcChan := urc.New()
	sockets := socket.NewSet(cfg.SocketCapacity)

	r := &router{slot: slot, urc: urcChan, sockets: sockets, startup: make(chan struct{}, 1)}
	task := ingress.New(transport, digester, r)

	return &Runner{
		cfg:         cfg,
		transport:   transport,
		reset:       reset,
		clock:       clock,
		digester:    digester,
		slot:        slot,
		client:      atclient.New(task.Writer(), slot, false),
		ingress:     task,
		urc:         urcChan,
		router:      r,
		conn:        NewConnection(),
		sockets:     sockets,
		listeners:   socket.NewListenerRegistry(),
		dns:         NewDNSTable(),
		sockChanged: make(chan struct{}),
	}
}

// Client returns the AT client, shared by control.Control.
func (r *Runner) Client() *atclient.Client { return r.client }

// Connection returns the continuously-updated Wi-Fi state record.
func (r *Runner) Connection() *Connection { return r.conn }

// Sockets returns the socket set.
func (r *Runner) Sockets() *socket.Set { return r.sockets }

// Listeners returns the listener registry shared by TCP and UDP servers.
func (r *Runner) Listeners() *socket.ListenerRegistry { return r.listeners }

// DNS returns the DNS resolution table.
func (r *Runner) DNS() *DNSTable { return r.dns }

// Initialized reports whether the init sequence has completed and not
// since been invalidated by an unexpected module restart.
func (r *Runner) Initialized() bool { return r.initialized }

// broadcastSocketEvent wakes every goroutine blocked in awaitChannelID,
// mirroring Connection's changed-channel swap-and-close.
func (r *Runner) broadcastSocketEvent() {
	r.sockMu.Lock()
	defer r.sockMu.Unlock()
	close(r.sockChanged)
	r.sockChanged = make(chan struct{})
}

// Run drives the runner forever: init, then steady-state operation, and
// back to init whenever the module restarts or the steady state fails.
// It returns only when ctx is cancelled; any other failure, a failed baud
// detection included, is logged and the cycle starts again.
func (r *Runner) Run(ctx context.Context) error {
	for {
		err := r.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		pkg.LogWarn(pkg.ComponentNetwork, "runner cycle failed, restarting", "err", err)
	}
}

// runOnce runs the ingress task and init/steady-state loop together via
// errgroup, so a failure in either tears down the other — the Go
// equivalent of the source's "race NetDevice::run() against at_bridge".
func (r *Runner) runOnce(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return r.ingress.Run(gctx) })
	g.Go(func() error {
		if err := r.init(gctx); err != nil {
			return err
		}
		return r.steadyState(gctx)
	})

	return g.Wait()
}

// init runs baud detection, enters EDM, and applies steady-state
// configuration.
func (r *Runner) init(ctx context.Context) error {
	r.initialized = false

	if err := r.probeBaud(ctx); err != nil {
		return err
	}
	if err := r.enterEDM(ctx); err != nil {
		return err
	}
	if err := r.configureSteadyState(ctx); err != nil {
		return err
	}

	r.initialized = true
	pkg.LogInfo(pkg.ComponentNetwork, "runner initialized")
	return nil
}

// probeBaud tries the configured rate first, then the fixed fallback
// list, resetting the module before each attempt and looking for a
// startup banner followed by a bare AT success.
func (r *Runner) probeBaud(ctx context.Context) error {
	bauds := append([]uint32{r.cfg.BaudRate}, probeBauds...)

	for _, baud := range bauds {
		if err := r.transport.SetBaudRate(baud); err != nil {
			continue
		}
		r.digester.Clear()

		if err := r.hardReset(ctx); err != nil {
			continue
		}
		if err := r.waitStartupBanner(ctx, 5*time.Second); err != nil {
			continue
		}

		r.client.SetEDMMode(false)
		if _, err := r.client.SendRetry(ctx, command.AT{}, 3); err != nil {
			continue
		}

		if baud != r.cfg.BaudRate {
			if err := r.persistBaudRate(ctx, baud); err != nil {
				return err
			}
		}
		return nil
	}
	return pkg.ErrBaudDetection
}

// persistBaudRate tells the module (currently answering at baud) to
// switch to the driver's configured target rate, then reconnects the
// host side transport at that rate too.
func (r *Runner) persistBaudRate(ctx context.Context, current uint32) error {
	cmd := command.SetRS232Settings{
		BaudRate:    r.cfg.BaudRate,
		FlowControl: r.cfg.FlowControl,
		ChangeAfter: command.ChangeAfterOK,
	}
	if _, err := r.client.SendRetry(ctx, cmd, 3); err != nil {
		return err
	}
	if err := r.transport.SetBaudRate(r.cfg.BaudRate); err != nil {
		return err
	}
	select {
	case <-r.clock.After(40 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// hardReset drives the reset line low for 100ms then high, or — absent a
// wired reset pin — sends RebootDCE.
func (r *Runner) hardReset(ctx context.Context) error {
	if r.reset != nil {
		if err := r.reset.SetLow(); err != nil {
			return err
		}
		select {
		case <-r.clock.After(100 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
		return r.reset.SetHigh()
	}

	r.client.SetEDMMode(false)
	_, err := r.client.SendRetry(ctx, command.RebootDCE{}, 1)
	return err
}

// waitStartupBanner blocks until the pre-EDM "+STARTUP" banner is seen or
// timeout elapses.
func (r *Runner) waitStartupBanner(ctx context.Context, timeout time.Duration) error {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-r.router.startup:
		return nil
	case <-wctx.Done():
		return wctx.Err()
	}
}

// enterEDM sends the ATO2 switch-to-EDM request directly over the bridge
// (bypassing the AT response slot, since the module's confirmation
// arrives framed as a StartEvent item routed to the URC channel, not as
// an ATConfirmation) and retries every 10ms until a StartEvent is seen or
// timeout elapses, then waits 50ms more before any further writes.
func (r *Runner) enterEDM(ctx context.Context) error {
	const timeout = 4 * time.Second
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sub := r.urc.Subscribe(4)
	defer sub.Close()

	wire := command.SwitchToEdmCommand{}.Bytes()
	for {
		if err := r.ingress.Writer().Write(wctx, wire); err != nil {
			return errors.Join(pkg.ErrTransport, err)
		}

		attemptCtx, attemptCancel := context.WithTimeout(wctx, 10*time.Millisecond)
		item, err := sub.Next(attemptCtx)
		attemptCancel()
		if err == nil && item.Type == edm.TypeStartEvent {
			r.client.SetEDMMode(true)
			select {
			case <-r.clock.After(50 * time.Millisecond):
			case <-wctx.Done():
				return wctx.Err()
			}
			return nil
		}
		if wctx.Err() != nil {
			return wctx.Err()
		}
	}
}

// configureSteadyState applies the fixed post-EDM configuration common to
// every boot: echo off, drop-on-link-loss, active power save.
func (r *Runner) configureSteadyState(ctx context.Context) error {
	if _, err := r.client.SendRetry(ctx, command.SoftwareVersion{}, 3); err != nil {
		return err
	}
	if _, err := r.client.SendRetry(ctx, command.SetEcho{On: false}, 3); err != nil {
		return err
	}
	if _, err := r.client.SendRetry(ctx, command.SetWifiConfig{Parameter: command.DropNetworkOnLinkLoss, Value: command.On}, 3); err != nil {
		return err
	}
	if _, err := r.client.SendRetry(ctx, command.SetWifiConfig{Parameter: command.PowerSaveMode, Value: command.ActiveMode}, 3); err != nil {
		return err
	}
	if r.cfg.TLSBufferSizeIn != nil {
		if _, err := r.client.SendRetry(ctx, command.SetPeerConfiguration{
			Parameter: command.PeerConfigTLSBufferSizeIn,
			Value:     *r.cfg.TLSBufferSizeIn,
		}, 3); err != nil {
			return err
		}
	}
	if r.cfg.TLSBufferSizeOut != nil {
		if _, err := r.client.SendRetry(ctx, command.SetPeerConfiguration{
			Parameter: command.PeerConfigTLSBufferSizeOut,
			Value:     *r.cfg.TLSBufferSizeOut,
		}, 3); err != nil {
			return err
		}
	}
	return nil
}

// maintenanceInterval sets how often steadyState polls for dropped peer
// connections to close and recyclable sockets to free, between URCs.
const maintenanceInterval = 1 * time.Second

// steadyState subscribes to the URC channel and runs the event-handling
// loop until ctx is cancelled or a module restart invalidates init. A
// maintenance timer runs alongside it since dropped-socket cleanup and
// recycling aren't themselves triggered by any URC.
func (r *Runner) steadyState(ctx context.Context) error {
	sub := r.urc.Subscribe(32)
	defer sub.Close()

	items := make(chan urc.Item)
	subErr := make(chan error, 1)
	go func() {
		for {
			item, err := sub.Next(ctx)
			if err != nil {
				subErr <- err
				return
			}
			select {
			case items <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	timer := r.clock.After(maintenanceInterval)
	for {
		select {
		case item := <-items:
			if err := r.handleURCItem(ctx, item); err != nil {
				return err
			}
		case err := <-subErr:
			return err
		case <-timer:
			r.runMaintenance(ctx)
			timer = r.clock.After(maintenanceInterval)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runMaintenance closes out peers dropped since the last pass and frees
// any socket recyclable past its shutdown-for-write read timeout, one
// per call (Set.Recycle's own contract), draining until none remain.
func (r *Runner) runMaintenance(ctx context.Context) {
	for _, peer := range r.sockets.DrainDropped() {
		if _, err := r.client.SendRetry(ctx, command.ClosePeerConnection{PeerHandle: peer}, 3); err != nil {
			pkg.LogWarn(pkg.ComponentNetwork, "close dropped peer connection failed", "peer", peer, "err", err)
		}
	}
	for r.sockets.Recycle(r.clock.Now()) {
	}
}

// handleURCItem dispatches one broadcast item to its handler. Returning a
// non-nil error ends the steady-state loop (used only for the
// module-restart case, which must re-run init).
func (r *Runner) handleURCItem(ctx context.Context, item urc.Item) error {
	switch item.Type {
	case edm.TypeATEvent:
		r.dispatchATEvent(item.Payload)
	case edm.TypeConnectEvent:
		r.handleConnectEvent(item.Payload)
	case edm.TypeDisconnectEvent:
		r.handleDisconnectEvent(item.Payload)
	case edm.TypeStartEvent:
		// A StartEvent outside enterEDM means the module rebooted
		// unexpectedly mid-operation.
		pkg.LogError(pkg.ComponentNetwork, "unexpected module restart detected")
		return pkg.ErrNetwork
	}
	return nil
}

func (r *Runner) handleConnectEvent(payload []byte) {
	ev, err := edm.DecodeConnectEvent(payload)
	if err != nil {
		pkg.LogWarn(pkg.ComponentNetwork, "malformed connect event discarded", "err", err)
		return
	}

	if listenerHandle, ok := r.listenerForLocalPort(ev.Local.Port()); ok {
		child := r.newChildSocket(ev)
		h, err := r.sockets.Add(child)
		if err != nil {
			pkg.LogWarn(pkg.ComponentNetwork, "no free socket for inbound connection", "err", err)
			return
		}
		if err := r.sockets.IndexChannelID(h, ev.ChannelID); err != nil {
			pkg.LogWarn(pkg.ComponentNetwork, "failed to index channel id", "err", err)
		}
		if err := r.listeners.Enqueue(listenerHandle, h, ev.Remote); err != nil {
			pkg.LogWarn(pkg.ComponentNetwork, "failed to enqueue inbound connection", "err", err)
		}
		r.broadcastSocketEvent()
		return
	}

	// Outbound (client-initiated) connect: ConnectPeer already recorded the
	// socket's target remote endpoint; this event is what first assigns
	// its channel id, so the match is by endpoint, not by (not yet
	// existing) channel id.
	if sock, ok := r.socketAwaitingEndpoint(ev.Remote); ok {
		if err := r.sockets.IndexChannelID(sock.Handle(), ev.ChannelID); err != nil {
			pkg.LogWarn(pkg.ComponentNetwork, "failed to index channel id", "err", err)
			return
		}
		r.markConnected(sock)
		r.broadcastSocketEvent()
		return
	}
	pkg.LogDebug(pkg.ComponentNetwork, "connect event for unrecognized endpoint", "channel", ev.ChannelID, "remote", ev.Remote)
}

// socketAwaitingEndpoint finds a socket targeting remote that has not yet
// been assigned a channel id — the state a client socket is in between
// ConnectPeer's response and its matching ConnectEvent.
func (r *Runner) socketAwaitingEndpoint(remote netip.AddrPort) (socket.Socket, bool) {
	for _, sock := range r.sockets.Iter() {
		if _, hasChannel := sock.ChannelID(); hasChannel {
			continue
		}
		if ep, ok := sock.Endpoint(); ok && ep == remote {
			return sock, true
		}
	}
	return nil, false
}

// listenerForLocalPort reports whether port is bound by a listener, and
// which socket handle owns it. Bind (control.Control) records a listening
// socket's local port via SetEndpoint with an unspecified address, since
// Meta otherwise only tracks a remote endpoint.
func (r *Runner) listenerForLocalPort(port uint16) (socket.Handle, bool) {
	for _, sock := range r.sockets.Iter() {
		if !r.listeners.IsBound(sock.Handle()) {
			continue
		}
		if ep, ok := sock.Endpoint(); ok && ep.Port() == port {
			return sock.Handle(), true
		}
	}
	return 0, false
}

func (r *Runner) newChildSocket(ev edm.ConnectEvent) socket.Socket {
	switch ev.Protocol {
	case edm.ProtocolTCP:
		return socket.NewTCPSocket(0, r.cfg.SocketRxBuffer)
	default:
		return socket.NewUDPSocket(0, r.cfg.SocketRxBuffer)
	}
}

func (r *Runner) markConnected(sock socket.Socket) {
	switch s := sock.(type) {
	case *socket.TCPSocket:
		s.SetState(socket.TCPConnected, r.clock.Now())
	case *socket.UDPSocket:
		s.SetState(socket.UDPEstablished)
	}
}

func (r *Runner) handleDisconnectEvent(payload []byte) {
	ch, err := edm.DecodeDisconnectEvent(payload)
	if err != nil {
		pkg.LogWarn(pkg.ComponentNetwork, "malformed disconnect event discarded", "err", err)
		return
	}
	r.sockets.UnindexChannelID(ch)
	r.broadcastSocketEvent()
}

func (r *Runner) handleWifiLinkConnected(e wifiLinkConnected) {
	r.conn.Update(func(m *mutableConnection) {
		m.SetWifiConnected(Station{BSSID: e.BSSID, Channel: e.Channel})
	})
}

func (r *Runner) handleWifiLinkDisconnected(e wifiLinkDisconnected) {
	r.conn.Update(func(m *mutableConnection) {
		switch e.Reason {
		case DisconnectNetworkDisabled:
			m.ClearStation()
			m.SetWifiState(WifiInactive)
		case DisconnectSecurityProblems:
			m.SetWifiState(WifiSecurityProblems)
		default:
			m.SetWifiState(WifiNotConnected)
		}
	})
}

func (r *Runner) handleAPUp() {
	r.conn.Update(func(m *mutableConnection) {
		m.SetAPUp(Station{})
	})
}

func (r *Runner) handleAPDown() {
	r.conn.Update(func(m *mutableConnection) {
		m.SetAPDown()
	})
}

// handleNetworkUp and handleNetworkDown both resolve to the same action:
// query the IPv4 and IPv6 link-local status fields and update the _up
// flags from their result, rather than trusting the URC's direction to
// imply which flags changed.
func (r *Runner) handleNetworkUp(e networkStatusChange) { r.refreshNetworkStatus(e.InterfaceID) }

func (r *Runner) handleNetworkDown(e networkStatusChange) { r.refreshNetworkStatus(e.InterfaceID) }

// refreshNetworkStatus issues two GetNetworkStatus queries (IPv4 and IPv6
// link-local) and updates the connection's _up flags from their parsed
// addresses. The interface type is not queried. Queries run with a background context
// bounded by the per-command timeout since this runs off the URC loop,
// not a caller-supplied context.
func (r *Runner) refreshNetworkStatus(iface uint8) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ipv4Up := r.queryAddrUp(ctx, iface, command.StatusIPv4Address)
	ipv6LLUp := r.queryAddrUp(ctx, iface, command.StatusIPv6LinkLocalAddress)

	r.conn.Update(func(m *mutableConnection) {
		m.SetIPv4Up(ipv4Up)
		m.SetIPv6LinkLocalUp(ipv6LLUp)
	})
}

// queryAddrUp issues one GetNetworkStatus query and reports whether the
// returned address is a real, assigned (non-unspecified) address.
func (r *Runner) queryAddrUp(ctx context.Context, iface uint8, param command.NetworkStatusParameter) bool {
	resp, err := r.client.Send(ctx, command.GetNetworkStatus{Interface: iface, Parameter: param})
	if err != nil {
		pkg.LogWarn(pkg.ComponentNetwork, "network status query failed", "err", err)
		return false
	}
	status, ok := resp.(command.GetNetworkStatusResponse)
	if !ok {
		return false
	}
	return status.Addr.IsValid() && !status.Addr.IsUnspecified()
}

func (r *Runner) handlePingResponse(ev atEvent) {
	hostname := ev.field(2)
	ipStr := ev.field(3)
	addr, err := parseNetipAddr(ipStr)
	if err != nil {
		pkg.LogWarn(pkg.ComponentNetwork, "malformed ping urc address", "raw", ipStr)
		return
	}
	r.dns.resolve(hostname, addr)
}

func (r *Runner) handlePingError(ev atEvent) {
	// Mirrors +UUPING's layout (hostname at the same position) absent a
	// documented field list for +UUPINGER beyond the error code.
	hostname := ev.field(2)
	r.dns.fail(hostname, pkg.ErrTimeout)
}

func parseNetipAddr(s string) (netip.Addr, error) {
	return netip.ParseAddr(s)
}

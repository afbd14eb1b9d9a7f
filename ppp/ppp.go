// Package ppp bridges the AT control channel across the module's PPP link:
// once the module owns the UART for PPP framing, AT traffic can no longer
// travel the UART directly, so it is tunnelled over a UDP socket on the
// resulting IP link instead. The PPP wire protocol itself is represented
// here only as the Engine collaborator interface a caller supplies.
package ppp

import (
	"context"
	"net/netip"

	"github.com/FactbirdHQ/ublox-short-range-go/hal"
)

// atPort is the UDP port both sides use for the tunnelled AT control
// channel, fixed by the module's PPP configuration.
const atPort = 23

// Config is the PPP authentication the Engine negotiates with the module.
// The module does not require a username/password in practice, but the
// fields are carried through since the Engine interface expects them.
type Config struct {
	Username []byte
	Password []byte
}

// IPv4Config is the address information the Engine reports once PPP
// negotiation assigns an address.
type IPv4Config struct {
	Address    netip.Addr
	DNSServers []netip.Addr
}

// Engine is the external PPP framing engine collaborator: it owns the
// wire-level PPP protocol over transport and calls onIPv4Up once
// negotiation assigns an address. No implementation ships here; this is a
// pure protocol boundary for a caller-supplied engine.
type Engine interface {
	Run(ctx context.Context, transport hal.Transport, config Config, onIPv4Up func(IPv4Config)) error
}

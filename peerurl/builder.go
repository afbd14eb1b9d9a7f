// Package peerurl builds the connect string the module's AT+UDCP /
// AT+USOCO-style peer-connection commands require, matching RFC 3986
// host/authority formatting for the domain portion.
package peerurl

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

// Builder accumulates the fields of a peer URL. The zero value is ready to
// use via New.
type Builder struct {
	hostname  string
	hasHost   bool
	addr      netip.Addr
	hasAddr   bool
	port      uint16
	hasPort   bool
	localPort uint16
	hasLocal  bool
	ca        string
	cert      string
	privKey   string
}

// New creates an empty Builder.
func New() *Builder { return &Builder{} }

// Hostname sets the domain to a DNS name; mutually exclusive with Addr.
func (b *Builder) Hostname(name string) *Builder {
	b.hostname = name
	b.hasHost = true
	return b
}

// Addr sets the domain to a literal IP address; mutually exclusive with
// Hostname.
func (b *Builder) Addr(addr netip.Addr) *Builder {
	b.addr = addr
	b.hasAddr = true
	return b
}

// Port sets the remote port, required by both UDP and TCP.
func (b *Builder) Port(port uint16) *Builder {
	b.port = port
	b.hasPort = true
	return b
}

// Address is a convenience combining Addr and Port from a single
// netip.AddrPort, matching the common "connect to this endpoint" case.
func (b *Builder) Address(ep netip.AddrPort) *Builder {
	return b.Addr(ep.Addr()).Port(ep.Port())
}

// LocalPort sets the optional local_port query parameter.
func (b *Builder) LocalPort(port uint16) *Builder {
	b.localPort = port
	b.hasLocal = true
	return b
}

// Credentials sets the optional TLS credential name query parameters
// (ca, cert, privKey); an empty string omits that parameter.
func (b *Builder) Credentials(ca, cert, privKey string) *Builder {
	b.ca = ca
	b.cert = cert
	b.privKey = privKey
	return b
}

// writeDomain appends "host:port/" to s, after the scheme that build has
// already written. Exactly one of Addr or Hostname must have been set — their exclusive-or — and Port must have
// been set, or this fails with ErrNetwork.
func (b *Builder) writeDomain(s *strings.Builder) error {
	if !b.hasPort {
		return pkg.ErrNetwork
	}
	if b.hasAddr == b.hasHost {
		return pkg.ErrNetwork
	}
	if b.hasAddr {
		fmt.Fprintf(s, "%s/", netip.AddrPortFrom(b.addr, b.port))
		return nil
	}
	fmt.Fprintf(s, "%s:%d/", b.hostname, b.port)
	return nil
}

func (b *Builder) writeQuery(s *strings.Builder) {
	s.WriteByte('?')
	if b.hasLocal {
		fmt.Fprintf(s, "local_port=%d&", b.localPort)
	}
	if b.ca != "" {
		fmt.Fprintf(s, "ca=%s&", b.ca)
	}
	if b.cert != "" {
		fmt.Fprintf(s, "cert=%s&", b.cert)
	}
	if b.privKey != "" {
		fmt.Fprintf(s, "privKey=%s&", b.privKey)
	}

	out := s.String()
	trimmed := strings.TrimSuffix(out, "&")
	trimmed = strings.TrimSuffix(trimmed, "?")
	s.Reset()
	s.WriteString(trimmed)
}

func (b *Builder) build(scheme string) (string, error) {
	var s strings.Builder
	s.WriteString(scheme)
	s.WriteString("://")
	if err := b.writeDomain(&s); err != nil {
		return "", err
	}
	b.writeQuery(&s)
	return s.String(), nil
}

// UDP renders the accumulated fields as a "udp://..." peer URL.
func (b *Builder) UDP() (string, error) { return b.build("udp") }

// TCP renders the accumulated fields as a "tcp://..." peer URL.
func (b *Builder) TCP() (string, error) { return b.build("tcp") }

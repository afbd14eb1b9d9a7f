package peerurl

import (
	"net/netip"
	"testing"
)

func TestUDPIPv4URL(t *testing.T) {
	url, err := New().Address(netip.MustParseAddrPort("192.168.0.1:8080")).UDP()
	if err != nil {
		t.Fatalf("UDP() error = %v", err)
	}
	if want := "udp://192.168.0.1:8080/"; url != want {
		t.Errorf("UDP() = %q, want %q", url, want)
	}
}

func TestUDPIPv6URLIsBracketed(t *testing.T) {
	addr := netip.MustParseAddrPort("[fe80::202:b3ff:fe1e:8329]:8080")
	url, err := New().Address(addr).UDP()
	if err != nil {
		t.Fatalf("UDP() error = %v", err)
	}
	if want := "udp://[fe80::202:b3ff:fe1e:8329]:8080/"; url != want {
		t.Errorf("UDP() = %q, want %q", url, want)
	}
}

func TestUDPHostnameURLWithLocalPort(t *testing.T) {
	url, err := New().Hostname("example.org").Port(2000).LocalPort(2001).UDP()
	if err != nil {
		t.Fatalf("UDP() error = %v", err)
	}
	if want := "udp://example.org:2000/?local_port=2001"; url != want {
		t.Errorf("UDP() = %q, want %q", url, want)
	}
}

func TestTCPWithCredentials(t *testing.T) {
	url, err := New().Hostname("example.org").Port(2000).
		Credentials("ca.crt", "client.crt", "client.key").TCP()
	if err != nil {
		t.Fatalf("TCP() error = %v", err)
	}
	want := "tcp://example.org:2000/?ca=ca.crt&cert=client.crt&privKey=client.key"
	if url != want {
		t.Errorf("TCP() = %q, want %q", url, want)
	}
}

func TestBuildFailsWithoutPort(t *testing.T) {
	if _, err := New().Hostname("example.org").UDP(); err == nil {
		t.Error("UDP() without Port error = nil, want error")
	}
}

func TestBuildFailsWithBothHostAndAddr(t *testing.T) {
	b := New().Hostname("example.org").Addr(netip.MustParseAddr("10.0.0.1")).Port(80)
	if _, err := b.UDP(); err == nil {
		t.Error("UDP() with both hostname and addr error = nil, want error")
	}
}

func TestBuildFailsWithNeitherHostNorAddr(t *testing.T) {
	if _, err := New().Port(80).UDP(); err == nil {
		t.Error("UDP() with neither hostname nor addr error = nil, want error")
	}
}

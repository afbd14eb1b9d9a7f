package network

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"
)

func TestDNSTableQueryLiteralAddressSkipsPing(t *testing.T) {
	table := NewDNSTable()
	pingCalled := false
	ping := func(context.Context, string) error {
		pingCalled = true
		return nil
	}

	addr, err := table.Query(context.Background(), "192.168.1.1", ping)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if addr.String() != "192.168.1.1" {
		t.Errorf("addr = %v, want 192.168.1.1", addr)
	}
	if pingCalled {
		t.Error("ping was called for a literal address")
	}
}

func TestDNSTableQueryResolvesAfterPing(t *testing.T) {
	table := NewDNSTable()
	want := netip.MustParseAddr("10.0.0.5")

	ping := func(ctx context.Context, hostname string) error {
		go table.resolve(hostname, want)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	addr, err := table.Query(ctx, "example.com", ping)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if addr != want {
		t.Errorf("addr = %v, want %v", addr, want)
	}
}

func TestDNSTableQueryPropagatesFailure(t *testing.T) {
	table := NewDNSTable()
	wantErr := errors.New("boom")

	ping := func(ctx context.Context, hostname string) error {
		go table.fail(hostname, wantErr)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := table.Query(ctx, "down.example.com", ping)
	if err != wantErr {
		t.Errorf("Query() error = %v, want %v", err, wantErr)
	}
}

func TestDNSTableQueryPingErrorAbortsImmediately(t *testing.T) {
	table := NewDNSTable()
	wantErr := errors.New("send failed")

	ping := func(context.Context, string) error { return wantErr }

	_, err := table.Query(context.Background(), "unreachable.example.com", ping)
	if err != wantErr {
		t.Errorf("Query() error = %v, want %v", err, wantErr)
	}
}

func TestDNSTableReverseLookup(t *testing.T) {
	table := NewDNSTable()
	addr := netip.MustParseAddr("203.0.113.9")
	table.upsert("host.example.com")
	table.resolve("host.example.com", addr)

	name, ok := table.ReverseLookup(addr)
	if !ok || name != "host.example.com" {
		t.Errorf("ReverseLookup() = (%q, %v), want (host.example.com, true)", name, ok)
	}

	if _, ok := table.ReverseLookup(netip.MustParseAddr("203.0.113.10")); ok {
		t.Error("ReverseLookup() matched an address never resolved")
	}
}

func TestDNSTableSecondQueryForResolvedDomainSkipsPing(t *testing.T) {
	table := NewDNSTable()
	want := netip.MustParseAddr("172.16.0.1")
	table.upsert("cached.example.com")
	table.resolve("cached.example.com", want)

	pingCalled := false
	ping := func(context.Context, string) error {
		pingCalled = true
		return nil
	}

	addr, err := table.Query(context.Background(), "cached.example.com", ping)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if addr != want {
		t.Errorf("addr = %v, want %v", addr, want)
	}
	if pingCalled {
		t.Error("ping was called for an already-resolved domain")
	}
}

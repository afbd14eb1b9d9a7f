package network

import (
	"net/netip"
	"testing"

	"github.com/FactbirdHQ/ublox-short-range-go/hal"
	"github.com/FactbirdHQ/ublox-short-range-go/transporttest"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	pair := transporttest.NewPair()
	t.Cleanup(func() { pair.Host.Close(); pair.Module.Close() })
	return New(pair.Host, nil, hal.SystemClock{}, Config{})
}

func TestParseATEventSplitsPrefixAndFields(t *testing.T) {
	ev, ok := parseATEvent([]byte(`+UUWLE:0,"aa:bb:cc:dd:ee:ff",6`))
	if !ok {
		t.Fatal("parseATEvent() returned ok = false")
	}
	if ev.prefix != "+UUWLE" {
		t.Errorf("prefix = %q, want +UUWLE", ev.prefix)
	}
	if got := ev.field(1); got != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("field(1) = %q, want aa:bb:cc:dd:ee:ff", got)
	}
	if got := ev.uint8Field(2); got != 6 {
		t.Errorf("uint8Field(2) = %d, want 6", got)
	}
}

func TestParseATEventWithNoArgumentsHasEmptyFields(t *testing.T) {
	ev, ok := parseATEvent([]byte(`+UUWAPU:`))
	if !ok {
		t.Fatal("parseATEvent() returned ok = false")
	}
	if ev.prefix != "+UUWAPU" {
		t.Errorf("prefix = %q, want +UUWAPU", ev.prefix)
	}
	if len(ev.fields) != 0 {
		t.Errorf("fields = %v, want empty", ev.fields)
	}
}

func TestParseATEventRejectsLineWithoutColon(t *testing.T) {
	if _, ok := parseATEvent([]byte("garbage")); ok {
		t.Error("parseATEvent() returned ok = true for a line with no colon")
	}
}

func TestDispatchWifiLinkConnectedUpdatesConnection(t *testing.T) {
	r := newTestRunner(t)
	r.dispatchATEvent([]byte(`+UUWLE:0,"aa:bb:cc:dd:ee:ff",11`))

	snap := r.Connection().Snapshot()
	if snap.WifiState != WifiConnected {
		t.Errorf("WifiState = %v, want WifiConnected", snap.WifiState)
	}
	if snap.Station == nil || snap.Station.BSSID != "aa:bb:cc:dd:ee:ff" || snap.Station.Channel != 11 {
		t.Errorf("Station = %+v, want bssid aa:bb:cc:dd:ee:ff channel 11", snap.Station)
	}
}

func TestDispatchWifiLinkDisconnectedReasons(t *testing.T) {
	cases := []struct {
		reason string
		want   WifiState
	}{
		{"0", WifiNotConnected},
		{"2", WifiNotConnected},
		{"4", WifiSecurityProblems},
		{"5", WifiInactive},
	}

	for _, tc := range cases {
		r := newTestRunner(t)
		r.dispatchATEvent([]byte(`+UUWLE:0,"aa:bb:cc:dd:ee:ff",1`))
		r.dispatchATEvent([]byte("+UUWLD:0," + tc.reason))

		snap := r.Connection().Snapshot()
		if snap.WifiState != tc.want {
			t.Errorf("reason %s: WifiState = %v, want %v", tc.reason, snap.WifiState, tc.want)
		}
		if tc.want == WifiInactive && snap.Station != nil {
			t.Errorf("reason %s: Station = %+v, want nil after NetworkDisabled", tc.reason, snap.Station)
		}
	}
}

func TestDispatchAPUpAndDown(t *testing.T) {
	r := newTestRunner(t)

	r.dispatchATEvent([]byte("+UUWAPU:0"))
	if snap := r.Connection().Snapshot(); snap.APState != APUp {
		t.Errorf("APState = %v, want APUp", snap.APState)
	}

	r.dispatchATEvent([]byte("+UUWAPD:0"))
	if snap := r.Connection().Snapshot(); snap.APState != APDown || snap.AP != nil {
		t.Errorf("APState = %+v, want APDown with nil AP", snap)
	}
}

func TestDispatchPingResponseResolvesDNSEntry(t *testing.T) {
	r := newTestRunner(t)
	r.DNS().upsert("example.com")

	r.dispatchATEvent([]byte(`+UUPING:0,32,"example.com","93.184.216.34",64,10`))

	addr, ok := r.DNS().ReverseLookup(netip.MustParseAddr("93.184.216.34"))
	if !ok || addr != "example.com" {
		t.Errorf("ReverseLookup() = (%q, %v), want (example.com, true)", addr, ok)
	}
}

func TestDispatchPingErrorFailsDNSEntry(t *testing.T) {
	r := newTestRunner(t)
	entry := r.DNS().upsert("unreachable.example.com")

	r.dispatchATEvent([]byte(`+UUPINGER:0,0,"unreachable.example.com"`))

	select {
	case <-entry.resolved:
	default:
		t.Fatal("ping error did not resolve the DNS entry's wait channel")
	}
	if entry.state != dnsError {
		t.Errorf("state = %v, want dnsError", entry.state)
	}
}

func TestDispatchUnrecognizedPrefixIsIgnored(t *testing.T) {
	r := newTestRunner(t)
	// Must not panic on an entirely unknown URC prefix.
	r.dispatchATEvent([]byte("+UUNOTHING:1,2,3"))
}

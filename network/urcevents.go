package network

import (
	"strconv"
	"strings"

	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

// DisconnectReason is the <reason> argument of a WifiLinkDisconnected URC.
type DisconnectReason int

const (
	DisconnectUnknown DisconnectReason = iota
	DisconnectRemoteClose
	DisconnectOutOfRange
	DisconnectRoaming
	DisconnectSecurityProblems
	DisconnectNetworkDisabled
)

// atEvent is one parsed "+UU..." unsolicited line carried inside a
// TypeATEvent frame's payload.
type atEvent struct {
	prefix string
	fields []string
}

// parseATEvent splits an ATEvent payload ("+UUWLE:0,\"aa:bb...\",6") into
// its prefix and comma-separated fields. The module sends exactly one URC
// per ATEvent frame.
func parseATEvent(payload []byte) (atEvent, bool) {
	line := strings.TrimSpace(string(payload))
	prefix, rest, ok := strings.Cut(line, ":")
	if !ok {
		return atEvent{}, false
	}
	var fields []string
	if rest != "" {
		fields = strings.Split(rest, ",")
	}
	return atEvent{prefix: strings.TrimSpace(prefix), fields: fields}, true
}

func (e atEvent) field(i int) string {
	if i < 0 || i >= len(e.fields) {
		return ""
	}
	return strings.Trim(strings.TrimSpace(e.fields[i]), `"`)
}

func (e atEvent) intField(i int) int {
	n, _ := strconv.Atoi(e.field(i))
	return n
}

func (e atEvent) uint8Field(i int) uint8 { return uint8(e.intField(i)) }

// wifiLinkConnected is the parsed +UUWLE:connection_id,bssid,channel.
type wifiLinkConnected struct {
	BSSID   string
	Channel uint8
}

// wifiLinkDisconnected is the parsed +UUWLD:connection_id,reason.
type wifiLinkDisconnected struct {
	Reason DisconnectReason
}

// networkStatusChange is the parsed +UUNU/+UUND:interface_id.
type networkStatusChange struct {
	InterfaceID uint8
}

// dispatchATEvent decodes one ATEvent payload and applies its effect to
// the runner, logging and discarding anything unrecognized.
func (r *Runner) dispatchATEvent(payload []byte) {
	ev, ok := parseATEvent(payload)
	if !ok {
		pkg.LogWarn(pkg.ComponentNetwork, "discarding malformed AT event", "payload", string(payload))
		return
	}

	switch ev.prefix {
	case "+UUWLE":
		r.handleWifiLinkConnected(wifiLinkConnected{BSSID: ev.field(1), Channel: ev.uint8Field(2)})
	case "+UUWLD":
		r.handleWifiLinkDisconnected(wifiLinkDisconnected{Reason: DisconnectReason(ev.intField(1))})
	case "+UUWAPU":
		r.handleAPUp()
	case "+UUWAPD":
		r.handleAPDown()
	case "+UUWAPSTAC", "+UUWAPSTAD":
		pkg.LogWarn(pkg.ComponentNetwork, "AP station connect/disconnect not yet implemented", "urc", ev.prefix)
	case "+UUETHLU", "+UUETHLD":
		pkg.LogWarn(pkg.ComponentNetwork, "ethernet link events not yet implemented", "urc", ev.prefix)
	case "+UUNU":
		r.handleNetworkUp(networkStatusChange{InterfaceID: ev.uint8Field(0)})
	case "+UUND":
		r.handleNetworkDown(networkStatusChange{InterfaceID: ev.uint8Field(0)})
	case "+UUNERR":
		pkg.LogWarn(pkg.ComponentNetwork, "network error urc", "fields", ev.fields)
	case "+UUPING":
		r.handlePingResponse(ev)
	case "+UUPINGER":
		r.handlePingError(ev)
	case "+UUDPC", "+UUDPD":
		// Connect/disconnect are already handled via the binary EDM
		// ConnectEvent/DisconnectEvent frames, which carry the channel id
		// these AT-text URCs don't; intentionally unrouted here.
	default:
		pkg.LogDebug(pkg.ComponentNetwork, "ignoring unrecognized AT event", "prefix", ev.prefix)
	}
}

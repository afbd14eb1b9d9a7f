// Package digest drives the EDM decode loop over bytes read from the UART
// and routes each emitted item to its consumer.
package digest

import (
	"github.com/FactbirdHQ/ublox-short-range-go/edm"
	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

// Router receives items the digester has decoded. Implementations must not
// block; URC/response delivery is expected to be non-blocking (buffered
// channels, single-slot overwrite) per the driver's concurrency model.
type Router interface {
	// Response delivers an ATConfirmation result to the single in-flight
	// command's response slot.
	Response(payload []byte, err error)
	// URC delivers a wire-level unsolicited event (ATEvent, ConnectEvent,
	// DisconnectEvent, StartEvent) to the URC broadcast channel.
	URC(typ edm.PayloadType, payload []byte)
	// Data delivers a DataEvent payload to the socket mapped by channel id.
	Data(channelID byte, payload []byte)
	// StartUp marks the connection uninitialized following a pre-EDM
	// "+STARTUP" banner or a module reboot.
	StartUp()
}

// Digester is single-owner state that accepts byte chunks from the ingress
// task and repeatedly applies the EDM decode step until it needs more data.
type Digester struct {
	buf []byte
}

// New creates an empty Digester.
func New() *Digester {
	return &Digester{}
}

// Clear discards any buffered partial frame. Used by the runner when
// re-probing the baud rate, since a stale partial frame from the old baud
// rate is meaningless at the new one.
func (d *Digester) Clear() {
	d.buf = d.buf[:0]
}

// Feed appends chunk to the working buffer and drains every complete item it
// can find, delivering each to route.
func (d *Digester) Feed(chunk []byte, route Router) {
	d.buf = append(d.buf, chunk...)

	for len(d.buf) > 0 {
		res := edm.DecodeStep(d.buf)
		switch res.Kind {
		case edm.NeedMore:
			return
		case edm.Consumed:
			d.buf = d.buf[res.N:]
		case edm.Frame:
			d.buf = d.buf[res.N:]
			d.dispatch(res, route)
		}
	}
}

func (d *Digester) dispatch(res edm.Result, route Router) {
	if res.IsStartUp() {
		route.StartUp()
		return
	}

	switch res.Type {
	case edm.TypeATConfirmation:
		route.Response(res.Payload, res.Err)
	case edm.TypeDataEvent:
		ev, err := edm.DecodeDataEvent(res.Payload)
		if err != nil {
			pkg.LogWarn(pkg.ComponentDigest, "discarding malformed data event", "err", err)
			return
		}
		route.Data(ev.ChannelID, ev.Data)
	case edm.TypeStartEvent, edm.TypeATEvent, edm.TypeConnectEvent, edm.TypeDisconnectEvent:
		route.URC(res.Type, res.Payload)
	default:
		pkg.LogDebug(pkg.ComponentDigest, "ignoring unrouted frame type", "type", res.Type)
	}
}

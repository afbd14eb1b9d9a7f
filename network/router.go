package network

import (
	"github.com/FactbirdHQ/ublox-short-range-go/atclient"
	"github.com/FactbirdHQ/ublox-short-range-go/edm"
	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
	"github.com/FactbirdHQ/ublox-short-range-go/socket"
	"github.com/FactbirdHQ/ublox-short-range-go/urc"
)

// router implements digest.Router, delivering each decoded item to the
// runner's response slot, URC broadcast channel, or socket set as
// appropriate. It must never block, per digest.Router's contract.
type router struct {
	slot    *atclient.Slot
	urc     *urc.Channel
	sockets *socket.Set
	startup chan struct{}
}

func (r *router) Response(payload []byte, err error) {
	r.slot.Publish(payload, err)
}

func (r *router) URC(typ edm.PayloadType, payload []byte) {
	// Copy the payload: the digester's working buffer is reused after this
	// call returns, and the broadcast channel fans this out to
	// subscribers that may read it well after Feed has moved on.
	cp := append([]byte(nil), payload...)
	r.urc.Publish(urc.Item{Type: typ, Payload: cp})
}

// Data deposits a DataEvent payload into the socket mapped to channelID's
// rx ring, discarding it if no socket claims that channel — which is the
// expected case for a DataEvent arriving just after that channel's
// DisconnectEvent.
func (r *router) Data(channelID byte, payload []byte) {
	sock, ok := r.sockets.ByChannelID(channelID)
	if !ok {
		pkg.LogDebug(pkg.ComponentNetwork, "data event for unmapped channel discarded", "channel", channelID)
		return
	}
	switch s := sock.(type) {
	case *socket.TCPSocket:
		n := s.RxEnqueueSlice(payload)
		if n < len(payload) {
			pkg.LogWarn(pkg.ComponentNetwork, "tcp rx buffer overflow, data truncated", "channel", channelID, "dropped", len(payload)-n)
		}
	case *socket.UDPSocket:
		n := s.RxEnqueueSlice(payload)
		if n < len(payload) {
			pkg.LogWarn(pkg.ComponentNetwork, "udp rx buffer overflow, data truncated", "channel", channelID, "dropped", len(payload)-n)
		}
	}
}

// StartUp marks a pre-EDM "+STARTUP" banner sighting; non-blocking since
// at most one waiter (the runner's baud-probe/reset step) ever cares.
func (r *router) StartUp() {
	select {
	case r.startup <- struct{}{}:
	default:
	}
}

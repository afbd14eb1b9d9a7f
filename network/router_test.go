package network

import (
	"context"
	"testing"
	"time"

	"github.com/FactbirdHQ/ublox-short-range-go/atclient"
	"github.com/FactbirdHQ/ublox-short-range-go/edm"
	"github.com/FactbirdHQ/ublox-short-range-go/socket"
	"github.com/FactbirdHQ/ublox-short-range-go/urc"
)

func newTestRouter() *router {
	return &router{
		slot:    atclient.NewSlot(),
		urc:     urc.New(),
		sockets: socket.NewSet(4),
		startup: make(chan struct{}, 1),
	}
}

func TestRouterResponseDeliversToSlot(t *testing.T) {
	r := newTestRouter()
	r.Response([]byte("OK"), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	payload, err := r.slot.Await(ctx)
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if string(payload) != "OK" {
		t.Errorf("payload = %q, want OK", payload)
	}
}

func TestRouterURCBroadcastsToSubscribers(t *testing.T) {
	r := newTestRouter()
	sub := r.urc.Subscribe(4)
	defer sub.Close()

	r.URC(edm.TypeATEvent, []byte("+UUWLE:0,\"aa\",1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	item, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if item.Type != edm.TypeATEvent || string(item.Payload) != "+UUWLE:0,\"aa\",1" {
		t.Errorf("item = %+v, want ATEvent +UUWLE:0,\"aa\",1", item)
	}
}

func TestRouterDataDeliversToMappedSocket(t *testing.T) {
	r := newTestRouter()
	sock := socket.NewTCPSocket(0, 64)
	h, err := r.sockets.Add(sock)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := r.sockets.IndexChannelID(h, 3); err != nil {
		t.Fatalf("IndexChannelID() error = %v", err)
	}

	r.Data(3, []byte{0x01, 0x02, 0x03})

	buf := make([]byte, 3)
	n := sock.RecvSlice(buf)
	if n != 3 {
		t.Fatalf("RecvSlice() returned %d bytes, want 3", n)
	}
	if buf[0] != 0x01 || buf[1] != 0x02 || buf[2] != 0x03 {
		t.Errorf("buf = % X, want 01 02 03", buf)
	}
}

func TestRouterDataForUnmappedChannelIsDiscarded(t *testing.T) {
	r := newTestRouter()
	// No socket mapped to channel 9; Data must not panic and must not
	// create a mapping.
	r.Data(9, []byte{0xFF})

	if _, ok := r.sockets.ByChannelID(9); ok {
		t.Error("Data created a socket mapping for an unmapped channel")
	}
}

func TestRouterStartUpIsNonBlockingWhenFull(t *testing.T) {
	r := newTestRouter()
	r.StartUp()
	// Second call must not block even though the slot-1 channel is full.
	done := make(chan struct{})
	go func() {
		r.StartUp()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartUp() blocked on an already-full channel")
	}
}

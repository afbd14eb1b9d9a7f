package edm

import (
	"bytes"
	"testing"
)

func TestWriteATRequestRoundTrip(t *testing.T) {
	out := WriteATRequest([]byte("AT\r\n"), nil)
	want := []byte{0xAA, 0x00, 0x06, 0x00, byte(TypeATRequest), 'A', 'T', '\r', '\n', 0x55}
	if !bytes.Equal(out, want) {
		t.Fatalf("WriteATRequest() = % X, want % X", out, want)
	}
	// ATRequest is a host-to-module type: an echo of it is consumed whole
	// without being emitted.
	res := DecodeStep(out)
	if res.Kind != Consumed || res.N != len(out) {
		t.Fatalf("DecodeStep(WriteATRequest()) = %+v, want Consumed/%d", res, len(out))
	}
	// The same wrapper typed ATConfirmation (the module's answer) decodes
	// back to the wrapped bytes.
	conf := append([]byte(nil), out...)
	conf[4] = byte(TypeATConfirmation)
	res = DecodeStep(conf)
	if res.Kind != Frame || res.Type != TypeATConfirmation {
		t.Fatalf("DecodeStep(confirmation) = %+v, want Frame/ATConfirmation", res)
	}
	if !bytes.Equal(res.Payload, []byte("AT\r\n")) {
		t.Errorf("Payload = %q, want %q", res.Payload, "AT\r\n")
	}
	if res.N != len(out) {
		t.Errorf("N = %d, want %d", res.N, len(out))
	}
}

func TestWriteDataRoundTrip(t *testing.T) {
	out := WriteData(7, []byte{0x01, 0x02, 0x03}, nil)
	res := DecodeStep(out)
	if res.Kind != Consumed || res.N != len(out) {
		t.Fatalf("DecodeStep() = %+v, want Consumed/%d", res, len(out))
	}
	// DataCommand is an outbound-only wrapper; the decoder treats it (like
	// other not-a-URC types) as silently consumed rather than emitted,
	// since the module never echoes it back verbatim.
	if res.Kind == Frame && res.Type == TypeDataCommand {
		t.Fatalf("DataCommand unexpectedly emitted as a routed frame")
	}
}

func TestDecodeStepMinimumFrame(t *testing.T) {
	buf := []byte{0xAA, 0x00, 0x02, 0x00, byte(TypeStartEvent), 0x55}
	res := DecodeStep(buf)
	if res.Kind != Frame {
		t.Fatalf("DecodeStep(minimum frame) kind = %v, want Frame", res.Kind)
	}
	if res.Type != TypeStartEvent {
		t.Errorf("Type = %v, want TypeStartEvent", res.Type)
	}
	if len(res.Payload) != 0 {
		t.Errorf("Payload = % X, want empty", res.Payload)
	}
	if res.N != 6 {
		t.Errorf("N = %d, want 6", res.N)
	}
}

func TestDecodeStepNeedsMore(t *testing.T) {
	buf := []byte{0xAA, 0x00, 0x02, 0x00}
	if res := DecodeStep(buf); res.Kind != NeedMore {
		t.Errorf("DecodeStep(partial frame) kind = %v, want NeedMore", res.Kind)
	}
}

func TestDecodeStepDropsLeadingNoise(t *testing.T) {
	buf := append([]byte{0x01, 0x02, 0x03}, []byte{0xAA, 0x00, 0x02, 0x00, byte(TypeStartEvent), 0x55}...)
	res := DecodeStep(buf)
	if res.Kind != Consumed || res.N != 3 {
		t.Fatalf("DecodeStep(noise prefix) = %+v, want Consumed/3", res)
	}
}

func TestDecodeStepMalformedEndByteDropsFrame(t *testing.T) {
	buf := []byte{0xAA, 0x00, 0x02, 0x00, byte(TypeStartEvent), 0x00}
	res := DecodeStep(buf)
	if res.Kind != Consumed || res.N != 6 {
		t.Fatalf("DecodeStep(bad end byte) = %+v, want Consumed/6", res)
	}
}

func TestDecodeStepATConfirmationOK(t *testing.T) {
	payload := []byte("+UMSTAT:1,100\r\nOK\r\n")
	frame := writeWrapper(TypeATConfirmation, nil, payload, nil)
	res := DecodeStep(frame)
	if res.Kind != Frame || res.Type != TypeATConfirmation {
		t.Fatalf("DecodeStep() = %+v, want Frame/ATConfirmation", res)
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil", res.Err)
	}
	if !bytes.Equal(res.Payload, []byte("+UMSTAT:1,100")) {
		t.Errorf("Payload = %q, want %q (OK suffix stripped)", res.Payload, "+UMSTAT:1,100")
	}
}

func TestDecodeStepATConfirmationError(t *testing.T) {
	payload := []byte("AT+FOO\r\nERROR\r\n")
	frame := writeWrapper(TypeATConfirmation, nil, payload, nil)
	res := DecodeStep(frame)
	if res.Kind != Frame || res.Err == nil {
		t.Fatalf("DecodeStep() = %+v, want Frame with Err set", res)
	}
}

func TestDecodeStepIPv4ConnectEvent(t *testing.T) {
	buf := []byte{
		0xAA, 0x00, 0x11, 0x00, 0x11,
		0x05, 0x02, 0x00, 0xC0, 0xA8, 0x00, 0x02, 0x13, 0x88,
		0xC0, 0xA8, 0x00, 0x01, 0x0F, 0xA0,
		0x55,
	}
	res := DecodeStep(buf)
	if res.Kind != Frame || res.Type != TypeConnectEvent {
		t.Fatalf("DecodeStep() = %+v, want Frame/ConnectEvent", res)
	}
	if res.N != len(buf) {
		t.Fatalf("N = %d, want %d", res.N, len(buf))
	}
	ev, err := DecodeConnectEvent(res.Payload)
	if err != nil {
		t.Fatalf("DecodeConnectEvent() error = %v", err)
	}
	if ev.ChannelID != 5 {
		t.Errorf("ChannelID = %d, want 5", ev.ChannelID)
	}
	if ev.Protocol != ProtocolTCP {
		t.Errorf("Protocol = %v, want TCP", ev.Protocol)
	}
	if ev.Remote.String() != "192.168.0.2:5000" {
		t.Errorf("Remote = %v, want 192.168.0.2:5000", ev.Remote)
	}
	if ev.Local.String() != "192.168.0.1:4000" {
		t.Errorf("Local = %v, want 192.168.0.1:4000", ev.Local)
	}
}

func TestDecodeStepDataEvent(t *testing.T) {
	buf := WriteData(3, []byte{0x12, 0x34}, nil)
	buf[4] = byte(TypeDataEvent) // module->host data frames arrive typed DataEvent
	res := DecodeStep(buf)
	if res.Kind != Frame || res.Type != TypeDataEvent {
		t.Fatalf("DecodeStep() = %+v, want Frame/DataEvent", res)
	}
	ev, err := DecodeDataEvent(res.Payload)
	if err != nil {
		t.Fatalf("DecodeDataEvent() error = %v", err)
	}
	if ev.ChannelID != 3 {
		t.Errorf("ChannelID = %d, want 3", ev.ChannelID)
	}
	if !bytes.Equal(ev.Data, []byte{0x12, 0x34}) {
		t.Errorf("Data = % X, want 12 34", ev.Data)
	}
}

func TestDecodeStepDisconnectEvent(t *testing.T) {
	buf := writeWrapper(TypeDisconnectEvent, nil, []byte{0x09}, nil)
	res := DecodeStep(buf)
	if res.Kind != Frame || res.Type != TypeDisconnectEvent {
		t.Fatalf("DecodeStep() = %+v, want Frame/DisconnectEvent", res)
	}
	ch, err := DecodeDisconnectEvent(res.Payload)
	if err != nil {
		t.Fatalf("DecodeDisconnectEvent() error = %v", err)
	}
	if ch != 9 {
		t.Errorf("channel = %d, want 9", ch)
	}
}

func TestDecodeStepStreamBoundaryIndependence(t *testing.T) {
	whole := []byte{0xAA, 0x00, 0x02, 0x00, byte(TypeStartEvent), 0x55}
	whole = append(whole, WriteATRequest([]byte("AT\r\n"), nil)...)

	var wholeTypes []PayloadType
	for buf := whole; len(buf) > 0; {
		res := DecodeStep(buf)
		if res.Kind == NeedMore {
			t.Fatalf("unexpected NeedMore decoding a complete stream")
		}
		if res.Kind == Frame {
			wholeTypes = append(wholeTypes, res.Type)
		}
		buf = buf[res.N:]
	}

	var acc []byte
	var streamedTypes []PayloadType
	for _, b := range whole {
		acc = append(acc, b)
		for {
			res := DecodeStep(acc)
			if res.Kind == NeedMore {
				break
			}
			if res.Kind == Frame {
				streamedTypes = append(streamedTypes, res.Type)
			}
			acc = acc[res.N:]
		}
	}

	if len(wholeTypes) != len(streamedTypes) {
		t.Fatalf("whole decode emitted %d items, byte-by-byte emitted %d", len(wholeTypes), len(streamedTypes))
	}
	for i := range wholeTypes {
		if wholeTypes[i] != streamedTypes[i] {
			t.Errorf("item %d: whole=%v streamed=%v", i, wholeTypes[i], streamedTypes[i])
		}
	}
}

func TestDecodeStepStartupBanner(t *testing.T) {
	buf := []byte(startupBanner)
	res := DecodeStep(buf)
	if !res.IsStartUp() {
		t.Fatalf("DecodeStep(startup banner) = %+v, want IsStartUp()", res)
	}
	if res.N != len(startupBanner) {
		t.Errorf("N = %d, want %d", res.N, len(startupBanner))
	}
}

package socket

import "github.com/FactbirdHQ/ublox-short-range-go/ringbuf"

// UDPState is UDP's much simpler state machine: a socket is either
// connected to (or listening for) a peer, or it is not.
type UDPState int

const (
	UDPClosed UDPState = iota
	UDPEstablished
)

func (s UDPState) String() string {
	if s == UDPEstablished {
		return "Established"
	}
	return "Closed"
}

// UDPSocket tracks one UDP association: a client socket connected to a
// single remote, or a bound listener's auto-accepted child bound
// to whichever remote sent it data.
type UDPSocket struct {
	Meta

	state UDPState
	rx    *ringbuf.Buffer
}

// NewUDPSocket creates a closed socket with the given handle and
// receive-buffer capacity.
func NewUDPSocket(handle Handle, rxCapacity int) *UDPSocket {
	s := &UDPSocket{state: UDPClosed, rx: ringbuf.New(rxCapacity)}
	s.Meta.handle = handle
	return s
}

func (s *UDPSocket) Type() Type { return TypeUDP }

// State returns the current association state.
func (s *UDPSocket) State() UDPState { return s.state }

// SetState transitions the socket.
func (s *UDPSocket) SetState(state UDPState) { s.state = state }

// IsOpen reports whether the socket may send or receive.
func (s *UDPSocket) IsOpen() bool { return s.state == UDPEstablished }

// RxEnqueueSlice appends data arriving from a DataEvent to the receive
// buffer, returning how many bytes fit.
func (s *UDPSocket) RxEnqueueSlice(data []byte) int {
	return s.rx.EnqueueSlice(data)
}

// RecvSlice dequeues into dst, returning how many bytes were copied.
func (s *UDPSocket) RecvSlice(dst []byte) int {
	return s.rx.DequeueSlice(dst)
}

// RecvQueue returns the number of bytes currently buffered.
func (s *UDPSocket) RecvQueue() int { return s.rx.Len() }

// Close fully closes the association; a server child socket is discarded
// by the caller removing it from the Set and its listener's outgoing map.
func (s *UDPSocket) Close() {
	s.state = UDPClosed
	s.rx.Reset()
}

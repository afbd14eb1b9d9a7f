package socket

import (
	"time"

	"github.com/FactbirdHQ/ublox-short-range-go/ringbuf"
)

// EGRESS_CHUNK_SIZE is the largest payload a single DataCommand frame may
// carry; writers exceeding it are fragmented into back-to-back frames, none
// specially marked as the last.
const EGRESS_CHUNK_SIZE = 512

// TCPState is the connection-state machine a TCPSocket moves through.
type TCPState int

const (
	TCPCreated TCPState = iota
	TCPWaitingForConnect
	TCPConnected
	TCPCloseWait
	TCPShutdownForWrite
	TCPTimeWait
	TCPClosed
)

func (s TCPState) String() string {
	switch s {
	case TCPCreated:
		return "Created"
	case TCPWaitingForConnect:
		return "WaitingForConnect"
	case TCPConnected:
		return "Connected"
	case TCPCloseWait:
		return "CloseWait"
	case TCPShutdownForWrite:
		return "ShutdownForWrite"
	case TCPTimeWait:
		return "TimeWait"
	case TCPClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// TCPSocket tracks one TCP connection's state and buffers bytes already
// delivered by DataEvent; it performs no I/O itself.
type TCPSocket struct {
	Meta

	state       TCPState
	closedAt    time.Time
	readTimeout time.Duration // 0 means never recycled automatically
	rx          *ringbuf.Buffer
}

// NewTCPSocket creates an unconnected socket with the given handle and
// receive-buffer capacity.
func NewTCPSocket(handle Handle, rxCapacity int) *TCPSocket {
	s := &TCPSocket{state: TCPCreated, rx: ringbuf.New(rxCapacity)}
	s.Meta.handle = handle
	return s
}

func (s *TCPSocket) Type() Type { return TypeTCP }

// State returns the current connection state.
func (s *TCPSocket) State() TCPState { return s.state }

// SetState transitions the socket. now is recorded as the close time when
// entering ShutdownForWrite, for the recycling policy.
func (s *TCPSocket) SetState(state TCPState, now time.Time) {
	s.state = state
	if state == TCPShutdownForWrite {
		s.closedAt = now
	}
}

// SetReadTimeout configures the ShutdownForWrite recycling timeout. Zero
// (the default) disables automatic recycling.
func (s *TCPSocket) SetReadTimeout(d time.Duration) { s.readTimeout = d }

// Recyclable reports whether Recycle should remove this socket: it is in
// ShutdownForWrite and has been there at least readTimeout.
func (s *TCPSocket) Recyclable(now time.Time) bool {
	if s.readTimeout <= 0 || s.state != TCPShutdownForWrite {
		return false
	}
	return now.Sub(s.closedAt) >= s.readTimeout
}

// MaySend reports whether the local side may still transmit.
func (s *TCPSocket) MaySend() bool {
	return s.state == TCPConnected || s.state == TCPCloseWait
}

// MayRecv reports whether new or already-buffered data is receivable.
func (s *TCPSocket) MayRecv() bool {
	if s.state == TCPConnected {
		return true
	}
	return !s.rx.IsEmpty()
}

// CanRecv reports whether MayRecv holds and the buffer has room for more.
func (s *TCPSocket) CanRecv() bool {
	return s.MayRecv() && !s.rx.IsFull()
}

// Recv dequeues via the largest contiguous run available, same contract as
// ringbuf.DequeueManyWith. Returns a zero-value result and false if the
// receive half is not open.
func Recv[R any](s *TCPSocket, f func([]byte) (int, R)) (R, bool) {
	var zero R
	if !s.MayRecv() {
		return zero, false
	}
	return ringbuf.DequeueManyWith(s.rx, f), true
}

// RecvWrapping dequeues via ringbuf.DequeueManyWithWrapping, exposing a
// possible wraparound split instead of forcing a copy.
func RecvWrapping(s *TCPSocket, f func(first, second []byte) int) (int, bool) {
	if !s.MayRecv() {
		return 0, false
	}
	n := ringbuf.DequeueManyWithWrapping(s.rx, func(a, b []byte) (int, int) {
		n := f(a, b)
		return n, n
	})
	return n, true
}

// RecvSlice dequeues into dst and reports how many bytes were copied.
func (s *TCPSocket) RecvSlice(dst []byte) (int, bool) {
	if !s.MayRecv() {
		return 0, false
	}
	return s.rx.DequeueSlice(dst), true
}

// Peek returns up to n bytes from the head of the receive buffer without
// removing them. The returned slice may alias internal storage and is only
// valid until the next mutating call.
func (s *TCPSocket) Peek(n int) ([]byte, bool) {
	if !s.MayRecv() {
		return nil, false
	}
	return s.rx.GetAllocated(0, n), true
}

// RxEnqueueSlice appends data arriving from a DataEvent to the receive
// buffer, returning how many bytes fit.
func (s *TCPSocket) RxEnqueueSlice(data []byte) int {
	return s.rx.EnqueueSlice(data)
}

// RecvQueue returns the number of bytes currently buffered.
func (s *TCPSocket) RecvQueue() int { return s.rx.Len() }

// Close half-closes the write direction: the caller may still drain
// buffered data but Fragment/send should not be called again.
func (s *TCPSocket) Close(now time.Time) {
	if s.state == TCPConnected || s.state == TCPCloseWait {
		s.SetState(TCPShutdownForWrite, now)
	}
}

// Abort immediately and fully closes the socket, discarding any buffered
// data, regardless of current state.
func (s *TCPSocket) Abort() {
	s.state = TCPClosed
	s.rx.Reset()
}

// Fragment splits data into EGRESS_CHUNK_SIZE-sized chunks for back-to-back
// DataCommand frames; none is distinguished as the last.
func Fragment(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}
	var chunks [][]byte
	for len(data) > 0 {
		n := EGRESS_CHUNK_SIZE
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

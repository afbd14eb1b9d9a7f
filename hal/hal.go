// Package hal defines the collaborator interfaces this driver consumes from
// the host platform: a byte-stream transport, a reset GPIO, and a monotonic
// clock. Concrete implementations live in the hal/serial and hal/gpio
// subpackages; tests use the transporttest package instead.
package hal

import (
	"context"
	"time"
)

// Transport is a byte-stream connection to the module's UART. Read and
// Write are independently usable from different goroutines (the ingress
// reader and the at_bridge writer), matching the module side's ability to
// send URCs at any time regardless of an in-flight command.
type Transport interface {
	// Read blocks until at least one byte is available, ctx is cancelled,
	// or the transport fails, and reports how many bytes of buf it filled.
	Read(ctx context.Context, buf []byte) (int, error)
	// Write sends data in full or returns an error; partial writes are not
	// reported to the caller.
	Write(ctx context.Context, data []byte) error
	// SetBaudRate reconfigures the UART's line rate without closing the
	// connection, used by the baud-probe and post-probe reconnect steps.
	SetBaudRate(baud uint32) error
	// Close releases the underlying port.
	Close() error
}

// ResetPin drives the module's hardware reset line, when wired.
type ResetPin interface {
	SetLow() error
	SetHigh() error
}

// Clock abstracts time so tests can run the runner's timeouts without
// waiting in real time.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the Clock backed by the real wall clock and timers.
type SystemClock struct{}

func (SystemClock) Now() time.Time                          { return time.Now() }
func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

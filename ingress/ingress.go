// Package ingress runs the two goroutines that own the UART: a reader loop
// feeding decoded bytes to the digester, and an at_bridge writer loop that
// serializes access to Transport.Write for the AT client. The two are
// started and stopped together so neither ever outlives the other.
package ingress

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/FactbirdHQ/ublox-short-range-go/digest"
	"github.com/FactbirdHQ/ublox-short-range-go/hal"
	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

// readBufSize is the chunk size requested from the transport on each Read.
const readBufSize = 512

// writeRequest is one pending write, resolved once the bytes have been
// handed to the transport (or the attempt failed).
type writeRequest struct {
	data []byte
	done chan error
}

// Bridge is the at_bridge arbitration point (§4.G): the single writer
// goroutine that owns Transport.Write, reached by atclient.Client through
// its Writer interface. This keeps command writes and URC-triggered module
// writes (none, in this driver) from interleaving mid-frame on the wire.
type Bridge struct {
	requests chan writeRequest
}

func newBridge() *Bridge {
	return &Bridge{requests: make(chan writeRequest)}
}

// Write implements atclient.Writer by handing data to the writer goroutine
// and waiting for it to be written (or for ctx to be cancelled first).
func (b *Bridge) Write(ctx context.Context, data []byte) error {
	req := writeRequest{data: data, done: make(chan error, 1)}
	select {
	case b.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Task owns a Transport for the lifetime of a Run call, running the reader
// and writer loops concurrently via an errgroup: if either returns (the
// transport failed, or ctx was cancelled) the other is stopped too.
type Task struct {
	transport hal.Transport
	digester  *digest.Digester
	router    digest.Router

	mu      sync.Mutex
	running bool
	bridge  *Bridge
}

// New creates an ingress Task over transport, feeding every decoded frame to
// router via digester.
func New(transport hal.Transport, digester *digest.Digester, router digest.Router) *Task {
	return &Task{transport: transport, digester: digester, router: router}
}

// Writer returns the at_bridge Writer for the AT client to use. Valid only
// while Run is executing; calling Write before Run starts or after it
// returns blocks until cancelled.
func (t *Task) Writer() *Bridge {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bridge == nil {
		t.bridge = newBridge()
	}
	return t.bridge
}

// Run blocks until ctx is cancelled or either loop returns an error. It is
// safe to call only once per Task.
func (t *Task) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return pkg.ErrAlreadyRunning
	}
	t.running = true
	if t.bridge == nil {
		t.bridge = newBridge()
	}
	bridge := t.bridge
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return t.readLoop(gctx) })
	g.Go(func() error { return t.writeLoop(gctx, bridge) })
	return g.Wait()
}

func (t *Task) readLoop(ctx context.Context) error {
	buf := make([]byte, readBufSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := t.transport.Read(ctx, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		t.digester.Feed(buf[:n], t.router)
	}
}

func (t *Task) writeLoop(ctx context.Context, bridge *Bridge) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-bridge.requests:
			err := t.transport.Write(ctx, req.data)
			req.done <- err
			if err != nil {
				pkg.LogWarn(pkg.ComponentTransport, "write failed, stopping ingress", "err", err)
				return err
			}
		}
	}
}

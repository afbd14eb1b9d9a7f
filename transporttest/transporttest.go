// Package transporttest provides an in-memory hal.Transport for exercising
// the ingress, atclient, and network packages without a real UART: two
// io.Pipe halves and a baud-rate log, the minimum a unit test needs.
package transporttest

import (
	"context"
	"io"
	"sync"
)

// Pair is a loopback pair of Transports: bytes written to one arrive as
// reads on the other, like a null-modem cable between the driver and a
// fake module.
type Pair struct {
	Host   *Transport
	Module *Transport
}

// NewPair creates a connected Transport pair.
func NewPair() *Pair {
	hostRead, moduleWrite := io.Pipe()
	moduleRead, hostWrite := io.Pipe()
	return &Pair{
		Host:   &Transport{r: hostRead, w: hostWrite},
		Module: &Transport{r: moduleRead, w: moduleWrite},
	}
}

// Transport is a hal.Transport backed by io.Pipe, with every SetBaudRate
// call recorded for assertions.
type Transport struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu    sync.Mutex
	bauds []uint32
	baud  uint32
}

// Read implements hal.Transport. ctx cancellation does not interrupt an
// in-flight pipe read (io.Pipe has no deadline support); tests close the
// pipe to unblock a pending Read instead.
func (t *Transport) Read(ctx context.Context, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return t.r.Read(buf)
}

// Write implements hal.Transport.
func (t *Transport) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.w.Write(data)
	return err
}

// SetBaudRate records the requested rate and always succeeds.
func (t *Transport) SetBaudRate(baud uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.baud = baud
	t.bauds = append(t.bauds, baud)
	return nil
}

// BaudHistory returns every rate passed to SetBaudRate, in order.
func (t *Transport) BaudHistory() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]uint32, len(t.bauds))
	copy(out, t.bauds)
	return out
}

// Close closes both pipe halves.
func (t *Transport) Close() error {
	rerr := t.r.Close()
	werr := t.w.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

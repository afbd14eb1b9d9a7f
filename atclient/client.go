// Package atclient implements the AT command client: serialization, the
// single-slot response rendezvous, and send/send_retry semantics over a
// shared UART write path.
package atclient

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/FactbirdHQ/ublox-short-range-go/edm"
	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

// Command is a single AT command: its wire text, how to parse its response,
// its timeout, and whether it expects a response at all. Implementations are
// plain typed records — no inheritance, no shared base type, per the
// catalogue's "flat collection of serialize/parse/timeout" design.
type Command interface {
	// Bytes returns the literal AT command text, including its trailing
	// "\r\n", ready for EDM wrapping or direct UART write.
	Bytes() []byte
	// Parse interprets a successful response payload (EDM-unwrapped, with
	// any trailing "\r\nOK\r\n" already stripped) into a typed response.
	Parse(payload []byte) (any, error)
	// MaxTimeout bounds how long Send waits for a response.
	MaxTimeout() time.Duration
	// ExpectsResponse reports whether the module sends a final response
	// code for this command. Almost all AT commands do; a handful of
	// fire-and-forget ones do not.
	ExpectsResponse() bool
}

// Writer is the shared-UART write path the client uses to send serialized
// command bytes. It is implemented by the ingress package's at_bridge
// arbitration (§4.G): a request is handed to the single writer goroutine and
// Write returns once the bytes have been handed to the transport.
type Writer interface {
	Write(ctx context.Context, data []byte) error
}

// Client sends AT commands and awaits their responses via a Slot shared with
// the digester.
type Client struct {
	writer  Writer
	slot    *Slot
	edmMode bool
}

// New creates a Client. edmMode controls whether outgoing command bytes are
// wrapped in an EDM ATRequest frame (true once the module has entered
// Extended Data Mode) or sent as raw AT text (false, during baud probing).
func New(writer Writer, slot *Slot, edmMode bool) *Client {
	return &Client{writer: writer, slot: slot, edmMode: edmMode}
}

// SetEDMMode toggles framing for subsequent Send calls. The runner calls
// this once immediately after SwitchToEdmCommand succeeds.
func (c *Client) SetEDMMode(on bool) { c.edmMode = on }

// Send serializes cmd, clears the response slot, writes the bytes, and
// (unless cmd.ExpectsResponse() is false) awaits the response within
// cmd.MaxTimeout(), then parses it.
func (c *Client) Send(ctx context.Context, cmd Command) (any, error) {
	wire := cmd.Bytes()
	if c.edmMode {
		wire = edm.WriteATRequest(wire, nil)
	}

	c.slot.Clear()
	if err := c.writer.Write(ctx, wire); err != nil {
		return nil, errors.Join(pkg.ErrTransport, err)
	}
	if !cmd.ExpectsResponse() {
		return nil, nil
	}

	awaitCtx, cancel := context.WithTimeout(ctx, cmd.MaxTimeout())
	defer cancel()

	payload, err := c.slot.Await(awaitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pkg.ErrTimeout
		}
		return nil, err
	}
	return cmd.Parse(payload)
}

// SendRetry retries the full Send sequence up to maxAttempts times when the
// failure is ErrInvalidResponse or ErrTimeout — the two transient kinds
// named in the error design. Any other error (including a parse error
// unrelated to those two sentinels) returns immediately.
func (c *Client) SendRetry(ctx context.Context, cmd Command, maxAttempts uint64) (any, error) {
	var resp any
	boCtx := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttempts-1), ctx)

	err := backoff.Retry(func() error {
		r, sendErr := c.Send(ctx, cmd)
		if sendErr == nil {
			resp = r
			return nil
		}
		if errors.Is(sendErr, pkg.ErrInvalidResponse) || errors.Is(sendErr, pkg.ErrTimeout) {
			return sendErr
		}
		return backoff.Permanent(sendErr)
	}, boCtx)
	return resp, err
}

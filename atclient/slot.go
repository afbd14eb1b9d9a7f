package atclient

import (
	"context"

	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

// result is what the digester publishes for the single in-flight AT command.
type result struct {
	payload []byte
	err     error
}

// Slot is a single-slot rendezvous holding the parsed result of whichever AT
// command is currently in flight. It is ownerless: the issuer clears it,
// writes the command, and awaits; the digester publishes exactly once.
type Slot struct {
	ch chan result
}

// NewSlot creates an empty response slot.
func NewSlot() *Slot {
	return &Slot{ch: make(chan result, 1)}
}

// Clear discards any stale result left behind by a cancelled previous
// command. Callers must clear before writing a new command so a late
// response to the old command can never be mistaken for the new one... in
// practice this driver only has one command in flight at a time, so Clear
// mainly protects against a response that arrived after a caller gave up.
func (s *Slot) Clear() {
	select {
	case <-s.ch:
	default:
	}
}

// Publish delivers a result to the waiter. If a result is already pending
// (the waiter has not yet consumed it), the oldest is overwritten and a
// diagnostic logged — in normal operation the waiter always consumes before
// a second response arrives, since exactly one command is in flight.
func (s *Slot) Publish(payload []byte, err error) {
	select {
	case s.ch <- result{payload: payload, err: err}:
		return
	default:
	}
	select {
	case <-s.ch:
		pkg.LogWarn(pkg.ComponentATClient, "response slot overwritten before being consumed")
	default:
	}
	select {
	case s.ch <- result{payload: payload, err: err}:
	default:
	}
}

// Await blocks until a result is published or ctx is cancelled.
func (s *Slot) Await(ctx context.Context) ([]byte, error) {
	select {
	case r := <-s.ch:
		return r.payload, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

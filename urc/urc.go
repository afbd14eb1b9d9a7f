// Package urc implements a bounded multi-subscriber broadcast channel for
// Unsolicited Result Codes emitted by the module.
package urc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/FactbirdHQ/ublox-short-range-go/edm"
	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

// Item is one event delivered to every subscriber. Payload is a copy of the
// decoded frame's payload slice, since the digester's working buffer is
// reused after the item is routed.
type Item struct {
	Type    edm.PayloadType
	Payload []byte
}

// Channel is a fixed-capacity broadcast channel: every Subscription
// independently receives every published Item, in publish order, up to its
// own capacity. It is message-broadcast, not round-robin — a slow
// subscriber never starves the others.
type Channel struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// New creates an empty broadcast channel.
func New() *Channel {
	return &Channel{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber with the given per-subscriber buffer
// capacity and returns it. Callers must Close the Subscription when done.
func (c *Channel) Subscribe(capacity int) *Subscription {
	s := &Subscription{
		ch:      make(chan Item, capacity),
		channel: c,
	}
	c.mu.Lock()
	c.subs[s] = struct{}{}
	c.mu.Unlock()
	return s
}

// Publish delivers item to every current subscriber. Delivery never blocks:
// a subscriber whose buffer is full has its oldest pending item dropped (and
// its lost counter incremented) to make room.
func (c *Channel) Publish(item Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s := range c.subs {
		s.deliver(item)
	}
}

// Subscription is one independent cursor into the broadcast stream.
type Subscription struct {
	ch      chan Item
	dropped atomic.Uint64
	channel *Channel
}

func (s *Subscription) deliver(item Item) {
	select {
	case s.ch <- item:
		return
	default:
	}
	// Buffer full: drop the oldest pending item and retry once. A
	// concurrent Next() may have already drained a slot, so this is
	// best-effort, not a hard guarantee of exactly-one-drop.
	select {
	case <-s.ch:
		s.dropped.Add(1)
		pkg.LogWarn(pkg.ComponentURC, "subscriber buffer full, dropping oldest item")
	default:
	}
	select {
	case s.ch <- item:
	default:
		// Another publisher raced us; give up silently rather than block.
		s.dropped.Add(1)
	}
}

// Next blocks until the next item arrives or ctx is cancelled.
func (s *Subscription) Next(ctx context.Context) (Item, error) {
	select {
	case item := <-s.ch:
		return item, nil
	case <-ctx.Done():
		return Item{}, ctx.Err()
	}
}

// Dropped returns the number of items this subscriber has lost to buffer
// overflow since it subscribed.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unregisters the subscription. Further Publish calls on the parent
// Channel no longer deliver to it.
func (s *Subscription) Close() {
	if s.channel == nil {
		return
	}
	s.channel.mu.Lock()
	delete(s.channel.subs, s)
	s.channel.mu.Unlock()
}

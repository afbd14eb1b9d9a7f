// Package network implements the long-lived state runner: baud
// detection, EDM bring-up, steady-state configuration, the URC handling
// loop that keeps a WifiConnection record current, and the DNS table.
package network

import (
	"context"
	"sync"

	"github.com/FactbirdHQ/ublox-short-range-go/atclient/command"
)

// WifiState mirrors the module's link-state enumeration, reusing the
// command package's wire-level values so runner state and AT responses
// never need translation.
type WifiState = command.WifiState

const (
	WifiInactive         = command.WifiInactive
	WifiNotConnected     = command.WifiNotConnected
	WifiConnected        = command.WifiConnected
	WifiSecurityProblems = command.WifiSecurityProblems
)

// Station describes the access point a station-mode link is associated
// with.
type Station struct {
	BSSID   string
	Channel uint8
}

// APState is the access-point-mode up/down state, mirrored independently
// of the station-mode WifiState.
type APState int

const (
	APDown APState = iota
	APUp
)

// Connection is the runner's shared, continuously-updated view of the
// module's network state. Every field is read and written only through
// Connection's methods, which serialize access and broadcast a change
// signal any waiter can select on.
type Connection struct {
	mu      sync.RWMutex
	changed chan struct{}

	wifiState WifiState
	station   *Station

	apState APState
	ap      *Station

	ipv4Up          bool
	ipv6LinkLocalUp bool
	ipv6Up          bool
}

// NewConnection creates a Connection with WifiState Inactive and
// everything else cleared.
func NewConnection() *Connection {
	return &Connection{changed: make(chan struct{})}
}

// Snapshot is an immutable copy of Connection's fields at one instant.
type Snapshot struct {
	WifiState       WifiState
	Station         *Station
	APState         APState
	AP              *Station
	IPv4Up          bool
	IPv6LinkLocalUp bool
	IPv6Up          bool
}

func (c *Connection) snapshotLocked() Snapshot {
	return Snapshot{
		WifiState:       c.wifiState,
		Station:         c.station,
		APState:         c.apState,
		AP:              c.ap,
		IPv4Up:          c.ipv4Up,
		IPv6LinkLocalUp: c.ipv6LinkLocalUp,
		IPv6Up:          c.ipv6Up,
	}
}

// Snapshot returns the current state.
func (c *Connection) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Update runs f with exclusive access to the connection fields, then
// broadcasts the change to every Wait caller. f must not block.
func (c *Connection) Update(f func(*mutableConnection)) {
	c.mu.Lock()
	f(&mutableConnection{c})
	ch := c.changed
	c.changed = make(chan struct{})
	c.mu.Unlock()
	close(ch)
}

// Wait blocks until pred(current snapshot) is true or ctx is cancelled,
// re-checking the predicate each time Update broadcasts a change.
func (c *Connection) Wait(ctx context.Context, pred func(Snapshot) bool) error {
	for {
		c.mu.RLock()
		snap := c.snapshotLocked()
		ch := c.changed
		c.mu.RUnlock()

		if pred(snap) {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// mutableConnection is the write view Update's callback receives; it
// exists so field mutation is only ever legal from inside Update.
type mutableConnection struct{ c *Connection }

func (m *mutableConnection) SetWifiConnected(s Station) {
	m.c.wifiState = WifiConnected
	m.c.station = &s
}

func (m *mutableConnection) SetWifiState(s WifiState) {
	m.c.wifiState = s
}

func (m *mutableConnection) ClearStation() {
	m.c.station = nil
}

func (m *mutableConnection) SetAPUp(s Station) {
	m.c.apState = APUp
	m.c.ap = &s
}

func (m *mutableConnection) SetAPDown() {
	m.c.apState = APDown
	m.c.ap = nil
}

func (m *mutableConnection) SetIPv4Up(up bool)          { m.c.ipv4Up = up }
func (m *mutableConnection) SetIPv6LinkLocalUp(up bool) { m.c.ipv6LinkLocalUp = up }
func (m *mutableConnection) SetIPv6Up(up bool)          { m.c.ipv6Up = up }

func (m *mutableConnection) Reset() {
	m.c.wifiState = WifiInactive
	m.c.station = nil
	m.c.apState = APDown
	m.c.ap = nil
	m.c.ipv4Up = false
	m.c.ipv6LinkLocalUp = false
	m.c.ipv6Up = false
}

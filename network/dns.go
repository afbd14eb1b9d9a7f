package network

import (
	"context"
	"net/netip"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/FactbirdHQ/ublox-short-range-go/pkg"
)

// dnsTableCapacity matches the source's heapless::Deque<_,4> — only 4
// in-flight/resolved lookups are remembered at once.
const dnsTableCapacity = 4

// dnsState is the resolution state of one DNSTable entry.
type dnsState int

const (
	dnsPending dnsState = iota
	dnsResolved
	dnsError
)

type dnsEntry struct {
	mu       sync.Mutex
	domain   string
	state    dnsState
	addr     netip.Addr
	err      error
	resolved chan struct{}
}

// DNSTable tracks in-flight and resolved UPING-based name lookups, capped
// at dnsTableCapacity entries with oldest-evicted-on-full semantics
// (delegated to the LRU cache's own eviction).
type DNSTable struct {
	cache *lru.Cache[string, *dnsEntry]
}

// NewDNSTable creates an empty table.
func NewDNSTable() *DNSTable {
	cache, err := lru.New[string, *dnsEntry](dnsTableCapacity)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// dnsTableCapacity never is.
		panic(err)
	}
	return &DNSTable{cache: cache}
}

// upsert returns the entry for domain, creating a Pending one if absent.
func (t *DNSTable) upsert(domain string) *dnsEntry {
	if e, ok := t.cache.Get(domain); ok {
		return e
	}
	e := &dnsEntry{domain: domain, state: dnsPending, resolved: make(chan struct{})}
	t.cache.Add(domain, e)
	return e
}

// resolve satisfies a pending entry for domain with addr, waking any
// waiter. Called by the runner on a +UUPING URC.
func (t *DNSTable) resolve(domain string, addr netip.Addr) {
	e, ok := t.cache.Get(domain)
	if !ok {
		return
	}
	e.mu.Lock()
	if e.state == dnsPending {
		e.state = dnsResolved
		e.addr = addr
		close(e.resolved)
	}
	e.mu.Unlock()
}

// fail satisfies a pending entry for domain with an error, waking any
// waiter. Called by the runner on a +UUPINGER URC.
func (t *DNSTable) fail(domain string, err error) {
	e, ok := t.cache.Get(domain)
	if !ok {
		return
	}
	e.mu.Lock()
	if e.state == dnsPending {
		e.state = dnsError
		e.err = err
		close(e.resolved)
	}
	e.mu.Unlock()
}

// ReverseLookup finds the domain name that resolved to addr, if any entry
// currently in the table did.
func (t *DNSTable) ReverseLookup(addr netip.Addr) (string, bool) {
	for _, domain := range t.cache.Keys() {
		e, ok := t.cache.Peek(domain)
		if !ok {
			continue
		}
		e.mu.Lock()
		match := e.state == dnsResolved && e.addr == addr
		e.mu.Unlock()
		if match {
			return domain, true
		}
	}
	return "", false
}

// Query resolves name to an address, querying the module via ping if name
// is not already a literal IP address. It blocks until resolved, errored,
// or ctx expires, and never longer than pingTimeout.
func (t *DNSTable) Query(ctx context.Context, name string, ping func(ctx context.Context, hostname string) error) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(name); err == nil {
		return addr, nil
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	e := t.upsert(name)
	e.mu.Lock()
	state := e.state
	e.mu.Unlock()

	if state == dnsPending {
		if err := ping(ctx, name); err != nil {
			return netip.Addr{}, err
		}
	}

	select {
	case <-e.resolved:
	case <-ctx.Done():
		return netip.Addr{}, pkg.ErrTimeout
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == dnsError {
		return netip.Addr{}, e.err
	}
	return e.addr, nil
}

// pingTimeout bounds a DNS query end to end.
const pingTimeout = 8 * time.Second

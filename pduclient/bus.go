package pduclient

import (
	"strings"
	"sync"

	"github.com/cyberinferno/go-pdu/protocol"
)

// Reserved correlation keys. Query keys always carry the '?' sigil, so these
// can never collide with a query in flight.
const (
	loginKey   = "login"
	controlKey = "control"
)

// busResult delivers either a payload or an error to the single waiter
// registered for a key.
type busResult struct {
	payload string
	err     error
}

// bus is the correlation table matching inbound replies to the callers that
// requested them. Each key holds at most one waiter; subscribing a key that
// already has a waiter fails fast with ErrRequestInFlight rather than
// queueing, since the protocol does not pipeline same-named commands.
// Published results with no waiter are dropped.
type bus struct {
	mu      sync.Mutex
	waiters map[string]chan busResult
}

func newBus() *bus {
	return &bus{waiters: make(map[string]chan busResult)}
}

// subscribe registers the single waiter for key. The returned channel
// receives exactly one busResult, delivered by publish or fail.
func (b *bus) subscribe(key string) (<-chan busResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.waiters[key]; exists {
		return nil, ErrRequestInFlight
	}

	ch := make(chan busResult, 1)
	b.waiters[key] = ch
	return ch, nil
}

// publish resolves the waiter for key with payload and removes the
// registration. Returns false if no waiter was registered.
func (b *bus) publish(key, payload string) bool {
	return b.deliver(key, busResult{payload: payload})
}

// fail resolves the waiter for key with err and removes the registration.
// Returns false if no waiter was registered.
func (b *bus) fail(key string, err error) bool {
	return b.deliver(key, busResult{err: err})
}

func (b *bus) deliver(key string, res busResult) bool {
	b.mu.Lock()
	ch, exists := b.waiters[key]
	if exists {
		delete(b.waiters, key)
	}
	b.mu.Unlock()

	if !exists {
		return false
	}

	// The channel is 1-buffered and owned by exactly one waiter, so this
	// never blocks.
	ch <- res
	return true
}

// cancel removes the waiter for key without delivering anything. Called when
// the waiting caller gives up (timeout or context cancellation).
func (b *bus) cancel(key string) {
	b.mu.Lock()
	delete(b.waiters, key)
	b.mu.Unlock()
}

// failQueries resolves every pending query-keyed waiter with err. Used when
// the device signals an error that cannot be attributed to a specific
// command, so no query hangs until its timeout.
func (b *bus) failQueries(err error) {
	b.failMatching(err, func(key string) bool {
		return strings.HasPrefix(key, string(protocol.QuerySigil))
	})
}

// failAll resolves every pending waiter with err. Used on connection loss
// and on Close.
func (b *bus) failAll(err error) {
	b.failMatching(err, func(string) bool { return true })
}

func (b *bus) failMatching(err error, match func(key string) bool) {
	b.mu.Lock()
	var chans []chan busResult
	for key, ch := range b.waiters {
		if match(key) {
			delete(b.waiters, key)
			chans = append(chans, ch)
		}
	}
	b.mu.Unlock()

	for _, ch := range chans {
		ch <- busResult{err: err}
	}
}

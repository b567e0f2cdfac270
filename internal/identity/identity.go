// Package identity models the signed-in user as supplied by the
// authentication layer, and a broker that fans identity changes out to
// subscribers.
package identity

import (
	"context"
	"strings"
	"sync"
)

// Identity is a signed-in user. The zero value means anonymous.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
	// HasProfile is set once the username registration flow created the
	// user's profile document.
	HasProfile bool `json:"hasProfile"`
}

func (i Identity) Anonymous() bool {
	return i.UID == ""
}

// DefaultUsername derives a username from the email local part, lowercased.
func (i Identity) DefaultUsername() string {
	local, _, _ := strings.Cut(i.Email, "@")
	return strings.ToLower(strings.TrimSpace(local))
}

// Provider emits the current identity, then every change, until ctx is done.
// The channel is closed when the provider stops.
type Provider interface {
	Subscribe(ctx context.Context) <-chan Identity
}

// Broker is an in-process Provider fed by Publish. A slow subscriber only ever
// sees the latest identity: undelivered intermediate values are replaced.
type Broker struct {
	mu      sync.Mutex
	current Identity
	subs    map[*subscriber]struct{}
}

type subscriber struct {
	ch chan Identity
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[*subscriber]struct{})}
}

// Current returns the last published identity.
func (b *Broker) Current() Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Publish records id and delivers it to every subscriber.
func (b *Broker) Publish(id Identity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = id
	for s := range b.subs {
		s.offer(id)
	}
}

func (b *Broker) Subscribe(ctx context.Context) <-chan Identity {
	s := &subscriber{ch: make(chan Identity, 1)}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	s.offer(b.current)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		close(s.ch)
		b.mu.Unlock()
	}()
	return s.ch
}

// offer replaces any undelivered value. Callers hold the broker lock.
func (s *subscriber) offer(id Identity) {
	select {
	case <-s.ch:
	default:
	}
	s.ch <- id
}

package service

import (
	"errors"
	"sync"

	"mediatrack/internal/metrics"
)

// ErrStaleSession is returned by Load when a sign-out or another sign-in
// happened while it was in flight. Its result was discarded.
var ErrStaleSession = errors.New("session changed while loading; result discarded")

// ticket identifies the session an operation started in.
type ticket struct {
	uid   string
	epoch uint64
}

// guard owns the bound uid and an epoch that moves on every bind/reset.
// Completions are applied only while their ticket is still current, so a
// result that arrives after sign-out never repopulates a cleared mirror.
type guard struct {
	engine string

	mu    sync.RWMutex
	uid   string
	epoch uint64

	onChange func()
}

// begin captures the current session. ok is false when nobody is signed in.
func (g *guard) begin() (t ticket, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.uid == "" {
		return ticket{}, false
	}
	return ticket{uid: g.uid, epoch: g.epoch}, true
}

// bind starts a new session for uid and runs clear under the lock.
func (g *guard) bind(uid string, clear func()) ticket {
	g.mu.Lock()
	g.epoch++
	g.uid = uid
	clear()
	t := ticket{uid: uid, epoch: g.epoch}
	g.mu.Unlock()
	g.notify()
	return t
}

// reset ends the session and runs clear under the lock.
func (g *guard) reset(clear func()) {
	g.mu.Lock()
	g.epoch++
	g.uid = ""
	clear()
	g.mu.Unlock()
	g.notify()
}

// commit runs apply under the lock if t is still current.
func (g *guard) commit(t ticket, apply func()) bool {
	g.mu.Lock()
	if g.epoch != t.epoch {
		g.mu.Unlock()
		metrics.StaleCompletions.WithLabelValues(g.engine).Inc()
		return false
	}
	apply()
	g.mu.Unlock()
	g.notify()
	return true
}

// read runs fn under the read lock.
func (g *guard) read(fn func()) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn()
}

// current returns the bound uid, or "".
func (g *guard) current() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.uid
}

func (g *guard) notify() {
	if g.onChange != nil {
		g.onChange()
	}
}

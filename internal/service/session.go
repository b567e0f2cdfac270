package service

import (
	"context"
	"errors"
	"sync"

	"mediatrack/internal/identity"
	"mediatrack/internal/logging"
	"mediatrack/internal/metrics"
	"mediatrack/internal/models"
	"mediatrack/internal/repository"
	"mediatrack/internal/store"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Session binds the three engines to one identity. Sign-in reloads all of
// them, sign-out clears all of them.
type Session struct {
	Watchlist *WatchlistService
	Ratings   *RatingService
	Social    *SocialService

	log *zerolog.Logger

	mu      sync.RWMutex
	ident   identity.Identity
	loadErr error

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

// Snapshot is a consistent-enough copy of every mirror for presentation.
type Snapshot struct {
	Identity         identity.Identity        `json:"identity"`
	Watchlists       models.Watchlists        `json:"watchlists"`
	CustomWatchlists []models.CustomWatchlist `json:"customWatchlists"`
	Ratings          map[string]int           `json:"ratings"`
	Profile          *models.UserProfile      `json:"profile"`
	LoadError        string                   `json:"loadError,omitempty"`
}

func NewSession(w *WatchlistService, r *RatingService, s *SocialService) *Session {
	sess := &Session{
		Watchlist: w,
		Ratings:   r,
		Social:    s,
		log:       logging.Component("session"),
		subs:      make(map[chan struct{}]struct{}),
	}
	w.g.onChange = sess.changed
	r.g.onChange = sess.changed
	s.g.onChange = sess.changed
	return sess
}

// NewStoreSession wires a session with fresh engines over st.
func NewStoreSession(st store.Store) *Session {
	return NewSession(
		NewWatchlistService(repository.NewWatchlistRepository(st), repository.NewCustomListRepository(st)),
		NewRatingService(repository.NewRatingRepository(st)),
		NewSocialService(repository.NewProfileRepository(st)),
	)
}

// SignIn binds ident and fully reloads every engine concurrently. Load
// failures leave the affected mirror empty; they are joined into the returned
// error and kept for LoadError. An anonymous identity signs out.
func (s *Session) SignIn(ctx context.Context, ident identity.Identity) error {
	if ident.Anonymous() {
		s.SignOut()
		return nil
	}

	// bind every engine before any fetch starts so a concurrent SignOut
	// invalidates all three loads or none
	s.mu.Lock()
	s.ident = ident
	s.loadErr = nil
	wt := s.Watchlist.g.bind(ident.UID, s.Watchlist.clearMirror)
	rt := s.Ratings.g.bind(ident.UID, s.Ratings.clearMirror)
	st := s.Social.g.bind(ident.UID, s.Social.clearMirror)
	s.mu.Unlock()

	var g errgroup.Group
	var errMu sync.Mutex
	var errs []error
	collect := func(err error) {
		if err == nil {
			return
		}
		errMu.Lock()
		errs = append(errs, err)
		errMu.Unlock()
	}
	g.Go(func() error { collect(s.Watchlist.load(ctx, wt)); return nil })
	g.Go(func() error { collect(s.Ratings.load(ctx, rt)); return nil })
	g.Go(func() error { collect(s.Social.loadOwn(ctx, st, ident)); return nil })
	_ = g.Wait()

	err := errors.Join(errs...)
	if errors.Is(err, ErrStaleSession) {
		// superseded; whoever superseded us owns the state now
		return ErrStaleSession
	}

	s.mu.Lock()
	if s.ident.UID == ident.UID {
		s.loadErr = err
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn().Err(err).Str("uid", ident.UID).Msg("session loaded with errors, affected mirrors are empty")
	} else {
		s.log.Info().Str("uid", ident.UID).Msg("session loaded")
	}
	return err
}

// SignOut clears all mirrors. In-flight loads and mutations are discarded.
func (s *Session) SignOut() {
	s.mu.Lock()
	uid := s.ident.UID
	s.ident = identity.Identity{}
	s.loadErr = nil
	s.Watchlist.Clear()
	s.Ratings.Clear()
	s.Social.Clear()
	s.mu.Unlock()
	if uid != "" {
		s.log.Info().Str("uid", uid).Msg("session cleared")
	}
}

// Watch applies every identity p emits until ctx is done. An emission equal
// to the identity already bound is ignored.
func (s *Session) Watch(ctx context.Context, p identity.Provider) error {
	for ident := range p.Subscribe(ctx) {
		if ident == s.Identity() {
			continue
		}
		if err := s.SignIn(ctx, ident); err != nil && !errors.Is(err, ErrStaleSession) {
			s.log.Debug().Err(err).Msg("identity change applied with load errors")
		}
	}
	return ctx.Err()
}

func (s *Session) Identity() identity.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ident
}

// LoadError is the error of the last sign-in load, if any.
func (s *Session) LoadError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Identity:         s.Identity(),
		Watchlists:       s.Watchlist.Watchlists(),
		CustomWatchlists: s.Watchlist.CustomWatchlists(),
		Ratings:          s.Ratings.Ratings(),
		Profile:          s.Social.Profile(),
	}
	if err := s.LoadError(); err != nil {
		snap.LoadError = err.Error()
	}
	return snap
}

// Changes returns a channel signalled after every mirror change, coalesced,
// and a func to unsubscribe.
func (s *Session) Changes() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	return ch, func() {
		s.subMu.Lock()
		delete(s.subs, ch)
		s.subMu.Unlock()
	}
}

func (s *Session) changed() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Registry keeps one Session per signed-in user for the API process.
type Registry struct {
	newSession func() *Session
	log        *zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*registryEntry
}

type registryEntry struct {
	sess   *Session
	broker *identity.Broker
	cancel context.CancelFunc
	ready  chan struct{}
}

func NewRegistry(newSession func() *Session) *Registry {
	return &Registry{
		newSession: newSession,
		log:        logging.Component("registry"),
		sessions:   make(map[string]*registryEntry),
	}
}

// Acquire returns the session for ident, signing it in on first use. Later
// calls with changed identity claims are fed to the session's identity
// broker and applied in the background.
func (r *Registry) Acquire(ctx context.Context, ident identity.Identity) (*Session, error) {
	if ident.Anonymous() {
		return nil, errors.New("anonymous identity has no session")
	}

	r.mu.Lock()
	e, ok := r.sessions[ident.UID]
	if !ok {
		watchCtx, cancel := context.WithCancel(context.Background())
		e = &registryEntry{
			sess:   r.newSession(),
			broker: identity.NewBroker(),
			cancel: cancel,
			ready:  make(chan struct{}),
		}
		r.sessions[ident.UID] = e
		metrics.ActiveSessions.Inc()
		r.mu.Unlock()

		// load errors leave empty mirrors; the shell stays usable
		_ = e.sess.SignIn(ctx, ident)
		e.broker.Publish(ident)
		go func() { _ = e.sess.Watch(watchCtx, e.broker) }()
		close(e.ready)
		return e.sess, nil
	}
	r.mu.Unlock()

	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.broker.Current() != ident {
		e.broker.Publish(ident)
	}
	return e.sess, nil
}

// Lookup returns the session for uid without creating one.
func (r *Registry) Lookup(uid string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[uid]
	if !ok {
		return nil, false
	}
	return e.sess, true
}

// SignOut clears and drops the session for uid.
func (r *Registry) SignOut(uid string) {
	r.mu.Lock()
	e, ok := r.sessions[uid]
	delete(r.sessions, uid)
	r.mu.Unlock()
	if !ok {
		return
	}
	<-e.ready
	e.cancel()
	e.sess.SignOut()
	metrics.ActiveSessions.Dec()
}

// Close signs out every session.
func (r *Registry) Close() {
	r.mu.Lock()
	uids := make([]string, 0, len(r.sessions))
	for uid := range r.sessions {
		uids = append(uids, uid)
	}
	r.mu.Unlock()
	for _, uid := range uids {
		r.SignOut(uid)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"mediatrack/internal/identity"
	"mediatrack/internal/models"
	"mediatrack/internal/store"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSession_SignInLoadsEverything(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	first := NewStoreSession(st)
	if err := first.SignIn(ctx, signedIn("u1")); err != nil {
		t.Fatal(err)
	}
	_ = first.Watchlist.AddToWatchlist(ctx, movie(1, "a"), models.CategoryWatching)
	_ = first.Ratings.RateMedia(ctx, "1", 5)

	s := NewStoreSession(st)
	if err := s.SignIn(ctx, signedIn("u1")); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if snap.Identity.UID != "u1" || snap.Profile == nil || snap.Ratings["1"] != 5 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if len(snap.Watchlists[models.CategoryWatching]) != 1 {
		t.Fatal("expected watchlist loaded")
	}
}

func TestSession_SignOutClearsAllMirrors(t *testing.T) {
	ctx := context.Background()
	s := NewStoreSession(store.NewMemoryStore())
	_ = s.SignIn(ctx, signedIn("u1"))
	_ = s.Watchlist.AddToWatchlist(ctx, movie(1, "a"), models.CategoryWatching)
	_, _ = s.Watchlist.CreateCustomWatchlist(ctx, "L")
	_ = s.Ratings.RateMedia(ctx, "1", 5)

	s.SignOut()

	snap := s.Snapshot()
	if !snap.Identity.Anonymous() || snap.Profile != nil || len(snap.Ratings) != 0 || len(snap.CustomWatchlists) != 0 {
		t.Fatalf("expected cleared snapshot, got %+v", snap)
	}
	for c, items := range snap.Watchlists {
		if len(items) != 0 {
			t.Fatalf("category %s not cleared", c)
		}
	}
}

func TestSession_SignOutDiscardsInFlightLoad(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	seed := NewStoreSession(mem)
	_ = seed.SignIn(ctx, signedIn("u1"))
	_ = seed.Ratings.RateMedia(ctx, "9", 2)
	_ = seed.Watchlist.AddToWatchlist(ctx, movie(9, "nine"), models.CategoryDropped)

	gated := newGatedStore(mem)
	s := NewStoreSession(gated)

	done := make(chan error, 1)
	go func() { done <- s.SignIn(ctx, signedIn("u1")) }()
	<-gated.entered
	s.SignOut()
	close(gated.release)

	select {
	case err := <-done:
		if !errors.Is(err, ErrStaleSession) {
			t.Fatalf("expected ErrStaleSession, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sign-in did not finish")
	}
	snap := s.Snapshot()
	if snap.Profile != nil || len(snap.Ratings) != 0 || s.Watchlist.IsInWatchlist(9) {
		t.Fatalf("stale load leaked into cleared mirrors: %+v", snap)
	}
}

func TestSession_LoadErrorsLeaveEmptyMirrors(t *testing.T) {
	st := newFaultyStore()
	st.failOn("list", "users/u1/watchlist")
	s := NewStoreSession(st)

	err := s.SignIn(context.Background(), signedIn("u1"))
	if !errors.Is(err, errUnavailable) {
		t.Fatalf("expected joined load error, got %v", err)
	}
	if s.LoadError() == nil || s.Snapshot().LoadError == "" {
		t.Fatal("expected load error recorded")
	}
	// the other engines still loaded
	if s.Social.Profile() == nil {
		t.Fatal("expected profile loaded despite watchlist failure")
	}
}

func TestSession_WatchFollowsIdentityProvider(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewStoreSession(store.NewMemoryStore())
	b := identity.NewBroker()
	go func() { _ = s.Watch(ctx, b) }()

	b.Publish(signedIn("u1"))
	waitFor(t, "sign-in", func() bool { return s.Social.Profile() != nil })

	b.Publish(identity.Identity{})
	waitFor(t, "sign-out", func() bool { return s.Identity().Anonymous() && s.Social.Profile() == nil })

	b.Publish(signedIn("u2"))
	waitFor(t, "second user", func() bool {
		p := s.Social.Profile()
		return p != nil && p.UID == "u2"
	})
}

func TestSession_ChangesSignalled(t *testing.T) {
	ctx := context.Background()
	s := NewStoreSession(store.NewMemoryStore())
	_ = s.SignIn(ctx, signedIn("u1"))

	ch, unsubscribe := s.Changes()
	defer unsubscribe()

	_ = s.Ratings.RateMedia(ctx, "1", 4)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a change notification")
	}
}

func TestRegistry_AcquireAndSignOut(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := NewRegistry(func() *Session { return NewStoreSession(st) })
	defer r.Close()

	s1, err := r.Acquire(ctx, signedIn("u1"))
	if err != nil {
		t.Fatal(err)
	}
	if s1.Social.Profile() == nil {
		t.Fatal("expected synchronous load on first acquire")
	}
	again, _ := r.Acquire(ctx, signedIn("u1"))
	if again != s1 || r.Len() != 1 {
		t.Fatal("expected one session per uid")
	}

	changed := signedIn("u1")
	changed.DisplayName = "renamed"
	_, _ = r.Acquire(ctx, changed)
	waitFor(t, "claims applied", func() bool { return s1.Identity().DisplayName == "renamed" })

	if _, err := r.Acquire(ctx, identity.Identity{}); err == nil {
		t.Fatal("expected error for anonymous identity")
	}

	r.SignOut("u1")
	if _, ok := r.Lookup("u1"); ok || r.Len() != 0 {
		t.Fatal("expected session dropped")
	}
	if s1.Social.Profile() != nil {
		t.Fatal("expected mirrors cleared on sign-out")
	}
}

package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"mediatrack/internal/identity"
	"mediatrack/internal/models"
	"mediatrack/internal/repository"
	"mediatrack/internal/store"
)

var errUnavailable = errors.New("store unavailable")

// faultyStore fails selected operations. Rules match an operation name and a
// path prefix.
type faultyStore struct {
	store.Store

	mu    sync.Mutex
	rules []faultRule
	calls map[string]int
}

type faultRule struct {
	op, prefix string
	err        error
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: store.NewMemoryStore(), calls: map[string]int{}}
}

func (f *faultyStore) failOn(op, prefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, faultRule{op: op, prefix: prefix, err: errUnavailable})
}

func (f *faultyStore) heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = nil
}

func (f *faultyStore) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *faultyStore) check(op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	for _, r := range f.rules {
		if r.op == op && strings.HasPrefix(path, r.prefix) {
			return r.err
		}
	}
	return nil
}

func (f *faultyStore) Get(ctx context.Context, path string) (*store.Snapshot, error) {
	if err := f.check("get", path); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, path)
}

func (f *faultyStore) Set(ctx context.Context, path string, data store.Data) error {
	if err := f.check("set", path); err != nil {
		return err
	}
	return f.Store.Set(ctx, path, data)
}

func (f *faultyStore) Update(ctx context.Context, path string, fields store.Data) error {
	if err := f.check("update", path); err != nil {
		return err
	}
	return f.Store.Update(ctx, path, fields)
}

func (f *faultyStore) Delete(ctx context.Context, path string) error {
	if err := f.check("delete", path); err != nil {
		return err
	}
	return f.Store.Delete(ctx, path)
}

func (f *faultyStore) List(ctx context.Context, collection string) ([]*store.Snapshot, error) {
	if err := f.check("list", collection); err != nil {
		return nil, err
	}
	return f.Store.List(ctx, collection)
}

func (f *faultyStore) Add(ctx context.Context, collection string, data store.Data) (string, error) {
	if err := f.check("add", collection); err != nil {
		return "", err
	}
	return f.Store.Add(ctx, collection, data)
}

func (f *faultyStore) Query(ctx context.Context, q store.Query) ([]*store.Snapshot, error) {
	if err := f.check("query", q.Collection); err != nil {
		return nil, err
	}
	return f.Store.Query(ctx, q)
}

// gatedStore parks List and Get calls until release is closed, so a test
// can sign out while a load is in flight.
type gatedStore struct {
	store.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore(st store.Store) *gatedStore {
	return &gatedStore{Store: st, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedStore) wait() {
	g.once.Do(func() { close(g.entered) })
	<-g.release
}

func (g *gatedStore) List(ctx context.Context, collection string) ([]*store.Snapshot, error) {
	g.wait()
	return g.Store.List(ctx, collection)
}

func (g *gatedStore) Get(ctx context.Context, path string) (*store.Snapshot, error) {
	g.wait()
	return g.Store.Get(ctx, path)
}

func newWatchlist(st store.Store) *WatchlistService {
	return NewWatchlistService(repository.NewWatchlistRepository(st), repository.NewCustomListRepository(st))
}

func newRatings(st store.Store) *RatingService {
	return NewRatingService(repository.NewRatingRepository(st))
}

func newSocial(st store.Store) *SocialService {
	return NewSocialService(repository.NewProfileRepository(st))
}

func movie(id int64, title string) models.MediaItem {
	return models.MediaItem{ID: id, Kind: models.KindMovie, Title: title}
}

func seedProfile(st store.Store, uid string, watched int, vis models.ProfileVisibility, followers ...string) {
	ps := models.DefaultPrivacySettings()
	ps.ProfileVisibility = vis
	p := &models.UserProfile{
		UID:               uid,
		Username:          uid,
		DisplayName:       strings.ToUpper(uid[:1]) + uid[1:],
		PrivacySettings:   ps,
		FavoriteGenres:    []string{},
		FavoriteDirectors: []string{},
		Followers:         append([]string{}, followers...),
		Following:         []string{},
		Stats:             models.ProfileStats{TotalMoviesWatched: watched},
	}
	if err := repository.NewProfileRepository(st).Insert(context.Background(), p); err != nil {
		panic(err)
	}
}

func signedIn(uid string) identity.Identity {
	return identity.Identity{UID: uid, Email: uid + "@example.com", DisplayName: uid, HasProfile: true}
}

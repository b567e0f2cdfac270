package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mediatrack/internal/catalog"
	"mediatrack/internal/models"
	"mediatrack/internal/repository"
	"mediatrack/internal/service"
	"mediatrack/internal/store"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

const testSecret = "test-secret"

type fakeCatalog struct{}

func (fakeCatalog) Lookup(_ context.Context, id int64, kind models.MediaKind) (*models.MediaItem, error) {
	if id == 404 {
		return nil, catalog.ErrNotFound
	}
	return &models.MediaItem{ID: id, Kind: kind, Title: "From Catalog"}, nil
}

func (fakeCatalog) Search(_ context.Context, q string) ([]models.MediaItem, error) {
	return []models.MediaItem{{ID: 1, Kind: models.KindMovie, Title: q}}, nil
}

type testEnv struct {
	st  *store.MemoryStore
	reg *service.Registry
	h   http.Handler
}

func newEnv(t *testing.T, c catalog.Provider) *testEnv {
	t.Helper()
	st := store.NewMemoryStore()
	reg := service.NewRegistry(func() *service.Session { return service.NewStoreSession(st) })
	t.Cleanup(reg.Close)
	return &testEnv{
		st:  st,
		reg: reg,
		h: NewRouter(RouterConfig{
			Registry:    reg,
			Catalog:     c,
			JWTSecret:   testSecret,
			CORSOrigins: []string{"*"},
		}),
	}
}

func token(t *testing.T, uid string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   uid,
		"email": uid + "@example.com",
		"name":  uid,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func (e *testEnv) do(t *testing.T, uid, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, uid))
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndAuth(t *testing.T) {
	e := newEnv(t, nil)
	if rec := e.do(t, "", "GET", "/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	if rec := e.do(t, "", "GET", "/me/watchlist", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	req := httptest.NewRequest("GET", "/me/watchlist", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
}

func TestWatchlistFlow(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, "u1", "POST", "/me/watchlist", map[string]any{"id": 550, "kind": "movie", "title": "Fight Club", "category": "plan_to_watch"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", rec.Code, rec.Body)
	}
	rec = e.do(t, "u1", "PUT", "/me/watchlist/550/category", map[string]any{"category": "completed"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("move: %d %s", rec.Code, rec.Body)
	}

	lists := decode[models.Watchlists](t, e.do(t, "u1", "GET", "/me/watchlist", nil))
	if len(lists[models.CategoryCompleted]) != 1 || len(lists[models.CategoryPlanToWatch]) != 0 {
		t.Fatalf("unexpected watchlists: %+v", lists)
	}

	if rec := e.do(t, "u1", "PUT", "/me/watchlist/550/notes", map[string]any{"notes": "rewatch"}); rec.Code != http.StatusNoContent {
		t.Fatalf("notes: %d", rec.Code)
	}
	if rec := e.do(t, "u1", "DELETE", "/me/watchlist/550", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if _, err := e.st.Get(context.Background(), "users/u1/watchlist/550"); err == nil {
		t.Fatal("expected stored item deleted")
	}
}

func TestValidationErrors(t *testing.T) {
	e := newEnv(t, nil)
	cases := []struct {
		method, path string
		body         any
	}{
		{"POST", "/me/watchlist", map[string]any{"id": 1, "kind": "movie", "title": "x", "category": "someday"}},
		{"POST", "/me/watchlist", map[string]any{"id": 1, "kind": "book", "title": "x", "category": "watching"}},
		{"POST", "/me/watchlist", map[string]any{"id": 1, "kind": "movie", "category": "watching"}},
		{"PUT", "/me/watchlist/abc/category", map[string]any{"category": "watching"}},
		{"PUT", "/me/ratings/550", map[string]any{"rating": 9}},
		{"PUT", "/me/ratings/550_s1", map[string]any{"rating": 3}},
		{"POST", "/me/lists", map[string]any{"name": ""}},
		{"PATCH", "/me/profile/privacy", map[string]any{"profileVisibility": "everyone"}},
	}
	for _, c := range cases {
		rec := e.do(t, "u1", c.method, c.path, c.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s %s: expected 400, got %d %s", c.method, c.path, rec.Code, rec.Body)
		}
	}
}

func TestCustomListsAndRatings(t *testing.T) {
	e := newEnv(t, nil)

	list := decode[models.CustomWatchlist](t, e.do(t, "u1", "POST", "/me/lists", map[string]any{"name": "Noir"}))
	if list.ID == "" || list.Name != "Noir" {
		t.Fatalf("unexpected list: %+v", list)
	}
	rec := e.do(t, "u1", "POST", "/me/lists/"+list.ID+"/items", map[string]any{"id": 7, "kind": "movie", "title": "Se7en"})
	if rec.Code != http.StatusOK {
		t.Fatalf("add list item: %d %s", rec.Code, rec.Body)
	}
	if got := decode[models.CustomWatchlist](t, rec); len(got.Items) != 1 {
		t.Fatalf("expected one item, got %+v", got)
	}
	if rec := e.do(t, "u1", "POST", "/me/lists/missing/items", map[string]any{"id": 7, "kind": "movie", "title": "Se7en"}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown list, got %d", rec.Code)
	}

	if rec := e.do(t, "u1", "PUT", "/me/ratings/1399_s1e2", map[string]any{"rating": 5}); rec.Code != http.StatusNoContent {
		t.Fatalf("rate: %d %s", rec.Code, rec.Body)
	}
	ratings := decode[map[string]int](t, e.do(t, "u1", "GET", "/me/ratings", nil))
	if ratings["1399_s1e2"] != 5 {
		t.Fatalf("unexpected ratings: %v", ratings)
	}
}

func TestCatalogBackedAdd(t *testing.T) {
	e := newEnv(t, fakeCatalog{})

	rec := e.do(t, "u1", "POST", "/me/watchlist", map[string]any{"id": 42, "kind": "anime", "category": "watching"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", rec.Code, rec.Body)
	}
	if got := decode[models.MediaItem](t, rec); got.Title != "From Catalog" || got.Kind != models.KindAnime {
		t.Fatalf("expected catalog snapshot, got %+v", got)
	}
	if rec := e.do(t, "u1", "POST", "/me/watchlist", map[string]any{"id": 404, "kind": "movie", "category": "watching"}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown media, got %d", rec.Code)
	}
	if rec := e.do(t, "u1", "GET", "/catalog/search?q=dune", nil); rec.Code != http.StatusOK {
		t.Fatalf("catalog search: %d", rec.Code)
	}
	if rec := newEnv(t, nil).do(t, "u1", "GET", "/catalog/search?q=dune", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without catalog, got %d", rec.Code)
	}
}

func TestFollowAndUserRoutes(t *testing.T) {
	e := newEnv(t, nil)
	// sign bob in once so a profile exists
	if rec := e.do(t, "bob", "GET", "/me/profile", nil); rec.Code != http.StatusOK {
		t.Fatalf("bob profile: %d", rec.Code)
	}

	if rec := e.do(t, "alice", "POST", "/me/following/ghost", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 following unknown user, got %d", rec.Code)
	}
	if rec := e.do(t, "alice", "POST", "/me/following/bob", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("follow: %d %s", rec.Code, rec.Body)
	}

	followers := decode[[]models.UserProfile](t, e.do(t, "alice", "GET", "/users/bob/followers", nil))
	if len(followers) != 1 || followers[0].UID != "alice" {
		t.Fatalf("unexpected followers: %+v", followers)
	}
	if rec := e.do(t, "alice", "GET", "/users/nobody", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown profile, got %d", rec.Code)
	}

	rec := e.do(t, "alice", "POST", "/me/following/reconcile", nil)
	if got := decode[reconcileResponse](t, rec); rec.Code != http.StatusOK || got.Repaired != 0 {
		t.Fatalf("reconcile: %d %+v", rec.Code, got)
	}

	stored, _ := repository.NewProfileRepository(e.st).FindByID(context.Background(), "alice")
	if stored == nil || !stored.IsFollowing("bob") {
		t.Fatal("expected follow edge stored")
	}
}

func TestProfilePatchCannotTakeUsername(t *testing.T) {
	e := newEnv(t, nil)
	if rec := e.do(t, "bob", "GET", "/me/profile", nil); rec.Code != http.StatusOK {
		t.Fatalf("bob profile: %d", rec.Code)
	}

	rec := e.do(t, "alice", "PATCH", "/me/profile", map[string]any{"username": "bob", "bio": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 renaming to a taken username, got %d %s", rec.Code, rec.Body)
	}
	profiles := repository.NewProfileRepository(e.st)
	alice, _ := profiles.FindByID(context.Background(), "alice")
	if alice == nil || alice.Username != "alice" || alice.Bio != "" {
		t.Fatalf("rejected patch must not write anything, got %+v", alice)
	}

	// echoing the current username is accepted
	rec = e.do(t, "alice", "PATCH", "/me/profile", map[string]any{"username": "Alice", "bio": "noir fan"})
	if got := decode[models.UserProfile](t, rec); rec.Code != http.StatusOK || got.Username != "alice" || got.Bio != "noir fan" {
		t.Fatalf("patch: %d %+v", rec.Code, got)
	}
	if bob, _ := profiles.FindByID(context.Background(), "bob"); bob == nil || bob.Username != "bob" {
		t.Fatalf("bob's username changed: %+v", bob)
	}
}

func TestSignOutDropsSession(t *testing.T) {
	e := newEnv(t, nil)
	_ = e.do(t, "u1", "PUT", "/me/ratings/1", map[string]any{"rating": 3})
	if e.reg.Len() != 1 {
		t.Fatal("expected session created on first request")
	}
	if rec := e.do(t, "u1", "POST", "/me/signout", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("signout: %d", rec.Code)
	}
	if _, ok := e.reg.Lookup("u1"); ok {
		t.Fatal("expected session dropped")
	}
}

func TestSnapshotStream(t *testing.T) {
	e := newEnv(t, nil)
	srv := httptest.NewServer(e.h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/me/ws?access_token=" + token(t, "u1")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first snapshotMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	if first.Type != "snapshot" || first.Identity.UID != "u1" {
		t.Fatalf("unexpected first message: %+v", first)
	}

	sess, _ := e.reg.Lookup("u1")
	if err := sess.Ratings.RateMedia(context.Background(), "77", 4); err != nil {
		t.Fatal(err)
	}
	for {
		var msg snapshotMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for update: %v", err)
		}
		if msg.Ratings["77"] == 4 {
			return
		}
	}
}

package repository

import (
	"context"
	"testing"
	"time"

	"mediatrack/internal/models"
	"mediatrack/internal/store"
)

func TestWatchlistRepository_PutListDelete(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	repo := NewWatchlistRepository(st)

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	item := models.WatchlistItem{
		MediaItem: models.MediaItem{ID: 42, Kind: models.KindMovie, Title: "X"},
		Category:  models.CategoryPlanToWatch,
		AddedAt:   at,
	}
	if err := repo.Put(ctx, "u1", item); err != nil {
		t.Fatalf("put: %v", err)
	}

	items, err := repo.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	got := items[0]
	if got.ID != 42 || got.Kind != models.KindMovie || got.Category != models.CategoryPlanToWatch || !got.AddedAt.Equal(at) {
		t.Fatalf("unexpected item: %+v", got)
	}

	if err := repo.Delete(ctx, "u1", 42); err != nil {
		t.Fatalf("delete: %v", err)
	}
	items, _ = repo.ListByUser(ctx, "u1")
	if len(items) != 0 {
		t.Fatalf("expected empty list after delete, got %d", len(items))
	}
}

func TestWatchlistRepository_MigratesLegacyDocuments(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	repo := NewWatchlistRepository(st)

	// catalog-shaped item written by an older client
	_ = st.Set(ctx, "users/u1/watchlist/1399", store.Data{
		"id":           1399,
		"media_type":   "tv",
		"name":         "Game of Thrones",
		"poster_path":  "/got.jpg",
		"vote_average": 8.4,
		"category":     "watching",
		"addedAt":      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	// first list format: mediaType, no category
	_ = st.Set(ctx, "users/u1/watchlist/603", store.Data{
		"id":        603,
		"mediaType": "movie",
		"title":     "The Matrix",
	})

	items, err := repo.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected only the categorized item, got %d", len(items))
	}
	got := items[0]
	if got.Kind != models.KindTV || got.Title != "Game of Thrones" || got.PosterPath != "/got.jpg" {
		t.Fatalf("legacy fields not normalized: %+v", got)
	}
	if got.VoteAverage == nil || *got.VoteAverage != 8.4 {
		t.Fatalf("expected vote average 8.4, got %v", got.VoteAverage)
	}

	snap, err := st.Get(ctx, "users/u1/watchlist/1399")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := snap.Data["media_type"]; ok {
		t.Fatal("expected legacy media_type to be removed by write-back")
	}
	if snap.Data["kind"] != "tv" || snap.Data["title"] != "Game of Thrones" {
		t.Fatalf("expected normalized document written back, got %v", snap.Data)
	}
}

func TestWatchlistRepository_UpdateNotes(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	repo := NewWatchlistRepository(st)

	if err := repo.UpdateNotes(ctx, "u1", 42, "x"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing item, got %v", err)
	}

	_ = repo.Put(ctx, "u1", models.WatchlistItem{
		MediaItem: models.MediaItem{ID: 42, Kind: models.KindMovie, Title: "X"},
		Category:  models.CategoryWatching,
		AddedAt:   time.Now().UTC(),
	})
	if err := repo.UpdateNotes(ctx, "u1", 42, "rewatch ending"); err != nil {
		t.Fatal(err)
	}
	items, _ := repo.ListByUser(ctx, "u1")
	if items[0].Notes != "rewatch ending" {
		t.Fatalf("expected notes, got %q", items[0].Notes)
	}

	_ = repo.UpdateNotes(ctx, "u1", 42, "")
	snap, _ := st.Get(ctx, "users/u1/watchlist/42")
	if _, ok := snap.Data["notes"]; ok {
		t.Fatal("expected empty notes to remove the field")
	}
}

func TestWatchlistRepository_CurrentShapeSurvivesReload(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	repo := NewWatchlistRepository(st)

	vote := 7.9
	at := time.Date(2024, 6, 2, 8, 30, 0, 0, time.UTC)
	err := repo.Put(ctx, "u1", models.WatchlistItem{
		MediaItem: models.MediaItem{ID: 1396, Kind: models.KindTV, Title: "Breaking Bad", PosterPath: "/bb.jpg", VoteAverage: &vote},
		Category:  models.CategoryCompleted,
		AddedAt:   at,
		Notes:     "s5 best",
	})
	if err != nil {
		t.Fatal(err)
	}
	before, _ := st.Get(ctx, "users/u1/watchlist/1396")

	// a fresh repository reads the document the way a new session does
	items, err := NewWatchlistRepository(st).ListByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected the stored item to be listed, got %d", len(items))
	}
	got := items[0]
	if got.ID != 1396 || got.Kind != models.KindTV || got.Title != "Breaking Bad" || got.PosterPath != "/bb.jpg" {
		t.Fatalf("media fields lost on reload: %+v", got)
	}
	if got.VoteAverage == nil || *got.VoteAverage != 7.9 {
		t.Fatalf("expected vote average 7.9, got %v", got.VoteAverage)
	}
	if got.Category != models.CategoryCompleted || got.Notes != "s5 best" || !got.AddedAt.Equal(at) {
		t.Fatalf("list fields lost on reload: %+v", got)
	}

	after, _ := st.Get(ctx, "users/u1/watchlist/1396")
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatal("expected no write-back for a current-shape document")
	}
}

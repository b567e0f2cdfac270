package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"mediatrack/internal/logging"
	"mediatrack/internal/models"
	"mediatrack/internal/store"

	"github.com/rs/zerolog"
)

// WatchlistRepository stores default-category items at
// users/{uid}/watchlist/{mediaId}, one document per media id.
type WatchlistRepository struct {
	st  store.Store
	log *zerolog.Logger
}

func NewWatchlistRepository(st store.Store) *WatchlistRepository {
	return &WatchlistRepository{st: st, log: logging.Component("watchlist_repo")}
}

func watchlistCollection(uid string) string {
	return store.Join("users", uid, "watchlist")
}

func watchlistPath(uid string, mediaID int64) string {
	return store.Join("users", uid, "watchlist", strconv.FormatInt(mediaID, 10))
}

// watchlistDoc holds the list fields of an item document; the media fields of
// the same document decode separately into a mediaDoc.
type watchlistDoc struct {
	Category string     `bson:"category"`
	AddedAt  *time.Time `bson:"addedAt"`
	Notes    string     `bson:"notes"`
}

// ListByUser returns every categorized item. Legacy documents are rewritten in
// the current shape; documents without a valid category or kind are skipped.
func (r *WatchlistRepository) ListByUser(ctx context.Context, uid string) ([]models.WatchlistItem, error) {
	snaps, err := r.st.List(ctx, watchlistCollection(uid))
	if err != nil {
		return nil, err
	}

	out := make([]models.WatchlistItem, 0, len(snaps))
	for _, snap := range snaps {
		item, migrated, ok := r.decode(snap)
		if !ok {
			continue
		}
		if migrated {
			if err := r.Put(ctx, uid, item); err != nil {
				// the item is still usable from the legacy document
				r.log.Warn().Err(err).Str("path", snap.Path).Msg("write-back of normalized item failed")
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *WatchlistRepository) decode(snap *store.Snapshot) (models.WatchlistItem, bool, bool) {
	var (
		d  watchlistDoc
		md mediaDoc
	)
	if err := store.Decode(snap.Data, &d); err != nil {
		r.log.Warn().Err(err).Str("path", snap.Path).Msg("skipping undecodable watchlist item")
		return models.WatchlistItem{}, false, false
	}
	if err := store.Decode(snap.Data, &md); err != nil {
		r.log.Warn().Err(err).Str("path", snap.Path).Msg("skipping undecodable watchlist item")
		return models.WatchlistItem{}, false, false
	}
	if md.ID == 0 {
		// very old documents only carry the id in the key
		md.ID, _ = strconv.ParseInt(snap.ID, 10, 64)
	}

	media, migrated, ok := md.normalize()
	if !ok {
		r.log.Warn().Str("path", snap.Path).Msg("skipping watchlist item without id or kind")
		return models.WatchlistItem{}, false, false
	}
	cat := models.WatchlistCategory(d.Category)
	if !cat.Valid() {
		r.log.Debug().Str("path", snap.Path).Str("category", d.Category).Msg("skipping uncategorized watchlist item")
		return models.WatchlistItem{}, false, false
	}

	item := models.WatchlistItem{MediaItem: media, Category: cat, Notes: d.Notes}
	switch {
	case d.AddedAt != nil:
		item.AddedAt = d.AddedAt.UTC()
	case !snap.UpdatedAt.IsZero():
		item.AddedAt = snap.UpdatedAt
		migrated = true
	default:
		item.AddedAt = time.Now().UTC()
		migrated = true
	}
	return item, migrated, true
}

// Put overwrites the document for item.ID.
func (r *WatchlistRepository) Put(ctx context.Context, uid string, item models.WatchlistItem) error {
	data, err := store.Encode(item)
	if err != nil {
		return err
	}
	return r.st.Set(ctx, watchlistPath(uid, item.ID), data)
}

// Delete removes the item; removing a missing item is not an error.
func (r *WatchlistRepository) Delete(ctx context.Context, uid string, mediaID int64) error {
	return r.st.Delete(ctx, watchlistPath(uid, mediaID))
}

// UpdateNotes touches only the notes field. An empty note removes the field.
func (r *WatchlistRepository) UpdateNotes(ctx context.Context, uid string, mediaID int64, notes string) error {
	var v any = notes
	if notes == "" {
		v = store.DeleteField()
	}
	err := r.st.Update(ctx, watchlistPath(uid, mediaID), store.Data{"notes": v})
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

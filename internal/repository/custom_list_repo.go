package repository

import (
	"context"
	"errors"
	"time"

	"mediatrack/internal/logging"
	"mediatrack/internal/models"
	"mediatrack/internal/store"

	"github.com/rs/zerolog"
)

const defaultListName = "Untitled List"

// CustomListRepository stores user-named lists at
// users/{uid}/customWatchlists/{listId}. Item sets are always written whole.
type CustomListRepository struct {
	st  store.Store
	log *zerolog.Logger
	now func() time.Time
}

func NewCustomListRepository(st store.Store) *CustomListRepository {
	return &CustomListRepository{
		st:  st,
		log: logging.Component("custom_list_repo"),
		now: time.Now,
	}
}

func customListCollection(uid string) string {
	return store.Join("users", uid, "customWatchlists")
}

func customListPath(uid, listID string) string {
	return store.Join("users", uid, "customWatchlists", listID)
}

type customListDoc struct {
	Name      string     `bson:"name"`
	Items     []mediaDoc `bson:"items"`
	CreatedAt *time.Time `bson:"createdAt"`
}

// ListByUser returns every list, normalizing (and writing back) documents
// that predate the items field or carry legacy item shapes.
func (r *CustomListRepository) ListByUser(ctx context.Context, uid string) ([]models.CustomWatchlist, error) {
	snaps, err := r.st.List(ctx, customListCollection(uid))
	if err != nil {
		return nil, err
	}

	out := make([]models.CustomWatchlist, 0, len(snaps))
	for _, snap := range snaps {
		list, migrated, err := r.decode(snap)
		if err != nil {
			r.log.Warn().Err(err).Str("path", snap.Path).Msg("skipping undecodable custom list")
			continue
		}
		if migrated {
			if err := r.Put(ctx, uid, list); err != nil {
				r.log.Warn().Err(err).Str("path", snap.Path).Msg("write-back of normalized list failed")
			}
		}
		out = append(out, list)
	}
	return out, nil
}

// FindByID returns nil, nil when the list does not exist.
func (r *CustomListRepository) FindByID(ctx context.Context, uid, listID string) (*models.CustomWatchlist, error) {
	snap, err := r.st.Get(ctx, customListPath(uid, listID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	list, _, err := r.decode(snap)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

func (r *CustomListRepository) decode(snap *store.Snapshot) (models.CustomWatchlist, bool, error) {
	var d customListDoc
	if err := store.Decode(snap.Data, &d); err != nil {
		return models.CustomWatchlist{}, false, err
	}

	list := models.CustomWatchlist{ID: snap.ID, Name: d.Name, Items: []models.MediaItem{}}
	migrated := false

	if _, ok := snap.Data["items"]; !ok {
		migrated = true
	}
	if list.Name == "" {
		list.Name = defaultListName
		migrated = true
	}
	if d.CreatedAt != nil {
		list.CreatedAt = d.CreatedAt.UTC()
	} else {
		list.CreatedAt = r.now().UTC()
		migrated = true
	}

	for _, md := range d.Items {
		item, itemMigrated, ok := md.normalize()
		if !ok {
			migrated = true
			continue
		}
		if list.Contains(item.ID) {
			migrated = true
			continue
		}
		migrated = migrated || itemMigrated
		list.Items = append(list.Items, item)
	}
	return list, migrated, nil
}

// Create adds a new empty list and returns it with the store-assigned id.
func (r *CustomListRepository) Create(ctx context.Context, uid, name string) (*models.CustomWatchlist, error) {
	list := models.CustomWatchlist{
		Name:      name,
		Items:     []models.MediaItem{},
		CreatedAt: r.now().UTC().Truncate(time.Millisecond),
	}
	data, err := store.Encode(list)
	if err != nil {
		return nil, err
	}
	id, err := r.st.Add(ctx, customListCollection(uid), data)
	if err != nil {
		return nil, err
	}
	list.ID = id
	return &list, nil
}

// Put overwrites the whole list document.
func (r *CustomListRepository) Put(ctx context.Context, uid string, list models.CustomWatchlist) error {
	if list.Items == nil {
		list.Items = []models.MediaItem{}
	}
	data, err := store.Encode(list)
	if err != nil {
		return err
	}
	return r.st.Set(ctx, customListPath(uid, list.ID), data)
}

func (r *CustomListRepository) Delete(ctx context.Context, uid, listID string) error {
	return r.st.Delete(ctx, customListPath(uid, listID))
}

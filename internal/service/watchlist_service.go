package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediatrack/internal/logging"
	"mediatrack/internal/metrics"
	"mediatrack/internal/models"
	"mediatrack/internal/repository"

	"github.com/rs/zerolog"
)

var (
	ErrCustomListNotFound = errors.New("custom watchlist not found")
	ErrEmptyListName      = errors.New("custom watchlist name is required")
)

const engineWatchlist = "watchlist"

// WatchlistService is the watchlist engine: it mirrors a user's default
// categories and custom lists and writes every mutation through to the store
// before touching the mirror.
type WatchlistService struct {
	g     guard
	items *repository.WatchlistRepository
	lists *repository.CustomListRepository
	log   *zerolog.Logger
	now   func() time.Time

	// guarded by g.mu
	byCategory map[models.WatchlistCategory][]models.WatchlistItem
	custom     []models.CustomWatchlist
}

func NewWatchlistService(items *repository.WatchlistRepository, lists *repository.CustomListRepository) *WatchlistService {
	s := &WatchlistService{
		g:     guard{engine: engineWatchlist},
		items: items,
		lists: lists,
		log:   logging.Component(engineWatchlist),
		now:   time.Now,
	}
	s.clearMirror()
	return s
}

func (s *WatchlistService) clearMirror() {
	s.byCategory = make(map[models.WatchlistCategory][]models.WatchlistItem, len(models.Categories))
	for _, c := range models.Categories {
		s.byCategory[c] = []models.WatchlistItem{}
	}
	s.custom = []models.CustomWatchlist{}
}

// Load binds the engine to uid and replaces the mirror with the stored state.
// A user with no data ends up with empty sets. On error the mirror stays empty.
func (s *WatchlistService) Load(ctx context.Context, uid string) error {
	return s.load(ctx, s.g.bind(uid, s.clearMirror))
}

func (s *WatchlistService) load(ctx context.Context, t ticket) (err error) {
	defer func() { metrics.RecordLoad(engineWatchlist, err) }()

	uid := t.uid
	items, err := s.items.ListByUser(ctx, uid)
	if err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}
	lists, err := s.lists.ListByUser(ctx, uid)
	if err != nil {
		return fmt.Errorf("load custom watchlists: %w", err)
	}

	ok := s.g.commit(t, func() {
		for _, it := range items {
			// keep the one-category invariant even if the store holds duplicates
			s.removeLocked(it.ID)
			s.byCategory[it.Category] = append(s.byCategory[it.Category], it)
		}
		s.custom = lists
	})
	if !ok {
		return ErrStaleSession
	}
	s.log.Debug().Str("uid", uid).Int("items", len(items)).Int("lists", len(lists)).Msg("watchlists loaded")
	return nil
}

// Clear drops the mirror and unbinds the user.
func (s *WatchlistService) Clear() {
	s.g.reset(s.clearMirror)
}

// removeLocked drops id from every category; it reports whether it was present.
func (s *WatchlistService) removeLocked(id int64) bool {
	found := false
	for c, items := range s.byCategory {
		kept := items[:0:0]
		for _, it := range items {
			if it.ID == id {
				found = true
				continue
			}
			kept = append(kept, it)
		}
		s.byCategory[c] = kept
	}
	return found
}

func (s *WatchlistService) findLocked(id int64) (models.WatchlistItem, bool) {
	for _, c := range models.Categories {
		for _, it := range s.byCategory[c] {
			if it.ID == id {
				return it, true
			}
		}
	}
	return models.WatchlistItem{}, false
}

// AddToWatchlist upserts the item into category. Adding an id that is already
// in another category moves it.
func (s *WatchlistService) AddToWatchlist(ctx context.Context, item models.MediaItem, category models.WatchlistCategory) (err error) {
	if err := item.Validate(); err != nil {
		return err
	}
	if !category.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidCategory, category)
	}
	t, ok := s.g.begin()
	if !ok {
		return nil
	}
	defer func() { metrics.RecordMutation(engineWatchlist, "add", err) }()

	entry := models.WatchlistItem{
		MediaItem: item,
		Category:  category,
		AddedAt:   s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.items.Put(ctx, t.uid, entry); err != nil {
		return fmt.Errorf("add to watchlist: %w", err)
	}

	s.g.commit(t, func() {
		s.removeLocked(item.ID)
		s.byCategory[category] = append(s.byCategory[category], entry)
	})
	return nil
}

// RemoveFromWatchlist deletes the item from whichever category holds it.
// Custom list membership is not touched.
func (s *WatchlistService) RemoveFromWatchlist(ctx context.Context, id int64) (err error) {
	t, ok := s.g.begin()
	if !ok {
		return nil
	}
	defer func() { metrics.RecordMutation(engineWatchlist, "remove", err) }()

	if err := s.items.Delete(ctx, t.uid, id); err != nil {
		return fmt.Errorf("remove from watchlist: %w", err)
	}
	s.g.commit(t, func() { s.removeLocked(id) })
	return nil
}

// MoveToCategory relabels an item. Moving an id that is not in any category is
// a no-op.
func (s *WatchlistService) MoveToCategory(ctx context.Context, id int64, category models.WatchlistCategory) (err error) {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidCategory, category)
	}
	t, ok := s.g.begin()
	if !ok {
		return nil
	}

	var cur models.WatchlistItem
	var found bool
	s.g.read(func() { cur, found = s.findLocked(id) })
	if !found {
		s.log.Debug().Int64("id", id).Str("category", string(category)).Msg("move ignored: item not in watchlist")
		return nil
	}
	defer func() { metrics.RecordMutation(engineWatchlist, "move", err) }()

	cur.Category = category
	if err := s.items.Put(ctx, t.uid, cur); err != nil {
		return fmt.Errorf("move watchlist item: %w", err)
	}
	s.g.commit(t, func() {
		s.removeLocked(id)
		s.byCategory[category] = append(s.byCategory[category], cur)
	})
	return nil
}

// UpdateItemNotes sets the free-text note of an item; "" clears it. Unknown
// ids are ignored.
func (s *WatchlistService) UpdateItemNotes(ctx context.Context, id int64, notes string) (err error) {
	t, ok := s.g.begin()
	if !ok {
		return nil
	}
	var found bool
	s.g.read(func() { _, found = s.findLocked(id) })
	if !found {
		return nil
	}
	defer func() { metrics.RecordMutation(engineWatchlist, "notes", err) }()

	notes = strings.TrimSpace(notes)
	if err := s.items.UpdateNotes(ctx, t.uid, id, notes); err != nil {
		return fmt.Errorf("update notes: %w", err)
	}
	s.g.commit(t, func() {
		for c, items := range s.byCategory {
			for i := range items {
				if items[i].ID == id {
					s.byCategory[c][i].Notes = notes
				}
			}
		}
	})
	return nil
}

func (s *WatchlistService) IsInWatchlist(id int64) bool {
	_, ok := s.GetItemCategory(id)
	return ok
}

// GetItemCategory returns the category holding id, if any.
func (s *WatchlistService) GetItemCategory(id int64) (models.WatchlistCategory, bool) {
	var it models.WatchlistItem
	var ok bool
	s.g.read(func() { it, ok = s.findLocked(id) })
	if !ok {
		return "", false
	}
	return it.Category, true
}

// Watchlists returns a copy of the default-category mirror with all four keys.
func (s *WatchlistService) Watchlists() models.Watchlists {
	out := make(models.Watchlists, len(models.Categories))
	s.g.read(func() {
		for _, c := range models.Categories {
			out[c] = append([]models.WatchlistItem{}, s.byCategory[c]...)
		}
	})
	return out
}

// CreateCustomWatchlist adds an empty list. It returns nil, nil when nobody is
// signed in.
func (s *WatchlistService) CreateCustomWatchlist(ctx context.Context, name string) (_ *models.CustomWatchlist, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyListName
	}
	t, ok := s.g.begin()
	if !ok {
		return nil, nil
	}
	defer func() { metrics.RecordMutation(engineWatchlist, "create_list", err) }()

	list, err := s.lists.Create(ctx, t.uid, name)
	if err != nil {
		return nil, fmt.Errorf("create custom watchlist: %w", err)
	}
	s.g.commit(t, func() { s.custom = append(s.custom, cloneList(*list)) })
	return list, nil
}

// DeleteCustomWatchlist removes the list. Deleting an unknown list is a no-op.
func (s *WatchlistService) DeleteCustomWatchlist(ctx context.Context, listID string) (err error) {
	t, ok := s.g.begin()
	if !ok {
		return nil
	}
	defer func() { metrics.RecordMutation(engineWatchlist, "delete_list", err) }()

	if err := s.lists.Delete(ctx, t.uid, listID); err != nil {
		return fmt.Errorf("delete custom watchlist: %w", err)
	}
	s.g.commit(t, func() { s.custom = removeList(s.custom, listID) })
	return nil
}

func removeList(lists []models.CustomWatchlist, listID string) []models.CustomWatchlist {
	kept := lists[:0:0]
	for _, l := range lists {
		if l.ID != listID {
			kept = append(kept, l)
		}
	}
	return kept
}

// AddToCustomWatchlist reads the stored list, appends item unless an entry
// with the same id exists, and writes the list back whole.
func (s *WatchlistService) AddToCustomWatchlist(ctx context.Context, listID string, item models.MediaItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	return s.rewriteCustomList(ctx, "add_list_item", listID, func(l *models.CustomWatchlist) bool {
		if l.Contains(item.ID) {
			return false
		}
		l.Items = append(l.Items, item)
		return true
	})
}

// RemoveFromCustomWatchlist drops the entry with id from the list. Removing an
// absent id is a no-op.
func (s *WatchlistService) RemoveFromCustomWatchlist(ctx context.Context, listID string, id int64) error {
	return s.rewriteCustomList(ctx, "remove_list_item", listID, func(l *models.CustomWatchlist) bool {
		if !l.Contains(id) {
			return false
		}
		kept := make([]models.MediaItem, 0, len(l.Items))
		for _, it := range l.Items {
			if it.ID != id {
				kept = append(kept, it)
			}
		}
		l.Items = kept
		return true
	})
}

// rewriteCustomList is the read-modify-write shared by custom list item
// mutations. edit reports whether it changed the list.
func (s *WatchlistService) rewriteCustomList(ctx context.Context, op, listID string, edit func(*models.CustomWatchlist) bool) (err error) {
	t, ok := s.g.begin()
	if !ok {
		return nil
	}
	defer func() { metrics.RecordMutation(engineWatchlist, op, err) }()

	list, err := s.lists.FindByID(ctx, t.uid, listID)
	if err != nil {
		return fmt.Errorf("read custom watchlist: %w", err)
	}
	if list == nil {
		// deleted elsewhere; stop showing it
		s.g.commit(t, func() { s.custom = removeList(s.custom, listID) })
		return fmt.Errorf("%w: %s", ErrCustomListNotFound, listID)
	}

	if edit(list) {
		if err := s.lists.Put(ctx, t.uid, *list); err != nil {
			return fmt.Errorf("write custom watchlist: %w", err)
		}
	}

	// the fetched document is authoritative either way
	stored := cloneList(*list)
	s.g.commit(t, func() {
		for i := range s.custom {
			if s.custom[i].ID == listID {
				s.custom[i] = stored
				return
			}
		}
		s.custom = append(s.custom, stored)
	})
	return nil
}

// IsInCustomWatchlist is false for unknown lists.
func (s *WatchlistService) IsInCustomWatchlist(listID string, id int64) bool {
	found := false
	s.g.read(func() {
		for _, l := range s.custom {
			if l.ID == listID {
				found = l.Contains(id)
				return
			}
		}
	})
	return found
}

// CustomWatchlists returns a copy of the custom list mirror.
func (s *WatchlistService) CustomWatchlists() []models.CustomWatchlist {
	var out []models.CustomWatchlist
	s.g.read(func() {
		out = make([]models.CustomWatchlist, 0, len(s.custom))
		for _, l := range s.custom {
			out = append(out, cloneList(l))
		}
	})
	return out
}

// CustomWatchlist returns a copy of one list from the mirror.
func (s *WatchlistService) CustomWatchlist(listID string) (models.CustomWatchlist, bool) {
	var out models.CustomWatchlist
	var ok bool
	s.g.read(func() {
		for _, l := range s.custom {
			if l.ID == listID {
				out, ok = cloneList(l), true
				return
			}
		}
	})
	return out, ok
}

func cloneList(l models.CustomWatchlist) models.CustomWatchlist {
	l.Items = append([]models.MediaItem{}, l.Items...)
	return l
}

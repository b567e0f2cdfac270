package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// WatchlistCategory is one of the four default buckets.
type WatchlistCategory string

const (
	CategoryPlanToWatch WatchlistCategory = "plan_to_watch"
	CategoryWatching    WatchlistCategory = "watching"
	CategoryCompleted   WatchlistCategory = "completed"
	CategoryDropped     WatchlistCategory = "dropped"
)

// Categories lists the default buckets in display order.
var Categories = []WatchlistCategory{
	CategoryPlanToWatch,
	CategoryWatching,
	CategoryCompleted,
	CategoryDropped,
}

var ErrInvalidCategory = errors.New("invalid watchlist category (must be plan_to_watch|watching|completed|dropped)")

func (c WatchlistCategory) Valid() bool {
	switch c {
	case CategoryPlanToWatch, CategoryWatching, CategoryCompleted, CategoryDropped:
		return true
	}
	return false
}

func ParseCategory(s string) (WatchlistCategory, error) {
	c := WatchlistCategory(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// WatchlistItem is stored at users/{uid}/watchlist/{mediaId}.
type WatchlistItem struct {
	MediaItem `bson:",inline"`

	Category WatchlistCategory `json:"category" bson:"category"`
	AddedAt  time.Time         `json:"addedAt" bson:"addedAt"`
	Notes    string            `json:"notes,omitempty" bson:"notes,omitempty"`
}

// CustomWatchlist is stored at users/{uid}/customWatchlists/{listId}.
// The id is the store-assigned document id and is not part of the document body.
type CustomWatchlist struct {
	ID        string      `json:"id" bson:"-"`
	Name      string      `json:"name" bson:"name"`
	Items     []MediaItem `json:"items" bson:"items"`
	CreatedAt time.Time   `json:"createdAt" bson:"createdAt"`
}

// Contains compares by media id, never by identity.
func (l CustomWatchlist) Contains(mediaID int64) bool {
	for _, it := range l.Items {
		if it.ID == mediaID {
			return true
		}
	}
	return false
}

// Watchlists is the presentation copy of the default-category mirror.
type Watchlists map[WatchlistCategory][]WatchlistItem

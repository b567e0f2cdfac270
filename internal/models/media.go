package models

import (
	"errors"
	"fmt"
	"strings"
)

// MediaKind is the mandatory discriminant carried by every MediaItem.
type MediaKind string

const (
	KindMovie MediaKind = "movie"
	KindTV    MediaKind = "tv"
	KindAnime MediaKind = "anime"
)

var (
	ErrInvalidKind    = errors.New("invalid media kind (must be movie|tv|anime)")
	ErrInvalidMediaID = errors.New("invalid media id")
)

// Valid reports whether k is one of the known kinds.
func (k MediaKind) Valid() bool {
	switch k {
	case KindMovie, KindTV, KindAnime:
		return true
	}
	return false
}

// ParseMediaKind normalizes and validates a kind coming from outside the core.
func ParseMediaKind(s string) (MediaKind, error) {
	k := MediaKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// MediaItem is a denormalized catalog snapshot. It is embedded by value into
// list entries so a list still renders when the catalog changes.
type MediaItem struct {
	ID          int64     `json:"id" bson:"id"`
	Kind        MediaKind `json:"kind" bson:"kind"`
	Title       string    `json:"title" bson:"title"`
	PosterPath  string    `json:"posterPath,omitempty" bson:"posterPath,omitempty"`
	Overview    string    `json:"overview,omitempty" bson:"overview,omitempty"`
	VoteAverage *float64  `json:"voteAverage,omitempty" bson:"voteAverage,omitempty"`
	Popularity  *float64  `json:"popularity,omitempty" bson:"popularity,omitempty"`
}

// Validate checks the fields required at the boundary where an item enters the core.
func (m MediaItem) Validate() error {
	if m.ID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMediaID, m.ID)
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, m.Kind)
	}
	return nil
}

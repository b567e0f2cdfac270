// Package catalog resolves media ids into the denormalized snapshots that
// watchlist and custom list entries embed.
package catalog

import (
	"context"
	"errors"

	"mediatrack/internal/models"
)

var (
	ErrNotFound    = errors.New("catalog: media not found")
	ErrUnavailable = errors.New("catalog: provider unavailable")
)

// Provider looks media up in an external catalog.
type Provider interface {
	Lookup(ctx context.Context, id int64, kind models.MediaKind) (*models.MediaItem, error)
	Search(ctx context.Context, query string) ([]models.MediaItem, error)
}

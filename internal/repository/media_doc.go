package repository

import (
	"mediatrack/internal/models"
)

// mediaDoc is a media snapshot as it may be found in the store. Older
// documents carry the catalog's own field names (media_type, name,
// poster_path, vote_average) or the first list format (mediaType).
type mediaDoc struct {
	ID          int64    `bson:"id"`
	Kind        string   `bson:"kind"`
	Title       string   `bson:"title"`
	PosterPath  string   `bson:"posterPath"`
	Overview    string   `bson:"overview"`
	VoteAverage *float64 `bson:"voteAverage"`
	Popularity  *float64 `bson:"popularity"`

	LegacyMediaType   string   `bson:"mediaType"`
	LegacyMediaTypeV0 string   `bson:"media_type"`
	LegacyName        string   `bson:"name"`
	LegacyPosterPath  string   `bson:"poster_path"`
	LegacyVoteAverage *float64 `bson:"vote_average"`
}

// normalize converts the document to the current MediaItem shape. migrated is
// true when any legacy field was used, ok is false when the document cannot
// be interpreted (no usable id or kind).
func (d mediaDoc) normalize() (item models.MediaItem, migrated, ok bool) {
	kind := d.Kind
	for _, legacy := range []string{d.LegacyMediaType, d.LegacyMediaTypeV0} {
		if kind == "" && legacy != "" {
			kind = legacy
			migrated = true
		}
	}
	k, err := models.ParseMediaKind(kind)
	if err != nil || d.ID <= 0 {
		return models.MediaItem{}, false, false
	}

	item = models.MediaItem{
		ID:          d.ID,
		Kind:        k,
		Title:       d.Title,
		PosterPath:  d.PosterPath,
		Overview:    d.Overview,
		VoteAverage: d.VoteAverage,
		Popularity:  d.Popularity,
	}
	if item.Title == "" && d.LegacyName != "" {
		item.Title = d.LegacyName
		migrated = true
	}
	if item.PosterPath == "" && d.LegacyPosterPath != "" {
		item.PosterPath = d.LegacyPosterPath
		migrated = true
	}
	if item.VoteAverage == nil && d.LegacyVoteAverage != nil {
		item.VoteAverage = d.LegacyVoteAverage
		migrated = true
	}
	// any leftover legacy key means the stored document needs rewriting
	if d.LegacyMediaType != "" || d.LegacyMediaTypeV0 != "" || d.LegacyName != "" ||
		d.LegacyPosterPath != "" || d.LegacyVoteAverage != nil {
		migrated = true
	}
	return item, migrated, true
}

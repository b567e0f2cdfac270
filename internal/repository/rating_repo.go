package repository

import (
	"context"
	"errors"

	"mediatrack/internal/models"
	"mediatrack/internal/store"
)

// RatingRepository keeps the flat ratings map on users/{uid}. Each rating is a
// targeted field update so writes to different keys never clobber each other.
type RatingRepository struct {
	st store.Store
}

func NewRatingRepository(st store.Store) *RatingRepository {
	return &RatingRepository{st: st}
}

func userPath(uid string) string {
	return store.Join("users", uid)
}

func ratingField(key models.RatingKey) string {
	return "ratings." + string(key)
}

// GetByUser returns the ratings map and whether the user document exists.
func (r *RatingRepository) GetByUser(ctx context.Context, uid string) (map[string]int, bool, error) {
	snap, err := r.st.Get(ctx, userPath(uid))
	if errors.Is(err, store.ErrNotFound) {
		return map[string]int{}, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var doc struct {
		Ratings map[string]any `bson:"ratings"`
	}
	if err := store.Decode(snap.Data, &doc); err != nil {
		return nil, true, err
	}

	out := make(map[string]int, len(doc.Ratings))
	for k, v := range doc.Ratings {
		if n, ok := store.AsInt64(v); ok {
			out[k] = int(n)
		}
	}
	return sanitize(out), true, nil
}

// sanitize drops entries that are not valid ratings under valid keys.
func sanitize(m map[string]int) map[string]int {
	for k, v := range m {
		if _, err := models.ParseRatingKey(k); err != nil {
			delete(m, k)
			continue
		}
		if models.ValidateRating(v) != nil {
			delete(m, k)
		}
	}
	return m
}

// Init creates the user document with an empty ratings map.
func (r *RatingRepository) Init(ctx context.Context, uid string) error {
	return r.st.Set(ctx, userPath(uid), store.Data{"ratings": store.Data{}})
}

// Upsert writes a single rating field, creating the document when missing.
func (r *RatingRepository) Upsert(ctx context.Context, uid string, key models.RatingKey, value int) error {
	err := r.st.Update(ctx, userPath(uid), store.Data{ratingField(key): value})
	if errors.Is(err, store.ErrNotFound) {
		return r.st.Set(ctx, userPath(uid), store.Data{
			"ratings": store.Data{string(key): value},
		})
	}
	return err
}

// Delete removes a single rating field. A missing document is not an error.
func (r *RatingRepository) Delete(ctx context.Context, uid string, key models.RatingKey) error {
	err := r.st.Update(ctx, userPath(uid), store.Data{ratingField(key): store.DeleteField()})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

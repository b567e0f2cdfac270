package service

import (
	"context"
	"fmt"

	"mediatrack/internal/metrics"
	"mediatrack/internal/models"
	"mediatrack/internal/repository"
)

const engineRatings = "ratings"

// RatingService mirrors the user's flat rating map.
type RatingService struct {
	g       guard
	ratings *repository.RatingRepository

	// guarded by g.mu
	mirror map[string]int
}

func NewRatingService(r *repository.RatingRepository) *RatingService {
	return &RatingService{
		g:       guard{engine: engineRatings},
		ratings: r,
		mirror:  map[string]int{},
	}
}

func (s *RatingService) clearMirror() {
	s.mirror = map[string]int{}
}

// Load binds the engine to uid. A user without a ratings document gets an
// empty one created remotely.
func (s *RatingService) Load(ctx context.Context, uid string) error {
	return s.load(ctx, s.g.bind(uid, s.clearMirror))
}

func (s *RatingService) load(ctx context.Context, t ticket) (err error) {
	defer func() { metrics.RecordLoad(engineRatings, err) }()

	uid := t.uid
	stored, exists, err := s.ratings.GetByUser(ctx, uid)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	if !exists {
		if err := s.ratings.Init(ctx, uid); err != nil {
			return fmt.Errorf("init ratings: %w", err)
		}
	}

	if !s.g.commit(t, func() { s.mirror = stored }) {
		return ErrStaleSession
	}
	return nil
}

func (s *RatingService) Clear() {
	s.g.reset(s.clearMirror)
}

// RateMedia stores value under key. key is a media id or an episode key
// ({mediaId}_s{season}e{episode}).
func (s *RatingService) RateMedia(ctx context.Context, key string, value int) (err error) {
	k, err := models.ParseRatingKey(key)
	if err != nil {
		return err
	}
	if err := models.ValidateRating(value); err != nil {
		return err
	}
	t, ok := s.g.begin()
	if !ok {
		return nil
	}
	defer func() { metrics.RecordMutation(engineRatings, "rate", err) }()

	if err := s.ratings.Upsert(ctx, t.uid, k, value); err != nil {
		return fmt.Errorf("rate %s: %w", k, err)
	}
	s.g.commit(t, func() { s.mirror[string(k)] = value })
	return nil
}

// RemoveRating deletes the rating under key; unrated keys are a no-op.
func (s *RatingService) RemoveRating(ctx context.Context, key string) (err error) {
	k, err := models.ParseRatingKey(key)
	if err != nil {
		return err
	}
	t, ok := s.g.begin()
	if !ok {
		return nil
	}
	defer func() { metrics.RecordMutation(engineRatings, "unrate", err) }()

	if err := s.ratings.Delete(ctx, t.uid, k); err != nil {
		return fmt.Errorf("remove rating %s: %w", k, err)
	}
	s.g.commit(t, func() { delete(s.mirror, string(k)) })
	return nil
}

// GetRating returns models.Unrated, false for keys without a rating.
func (s *RatingService) GetRating(key string) (int, bool) {
	v, ok := models.Unrated, false
	s.g.read(func() {
		if r, found := s.mirror[key]; found {
			v, ok = r, true
		}
	})
	return v, ok
}

// Ratings returns a copy of the mirror.
func (s *RatingService) Ratings() map[string]int {
	out := map[string]int{}
	s.g.read(func() {
		for k, v := range s.mirror {
			out[k] = v
		}
	})
	return out
}

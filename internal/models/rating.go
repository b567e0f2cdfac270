package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

const (
	MinRating = 1
	MaxRating = 5

	// Unrated is returned for keys with no rating. It is outside [MinRating, MaxRating].
	Unrated = -1
)

var (
	ErrInvalidRating    = errors.New("rating must be an integer between 1 and 5")
	ErrInvalidRatingKey = errors.New("invalid rating key (expected {mediaId} or {mediaId}_s{season}e{episode})")
)

// RatingKey is a plain media id ("603") or an episode key ("1399_s1e2").
type RatingKey string

var ratingKeyRe = regexp.MustCompile(`^([1-9][0-9]*)(?:_s([0-9]+)e([0-9]+))?$`)

func MediaRatingKey(mediaID int64) RatingKey {
	return RatingKey(strconv.FormatInt(mediaID, 10))
}

func EpisodeRatingKey(mediaID int64, season, episode int) RatingKey {
	return RatingKey(fmt.Sprintf("%d_s%de%d", mediaID, season, episode))
}

// ParseRatingKey validates s. Keys end up as field names in the ratings map,
// so anything outside the two shapes is rejected.
func ParseRatingKey(s string) (RatingKey, error) {
	if !ratingKeyRe.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRatingKey, s)
	}
	return RatingKey(s), nil
}

// MediaID returns the media id part of the key.
func (k RatingKey) MediaID() int64 {
	m := ratingKeyRe.FindStringSubmatch(string(k))
	if m == nil {
		return 0
	}
	id, _ := strconv.ParseInt(m[1], 10, 64)
	return id
}

// Episode returns season and episode for episode keys.
func (k RatingKey) Episode() (season, episode int, ok bool) {
	m := ratingKeyRe.FindStringSubmatch(string(k))
	if m == nil || m[2] == "" {
		return 0, 0, false
	}
	season, _ = strconv.Atoi(m[2])
	episode, _ = strconv.Atoi(m[3])
	return season, episode, true
}

func ValidateRating(v int) error {
	if v < MinRating || v > MaxRating {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, v)
	}
	return nil
}

// RatingsDoc is the ratings part of users/{uid}.
type RatingsDoc struct {
	Ratings map[string]int `json:"ratings" bson:"ratings"`
}

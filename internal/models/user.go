package models

import "time"

type ProfileVisibility string

const (
	VisibilityPublic  ProfileVisibility = "public"
	VisibilityPrivate ProfileVisibility = "private"
	VisibilityFriends ProfileVisibility = "friends"
)

func (v ProfileVisibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityFriends:
		return true
	}
	return false
}

type PrivacySettings struct {
	ProfileVisibility ProfileVisibility `json:"profileVisibility" bson:"profileVisibility"`
	ShowWatchlist     bool              `json:"showWatchlist" bson:"showWatchlist"`
	ShowRatings       bool              `json:"showRatings" bson:"showRatings"`
	ShowReviews       bool              `json:"showReviews" bson:"showReviews"`
	ShowFollowers     bool              `json:"showFollowers" bson:"showFollowers"`
}

// DefaultPrivacySettings: public profile, everything shown.
func DefaultPrivacySettings() PrivacySettings {
	return PrivacySettings{
		ProfileVisibility: VisibilityPublic,
		ShowWatchlist:     true,
		ShowRatings:       true,
		ShowReviews:       true,
		ShowFollowers:     true,
	}
}

type ProfileStats struct {
	TotalMoviesWatched  int     `json:"totalMoviesWatched" bson:"totalMoviesWatched"`
	TotalTvShowsWatched int     `json:"totalTvShowsWatched" bson:"totalTvShowsWatched"`
	AverageRating       float64 `json:"averageRating" bson:"averageRating"`
	TotalReviews        int     `json:"totalReviews" bson:"totalReviews"`
}

// UserProfile is stored at userProfiles/{uid}. Followers and Following are the
// two halves of the follow edges and are always written together.
type UserProfile struct {
	UID               string          `json:"uid" bson:"uid"`
	Username          string          `json:"username" bson:"username"`
	DisplayName       string          `json:"displayName" bson:"displayName"`
	PhotoURL          string          `json:"photoURL,omitempty" bson:"photoURL,omitempty"`
	Bio               string          `json:"bio" bson:"bio"`
	FavoriteGenres    []string        `json:"favoriteGenres" bson:"favoriteGenres"`
	FavoriteDirectors []string        `json:"favoriteDirectors" bson:"favoriteDirectors"`
	JoinDate          time.Time       `json:"joinDate" bson:"joinDate"`
	PrivacySettings   PrivacySettings `json:"privacySettings" bson:"privacySettings"`
	Followers         []string        `json:"followers" bson:"followers"`
	Following         []string        `json:"following" bson:"following"`
	Stats             ProfileStats    `json:"stats" bson:"stats"`
}

// IsFollowing reports whether uid is in the following set.
func (p *UserProfile) IsFollowing(uid string) bool {
	for _, f := range p.Following {
		if f == uid {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with p.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.FavoriteGenres = append([]string{}, p.FavoriteGenres...)
	c.FavoriteDirectors = append([]string{}, p.FavoriteDirectors...)
	c.Followers = append([]string{}, p.Followers...)
	c.Following = append([]string{}, p.Following...)
	return &c
}

type SharedInterests struct {
	Genres    []string `json:"genres"`
	Directors []string `json:"directors"`
	Movies    int      `json:"movies"`
}

// UserSearchResult is the read-time view used by search and suggestions.
type UserSearchResult struct {
	UID             string          `json:"uid"`
	Username        string          `json:"username"`
	DisplayName     string          `json:"displayName"`
	PhotoURL        string          `json:"photoURL,omitempty"`
	Bio             string          `json:"bio"`
	SharedInterests SharedInterests `json:"sharedInterests"`
	MutualFollowers int             `json:"mutualFollowers"`
}

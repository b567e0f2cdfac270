package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"mediatrack/internal/logging"
	"mediatrack/internal/models"
	"mediatrack/internal/store"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const profilesCollection = "userProfiles"

// Fields the profile queries filter and sort on; the Mongo store indexes them.
const (
	FieldVisibility    = "privacySettings.profileVisibility"
	FieldMoviesWatched = "stats.totalMoviesWatched"
)

type ProfileRepository struct {
	st  store.Store
	log *zerolog.Logger
}

func NewProfileRepository(st store.Store) *ProfileRepository {
	return &ProfileRepository{st: st, log: logging.Component("profile_repo")}
}

func profilePath(uid string) string {
	return store.Join(profilesCollection, uid)
}

// profileDoc accepts what older clients wrote: joinDate as an ISO string,
// missing privacy flags, null follower arrays.
type profileDoc struct {
	UID               string   `bson:"uid"`
	Username          string   `bson:"username"`
	DisplayName       string   `bson:"displayName"`
	PhotoURL          string   `bson:"photoURL"`
	Bio               string   `bson:"bio"`
	FavoriteGenres    []string `bson:"favoriteGenres"`
	FavoriteDirectors []string `bson:"favoriteDirectors"`
	JoinDate          any      `bson:"joinDate"`
	PrivacySettings   struct {
		ProfileVisibility string `bson:"profileVisibility"`
		ShowWatchlist     *bool  `bson:"showWatchlist"`
		ShowRatings       *bool  `bson:"showRatings"`
		ShowReviews       *bool  `bson:"showReviews"`
		ShowFollowers     *bool  `bson:"showFollowers"`
	} `bson:"privacySettings"`
	Followers []string            `bson:"followers"`
	Following []string            `bson:"following"`
	Stats     models.ProfileStats `bson:"stats"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func parseJoinDate(v any) time.Time {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

func (d profileDoc) toModel(uid string) *models.UserProfile {
	def := models.DefaultPrivacySettings()
	ps := d.PrivacySettings
	vis := models.ProfileVisibility(ps.ProfileVisibility)
	if !vis.Valid() {
		vis = def.ProfileVisibility
	}

	p := &models.UserProfile{
		UID:               d.UID,
		Username:          strings.ToLower(d.Username),
		DisplayName:       d.DisplayName,
		PhotoURL:          d.PhotoURL,
		Bio:               d.Bio,
		FavoriteGenres:    d.FavoriteGenres,
		FavoriteDirectors: d.FavoriteDirectors,
		JoinDate:          parseJoinDate(d.JoinDate),
		PrivacySettings: models.PrivacySettings{
			ProfileVisibility: vis,
			ShowWatchlist:     boolOr(ps.ShowWatchlist, def.ShowWatchlist),
			ShowRatings:       boolOr(ps.ShowRatings, def.ShowRatings),
			ShowReviews:       boolOr(ps.ShowReviews, def.ShowReviews),
			ShowFollowers:     boolOr(ps.ShowFollowers, def.ShowFollowers),
		},
		Followers: d.Followers,
		Following: d.Following,
		Stats:     d.Stats,
	}
	if p.UID == "" {
		p.UID = uid
	}
	if p.FavoriteGenres == nil {
		p.FavoriteGenres = []string{}
	}
	if p.FavoriteDirectors == nil {
		p.FavoriteDirectors = []string{}
	}
	if p.Followers == nil {
		p.Followers = []string{}
	}
	if p.Following == nil {
		p.Following = []string{}
	}
	return p
}

// missingEdges lists the edge arrays that are null or absent. Array
// transforms on a null field fail in Mongo, so these are written back as [].
func (d profileDoc) missingEdges() store.Data {
	fix := store.Data{}
	if d.Followers == nil {
		fix["followers"] = []string{}
	}
	if d.Following == nil {
		fix["following"] = []string{}
	}
	return fix
}

func decodeProfile(snap *store.Snapshot) (*models.UserProfile, profileDoc, error) {
	var d profileDoc
	if err := store.Decode(snap.Data, &d); err != nil {
		return nil, d, err
	}
	return d.toModel(snap.ID), d, nil
}

// FindByID returns nil, nil when the profile does not exist. Null edge arrays
// left by older clients are normalized in the store before returning.
func (r *ProfileRepository) FindByID(ctx context.Context, uid string) (*models.UserProfile, error) {
	snap, err := r.st.Get(ctx, profilePath(uid))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p, d, err := decodeProfile(snap)
	if err != nil {
		return nil, err
	}
	if fix := d.missingEdges(); len(fix) > 0 {
		if err := r.UpdateByID(ctx, uid, fix); err != nil {
			// the decoded profile is still usable; the next read retries
			r.log.Warn().Err(err).Str("uid", uid).Msg("write-back of edge arrays failed")
		}
	}
	return p, nil
}

// Insert writes the full profile document.
func (r *ProfileRepository) Insert(ctx context.Context, p *models.UserProfile) error {
	data, err := store.Encode(p)
	if err != nil {
		return err
	}
	return r.st.Set(ctx, profilePath(p.UID), data)
}

// UpdateByID merges fields (dotted paths allowed) into the profile.
func (r *ProfileRepository) UpdateByID(ctx context.Context, uid string, fields store.Data) error {
	err := r.st.Update(ctx, profilePath(uid), fields)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *ProfileRepository) AddFollowing(ctx context.Context, uid, target string) error {
	return r.UpdateByID(ctx, uid, store.Data{"following": store.ArrayUnion(target)})
}

func (r *ProfileRepository) RemoveFollowing(ctx context.Context, uid, target string) error {
	return r.UpdateByID(ctx, uid, store.Data{"following": store.ArrayRemove(target)})
}

func (r *ProfileRepository) AddFollower(ctx context.Context, uid, follower string) error {
	return r.UpdateByID(ctx, uid, store.Data{"followers": store.ArrayUnion(follower)})
}

func (r *ProfileRepository) RemoveFollower(ctx context.Context, uid, follower string) error {
	return r.UpdateByID(ctx, uid, store.Data{"followers": store.ArrayRemove(follower)})
}

// ListPublic returns up to limit public profiles in store order.
func (r *ProfileRepository) ListPublic(ctx context.Context, limit int) ([]*models.UserProfile, error) {
	return r.query(ctx, store.Query{
		Collection: profilesCollection,
		Where:      []store.Filter{{Field: FieldVisibility, Value: string(models.VisibilityPublic)}},
		Limit:      limit,
	})
}

// TopPublicByWatched returns up to limit public profiles, most watched movies first.
func (r *ProfileRepository) TopPublicByWatched(ctx context.Context, limit int) ([]*models.UserProfile, error) {
	return r.query(ctx, store.Query{
		Collection: profilesCollection,
		Where:      []store.Filter{{Field: FieldVisibility, Value: string(models.VisibilityPublic)}},
		OrderBy:    FieldMoviesWatched,
		Descending: true,
		Limit:      limit,
	})
}

func (r *ProfileRepository) query(ctx context.Context, q store.Query) ([]*models.UserProfile, error) {
	snaps, err := r.st.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]*models.UserProfile, 0, len(snaps))
	for _, snap := range snaps {
		p, _, err := decodeProfile(snap)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediatrack/internal/identity"
	"mediatrack/internal/logging"
	"mediatrack/internal/metrics"
	"mediatrack/internal/models"
	"mediatrack/internal/repository"
	"mediatrack/internal/store"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const engineSocial = "social"

// Candidate and result caps for search and suggestions. Mutual follower
// enrichment costs one read per result, so these are hard limits.
const (
	MaxCandidates     = 20
	MaxUserResults    = 10
	enrichParallelism = 4
)

var (
	ErrProfileNotFound   = errors.New("user profile not found")
	ErrUsernameReadOnly  = errors.New("username is reserved at registration and cannot be changed")
	ErrInvalidVisibility = errors.New("invalid profile visibility (must be public|private|friends)")
)

// PartialEdgeError reports a follow or unfollow whose first write (own
// following set) succeeded and whose second write (target's followers set)
// failed. The graph is asymmetric until ReconcileFollowEdges or a retry.
type PartialEdgeError struct {
	Op     string
	Target string
	Err    error
}

func (e *PartialEdgeError) Error() string {
	return fmt.Sprintf("%s %s: own following updated but target followers write failed: %v", e.Op, e.Target, e.Err)
}

func (e *PartialEdgeError) Unwrap() error { return e.Err }

// ProfileUpdate carries the profile fields to change; nil fields are left alone.
// The username is not part of it: uniqueness is enforced by the registration
// flow through usernames/{lower}, which this core never writes.
type ProfileUpdate struct {
	DisplayName       *string
	PhotoURL          *string
	Bio               *string
	FavoriteGenres    *[]string
	FavoriteDirectors *[]string
}

// PrivacyUpdate merges at the sub-field level.
type PrivacyUpdate struct {
	ProfileVisibility *models.ProfileVisibility
	ShowWatchlist     *bool
	ShowRatings       *bool
	ShowReviews       *bool
	ShowFollowers     *bool
}

// SocialService mirrors the signed-in user's own profile. Other profiles are
// fetched on demand and never cached.
type SocialService struct {
	g        guard
	profiles *repository.ProfileRepository
	log      *zerolog.Logger
	now      func() time.Time

	// guarded by g.mu
	own *models.UserProfile
}

func NewSocialService(p *repository.ProfileRepository) *SocialService {
	return &SocialService{
		g:        guard{engine: engineSocial},
		profiles: p,
		log:      logging.Component(engineSocial),
		now:      time.Now,
	}
}

func (s *SocialService) clearMirror() {
	s.own = nil
}

func (s *SocialService) Clear() {
	s.g.reset(s.clearMirror)
}

// LoadOwnProfile binds the engine to ident and mirrors its profile, creating
// a default one when none exists.
func (s *SocialService) LoadOwnProfile(ctx context.Context, ident identity.Identity) error {
	return s.loadOwn(ctx, s.g.bind(ident.UID, s.clearMirror), ident)
}

func (s *SocialService) loadOwn(ctx context.Context, t ticket, ident identity.Identity) (err error) {
	defer func() { metrics.RecordLoad(engineSocial, err) }()

	p, err := s.profiles.FindByID(ctx, ident.UID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if p == nil {
		if ident.HasProfile {
			s.log.Warn().Str("uid", ident.UID).Msg("identity reports a profile but none is stored, creating default")
		}
		p = s.defaultProfile(ident)
		if err := s.profiles.Insert(ctx, p); err != nil {
			return fmt.Errorf("create default profile: %w", err)
		}
	}

	if !s.g.commit(t, func() { s.own = p }) {
		return ErrStaleSession
	}
	return nil
}

func (s *SocialService) defaultProfile(ident identity.Identity) *models.UserProfile {
	return &models.UserProfile{
		UID:               ident.UID,
		Username:          ident.DefaultUsername(),
		DisplayName:       ident.DisplayName,
		PhotoURL:          ident.PhotoURL,
		FavoriteGenres:    []string{},
		FavoriteDirectors: []string{},
		JoinDate:          s.now().UTC().Truncate(time.Millisecond),
		PrivacySettings:   models.DefaultPrivacySettings(),
		Followers:         []string{},
		Following:         []string{},
	}
}

// Profile returns a copy of the own profile mirror, or nil.
func (s *SocialService) Profile() *models.UserProfile {
	var p *models.UserProfile
	s.g.read(func() { p = s.own.Clone() })
	return p
}

// UpdateProfile merge-writes the non-nil fields.
func (s *SocialService) UpdateProfile(ctx context.Context, u ProfileUpdate) (err error) {
	fields := store.Data{}
	if u.DisplayName != nil {
		fields["displayName"] = *u.DisplayName
	}
	if u.PhotoURL != nil {
		fields["photoURL"] = *u.PhotoURL
	}
	if u.Bio != nil {
		fields["bio"] = *u.Bio
	}
	if u.FavoriteGenres != nil {
		fields["favoriteGenres"] = nonNil(*u.FavoriteGenres)
	}
	if u.FavoriteDirectors != nil {
		fields["favoriteDirectors"] = nonNil(*u.FavoriteDirectors)
	}
	if len(fields) == 0 {
		return nil
	}

	t, ok := s.g.begin()
	if !ok {
		return nil
	}
	defer func() { metrics.RecordMutation(engineSocial, "update_profile", err) }()

	if err := s.profiles.UpdateByID(ctx, t.uid, fields); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	s.g.commit(t, func() {
		if s.own == nil {
			return
		}
		if u.DisplayName != nil {
			s.own.DisplayName = *u.DisplayName
		}
		if u.PhotoURL != nil {
			s.own.PhotoURL = *u.PhotoURL
		}
		if u.Bio != nil {
			s.own.Bio = *u.Bio
		}
		if u.FavoriteGenres != nil {
			s.own.FavoriteGenres = nonNil(*u.FavoriteGenres)
		}
		if u.FavoriteDirectors != nil {
			s.own.FavoriteDirectors = nonNil(*u.FavoriteDirectors)
		}
	})
	return nil
}

// UpdatePrivacySettings touches only the named sub-fields.
func (s *SocialService) UpdatePrivacySettings(ctx context.Context, u PrivacyUpdate) (err error) {
	fields := store.Data{}
	if u.ProfileVisibility != nil {
		if !u.ProfileVisibility.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidVisibility, *u.ProfileVisibility)
		}
		fields["privacySettings.profileVisibility"] = string(*u.ProfileVisibility)
	}
	if u.ShowWatchlist != nil {
		fields["privacySettings.showWatchlist"] = *u.ShowWatchlist
	}
	if u.ShowRatings != nil {
		fields["privacySettings.showRatings"] = *u.ShowRatings
	}
	if u.ShowReviews != nil {
		fields["privacySettings.showReviews"] = *u.ShowReviews
	}
	if u.ShowFollowers != nil {
		fields["privacySettings.showFollowers"] = *u.ShowFollowers
	}
	if len(fields) == 0 {
		return nil
	}

	t, ok := s.g.begin()
	if !ok {
		return nil
	}
	defer func() { metrics.RecordMutation(engineSocial, "update_privacy", err) }()

	if err := s.profiles.UpdateByID(ctx, t.uid, fields); err != nil {
		return fmt.Errorf("update privacy settings: %w", err)
	}
	s.g.commit(t, func() {
		if s.own == nil {
			return
		}
		ps := &s.own.PrivacySettings
		if u.ProfileVisibility != nil {
			ps.ProfileVisibility = *u.ProfileVisibility
		}
		if u.ShowWatchlist != nil {
			ps.ShowWatchlist = *u.ShowWatchlist
		}
		if u.ShowRatings != nil {
			ps.ShowRatings = *u.ShowRatings
		}
		if u.ShowReviews != nil {
			ps.ShowReviews = *u.ShowReviews
		}
		if u.ShowFollowers != nil {
			ps.ShowFollowers = *u.ShowFollowers
		}
	})
	return nil
}

// FollowUser writes target into own following, then own uid into target's
// followers. The two writes are independent; see PartialEdgeError.
func (s *SocialService) FollowUser(ctx context.Context, target string) error {
	return s.writeEdge(ctx, "follow", target,
		s.profiles.AddFollowing, s.profiles.AddFollower,
		func(p *models.UserProfile) {
			if !p.IsFollowing(target) {
				p.Following = append(p.Following, target)
			}
		})
}

// UnfollowUser is the inverse of FollowUser with the same write order.
func (s *SocialService) UnfollowUser(ctx context.Context, target string) error {
	return s.writeEdge(ctx, "unfollow", target,
		s.profiles.RemoveFollowing, s.profiles.RemoveFollower,
		func(p *models.UserProfile) {
			p.Following = removeString(p.Following, target)
		})
}

type edgeWrite func(ctx context.Context, uid, other string) error

func (s *SocialService) writeEdge(ctx context.Context, op, target string, own, theirs edgeWrite, mirror func(*models.UserProfile)) (err error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return ErrProfileNotFound
	}
	t, ok := s.g.begin()
	if !ok || target == t.uid {
		return nil
	}
	defer func() { metrics.RecordMutation(engineSocial, op, err) }()

	if op == "follow" {
		tp, err := s.profiles.FindByID(ctx, target)
		if err != nil {
			return fmt.Errorf("%s %s: %w", op, target, err)
		}
		if tp == nil {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, target)
		}
	}

	if err := own(ctx, t.uid, target); err != nil {
		return fmt.Errorf("%s %s: %w", op, target, err)
	}
	apply := func() {
		if s.own != nil {
			mirror(s.own)
		}
	}

	err = theirs(ctx, target, t.uid)
	if op == "unfollow" && errors.Is(err, repository.ErrNotFound) {
		// target profile is gone, nothing left to unlink
		err = nil
	}
	if err != nil {
		// the first write is in the store, so the mirror reflects it
		s.g.commit(t, apply)
		metrics.PartialEdgeWrites.WithLabelValues(op).Inc()
		s.log.Error().Err(err).Str("uid", t.uid).Str("target", target).Str("op", op).
			Msg("follow edge left asymmetric")
		return &PartialEdgeError{Op: op, Target: target, Err: err}
	}
	s.g.commit(t, apply)
	return nil
}

// ReconcileFollowEdges re-applies the caller's uid to the followers set of
// every followed user. It repairs edges left asymmetric by a failed follow and
// returns how many targets were written.
func (s *SocialService) ReconcileFollowEdges(ctx context.Context) (int, error) {
	t, ok := s.g.begin()
	if !ok {
		return 0, nil
	}
	own := s.Profile()
	if own == nil {
		return 0, nil
	}

	repaired := 0
	var errs []error
	for _, target := range own.Following {
		tp, err := s.profiles.FindByID(ctx, target)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", target, err))
			continue
		}
		if tp == nil || containsString(tp.Followers, t.uid) {
			continue
		}
		if err := s.profiles.AddFollower(ctx, target, t.uid); err != nil {
			errs = append(errs, fmt.Errorf("repair %s: %w", target, err))
			continue
		}
		repaired++
	}
	if repaired > 0 {
		s.log.Info().Str("uid", t.uid).Int("repaired", repaired).Msg("follow edges reconciled")
	}
	return repaired, errors.Join(errs...)
}

// GetUserProfile returns nil, nil for unknown users.
func (s *SocialService) GetUserProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	return s.profiles.FindByID(ctx, uid)
}

// GetFollowers resolves uid's followers into profiles, skipping ids whose
// profile no longer exists.
func (s *SocialService) GetFollowers(ctx context.Context, uid string) ([]*models.UserProfile, error) {
	p, err := s.profiles.FindByID(ctx, uid)
	if err != nil || p == nil {
		return []*models.UserProfile{}, err
	}
	return s.resolve(ctx, p.Followers)
}

func (s *SocialService) GetFollowing(ctx context.Context, uid string) ([]*models.UserProfile, error) {
	p, err := s.profiles.FindByID(ctx, uid)
	if err != nil || p == nil {
		return []*models.UserProfile{}, err
	}
	return s.resolve(ctx, p.Following)
}

func (s *SocialService) resolve(ctx context.Context, ids []string) ([]*models.UserProfile, error) {
	out := make([]*models.UserProfile, 0, len(ids))
	for _, id := range ids {
		p, err := s.profiles.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// SearchUsers matches query case-insensitively against username and display
// name among a bounded set of public profiles. Results are in candidate
// order, not ranked.
func (s *SocialService) SearchUsers(ctx context.Context, query string) ([]models.UserSearchResult, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []models.UserSearchResult{}, nil
	}
	t, ok := s.g.begin()
	if !ok {
		return []models.UserSearchResult{}, nil
	}
	// self may be nil when the own profile failed to load
	self := s.Profile()

	candidates, err := s.profiles.ListPublic(ctx, MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	var matched []*models.UserProfile
	for _, p := range candidates {
		if p.UID == t.uid {
			continue
		}
		if strings.Contains(strings.ToLower(p.Username), q) || strings.Contains(strings.ToLower(p.DisplayName), q) {
			matched = append(matched, p)
			if len(matched) >= MaxUserResults {
				break
			}
		}
	}
	return s.enrich(ctx, self, matched)
}

// GetSuggestedUsers lists public profiles by watched-movie count, excluding
// the caller and users already followed.
func (s *SocialService) GetSuggestedUsers(ctx context.Context) ([]models.UserSearchResult, error) {
	t, ok := s.g.begin()
	self := s.Profile()
	if !ok || self == nil {
		return []models.UserSearchResult{}, nil
	}

	candidates, err := s.profiles.TopPublicByWatched(ctx, MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("suggested users: %w", err)
	}

	var picked []*models.UserProfile
	for _, p := range candidates {
		if p.UID == t.uid || self.IsFollowing(p.UID) {
			continue
		}
		picked = append(picked, p)
		if len(picked) >= MaxUserResults {
			break
		}
	}
	return s.enrich(ctx, self, picked)
}

// enrich fetches each candidate again and counts followers shared with self.
// Candidates that disappeared in between keep a zero count.
func (s *SocialService) enrich(ctx context.Context, self *models.UserProfile, profiles []*models.UserProfile) ([]models.UserSearchResult, error) {
	out := make([]models.UserSearchResult, len(profiles))
	for i, p := range profiles {
		out[i] = toSearchResult(p)
	}
	if self == nil || len(self.Followers) == 0 {
		return out, nil
	}

	mine := make(map[string]struct{}, len(self.Followers))
	for _, f := range self.Followers {
		mine[f] = struct{}{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichParallelism)
	for i := range profiles {
		i := i
		g.Go(func() error {
			fresh, err := s.profiles.FindByID(gctx, profiles[i].UID)
			if err != nil {
				return err
			}
			if fresh == nil {
				return nil
			}
			n := 0
			for _, f := range fresh.Followers {
				if _, ok := mine[f]; ok {
					n++
				}
			}
			out[i].MutualFollowers = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("mutual followers: %w", err)
	}
	return out, nil
}

func toSearchResult(p *models.UserProfile) models.UserSearchResult {
	return models.UserSearchResult{
		UID:         p.UID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
		Bio:         p.Bio,
		SharedInterests: models.SharedInterests{
			Genres:    nonNil(p.FavoriteGenres),
			Directors: nonNil(p.FavoriteDirectors),
			Movies:    p.Stats.TotalMoviesWatched,
		},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string{}, s...)
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func removeString(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

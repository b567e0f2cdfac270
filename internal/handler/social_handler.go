package handler

import (
	"net/http"
	"strings"

	"mediatrack/internal/models"
	"mediatrack/internal/service"

	"github.com/go-chi/chi/v5"
)

type SocialHandler struct{}

func NewSocialHandler() *SocialHandler { return &SocialHandler{} }

type profileRequest struct {
	// accepted only when it echoes the current username
	Username          *string   `json:"username"`
	DisplayName       *string   `json:"displayName" validate:"omitempty,max=100"`
	PhotoURL          *string   `json:"photoURL" validate:"omitempty,url"`
	Bio               *string   `json:"bio" validate:"omitempty,max=500"`
	FavoriteGenres    *[]string `json:"favoriteGenres" validate:"omitempty,max=50"`
	FavoriteDirectors *[]string `json:"favoriteDirectors" validate:"omitempty,max=50"`
}

type privacyRequest struct {
	ProfileVisibility *string `json:"profileVisibility" validate:"omitempty,oneof=public private friends"`
	ShowWatchlist     *bool   `json:"showWatchlist"`
	ShowRatings       *bool   `json:"showRatings"`
	ShowReviews       *bool   `json:"showReviews"`
	ShowFollowers     *bool   `json:"showFollowers"`
}

type reconcileResponse struct {
	Repaired int `json:"repaired"`
}

func (h *SocialHandler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	p := SessionFromContext(r.Context()).Social.Profile()
	if p == nil {
		writeError(w, r, service.ErrProfileNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *SocialHandler) PatchMyProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	social := SessionFromContext(r.Context()).Social
	if req.Username != nil {
		own := social.Profile()
		if own == nil || !strings.EqualFold(strings.TrimSpace(*req.Username), own.Username) {
			writeError(w, r, service.ErrUsernameReadOnly)
			return
		}
	}
	err := social.UpdateProfile(r.Context(), service.ProfileUpdate{
		DisplayName:       req.DisplayName,
		PhotoURL:          req.PhotoURL,
		Bio:               req.Bio,
		FavoriteGenres:    req.FavoriteGenres,
		FavoriteDirectors: req.FavoriteDirectors,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, social.Profile())
}

func (h *SocialHandler) PatchMyPrivacy(w http.ResponseWriter, r *http.Request) {
	var req privacyRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u := service.PrivacyUpdate{
		ShowWatchlist: req.ShowWatchlist,
		ShowRatings:   req.ShowRatings,
		ShowReviews:   req.ShowReviews,
		ShowFollowers: req.ShowFollowers,
	}
	if req.ProfileVisibility != nil {
		v := models.ProfileVisibility(*req.ProfileVisibility)
		u.ProfileVisibility = &v
	}
	social := SessionFromContext(r.Context()).Social
	if err := social.UpdatePrivacySettings(r.Context(), u); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, social.Profile())
}

func (h *SocialHandler) Follow(w http.ResponseWriter, r *http.Request) {
	if err := SessionFromContext(r.Context()).Social.FollowUser(r.Context(), chi.URLParam(r, "uid")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SocialHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	if err := SessionFromContext(r.Context()).Social.UnfollowUser(r.Context(), chi.URLParam(r, "uid")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SocialHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	n, err := SessionFromContext(r.Context()).Social.ReconcileFollowEdges(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reconcileResponse{Repaired: n})
}

func (h *SocialHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	res, err := SessionFromContext(r.Context()).Social.SearchUsers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SocialHandler) SuggestedUsers(w http.ResponseWriter, r *http.Request) {
	res, err := SessionFromContext(r.Context()).Social.GetSuggestedUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SocialHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	p, err := SessionFromContext(r.Context()).Social.GetUserProfile(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p == nil {
		writeError(w, r, service.ErrProfileNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *SocialHandler) GetFollowers(w http.ResponseWriter, r *http.Request) {
	list, err := SessionFromContext(r.Context()).Social.GetFollowers(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *SocialHandler) GetFollowing(w http.ResponseWriter, r *http.Request) {
	list, err := SessionFromContext(r.Context()).Social.GetFollowing(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type RatingHandler struct{}

func NewRatingHandler() *RatingHandler { return &RatingHandler{} }

type ratingRequest struct {
	Rating int `json:"rating" validate:"min=1,max=5"`
}

// GetMyRatings returns the caller's ratings keyed by media or episode key.
func (h *RatingHandler) GetMyRatings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionFromContext(r.Context()).Ratings.Ratings())
}

func (h *RatingHandler) PutMyRating(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	key := chi.URLParam(r, "key")
	if err := SessionFromContext(r.Context()).Ratings.RateMedia(r.Context(), key, req.Rating); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RatingHandler) DeleteMyRating(w http.ResponseWriter, r *http.Request) {
	if err := SessionFromContext(r.Context()).Ratings.RemoveRating(r.Context(), chi.URLParam(r, "key")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"mediatrack/internal/catalog"
	"mediatrack/internal/models"

	"github.com/go-chi/chi/v5"
)

// WatchlistHandler serves the caller's default watchlist and custom lists.
// With a nil catalog the snapshot is taken from the request body.
type WatchlistHandler struct {
	catalog catalog.Provider
}

func NewWatchlistHandler(c catalog.Provider) *WatchlistHandler { return &WatchlistHandler{catalog: c} }

type mediaRef struct {
	ID         int64  `json:"id" validate:"required,gt=0"`
	Kind       string `json:"kind" validate:"required,oneof=movie tv anime"`
	Title      string `json:"title" validate:"omitempty,max=300"`
	PosterPath string `json:"posterPath" validate:"omitempty,max=300"`
	Overview   string `json:"overview"`
}

type addWatchlistRequest struct {
	mediaRef
	Category string `json:"category" validate:"required,oneof=plan_to_watch watching completed dropped"`
}

type categoryRequest struct {
	Category string `json:"category" validate:"required,oneof=plan_to_watch watching completed dropped"`
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type createListRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// resolve turns a reference into the snapshot embedded in list entries.
func (h *WatchlistHandler) resolve(ctx context.Context, ref mediaRef) (models.MediaItem, error) {
	kind, err := models.ParseMediaKind(ref.Kind)
	if err != nil {
		return models.MediaItem{}, err
	}
	if h.catalog != nil {
		item, err := h.catalog.Lookup(ctx, ref.ID, kind)
		if err != nil {
			return models.MediaItem{}, err
		}
		return *item, nil
	}
	if strings.TrimSpace(ref.Title) == "" {
		return models.MediaItem{}, fmt.Errorf("%w: title is required", errBadBody)
	}
	return models.MediaItem{
		ID:         ref.ID,
		Kind:       kind,
		Title:      ref.Title,
		PosterPath: ref.PosterPath,
		Overview:   ref.Overview,
	}, nil
}

func mediaIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", models.ErrInvalidMediaID, raw)
	}
	return id, nil
}

func (h *WatchlistHandler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionFromContext(r.Context()).Watchlist.Watchlists())
}

func (h *WatchlistHandler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	var req addWatchlistRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.resolve(r.Context(), req.mediaRef)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := SessionFromContext(r.Context()).Watchlist.AddToWatchlist(r.Context(), item, category); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *WatchlistHandler) MoveToCategory(w http.ResponseWriter, r *http.Request) {
	id, err := mediaIDParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req categoryRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := SessionFromContext(r.Context()).Watchlist.MoveToCategory(r.Context(), id, category); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WatchlistHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, err := mediaIDParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req notesRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := SessionFromContext(r.Context()).Watchlist.UpdateItemNotes(r.Context(), id, req.Notes); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WatchlistHandler) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	id, err := mediaIDParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := SessionFromContext(r.Context()).Watchlist.RemoveFromWatchlist(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WatchlistHandler) GetLists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionFromContext(r.Context()).Watchlist.CustomWatchlists())
}

func (h *WatchlistHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	list, err := SessionFromContext(r.Context()).Watchlist.CreateCustomWatchlist(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

func (h *WatchlistHandler) DeleteList(w http.ResponseWriter, r *http.Request) {
	if err := SessionFromContext(r.Context()).Watchlist.DeleteCustomWatchlist(r.Context(), chi.URLParam(r, "listId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WatchlistHandler) AddListItem(w http.ResponseWriter, r *http.Request) {
	var req mediaRef
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.resolve(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	listID := chi.URLParam(r, "listId")
	sess := SessionFromContext(r.Context())
	if err := sess.Watchlist.AddToCustomWatchlist(r.Context(), listID, item); err != nil {
		writeError(w, r, err)
		return
	}
	list, _ := sess.Watchlist.CustomWatchlist(listID)
	writeJSON(w, http.StatusOK, list)
}

func (h *WatchlistHandler) RemoveListItem(w http.ResponseWriter, r *http.Request) {
	id, err := mediaIDParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	listID := chi.URLParam(r, "listId")
	sess := SessionFromContext(r.Context())
	if err := sess.Watchlist.RemoveFromCustomWatchlist(r.Context(), listID, id); err != nil {
		writeError(w, r, err)
		return
	}
	list, _ := sess.Watchlist.CustomWatchlist(listID)
	writeJSON(w, http.StatusOK, list)
}

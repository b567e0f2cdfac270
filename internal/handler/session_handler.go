package handler

import (
	"context"
	"net/http"
	"time"

	"mediatrack/internal/catalog"
	"mediatrack/internal/logging"
	"mediatrack/internal/service"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type SessionHandler struct {
	reg *service.Registry
}

func NewSessionHandler(reg *service.Registry) *SessionHandler { return &SessionHandler{reg: reg} }

type snapshotMessage struct {
	Type string `json:"type"`
	service.Snapshot
}

// GetMe returns every mirror of the caller's session.
func (h *SessionHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionFromContext(r.Context()).Snapshot())
}

// SignOut drops the caller's session; every mirror is cleared.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.reg.SignOut(IdentityFromContext(r.Context()).UID)
	w.WriteHeader(http.StatusNoContent)
}

// Stream pushes a snapshot after connect and after every mirror change until
// the client goes away or the session is signed out.
func (h *SessionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	log := logging.Ctx(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	changes, unsubscribe := sess.Changes()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// inbound messages are ignored; a read error means the peer left
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(snapshotMessage{Type: "snapshot", Snapshot: sess.Snapshot()}); err != nil {
			log.Debug().Err(err).Msg("websocket write failed")
			return false
		}
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			if !send() {
				return
			}
			if sess.Identity().Anonymous() {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out"),
					time.Now().Add(wsWriteTimeout))
				return
			}
		}
	}
}

type CatalogHandler struct {
	catalog catalog.Provider
}

func NewCatalogHandler(c catalog.Provider) *CatalogHandler { return &CatalogHandler{catalog: c} }

func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "catalog not configured"})
		return
	}
	items, err := h.catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

package ws

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"roulette/internal/app"
	"roulette/internal/domain"
)

// Handler handles WebSocket connections
type Handler struct {
	hub      *app.Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates a new WebSocket handler. allowedOrigins lists the
// browser origins that may upgrade; "*" allows any.
func NewHandler(hub *app.Hub, allowedOrigins []string, logger zerolog.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

// originChecker accepts requests without an Origin header (non-browser
// clients) and browser requests from a listed origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// ServeHTTP handles WebSocket upgrade requests. A request without viewId
// opens a new view; a known viewId re-attaches to it. An unknown viewId,
// for example one cleaned up after its grace period, gets a fresh view.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Checked before a view is opened; the upgrader would refuse it anyway
	if !h.upgrader.CheckOrigin(r) {
		h.logger.Warn().Str("origin", r.Header.Get("Origin")).Msg("websocket origin rejected")
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	viewID := r.URL.Query().Get("viewId")
	isReconnect := viewID != ""

	var table *app.Table
	if isReconnect {
		t, err := h.hub.GetTable(viewID)
		switch {
		case err == nil:
			table = t
		case errors.Is(err, domain.ErrViewNotFound):
			h.logger.Debug().Str("view_id", viewID).Msg("view expired, opening a new one")
			isReconnect = false
		default:
			http.Error(w, "View unavailable", http.StatusInternalServerError)
			return
		}
	}

	if table == nil {
		t, err := h.hub.OpenTable(r.Context())
		if err != nil {
			h.logger.Error().Err(err).Msg("failed to open view")
			http.Error(w, "Could not open a view", http.StatusServiceUnavailable)
			return
		}
		table = t
	}

	// Upgrade connection to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		if !isReconnect {
			h.hub.CloseTable(table.ID())
		}
		return
	}

	clientID := uuid.NewString()
	client := NewClient(conn, table, clientID, h.logger.With().Str("view_id", table.ID()).Logger())

	// The view may have been cleaned up since it was looked up
	if err := table.RegisterClient(clientID, client); err != nil {
		h.logger.Info().Str("view_id", table.ID()).Msg("view closed before the client attached")
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteJSON(NewServerMessage(MsgError, &ErrorPayload{
			Code:    ErrCodeViewNotFound,
			Message: "View is no longer open",
		}))
		conn.Close()
		return
	}

	h.logger.Info().
		Str("view_id", table.ID()).
		Str("client_id", clientID).
		Bool("reconnect", isReconnect).
		Msg("websocket connected")

	client.sendConnected()

	// Start the client
	client.Run()
}

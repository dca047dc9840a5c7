package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Zerr0-C00L/CineShelf/internal/auth"
	"github.com/Zerr0-C00L/CineShelf/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browsers connect through the same origin or with a bearer token; the
	// session middleware already authenticated the request.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// socketMessage is sent to the client.
type socketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// socketCommand is received from the client. Only the fields of the given
// type are read.
type socketCommand struct {
	Type     string                 `json:"type"`
	Query    string                 `json:"query,omitempty"`
	Category string                 `json:"category,omitempty"`
	Mood     string                 `json:"mood,omitempty"`
	Filter   *models.DiscoverFilter `json:"filter,omitempty"`
}

// BrowseSocket handles GET /api/v1/browse/ws. It streams browse and wishlist
// state plus notifications, and accepts browse commands.
// The session stays held for the life of the connection so the idle sweep
// leaves it alone.
func (h *Handler) BrowseSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.FromContext(r.Context()).CurrentUser()
	if !ok {
		respondError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s := h.sessions.Acquire(userID)
	defer h.sessions.Release(s)

	logger := h.logger.With("user_id", userID)
	logger.Info("websocket connected")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(ctx, conn, s)
		// unblocks readLoop when the session is closed under us
		conn.Close()
	}()

	h.readLoop(conn, s)
	cancel()
	<-done
	logger.Info("websocket disconnected")
}

// writeLoop is the only writer on conn.
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, s *Session) {
	browseStates, stopBrowse := s.Browse.Subscribe()
	defer stopBrowse()
	wishlistStates, stopWishlist := s.Wishlist.Subscribe()
	defer stopWishlist()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	send := func(msg socketMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("websocket write failed", "error", err)
			return false
		}
		return true
	}

	// Pending notifications are delivered once on connect.
	if pending := s.Notices.Drain(); len(pending) > 0 {
		if !send(socketMessage{Type: "notifications", Data: pending}) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case st, ok := <-browseStates:
			if !ok || !send(socketMessage{Type: "state", Data: st}) {
				return
			}
		case st, ok := <-wishlistStates:
			if !ok || !send(socketMessage{Type: "wishlist", Data: st}) {
				return
			}
		case <-s.Notices.Ready():
			if pending := s.Notices.Drain(); len(pending) > 0 {
				if !send(socketMessage{Type: "notifications", Data: pending}) {
					return
				}
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop applies client commands until the connection drops.
func (h *Handler) readLoop(conn *websocket.Conn, s *Session) {
	conn.SetReadLimit(maxMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "user_id", s.UserID, "error", err)
			}
			return
		}

		var cmd socketCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.Notices.Error("Invalid command")
			continue
		}
		h.apply(s, cmd)
	}
}

func (h *Handler) apply(s *Session, cmd socketCommand) {
	switch cmd.Type {
	case "query":
		s.Browse.SetQuery(cmd.Query)
	case "category":
		category, err := models.ParseCategory(cmd.Category)
		if err != nil {
			s.Notices.Error("Unknown category")
			return
		}
		s.Browse.SetCategory(category)
	case "mood":
		mood, ok := models.LookupMood(cmd.Mood)
		if !ok {
			s.Notices.Error("Unknown mood")
			return
		}
		s.Browse.SetMood(mood)
	case "filter":
		if cmd.Filter == nil {
			return
		}
		s.Browse.SetFilter(*cmd.Filter)
	case "next":
		s.Browse.LoadNextPage()
	case "retry":
		s.Browse.Retry()
	case "refresh":
		s.Browse.Refresh()
	default:
		h.logger.Debug("unknown websocket command", "type", cmd.Type)
	}
}

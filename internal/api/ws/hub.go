package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/lanes/internal/domain"
	"github.com/gosuda/lanes/internal/metrics"
	"github.com/gosuda/lanes/internal/server/middleware"
)

const writeTimeout = 10 * time.Second

// Feed is the change stream the hub relays. *changefeed.Feed satisfies it.
type Feed interface {
	Subscribe(ctx context.Context, boardID uuid.UUID) (<-chan domain.ChangeEvent, func(), error)
	SubscribeNotifications(ctx context.Context, userID uuid.UUID) (<-chan domain.Notification, func(), error)
}

// Hub manages WebSocket connections backed by the change feed.
type Hub struct {
	feed    Feed
	boards  domain.BoardRepository
	members domain.MembershipRepository
	opts    *websocket.AcceptOptions
}

// NewHub creates a new WebSocket hub. allowedOrigins is passed to the
// handshake as origin patterns; empty means same-origin only.
func NewHub(feed Feed, boards domain.BoardRepository, members domain.MembershipRepository, allowedOrigins []string) *Hub {
	return &Hub{
		feed:    feed,
		boards:  boards,
		members: members,
		opts:    &websocket.AcceptOptions{OriginPatterns: allowedOrigins},
	}
}

// ServeBoard streams every ChangeEvent of one board as a JSON text frame.
// Only users who can view the board may connect. The stream ends after the
// caller's own membership row is deleted.
func (h *Hub) ServeBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing user", http.StatusUnauthorized)
		return
	}

	boardID, err := uuid.Parse(chi.URLParam(r, "boardID"))
	if err != nil {
		http.Error(w, "invalid board id", http.StatusBadRequest)
		return
	}

	if err := h.authorize(r.Context(), boardID, userID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	conn, err := websocket.Accept(w, r, h.opts)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()

	// The client never sends; CloseRead handles control frames and cancels
	// ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())

	events, cleanup, err := h.feed.Subscribe(ctx, boardID)
	if err != nil {
		log.Error().Err(err).Str("board_id", boardID.String()).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case ev, evOK := <-events:
			if !evOK {
				_ = conn.Close(websocket.StatusGoingAway, "feed closed")
				return
			}
			if writeErr := write(ctx, conn, ev); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
			if revokes(ev, userID) {
				_ = conn.Close(websocket.StatusPolicyViolation, "access revoked")
				return
			}
		}
	}
}

// ServeNotifications streams the caller's new notifications.
func (h *Hub) ServeNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing user", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, h.opts)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()

	ctx := conn.CloseRead(r.Context())

	notes, cleanup, err := h.feed.SubscribeNotifications(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case n, nOK := <-notes:
			if !nOK {
				_ = conn.Close(websocket.StatusGoingAway, "feed closed")
				return
			}
			if writeErr := write(ctx, conn, n); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}

// authorize returns domain.ErrNotFound when the board does not exist or the
// user cannot view it.
func (h *Hub) authorize(ctx context.Context, boardID, userID uuid.UUID) error {
	b, err := h.boards.GetByID(ctx, boardID)
	if err != nil {
		return err
	}

	var membership *domain.Membership
	if b.OwnerID != userID {
		membership, err = h.members.GetByBoardAndUser(ctx, boardID, userID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}

	if !domain.ResolveRole(b, userID, membership).CanView() {
		return domain.ErrNotFound
	}
	return nil
}

func write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

// revokes reports whether ev deletes userID's own membership.
func revokes(ev domain.ChangeEvent, userID uuid.UUID) bool {
	if ev.Table != domain.TableMembers || ev.Kind != domain.ChangeDelete {
		return false
	}
	var m domain.Membership
	if err := json.Unmarshal(ev.Row(), &m); err != nil {
		return false
	}
	return m.UserID == userID
}

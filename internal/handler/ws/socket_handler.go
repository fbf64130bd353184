package wshandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"engagement-service/internal/domain"
	"engagement-service/internal/mailbox"
	"engagement-service/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: tighten with allowed origins if needed
		return true
	},
}

type WSHandler struct {
	store  *mailbox.Store
	logger *zap.Logger
}

func NewWSHandler(store *mailbox.Store, logger *zap.Logger) *WSHandler {
	return &WSHandler{store: store, logger: logger}
}

// snapshotEnvelope is what goes over the wire on every mailbox change: the
// owner's full current set, never a delta.
type snapshotEnvelope struct {
	Owner         domain.Identity        `json:"owner"`
	Notifications []*domain.Notification `json:"notifications"`
	Unread        int                    `json:"unread"`
}

// HandleMailbox upgrades HTTP -> WebSocket and streams the caller's mailbox
// snapshots until the connection closes. The subscription is torn down on
// exit no matter how the connection ends.
func (h *WSHandler) HandleMailbox(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}

	// Session id ties connect/disconnect log lines together when one identity
	// holds several sockets.
	sessionID := uuid.NewString()
	h.logger.Info("mailbox ws connected",
		zap.String("owner", owner.Key()),
		zap.String("session", sessionID))

	send := make(chan []byte, 8)
	unsub := h.store.Subscribe(owner, func(snapshot []*domain.Notification) {
		unread := 0
		for _, n := range snapshot {
			if !n.Read {
				unread++
			}
		}
		data, err := json.Marshal(snapshotEnvelope{
			Owner:         owner,
			Notifications: snapshot,
			Unread:        unread,
		})
		if err != nil {
			h.logger.Error("snapshot marshal failed", zap.String("owner", owner.Key()), zap.Error(err))
			return
		}
		select {
		case send <- data:
		default:
			h.logger.Warn("mailbox ws send buffer full, snapshot dropped",
				zap.String("owner", owner.Key()))
		}
	})

	done := make(chan struct{})
	go h.writePump(conn, send, done)

	// Reader loop: listen for pongs and the close.
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	unsub()
	close(done)
	_ = conn.Close()
	h.logger.Info("mailbox ws disconnected",
		zap.String("owner", owner.Key()),
		zap.String("session", sessionID))
}

func (h *WSHandler) writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case data := <-send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

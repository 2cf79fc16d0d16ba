package localapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"taskline/internal/assistant"
	"taskline/internal/protocol"

	"github.com/coder/websocket"
)

// WSHub fans events out to the websocket clients of one owner.
type WSHub struct {
	mu             sync.RWMutex
	clients        map[*websocket.Conn]int64
	seq            atomic.Uint64
	originPatterns []string
	logger         *slog.Logger
}

func NewWSHub(logger *slog.Logger, allowedOrigins []string) *WSHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHub{
		clients:        map[*websocket.Conn]int64{},
		originPatterns: originPatterns(allowedOrigins),
		logger:         logger.With("module", "wshub"),
	}
}

func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Debug("websocket accept failed", "owner_id", ownerID, "err", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = ownerID
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := r.Context()
	if msg, err := json.Marshal(h.event(protocol.OpHello, map[string]any{"owner_id": ownerID})); err == nil {
		wctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		_ = conn.Write(wctx, websocket.MessageText, msg)
		cancel()
	}
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// Publish sends one event to every connection of ownerID.
func (h *WSHub) Publish(ownerID int64, op string, payload any) {
	msg, err := json.Marshal(h.event(op, payload))
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for c, owner := range h.clients {
		if owner == ownerID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		if err := c.Write(ctx, websocket.MessageText, msg); err != nil {
			h.logger.Debug("websocket write failed", "owner_id", ownerID, "op", op, "err", err)
		}
		cancel()
	}
}

// TasksChanged tells the owner's clients to refetch their tasks.
func (h *WSHub) TasksChanged(ownerID int64, turnID string, actions []assistant.Outcome) {
	refs := make([]protocol.ActionRef, 0, len(actions))
	for _, a := range actions {
		refs = append(refs, protocol.ActionRef{Action: string(a.Kind), TaskID: a.TaskID})
	}
	h.Publish(ownerID, protocol.OpTasksChanged, protocol.TasksChanged{TurnID: turnID, Actions: refs})
}

func (h *WSHub) event(op string, payload any) protocol.Message {
	return protocol.NewEvent(fmt.Sprintf("evt_%d", h.seq.Add(1)), op, payload)
}

// originPatterns turns CORS origins into the host patterns websocket.Accept expects.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, origin)
	}
	return out
}

package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"memory-match/auth"
	"memory-match/config"
	"memory-match/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development; restrict in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Tables is what the Hub needs from the lobby.
type Tables interface {
	Table(ctx context.Context, owner, tableID string) (*session.Session, string, error)
}

// Hub maintains the set of active clients.
type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	Tables     Tables
	Verifier   *auth.Verifier
	Config     *config.Config

	// done is closed when Run returns, releasing pumps that still try to
	// register or unregister.
	done chan struct{}
}

// NewHub creates a new Hub. A nil verifier accepts every client anonymously.
func NewHub(cfg *config.Config, tables Tables, verifier *auth.Verifier) *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Tables:     tables,
		Verifier:   verifier,
		Config:     cfg,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. Should be run as a goroutine.
// When ctx is cancelled (e.g. on server shutdown), Run detaches every client
// and returns.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received, stopping", "tag", "hub")
			for client := range h.Clients {
				h.drop(client)
			}
			return
		case client := <-h.Register:
			h.Clients[client] = true
			slog.Info("client connected", "tag", "hub", "client", client.ID, "total", len(h.Clients))

		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				h.drop(client)
				slog.Info("client disconnected", "tag", "hub", "client", client.ID, "total", len(h.Clients))
			}
		}
	}
}

// unregister hands c back to Run, or gives up once Run has returned.
func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// drop detaches the client from its table before closing Send, so no
// session notification can race the close.
func (h *Hub) drop(c *Client) {
	delete(h.Clients, c)
	c.leave()
	close(c.Send)
}

// ServeWS handles WebSocket upgrade requests and creates a new Client. A
// token on the upgrade request authenticates the client up front; otherwise
// it must send an auth message first when auth is enabled.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade error", "tag", "hub", "err", err)
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		Hub:  h,
		Conn: conn,
		Send: make(chan []byte, 256),
	}
	client.authenticated = !h.Verifier.Enabled()
	if token := auth.BearerToken(r); token != "" && h.Verifier.Enabled() {
		if id, err := h.Verifier.Verify(token); err == nil {
			client.Identity = id
			client.authenticated = true
		}
	}

	select {
	case h.Register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"memory-match/auth"
	"memory-match/game"
	"memory-match/matcherrors"
	"memory-match/session"
	"memory-match/wsutil"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// Upper bound for session calls made while handling one message.
	actionTimeout = 5 * time.Second
)

// Client is a middleman between the websocket connection and a table session.
type Client struct {
	ID       string
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	Identity auth.Identity

	authenticated bool

	mu          sync.Mutex
	tableID     string
	session     *session.Session
	unsubscribe func()
}

// ReadPump pumps messages from the websocket connection to the session.
// It runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "tag", "client", "client", c.ID, "err", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the send channel to the websocket connection.
// It runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendError("Invalid message format.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	if envelope.Type == TypeAuth {
		c.handleAuth(envelope.Raw)
		return
	}
	if !c.authenticated {
		c.sendError("Authenticate first.")
		return
	}

	switch envelope.Type {
	case TypeJoin:
		c.handleJoin(ctx, envelope.Raw)
	case TypeFlipCard:
		c.handleFlipCard(ctx, envelope.Raw)
	case TypeNewGame:
		c.handleNewGame(ctx, envelope.Raw)
	case TypeReset:
		c.withSession(func(s *session.Session) { s.Reset(ctx) })
	case TypeClearHistory:
		c.withSession(func(s *session.Session) { s.ClearHistory(ctx) })
	default:
		c.sendError("Unknown message type: " + envelope.Type)
	}
}

func (c *Client) handleAuth(raw json.RawMessage) {
	var msg AuthMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid auth message.")
		return
	}
	id, err := c.Hub.Verifier.Verify(msg.Token)
	if err != nil {
		slog.Info("auth rejected", "tag", "client", "client", c.ID, "err", err)
		c.sendError("Authentication failed.")
		return
	}
	c.Identity = id
	c.authenticated = true
}

func (c *Client) handleJoin(ctx context.Context, raw json.RawMessage) {
	var msg JoinMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid join message.")
		return
	}

	s, tableID, err := c.Hub.Tables.Table(ctx, c.Identity.UserID, msg.TableID)
	if err != nil {
		if errors.Is(err, matcherrors.ErrTableNotFound) {
			c.sendError("Invalid table id.")
		} else {
			c.sendError("Could not open table.")
		}
		return
	}
	if msg.Player1Name != "" || msg.Player2Name != "" {
		s.SetPlayerNames(ctx, msg.Player1Name, msg.Player2Name)
	}

	c.leave()
	wsutil.SendJSON(c.Send, JoinedMsg{Type: TypeJoined, TableID: tableID})

	unsubscribe := s.Subscribe(func(st game.State) {
		wsutil.SendJSON(c.Send, newGameStateMsg(st))
	})
	c.mu.Lock()
	c.tableID, c.session, c.unsubscribe = tableID, s, unsubscribe
	c.mu.Unlock()

	wsutil.SendJSON(c.Send, newGameStateMsg(s.State()))
}

func (c *Client) handleFlipCard(ctx context.Context, raw json.RawMessage) {
	var msg FlipCardMsg
	if err := json.Unmarshal(raw, &msg); err != nil || msg.CardID == "" {
		c.sendError("Invalid flip_card message.")
		return
	}
	// Illegal flips are ignored without an error; the next state push is the answer.
	c.withSession(func(s *session.Session) { s.Flip(ctx, msg.CardID) })
}

func (c *Client) handleNewGame(ctx context.Context, raw json.RawMessage) {
	var msg NewGameMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid new_game message.")
		return
	}
	c.withSession(func(s *session.Session) {
		if _, out := s.NewGame(ctx, msg.Player1Name, msg.Player2Name, msg.Cards); !out.Applied {
			c.sendError(fmt.Sprintf("Invalid deck of %d cards.", len(msg.Cards)))
		}
	})
}

func (c *Client) withSession(fn func(*session.Session)) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		c.sendError("Join a table first.")
		return
	}
	fn(s)
}

// leave detaches from the current table.
func (c *Client) leave() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.tableID, c.session, c.unsubscribe = "", nil, nil
	c.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// TableID returns the table the client is attached to, if any.
func (c *Client) TableID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tableID
}

func (c *Client) sendError(message string) {
	wsutil.SendJSON(c.Send, ErrorMsg{Type: TypeError, Message: message})
}

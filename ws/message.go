package ws

import (
	"encoding/json"

	"memory-match/game"
)

// InboundEnvelope is the generic envelope for all client-to-server messages.
// The Type field is used for routing; Raw holds the full JSON payload.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom unmarshaling to capture the raw payload.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = json.RawMessage(data)
	return nil
}

// Inbound message types.
const (
	TypeAuth         = "auth"
	TypeJoin         = "join"
	TypeFlipCard     = "flip_card"
	TypeNewGame      = "new_game"
	TypeReset        = "reset"
	TypeClearHistory = "clear_history"
)

// Outbound message types.
const (
	TypeJoined    = "joined"
	TypeGameState = "game_state"
	TypeError     = "error"
)

// --- Client-to-Server message payloads ---

// AuthMsg carries a bearer token when it was not given on the upgrade URL.
type AuthMsg struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// JoinMsg attaches the connection to a table. An empty TableID opens a new one.
type JoinMsg struct {
	Type        string `json:"type"`
	TableID     string `json:"tableId"`
	Player1Name string `json:"player1Name,omitempty"`
	Player2Name string `json:"player2Name,omitempty"`
}

// FlipCardMsg is sent by the client to flip a card.
type FlipCardMsg struct {
	Type   string `json:"type"`
	CardID string `json:"cardId"`
}

// NewGameMsg deals a new game. Blank names keep the current ones.
type NewGameMsg struct {
	Type        string      `json:"type"`
	Player1Name string      `json:"player1Name,omitempty"`
	Player2Name string      `json:"player2Name,omitempty"`
	Cards       []game.Card `json:"cards,omitempty"`
}

// --- Server-to-Client messages ---

// ErrorMsg is sent when a client action is invalid.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// JoinedMsg confirms the table the connection is attached to.
type JoinedMsg struct {
	Type    string `json:"type"`
	TableID string `json:"tableId"`
}

// GameStateMsg is pushed on join and after every change at the table.
type GameStateMsg struct {
	Type string    `json:"type"`
	View game.View `json:"view"`
}

func newGameStateMsg(s game.State) GameStateMsg {
	return GameStateMsg{Type: TypeGameState, View: game.NewView(s)}
}

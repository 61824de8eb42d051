package game

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Player identifies one of the two seats at the table.
type Player int

const (
	Player1 Player = 1
	Player2 Player = 2
)

// Other returns the opposing seat.
func (p Player) Other() Player {
	if p == Player1 {
		return Player2
	}
	return Player1
}

// Valid reports whether p is one of the two seats.
func (p Player) Valid() bool {
	return p == Player1 || p == Player2
}

// String returns "player1" or "player2".
func (p Player) String() string {
	switch p {
	case Player1:
		return "player1"
	case Player2:
		return "player2"
	default:
		return "unknown"
	}
}

// Winner is the outcome of a session. Undecided encodes as JSON null.
type Winner int

const (
	Undecided  Winner = -1
	Draw       Winner = 0
	Player1Won Winner = 1
	Player2Won Winner = 2
)

// String returns a short label for logs.
func (w Winner) String() string {
	switch w {
	case Draw:
		return "draw"
	case Player1Won:
		return "player1"
	case Player2Won:
		return "player2"
	default:
		return "undecided"
	}
}

// MarshalJSON writes 0, 1, 2 or null.
func (w Winner) MarshalJSON() ([]byte, error) {
	if w == Undecided {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(int(w))), nil
}

// UnmarshalJSON accepts 0, 1, 2 or null.
func (w *Winner) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*w = Undecided
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	switch Winner(n) {
	case Draw, Player1Won, Player2Won:
		*w = Winner(n)
		return nil
	}
	return fmt.Errorf("invalid winner %s", data)
}

// DecideWinner compares final scores: the higher score wins, equal scores draw.
func DecideWinner(player1Score, player2Score int) Winner {
	switch {
	case player1Score > player2Score:
		return Player1Won
	case player2Score > player1Score:
		return Player2Won
	default:
		return Draw
	}
}

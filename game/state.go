package game

import (
	"encoding/json"
	"fmt"
	"slices"

	"memory-match/matcherrors"
)

// HistoryEntry summarizes one finished session.
type HistoryEntry struct {
	Date         string `json:"date"` // RFC 3339, UTC
	Player1      string `json:"player1"`
	Player2      string `json:"player2"`
	Player1Score int    `json:"player1Score"`
	Player2Score int    `json:"player2Score"`
	Winner       Winner `json:"winner"`
}

// State is the authoritative game state. It is treated as a value: the engine
// never mutates a State it was given, it returns a new one.
type State struct {
	Cards         []Card         `json:"cards"`
	CurrentPlayer Player         `json:"currentPlayer"`
	Player1Score  int            `json:"player1Score"`
	Player2Score  int            `json:"player2Score"`
	Player1Name   string         `json:"player1Name"`
	Player2Name   string         `json:"player2Name"`
	FlippedCards  []string       `json:"flippedCards"`
	MatchedPairs  []string       `json:"matchedPairs"`
	IsChecking    bool           `json:"isChecking"`
	GameOver      bool           `json:"gameOver"`
	Winner        Winner         `json:"winner"`
	GameHistory   []HistoryEntry `json:"gameHistory"`
	Turns         int            `json:"turns"`
}

// Clone returns a deep copy. Nil slices come back empty so JSON renders [].
func (s State) Clone() State {
	out := s
	out.Cards = append(make([]Card, 0, len(s.Cards)), s.Cards...)
	out.FlippedCards = append(make([]string, 0, 2), s.FlippedCards...)
	out.MatchedPairs = append(make([]string, 0, len(s.MatchedPairs)), s.MatchedPairs...)
	out.GameHistory = append(make([]HistoryEntry, 0, len(s.GameHistory)), s.GameHistory...)
	return out
}

// WithoutHistory returns a copy with an empty game history.
func (s State) WithoutHistory() State {
	out := s.Clone()
	out.GameHistory = out.GameHistory[:0]
	return out
}

// CardByID looks up a card in the deck.
func (s State) CardByID(id string) (Card, bool) {
	for _, c := range s.Cards {
		if c.ID == id {
			return c, true
		}
	}
	return Card{}, false
}

// IsCardFlipped reports whether the card is currently face up and unmatched.
func (s State) IsCardFlipped(id string) bool {
	return slices.Contains(s.FlippedCards, id)
}

// IsMatched reports whether the pair has been resolved.
func (s State) IsMatched(pairID string) bool {
	return slices.Contains(s.MatchedPairs, pairID)
}

// IsGameOver reports whether every matchable pair has been found.
func (s State) IsGameOver() bool {
	return s.GameOver
}

// NameOf returns the display name of a seat.
func (s State) NameOf(p Player) string {
	if p == Player2 {
		return s.Player2Name
	}
	return s.Player1Name
}

// ScoreOf returns the score of a seat.
func (s State) ScoreOf(p Player) int {
	if p == Player2 {
		return s.Player2Score
	}
	return s.Player1Score
}

// CurrentWinnerName returns "" while undecided, "Tie" on a draw, otherwise the
// winner's display name.
func (s State) CurrentWinnerName() string {
	switch s.Winner {
	case Player1Won:
		return s.Player1Name
	case Player2Won:
		return s.Player2Name
	case Draw:
		return "Tie"
	default:
		return ""
	}
}

// allPairsMatched uses the matchable pairs of the deck, so an unpaired card
// never blocks completion.
func (s State) allPairsMatched() bool {
	pairs := MatchablePairs(s.Cards)
	if len(pairs) == 0 {
		return false
	}
	for _, pid := range pairs {
		if !s.IsMatched(pid) {
			return false
		}
	}
	return true
}

// Validate checks the structural invariants a restored snapshot must satisfy.
func (s State) Validate() error {
	if len(s.Cards) == 0 {
		return fmt.Errorf("%w: no cards", matcherrors.ErrMalformedSnapshot)
	}
	if err := ValidateDeck(s.Cards, true); err != nil {
		return fmt.Errorf("%w: %v", matcherrors.ErrMalformedSnapshot, err)
	}
	if !s.CurrentPlayer.Valid() {
		return fmt.Errorf("%w: currentPlayer %d", matcherrors.ErrMalformedSnapshot, s.CurrentPlayer)
	}
	if s.Player1Score < 0 || s.Player2Score < 0 {
		return fmt.Errorf("%w: negative score", matcherrors.ErrMalformedSnapshot)
	}
	if len(s.FlippedCards) > 2 {
		return fmt.Errorf("%w: %d flipped cards", matcherrors.ErrMalformedSnapshot, len(s.FlippedCards))
	}
	matchable := MatchablePairs(s.Cards)
	for i, pid := range s.MatchedPairs {
		if !slices.Contains(matchable, pid) {
			return fmt.Errorf("%w: matched pair %q is not a pair of the deck", matcherrors.ErrMalformedSnapshot, pid)
		}
		if slices.Contains(s.MatchedPairs[:i], pid) {
			return fmt.Errorf("%w: pair %q matched twice", matcherrors.ErrMalformedSnapshot, pid)
		}
	}
	if !s.GameOver && s.allPairsMatched() {
		return fmt.Errorf("%w: every pair matched but game not over", matcherrors.ErrMalformedSnapshot)
	}
	if !s.GameOver && s.Winner != Undecided {
		return fmt.Errorf("%w: winner set before the game is over", matcherrors.ErrMalformedSnapshot)
	}
	for i, id := range s.FlippedCards {
		c, ok := s.CardByID(id)
		if !ok {
			return fmt.Errorf("%w: flipped card %q not in deck", matcherrors.ErrMalformedSnapshot, id)
		}
		if s.IsMatched(c.PairID) {
			return fmt.Errorf("%w: flipped card %q already matched", matcherrors.ErrMalformedSnapshot, id)
		}
		if slices.Contains(s.FlippedCards[:i], id) {
			return fmt.Errorf("%w: card %q flipped twice", matcherrors.ErrMalformedSnapshot, id)
		}
	}
	if s.IsChecking && len(s.FlippedCards) != 2 {
		return fmt.Errorf("%w: checking with %d flipped cards", matcherrors.ErrMalformedSnapshot, len(s.FlippedCards))
	}
	if s.GameOver && s.Winner == Undecided {
		return fmt.Errorf("%w: finished game without winner", matcherrors.ErrMalformedSnapshot)
	}
	return nil
}

// snapshotWire mirrors State with pointers so missing required fields can be told
// apart from zero values.
type snapshotWire struct {
	Cards         *[]Card        `json:"cards"`
	CurrentPlayer *Player        `json:"currentPlayer"`
	Player1Score  *int           `json:"player1Score"`
	Player2Score  *int           `json:"player2Score"`
	Player1Name   string         `json:"player1Name"`
	Player2Name   string         `json:"player2Name"`
	FlippedCards  *[]string      `json:"flippedCards"`
	MatchedPairs  *[]string      `json:"matchedPairs"`
	IsChecking    bool           `json:"isChecking"`
	GameOver      *bool          `json:"gameOver"`
	Winner        *Winner        `json:"winner"`
	GameHistory   []HistoryEntry `json:"gameHistory"`
	Turns         int            `json:"turns"`
}

// DecodeSnapshot parses a persisted state. Parse failures, missing required
// fields and broken invariants all wrap matcherrors.ErrMalformedSnapshot.
func DecodeSnapshot(data []byte) (State, error) {
	var w snapshotWire
	if err := json.Unmarshal(data, &w); err != nil {
		return State{}, fmt.Errorf("%w: %v", matcherrors.ErrMalformedSnapshot, err)
	}
	missing := func(name string) error {
		return fmt.Errorf("%w: missing %s", matcherrors.ErrMalformedSnapshot, name)
	}
	switch {
	case w.Cards == nil:
		return State{}, missing("cards")
	case w.CurrentPlayer == nil:
		return State{}, missing("currentPlayer")
	case w.Player1Score == nil:
		return State{}, missing("player1Score")
	case w.Player2Score == nil:
		return State{}, missing("player2Score")
	case w.FlippedCards == nil:
		return State{}, missing("flippedCards")
	case w.MatchedPairs == nil:
		return State{}, missing("matchedPairs")
	case w.GameOver == nil:
		return State{}, missing("gameOver")
	}
	s := State{
		Cards:         *w.Cards,
		CurrentPlayer: *w.CurrentPlayer,
		Player1Score:  *w.Player1Score,
		Player2Score:  *w.Player2Score,
		Player1Name:   w.Player1Name,
		Player2Name:   w.Player2Name,
		FlippedCards:  *w.FlippedCards,
		MatchedPairs:  *w.MatchedPairs,
		IsChecking:    w.IsChecking,
		GameOver:      *w.GameOver,
		Winner:        Undecided,
		GameHistory:   w.GameHistory,
		Turns:         w.Turns,
	}
	if w.Winner != nil {
		s.Winner = *w.Winner
	}
	if err := s.Validate(); err != nil {
		return State{}, err
	}
	return s.Clone(), nil
}

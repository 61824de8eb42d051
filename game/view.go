package game

import "fmt"

// Phase is the coarse position of a session in the turn cycle.
type Phase int

const (
	PhaseDealt Phase = iota
	PhaseOneFlipped
	PhaseAwaitingCheck
	PhaseChecking
	PhaseOver
)

func (p Phase) String() string {
	switch p {
	case PhaseDealt:
		return "dealt"
	case PhaseOneFlipped:
		return "one_flipped"
	case PhaseAwaitingCheck:
		return "awaiting_check"
	case PhaseChecking:
		return "checking"
	case PhaseOver:
		return "over"
	default:
		return "unknown"
	}
}

// MarshalText lets Phase render as its name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts the names written by MarshalText.
func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{PhaseDealt, PhaseOneFlipped, PhaseAwaitingCheck, PhaseChecking, PhaseOver} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Phase derives the current phase from the state flags.
func (s State) Phase() Phase {
	switch {
	case s.GameOver:
		return PhaseOver
	case s.IsChecking:
		return PhaseChecking
	case len(s.FlippedCards) == 2:
		return PhaseAwaitingCheck
	case len(s.FlippedCards) == 1:
		return PhaseOneFlipped
	default:
		return PhaseDealt
	}
}

// CardView is the client-facing representation of a card. PairID is only
// included while the card is face up or matched.
type CardView struct {
	ID      string `json:"id"`
	PairID  string `json:"pairId,omitempty"`
	Flipped bool   `json:"flipped"`
	Matched bool   `json:"matched"`
}

// PlayerView is the client-facing representation of a seat.
type PlayerView struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// View is what transports send to clients.
type View struct {
	Cards             []CardView     `json:"cards"`
	Player1           PlayerView     `json:"player1"`
	Player2           PlayerView     `json:"player2"`
	CurrentPlayer     Player         `json:"currentPlayer"`
	CurrentPlayerName string         `json:"currentPlayerName"`
	FlippedCards      []string       `json:"flippedCards"`
	MatchedPairs      []string       `json:"matchedPairs"`
	Phase             Phase          `json:"phase"`
	IsChecking        bool           `json:"isChecking"`
	GameOver          bool           `json:"gameOver"`
	Winner            Winner         `json:"winner"`
	WinnerName        string         `json:"winnerName,omitempty"`
	Turns             int            `json:"turns"`
	GameHistory       []HistoryEntry `json:"gameHistory"`
}

// BuildCardViews hides the pair id of every face-down card.
func BuildCardViews(s State) []CardView {
	views := make([]CardView, len(s.Cards))
	for i, c := range s.Cards {
		cv := CardView{
			ID:      c.ID,
			Flipped: s.IsCardFlipped(c.ID),
			Matched: s.IsMatched(c.PairID),
		}
		if cv.Flipped || cv.Matched {
			cv.PairID = c.PairID
		}
		views[i] = cv
	}
	return views
}

// NewView projects a state for clients.
func NewView(s State) View {
	c := s.Clone()
	return View{
		Cards:             BuildCardViews(c),
		Player1:           PlayerView{Name: c.Player1Name, Score: c.Player1Score},
		Player2:           PlayerView{Name: c.Player2Name, Score: c.Player2Score},
		CurrentPlayer:     c.CurrentPlayer,
		CurrentPlayerName: c.NameOf(c.CurrentPlayer),
		FlippedCards:      c.FlippedCards,
		MatchedPairs:      c.MatchedPairs,
		Phase:             c.Phase(),
		IsChecking:        c.IsChecking,
		GameOver:          c.GameOver,
		Winner:            c.Winner,
		WinnerName:        c.CurrentWinnerName(),
		Turns:             c.Turns,
		GameHistory:       c.GameHistory,
	}
}

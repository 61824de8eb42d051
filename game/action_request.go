package game

import (
	"fmt"
	"strings"

	"memory-match/matcherrors"
)

// ActionRequest is the wire form of an action sent by a client. Only the
// actions a player may trigger directly are accepted; checking and resolving
// are driven by the session timer.
type ActionRequest struct {
	Type        string `json:"type"`
	CardID      string `json:"cardId,omitempty"`
	Player1Name string `json:"player1Name,omitempty"`
	Player2Name string `json:"player2Name,omitempty"`
	Cards       []Card `json:"cards,omitempty"`
}

// ToAction converts the request. Names longer than maxName runes are cut;
// maxName <= 0 disables the limit.
func (r ActionRequest) ToAction(maxName int) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(r.Type)) {
	case KindDeal.String():
		cards := r.Cards
		if len(cards) == 0 {
			// An empty list asks for the default deck, like an absent one.
			cards = nil
		}
		return Deal{
			Player1Name: TruncateName(r.Player1Name, maxName),
			Player2Name: TruncateName(r.Player2Name, maxName),
			Cards:       cards,
		}, nil
	case KindFlip.String():
		if r.CardID == "" {
			return nil, fmt.Errorf("%w: FLIP without cardId", matcherrors.ErrUnknownAction)
		}
		return Flip{CardID: r.CardID}, nil
	case KindReset.String():
		return Reset{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", matcherrors.ErrUnknownAction, r.Type)
	}
}

// TruncateName trims whitespace and caps a display name at max runes.
func TruncateName(name string, max int) string {
	name = strings.TrimSpace(name)
	if max <= 0 {
		return name
	}
	runes := []rune(name)
	if len(runes) > max {
		return string(runes[:max])
	}
	return name
}

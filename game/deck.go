package game

import (
	"fmt"
	"strings"

	"memory-match/matcherrors"
)

// Card is a single physical card. ID is unique within a deck; PairID is shared
// by the two cards that match each other.
type Card struct {
	ID     string `json:"id"`
	PairID string `json:"pairId"`
}

// Shuffler randomizes positions. *rand.Rand from math/rand/v2 satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Difficulty presets, carried over from the original board sizes.
const (
	DifficultyClassic = "classic"
	DifficultyEasy    = "easy"
	DifficultyMedium  = "medium"
	DifficultyHard    = "hard"
)

var difficultyPairs = map[string]int{
	DifficultyEasy:   6,
	DifficultyMedium: 10,
	DifficultyHard:   15,
}

// DefaultPairIDs is the classic five-symbol deck.
func DefaultPairIDs() []string {
	return []string{"A", "B", "C", "D", "E"}
}

// PairIDsForDifficulty returns the pair ids for a preset. Classic (and any
// unknown name) returns classic unchanged.
func PairIDsForDifficulty(difficulty string, classic []string) []string {
	n, ok := difficultyPairs[strings.ToLower(difficulty)]
	if !ok {
		return append([]string(nil), classic...)
	}
	return PairIDsFor(n)
}

// PairIDsFor returns n spreadsheet-style labels: A..Z, AA, AB, ...
func PairIDsFor(n int) []string {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, columnLabel(i))
	}
	return ids
}

func columnLabel(i int) string {
	var b []byte
	for i >= 0 {
		b = append([]byte{byte('A' + i%26)}, b...)
		i = i/26 - 1
	}
	return string(b)
}

// NewDeck creates two cards per pair id, in order. With oddCard set the last
// pair id yields a single unpaired card.
func NewDeck(pairIDs []string, oddCard bool) []Card {
	cards := make([]Card, 0, 2*len(pairIDs))
	for i, pid := range pairIDs {
		cards = append(cards, Card{ID: pid + "-1", PairID: pid})
		if oddCard && i == len(pairIDs)-1 {
			break
		}
		cards = append(cards, Card{ID: pid + "-2", PairID: pid})
	}
	return cards
}

// ShuffleDeck returns a shuffled copy of cards. With quality set, a deck where
// too many pairs ended up side by side is shuffled once more.
func ShuffleDeck(cards []Card, shuffler Shuffler, quality bool) []Card {
	out := append([]Card(nil), cards...)
	if shuffler == nil {
		return out
	}
	shuffle := func() {
		shuffler.Shuffle(len(out), func(i, j int) {
			out[i], out[j] = out[j], out[i]
		})
	}
	shuffle()
	if quality && AdjacentPairs(out)*8 > len(out) {
		shuffle()
	}
	return out
}

// AdjacentPairs counts neighbouring cards that share a pair id.
func AdjacentPairs(cards []Card) int {
	n := 0
	for i := 0; i+1 < len(cards); i++ {
		if cards[i].PairID == cards[i+1].PairID {
			n++
		}
	}
	return n
}

// ValidateDeck checks that ids are unique and every pair id appears exactly
// twice. When allowOdd is set, at most one pair id may appear once.
func ValidateDeck(cards []Card, allowOdd bool) error {
	if len(cards) == 0 {
		return fmt.Errorf("%w: empty deck", matcherrors.ErrInvalidDeck)
	}
	ids := make(map[string]struct{}, len(cards))
	counts := make(map[string]int)
	for _, c := range cards {
		if c.ID == "" || c.PairID == "" {
			return fmt.Errorf("%w: card with empty id or pairId", matcherrors.ErrInvalidDeck)
		}
		if _, dup := ids[c.ID]; dup {
			return fmt.Errorf("%w: duplicate card id %q", matcherrors.ErrInvalidDeck, c.ID)
		}
		ids[c.ID] = struct{}{}
		counts[c.PairID]++
	}
	singles := 0
	for pid, n := range counts {
		switch {
		case n == 2:
		case n == 1 && allowOdd:
			singles++
		default:
			return fmt.Errorf("%w: pair %q has %d cards", matcherrors.ErrInvalidDeck, pid, n)
		}
	}
	if singles > 1 {
		return fmt.Errorf("%w: %d unpaired cards", matcherrors.ErrInvalidDeck, singles)
	}
	return nil
}

// MatchablePairs returns the pair ids carried by exactly two cards, in deck order.
func MatchablePairs(cards []Card) []string {
	counts := make(map[string]int)
	for _, c := range cards {
		counts[c.PairID]++
	}
	var out []string
	seen := make(map[string]struct{})
	for _, c := range cards {
		if counts[c.PairID] != 2 {
			continue
		}
		if _, ok := seen[c.PairID]; ok {
			continue
		}
		seen[c.PairID] = struct{}{}
		out = append(out, c.PairID)
	}
	return out
}

package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memory-match/matcherrors"
)

func TestNewDeck(t *testing.T) {
	cards := NewDeck([]string{"A", "B"}, false)
	assert.Equal(t, []Card{
		{ID: "A-1", PairID: "A"}, {ID: "A-2", PairID: "A"},
		{ID: "B-1", PairID: "B"}, {ID: "B-2", PairID: "B"},
	}, cards)
}

func TestNewDeckOddCard(t *testing.T) {
	cards := NewDeck([]string{"A", "B", "C"}, true)
	require.Len(t, cards, 5)
	assert.Equal(t, "C-1", cards[len(cards)-1].ID, "odd card")
	assert.NoError(t, ValidateDeck(cards, true))
	assert.Error(t, ValidateDeck(cards, false), "odd deck without allowOdd")
	assert.Equal(t, []string{"A", "B"}, MatchablePairs(cards))
}

func TestPairIDsFor(t *testing.T) {
	ids := PairIDsFor(28)
	assert.Equal(t, "A", ids[0])
	assert.Equal(t, "Z", ids[25])
	assert.Equal(t, "AA", ids[26])
	assert.Equal(t, "AB", ids[27])
	assert.Empty(t, PairIDsFor(0))
}

func TestPairIDsForDifficulty(t *testing.T) {
	tests := []struct {
		difficulty string
		want       int
	}{
		{DifficultyEasy, 6},
		{DifficultyMedium, 10},
		{"HARD", 15},
		{DifficultyClassic, 5},
		{"unknown", 5},
	}
	for _, tt := range tests {
		assert.Len(t, PairIDsForDifficulty(tt.difficulty, DefaultPairIDs()), tt.want, tt.difficulty)
	}
}

// countingShuffler records calls and leaves the order alone.
type countingShuffler struct{ calls int }

func (c *countingShuffler) Shuffle(n int, swap func(i, j int)) { c.calls++ }

func TestShuffleDeckQualityReshuffle(t *testing.T) {
	cards := NewDeck([]string{"A", "B"}, false) // every pair adjacent

	s := &countingShuffler{}
	ShuffleDeck(cards, s, false)
	assert.Equal(t, 1, s.calls, "one shuffle without quality")

	s = &countingShuffler{}
	ShuffleDeck(cards, s, true)
	assert.Equal(t, 2, s.calls, "reshuffle with quality")
}

func TestShuffleDeckCopies(t *testing.T) {
	cards := NewDeck([]string{"A", "B"}, false)
	out := ShuffleDeck(cards, nil, true)
	assert.Equal(t, cards, out, "nil shuffler keeps order")

	out[0].ID = "changed"
	assert.Equal(t, "A-1", cards[0].ID, "ShuffleDeck must not alias its input")
}

func TestAdjacentPairs(t *testing.T) {
	cards := []Card{{ID: "1", PairID: "A"}, {ID: "2", PairID: "B"}, {ID: "3", PairID: "B"}, {ID: "4", PairID: "A"}}
	assert.Equal(t, 1, AdjacentPairs(cards))
}

func TestValidateDeck(t *testing.T) {
	tests := []struct {
		name  string
		cards []Card
	}{
		{"empty", nil},
		{"duplicate id", []Card{{ID: "x", PairID: "A"}, {ID: "x", PairID: "A"}}},
		{"empty pair id", []Card{{ID: "x"}, {ID: "y"}}},
		{"triple", []Card{{ID: "1", PairID: "A"}, {ID: "2", PairID: "A"}, {ID: "3", PairID: "A"}}},
		{"two singles", []Card{{ID: "1", PairID: "A"}, {ID: "2", PairID: "B"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateDeck(tt.cards, true), matcherrors.ErrInvalidDeck)
		})
	}
}

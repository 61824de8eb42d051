package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCardViewsHidesFaceDownPairs(t *testing.T) {
	views := BuildCardViews(sampleState())

	byID := make(map[string]CardView)
	for _, v := range views {
		byID[v.ID] = v
	}
	assert.Equal(t, CardView{ID: "A-1", PairID: "A", Matched: true}, byID["A-1"])
	assert.Equal(t, CardView{ID: "B-1", PairID: "B", Flipped: true}, byID["B-1"])
	assert.Equal(t, CardView{ID: "B-2"}, byID["B-2"])
}

func TestPhase(t *testing.T) {
	s := sampleState()
	s.FlippedCards = nil
	assert.Equal(t, PhaseDealt, s.Phase())

	s.FlippedCards = []string{"B-1"}
	assert.Equal(t, PhaseOneFlipped, s.Phase())

	s.FlippedCards = []string{"B-1", "B-2"}
	assert.Equal(t, PhaseAwaitingCheck, s.Phase())

	s.IsChecking = true
	assert.Equal(t, PhaseChecking, s.Phase())

	s.GameOver = true
	assert.Equal(t, PhaseOver, s.Phase())
}

func TestPhaseText(t *testing.T) {
	for _, p := range []Phase{PhaseDealt, PhaseOneFlipped, PhaseAwaitingCheck, PhaseChecking, PhaseOver} {
		text, err := p.MarshalText()
		require.NoError(t, err)

		var got Phase
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, p, got)
	}

	var p Phase
	assert.Error(t, p.UnmarshalText([]byte("shuffling")))
}

func TestNewView(t *testing.T) {
	v := NewView(sampleState())
	assert.Equal(t, "Bob", v.CurrentPlayerName)
	assert.Equal(t, 1, v.Player1.Score)
	assert.Equal(t, "Bob", v.Player2.Name)

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "one_flipped", raw["phase"])
	assert.Nil(t, raw["winner"])
}

func TestViewDecodesFromItsJSON(t *testing.T) {
	s := sampleState()
	s.Winner = Player2Won
	s.GameOver = true
	want := NewView(s)

	data, err := json.Marshal(want)
	require.NoError(t, err)

	var got View
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, want, got)
}

func TestActionRequestToAction(t *testing.T) {
	a, err := ActionRequest{Type: "flip", CardID: "A-1"}.ToAction(0)
	require.NoError(t, err)
	assert.Equal(t, Flip{CardID: "A-1"}, a)

	a, err = ActionRequest{Type: "DEAL", Player1Name: "  Alexandra  ", Player2Name: "Bo"}.ToAction(4)
	require.NoError(t, err)
	assert.Equal(t, Deal{Player1Name: "Alex", Player2Name: "Bo"}, a)

	for _, typ := range []string{"RESOLVE", "BEGIN_CHECK", "LOAD", ""} {
		_, err := ActionRequest{Type: typ}.ToAction(0)
		assert.Error(t, err, "%q should not be accepted from clients", typ)
	}
	_, err = ActionRequest{Type: "FLIP"}.ToAction(0)
	assert.Error(t, err, "FLIP without a card")
}

func TestActionRequestEmptyCardsMeansDefaultDeck(t *testing.T) {
	var req ActionRequest
	require.NoError(t, json.Unmarshal([]byte(`{"type":"DEAL","cards":[]}`), &req))

	a, err := req.ToAction(0)
	require.NoError(t, err)
	deal, ok := a.(Deal)
	require.True(t, ok)
	assert.Nil(t, deal.Cards)

	e, _ := newTestEngine(t)
	st, out := e.Step(State{}, deal)
	assert.True(t, out.Applied)
	assert.Len(t, st.Cards, 10)
}

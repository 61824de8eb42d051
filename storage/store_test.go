package storage

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memory-match/config"
	"memory-match/game"
	"memory-match/matcherrors"
)

func newTestStore(t *testing.T, limit int) (*Store, *MemoryKV) {
	t.Helper()
	kv := NewMemoryKV()
	return NewStore(kv, "table1", quartz.NewMock(t), limit), kv
}

func runningState() game.State {
	return game.State{
		Cards:         game.NewDeck([]string{"A", "B"}, false),
		CurrentPlayer: game.Player1,
		Player1Name:   "Old",
		Player2Name:   "Older",
		FlippedCards:  []string{"A-1"},
		MatchedPairs:  []string{},
		Winner:        game.Undecided,
	}
}

func TestStoreKeys(t *testing.T) {
	s, _ := newTestStore(t, 0)
	assert.Equal(t, "memory-game-table1-state", s.Key("state"))

	bare := NewStore(NewMemoryKV(), "", nil, 0)
	assert.Equal(t, "memory-game-state", bare.Key("state"))
}

func TestStoreStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore(t, 0)

	require.NoError(t, s.SaveState(ctx, runningState()))

	raw, err := kv.Get(ctx, "memory-game-table1-state")
	require.NoError(t, err)
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Contains(t, envelope, "savedAt")
	assert.Contains(t, envelope, "flippedCards")
	assert.Nil(t, envelope["winner"])

	got, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A-1"}, got.FlippedCards)
	assert.Equal(t, "Old", got.Player1Name)

	require.NoError(t, s.ClearState(ctx))
	_, err = s.LoadState(ctx)
	assert.ErrorIs(t, err, matcherrors.ErrNotFound)
}

func TestStoreLoadStateRejects(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore(t, 0)

	require.NoError(t, kv.Put(ctx, s.Key("state"), []byte(`{not json`)))
	_, err := s.LoadState(ctx)
	assert.ErrorIs(t, err, matcherrors.ErrMalformedSnapshot)

	require.NoError(t, kv.Put(ctx, s.Key("state"), []byte(`{"cards":[]}`)))
	_, err = s.LoadState(ctx)
	assert.ErrorIs(t, err, matcherrors.ErrMalformedSnapshot)

	finished := runningState()
	finished.FlippedCards = []string{}
	finished.MatchedPairs = []string{"A", "B"}
	finished.GameOver = true
	finished.Winner = game.Draw
	require.NoError(t, s.SaveState(ctx, finished))
	stale, err := s.LoadState(ctx)
	assert.ErrorIs(t, err, matcherrors.ErrStaleSnapshot)
	assert.True(t, stale.GameOver, "a stale snapshot is still returned")
}

func TestStoreHistory(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, 0)

	finished := runningState()
	finished.FlippedCards = []string{}
	finished.MatchedPairs = []string{"A", "B"}
	finished.GameOver = true
	finished.Winner = game.Player1Won
	finished.Player1Score = 2
	finished.GameHistory = []game.HistoryEntry{{Date: "2024-05-01T10:00:00.000Z", Player1: "Old", Player2: "Older", Player1Score: 2, Winner: game.Player1Won}}
	require.NoError(t, s.SaveState(ctx, finished))

	history, err := s.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Old", history[0].Player1)

	require.NoError(t, s.ClearHistory(ctx))
	history, err = s.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = NewStore(NewMemoryKV(), "empty", nil, 0).History(ctx)
	assert.ErrorIs(t, err, matcherrors.ErrNotFound)
}

func TestAddHighScoreOrdersAndTruncates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, 3)

	for i, score := range []int{5, 9, 1, 7} {
		made, err := s.AddHighScore(ctx, "p"+string(rune('a'+i)), score)
		require.NoError(t, err)
		assert.True(t, made, "score %d", score)
	}

	scores, err := s.HighScores(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, []int{9, 7, 5}, []int{scores[0].Score, scores[1].Score, scores[2].Score})
	assert.Equal(t, "pb", scores[0].Name)

	made, err := s.AddHighScore(ctx, "late", 5)
	require.NoError(t, err)
	assert.False(t, made, "a tie with the last entry ranks below it")
}

func TestHighScoresEmptyAndMalformed(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore(t, 0)

	scores, err := s.HighScores(ctx)
	require.NoError(t, err)
	assert.Empty(t, scores)

	require.NoError(t, kv.Put(ctx, s.Key("high-scores"), []byte(`{`)))
	_, err = s.HighScores(ctx)
	assert.ErrorIs(t, err, matcherrors.ErrMalformedSnapshot)

	made, err := s.AddHighScore(ctx, "fresh", 1)
	require.NoError(t, err)
	assert.True(t, made)
}

func TestSettingsMergeOverDefaults(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore(t, 0)
	defaults := Settings{"difficulty": "medium", "soundEnabled": true}

	got, err := s.LoadSettings(ctx, defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, got)

	require.NoError(t, s.SaveSettings(ctx, Settings{"difficulty": "hard"}))
	got, err = s.LoadSettings(ctx, defaults)
	require.NoError(t, err)
	assert.Equal(t, "hard", got["difficulty"])
	assert.Equal(t, true, got["soundEnabled"])
	assert.Equal(t, "medium", defaults["difficulty"], "defaults must not be modified")

	require.NoError(t, kv.Put(ctx, s.Key("settings"), []byte(`[1,2]`)))
	got, err = s.LoadSettings(ctx, defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, got)
}

func TestPlayerNames(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, 0)

	_, err := s.LoadPlayerNames(ctx)
	assert.ErrorIs(t, err, matcherrors.ErrNotFound)

	require.NoError(t, s.SavePlayerNames(ctx, PlayerNames{Player1: "Ann", Player2: "Ben"}))
	names, err := s.LoadPlayerNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, PlayerNames{Player1: "Ann", Player2: "Ben"}, names)
}

func TestAvailable(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore(t, 0)
	assert.True(t, s.Available(ctx))
	assert.Empty(t, kv.Keys(), "test key must be removed")

	var nilStore *Store
	assert.False(t, nilStore.Available(ctx))
}

func TestNilStoreIsNoop(t *testing.T) {
	ctx := context.Background()
	var s *Store

	assert.NoError(t, s.SaveState(ctx, runningState()))
	assert.NoError(t, s.ClearState(ctx))
	_, err := s.LoadState(ctx)
	assert.ErrorIs(t, err, matcherrors.ErrNotFound)
	made, err := s.AddHighScore(ctx, "x", 1)
	assert.NoError(t, err)
	assert.False(t, made)
}

func TestHighScoreDateUsesClock(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	clock.Advance(36 * time.Hour)
	s := NewStore(NewMemoryKV(), "t", clock, 0)

	_, err := s.AddHighScore(ctx, "a", 1)
	require.NoError(t, err)
	scores, err := s.HighScores(ctx)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().UTC().Format(time.RFC3339Nano), scores[0].Date)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	cfg := config.Defaults()

	cfg.StorageBackend = "memory"
	kv, err := Open(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryKV{}, kv)

	cfg.StorageBackend = "file"
	cfg.StoragePath = t.TempDir()
	kv, err = Open(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &FileKV{}, kv)

	cfg.StorageBackend = "carrier-pigeon"
	_, err = Open(ctx, cfg)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "carrier-pigeon"))

	cfg.StorageBackend = "postgres"
	cfg.DatabaseURL = ""
	_, err = Open(ctx, cfg)
	assert.ErrorIs(t, err, matcherrors.ErrStorageUnavailable)
}

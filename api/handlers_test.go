package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memory-match/auth"
	"memory-match/config"
	"memory-match/game"
	"memory-match/lobby"
	"memory-match/storage"
)

type fixture struct {
	clock  *quartz.Mock
	server *httptest.Server
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	cfg := config.Defaults()
	cfg.PairIDs = []string{"A", "B"}
	cfg.ResolutionDelayMS = 1000

	clock := quartz.NewMock(t)
	kv := storage.NewMemoryKV()
	l := lobby.New(cfg, kv, lobby.Options{
		Clock:       clock,
		NewShuffler: func() game.Shuffler { return nil },
	})
	t.Cleanup(l.Close)

	verifier, err := auth.NewVerifier(context.Background(), "", secret)
	require.NoError(t, err)

	settings := func(owner string) *storage.Store {
		return storage.NewStore(kv, lobby.SettingsNamespace(owner), clock, cfg.HighScoreLimit)
	}
	h := NewHandler(cfg, l, verifier, settings)
	server := httptest.NewServer(h.Router(nil))
	t.Cleanup(server.Close)
	return &fixture{clock: clock, server: server}
}

func (f *fixture) do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (f *fixture) flip(t *testing.T, table, cardID string) ActionResponse {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/tables/"+table+"/actions", game.ActionRequest{Type: "FLIP", CardID: cardID}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[ActionResponse](t, resp)
}

func (f *fixture) resolve(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f.clock.Advance(time.Second).MustWait(ctx)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "")
	resp := f.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]bool{"ok": true}, decode[map[string]bool](t, resp))
}

func TestGetTableOpensDealtGame(t *testing.T) {
	f := newFixture(t, "")
	resp := f.do(t, http.MethodGet, "/api/tables/den", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decode[game.View](t, resp)
	assert.Len(t, view.Cards, 4)
	assert.Equal(t, game.PhaseDealt, view.Phase)
	assert.Equal(t, "Player 1", view.Player1.Name)
	for _, c := range view.Cards {
		assert.Empty(t, c.PairID, "face-down card %s must not leak its pair", c.ID)
	}
}

func TestGetTableBadID(t *testing.T) {
	f := newFixture(t, "")
	resp := f.do(t, http.MethodGet, "/api/tables/bad.id", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFullGameOverHTTP(t *testing.T) {
	f := newFixture(t, "")

	resp := f.do(t, http.MethodPost, "/api/tables/den/actions",
		game.ActionRequest{Type: "DEAL", Player1Name: "Alice", Player2Name: "Bob"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[ActionResponse](t, resp).Applied)

	out := f.flip(t, "den", "A-1")
	assert.True(t, out.Applied)
	assert.Equal(t, game.PhaseOneFlipped, out.View.Phase)

	out = f.flip(t, "den", "A-2")
	assert.Equal(t, game.PhaseChecking, out.View.Phase)

	// Flips are ignored while the pair is being checked.
	assert.False(t, f.flip(t, "den", "B-1").Applied)

	f.resolve(t)
	f.flip(t, "den", "B-1")
	f.flip(t, "den", "B-2")
	f.resolve(t)

	view := decode[game.View](t, f.do(t, http.MethodGet, "/api/tables/den", nil, ""))
	assert.True(t, view.GameOver)
	assert.Equal(t, game.Player1Won, view.Winner)
	assert.Equal(t, "Alice", view.WinnerName)
	assert.Equal(t, 2, view.Player1.Score)

	history := decode[[]game.HistoryEntry](t, f.do(t, http.MethodGet, "/api/tables/den/history", nil, ""))
	require.Len(t, history, 1)
	assert.Equal(t, "Alice", history[0].Player1)

	scores := decode[[]storage.HighScore](t, f.do(t, http.MethodGet, "/api/tables/den/highscores", nil, ""))
	require.NotEmpty(t, scores)
	assert.Equal(t, "Alice", scores[0].Name)
	assert.Equal(t, 2, scores[0].Score)

	resp = f.do(t, http.MethodDelete, "/api/tables/den/history", nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	history = decode[[]game.HistoryEntry](t, f.do(t, http.MethodGet, "/api/tables/den/history", nil, ""))
	assert.Empty(t, history)
}

func TestPostActionRejectsBadRequests(t *testing.T) {
	f := newFixture(t, "")

	tests := map[string]struct {
		body   any
		status int
	}{
		"resolve is timer-only": {game.ActionRequest{Type: "RESOLVE"}, http.StatusBadRequest},
		"flip without card":     {game.ActionRequest{Type: "FLIP"}, http.StatusBadRequest},
		"not json":              {"nope", http.StatusBadRequest},
		"invalid deck": {
			game.ActionRequest{Type: "DEAL", Cards: []game.Card{{ID: "x", PairID: "A"}}},
			http.StatusUnprocessableEntity,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/api/tables/den/actions", tc.body, "")
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestDealWithEmptyCardsUsesDefaultDeck(t *testing.T) {
	f := newFixture(t, "")
	resp := f.do(t, http.MethodPost, "/api/tables/den/actions", map[string]any{"type": "DEAL", "cards": []any{}}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[ActionResponse](t, resp)
	assert.True(t, out.Applied)
	assert.Len(t, out.View.Cards, 4)
	assert.Equal(t, game.PhaseDealt, out.View.Phase)
}

func TestIgnoredFlipIsNotAnError(t *testing.T) {
	f := newFixture(t, "")
	out := f.flip(t, "den", "Z-9")
	assert.False(t, out.Applied)
	assert.Equal(t, game.PhaseDealt, out.View.Phase)
}

func TestSettings(t *testing.T) {
	f := newFixture(t, "")

	got := decode[map[string]any](t, f.do(t, http.MethodGet, "/api/settings", nil, ""))
	assert.Equal(t, "Player 1", got["player1Name"])
	assert.Equal(t, "classic", got["difficulty"])

	resp := f.do(t, http.MethodPut, "/api/settings", map[string]any{"difficulty": "hard", "theme": "dark"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got = decode[map[string]any](t, f.do(t, http.MethodGet, "/api/settings", nil, ""))
	assert.Equal(t, "hard", got["difficulty"])
	assert.Equal(t, "dark", got["theme"])
	assert.Equal(t, "Player 1", got["player1Name"])
}

func TestAuthRequiredWhenEnabled(t *testing.T) {
	f := newFixture(t, "s3cret")

	resp := f.do(t, http.MethodGet, "/api/tables/den", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	resp = f.do(t, http.MethodGet, "/api/tables/den", nil, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Health stays public.
	resp = f.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

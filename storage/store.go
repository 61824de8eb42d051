package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"time"

	"github.com/coder/quartz"

	"memory-match/game"
	"memory-match/matcherrors"
)

const keyPrefix = "memory-game-"

const (
	keyState       = "state"
	keyHighScores  = "high-scores"
	keySettings    = "settings"
	keyPlayerNames = "player-names"
	keyProbe       = "test"
)

// DefaultHighScoreLimit is how many entries the high-score list keeps.
const DefaultHighScoreLimit = 10

// HighScore is one entry in the high-score list.
type HighScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Date  string `json:"date"`
}

// PlayerNames are the last names entered at a table.
type PlayerNames struct {
	Player1 string `json:"player1Name"`
	Player2 string `json:"player2Name"`
}

// Settings is a free-form settings object, merged key by key over defaults.
type Settings map[string]any

// savedState is the persisted snapshot: the game state plus when it was written.
type savedState struct {
	game.State
	SavedAt string `json:"savedAt"`
}

// Store is the typed persistence layer for one namespace (one table).
// A nil *Store is valid and persists nothing.
type Store struct {
	kv     KV
	prefix string
	limit  int
	clock  quartz.Clock
}

// NewStore scopes kv to namespace. An empty namespace uses the bare prefix.
func NewStore(kv KV, namespace string, clock quartz.Clock, highScoreLimit int) *Store {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if highScoreLimit < 1 {
		highScoreLimit = DefaultHighScoreLimit
	}
	prefix := keyPrefix
	if namespace != "" {
		prefix += namespace + "-"
	}
	return &Store{kv: kv, prefix: prefix, limit: highScoreLimit, clock: clock}
}

// Key returns the full storage key for name.
func (s *Store) Key(name string) string {
	return s.prefix + name
}

func (s *Store) now() string {
	return s.clock.Now().UTC().Format(time.RFC3339Nano)
}

func (s *Store) putJSON(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return s.kv.Put(ctx, s.Key(name), data)
}

func (s *Store) getJSON(ctx context.Context, name string, v any) error {
	data, err := s.kv.Get(ctx, s.Key(name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", matcherrors.ErrMalformedSnapshot, name, err)
	}
	return nil
}

// SaveState writes the snapshot with a savedAt timestamp.
func (s *Store) SaveState(ctx context.Context, st game.State) error {
	if s == nil {
		return nil
	}
	return s.putJSON(ctx, keyState, savedState{State: st.Clone(), SavedAt: s.now()})
}

// LoadState reads and validates the snapshot. It returns ErrNotFound when
// nothing is saved and ErrMalformedSnapshot when the data is unusable. A
// finished game is returned together with ErrStaleSnapshot so callers can
// still read its history.
func (s *Store) LoadState(ctx context.Context) (game.State, error) {
	if s == nil {
		return game.State{}, matcherrors.ErrNotFound
	}
	data, err := s.kv.Get(ctx, s.Key(keyState))
	if err != nil {
		return game.State{}, err
	}
	st, err := game.DecodeSnapshot(data)
	if err != nil {
		return game.State{}, err
	}
	if st.GameOver {
		return st, matcherrors.ErrStaleSnapshot
	}
	return st, nil
}

// History returns the history of the saved snapshot, finished or not.
func (s *Store) History(ctx context.Context) ([]game.HistoryEntry, error) {
	st, err := s.LoadState(ctx)
	if err != nil && !errors.Is(err, matcherrors.ErrStaleSnapshot) {
		return nil, err
	}
	return st.GameHistory, nil
}

// ClearHistory empties the history of the saved snapshot and writes it back.
func (s *Store) ClearHistory(ctx context.Context) error {
	st, err := s.LoadState(ctx)
	if err != nil && !errors.Is(err, matcherrors.ErrStaleSnapshot) {
		return err
	}
	return s.SaveState(ctx, st.WithoutHistory())
}

// ClearState removes the snapshot.
func (s *Store) ClearState(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.kv.Delete(ctx, s.Key(keyState))
}

// HighScores returns the list, best first. A missing list is empty.
func (s *Store) HighScores(ctx context.Context) ([]HighScore, error) {
	if s == nil {
		return []HighScore{}, nil
	}
	scores := []HighScore{}
	if err := s.getJSON(ctx, keyHighScores, &scores); err != nil && !errors.Is(err, matcherrors.ErrNotFound) {
		return nil, err
	}
	return scores, nil
}

// AddHighScore inserts a score, keeps the list sorted and truncated, and
// reports whether the new entry made the list.
func (s *Store) AddHighScore(ctx context.Context, name string, score int) (bool, error) {
	if s == nil {
		return false, nil
	}
	scores, err := s.HighScores(ctx)
	if errors.Is(err, matcherrors.ErrMalformedSnapshot) {
		slog.Warn("discarding unreadable high scores", "tag", "storage", "key", s.Key(keyHighScores), "err", err)
		scores, err = []HighScore{}, nil
	}
	if err != nil {
		return false, err
	}

	entry := HighScore{Name: name, Score: score, Date: s.now()}
	scores = append(scores, entry)
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	// Stable by insertion order so an equal newer score ranks below older ones.
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]].Score > scores[idx[b]].Score })

	top := make([]HighScore, 0, s.limit)
	made := false
	for _, i := range idx {
		if len(top) == s.limit {
			break
		}
		top = append(top, scores[i])
		if i == len(scores)-1 {
			made = true
		}
	}
	if err := s.putJSON(ctx, keyHighScores, top); err != nil {
		return false, err
	}
	return made, nil
}

// SaveSettings replaces the stored settings.
func (s *Store) SaveSettings(ctx context.Context, settings Settings) error {
	if s == nil {
		return nil
	}
	return s.putJSON(ctx, keySettings, settings)
}

// LoadSettings returns the stored settings merged over defaults. Missing or
// unreadable settings yield the defaults.
func (s *Store) LoadSettings(ctx context.Context, defaults Settings) (Settings, error) {
	out := maps.Clone(defaults)
	if out == nil {
		out = Settings{}
	}
	if s == nil {
		return out, nil
	}
	var stored Settings
	err := s.getJSON(ctx, keySettings, &stored)
	switch {
	case errors.Is(err, matcherrors.ErrNotFound):
		return out, nil
	case errors.Is(err, matcherrors.ErrMalformedSnapshot):
		slog.Warn("ignoring unreadable settings", "tag", "storage", "key", s.Key(keySettings), "err", err)
		return out, nil
	case err != nil:
		return out, err
	}
	maps.Copy(out, stored)
	return out, nil
}

// SavePlayerNames remembers the names for the next session.
func (s *Store) SavePlayerNames(ctx context.Context, names PlayerNames) error {
	if s == nil {
		return nil
	}
	return s.putJSON(ctx, keyPlayerNames, names)
}

func (s *Store) LoadPlayerNames(ctx context.Context) (PlayerNames, error) {
	if s == nil {
		return PlayerNames{}, matcherrors.ErrNotFound
	}
	var names PlayerNames
	if err := s.getJSON(ctx, keyPlayerNames, &names); err != nil {
		return PlayerNames{}, err
	}
	return names, nil
}

// Available checks the backend with a write, read and delete.
func (s *Store) Available(ctx context.Context) bool {
	if s == nil {
		return false
	}
	key := s.Key(keyProbe)
	if err := s.kv.Put(ctx, key, []byte(`"test"`)); err != nil {
		return false
	}
	data, err := s.kv.Get(ctx, key)
	if err != nil || string(data) != `"test"` {
		return false
	}
	return s.kv.Delete(ctx, key) == nil
}

// Package session owns one running game: it serialises actions into the
// engine, runs the resolution delay, persists after every change and notifies
// subscribers.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/quartz"

	"memory-match/game"
	"memory-match/matcherrors"
	"memory-match/storage"
)

// DefaultResolutionDelay is how long two face-up cards stay visible.
const DefaultResolutionDelay = time.Second

// persistTimeout bounds storage calls made from the timer goroutine.
const persistTimeout = 5 * time.Second

// Options configure a Session. Engine is required; everything else has a default.
type Options struct {
	Engine          *game.Engine
	Store           *storage.Store // nil disables persistence
	Clock           quartz.Clock
	ResolutionDelay time.Duration
	Player1Name     string
	Player2Name     string
	MaxNameLength   int
	Logger          *slog.Logger
}

// Session is safe for concurrent use.
type Session struct {
	engine  *game.Engine
	store   *storage.Store
	clock   quartz.Clock
	delay   time.Duration
	maxName int
	log     *slog.Logger

	mu        sync.Mutex
	state     game.State
	names     storage.PlayerNames
	timer     *quartz.Timer
	gen       uint64
	listeners map[int]func(game.State)
	nextID    int
	closed    bool
}

// New creates a session. Call Start before dispatching actions.
func New(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.ResolutionDelay <= 0 {
		opts.ResolutionDelay = DefaultResolutionDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Player1Name == "" {
		opts.Player1Name = "Player 1"
	}
	if opts.Player2Name == "" {
		opts.Player2Name = "Player 2"
	}
	return &Session{
		engine:    opts.Engine,
		store:     opts.Store,
		clock:     opts.Clock,
		delay:     opts.ResolutionDelay,
		maxName:   opts.MaxNameLength,
		log:       opts.Logger.With("tag", "session"),
		names:     storage.PlayerNames{Player1: opts.Player1Name, Player2: opts.Player2Name},
		listeners: make(map[int]func(game.State)),
	}
}

// Start restores the persisted game or deals a fresh one. Saved player names
// take precedence over the configured defaults.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if names, err := s.store.LoadPlayerNames(ctx); err == nil {
		if names.Player1 != "" {
			s.names.Player1 = names.Player1
		}
		if names.Player2 != "" {
			s.names.Player2 = names.Player2
		}
	} else if !errors.Is(err, matcherrors.ErrNotFound) {
		s.log.Warn("failed to load player names", "err", err)
	}

	snap, err := s.store.LoadState(ctx)
	switch {
	case err == nil:
		if _, out := s.applyLocked(ctx, game.Load{Snapshot: snap, Player1Name: s.names.Player1, Player2Name: s.names.Player2}); out.Applied {
			s.log.Info("restored saved game", "matched", len(s.state.MatchedPairs), "flipped", len(s.state.FlippedCards))
			return
		}
		s.log.Warn("saved game rejected, dealing a new one")
	case errors.Is(err, matcherrors.ErrStaleSnapshot):
		// Finished game: keep its history and deal over it.
		s.log.Info("saved game already finished, dealing a new one")
		s.state = snap
	case errors.Is(err, matcherrors.ErrNotFound):
	default:
		s.log.Warn("ignoring saved game", "err", err)
	}
	s.applyLocked(ctx, game.Deal{Player1Name: s.names.Player1, Player2Name: s.names.Player2})
}

// Dispatch applies an action. Deal names left blank fall back to the
// session's current names.
func (s *Session) Dispatch(ctx context.Context, a game.Action) (game.State, game.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(ctx, a)
}

// Flip turns a card face up.
func (s *Session) Flip(ctx context.Context, cardID string) (game.State, game.Outcome) {
	return s.Dispatch(ctx, game.Flip{CardID: cardID})
}

// NewGame deals with the given names and optional deck, remembering the names.
func (s *Session) NewGame(ctx context.Context, player1Name, player2Name string, cards []game.Card) (game.State, game.Outcome) {
	return s.Dispatch(ctx, game.Deal{Player1Name: player1Name, Player2Name: player2Name, Cards: cards})
}

// Reset deals again with the current names.
func (s *Session) Reset(ctx context.Context) (game.State, game.Outcome) {
	return s.Dispatch(ctx, game.Reset{})
}

// SetPlayerNames stores the names used by the next deal and by Start. The
// running game keeps its names.
func (s *Session) SetPlayerNames(ctx context.Context, player1Name, player2Name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rememberNamesLocked(ctx, player1Name, player2Name)
}

// ClearHistory empties the finished-games history of the running state.
func (s *Session) ClearHistory(ctx context.Context) game.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.state.GameHistory) == 0 {
		return s.state.Clone()
	}
	s.state = s.state.WithoutHistory()
	s.persistLocked(ctx)
	s.notifyLocked()
	return s.state.Clone()
}

// State returns a copy of the current state.
func (s *Session) State() game.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// View returns the client projection of the current state.
func (s *Session) View() game.View {
	return game.NewView(s.State())
}

// IsCardFlipped reports whether cardID is face up and unresolved.
func (s *Session) IsCardFlipped(cardID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsCardFlipped(cardID)
}

// IsGameOver reports whether every pair has been matched.
func (s *Session) IsGameOver() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsGameOver()
}

// CurrentWinnerName is the winner's display name, "Tie" on a draw, or empty
// while the game runs.
func (s *Session) CurrentWinnerName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentWinnerName()
}

// PlayerNames returns the names the next deal will use.
func (s *Session) PlayerNames() storage.PlayerNames {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.names
}

// HighScores reads the table's high-score list.
func (s *Session) HighScores(ctx context.Context) ([]storage.HighScore, error) {
	return s.store.HighScores(ctx)
}

// Subscribe registers fn to receive every new state. fn runs with the session
// lock held and must not call back into the session.
func (s *Session) Subscribe(fn func(game.State)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Close stops the pending resolution. Later actions still apply but no timer
// is armed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimerLocked()
	s.closed = true
}

func (s *Session) applyLocked(ctx context.Context, a game.Action) (game.State, game.Outcome) {
	if d, ok := a.(game.Deal); ok {
		if d.Player1Name = game.TruncateName(d.Player1Name, s.maxName); d.Player1Name == "" {
			d.Player1Name = s.names.Player1
		}
		if d.Player2Name = game.TruncateName(d.Player2Name, s.maxName); d.Player2Name == "" {
			d.Player2Name = s.names.Player2
		}
		a = d
	}

	next, out := s.engine.Step(s.state, a)
	if !out.Applied {
		return s.state.Clone(), out
	}

	switch a := a.(type) {
	case game.Deal:
		s.cancelTimerLocked()
		s.rememberNamesLocked(ctx, a.Player1Name, a.Player2Name)
	case game.Reset, game.Load:
		s.cancelTimerLocked()
	}

	s.state = next
	s.persistLocked(ctx)
	if out.GameOver {
		s.recordHighScoresLocked(ctx)
	}
	s.notifyLocked()

	switch {
	case out.NeedsCheck:
		s.beginCheckLocked(ctx)
	case s.state.IsChecking && a.Kind() == game.KindLoad:
		// Restored mid-check: the old timer died with the old process.
		s.armLocked()
	}
	return s.state.Clone(), out
}

func (s *Session) beginCheckLocked(ctx context.Context) {
	next, out := s.engine.Step(s.state, game.BeginCheck{})
	if !out.Applied {
		return
	}
	s.state = next
	s.persistLocked(ctx)
	s.notifyLocked()
	s.armLocked()
}

func (s *Session) armLocked() {
	if s.closed {
		return
	}
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.delay, func() { s.resolve(gen) }, "session", "resolve")
}

// resolve runs on the clock's goroutine once the delay expires.
func (s *Session) resolve(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.closed {
		return
	}
	s.timer = nil
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	s.applyLocked(ctx, game.Resolve{})
}

func (s *Session) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Session) rememberNamesLocked(ctx context.Context, player1Name, player2Name string) {
	if player1Name = game.TruncateName(player1Name, s.maxName); player1Name != "" {
		s.names.Player1 = player1Name
	}
	if player2Name = game.TruncateName(player2Name, s.maxName); player2Name != "" {
		s.names.Player2 = player2Name
	}
	if err := s.store.SavePlayerNames(ctx, s.names); err != nil {
		s.log.Warn("failed to save player names", "err", err)
	}
}

// persistLocked saves the state. Failures only cost cross-restart persistence.
func (s *Session) persistLocked(ctx context.Context) {
	if err := s.store.SaveState(ctx, s.state); err != nil {
		s.log.Warn("failed to save game state", "err", err)
	}
}

func (s *Session) recordHighScoresLocked(ctx context.Context) {
	for _, p := range []game.Player{game.Player1, game.Player2} {
		if _, err := s.store.AddHighScore(ctx, s.state.NameOf(p), s.state.ScoreOf(p)); err != nil {
			s.log.Warn("failed to record high score", "player", s.state.NameOf(p), "err", err)
		}
	}
	s.log.Info("game over", "winner", s.state.Winner.String(),
		"player1Score", s.state.Player1Score, "player2Score", s.state.Player2Score)
}

func (s *Session) notifyLocked() {
	snap := s.state.Clone()
	for _, fn := range s.listeners {
		fn(snap)
	}
}

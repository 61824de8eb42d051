package lobby

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"memory-match/config"
	"memory-match/game"
	"memory-match/matcherrors"
	"memory-match/session"
	"memory-match/storage"
)

var tableIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Options tune a Lobby. Zero values use real time and random shuffles.
type Options struct {
	Clock       quartz.Clock
	NewShuffler func() game.Shuffler
	Logger      *slog.Logger
}

// Lobby maps table ids to running sessions. Each (owner, table) pair gets its
// own session and its own storage namespace.
type Lobby struct {
	cfg         *config.Config
	kv          storage.KV
	clock       quartz.Clock
	newShuffler func() game.Shuffler
	log         *slog.Logger

	mu     sync.Mutex
	tables map[string]*session.Session
}

// New creates a lobby. kv may be nil, in which case nothing is persisted.
func New(cfg *config.Config, kv storage.KV, opts Options) *Lobby {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.NewShuffler == nil {
		opts.NewShuffler = func() game.Shuffler {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Lobby{
		cfg:         cfg,
		kv:          kv,
		clock:       opts.Clock,
		newShuffler: opts.NewShuffler,
		log:         opts.Logger,
		tables:      make(map[string]*session.Session),
	}
}

// NewTableID returns a fresh random table id.
func NewTableID() string {
	return uuid.NewString()
}

// Namespace is the storage namespace of a table. The owner is path-escaped
// and joined with "/", which neither an escaped owner nor a table id can
// contain, so distinct (owner, table) pairs never share a namespace.
func Namespace(owner, tableID string) string {
	if owner == "" {
		return tableID
	}
	return url.PathEscape(owner) + "/" + tableID
}

// SettingsNamespace is where an owner's settings live. The leading dot keeps
// it apart from every valid table id.
func SettingsNamespace(owner string) string {
	return Namespace(owner, ".settings")
}

// ValidTableID reports whether id can name a table.
func ValidTableID(id string) bool {
	return tableIDPattern.MatchString(id)
}

// Store returns the typed store for a table without starting a session.
func (l *Lobby) Store(owner, tableID string) *storage.Store {
	if l.kv == nil {
		return nil
	}
	return storage.NewStore(l.kv, Namespace(owner, tableID), l.clock, l.cfg.HighScoreLimit)
}

// Table returns the session for (owner, tableID), creating and starting it on
// first use. An empty tableID creates a new table.
func (l *Lobby) Table(ctx context.Context, owner, tableID string) (*session.Session, string, error) {
	if tableID == "" {
		tableID = NewTableID()
	}
	if !ValidTableID(tableID) {
		return nil, "", fmt.Errorf("%w: invalid id %q", matcherrors.ErrTableNotFound, tableID)
	}
	ns := Namespace(owner, tableID)

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.tables[ns]; ok {
		return s, tableID, nil
	}

	s := session.New(session.Options{
		Engine:          game.NewEngine(l.cfg.Rules(), l.newShuffler(), l.clock),
		Store:           l.Store(owner, tableID),
		Clock:           l.clock,
		ResolutionDelay: time.Duration(l.cfg.ResolutionDelayMS) * time.Millisecond,
		Player1Name:     l.cfg.Player1Name,
		Player2Name:     l.cfg.Player2Name,
		MaxNameLength:   l.cfg.MaxNameLength,
		Logger:          l.log.With("table", tableID),
	})
	s.Start(ctx)
	l.tables[ns] = s
	l.log.Info("table opened", "tag", "lobby", "table", tableID, "owner", owner)
	return s, tableID, nil
}

// Tables lists open table namespaces, sorted.
func (l *Lobby) Tables() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.tables))
	for ns := range l.tables {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Close stops every session's pending timer.
func (l *Lobby) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ns, s := range l.tables {
		s.Close()
		delete(l.tables, ns)
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/coder/quartz"

	"memory-match/config"
	"memory-match/game"
	"memory-match/lobby"
	"memory-match/matcherrors"
	"memory-match/storage"
)

// TableFlags select one table's storage namespace.
type TableFlags struct {
	Table string `short:"t" required:"" help:"Table id"`
	Owner string `help:"Owner user id; empty for anonymous tables"`
}

func (f TableFlags) open(ctx context.Context, cfg *config.Config) (*storage.Store, func(), error) {
	if !lobby.ValidTableID(f.Table) {
		return nil, nil, fmt.Errorf("invalid table id %q", f.Table)
	}
	kv, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	store := storage.NewStore(kv, lobby.Namespace(f.Owner, f.Table), quartz.NewReal(), cfg.HighScoreLimit)
	return store, func() { kv.Close() }, nil
}

// HistoryCmd prints the completed games of a table as JSON.
type HistoryCmd struct {
	TableFlags
}

func (c *HistoryCmd) Run(cfg *config.Config) error {
	ctx := context.Background()
	store, closeFn, err := c.open(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	history, err := store.History(ctx)
	if err != nil && !errors.Is(err, matcherrors.ErrNotFound) {
		return err
	}
	if history == nil {
		history = []game.HistoryEntry{}
	}
	return printJSON(history)
}

// ClearHistoryCmd removes the completed games of a table.
type ClearHistoryCmd struct {
	TableFlags
}

func (c *ClearHistoryCmd) Run(cfg *config.Config) error {
	ctx := context.Background()
	store, closeFn, err := c.open(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := store.ClearHistory(ctx); err != nil {
		if errors.Is(err, matcherrors.ErrNotFound) {
			fmt.Fprintf(os.Stdout, "table %s has no saved game\n", c.Table)
			return nil
		}
		return err
	}
	fmt.Fprintf(os.Stdout, "history of table %s cleared\n", c.Table)
	return nil
}

// HighScoresCmd prints the high-score list of a table as JSON.
type HighScoresCmd struct {
	TableFlags
}

func (c *HighScoresCmd) Run(cfg *config.Config) error {
	ctx := context.Background()
	store, closeFn, err := c.open(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	scores, err := store.HighScores(ctx)
	if err != nil {
		return err
	}
	return printJSON(scores)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

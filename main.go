package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"memory-match/config"
	"memory-match/loghandler"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version      kong.VersionFlag `short:"v" help:"Show version"`
	Config       string           `short:"c" default:"config.json" help:"Path to JSON configuration file"`
	Serve        ServeCmd         `cmd:"" default:"withargs" help:"Run the game server"`
	History      HistoryCmd       `cmd:"" help:"Print the game history of a table"`
	ClearHistory ClearHistoryCmd  `cmd:"clear-history" help:"Forget the game history of a table"`
	HighScores   HighScoresCmd    `cmd:"highscores" help:"Print the high scores of a table"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found; using environment variables", "tag", "main")
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("memory-match"),
		kong.Description("Two-player memory card-matching game server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)

	cfg := config.LoadFrom(cli.Config)
	slog.SetDefault(slog.New(loghandler.New(os.Stderr, cfg.LogFormat, cfg.SlogLevel())))

	err := ctx.Run(cfg)
	ctx.FatalIfErrorf(err)
}

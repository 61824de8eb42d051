package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"memory-match/game"
)

// Config holds all configurable server and game parameters.
type Config struct {
	Player1Name string `json:"player1_name"`
	Player2Name string `json:"player2_name"`

	PairIDs        []string `json:"pair_ids"`
	OddCard        bool     `json:"odd_card"`
	OddCardPolicy  string   `json:"odd_card_policy"`
	Difficulty     string   `json:"difficulty"`
	QualityShuffle bool     `json:"quality_shuffle"`
	PointsPerMatch int      `json:"points_per_match"`

	// ResolutionDelayMS is how long two face-up cards stay visible before the
	// match or mismatch is applied.
	ResolutionDelayMS int `json:"resolution_delay_ms"`
	HighScoreLimit    int `json:"high_score_limit"`
	MaxNameLength     int `json:"max_name_length"`

	HTTPPort       int    `json:"http_port"`
	StorageBackend string `json:"storage_backend"` // memory, file, sqlite, mysql, postgres
	StoragePath    string `json:"storage_path"`
	DatabaseURL    string `json:"database_url"`

	// AuthBaseURL enables JWT verification against <base>/.well-known/jwks.json.
	AuthBaseURL string `json:"auth_base_url"`
	// AuthSecret enables HMAC-signed JWTs. Ignored when AuthBaseURL is set.
	AuthSecret string `json:"auth_secret"`

	LogFormat string `json:"log_format"` // compact, pretty, json
	LogLevel  string `json:"log_level"`
}

// Defaults returns a Config with every default value.
func Defaults() *Config {
	return &Config{
		Player1Name:       "Player 1",
		Player2Name:       "Player 2",
		PairIDs:           game.DefaultPairIDs(),
		OddCardPolicy:     "decorative",
		Difficulty:        game.DifficultyClassic,
		QualityShuffle:    true,
		PointsPerMatch:    1,
		ResolutionDelayMS: 1000,
		HighScoreLimit:    10,
		MaxNameLength:     24,
		HTTPPort:          8080,
		StorageBackend:    "file",
		StoragePath:       "data",
		LogFormat:         "compact",
		LogLevel:          "info",
	}
}

// Load reads config.json from the working directory, if present, then applies
// environment overrides.
func Load() *Config {
	return LoadFrom("config.json")
}

// LoadFrom reads configuration from an optional JSON file, then applies
// environment variable overrides. Fields not set in either source keep their
// default values.
func LoadFrom(path string) *Config {
	cfg := Defaults()

	if path != "" {
		if f, err := os.Open(path); err == nil {
			defer f.Close()
			if err := json.NewDecoder(f).Decode(cfg); err != nil {
				slog.Warn("failed to parse config file", "tag", "config", "path", path, "err", err)
			}
		}
	}

	overrideString(&cfg.Player1Name, "PLAYER1_NAME")
	overrideString(&cfg.Player2Name, "PLAYER2_NAME")
	overrideList(&cfg.PairIDs, "PAIR_IDS")
	overrideBool(&cfg.OddCard, "ODD_CARD")
	overrideString(&cfg.OddCardPolicy, "ODD_CARD_POLICY")
	overrideString(&cfg.Difficulty, "DIFFICULTY")
	overrideBool(&cfg.QualityShuffle, "QUALITY_SHUFFLE")
	overrideInt(&cfg.PointsPerMatch, "POINTS_PER_MATCH")
	overrideInt(&cfg.ResolutionDelayMS, "RESOLUTION_DELAY_MS")
	overrideInt(&cfg.HighScoreLimit, "HIGH_SCORE_LIMIT")
	overrideInt(&cfg.MaxNameLength, "MAX_NAME_LENGTH")
	overrideInt(&cfg.HTTPPort, "HTTP_PORT")
	overrideString(&cfg.StorageBackend, "STORAGE_BACKEND")
	overrideString(&cfg.StoragePath, "STORAGE_PATH")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.AuthBaseURL, "AUTH_BASE_URL")
	overrideString(&cfg.AuthSecret, "AUTH_SECRET")
	overrideString(&cfg.LogFormat, "LOG_FORMAT")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")

	return cfg
}

// Rules derives the game rules. A difficulty preset other than classic
// replaces the configured pair ids.
func (c *Config) Rules() game.Rules {
	pairIDs := c.PairIDs
	if len(pairIDs) == 0 {
		pairIDs = game.DefaultPairIDs()
	}
	return game.Rules{
		PairIDs:        game.PairIDsForDifficulty(c.Difficulty, pairIDs),
		OddCard:        c.OddCard,
		OddCardPolicy:  game.ParseOddCardPolicy(c.OddCardPolicy),
		PointsPerMatch: c.PointsPerMatch,
		QualityShuffle: c.QualityShuffle,
	}
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			slog.Warn("invalid integer in environment", "tag", "config", "key", envKey, "value", val)
		}
	}
}

func overrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*field = b
		} else {
			slog.Warn("invalid boolean in environment", "tag", "config", "key", envKey, "value", val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

// overrideList reads a comma-separated list.
func overrideList(field *[]string, envKey string) {
	val := os.Getenv(envKey)
	if val == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) > 0 {
		*field = out
	}
}

package loghandler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCompactHandler(&buf, slog.LevelInfo))

	logger.Info("card flipped", "tag", "session", "card", "A-1")

	assert.Regexp(t, `^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2} \[session\] card flipped card=A-1\n$`, buf.String())
}

func TestCompactHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCompactHandler(&buf, slog.LevelWarn))

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestCompactHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCompactHandler(&buf, slog.LevelInfo)).With("tag", "lobby", "table", "t1")

	logger.Info("created")

	assert.Contains(t, buf.String(), "[lobby] created table=t1")
}

func TestCompactHandlerWithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCompactHandler(&buf, slog.LevelInfo)).WithGroup("req").With("id", 7)

	logger.Info("done", "status", 200)

	assert.Contains(t, buf.String(), "done req.id=7 req.status=200")
}

func TestNewPicksFormat(t *testing.T) {
	var buf bytes.Buffer
	slog.New(New(&buf, "json", slog.LevelInfo)).Info("hello", "tag", "main")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec), "json format output %q", buf.String())
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "main", rec["tag"])

	buf.Reset()
	slog.New(New(&buf, "pretty", slog.LevelInfo)).Info("hello")
	assert.Contains(t, buf.String(), "hello")

	assert.IsType(t, &CompactHandler{}, New(&buf, "", slog.LevelInfo))
}

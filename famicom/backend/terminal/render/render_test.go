package render

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBuffer(t *testing.T) {
	lb := NewLogBuffer(3)
	assert.Nil(t, lb.GetRecent(0))

	for _, msg := range []string{"a", "b", "c", "d"} {
		lb.Add(LogEntry{Message: msg})
	}

	recent := lb.GetRecent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "d", recent[0].Message)
	assert.Equal(t, "c", recent[1].Message)
	assert.Equal(t, "b", recent[2].Message)

	assert.Len(t, lb.GetRecent(2), 2)

	lb.Clear()
	assert.Nil(t, lb.GetRecent(0))
}

func TestHandler(t *testing.T) {
	lb := NewLogBuffer(10)
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	logger := slog.New(NewHandler(lb, level))

	logger.Debug("hidden")
	logger.Info("frame done", "frame", 3)
	logger.With("rom", "game").WithGroup("cpu").Warn("jammed", "pc", 0x8000)

	recent := lb.GetRecent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "jammed rom=game cpu.pc=32768", recent[0].Message)
	assert.Equal(t, slog.LevelWarn, recent[0].Level)
	assert.Equal(t, "frame done frame=3", recent[1].Message)

	level.Set(slog.LevelDebug)
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestFormatLogEntry(t *testing.T) {
	at := time.Date(2024, 1, 1, 13, 4, 5, 0, time.UTC)
	assert.Equal(t, "13:04:05 [WRN] careful", FormatLogEntry(LogEntry{Time: at, Level: slog.LevelWarn, Message: "careful"}))
	assert.Equal(t, "13:04:05 [DBG] x", FormatLogEntry(LogEntry{Time: at, Level: slog.LevelDebug - 4, Message: "x"}))
}

func TestBlocks(t *testing.T) {
	assert.Equal(t, 0, Shade(0))
	assert.Equal(t, 4, Shade(255))
	assert.Equal(t, ' ', ShadeChar(-1))
	assert.Equal(t, '█', ShadeChar(10))

	assert.Equal(t, '█', HalfBlock(0x112233FF, 0x112233FF))
	assert.Equal(t, '▀', HalfBlock(0x112233FF, 0x000000FF))
}

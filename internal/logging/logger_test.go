package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestShortPath(t *testing.T) {
	assert.Equal(t, "internal/usecase/run_scenario.go", shortPath("/home/dev/src/govopt/internal/usecase/run_scenario.go"))
	assert.Equal(t, "main.go", shortPath("/elsewhere/main.go"))
}

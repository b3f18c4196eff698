package internal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewLoggerWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "logs", "volsearch.log")

	logger, closer, err := NewLogger(LogConfig{
		Level:     "info",
		File:      logFile,
		MaxSizeMB: 1,
		Console:   &console,
	})
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Str("volume", "C:").Msg("indexed")
	require.NoError(t, closer.Close())

	assert.Contains(t, console.String(), "indexed")
	assert.NotContains(t, console.String(), "hidden")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"volume":"C:"`)
}

func TestDefaultWorkersBounds(t *testing.T) {
	w := DefaultWorkers()
	assert.GreaterOrEqual(t, w, 4)
	assert.LessOrEqual(t, w, 32)
}

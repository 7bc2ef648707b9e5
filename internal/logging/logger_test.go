package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		logger := NewLogger(Config{Level: "warn", NoColor: true})
		require.NotNil(t, logger)
		assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
	})

	t.Run("rotated file receives structured fields", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "depctl.log")

		logger := NewLogger(Config{Level: "debug", LogFile: logFile, NoColor: true})
		Component(logger, "checker").Debug().
			Str("dependency", "node").
			Str("version", "20.1.0").
			Msg("dependency checked")

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"component":"checker"`)
		assert.Contains(t, string(data), `"dependency":"node"`)
		assert.Contains(t, string(data), "dependency checked")
	})

	t.Run("level filters file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "depctl.log")

		logger := NewLogger(Config{Level: "error", LogFile: logFile, NoColor: true})
		logger.Info().Msg("region cache expired")
		logger.Error().Msg("open database failed")

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "region cache expired")
		assert.Contains(t, string(data), "open database failed")
	})

	t.Run("honours NO_COLOR", func(t *testing.T) {
		t.Setenv("NO_COLOR", "1")
		assert.NotNil(t, NewLogger(Config{Level: "info"}))
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)

	Component(logger, "executor").Info().Int("command_index", 2).Msg("spawned")
	assert.Contains(t, buf.String(), `"component":"executor"`)
	assert.Contains(t, buf.String(), `"command_index":2`)

	assert.NotNil(t, Component(nil, "noop"))
	Component(nil, "noop").Info().Msg("dropped")
}

func TestProgressSafeWriter(t *testing.T) {
	t.Run("complete line clears the bar first", func(t *testing.T) {
		var buf bytes.Buffer
		w := newProgressSafeWriter(&buf)

		n, err := w.Write([]byte("installing node\n"))
		require.NoError(t, err)
		assert.Equal(t, len("installing node\n"), n)
		assert.Equal(t, "\r\033[Kinstalling node\n", buf.String())
	})

	t.Run("partial write passes through", func(t *testing.T) {
		var buf bytes.Buffer
		w := newProgressSafeWriter(&buf)

		_, err := w.Write([]byte("partial"))
		require.NoError(t, err)
		assert.Equal(t, "partial", buf.String())
	})

	t.Run("concurrent lines stay whole", func(t *testing.T) {
		var buf bytes.Buffer
		w := newProgressSafeWriter(&buf)

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = w.Write([]byte("line\n"))
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, strings.Count(buf.String(), "\r\033[Kline\n"))
	})
}

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/paas/internal/config"
)

func TestNewLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.Config{ServiceName: "orchestrator", QueueBackend: "memory", LogLevel: "debug"})

	logger.Debug().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "orchestrator", line["service"])
	assert.Equal(t, "memory", line["queue_backend"])
	assert.Equal(t, "hello", line["message"])
	assert.Contains(t, line, "time")
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	logger := newLogger(&bytes.Buffer{}, &config.Config{LogLevel: "loud"})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestNewLogger_EmptyLevelIsInfo(t *testing.T) {
	logger := newLogger(&bytes.Buffer{}, &config.Config{})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.Config{LogLevel: "warn"})

	logger.Info().Msg("dropped")
	assert.Zero(t, buf.Len())
	logger.Warn().Msg("kept")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestNewLogger_OmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.Config{})
	logger.Info().Msg("x")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "service")
	assert.NotContains(t, line, "queue_backend")
}

package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/unifiedui/multiagent-service/internal/config"
)

func TestBuild_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := build(config.LogConfig{Level: "debug", Format: "json"}, &buf)

	l.Debug().Str("agent", "旅行管家").Msg("hello")

	assert.Contains(t, buf.String(), `"agent":"旅行管家"`)
	assert.Contains(t, buf.String(), `"service":"multiagent-service"`)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestBuild_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := build(config.LogConfig{Level: "verbose"}, &buf)

	l.Debug().Msg("hidden")
	l.Info().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

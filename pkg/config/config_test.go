package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
	assert.Equal(t, "id", cfg.Engine.TaskRepresentation)
	assert.Equal(t, "file", cfg.Sink.Kind)
	assert.False(t, cfg.Formats.TickEnabled)
	assert.Equal(t, uint8(16), cfg.Formats.TaskIDBase)
}

func TestValidateRejectsUndersizedChunk(t *testing.T) {
	cfg := Default()
	cfg.Engine.ChunkSize = 1
	assert.Error(t, cfg.validate())
}

func TestValidateRejectsUnknownSinkKind(t *testing.T) {
	cfg := Default()
	cfg.Sink.Kind = "carrier-pigeon"
	assert.Error(t, cfg.validate())
}

func TestValidateRejectsUnknownTaskRepresentation(t *testing.T) {
	cfg := Default()
	cfg.Engine.TaskRepresentation = "both"
	assert.Error(t, cfg.validate())
}

func TestValidateFillsMissingLogDefaults(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = ""
	cfg.Log.Outputs = nil
	require.NoError(t, cfg.validate())
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, []string{"stdout"}, cfg.Log.Outputs)
}

func TestLoadWithNoFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("LOGMUX_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Engine.ChunkSize, cfg.Engine.ChunkSize)
}

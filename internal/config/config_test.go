package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelcheck/internal/errors"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Model.Draws)
	assert.Equal(t, 0.001, cfg.Model.ZeroFudge)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MODELCHECK_DRAWS", "10")
	t.Setenv("MODELCHECK_SEED", "42")
	t.Setenv("MODELCHECK_TOLERANCE", "1e-6")
	t.Setenv("PORT", "9090")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Model.Draws)
	assert.Equal(t, int64(42), cfg.Model.Seed)
	assert.Equal(t, 1e-6, cfg.Model.Tolerance)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestFromEnvInvalid(t *testing.T) {
	t.Setenv("MODELCHECK_DRAWS", "0")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

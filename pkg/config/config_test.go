package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Setenv registers the restore; the variable must be absent, not
	// merely empty, for the struct tag default to apply.
	t.Setenv("SQUISH_MAX_THREADS", "")
	os.Unsetenv("SQUISH_MAX_THREADS")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30, c.MaxThreads)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SQUISH_MAX_THREADS", "8")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, c.MaxThreads)
}

func TestLoadFloorsThreadCount(t *testing.T) {
	t.Setenv("SQUISH_MAX_THREADS", "0")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1, c.MaxThreads)
}

func TestLoadRejectsGarbage(t *testing.T) {
	t.Setenv("SQUISH_MAX_THREADS", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

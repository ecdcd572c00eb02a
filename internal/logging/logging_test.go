package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zap.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zap.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zap.InfoLevel, ParseLevel(""))
	assert.Equal(t, zap.InfoLevel, ParseLevel("verbose"))
}

func TestNew_AtomicLevel(t *testing.T) {
	logger, atom, err := New("warn", false)
	require.NoError(t, err)
	defer logger.Sync()

	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	atom.SetLevel(zap.DebugLevel)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tommy-ca/gridbot/internal/strategy"
)

var _ strategy.Logger = (*ZapLogger)(nil)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("verbose", "json")
	assert.Error(t, err)
}

func TestNewAcceptsEachLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", ""} {
		l, err := New(lvl, "console")
		require.NoError(t, err)
		l.Info("hello", "level", lvl)
	}
}

func TestWithAttachesFields(t *testing.T) {
	l, err := New("info", "json")
	require.NoError(t, err)
	child := l.With("symbol", "BTC-USD")
	child.Warn("backoff armed")
}

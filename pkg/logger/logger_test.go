package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("console", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(&buf, Config{Format: "console", Level: zapcore.DebugLevel})
		require.NoError(t, err)
		log.Debug("parsed source", zap.Int("items", 2))
		assert.Contains(t, buf.String(), "parsed source")
		assert.Contains(t, buf.String(), `"items": 2`)
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(&buf, Config{Format: "json", Level: zapcore.InfoLevel})
		require.NoError(t, err)
		log.Info("emitted object")
		assert.Contains(t, buf.String(), `"msg":"emitted object"`)
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(&buf, NewConfig())
		require.NoError(t, err)
		log.Info("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := New(&bytes.Buffer{}, Config{Format: "xml"})
		assert.Error(t, err)
	})
}

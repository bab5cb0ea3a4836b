package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJobFromContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelInfo, "json").Named("runner")

	ctx := WithJob(context.Background(), "players")
	logger.InfoContext(ctx, "sync finished", "rows", 3, "err", errors.New("boom"))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, `"job":"players"`)
	assert.Contains(t, out, `"component":"runner"`)
	assert.Contains(t, out, `"rows":3`)
	assert.Contains(t, out, `"err":"boom"`)
}

func TestLoggerRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelWarn, "console")
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.Contains(t, out, "shown")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("loud"))
}

func TestOddArgsDoNotPanic(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelInfo, "json")
	logger.Info("odd", "dangling")
	assert.Contains(t, buf.String(), `"dangling":null`)
}

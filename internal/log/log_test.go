package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(lvl zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, obs := observer.New(lvl)
	return &Logger{zl: zap.New(core), level: zap.NewAtomicLevelAt(lvl)}, obs
}

func TestLoggerLevels(t *testing.T) {
	logger, obs := newObservedLogger(zapcore.InfoLevel)

	logger.Debug(context.Background(), "dropped")
	logger.Info(context.Background(), "kept", Int("n", 1))

	entries := obs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Message)
	assert.Equal(t, int64(1), entries[0].ContextMap()["n"])
}

func TestLoggerHooks(t *testing.T) {
	logger, obs := newObservedLogger(zapcore.DebugLevel)

	logger.AddHook(HookFunc(func(ctx context.Context, msg string, fields ...Field) []Field {
		return append(fields, String("source", "hook"))
	}))

	logger.Error(context.Background(), "boom", String("k", "v"))

	entries := obs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "v", entries[0].ContextMap()["k"])
	assert.Equal(t, "hook", entries[0].ContextMap()["source"])
}

func TestLoggerWith(t *testing.T) {
	logger, obs := newObservedLogger(zapcore.DebugLevel)

	child := logger.With(String("component", "store"))
	child.Info(context.Background(), "ready")

	entries := obs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "store", entries[0].ContextMap()["component"])
}

func TestAsSlog(t *testing.T) {
	logger, obs := newObservedLogger(zapcore.DebugLevel)

	sl := logger.AsSlog()
	sl.With("worker", "gc").WithGroup("run").Info("finished", "deleted", 3)

	entries := obs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "finished", entries[0].Message)
	assert.Equal(t, "gc", entries[0].ContextMap()["worker"])
	assert.Equal(t, int64(3), entries[0].ContextMap()["run.deleted"])
}

func TestNewDefaults(t *testing.T) {
	logger := New(Config{})
	require.NotNil(t, logger)
	assert.False(t, logger.level.Enabled(zapcore.DebugLevel))
	assert.True(t, logger.level.Enabled(zapcore.InfoLevel))

	logger = New(Config{Level: "nonsense"})
	assert.True(t, logger.level.Enabled(zapcore.InfoLevel))
}

func TestGlobalLogger(t *testing.T) {
	old := GetGlobalLogger()
	defer SetDefault(old)

	SetGlobalConfig(Config{Level: "warn", Format: "json"})
	assert.False(t, DebugEnabled(context.Background()))
}

package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewLoggerFromCore(core), logs
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger(LogConfig{Level: "debug", Format: format})
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_BadOutputPath(t *testing.T) {
	_, err := NewLogger(LogConfig{OutputPaths: []string{"/nonexistent-dir/for/sure/out.log"}})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("fatal"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestZapLogger_FieldsAreTyped(t *testing.T) {
	l, logs := newObservedLogger()

	l.Info("epoch finished",
		Int("epoch", 3),
		String("state", "train"),
		Float64("loss", 0.12345),
		Bool("fixed", true),
		Strings("tasks", []string{"NR-AR"}),
		Err(errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "epoch finished", entry.Message)
	ctx := entry.ContextMap()
	assert.EqualValues(t, 3, ctx["epoch"])
	assert.Equal(t, "train", ctx["state"])
	assert.Equal(t, 0.12345, ctx["loss"])
	assert.Equal(t, true, ctx["fixed"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestZapLogger_WithAndNamed(t *testing.T) {
	l, logs := newObservedLogger()

	child := l.Named("trainer").With(String("dataset", "hiv"))
	child.Warn("fixed triplets refreshed")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "trainer", entry.LoggerName)
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "hiv", entry.ContextMap()["dataset"])
}

func TestErr_Nil(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.Info("x", Int("a", 1))
		l.With(String("k", "v")).Named("n").Error("y")
	})
	assert.NoError(t, l.Sync())
}

func TestDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	l, _ := newObservedLogger()
	SetDefault(l)
	assert.Same(t, l, Default())

	SetDefault(nil)
	assert.Same(t, l, Default())

	assert.Same(t, l, OrDefault(nil))
	nop := NewNopLogger()
	assert.Equal(t, nop, OrDefault(nop))
}

func TestSetLevel(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "info", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	child := l.Named("child")

	assert.True(t, SetLevel(child, "debug"))
	assert.Equal(t, zapcore.DebugLevel, l.(*zapLogger).level.Level())

	assert.False(t, SetLevel(NewNopLogger(), "debug"))
	observed, _ := newObservedLogger()
	assert.False(t, SetLevel(observed, "debug"))
}

package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, ok := ParseLevel(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	got, ok := ParseLevel("verbose")
	assert.False(t, ok)
	assert.Equal(t, zapcore.InfoLevel, got)
}

func TestNew_BuildsBothModes(t *testing.T) {
	for _, pretty := range []bool{false, true} {
		l, err := New("debug", pretty)
		require.NoError(t, err)
		require.NotNil(t, l)
		l.Debug("hello", String("k", "v"))
	}
}

func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With(String("component", "feed"))

	l.Info("tick", Int64("seq", 7))

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "feed", ctx["component"])
	assert.Equal(t, int64(7), ctx["seq"])
}

package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	prev := logger
	SetLogger(zap.New(core))
	t.Cleanup(func() { logger = prev })
	return logs
}

func TestInitialize_SilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	require.NoError(t, Initialize(""))
	assert.False(t, GetLogger().Core().Enabled(zapcore.ErrorLevel))
}

func TestSuspend(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	restore := Suspend()
	Warn("hidden")
	restore()
	Warn("shown")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "shown", logs.All()[0].Message)
}

func TestInitialize_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			require.NoError(t, Initialize(tt.level))
			assert.True(t, GetLogger().Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, GetLogger().Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestInitialize_JSONFormat(t *testing.T) {
	t.Setenv(LogFormatEnvVar, "json")
	require.NoError(t, Initialize("info"))
	assert.True(t, GetLogger().Core().Enabled(zapcore.InfoLevel))
}

func TestLogFrame(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	LogFrame("received", []byte{0x0b, 0x20, 0xff})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Gateway frame", entry.Message)
	assert.Equal(t, "0B20FF", entry.ContextMap()["hex"])
	assert.Equal(t, "received", entry.ContextMap()["direction"])
}

func TestLogFrame_SkippedAboveDebug(t *testing.T) {
	logs := observe(t, zapcore.InfoLevel)
	LogFrame("received", []byte{0x01})
	assert.Equal(t, 0, logs.Len())
}

func TestLogDecodeFailure(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	LogDecodeFailure([]byte{0x02, 0x03}, errors.New("rfxcom: malformed frame"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "0203", entry.ContextMap()["hex"])
	assert.Equal(t, "rfxcom: malformed frame", entry.ContextMap()["error"])
}

func TestHexDump_Truncates(t *testing.T) {
	out := hexDump(make([]byte, 300))
	assert.Len(t, out, 512+3)
	assert.Equal(t, "", hexDump(nil))
	assert.Equal(t, "a.b", asciiDump([]byte{'a', 0x00, 'b'}))
}

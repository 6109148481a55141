package logging

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_PrefixAndLevels(t *testing.T) {
	var got []string
	record := func(tag string) LogFunc {
		return func(format string, args ...interface{}) {
			got = append(got, tag+" "+format)
		}
	}

	logger := NewLogger("supervisor: ", LogFuncs{
		Debugf: record("D"),
		Infof:  record("I"),
		Warnf:  record("W"),
		Errorf: record("E"),
	})

	logger.Debugf("a")
	logger.Infof("b")
	logger.Warnf("c")
	logger.Errorf("d")
	logger.LogLevelf(LogLevelInfo, "e")

	assert.Equal(t, []string{
		"D supervisor: a",
		"I supervisor: b",
		"W supervisor: c",
		"E supervisor: d",
		"I supervisor: e",
	}, got)
}

func TestLogger_NilFuncsAreSkipped(t *testing.T) {
	logger := NewNopLogger()
	assert.NotPanics(t, func() {
		logger.Infof("nothing %d", 1)
		logger.LogLevelf(LogLevelError, "nothing")
	})
}

func TestFromZap_WithPrefix(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := FromZap(zap.New(core))

	logger := WithPrefix(base, "registry: ")
	logger.Infof("loaded %d units", 3)
	logger.Debugf("detail")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "registry: loaded 3 units", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
}

func TestWithPrefix_KeepsCallSite(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	zapLogger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(callerSkip))
	base := &ZapLogger{Logger: FromZap(zapLogger), zapLogger: zapLogger}

	base.Infof("plain")
	server := WithPrefix(base, "server: ")
	server.Infof("one")
	WithPrefix(server, "registry: ").Warnf("two")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "plain", entries[0].Message)
	assert.Equal(t, "server: one", entries[1].Message)
	assert.Equal(t, "server: registry: two", entries[2].Message)
	for _, entry := range entries {
		require.True(t, entry.Caller.Defined)
		assert.Equal(t, "logging_test.go", filepath.Base(entry.Caller.File))
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  zapcore.Level
		shouldErr bool
	}{
		{"empty_defaults_to_info", "", zapcore.InfoLevel, false},
		{"debug", "debug", zapcore.DebugLevel, false},
		{"upper_case", "WARN", zapcore.WarnLevel, false},
		{"error", "error", zapcore.ErrorLevel, false},
		{"invalid", "verbose", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.shouldErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestNewZapLogger_InvalidLevel(t *testing.T) {
	_, err := NewZapLogger(ZapOptions{Level: "loud"})
	assert.Error(t, err)
}

func TestNewZapLogger_Writers(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(ZapOptions{Level: "info", Writers: []io.Writer{&buf}})
	require.NoError(t, err)

	logger.Debugf("hidden %d", 1)
	logger.Infof("unit %s started", "web")
	require.NoError(t, logger.Sync())

	assert.Contains(t, buf.String(), `"msg":"unit web started"`)
	assert.NotContains(t, buf.String(), "hidden")
}

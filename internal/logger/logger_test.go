package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_WritesJSONFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.File = filepath.Join(t.TempDir(), "logs", "bot.log")

	l, err := New(cfg)
	require.NoError(t, err)

	l.Named("strategy-engine").Info("entry accepted", zap.String("token", "Mint111"))
	l.Debug("hidden at info level")
	_ = Sync(l)

	f, err := os.Open(cfg.File)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		lines = append(lines, entry)
	}

	require.Len(t, lines, 1)
	assert.Equal(t, "entry accepted", lines[0]["msg"])
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "strategy-engine", lines[0]["logger"])
	assert.Equal(t, "Mint111", lines[0]["token"])
}

func TestNew_DebugLevel(t *testing.T) {
	l, err := New(Config{Debug: true})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New(Config{})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestPrettyEncoder(t *testing.T) {
	enc := PrettyEncoder()
	buf, err := enc.EncodeEntry(zapcore.Entry{
		Level:      zapcore.WarnLevel,
		LoggerName: "exit-monitor",
		Message:    "price unavailable",
	}, []zapcore.Field{zap.String("token", "abc")})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.Contains(out, "[WARN]"))
	assert.Contains(t, out, "[exit-monitor]")
	assert.Contains(t, out, "price unavailable")
	assert.Contains(t, out, `"token": "abc"`)
}

func TestShortenAddress(t *testing.T) {
	assert.Equal(t, "So11...1112", ShortenAddress("So11111111111111111111111111111111111111112"))
	assert.Equal(t, "short", ShortenAddress("short"))
}

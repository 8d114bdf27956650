package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupEmitsStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("basketd", "test", WithOutput(&buf), WithLevel(slog.LevelDebug))
	logger.Debug("vault ready", "basket", "bskt1xyz")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "vault ready", line["message"])
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "basketd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
}

func TestSetupFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("basketd", "", WithOutput(&buf), WithLevel(slog.LevelWarn))
	logger.Info("hidden")
	require.Zero(t, buf.Len())
}

func TestWithFileConfiguresRotation(t *testing.T) {
	var cfg options
	WithFile(filepath.Join(t.TempDir(), "basketd.log"), 0, 3)(&cfg)
	require.NotNil(t, cfg.file)
	require.Equal(t, 100, cfg.file.MaxSize)
	require.Equal(t, 3, cfg.file.MaxBackups)

	var empty options
	WithFile("  ", 10, 1)(&empty)
	require.Nil(t, empty.file)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	require.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	require.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestSetupMasksSensitiveAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("basketd", "", WithOutput(&buf))
	logger.Info("auth", "jwt_secret", "s3cr3t", "authorization", "Bearer abc.def", "basket", "bskt1abc", "receipts_dsn", "")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, RedactedValue, line["jwt_secret"])
	require.Equal(t, "Bearer "+RedactedValue, line["authorization"])
	require.Equal(t, "bskt1abc", line["basket"])
	require.Equal(t, "", line["receipts_dsn"])
}

func TestMaskBearer(t *testing.T) {
	require.Equal(t, "Bearer "+RedactedValue, MaskBearer("Bearer abc.def.ghi"))
	require.Equal(t, RedactedValue, MaskBearer("opaque"))
	require.Equal(t, "", MaskBearer(""))
}

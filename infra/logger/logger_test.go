package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLevelAndComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newZerolog(&buf, "worker", Config{Level: "info"})
	l.Debugf("hidden %d", 1)
	l.Infof("households %d", 12)
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "worker", line["component"])
	assert.Equal(t, "households 12", line["message"])
	assert.Equal(t, "info", line["level"])
}

func TestZerologDebugw(t *testing.T) {
	var buf bytes.Buffer
	l := newZerolog(&buf, "scheduler", Config{Level: "debug"})
	l.Debugw("commit", map[string]any{"household": 7, "tour": 2})
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.EqualValues(t, 7, line["household"])
	assert.EqualValues(t, 2, line["tour"])
}

func TestLogrusBackend(t *testing.T) {
	var buf bytes.Buffer
	l := newLogrus(&buf, "matrix", Config{Level: "warn"})
	l.Infof("skipped")
	l.Warnf("slow read %s", "SOV_TIME")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "matrix", line["component"])
	assert.Equal(t, "slow read SOV_TIME", line["msg"])
}

func TestConfigure(t *testing.T) {
	t.Cleanup(func() { _ = Configure(Config{}) })
	if err := Configure(Config{Backend: "syslog"}); err == nil {
		t.Fatal("expected unknown backend error")
	}
	require.NoError(t, Configure(Config{Backend: "logrus", Level: "debug"}))
	_, ok := New("x").(*LogrusLogger)
	assert.True(t, ok)
	require.NoError(t, Configure(Config{}))
	_, ok = New("x").(*ZerologLogger)
	assert.True(t, ok)
	if err := Configure(Config{Format: "xml"}); err == nil {
		t.Fatal("expected unknown format error")
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	newZerolog(&buf, "worker", Config{Level: "info", Format: "console"}).Infof("batch %d done", 3)
	assert.Contains(t, buf.String(), "batch 3 done")
	assert.False(t, json.Valid(buf.Bytes()))

	buf.Reset()
	newLogrus(&buf, "worker", Config{Level: "info", Format: "console"}).Infof("batch %d done", 4)
	assert.Contains(t, buf.String(), `msg="batch 4 done"`)
}

func TestConfigureFile(t *testing.T) {
	t.Cleanup(func() { _ = Configure(Config{}) })
	path := filepath.Join(t.TempDir(), "ctramp.log")
	require.NoError(t, Configure(Config{File: path}))
	New("household-server").Infof("ready")
	require.NoError(t, Configure(Config{}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"component":"household-server"`)
}
